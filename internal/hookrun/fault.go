package hookrun

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
)

// Fault is one accumulated policy violation. Faults are append-only within
// a run; they are never removed, only aggregated into one report at the end.
type Fault struct {
	// Prefix identifies the check that recorded the fault. Defaults to the
	// framework's own identity.
	Prefix string

	// Optional context hints.
	Commit string
	Ref    string
	Option string

	// Message is the human-readable violation.
	Message string

	// Details is optional multi-line elaboration, indented in the report.
	Details string
}

var (
	faultHeadStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("3"))
	faultMessageStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	faultDetailStyle  = lipgloss.NewStyle().Faint(true)
)

// Fault records one fault. An empty prefix is replaced by the framework
// identity.
func (c *Context) Fault(f Fault) {
	if f.Prefix == "" {
		f.Prefix = "gitgate"
	}
	c.faults = append(c.faults, f)
}

// Faultf records a plain message fault under the given prefix.
func (c *Context) Faultf(prefix, format string, args ...any) {
	c.Fault(Fault{Prefix: prefix, Message: fmt.Sprintf(format, args...)})
}

// Faults returns the accumulated faults in recording order.
func (c *Context) Faults() []Fault { return c.faults }

// HasFaults reports whether any fault was recorded.
func (c *Context) HasFaults() bool { return len(c.faults) > 0 }

func (f *Fault) contextLine() string {
	var parts []string
	if f.Commit != "" && f.Commit != UndefinedCommit {
		id := f.Commit
		if len(id) > 12 {
			id = id[:12]
		}
		parts = append(parts, "commit "+id)
	}
	if f.Ref != "" {
		parts = append(parts, "ref "+f.Ref)
	}
	if f.Option != "" {
		parts = append(parts, "option "+f.Option)
	}
	head := f.Prefix
	if len(parts) > 0 {
		head += ": " + strings.Join(parts, ", ")
	}
	return "[" + head + "]"
}

func (c *Context) formatFault(f *Fault) string {
	var b strings.Builder
	head := f.contextLine()
	msg := f.Message
	if c.Color {
		head = faultHeadStyle.Render(head)
		msg = faultMessageStyle.Render(msg)
	}
	b.WriteString(head)
	b.WriteString("\n")
	b.WriteString(msg)
	b.WriteString("\n")
	if f.Details != "" {
		for _, line := range strings.Split(strings.TrimRight(f.Details, "\n"), "\n") {
			line = "  " + line
			if c.Color {
				line = faultDetailStyle.Render(line)
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// Report formats the aggregate fault report: every fault in order, with the
// configured gitgate.error-prefix applied per line, the configured header
// and footer around the whole report, and the configured byte-length cap.
// Formatting is a pure function of the fault list and the configuration, so
// repeated calls yield byte-identical output.
func (c *Context) Report() string {
	if len(c.faults) == 0 {
		return ""
	}
	entries := make([]string, len(c.faults))
	for i := range c.faults {
		entries[i] = c.formatFault(&c.faults[i])
	}
	report := strings.Join(entries, "\n")

	if prefix, ok := c.ConfigValue("gitgate", "error-prefix"); ok && prefix != "" {
		var b strings.Builder
		for _, line := range strings.Split(strings.TrimRight(report, "\n"), "\n") {
			b.WriteString(prefix)
			b.WriteString(line)
			b.WriteString("\n")
		}
		report = b.String()
	}
	if header, ok := c.ConfigValue("gitgate", "error-header"); ok && header != "" {
		report = header + "\n" + report
	}
	if footer, ok := c.ConfigValue("gitgate", "error-footer"); ok && footer != "" {
		report = report + footer + "\n"
	}
	// An invalid limit is rejected by FailOnFaults before any report is
	// formatted; the err == nil guard keeps direct callers best-effort.
	if limit, ok, err := c.ConfigInt("gitgate", "error-length-limit"); err == nil && ok && limit > 0 && int64(len(report)) > limit {
		report = Truncate(report, int(limit)) + "\n... (report truncated)\n"
	}
	return report
}

// Truncate shortens s to at most limit bytes, backing off to the previous
// rune boundary so a multibyte character is never split.
func Truncate(s string, limit int) string {
	if limit < 0 {
		limit = 0
	}
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// FailOnFaults surfaces every accumulated fault exactly once, at the end of
// dispatch. With warnOnly the report is emitted as a non-fatal warning (the
// local-commit hooks use this when gitgate.abort-commit is off, preserving
// the user's commit message for amendment); otherwise it is returned as the
// fatal FaultsError that aborts the underlying operation.
func (c *Context) FailOnFaults(warnOnly bool) error {
	if _, _, err := c.ConfigInt("gitgate", "error-length-limit"); err != nil {
		return err
	}
	if len(c.faults) == 0 {
		return nil
	}
	report := c.Report()
	if warnOnly {
		fmt.Fprint(c.Stderr, report)
		return nil
	}
	return &FaultsError{Report: report, Count: len(c.faults)}
}
