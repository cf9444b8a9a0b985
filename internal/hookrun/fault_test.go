package hookrun

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFault_DefaultPrefix(t *testing.T) {
	ctx, _ := newConfigContext(t, "user.name\nAlice")

	ctx.Fault(Fault{Message: "something broke"})
	require.Len(t, ctx.Faults(), 1)
	assert.Equal(t, "gitgate", ctx.Faults()[0].Prefix)
}

func TestFaultf(t *testing.T) {
	ctx, _ := newConfigContext(t, "user.name\nAlice")

	ctx.Faultf("checklog", "subject has %d characters", 72)
	require.True(t, ctx.HasFaults())
	assert.Equal(t, "subject has 72 characters", ctx.Faults()[0].Message)
}

func TestReport_ContextLine(t *testing.T) {
	ctx, _ := newConfigContext(t, "user.name\nAlice")
	ctx.Fault(Fault{
		Prefix:  "checkacls",
		Commit:  "0123456789abcdef0123456789abcdef01234567",
		Ref:     "refs/heads/master",
		Option:  "gitgate.acl",
		Message: "denied",
	})

	report := ctx.Report()
	assert.Contains(t, report,
		"[checkacls: commit 0123456789ab, ref refs/heads/master, option gitgate.acl]")
	assert.Contains(t, report, "denied\n")
}

func TestReport_UndefinedCommitOmitted(t *testing.T) {
	ctx, _ := newConfigContext(t, "user.name\nAlice")
	ctx.Fault(Fault{Prefix: "checkacls", Commit: UndefinedCommit, Ref: "refs/tags/v1", Message: "denied"})

	assert.Contains(t, ctx.Report(), "[checkacls: ref refs/tags/v1]")
	assert.NotContains(t, ctx.Report(), "commit 0000")
}

func TestReport_Empty(t *testing.T) {
	ctx, _ := newConfigContext(t, "user.name\nAlice")
	assert.Equal(t, "", ctx.Report())
}

// decoratedContext builds the two-fault context used by the formatting
// tests, with header, footer and prefix configured.
func decoratedContext(t *testing.T, extra ...string) *Context {
	t.Helper()
	records := append([]string{
		"gitgate.error-header\nPOLICY VIOLATIONS",
		"gitgate.error-prefix\nERR> ",
		"gitgate.error-footer\nContact the administrators.",
	}, extra...)
	ctx, _ := newConfigContext(t, records...)
	ctx.Fault(Fault{
		Prefix:  "checklog",
		Commit:  "0123456789abcdef0123456789abcdef01234567",
		Ref:     "refs/heads/master",
		Message: "commit subject is too long",
		Details: "subject has 72 characters\nlimit is 50",
	})
	ctx.Fault(Fault{
		Prefix:  "checkacls",
		Option:  "gitgate.acl",
		Message: "user bob cannot update refs/heads/master",
	})
	return ctx
}

func TestReport_Golden(t *testing.T) {
	ctx := decoratedContext(t)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "fault_report", []byte(ctx.Report()))
}

func TestReport_ByteIdentical(t *testing.T) {
	ctx := decoratedContext(t)
	assert.Equal(t, ctx.Report(), ctx.Report())
}

func TestReport_LengthLimit(t *testing.T) {
	ctx := decoratedContext(t, "gitgate.error-length-limit\n20")

	report := ctx.Report()
	assert.True(t, strings.HasSuffix(report, "\n... (report truncated)\n"))
	assert.Equal(t, "POLICY VIOLATIONS\nER",
		strings.TrimSuffix(report, "\n... (report truncated)\n"))
}

func TestReport_LengthLimitKeepsRunesWhole(t *testing.T) {
	// The 13-byte cut would land in the middle of the two-byte é.
	ctx, _ := newConfigContext(t, "gitgate.error-length-limit\n13")
	ctx.Faultf("checklog", "héllo wörld")

	report := ctx.Report()
	body := strings.TrimSuffix(report, "\n... (report truncated)\n")
	assert.True(t, utf8.ValidString(body), "truncation must not split a rune")
	assert.Equal(t, "[checklog]\nh", body)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 10))
	assert.Equal(t, "ab", Truncate("abcd", 2))
	assert.Equal(t, "a", Truncate("aé", 2), "backs off to the rune boundary")
	assert.Equal(t, "aé", Truncate("aéb", 3))
	assert.Equal(t, "", Truncate("abc", 0))
}

func TestFailOnFaults_InvalidLengthLimit(t *testing.T) {
	ctx, _ := newConfigContext(t, "gitgate.error-length-limit\nbanana")
	ctx.Faultf("checklog", "bad subject")

	err := ctx.FailOnFaults(false)
	require.Error(t, err)
	assert.True(t, IsConfigError(err),
		"an invalid limit is a configuration error, not a silent default")

	err = ctx.FailOnFaults(true)
	require.Error(t, err, "warn-only mode does not excuse broken configuration")
}

func TestFailOnFaults_NoFaults(t *testing.T) {
	ctx, _ := newConfigContext(t, "user.name\nAlice")
	assert.NoError(t, ctx.FailOnFaults(false))
	assert.NoError(t, ctx.FailOnFaults(true))
}

func TestFailOnFaults_Fatal(t *testing.T) {
	ctx, _ := newConfigContext(t, "user.name\nAlice")
	ctx.Faultf("checklog", "bad subject")
	ctx.Faultf("checkacls", "denied")

	err := ctx.FailOnFaults(false)
	require.Error(t, err)
	require.True(t, IsFaultsError(err))

	var fe *FaultsError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, 2, fe.Count)
	assert.Equal(t, ctx.Report(), fe.Report)
	assert.Equal(t, fe.Report, err.Error())
}

func TestFailOnFaults_WarnOnly(t *testing.T) {
	ctx, _ := newConfigContext(t, "user.name\nAlice")
	var stderr bytes.Buffer
	ctx.Stderr = &stderr
	ctx.Faultf("checklog", "bad subject")

	require.NoError(t, ctx.FailOnFaults(true))
	assert.Equal(t, ctx.Report(), stderr.String())
}
