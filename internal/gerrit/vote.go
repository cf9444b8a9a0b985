package gerrit

import (
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/roach88/gitgate/internal/hookrun"
)

// commentSizeLimit keeps the rejection message under Gerrit's comment size
// cap.
const commentSizeLimit = 64 << 10

// voteConfig is the resolved voting configuration.
type voteConfig struct {
	client     *Client
	approve    map[string]int
	reject     map[string]int
	commentOK  string
	autoSubmit bool
}

// SetupVoting decides the driver's state for a remote review hook. A draft
// patchset is unvotable (it is invisible to the voting identity), so the
// run has nothing useful to do and votable is false. Otherwise the driver
// validates its configuration now (missing credentials or mixed label
// options must fail before any check runs) and registers the vote as a
// post-dispatch callback.
func SetupVoting(ctx *hookrun.Context) (votable bool, err error) {
	opts := ctx.GerritOptions()
	if opts == nil {
		return false, nil
	}
	if opts["is-draft"] == "true" {
		slog.Debug("draft patchset, not voting", "run", ctx.RunID)
		return false, nil
	}
	cfg, err := loadVoteConfig(ctx)
	if err != nil {
		return false, err
	}
	ctx.AfterRun(func(ctx *hookrun.Context) error {
		return castVote(ctx, cfg)
	})
	return true, nil
}

var voteRE = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9-]*)([+-][0-9]+)$`)

// parseVotes parses a "Label+1 Other-Label-2" list into a label map.
func parseVotes(option string, values []string) (map[string]int, error) {
	labels := make(map[string]int)
	for _, value := range values {
		for _, vote := range strings.Fields(value) {
			m := voteRE.FindStringSubmatch(vote)
			if m == nil {
				return nil, hookrun.NewConfigError(option, "malformed vote %q (want Label+N or Label-N)", vote)
			}
			var n int
			if _, err := fmt.Sscanf(m[2], "%d", &n); err != nil {
				return nil, hookrun.NewConfigError(option, "malformed vote %q", vote)
			}
			labels[m[1]] = n
		}
	}
	return labels, nil
}

func loadVoteConfig(ctx *hookrun.Context) (*voteConfig, error) {
	const section = "gitgate.gerrit"
	baseURL, _ := ctx.ConfigValue(section, "url")
	username, _ := ctx.ConfigValue(section, "username")
	password, _ := ctx.ConfigValue(section, "password")
	if baseURL == "" || username == "" || password == "" {
		return nil, hookrun.NewConfigError(section,
			"voting on a review requires url, username and password")
	}

	approveValues := ctx.ConfigAll(section, "votes-to-approve")
	rejectValues := ctx.ConfigAll(section, "votes-to-reject")
	legacyLabel, legacySet := ctx.ConfigValue(section, "review-label")
	if legacySet && (len(approveValues) > 0 || len(rejectValues) > 0) {
		return nil, hookrun.NewConfigError(section+".review-label",
			"deprecated review-label cannot be mixed with votes-to-approve/votes-to-reject")
	}

	cfg := &voteConfig{
		client: &Client{BaseURL: baseURL, Username: username, Password: password},
	}
	if legacySet {
		// Transparent upgrade of the deprecated single-label form.
		cfg.approve = map[string]int{legacyLabel: 1}
		cfg.reject = map[string]int{legacyLabel: -1}
	} else {
		var err error
		if cfg.approve, err = parseVotes(section+".votes-to-approve", approveValues); err != nil {
			return nil, err
		}
		if cfg.reject, err = parseVotes(section+".votes-to-reject", rejectValues); err != nil {
			return nil, err
		}
		if len(cfg.approve) == 0 {
			cfg.approve = map[string]int{"Code-Review": 1}
		}
		if len(cfg.reject) == 0 {
			cfg.reject = map[string]int{"Code-Review": -1}
		}
	}

	cfg.commentOK, _ = ctx.ConfigValue(section, "comment-ok")
	autoSubmit, err := ctx.ConfigBool(section, "auto-submit", false)
	if err != nil {
		return nil, err
	}
	cfg.autoSubmit = autoSubmit
	return cfg, nil
}

// changeID builds the globally-unique change identifier. Modern servers
// accept the single opaque id passed on --change; older ones require the
// decomposed project~branch~Ichangeid form, which must be url-escaped.
func changeID(opts map[string]string) string {
	change := opts["change"]
	if strings.Contains(change, "~") {
		return url.PathEscape(change)
	}
	project, branch := opts["project"], opts["branch"]
	if project != "" && branch != "" && strings.HasPrefix(change, "I") {
		branch = strings.TrimPrefix(branch, "refs/heads/")
		return url.PathEscape(project + "~" + branch + "~" + change)
	}
	return change
}

// castVote is the post-dispatch callback: one review call carrying either
// the reject labels and the full fault report, or the approve labels and
// the optional fixed comment, followed by a submit only on success and only
// when auto-submit is configured. A transport failure is fatal; the vote
// is the only signal the review server will see.
func castVote(ctx *hookrun.Context, cfg *voteConfig) error {
	opts := ctx.GerritOptions()
	id := changeID(opts)
	revision := opts["commit"]

	var review ReviewInput
	approved := !ctx.HasFaults()
	if approved {
		review = ReviewInput{Labels: cfg.approve, Message: cfg.commentOK}
	} else {
		message := hookrun.Truncate(ctx.Report(), commentSizeLimit)
		review = ReviewInput{Labels: cfg.reject, Message: message}
	}

	slog.Info("voting on review",
		"run", ctx.RunID, "change", id, "revision", revision, "approved", approved)
	if err := cfg.client.SetReview(id, revision, review); err != nil {
		return fmt.Errorf("casting vote on change %s: %w", id, err)
	}
	if approved && cfg.autoSubmit {
		if err := cfg.client.Submit(id); err != nil {
			return fmt.Errorf("submitting change %s: %w", id, err)
		}
	}
	return nil
}
