// Package refs turns raw hook arguments into the affected-reference table
// and expands (old, new) commit pairs into the minimal correct commit set
// per reference. Every repository query made here is memoized on the
// invocation context; a hook process is short-lived and the underlying refs
// do not change under it.
package refs

import (
	"fmt"
	"strings"

	"github.com/roach88/gitgate/internal/hookrun"
)

// Ident is one name/email/date triple of a commit.
type Ident struct {
	Name  string
	Email string
	Date  string
}

// Commit is a read-only projection of commit metadata.
type Commit struct {
	ID        string
	Tree      string
	Parents   []string
	Author    Ident
	Committer Ident
	Message   string
}

// prettyFormat lays every field of a commit out with \x01 separators and a
// \x02 record terminator, so messages may contain newlines safely.
const prettyFormat = "%H%x01%T%x01%P%x01%aN%x01%aE%x01%aI%x01%cN%x01%cE%x01%cI%x01%B%x02"

// parseCommits decodes rev-list --format output. rev-list emits a
// "commit <sha>" header line before each formatted record; it is dropped.
func parseCommits(out string) ([]*Commit, error) {
	var commits []*Commit
	for _, record := range strings.Split(out, "\x02") {
		record = strings.TrimLeft(record, "\n")
		if record == "" {
			continue
		}
		if strings.HasPrefix(record, "commit ") {
			if nl := strings.IndexByte(record, '\n'); nl >= 0 {
				record = record[nl+1:]
			} else {
				continue
			}
		}
		fields := strings.Split(record, "\x01")
		if len(fields) != 10 {
			return nil, fmt.Errorf("malformed commit record (%d fields)", len(fields))
		}
		c := &Commit{
			ID:        fields[0],
			Tree:      fields[1],
			Author:    Ident{Name: fields[3], Email: fields[4], Date: fields[5]},
			Committer: Ident{Name: fields[6], Email: fields[7], Date: fields[8]},
			Message:   strings.TrimRight(fields[9], "\n"),
		}
		if fields[2] != "" {
			c.Parents = strings.Fields(fields[2])
		}
		commits = append(commits, c)
	}
	return commits, nil
}

// GetCommit fetches one commit's metadata, memoized by id for the lifetime
// of the context.
func GetCommit(ctx *hookrun.Context, id string) (*Commit, error) {
	cache := ctx.Cache("refs.commits")
	if c, ok := cache[id]; ok {
		return c.(*Commit), nil
	}
	out, err := ctx.Git.Output("rev-list", "--no-walk", "--format="+prettyFormat, id)
	if err != nil {
		return nil, err
	}
	commits, err := parseCommits(out)
	if err != nil {
		return nil, err
	}
	if len(commits) != 1 {
		return nil, fmt.Errorf("expected one commit for %s, got %d", id, len(commits))
	}
	cache[id] = commits[0]
	return commits[0], nil
}
