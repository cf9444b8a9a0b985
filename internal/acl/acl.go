// Package acl resolves "who can do what to which thing": ordered
// allow/deny rule lists over single-letter action codes, user and group
// matching, and the built-in admin bypass.
package acl

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/roach88/gitgate/internal/hookrun"
)

// Rule is one parsed access-control entry.
type Rule struct {
	// Allow is the rule's verdict when it matches.
	Allow bool

	// Actions is the set of single-letter action codes the rule governs.
	Actions string

	// Who is the optional "by" user-or-group spec. A rule with a Who clause
	// is eligible only when it matches the authenticated user.
	Who string

	matcher matcher
}

// Rules is an ordered rule list, in declaration order.
type Rules []Rule

type matcher struct {
	literal string
	re      *regexp.Regexp
	negate  bool
}

func (m matcher) match(target string) bool {
	if m.re != nil {
		ok := m.re.MatchString(target)
		if m.negate {
			return !ok
		}
		return ok
	}
	return m.literal == target
}

var envRefRE = regexp.MustCompile(`\{(\w+)\}`)

// compileMatcher builds a target matcher from its spec form: a literal
// string, an anchored regular expression (leading ^, the caret is part of
// the pattern), or a negated anchored expression (leading !, matching when
// the un-prefixed expression does not). {VAR} substrings are replaced with
// the corresponding environment value before compilation, which is what
// lets a rule template a user's own namespace (refs/heads/{USER}/...).
func compileMatcher(ctx *hookrun.Context, spec string) (matcher, error) {
	spec = envRefRE.ReplaceAllStringFunc(spec, func(ref string) string {
		v, _ := ctx.Getenv(ref[1 : len(ref)-1])
		return v
	})
	negate := false
	if strings.HasPrefix(spec, "!") {
		negate = true
		spec = spec[1:]
	}
	if strings.HasPrefix(spec, "^") {
		re, err := regexp.Compile(spec)
		if err != nil {
			return matcher{}, err
		}
		return matcher{re: re, negate: negate}, nil
	}
	if negate {
		return matcher{}, fmt.Errorf("negated matcher %q must be an anchored regexp", "!"+spec)
	}
	return matcher{literal: spec}, nil
}

// ParseSpecs parses the values of a configuration option into an ordered
// rule list. Each value has the form
//
//	(allow|deny) <action-letters> <matcher> [by <user-or-group>]
//
// and every action letter must belong to the caller's legal set. A syntax
// problem is a configuration error, fatal to the run.
func ParseSpecs(ctx *hookrun.Context, option string, values []string, legal string) (Rules, error) {
	var rules Rules
	for _, value := range values {
		fields := strings.Fields(value)
		if len(fields) != 3 && len(fields) != 5 {
			return nil, hookrun.NewConfigError(option, "malformed rule %q", value)
		}
		var allow bool
		switch fields[0] {
		case "allow":
			allow = true
		case "deny":
			allow = false
		default:
			return nil, hookrun.NewConfigError(option, "rule %q must start with allow or deny", value)
		}
		for _, letter := range fields[1] {
			if !strings.ContainsRune(legal, letter) {
				return nil, hookrun.NewConfigError(option, "unknown action code %q in rule %q (legal: %s)", string(letter), value, legal)
			}
		}
		m, err := compileMatcher(ctx, fields[2])
		if err != nil {
			return nil, hookrun.NewConfigError(option, "bad matcher in rule %q: %v", value, err)
		}
		rule := Rule{Allow: allow, Actions: fields[1], matcher: m}
		if len(fields) == 5 {
			if fields[3] != "by" {
				return nil, hookrun.NewConfigError(option, "malformed rule %q: expected \"by\", got %q", value, fields[3])
			}
			rule.Who = fields[4]
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// Eligible keeps the rules whose Who clause (when present) matches the
// authenticated user, preserving declaration order.
func (rs Rules) Eligible(ctx *hookrun.Context) (Rules, error) {
	var eligible Rules
	for _, r := range rs {
		if r.Who != "" {
			ok, err := MatchUser(ctx, r.Who)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		eligible = append(eligible, r)
	}
	return eligible, nil
}

// decide finds the last declared rule governing action that matches target.
func (rs Rules) decide(action, target string) (bool, bool) {
	for i := len(rs) - 1; i >= 0; i-- {
		r := rs[i]
		if !strings.Contains(r.Actions, action) {
			continue
		}
		if r.matcher.match(target) {
			return r.Allow, true
		}
	}
	return false, false
}

// Allows evaluates (action, target) with the fail-open convention: the last
// declared matching rule wins, and absence of any match is an explicit
// allow.
func (rs Rules) Allows(action, target string) bool {
	allow, matched := rs.decide(action, target)
	if !matched {
		return true
	}
	return allow
}

// StrictAllows evaluates (action, target) with the fail-closed convention
// used by reference-ACL policies: absence of any match is a deny. Both
// conventions are legitimate; callers pick whichever their configuration
// namespace documents.
func (rs Rules) StrictAllows(action, target string) bool {
	allow, matched := rs.decide(action, target)
	if !matched {
		return false
	}
	return allow
}

// MatchUser reports whether a user-or-group spec matches the authenticated
// user: "@name" is group membership, "^..." an anchored regexp, anything
// else a literal username.
func MatchUser(ctx *hookrun.Context, spec string) (bool, error) {
	user, err := ctx.User()
	if err != nil {
		return false, err
	}
	switch {
	case strings.HasPrefix(spec, "@"):
		groups, err := LoadGroups(ctx)
		if err != nil {
			return false, err
		}
		return groups.MemberOf(user, spec[1:]), nil
	case strings.HasPrefix(spec, "^"):
		re, err := regexp.Compile(spec)
		if err != nil {
			return false, hookrun.NewConfigError("", "bad user matcher %q: %v", spec, err)
		}
		return re.MatchString(user), nil
	default:
		return spec == user, nil
	}
}

// IsAdmin reports whether the authenticated user passes the admin bypass:
// any gitgate.admin value matching the user. Memoized per run.
func IsAdmin(ctx *hookrun.Context) (bool, error) {
	cache := ctx.Cache("acl")
	if v, ok := cache["admin"]; ok {
		return v.(bool), nil
	}
	// A broken repository must fail the bypass decision, not read as "no
	// administrators configured".
	if err := ctx.LoadConfig(); err != nil {
		return false, err
	}
	admin := false
	for _, spec := range ctx.ConfigAll("gitgate", "admin") {
		ok, err := MatchUser(ctx, spec)
		if err != nil {
			return false, err
		}
		if ok {
			admin = true
			break
		}
	}
	cache["admin"] = admin
	return admin, nil
}
