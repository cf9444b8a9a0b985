package acl

import (
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/gitgate/internal/hookrun"
)

// Groups maps a group name to its direct members. A member is either a
// literal username or an "@name" back-reference to another group. Groups
// form a DAG by construction: a referenced group must be fully defined
// before first use, so cycles cannot be declared.
type Groups map[string][]string

// MemberOf reports whether user belongs to group, directly or through any
// nested group reference.
func (g Groups) MemberOf(user, group string) bool {
	for _, member := range g[group] {
		if strings.HasPrefix(member, "@") {
			if g.MemberOf(user, member[1:]) {
				return true
			}
		} else if member == user {
			return true
		}
	}
	return false
}

// LoadGroups builds the group table from the gitgate.groups configuration.
// Each value is either inline "name = member..." definitions (one per
// line) or "file:<path>" naming a YAML document mapping group names to
// member lists. Redefining a group or referencing an undefined one is a
// configuration error. The table is memoized per run.
func LoadGroups(ctx *hookrun.Context) (Groups, error) {
	cache := ctx.Cache("acl")
	if v, ok := cache["groups"]; ok {
		return v.(Groups), nil
	}
	if err := ctx.LoadConfig(); err != nil {
		return nil, err
	}
	groups := make(Groups)
	for _, value := range ctx.ConfigAll("gitgate", "groups") {
		if path, ok := strings.CutPrefix(value, "file:"); ok {
			if err := loadGroupFile(groups, strings.TrimSpace(path)); err != nil {
				return nil, err
			}
			continue
		}
		if err := parseInlineGroups(groups, value); err != nil {
			return nil, err
		}
	}
	cache["groups"] = groups
	return groups, nil
}

func parseInlineGroups(groups Groups, value string) error {
	for _, line := range strings.Split(value, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		name, members, ok := strings.Cut(line, "=")
		if !ok {
			return hookrun.NewConfigError("gitgate.groups", "malformed group definition %q", line)
		}
		if err := defineGroup(groups, strings.TrimSpace(name), strings.Fields(members)); err != nil {
			return err
		}
	}
	return nil
}

func loadGroupFile(groups Groups, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return hookrun.NewConfigError("gitgate.groups", "cannot read group file: %v", err)
	}
	var doc map[string][]string
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return hookrun.NewConfigError("gitgate.groups", "cannot parse group file %s: %v", path, err)
	}
	// YAML mappings are unordered; define in sorted name order after
	// checking that every referenced group is present in the document or
	// already defined, so file-supplied groups keep the DAG property.
	names := make([]string, 0, len(doc))
	for name := range doc {
		names = append(names, name)
	}
	sort.Strings(names)
	defined := make(map[string]bool, len(groups)+len(doc))
	for name := range groups {
		defined[name] = true
	}
	for _, name := range names {
		defined[name] = true
	}
	for _, name := range names {
		for _, member := range doc[name] {
			if ref, ok := strings.CutPrefix(member, "@"); ok {
				if !defined[ref] {
					return hookrun.NewConfigError("gitgate.groups", "group %q references undefined group %q", name, ref)
				}
				if ref == name {
					return hookrun.NewConfigError("gitgate.groups", "group %q references itself", name)
				}
			}
		}
	}
	order, err := topoOrder(doc, names)
	if err != nil {
		return err
	}
	for _, name := range order {
		if err := defineGroup(groups, name, doc[name]); err != nil {
			return err
		}
	}
	return nil
}

// topoOrder sorts the file's groups so that referenced groups are defined
// first, rejecting cycles explicitly.
func topoOrder(doc map[string][]string, names []string) ([]string, error) {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	state := make(map[string]int, len(doc))
	var order []string
	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case black:
			return nil
		case gray:
			return hookrun.NewConfigError("gitgate.groups", "group %q participates in a reference cycle", name)
		}
		state[name] = gray
		for _, member := range doc[name] {
			if ref, ok := strings.CutPrefix(member, "@"); ok {
				if _, inDoc := doc[ref]; inDoc {
					if err := visit(ref); err != nil {
						return err
					}
				}
			}
		}
		state[name] = black
		order = append(order, name)
		return nil
	}
	for _, name := range names {
		if err := visit(name); err != nil {
			return nil, err
		}
	}
	return order, nil
}

func defineGroup(groups Groups, name string, members []string) error {
	if name == "" {
		return hookrun.NewConfigError("gitgate.groups", "group definition with empty name")
	}
	if _, exists := groups[name]; exists {
		return hookrun.NewConfigError("gitgate.groups", "group %q is defined more than once", name)
	}
	for _, member := range members {
		if ref, ok := strings.CutPrefix(member, "@"); ok {
			if _, defined := groups[ref]; !defined {
				return hookrun.NewConfigError("gitgate.groups",
					"group %q references group %q, which is not defined yet", name, ref)
			}
		}
	}
	groups[name] = members
	return nil
}
