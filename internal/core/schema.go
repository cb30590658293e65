package core

// schema.go resolves volatile remote column names to stable roles.
//
// Matching is data, not control flow: an ordered []RoleRule is evaluated
// against every normalized column name. Two tie-breaks keep it deterministic:
//
//   - first matching rule per column wins (a column serves one role)
//   - first matching column per role wins (later matches are shadowed)

import (
	"strings"
)

// Resolve maps each rule's role to the first column whose normalized name
// contains one of the rule's patterns. Missing required roles produce a
// *SchemaResolutionError; missing optional roles are simply absent.
func Resolve(columns []string, rules []RoleRule) (RoleMap, error) {
	normalized := make([]string, len(columns))
	for i, c := range columns {
		normalized[i] = NormalizeColumnName(c)
	}

	patterns := compilePatterns(rules)

	rm := RoleMap{
		Columns:  make(map[Role]ResolvedColumn, len(rules)),
		Shadowed: make(map[Role][]string),
	}

	for i, name := range normalized {
		if name == "" {
			continue
		}
		role, ok := matchColumn(name, rules, patterns)
		if !ok {
			continue
		}
		if _, taken := rm.Columns[role]; taken {
			rm.Shadowed[role] = append(rm.Shadowed[role], columns[i])
			continue
		}
		rm.Columns[role] = ResolvedColumn{Name: columns[i], Normalized: name, Index: i}
	}

	var missing []Role
	for _, rule := range rules {
		if rule.Required && !rm.Has(rule.Role) {
			missing = append(missing, rule.Role)
		}
	}
	if len(missing) > 0 {
		return RoleMap{}, &SchemaResolutionError{Missing: missing, Available: normalized}
	}

	return rm, nil
}

// compilePatterns normalizes every rule pattern once, the same way column
// names are normalized, so rules may be written with accents and capitals.
func compilePatterns(rules []RoleRule) [][]string {
	out := make([][]string, len(rules))
	for i, rule := range rules {
		for _, p := range rule.Patterns {
			if np := NormalizeColumnName(p); np != "" {
				out[i] = append(out[i], np)
			}
		}
	}
	return out
}

// matchColumn returns the role of the first rule matching name.
func matchColumn(name string, rules []RoleRule, patterns [][]string) (Role, bool) {
	for i, rule := range rules {
		for _, p := range patterns[i] {
			if strings.Contains(name, p) {
				return rule.Role, true
			}
		}
	}
	return "", false
}
