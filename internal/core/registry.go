package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Profile is a named role-rule table for one remote source layout.
type Profile struct {
	Name          string     // Registry key: "ceesp"
	Title         string     // Notification title
	Rules         []RoleRule // Evaluated in declared order
	IdentityRoles []Role     // Ordered subset of required roles
	DisplayRoles  []Role     // Roles shown in notifications, in order
}

// Validate checks that the profile is internally consistent.
// Returns an error describing all problems.
func (p Profile) Validate() error {
	var errs []string

	if strings.TrimSpace(p.Name) == "" {
		errs = append(errs, "profile name is required")
	}
	if len(p.Rules) == 0 {
		errs = append(errs, "at least one role rule is required")
	}

	required := make(map[Role]bool, len(p.Rules))
	seen := make(map[Role]bool, len(p.Rules))
	for _, rule := range p.Rules {
		if rule.Role == "" {
			errs = append(errs, "role rule with empty role")
			continue
		}
		if seen[rule.Role] {
			errs = append(errs, fmt.Sprintf("role %q declared twice", rule.Role))
		}
		seen[rule.Role] = true
		if rule.Required {
			required[rule.Role] = true
		}
		if !hasPattern(rule.Patterns) {
			errs = append(errs, fmt.Sprintf("role %q has no non-empty pattern", rule.Role))
		}
	}

	if len(p.IdentityRoles) == 0 {
		errs = append(errs, "at least one identity role is required")
	}
	for _, r := range p.IdentityRoles {
		if !required[r] {
			errs = append(errs, fmt.Sprintf("identity role %q must be a required role", r))
		}
	}
	for _, r := range p.DisplayRoles {
		if !seen[r] {
			errs = append(errs, fmt.Sprintf("display role %q has no rule", r))
		}
	}

	if len(errs) > 0 {
		return errors.New("invalid profile:\n  - " + strings.Join(errs, "\n  - "))
	}
	return nil
}

// WithIdentityRoles returns a copy of p using roles as identity roles.
func (p Profile) WithIdentityRoles(roles []Role) Profile {
	out := p
	out.IdentityRoles = append([]Role(nil), roles...)
	return out
}

// withDefaults fills DisplayRoles with every rule's role when unset.
func (p Profile) withDefaults() Profile {
	if len(p.DisplayRoles) == 0 {
		p.DisplayRoles = make([]Role, len(p.Rules))
		for i, rule := range p.Rules {
			p.DisplayRoles[i] = rule.Role
		}
	}
	return p
}

func hasPattern(patterns []string) bool {
	for _, s := range patterns {
		if NormalizeColumnName(s) != "" {
			return true
		}
	}
	return false
}

var (
	profiles   = make(map[string]Profile)
	profilesMu sync.RWMutex
)

// RegisterProfile adds a profile to the registry.
// Panics if the profile is invalid or its name is already registered.
func RegisterProfile(p Profile) {
	if err := p.Validate(); err != nil {
		panic(fmt.Sprintf("register profile %s: %v", p.Name, err))
	}

	profilesMu.Lock()
	defer profilesMu.Unlock()

	if _, exists := profiles[p.Name]; exists {
		panic(fmt.Sprintf("profile already registered: %s", p.Name))
	}

	profiles[p.Name] = p.withDefaults()
}

// LookupProfile returns a profile by name.
func LookupProfile(name string) (Profile, bool) {
	profilesMu.RLock()
	defer profilesMu.RUnlock()

	p, ok := profiles[name]
	return p, ok
}

// ProfileNames returns all registered profile names, sorted.
func ProfileNames() []string {
	profilesMu.RLock()
	defer profilesMu.RUnlock()

	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ClearProfiles removes all registered profiles.
// Primarily useful for testing.
func ClearProfiles() {
	profilesMu.Lock()
	defer profilesMu.Unlock()
	profiles = make(map[string]Profile)
}
