package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/JonMunkholm/ceespwatch/internal/core"
)

// rulesFile is the TOML layout accepted by ROLE_RULES_FILE:
//
//	name = "ceesp"
//	title = "Nouveaux avis CEESP"
//	identity_roles = ["name", "active_ingredient", "indication"]
//	display_roles = ["name", "indication", "publication_date"]
//
//	[[rules]]
//	role = "name"
//	required = true
//	patterns = ["nom commercial"]
type rulesFile struct {
	Name          string      `toml:"name"`
	Title         string      `toml:"title"`
	IdentityRoles []string    `toml:"identity_roles"`
	DisplayRoles  []string    `toml:"display_roles"`
	Rules         []ruleEntry `toml:"rules"`
}

type ruleEntry struct {
	Role     string   `toml:"role"`
	Required bool     `toml:"required"`
	Patterns []string `toml:"patterns"`
}

// LoadProfile builds the role profile selected by the rules settings.
//
// ROLE_RULES_FILE, when set, replaces the registered profile entirely.
// IDENTITY_ROLES then overrides the identity roles of whichever profile
// was chosen. The result is validated.
func (c *RulesConfig) LoadProfile() (core.Profile, error) {
	var (
		p   core.Profile
		err error
	)

	if c.File != "" {
		p, err = ReadProfileFile(c.File)
		if err != nil {
			return core.Profile{}, err
		}
	} else {
		var ok bool
		p, ok = core.LookupProfile(c.Profile)
		if !ok {
			return core.Profile{}, fmt.Errorf("unknown ROLE_PROFILE %q (registered: %s)",
				c.Profile, strings.Join(core.ProfileNames(), ", "))
		}
	}

	if len(c.IdentityRoles) > 0 {
		p = p.WithIdentityRoles(toRoles(c.IdentityRoles))
	}

	if err := p.Validate(); err != nil {
		return core.Profile{}, err
	}
	return p, nil
}

// ReadProfileFile parses a TOML role-rules file.
func ReadProfileFile(path string) (core.Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return core.Profile{}, fmt.Errorf("read rules file: %w", err)
	}
	return ParseProfile(data)
}

// ParseProfile decodes a TOML role-rules document.
func ParseProfile(data []byte) (core.Profile, error) {
	var f rulesFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return core.Profile{}, fmt.Errorf("parse rules file: %w", err)
	}

	p := core.Profile{
		Name:          f.Name,
		Title:         f.Title,
		IdentityRoles: toRoles(f.IdentityRoles),
		DisplayRoles:  toRoles(f.DisplayRoles),
	}
	if p.Name == "" {
		p.Name = "custom"
	}
	for _, r := range f.Rules {
		p.Rules = append(p.Rules, core.RoleRule{
			Role:     core.Role(strings.TrimSpace(r.Role)),
			Required: r.Required,
			Patterns: r.Patterns,
		})
	}
	if len(p.DisplayRoles) == 0 {
		for _, r := range p.Rules {
			p.DisplayRoles = append(p.DisplayRoles, r.Role)
		}
	}

	if err := p.Validate(); err != nil {
		return core.Profile{}, err
	}
	return p, nil
}

func toRoles(names []string) []core.Role {
	if len(names) == 0 {
		return nil
	}
	out := make([]core.Role, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, core.Role(n))
		}
	}
	return out
}
