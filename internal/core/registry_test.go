package core

import (
	"strings"
	"testing"
)

func testProfile() Profile {
	return Profile{
		Name:          "test",
		Title:         "New rows",
		Rules:         testRules,
		IdentityRoles: []Role{"name", "dci", "indication"},
	}
}

func TestProfile_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *Profile)
		wantErr string
	}{
		{"valid", func(p *Profile) {}, ""},
		{"no name", func(p *Profile) { p.Name = " " }, "profile name is required"},
		{"no rules", func(p *Profile) { p.Rules = nil; p.IdentityRoles = nil }, "at least one role rule"},
		{
			"duplicate role",
			func(p *Profile) {
				p.Rules = append(append([]RoleRule{}, p.Rules...), RoleRule{Role: "name", Patterns: []string{"x"}})
			},
			`role "name" declared twice`,
		},
		{
			"empty role",
			func(p *Profile) {
				p.Rules = append(append([]RoleRule{}, p.Rules...), RoleRule{Patterns: []string{"x"}})
			},
			"empty role",
		},
		{
			"pattern normalizes to nothing",
			func(p *Profile) {
				p.Rules = append(append([]RoleRule{}, p.Rules...), RoleRule{Role: "extra", Patterns: []string{"  "}})
			},
			`role "extra" has no non-empty pattern`,
		},
		{"no identity roles", func(p *Profile) { p.IdentityRoles = nil }, "at least one identity role"},
		{
			"optional identity role",
			func(p *Profile) { p.IdentityRoles = []Role{"name", "link"} },
			`identity role "link" must be a required role`,
		},
		{
			"unknown display role",
			func(p *Profile) { p.DisplayRoles = []Role{"name", "price"} },
			`display role "price" has no rule`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testProfile()
			tt.mutate(&p)
			err := p.Validate()

			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want it to contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestProfile_ValidateCollectsAll(t *testing.T) {
	err := Profile{}.Validate()
	if err == nil {
		t.Fatal("Validate() expected error")
	}
	msg := err.Error()
	for _, want := range []string{"profile name is required", "at least one role rule", "at least one identity role"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error should contain %q: %s", want, msg)
		}
	}
}

func TestProfile_WithIdentityRoles(t *testing.T) {
	p := testProfile()
	roles := []Role{"name", "dci"}
	q := p.WithIdentityRoles(roles)
	roles[0] = "mutated"

	if len(q.IdentityRoles) != 2 || q.IdentityRoles[0] != "name" {
		t.Errorf("WithIdentityRoles should copy its argument, got %v", q.IdentityRoles)
	}
	if len(p.IdentityRoles) != 3 {
		t.Errorf("original profile modified: %v", p.IdentityRoles)
	}
}

func TestRegistry(t *testing.T) {
	ClearProfiles()
	defer ClearProfiles()

	RegisterProfile(testProfile())

	p, ok := LookupProfile("test")
	if !ok {
		t.Fatal("LookupProfile(test) not found")
	}
	if len(p.DisplayRoles) != len(testRules) || p.DisplayRoles[0] != "name" {
		t.Errorf("DisplayRoles should default to rule order, got %v", p.DisplayRoles)
	}

	if _, ok := LookupProfile("missing"); ok {
		t.Error("LookupProfile(missing) should not be found")
	}

	other := testProfile()
	other.Name = "alpha"
	RegisterProfile(other)

	names := ProfileNames()
	if len(names) != 2 || names[0] != "alpha" || names[1] != "test" {
		t.Errorf("ProfileNames() = %v, want [alpha test]", names)
	}
}

func TestRegisterProfile_Panics(t *testing.T) {
	ClearProfiles()
	defer ClearProfiles()

	RegisterProfile(testProfile())

	t.Run("duplicate", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Error("expected panic on duplicate registration")
			}
		}()
		RegisterProfile(testProfile())
	})

	t.Run("invalid", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Error("expected panic on invalid profile")
			}
		}()
		RegisterProfile(Profile{Name: "broken"})
	})
}
