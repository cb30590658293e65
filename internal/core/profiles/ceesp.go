// Package profiles registers the built-in role profiles.
//
// Import it for side effects:
//
//	import _ "github.com/JonMunkholm/ceespwatch/internal/core/profiles"
package profiles

import "github.com/JonMunkholm/ceespwatch/internal/core"

// Roles of the CEESP opinions export.
const (
	RoleName             core.Role = "name"
	RoleActiveIngredient core.Role = "active_ingredient"
	RoleIndication       core.Role = "indication"
	RolePublicationDate  core.Role = "publication_date"
	RoleValidationDate   core.Role = "validation_date"
	RoleDetailLink       core.Role = "detail_link"
)

func init() {
	core.RegisterProfile(CEESP())
}

// CEESP returns the profile for the HAS "Contribution patient" dashboard
// export listing CEESP economic opinions.
//
// Dates and links are not identity roles. The export edits them after
// publication and those edits are not new opinions. Alerts show the name,
// indication and publication date, one line per opinion.
func CEESP() core.Profile {
	return core.Profile{
		Name:  "ceesp",
		Title: "Nouveaux avis CEESP détectés",
		Rules: []core.RoleRule{
			{Role: RoleName, Required: true, Patterns: []string{"nom commercial"}},
			{Role: RoleActiveIngredient, Required: true, Patterns: []string{"denomination commune", "dci"}},
			{Role: RoleIndication, Required: true, Patterns: []string{"indication"}},
			{Role: RolePublicationDate, Patterns: []string{"date de publication"}},
			{Role: RoleValidationDate, Patterns: []string{"date de validation"}},
			{Role: RoleDetailLink, Patterns: []string{"lien", "url"}},
		},
		IdentityRoles: []core.Role{RoleName, RoleActiveIngredient, RoleIndication},
		DisplayRoles:  []core.Role{RoleName, RoleIndication, RolePublicationDate},
	}
}
