package core

import "strings"

// KeySeparator joins identity values inside an IdentityKey.
const KeySeparator = "|"

const keyEscape = `\`

var keyEscaper = strings.NewReplacer(keyEscape, keyEscape+keyEscape, KeySeparator, keyEscape+KeySeparator)

// DeriveKey concatenates the normalized values of identityRoles, in order,
// joined by KeySeparator. Literal separators and escapes inside values are
// escaped, so two distinct value tuples never produce the same key.
//
// A role absent from row contributes an empty value.
func DeriveKey(row CanonicalRow, identityRoles []Role) IdentityKey {
	var b strings.Builder
	for i, role := range identityRoles {
		if i > 0 {
			b.WriteString(KeySeparator)
		}
		b.WriteString(keyEscaper.Replace(NormalizeValue(row[role])))
	}
	return IdentityKey(b.String())
}
