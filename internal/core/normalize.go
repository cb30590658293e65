package core

// normalize.go canonicalizes values for comparison.
//
// Two normalizers live here and they must not be confused:
//
//   - NormalizeValue is for cell values. It only trims, because internal
//     whitespace, case and punctuation are part of a row's identity.
//   - NormalizeColumnName is for header matching. It folds accents, case and
//     whitespace aggressively, because the remote header drifts.

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeValue trims surrounding whitespace (including NBSP and BOM).
// Total and idempotent.
func NormalizeValue(s string) string {
	return strings.TrimFunc(s, isTrimmable)
}

// Normalize maps an absent cell to "" and trims a present one.
func Normalize(v *string) string {
	if v == nil {
		return ""
	}
	return NormalizeValue(*v)
}

func isTrimmable(r rune) bool {
	return unicode.IsSpace(r) || r == '\uFEFF' || r == '\u200B'
}

// NormalizeColumnName folds a header for matching. Steps, in order:
//
//  1. NFKD decomposition (compatibility forms such as NBSP become a space)
//  2. Drop combining marks ("é" -> "e")
//  3. Drop remaining non-ASCII
//  4. Lower-case
//  5. Collapse whitespace runs and trim
//
// The same remote name always normalizes identically regardless of how the
// transport encoded its accents.
func NormalizeColumnName(name string) string {
	t := transform.Chain(
		norm.NFKD,
		runes.Remove(runes.In(unicode.Mn)),
		runes.Remove(runes.Predicate(func(r rune) bool { return r > unicode.MaxASCII })),
	)
	folded, _, err := transform.String(t, name)
	if err != nil {
		// transform.String only fails on malformed transformer chains; fall
		// back to the raw name so the function stays total.
		folded = name
	}
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}

// Canonicalize reduces row i of table to its role values.
func Canonicalize(table *RawTable, roles RoleMap, i int) CanonicalRow {
	row := make(CanonicalRow, len(roles.Columns))
	for role, col := range roles.Columns {
		row[role] = Normalize(table.Cell(i, col.Index))
	}
	return row
}

// isBlankRow reports whether every cell of the row is absent or whitespace.
func isBlankRow(cells []*string) bool {
	for _, c := range cells {
		if Normalize(c) != "" {
			return false
		}
	}
	return true
}
