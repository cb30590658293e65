// Package templates holds the templ components shared by the status page and
// the notification mail.
package templates

import "strings"

// IsLink reports whether a cell value renders as a hyperlink.
func IsLink(v string) bool {
	return strings.HasPrefix(v, "https://") || strings.HasPrefix(v, "http://")
}

// SnapshotView is the data behind SnapshotPage.
type SnapshotView struct {
	Title   string
	Empty   bool // No baseline saved yet
	RunID   string
	TakenAt string
	Total   int
	Shown   int // Rows rendered, below Total when the page is truncated
	Columns []string
	Rows    [][]string
}

// Truncated reports whether rows were left off the page.
func (v SnapshotView) Truncated() bool {
	return v.Shown < v.Total
}
