package core

import (
	"time"
)

// Role is a stable semantic meaning for a column, independent of how the
// remote system happens to spell its header this week.
type Role string

// RoleRule declares how a role is found among the remote column names.
type RoleRule struct {
	Role     Role     // Semantic role: "name", "indication"
	Required bool     // Resolution fails if no column matches
	Patterns []string // Substrings matched against normalized column names
}

// RawTable is one decoded payload. Immutable after decoding.
type RawTable struct {
	Columns []string    // Header names exactly as received (after decoding)
	Rows    [][]*string // Cells; nil or a short row means the value is absent
}

// Cell returns the cell at (row, col), or nil when the row is too short.
func (t *RawTable) Cell(row, col int) *string {
	if row < 0 || row >= len(t.Rows) {
		return nil
	}
	cells := t.Rows[row]
	if col < 0 || col >= len(cells) {
		return nil
	}
	return cells[col]
}

// ResolvedColumn is the column a role resolved to in the current table.
type ResolvedColumn struct {
	Name       string // Header as received
	Normalized string // Header after NormalizeColumnName
	Index      int    // Position in RawTable.Columns
}

// RoleMap maps roles to the column they resolved to in the current table.
// It is rebuilt on every run and never persisted as identity.
type RoleMap struct {
	Columns  map[Role]ResolvedColumn
	Shadowed map[Role][]string // Later columns that also matched a resolved role
}

// Has reports whether the role resolved to a column.
func (m RoleMap) Has(role Role) bool {
	_, ok := m.Columns[role]
	return ok
}

// Roles returns the resolved roles in the order given by rules.
func (m RoleMap) Roles(rules []RoleRule) []Role {
	out := make([]Role, 0, len(m.Columns))
	for _, rule := range rules {
		if m.Has(rule.Role) {
			out = append(out, rule.Role)
		}
	}
	return out
}

// CanonicalRow is a row reduced to role -> normalized value.
// Unmapped columns are dropped.
type CanonicalRow map[Role]string

// IdentityKey is the sole notion of row equality used by the engine.
type IdentityKey string

// KeySet is a set of identity keys.
type KeySet map[IdentityKey]struct{}

// Contains reports whether k is in the set.
func (s KeySet) Contains(k IdentityKey) bool {
	_, ok := s[k]
	return ok
}

// Record pairs a canonical row with its identity key.
type Record struct {
	Key IdentityKey
	Row CanonicalRow
}

// Snapshot is the full table state persisted between runs.
type Snapshot struct {
	RunID   string
	TakenAt time.Time
	Roles   []Role // Column order used when persisting rows
	Records []Record
}

// Keys returns the identity keys of every record in the snapshot.
func (s *Snapshot) Keys() KeySet {
	if s == nil {
		return KeySet{}
	}
	keys := make(KeySet, len(s.Records))
	for _, rec := range s.Records {
		keys[rec.Key] = struct{}{}
	}
	return keys
}

// Notification is what a Notifier receives when new records were found.
type Notification struct {
	RunID        string
	Title        string
	Records      []Record
	Roles        RoleMap
	DisplayRoles []Role // Preferred rendering order; unresolved roles are skipped
}

// VisibleRoles returns the display roles that resolved in this run.
func (n Notification) VisibleRoles() []Role {
	out := make([]Role, 0, len(n.DisplayRoles))
	for _, r := range n.DisplayRoles {
		if n.Roles.Has(r) {
			out = append(out, r)
		}
	}
	return out
}

// RunResult contains the outcome of a completed run.
type RunResult struct {
	RunID      string
	TotalRows  int
	NewRecords []Record
	IsFirstRun bool
	Notified   bool
	NotifyErr  error // Non-nil if delivery failed; the snapshot was still saved
	Duration   time.Duration
}
