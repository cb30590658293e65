package core

import (
	"testing"
)

func records(keys ...string) []Record {
	out := make([]Record, len(keys))
	for i, k := range keys {
		out[i] = Record{Key: IdentityKey(k), Row: CanonicalRow{"name": k}}
	}
	return out
}

func keySet(keys ...string) KeySet {
	s := make(KeySet, len(keys))
	for _, k := range keys {
		s[IdentityKey(k)] = struct{}{}
	}
	return s
}

func keysOf(recs []Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = string(r.Key)
	}
	return out
}

func TestReconcile(t *testing.T) {
	tests := []struct {
		name      string
		current   []Record
		prior     KeySet
		wantNew   []string
		wantFirst bool
	}{
		{
			name:    "new rows in table order",
			current: records("A", "C", "B", "D"),
			prior:   keySet("A", "B"),
			wantNew: []string{"C", "D"},
		},
		{
			name:    "nothing new",
			current: records("A", "B"),
			prior:   keySet("A", "B"),
			wantNew: []string{},
		},
		{
			name:    "removed rows are not reported",
			current: records("A"),
			prior:   keySet("A", "B", "C"),
			wantNew: []string{},
		},
		{
			name:    "duplicate new keys each reported",
			current: records("A", "X", "X"),
			prior:   keySet("A"),
			wantNew: []string{"X", "X"},
		},
		{
			name:      "empty prior is first run",
			current:   records("A", "B"),
			prior:     KeySet{},
			wantNew:   []string{"A", "B"},
			wantFirst: true,
		},
		{
			name:      "nil prior is first run",
			current:   records("A"),
			prior:     nil,
			wantNew:   []string{"A"},
			wantFirst: true,
		},
		{
			name:    "empty current",
			current: nil,
			prior:   keySet("A"),
			wantNew: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Reconcile(tt.current, tt.prior)

			if got.IsFirstRun != tt.wantFirst {
				t.Errorf("IsFirstRun = %v, want %v", got.IsFirstRun, tt.wantFirst)
			}
			gotKeys := keysOf(got.New)
			if len(gotKeys) != len(tt.wantNew) {
				t.Fatalf("New = %v, want %v", gotKeys, tt.wantNew)
			}
			for i := range tt.wantNew {
				if gotKeys[i] != tt.wantNew[i] {
					t.Errorf("New[%d] = %q, want %q", i, gotKeys[i], tt.wantNew[i])
				}
			}
		})
	}
}

func TestReconcile_IgnoresRowContents(t *testing.T) {
	current := []Record{{Key: "A", Row: CanonicalRow{"name": "A", "link": "changed"}}}

	got := Reconcile(current, keySet("A"))
	if len(got.New) != 0 {
		t.Errorf("a known key with new non-identity values must not be new, got %v", keysOf(got.New))
	}
}

func TestSnapshot_Keys(t *testing.T) {
	var nilSnap *Snapshot
	if keys := nilSnap.Keys(); len(keys) != 0 {
		t.Errorf("nil snapshot Keys() = %v, want empty", keys)
	}

	snap := &Snapshot{Records: records("A", "B", "A")}
	keys := snap.Keys()
	if len(keys) != 2 || !keys.Contains("A") || !keys.Contains("B") {
		t.Errorf("Keys() = %v, want {A, B}", keys)
	}
}
