package core

// Reconciliation is the pure result of diffing a table against a baseline.
type Reconciliation struct {
	New        []Record // Records whose key is not in the prior set, in table order
	IsFirstRun bool     // The prior set was empty; callers must not notify
}

// Reconcile returns the current records whose key is absent from prior,
// preserving their relative order. An empty prior set marks the first run:
// New is still computed (for observability) but must not be delivered.
//
// Duplicate keys inside current are each reported when unseen.
func Reconcile(current []Record, prior KeySet) Reconciliation {
	res := Reconciliation{IsFirstRun: len(prior) == 0}
	for _, rec := range current {
		if !prior.Contains(rec.Key) {
			res.New = append(res.New, rec)
		}
	}
	return res
}
