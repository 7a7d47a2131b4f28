// Package reconcile maps generated cards onto decks in the remote store:
// deck existence, duplicate detection, policy application, and bulk
// creation with record-level failure isolation.
package reconcile

// Report accumulates the outcome of a synchronization run. Counters are
// monotonic; Errors is append-only and preserves one entry per failure in
// the order encountered.
type Report struct {
	Created      int      `json:"created"`
	Updated      int      `json:"updated"`
	Skipped      int      `json:"skipped"`
	Failed       int      `json:"failed"`
	Errors       []string `json:"errors,omitempty"`
	DecksCreated []string `json:"decks_created,omitempty"`
}

// Merge folds another report into this one. Buckets reconciled in
// parallel each produce a local Report; the caller reduces them with
// Merge afterward, so no lock is needed on the hot path.
func (r *Report) Merge(other Report) {
	r.Created += other.Created
	r.Updated += other.Updated
	r.Skipped += other.Skipped
	r.Failed += other.Failed
	r.Errors = append(r.Errors, other.Errors...)
	for _, d := range other.DecksCreated {
		r.addDeckCreated(d)
	}
}

func (r *Report) fail(msg string) {
	r.Failed++
	r.Errors = append(r.Errors, msg)
}

func (r *Report) addDeckCreated(name string) {
	for _, d := range r.DecksCreated {
		if d == name {
			return
		}
	}
	r.DecksCreated = append(r.DecksCreated, name)
}
