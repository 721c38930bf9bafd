// Package ledger holds the set of identity keys already emitted by one
// collection run or accumulation session.
package ledger

// Ledger is a deduplication key set. It is owned by a single run and is not
// safe for concurrent use.
type Ledger struct {
	keys map[string]struct{}
}

// New creates an empty ledger
func New() *Ledger {
	return &Ledger{keys: make(map[string]struct{})}
}

// Seen reports whether key was recorded before
func (l *Ledger) Seen(key string) bool {
	_, ok := l.keys[key]
	return ok
}

// Record inserts key. Recording a key twice is a no-op.
func (l *Ledger) Record(key string) {
	l.keys[key] = struct{}{}
}

// Admit records key and reports whether it was new
func (l *Ledger) Admit(key string) bool {
	if l.Seen(key) {
		return false
	}
	l.Record(key)
	return true
}

// Len returns the number of recorded keys
func (l *Ledger) Len() int {
	return len(l.keys)
}
