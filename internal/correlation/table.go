// Package correlation implements the Pending-Request Entry table from
// spec.md §3: a process-wide map from request_id to the original request
// text, used by the reverse pump to know which prompt produced a given
// response so it can be inserted into the semantic cache.
//
// This is a direct retarget of the teacher's TransactionManager
// (server/transactions.go): the same "register under a mutex, look up on
// the response path, sweep stale entries on a timer" shape, with SQL
// transaction semantics (Begin/Commit/Rollback) replaced by request
// correlation semantics (Put/Resolve/Forget).
package correlation

import (
	"log"
	"sync"
	"time"
)

// Entry is one pending request: the original text forwarded to a backend,
// plus when it was forwarded so stale entries (backend never replied, or
// replied with a malformed frame) can be swept.
type Entry struct {
	RequestText string
	CreatedAt   time.Time
}

// Table is the process-wide correlation table. Keys (request ids) are
// globally unique for the process lifetime, so there is no ABA hazard
// (spec.md §5).
type Table struct {
	mu      sync.Mutex
	entries map[string]*Entry
}

// New creates an empty correlation table.
func New() *Table {
	return &Table{entries: make(map[string]*Entry)}
}

// Put records that requestID was minted for requestText. Called on the
// forward path on a cache miss, before the framed payload is sent to the
// backend (spec.md §4.4).
func (t *Table) Put(requestID, requestText string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[requestID] = &Entry{RequestText: requestText, CreatedAt: time.Now()}
}

// Resolve looks up and removes requestID, returning the original request
// text if present. Called on the reverse path; the entry is consumed at
// most once (spec.md §8 "Correlation purity").
func (t *Table) Resolve(requestID string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[requestID]
	if !ok {
		return "", false
	}
	delete(t.entries, requestID)
	return e.RequestText, true
}

// Forget removes requestID without returning it, used by a terminating
// proxy session to delete any residual correlation entries it owns
// (spec.md §4.4 "Termination").
func (t *Table) Forget(requestID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, requestID)
}

// Len returns the number of pending entries, used by the monitor for
// observability.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// SweepOlderThan removes entries created more than maxAge ago. A proxy
// session is expected to clean up its own entries on close, but a session
// that panics or is killed can leak one; this backstop keeps the table from
// growing unbounded in that case.
func (t *Table) SweepOlderThan(maxAge time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	var stale []string
	for id, e := range t.entries {
		if e.CreatedAt.Before(cutoff) {
			stale = append(stale, id)
		}
	}
	for _, id := range stale {
		delete(t.entries, id)
	}
	if len(stale) > 0 {
		log.Printf("[correlation] swept %d stale pending requests", len(stale))
	}
	return len(stale)
}

// StartSweeper runs SweepOlderThan on an interval until stop is closed.
func (t *Table) StartSweeper(interval, maxAge time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				t.SweepOlderThan(maxAge)
			}
		}
	}()
}
