package loader

import "sync"

// Bus is the bundle event bus: it tracks declared bundle ids, caches each
// bundle's published outcome, and queues callbacks awaiting unpublished
// bundles. It is pure bookkeeping and never fails on missing keys.
//
// An outcome is the list of paths that failed to load for a bundle; empty
// means full success. Callbacks always run with the lock released so they
// may re-enter Subscribe and Publish.
type Bus struct {
	mu       sync.Mutex
	declared map[string]struct{}
	outcomes map[string][]string
	queues   map[string][]func(notFound []string)
}

func NewBus() *Bus {
	b := &Bus{}
	b.resetLocked()
	return b
}

func (b *Bus) resetLocked() {
	b.declared = make(map[string]struct{})
	b.outcomes = make(map[string][]string)
	b.queues = make(map[string][]func(notFound []string))
}

// Declare records a bundle id. Declaring the same id twice without a reset
// is a caller bug and returns ErrDuplicateBundle.
func (b *Bus) Declare(id string) error {
	if id == "" {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.declared[id]; ok {
		return ErrDuplicateBundle(id)
	}
	b.declared[id] = struct{}{}
	return nil
}

// IsDeclared reports whether id has been declared since the last reset.
func (b *Bus) IsDeclared(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.declared[id]
	return ok
}

// Subscribe registers cb to fire exactly once, after every listed bundle has
// an outcome. Bundles already published settle immediately; the rest settle
// on publication. cb receives the ids of awaited bundles whose outcome held
// failures.
func (b *Bus) Subscribe(ids []string, cb func(failed []string)) {
	j := newJoinCounter(len(ids), cb)
	for _, id := range ids {
		id := id
		b.mu.Lock()
		if outcome, ok := b.outcomes[id]; ok {
			b.mu.Unlock()
			j.settle(id, len(outcome) == 0)
			continue
		}
		b.queues[id] = append(b.queues[id], func(notFound []string) {
			j.settle(id, len(notFound) == 0)
		})
		b.mu.Unlock()
	}
}

// Publish caches notFound as id's outcome and drains the id's callback
// queue in enqueue order. Publishing an empty id is a no-op; publishing with
// no subscribers only caches. Each queued callback is removed before it runs,
// so a callback that re-subscribes to id sees the cached outcome rather than
// re-entering the queue being drained.
func (b *Bus) Publish(id string, notFound []string) {
	if id == "" {
		return
	}
	b.mu.Lock()
	b.outcomes[id] = notFound
	b.mu.Unlock()

	for {
		b.mu.Lock()
		q := b.queues[id]
		if len(q) == 0 {
			delete(b.queues, id)
			b.mu.Unlock()
			return
		}
		cb := q[0]
		b.queues[id] = q[1:]
		b.mu.Unlock()
		cb(notFound)
	}
}

// Outcome returns the cached outcome for id and whether one was published.
func (b *Bus) Outcome(id string) ([]string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	outcome, ok := b.outcomes[id]
	return outcome, ok
}

// Reset clears the declared set, the outcome cache and all callback queues.
// Loads already in flight publish into the fresh cache with no subscriber
// effect (their queues are gone).
func (b *Bus) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetLocked()
}

// Pending returns the total number of queued callbacks across all bundles.
func (b *Bus) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, q := range b.queues {
		n += len(q)
	}
	return n
}

// DeclaredIDs returns every declared bundle id, unordered.
func (b *Bus) DeclaredIDs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	ids := make([]string, 0, len(b.declared))
	for id := range b.declared {
		ids = append(ids, id)
	}
	return ids
}
