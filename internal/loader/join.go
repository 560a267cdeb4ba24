package loader

import "sync"

// joinCounter aggregates N parallel branch settlements and fires once.
// Each branch reports exactly one terminal settle; branches that fail are
// collected, in settlement order, into the list handed to done. The N=0
// case fires immediately since no settle will ever arrive.
type joinCounter struct {
	mu        sync.Mutex
	remaining int
	failed    []string
	fired     bool
	done      func(failed []string)
}

func newJoinCounter(n int, done func(failed []string)) *joinCounter {
	j := &joinCounter{remaining: n, done: done}
	if n <= 0 {
		j.fired = true
		done(nil)
	}
	return j
}

// settle records one branch result. The done callback runs outside the lock
// so it may start new loads or subscriptions.
func (j *joinCounter) settle(name string, ok bool) {
	j.mu.Lock()
	if j.fired {
		j.mu.Unlock()
		return
	}
	if !ok {
		j.failed = append(j.failed, name)
	}
	j.remaining--
	if j.remaining > 0 {
		j.mu.Unlock()
		return
	}
	j.fired = true
	failed := j.failed
	j.mu.Unlock()
	j.done(failed)
}
