package command

import "sync"

// Queue holds at most one scheduled command; Submit replaces whatever was
// pending (last-writer-wins, spec.md §4.G), and Drain hands the loop at
// most one command per tick.
type Queue struct {
	mu      sync.Mutex
	pending Command
}

// Submit replaces the pending command, discarding any not yet drained.
func (q *Queue) Submit(cmd Command) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = cmd
}

// Drain returns and clears the pending command, if any.
func (q *Queue) Drain() (Command, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	cmd := q.pending
	q.pending = nil
	return cmd, cmd != nil
}
