package orchestrator

import "sync"

// budget counts fetch+validate cycles across a whole retrieval run.
type budget struct {
	mu   sync.Mutex
	left int
	used int
}

func newBudget(n int) *budget {
	return &budget{left: n}
}

// spend consumes one attempt, returning false when none remain.
func (b *budget) spend() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.left <= 0 {
		return false
	}
	b.left--
	b.used++
	return true
}

func (b *budget) exhausted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.left <= 0
}

func (b *budget) spent() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.used
}
