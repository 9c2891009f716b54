package cache

import "sync"

// RecentlyUsed is a bounded FIFO set of candidate references used to avoid
// serving the same candidate twice in a row. Oldest entries are evicted
// once the bound is exceeded. Process-local: it resets on restart unless
// the caller seeds it from durable history.
type RecentlyUsed struct {
	mu    sync.Mutex
	limit int
	order []string
	set   map[string]struct{}
}

// NewRecentlyUsed creates a set holding at most limit references.
func NewRecentlyUsed(limit int) *RecentlyUsed {
	if limit <= 0 {
		limit = 5
	}
	return &RecentlyUsed{
		limit: limit,
		set:   map[string]struct{}{},
	}
}

// Add records ref, evicting the oldest entry if the bound is exceeded.
// Re-adding a present ref is a no-op.
func (r *RecentlyUsed) Add(ref string) {
	if ref == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.set[ref]; ok {
		return
	}
	r.order = append(r.order, ref)
	r.set[ref] = struct{}{}
	for len(r.order) > r.limit {
		oldest := r.order[0]
		r.order = r.order[1:]
		delete(r.set, oldest)
	}
}

// Has reports whether ref is in the window.
func (r *RecentlyUsed) Has(ref string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.set[ref]
	return ok
}

// Len returns the number of references currently held.
func (r *RecentlyUsed) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

// Values returns the references oldest-first.
func (r *RecentlyUsed) Values() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}
