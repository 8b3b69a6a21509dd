package engine

import "sync"

// InFlight is the lock-protected set of repository ids currently claimed by
// a worker, guaranteeing at most one worker per id at any instant.
type InFlight struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func NewInFlight() *InFlight {
	return &InFlight{ids: make(map[string]struct{})}
}

// Claim attempts to add id to the set, returning false if it is already
// claimed.
func (f *InFlight) Claim(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.ids[id]; exists {
		return false
	}
	f.ids[id] = struct{}{}
	return true
}

// Release removes id from the set on writeback or permanent failure.
func (f *InFlight) Release(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.ids, id)
}

// Snapshot returns a copy of the currently claimed ids, used by the
// discovery loop to build its skip set.
func (f *InFlight) Snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.ids))
	for id := range f.ids {
		ids = append(ids, id)
	}
	return ids
}
