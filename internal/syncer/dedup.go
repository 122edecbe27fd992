package syncer

import "sync"

// seenSet remembers recently processed feed event ids. The client that
// originates a mutation also observes its own echo on the feed, and Redis
// may redeliver after a reconnect, so application must be keyed on event
// identity. The window is bounded FIFO; old ids age out.
type seenSet struct {
	mu      sync.Mutex
	limit   int
	order   []string
	members map[string]struct{}
}

func newSeenSet(limit int) *seenSet {
	if limit <= 0 {
		limit = 1024
	}
	return &seenSet{
		limit:   limit,
		members: make(map[string]struct{}, limit),
	}
}

// Add records the id and reports whether it was new.
func (s *seenSet) Add(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.members[id]; ok {
		return false
	}
	s.members[id] = struct{}{}
	s.order = append(s.order, id)
	if len(s.order) > s.limit {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.members, oldest)
	}
	return true
}
