// internal/poller/signatures.go
package poller

import "sync"

const DefaultMaxProcessed = 1000

// SignatureSet remembers processed signatures. When full it forgets the
// oldest half in insertion order, so its size never exceeds max.
type SignatureSet struct {
	mu    sync.Mutex
	max   int
	order []string
	index map[string]struct{}
}

// NewSignatureSet creates a set bounded by max (minimum 2).
func NewSignatureSet(max int) *SignatureSet {
	if max <= 0 {
		max = DefaultMaxProcessed
	}
	if max < 2 {
		max = 2
	}
	return &SignatureSet{
		max:   max,
		order: make([]string, 0, max),
		index: make(map[string]struct{}, max),
	}
}

// Add inserts sig and reports whether it was new.
func (s *SignatureSet) Add(sig string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[sig]; ok {
		return false
	}
	if len(s.order) >= s.max {
		s.evictOldestHalf()
	}
	s.order = append(s.order, sig)
	s.index[sig] = struct{}{}
	return true
}

func (s *SignatureSet) evictOldestHalf() {
	drop := len(s.order) / 2
	for _, sig := range s.order[:drop] {
		delete(s.index, sig)
	}
	kept := make([]string, len(s.order)-drop, s.max)
	copy(kept, s.order[drop:])
	s.order = kept
}

func (s *SignatureSet) Contains(sig string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.index[sig]
	return ok
}

func (s *SignatureSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

func (s *SignatureSet) Max() int {
	return s.max
}

func (s *SignatureSet) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = make([]string, 0, s.max)
	s.index = make(map[string]struct{}, s.max)
}
