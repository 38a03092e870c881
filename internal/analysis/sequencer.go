package analysis

import "sync"

// Sequencer hands out monotonically increasing tokens per key so that only
// the newest request for a key may publish its result.
type Sequencer struct {
	mu     sync.Mutex
	latest map[string]uint64
}

// NewSequencer returns an empty sequencer.
func NewSequencer() *Sequencer {
	return &Sequencer{latest: make(map[string]uint64)}
}

// Next issues a new token for key, superseding every earlier one.
func (s *Sequencer) Next(key string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest[key]++
	return s.latest[key]
}

// Current reports the most recent token issued for key.
func (s *Sequencer) Current(key string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest[key]
}

// Commit runs apply only if token is still the latest for key. apply runs
// while the sequencer is locked so a newer Next cannot interleave; it must
// not call back into the sequencer.
func (s *Sequencer) Commit(key string, token uint64, apply func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest[key] != token {
		return false
	}
	if apply != nil {
		apply()
	}
	return true
}

// Forget drops the key; later tokens start again from one. Only forget a key
// with no outstanding token, or a stale holder may commit again.
func (s *Sequencer) Forget(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.latest, key)
}

// Len is the number of keys with issued tokens.
func (s *Sequencer) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.latest)
}
