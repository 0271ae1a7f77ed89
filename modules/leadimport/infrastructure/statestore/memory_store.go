package statestore

import (
	"context"
	"sync"
	"time"

	"github.com/jacksonlee411/leadimport/modules/leadimport/domain/entities/connection"
)

// MemoryStore keeps pending states in process. Only suitable for a single
// replica.
type MemoryStore struct {
	mu     sync.Mutex
	states map[string]connection.State
	now    func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		states: make(map[string]connection.State),
		now:    time.Now,
	}
}

// Save stores state and sweeps entries that expired since the last save.
func (s *MemoryStore) Save(_ context.Context, state *connection.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, v := range s.states {
		if v.Expired(now) {
			delete(s.states, k)
		}
	}
	s.states[state.Value] = *state
	return nil
}

func (s *MemoryStore) Consume(_ context.Context, value string, now time.Time) (*connection.State, error) {
	s.mu.Lock()
	state, ok := s.states[value]
	delete(s.states, value)
	s.mu.Unlock()

	if !ok || state.Expired(now) {
		return nil, connection.ErrStateNotFound
	}
	return &state, nil
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.states)
}
