package drafts

import (
	"context"
	"sync"
	"time"

	"github.com/yungbote/mlcompare/internal/trainform"
)

type memoryEntry struct {
	st      trainform.State
	expires time.Time
}

type memoryStore struct {
	mu        sync.Mutex
	ttl       time.Duration
	m         map[string]memoryEntry
	now       func() time.Time
	lastSweep time.Time
}

// Expired entries are swept from Save at most once per sweepInterval.
const sweepInterval = time.Minute

func NewMemory(ttl time.Duration) Store {
	return &memoryStore{ttl: ttl, m: map[string]memoryEntry{}, now: time.Now}
}

func (s *memoryStore) Load(_ context.Context, session string) (trainform.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.m[session]
	if !ok {
		return trainform.State{}, ErrNotFound
	}
	if s.now().After(e.expires) {
		delete(s.m, session)
		return trainform.State{}, ErrNotFound
	}
	// Restore/Snapshot round trip hands back an independent copy.
	return trainform.Restore(e.st, nil).Snapshot(), nil
}

func (s *memoryStore) Save(_ context.Context, session string, st trainform.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if now.Sub(s.lastSweep) >= sweepInterval {
		s.sweep(now)
	}
	s.m[session] = memoryEntry{st: trainform.Restore(st, nil).Snapshot(), expires: now.Add(s.ttl)}
	return nil
}

// sweep drops every expired entry. Callers hold s.mu.
func (s *memoryStore) sweep(now time.Time) {
	for k, e := range s.m {
		if now.After(e.expires) {
			delete(s.m, k)
		}
	}
	s.lastSweep = now
}

func (s *memoryStore) Delete(_ context.Context, session string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, session)
	return nil
}

func (s *memoryStore) Close() error { return nil }
