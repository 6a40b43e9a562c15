package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps sessions in a map. Sessions idle for longer than the TTL
// are removed by a background sweep.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
	ttl      time.Duration

	ticker   *time.Ticker
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewMemoryStore creates a store. ttl <= 0 keeps sessions forever.
// cleanupInterval <= 0 defaults to one minute.
func NewMemoryStore(ttl, cleanupInterval time.Duration) *MemoryStore {
	s := &MemoryStore{
		sessions: make(map[string]Session),
		ttl:      ttl,
	}
	if ttl <= 0 {
		return s
	}
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}
	s.ticker = time.NewTicker(cleanupInterval)
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.runCleanup()
	return s
}

func (s *MemoryStore) runCleanup() {
	defer close(s.done)
	for {
		select {
		case <-s.ticker.C:
			s.cleanup(time.Now())
		case <-s.stop:
			return
		}
	}
}

func (s *MemoryStore) cleanup(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.sessions {
		if now.Sub(sess.UpdatedAt) > s.ttl {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// Get returns the session for id.
func (s *MemoryStore) Get(ctx context.Context, id string) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}
	if err := ValidateID(id); err != nil {
		return Session{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	if s.ttl > 0 && time.Since(sess.UpdatedAt) > s.ttl {
		return Session{}, ErrNotFound
	}
	return sess, nil
}

// Put stores s, replacing any session with the same ID.
func (s *MemoryStore) Put(ctx context.Context, sess Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ValidateID(sess.ID); err != nil {
		return err
	}
	sess.UpdatedAt = time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
	return nil
}

// Update applies fn to the session for id under the store lock.
func (s *MemoryStore) Update(ctx context.Context, id string, fn UpdateFunc) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}
	if err := ValidateID(id); err != nil {
		return Session{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok || (s.ttl > 0 && time.Since(sess.UpdatedAt) > s.ttl) {
		return Session{}, ErrNotFound
	}
	if err := fn(&sess); err != nil {
		return Session{}, err
	}
	sess.ID = id
	sess.UpdatedAt = time.Now().UTC()
	s.sessions[id] = sess
	return sess, nil
}

// Delete removes the session for id.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(s.sessions, id)
	return nil
}

// Len returns the number of stored sessions.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Close stops the cleanup goroutine. Safe to call more than once.
func (s *MemoryStore) Close() error {
	if s.ticker == nil {
		return nil
	}
	s.stopOnce.Do(func() {
		close(s.stop)
		<-s.done
		s.ticker.Stop()
	})
	return nil
}
