package review

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/joeblew999/plat-polymer/internal/metrics"
)

// Store keeps review sessions.
type Store interface {
	Create(ctx context.Context, cogID string) (*Session, error)
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
}

// Snapshotter persists session snapshots outside the process.
type Snapshotter interface {
	Load(ctx context.Context, id string) (*Snapshot, error)
	Store(ctx context.Context, snap *Snapshot) error
	Delete(ctx context.Context, id string) error
}

// MemoryStore keeps live sessions in memory. With a Snapshotter every save
// is also written out, and a session missing from memory is rebuilt from
// its snapshot.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	snap     Snapshotter
	log      *slog.Logger
}

// NewMemoryStore creates a store. snap may be nil.
func NewMemoryStore(snap Snapshotter, log *slog.Logger) *MemoryStore {
	if log == nil {
		log = slog.Default()
	}
	return &MemoryStore{sessions: make(map[string]*Session), snap: snap, log: log}
}

func (m *MemoryStore) Create(ctx context.Context, cogID string) (*Session, error) {
	s := NewSession(cogID)

	m.mu.Lock()
	m.sessions[s.ID] = s
	n := len(m.sessions)
	m.mu.Unlock()

	metrics.SessionsActive.Set(float64(n))
	m.log.Debug("session_created", "session", s.ID, "cog_id", cogID)
	return s, m.Save(ctx, s)
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		return s, nil
	}
	if m.snap == nil {
		return nil, ErrNoSession
	}

	snap, err := m.snap.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		metrics.SnapshotMissesTotal.Inc()
		return nil, ErrNoSession
	}
	metrics.SnapshotHitsTotal.Inc()

	s, err = snap.Restore()
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if cur, ok := m.sessions[id]; ok {
		s = cur
	} else {
		m.sessions[id] = s
	}
	n := len(m.sessions)
	m.mu.Unlock()

	metrics.SessionsActive.Set(float64(n))
	m.log.Info("session_restored", "session", id, "mode", s.Mode)
	return s, nil
}

// Save writes a snapshot. The caller holds the session lock or owns the
// session exclusively.
func (m *MemoryStore) Save(ctx context.Context, s *Session) error {
	if m.snap == nil {
		return nil
	}
	return m.snap.Store(ctx, NewSnapshot(s))
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	delete(m.sessions, id)
	n := len(m.sessions)
	m.mu.Unlock()

	metrics.SessionsActive.Set(float64(n))
	if m.snap == nil {
		return nil
	}
	return m.snap.Delete(ctx, id)
}

// Evict drops sessions idle for longer than ttl from memory. Snapshots are
// left to expire on their own. A session busy with a request is skipped
// until a later pass.
func (m *MemoryStore) Evict(ttl time.Duration) int {
	cutoff := time.Now().Add(-ttl)

	m.mu.RLock()
	live := make(map[string]*Session, len(m.sessions))
	for id, s := range m.sessions {
		live[id] = s
	}
	m.mu.RUnlock()

	var idle []string
	for id, s := range live {
		if !s.TryLock() {
			continue
		}
		if s.UpdatedAt.Before(cutoff) {
			idle = append(idle, id)
		}
		s.Unlock()
	}

	m.mu.Lock()
	n := 0
	for _, id := range idle {
		if m.sessions[id] == live[id] {
			delete(m.sessions, id)
			n++
		}
	}
	left := len(m.sessions)
	m.mu.Unlock()

	metrics.SessionsActive.Set(float64(left))
	return n
}

// RunEvictor evicts idle sessions every interval until ctx is done.
func (m *MemoryStore) RunEvictor(ctx context.Context, interval, ttl time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := m.Evict(ttl); n > 0 {
				m.log.Info("sessions_evicted", "count", n)
			}
		}
	}
}
