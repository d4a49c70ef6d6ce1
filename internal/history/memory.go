package history

import (
	"context"
	"sync"
	"time"

	"github.com/advisor-ai/advisor/internal/event"
	"github.com/advisor-ai/advisor/internal/logging"
	"github.com/advisor-ai/advisor/pkg/types"
)

// MemoryOptions configures an in-process session store.
type MemoryOptions struct {
	// HistoryTokenBudget caps the retained token cost per session.
	// Zero disables budget eviction.
	HistoryTokenBudget int
	// IdleTTL drops sessions idle longer than this. Zero disables expiry.
	IdleTTL time.Duration
	// SweepInterval is how often expired sessions are collected.
	// Defaults to one minute when IdleTTL is set.
	SweepInterval time.Duration
}

type sessionRecord struct {
	mu         sync.Mutex
	turns      []types.Turn
	tokens     int
	createdAt  time.Time
	lastActive time.Time
}

// MemoryStore keeps session history in process memory. Each session carries
// its own lock so sessions never contend with each other.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*sessionRecord
	opts     MemoryOptions

	stopOnce sync.Once
	stop     chan struct{}
}

// NewMemoryStore returns a memory-backed Store and starts the idle sweeper
// when an IdleTTL is configured.
func NewMemoryStore(opts MemoryOptions) *MemoryStore {
	if opts.IdleTTL > 0 && opts.SweepInterval <= 0 {
		opts.SweepInterval = time.Minute
	}
	s := &MemoryStore{
		sessions: make(map[string]*sessionRecord),
		opts:     opts,
		stop:     make(chan struct{}),
	}
	if opts.IdleTTL > 0 {
		go s.sweep()
	}
	return s
}

// record returns the session record, lazily treating expired sessions as
// absent. When create is set a missing record is allocated.
func (s *MemoryStore) record(sessionID string, create bool) *sessionRecord {
	now := time.Now()

	s.mu.RLock()
	rec := s.sessions[sessionID]
	s.mu.RUnlock()

	if rec != nil && s.expired(rec, now) {
		s.dropExpired(sessionID, rec)
		rec = nil
	}
	if rec != nil || !create {
		return rec
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if rec = s.sessions[sessionID]; rec != nil {
		return rec
	}
	rec = &sessionRecord{createdAt: now, lastActive: now}
	s.sessions[sessionID] = rec
	return rec
}

func (s *MemoryStore) expired(rec *sessionRecord, now time.Time) bool {
	if s.opts.IdleTTL <= 0 {
		return false
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return now.Sub(rec.lastActive) > s.opts.IdleTTL
}

func (s *MemoryStore) dropExpired(sessionID string, rec *sessionRecord) {
	s.mu.Lock()
	// Only drop the exact record we saw expire.
	if cur := s.sessions[sessionID]; cur == rec {
		delete(s.sessions, sessionID)
		s.mu.Unlock()
		event.Publish(event.Event{
			Type: event.SessionEvicted,
			Data: event.SessionEvictedData{SessionID: sessionID, Reason: "idle"},
		})
		return
	}
	s.mu.Unlock()
}

// Append implements Store.
func (s *MemoryStore) Append(ctx context.Context, sessionID string, turns ...types.Turn) error {
	if len(turns) == 0 {
		return nil
	}
	rec := s.record(sessionID, true)

	rec.mu.Lock()
	defer rec.mu.Unlock()

	now := time.Now()
	for i := range turns {
		if turns[i].Tokens <= 0 {
			turns[i].Tokens = turnCost(turns[i])
		}
		if turns[i].CreatedAt.IsZero() {
			turns[i].CreatedAt = now
		}
		rec.turns = append(rec.turns, turns[i])
	}
	before := len(rec.turns)
	rec.turns, rec.tokens = evictOverBudget(rec.turns, s.opts.HistoryTokenBudget, len(turns))
	if dropped := before - len(rec.turns); dropped > 0 {
		logging.Debug().
			Str("sessionID", sessionID).
			Int("dropped", dropped).
			Msg("evicted turns over history budget")
	}
	rec.lastActive = now
	return nil
}

// History implements Store.
func (s *MemoryStore) History(ctx context.Context, sessionID string, maxTokens int) ([]types.Turn, error) {
	rec := s.record(sessionID, false)
	if rec == nil {
		return nil, nil
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.lastActive = time.Now()
	return window(rec.turns, maxTokens), nil
}

// Turns implements Store.
func (s *MemoryStore) Turns(ctx context.Context, sessionID string) ([]types.Turn, error) {
	rec := s.record(sessionID, false)
	if rec == nil {
		return nil, ErrNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.lastActive = time.Now()
	return append([]types.Turn(nil), rec.turns...), nil
}

// Info implements Store.
func (s *MemoryStore) Info(ctx context.Context, sessionID string) (*types.SessionInfo, error) {
	rec := s.record(sessionID, false)
	if rec == nil {
		return nil, ErrNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return &types.SessionInfo{
		ID:           sessionID,
		CreatedAt:    rec.createdAt,
		LastActiveAt: rec.lastActive,
		TurnCount:    len(rec.turns),
		TokenCount:   rec.tokens,
	}, nil
}

// Evict implements Store.
func (s *MemoryStore) Evict(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	_, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	return nil
}

// Close stops the idle sweeper.
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	return nil
}

// sweep periodically drops sessions idle past the TTL.
func (s *MemoryStore) sweep() {
	ticker := time.NewTicker(s.opts.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case now := <-ticker.C:
			s.mu.RLock()
			expired := make(map[string]*sessionRecord)
			for id, rec := range s.sessions {
				if s.opts.IdleTTL > 0 {
					rec.mu.Lock()
					idle := now.Sub(rec.lastActive) > s.opts.IdleTTL
					rec.mu.Unlock()
					if idle {
						expired[id] = rec
					}
				}
			}
			s.mu.RUnlock()
			for id, rec := range expired {
				s.dropExpired(id, rec)
			}
		}
	}
}
