package oauthkit

import (
	"context"
	"sync"
	"time"

	"github.com/dpup/oauthkit/errors"
	"github.com/google/uuid"
)

// DefaultPendingTTL is how long an authorization attempt may wait for its
// callback.
const DefaultPendingTTL = 20 * time.Minute

// PendingRequest is an authorization attempt awaiting its callback.
type PendingRequest struct {
	Key         string
	AttemptID   string
	Flow        Flow
	CallerState any
	CreatedAt   time.Time
}

// Client returns the client serving the attempt.
func (p *PendingRequest) Client() Client {
	return p.Flow.Client()
}

// PendingOption configures a PendingStore.
type PendingOption func(*PendingStore)

// WithTTL sets how long entries live.
func WithTTL(ttl time.Duration) PendingOption {
	return func(s *PendingStore) {
		s.ttl = ttl
	}
}

// WithSweepInterval sets how often Start evicts expired entries.
func WithSweepInterval(d time.Duration) PendingOption {
	return func(s *PendingStore) {
		s.sweepInterval = d
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) PendingOption {
	return func(s *PendingStore) {
		s.now = now
	}
}

// PendingStore correlates callbacks with the attempts that started them.
// Entries expire a fixed TTL after creation. Expired entries are evicted on
// insert, by a background sweep once Start is called, and on lookup.
type PendingStore struct {
	mu      sync.Mutex
	entries map[string]*PendingRequest

	ttl           time.Duration
	sweepInterval time.Duration
	now           func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// NewPendingStore returns an empty store.
func NewPendingStore(opts ...PendingOption) *PendingStore {
	s := &PendingStore{
		entries:       make(map[string]*PendingRequest),
		ttl:           DefaultPendingTTL,
		sweepInterval: time.Minute,
		now:           time.Now,
		stop:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TTL returns the entry lifetime.
func (s *PendingStore) TTL() time.Duration {
	return s.ttl
}

// Add stores an attempt under key.
func (s *PendingStore) Add(key string, flow Flow, callerState any) (*PendingRequest, error) {
	if key == "" {
		return nil, errors.WrapPrefix(ErrAuthorization, "pending: empty correlation key", 0)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweepLocked(now)
	if _, exists := s.entries[key]; exists {
		return nil, errors.WrapPrefix(ErrAuthorization, "pending: correlation key already in use", 0)
	}
	p := &PendingRequest{
		Key:         key,
		AttemptID:   uuid.NewString(),
		Flow:        flow,
		CallerState: callerState,
		CreatedAt:   now,
	}
	s.entries[key] = p
	return p, nil
}

// Remove deletes and returns the attempt for key. Unknown and expired keys
// return ErrUnknownOrExpiredRequest.
func (s *PendingStore) Remove(key string) (*PendingRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.entries[key]
	if !ok {
		return nil, errors.WrapPrefix(ErrUnknownOrExpiredRequest, "pending: unknown key", 0)
	}
	delete(s.entries, key)
	if s.expired(p, s.now()) {
		return nil, errors.WrapPrefix(ErrUnknownOrExpiredRequest, "pending: request expired", 0)
	}
	return p, nil
}

// Sweep evicts expired entries and returns how many were removed.
func (s *PendingStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweepLocked(s.now())
}

// Len returns the number of stored entries, expired or not.
func (s *PendingStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *PendingStore) sweepLocked(now time.Time) int {
	n := 0
	for key, p := range s.entries {
		if s.expired(p, now) {
			delete(s.entries, key)
			n++
		}
	}
	return n
}

func (s *PendingStore) expired(p *PendingRequest, now time.Time) bool {
	return now.Sub(p.CreatedAt) > s.ttl
}

// Start sweeps periodically until ctx is done or Stop is called.
func (s *PendingStore) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Sweep()
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			}
		}
	}()
}

// Stop ends the background sweep. It is safe to call more than once.
func (s *PendingStore) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
}
