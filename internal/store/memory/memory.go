package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/MrSnakeDoc/blink/internal/domain"
	"github.com/MrSnakeDoc/blink/internal/idgen"
	"github.com/MrSnakeDoc/blink/internal/store"
)

// Store keeps pastes in a process-local map.
// A single mutex serializes every operation, so the
// read-check-decrement sequence of Fetch runs as one unit.
// Nothing survives a restart.
type Store struct {
	mu     sync.Mutex
	pastes map[string]*domain.Paste // ID -> Paste
	closed bool

	now   store.Clock
	newID idgen.Generator
}

var (
	_ store.Backend = (*Store)(nil)
	_ store.Sweeper = (*Store)(nil)
)

var errClosed = errors.New("memory store closed")

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the creation clock.
func WithClock(c store.Clock) Option { return func(s *Store) { s.now = c } }

// WithIDGenerator overrides identifier generation.
func WithIDGenerator(g idgen.Generator) Option { return func(s *Store) { s.newID = g } }

// New creates an empty in-memory store.
func New(opts ...Option) *Store {
	s := &Store{
		pastes: make(map[string]*domain.Paste),
		now:    domain.NowMillis,
		newID:  idgen.New,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) Name() string { return "memory" }

// Create stores a new paste.
func (s *Store) Create(_ context.Context, opts domain.CreateOptions) (string, error) {
	if err := opts.Validate(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", domain.Unavailable("create", errClosed)
	}

	for attempt := 0; attempt < store.MaxIDAttempts; attempt++ {
		id, err := s.newID()
		if err != nil {
			return "", domain.Unavailable("create", err)
		}
		if _, taken := s.pastes[id]; taken {
			continue
		}
		s.pastes[id] = domain.NewPaste(id, opts, s.now())
		return id, nil
	}

	return "", domain.Unavailable("create", fmt.Errorf("no free id after %d attempts", store.MaxIDAttempts))
}

// Fetch resolves a read at now and consumes one view when the paste is budgeted.
func (s *Store) Fetch(_ context.Context, id string, now int64) (*domain.Paste, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, domain.Unavailable("fetch", errClosed)
	}

	p, ok := s.pastes[id]
	if !ok {
		return nil, domain.ErrNotFound
	}

	// Dead pastes are dropped as soon as a read observes them.
	if p.ExpiredAt(now) || p.Exhausted() {
		delete(s.pastes, id)
		return nil, domain.ErrNotFound
	}

	if p.Unlimited() {
		return p.Clone(), nil
	}
	*p.ViewsRemaining--

	return p.Clone(), nil
}

// Health reports false once the store is closed.
func (s *Store) Health(context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

// Sweep drops pastes that are expired or exhausted at now.
func (s *Store) Sweep(_ context.Context, now int64) (store.Swept, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return store.Swept{}, domain.Unavailable("sweep", errClosed)
	}

	var res store.Swept
	for id, p := range s.pastes {
		if p.ExpiredAt(now) || p.Exhausted() {
			delete(s.pastes, id)
			res.Count++
			if p.Kind == domain.KindBlob && p.BlobRef != "" {
				res.BlobRefs = append(res.BlobRefs, p.BlobRef)
			}
		}
	}
	return res, nil
}

// Count returns the number of stored pastes, dead or alive.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pastes)
}

// Close discards all pastes.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pastes = make(map[string]*domain.Paste)
	s.closed = true
	return nil
}
