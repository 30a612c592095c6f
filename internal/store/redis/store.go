package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/MrSnakeDoc/blink/internal/domain"
	"github.com/MrSnakeDoc/blink/internal/idgen"
	"github.com/MrSnakeDoc/blink/internal/store"
)

const (
	// DefaultKeyGrace keeps a paste key alive past its expires_at, so
	// Redis never drops a key before a reader's clock says it is dead.
	DefaultKeyGrace = time.Minute

	// DefaultHealthTimeout bounds the PING issued by Health.
	DefaultHealthTimeout = 2 * time.Second
)

// Store keeps pastes in Redis hashes.
// All check-and-decrement logic runs inside Lua scripts, so the
// server applies each fetch atomically with respect to other clients.
type Store struct {
	client goredis.UniversalClient

	now           store.Clock
	newID         idgen.Generator
	keyGrace      time.Duration
	healthTimeout time.Duration
}

var _ store.Backend = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the creation clock.
func WithClock(c store.Clock) Option { return func(s *Store) { s.now = c } }

// WithIDGenerator overrides identifier generation.
func WithIDGenerator(g idgen.Generator) Option { return func(s *Store) { s.newID = g } }

// WithKeyGrace sets how long keys outlive expires_at.
func WithKeyGrace(d time.Duration) Option { return func(s *Store) { s.keyGrace = d } }

// NewStore creates a Redis-backed store. The store owns client and
// closes it on Close.
func NewStore(client goredis.UniversalClient, opts ...Option) *Store {
	s := &Store{
		client:        client,
		now:           domain.NowMillis,
		newID:         idgen.New,
		keyGrace:      DefaultKeyGrace,
		healthTimeout: DefaultHealthTimeout,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) Name() string { return "redis" }

// Create stores a new paste in a single script call.
func (s *Store) Create(ctx context.Context, opts domain.CreateOptions) (string, error) {
	if err := opts.Validate(); err != nil {
		return "", err
	}

	createdAt := s.now()

	for attempt := 0; attempt < store.MaxIDAttempts; attempt++ {
		id, err := s.newID()
		if err != nil {
			return "", domain.Unavailable("create", err)
		}

		p := domain.NewPaste(id, opts, createdAt)
		body, err := encodePaste(p)
		if err != nil {
			return "", domain.Unavailable("create", err)
		}

		created, err := createScript.Run(ctx, s.client,
			[]string{PasteKey(id)},
			body, optInt(p.ExpiresAt), optInt(p.ViewsRemaining), s.keyTTL(opts).Milliseconds(),
		).Int64()
		if err != nil {
			return "", domain.Unavailable("create", err)
		}
		if created == 1 {
			return id, nil
		}
	}

	return "", domain.Unavailable("create", fmt.Errorf("no free id after %d attempts", store.MaxIDAttempts))
}

// Fetch resolves a read at now. One round trip: the script reports the
// outcome and carries the record body when the read succeeds.
func (s *Store) Fetch(ctx context.Context, id string, now int64) (*domain.Paste, error) {
	res, err := fetchScript.Run(ctx, s.client, []string{PasteKey(id)}, now).Slice()
	if err != nil {
		return nil, domain.Unavailable("fetch", err)
	}
	if len(res) == 0 {
		return nil, domain.Unavailable("fetch", errors.New("empty script reply"))
	}

	code, ok := res[0].(int64)
	if !ok {
		return nil, domain.Unavailable("fetch", fmt.Errorf("unexpected script code %T", res[0]))
	}

	switch code {
	case codeAbsent, codeExpired, codeExhausted:
		return nil, domain.ErrNotFound
	}

	if len(res) < 2 {
		return nil, domain.Unavailable("fetch", errors.New("script reply missing record"))
	}
	body, ok := res[1].(string)
	if !ok {
		return nil, domain.Unavailable("fetch", fmt.Errorf("unexpected record type %T", res[1]))
	}

	p, err := decodePaste(body)
	if err != nil {
		return nil, domain.Unavailable("fetch", err)
	}

	if code != codeUnlimited {
		if code < 0 {
			return nil, domain.Unavailable("fetch", fmt.Errorf("unknown script code %d", code))
		}
		p.ViewsRemaining = domain.Int64(code)
	}

	return p, nil
}

// Health pings Redis.
func (s *Store) Health(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, s.healthTimeout)
	defer cancel()

	return s.client.Ping(ctx).Err() == nil
}

// Close releases the underlying client. Repeated calls are no-ops.
func (s *Store) Close() error {
	if err := s.client.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
		return err
	}
	return nil
}

// keyTTL is how long Redis keeps the key: the paste's TTL plus grace,
// or zero for pastes that never expire.
func (s *Store) keyTTL(opts domain.CreateOptions) time.Duration {
	if opts.TTLSeconds == nil || *opts.TTLSeconds <= 0 {
		return 0
	}
	return time.Duration(*opts.TTLSeconds)*time.Second + s.keyGrace
}

func encodePaste(p *domain.Paste) ([]byte, error) {
	b, err := msgpack.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal paste: %w", err)
	}
	return b, nil
}

func decodePaste(body string) (*domain.Paste, error) {
	var p domain.Paste
	if err := msgpack.Unmarshal([]byte(body), &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal paste: %w", err)
	}
	return &p, nil
}

// optInt renders an optional integer as a script argument ("" = absent).
func optInt(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}
