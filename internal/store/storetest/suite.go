// Package storetest is the conformance suite every store.Backend must pass.
package storetest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/MrSnakeDoc/blink/internal/domain"
	"github.com/MrSnakeDoc/blink/internal/store"
)

// CreatedAt is the creation time the suite's clock reports.
const CreatedAt int64 = 1000

// Factory builds a fresh, empty backend whose creation clock is clock.
type Factory func(t *testing.T, clock store.Clock) store.Backend

// Run executes the conformance suite against backends built by f.
func Run(t *testing.T, f Factory) {
	suite.Run(t, &Suite{factory: f})
}

// Suite checks the fetch-and-consume contract.
type Suite struct {
	suite.Suite
	factory Factory

	ctx     context.Context
	backend store.Backend
}

func (s *Suite) SetupTest() {
	s.ctx = context.Background()
	s.backend = s.factory(s.T(), func() int64 { return CreatedAt })
}

func (s *Suite) TearDownTest() {
	if s.backend != nil {
		s.Require().NoError(s.backend.Close())
	}
}

func (s *Suite) create(opts domain.CreateOptions) string {
	id, err := s.backend.Create(s.ctx, opts)
	s.Require().NoError(err)
	s.Require().NotEmpty(id)
	return id
}

func (s *Suite) requireMiss(id string, now int64) {
	p, err := s.backend.Fetch(s.ctx, id, now)
	s.Require().ErrorIs(err, domain.ErrNotFound)
	s.Require().Nil(p)
}

func (s *Suite) requireViews(id string, now int64, want int64) *domain.Paste {
	p, err := s.backend.Fetch(s.ctx, id, now)
	s.Require().NoError(err)
	s.Require().NotNil(p)
	s.Require().NotNil(p.ViewsRemaining)
	s.Require().Equal(want, *p.ViewsRemaining)
	return p
}

func (s *Suite) TestHelloScenario() {
	id := s.create(domain.CreateOptions{
		Content:    "hello",
		TTLSeconds: domain.Int64(60),
		MaxViews:   domain.Int64(2),
	})

	p := s.requireViews(id, 1000, 1)
	s.Equal("hello", p.Content)
	s.Equal(domain.KindText, p.Kind)
	s.Equal(CreatedAt, p.CreatedAt)
	s.Require().NotNil(p.ExpiresAt)
	s.Equal(int64(61000), *p.ExpiresAt)
	s.Require().NotNil(p.ViewsInitial)
	s.Equal(int64(2), *p.ViewsInitial)

	s.requireViews(id, 1000, 0)
	s.requireMiss(id, 1000)
	s.requireMiss(id, 70001)
}

func (s *Suite) TestUnknownID() {
	s.requireMiss("nope0000", CreatedAt)
	s.requireMiss("", CreatedAt)
}

func (s *Suite) TestCreateReturnsDistinctIDs() {
	seen := make(map[string]struct{})
	for i := 0; i < 20; i++ {
		id := s.create(domain.CreateOptions{Content: "x"})
		_, dup := seen[id]
		s.Require().False(dup, "duplicate id %q", id)
		seen[id] = struct{}{}
	}
}

func (s *Suite) TestTTLBoundary() {
	id := s.create(domain.CreateOptions{Content: "ttl", TTLSeconds: domain.Int64(5)})
	deadline := CreatedAt + 5*1000

	for _, now := range []int64{CreatedAt, deadline - 1, deadline} {
		p, err := s.backend.Fetch(s.ctx, id, now)
		s.Require().NoError(err, "now=%d", now)
		s.Require().Nil(p.ViewsRemaining)
	}

	s.requireMiss(id, deadline+1)
}

func (s *Suite) TestLongestTTLIsReadable() {
	id := s.create(domain.CreateOptions{
		Content:    "decade",
		TTLSeconds: domain.Int64(domain.MaxTTLSeconds),
		MaxViews:   domain.Int64(2),
	})
	deadline := CreatedAt + domain.MaxTTLSeconds*1000

	p := s.requireViews(id, CreatedAt, 1)
	s.Require().NotNil(p.ExpiresAt)
	s.Equal(deadline, *p.ExpiresAt)

	s.requireViews(id, deadline, 0)
}

// A read whose context is already done must leave the budget either
// untouched or consumed by exactly one, and never hide a live paste.
func (s *Suite) TestCanceledFetchConsumesAtMostOne() {
	id := s.create(domain.CreateOptions{Content: "budget", MaxViews: domain.Int64(3)})

	ctx, cancel := context.WithCancel(s.ctx)
	cancel()

	// An error may still race with a committed decrement, so it allows
	// both outcomes. A success must have consumed exactly one.
	allowed := []int64{1, 2}
	p, err := s.backend.Fetch(ctx, id, CreatedAt)
	if err != nil {
		s.Require().NotErrorIs(err, domain.ErrNotFound)
		s.Require().Nil(p)
	} else {
		s.Require().NotNil(p.ViewsRemaining)
		s.Require().Equal(int64(2), *p.ViewsRemaining)
		allowed = []int64{1}
	}

	p, err = s.backend.Fetch(s.ctx, id, CreatedAt)
	s.Require().NoError(err)
	s.Require().NotNil(p.ViewsRemaining)
	s.Require().Contains(allowed, *p.ViewsRemaining)
}

func (s *Suite) TestExpiryIsIrreversible() {
	id := s.create(domain.CreateOptions{Content: "gone", TTLSeconds: domain.Int64(1)})

	s.requireMiss(id, CreatedAt+1001)
	// A reader with an older clock must not bring it back.
	s.requireMiss(id, CreatedAt)
}

func (s *Suite) TestViewBudgetSequential() {
	id := s.create(domain.CreateOptions{Content: "three", MaxViews: domain.Int64(3)})

	s.requireViews(id, CreatedAt, 2)
	s.requireViews(id, CreatedAt, 1)
	s.requireViews(id, CreatedAt, 0)
	for i := 0; i < 3; i++ {
		s.requireMiss(id, CreatedAt)
	}
}

func (s *Suite) TestUnlimitedNeverMutates() {
	id := s.create(domain.CreateOptions{Content: "forever"})

	for i := 0; i < 10; i++ {
		p, err := s.backend.Fetch(s.ctx, id, CreatedAt+int64(i)*1_000_000)
		s.Require().NoError(err)
		s.Nil(p.ViewsRemaining)
		s.Nil(p.ViewsInitial)
		s.Nil(p.ExpiresAt)
		s.Equal("forever", p.Content)
	}
}

func (s *Suite) TestViewsExhaustBeforeTTL() {
	id := s.create(domain.CreateOptions{
		Content:    "both",
		TTLSeconds: domain.Int64(3600),
		MaxViews:   domain.Int64(1),
	})

	s.requireViews(id, CreatedAt, 0)
	s.requireMiss(id, CreatedAt+1)
}

func (s *Suite) TestTTLBeforeViewsExhaust() {
	id := s.create(domain.CreateOptions{
		Content:    "both",
		TTLSeconds: domain.Int64(1),
		MaxViews:   domain.Int64(100),
	})

	s.requireViews(id, CreatedAt, 99)
	s.requireMiss(id, CreatedAt+1001)
	s.requireMiss(id, CreatedAt)
}

func (s *Suite) TestExpiredReadDoesNotConsume() {
	id := s.create(domain.CreateOptions{
		Content:    "late",
		TTLSeconds: domain.Int64(1),
		MaxViews:   domain.Int64(5),
	})

	s.requireMiss(id, CreatedAt+5000)
}

func (s *Suite) TestBlobMetadata() {
	id := s.create(domain.CreateOptions{
		Content:  "holiday video",
		Kind:     domain.KindBlob,
		BlobRef:  "/uploads/abc.mp4",
		BlobMIME: "video/mp4",
	})

	p, err := s.backend.Fetch(s.ctx, id, CreatedAt)
	s.Require().NoError(err)
	s.Equal(domain.KindBlob, p.Kind)
	s.Equal("holiday video", p.Content)
	s.Equal("/uploads/abc.mp4", p.BlobRef)
	s.Equal("video/mp4", p.BlobMIME)
}

func (s *Suite) TestURLKind() {
	id := s.create(domain.CreateOptions{Content: "https://example.com", Kind: domain.KindURL})

	p, err := s.backend.Fetch(s.ctx, id, CreatedAt)
	s.Require().NoError(err)
	s.Equal(domain.KindURL, p.Kind)
	s.Empty(p.BlobRef)
}

func (s *Suite) TestSnapshotIsDetached() {
	id := s.create(domain.CreateOptions{Content: "snap", MaxViews: domain.Int64(3)})

	p := s.requireViews(id, CreatedAt, 2)
	*p.ViewsRemaining = 100

	s.requireViews(id, CreatedAt, 1)
}

func (s *Suite) TestCreateRejectsInvalidInput() {
	cases := []domain.CreateOptions{
		{Content: ""},
		{Content: "   "},
		{Content: "x", MaxViews: domain.Int64(0)},
		{Content: "x", Kind: "mixed"},
		{Content: "x", TTLSeconds: domain.Int64(domain.MaxTTLSeconds + 1)},
		{Content: "x", TTLSeconds: domain.Int64(18_446_744_074)},
		{Kind: domain.KindBlob},
	}
	for _, opts := range cases {
		_, err := s.backend.Create(s.ctx, opts)
		s.Require().ErrorIs(err, domain.ErrInvalidInput, "opts=%+v", opts)
	}
}

func (s *Suite) TestHealthIsStable() {
	first := s.backend.Health(s.ctx)
	s.True(first)
	for i := 0; i < 5; i++ {
		s.Equal(first, s.backend.Health(s.ctx))
	}
}

func (s *Suite) TestConcurrentLastView() {
	id := s.create(domain.CreateOptions{Content: "race", MaxViews: domain.Int64(1)})

	const readers = 50
	var (
		wg        sync.WaitGroup
		start     = make(chan struct{})
		successes atomic.Int64
		misses    atomic.Int64
		failures  atomic.Int64
		winner    atomic.Pointer[domain.Paste]
	)

	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			p, err := s.backend.Fetch(s.ctx, id, CreatedAt)
			switch {
			case err == nil:
				successes.Add(1)
				winner.Store(p)
			case errors.Is(err, domain.ErrNotFound):
				misses.Add(1)
			default:
				failures.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	s.Require().Zero(failures.Load(), "backend errors under contention")
	s.Require().Equal(int64(1), successes.Load())
	s.Require().Equal(int64(readers-1), misses.Load())

	p := winner.Load()
	s.Require().NotNil(p.ViewsRemaining)
	s.Equal(int64(0), *p.ViewsRemaining)
}

func (s *Suite) TestConcurrentBudget() {
	const budget = 5
	id := s.create(domain.CreateOptions{Content: "race", MaxViews: domain.Int64(budget)})

	const readers = 40
	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		mu    sync.Mutex
		seen  = make(map[int64]int)
		fails atomic.Int64
	)

	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			p, err := s.backend.Fetch(s.ctx, id, CreatedAt)
			if err != nil {
				if !errors.Is(err, domain.ErrNotFound) {
					fails.Add(1)
				}
				return
			}
			mu.Lock()
			seen[*p.ViewsRemaining]++
			mu.Unlock()
		}()
	}
	close(start)
	wg.Wait()

	s.Require().Zero(fails.Load())
	s.Require().Len(seen, budget)
	for v := int64(0); v < budget; v++ {
		s.Equal(1, seen[v], "remaining=%d observed %d times", v, seen[v])
	}
	s.requireMiss(id, CreatedAt)
}

// Only backends implementing store.Sweeper run this one.
func (s *Suite) TestSweepKeepsLivePastes() {
	sw, ok := s.backend.(store.Sweeper)
	if !ok {
		s.T().Skip("backend does not implement store.Sweeper")
	}

	live := s.create(domain.CreateOptions{Content: "live", TTLSeconds: domain.Int64(60), MaxViews: domain.Int64(2)})
	expired := s.create(domain.CreateOptions{Content: "expired", TTLSeconds: domain.Int64(1)})
	spent := s.create(domain.CreateOptions{Content: "spent", MaxViews: domain.Int64(1)})
	s.requireViews(spent, CreatedAt, 0)
	file := s.create(domain.CreateOptions{
		Kind:       domain.KindBlob,
		BlobRef:    "/uploads/old.bin",
		TTLSeconds: domain.Int64(1),
	})
	s.create(domain.CreateOptions{Kind: domain.KindBlob, BlobRef: "/uploads/kept.bin"})

	swept, err := sw.Sweep(s.ctx, CreatedAt+2000)
	s.Require().NoError(err)
	s.Equal(3, swept.Count)
	s.Equal([]string{"/uploads/old.bin"}, swept.BlobRefs)

	s.requireViews(live, CreatedAt+2000, 1)
	s.requireMiss(expired, CreatedAt)
	s.requireMiss(spent, CreatedAt)
	s.requireMiss(file, CreatedAt)

	again, err := sw.Sweep(s.ctx, CreatedAt+2000)
	s.Require().NoError(err)
	s.Zero(again.Count)
	s.Empty(again.BlobRefs)
}
