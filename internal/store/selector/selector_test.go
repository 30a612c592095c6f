package selector

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/MrSnakeDoc/blink/internal/logger"
	"github.com/MrSnakeDoc/blink/internal/store"
	"github.com/MrSnakeDoc/blink/internal/store/memory"
)

// named is a memory store reporting a different backend name.
type named struct {
	*memory.Store
	name   string
	closed atomic.Bool
}

func (n *named) Name() string { return n.name }
func (n *named) Close() error { n.closed.Store(true); return n.Store.Close() }

func ok(name string, calls *atomic.Int32) Factory {
	return func(context.Context) (store.Backend, error) {
		calls.Add(1)
		return &named{Store: memory.New(), name: name}, nil
	}
}

func failing(calls *atomic.Int32) Factory {
	return func(context.Context) (store.Backend, error) {
		calls.Add(1)
		return nil, errors.New("connection refused")
	}
}

func memoryFactory() store.Backend { return memory.New() }

func TestSelectionOrder(t *testing.T) {
	tests := []struct {
		name        string
		redisFails  bool
		sqliteFails bool
		noRedis     bool
		noSQLite    bool
		pin         string
		want        string
	}{
		{name: "redis first", want: Redis},
		{name: "redis down falls to sqlite", redisFails: true, want: SQLite},
		{name: "both down falls to memory", redisFails: true, sqliteFails: true, want: Memory},
		{name: "redis not configured", noRedis: true, want: SQLite},
		{name: "nothing configured", noRedis: true, noSQLite: true, want: Memory},
		{name: "pin sqlite skips redis", pin: "sqlite", want: SQLite},
		{name: "pin sqlite still falls back", pin: "SQLite", sqliteFails: true, want: Memory},
		{name: "pin memory", pin: "memory", want: Memory},
		{name: "pin redis is the default order", pin: "redis", redisFails: true, want: SQLite},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var redisCalls, sqliteCalls atomic.Int32
			f := Factories{Memory: memoryFactory}

			if !tt.noRedis {
				f.Redis = ok(Redis, &redisCalls)
				if tt.redisFails {
					f.Redis = failing(&redisCalls)
				}
			}
			if !tt.noSQLite {
				f.SQLite = ok(SQLite, &sqliteCalls)
				if tt.sqliteFails {
					f.SQLite = failing(&sqliteCalls)
				}
			}

			p, err := New(f, tt.pin, logger.Nop())
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}

			got := p.Get(context.Background())
			if got.Name() != tt.want {
				t.Errorf("Get().Name() = %q, want %q", got.Name(), tt.want)
			}
		})
	}
}

func TestGetIsSingleton(t *testing.T) {
	var calls atomic.Int32
	p, err := New(Factories{Redis: ok(Redis, &calls), Memory: memoryFactory}, "", logger.Nop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	const n = 32
	got := make([]store.Backend, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = p.Get(context.Background())
		}(i)
	}
	wg.Wait()

	if calls.Load() != 1 {
		t.Errorf("factory called %d times, want 1", calls.Load())
	}
	for i := 1; i < n; i++ {
		if got[i] != got[0] {
			t.Fatalf("Get() returned different instances")
		}
	}
}

func TestFailedCandidateIsNotRetried(t *testing.T) {
	var redisCalls atomic.Int32
	p, err := New(Factories{Redis: failing(&redisCalls), Memory: memoryFactory}, "", logger.Nop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	first := p.Get(context.Background())
	second := p.Get(context.Background())

	if first != second {
		t.Error("Get() returned different instances")
	}
	if redisCalls.Load() != 1 {
		t.Errorf("redis factory called %d times, want 1", redisCalls.Load())
	}
}

func TestPanickingFactoryFallsThrough(t *testing.T) {
	var sqliteCalls atomic.Int32
	boom := func(context.Context) (store.Backend, error) { panic("driver init failed") }

	tests := []struct {
		name string
		f    Factories
		want string
	}{
		{name: "next candidate", f: Factories{Redis: boom, SQLite: ok(SQLite, &sqliteCalls), Memory: memoryFactory}, want: SQLite},
		{name: "memory last", f: Factories{Redis: boom, SQLite: boom, Memory: memoryFactory}, want: Memory},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.f, "", logger.Nop())
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}

			first := p.Get(context.Background())
			if first == nil || first.Name() != tt.want {
				t.Fatalf("Get() = %v, want %s", first, tt.want)
			}
			if second := p.Get(context.Background()); second != first {
				t.Error("Get() after a panic returned a different instance")
			}
		})
	}
}

func TestCanceledContextDoesNotSkipCandidates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	redis := func(ctx context.Context) (store.Backend, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return &named{Store: memory.New(), name: Redis}, nil
	}

	p, err := New(Factories{Redis: redis, Memory: memoryFactory}, "", logger.Nop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if got := p.Get(ctx).Name(); got != Redis {
		t.Errorf("Get().Name() = %q, want %q", got, Redis)
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New(Factories{Memory: memoryFactory}, "postgres", logger.Nop()); err == nil {
		t.Error("New() accepted unknown pin")
	}
	if _, err := New(Factories{}, "", logger.Nop()); err == nil {
		t.Error("New() accepted missing memory factory")
	}
}

func TestClose(t *testing.T) {
	var calls atomic.Int32
	p, err := New(Factories{Redis: ok(Redis, &calls), Memory: memoryFactory}, "", logger.Nop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := p.Close(); err != nil {
		t.Fatalf("Close() before Get error = %v", err)
	}
	if calls.Load() != 0 {
		t.Fatal("Close() built a backend")
	}

	b := p.Get(context.Background()).(*named)
	if err := p.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !b.closed.Load() {
		t.Error("backend not closed")
	}
}
