// Package selector picks the process-wide paste backend on first use.
package selector

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/MrSnakeDoc/blink/internal/logger"
	"github.com/MrSnakeDoc/blink/internal/store"
)

const (
	Redis  = "redis"
	SQLite = "sqlite"
	Memory = "memory"
)

// Factory builds one candidate backend.
type Factory func(ctx context.Context) (store.Backend, error)

// Factories are the candidates, tried in the order Redis, SQLite, Memory.
// A nil Redis or SQLite factory means "not configured" and is skipped.
// Memory cannot fail.
type Factories struct {
	Redis  Factory
	SQLite Factory
	Memory func() store.Backend
}

// Provider holds exactly one backend, built on the first Get.
type Provider struct {
	factories Factories
	pin       string
	log       logger.Logger

	once     sync.Once
	selected atomic.Pointer[selection]
}

type selection struct{ backend store.Backend }

// New returns a Provider. pin, when set, names the first candidate to try;
// the candidates after it remain fallbacks.
func New(f Factories, pin string, log logger.Logger) (*Provider, error) {
	pin = strings.ToLower(strings.TrimSpace(pin))
	switch pin {
	case "", Redis, SQLite, Memory:
	default:
		return nil, fmt.Errorf("unknown backend %q (want redis, sqlite or memory)", pin)
	}
	if f.Memory == nil {
		return nil, fmt.Errorf("memory factory is required")
	}
	return &Provider{factories: f, pin: pin, log: log}, nil
}

// Get returns the selected backend, building it on first call. Later
// calls, concurrent or not, return the same instance.
func (p *Provider) Get(ctx context.Context) store.Backend {
	p.once.Do(func() {
		// The choice outlives whichever request triggered it.
		b := p.selectBackend(context.WithoutCancel(ctx))
		p.selected.Store(&selection{backend: b})
	})
	return p.selected.Load().backend
}

// Selected reports the chosen backend without building one.
func (p *Provider) Selected() (store.Backend, bool) {
	s := p.selected.Load()
	if s == nil {
		return nil, false
	}
	return s.backend, true
}

type candidate struct {
	name  string
	build Factory
}

func (p *Provider) candidates() []candidate {
	all := []candidate{
		{Redis, p.factories.Redis},
		{SQLite, p.factories.SQLite},
	}
	start := 0
	switch p.pin {
	case SQLite:
		start = 1
	case Memory:
		start = len(all)
	}
	return all[start:]
}

func (p *Provider) selectBackend(ctx context.Context) store.Backend {
	for _, c := range p.candidates() {
		if c.build == nil {
			p.log.Debug("backend not configured", logger.String("backend", c.name))
			continue
		}

		b, err := safeBuild(ctx, c.build)
		if err != nil {
			p.log.Warn("backend unavailable, falling back",
				logger.String("backend", c.name),
				logger.Error(err))
			continue
		}

		p.log.Info("storage backend selected", logger.String("backend", b.Name()))
		return b
	}

	b := p.factories.Memory()
	p.log.Info("storage backend selected",
		logger.String("backend", b.Name()),
		logger.Bool("durable", false))
	return b
}

// safeBuild turns a panicking factory into an ordinary failure, so
// selection still falls through and Get always has a backend to return.
func safeBuild(ctx context.Context, build Factory) (b store.Backend, err error) {
	defer func() {
		if r := recover(); r != nil {
			b, err = nil, fmt.Errorf("backend factory panicked: %v", r)
		}
	}()
	return build(ctx)
}

// Close releases the selected backend, if one was ever built.
func (p *Provider) Close() error {
	b, ok := p.Selected()
	if !ok {
		return nil
	}
	return b.Close()
}
