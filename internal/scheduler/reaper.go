package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/MrSnakeDoc/blink/internal/domain"
	"github.com/MrSnakeDoc/blink/internal/logger"
	"github.com/MrSnakeDoc/blink/internal/store"
)

const (
	// DefaultReapInterval is the pause between two sweeps
	DefaultReapInterval = 5 * time.Minute
)

// BackendSource exposes the backend once it has been selected.
type BackendSource interface {
	Selected() (store.Backend, bool)
}

// BlobRemover deletes the stored file behind a BlobRef.
type BlobRemover interface {
	RemoveRef(ref string) error
}

// Reaper periodically purges expired and spent pastes from backends
// that support it. Reads never depend on it: a dead paste is already
// invisible before the reaper removes it.
type Reaper struct {
	source   BackendSource
	blobs    BlobRemover
	logger   logger.Logger
	interval time.Duration
	trigger  <-chan struct{}
	now      store.Clock

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewReaper creates a new reaper. Files of swept blob pastes are removed
// through blobs (may be nil). A send on trigger (may be nil) runs an
// immediate sweep.
func NewReaper(source BackendSource, blobs BlobRemover, log logger.Logger, interval time.Duration, trigger <-chan struct{}) *Reaper {
	if interval <= 0 {
		interval = DefaultReapInterval
	}

	return &Reaper{
		source:   source,
		blobs:    blobs,
		logger:   log,
		interval: interval,
		trigger:  trigger,
		now:      domain.NowMillis,
		stopCh:   make(chan struct{}),
	}
}

// Start runs a first sweep, then one per interval until Stop or ctx ends.
func (r *Reaper) Start(ctx context.Context) {
	if _, err := r.Collect(ctx); err != nil {
		r.logger.Warn("initial sweep failed", logger.Error(err))
	}

	ticker := time.NewTicker(r.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := r.Collect(ctx); err != nil {
					r.logger.Error("sweep failed", logger.Error(err))
				}
			case <-r.trigger:
				r.logger.Info("manual sweep triggered")
				if _, err := r.Collect(ctx); err != nil {
					r.logger.Error("manual sweep failed", logger.Error(err))
				}
			case <-r.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the reaper. Safe to call more than once.
func (r *Reaper) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
}

// Collect sweeps the selected backend once and returns how many pastes
// were removed. It does nothing until a backend has been selected, or
// when that backend cannot sweep (Redis expires keys on its own).
func (r *Reaper) Collect(ctx context.Context) (int, error) {
	b, ok := r.source.Selected()
	if !ok {
		r.logger.Debug("no backend selected yet, skipping sweep")
		return 0, nil
	}

	sw, ok := b.(store.Sweeper)
	if !ok {
		r.logger.Debug("backend does not sweep", logger.String("backend", b.Name()))
		return 0, nil
	}

	swept, err := sw.Sweep(ctx, r.now())
	if err != nil {
		return 0, err
	}

	files := r.removeBlobs(swept.BlobRefs)

	if swept.Count > 0 {
		r.logger.Info("sweep completed",
			logger.String("backend", b.Name()),
			logger.Int("removed", swept.Count),
			logger.Int("files_removed", files))
	} else {
		r.logger.Debug("nothing to sweep", logger.String("backend", b.Name()))
	}

	return swept.Count, nil
}

// removeBlobs deletes the files of swept blob pastes. A file that cannot
// be removed is logged and left behind; the sweep itself still counts.
func (r *Reaper) removeBlobs(refs []string) int {
	if r.blobs == nil {
		return 0
	}
	removed := 0
	for _, ref := range refs {
		if err := r.blobs.RemoveRef(ref); err != nil {
			r.logger.Warn("failed to remove swept blob", logger.Error(err))
			continue
		}
		removed++
	}
	return removed
}
