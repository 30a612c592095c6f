package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/MrSnakeDoc/blink/internal/domain"
	"github.com/MrSnakeDoc/blink/internal/store"
	"github.com/MrSnakeDoc/blink/internal/store/storetest"
)

func newTestStore(t *testing.T, opts Options) *Store {
	t.Helper()
	if opts.Path == "" {
		opts.Path = filepath.Join(t.TempDir(), "blink.db")
	}
	s, err := Open(opts)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func countRows(t *testing.T, s *Store) int64 {
	t.Helper()
	var n int64
	if err := s.db.Model(&pasteRow{}).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T, clock store.Clock) store.Backend {
		s, err := Open(Options{Path: filepath.Join(t.TempDir(), "blink.db"), Clock: clock})
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		return s
	})
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	if _, err := Open(Options{}); err == nil {
		t.Fatal("Open() with empty path succeeded")
	}
}

func TestRowsSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blink.db")
	ctx := context.Background()

	first, err := Open(Options{Path: path})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	id, err := first.Create(ctx, domain.CreateOptions{Content: "persisted", MaxViews: domain.Int64(2)})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := first.Fetch(ctx, id, domain.NowMillis()); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	second := newTestStore(t, Options{Path: path})
	p, err := second.Fetch(ctx, id, domain.NowMillis())
	if err != nil {
		t.Fatalf("Fetch() after reopen error = %v", err)
	}
	if p.Content != "persisted" || *p.ViewsRemaining != 0 {
		t.Errorf("Fetch() = %q views %d, want persisted views 0", p.Content, *p.ViewsRemaining)
	}
}

func TestNullColumnsForUnlimited(t *testing.T) {
	s := newTestStore(t, Options{})

	id, err := s.Create(context.Background(), domain.CreateOptions{Content: "x"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	var row pasteRow
	if err := s.db.Where("id = ?", id).Take(&row).Error; err != nil {
		t.Fatalf("load row: %v", err)
	}
	if row.ViewsRemaining != nil || row.ViewsInitial != nil || row.ExpiresAt != nil {
		t.Errorf("row = %+v, want NULL views and expiry", row)
	}
	if row.BlobRef != nil || row.BlobMIME != nil {
		t.Errorf("row = %+v, want NULL blob columns", row)
	}
}

func TestFetchDeletesDeadRows(t *testing.T) {
	s := newTestStore(t, Options{Clock: func() int64 { return 0 }})
	ctx := context.Background()

	spent, _ := s.Create(ctx, domain.CreateOptions{Content: "x", MaxViews: domain.Int64(1)})
	expired, _ := s.Create(ctx, domain.CreateOptions{Content: "x", TTLSeconds: domain.Int64(1)})

	if _, err := s.Fetch(ctx, spent, 0); err != nil {
		t.Fatalf("first Fetch() error = %v", err)
	}
	if got := countRows(t, s); got != 2 {
		t.Fatalf("rows = %d, want 2", got)
	}

	if _, err := s.Fetch(ctx, spent, 0); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Fetch() = %v, want ErrNotFound", err)
	}
	if _, err := s.Fetch(ctx, expired, 1001); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Fetch() = %v, want ErrNotFound", err)
	}
	if got := countRows(t, s); got != 0 {
		t.Errorf("rows = %d, want 0", got)
	}
}

func TestCreateRetriesOnCollision(t *testing.T) {
	ids := []string{"taken000", "taken000", "fresh000"}
	calls := 0
	s := newTestStore(t, Options{NewID: func() (string, error) {
		id := ids[calls]
		calls++
		return id, nil
	}})
	ctx := context.Background()

	first, err := s.Create(ctx, domain.CreateOptions{Content: "original"})
	if err != nil || first != "taken000" {
		t.Fatalf("Create() = %q, %v", first, err)
	}

	second, err := s.Create(ctx, domain.CreateOptions{Content: "second"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if second != "fresh000" {
		t.Errorf("Create() = %q, want fresh000", second)
	}

	p, err := s.Fetch(ctx, "taken000", 0)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if p.Content != "original" {
		t.Errorf("Content = %q, existing row was overwritten", p.Content)
	}
}

func TestCreateGivesUpAfterMaxAttempts(t *testing.T) {
	s := newTestStore(t, Options{NewID: func() (string, error) { return "same0000", nil }})
	ctx := context.Background()

	if _, err := s.Create(ctx, domain.CreateOptions{Content: "x"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	_, err := s.Create(ctx, domain.CreateOptions{Content: "y"})
	if !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Errorf("Create() = %v, want ErrStorageUnavailable", err)
	}
}

func TestClosedStore(t *testing.T) {
	s, err := Open(Options{Path: filepath.Join(t.TempDir(), "blink.db")})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	ctx := context.Background()
	if !s.Health(ctx) {
		t.Fatal("Health() = false on open store")
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if s.Health(ctx) {
		t.Error("Health() = true after Close")
	}
	if _, err := s.Fetch(ctx, "anything", 0); !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Errorf("Fetch() = %v, want ErrStorageUnavailable", err)
	}
	if _, err := s.Create(ctx, domain.CreateOptions{Content: "x"}); !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Errorf("Create() = %v, want ErrStorageUnavailable", err)
	}
}
