package sqlite

import (
	"context"
	"errors"
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/MrSnakeDoc/blink/internal/domain"
	"github.com/MrSnakeDoc/blink/internal/idgen"
	"github.com/MrSnakeDoc/blink/internal/store"
)

const (
	// DefaultBusyTimeoutMs is how long a connection waits on SQLite's
	// write lock before giving up.
	DefaultBusyTimeoutMs = 5000

	// DefaultMaxOpenConns sizes the database/sql pool.
	DefaultMaxOpenConns = 4

	sweepBatchSize = 500
)

// Store keeps pastes in an embedded SQLite database.
//
// Fetch runs in one transaction whose first statement is the
// conditional decrement, so SQLite's write lock is held before anything
// is read. Concurrent fetches queue on that lock (busy_timeout) and each
// sees the value left by the previous one.
type Store struct {
	db *gorm.DB

	now   store.Clock
	newID idgen.Generator
}

var (
	_ store.Backend = (*Store)(nil)
	_ store.Sweeper = (*Store)(nil)
)

// Options configures Open.
type Options struct {
	Path          string // database file, created if missing
	BusyTimeoutMs int
	MaxOpenConns  int
	Clock         store.Clock
	NewID         idgen.Generator
}

// Open opens (and migrates) the database at opts.Path.
// Path must name a file: each pooled connection to ":memory:" would
// get its own private database.
func Open(opts Options) (*Store, error) {
	if opts.Path == "" {
		return nil, errors.New("sqlite path is empty")
	}
	if opts.BusyTimeoutMs <= 0 {
		opts.BusyTimeoutMs = DefaultBusyTimeoutMs
	}
	if opts.MaxOpenConns <= 0 {
		opts.MaxOpenConns = DefaultMaxOpenConns
	}

	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)",
		opts.Path, opts.BusyTimeoutMs)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 gormlogger.Discard,
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite %s: %w", opts.Path, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sqlite handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(opts.MaxOpenConns)

	if err := db.AutoMigrate(&pasteRow{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate sqlite schema: %w", err)
	}

	s := &Store{db: db, now: opts.Clock, newID: opts.NewID}
	if s.now == nil {
		s.now = domain.NowMillis
	}
	if s.newID == nil {
		s.newID = idgen.New
	}
	return s, nil
}

func (s *Store) Name() string { return "sqlite" }

// Create inserts a new row, regenerating the id on a primary-key clash.
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

		row := rowFromPaste(domain.NewPaste(id, opts, createdAt))
		res := s.db.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&row)
		if res.Error != nil {
			return "", domain.Unavailable("create", res.Error)
		}
		if res.RowsAffected == 1 {
			return id, nil
		}
	}

	return "", domain.Unavailable("create", fmt.Errorf("no free id after %d attempts", store.MaxIDAttempts))
}

// Fetch resolves a read at now inside a single transaction.
func (s *Store) Fetch(ctx context.Context, id string, now int64) (*domain.Paste, error) {
	var out *domain.Paste

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Write first: this takes the database write lock, so no other
		// transaction can decrement between our check and our read.
		dec := tx.Model(&pasteRow{}).
			Where("id = ? AND views_remaining > 0 AND (expires_at IS NULL OR expires_at >= ?)", id, now).
			UpdateColumn("views_remaining", gorm.Expr("views_remaining - 1"))
		if dec.Error != nil {
			return dec.Error
		}

		var row pasteRow
		err := tx.Where("id = ?", id).Take(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		p := row.toPaste()
		if dec.RowsAffected == 1 {
			out = p
			return nil
		}

		// Nothing decremented: the paste is unlimited, expired or spent.
		if p.ExpiredAt(now) || p.Exhausted() {
			return tx.Delete(&pasteRow{}, "id = ?", id).Error
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, domain.Unavailable("fetch", err)
	}
	if out == nil {
		return nil, domain.ErrNotFound
	}
	return out, nil
}

// Health runs a trivial query.
func (s *Store) Health(ctx context.Context) bool {
	var one int
	if err := s.db.WithContext(ctx).Raw("SELECT 1").Scan(&one).Error; err != nil {
		return false
	}
	return one == 1
}

// Sweep deletes pastes that are expired or spent at now.
func (s *Store) Sweep(ctx context.Context, now int64) (store.Swept, error) {
	const dead = "(expires_at IS NOT NULL AND expires_at < ?) OR (views_remaining IS NOT NULL AND views_remaining <= 0)"

	var res store.Swept
	for {
		var batch []pasteRow
		err := s.db.WithContext(ctx).
			Select("id", "blob_ref").
			Where(dead, now).
			Limit(sweepBatchSize).
			Find(&batch).Error
		if err != nil {
			return res, domain.Unavailable("sweep", err)
		}
		if len(batch) == 0 {
			return res, nil
		}

		ids := make([]string, len(batch))
		for i, row := range batch {
			ids[i] = row.ID
		}

		// Dead rows stay dead, so re-checking the condition only skips
		// rows a concurrent Fetch already deleted.
		del := s.db.WithContext(ctx).Where("id IN ?", ids).Where(dead, now).Delete(&pasteRow{})
		if del.Error != nil {
			return res, domain.Unavailable("sweep", del.Error)
		}
		res.Count += int(del.RowsAffected)
		for _, row := range batch {
			if row.BlobRef != nil && *row.BlobRef != "" {
				res.BlobRefs = append(res.BlobRefs, *row.BlobRef)
			}
		}

		if len(batch) < sweepBatchSize {
			return res, nil
		}
	}
}

// Close closes the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
