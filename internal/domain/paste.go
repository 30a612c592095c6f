package domain

import "time"

// Kind tells readers how to interpret Paste.Content.
type Kind string

const (
	KindText Kind = "text"
	KindBlob Kind = "blob"
	KindURL  Kind = "url"
)

// Paste is a single stored item.
//
// Everything except ViewsRemaining is written once at creation.
// Timestamps are epoch milliseconds so the caller-supplied clock
// compares exactly across every backend.
type Paste struct {
	// ─────────────────────────────
	// Identity (immutable)
	// ─────────────────────────────

	// ID is an opaque URL-safe token assigned at creation.
	ID string `json:"id" msgpack:"id"`

	// ─────────────────────────────
	// Payload (immutable)
	// ─────────────────────────────

	// Content is literal text, a caption for a blob, or a URL.
	Content string `json:"content" msgpack:"content"`

	Kind Kind `json:"type" msgpack:"kind"`

	// BlobRef locates externally stored bytes. Only set for KindBlob.
	BlobRef  string `json:"blob_ref,omitempty" msgpack:"blob_ref,omitempty"`
	BlobMIME string `json:"blob_mime,omitempty" msgpack:"blob_mime,omitempty"`

	// ─────────────────────────────
	// View budget
	// ─────────────────────────────

	// ViewsRemaining is nil for an unlimited budget.
	// It only ever decreases and never goes below zero.
	ViewsRemaining *int64 `json:"views_remaining" msgpack:"-"`

	// ViewsInitial is the configured budget, kept for diagnostics.
	ViewsInitial *int64 `json:"views_initial" msgpack:"views_initial"`

	// ─────────────────────────────
	// Lifetime (immutable)
	// ─────────────────────────────

	// ExpiresAt is nil when the paste never expires.
	ExpiresAt *int64 `json:"expires_at" msgpack:"expires_at"`

	CreatedAt int64 `json:"created_at" msgpack:"created_at"`
}

// NewPaste builds a record from creation options.
// opts must already be validated.
func NewPaste(id string, opts CreateOptions, createdAt int64) *Paste {
	kind := opts.Kind
	if kind == "" {
		kind = KindText
	}

	p := &Paste{
		ID:        id,
		Content:   opts.Content,
		Kind:      kind,
		CreatedAt: createdAt,
	}

	if kind == KindBlob {
		p.BlobRef = opts.BlobRef
		p.BlobMIME = opts.BlobMIME
	}

	if opts.MaxViews != nil {
		p.ViewsRemaining = Int64(*opts.MaxViews)
		p.ViewsInitial = Int64(*opts.MaxViews)
	}

	if opts.TTLSeconds != nil && *opts.TTLSeconds > 0 {
		p.ExpiresAt = Int64(createdAt + *opts.TTLSeconds*1000)
	}

	return p
}

// Unlimited reports whether reads never consume the budget.
func (p *Paste) Unlimited() bool {
	return p.ViewsRemaining == nil
}

// ExpiredAt reports whether the paste is past its TTL at now.
// A read exactly at ExpiresAt is still allowed.
func (p *Paste) ExpiredAt(now int64) bool {
	return p.ExpiresAt != nil && now > *p.ExpiresAt
}

// Exhausted reports whether the view budget is spent.
func (p *Paste) Exhausted() bool {
	return p.ViewsRemaining != nil && *p.ViewsRemaining <= 0
}

// Clone returns a deep copy, so snapshots handed to callers never alias
// backend-owned state.
func (p *Paste) Clone() *Paste {
	if p == nil {
		return nil
	}
	c := *p
	c.ViewsRemaining = cloneInt64(p.ViewsRemaining)
	c.ViewsInitial = cloneInt64(p.ViewsInitial)
	c.ExpiresAt = cloneInt64(p.ExpiresAt)
	return &c
}

// Int64 returns a pointer to v.
func Int64(v int64) *int64 { return &v }

func cloneInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	return Int64(*v)
}

// Millis converts t to epoch milliseconds.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}

// NowMillis is the default creation clock.
func NowMillis() int64 {
	return Millis(time.Now())
}
