package sqlite

import "github.com/MrSnakeDoc/blink/internal/domain"

// pasteRow is the GORM mapping of a paste. NULL columns carry the
// "unlimited" and "never" sentinels.
type pasteRow struct {
	ID             string  `gorm:"column:id;type:TEXT NOT NULL;primaryKey"`
	Content        string  `gorm:"column:content;type:TEXT NOT NULL"`
	Kind           string  `gorm:"column:kind;type:TEXT NOT NULL;default:text"`
	BlobRef        *string `gorm:"column:blob_ref;type:TEXT"`
	BlobMIME       *string `gorm:"column:blob_mime;type:TEXT"`
	ViewsRemaining *int64  `gorm:"column:views_remaining;type:INTEGER"`
	ViewsInitial   *int64  `gorm:"column:views_initial;type:INTEGER"`
	ExpiresAt      *int64  `gorm:"column:expires_at;type:INTEGER;index"`
	CreatedAt      int64   `gorm:"column:created_at;type:INTEGER NOT NULL;autoCreateTime:false"`
}

// TableName implements the GORM tabler interface.
func (pasteRow) TableName() string { return "pastes" }

func rowFromPaste(p *domain.Paste) pasteRow {
	return pasteRow{
		ID:             p.ID,
		Content:        p.Content,
		Kind:           string(p.Kind),
		BlobRef:        optString(p.BlobRef),
		BlobMIME:       optString(p.BlobMIME),
		ViewsRemaining: p.ViewsRemaining,
		ViewsInitial:   p.ViewsInitial,
		ExpiresAt:      p.ExpiresAt,
		CreatedAt:      p.CreatedAt,
	}
}

func (r pasteRow) toPaste() *domain.Paste {
	p := &domain.Paste{
		ID:             r.ID,
		Content:        r.Content,
		Kind:           domain.Kind(r.Kind),
		ViewsRemaining: r.ViewsRemaining,
		ViewsInitial:   r.ViewsInitial,
		ExpiresAt:      r.ExpiresAt,
		CreatedAt:      r.CreatedAt,
	}
	if r.BlobRef != nil {
		p.BlobRef = *r.BlobRef
	}
	if r.BlobMIME != nil {
		p.BlobMIME = *r.BlobMIME
	}
	return p
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
