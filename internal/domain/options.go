package domain

import (
	"fmt"
	"strings"
)

const (
	// MaxContentBytes caps the text payload of a single paste.
	MaxContentBytes = 1 << 20

	// MaxTTLSeconds caps ttl_seconds at ten years. It keeps
	// created_at + ttl in epoch milliseconds, and the same TTL as a
	// time.Duration, far from int64 overflow.
	MaxTTLSeconds int64 = 10 * 365 * 24 * 60 * 60
)

// CreateOptions are the caller-supplied creation parameters.
// Nil pointers mean "not provided".
type CreateOptions struct {
	Content    string
	Kind       Kind
	BlobRef    string
	BlobMIME   string
	TTLSeconds *int64
	MaxViews   *int64
}

// Validate rejects malformed options before they reach a backend.
// Every failure wraps ErrInvalidInput.
func (o CreateOptions) Validate() error {
	kind := o.Kind
	if kind == "" {
		kind = KindText
	}

	switch kind {
	case KindText, KindURL:
		if strings.TrimSpace(o.Content) == "" {
			return invalid("content is required")
		}
		if o.BlobRef != "" {
			return invalid("blob_ref is only allowed for blob pastes")
		}
	case KindBlob:
		if o.BlobRef == "" {
			return invalid("blob_ref is required for blob pastes")
		}
	default:
		return invalid(fmt.Sprintf("unknown kind %q", o.Kind))
	}

	if len(o.Content) > MaxContentBytes {
		return invalid(fmt.Sprintf("content exceeds %d bytes", MaxContentBytes))
	}

	if o.TTLSeconds != nil && *o.TTLSeconds > MaxTTLSeconds {
		return invalid(fmt.Sprintf("ttl_seconds must be <= %d", MaxTTLSeconds))
	}

	if o.MaxViews != nil && *o.MaxViews < 1 {
		return invalid("max_views must be >= 1")
	}

	return nil
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, msg)
}
