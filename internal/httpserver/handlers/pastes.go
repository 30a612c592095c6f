package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/blink/internal/domain"
	"github.com/MrSnakeDoc/blink/internal/httpserver/deps"
	"github.com/MrSnakeDoc/blink/internal/logger"
)

const (
	// MetaHeader carries the JSON metadata of a binary upload.
	MetaHeader = "X-Paste-Meta"

	// TestNowHeader overrides the read clock when test mode is on.
	TestNowHeader = "X-Test-Now-Ms"

	// JSON escaping can inflate content up to 6x.
	maxJSONBody = 6*domain.MaxContentBytes + 4096
)

// optionalInt accepts a JSON number, a numeric string or null.
// Zero is treated as absent.
type optionalInt struct {
	v *int64
}

func (o *optionalInt) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" || s == `""` {
		o.v = nil
		return nil
	}
	s = strings.Trim(s, `"`)

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || f != float64(int64(f)) {
			return fmt.Errorf("not an integer: %s", s)
		}
		n = int64(f)
	}
	if n == 0 {
		o.v = nil
		return nil
	}
	o.v = &n
	return nil
}

type createRequest struct {
	Content    string      `json:"content"`
	Type       string      `json:"type"`
	TTLSeconds optionalInt `json:"ttl_seconds"`
	MaxViews   optionalInt `json:"max_views"`
}

type uploadMeta struct {
	Content    string      `json:"content"`
	Extension  string      `json:"extension"`
	MIMEType   string      `json:"mime_type"`
	TTLSeconds optionalInt `json:"ttl_seconds"`
	MaxViews   optionalInt `json:"max_views"`
}

type createResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type pasteResponse struct {
	ID             string      `json:"id"`
	Content        string      `json:"content"`
	Type           domain.Kind `json:"type"`
	BlobURL        string      `json:"blob_url,omitempty"`
	MIMEType       string      `json:"mime_type,omitempty"`
	RemainingViews *int64      `json:"remaining_views"`
	ExpiresAt      *string     `json:"expires_at"`
	CreatedAt      string      `json:"created_at"`
}

// CreatePaste accepts either a JSON text/URL paste or a raw binary body
// described by the X-Paste-Meta header.
func CreatePaste(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

		switch {
		case mediaType == "application/json":
			createFromJSON(w, r, d)
		case isBinary(mediaType):
			createFromUpload(w, r, d)
		default:
			writeError(w, http.StatusUnsupportedMediaType, "Unsupported Content-Type")
		}
	}
}

func isBinary(mediaType string) bool {
	switch {
	case mediaType == "multipart/form-data":
		return true
	case strings.HasPrefix(mediaType, "application/"),
		strings.HasPrefix(mediaType, "image/"),
		strings.HasPrefix(mediaType, "video/"),
		strings.HasPrefix(mediaType, "audio/"):
		return true
	}
	return false
}

func createFromJSON(w http.ResponseWriter, r *http.Request, d deps.Deps) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Content too large")
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	opts := domain.CreateOptions{
		Content:    req.Content,
		Kind:       domain.Kind(req.Type),
		TTLSeconds: req.TTLSeconds.v,
		MaxViews:   req.MaxViews.v,
	}
	if err := opts.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := d.Backends.Get(r.Context()).Create(r.Context(), opts)
	if err != nil {
		writeStoreError(w, d, "create", err)
		return
	}

	// Ids and the names of live blobs grant access, so they are never logged.
	d.Logger.Info("paste created", logger.String("type", string(opts.Kind)))

	writeJSON(w, http.StatusCreated, createResponse{ID: id, URL: shareURL(r, d, id)})
}

func createFromUpload(w http.ResponseWriter, r *http.Request, d deps.Deps) {
	raw := r.Header.Get(MetaHeader)
	if raw == "" {
		writeError(w, http.StatusBadRequest, "Missing "+MetaHeader+" header for streaming upload.")
		return
	}

	var meta uploadMeta
	if err := json.NewDecoder(bytes.NewReader([]byte(raw))).Decode(&meta); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid "+MetaHeader+" header JSON.")
		return
	}
	if r.Body == nil || r.Body == http.NoBody {
		writeError(w, http.StatusBadRequest, "No file body.")
		return
	}

	// Reject bad metadata before any byte hits the disk.
	opts := domain.CreateOptions{
		Content:    meta.Content,
		Kind:       domain.KindBlob,
		BlobRef:    "pending",
		TTLSeconds: meta.TTLSeconds.v,
		MaxViews:   meta.MaxViews.v,
	}
	if err := opts.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	ref, err := d.Blobs.Save(ctx, r.Body, meta.Extension, meta.MIMEType)
	if err != nil {
		writeStoreError(w, d, "upload", err)
		return
	}

	opts.BlobRef = ref.URL
	opts.BlobMIME = ref.MIME

	id, err := d.Backends.Get(ctx).Create(ctx, opts)
	if err != nil {
		if rmErr := d.Blobs.Remove(ref.Name); rmErr != nil {
			d.Logger.Warn("failed to remove orphan blob",
				logger.String("name", ref.Name),
				logger.Error(rmErr))
		}
		writeStoreError(w, d, "create", err)
		return
	}

	d.Logger.Info("blob paste created",
		logger.String("mime", ref.MIME),
		logger.Int64("bytes", ref.Size))

	writeJSON(w, http.StatusCreated, createResponse{ID: id, URL: shareURL(r, d, id)})
}

// GetPaste consumes one view and returns the paste as JSON.
func GetPaste(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id := chi.URLParam(r, "id")

		p, err := d.Backends.Get(ctx).Fetch(ctx, id, requestNow(r, d))
		if err != nil {
			writeStoreError(w, d, "fetch", err)
			return
		}

		writeJSON(w, http.StatusOK, toResponse(p))
	}
}

func toResponse(p *domain.Paste) pasteResponse {
	resp := pasteResponse{
		ID:             p.ID,
		Content:        p.Content,
		Type:           p.Kind,
		BlobURL:        p.BlobRef,
		MIMEType:       p.BlobMIME,
		RemainingViews: p.ViewsRemaining,
		CreatedAt:      formatMillis(p.CreatedAt),
	}
	if p.ExpiresAt != nil {
		s := formatMillis(*p.ExpiresAt)
		resp.ExpiresAt = &s
	}
	return resp
}

func formatMillis(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// requestNow is the clock for a read: wall time, or X-Test-Now-Ms when
// test mode is on and the header parses.
func requestNow(r *http.Request, d deps.Deps) int64 {
	if d.TestMode {
		if v := r.Header.Get(TestNowHeader); v != "" {
			if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
				return ms
			}
		}
	}
	return domain.Millis(d.TimeNow())
}

func shareURL(r *http.Request, d deps.Deps, id string) string {
	return baseURL(r, d) + "/p/" + id
}

func baseURL(r *http.Request, d deps.Deps) string {
	if d.PublicBaseURL != "" {
		return d.PublicBaseURL
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if d.TrustProxy {
		switch proto := strings.ToLower(r.Header.Get("X-Forwarded-Proto")); proto {
		case "http", "https":
			scheme = proto
		}
	}
	return scheme + "://" + r.Host
}
