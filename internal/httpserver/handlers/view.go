package handlers

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/blink/internal/domain"
	"github.com/MrSnakeDoc/blink/internal/httpserver/deps"
)

// ViewPaste is the share link target. It consumes one view, then
// redirects URL pastes to their target, blob pastes to the stored file,
// and prints text pastes as plain text.
func ViewPaste(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id := chi.URLParam(r, "id")

		p, err := d.Backends.Get(ctx).Fetch(ctx, id, requestNow(r, d))
		if err != nil {
			writeStoreError(w, d, "view", err)
			return
		}

		w.Header().Set("Cache-Control", "no-store")
		if p.ViewsRemaining != nil {
			w.Header().Set("X-Views-Remaining", strconv.FormatInt(*p.ViewsRemaining, 10))
		}

		switch p.Kind {
		case domain.KindURL:
			if dest, ok := redirectTarget(p.Content); ok {
				d.Logger.Debug("redirecting url paste")
				http.Redirect(w, r, dest, http.StatusFound)
				return
			}
			// Not a usable URL: show it as text.
		case domain.KindBlob:
			http.Redirect(w, r, p.BlobRef, http.StatusFound)
			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(p.Content))
	}
}

// redirectTarget defaults the scheme to http:// and only allows http(s)
// targets with a host.
func redirectTarget(content string) (string, bool) {
	dest := strings.TrimSpace(content)
	lower := strings.ToLower(dest)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		dest = "http://" + dest
	}

	u, err := url.Parse(dest)
	if err != nil || u.Host == "" {
		return "", false
	}
	return u.String(), true
}
