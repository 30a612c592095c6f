package mw

import (
	"net/http"
	"strings"

	"github.com/MrSnakeDoc/blink/internal/logger"
	"github.com/MrSnakeDoc/blink/internal/utils"
)

// hostPattern is one normalized entry of BLINK_ALLOWED_HOSTS.
type hostPattern struct {
	host     string // lowercased, port kept only when the entry had one
	wildcard bool   // "*.example.com": any subdomain, not the apex
	withPort bool
}

func parseHostPatterns(list []string) []hostPattern {
	out := make([]hostPattern, 0, len(list))
	for _, raw := range list {
		s := strings.ToLower(strings.TrimSpace(raw))
		if s == "" {
			continue
		}
		p := hostPattern{withPort: strings.Contains(s, ":")}
		if rest, ok := strings.CutPrefix(s, "*."); ok {
			p.wildcard = true
			s = rest
		}
		p.host = s
		out = append(out, p)
	}
	return out
}

func (p hostPattern) match(host string) bool {
	if !p.withPort {
		host = utils.ParseHostNoPort(host)
	}
	if p.wildcard {
		return strings.HasSuffix(host, "."+p.host)
	}
	return host == p.host
}

// EnforceHost rejects requests whose Host header matches none of
// allowedHosts. Entries are case-insensitive. An entry without a port
// matches any port, and "*.example.com" matches subdomains only.
// If allowedHosts is empty, it acts as a passthrough.
func EnforceHost(allowedHosts []string, log logger.Logger) func(http.Handler) http.Handler {
	patterns := parseHostPatterns(allowedHosts)
	if len(patterns) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	log.Debug("host allow-list enabled", logger.Int("patterns", len(patterns)))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			host := strings.ToLower(r.Host)
			for _, p := range patterns {
				if p.match(host) {
					next.ServeHTTP(w, r)
					return
				}
			}

			log.Debug("host rejected", logger.String("host", r.Host))
			reject(w, http.StatusForbidden, "Unknown host")
		})
	}
}
