package mw

import (
	"net/http"

	"github.com/MrSnakeDoc/blink/internal/logger"
	"github.com/MrSnakeDoc/blink/internal/utils"
)

// AllowOnlyCIDRS guards operator endpoints (readiness, infra, sweep) with
// an IP/CIDR allow-list. An empty or unusable list leaves them open.
// trustProxy should be true when running behind a trusted reverse proxy/tunnel (e.g., cloudflared).
func AllowOnlyCIDRS(allowed []string, trustProxy bool, log logger.Logger) func(http.Handler) http.Handler {
	m := utils.NewIPMatcher(allowed)
	if m.IsEmpty() {
		if len(allowed) > 0 {
			log.Warn("no usable CIDR rule, operator endpoints are open",
				logger.Int("configured", len(allowed)))
		}
		return func(next http.Handler) http.Handler { return next }
	}

	log.Debug("operator endpoints restricted",
		logger.Int("rules", m.Len()),
		logger.Bool("trust_proxy", trustProxy))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := utils.ClientIP(r, trustProxy)
			if !m.Allow(ip) {
				log.Warn("operator endpoint denied",
					logger.String("client_ip", ip),
					logger.String("path", r.URL.Path))
				reject(w, http.StatusForbidden, "Forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
