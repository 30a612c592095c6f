package deps

import (
	"time"

	"github.com/MrSnakeDoc/blink/internal/blob"
	"github.com/MrSnakeDoc/blink/internal/logger"
	"github.com/MrSnakeDoc/blink/internal/store/selector"
)

type Deps struct {
	Logger          logger.Logger
	StartTime       time.Time
	Version         string
	Commit          string
	BuildDate       string
	GoVersion       string
	TimeNow         func() time.Time   // for testing, defaults to time.Now
	AllowedHosts    []string           // Host headers allowed to access the server
	AllowedCIDRS    []string           // IPs allowed to access readyz/infra/sweep endpoints
	TrustProxy      bool               // true if running behind a trusted reverse proxy (e.g., cloudflared)
	Backends        *selector.Provider // lazily selected paste backend
	Blobs           *blob.Store        // uploaded files
	TestMode        bool               // honour X-Test-Now-Ms on reads
	PublicBaseURL   string             // prefix for share links (empty = derived from request)
	CreateRateLimit int                // paste creations per client IP per minute (0 = unlimited)
	RequestTimeout  time.Duration      // deadline for JSON endpoints
	UploadTimeout   time.Duration      // deadline for binary uploads
	SweepTrigger    chan struct{}      // Channel to trigger a manual sweep (nil if the reaper is disabled)
}
