package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s
	RequestTimeout  time.Duration // per-request deadline for JSON endpoints
	UploadTimeout   time.Duration // per-request deadline for binary uploads
	PublicBaseURL   string        // optional, ex: "https://blink.domain.ext" (default: derived from request)

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	// Storage selection
	Backend      string        // optional pin: "redis" | "sqlite" | "memory"
	SQLitePath   string        // SQLite database file, created if missing
	UploadDir    string        // directory for blob uploads
	MaxUploadMB  int           // max size of one upload, in MiB (0 = no limit)
	ReapInterval time.Duration // interval to purge dead pastes (0 = disabled)
	TestMode     bool          // true => honour X-Test-Now-Ms on reads

	// Redis
	RedisAddr           string        // ex: "localhost:6379" (empty = redis disabled)
	RedisUser           string        // optional
	RedisPassword       string        // optional
	RedisDB             int           // Redis DB number
	RedisDT             time.Duration // Redis dial timeout (ex: 5s)
	RedisRT             time.Duration // Redis read timeout (ex: 3s)
	RedisWT             time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait        time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout    time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize       int           // Redis connection pool size
	RedisConnectTimeout time.Duration // Total time to retry connecting (ex: 10s)
	RedisRetryInterval  time.Duration // Initial wait between retries (ex: 500ms, grows exponentially)
	RedisKeyGrace       time.Duration // extra lifetime of a Redis key past the paste expiry

	// Access restrictions
	AllowedHosts    []string // optional, restrict access to specific Host headers (e.g. "blink.domain.ext, *.domain.ext")
	AllowedCIDRS    []string // optional, restrict /readyz and /api/infra (e.g. "10.0.0.0/8, 127.0.0.1")
	TrustProxy      bool     // true => trust X-Forwarded-For headers (e.g. cloudflared)
	CreateRateLimit int      // paste creations per client IP per minute (0 = unlimited)
}

// fileValues holds the settings read from BLINK_CONFIG_FILE.
// Environment variables take precedence over them.
var fileValues map[string]string

func Load() *Config {
	if path := os.Getenv("BLINK_CONFIG_FILE"); path != "" {
		values, err := loadFile(path)
		if err != nil {
			panic(fmt.Sprintf("❌ FATAL: %v", err))
		}
		fileValues = values
	}

	cfg := &Config{
		// Server settings
		ListenPort:      getenv("BLINK_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("BLINK_SHUTDOWN_TIMEOUT", 5*time.Second),
		RequestTimeout:  mustDuration("BLINK_REQUEST_TIMEOUT", 5*time.Second),
		UploadTimeout:   mustDuration("BLINK_UPLOAD_TIMEOUT", 10*time.Minute),
		PublicBaseURL:   strings.TrimRight(getenv("BLINK_PUBLIC_BASE_URL", ""), "/"),

		// Logging
		LogLevel:  getenv("BLINK_LOG_LEVEL", "info"),
		PrettyLog: mustBool("BLINK_PRETTY_LOG", true),

		// Storage
		Backend:      getenv("BLINK_BACKEND", ""),
		SQLitePath:   getenv("BLINK_SQLITE_PATH", "data/blink.db"),
		UploadDir:    getenv("BLINK_UPLOAD_DIR", "data/uploads"),
		MaxUploadMB:  getenvInt("BLINK_MAX_UPLOAD_MB", 512),
		ReapInterval: mustDuration("BLINK_REAP_INTERVAL", 5*time.Minute),
		TestMode:     mustBool("BLINK_TEST_MODE", false),

		// Redis settings
		RedisAddr:           getenv("BLINK_REDIS_ADDR", ""),
		RedisUser:           getenv("BLINK_REDIS_USERNAME", ""),
		RedisPassword:       getenv("BLINK_REDIS_PASSWORD", ""),
		RedisDB:             getenvInt("BLINK_REDIS_DB", 0),
		RedisDT:             mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:             mustDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:             mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:        mustDuration("REDIS_MAX_WAIT", 5*time.Second),
		RedisPingTimeout:    mustDuration("REDIS_PING_TIMEOUT", 2*time.Second),
		RedisPoolSize:       getenvInt("REDIS_POOL_SIZE", 10),
		RedisConnectTimeout: mustDuration("REDIS_CONNECT_TIMEOUT", 10*time.Second),
		RedisRetryInterval:  mustDuration("REDIS_RETRY_INTERVAL", 500*time.Millisecond),
		RedisKeyGrace:       mustDuration("REDIS_KEY_GRACE", time.Minute),

		// Access restrictions
		AllowedHosts:    splitAndTrim(getenv("BLINK_ALLOWED_HOSTS", "")),
		AllowedCIDRS:    parseAllowedIPs(getenv("BLINK_ALLOWED_CIDRS", "")),
		TrustProxy:      mustBool("BLINK_TRUST_PROXY", false),
		CreateRateLimit: getenvInt("BLINK_CREATE_RATE_LIMIT", 30),
	}

	switch strings.ToLower(cfg.Backend) {
	case "", "redis", "sqlite", "memory":
	default:
		panic(fmt.Sprintf("❌ FATAL: BLINK_BACKEND must be redis, sqlite or memory, got %q", cfg.Backend))
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		if cfgCopy.RedisPassword != "" {
			cfgCopy.RedisPassword = "***REDACTED***"
		}
		if cfg.RedisUser != "" {
			cfgCopy.RedisUser = "***REDACTED***"
		}
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

// loadFile reads a flat YAML mapping of settings. Keys are environment
// variable names, case-insensitive, with or without the BLINK_ prefix:
//
//	listen_port: ":9090"
//	redis_addr: redis:6379
//	REDIS_CONNECT_TIMEOUT: 30s
func loadFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var raw map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config yaml: %w", err)
	}

	values := make(map[string]string, len(raw)*2)
	for k, v := range raw {
		key := strings.ToUpper(strings.TrimSpace(k))
		values[key] = v
		if !strings.HasPrefix(key, "BLINK_") {
			values["BLINK_"+key] = v
		}
	}
	return values, nil
}

// helpers
func lookup(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fileValues[key]
}

func getenv(key, def string) string {
	if v := lookup(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := lookup(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := lookup(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := lookup(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func parseAllowedIPs(allowed string) []string {
	if allowed == "" {
		return nil
	}
	ips := make([]string, 0, 4)
	for _, ip := range splitAndTrim(allowed) {
		if ip != "" {
			ips = append(ips, ip)
		}
	}
	return ips
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
