package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func resetFileValues(t *testing.T) {
	t.Helper()
	fileValues = nil
	t.Cleanup(func() { fileValues = nil })
}

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "blink.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	resetFileValues(t)

	cfg := Load()

	if cfg.ListenPort != ":8080" {
		t.Errorf("ListenPort = %q, want :8080", cfg.ListenPort)
	}
	if cfg.RedisAddr != "" {
		t.Errorf("RedisAddr = %q, want empty", cfg.RedisAddr)
	}
	if cfg.SQLitePath != "data/blink.db" {
		t.Errorf("SQLitePath = %q", cfg.SQLitePath)
	}
	if cfg.TestMode {
		t.Error("TestMode = true, want false")
	}
	if cfg.RedisKeyGrace != time.Minute {
		t.Errorf("RedisKeyGrace = %v, want 1m", cfg.RedisKeyGrace)
	}
	if cfg.AllowedCIDRS != nil {
		t.Errorf("AllowedCIDRS = %v, want nil", cfg.AllowedCIDRS)
	}
}

func TestLoadFromEnv(t *testing.T) {
	resetFileValues(t)
	t.Setenv("BLINK_REDIS_ADDR", "redis:6379")
	t.Setenv("BLINK_BACKEND", "sqlite")
	t.Setenv("BLINK_TEST_MODE", "true")
	t.Setenv("BLINK_ALLOWED_CIDRS", "10.0.0.0/8, '127.0.0.1'")
	t.Setenv("BLINK_PUBLIC_BASE_URL", "https://blink.domain.ext/")
	t.Setenv("REDIS_CONNECT_TIMEOUT", "30s")

	cfg := Load()

	if cfg.RedisAddr != "redis:6379" || cfg.Backend != "sqlite" || !cfg.TestMode {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.RedisConnectTimeout != 30*time.Second {
		t.Errorf("RedisConnectTimeout = %v, want 30s", cfg.RedisConnectTimeout)
	}
	if len(cfg.AllowedCIDRS) != 2 || cfg.AllowedCIDRS[1] != "127.0.0.1" {
		t.Errorf("AllowedCIDRS = %v", cfg.AllowedCIDRS)
	}
	if cfg.PublicBaseURL != "https://blink.domain.ext" {
		t.Errorf("PublicBaseURL = %q, want trailing slash trimmed", cfg.PublicBaseURL)
	}
}

func TestLoadFileOverlay(t *testing.T) {
	resetFileValues(t)
	path := writeConfigFile(t, `
listen_port: ":9090"
redis_addr: from-file:6379
REDIS_POOL_SIZE: 42
blink_test_mode: true
`)
	t.Setenv("BLINK_CONFIG_FILE", path)
	t.Setenv("BLINK_REDIS_ADDR", "from-env:6379")

	cfg := Load()

	if cfg.ListenPort != ":9090" {
		t.Errorf("ListenPort = %q, want :9090", cfg.ListenPort)
	}
	if cfg.RedisAddr != "from-env:6379" {
		t.Errorf("RedisAddr = %q, env should win over file", cfg.RedisAddr)
	}
	if cfg.RedisPoolSize != 42 {
		t.Errorf("RedisPoolSize = %d, want 42", cfg.RedisPoolSize)
	}
	if !cfg.TestMode {
		t.Error("TestMode = false, want true from file")
	}
}

func TestLoadPanics(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{
			name: "unknown backend",
			env:  map[string]string{"BLINK_BACKEND": "postgres"},
		},
		{
			name: "missing config file",
			env:  map[string]string{"BLINK_CONFIG_FILE": "/nonexistent/blink.yaml"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetFileValues(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			defer func() {
				if r := recover(); r == nil {
					t.Errorf("Load() should have panicked")
				}
			}()
			Load()
		})
	}
}

func TestLoadFileRejectsInvalidYAML(t *testing.T) {
	path := writeConfigFile(t, "listen_port: [unclosed")
	if _, err := loadFile(path); err == nil {
		t.Error("loadFile() should fail on invalid yaml")
	}
}

func TestSplitAndTrim(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{name: "empty", input: "", expected: nil},
		{name: "single", input: "10.0.0.0/8", expected: []string{"10.0.0.0/8"}},
		{name: "spaces and quotes", input: ` "a" , 'b',c `, expected: []string{"a", "b", "c"}},
		{name: "empty parts dropped", input: "a,,b,", expected: []string{"a", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := splitAndTrim(tt.input)
			if len(result) != len(tt.expected) {
				t.Fatalf("splitAndTrim() = %v, want %v", result, tt.expected)
			}
			for i := range result {
				if result[i] != tt.expected[i] {
					t.Errorf("splitAndTrim()[%d] = %v, want %v", i, result[i], tt.expected[i])
				}
			}
		})
	}
}

func TestMustDuration(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		value    string
		def      time.Duration
		expected time.Duration
	}{
		{
			name:     "valid duration",
			key:      "TEST_DURATION",
			value:    "5s",
			def:      1 * time.Second,
			expected: 5 * time.Second,
		},
		{
			name:     "invalid duration uses default",
			key:      "TEST_DURATION_INVALID",
			value:    "invalid",
			def:      10 * time.Second,
			expected: 10 * time.Second,
		},
		{
			name:     "missing variable uses default",
			key:      "TEST_DURATION_MISSING",
			value:    "",
			def:      15 * time.Second,
			expected: 15 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value != "" {
				t.Setenv(tt.key, tt.value)
			}

			result := mustDuration(tt.key, tt.def)
			if result != tt.expected {
				t.Errorf("mustDuration() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestMustBool(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		value    string
		def      bool
		expected bool
	}{
		{name: "true value", key: "TEST_BOOL", value: "true", def: false, expected: true},
		{name: "false value", key: "TEST_BOOL_FALSE", value: "false", def: true, expected: false},
		{name: "invalid value uses default", key: "TEST_BOOL_INVALID", value: "invalid", def: true, expected: true},
		{name: "missing variable uses default", key: "TEST_BOOL_MISSING", value: "", def: false, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value != "" {
				t.Setenv(tt.key, tt.value)
			}

			result := mustBool(tt.key, tt.def)
			if result != tt.expected {
				t.Errorf("mustBool() = %v, want %v", result, tt.expected)
			}
		})
	}
}
