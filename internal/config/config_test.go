package config

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultDBPath(t *testing.T) {
	t.Run("with XDG_CACHE_HOME", func(t *testing.T) {
		t.Setenv("XDG_CACHE_HOME", "/custom/cache")

		path := DefaultDBPath()
		expected := "/custom/cache/grabber/jobs.db"
		if path != expected {
			t.Errorf("DefaultDBPath() = %q, want %q", path, expected)
		}
	})

	t.Run("without XDG_CACHE_HOME", func(t *testing.T) {
		t.Setenv("XDG_CACHE_HOME", "")

		path := DefaultDBPath()
		if !strings.HasSuffix(path, filepath.Join(".cache", "grabber", "jobs.db")) {
			t.Errorf("DefaultDBPath() = %q, want suffix .cache/grabber/jobs.db", path)
		}
	})
}

func TestExpandPath(t *testing.T) {
	home, _ := os.UserHomeDir()

	tests := []struct {
		in   string
		want string
	}{
		{"~/img", filepath.Join(home, "img")},
		{"~", home},
		{"/abs/path", "/abs/path"},
		{"relative", "relative"},
		{"~user/x", "~user/x"},
	}
	for _, tt := range tests {
		if got := ExpandPath(tt.in); got != tt.want {
			t.Errorf("ExpandPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	for _, key := range []string{
		"GRABBER_PORT", "GRABBER_DB", "GRABBER_IMAGE_DIR", "GRABBER_SCALE", "GRABBER_WORKERS",
		"GRABBER_LOG_LEVEL", "GRABBER_SECRET", "GRABBER_USER_AGENT", "GRABBER_TIMEOUT",
		"GRABBER_POLL_INTERVAL", "GRABBER_MAX_RETRIES", "GRABBER_MIN_SIDE", "GRABBER_QUALITY",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.Scale != 2 {
		t.Errorf("Scale = %v, want 2", cfg.Scale)
	}
	if cfg.ImageDir != DefaultImageDir {
		t.Errorf("ImageDir = %q, want %q", cfg.ImageDir, DefaultImageDir)
	}
	if cfg.Timeout != 10*time.Second {
		t.Errorf("Timeout = %s, want 10s", cfg.Timeout)
	}
	if len(cfg.Processors) != 1 || cfg.Processors[0].Pattern != DefaultPattern {
		t.Errorf("Processors = %+v, want default processor", cfg.Processors)
	}
}

func TestLoad_File(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
port = 9090
scale = 3.5
workers = 4
poll_interval = "2s"
image_dir = "/srv/img"

[[processor]]
name = "ml-ar"
pattern = "^https://articulo\\.mercadolibre\\.com\\.ar/"
target_dir = "/srv/ar"
scale = 1.5
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != 9090 || cfg.Scale != 3.5 || cfg.Workers != 4 {
		t.Errorf("got port=%d scale=%v workers=%d", cfg.Port, cfg.Scale, cfg.Workers)
	}
	if cfg.PollInterval != 2*time.Second {
		t.Errorf("PollInterval = %s, want 2s", cfg.PollInterval)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want default 3", cfg.MaxRetries)
	}
	if len(cfg.Processors) != 1 || cfg.Processors[0].Name != "ml-ar" || cfg.Processors[0].Scale != 1.5 {
		t.Errorf("Processors = %+v", cfg.Processors)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("port = 9090\nscale = 3\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GRABBER_PORT", "7070")
	t.Setenv("GRABBER_SCALE", "1.25")
	t.Setenv("GRABBER_IMAGE_DIR", "/tmp/out")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != 7070 || cfg.Scale != 1.25 || cfg.ImageDir != "/tmp/out" {
		t.Errorf("got port=%d scale=%v image_dir=%q", cfg.Port, cfg.Scale, cfg.ImageDir)
	}
}

func TestLoad_EnvOverridesFetchAndImageSettings(t *testing.T) {
	isolate(t)
	t.Setenv("GRABBER_USER_AGENT", "grabber-test/1.0")
	t.Setenv("GRABBER_TIMEOUT", "30s")
	t.Setenv("GRABBER_POLL_INTERVAL", "250ms")
	t.Setenv("GRABBER_MAX_RETRIES", "5")
	t.Setenv("GRABBER_MIN_SIDE", "320")
	t.Setenv("GRABBER_QUALITY", "80")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.UserAgent != "grabber-test/1.0" {
		t.Errorf("UserAgent = %q, want %q", cfg.UserAgent, "grabber-test/1.0")
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("Timeout = %s, want 30s", cfg.Timeout)
	}
	if cfg.PollInterval != 250*time.Millisecond {
		t.Errorf("PollInterval = %s, want 250ms", cfg.PollInterval)
	}
	if cfg.MaxRetries != 5 || cfg.MinSide != 320 || cfg.Quality != 80 {
		t.Errorf("got max_retries=%d min_side=%d quality=%d", cfg.MaxRetries, cfg.MinSide, cfg.Quality)
	}
}

func TestLoad_RejectsInfiniteScale(t *testing.T) {
	isolate(t)
	t.Setenv("GRABBER_SCALE", "+Inf")

	if _, err := Load(""); err == nil {
		t.Error("Load() with GRABBER_SCALE=+Inf: want error")
	}
}

func TestLoad_Errors(t *testing.T) {
	isolate(t)
	dir := t.TempDir()

	if _, err := Load(filepath.Join(dir, "missing.toml")); err == nil {
		t.Error("Load() with missing explicit file: want error")
	}

	bad := filepath.Join(dir, "bad.toml")
	os.WriteFile(bad, []byte("scale = 0\n"), 0644)
	if _, err := Load(bad); err == nil {
		t.Error("Load() with scale 0: want error")
	}

	broken := filepath.Join(dir, "broken.toml")
	os.WriteFile(broken, []byte("port = [\n"), 0644)
	if _, err := Load(broken); err == nil {
		t.Error("Load() with malformed TOML: want error")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"port", func(c *Config) { c.Port = 0 }},
		{"scale", func(c *Config) { c.Scale = -2 }},
		{"infinite scale", func(c *Config) { c.Scale = math.Inf(1) }},
		{"nan scale", func(c *Config) { c.Scale = math.NaN() }},
		{"min side", func(c *Config) { c.MinSide = 0 }},
		{"negative timeout", func(c *Config) { c.Timeout = -time.Second }},
		{"workers", func(c *Config) { c.Workers = 0 }},
		{"quality", func(c *Config) { c.Quality = 101 }},
		{"retries", func(c *Config) { c.MaxRetries = 0 }},
		{"poll interval", func(c *Config) { c.PollInterval = 0 }},
		{"processor", func(c *Config) { c.Processors = []ProcessorConfig{{Name: "x"}} }},
		{"processor scale", func(c *Config) {
			c.Processors = []ProcessorConfig{{Name: "x", Pattern: ".*", Scale: math.Inf(1)}}
		}},
	}

	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() error = %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}
