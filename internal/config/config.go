package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// DefaultPattern matches Mercado Livre and Mercado Libre listing URLs.
const DefaultPattern = `^https?://([a-z0-9-]+\.)*mercadoli(vre|bre)\.com(\.[a-z]{2})?/`

// ProcessorConfig configures one listing processor.
type ProcessorConfig struct {
	Name      string  `toml:"name"`
	Pattern   string  `toml:"pattern"`
	TargetDir string  `toml:"target_dir"`
	Scale     float64 `toml:"scale"`
}

// Config holds application configuration.
type Config struct {
	Port         int               `toml:"port"`
	DBPath       string            `toml:"db"`
	PollInterval time.Duration     `toml:"poll_interval"`
	MaxRetries   int               `toml:"max_retries"`
	ImageDir     string            `toml:"image_dir"`
	Scale        float64           `toml:"scale"`
	Workers      int               `toml:"workers"`
	MinSide      int               `toml:"min_side"`
	Quality      int               `toml:"quality"`
	Timeout      time.Duration     `toml:"timeout"`
	UserAgent    string            `toml:"user_agent"`
	LogLevel     string            `toml:"log_level"`
	Secret       string            `toml:"secret"`
	Processors   []ProcessorConfig `toml:"processor"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Port:         8080,
		DBPath:       DefaultDBPath(),
		PollInterval: 5 * time.Second,
		MaxRetries:   3,
		ImageDir:     DefaultImageDir,
		Scale:        2,
		Workers:      1,
		MinSide:      200,
		Quality:      95,
		Timeout:      10 * time.Second,
		LogLevel:     "info",
	}
}

// DefaultImageDir is the base folder listings are saved under.
const DefaultImageDir = "img"

// DefaultDBPath returns the default database path using XDG_CACHE_HOME.
func DefaultDBPath() string {
	cacheDir := os.Getenv("XDG_CACHE_HOME")
	if cacheDir == "" {
		home, _ := os.UserHomeDir()
		cacheDir = filepath.Join(home, ".cache")
	}
	return filepath.Join(cacheDir, "grabber", "jobs.db")
}

// DefaultConfigPath returns the default config file path using XDG_CONFIG_HOME.
func DefaultConfigPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, _ := os.UserHomeDir()
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "grabber", "config.toml")
}

// ExpandPath replaces a leading ~ with the user's home directory.
func ExpandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path
}

// Load builds Config from defaults, the TOML file at path and the
// environment. An empty path reads DefaultConfigPath if it exists.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath()
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	applyEnv(cfg)
	cfg.DBPath = ExpandPath(cfg.DBPath)
	cfg.ImageDir = ExpandPath(cfg.ImageDir)
	if len(cfg.Processors) == 0 {
		cfg.Processors = []ProcessorConfig{{Name: "mercadolivre", Pattern: DefaultPattern}}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if port := os.Getenv("GRABBER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Port = p
		}
	}
	if db := os.Getenv("GRABBER_DB"); db != "" {
		cfg.DBPath = db
	}
	if dir := os.Getenv("GRABBER_IMAGE_DIR"); dir != "" {
		cfg.ImageDir = dir
	}
	if scale := os.Getenv("GRABBER_SCALE"); scale != "" {
		if s, err := strconv.ParseFloat(scale, 64); err == nil {
			cfg.Scale = s
		}
	}
	if workers := os.Getenv("GRABBER_WORKERS"); workers != "" {
		if w, err := strconv.Atoi(workers); err == nil {
			cfg.Workers = w
		}
	}
	if level := os.Getenv("GRABBER_LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}
	if secret := os.Getenv("GRABBER_SECRET"); secret != "" {
		cfg.Secret = secret
	}
	if ua := os.Getenv("GRABBER_USER_AGENT"); ua != "" {
		cfg.UserAgent = ua
	}
	if timeout := os.Getenv("GRABBER_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			cfg.Timeout = d
		}
	}
	if interval := os.Getenv("GRABBER_POLL_INTERVAL"); interval != "" {
		if d, err := time.ParseDuration(interval); err == nil {
			cfg.PollInterval = d
		}
	}
	if retries := os.Getenv("GRABBER_MAX_RETRIES"); retries != "" {
		if r, err := strconv.Atoi(retries); err == nil {
			cfg.MaxRetries = r
		}
	}
	if side := os.Getenv("GRABBER_MIN_SIDE"); side != "" {
		if n, err := strconv.Atoi(side); err == nil {
			cfg.MinSide = n
		}
	}
	if quality := os.Getenv("GRABBER_QUALITY"); quality != "" {
		if q, err := strconv.Atoi(quality); err == nil {
			cfg.Quality = q
		}
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Port <= 0 || c.Port > 65535:
		return fmt.Errorf("port %d out of range", c.Port)
	case !(c.Scale > 0) || math.IsInf(c.Scale, 0):
		return fmt.Errorf("scale must be a positive finite number, got %v", c.Scale)
	case c.MinSide < 1:
		return fmt.Errorf("min_side must be at least 1, got %d", c.MinSide)
	case c.Timeout < 0:
		return fmt.Errorf("timeout must not be negative, got %s", c.Timeout)
	case c.Workers < 1:
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	case c.Quality < 1 || c.Quality > 100:
		return fmt.Errorf("quality must be between 1 and 100, got %d", c.Quality)
	case c.MaxRetries < 1:
		return fmt.Errorf("max_retries must be at least 1, got %d", c.MaxRetries)
	case c.PollInterval <= 0:
		return fmt.Errorf("poll_interval must be positive, got %s", c.PollInterval)
	}
	for i, pc := range c.Processors {
		if pc.Name == "" || pc.Pattern == "" {
			return fmt.Errorf("processor %d: name and pattern are required", i+1)
		}
		if pc.Scale < 0 || math.IsInf(pc.Scale, 0) || math.IsNaN(pc.Scale) {
			return fmt.Errorf("processor %q: scale must be a positive finite number, got %v", pc.Name, pc.Scale)
		}
	}
	return nil
}
