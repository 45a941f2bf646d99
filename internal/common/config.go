package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string        `toml:"environment"` // "development" or "production"
	Server      ServerConfig  `toml:"server"`
	Storage     StorageConfig `toml:"storage"`
	Logging     LoggingConfig `toml:"logging"`
	Render      RenderConfig  `toml:"render"`
	Browser     BrowserConfig `toml:"browser"`
	Cookies     CookiesConfig `toml:"cookies"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // Time format for logs (default: "15:04:05")
}

// RenderConfig controls the render pipeline
type RenderConfig struct {
	Engine                string   `toml:"engine"`                  // "chromedp" or "static"
	DefaultTimeout        Duration `toml:"default_timeout"`         // Used when a request carries no timeout
	MaxConcurrentSessions int      `toml:"max_concurrent_sessions"` // Global cap on live sessions
	HostRateLimit         float64  `toml:"host_rate_limit"`         // Sessions per second per host (0 disables)
	PollInterval          Duration `toml:"poll_interval"`           // Delay between readiness polls
	MaxPollAttempts       int      `toml:"max_poll_attempts"`       // Hard cap on readiness polls
	SettleDelay           Duration `toml:"settle_delay"`            // Fixed-delay mode: wait after cleanup
	MinParagraphs         int      `toml:"min_paragraphs"`          // Readiness: meaningful paragraphs
	MinTotalText          int      `toml:"min_total_text"`          // Readiness: summed paragraph text
	MinParagraphLength    int      `toml:"min_paragraph_length"`    // Paragraph counts when longer than this
}

// BrowserConfig controls the Chrome allocator
type BrowserConfig struct {
	Instances      int      `toml:"instances"`       // Browser processes in the pool
	Headless       bool     `toml:"headless"`
	NoSandbox      bool     `toml:"no_sandbox"`
	DisableGPU     bool     `toml:"disable_gpu"`
	ExecPath       string   `toml:"exec_path"`       // Empty uses chromedp discovery
	UserAgent      string   `toml:"user_agent"`      // Default user agent for new tabs
	StartupTimeout Duration `toml:"startup_timeout"` // Browser startup test budget
}

// CookiesConfig controls cookie store maintenance
type CookiesConfig struct {
	FlushSchedule string `toml:"flush_schedule"` // Cron expression; empty disables the schedule
	PurgeExpired  bool   `toml:"purge_expired"`  // Drop expired records on each scheduled run
}

// MaxPollAttempts is the hard cap on readiness polls per render
const MaxPollAttempts = 10

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8087,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data/cookies",
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout", "file"},
			TimeFormat: "15:04:05",
		},
		Render: RenderConfig{
			Engine:                "chromedp",
			DefaultTimeout:        Duration(15 * time.Second),
			MaxConcurrentSessions: 4,
			HostRateLimit:         2,
			PollInterval:          Duration(500 * time.Millisecond),
			MaxPollAttempts:       MaxPollAttempts,
			SettleDelay:           Duration(500 * time.Millisecond),
			MinParagraphs:         3,
			MinTotalText:          500,
			MinParagraphLength:    50,
		},
		Browser: BrowserConfig{
			Instances:      1,
			Headless:       true,
			NoSandbox:      true,
			DisableGPU:     true,
			UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			StartupTimeout: Duration(30 * time.Second),
		},
		Cookies: CookiesConfig{
			FlushSchedule: "@every 1m",
			PurgeExpired:  true,
		},
	}
}

// LoadFromFiles loads configuration with priority: default -> file1 -> file2 -> ... -> env
// Later files override earlier ones. CLI flags are applied by the caller.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		// Unmarshal merges into the existing values
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks values that would break the render pipeline
func (c *Config) Validate() error {
	switch c.Render.Engine {
	case "chromedp", "static":
	default:
		return fmt.Errorf("render.engine must be \"chromedp\" or \"static\", got %q", c.Render.Engine)
	}
	if c.Render.DefaultTimeout <= 0 {
		return fmt.Errorf("render.default_timeout must be positive, got %s", c.Render.DefaultTimeout.Std())
	}
	if c.Render.MaxPollAttempts <= 0 || c.Render.MaxPollAttempts > MaxPollAttempts {
		return fmt.Errorf("render.max_poll_attempts must be between 1 and %d, got %d", MaxPollAttempts, c.Render.MaxPollAttempts)
	}
	if c.Render.PollInterval < 0 || c.Render.SettleDelay < 0 {
		return fmt.Errorf("render delays must not be negative")
	}
	if c.Render.MaxConcurrentSessions <= 0 {
		return fmt.Errorf("render.max_concurrent_sessions must be positive, got %d", c.Render.MaxConcurrentSessions)
	}
	if c.Render.Engine == "chromedp" && c.Browser.Instances <= 0 {
		return fmt.Errorf("browser.instances must be positive, got %d", c.Browser.Instances)
	}
	return nil
}

// applyEnvOverrides applies PAGERENDER_* environment variables (highest priority after CLI)
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("PAGERENDER_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration
	if port := os.Getenv("PAGERENDER_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("PAGERENDER_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Storage configuration
	if badgerPath := os.Getenv("PAGERENDER_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	// Logging configuration
	if level := os.Getenv("PAGERENDER_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("PAGERENDER_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// Render configuration
	if engine := os.Getenv("PAGERENDER_RENDER_ENGINE"); engine != "" {
		config.Render.Engine = engine
	}
	if timeout := os.Getenv("PAGERENDER_RENDER_DEFAULT_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			config.Render.DefaultTimeout = Duration(d)
		}
	}
	if maxSessions := os.Getenv("PAGERENDER_RENDER_MAX_CONCURRENT_SESSIONS"); maxSessions != "" {
		if n, err := strconv.Atoi(maxSessions); err == nil {
			config.Render.MaxConcurrentSessions = n
		}
	}
	if pollInterval := os.Getenv("PAGERENDER_RENDER_POLL_INTERVAL"); pollInterval != "" {
		if d, err := time.ParseDuration(pollInterval); err == nil {
			config.Render.PollInterval = Duration(d)
		}
	}
	if maxAttempts := os.Getenv("PAGERENDER_RENDER_MAX_POLL_ATTEMPTS"); maxAttempts != "" {
		if n, err := strconv.Atoi(maxAttempts); err == nil {
			config.Render.MaxPollAttempts = n
		}
	}

	// Browser configuration
	if headless := os.Getenv("PAGERENDER_BROWSER_HEADLESS"); headless != "" {
		if b, err := strconv.ParseBool(headless); err == nil {
			config.Browser.Headless = b
		}
	}
	if execPath := os.Getenv("PAGERENDER_BROWSER_EXEC_PATH"); execPath != "" {
		config.Browser.ExecPath = execPath
	}
	if userAgent := os.Getenv("PAGERENDER_BROWSER_USER_AGENT"); userAgent != "" {
		config.Browser.UserAgent = userAgent
	}

	// Cookie maintenance
	if schedule, ok := os.LookupEnv("PAGERENDER_COOKIES_FLUSH_SCHEDULE"); ok {
		config.Cookies.FlushSchedule = schedule
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config (highest priority)
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port != 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}
