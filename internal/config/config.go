// Package config loads the collector configuration from defaults, a YAML
// file, the environment and command line flags.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	tiktok "github.com/RavensCloud/tiktok-collector"
	"github.com/RavensCloud/tiktok-collector/internal/logging"
)

// Config holds all configuration options.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Browser   BrowserConfig   `yaml:"browser"`
	Collector CollectorConfig `yaml:"collector"`
	TikTok    TikTokConfig    `yaml:"tiktok"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig configures the HTTP service.
type ServerConfig struct {
	Addr              string        `yaml:"addr"`
	AllowedOrigins    []string      `yaml:"allowed_origins"`
	MaxSessions       int           `yaml:"max_sessions"`
	SessionsPerMinute int           `yaml:"sessions_per_minute"`
	SessionBurst      int           `yaml:"session_burst"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
}

// BrowserConfig configures the headless browser.
type BrowserConfig struct {
	Headless       bool          `yaml:"headless"`
	NoSandbox      bool          `yaml:"no_sandbox"`
	Bin            string        `yaml:"bin"`
	Proxy          string        `yaml:"proxy"`
	BlockResources bool          `yaml:"block_resources"`
	CloseTimeout   time.Duration `yaml:"close_timeout"`
}

// CollectorConfig configures the scroll loop.
type CollectorConfig struct {
	BaseURL           string        `yaml:"base_url"`
	NavigationTimeout time.Duration `yaml:"navigation_timeout"`
	SelectorTimeout   time.Duration `yaml:"selector_timeout"`
	ScrollPauseMin    time.Duration `yaml:"scroll_pause_min"`
	ScrollPauseMax    time.Duration `yaml:"scroll_pause_max"`
	MaxScrolls        int           `yaml:"max_scrolls"`
	SessionTimeout    time.Duration `yaml:"session_timeout"`
}

// TikTokConfig holds the session cookie sources.
type TikTokConfig struct {
	Cookie     string `yaml:"cookie"`
	CookieFile string `yaml:"cookie_file"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// DefaultConfig returns a Config with production defaults.
func DefaultConfig() *Config {
	browser := tiktok.DefaultBrowserOptions()
	return &Config{
		Server: ServerConfig{
			Addr:              ":8080",
			AllowedOrigins:    []string{"*"},
			MaxSessions:       4,
			SessionsPerMinute: 30,
			SessionBurst:      5,
			ShutdownTimeout:   10 * time.Second,
		},
		Browser: BrowserConfig{
			Headless:       browser.Headless,
			NoSandbox:      browser.NoSandbox,
			BlockResources: browser.BlockResources,
			CloseTimeout:   browser.CloseTimeout,
		},
		Collector: CollectorConfig{
			BaseURL:           "https://www.tiktok.com",
			NavigationTimeout: 30 * time.Second,
			SelectorTimeout:   20 * time.Second,
			ScrollPauseMin:    2 * time.Second,
			ScrollPauseMax:    4 * time.Second,
			SessionTimeout:    15 * time.Minute,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load builds a Config from all sources.
// Precedence order: flags > environment (including .env) > config file > defaults.
// path may be empty, in which case TIKTOK_CONFIG and the standard locations
// are tried. cmd may be nil.
func Load(path string, cmd *cobra.Command) (*Config, error) {
	_ = godotenv.Load(".env")
	if home, err := os.UserHomeDir(); err == nil {
		_ = godotenv.Load(filepath.Join(home, ".tiktok.env"))
	}

	cfg := DefaultConfig()

	if path == "" {
		path = os.Getenv("TIKTOK_CONFIG")
	}
	if err := cfg.LoadFromFile(path); err != nil {
		return nil, err
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}
	if err := cfg.MergeFlags(cmd); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFromFile merges a YAML file into c. An empty path searches the
// standard locations; finding nothing there is not an error.
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func findConfigFile() string {
	locations := []string{"tiktok.yaml", "tiktok.yml"}
	if home, err := os.UserHomeDir(); err == nil {
		locations = append(locations,
			filepath.Join(home, ".config", "tiktok", "config.yaml"),
			filepath.Join(home, ".config", "tiktok", "config.yml"),
		)
	}
	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}
	return ""
}

// LoadFromEnv overrides c with TIKTOK_* environment variables. Malformed
// values are reported together.
func (c *Config) LoadFromEnv() error {
	var errs []error

	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	boolean := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str("TIKTOK_ADDR", &c.Server.Addr)
	if v := os.Getenv("TIKTOK_ALLOWED_ORIGINS"); v != "" {
		c.Server.AllowedOrigins = splitList(v)
	}
	integer("TIKTOK_MAX_SESSIONS", &c.Server.MaxSessions)
	integer("TIKTOK_SESSIONS_PER_MINUTE", &c.Server.SessionsPerMinute)
	integer("TIKTOK_SESSION_BURST", &c.Server.SessionBurst)
	duration("TIKTOK_SHUTDOWN_TIMEOUT", &c.Server.ShutdownTimeout)

	boolean("TIKTOK_HEADLESS", &c.Browser.Headless)
	boolean("TIKTOK_NO_SANDBOX", &c.Browser.NoSandbox)
	str("TIKTOK_CHROME_PATH", &c.Browser.Bin)
	str("TIKTOK_PROXY", &c.Browser.Proxy)
	boolean("TIKTOK_BLOCK_RESOURCES", &c.Browser.BlockResources)
	duration("TIKTOK_CLOSE_TIMEOUT", &c.Browser.CloseTimeout)

	str("TIKTOK_BASE_URL", &c.Collector.BaseURL)
	duration("TIKTOK_NAVIGATION_TIMEOUT", &c.Collector.NavigationTimeout)
	duration("TIKTOK_SELECTOR_TIMEOUT", &c.Collector.SelectorTimeout)
	duration("TIKTOK_SCROLL_PAUSE_MIN", &c.Collector.ScrollPauseMin)
	duration("TIKTOK_SCROLL_PAUSE_MAX", &c.Collector.ScrollPauseMax)
	integer("TIKTOK_MAX_SCROLLS", &c.Collector.MaxScrolls)
	duration("TIKTOK_SESSION_TIMEOUT", &c.Collector.SessionTimeout)

	str("TIKTOK_COOKIE", &c.TikTok.Cookie)
	str("TIKTOK_COOKIE_FILE", &c.TikTok.CookieFile)

	str("TIKTOK_LOG_LEVEL", &c.Log.Level)
	boolean("TIKTOK_LOG_JSON", &c.Log.JSON)

	if len(errs) > 0 {
		return fmt.Errorf("environment: %w", errors.Join(errs...))
	}
	return nil
}

// MergeFlags applies the flags that were set explicitly on cmd.
func (c *Config) MergeFlags(cmd *cobra.Command) error {
	if cmd == nil {
		return nil
	}
	flags := cmd.Flags()

	var errs []error
	changed := func(name string) bool {
		f := flags.Lookup(name)
		return f != nil && f.Changed
	}
	str := func(name string, dst *string) {
		if changed(name) {
			*dst = flags.Lookup(name).Value.String()
		}
	}

	str("addr", &c.Server.Addr)
	str("cookie", &c.TikTok.Cookie)
	str("cookie-file", &c.TikTok.CookieFile)
	str("chrome-path", &c.Browser.Bin)
	str("proxy", &c.Browser.Proxy)
	str("log-level", &c.Log.Level)

	if changed("json-log") {
		v, err := flags.GetBool("json-log")
		errs = append(errs, err)
		c.Log.JSON = v
	}
	if changed("headful") {
		v, err := flags.GetBool("headful")
		errs = append(errs, err)
		c.Browser.Headless = !v
	}
	if changed("max-scrolls") {
		v, err := flags.GetInt("max-scrolls")
		errs = append(errs, err)
		c.Collector.MaxScrolls = v
	}
	if changed("max-sessions") {
		v, err := flags.GetInt("max-sessions")
		errs = append(errs, err)
		c.Server.MaxSessions = v
	}
	if changed("session-timeout") {
		v, err := flags.GetDuration("session-timeout")
		errs = append(errs, err)
		c.Collector.SessionTimeout = v
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("flags: %w", err)
	}
	return nil
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Server.MaxSessions <= 0 {
		errs = append(errs, errors.New("server.max_sessions must be positive"))
	}
	if c.Server.SessionsPerMinute <= 0 {
		errs = append(errs, errors.New("server.sessions_per_minute must be positive"))
	}
	if c.Server.SessionBurst <= 0 {
		errs = append(errs, errors.New("server.session_burst must be positive"))
	}
	if c.Server.ShutdownTimeout < 0 {
		errs = append(errs, errors.New("server.shutdown_timeout cannot be negative"))
	}

	if u, err := url.Parse(c.Collector.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("collector.base_url %q is not an absolute URL", c.Collector.BaseURL))
	}
	if c.Collector.NavigationTimeout <= 0 {
		errs = append(errs, errors.New("collector.navigation_timeout must be positive"))
	}
	if c.Collector.SelectorTimeout <= 0 {
		errs = append(errs, errors.New("collector.selector_timeout must be positive"))
	}
	if c.Collector.ScrollPauseMin < 0 || c.Collector.ScrollPauseMax < c.Collector.ScrollPauseMin {
		errs = append(errs, fmt.Errorf("collector scroll pause range [%v, %v] is invalid",
			c.Collector.ScrollPauseMin, c.Collector.ScrollPauseMax))
	}
	if c.Collector.MaxScrolls < 0 {
		errs = append(errs, errors.New("collector.max_scrolls cannot be negative"))
	}
	if c.Collector.SessionTimeout < 0 {
		errs = append(errs, errors.New("collector.session_timeout cannot be negative"))
	}

	if !logging.KnownLevel(c.Log.Level) {
		errs = append(errs, fmt.Errorf("invalid log level %q", c.Log.Level))
	}

	return errors.Join(errs...)
}

// BrowserOptions converts the browser section for the rod launcher.
func (c *Config) BrowserOptions() tiktok.BrowserOptions {
	return tiktok.BrowserOptions{
		Headless:       c.Browser.Headless,
		NoSandbox:      c.Browser.NoSandbox,
		Bin:            c.Browser.Bin,
		Proxy:          c.Browser.Proxy,
		BlockResources: c.Browser.BlockResources,
		CloseTimeout:   c.Browser.CloseTimeout,
	}
}

// Save writes c as YAML, creating the directory when needed.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
