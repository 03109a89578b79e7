package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	tiktok "github.com/RavensCloud/tiktok-collector"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tiktok.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func testCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	f := cmd.Flags()
	f.String("addr", "", "")
	f.String("cookie", "", "")
	f.String("cookie-file", "", "")
	f.String("chrome-path", "", "")
	f.String("proxy", "", "")
	f.String("log-level", "", "")
	f.Bool("json-log", false, "")
	f.Bool("headful", false, "")
	f.Int("max-scrolls", 0, "")
	f.Int("max-sessions", 0, "")
	f.Duration("session-timeout", 0, "")
	return cmd
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 4, cfg.Server.MaxSessions)
	assert.Equal(t, 30, cfg.Server.SessionsPerMinute)
	assert.True(t, cfg.Browser.Headless)
	assert.True(t, cfg.Browser.BlockResources)
	assert.Equal(t, "https://www.tiktok.com", cfg.Collector.BaseURL)
	assert.Equal(t, 2*time.Second, cfg.Collector.ScrollPauseMin)
	assert.Equal(t, 4*time.Second, cfg.Collector.ScrollPauseMax)
	assert.Equal(t, 15*time.Minute, cfg.Collector.SessionTimeout)
	assert.Zero(t, cfg.Collector.MaxScrolls)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9090"
  allowed_origins: ["https://app.example.com"]
  max_sessions: 2
browser:
  headless: false
  proxy: "socks5://127.0.0.1:1080"
collector:
  scroll_pause_min: 500ms
  scroll_pause_max: 1s
  max_scrolls: 50
tiktok:
  cookie_file: /tmp/cookies.json
log:
  level: debug
`)

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 2, cfg.Server.MaxSessions)
	assert.Equal(t, 30, cfg.Server.SessionsPerMinute, "unset keys keep defaults")
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, "socks5://127.0.0.1:1080", cfg.Browser.Proxy)
	assert.Equal(t, 500*time.Millisecond, cfg.Collector.ScrollPauseMin)
	assert.Equal(t, time.Second, cfg.Collector.ScrollPauseMax)
	assert.Equal(t, 50, cfg.Collector.MaxScrolls)
	assert.Equal(t, "/tmp/cookies.json", cfg.TikTok.CookieFile)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadFromFile_Errors(t *testing.T) {
	cfg := DefaultConfig()
	assert.Error(t, cfg.LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")))

	bad := writeConfig(t, "server: [not, a, map")
	assert.Error(t, cfg.LoadFromFile(bad))
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("TIKTOK_ADDR", ":7000")
	t.Setenv("TIKTOK_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("TIKTOK_MAX_SESSIONS", "8")
	t.Setenv("TIKTOK_HEADLESS", "false")
	t.Setenv("TIKTOK_CHROME_PATH", "/usr/bin/chromium")
	t.Setenv("TIKTOK_SESSION_TIMEOUT", "5m")
	t.Setenv("TIKTOK_COOKIE", "sessionid=abc")
	t.Setenv("TIKTOK_LOG_JSON", "true")
	t.Setenv("TIKTOK_SESSION_BURST", "2")
	t.Setenv("TIKTOK_SHUTDOWN_TIMEOUT", "3s")
	t.Setenv("TIKTOK_BLOCK_RESOURCES", "false")
	t.Setenv("TIKTOK_CLOSE_TIMEOUT", "7s")
	t.Setenv("TIKTOK_NAVIGATION_TIMEOUT", "45s")
	t.Setenv("TIKTOK_SELECTOR_TIMEOUT", "5s")
	t.Setenv("TIKTOK_SCROLL_PAUSE_MIN", "1s")
	t.Setenv("TIKTOK_SCROLL_PAUSE_MAX", "1500ms")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 8, cfg.Server.MaxSessions)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, "/usr/bin/chromium", cfg.Browser.Bin)
	assert.Equal(t, 5*time.Minute, cfg.Collector.SessionTimeout)
	assert.Equal(t, "sessionid=abc", cfg.TikTok.Cookie)
	assert.True(t, cfg.Log.JSON)
	assert.Equal(t, 2, cfg.Server.SessionBurst)
	assert.Equal(t, 3*time.Second, cfg.Server.ShutdownTimeout)
	assert.False(t, cfg.Browser.BlockResources)
	assert.Equal(t, 7*time.Second, cfg.Browser.CloseTimeout)
	assert.Equal(t, 45*time.Second, cfg.Collector.NavigationTimeout)
	assert.Equal(t, 5*time.Second, cfg.Collector.SelectorTimeout)
	assert.Equal(t, time.Second, cfg.Collector.ScrollPauseMin)
	assert.Equal(t, 1500*time.Millisecond, cfg.Collector.ScrollPauseMax)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnv_Malformed(t *testing.T) {
	t.Setenv("TIKTOK_MAX_SESSIONS", "many")
	t.Setenv("TIKTOK_SESSION_TIMEOUT", "soon")

	cfg := DefaultConfig()
	err := cfg.LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TIKTOK_MAX_SESSIONS")
	assert.Contains(t, err.Error(), "TIKTOK_SESSION_TIMEOUT")
}

func TestMergeFlags(t *testing.T) {
	cmd := testCommand()
	require.NoError(t, cmd.ParseFlags([]string{
		"--proxy", "http://proxy:3128",
		"--headful",
		"--max-scrolls", "12",
		"--session-timeout", "90s",
	}))

	cfg := DefaultConfig()
	cfg.Browser.Bin = "/from/file"
	require.NoError(t, cfg.MergeFlags(cmd))

	assert.Equal(t, "http://proxy:3128", cfg.Browser.Proxy)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, 12, cfg.Collector.MaxScrolls)
	assert.Equal(t, 90*time.Second, cfg.Collector.SessionTimeout)
	assert.Equal(t, "/from/file", cfg.Browser.Bin, "unset flags leave values alone")
}

func TestLoad_Precedence(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9000"
browser:
  proxy: "http://file:1"
log:
  level: warn
`)
	t.Setenv("TIKTOK_PROXY", "http://env:2")
	t.Setenv("TIKTOK_LOG_LEVEL", "debug")

	cmd := testCommand()
	require.NoError(t, cmd.ParseFlags([]string{"--log-level", "error"}))

	cfg, err := Load(path, cmd)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Addr, "file over defaults")
	assert.Equal(t, "http://env:2", cfg.Browser.Proxy, "env over file")
	assert.Equal(t, "error", cfg.Log.Level, "flag over env")
}

func TestLoad_ConfigFromEnvPath(t *testing.T) {
	path := writeConfig(t, "server:\n  max_sessions: 9\n")
	t.Setenv("TIKTOK_CONFIG", path)

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Server.MaxSessions)
}

func TestLoad_InvalidFails(t *testing.T) {
	path := writeConfig(t, `
collector:
  scroll_pause_min: 5s
  scroll_pause_max: 1s
`)
	_, err := Load(path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scroll pause range")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"no sessions", func(c *Config) { c.Server.MaxSessions = 0 }, "max_sessions"},
		{"no rate", func(c *Config) { c.Server.SessionsPerMinute = 0 }, "sessions_per_minute"},
		{"relative base url", func(c *Config) { c.Collector.BaseURL = "tiktok.com" }, "base_url"},
		{"inverted pause", func(c *Config) { c.Collector.ScrollPauseMin = 3 * time.Second; c.Collector.ScrollPauseMax = time.Second }, "scroll pause"},
		{"negative scrolls", func(c *Config) { c.Collector.MaxScrolls = -1 }, "max_scrolls"},
		{"bad level", func(c *Config) { c.Log.Level = "chatty" }, "log level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_AcceptsEveryLoggerLevel(t *testing.T) {
	for _, level := range []string{"trace", "debug", "info", "warn", "warning", "error", "disabled", "off"} {
		cfg := DefaultConfig()
		cfg.Log.Level = level
		assert.NoError(t, cfg.Validate(), "level %q", level)
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Addr = ""
	cfg.Server.MaxSessions = -1
	cfg.Log.Level = "nope"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.addr")
	assert.Contains(t, err.Error(), "max_sessions")
	assert.Contains(t, err.Error(), "log level")
}

func TestBrowserOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Browser.Bin = "/opt/chrome"
	cfg.Browser.Headless = false

	opts := cfg.BrowserOptions()
	assert.Equal(t, "/opt/chrome", opts.Bin)
	assert.False(t, opts.Headless)
	assert.True(t, opts.NoSandbox)
	assert.Equal(t, tiktok.DefaultBrowserOptions().CloseTimeout, opts.CloseTimeout)
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Collector.MaxScrolls = 25
	require.NoError(t, cfg.Save(path))

	loaded := DefaultConfig()
	loaded.Collector.MaxScrolls = 0
	require.NoError(t, loaded.LoadFromFile(path))
	assert.Equal(t, 25, loaded.Collector.MaxScrolls)
	assert.Equal(t, cfg.Collector.SessionTimeout, loaded.Collector.SessionTimeout)
}

// ---------------------------------------------------------------------------
// Cookie resolution
// ---------------------------------------------------------------------------

func TestResolveCookies_FromValue(t *testing.T) {
	keyring.MockInit()
	cfg := DefaultConfig()
	cfg.TikTok.Cookie = "sessionid=abc; msToken=x=="

	cookies, source, err := cfg.ResolveCookies()
	require.NoError(t, err)
	assert.Equal(t, SourceConfig, source)
	require.Len(t, cookies, 2)
	assert.Equal(t, "x==", cookies[1].Value)
}

func TestResolveCookies_FromFile(t *testing.T) {
	keyring.MockInit()
	path := filepath.Join(t.TempDir(), "cookie.txt")
	require.NoError(t, os.WriteFile(path, []byte("sessionid=fromfile"), 0600))

	cfg := DefaultConfig()
	cfg.TikTok.CookieFile = path

	cookies, source, err := cfg.ResolveCookies()
	require.NoError(t, err)
	assert.Equal(t, SourceFile, source)
	assert.Equal(t, "fromfile", cookies[0].Value)
}

func TestResolveCookies_FromKeyring(t *testing.T) {
	keyring.MockInit()
	require.NoError(t, StoreCookie("sessionid=stored"))

	cookies, source, err := DefaultConfig().ResolveCookies()
	require.NoError(t, err)
	assert.Equal(t, SourceKeyring, source)
	assert.Equal(t, "stored", cookies[0].Value)
}

func TestResolveCookies_None(t *testing.T) {
	keyring.MockInit()
	_, _, err := DefaultConfig().ResolveCookies()
	assert.ErrorIs(t, err, tiktok.ErrNoCookies)
}

func TestResolveCookies_GarbageValue(t *testing.T) {
	keyring.MockInit()
	cfg := DefaultConfig()
	cfg.TikTok.Cookie = "; ; ="

	_, _, err := cfg.ResolveCookies()
	assert.ErrorIs(t, err, tiktok.ErrNoCookies)
}

func TestStoredCookieLifecycle(t *testing.T) {
	keyring.MockInit()

	s, err := LoadStoredCookie()
	require.NoError(t, err)
	assert.Empty(t, s)

	assert.ErrorIs(t, StoreCookie("garbage"), tiktok.ErrNoCookies)
	require.NoError(t, StoreCookie("  sessionid=abc  "))

	s, err = LoadStoredCookie()
	require.NoError(t, err)
	assert.Equal(t, "sessionid=abc", s)

	require.NoError(t, StoreCookie(" sessionid = abc ;; msToken=x== ; "))
	s, err = LoadStoredCookie()
	require.NoError(t, err)
	assert.Equal(t, "sessionid=abc; msToken=x==", s)

	require.NoError(t, ClearStoredCookie())
	require.NoError(t, ClearStoredCookie(), "clearing twice is fine")

	s, err = LoadStoredCookie()
	require.NoError(t, err)
	assert.Empty(t, s)
}

func TestExportCookies_JSON(t *testing.T) {
	keyring.MockInit()
	require.NoError(t, StoreCookie("sessionid=abc; msToken=x=="))
	path := filepath.Join(t.TempDir(), "cookies.json")

	source, n, err := DefaultConfig().ExportCookies(path, false)
	require.NoError(t, err)
	assert.Equal(t, SourceKeyring, source)
	assert.Equal(t, 2, n)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "["), "expected a JSON array, got %s", data)

	cfg := DefaultConfig()
	cfg.TikTok.CookieFile = path
	cookies, source, err := cfg.ResolveCookies()
	require.NoError(t, err)
	assert.Equal(t, SourceFile, source)
	assert.Equal(t, "x==", cookies[1].Value)
}

func TestExportCookies_Raw(t *testing.T) {
	keyring.MockInit()
	cfg := DefaultConfig()
	cfg.TikTok.Cookie = "sessionid=abc;msToken=x=="
	path := filepath.Join(t.TempDir(), "cookie.txt")

	source, n, err := cfg.ExportCookies(path, true)
	require.NoError(t, err)
	assert.Equal(t, SourceConfig, source)
	assert.Equal(t, 2, n)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "sessionid=abc; msToken=x==\n", string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestExportCookies_NothingToExport(t *testing.T) {
	keyring.MockInit()
	path := filepath.Join(t.TempDir(), "cookies.json")

	_, _, err := DefaultConfig().ExportCookies(path, false)
	assert.ErrorIs(t, err, tiktok.ErrNoCookies)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}
