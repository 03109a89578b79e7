package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	tiktok "github.com/RavensCloud/tiktok-collector"
	"github.com/RavensCloud/tiktok-collector/internal/config"
	"github.com/RavensCloud/tiktok-collector/internal/logging"
)

var version = "dev"

var (
	configFile string

	cfg    *config.Config
	logger zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "tiktok",
	Short: "Collect every video of a TikTok profile",
	Long: `tiktok drives a stealth headless Chrome over a profile page, scrolls the
video grid until it stops growing and records every video the page loads.

Configuration is read from, highest priority first:
  - command line flags
  - TIKTOK_* environment variables (and .env)
  - tiktok.yaml or ~/.config/tiktok/config.yaml
  - built-in defaults`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(configFile, cmd)
		if err != nil {
			return err
		}
		cfg = c
		logger = logging.New(cfg.Log.Level, cfg.Log.JSON)
		logger.Debug().Str("command", cmd.Name()).Msg("config loaded")
		return nil
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVarP(&configFile, "config", "c", "", "config file (default tiktok.yaml or ~/.config/tiktok/config.yaml)")
	f.String("log-level", "", "log level: trace, debug, info, warn, error, off")
	f.Bool("json-log", false, "write logs as JSON")
	f.String("cookie", "", `session cookie string ("sessionid=...; msToken=...")`)
	f.String("cookie-file", "", "file holding the session cookies (JSON or cookie string)")
	f.String("chrome-path", "", "Chrome executable (default: detect or download)")
	f.String("proxy", "", "proxy for the browser (http/https/socks5)")
	f.Bool("headful", false, "show the browser window")

	rootCmd.AddCommand(serveCmd, collectCmd, cookiesCmd, configCmd)
}

// resolveCookies returns the session cookies or an error telling the user
// how to provide them.
func resolveCookies() ([]*http.Cookie, error) {
	cookies, source, err := cfg.ResolveCookies()
	if err != nil {
		return nil, fmt.Errorf("%w: use --cookie, TIKTOK_COOKIE, a cookie_file or `tiktok cookies set`", err)
	}
	logger.Debug().Str("source", string(source)).Int("cookies", len(cookies)).Msg("session cookies resolved")
	return cookies, nil
}

func newCollector(cookies []*http.Cookie) *tiktok.Collector {
	launcher := tiktok.NewRodLauncher(cfg.BrowserOptions(), logger)
	c := cfg.Collector
	return tiktok.NewCollector(launcher, cookies).
		WithBaseURL(c.BaseURL).
		WithLogger(logger).
		WithNavigationTimeout(c.NavigationTimeout).
		WithSelectorTimeout(c.SelectorTimeout).
		WithScrollPause(c.ScrollPauseMin, c.ScrollPauseMax).
		WithMaxScrolls(c.MaxScrolls).
		WithSessionTimeout(c.SessionTimeout)
}
