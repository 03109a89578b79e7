package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/RavensCloud/tiktok-collector/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve collections as server-sent event streams",
	Long: `Start the HTTP service.

  GET /api/tiktok/user-videos?url=<profile url>   stream progress, log, complete and error events
  GET /health                                      liveness and active collection count

Each request gets its own browser. Closing the connection stops the collection.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default :8080)")
	serveCmd.Flags().Int("max-sessions", 0, "maximum concurrent collections (default 4)")
	serveCmd.Flags().Int("max-scrolls", 0, "stop each collection after this many scrolls (0 = no limit)")
	serveCmd.Flags().Duration("session-timeout", 0, "upper bound for one collection (default 15m)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cookies, err := resolveCookies()
	if err != nil {
		return err
	}

	if logger.GetLevel() > zerolog.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	s := server.New(newCollector(cookies), server.Options{
		AllowedOrigins:    cfg.Server.AllowedOrigins,
		MaxSessions:       cfg.Server.MaxSessions,
		SessionsPerMinute: cfg.Server.SessionsPerMinute,
		SessionBurst:      cfg.Server.SessionBurst,
		ShutdownTimeout:   cfg.Server.ShutdownTimeout,
	}, logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info().
		Str("addr", cfg.Server.Addr).
		Int("max_sessions", cfg.Server.MaxSessions).
		Bool("headless", cfg.Browser.Headless).
		Msg("starting server")
	return s.Run(ctx, cfg.Server.Addr)
}
