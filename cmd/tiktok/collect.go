package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	tiktok "github.com/RavensCloud/tiktok-collector"
)

var collectOutput string

var collectCmd = &cobra.Command{
	Use:   "collect <profile-url>",
	Short: "Collect one profile and print the result as JSON",
	Example: `  tiktok collect https://www.tiktok.com/@someone
  tiktok collect https://www.tiktok.com/@someone -o someone.json --max-scrolls 20`,
	Args: cobra.ExactArgs(1),
	RunE: runCollect,
}

func init() {
	collectCmd.Flags().StringVarP(&collectOutput, "output", "o", "", "write the result to this file instead of stdout")
	collectCmd.Flags().Int("max-scrolls", 0, "stop after this many scrolls (0 = no limit)")
	collectCmd.Flags().Duration("session-timeout", 0, "upper bound for the collection (default 15m)")
}

func runCollect(cmd *cobra.Command, args []string) error {
	username, err := tiktok.ParseProfileHandle(args[0])
	if err != nil {
		return err
	}
	cookies, err := resolveCookies()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("collecting @"+username),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	var result *tiktok.CompleteData
	sink := tiktok.EventSinkFunc(func(e tiktok.Event) error {
		switch d := e.Data.(type) {
		case tiktok.ProgressData:
			_ = bar.Set(d.Count)
		case tiktok.LogData:
			_ = bar.Clear()
			fmt.Fprintln(os.Stderr, d.Message)
		case tiktok.CompleteData:
			result = &d
		}
		if e.Terminal() {
			_ = bar.Finish()
		}
		return nil
	})

	err = newCollector(cookies).Collect(ctx, args[0], sink)
	if err != nil {
		return err
	}
	if result == nil {
		return fmt.Errorf("collection of @%s ended without a result", username)
	}

	fmt.Fprintf(os.Stderr, "collected %d videos from @%s%s\n", result.TotalVideos, result.Username, uploadSpan(result.Videos))
	return writeResult(result)
}

// uploadSpan describes the upload dates covered by videos, e.g.
// " (2023-01-05 to 2024-03-01)".
func uploadSpan(videos []tiktok.CollectedVideo) string {
	var oldest, newest time.Time
	for _, v := range videos {
		if v.CreateTime <= 0 {
			continue
		}
		t := v.CreatedAt()
		if oldest.IsZero() || t.Before(oldest) {
			oldest = t
		}
		if t.After(newest) {
			newest = t
		}
	}
	if oldest.IsZero() {
		return ""
	}
	return fmt.Sprintf(" (%s to %s)", oldest.Format(time.DateOnly), newest.Format(time.DateOnly))
}

func writeResult(result *tiktok.CompleteData) error {
	if collectOutput == "" {
		return encodeResult(os.Stdout, result)
	}

	f, err := os.Create(collectOutput)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	return writeAndClose(f, result)
}

// writeAndClose encodes result to w and reports a failed close, which is
// where a file write can first fail.
func writeAndClose(w io.WriteCloser, result *tiktok.CompleteData) error {
	if err := encodeResult(w, result); err != nil {
		_ = w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	return nil
}

func encodeResult(w io.Writer, result *tiktok.CompleteData) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}
