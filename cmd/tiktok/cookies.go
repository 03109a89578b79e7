package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	tiktok "github.com/RavensCloud/tiktok-collector"
	"github.com/RavensCloud/tiktok-collector/internal/config"
)

var cookiesCmd = &cobra.Command{
	Use:   "cookies",
	Short: "Manage the session cookie stored in the system keychain",
	Long: `Manage the session cookie stored in the system keychain.

Copy the Cookie header of any logged-in request to www.tiktok.com from your
browser's developer tools. It needs at least sessionid; msToken and
tt_csrf_token help with rate limits.`,
}

var cookiesSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Store a cookie string (prompted, or read from stdin)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := readCookie()
		if err != nil {
			return err
		}
		if err := config.StoreCookie(raw); err != nil {
			if errors.Is(err, tiktok.ErrNoCookies) {
				return fmt.Errorf("%w: expected \"name=value; name2=value2\"", err)
			}
			return err
		}
		cookies := tiktok.ParseCookieString(raw)
		fmt.Printf("Stored %d cookies in the keychain: %s\n", len(cookies), cookieNames(cookies))
		return nil
	},
}

var cookiesClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the stored cookie",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.ClearStoredCookie(); err != nil {
			return err
		}
		fmt.Println("Stored cookie removed")
		return nil
	},
}

var cookiesStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which cookie source would be used",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cookies, source, err := cfg.ResolveCookies()
		if errors.Is(err, tiktok.ErrNoCookies) {
			fmt.Println("No session cookie configured")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Printf("Source:  %s\nCookies: %s\n", source, cookieNames(cookies))
		if !hasCookie(cookies, "sessionid") {
			fmt.Println("Warning: no sessionid cookie, profiles may not load")
		}
		return nil
	},
}

var cookiesExportRaw bool

var cookiesExportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Write the resolved cookies to a file usable as cookie_file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		source, n, err := cfg.ExportCookies(args[0], cookiesExportRaw)
		if err != nil {
			return err
		}
		fmt.Printf("Exported %d cookies from %s to %s\n", n, source, args[0])
		return nil
	},
}

func init() {
	cookiesExportCmd.Flags().BoolVar(&cookiesExportRaw, "raw", false, "write a cookie header string instead of JSON")
	cookiesCmd.AddCommand(cookiesSetCmd, cookiesClearCmd, cookiesStatusCmd, cookiesExportCmd)
}

// readCookie prompts without echo on a terminal and reads stdin otherwise.
func readCookie() (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, "Cookie: ")
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("read cookie: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}

	b, err := io.ReadAll(bufio.NewReader(os.Stdin))
	if err != nil {
		return "", fmt.Errorf("read cookie: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

func cookieNames(cookies []*http.Cookie) string {
	names := make([]string, 0, len(cookies))
	for _, c := range cookies {
		names = append(names, c.Name)
	}
	return strings.Join(names, ", ")
}

func hasCookie(cookies []*http.Cookie, name string) bool {
	for _, c := range cookies {
		if c.Name == name {
			return true
		}
	}
	return false
}
