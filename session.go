package tiktok

import (
	"context"
	"net/http"
	"time"
)

// LaunchOptions configure one browser session.
type LaunchOptions struct {
	// Cookies are installed on the page before navigation.
	Cookies []*http.Cookie
	// CookieDomain is the domain attribute used for Cookies.
	CookieDomain string
}

// Launcher starts an isolated browser per collection. Implementations must
// not share browsers between sessions.
type Launcher interface {
	Launch(ctx context.Context, opts LaunchOptions) (Session, error)
}

// Session is the slice of page automation the collector drives. Close must
// release the browser process and be safe to call more than once.
type Session interface {
	// Navigate loads url and returns once the DOM content has loaded.
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	// WaitVisible waits for the first element matching selector to be visible.
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	// HTML returns the current document.
	HTML(ctx context.Context) (string, error)
	ScrollToBottom(ctx context.Context) error
	ScrollHeight(ctx context.Context) (int, error)
	// OnResponse calls handle with the body of every response whose URL
	// satisfies match, until the subscription is released.
	OnResponse(match func(url string) bool, handle func(url string, body []byte)) (Subscription, error)
	Close() error
}

// Subscription is an owned registration of a response handler. Unsubscribe
// returns once no handler call is in flight; it is idempotent.
type Subscription interface {
	Unsubscribe()
}

// BrowserOptions configure the rod launcher.
type BrowserOptions struct {
	Headless bool
	// NoSandbox disables Chrome's sandbox, required when running as root in
	// containers.
	NoSandbox bool
	// Bin is the Chrome executable; empty lets rod find or download one.
	Bin   string
	Proxy string
	// BlockResources fails image, media and font requests, which the
	// collector never needs.
	BlockResources bool
	// CloseTimeout bounds the graceful browser shutdown before the process
	// is killed.
	CloseTimeout time.Duration
}

// DefaultBrowserOptions returns headless, sandbox-less, resource-blocking
// options.
func DefaultBrowserOptions() BrowserOptions {
	return BrowserOptions{
		Headless:       true,
		NoSandbox:      true,
		BlockResources: true,
		CloseTimeout:   5 * time.Second,
	}
}
