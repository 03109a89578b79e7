//go:build !unittest

package tiktok

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/rs/zerolog"
)

// RodLauncher starts one stealth headless Chrome per Launch call.
type RodLauncher struct {
	opts   BrowserOptions
	logger zerolog.Logger
}

// NewRodLauncher returns a Launcher backed by go-rod.
func NewRodLauncher(opts BrowserOptions, logger zerolog.Logger) *RodLauncher {
	if opts.CloseTimeout <= 0 {
		opts.CloseTimeout = DefaultBrowserOptions().CloseTimeout
	}
	return &RodLauncher{opts: opts, logger: logger}
}

// Launch starts Chrome, opens a stealth page and installs the cookies.
func (r *RodLauncher) Launch(ctx context.Context, opts LaunchOptions) (Session, error) {
	start := time.Now()

	l := launcher.New().
		Context(ctx).
		Headless(r.opts.Headless).
		NoSandbox(r.opts.NoSandbox).
		Set("disable-dev-shm-usage")
	if r.opts.Bin != "" {
		l = l.Bin(r.opts.Bin)
	}
	if r.opts.Proxy != "" {
		l = l.Proxy(r.opts.Proxy)
	}

	controlURL, err := l.Launch()
	if err != nil {
		killLauncher(l)
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		killLauncher(l)
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	page, err := stealth.Page(browser)
	if err != nil {
		_ = browser.Close()
		killLauncher(l)
		return nil, fmt.Errorf("create stealth page: %w", err)
	}

	s := &rodSession{
		launcher:     l,
		browser:      browser,
		page:         page,
		closeTimeout: r.opts.CloseTimeout,
		logger:       r.logger,
	}

	if r.opts.BlockResources {
		if err := s.setupResourceBlocking(); err != nil {
			_ = s.Close()
			return nil, err
		}
	}

	if len(opts.Cookies) > 0 {
		if err := s.setCookies(opts); err != nil {
			_ = s.Close()
			return nil, err
		}
	}

	r.logger.Debug().
		Int("pid", l.PID()).
		Dur("elapsed", time.Since(start)).
		Int("cookies", len(opts.Cookies)).
		Msg("browser launched")
	return s, nil
}

func killLauncher(l *launcher.Launcher) {
	if l.PID() == 0 {
		return
	}
	l.Kill()
	l.Cleanup()
}

type rodSession struct {
	launcher     *launcher.Launcher
	browser      *rod.Browser
	page         *rod.Page
	router       *rod.HijackRouter
	closeTimeout time.Duration
	logger       zerolog.Logger

	closeOnce sync.Once
	closeErr  error
}

func (s *rodSession) setupResourceBlocking() error {
	router := s.page.HijackRequests()
	blocked := []proto.NetworkResourceType{
		proto.NetworkResourceTypeImage,
		proto.NetworkResourceTypeMedia,
		proto.NetworkResourceTypeFont,
	}
	for _, rt := range blocked {
		err := router.Add("*", rt, func(ctx *rod.Hijack) {
			ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
		})
		if err != nil {
			return fmt.Errorf("block %s requests: %w", rt, err)
		}
	}
	go router.Run()
	s.router = router
	return nil
}

func (s *rodSession) setCookies(opts LaunchOptions) error {
	params := make([]*proto.NetworkCookieParam, 0, len(opts.Cookies))
	for _, c := range opts.Cookies {
		params = append(params, &proto.NetworkCookieParam{
			Name:   c.Name,
			Value:  c.Value,
			Domain: opts.CookieDomain,
			Path:   "/",
			Secure: true,
		})
	}
	if err := s.page.SetCookies(params); err != nil {
		return fmt.Errorf("set browser cookies: %w", err)
	}
	return nil
}

func (s *rodSession) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	navCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	page := s.page.Context(navCtx)
	wait := page.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
	err := page.Navigate(url)
	if err == nil {
		wait()
	}

	switch {
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(navCtx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: %s after %v", ErrNavigationTimeout, url, timeout)
	case err != nil:
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return nil
}

func (s *rodSession) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	el, err := s.page.Context(waitCtx).Element(selector)
	if err != nil {
		return fmt.Errorf("find %s: %w", selector, err)
	}
	if err := el.WaitVisible(); err != nil {
		return fmt.Errorf("wait visible %s: %w", selector, err)
	}
	return nil
}

func (s *rodSession) HTML(ctx context.Context) (string, error) {
	html, err := s.page.Context(ctx).HTML()
	if err != nil {
		return "", fmt.Errorf("read page html: %w", err)
	}
	return html, nil
}

func (s *rodSession) ScrollToBottom(ctx context.Context) error {
	if _, err := s.page.Context(ctx).Eval(`() => window.scrollTo(0, document.body.scrollHeight)`); err != nil {
		return fmt.Errorf("scroll: %w", err)
	}
	return nil
}

func (s *rodSession) ScrollHeight(ctx context.Context) (int, error) {
	res, err := s.page.Context(ctx).Eval(`() => document.body.scrollHeight`)
	if err != nil {
		return 0, fmt.Errorf("read scroll height: %w", err)
	}
	return res.Value.Int(), nil
}

// OnResponse tracks matching responses and reads their body once loading has
// finished; the body is not available at responseReceived time.
func (s *rodSession) OnResponse(match func(string) bool, handle func(string, []byte)) (Subscription, error) {
	if err := (proto.NetworkEnable{}).Call(s.page); err != nil {
		return nil, fmt.Errorf("enable network events: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	page := s.page.Context(ctx)

	// Only touched from the EachEvent goroutine.
	pending := make(map[proto.NetworkRequestID]string)

	wait := page.EachEvent(func(e *proto.NetworkResponseReceived) {
		if e.Response != nil && match(e.Response.URL) {
			pending[e.RequestID] = e.Response.URL
		}
	}, func(e *proto.NetworkLoadingFinished) {
		url, ok := pending[e.RequestID]
		if !ok {
			return
		}
		delete(pending, e.RequestID)

		res, err := proto.NetworkGetResponseBody{RequestID: e.RequestID}.Call(page)
		if err != nil {
			s.logger.Debug().Err(err).Str("url", url).Msg("response body unavailable")
			return
		}
		body := []byte(res.Body)
		if res.Base64Encoded {
			if body, err = base64.StdEncoding.DecodeString(res.Body); err != nil {
				s.logger.Debug().Err(err).Str("url", url).Msg("response body not base64")
				return
			}
		}
		handle(url, body)
	}, func(e *proto.NetworkLoadingFailed) {
		delete(pending, e.RequestID)
	})

	sub := &rodSubscription{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(sub.done)
		wait()
	}()
	return sub, nil
}

func (s *rodSession) Close() error {
	s.closeOnce.Do(func() {
		var errs []error
		if s.router != nil {
			if err := s.router.Stop(); err != nil {
				errs = append(errs, fmt.Errorf("stop hijack router: %w", err))
			}
		}
		if err := s.browser.Timeout(s.closeTimeout).Close(); err != nil {
			errs = append(errs, fmt.Errorf("close browser: %w", err))
		}
		// The process may outlive a failed Close; make sure it is gone.
		killLauncher(s.launcher)
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}

type rodSubscription struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func (s *rodSubscription) Unsubscribe() {
	s.once.Do(func() {
		s.cancel()
		<-s.done
	})
}
