package tiktok

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// postItemSelector marks a video tile in the profile grid.
const postItemSelector = `[data-e2e="user-post-item"]`

const gridMissingMessage = "Video grid not found, scrolling anyway"

// Collector gathers every video of a profile by scrolling its grid in a
// headless browser and intercepting the item list responses the page makes.
// Each Collect call gets its own browser; nothing is shared between calls.
type Collector struct {
	launcher Launcher
	cookies  []*http.Cookie
	baseURL  string
	logger   zerolog.Logger

	navigationTimeout time.Duration
	selectorTimeout   time.Duration
	scrollPauseMin    time.Duration
	scrollPauseMax    time.Duration
	maxScrolls        int
	sessionTimeout    time.Duration

	// Replaceable for testing.
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func(lo, hi time.Duration) time.Duration
	now    func() time.Time
}

// NewCollector creates a Collector with the production timings: 30s
// navigation, 20s grid wait, 2–4s between scrolls and a 15 minute cap per
// collection.
func NewCollector(l Launcher, cookies []*http.Cookie) *Collector {
	return &Collector{
		launcher:          l,
		cookies:           cookies,
		baseURL:           defaultBaseURL,
		logger:            zerolog.Nop(),
		navigationTimeout: 30 * time.Second,
		selectorTimeout:   20 * time.Second,
		scrollPauseMin:    2 * time.Second,
		scrollPauseMax:    4 * time.Second,
		sessionTimeout:    15 * time.Minute,
		sleep:             sleepContext,
		jitter:            randomPause,
		now:               time.Now,
	}
}

// WithBaseURL sets the site root, "https://www.tiktok.com" by default.
func (c *Collector) WithBaseURL(u string) *Collector {
	c.baseURL = strings.TrimRight(u, "/")
	return c
}

// WithLogger sets the logger used when the context carries none.
func (c *Collector) WithLogger(l zerolog.Logger) *Collector {
	c.logger = l
	return c
}

// WithNavigationTimeout bounds the profile page load.
func (c *Collector) WithNavigationTimeout(d time.Duration) *Collector {
	c.navigationTimeout = d
	return c
}

// WithSelectorTimeout bounds the wait for the first video tile.
func (c *Collector) WithSelectorTimeout(d time.Duration) *Collector {
	c.selectorTimeout = d
	return c
}

// WithScrollPause sets the range of the random pause after each scroll.
func (c *Collector) WithScrollPause(lo, hi time.Duration) *Collector {
	c.scrollPauseMin = lo
	c.scrollPauseMax = hi
	return c
}

// WithMaxScrolls caps the number of scrolls; zero means no cap.
func (c *Collector) WithMaxScrolls(n int) *Collector {
	c.maxScrolls = n
	return c
}

// WithSessionTimeout bounds a whole collection; zero means no bound.
func (c *Collector) WithSessionTimeout(d time.Duration) *Collector {
	c.sessionTimeout = d
	return c
}

// Collect runs one collection for profileURL and reports it to sink: any
// number of progress and log events, then exactly one complete or error
// event. The browser is released before Collect returns, on every path.
//
// A URL without an @handle fails with ErrInvalidProfileURL before any
// browser is started and without emitting. If sink fails, or ctx is
// cancelled, the collection stops and no further events are sent.
func (c *Collector) Collect(ctx context.Context, profileURL string, sink EventSink) error {
	username, err := ParseProfileHandle(profileURL)
	if err != nil {
		return err
	}

	logger := c.logger
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		logger = *l
	}
	logger = logger.With().Str("username", username).Logger()

	parent := ctx
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if c.sessionTimeout > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeoutCause(ctx, c.sessionTimeout, ErrSessionTimeout)
		defer cancelTimeout()
	}

	r := &run{
		username: username,
		baseURL:  c.baseURL,
		acc:      NewAccumulator(),
		sink:     sink,
		cancel:   cancel,
		logger:   logger,
	}

	start := time.Now()
	logger.Info().Msg("collection started")

	err = c.collect(ctx, r)

	if sinkErr := r.sinkError(); sinkErr != nil {
		logger.Info().Int("videos", r.acc.Len()).Msg("collection abandoned, stream closed")
		return sinkErr
	}
	if parent.Err() != nil {
		logger.Info().Int("videos", r.acc.Len()).Msg("collection cancelled")
		return parent.Err()
	}
	if err != nil {
		if cause := context.Cause(ctx); errors.Is(cause, ErrSessionTimeout) {
			err = fmt.Errorf("%w after %v", ErrSessionTimeout, c.sessionTimeout)
		}
		logger.Error().Err(err).Int("videos", r.acc.Len()).Dur("elapsed", time.Since(start)).Msg("collection failed")
		_ = r.emit(Event{Name: EventError, Data: ErrorData{Message: err.Error()}})
		return err
	}

	videos := r.acc.Videos()
	logger.Info().Int("videos", len(videos)).Dur("elapsed", time.Since(start)).Msg("collection complete")
	return r.emit(Event{Name: EventComplete, Data: CompleteData{
		Username:    username,
		SecUID:      r.secUID(),
		TotalVideos: len(videos),
		FetchedAt:   formatISO(c.now()),
		Videos:      videos,
	}})
}

func (c *Collector) collect(ctx context.Context, r *run) error {
	domain, err := CookieDomain(c.baseURL)
	if err != nil {
		return err
	}

	launchStart := time.Now()
	session, err := c.launcher.Launch(ctx, LaunchOptions{Cookies: c.cookies, CookieDomain: domain})
	if err != nil {
		return fmt.Errorf("start browser session: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			r.logger.Warn().Err(err).Msg("browser teardown")
		}
		r.logger.Debug().Msg("browser released")
	}()
	r.logger.Debug().Dur("elapsed", time.Since(launchStart)).Msg("browser session ready")

	sub, err := session.OnResponse(IsItemListURL, r.handleResponse)
	if err != nil {
		return fmt.Errorf("intercept responses: %w", err)
	}
	defer sub.Unsubscribe()

	navStart := time.Now()
	if err := session.Navigate(ctx, profilePageURL(c.baseURL, r.username), c.navigationTimeout); err != nil {
		return err
	}
	r.logger.Debug().Dur("elapsed", time.Since(navStart)).Msg("profile loaded")
	c.readProfile(ctx, session, r)

	if err := session.WaitVisible(ctx, postItemSelector, c.selectorTimeout); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.logger.Warn().Err(err).Msg("video grid not found")
		if err := r.emit(Event{Name: EventLog, Data: LogData{Message: gridMissingMessage}}); err != nil {
			return err
		}
	}

	return c.scroll(ctx, session, r)
}

// readProfile picks the owner's secUid from the server-rendered page. The
// page is not required to carry it.
func (c *Collector) readProfile(ctx context.Context, session Session, r *run) {
	html, err := session.HTML(ctx)
	if err != nil {
		r.logger.Debug().Err(err).Msg("page html unavailable")
		return
	}
	info, err := extractProfileInfo([]byte(html))
	if err != nil {
		r.logger.Debug().Err(err).Msg("no profile metadata")
		return
	}
	if !info.matches(r.username) {
		r.logger.Warn().Str("page_user", info.UniqueID).Msg("profile page belongs to another user")
		return
	}
	if info.SecUID != "" {
		r.setSecUID(info.SecUID)
	}
	r.logger.Debug().Str("nickname", info.Nickname).Int("video_count", info.VideoCount).Msg("profile metadata")
}

// scroll drives the page until the stabilizer reports StateDone.
func (c *Collector) scroll(ctx context.Context, session Session, r *run) error {
	height, err := session.ScrollHeight(ctx)
	if err != nil {
		return err
	}

	stab := NewStabilizer(height)
	for scrolls := 0; stab.State() != StateDone; scrolls++ {
		if c.maxScrolls > 0 && scrolls >= c.maxScrolls {
			r.logger.Warn().Int("scrolls", scrolls).Msg("scroll limit reached")
			msg := fmt.Sprintf("Stopped after %d scrolls", scrolls)
			return r.emit(Event{Name: EventLog, Data: LogData{Message: msg}})
		}

		if err := session.ScrollToBottom(ctx); err != nil {
			return err
		}
		if err := c.sleep(ctx, c.jitter(c.scrollPauseMin, c.scrollPauseMax)); err != nil {
			return err
		}
		height, err := session.ScrollHeight(ctx)
		if err != nil {
			return err
		}

		state := stab.Observe(height)
		r.logger.Trace().
			Int("height", height).
			Int("unchanged", stab.Unchanged()).
			Stringer("state", state).
			Int("videos", r.acc.Len()).
			Msg("scrolled")
	}
	return nil
}

// run is the state of one Collect call shared between the scroll loop and
// the response handler.
type run struct {
	username string
	baseURL  string
	acc      *Accumulator
	sink     EventSink
	cancel   context.CancelFunc
	logger   zerolog.Logger

	mu      sync.Mutex
	sinkErr error
	secUid  string
}

// handleResponse runs on the browser's event goroutine.
func (r *run) handleResponse(url string, body []byte) {
	resp, err := decodeItemList(body)
	if err != nil {
		r.logger.Debug().Err(err).Str("url", url).Msg("skipping item list response")
		return
	}

	batch := make([]CollectedVideo, 0, len(resp.ItemList))
	for _, item := range resp.ItemList {
		if item.ID == "" {
			continue
		}
		r.noteAuthor(item.Author)
		batch = append(batch, parseItem(item, r.baseURL, r.username))
	}

	added, total := r.acc.Add(batch)
	r.logger.Debug().Int("items", len(resp.ItemList)).Int("new", added).Int("total", total).Bool("has_more", resp.HasMore).Msg("item list intercepted")
	if added == 0 {
		return
	}
	_ = r.emit(Event{Name: EventProgress, Data: ProgressData{Count: total, New: added}})
}

func (r *run) noteAuthor(a rawItemAuthor) {
	if a.SecUID == "" || (a.UniqueID != "" && !strings.EqualFold(a.UniqueID, r.username)) {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.secUid == "" {
		r.secUid = a.SecUID
	}
}

func (r *run) setSecUID(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.secUid = s
}

func (r *run) secUID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.secUid
}

// emit serializes sink calls. The first sink failure cancels the run.
func (r *run) emit(e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sinkErr != nil {
		return r.sinkErr
	}
	if err := r.sink.Emit(e); err != nil {
		r.sinkErr = fmt.Errorf("%w: %v", ErrStreamClosed, err)
		r.cancel()
		return r.sinkErr
	}
	return nil
}

func (r *run) sinkError() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sinkErr
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// randomPause returns a uniformly random duration in [lo, hi].
func randomPause(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(rand.Int64N(int64(hi-lo)+1))
}
