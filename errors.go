package tiktok

import "errors"

var (
	ErrInvalidProfileURL = errors.New("tiktok: invalid profile url")
	ErrNoCookies         = errors.New("tiktok: session cookie not configured")
	ErrBrowserNotReady   = errors.New("tiktok: browser not initialized")
	ErrNavigationTimeout = errors.New("tiktok: navigation timed out")
	ErrSessionTimeout    = errors.New("tiktok: collection exceeded session timeout")
	ErrInvalidResponse   = errors.New("tiktok: invalid response")
	ErrStreamClosed      = errors.New("tiktok: event stream closed")
)
