package config

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/zalando/go-keyring"

	tiktok "github.com/RavensCloud/tiktok-collector"
)

const (
	keyringService = "tiktok-collector"
	keyringUser    = "cookie"
)

// CookieSource names where a session cookie was found.
type CookieSource string

const (
	SourceConfig  CookieSource = "config"
	SourceFile    CookieSource = "cookie_file"
	SourceKeyring CookieSource = "keyring"
)

// ResolveCookies returns the session cookies from the first source that has
// them: the cookie value (flag, TIKTOK_COOKIE or YAML, already merged by
// Load), then cookie_file, then the OS keyring.
func (c *Config) ResolveCookies() ([]*http.Cookie, CookieSource, error) {
	if s := strings.TrimSpace(c.TikTok.Cookie); s != "" {
		cookies := tiktok.ParseCookieString(s)
		if len(cookies) == 0 {
			return nil, "", fmt.Errorf("cookie value: %w", tiktok.ErrNoCookies)
		}
		return cookies, SourceConfig, nil
	}

	if c.TikTok.CookieFile != "" {
		cookies, err := tiktok.LoadCookies(c.TikTok.CookieFile)
		if err != nil {
			return nil, "", err
		}
		return cookies, SourceFile, nil
	}

	stored, err := LoadStoredCookie()
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", tiktok.ErrNoCookies, err)
	}
	if cookies := tiktok.ParseCookieString(stored); len(cookies) > 0 {
		return cookies, SourceKeyring, nil
	}

	return nil, "", tiktok.ErrNoCookies
}

// ExportCookies writes the resolved session cookies to path, as a JSON array
// or, when raw is set, as a cookie header string. Either form can be used as
// cookie_file.
func (c *Config) ExportCookies(path string, raw bool) (CookieSource, int, error) {
	cookies, source, err := c.ResolveCookies()
	if err != nil {
		return "", 0, err
	}
	if raw {
		err = os.WriteFile(path, []byte(tiktok.FormatCookieString(cookies)+"\n"), 0600)
	} else {
		err = tiktok.SaveCookies(path, cookies)
	}
	if err != nil {
		return "", 0, fmt.Errorf("export cookies: %w", err)
	}
	return source, len(cookies), nil
}

// StoreCookie saves a cookie string in the OS keyring, normalised to
// "name=value; name2=value2".
func StoreCookie(cookie string) error {
	cookies := tiktok.ParseCookieString(cookie)
	if len(cookies) == 0 {
		return tiktok.ErrNoCookies
	}
	if err := keyring.Set(keyringService, keyringUser, tiktok.FormatCookieString(cookies)); err != nil {
		return fmt.Errorf("store cookie in keyring: %w", err)
	}
	return nil
}

// LoadStoredCookie returns the keyring cookie, or "" when none is stored.
func LoadStoredCookie() (string, error) {
	s, err := keyring.Get(keyringService, keyringUser)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read cookie from keyring: %w", err)
	}
	return s, nil
}

// ClearStoredCookie removes the keyring cookie. Clearing nothing is not an
// error.
func ClearStoredCookie() error {
	err := keyring.Delete(keyringService, keyringUser)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("delete cookie from keyring: %w", err)
	}
	return nil
}
