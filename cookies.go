package tiktok

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// ParseCookieString parses a browser-style cookie header ("a=1; b=2").
// Values are split on the first '=' only so base64 padding survives. Pairs
// with an empty name or value are dropped.
func ParseCookieString(s string) []*http.Cookie {
	var cookies []*http.Cookie
	for _, pair := range strings.Split(s, ";") {
		name, value, _ := strings.Cut(strings.TrimSpace(pair), "=")
		name = strings.TrimSpace(name)
		value = strings.TrimSpace(value)
		if name == "" || value == "" {
			continue
		}
		cookies = append(cookies, &http.Cookie{Name: name, Value: value, Path: "/", Secure: true})
	}
	return cookies
}

// FormatCookieString is the inverse of ParseCookieString.
func FormatCookieString(cookies []*http.Cookie) string {
	parts := make([]string, 0, len(cookies))
	for _, c := range cookies {
		parts = append(parts, c.Name+"="+c.Value)
	}
	return strings.Join(parts, "; ")
}

// SaveCookies writes cookies to a JSON file.
func SaveCookies(path string, cookies []*http.Cookie) error {
	data, err := json.Marshal(cookies)
	if err != nil {
		return fmt.Errorf("marshal cookies: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

// LoadCookies reads a cookie file. Both a JSON array of cookies (as written
// by SaveCookies) and a raw cookie header string are accepted.
func LoadCookies(path string) ([]*http.Cookie, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cookies file: %w", err)
	}

	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var cookies []*http.Cookie
		if err := json.Unmarshal(data, &cookies); err != nil {
			return nil, fmt.Errorf("unmarshal cookies: %w", err)
		}
		return cookies, nil
	}

	cookies := ParseCookieString(string(data))
	if len(cookies) == 0 {
		return nil, fmt.Errorf("cookies file %q: %w", path, ErrNoCookies)
	}
	return cookies, nil
}

// CookieDomain returns the domain attribute ("." + registrable domain) that
// covers every host of baseURL, e.g. ".tiktok.com" for https://www.tiktok.com.
func CookieDomain(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	host := u.Hostname()
	if host == "" {
		return "", fmt.Errorf("parse base url: missing host in %q", baseURL)
	}
	if net.ParseIP(host) != nil {
		return host, nil
	}
	etld1, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		// Single-label hosts such as localhost have no registrable domain.
		return host, nil
	}
	return "." + etld1, nil
}
