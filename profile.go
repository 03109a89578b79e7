package tiktok

import (
	"fmt"
	"regexp"
	"strings"
)

const defaultBaseURL = "https://www.tiktok.com"

var handlePattern = regexp.MustCompile(`@([^/?#]+)`)

// itemListPaths are the internal endpoints the profile grid pages through.
var itemListPaths = []string{"/api/post/item_list/", "/api/item_list/"}

// ParseProfileHandle extracts the creator handle from a profile URL such as
// https://www.tiktok.com/@someone?lang=en.
func ParseProfileHandle(profileURL string) (string, error) {
	m := handlePattern.FindStringSubmatch(strings.TrimSpace(profileURL))
	if m == nil {
		return "", fmt.Errorf("%w: no @handle in %q", ErrInvalidProfileURL, profileURL)
	}
	return m[1], nil
}

// IsItemListURL reports whether a network response URL belongs to the
// paginated video list of a profile.
func IsItemListURL(u string) bool {
	for _, p := range itemListPaths {
		if strings.Contains(u, p) {
			return true
		}
	}
	return false
}

func profilePageURL(baseURL, username string) string {
	return strings.TrimRight(baseURL, "/") + "/@" + username
}

func videoURL(baseURL, username, id string) string {
	return profilePageURL(baseURL, username) + "/video/" + id
}
