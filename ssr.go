package tiktok

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

var (
	ssrTagOpen  = []byte(`<script id="__UNIVERSAL_DATA_FOR_REHYDRATION__" type="application/json">`)
	ssrTagClose = []byte(`</script>`)
)

// profileInfo is what the server-rendered profile page says about its owner.
type profileInfo struct {
	UniqueID   string
	SecUID     string
	Nickname   string
	VideoCount int
}

type universalData struct {
	DefaultScope struct {
		UserDetail struct {
			UserInfo struct {
				User struct {
					UniqueID string `json:"uniqueId"`
					SecUID   string `json:"secUid"`
					Nickname string `json:"nickname"`
				} `json:"user"`
				Stats struct {
					VideoCount int `json:"videoCount"`
				} `json:"stats"`
			} `json:"userInfo"`
		} `json:"webapp.user-detail"`
	} `json:"__DEFAULT_SCOPE__"`
}

// extractProfileInfo finds the __UNIVERSAL_DATA_FOR_REHYDRATION__ JSON in a
// rendered profile page and returns the owner's details.
func extractProfileInfo(html []byte) (profileInfo, error) {
	start := bytes.Index(html, ssrTagOpen)
	if start == -1 {
		return profileInfo{}, fmt.Errorf("%w: rehydration script tag not found", ErrInvalidResponse)
	}
	start += len(ssrTagOpen)

	end := bytes.Index(html[start:], ssrTagClose)
	if end == -1 {
		return profileInfo{}, fmt.Errorf("%w: closing script tag not found", ErrInvalidResponse)
	}

	var data universalData
	if err := json.Unmarshal(html[start:start+end], &data); err != nil {
		return profileInfo{}, fmt.Errorf("%w: rehydration data: %v", ErrInvalidResponse, err)
	}

	info := data.DefaultScope.UserDetail.UserInfo
	if info.User.UniqueID == "" {
		return profileInfo{}, fmt.Errorf("%w: user missing from rehydration data", ErrInvalidResponse)
	}
	return profileInfo{
		UniqueID:   info.User.UniqueID,
		SecUID:     info.User.SecUID,
		Nickname:   info.User.Nickname,
		VideoCount: info.Stats.VideoCount,
	}, nil
}

// matches reports whether the page belongs to username.
func (p profileInfo) matches(username string) bool {
	return strings.EqualFold(p.UniqueID, username)
}
