package tiktok

import (
	"encoding/json"
	"fmt"
)

// Item list API response, as returned by /api/post/item_list/ while a
// profile grid is scrolled. Only the fields we keep are declared.

type itemListResponse struct {
	ItemList []rawItem `json:"itemList"`
	HasMore  bool      `json:"hasMore"`
}

type rawItem struct {
	ID         string        `json:"id"`
	Desc       string        `json:"desc"`
	CreateTime int64         `json:"createTime"`
	Author     rawItemAuthor `json:"author"`
	Stats      rawItemStats  `json:"stats"`
	Video      rawItemVideo  `json:"video"`
}

type rawItemAuthor struct {
	UniqueID string `json:"uniqueId"`
	SecUID   string `json:"secUid"`
}

type rawItemStats struct {
	PlayCount    int64 `json:"playCount"`
	DiggCount    int64 `json:"diggCount"`
	CommentCount int64 `json:"commentCount"`
	ShareCount   int64 `json:"shareCount"`
	CollectCount int64 `json:"collectCount"`
}

type rawItemVideo struct {
	Cover    string `json:"cover"`
	Duration int    `json:"duration"`
}

// decodeItemList parses an intercepted item list body.
func decodeItemList(body []byte) (itemListResponse, error) {
	var resp itemListResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return itemListResponse{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return resp, nil
}

// parseItem converts a raw item into a CollectedVideo owned by username.
// Absent counters, cover and duration stay at their zero values.
func parseItem(raw rawItem, baseURL, username string) CollectedVideo {
	v := CollectedVideo{
		ID:          raw.ID,
		Description: raw.Desc,
		CreateTime:  raw.CreateTime,
		VideoURL:    videoURL(baseURL, username, raw.ID),
		Stats: VideoStats{
			PlayCount:    raw.Stats.PlayCount,
			DiggCount:    raw.Stats.DiggCount,
			CommentCount: raw.Stats.CommentCount,
			ShareCount:   raw.Stats.ShareCount,
			CollectCount: raw.Stats.CollectCount,
		},
		Cover:    raw.Video.Cover,
		Duration: raw.Video.Duration,
	}
	v.CreateDate = formatISO(v.CreatedAt())
	return v
}
