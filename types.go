package tiktok

import "time"

// isoMillis mirrors JavaScript's Date.toISOString, which the web client parses.
const isoMillis = "2006-01-02T15:04:05.000Z"

// CollectedVideo is one video discovered on a profile page. JSON names match
// what the web client expects in the complete event.
type CollectedVideo struct {
	ID          string     `json:"id"`
	Description string     `json:"desc"`
	CreateTime  int64      `json:"createTime"`
	CreateDate  string     `json:"createDate"`
	VideoURL    string     `json:"videoUrl"`
	Stats       VideoStats `json:"stats"`
	Cover       string     `json:"cover"`
	Duration    int        `json:"duration"`
}

// VideoStats holds the engagement counters of a CollectedVideo.
type VideoStats struct {
	PlayCount    int64 `json:"playCount"`
	DiggCount    int64 `json:"diggCount"`
	CommentCount int64 `json:"commentCount"`
	ShareCount   int64 `json:"shareCount"`
	CollectCount int64 `json:"collectCount"`
}

// CreatedAt returns the upload time of the video.
func (v CollectedVideo) CreatedAt() time.Time {
	return time.Unix(v.CreateTime, 0).UTC()
}

func formatISO(t time.Time) string {
	return t.UTC().Format(isoMillis)
}
