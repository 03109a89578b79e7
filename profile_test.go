package tiktok

import (
	"errors"
	"testing"
)

func TestParseProfileHandle(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		url     string
		want    string
		wantErr bool
	}{
		{"plain", "https://www.tiktok.com/@creator", "creator", false},
		{"query", "https://www.tiktok.com/@creator?lang=en", "creator", false},
		{"trailing slash", "https://www.tiktok.com/@creator/", "creator", false},
		{"video path", "https://www.tiktok.com/@creator/video/123", "creator", false},
		{"fragment", "https://www.tiktok.com/@creator#top", "creator", false},
		{"dots and underscores", "https://www.tiktok.com/@the.real_one", "the.real_one", false},
		{"surrounding space", "  https://www.tiktok.com/@creator  ", "creator", false},
		{"no handle", "https://www.tiktok.com/explore", "", true},
		{"bare at", "https://www.tiktok.com/@", "", true},
		{"empty", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseProfileHandle(tt.url)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidProfileURL) {
					t.Fatalf("expected ErrInvalidProfileURL, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestIsItemListURL(t *testing.T) {
	t.Parallel()
	tests := []struct {
		url  string
		want bool
	}{
		{"https://www.tiktok.com/api/post/item_list/?aid=1988&count=35&cursor=0", true},
		{"https://www.tiktok.com/api/item_list/?count=30", true},
		{"https://www.tiktok.com/api/user/detail/?uniqueId=creator", false},
		{"https://www.tiktok.com/api/recommend/item_list/", false},
		{"https://p16.tiktokcdn.com/cover.jpeg", false},
	}
	for _, tt := range tests {
		if got := IsItemListURL(tt.url); got != tt.want {
			t.Errorf("IsItemListURL(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

func TestVideoURL(t *testing.T) {
	t.Parallel()
	got := videoURL("https://www.tiktok.com/", "creator", "7330000000000000000")
	want := "https://www.tiktok.com/@creator/video/7330000000000000000"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}
