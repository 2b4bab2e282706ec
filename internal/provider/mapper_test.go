package provider

import (
	"errors"
	"testing"
	"time"

	"google.golang.org/api/googleapi"
	youtube "google.golang.org/api/youtube/v3"
)

func TestMapVideo(t *testing.T) {
	v := &youtube.Video{
		Id: "abc123",
		Snippet: &youtube.VideoSnippet{
			Title:       "Test Video",
			Description: "A description",
			PublishedAt: "2025-06-01T10:30:00Z",
			CategoryId:  "10",
			Thumbnails: &youtube.ThumbnailDetails{
				High:    &youtube.Thumbnail{Url: "https://img/high.jpg"},
				Default: &youtube.Thumbnail{Url: "https://img/default.jpg"},
			},
		},
		ContentDetails: &youtube.VideoContentDetails{Duration: "PT1H2M3S"},
		Statistics: &youtube.VideoStatistics{
			ViewCount:    1000,
			LikeCount:    50,
			CommentCount: 7,
		},
	}

	item, err := mapVideo(v)
	if err != nil {
		t.Fatalf("mapVideo: %v", err)
	}
	if item.ExternalID != "abc123" || item.Title != "Test Video" {
		t.Errorf("unexpected identity fields: %+v", item)
	}
	want := time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC)
	if !item.PublishedAt.Equal(want) {
		t.Errorf("PublishedAt = %v, want %v", item.PublishedAt, want)
	}
	if item.ThumbnailURL != "https://img/high.jpg" {
		t.Errorf("ThumbnailURL = %q, want the high variant", item.ThumbnailURL)
	}
	if item.DurationSec != 3723 {
		t.Errorf("DurationSec = %d, want 3723", item.DurationSec)
	}
	if item.Views != 1000 || item.Likes != 50 || item.Comments != 7 {
		t.Errorf("statistics = %d/%d/%d", item.Views, item.Likes, item.Comments)
	}
}

func TestMapVideoValidation(t *testing.T) {
	tests := []struct {
		name  string
		video *youtube.Video
	}{
		{"nil video", nil},
		{"missing id", &youtube.Video{}},
		{"missing snippet", &youtube.Video{Id: "x"}},
		{"bad publish time", &youtube.Video{Id: "x", Snippet: &youtube.VideoSnippet{PublishedAt: "yesterday"}}},
		{"bad duration", &youtube.Video{
			Id:             "x",
			Snippet:        &youtube.VideoSnippet{PublishedAt: "2025-06-01T00:00:00Z"},
			ContentDetails: &youtube.VideoContentDetails{Duration: "1h30m"},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := mapVideo(tt.video)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Errorf("err = %v, want ValidationError", err)
			}
		})
	}
}

func TestParseISODuration(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"", 0, false},
		{"PT15S", 15, false},
		{"PT4M13S", 253, false},
		{"PT1H2M3S", 3723, false},
		{"PT2H", 7200, false},
		{"P1DT2H", 93600, false},
		{"P2D", 172800, false},
		{"1H30M", 0, true},   // missing P prefix
		{"PT1.5M", 0, true},  // fractional
		{"PT90", 0, true},    // trailing digits
		{"PT3W", 0, true},    // unsupported designator
		{"P1M", 0, true},     // months unsupported (M outside T)
	}
	for _, tt := range tests {
		got, err := parseISODuration(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseISODuration(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseISODuration(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseISODuration(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestBestThumbnail(t *testing.T) {
	if got := bestThumbnail(nil); got != "" {
		t.Errorf("bestThumbnail(nil) = %q", got)
	}
	td := &youtube.ThumbnailDetails{
		Default: &youtube.Thumbnail{Url: "d"},
		Medium:  &youtube.Thumbnail{Url: "m"},
		Maxres:  &youtube.Thumbnail{Url: "x"},
	}
	if got := bestThumbnail(td); got != "x" {
		t.Errorf("bestThumbnail = %q, want maxres", got)
	}
	td.Maxres = nil
	if got := bestThumbnail(td); got != "m" {
		t.Errorf("bestThumbnail = %q, want medium", got)
	}
}

func TestCategoryName(t *testing.T) {
	if got := CategoryName("10"); got != "music" {
		t.Errorf("CategoryName(10) = %q, want music", got)
	}
	if got := CategoryName("99"); got != "other" {
		t.Errorf("CategoryName(99) = %q, want other", got)
	}
	if got := CategoryName(""); got != "other" {
		t.Errorf("CategoryName(\"\") = %q, want other", got)
	}
}

func TestClassifyYouTubeError(t *testing.T) {
	quotaErr := &googleapi.Error{
		Code:   403,
		Errors: []googleapi.ErrorItem{{Reason: "quotaExceeded"}},
	}
	if err := classifyYouTubeError("search.list", quotaErr); !errors.Is(err, ErrQuotaExhausted) {
		t.Errorf("403 quotaExceeded classified as %v, want ErrQuotaExhausted", err)
	}

	forbidden := &googleapi.Error{
		Code:   403,
		Errors: []googleapi.ErrorItem{{Reason: "forbidden"}},
	}
	if err := classifyYouTubeError("search.list", forbidden); !IsTransient(err) {
		t.Errorf("plain 403 classified as %v, want TransientError", err)
	}

	if err := classifyYouTubeError("videos.list", errors.New("connection reset")); !IsTransient(err) {
		t.Error("network error not classified transient")
	}
}
