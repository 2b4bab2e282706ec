package provider

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	youtube "google.golang.org/api/youtube/v3"
)

// youtubeCategories maps the YouTube category IDs seen in practice onto the
// catalog's category names. Unknown IDs fall back to "other".
var youtubeCategories = map[string]string{
	"1":  "film",
	"2":  "autos",
	"10": "music",
	"15": "pets",
	"17": "sports",
	"19": "travel",
	"20": "gaming",
	"22": "people",
	"23": "comedy",
	"24": "entertainment",
	"25": "news",
	"26": "howto",
	"27": "education",
	"28": "science_tech",
}

// mapVideo transforms one YouTube video into a generic item. Pure and
// side-effect free; validation failures surface as ValidationError.
func mapVideo(v *youtube.Video) (Item, error) {
	if v == nil || v.Id == "" {
		return Item{}, &ValidationError{Reason: "video missing id"}
	}
	if v.Snippet == nil {
		return Item{}, &ValidationError{ItemID: v.Id, Reason: "video missing snippet"}
	}
	publishedAt, err := time.Parse(time.RFC3339, v.Snippet.PublishedAt)
	if err != nil {
		return Item{}, &ValidationError{ItemID: v.Id, Reason: fmt.Sprintf("unparseable publish time %q", v.Snippet.PublishedAt)}
	}

	item := Item{
		ExternalID:   v.Id,
		Title:        v.Snippet.Title,
		Description:  v.Snippet.Description,
		PublishedAt:  publishedAt.UTC(),
		ThumbnailURL: bestThumbnail(v.Snippet.Thumbnails),
		CategoryID:   v.Snippet.CategoryId,
	}
	if v.ContentDetails != nil {
		dur, err := parseISODuration(v.ContentDetails.Duration)
		if err != nil {
			return Item{}, &ValidationError{ItemID: v.Id, Reason: fmt.Sprintf("unparseable duration %q", v.ContentDetails.Duration)}
		}
		item.DurationSec = dur
	}
	if v.Statistics != nil {
		item.Views = int64(v.Statistics.ViewCount)
		item.Likes = int64(v.Statistics.LikeCount)
		item.Comments = int64(v.Statistics.CommentCount)
	}
	return item, nil
}

// CategoryName maps a provider category ID onto a catalog category.
func CategoryName(categoryID string) string {
	if name, ok := youtubeCategories[categoryID]; ok {
		return name
	}
	return "other"
}

// bestThumbnail prefers the highest resolution variant available.
func bestThumbnail(t *youtube.ThumbnailDetails) string {
	if t == nil {
		return ""
	}
	for _, thumb := range []*youtube.Thumbnail{t.Maxres, t.Standard, t.High, t.Medium, t.Default} {
		if thumb != nil && thumb.Url != "" {
			return thumb.Url
		}
	}
	return ""
}

// parseISODuration parses the ISO 8601 durations YouTube emits (PT1H2M3S,
// P1DT2H). Fractional components are not produced by the API and are
// rejected.
func parseISODuration(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	rest, ok := strings.CutPrefix(s, "P")
	if !ok {
		return 0, fmt.Errorf("duration %q missing P prefix", s)
	}

	var total int64
	inTime := false
	num := ""
	for _, r := range rest {
		switch {
		case r >= '0' && r <= '9':
			num += string(r)
			continue
		case r == 'T':
			inTime = true
			continue
		}
		n, err := strconv.ParseInt(num, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("duration %q has invalid component before %q", s, r)
		}
		num = ""
		switch {
		case r == 'D' && !inTime:
			total += n * 86400
		case r == 'H' && inTime:
			total += n * 3600
		case r == 'M' && inTime:
			total += n * 60
		case r == 'S' && inTime:
			total += n
		default:
			return 0, fmt.Errorf("duration %q has unsupported designator %q", s, r)
		}
	}
	if num != "" {
		return 0, fmt.Errorf("duration %q has trailing digits", s)
	}
	return total, nil
}
