package media

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ExtractVideo returns an embeddable video URL found in the body, or the
// empty string. Known platform watch/short/embed shapes are normalized to
// that platform's embed URL, with generic iframe and video tags as the
// fallback.
func ExtractVideo(body string) string {
	if strings.TrimSpace(body) == "" {
		return ""
	}

	if id := youtubeID(body); id != "" {
		return "https://www.youtube.com/embed/" + id
	}
	if id := vimeoID(body); id != "" {
		return "https://player.vimeo.com/video/" + id
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return ""
	}

	// generic embeds
	if u := findSrc(doc, "iframe"); u != "" {
		return u
	}
	if u := findSrc(doc, "video, video source"); u != "" {
		return u
	}
	return ""
}

func findSrc(doc *goquery.Document, selector string) string {
	var found string
	doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if src, ok := s.Attr("src"); ok && strings.HasPrefix(src, "http") {
			found = src
			return false
		}
		return true
	})
	return found
}
