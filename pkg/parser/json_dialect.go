package parser

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/aipulse/pulse/pkg/domain"
	"github.com/aipulse/pulse/pkg/media"
)

// jsonEnvelope is the rss2json-style dialect: {"status":"ok","items":[...]}
type jsonEnvelope struct {
	Status string     `json:"status"`
	Items  []jsonItem `json:"items"`
}

type jsonItem struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	GUID        string `json:"guid"`
	PubDate     string `json:"pubDate"`
	Author      string `json:"author"`
	Thumbnail   string `json:"thumbnail"`
	Description string `json:"description"`
	Content     string `json:"content"`
	Enclosure   struct {
		Link string `json:"link"`
		Type string `json:"type"`
	} `json:"enclosure"`
}

// jsonDateLayouts are tried in order; rss2json emits the first one
var jsonDateLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
}

// parseJSONDialect attempts to read the payload as the JSON feed dialect.
// ok is false when the payload does not have the recognizable envelope
// shape, letting the caller fall through to XML parsing.
func (p *Parser) parseJSONDialect(body string, src domain.FeedSource) ([]domain.Article, bool) {
	var envelope jsonEnvelope
	if err := json.Unmarshal([]byte(body), &envelope); err != nil {
		return nil, false
	}
	if envelope.Status != "ok" && envelope.Items == nil {
		return nil, false
	}

	articles := make([]domain.Article, 0, len(envelope.Items))
	for _, item := range envelope.Items {
		title := strings.TrimSpace(item.Title)
		link := strings.TrimSpace(item.Link)
		if title == "" && link == "" {
			lgr.Printf("[DEBUG] skipping json item without title and link in %s", src.Name)
			continue
		}

		rawBody := item.Content
		if rawBody == "" {
			rawBody = item.Description
		}

		article := domain.Article{
			Title:         p.cleanText(title),
			CanonicalLink: link,
			Summary:       p.cleanText(rawBody),
			Author:        domain.DefaultAuthor,
			SourceName:    src.Name,
			Category:      src.Category,
		}
		article.Preview = truncate(article.Summary, previewLen)

		if author := strings.TrimSpace(item.Author); author != "" {
			article.Author = author
		}

		if ts, ok := parseJSONDate(item.PubDate); ok {
			article.PublishedAt = ts
			article.DateKnown = true
		} else {
			article.PublishedAt = p.now()
		}

		fragment := jsonMediaFragment(item, rawBody)
		article.ImageURL = media.ExtractImage(fragment)
		article.VideoURL = media.ExtractVideo(fragment)

		articles = append(articles, article)
	}
	return articles, true
}

// jsonMediaFragment renders the dialect's explicit media fields as probe
// targets ahead of the item body
func jsonMediaFragment(item jsonItem, rawBody string) string {
	var b strings.Builder
	if item.Thumbnail != "" {
		fmt.Fprintf(&b, `<img src=%q>`, item.Thumbnail)
	}
	if item.Enclosure.Link != "" {
		fmt.Fprintf(&b, `<enclosure url=%q type=%q/>`, item.Enclosure.Link, item.Enclosure.Type)
	}
	b.WriteString(rawBody)
	b.WriteString("\n")
	b.WriteString(item.Link)
	return b.String()
}

func parseJSONDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range jsonDateLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
