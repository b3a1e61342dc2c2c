// Package parser turns raw feed payloads into normalized articles. It
// handles RSS 2.0/RDF and Atom through gofeed plus the rss2json-style
// JSON dialect, tolerating malformed items without dropping the feed.
package parser

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"

	"github.com/aipulse/pulse/pkg/domain"
	"github.com/aipulse/pulse/pkg/media"
)

// previewLen bounds the truncated summary shown on cards
const previewLen = 180

// Parser converts raw feed content into articles
type Parser struct {
	feedParser *gofeed.Parser
	sanitizer  *bluemonday.Policy
	now        func() time.Time
}

// New creates a parser
func New() *Parser {
	return &Parser{
		feedParser: gofeed.NewParser(),
		sanitizer:  bluemonday.StrictPolicy(),
		now:        time.Now,
	}
}

// Parse extracts normalized articles from one feed payload. Items missing
// both title and link are skipped; an unparseable payload fails the whole
// feed for this cycle but never the batch.
func (p *Parser) Parse(body string, src domain.FeedSource) ([]domain.Article, error) {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return nil, fmt.Errorf("empty feed body from %s", src.Name)
	}

	// the JSON dialect is sniffed first, everything else goes through
	// the XML parser
	if strings.HasPrefix(trimmed, "{") {
		if articles, ok := p.parseJSONDialect(trimmed, src); ok {
			return articles, nil
		}
	}

	feed, err := p.feedParser.ParseString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", src.Name, err)
	}

	articles := make([]domain.Article, 0, len(feed.Items))
	for _, item := range feed.Items {
		article, ok := p.fromFeedItem(item, src)
		if !ok {
			lgr.Printf("[DEBUG] skipping item without title and link in %s", src.Name)
			continue
		}
		articles = append(articles, article)
	}
	return articles, nil
}

// fromFeedItem normalizes one gofeed item, reporting ok=false when the
// item has neither title nor link
func (p *Parser) fromFeedItem(item *gofeed.Item, src domain.FeedSource) (domain.Article, bool) {
	title := strings.TrimSpace(item.Title)
	link := strings.TrimSpace(item.Link)
	if title == "" && link == "" {
		return domain.Article{}, false
	}

	// probe equivalent body fields in order of richness
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

	if item.Author != nil && strings.TrimSpace(item.Author.Name) != "" {
		article.Author = strings.TrimSpace(item.Author.Name)
	} else if len(item.Authors) > 0 && strings.TrimSpace(item.Authors[0].Name) != "" {
		article.Author = strings.TrimSpace(item.Authors[0].Name)
	}

	switch {
	case item.PublishedParsed != nil:
		article.PublishedAt = *item.PublishedParsed
		article.DateKnown = true
	case item.UpdatedParsed != nil:
		article.PublishedAt = *item.UpdatedParsed
		article.DateKnown = true
	default:
		// acceptable staleness: no source date means "first seen now"
		article.PublishedAt = p.now()
	}

	fragment := mediaFragment(item, rawBody)
	article.ImageURL = media.ExtractImage(fragment)
	article.VideoURL = media.ExtractVideo(fragment)

	return article, true
}

// mediaFragment assembles everything worth probing for media: explicit
// feed-level image and enclosures rendered as tags, the item body, and
// the bare link for video-platform URL recognition
func mediaFragment(item *gofeed.Item, rawBody string) string {
	var b strings.Builder
	if item.Image != nil && item.Image.URL != "" {
		fmt.Fprintf(&b, `<img src=%q>`, item.Image.URL)
	}
	for _, enc := range item.Enclosures {
		if enc != nil && enc.URL != "" {
			fmt.Fprintf(&b, `<enclosure url=%q type=%q/>`, enc.URL, enc.Type)
		}
	}
	b.WriteString(rawBody)
	b.WriteString("\n")
	b.WriteString(item.Link)
	return b.String()
}

// cleanText strips HTML tags and decodes entities
func (p *Parser) cleanText(s string) string {
	stripped := p.sanitizer.Sanitize(s)
	return strings.TrimSpace(html.UnescapeString(stripped))
}

// truncate shortens s to at most n runes, breaking on a word boundary
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	cut := string(runes[:n])
	if idx := strings.LastIndex(cut, " "); idx > n/2 {
		cut = cut[:idx]
	}
	return cut + "..."
}
