// Package media heuristically locates a representative image or embedded
// video in raw article bodies. More than ten source patterns are probed in
// order of confidence; absence of media is a normal outcome, not an error.
package media

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

var (
	enclosureRe  = regexp.MustCompile(`(?i)<(?:enclosure|media:content|media:thumbnail)[^>]*>`)
	attrURLRe    = regexp.MustCompile(`(?i)(?:url|src)\s*=\s*["']([^"']+)["']`)
	attrTypeRe   = regexp.MustCompile(`(?i)type\s*=\s*["']([^"']+)["']`)
	cssBgRe      = regexp.MustCompile(`(?i)background(?:-image)?\s*:\s*url\(\s*['"]?([^'")\s]+)`)
	bareURLRe    = regexp.MustCompile(`https?://[^\s"'<>)\]]+`)
	youtubeIDRe  = regexp.MustCompile(`(?:youtube\.com/(?:watch\?v=|shorts/|embed/|v/)|youtu\.be/)([A-Za-z0-9_-]{6,})`)
	vimeoIDRe    = regexp.MustCompile(`vimeo\.com/(?:video/)?(\d+)`)
	srcsetItemRe = regexp.MustCompile(`^\s*(\S+)`)
)

// lazyAttrs are the src-like attributes probed on img and source tags,
// in priority order. Lazy-load variants come after the plain src.
var lazyAttrs = []string{"src", "data-src", "data-lazy-src", "data-original", "data-srcset", "srcset"}

// imageExtensions accepted by the validity check
var imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".avif", ".svg", ".bmp"}

// imageHosts are known image CDN / hosting substrings
var imageHosts = []string{
	"ytimg.com", "vumbnail.com", "cloudinary.com", "imgix.net", "cloudfront.net",
	"wp.com", "gravatar.com", "unsplash.com", "imgur.com", "staticflickr.com",
	"twimg.com", "substackcdn.com", "googleusercontent.com", "media.giphy.com",
}

// imagePaths are conventional image path fragments
var imagePaths = []string{"/wp-content/uploads/", "/media/", "/images/", "/img/", "/uploads/", "/photo/", "/thumbnails/"}

// ExtractImage returns the best image URL found in the body, or the empty
// string when nothing passes the validity check
func ExtractImage(body string) string {
	if strings.TrimSpace(body) == "" {
		return ""
	}

	// (a) explicit enclosure / media tags with an image type
	if u := fromEnclosures(body); u != "" {
		return u
	}

	// (b) img and source tags, including lazy-load attribute variants
	if u := fromImgTags(body); u != "" {
		return u
	}

	// (c) video-platform URLs synthesized into thumbnail URLs
	if id := youtubeID(body); id != "" {
		return "https://img.youtube.com/vi/" + id + "/hqdefault.jpg"
	}
	if id := vimeoID(body); id != "" {
		return "https://vumbnail.com/" + id + ".jpg"
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err == nil {
		// (d) Open Graph / Twitter Card meta tags
		if u := fromMeta(doc, `meta[property="og:image"], meta[property="og:image:url"], meta[name="twitter:image"], meta[name="twitter:image:src"]`); u != "" {
			return u
		}

		// (e) other generic image meta tags
		if u := fromMeta(doc, `meta[itemprop="image"], meta[name="thumbnail"]`); u != "" {
			return u
		}
	}

	// (f) CSS background-image declarations
	if m := cssBgRe.FindStringSubmatch(body); len(m) > 1 && IsLikelyImageURL(m[1]) {
		return m[1]
	}

	if err == nil {
		// (g) figure / picture nested images
		if u := fromFigures(doc); u != "" {
			return u
		}

		// (h) JSON-LD structured data
		if u := fromJSONLD(doc); u != "" {
			return u
		}
	}

	// (i) bare URLs on known image hosts or with image extensions
	for _, candidate := range bareURLRe.FindAllString(body, -1) {
		if IsLikelyImageURL(candidate) {
			return candidate
		}
	}

	return ""
}

// IsLikelyImageURL reports whether a candidate URL plausibly points at an
// image: image extension, known image host, conventional image path, or a
// data:image URI
func IsLikelyImageURL(u string) bool {
	u = strings.TrimSpace(u)
	if u == "" {
		return false
	}
	if strings.HasPrefix(u, "data:image/") {
		return true
	}
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") && !strings.HasPrefix(u, "//") {
		return false
	}

	lower := strings.ToLower(u)
	path := lower
	if idx := strings.IndexAny(path, "?#"); idx >= 0 {
		path = path[:idx]
	}
	for _, ext := range imageExtensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	for _, host := range imageHosts {
		if strings.Contains(lower, host) {
			return true
		}
	}
	for _, p := range imagePaths {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// fromEnclosures probes explicit enclosure-style tags
func fromEnclosures(body string) string {
	for _, tag := range enclosureRe.FindAllString(body, -1) {
		urlMatch := attrURLRe.FindStringSubmatch(tag)
		if len(urlMatch) < 2 {
			continue
		}
		candidate := urlMatch[1]
		if typeMatch := attrTypeRe.FindStringSubmatch(tag); len(typeMatch) > 1 {
			if strings.HasPrefix(strings.ToLower(typeMatch[1]), "image/") {
				return candidate
			}
			continue // typed as something else, don't guess
		}
		if IsLikelyImageURL(candidate) {
			return candidate
		}
	}
	return ""
}

// fromImgTags scans the fragment with a tolerant tokenizer, catching img
// and source tags even inside malformed HTML
func fromImgTags(body string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(body))
	for {
		tt := tokenizer.Next()
		if tt == html.ErrorToken {
			return ""
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}
		token := tokenizer.Token()
		if token.Data != "img" && token.Data != "source" {
			continue
		}
		attrs := map[string]string{}
		for _, a := range token.Attr {
			attrs[a.Key] = a.Val
		}
		for _, key := range lazyAttrs {
			val := attrs[key]
			if val == "" {
				continue
			}
			if strings.Contains(key, "srcset") {
				if m := srcsetItemRe.FindStringSubmatch(val); len(m) > 1 {
					val = m[1]
				}
			}
			if IsLikelyImageURL(val) {
				return val
			}
		}
	}
}

// fromMeta returns the first valid content attribute for the selector
func fromMeta(doc *goquery.Document, selector string) string {
	var found string
	doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if content, ok := s.Attr("content"); ok && IsLikelyImageURL(content) {
			found = content
			return false
		}
		return true
	})
	return found
}

// fromFigures probes figure and picture elements
func fromFigures(doc *goquery.Document) string {
	var found string
	doc.Find("figure img, picture img, picture source").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		for _, key := range lazyAttrs {
			val, ok := s.Attr(key)
			if !ok || val == "" {
				continue
			}
			if strings.Contains(key, "srcset") {
				if m := srcsetItemRe.FindStringSubmatch(val); len(m) > 1 {
					val = m[1]
				}
			}
			if IsLikelyImageURL(val) {
				found = val
				return false
			}
		}
		return true
	})
	return found
}

// fromJSONLD reads the image field out of ld+json blocks. The field shows
// up as a string, a list, or an ImageObject.
func fromJSONLD(doc *goquery.Document) string {
	var found string
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var payload struct {
			Image json.RawMessage `json:"image"`
		}
		if err := json.Unmarshal([]byte(s.Text()), &payload); err != nil || payload.Image == nil {
			return true
		}
		if u := jsonLDImage(payload.Image); u != "" {
			found = u
			return false
		}
		return true
	})
	return found
}

func jsonLDImage(raw json.RawMessage) string {
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		if IsLikelyImageURL(asString) {
			return asString
		}
		return ""
	}

	var asList []json.RawMessage
	if err := json.Unmarshal(raw, &asList); err == nil {
		for _, entry := range asList {
			if u := jsonLDImage(entry); u != "" {
				return u
			}
		}
		return ""
	}

	var asObject struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(raw, &asObject); err == nil && IsLikelyImageURL(asObject.URL) {
		return asObject.URL
	}
	return ""
}

func youtubeID(body string) string {
	if m := youtubeIDRe.FindStringSubmatch(body); len(m) > 1 {
		return m[1]
	}
	return ""
}

func vimeoID(body string) string {
	if m := vimeoIDRe.FindStringSubmatch(body); len(m) > 1 {
		return m[1]
	}
	return ""
}
