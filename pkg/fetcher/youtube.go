package fetcher

import (
	"fmt"
	"net/url"
	"strings"
)

// SyndicationURL derives the provider's feed URL from a configured
// video-channel URL. Supported shapes: a /channel/<id> or /user/<name>
// YouTube URL, or a bare UC... channel identifier.
func SyndicationURL(channelURL string) (string, error) {
	if strings.HasPrefix(channelURL, "UC") && !strings.Contains(channelURL, "/") {
		return "https://www.youtube.com/feeds/videos.xml?channel_id=" + url.QueryEscape(channelURL), nil
	}

	u, err := url.Parse(channelURL)
	if err != nil {
		return "", fmt.Errorf("parse channel url %q: %w", channelURL, err)
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) >= 2 {
		switch parts[0] {
		case "channel":
			return "https://www.youtube.com/feeds/videos.xml?channel_id=" + url.QueryEscape(parts[1]), nil
		case "user", "c":
			return "https://www.youtube.com/feeds/videos.xml?user=" + url.QueryEscape(parts[1]), nil
		}
	}

	return "", fmt.Errorf("unsupported channel url %q", channelURL)
}
