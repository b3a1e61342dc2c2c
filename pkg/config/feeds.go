package config

import "github.com/aipulse/pulse/pkg/domain"

// category labels used by the built-in feed table
const (
	CategoryAINews   = "ai-news"
	CategoryResearch = "research"
	CategoryML       = "machine-learning"
	CategoryRobotics = "robotics"
	CategoryIndustry = "industry"
	CategoryVideos   = "videos"
)

// Categories lists all known category labels in display order
func Categories() []string {
	return []string{CategoryAINews, CategoryResearch, CategoryML, CategoryRobotics, CategoryIndustry, CategoryVideos}
}

// DefaultFeeds is the static feed source table. The labels and URLs are
// content, not architecture: they define what the aggregator covers.
func DefaultFeeds() []domain.FeedSource {
	return []domain.FeedSource{
		// ai news
		{Name: "MIT Technology Review", URL: "https://www.technologyreview.com/feed/", Kind: domain.KindRSS, Category: CategoryAINews, Priority: domain.PriorityHigh},
		{Name: "VentureBeat AI", URL: "https://venturebeat.com/category/ai/feed/", Kind: domain.KindRSS, Category: CategoryAINews, Priority: domain.PriorityHigh},
		{Name: "The Verge AI", URL: "https://www.theverge.com/rss/ai-artificial-intelligence/index.xml", Kind: domain.KindAtom, Category: CategoryAINews, Priority: domain.PriorityHigh},
		{Name: "Wired AI", URL: "https://www.wired.com/feed/tag/ai/latest/rss", Kind: domain.KindRSS, Category: CategoryAINews, Priority: domain.PriorityMedium},
		{Name: "MarkTechPost", URL: "https://www.marktechpost.com/feed/", Kind: domain.KindRSS, Category: CategoryAINews, Priority: domain.PriorityMedium},

		// research
		{Name: "arXiv cs.AI", URL: "https://export.arxiv.org/rss/cs.AI", Kind: domain.KindRSS, Category: CategoryResearch, Priority: domain.PriorityHigh},
		{Name: "arXiv cs.CL", URL: "https://export.arxiv.org/rss/cs.CL", Kind: domain.KindRSS, Category: CategoryResearch, Priority: domain.PriorityMedium},
		{Name: "Google Research", URL: "https://research.google/blog/rss/", Kind: domain.KindRSS, Category: CategoryResearch, Priority: domain.PriorityHigh},
		{Name: "DeepMind", URL: "https://deepmind.google/blog/rss.xml", Kind: domain.KindRSS, Category: CategoryResearch, Priority: domain.PriorityMedium},
		{Name: "BAIR Blog", URL: "https://bair.berkeley.edu/blog/feed.xml", Kind: domain.KindAtom, Category: CategoryResearch, Priority: domain.PriorityMedium},

		// machine learning
		{Name: "arXiv cs.LG", URL: "https://export.arxiv.org/rss/cs.LG", Kind: domain.KindRSS, Category: CategoryML, Priority: domain.PriorityHigh},
		{Name: "Machine Learning Mastery", URL: "https://machinelearningmastery.com/blog/feed/", Kind: domain.KindRSS, Category: CategoryML, Priority: domain.PriorityMedium},
		{Name: "KDnuggets", URL: "https://www.kdnuggets.com/feed", Kind: domain.KindRSS, Category: CategoryML, Priority: domain.PriorityMedium},
		{Name: "Towards Data Science", URL: "https://api.rss2json.com/v1/api.json?rss_url=https%3A%2F%2Ftowardsdatascience.com%2Ffeed", Kind: domain.KindJSON, Category: CategoryML, Priority: domain.PriorityMedium},

		// robotics
		{Name: "IEEE Spectrum Robotics", URL: "https://spectrum.ieee.org/feeds/topic/robotics.rss", Kind: domain.KindRSS, Category: CategoryRobotics, Priority: domain.PriorityHigh},
		{Name: "The Robot Report", URL: "https://www.therobotreport.com/feed/", Kind: domain.KindRSS, Category: CategoryRobotics, Priority: domain.PriorityMedium},

		// industry
		{Name: "TechCrunch AI", URL: "https://techcrunch.com/category/artificial-intelligence/feed/", Kind: domain.KindRSS, Category: CategoryIndustry, Priority: domain.PriorityHigh},
		{Name: "AI Business", URL: "https://aibusiness.com/rss.xml", Kind: domain.KindRSS, Category: CategoryIndustry, Priority: domain.PriorityMedium},
		{Name: "The Register AI", URL: "https://www.theregister.com/software/ai_ml/headlines.atom", Kind: domain.KindAtom, Category: CategoryIndustry, Priority: domain.PriorityMedium},

		// videos, URL carries the channel id resolved to a syndication feed at fetch time
		{Name: "Two Minute Papers", URL: "https://www.youtube.com/channel/UCbfYPyITQ-7l4upoX8nvctg", Kind: domain.KindVideoChannel, Category: CategoryVideos, Priority: domain.PriorityMedium},
		{Name: "Lex Fridman", URL: "https://www.youtube.com/channel/UCSHZKyawb77ixDdsGog4iWA", Kind: domain.KindVideoChannel, Category: CategoryVideos, Priority: domain.PriorityMedium},
		{Name: "Yannic Kilcher", URL: "https://www.youtube.com/channel/UCZHmQk67mSJgfCCTn7xBfew", Kind: domain.KindVideoChannel, Category: CategoryVideos, Priority: domain.PriorityMedium},
	}
}

// DefaultProxies is the deduplicated relay table. Initial reliability and
// latency are starting estimates, adjusted from observed outcomes at runtime.
func DefaultProxies() []domain.ProxyEndpoint {
	return []domain.ProxyEndpoint{
		{Template: "https://api.allorigins.win/raw?url=%s", Reliability: 0.90, ObservedLatencyMs: 800},
		{Template: "https://corsproxy.io/?%s", Reliability: 0.85, ObservedLatencyMs: 600},
		{Template: "https://api.codetabs.com/v1/proxy?quest=%s", Reliability: 0.80, ObservedLatencyMs: 1000},
		{Template: "https://proxy.cors.sh/", Reliability: 0.75, ObservedLatencyMs: 900},
		{Template: "https://thingproxy.freeboard.io/fetch/", Reliability: 0.70, ObservedLatencyMs: 1200},
	}
}
