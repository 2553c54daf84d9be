// Package news reads Indian market RSS feeds and picks headlines that mention
// a watched symbol.
package news

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"

	"github.com/seenimoa/optionpulse/internal/analysis/sentiment"
	"github.com/seenimoa/optionpulse/internal/config"
	"github.com/seenimoa/optionpulse/internal/infra"
	"github.com/seenimoa/optionpulse/internal/logging"
	"github.com/seenimoa/optionpulse/pkg/models"
	"github.com/seenimoa/optionpulse/pkg/utils"
)

const marketKey = "market"

// Reader fetches and caches articles from a fixed set of RSS feeds.
type Reader struct {
	feeds   []string
	cache   *infra.Cache[[]models.NewsArticle]
	limiter *infra.RateLimiter
	parser  *gofeed.Parser
	now     func() time.Time
	log     zerolog.Logger
}

// NewReader creates a reader over the configured feeds.
func NewReader(cfg config.NewsConfig) *Reader {
	ttl := time.Duration(cfg.CacheTTLSec) * time.Second
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Reader{
		feeds:   cfg.Feeds,
		cache:   infra.NewCache[[]models.NewsArticle](ttl),
		limiter: infra.NewRateLimiter(2, time.Second), // conservative: 2 req/s
		parser:  gofeed.NewParser(),
		now:     time.Now,
		log:     logging.Component("news"),
	}
}

// Market returns recent articles from every feed, newest first. Feeds that
// fail are skipped.
func (r *Reader) Market(ctx context.Context, limit int) ([]models.NewsArticle, error) {
	all, err := r.cache.GetOrFetch(marketKey, func() ([]models.NewsArticle, error) {
		var out []models.NewsArticle
		var failed int
		for _, feedURL := range r.feeds {
			articles, err := r.fetchRSS(ctx, feedURL)
			if err != nil {
				failed++
				r.log.Warn().Err(err).Str("feed", feedURL).Msg("rss fetch failed")
				continue
			}
			out = append(out, articles...)
		}
		if len(r.feeds) > 0 && failed == len(r.feeds) {
			return nil, fmt.Errorf("all %d news feeds failed", failed)
		}
		sortArticlesByDate(out)
		return out, nil
	})
	if err != nil {
		return nil, err
	}

	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// ForSymbol returns up to limit articles that mention symbol.
func (r *Reader) ForSymbol(ctx context.Context, symbol string, limit int) ([]models.NewsArticle, error) {
	all, err := r.Market(ctx, 0)
	if err != nil {
		return nil, err
	}

	keywords := symbolKeywords(symbol)
	var filtered []models.NewsArticle
	for _, a := range all {
		if matchesAny(a.Title+" "+a.Summary, keywords) {
			filtered = append(filtered, a)
			if limit > 0 && len(filtered) == limit {
				break
			}
		}
	}
	return filtered, nil
}

// Headlines returns up to n headline strings for symbol, formatted for alerts.
// Errors are logged and produce no headlines.
func (r *Reader) Headlines(ctx context.Context, symbol string, n int) []string {
	if n <= 0 {
		return nil
	}
	articles, err := r.ForSymbol(ctx, symbol, n)
	if err != nil {
		r.log.Debug().Err(err).Str("symbol", symbol).Msg("no headlines")
		return nil
	}
	out := make([]string, 0, len(articles)+1)
	for _, a := range articles {
		line := fmt.Sprintf("📰 %s (%s)", a.Title, a.Source)
		if m := sentiment.Classify(a.Sentiment).Marker(); m != "" {
			line += " " + m
		}
		out = append(out, line)
	}
	if len(articles) > 1 {
		score, tone := sentiment.Aggregate(articles, r.now())
		out = append(out, fmt.Sprintf("🧭 News tone: %s (%+.2f)", tone, score))
	}
	return out
}

// --- Internal helpers ---

// fetchRSS parses an RSS feed and returns articles.
func (r *Reader) fetchRSS(ctx context.Context, feedURL string) ([]models.NewsArticle, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	feed, err := r.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse RSS %s: %w", feedURL, err)
	}

	source := sourceName(feed.Title, feedURL)
	articles := make([]models.NewsArticle, 0, len(feed.Items))
	for _, item := range feed.Items {
		a := models.NewsArticle{
			Title:   strings.TrimSpace(item.Title),
			URL:     item.Link,
			Source:  source,
			Summary: cleanHTML(item.Description),
		}
		a.Sentiment = sentiment.ScoreArticle(a)
		if item.PublishedParsed != nil {
			a.PublishedAt = item.PublishedParsed.In(utils.IST)
		}
		articles = append(articles, a)
	}
	return articles, nil
}

func sourceName(title, feedURL string) string {
	if t := strings.TrimSpace(title); t != "" {
		return t
	}
	if u, err := url.Parse(feedURL); err == nil && u.Host != "" {
		return strings.TrimPrefix(u.Host, "www.")
	}
	return feedURL
}

// cleanHTML strips HTML tags from a string using goquery.
func cleanHTML(s string) string {
	if s == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<body>" + s + "</body>"))
	if err != nil {
		return s
	}
	return strings.TrimSpace(doc.Text())
}

var symbolNames = map[string][]string{
	"nifty":     {"nifty 50", "nifty50"},
	"banknifty": {"bank nifty", "nifty bank"},
	"finnifty":  {"fin nifty", "nifty financial"},
	"sensex":    {"bse sensex"},
	"reliance":  {"reliance industries", "ril"},
	"tcs":       {"tata consultancy"},
	"hdfcbank":  {"hdfc bank"},
	"infy":      {"infosys"},
	"icicibank": {"icici bank"},
	"sbin":      {"sbi", "state bank"},
}

// symbolKeywords returns lower-case search keywords for a symbol.
func symbolKeywords(symbol string) []string {
	t := strings.ToLower(utils.NormalizeTicker(symbol))
	keywords := []string{t}
	if extra, ok := symbolNames[t]; ok {
		keywords = append(keywords, extra...)
	}
	return keywords
}

// matchesAny checks if text contains any of the keywords (case-insensitive).
func matchesAny(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// sortArticlesByDate sorts articles newest first.
func sortArticlesByDate(articles []models.NewsArticle) {
	sort.SliceStable(articles, func(i, j int) bool {
		return articles[i].PublishedAt.After(articles[j].PublishedAt)
	})
}
