// Package feeds contains the external market-intelligence sources: crypto
// news headlines and large on-chain transfer tracking.
package feeds

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"antigravity/internal/ports"
)

// Default RSS sources, one picked at random per fetch to spread load.
var defaultNewsSources = []string{
	"https://cointelegraph.com/rss",
	"https://www.coindesk.com/arc/outboundfeeds/rss/",
	"https://decrypt.co/feed",
}

// fallbackHeadlines keeps the classifier fed when every RSS source fails.
var fallbackHeadlines = []string{
	"Bitcoin consolidates as traders await macro data",
	"Institutional inflows into crypto funds continue",
	"Exchange reserves hold steady amid quiet weekend trading",
}

const headlineLimit = 5

// NewsFetcher pulls recent headlines from public crypto RSS feeds.
type NewsFetcher struct {
	sources []string
	client  *http.Client
	logger  ports.Logger
	pick    func(n int) int
}

// NewNewsFetcher creates a fetcher. An empty sources list falls back to the
// built-in defaults.
func NewNewsFetcher(sources []string, timeout time.Duration, logger ports.Logger) (*NewsFetcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for the news fetcher")
	}
	if len(sources) == 0 {
		sources = defaultNewsSources
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &NewsFetcher{
		sources: sources,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
		pick:    rand.Intn,
	}, nil
}

type rssFeed struct {
	Channel struct {
		Items []struct {
			Title string `xml:"title"`
		} `xml:"item"`
	} `xml:"channel"`
}

// Headlines fetches the most recent headlines from one randomly chosen
// source. On any failure it returns the static fallback set with a nil
// error, so a dead feed never stalls the decision loop.
func (f *NewsFetcher) Headlines(ctx context.Context) ([]string, error) {
	source := f.sources[f.pick(len(f.sources))]

	titles, err := f.fetch(ctx, source)
	if err != nil {
		f.logger.Warn(ctx, "News fetch failed, using fallback headlines", map[string]interface{}{
			"source": source,
			"error":  err.Error(),
		})
		return append([]string(nil), fallbackHeadlines...), nil
	}

	f.logger.Debug(ctx, "Fetched headlines", map[string]interface{}{
		"source": source,
		"count":  len(titles),
	})
	return titles, nil
}

func (f *NewsFetcher) fetch(ctx context.Context, source string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "antigravity/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("source returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read feed body: %w", err)
	}

	var feed rssFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("failed to parse RSS: %w", err)
	}

	titles := make([]string, 0, headlineLimit)
	for _, item := range feed.Channel.Items {
		title := strings.TrimSpace(item.Title)
		if title == "" {
			continue
		}
		titles = append(titles, title)
		if len(titles) == headlineLimit {
			break
		}
	}
	if len(titles) == 0 {
		return nil, fmt.Errorf("feed contained no headlines")
	}
	return titles, nil
}

var _ ports.HeadlineSource = (*NewsFetcher)(nil)
