// Package sentiment is an HTTP client for the remote text-classification
// service. It walks an ordered list of failover URLs and aggregates the raw
// per-text classifications into one directional signal.
package sentiment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"antigravity/internal/domain"
	"antigravity/internal/ports"
)

// Thresholds for the aggregated positive-minus-negative score.
const (
	bullishCutoff = 0.1
	bearishCutoff = -0.1
)

// Client implements ports.SentimentClassifier over one or more classifier
// endpoints, tried in order until one answers.
type Client struct {
	urls   []string
	client *http.Client
	logger ports.Logger
}

// Config holds configuration for the classifier client.
type Config struct {
	URLs    []string // Failover list of /analyze endpoints, tried in order
	Timeout time.Duration
	Logger  ports.Logger
}

// New creates a classifier client.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for the sentiment client")
	}
	if len(cfg.URLs) == 0 {
		return nil, fmt.Errorf("%w: at least one sentiment API URL is required", ports.ErrConfigurationError)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		urls:   cfg.URLs,
		client: &http.Client{Timeout: timeout},
		logger: cfg.Logger,
	}, nil
}

// classification is one raw per-text result from the classifier.
type classification struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// aggregated is the pre-aggregated response shape some endpoints return.
type aggregated struct {
	Sentiment  string  `json:"sentiment"`
	Confidence float64 `json:"confidence"`
}

// Classify sends the texts to the first reachable endpoint and returns the
// aggregated direction with a confidence in [0, 1]. An empty batch is
// neutral with zero confidence and no network call. When every endpoint
// fails the result is (NEUTRAL, 0) together with a feed error, so the caller
// can keep its cached signal.
func (c *Client) Classify(ctx context.Context, texts []string) (domain.Direction, float64, error) {
	if len(texts) == 0 {
		return domain.Neutral, 0, nil
	}

	payload, err := json.Marshal(map[string][]string{"texts": texts})
	if err != nil {
		return domain.Neutral, 0, fmt.Errorf("failed to marshal classify request: %w", err)
	}

	for _, url := range c.urls {
		direction, confidence, err := c.classifyAt(ctx, url, payload, len(texts))
		if err != nil {
			c.logger.Warn(ctx, "Sentiment endpoint failed, trying next", map[string]interface{}{
				"url":   url,
				"error": err.Error(),
			})
			continue
		}
		return direction, confidence, nil
	}

	return domain.Neutral, 0, fmt.Errorf("classify: %w: all %d endpoint(s) failed", ports.ErrFeedUnavailable, len(c.urls))
}

func (c *Client) classifyAt(ctx context.Context, url string, payload []byte, batchSize int) (domain.Direction, float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return domain.Neutral, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.Neutral, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.Neutral, 0, fmt.Errorf("endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.Neutral, 0, fmt.Errorf("failed to read response: %w", err)
	}

	// Endpoints answer either with a pre-aggregated object or with the raw
	// per-text classification list.
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var agg aggregated
		if err := json.Unmarshal(trimmed, &agg); err != nil {
			return domain.Neutral, 0, fmt.Errorf("failed to decode aggregated response: %w", err)
		}
		if agg.Sentiment == "" {
			return domain.Neutral, 0, fmt.Errorf("aggregated response missing sentiment")
		}
		return parseDirection(agg.Sentiment), clamp01(math.Abs(agg.Confidence)), nil
	}

	var results []classification
	if err := json.Unmarshal(trimmed, &results); err != nil {
		return domain.Neutral, 0, fmt.Errorf("failed to decode classification list: %w", err)
	}
	if len(results) == 0 {
		return domain.Neutral, 0, fmt.Errorf("empty classification list")
	}

	return aggregate(results, batchSize), confidence(results, batchSize), nil
}

// aggregate folds per-text classifications into one direction: the mean of
// (positive score minus negative score) across the batch, with 0.1 cutoffs.
func aggregate(results []classification, batchSize int) domain.Direction {
	score := meanScore(results, batchSize)
	switch {
	case score > bullishCutoff:
		return domain.Bullish
	case score < bearishCutoff:
		return domain.Bearish
	}
	return domain.Neutral
}

func confidence(results []classification, batchSize int) float64 {
	return clamp01(math.Abs(meanScore(results, batchSize)))
}

func meanScore(results []classification, batchSize int) float64 {
	if batchSize == 0 {
		return 0
	}
	total := 0.0
	for _, r := range results {
		switch strings.ToLower(r.Label) {
		case "positive", "bullish":
			total += r.Score
		case "negative", "bearish":
			total -= r.Score
		}
	}
	return total / float64(batchSize)
}

func parseDirection(s string) domain.Direction {
	switch strings.ToUpper(s) {
	case "BULLISH":
		return domain.Bullish
	case "BEARISH":
		return domain.Bearish
	default:
		return domain.Neutral
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Ping wakes the endpoints up (some hosts cold-start). Failures are logged,
// never fatal.
func (c *Client) Ping(ctx context.Context) {
	for _, url := range c.urls {
		base := strings.TrimSuffix(url, "/analyze")
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, base, nil)
		if err != nil {
			continue
		}
		resp, err := c.client.Do(req)
		if err != nil {
			c.logger.Debug(ctx, "Sentiment endpoint ping failed", map[string]interface{}{"url": base, "error": err.Error()})
			continue
		}
		resp.Body.Close()
	}
}

// Compile-time interface check.
var _ ports.SentimentClassifier = (*Client)(nil)
