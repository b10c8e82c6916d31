package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"antigravity/internal/domain"
	"antigravity/internal/ports"
)

const (
	whaleAPIBase = "https://api.whale-alert.io/v1/transactions"

	// Transfers below this USD value are ignored.
	whaleMinValueUSD = 10_000_000

	// One side must carry 1.5x the other's volume to set an overall bias.
	whaleDominanceRatio = 1.5

	whaleLookback = time.Hour
)

// WhaleFetcher tracks large on-chain transfers via the whale-alert API.
// Transfers into exchanges read as sell pressure, transfers out as
// accumulation. An empty API key disables the fetcher entirely.
type WhaleFetcher struct {
	apiKey  string
	baseURL string
	client  *http.Client
	logger  ports.Logger
	now     func() time.Time
}

// NewWhaleFetcher creates a fetcher. A nil logger is an error; an empty
// apiKey is not, it just produces a disabled fetcher.
func NewWhaleFetcher(apiKey string, timeout time.Duration, logger ports.Logger) (*WhaleFetcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for the whale fetcher")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WhaleFetcher{
		apiKey:  apiKey,
		baseURL: whaleAPIBase,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
		now:     time.Now,
	}, nil
}

// Enabled reports whether an API key was configured.
func (f *WhaleFetcher) Enabled() bool { return f.apiKey != "" }

type whaleResponse struct {
	Result       string             `json:"result"`
	Transactions []whaleTransaction `json:"transactions"`
}

type whaleTransaction struct {
	Symbol    string     `json:"symbol"`
	Amount    float64    `json:"amount"`
	AmountUSD float64    `json:"amount_usd"`
	From      whaleOwner `json:"from"`
	To        whaleOwner `json:"to"`
}

type whaleOwner struct {
	Owner     string `json:"owner"`
	OwnerType string `json:"owner_type"`
}

// Movements fetches transfers worth at least $10M from the last hour and
// returns one summary line per transfer plus an overall bias. Flows into
// exchanges count bearish, flows out count bullish; the bias is set only
// when one side's USD volume exceeds the other's by 1.5x.
func (f *WhaleFetcher) Movements(ctx context.Context) ([]string, domain.Direction, error) {
	if !f.Enabled() {
		return nil, domain.Neutral, nil
	}

	txs, err := f.fetch(ctx)
	if err != nil {
		return nil, domain.Neutral, fmt.Errorf("whale fetch: %w", err)
	}

	var (
		summaries  []string
		inflowUSD  float64 // into exchanges, sell pressure
		outflowUSD float64 // out of exchanges, accumulation
	)
	for _, tx := range txs {
		if tx.AmountUSD < whaleMinValueUSD {
			continue
		}
		toExchange := tx.To.OwnerType == "exchange"
		fromExchange := tx.From.OwnerType == "exchange"
		switch {
		case toExchange && !fromExchange:
			inflowUSD += tx.AmountUSD
			summaries = append(summaries, fmt.Sprintf(
				"Whale moved %s %s ($%.0fM) to exchange %s, potential sell pressure",
				formatAmount(tx.Amount), strings.ToUpper(tx.Symbol), tx.AmountUSD/1e6, ownerName(tx.To)))
		case fromExchange && !toExchange:
			outflowUSD += tx.AmountUSD
			summaries = append(summaries, fmt.Sprintf(
				"Whale withdrew %s %s ($%.0fM) from exchange %s, accumulation signal",
				formatAmount(tx.Amount), strings.ToUpper(tx.Symbol), tx.AmountUSD/1e6, ownerName(tx.From)))
		}
	}

	bias := domain.Neutral
	switch {
	case inflowUSD > outflowUSD*whaleDominanceRatio:
		bias = domain.Bearish
	case outflowUSD > inflowUSD*whaleDominanceRatio:
		bias = domain.Bullish
	}

	f.logger.Debug(ctx, "Whale movements fetched", map[string]interface{}{
		"transfers":   len(summaries),
		"inflow_usd":  inflowUSD,
		"outflow_usd": outflowUSD,
		"bias":        string(bias),
	})
	return summaries, bias, nil
}

func (f *WhaleFetcher) fetch(ctx context.Context) ([]whaleTransaction, error) {
	q := url.Values{}
	q.Set("api_key", f.apiKey)
	q.Set("min_value", strconv.Itoa(whaleMinValueUSD))
	q.Set("start", strconv.FormatInt(f.now().Add(-whaleLookback).Unix(), 10))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrFeedUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ports.ErrFeedUnavailable, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var wr whaleResponse
	if err := json.NewDecoder(resp.Body).Decode(&wr); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if wr.Result != "success" {
		return nil, fmt.Errorf("%w: result %q", ports.ErrFeedUnavailable, wr.Result)
	}
	return wr.Transactions, nil
}

func ownerName(o whaleOwner) string {
	if o.Owner != "" {
		return o.Owner
	}
	return "unknown"
}

func formatAmount(v float64) string {
	if v >= 1000 {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.2f", v)
}

var _ ports.WhaleSource = (*WhaleFetcher)(nil)
