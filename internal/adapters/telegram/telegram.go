// Package telegram posts trade executions and cycle summaries to a Telegram
// chat via the Bot API. With no token or chat ID configured every call is a
// no-op, so callers never need to branch on whether reporting is enabled.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"antigravity/internal/domain"
	"antigravity/internal/ports"
)

const apiBase = "https://api.telegram.org"

// Notifier sends messages to one chat.
type Notifier struct {
	token   string
	chatID  string
	baseURL string
	client  *http.Client
	logger  ports.Logger
}

// New creates a notifier. Empty token or chat ID yields a disabled notifier.
func New(token, chatID string, logger ports.Logger) (*Notifier, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for the telegram notifier")
	}
	return &Notifier{
		token:   token,
		chatID:  chatID,
		baseURL: apiBase,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}, nil
}

// Enabled reports whether both token and chat ID are configured.
func (n *Notifier) Enabled() bool { return n.token != "" && n.chatID != "" }

// Record posts a trade event to the chat. Implements ports.TradeRecorder so
// the notifier can sit behind the same fan-out as the persistent ledger.
func (n *Notifier) Record(ctx context.Context, event *domain.TradeEvent) error {
	if event == nil {
		return fmt.Errorf("%w: nil trade event", ports.ErrInvalidRequest)
	}
	if !n.Enabled() {
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s\n", actionEmoji(event.Action), event.Action, event.Symbol)
	fmt.Fprintf(&b, "Price: %.2f\nQuantity: %v\nReason: %s", event.Price, event.Quantity, event.Reason)
	if event.Action.IsClose() {
		fmt.Fprintf(&b, "\nPnL: %+.2f%%", event.PnLPct)
	}
	if event.Simulated {
		b.WriteString("\n(simulated fill)")
	}

	return n.send(ctx, b.String())
}

// ReportCycle posts a one-line decision summary for a completed loop cycle.
func (n *Notifier) ReportCycle(ctx context.Context, symbol string, price float64, action domain.Action, sentiment domain.Direction) error {
	if !n.Enabled() {
		return nil
	}
	msg := fmt.Sprintf("Cycle %s @ %.2f: %s (sentiment %s)", symbol, price, action, sentiment)
	return n.send(ctx, msg)
}

func (n *Notifier) send(ctx context.Context, text string) error {
	payload, err := json.Marshal(map[string]string{
		"chat_id": n.chatID,
		"text":    text,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal telegram message: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram send failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("telegram returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

func actionEmoji(a domain.Action) string {
	switch a {
	case domain.ActionOpenLong, domain.ActionOpenShort:
		return "\U0001F4C8" // chart increasing
	case domain.ActionStopLoss:
		return "\U0001F6D1" // stop sign
	case domain.ActionTakeProfit:
		return "\U0001F4B0" // money bag
	default:
		return "\U0001F4CA" // bar chart
	}
}

var _ ports.TradeRecorder = (*Notifier)(nil)
