package risk

import (
	"antigravity/internal/domain"
)

// Event is the outcome of a risk check.
type Event int

const (
	EventNone Event = iota
	EventStopLoss
	EventTakeProfit
)

// String returns the audit representation of the event.
func (e Event) String() string {
	switch e {
	case EventStopLoss:
		return "STOP_LOSS"
	case EventTakeProfit:
		return "TAKE_PROFIT"
	default:
		return "NONE"
	}
}

// Reason maps the event to the order reason recorded on the forced close.
func (e Event) Reason() domain.Reason {
	switch e {
	case EventStopLoss:
		return domain.ReasonStopLoss
	case EventTakeProfit:
		return domain.ReasonTakeProfit
	default:
		return ""
	}
}

// Config holds the risk thresholds, supplied at startup and immutable for the
// process lifetime. Both values are fractions of the entry price; config
// loading enforces StopLossPct < TakeProfitPct so the two events are mutually
// exclusive within one evaluation.
type Config struct {
	StopLossPct   float64
	TakeProfitPct float64
}

// Manager evaluates stop-loss/take-profit thresholds against the current
// price. Evaluate is pure and deterministic; it holds no state.
type Manager struct {
	cfg Config
}

// NewManager creates a risk manager with the given thresholds.
func NewManager(cfg Config) *Manager {
	return &Manager{cfg: cfg}
}

// PnLPct returns the unrealized profit of a position at the given price, as a
// fraction of the entry price. LONG profits when the price rises, SHORT when
// it falls. A flat position (or zero entry) yields 0.
func PnLPct(pos domain.Position, price float64) float64 {
	if !pos.IsOpen() || pos.EntryPrice <= 0 {
		return 0
	}
	switch pos.Side {
	case domain.SideLong:
		return (price - pos.EntryPrice) / pos.EntryPrice
	case domain.SideShort:
		return (pos.EntryPrice - price) / pos.EntryPrice
	}
	return 0
}

// Evaluate checks the position against the configured thresholds and returns
// the forced-exit event, if any, together with the running PnL percentage.
// The PnL is returned even when no event fires, for observability. Risk
// events take absolute priority over signal-driven decisions: the decision
// loop runs this check first each cycle and a non-NONE event always forces a
// close regardless of signals.
func (m *Manager) Evaluate(pos domain.Position, price float64) (Event, float64) {
	if !pos.IsOpen() {
		return EventNone, 0
	}

	pnl := PnLPct(pos, price)
	switch {
	case pnl <= -m.cfg.StopLossPct:
		return EventStopLoss, pnl
	case pnl >= m.cfg.TakeProfitPct:
		return EventTakeProfit, pnl
	}
	return EventNone, pnl
}
