package ports

import (
	"context"

	"antigravity/internal/domain"
)

// PositionStore owns the durable representation of the current position.
// The order executor is the only component allowed to mutate it. Callers
// must handle store errors explicitly instead of relying on implicit
// attribute access.
type PositionStore interface {
	// Get returns the current position. A flat book is a position with
	// Side == domain.SideNone, not an error.
	Get(ctx context.Context) (domain.Position, error)
	// Set replaces the position wholesale with an open position.
	Set(ctx context.Context, side domain.Side, entryPrice float64) error
	// Clear resets the position to flat (side NONE, entry price 0).
	Clear(ctx context.Context) error
}

// TradeRecorder receives immutable trade events. Implementations append to a
// ledger, notify a chat channel, or fan out to several sinks. Recording
// failures must never mutate position state.
type TradeRecorder interface {
	Record(ctx context.Context, event *domain.TradeEvent) error
}

// TradeLedger is a recorder that also supports reading recent events back,
// for operational inspection.
type TradeLedger interface {
	TradeRecorder
	// Recent returns the most recent trade events, newest first.
	Recent(ctx context.Context, limit int) ([]*domain.TradeEvent, error)
}
