package ports

import (
	"context"

	"antigravity/internal/domain"
)

// MarketDataSource provides price and candle data for a symbol.
type MarketDataSource interface {
	// GetTickerPrice retrieves the last ticker price for a given symbol.
	GetTickerPrice(ctx context.Context, symbol string) (float64, error)

	// GetKlines retrieves the most recent klines for the given symbol,
	// oldest first.
	GetKlines(ctx context.Context, symbol, interval string, limit int) ([]*domain.Kline, error)
}

// OrderVenue is the execution venue capability. Implementations submit real
// orders; the executor simulates fills when no venue is configured or the
// venue is unreachable.
type OrderVenue interface {
	// SubmitMarketOrder places a market order and returns the average fill
	// price. A zero fill price means the venue did not report one.
	SubmitMarketOrder(ctx context.Context, symbol string, side domain.OrderSide, quantity float64) (float64, error)

	// GetAccountBalance retrieves the available balance for an asset
	// (e.g., "USDT").
	GetAccountBalance(ctx context.Context, asset string) (float64, error)
}

// ExchangeClient combines market data and order execution on one venue.
type ExchangeClient interface {
	MarketDataSource
	OrderVenue

	// Ping checks connectivity to the exchange API.
	Ping(ctx context.Context) error
}
