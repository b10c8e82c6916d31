// Package execution turns decided actions into orders and is the sole writer
// of the position store. Every fill, real or simulated, produces one
// append-only trade event.
package execution

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"antigravity/internal/domain"
	"antigravity/internal/ports"
	"antigravity/internal/risk"
)

// Executor validates requested order sides against the current position,
// places orders on the venue when one is reachable, and simulates fills
// otherwise.
type Executor struct {
	store    ports.PositionStore
	venue    ports.OrderVenue // nil means every fill is simulated
	recorder ports.TradeRecorder
	logger   ports.Logger
	symbol   string
	quantity float64
	now      func() time.Time
	newID    func() string

	// mu serializes the read-validate-write sequence. The loop and the
	// control API place orders concurrently; without the lock two BUYs
	// could both read a flat book and both open.
	mu sync.Mutex
}

// Config holds configuration for the executor.
type Config struct {
	Store    ports.PositionStore
	Venue    ports.OrderVenue // optional
	Recorder ports.TradeRecorder
	Logger   ports.Logger
	Symbol   string
	Quantity float64
}

// New creates an executor. Store, recorder and logger are required; a nil
// venue switches the executor to simulation-only fills.
func New(cfg Config) (*Executor, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("position store is required for the executor")
	}
	if cfg.Recorder == nil {
		return nil, fmt.Errorf("trade recorder is required for the executor")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for the executor")
	}
	if cfg.Symbol == "" {
		return nil, fmt.Errorf("%w: symbol is required", ports.ErrConfigurationError)
	}
	if cfg.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", ports.ErrConfigurationError)
	}
	return &Executor{
		store:    cfg.Store,
		venue:    cfg.Venue,
		recorder: cfg.Recorder,
		logger:   cfg.Logger,
		symbol:   cfg.Symbol,
		quantity: cfg.Quantity,
		now:      time.Now,
		newID:    func() string { return uuid.NewString() },
	}, nil
}

// Execute validates the requested side against the current position, places
// the order, updates the store and records the event. priceHint is the last
// known market price, used as the fill price when the fill is simulated or
// the venue reports no price. Returns the recorded event.
//
// Valid transitions: BUY on a flat book opens a long, SELL opens a short;
// SELL closes a long and BUY closes (covers) a short. Anything else, a BUY
// while long or a SELL while short, is rejected without touching state.
func (e *Executor) Execute(ctx context.Context, side domain.OrderSide, reason domain.Reason, priceHint float64) (*domain.TradeEvent, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.execute(ctx, side, reason, priceHint)
}

func (e *Executor) execute(ctx context.Context, side domain.OrderSide, reason domain.Reason, priceHint float64) (*domain.TradeEvent, error) {
	pos, err := e.store.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("execute: failed to read position: %w", err)
	}
	// Stores that were never written report an empty side; treat it as flat.
	pos.Side = domain.ParseSide(string(pos.Side))

	action, err := transition(pos.Side, side)
	if err != nil {
		return nil, err
	}
	if action.IsClose() {
		action = closeAction(action, reason)
	}

	fillPrice, simulated, err := e.fill(ctx, side, priceHint)
	if err != nil {
		return nil, err
	}
	if fillPrice <= 0 {
		return nil, fmt.Errorf("execute: %w: no fill price available", ports.ErrInvalidRequest)
	}

	event := &domain.TradeEvent{
		ID:        e.newID(),
		Timestamp: e.now(),
		Symbol:    e.symbol,
		Action:    action,
		Price:     fillPrice,
		Quantity:  e.quantity,
		Reason:    reason,
		Simulated: simulated,
	}

	if action.IsOpen() {
		openSide := domain.SideLong
		if action == domain.ActionOpenShort {
			openSide = domain.SideShort
		}
		if err := e.store.Set(ctx, openSide, fillPrice); err != nil {
			return nil, fmt.Errorf("execute: failed to persist position: %w", err)
		}
	} else {
		event.PnLPct = risk.PnLPct(pos, fillPrice) * 100
		if err := e.store.Clear(ctx); err != nil {
			return nil, fmt.Errorf("execute: failed to clear position: %w", err)
		}
	}

	// The fill already happened; a recording failure is logged, never
	// allowed to roll back position state.
	if err := e.recorder.Record(ctx, event); err != nil {
		e.logger.Error(ctx, "Failed to record trade event", err, map[string]interface{}{
			"event_id": event.ID,
			"action":   event.Action.String(),
		})
	}

	e.logger.Info(ctx, "Order executed", map[string]interface{}{
		"action":    event.Action.String(),
		"symbol":    event.Symbol,
		"price":     event.Price,
		"quantity":  event.Quantity,
		"reason":    string(event.Reason),
		"simulated": event.Simulated,
	})
	return event, nil
}

// fill places the order on the venue when one is configured. Unreachable
// venue classes degrade to a simulated fill at the price hint; a zero fill
// price from the venue also falls back to the hint.
func (e *Executor) fill(ctx context.Context, side domain.OrderSide, priceHint float64) (price float64, simulated bool, err error) {
	if e.venue == nil {
		return priceHint, true, nil
	}

	avgPrice, err := e.venue.SubmitMarketOrder(ctx, e.symbol, side, e.quantity)
	if err != nil {
		if isUnreachable(err) {
			e.logger.Warn(ctx, "Venue unreachable, simulating fill", map[string]interface{}{
				"symbol": e.symbol,
				"side":   string(side),
				"error":  err.Error(),
			})
			return priceHint, true, nil
		}
		e.logger.Error(ctx, "Venue rejected order", err, map[string]interface{}{
			"symbol": e.symbol,
			"side":   string(side),
		})
		return 0, false, fmt.Errorf("execute: %w: %v", ports.ErrOrderRejected, err)
	}
	if avgPrice <= 0 {
		return priceHint, false, nil
	}
	return avgPrice, false, nil
}

// transition maps (current position side, requested order side) to an
// action. Invalid pairs return ErrOrderRejected.
func transition(current domain.Side, side domain.OrderSide) (domain.Action, error) {
	switch {
	case current == domain.SideNone && side == domain.Buy:
		return domain.ActionOpenLong, nil
	case current == domain.SideNone && side == domain.Sell:
		return domain.ActionOpenShort, nil
	case current == domain.SideLong && side == domain.Sell:
		return domain.ActionCloseLong, nil
	case current == domain.SideShort && side == domain.Buy:
		return domain.ActionCloseShort, nil
	}
	return domain.ActionHold, fmt.Errorf("%w: cannot %s with position %s", ports.ErrOrderRejected, side, current)
}

// closeAction upgrades a plain close to its risk-rule audit form when the
// close was forced by a stop-loss or take-profit trigger.
func closeAction(action domain.Action, reason domain.Reason) domain.Action {
	switch reason {
	case domain.ReasonStopLoss:
		return domain.ActionStopLoss
	case domain.ReasonTakeProfit:
		return domain.ActionTakeProfit
	}
	return action
}

// isUnreachable reports whether the venue error is a connectivity failure
// rather than a rejection.
func isUnreachable(err error) bool {
	return errors.Is(err, ports.ErrConnectionFailed) ||
		errors.Is(err, ports.ErrExchangeUnavailable) ||
		errors.Is(err, ports.ErrTimeout)
}

// ExecuteClose closes the current position, choosing the required order
// side from the held side. A flat book is rejected.
func (e *Executor) ExecuteClose(ctx context.Context, reason domain.Reason, priceHint float64) (*domain.TradeEvent, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	pos, err := e.store.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("close: failed to read position: %w", err)
	}
	switch domain.ParseSide(string(pos.Side)) {
	case domain.SideLong:
		return e.execute(ctx, domain.Sell, reason, priceHint)
	case domain.SideShort:
		return e.execute(ctx, domain.Buy, reason, priceHint)
	}
	return nil, fmt.Errorf("%w: no open position to close", ports.ErrOrderRejected)
}
