package domain

import "time"

// OrderSide represents the side of an order (BUY or SELL).
type OrderSide string

const (
	Buy  OrderSide = "BUY"
	Sell OrderSide = "SELL"
)

// Action is a closed set of position transitions. It drives both control flow
// in the executor and the audit log; String is the audit representation.
type Action int

const (
	ActionHold Action = iota
	ActionOpenLong
	ActionOpenShort
	ActionCloseLong
	ActionCloseShort
	ActionStopLoss   // forced close of either side by the stop-loss rule
	ActionTakeProfit // forced close of either side by the take-profit rule
)

// String returns the audit-log representation of the action.
func (a Action) String() string {
	switch a {
	case ActionOpenLong:
		return "OPEN_LONG"
	case ActionOpenShort:
		return "OPEN_SHORT"
	case ActionCloseLong:
		return "CLOSE_LONG"
	case ActionCloseShort:
		return "CLOSE_SHORT"
	case ActionStopLoss:
		return "STOP_LOSS"
	case ActionTakeProfit:
		return "TAKE_PROFIT"
	default:
		return "HOLD"
	}
}

// IsOpen reports whether the action opens a new position.
func (a Action) IsOpen() bool {
	return a == ActionOpenLong || a == ActionOpenShort
}

// IsClose reports whether the action closes an existing position.
func (a Action) IsClose() bool {
	switch a {
	case ActionCloseLong, ActionCloseShort, ActionStopLoss, ActionTakeProfit:
		return true
	}
	return false
}

// Reason indicates why an order was placed.
type Reason string

const (
	ReasonSignal     Reason = "AI_SIGNAL"
	ReasonOverride   Reason = "OVERRIDE"
	ReasonManual     Reason = "MANUAL"
	ReasonStopLoss   Reason = "STOP_LOSS"
	ReasonTakeProfit Reason = "TAKE_PROFIT"
	ReasonReplayEnd  Reason = "END_OF_REPLAY"
)

// TradeEvent is the immutable audit record of one executed order. Events are
// append-only; they are never mutated or deleted once recorded.
type TradeEvent struct {
	ID        string    // unique event identifier
	Timestamp time.Time
	Symbol    string
	Action    Action
	Price     float64 // fill price (real or simulated)
	Quantity  float64
	Reason    Reason
	PnLPct    float64 // realized profit as a percentage, 0 for opens
	Simulated bool    // true when the fill was simulated from a price hint
}
