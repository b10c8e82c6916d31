package domain

import "time"

// SignalSource identifies where a directional signal came from.
type SignalSource string

const (
	SourceTechnical SignalSource = "TECHNICAL"
	SourceSentiment SignalSource = "SENTIMENT"
	SourceWhale     SignalSource = "WHALE"
	SourceOverride  SignalSource = "OVERRIDE"
)

// Direction is a directional market classification.
type Direction string

const (
	Bullish Direction = "BULLISH"
	Bearish Direction = "BEARISH"
	Neutral Direction = "NEUTRAL"
)

// Trend is the output of the technical predictor.
type Trend string

const (
	TrendUp   Trend = "UP"
	TrendDown Trend = "DOWN"
	TrendFlat Trend = "FLAT"
)

// Signal is a directional classification with a confidence score and an
// observation time. A signal older than its TTL is stale and must be treated
// as neutral with zero confidence. A zero TTL means the signal never expires
// (the cached sentiment is bounded by its refresh interval instead).
type Signal struct {
	Source     SignalSource
	Direction  Direction
	Confidence float64 // in [0, 1]
	ObservedAt time.Time
	TTL        time.Duration
}

// IsStale reports whether the signal has outlived its TTL.
func (s Signal) IsStale(now time.Time) bool {
	return s.TTL > 0 && now.Sub(s.ObservedAt) > s.TTL
}

// Effective returns the signal to actually act on: the signal itself when
// fresh, a neutral zero-confidence signal when stale.
func (s Signal) Effective(now time.Time) Signal {
	if s.IsStale(now) {
		return Signal{Source: s.Source, Direction: Neutral, Confidence: 0, ObservedAt: s.ObservedAt, TTL: s.TTL}
	}
	return s
}

// NeutralSentiment is the cached sentiment before the first refresh succeeds.
func NeutralSentiment(now time.Time) Signal {
	return Signal{Source: SourceSentiment, Direction: Neutral, Confidence: 0.5, ObservedAt: now}
}

// OverrideAction is the action requested by an external override signal.
type OverrideAction string

const (
	OverrideBuy  OverrideAction = "buy"
	OverrideSell OverrideAction = "sell"
	OverrideHold OverrideAction = "hold"
)

// Override is a time-boxed, confidence-weighted external signal accepted over
// HTTP. It can supersede the cached sentiment for a cycle and force an action.
type Override struct {
	Action     OverrideAction
	Confidence float64
	Rationale  string
	ReceivedAt time.Time
	TTL        time.Duration
}

// IsStale reports whether the override has outlived its TTL.
func (o Override) IsStale(now time.Time) bool {
	return now.Sub(o.ReceivedAt) > o.TTL
}

// Direction maps the requested action to a directional bias.
func (o Override) Direction() Direction {
	switch o.Action {
	case OverrideBuy:
		return Bullish
	case OverrideSell:
		return Bearish
	default:
		return Neutral
	}
}
