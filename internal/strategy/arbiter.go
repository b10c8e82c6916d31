package strategy

import (
	"context"
	"time"

	"antigravity/internal/domain"
	"antigravity/internal/ports"
)

// ArbiterConfig holds the thresholds for signal arbitration.
type ArbiterConfig struct {
	// ConfidenceThreshold is the minimum sentiment confidence required for a
	// technical+sentiment agreement to produce an entry or exit.
	ConfidenceThreshold float64
	// OverrideThreshold is the fixed high-confidence bar an external override
	// must clear (in addition to beating the cached sentiment's confidence)
	// before it supersedes the sentiment for the cycle.
	OverrideThreshold float64
}

// Arbiter merges the technical trend, the cached sentiment and an optional
// external override into one directional decision. It never consumes the
// whale bias directly: that is folded into the cached sentiment upstream.
type Arbiter struct {
	cfg    ArbiterConfig
	logger ports.Logger
}

// NewArbiter creates a signal arbiter.
func NewArbiter(cfg ArbiterConfig, logger ports.Logger) *Arbiter {
	return &Arbiter{cfg: cfg, logger: logger}
}

// Decide evaluates the arbitration rules in order and returns the action to
// take this cycle, plus whether a superseding override produced it. The
// second return drives audit attribution: a fresh override that merely
// agreed with the signals while too weak to supersede them does not claim
// the action. The rules, in order:
//
//  1. A stale override is discarded.
//  2. A fresh override whose confidence clears the override threshold and
//     exceeds the cached sentiment's confidence replaces the sentiment for
//     this cycle, and its buy/sell action forces the corresponding direction
//     regardless of the technical trend.
//  3. Otherwise a long requires trend UP plus BULLISH sentiment at or above
//     the confidence threshold; a short is symmetric for DOWN/BEARISH.
//  4. A flagged direction opens only from a flat book. When the opposite
//     position is held, the decision is to close it (cover) rather than to
//     flip within the same cycle.
//  5. Anything else holds.
func (a *Arbiter) Decide(ctx context.Context, now time.Time, pos domain.Position, trend domain.Trend, sentiment domain.Signal, override *domain.Override) (domain.Action, bool) {
	sentiment = sentiment.Effective(now)

	forceLong, forceShort := false, false
	if override != nil {
		if override.IsStale(now) {
			a.logger.Debug(ctx, "Discarding stale override", map[string]interface{}{
				"action":     override.Action,
				"confidence": override.Confidence,
				"age":        now.Sub(override.ReceivedAt).String(),
			})
		} else if override.Confidence > a.cfg.OverrideThreshold && override.Confidence > sentiment.Confidence {
			sentiment = domain.Signal{
				Source:     domain.SourceOverride,
				Direction:  override.Direction(),
				Confidence: override.Confidence,
				ObservedAt: override.ReceivedAt,
			}
			forceLong = override.Action == domain.OverrideBuy
			forceShort = override.Action == domain.OverrideSell
			a.logger.Info(ctx, "Override supersedes cached sentiment", map[string]interface{}{
				"action":     override.Action,
				"confidence": override.Confidence,
				"rationale":  override.Rationale,
			})
		}
	}

	shouldLong := forceLong || (trend == domain.TrendUp &&
		sentiment.Direction == domain.Bullish &&
		sentiment.Confidence >= a.cfg.ConfidenceThreshold)
	shouldShort := forceShort || (trend == domain.TrendDown &&
		sentiment.Direction == domain.Bearish &&
		sentiment.Confidence >= a.cfg.ConfidenceThreshold)

	action := domain.ActionHold
	switch {
	case shouldLong && pos.Side == domain.SideNone:
		action = domain.ActionOpenLong
	case shouldLong && pos.Side == domain.SideShort:
		// Cover first; a long may open on a later cycle.
		action = domain.ActionCloseShort
	case shouldShort && pos.Side == domain.SideNone:
		action = domain.ActionOpenShort
	case shouldShort && pos.Side == domain.SideLong:
		action = domain.ActionCloseLong
	}
	overrode := (forceLong || forceShort) && action != domain.ActionHold
	return action, overrode
}
