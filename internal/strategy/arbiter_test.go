package strategy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"antigravity/internal/domain"
)

type nopLogger struct{}

func (nopLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (nopLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (nopLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (nopLogger) Error(ctx context.Context, msg string, err error, fields ...map[string]interface{}) {
}

func newTestArbiter() *Arbiter {
	return NewArbiter(ArbiterConfig{ConfidenceThreshold: 0.6, OverrideThreshold: 0.75}, nopLogger{})
}

func flat() domain.Position {
	return domain.Position{Symbol: "BTCUSDT", Side: domain.SideNone}
}

func long() domain.Position {
	return domain.Position{Symbol: "BTCUSDT", Side: domain.SideLong, EntryPrice: 100}
}

func short() domain.Position {
	return domain.Position{Symbol: "BTCUSDT", Side: domain.SideShort, EntryPrice: 100}
}

func sentimentAt(now time.Time, dir domain.Direction, conf float64) domain.Signal {
	return domain.Signal{Source: domain.SourceSentiment, Direction: dir, Confidence: conf, ObservedAt: now}
}

func TestDecideEntries(t *testing.T) {
	arbiter := newTestArbiter()
	now := time.Now()

	tests := []struct {
		name      string
		pos       domain.Position
		trend     domain.Trend
		sentiment domain.Signal
		want      domain.Action
	}{
		{"bullish agreement opens long", flat(), domain.TrendUp, sentimentAt(now, domain.Bullish, 0.8), domain.ActionOpenLong},
		{"bearish agreement opens short", flat(), domain.TrendDown, sentimentAt(now, domain.Bearish, 0.8), domain.ActionOpenShort},
		{"confidence below threshold holds", flat(), domain.TrendUp, sentimentAt(now, domain.Bullish, 0.5), domain.ActionHold},
		{"confidence at threshold opens", flat(), domain.TrendUp, sentimentAt(now, domain.Bullish, 0.6), domain.ActionOpenLong},
		{"trend without sentiment holds", flat(), domain.TrendUp, sentimentAt(now, domain.Neutral, 0.9), domain.ActionHold},
		{"sentiment without trend holds", flat(), domain.TrendFlat, sentimentAt(now, domain.Bullish, 0.9), domain.ActionHold},
		{"disagreement holds", flat(), domain.TrendUp, sentimentAt(now, domain.Bearish, 0.9), domain.ActionHold},
		{"long already open holds on bullish", long(), domain.TrendUp, sentimentAt(now, domain.Bullish, 0.9), domain.ActionHold},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, overrode := arbiter.Decide(context.Background(), now, tt.pos, tt.trend, tt.sentiment, nil)
			assert.Equal(t, tt.want, got)
			assert.False(t, overrode)
		})
	}
}

func TestDecideCloseBeforeOpen(t *testing.T) {
	arbiter := newTestArbiter()
	now := time.Now()

	// Holding a short while the signal flips long must cover the short, not
	// open a long in the same cycle.
	got, _ := arbiter.Decide(context.Background(), now, short(), domain.TrendUp, sentimentAt(now, domain.Bullish, 0.9), nil)
	assert.Equal(t, domain.ActionCloseShort, got)

	got, _ = arbiter.Decide(context.Background(), now, long(), domain.TrendDown, sentimentAt(now, domain.Bearish, 0.9), nil)
	assert.Equal(t, domain.ActionCloseLong, got)
}

func TestDecideStaleOverrideIgnored(t *testing.T) {
	arbiter := newTestArbiter()
	now := time.Now()

	// High confidence does not rescue an expired override.
	override := &domain.Override{
		Action:     domain.OverrideSell,
		Confidence: 0.9,
		ReceivedAt: now.Add(-400 * time.Second),
		TTL:        300 * time.Second,
	}
	got, overrode := arbiter.Decide(context.Background(), now, flat(), domain.TrendFlat, sentimentAt(now, domain.Neutral, 0.5), override)
	assert.Equal(t, domain.ActionHold, got)
	assert.False(t, overrode)
}

func TestDecideOverrideForcesAction(t *testing.T) {
	arbiter := newTestArbiter()
	now := time.Now()

	override := &domain.Override{
		Action:     domain.OverrideBuy,
		Confidence: 0.9,
		ReceivedAt: now.Add(-30 * time.Second),
		TTL:        300 * time.Second,
	}

	// Forces a long from flat even with a flat trend and neutral sentiment.
	got, overrode := arbiter.Decide(context.Background(), now, flat(), domain.TrendFlat, sentimentAt(now, domain.Neutral, 0.5), override)
	assert.Equal(t, domain.ActionOpenLong, got)
	assert.True(t, overrode)

	// Forced buy against an open short covers it instead.
	got, overrode = arbiter.Decide(context.Background(), now, short(), domain.TrendFlat, sentimentAt(now, domain.Neutral, 0.5), override)
	assert.Equal(t, domain.ActionCloseShort, got)
	assert.True(t, overrode)

	sell := &domain.Override{
		Action:     domain.OverrideSell,
		Confidence: 0.9,
		ReceivedAt: now,
		TTL:        300 * time.Second,
	}
	got, overrode = arbiter.Decide(context.Background(), now, long(), domain.TrendFlat, sentimentAt(now, domain.Neutral, 0.5), sell)
	assert.Equal(t, domain.ActionCloseLong, got)
	assert.True(t, overrode)
}

func TestDecideOverrideMustBeatSentimentConfidence(t *testing.T) {
	arbiter := newTestArbiter()
	now := time.Now()

	// Override above the fixed threshold but below the cached sentiment's
	// confidence does not supersede it.
	override := &domain.Override{
		Action:     domain.OverrideSell,
		Confidence: 0.8,
		ReceivedAt: now,
		TTL:        300 * time.Second,
	}
	got, overrode := arbiter.Decide(context.Background(), now, flat(), domain.TrendUp, sentimentAt(now, domain.Bullish, 0.85), override)
	assert.Equal(t, domain.ActionOpenLong, got)
	assert.False(t, overrode, "the signal agreement opened the long, not the override")
}

func TestDecideOverrideBelowThresholdIgnored(t *testing.T) {
	arbiter := newTestArbiter()
	now := time.Now()

	override := &domain.Override{
		Action:     domain.OverrideBuy,
		Confidence: 0.7, // below the 0.75 bar
		ReceivedAt: now,
		TTL:        300 * time.Second,
	}
	got, overrode := arbiter.Decide(context.Background(), now, flat(), domain.TrendFlat, sentimentAt(now, domain.Neutral, 0.5), override)
	assert.Equal(t, domain.ActionHold, got)
	assert.False(t, overrode)
}

func TestDecideStaleSentimentTreatedAsNeutral(t *testing.T) {
	arbiter := newTestArbiter()
	now := time.Now()

	stale := domain.Signal{
		Source:     domain.SourceSentiment,
		Direction:  domain.Bullish,
		Confidence: 0.9,
		ObservedAt: now.Add(-2 * time.Hour),
		TTL:        time.Hour,
	}
	got, _ := arbiter.Decide(context.Background(), now, flat(), domain.TrendUp, stale, nil)
	assert.Equal(t, domain.ActionHold, got)
}

func TestDecideWeakOverrideDoesNotClaimCredit(t *testing.T) {
	arbiter := newTestArbiter()
	now := time.Now()

	// A fresh buy override below the supersede bar while the trend and the
	// sentiment already agree on long: the long opens on the signals and the
	// override gets no attribution.
	override := &domain.Override{
		Action:     domain.OverrideBuy,
		Confidence: 0.5,
		ReceivedAt: now,
		TTL:        300 * time.Second,
	}
	got, overrode := arbiter.Decide(context.Background(), now, flat(), domain.TrendUp, sentimentAt(now, domain.Bullish, 0.8), override)
	assert.Equal(t, domain.ActionOpenLong, got)
	assert.False(t, overrode)
}
