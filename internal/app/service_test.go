package app

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"antigravity/internal/domain"
	"antigravity/internal/execution"
	"antigravity/internal/risk"
	"antigravity/internal/strategy"
)

type nopLogger struct{}

func (nopLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (nopLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (nopLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (nopLogger) Error(ctx context.Context, msg string, err error, fields ...map[string]interface{}) {
}

type fakeMarket struct {
	closes []float64
	err    error
}

func (m *fakeMarket) GetTickerPrice(ctx context.Context, symbol string) (float64, error) {
	if m.err != nil {
		return 0, m.err
	}
	return m.closes[len(m.closes)-1], nil
}

func (m *fakeMarket) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]*domain.Kline, error) {
	if m.err != nil {
		return nil, m.err
	}
	klines := make([]*domain.Kline, len(m.closes))
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range m.closes {
		klines[i] = &domain.Kline{
			OpenTime: base.Add(time.Duration(i) * time.Hour),
			Symbol:   symbol,
			Interval: interval,
			Open:     c,
			High:     c,
			Low:      c,
			Close:    c,
			Volume:   100,
		}
	}
	return klines, nil
}

type fakeStore struct {
	pos domain.Position
}

func (s *fakeStore) Get(ctx context.Context) (domain.Position, error) { return s.pos, nil }

func (s *fakeStore) Set(ctx context.Context, side domain.Side, entryPrice float64) error {
	s.pos = domain.Position{Side: side, EntryPrice: entryPrice, OpenedAt: time.Now()}
	return nil
}

func (s *fakeStore) Clear(ctx context.Context) error {
	s.pos = domain.Position{Side: domain.SideNone}
	return nil
}

type fakeVenue struct {
	balance float64
}

func (v *fakeVenue) SubmitMarketOrder(ctx context.Context, symbol string, side domain.OrderSide, quantity float64) (float64, error) {
	return 0, nil // executor falls back to the price hint
}

func (v *fakeVenue) GetAccountBalance(ctx context.Context, asset string) (float64, error) {
	return v.balance, nil
}

type fakeClassifier struct {
	direction  domain.Direction
	confidence float64
	err        error
	calls      int
	panics     bool
}

func (c *fakeClassifier) Classify(ctx context.Context, texts []string) (domain.Direction, float64, error) {
	c.calls++
	if c.panics {
		panic("classifier exploded")
	}
	if c.err != nil {
		return domain.Neutral, 0, c.err
	}
	return c.direction, c.confidence, nil
}

type fakeHeadlines struct{}

func (fakeHeadlines) Headlines(ctx context.Context) ([]string, error) {
	return []string{"headline one", "headline two"}, nil
}

type fakeWhales struct {
	summaries []string
	bias      domain.Direction
}

func (w *fakeWhales) Movements(ctx context.Context) ([]string, domain.Direction, error) {
	return w.summaries, w.bias, nil
}

type fakeRecorder struct {
	events []*domain.TradeEvent
}

func (r *fakeRecorder) Record(ctx context.Context, event *domain.TradeEvent) error {
	r.events = append(r.events, event)
	return nil
}

// risingCloses yields enough bars for the small test periods with the short
// SMA above the long one.
func risingCloses(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 100 + float64(i)
	}
	return out
}

type fixture struct {
	svc        *Service
	store      *fakeStore
	recorder   *fakeRecorder
	classifier *fakeClassifier
}

func newFixture(t *testing.T, cfg Config, market *fakeMarket, venue *fakeVenue, classifier *fakeClassifier, whales *fakeWhales) *fixture {
	t.Helper()

	store := &fakeStore{pos: domain.Position{Side: domain.SideNone}}
	rec := &fakeRecorder{}

	tech, err := strategy.NewTechnical(strategy.TechnicalConfig{
		RSIPeriod: 2, ShortSMAPeriod: 2, LongSMAPeriod: 3,
		MACDFast: 2, MACDSlow: 3, MACDSignal: 2,
	})
	require.NoError(t, err)

	execCfg := execution.Config{
		Store:    store,
		Recorder: rec,
		Logger:   nopLogger{},
		Symbol:   cfg.Symbol,
		Quantity: 0.01,
	}
	if venue != nil {
		execCfg.Venue = venue
	}
	executor, err := execution.New(execCfg)
	require.NoError(t, err)

	deps := Deps{
		Market:     market,
		Store:      store,
		Risk:       risk.NewManager(risk.Config{StopLossPct: 0.02, TakeProfitPct: 0.05}),
		Technical:  tech,
		Arbiter:    strategy.NewArbiter(strategy.ArbiterConfig{ConfidenceThreshold: 0.6, OverrideThreshold: 0.75}, nopLogger{}),
		Executor:   executor,
		Classifier: classifier,
		Headlines:  fakeHeadlines{},
		Logger:     nopLogger{},
	}
	if venue != nil {
		deps.Venue = venue
	}
	if whales != nil {
		deps.Whales = whales
	}

	svc, err := NewService(cfg, deps)
	require.NoError(t, err)
	return &fixture{svc: svc, store: store, recorder: rec, classifier: classifier}
}

func baseConfig() Config {
	return Config{
		Symbol:           "BTCUSDT",
		Timeframe:        "1h",
		LoopInterval:     time.Second,
		SentimentRefresh: 30 * time.Minute,
		RunOnce:          true,
	}
}

func TestRunCycle_OpensLongOnAgreement(t *testing.T) {
	market := &fakeMarket{closes: risingCloses(10)}
	classifier := &fakeClassifier{direction: domain.Bullish, confidence: 0.9}
	f := newFixture(t, baseConfig(), market, nil, classifier, nil)

	require.NoError(t, f.svc.Run(context.Background()))

	require.Len(t, f.recorder.events, 1)
	event := f.recorder.events[0]
	assert.Equal(t, domain.ActionOpenLong, event.Action)
	assert.Equal(t, domain.ReasonSignal, event.Reason)
	assert.True(t, event.Simulated, "no venue configured, fill must be simulated")
	assert.Equal(t, domain.SideLong, f.store.pos.Side)

	snap := f.svc.Snapshot()
	assert.Equal(t, "BTCUSDT", snap.Symbol)
	assert.Equal(t, 109.0, snap.Price)
	assert.Equal(t, domain.TrendUp, snap.Trend)
	assert.Equal(t, domain.SideLong, snap.PositionSide)
	assert.Equal(t, domain.Bullish, snap.Sentiment)
}

func TestRunCycle_HoldsOnLowConfidence(t *testing.T) {
	market := &fakeMarket{closes: risingCloses(10)}
	classifier := &fakeClassifier{direction: domain.Bullish, confidence: 0.3}
	f := newFixture(t, baseConfig(), market, nil, classifier, nil)

	require.NoError(t, f.svc.Run(context.Background()))

	assert.Empty(t, f.recorder.events)
	assert.Equal(t, domain.SideNone, f.store.pos.Side)
}

func TestRunCycle_RiskEventOutranksSignals(t *testing.T) {
	market := &fakeMarket{closes: risingCloses(10)} // last close 109
	classifier := &fakeClassifier{direction: domain.Bullish, confidence: 0.9}
	f := newFixture(t, baseConfig(), market, nil, classifier, nil)

	// A short opened at 100 is down 9% at 109, far past the 2% stop.
	f.store.pos = domain.Position{Side: domain.SideShort, EntryPrice: 100}

	require.NoError(t, f.svc.Run(context.Background()))

	require.Len(t, f.recorder.events, 1)
	event := f.recorder.events[0]
	assert.Equal(t, domain.ActionStopLoss, event.Action)
	assert.Equal(t, domain.ReasonStopLoss, event.Reason)
	assert.InDelta(t, -9.0, event.PnLPct, 1e-9)
	assert.Equal(t, domain.SideNone, f.store.pos.Side)
	assert.Zero(t, f.classifier.calls, "risk cycle must not consult signals")
}

func TestRunCycle_OverrideForcesShortAndIsAttributed(t *testing.T) {
	market := &fakeMarket{closes: risingCloses(10)}
	classifier := &fakeClassifier{direction: domain.Bullish, confidence: 0.7}
	f := newFixture(t, baseConfig(), market, nil, classifier, nil)

	f.svc.SetOverride(domain.Override{
		Action:     domain.OverrideSell,
		Confidence: 0.9,
		Rationale:  "distribution detected",
		ReceivedAt: time.Now(),
		TTL:        5 * time.Minute,
	})

	require.NoError(t, f.svc.Run(context.Background()))

	require.Len(t, f.recorder.events, 1)
	event := f.recorder.events[0]
	assert.Equal(t, domain.ActionOpenShort, event.Action)
	assert.Equal(t, domain.ReasonOverride, event.Reason)
}

func TestRunCycle_WeakOverrideAttributedToSignal(t *testing.T) {
	// Rising closes plus bullish sentiment open the long on their own. A
	// fresh buy override too weak to supersede the sentiment must not be
	// credited in the audit trail.
	market := &fakeMarket{closes: risingCloses(10)}
	classifier := &fakeClassifier{direction: domain.Bullish, confidence: 0.8}
	f := newFixture(t, baseConfig(), market, nil, classifier, nil)

	f.svc.SetOverride(domain.Override{
		Action:     domain.OverrideBuy,
		Confidence: 0.5,
		Rationale:  "hunch",
		ReceivedAt: time.Now(),
		TTL:        5 * time.Minute,
	})

	require.NoError(t, f.svc.Run(context.Background()))

	require.Len(t, f.recorder.events, 1)
	event := f.recorder.events[0]
	assert.Equal(t, domain.ActionOpenLong, event.Action)
	assert.Equal(t, domain.ReasonSignal, event.Reason)
}

func TestRunCycle_StaleOverrideIgnored(t *testing.T) {
	market := &fakeMarket{closes: risingCloses(10)}
	classifier := &fakeClassifier{direction: domain.Neutral, confidence: 0.5}
	f := newFixture(t, baseConfig(), market, nil, classifier, nil)

	f.svc.SetOverride(domain.Override{
		Action:     domain.OverrideSell,
		Confidence: 0.95,
		ReceivedAt: time.Now().Add(-10 * time.Minute),
		TTL:        5 * time.Minute,
	})

	require.NoError(t, f.svc.Run(context.Background()))
	assert.Empty(t, f.recorder.events)
}

func TestRunCycle_SentimentRefreshIsIntervalGated(t *testing.T) {
	market := &fakeMarket{closes: risingCloses(10)}
	classifier := &fakeClassifier{direction: domain.Neutral, confidence: 0.5}
	f := newFixture(t, baseConfig(), market, nil, classifier, nil)

	ctx := context.Background()
	f.svc.runCycle(ctx)
	f.svc.runCycle(ctx)
	assert.Equal(t, 1, f.classifier.calls, "second cycle inside the interval must reuse the cache")

	// Jump past the refresh interval.
	f.svc.now = func() time.Time { return time.Now().Add(31 * time.Minute) }
	f.svc.runCycle(ctx)
	assert.Equal(t, 2, f.classifier.calls)
}

func TestRunCycle_ClassifierFailureKeepsCachedSentiment(t *testing.T) {
	market := &fakeMarket{closes: risingCloses(10)}
	classifier := &fakeClassifier{err: fmt.Errorf("all endpoints down")}
	f := newFixture(t, baseConfig(), market, nil, classifier, nil)

	require.NoError(t, f.svc.Run(context.Background()))

	assert.Empty(t, f.recorder.events)
	snap := f.svc.Snapshot()
	assert.Equal(t, domain.Neutral, snap.Sentiment)
	assert.InDelta(t, 0.5, snap.SentimentConfidence, 1e-9)
}

func TestRunCycle_WhaleBiasFoldsIntoSentiment(t *testing.T) {
	market := &fakeMarket{closes: risingCloses(10)}
	classifier := &fakeClassifier{direction: domain.Bullish, confidence: 0.9}
	whales := &fakeWhales{
		summaries: []string{"Whale moved 500 BTC to exchange"},
		bias:      domain.Bearish,
	}
	f := newFixture(t, baseConfig(), market, nil, classifier, whales)

	require.NoError(t, f.svc.Run(context.Background()))

	// (0.9 - 0.5) / 2 = 0.2, still bullish but diluted below the 0.6
	// confidence threshold, so no entry.
	assert.Empty(t, f.recorder.events)
	snap := f.svc.Snapshot()
	assert.Equal(t, domain.Bullish, snap.Sentiment)
	assert.InDelta(t, 0.2, snap.SentimentConfidence, 1e-9)
}

func TestRunCycle_BalanceGateBlocksOpens(t *testing.T) {
	market := &fakeMarket{closes: risingCloses(10)}
	classifier := &fakeClassifier{direction: domain.Bullish, confidence: 0.9}
	cfg := baseConfig()
	cfg.MinBalance = 10
	f := newFixture(t, cfg, market, &fakeVenue{balance: 5}, classifier, nil)

	require.NoError(t, f.svc.Run(context.Background()))
	assert.Empty(t, f.recorder.events)
}

func TestRunCycle_PanicIsContained(t *testing.T) {
	market := &fakeMarket{closes: risingCloses(10)}
	classifier := &fakeClassifier{panics: true}
	f := newFixture(t, baseConfig(), market, nil, classifier, nil)

	assert.NotPanics(t, func() {
		require.NoError(t, f.svc.Run(context.Background()))
	})
	assert.Empty(t, f.recorder.events)
}

func TestRunCycle_MarketFailureHolds(t *testing.T) {
	market := &fakeMarket{err: fmt.Errorf("exchange down")}
	classifier := &fakeClassifier{direction: domain.Bullish, confidence: 0.9}
	f := newFixture(t, baseConfig(), market, nil, classifier, nil)

	require.NoError(t, f.svc.Run(context.Background()))
	assert.Empty(t, f.recorder.events)
	assert.Zero(t, f.classifier.calls)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	market := &fakeMarket{closes: risingCloses(10)}
	classifier := &fakeClassifier{direction: domain.Neutral, confidence: 0.5}
	cfg := baseConfig()
	cfg.RunOnce = false
	cfg.LoopInterval = 10 * time.Millisecond
	f := newFixture(t, cfg, market, nil, classifier, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.svc.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("loop did not stop after cancellation")
	}
}
