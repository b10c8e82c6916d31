// Package app contains the decision loop that drives the trading agent: on a
// fixed interval it reads market data, checks risk rules, refreshes the
// cached sentiment and arbitrates signals into at most one order per cycle.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"antigravity/internal/domain"
	"antigravity/internal/execution"
	"antigravity/internal/ports"
	"antigravity/internal/risk"
	"antigravity/internal/strategy"
)

// Directional weight the whale-flow bias contributes when folded into the
// classifier score.
const whaleBiasWeight = 0.5

// Sentiment cutoffs on the folded score, matching the classifier's own.
const sentimentCutoff = 0.1

// CycleReporter receives a one-line summary after each completed cycle.
type CycleReporter interface {
	ReportCycle(ctx context.Context, symbol string, price float64, action domain.Action, sentiment domain.Direction) error
}

// Config holds configuration for the decision loop.
type Config struct {
	Symbol           string
	Timeframe        string
	MinBalance       float64 // minimum quote balance required to open
	LoopInterval     time.Duration
	SentimentRefresh time.Duration
	RunOnce          bool
}

// Service is the decision loop. One instance runs per process; HTTP handlers
// call SetOverride and Snapshot concurrently with the loop.
type Service struct {
	cfg        Config
	market     ports.MarketDataSource
	venue      ports.OrderVenue // nil when no trading keys are configured
	store      ports.PositionStore
	riskMgr    *risk.Manager
	technical  *strategy.Technical
	arbiter    *strategy.Arbiter
	executor   *execution.Executor
	classifier ports.SentimentClassifier
	headlines  ports.HeadlineSource
	whales     ports.WhaleSource
	reporter   CycleReporter // optional
	logger     ports.Logger

	overrideMu sync.Mutex
	override   *domain.Override

	snapshotMu sync.RWMutex
	snapshot   domain.Snapshot

	// Loop-private sentiment cache, no lock needed.
	sentiment   domain.Signal
	lastRefresh time.Time

	now func() time.Time
}

// Deps bundles the service's collaborators.
type Deps struct {
	Market     ports.MarketDataSource
	Venue      ports.OrderVenue // optional
	Store      ports.PositionStore
	Risk       *risk.Manager
	Technical  *strategy.Technical
	Arbiter    *strategy.Arbiter
	Executor   *execution.Executor
	Classifier ports.SentimentClassifier
	Headlines  ports.HeadlineSource
	Whales     ports.WhaleSource
	Reporter   CycleReporter // optional
	Logger     ports.Logger
}

// NewService creates the decision loop service.
func NewService(cfg Config, deps Deps) (*Service, error) {
	switch {
	case deps.Market == nil:
		return nil, fmt.Errorf("market data source is required")
	case deps.Store == nil:
		return nil, fmt.Errorf("position store is required")
	case deps.Risk == nil:
		return nil, fmt.Errorf("risk manager is required")
	case deps.Technical == nil:
		return nil, fmt.Errorf("technical predictor is required")
	case deps.Arbiter == nil:
		return nil, fmt.Errorf("signal arbiter is required")
	case deps.Executor == nil:
		return nil, fmt.Errorf("order executor is required")
	case deps.Classifier == nil:
		return nil, fmt.Errorf("sentiment classifier is required")
	case deps.Headlines == nil:
		return nil, fmt.Errorf("headline source is required")
	case deps.Logger == nil:
		return nil, fmt.Errorf("logger is required")
	}
	if cfg.Symbol == "" {
		return nil, fmt.Errorf("%w: symbol is required", ports.ErrConfigurationError)
	}
	if cfg.LoopInterval <= 0 {
		cfg.LoopInterval = 60 * time.Second
	}
	if cfg.Timeframe == "" {
		cfg.Timeframe = "1h"
	}

	now := time.Now
	return &Service{
		cfg:        cfg,
		market:     deps.Market,
		venue:      deps.Venue,
		store:      deps.Store,
		riskMgr:    deps.Risk,
		technical:  deps.Technical,
		arbiter:    deps.Arbiter,
		executor:   deps.Executor,
		classifier: deps.Classifier,
		headlines:  deps.Headlines,
		whales:     deps.Whales,
		reporter:   deps.Reporter,
		logger:     deps.Logger,
		sentiment:  domain.NeutralSentiment(now()),
		now:        now,
	}, nil
}

// Run executes decision cycles until the context is cancelled. In run-once
// mode it returns after the first cycle.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info(ctx, "Decision loop starting", map[string]interface{}{
		"symbol":   s.cfg.Symbol,
		"interval": s.cfg.LoopInterval.String(),
		"run_once": s.cfg.RunOnce,
	})

	for {
		s.runCycle(ctx)

		if s.cfg.RunOnce {
			s.logger.Info(ctx, "Run-once cycle complete, exiting", nil)
			return nil
		}
		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "Decision loop stopping", nil)
			return ctx.Err()
		case <-time.After(s.cfg.LoopInterval):
		}
	}
}

// SetOverride installs an external override. It stays active until its TTL
// expires or a newer one replaces it; each cycle re-evaluates it.
func (s *Service) SetOverride(ov domain.Override) {
	s.overrideMu.Lock()
	s.override = &ov
	s.overrideMu.Unlock()
	s.logger.Info(context.Background(), "Override received", map[string]interface{}{
		"action":     string(ov.Action),
		"confidence": ov.Confidence,
		"rationale":  ov.Rationale,
	})
}

func (s *Service) currentOverride() *domain.Override {
	s.overrideMu.Lock()
	defer s.overrideMu.Unlock()
	return s.override
}

// Snapshot returns the market state published by the last completed cycle.
func (s *Service) Snapshot() domain.Snapshot {
	s.snapshotMu.RLock()
	defer s.snapshotMu.RUnlock()
	return s.snapshot
}

func (s *Service) publishSnapshot(snap domain.Snapshot) {
	s.snapshotMu.Lock()
	s.snapshot = snap
	s.snapshotMu.Unlock()
}

// runCycle executes one decision cycle. A panic inside a cycle is contained:
// it is logged and the cycle ends as a hold, the loop survives.
func (s *Service) runCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error(ctx, "Cycle panicked, holding", fmt.Errorf("panic: %v", r), nil)
		}
	}()

	now := s.now()

	klines, err := s.market.GetKlines(ctx, s.cfg.Symbol, s.cfg.Timeframe, s.technical.RequiredDataPoints())
	if err != nil {
		s.logger.Error(ctx, "Failed to fetch klines, holding", err, nil)
		return
	}
	if len(klines) == 0 {
		s.logger.Warn(ctx, "No klines returned, holding", nil)
		return
	}
	last := klines[len(klines)-1]
	price, volume := last.Close, last.Volume

	pos, err := s.store.Get(ctx)
	if err != nil {
		s.logger.Error(ctx, "Failed to read position, holding", err, nil)
		return
	}
	// Backends that were never written report an empty side; treat it as flat.
	pos.Side = domain.ParseSide(string(pos.Side))

	indicatorSet, trend, err := s.technical.Analyze(klines)
	if err != nil {
		s.logger.Error(ctx, "Technical analysis failed, holding", err, nil)
		return
	}

	// Risk rules run first and outrank every signal.
	if event, pnl := s.riskMgr.Evaluate(pos, price); event != risk.EventNone {
		s.logger.Warn(ctx, "Risk event, forcing close", map[string]interface{}{
			"event":   event.String(),
			"pnl_pct": pnl * 100,
			"price":   price,
		})
		action := domain.ActionHold
		if ev, err := s.executor.ExecuteClose(ctx, event.Reason(), price); err != nil {
			s.logger.Error(ctx, "Forced close failed", err, nil)
		} else {
			action = ev.Action
			pos = domain.Position{Symbol: s.cfg.Symbol, Side: domain.SideNone}
		}
		s.finishCycle(ctx, now, price, volume, indicatorSet, trend, pos.Side, action)
		return
	}

	s.refreshSentiment(ctx, now)

	override := s.currentOverride()
	action, overrode := s.arbiter.Decide(ctx, now, pos, trend, s.sentiment, override)

	if action.IsOpen() && !s.balanceSufficient(ctx) {
		s.logger.Warn(ctx, "Balance below minimum, skipping open", map[string]interface{}{
			"min_balance": s.cfg.MinBalance,
		})
		action = domain.ActionHold
	}

	executed := domain.ActionHold
	if action != domain.ActionHold {
		side := orderSide(action)
		reason := domain.ReasonSignal
		if overrode {
			reason = domain.ReasonOverride
		}
		if ev, err := s.executor.Execute(ctx, side, reason, price); err != nil {
			s.logger.Error(ctx, "Order execution failed", err, map[string]interface{}{
				"action": action.String(),
			})
		} else {
			executed = ev.Action
			if pos, err = s.store.Get(ctx); err != nil {
				s.logger.Error(ctx, "Failed to re-read position", err, nil)
			}
		}
	} else {
		s.logger.Debug(ctx, "Holding", map[string]interface{}{
			"trend":     string(trend),
			"sentiment": string(s.sentiment.Direction),
			"position":  string(pos.Side),
		})
	}

	s.finishCycle(ctx, now, price, volume, indicatorSet, trend, pos.Side, executed)
}

func (s *Service) finishCycle(ctx context.Context, now time.Time, price, volume float64, ind domain.Indicators, trend domain.Trend, side domain.Side, action domain.Action) {
	s.publishSnapshot(domain.Snapshot{
		Symbol:              s.cfg.Symbol,
		Price:               price,
		Volume:              volume,
		Indicators:          ind,
		Trend:               trend,
		PositionSide:        side,
		Sentiment:           s.sentiment.Direction,
		SentimentConfidence: s.sentiment.Confidence,
		UpdatedAt:           now,
	})

	if s.reporter != nil {
		if err := s.reporter.ReportCycle(ctx, s.cfg.Symbol, price, action, s.sentiment.Direction); err != nil {
			s.logger.Warn(ctx, "Cycle report failed", map[string]interface{}{"error": err.Error()})
		}
	}
}

// refreshSentiment re-classifies headlines and whale summaries at most once
// per refresh interval. On failure the previous cached sentiment stays in
// effect.
func (s *Service) refreshSentiment(ctx context.Context, now time.Time) {
	if !s.lastRefresh.IsZero() && now.Sub(s.lastRefresh) < s.cfg.SentimentRefresh {
		return
	}

	texts, err := s.headlines.Headlines(ctx)
	if err != nil {
		s.logger.Warn(ctx, "Headline fetch failed, keeping cached sentiment", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	whaleBias := domain.Neutral
	whaleActive := false
	if s.whales != nil {
		summaries, bias, err := s.whales.Movements(ctx)
		if err != nil {
			s.logger.Warn(ctx, "Whale fetch failed, continuing without flow bias", map[string]interface{}{
				"error": err.Error(),
			})
		} else if len(summaries) > 0 || bias != domain.Neutral {
			texts = append(texts, summaries...)
			whaleBias = bias
			whaleActive = true
		}
	}

	direction, confidence, err := s.classifier.Classify(ctx, texts)
	if err != nil {
		s.logger.Warn(ctx, "Classification failed, keeping cached sentiment", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	if whaleActive {
		direction, confidence = foldWhaleBias(direction, confidence, whaleBias)
	}

	s.sentiment = domain.Signal{
		Source:     domain.SourceSentiment,
		Direction:  direction,
		Confidence: confidence,
		ObservedAt: now,
	}
	s.lastRefresh = now
	s.logger.Info(ctx, "Sentiment refreshed", map[string]interface{}{
		"direction":  string(direction),
		"confidence": confidence,
		"texts":      len(texts),
	})
}

// foldWhaleBias averages the signed classifier score with a fixed-weight
// whale-flow score and re-derives direction and confidence from the result.
func foldWhaleBias(direction domain.Direction, confidence float64, bias domain.Direction) (domain.Direction, float64) {
	score := signedScore(direction, confidence)
	score = (score + signedScore(bias, whaleBiasWeight)) / 2

	folded := domain.Neutral
	switch {
	case score > sentimentCutoff:
		folded = domain.Bullish
	case score < -sentimentCutoff:
		folded = domain.Bearish
	}

	conf := score
	if conf < 0 {
		conf = -conf
	}
	return folded, conf
}

func signedScore(direction domain.Direction, confidence float64) float64 {
	switch direction {
	case domain.Bullish:
		return confidence
	case domain.Bearish:
		return -confidence
	}
	return 0
}

// balanceSufficient gates new entries on the available quote balance. With no
// venue configured (simulation mode) the gate always passes; an unreadable
// balance also passes, the venue will reject the order itself if underfunded.
func (s *Service) balanceSufficient(ctx context.Context) bool {
	if s.venue == nil || s.cfg.MinBalance <= 0 {
		return true
	}
	balance, err := s.venue.GetAccountBalance(ctx, "USDT")
	if err != nil {
		s.logger.Warn(ctx, "Balance check failed, proceeding", map[string]interface{}{
			"error": err.Error(),
		})
		return true
	}
	return balance >= s.cfg.MinBalance
}

// orderSide maps a decided action to the order side the executor needs.
func orderSide(action domain.Action) domain.OrderSide {
	switch action {
	case domain.ActionOpenLong, domain.ActionCloseShort:
		return domain.Buy
	default:
		return domain.Sell
	}
}

