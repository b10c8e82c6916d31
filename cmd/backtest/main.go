// Replays a kline CSV through the live decision rules (trend arbitration
// plus stop-loss/take-profit) with simulated fills and prints a summary.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"antigravity/config"
	"antigravity/internal/adapters/logger"
	"antigravity/internal/domain"
	"antigravity/internal/execution"
	"antigravity/internal/risk"
	"antigravity/internal/strategy"
	"antigravity/internal/utils"
)

// memStore is an in-process position store for replay runs.
type memStore struct {
	pos domain.Position
}

func (s *memStore) Get(ctx context.Context) (domain.Position, error) { return s.pos, nil }

func (s *memStore) Set(ctx context.Context, side domain.Side, entryPrice float64) error {
	s.pos = domain.Position{Side: side, EntryPrice: entryPrice, OpenedAt: time.Now()}
	return nil
}

func (s *memStore) Clear(ctx context.Context) error {
	s.pos = domain.Position{Side: domain.SideNone}
	return nil
}

// memRecorder collects replay trade events in memory.
type memRecorder struct {
	events []*domain.TradeEvent
}

func (r *memRecorder) Record(ctx context.Context, event *domain.TradeEvent) error {
	r.events = append(r.events, event)
	return nil
}

func main() {
	file := flag.String("file", "", "kline CSV produced by fetch_klines (required)")
	sentimentFlag := flag.String("sentiment", "BULLISH", "fixed sentiment for the replay: BULLISH, BEARISH or NEUTRAL")
	slippage := flag.Float64("slippage", 0.0005, "fractional slippage applied to each fill")
	flag.Parse()

	if *file == "" {
		log.Fatal("FATAL: -file is required")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	appLogger := logger.NewStdLogger(logger.LevelWarn)
	ctx := context.Background()

	klines, err := utils.ReadKlinesFromCSV(*file)
	if err != nil {
		log.Fatalf("FATAL: Failed to load klines: %v", err)
	}

	technical, err := strategy.NewTechnical(strategy.TechnicalConfig{
		RSIPeriod:      cfg.RSIPeriod,
		ShortSMAPeriod: cfg.ShortSMAPeriod,
		LongSMAPeriod:  cfg.LongSMAPeriod,
		MACDFast:       cfg.MACDFast,
		MACDSlow:       cfg.MACDSlow,
		MACDSignal:     cfg.MACDSignal,
	})
	if err != nil {
		log.Fatalf("FATAL: invalid indicator periods: %v", err)
	}
	warmup := technical.RequiredDataPoints()
	if len(klines) <= warmup {
		log.Fatalf("FATAL: need more than %d klines, got %d", warmup, len(klines))
	}

	arbiter := strategy.NewArbiter(strategy.ArbiterConfig{
		ConfidenceThreshold: cfg.ConfidenceThreshold,
		OverrideThreshold:   cfg.OverrideThreshold,
	}, appLogger)
	riskManager := risk.NewManager(risk.Config{
		StopLossPct:   cfg.StopLossPct,
		TakeProfitPct: cfg.TakeProfitPct,
	})

	store := &memStore{pos: domain.Position{Side: domain.SideNone}}
	rec := &memRecorder{}
	executor, err := execution.New(execution.Config{
		Store:    store,
		Recorder: rec,
		Logger:   appLogger,
		Symbol:   cfg.Symbol,
		Quantity: cfg.Quantity,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to build executor: %v", err)
	}

	sentiment := domain.Signal{
		Source:     domain.SourceSentiment,
		Direction:  domain.Direction(*sentimentFlag),
		Confidence: 1.0,
	}

	for i := warmup; i < len(klines); i++ {
		window := klines[:i+1]
		bar := klines[i]
		now := bar.CloseTime

		pos, _ := store.Get(ctx)

		if event, _ := riskManager.Evaluate(pos, bar.Close); event != risk.EventNone {
			if _, err := executor.ExecuteClose(ctx, event.Reason(), fill(bar.Close, pos.Side, *slippage)); err != nil {
				log.Fatalf("FATAL: replay close failed at bar %d: %v", i, err)
			}
			continue
		}

		_, trend, err := technical.Analyze(window)
		if err != nil {
			log.Fatalf("FATAL: analysis failed at bar %d: %v", i, err)
		}

		action, _ := arbiter.Decide(ctx, now, pos, trend, sentiment, nil)
		if action == domain.ActionHold {
			continue
		}
		side := domain.Sell
		if action == domain.ActionOpenLong || action == domain.ActionCloseShort {
			side = domain.Buy
		}
		if _, err := executor.Execute(ctx, side, domain.ReasonSignal, fillSide(bar.Close, side, *slippage)); err != nil {
			log.Fatalf("FATAL: replay order failed at bar %d: %v", i, err)
		}
	}

	// Flatten any open position at the last close.
	if pos, _ := store.Get(ctx); pos.IsOpen() {
		last := klines[len(klines)-1]
		if _, err := executor.ExecuteClose(ctx, domain.ReasonReplayEnd, fill(last.Close, pos.Side, *slippage)); err != nil {
			log.Fatalf("FATAL: final close failed: %v", err)
		}
	}

	printSummary(cfg.Symbol, klines, rec.events)
}

// fill applies slippage against the position being closed.
func fill(price float64, side domain.Side, slippage float64) float64 {
	if side == domain.SideLong {
		return price * (1 - slippage)
	}
	return price * (1 + slippage)
}

// fillSide applies slippage against the order being placed.
func fillSide(price float64, side domain.OrderSide, slippage float64) float64 {
	if side == domain.Buy {
		return price * (1 + slippage)
	}
	return price * (1 - slippage)
}

func printSummary(symbol string, klines []*domain.Kline, events []*domain.TradeEvent) {
	var (
		closes int
		wins   int
		roiPct float64
	)
	for _, ev := range events {
		if !ev.Action.IsClose() {
			continue
		}
		closes++
		if ev.PnLPct > 0 {
			wins++
		}
		roiPct += ev.PnLPct
	}

	fmt.Printf("Replay of %s: %d bars (%s to %s)\n",
		symbol, len(klines),
		klines[0].OpenTime.Format("2006-01-02"),
		klines[len(klines)-1].CloseTime.Format("2006-01-02"))
	fmt.Printf("Trades: %d round trips (%d events)\n", closes, len(events))
	if closes > 0 {
		fmt.Printf("Win rate: %.1f%%\n", float64(wins)/float64(closes)*100)
		fmt.Printf("Cumulative ROI: %+.2f%%\n", roiPct)
	}
	for _, ev := range events {
		line := fmt.Sprintf("  %s  %-11s %10.2f", ev.Timestamp.Format("2006-01-02 15:04"), ev.Action, ev.Price)
		if ev.Action.IsClose() {
			line += fmt.Sprintf("  %+6.2f%%", ev.PnLPct)
		}
		fmt.Println(line)
	}
}
