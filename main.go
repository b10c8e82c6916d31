package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"antigravity/config"
	"antigravity/internal/adapters/binanceclient"
	"antigravity/internal/adapters/feeds"
	"antigravity/internal/adapters/logger"
	"antigravity/internal/adapters/redisstore"
	"antigravity/internal/adapters/sentiment"
	"antigravity/internal/adapters/sqlite"
	"antigravity/internal/adapters/telegram"
	"antigravity/internal/app"
	"antigravity/internal/execution"
	"antigravity/internal/ports"
	"antigravity/internal/recorder"
	"antigravity/internal/risk"
	"antigravity/internal/server"
	"antigravity/internal/strategy"
)

func main() {
	// --- Configuration ---
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	// --- Logger ---
	appLogger := logger.NewStdLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	appLogger.Info(ctx, "Starting trading agent", map[string]interface{}{
		"symbol":    cfg.Symbol,
		"timeframe": cfg.Timeframe,
		"testnet":   cfg.IsTestnet,
		"run_once":  cfg.RunOnce,
	})

	// --- Position Store (Redis, degrades to in-process mirror) ---
	store, err := redisstore.New(ctx, redisstore.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		Symbol:   cfg.Symbol,
		Logger:   appLogger,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize position store: %v", err)
	}

	// --- Exchange Client ---
	exchange, err := binanceclient.New(binanceclient.Config{
		APIKey:     cfg.APIKey,
		SecretKey:  cfg.SecretKey,
		UseTestnet: cfg.IsTestnet,
		Logger:     appLogger,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize exchange client: %v", err)
	}
	// Orders are only routed to the venue when trading keys are present;
	// otherwise every fill is simulated at the last known price.
	var venue ports.OrderVenue
	if cfg.APIKey != "" && cfg.SecretKey != "" {
		venue = exchange
	} else {
		appLogger.Warn(ctx, "No trading keys configured, running with simulated fills")
	}

	// --- Trade Ledger + Notification ---
	ledger, err := sqlite.NewLedger(sqlite.Config{DBPath: cfg.LedgerPath, Logger: appLogger})
	if err != nil {
		log.Fatalf("FATAL: Failed to open trade ledger: %v", err)
	}
	defer ledger.Close()

	notifier, err := telegram.New(cfg.TelegramToken, cfg.TelegramChatID, appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize telegram notifier: %v", err)
	}
	if !notifier.Enabled() {
		appLogger.Info(ctx, "Telegram notifications disabled", nil)
	}

	sinks := []ports.TradeRecorder{ledger}
	if notifier.Enabled() {
		sinks = append(sinks, notifier)
	}
	fanout, err := recorder.New(appLogger, sinks...)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize trade recorder: %v", err)
	}

	// --- Intelligence Feeds ---
	classifier, err := sentiment.New(sentiment.Config{URLs: cfg.SentimentAPIURLs, Logger: appLogger})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize sentiment classifier: %v", err)
	}
	classifier.Ping(ctx)

	news, err := feeds.NewNewsFetcher(nil, 10*time.Second, appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize news fetcher: %v", err)
	}

	whales, err := feeds.NewWhaleFetcher(cfg.WhaleAPIKey, 10*time.Second, appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize whale fetcher: %v", err)
	}

	// --- Strategy + Risk + Execution ---
	technical, err := strategy.NewTechnical(strategy.TechnicalConfig{
		RSIPeriod:      cfg.RSIPeriod,
		ShortSMAPeriod: cfg.ShortSMAPeriod,
		LongSMAPeriod:  cfg.LongSMAPeriod,
		MACDFast:       cfg.MACDFast,
		MACDSlow:       cfg.MACDSlow,
		MACDSignal:     cfg.MACDSignal,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize technical predictor: %v", err)
	}

	arbiter := strategy.NewArbiter(strategy.ArbiterConfig{
		ConfidenceThreshold: cfg.ConfidenceThreshold,
		OverrideThreshold:   cfg.OverrideThreshold,
	}, appLogger)

	riskManager := risk.NewManager(risk.Config{
		StopLossPct:   cfg.StopLossPct,
		TakeProfitPct: cfg.TakeProfitPct,
	})

	executor, err := execution.New(execution.Config{
		Store:    store,
		Venue:    venue,
		Recorder: fanout,
		Logger:   appLogger,
		Symbol:   cfg.Symbol,
		Quantity: cfg.Quantity,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize order executor: %v", err)
	}

	// --- Decision Loop ---
	serviceDeps := app.Deps{
		Market:     exchange,
		Venue:      venue,
		Store:      store,
		Risk:       riskManager,
		Technical:  technical,
		Arbiter:    arbiter,
		Executor:   executor,
		Classifier: classifier,
		Headlines:  news,
		Whales:     whales,
		Logger:     appLogger,
	}
	if notifier.Enabled() {
		serviceDeps.Reporter = notifier
	}
	service, err := app.NewService(app.Config{
		Symbol:           cfg.Symbol,
		Timeframe:        cfg.Timeframe,
		MinBalance:       cfg.MinBalance,
		LoopInterval:     cfg.LoopInterval,
		SentimentRefresh: cfg.SentimentRefresh,
		RunOnce:          cfg.RunOnce,
	}, serviceDeps)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize decision loop: %v", err)
	}

	// --- Control API ---
	controlServer, err := server.New(server.Config{
		Port:        cfg.HTTPPort,
		OverrideTTL: cfg.OverrideTTL,
	}, server.Deps{
		Snapshot: service,
		Override: service,
		Orders:   executor,
		Market:   exchange,
		Ledger:   ledger,
		Logger:   appLogger,
		Symbol:   cfg.Symbol,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize control server: %v", err)
	}

	serverErr := make(chan error, 1)
	go func() { serverErr <- controlServer.Run(ctx) }()

	// --- Run ---
	runErr := service.Run(ctx)
	stop()
	if err := <-serverErr; err != nil {
		appLogger.Error(context.Background(), "Control server exited with error", err, nil)
	}
	if runErr != nil && runErr != context.Canceled {
		log.Fatalf("FATAL: Decision loop failed: %v", runErr)
	}
	appLogger.Info(context.Background(), "Shutdown complete", nil)
}
