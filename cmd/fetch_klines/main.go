// Downloads recent klines to a CSV file for offline replay.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"antigravity/config"
	"antigravity/internal/adapters/binanceclient"
	"antigravity/internal/adapters/logger"
	"antigravity/internal/utils"
)

func main() {
	symbol := flag.String("symbol", "BTCUSDT", "trading symbol")
	interval := flag.String("interval", "1h", "kline interval")
	limit := flag.Int("limit", 500, "number of klines to fetch")
	out := flag.String("out", "", "output CSV path (default data/<symbol>_<interval>_<date>.csv)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	appLogger := logger.NewStdLogger(cfg.LogLevel)
	ctx := context.Background()

	client, err := binanceclient.New(binanceclient.Config{
		APIKey:     cfg.APIKey,
		SecretKey:  cfg.SecretKey,
		UseTestnet: cfg.IsTestnet,
		Logger:     appLogger,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize Binance client: %v", err)
	}

	klines, err := client.GetKlines(ctx, *symbol, *interval, *limit)
	if err != nil {
		log.Fatalf("FATAL: Failed to fetch klines: %v", err)
	}
	appLogger.Info(ctx, "Fetched klines", map[string]interface{}{"count": len(klines)})

	filename := *out
	if filename == "" {
		filename = fmt.Sprintf("data/%s_%s_%s.csv", *symbol, *interval, time.Now().Format("20060102"))
	}
	if dir := filepath.Dir(filename); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("FATAL: Failed to create output directory: %v", err)
		}
	}
	if err := utils.WriteKlinesToCSV(klines, filename); err != nil {
		log.Fatalf("FATAL: Failed to write CSV: %v", err)
	}
	appLogger.Info(ctx, "Saved klines", map[string]interface{}{"filename": filename})
}
