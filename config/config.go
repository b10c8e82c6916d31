package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"antigravity/internal/adapters/logger" // Import the logger package for LogLevel
)

// Config holds all application configuration.
type Config struct {
	// Trading Parameters
	Symbol              string
	Timeframe           string  // Kline interval used for indicators (e.g., "1h")
	Quantity            float64 // Fixed order size per trade
	MinBalance          float64 // Minimum quote balance required to open a position
	StopLossPct         float64 // e.g., 0.02 for 2%
	TakeProfitPct       float64 // e.g., 0.05 for 5%
	ConfidenceThreshold float64 // Minimum sentiment confidence to act on a signal
	OverrideThreshold   float64 // Minimum override confidence to supersede sentiment
	OverrideTTL         time.Duration

	// Decision Loop
	LoopInterval     time.Duration
	SentimentRefresh time.Duration // Minimum interval between classifier calls
	RunOnce          bool          // Exit after a single cycle (batch invocation)

	// Technical Indicator Parameters
	RSIPeriod      int
	ShortSMAPeriod int // e.g., 50
	LongSMAPeriod  int // e.g., 200
	MACDFast       int
	MACDSlow       int
	MACDSignal     int

	// Binance API
	APIKey    string
	SecretKey string
	IsTestnet bool

	// Position Store (Redis)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Sentiment / Feeds
	SentimentAPIURLs []string
	WhaleAPIKey      string // Empty disables the whale feed

	// Audit / Notification
	LedgerPath     string
	TelegramToken  string
	TelegramChatID string

	// Control API
	HTTPPort int

	// Logging
	LogLevel logger.LogLevel
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	// Trading Parameters
	cfg.Symbol = getEnv("SYMBOL", "BTCUSDT")
	if cfg.Symbol == "" {
		errs = append(errs, "SYMBOL must be set")
	}
	cfg.Timeframe = getEnv("TIMEFRAME", "1h")

	cfg.Quantity, err = getEnvAsFloatRequired("QUANTITY", 0.01)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid QUANTITY: %v", err))
	} else if cfg.Quantity <= 0 {
		errs = append(errs, "QUANTITY must be positive")
	}

	cfg.MinBalance, err = getEnvAsFloatRequired("MIN_BALANCE", 10.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MIN_BALANCE: %v", err))
	} else if cfg.MinBalance < 0 {
		errs = append(errs, "MIN_BALANCE cannot be negative")
	}

	cfg.StopLossPct, err = getEnvAsFloatRequired("STOP_LOSS_PCT", 0.02)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid STOP_LOSS_PCT: %v", err))
	} else if cfg.StopLossPct <= 0 || cfg.StopLossPct >= 1.0 {
		errs = append(errs, "STOP_LOSS_PCT must be between 0.0 and 1.0 (exclusive)")
	}

	cfg.TakeProfitPct, err = getEnvAsFloatRequired("TAKE_PROFIT_PCT", 0.05)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid TAKE_PROFIT_PCT: %v", err))
	} else if cfg.TakeProfitPct <= 0 || cfg.TakeProfitPct >= 1.0 {
		errs = append(errs, "TAKE_PROFIT_PCT must be between 0.0 and 1.0 (exclusive)")
	}

	// Keeps STOP_LOSS and TAKE_PROFIT mutually exclusive within one risk check.
	if cfg.StopLossPct > 0 && cfg.TakeProfitPct > 0 && cfg.StopLossPct >= cfg.TakeProfitPct {
		errs = append(errs, "STOP_LOSS_PCT must be less than TAKE_PROFIT_PCT")
	}

	cfg.ConfidenceThreshold = getEnvAsFloat("CONFIDENCE_THRESHOLD", 0.6)
	if cfg.ConfidenceThreshold < 0 || cfg.ConfidenceThreshold > 1 {
		errs = append(errs, "CONFIDENCE_THRESHOLD must be between 0.0 and 1.0")
	}

	cfg.OverrideThreshold = getEnvAsFloat("OVERRIDE_THRESHOLD", 0.75)
	if cfg.OverrideThreshold < 0 || cfg.OverrideThreshold > 1 {
		errs = append(errs, "OVERRIDE_THRESHOLD must be between 0.0 and 1.0")
	}

	overrideTTLSeconds := getEnvAsInt("OVERRIDE_TTL_SECONDS", 300)
	if overrideTTLSeconds <= 0 {
		errs = append(errs, "OVERRIDE_TTL_SECONDS must be positive")
	}
	cfg.OverrideTTL = time.Duration(overrideTTLSeconds) * time.Second

	// Decision Loop
	loopSeconds := getEnvAsInt("LOOP_INTERVAL_SECONDS", 60)
	if loopSeconds <= 0 {
		errs = append(errs, "LOOP_INTERVAL_SECONDS must be positive")
	}
	cfg.LoopInterval = time.Duration(loopSeconds) * time.Second

	refreshMinutes := getEnvAsInt("NEWS_FETCH_INTERVAL_MINUTES", 30)
	if refreshMinutes <= 0 {
		errs = append(errs, "NEWS_FETCH_INTERVAL_MINUTES must be positive")
	}
	cfg.SentimentRefresh = time.Duration(refreshMinutes) * time.Minute

	cfg.RunOnce = getEnvAsBool("RUN_ONCE", false)

	// Technical Indicator Parameters (using defaults if not set)
	cfg.RSIPeriod = getEnvAsInt("RSI_PERIOD", 14)
	cfg.ShortSMAPeriod = getEnvAsInt("SHORT_SMA_PERIOD", 50)
	cfg.LongSMAPeriod = getEnvAsInt("LONG_SMA_PERIOD", 200)
	cfg.MACDFast = getEnvAsInt("MACD_FAST", 12)
	cfg.MACDSlow = getEnvAsInt("MACD_SLOW", 26)
	cfg.MACDSignal = getEnvAsInt("MACD_SIGNAL", 9)

	if cfg.RSIPeriod <= 0 || cfg.ShortSMAPeriod <= 0 || cfg.LongSMAPeriod <= 0 ||
		cfg.MACDFast <= 0 || cfg.MACDSlow <= 0 || cfg.MACDSignal <= 0 {
		errs = append(errs, "indicator periods (RSI, SMA, MACD) must be positive")
	}
	if cfg.ShortSMAPeriod >= cfg.LongSMAPeriod {
		errs = append(errs, "SHORT_SMA_PERIOD must be less than LONG_SMA_PERIOD")
	}
	if cfg.MACDFast >= cfg.MACDSlow {
		errs = append(errs, "MACD_FAST must be less than MACD_SLOW")
	}

	// Binance API. Keys may be empty: the executor then runs in simulated
	// fill mode and only public market-data endpoints are used.
	cfg.APIKey = getEnv("BINANCE_API_KEY", "")
	cfg.SecretKey = getEnv("BINANCE_API_SECRET", "")
	cfg.IsTestnet = getEnvAsBool("IS_TESTNET", true) // Default to testnet for safety

	// Position Store
	cfg.RedisAddr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	cfg.RedisDB = getEnvAsInt("REDIS_DB", 0)

	// Sentiment / Feeds
	urls := getEnv("SENTIMENT_API_URLS", "https://finbert-crypto.onrender.com/analyze")
	for _, u := range strings.Split(urls, ",") {
		if u = strings.TrimSpace(u); u != "" {
			cfg.SentimentAPIURLs = append(cfg.SentimentAPIURLs, u)
		}
	}
	if len(cfg.SentimentAPIURLs) == 0 {
		errs = append(errs, "SENTIMENT_API_URLS must contain at least one URL")
	}
	cfg.WhaleAPIKey = getEnv("WHALE_ALERT_API_KEY", "")

	// Audit / Notification
	cfg.LedgerPath = getEnv("LEDGER_PATH", "./data/trades.db")
	if cfg.LedgerPath == "" {
		errs = append(errs, "LEDGER_PATH must be set")
	}
	cfg.TelegramToken = getEnv("TELEGRAM_BOT_TOKEN", "")
	cfg.TelegramChatID = getEnv("TELEGRAM_CHAT_ID", "")

	// Control API
	cfg.HTTPPort = getEnvAsInt("HTTP_PORT", 8000)
	if cfg.HTTPPort <= 0 || cfg.HTTPPort > 65535 {
		errs = append(errs, "HTTP_PORT must be a valid port number")
	}

	// Logging
	logLevelStr := getEnv("LOG_LEVEL", "INFO")
	cfg.LogLevel = logger.ParseLevel(logLevelStr)

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		// Use default if env var is not set at all
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		// Return error if env var is set but invalid
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
