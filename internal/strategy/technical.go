package strategy

import (
	"fmt"

	"antigravity/internal/domain"
	"antigravity/internal/strategy/indicators"
)

// TechnicalConfig holds the indicator periods for the predictor.
type TechnicalConfig struct {
	RSIPeriod      int
	ShortSMAPeriod int
	LongSMAPeriod  int
	MACDFast       int
	MACDSlow       int
	MACDSignal     int
}

// Technical derives the directional trend signal from kline history. The
// trend itself comes from the short/long SMA cross; RSI and MACD are computed
// for the market snapshot and for external agents reading /market/status.
type Technical struct {
	cfg TechnicalConfig
}

// NewTechnical creates a technical predictor, validating the periods.
func NewTechnical(cfg TechnicalConfig) (*Technical, error) {
	if cfg.RSIPeriod <= 0 || cfg.ShortSMAPeriod <= 0 || cfg.LongSMAPeriod <= 0 ||
		cfg.MACDFast <= 0 || cfg.MACDSlow <= 0 || cfg.MACDSignal <= 0 {
		return nil, fmt.Errorf("all indicator periods must be positive")
	}
	if cfg.ShortSMAPeriod >= cfg.LongSMAPeriod {
		return nil, fmt.Errorf("short SMA period (%d) must be less than long SMA period (%d)", cfg.ShortSMAPeriod, cfg.LongSMAPeriod)
	}
	if cfg.MACDFast >= cfg.MACDSlow {
		return nil, fmt.Errorf("MACD fast period (%d) must be less than slow period (%d)", cfg.MACDFast, cfg.MACDSlow)
	}
	return &Technical{cfg: cfg}, nil
}

// RequiredDataPoints returns the minimum number of klines the predictor needs.
func (t *Technical) RequiredDataPoints() int {
	n := t.cfg.LongSMAPeriod
	if m := t.cfg.MACDSlow + t.cfg.MACDSignal; m > n {
		n = m
	}
	if m := t.cfg.RSIPeriod + 1; m > n {
		n = m
	}
	return n
}

// Analyze computes the indicator set and the trend for the latest bar.
// Trend is UP when the short SMA is above the long SMA (golden cross), DOWN
// when below, FLAT when equal.
func (t *Technical) Analyze(klines []*domain.Kline) (domain.Indicators, domain.Trend, error) {
	var ind domain.Indicators

	if len(klines) < t.RequiredDataPoints() {
		return ind, domain.TrendFlat, fmt.Errorf("not enough klines (%d) for technical analysis (need %d)", len(klines), t.RequiredDataPoints())
	}

	shortSMA, err := indicators.SMA(klines, t.cfg.ShortSMAPeriod)
	if err != nil {
		return ind, domain.TrendFlat, err
	}
	longSMA, err := indicators.SMA(klines, t.cfg.LongSMAPeriod)
	if err != nil {
		return ind, domain.TrendFlat, err
	}
	rsi, err := indicators.RSI(klines, t.cfg.RSIPeriod)
	if err != nil {
		return ind, domain.TrendFlat, err
	}
	macd, signalLine, hist, err := indicators.MACD(klines, t.cfg.MACDFast, t.cfg.MACDSlow, t.cfg.MACDSignal)
	if err != nil {
		return ind, domain.TrendFlat, err
	}

	ind = domain.Indicators{
		RSI:        rsi,
		ShortSMA:   shortSMA,
		LongSMA:    longSMA,
		MACD:       macd,
		MACDSignal: signalLine,
		MACDHist:   hist,
	}

	trend := domain.TrendFlat
	if shortSMA > longSMA {
		trend = domain.TrendUp
	} else if shortSMA < longSMA {
		trend = domain.TrendDown
	}
	return ind, trend, nil
}
