// Package indicators computes technical indicators over kline series.
// All functions expect klines ordered oldest first.
package indicators

import (
	"fmt"

	"antigravity/internal/domain"
)

// SMA computes the Simple Moving Average of closing prices over the last
// `period` klines.
func SMA(klines []*domain.Kline, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("SMA period must be positive, got %d", period)
	}
	if len(klines) < period {
		return 0, fmt.Errorf("not enough data (%d) to calculate SMA for period %d", len(klines), period)
	}

	total := 0.0
	for i := len(klines) - period; i < len(klines); i++ {
		total += klines[i].Close
	}
	return total / float64(period), nil
}

// EMA computes the Exponential Moving Average of closing prices, seeded with
// the SMA of the first `period` klines.
func EMA(klines []*domain.Kline, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("EMA period must be positive, got %d", period)
	}
	if len(klines) < period {
		return 0, fmt.Errorf("not enough data (%d) to calculate EMA for period %d", len(klines), period)
	}

	seed, err := SMA(klines[:period], period)
	if err != nil {
		return 0, fmt.Errorf("failed to seed EMA: %w", err)
	}

	multiplier := 2.0 / float64(period+1)
	ema := seed
	for i := period; i < len(klines); i++ {
		ema = (klines[i].Close-ema)*multiplier + ema
	}
	return ema, nil
}

// RSI computes the Relative Strength Index using Wilder's smoothing.
func RSI(klines []*domain.Kline, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("RSI period must be positive, got %d", period)
	}
	if len(klines) <= period {
		return 0, fmt.Errorf("not enough data (%d) to calculate RSI for period %d", len(klines), period)
	}

	changes := make([]float64, 0, len(klines)-1)
	for i := 1; i < len(klines); i++ {
		changes = append(changes, klines[i].Close-klines[i-1].Close)
	}

	var avgGain, avgLoss float64
	for i := 0; i < period; i++ {
		if changes[i] > 0 {
			avgGain += changes[i]
		} else {
			avgLoss -= changes[i]
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	for i := period; i < len(changes); i++ {
		gain, loss := 0.0, 0.0
		if changes[i] > 0 {
			gain = changes[i]
		} else {
			loss = -changes[i]
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		if avgGain == 0 {
			return 50, nil // Neutral if no change
		}
		return 100, nil
	}

	rs := avgGain / avgLoss
	rsi := 100 - (100 / (1 + rs))
	if rsi > 100 {
		rsi = 100
	} else if rsi < 0 {
		rsi = 0
	}
	return rsi, nil
}

// MACD computes the MACD line, its signal line, and the histogram.
// The signal line is the EMA of the MACD series over `signal` periods.
func MACD(klines []*domain.Kline, fast, slow, signal int) (macd, signalLine, histogram float64, err error) {
	if fast <= 0 || slow <= 0 || signal <= 0 {
		return 0, 0, 0, fmt.Errorf("MACD periods must be positive (fast=%d slow=%d signal=%d)", fast, slow, signal)
	}
	if fast >= slow {
		return 0, 0, 0, fmt.Errorf("MACD fast period (%d) must be less than slow period (%d)", fast, slow)
	}
	if len(klines) < slow+signal {
		return 0, 0, 0, fmt.Errorf("not enough data (%d) to calculate MACD (need %d)", len(klines), slow+signal)
	}

	// Build the MACD series over the tail so the signal EMA has history.
	series := make([]float64, 0, signal+1)
	for i := len(klines) - signal; i <= len(klines); i++ {
		fastEMA, err := EMA(klines[:i], fast)
		if err != nil {
			return 0, 0, 0, err
		}
		slowEMA, err := EMA(klines[:i], slow)
		if err != nil {
			return 0, 0, 0, err
		}
		series = append(series, fastEMA-slowEMA)
	}

	macd = series[len(series)-1]
	multiplier := 2.0 / float64(signal+1)
	signalLine = series[0]
	for _, v := range series[1:] {
		signalLine = (v-signalLine)*multiplier + signalLine
	}
	return macd, signalLine, macd - signalLine, nil
}
