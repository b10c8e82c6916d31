package indicators

import (
	"math"
	"testing"

	"antigravity/internal/domain"
)

func klinesFromCloses(closes []float64) []*domain.Kline {
	klines := make([]*domain.Kline, len(closes))
	for i, c := range closes {
		klines[i] = &domain.Kline{Close: c}
	}
	return klines
}

func TestSMA(t *testing.T) {
	klines := klinesFromCloses([]float64{1, 2, 3, 4, 5})

	sma, err := SMA(klines, 5)
	if err != nil {
		t.Fatalf("SMA returned error: %v", err)
	}
	if sma != 3 {
		t.Errorf("SMA = %f, want 3", sma)
	}

	sma, err = SMA(klines, 2)
	if err != nil {
		t.Fatalf("SMA returned error: %v", err)
	}
	if sma != 4.5 {
		t.Errorf("SMA over last 2 = %f, want 4.5", sma)
	}
}

func TestSMANotEnoughData(t *testing.T) {
	klines := klinesFromCloses([]float64{1, 2, 3})
	if _, err := SMA(klines, 5); err == nil {
		t.Error("Expected error for insufficient data")
	}
}

func TestEMAConstantSeries(t *testing.T) {
	// EMA of a constant series equals the constant.
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 42
	}
	ema, err := EMA(klinesFromCloses(closes), 10)
	if err != nil {
		t.Fatalf("EMA returned error: %v", err)
	}
	if math.Abs(ema-42) > 1e-9 {
		t.Errorf("EMA = %f, want 42", ema)
	}
}

func TestEMAFollowsTrend(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = float64(i + 1)
	}
	ema, err := EMA(klinesFromCloses(closes), 10)
	if err != nil {
		t.Fatalf("EMA returned error: %v", err)
	}
	sma, _ := SMA(klinesFromCloses(closes), 10)
	// On a rising series the EMA sits above the equally-weighted average.
	if ema <= sma-1 {
		t.Errorf("EMA %f should track recent prices more closely than SMA %f", ema, sma)
	}
	if ema >= 30 {
		t.Errorf("EMA %f cannot exceed the maximum close", ema)
	}
}

func TestRSIAllGains(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = float64(100 + i)
	}
	rsi, err := RSI(klinesFromCloses(closes), 14)
	if err != nil {
		t.Fatalf("RSI returned error: %v", err)
	}
	if rsi != 100 {
		t.Errorf("RSI of monotonically rising series = %f, want 100", rsi)
	}
}

func TestRSIAllLosses(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = float64(100 - i)
	}
	rsi, err := RSI(klinesFromCloses(closes), 14)
	if err != nil {
		t.Fatalf("RSI returned error: %v", err)
	}
	if rsi >= 1 {
		t.Errorf("RSI of monotonically falling series = %f, want near 0", rsi)
	}
}

func TestRSIFlatSeries(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 100
	}
	rsi, err := RSI(klinesFromCloses(closes), 14)
	if err != nil {
		t.Fatalf("RSI returned error: %v", err)
	}
	if rsi != 50 {
		t.Errorf("RSI of flat series = %f, want 50", rsi)
	}
}

func TestRSIBounds(t *testing.T) {
	closes := []float64{100, 103, 99, 105, 98, 110, 95, 108, 101, 104, 97, 106, 100, 103, 99, 107, 102}
	rsi, err := RSI(klinesFromCloses(closes), 14)
	if err != nil {
		t.Fatalf("RSI returned error: %v", err)
	}
	if rsi < 0 || rsi > 100 {
		t.Errorf("RSI = %f, out of [0, 100]", rsi)
	}
}

func TestMACDRisingSeries(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + float64(i)*2
	}
	macd, signal, hist, err := MACD(klinesFromCloses(closes), 12, 26, 9)
	if err != nil {
		t.Fatalf("MACD returned error: %v", err)
	}
	if macd <= 0 {
		t.Errorf("MACD of rising series = %f, want positive", macd)
	}
	if math.Abs(hist-(macd-signal)) > 1e-9 {
		t.Errorf("histogram %f != macd-signal %f", hist, macd-signal)
	}
}

func TestMACDNotEnoughData(t *testing.T) {
	closes := make([]float64, 20)
	if _, _, _, err := MACD(klinesFromCloses(closes), 12, 26, 9); err == nil {
		t.Error("Expected error for insufficient data")
	}
}
