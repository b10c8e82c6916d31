package domain

import "time"

// Indicators holds the technical indicator values computed for the latest bar.
type Indicators struct {
	RSI        float64 `json:"rsi"`
	ShortSMA   float64 `json:"sma_short"`
	LongSMA    float64 `json:"sma_long"`
	MACD       float64 `json:"macd"`
	MACDSignal float64 `json:"macd_signal"`
	MACDHist   float64 `json:"macd_hist"`
}

// Snapshot is the market state published after each decision cycle. It is
// what GET /market/status returns and what external agents analyze before
// posting an override.
type Snapshot struct {
	Symbol              string     `json:"symbol"`
	Price               float64    `json:"price"`
	Volume              float64    `json:"volume"`
	Indicators          Indicators `json:"indicators"`
	Trend               Trend      `json:"trend"`
	PositionSide        Side       `json:"position"`
	Sentiment           Direction  `json:"sentiment"`
	SentimentConfidence float64    `json:"sentiment_confidence"`
	UpdatedAt           time.Time  `json:"updated_at"`
}
