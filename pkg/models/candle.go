// Package models defines the core data structures used throughout OptionPulse.
package models

import "time"

// OHLCV represents a single candlestick bar of price data.
type OHLCV struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
	OI        int64     `json:"oi,omitempty"`
}

// Timeframe represents chart timeframe for OHLCV data.
type Timeframe string

const (
	Timeframe1Min  Timeframe = "1m"
	Timeframe5Min  Timeframe = "5m"
	Timeframe15Min Timeframe = "15m"
	Timeframe1Day  Timeframe = "1d"
)

// Minutes returns the bar length in minutes, or 0 for daily and unknown timeframes.
func (tf Timeframe) Minutes() int {
	switch tf {
	case Timeframe1Min:
		return 1
	case Timeframe5Min:
		return 5
	case Timeframe15Min:
		return 15
	}
	return 0
}

// Instrument describes one tradable underlying the scanner watches.
type Instrument struct {
	Symbol        string  `json:"symbol"`         // e.g., "NIFTY"
	InstrumentKey string  `json:"instrument_key"` // broker instrument key used for quotes and candles
	LotSize       int     `json:"lot_size"`
	StrikeStep    float64 `json:"strike_step"` // e.g., 50 for NIFTY, 100 for BANKNIFTY
	IsIndex       bool    `json:"is_index"`
}

// NewsArticle represents a financial news headline.
type NewsArticle struct {
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	Summary     string    `json:"summary,omitempty"`
	PublishedAt time.Time `json:"published_at"`
	Sentiment   float64   `json:"sentiment"` // -1 bearish … +1 bullish
}
