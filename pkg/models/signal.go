package models

import "time"

// Direction is the option side a directional signal points to.
type Direction string

const (
	DirectionNone Direction = ""
	DirectionCE   Direction = "CE" // bullish: buy calls
	DirectionPE   Direction = "PE" // bearish: buy puts
)

// Opposite returns the other side, or DirectionNone for DirectionNone.
func (d Direction) Opposite() Direction {
	switch d {
	case DirectionCE:
		return DirectionPE
	case DirectionPE:
		return DirectionCE
	}
	return DirectionNone
}

// IsSet reports whether d names a side.
func (d Direction) IsSet() bool { return d == DirectionCE || d == DirectionPE }

// Reading is the indicator snapshot computed for one symbol on one timeframe.
type Reading struct {
	Symbol      string    `json:"symbol"`
	Timeframe   Timeframe `json:"timeframe"`
	Close       float64   `json:"close"`
	RSI         float64   `json:"rsi"`
	EMAFast     float64   `json:"ema_fast"`
	EMASlow     float64   `json:"ema_slow"`
	ADX         float64   `json:"adx"`
	VWAP        float64   `json:"vwap"`
	ATR         float64   `json:"atr"`
	VolumeRatio float64   `json:"volume_ratio"`
	Direction   Direction `json:"direction"`
	At          time.Time `json:"at"`
}

// Strength is the 0–100 conviction score of a directional reading.
type Strength struct {
	Score   int      `json:"score"`
	Reasons []string `json:"reasons"`
}

// Signal is a scored directional reading that is handed to the reversal engine.
type Signal struct {
	Reading  Reading  `json:"reading"`
	Strength Strength `json:"strength"`
	Eligible bool     `json:"eligible"` // score reached the configured minimum
}

// Direction returns the signal direction, or DirectionNone when the signal is not eligible.
func (s Signal) Direction() Direction {
	if !s.Eligible {
		return DirectionNone
	}
	return s.Reading.Direction
}
