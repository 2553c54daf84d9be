package technical

import (
	"errors"
	"fmt"

	"github.com/seenimoa/optionpulse/pkg/models"
)

// ErrInsufficientData is returned when a series is too short for a reading.
var ErrInsufficientData = errors.New("insufficient candles")

// MinCandles is the shortest series Derive accepts.
const MinCandles = 30

// Indicator periods used for a reading.
const (
	RSIPeriod   = 14
	ATRPeriod   = 14
	ADXPeriod   = 14
	EMAFast     = 9
	EMASlow     = 21
	VolLookback = 20
)

// Direction thresholds.
const (
	bullRSI      = 55.0
	bearRSI      = 45.0
	trendADX     = 20.0
	neutralLow   = 40.0
	neutralHigh  = 60.0
	strongADX    = 25.0
	volumeSurge  = 1.5
	pointsPerHit = 25
)

// Derive computes the indicator reading for the latest candle and its direction.
//
//	CE: close > EMA9 > EMA21, RSI > 55, ADX > 20, close > VWAP
//	PE: close < EMA9 < EMA21, RSI < 45, ADX > 20, close < VWAP
func Derive(symbol string, tf models.Timeframe, candles []models.OHLCV) (models.Reading, error) {
	if len(candles) < MinCandles {
		return models.Reading{}, fmt.Errorf("%s %s: %w (%d < %d)", symbol, tf, ErrInsufficientData, len(candles), MinCandles)
	}

	closes := extractCloses(candles)
	latest := candles[len(candles)-1]
	r := models.Reading{
		Symbol:      symbol,
		Timeframe:   tf,
		Close:       latest.Close,
		RSI:         RSILatest(candles, RSIPeriod),
		EMAFast:     EMALatest(closes, EMAFast),
		EMASlow:     EMALatest(closes, EMASlow),
		ADX:         ADXLatest(candles, ADXPeriod).ADX,
		VWAP:        VWAPLatest(candles),
		ATR:         ATRLatest(candles, ATRPeriod),
		VolumeRatio: VolumeRatio(candles, VolLookback),
		At:          latest.Timestamp,
	}

	switch {
	case r.Close > r.EMAFast && r.EMAFast > r.EMASlow &&
		r.RSI > bullRSI && r.ADX > trendADX && r.Close > r.VWAP:
		r.Direction = models.DirectionCE
	case r.Close < r.EMAFast && r.EMAFast < r.EMASlow &&
		r.RSI < bearRSI && r.ADX > trendADX && r.Close < r.VWAP:
		r.Direction = models.DirectionPE
	}
	return r, nil
}

// Score rates a reading for the given direction out of 100, 25 points per check:
// RSI outside the 40–60 band, ADX above 25, volume above 1.5× its average and
// price on the direction's side of VWAP.
func Score(r models.Reading, dir models.Direction) models.Strength {
	var s models.Strength
	if !dir.IsSet() {
		return s
	}
	hit := func(reason string) {
		s.Score += pointsPerHit
		s.Reasons = append(s.Reasons, reason)
	}

	if r.RSI < neutralLow || r.RSI > neutralHigh {
		hit(fmt.Sprintf("RSI %.1f outside neutral band", r.RSI))
	}
	if r.ADX > strongADX {
		hit(fmt.Sprintf("ADX %.1f trending", r.ADX))
	}
	if r.VolumeRatio > volumeSurge {
		hit(fmt.Sprintf("volume %.1fx average", r.VolumeRatio))
	}
	switch {
	case dir == models.DirectionCE && r.Close > r.VWAP:
		hit("price above VWAP")
	case dir == models.DirectionPE && r.Close < r.VWAP:
		hit("price below VWAP")
	}
	return s
}

// Evaluate derives and scores the latest candle. The signal is eligible when a
// direction is present and the score reaches minScore.
func Evaluate(symbol string, tf models.Timeframe, candles []models.OHLCV, minScore int) (models.Signal, error) {
	r, err := Derive(symbol, tf, candles)
	if err != nil {
		return models.Signal{}, err
	}
	st := Score(r, r.Direction)
	return models.Signal{
		Reading:  r,
		Strength: st,
		Eligible: r.Direction.IsSet() && st.Score >= minScore,
	}, nil
}
