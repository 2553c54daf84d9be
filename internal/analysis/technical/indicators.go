// Package technical implements the intraday indicators behind a directional
// reading. All functions operate on []models.OHLCV candle slices, oldest first.
package technical

import (
	"math"

	"github.com/seenimoa/optionpulse/pkg/models"
)

// RSI calculates the Relative Strength Index for the given period.
// Default period is 14. Returns values 0–100.
func RSI(candles []models.OHLCV, period int) []float64 {
	if period <= 0 {
		period = 14
	}
	n := len(candles)
	if n < period+1 {
		return nil
	}

	rsi := make([]float64, n)
	// Calculate initial gains and losses.
	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := candles[i].Close - candles[i-1].Close
		if change > 0 {
			avgGain += change
		} else {
			avgLoss += -change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	rsi[period] = rsiFrom(avgGain, avgLoss)

	// Wilder's smoothing for subsequent values.
	for i := period + 1; i < n; i++ {
		change := candles[i].Close - candles[i-1].Close
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = wilder(avgGain, gain, period)
		avgLoss = wilder(avgLoss, loss, period)
		rsi[i] = rsiFrom(avgGain, avgLoss)
	}

	return rsi
}

// RSILatest returns only the most recent RSI value.
func RSILatest(candles []models.OHLCV, period int) float64 {
	return last(RSI(candles, period))
}

func rsiFrom(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// TrueRange returns the per-candle true range. The first candle uses high-low.
func TrueRange(candles []models.OHLCV) []float64 {
	n := len(candles)
	if n == 0 {
		return nil
	}
	tr := make([]float64, n)
	tr[0] = candles[0].High - candles[0].Low
	for i := 1; i < n; i++ {
		hl := candles[i].High - candles[i].Low
		hc := math.Abs(candles[i].High - candles[i-1].Close)
		lc := math.Abs(candles[i].Low - candles[i-1].Close)
		tr[i] = math.Max(hl, math.Max(hc, lc))
	}
	return tr
}

// ATR calculates the Average True Range for the given period.
func ATR(candles []models.OHLCV, period int) []float64 {
	if period <= 0 {
		period = 14
	}
	n := len(candles)
	if n < 2 {
		return nil
	}

	tr := TrueRange(candles)

	// Wilder's smoothing ATR.
	atr := make([]float64, n)
	if n < period {
		return atr
	}

	// First ATR = simple average of first `period` true ranges.
	atr[period-1] = avg(tr[:period])
	for i := period; i < n; i++ {
		atr[i] = wilder(atr[i-1], tr[i], period)
	}

	return atr
}

// ATRLatest returns the most recent ATR value.
func ATRLatest(candles []models.OHLCV, period int) float64 {
	return last(ATR(candles, period))
}

// --- helper functions ---

// wilder applies one step of Wilder's smoothing.
func wilder(prev, cur float64, period int) float64 {
	return (prev*float64(period-1) + cur) / float64(period)
}

func extractCloses(candles []models.OHLCV) []float64 {
	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	return closes
}

func avg(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range data {
		sum += v
	}
	return sum / float64(len(data))
}

func last(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	return vals[len(vals)-1]
}

func emaCalc(data []float64, period int) []float64 {
	n := len(data)
	if n == 0 || period <= 0 {
		return make([]float64, n)
	}

	ema := make([]float64, n)
	k := 2.0 / float64(period+1)

	// Seed with SMA of first `period` values.
	if n < period {
		return ema
	}
	ema[period-1] = avg(data[:period])

	for i := period; i < n; i++ {
		ema[i] = data[i]*k + ema[i-1]*(1-k)
	}

	return ema
}
