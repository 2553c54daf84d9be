package technical

import (
	"math"

	"github.com/seenimoa/optionpulse/pkg/models"
)

// DMIResult holds one Directional Movement Index point.
type DMIResult struct {
	PlusDI  float64
	MinusDI float64
	ADX     float64
}

// ADX calculates Wilder's Average Directional Index with +DI/-DI.
// The first ADX value appears at index 2*period-1; earlier points hold zero ADX.
func ADX(candles []models.OHLCV, period int) []DMIResult {
	if period <= 0 {
		period = 14
	}
	n := len(candles)
	if n < period+1 {
		return nil
	}

	tr := TrueRange(candles)
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	for i := 1; i < n; i++ {
		up := candles[i].High - candles[i-1].High
		down := candles[i-1].Low - candles[i].Low
		if up > down && up > 0 {
			plusDM[i] = up
		}
		if down > up && down > 0 {
			minusDM[i] = down
		}
	}

	out := make([]DMIResult, n)
	var sTR, sPlus, sMinus float64
	for i := 1; i <= period; i++ {
		sTR += tr[i]
		sPlus += plusDM[i]
		sMinus += minusDM[i]
	}

	dx := make([]float64, n)
	fill := func(i int) {
		if sTR == 0 {
			return
		}
		pdi := 100 * sPlus / sTR
		mdi := 100 * sMinus / sTR
		out[i].PlusDI, out[i].MinusDI = pdi, mdi
		if pdi+mdi > 0 {
			dx[i] = 100 * math.Abs(pdi-mdi) / (pdi + mdi)
		}
	}
	fill(period)

	for i := period + 1; i < n; i++ {
		sTR = sTR - sTR/float64(period) + tr[i]
		sPlus = sPlus - sPlus/float64(period) + plusDM[i]
		sMinus = sMinus - sMinus/float64(period) + minusDM[i]
		fill(i)
	}

	first := 2*period - 1
	if n <= first {
		return out
	}
	out[first].ADX = avg(dx[period : first+1])
	for i := first + 1; i < n; i++ {
		out[i].ADX = wilder(out[i-1].ADX, dx[i], period)
	}
	return out
}

// ADXLatest returns the most recent DMI point.
func ADXLatest(candles []models.OHLCV, period int) DMIResult {
	vals := ADX(candles, period)
	if len(vals) == 0 {
		return DMIResult{}
	}
	return vals[len(vals)-1]
}
