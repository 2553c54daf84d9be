package technical

import (
	"gonum.org/v1/gonum/stat"

	"github.com/seenimoa/optionpulse/pkg/models"
)

// VolumeRatio returns the last candle's volume divided by the mean volume of
// the preceding lookback candles. It returns 0 when there is no baseline.
func VolumeRatio(candles []models.OHLCV, lookback int) float64 {
	if lookback <= 0 {
		lookback = 20
	}
	n := len(candles)
	if n < 2 {
		return 0
	}
	start := n - 1 - lookback
	if start < 0 {
		start = 0
	}
	prev := make([]float64, 0, n-1-start)
	for _, c := range candles[start : n-1] {
		prev = append(prev, float64(c.Volume))
	}
	mean := stat.Mean(prev, nil)
	if mean <= 0 {
		return 0
	}
	return float64(candles[n-1].Volume) / mean
}
