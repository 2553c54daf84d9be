package technical

import (
	"github.com/seenimoa/optionpulse/pkg/models"
	"github.com/seenimoa/optionpulse/pkg/utils"
)

// SMA calculates Simple Moving Average for the given period.
func SMA(data []float64, period int) []float64 {
	n := len(data)
	if n < period || period <= 0 {
		return nil
	}

	result := make([]float64, n)
	sum := 0.0
	for i := 0; i < period; i++ {
		sum += data[i]
	}
	result[period-1] = sum / float64(period)

	for i := period; i < n; i++ {
		sum += data[i] - data[i-period]
		result[i] = sum / float64(period)
	}

	return result
}

// EMA calculates Exponential Moving Average for the given period.
func EMA(data []float64, period int) []float64 {
	return emaCalc(data, period)
}

// EMALatest returns the most recent EMA value.
func EMALatest(data []float64, period int) float64 {
	return last(EMA(data, period))
}

// SessionVWAP calculates the Volume Weighted Average Price, restarting at the
// first candle of each IST trading day.
//
// Index candles carry no volume. While a session has seen no volume the
// running mean of the typical price is returned instead.
func SessionVWAP(candles []models.OHLCV) []float64 {
	n := len(candles)
	if n == 0 {
		return nil
	}

	result := make([]float64, n)
	var cumVolume, cumTPV, cumTP float64
	count := 0

	for i := 0; i < n; i++ {
		if i > 0 && !utils.SameDayIST(candles[i].Timestamp, candles[i-1].Timestamp) {
			cumVolume, cumTPV, cumTP, count = 0, 0, 0, 0
		}
		tp := (candles[i].High + candles[i].Low + candles[i].Close) / 3
		vol := float64(candles[i].Volume)
		cumTPV += tp * vol
		cumVolume += vol
		cumTP += tp
		count++

		if cumVolume > 0 {
			result[i] = cumTPV / cumVolume
		} else {
			result[i] = cumTP / float64(count)
		}
	}

	return result
}

// VWAPLatest returns the most recent session VWAP value.
func VWAPLatest(candles []models.OHLCV) float64 {
	return last(SessionVWAP(candles))
}
