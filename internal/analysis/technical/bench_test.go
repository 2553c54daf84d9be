package technical

import (
	"math/rand"
	"testing"
	"time"

	"github.com/seenimoa/optionpulse/pkg/models"
)

// benchCandles creates a synthetic one-minute session for benchmarks.
func benchCandles(n int) []models.OHLCV {
	candles := make([]models.OHLCV, n)
	rng := rand.New(rand.NewSource(42))
	price := 24500.0
	t := time.Date(2026, 2, 19, 3, 45, 0, 0, time.UTC) // 09:15 IST

	for i := range candles {
		change := (rng.Float64() - 0.48) * 20 // slight upward bias
		open := price
		close := price + change
		high := open + rng.Float64()*12
		low := open - rng.Float64()*12
		if high < close {
			high = close + rng.Float64()*4
		}
		if low > close {
			low = close - rng.Float64()*4
		}

		candles[i] = models.OHLCV{
			Timestamp: t,
			Open:      open,
			High:      high,
			Low:       low,
			Close:     close,
			Volume:    int64(rng.Intn(500_000) + 10_000),
		}
		price = close
		t = t.Add(time.Minute)
	}
	return candles
}

func BenchmarkRSI14_375(b *testing.B) {
	candles := benchCandles(375)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		RSI(candles, 14)
	}
}

func BenchmarkADX14_375(b *testing.B) {
	candles := benchCandles(375)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ADX(candles, 14)
	}
}

func BenchmarkSessionVWAP_375(b *testing.B) {
	candles := benchCandles(375)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		SessionVWAP(candles)
	}
}

func BenchmarkEvaluate_375(b *testing.B) {
	candles := benchCandles(375)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = Evaluate("NIFTY", models.Timeframe1Min, candles, 65)
	}
}
