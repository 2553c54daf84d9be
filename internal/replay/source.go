package replay

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/seenimoa/optionpulse/internal/datasource"
	"github.com/seenimoa/optionpulse/pkg/models"
)

// maxHistory caps the bars handed to the indicators on each step.
const maxHistory = 400

// barSource serves one-minute history up to a movable cursor, so the scanner
// only ever sees bars that had closed at the simulated time.
type barSource struct {
	symbol string
	bars   []models.OHLCV

	mu     sync.Mutex
	cursor int // index of the last visible bar
}

func (b *barSource) Name() string { return "replay" }

func (b *barSource) advance(i int) {
	b.mu.Lock()
	b.cursor = i
	b.mu.Unlock()
}

// Candles implements datasource.CandleSource over the visible bars.
func (b *barSource) Candles(_ context.Context, symbol string, tf models.Timeframe) ([]models.OHLCV, error) {
	if symbol != b.symbol {
		return nil, fmt.Errorf("replay has no data for %s: %w", symbol, datasource.ErrNoData)
	}
	b.mu.Lock()
	visible := b.bars[:b.cursor+1]
	b.mu.Unlock()

	out := visible
	if tf != models.Timeframe1Min {
		out = Resample(visible, tf)
	}
	if len(out) > maxHistory {
		out = out[len(out)-maxHistory:]
	}
	return out, nil
}

// Resample aggregates sorted one-minute bars into tf buckets. The last bucket
// may be partial, as it is on a live chart.
func Resample(bars []models.OHLCV, tf models.Timeframe) []models.OHLCV {
	if tf.Minutes() <= 1 || len(bars) == 0 {
		return bars
	}
	d := time.Duration(tf.Minutes()) * time.Minute
	var out []models.OHLCV
	for _, b := range bars {
		bucket := b.Timestamp.Truncate(d)
		if n := len(out); n > 0 && out[n-1].Timestamp.Equal(bucket) {
			cur := &out[n-1]
			cur.High = max(cur.High, b.High)
			cur.Low = min(cur.Low, b.Low)
			cur.Close = b.Close
			cur.Volume += b.Volume
			continue
		}
		b.Timestamp = bucket
		out = append(out, b)
	}
	return out
}
