// Package replay runs historical one-minute bars through the live alert path
// (indicators, reversal engine, position monitor and paper ledger) on a
// simulated clock.
package replay

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/seenimoa/optionpulse/internal/logging"
	"github.com/seenimoa/optionpulse/internal/monitor"
	"github.com/seenimoa/optionpulse/internal/notify"
	"github.com/seenimoa/optionpulse/internal/paper"
	"github.com/seenimoa/optionpulse/internal/scanner"
	"github.com/seenimoa/optionpulse/pkg/models"
	"github.com/seenimoa/optionpulse/pkg/utils"
)

// ErrNotEnoughBars is returned when the history is shorter than the warm-up.
var ErrNotEnoughBars = errors.New("not enough bars to replay")

// History loads one-minute candles between two instants.
type History interface {
	CandlesBetween(ctx context.Context, symbol string, tf models.Timeframe, from, to time.Time) ([]models.OHLCV, error)
}

// Config holds replay parameters.
type Config struct {
	Scanner     scanner.Config // Symbols, StateFile and chain lookups are ignored
	ProgressPct float64
	Warmup      int // bars consumed before the first scan; default 30
}

// Result is the outcome of one replay.
type Result struct {
	Symbol  string            `json:"symbol"`
	From    time.Time         `json:"from"`
	To      time.Time         `json:"to"`
	Bars    int               `json:"bars"`
	Alerts  []models.Alert    `json:"alerts"`
	Trades  []paper.Record    `json:"trades"`
	Summary models.PnLSummary `json:"summary"`
	Stats   Stats             `json:"stats"`
}

// Fetch loads the last days trading days of one-minute history ending at now.
func Fetch(ctx context.Context, h History, symbol string, days int, now time.Time) ([]models.OHLCV, error) {
	if days <= 0 {
		days = 1
	}
	from := now
	for i := 0; i < days; i++ {
		from = utils.PrevTradingDay(from)
	}
	from = utils.MarketOpenTime(from)
	bars, err := h.CandlesBetween(ctx, symbol, models.Timeframe1Min, from, now)
	if err != nil {
		return nil, fmt.Errorf("fetch %s history: %w", symbol, err)
	}
	return bars, nil
}

// Run replays bars for symbol. extra, when non-nil, also receives every alert.
func Run(ctx context.Context, cfg Config, symbol string, bars []models.OHLCV, extra notify.Notifier) (*Result, error) {
	inst, ok := utils.LookupInstrument(symbol)
	if !ok {
		return nil, fmt.Errorf("%w: %s", scanner.ErrUnknownSymbol, symbol)
	}
	if cfg.Warmup <= 0 {
		cfg.Warmup = 30
	}

	sorted := make([]models.OHLCV, 0, len(bars))
	for _, b := range bars {
		if utils.IsMarketOpenAt(b.Timestamp) {
			sorted = append(sorted, b)
		}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })
	if len(sorted) <= cfg.Warmup {
		return nil, fmt.Errorf("%w: %d bars, warm-up %d", ErrNotEnoughBars, len(sorted), cfg.Warmup)
	}

	ledger, err := paper.NewLedger(":memory:")
	if err != nil {
		return nil, err
	}
	defer ledger.Close()

	src := &barSource{symbol: inst.Symbol, bars: sorted}
	prices := &simPrices{}
	col := &collector{}
	var sink notify.Notifier = col
	if extra != nil {
		sink = notify.Multi{col, extra}
	}

	sqHour, sqMin := cfg.Scanner.CutoffHour, cfg.Scanner.CutoffMin
	if sqHour == 0 && sqMin == 0 {
		sqHour, sqMin = 15, 20
	}
	mon := monitor.New(monitor.Config{
		ProgressPct:      cfg.ProgressPct,
		SquareOffHour:    sqHour,
		SquareOffMin:     sqMin,
		DisableSquareOff: true,
	}, prices, sink, ledger)

	scfg := cfg.Scanner
	scfg.Symbols = []string{inst.Symbol}
	scfg.StateFile = ""
	scfg.OptionChain = false
	scfg.Headlines = 0
	scfg.Concurrency = 1
	sc := scanner.New(scfg, scanner.Deps{
		Candles:  src,
		Prices:   prices,
		Monitor:  mon,
		Ledger:   ledger,
		Notifier: sink,
	})

	log := logging.Component("replay")
	squaredOff := ""
	for i, bar := range sorted {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		now := bar.Timestamp.Add(time.Minute) // bar close
		day := utils.FormatDateIST(bar.Timestamp)

		src.advance(i)
		prices.set(inst.InstrumentKey, bar.Close)
		mon.Check(ctx, now)

		cutoff := utils.ClockIST(bar.Timestamp, sqHour, sqMin)
		if !now.Before(cutoff) {
			if squaredOff != day {
				mon.SquareOffAll(ctx, prices.Fresh, now)
				squaredOff = day
			}
			continue
		}
		if i+1 < cfg.Warmup {
			continue
		}
		sc.ScanOnce(ctx, now)
	}
	last := sorted[len(sorted)-1]
	mon.SquareOffAll(ctx, prices.Fresh, last.Timestamp.Add(time.Minute))

	trades, err := ledger.Trades(ctx, 0)
	if err != nil {
		return nil, err
	}
	sort.Slice(trades, func(i, j int) bool { return trades[i].OpenedAt.Before(trades[j].OpenedAt) })

	res := &Result{
		Symbol:  inst.Symbol,
		From:    sorted[0].Timestamp,
		To:      last.Timestamp,
		Bars:    len(sorted),
		Alerts:  col.all(),
		Trades:  trades,
		Summary: paper.Summarize(trades),
		Stats:   ComputeStats(trades),
	}
	log.Info().Str("symbol", res.Symbol).Int("bars", res.Bars).Int("alerts", len(res.Alerts)).
		Int("trades", res.Summary.Trades).Float64("net", res.Summary.NetPnL).Msg("replay done")
	return res, nil
}

// simPrices is the replay price cache: the last bar close per key.
type simPrices struct {
	mu sync.RWMutex
	m  map[string]float64
}

func (p *simPrices) set(key string, v float64) {
	p.mu.Lock()
	if p.m == nil {
		p.m = make(map[string]float64)
	}
	p.m[key] = v
	p.mu.Unlock()
}

func (p *simPrices) Fresh(key string) (float64, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.m[key]
	return v, ok
}

// collector keeps every alert in order.
type collector struct {
	mu     sync.Mutex
	alerts []models.Alert
}

func (c *collector) Notify(_ context.Context, a models.Alert) error {
	c.mu.Lock()
	c.alerts = append(c.alerts, a)
	c.mu.Unlock()
	return nil
}

func (c *collector) all() []models.Alert {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.Alert(nil), c.alerts...)
}
