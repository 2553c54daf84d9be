// Package scanner runs the periodic scan cycle: candles in, indicator
// readings through the reversal engine, alerts and virtual trades out.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/optionpulse/internal/analysis/derivatives"
	"github.com/seenimoa/optionpulse/internal/analysis/technical"
	"github.com/seenimoa/optionpulse/internal/datasource"
	"github.com/seenimoa/optionpulse/internal/engine"
	"github.com/seenimoa/optionpulse/internal/logging"
	"github.com/seenimoa/optionpulse/internal/monitor"
	"github.com/seenimoa/optionpulse/internal/notify"
	"github.com/seenimoa/optionpulse/pkg/models"
	"github.com/seenimoa/optionpulse/pkg/utils"
)

// ErrUnknownSymbol is returned for symbols outside the instrument table.
var ErrUnknownSymbol = errors.New("unknown symbol")

// recentAlerts is how many entry alerts Recent keeps.
const recentAlerts = 100

// Headliner supplies news headlines for an alert.
type Headliner interface {
	Headlines(ctx context.Context, symbol string, n int) []string
}

// Recorder persists opened trades, e.g. the paper ledger.
type Recorder interface {
	Open(ctx context.Context, t models.VirtualTrade) (string, error)
}

// Config tunes the scan cycle.
type Config struct {
	Symbols     []string
	Timeframes  []models.Timeframe // default 1m and 5m
	Interval    time.Duration
	Concurrency int
	MinScore    int
	Lots        int
	TargetATR   float64
	StopATR     float64
	TargetPct   float64 // percent of price, used when ATR is zero
	StopPct     float64
	OptionChain bool
	Headlines   int
	// No new scans at or after this IST wall-clock time.
	CutoffHour, CutoffMin int
	// StateFile, when set, receives an engine snapshot after every cycle.
	StateFile string
}

// Deps are the collaborators of a Scanner. Chains, News, Prices and Ledger
// may be nil.
type Deps struct {
	Candles  datasource.CandleSource
	Chains   datasource.OptionChainSource
	News     Headliner
	Prices   monitor.Prices
	Engine   *engine.Engine
	Gate     *engine.AlertGate
	Monitor  *monitor.Monitor
	Ledger   Recorder
	Notifier notify.Notifier
}

// Scanner runs scan cycles. It is safe for concurrent use.
type Scanner struct {
	cfg  Config
	deps Deps
	log  zerolog.Logger

	mu       sync.Mutex
	lastDay  time.Time
	recent   []models.Alert
	readings map[string]models.Signal // "SYMBOL/tf" → latest signal
}

// New creates a scanner.
func New(cfg Config, deps Deps) *Scanner {
	if len(cfg.Timeframes) == 0 {
		cfg.Timeframes = []models.Timeframe{models.Timeframe1Min, models.Timeframe5Min}
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Lots <= 0 {
		cfg.Lots = 1
	}
	if cfg.CutoffHour == 0 && cfg.CutoffMin == 0 {
		cfg.CutoffHour, cfg.CutoffMin = 15, 20
	}
	if deps.Engine == nil {
		deps.Engine = engine.New(engine.Config{})
	}
	if deps.Gate == nil {
		deps.Gate = engine.NewAlertGate(deps.Engine.Config().BlockWindow)
	}
	return &Scanner{
		cfg:      cfg,
		deps:     deps,
		log:      logging.Component("scanner"),
		readings: make(map[string]models.Signal),
	}
}

// Run scans every Interval while the market is open and before the cutoff,
// until ctx is cancelled.
func (s *Scanner) Run(ctx context.Context, now func() time.Time) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		if t := now(); s.Active(t) {
			alerts := s.ScanOnce(ctx, t)
			s.log.Debug().Int("alerts", len(alerts)).Msg("scan cycle done")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Active reports whether a scan should run at t.
func (s *Scanner) Active(t time.Time) bool {
	return utils.IsMarketOpenAt(t) && t.Before(utils.ClockIST(t, s.cfg.CutoffHour, s.cfg.CutoffMin))
}

// ScanOnce scans every configured symbol at now and returns the alerts raised.
// Per-symbol failures are logged and skipped.
func (s *Scanner) ScanOnce(ctx context.Context, now time.Time) []models.Alert {
	s.rollover(now)

	var (
		mu     sync.Mutex
		alerts []models.Alert
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for _, sym := range s.cfg.Symbols {
		sym := sym
		g.Go(func() error {
			out, err := s.scanSymbol(gctx, sym, now)
			if err != nil {
				s.log.Warn().Err(err).Str("symbol", sym).Msg("scan failed")
				return nil
			}
			mu.Lock()
			alerts = append(alerts, out...)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	sort.SliceStable(alerts, func(i, j int) bool { return alerts[i].Symbol < alerts[j].Symbol })

	if s.cfg.StateFile != "" {
		if err := engine.Save(s.cfg.StateFile, s.deps.Engine, s.deps.Gate, now); err != nil {
			s.log.Warn().Err(err).Msg("save engine state")
		}
	}
	return alerts
}

// rollover clears engine and gate state on the first scan of a new IST day.
func (s *Scanner) rollover(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.lastDay.IsZero() && !utils.SameDayIST(s.lastDay, now) {
		s.deps.Engine.ResetAll()
		s.deps.Gate.Reset()
		s.log.Info().Str("day", utils.FormatDateIST(now)).Msg("new trading day, engine reset")
	}
	s.lastDay = now
}

func (s *Scanner) scanSymbol(ctx context.Context, symbol string, now time.Time) ([]models.Alert, error) {
	inst, ok := utils.LookupInstrument(symbol)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}

	var (
		alerts []models.Alert
		errs   []error
	)
	for _, tf := range s.cfg.Timeframes {
		sig, err := s.signal(ctx, inst.Symbol, tf)
		if err != nil {
			errs = append(errs, err)
			// an unobserved cycle breaks a pending reversal
			if st, ok := s.deps.Engine.State(inst.Symbol, tf); ok && st.ReversalWatch {
				s.deps.Engine.Evaluate(inst.Symbol, tf, models.DirectionNone, now)
			}
			continue
		}

		res := s.deps.Engine.Evaluate(inst.Symbol, tf, sig.Direction(), now)
		if !res.Decision.Alerts() {
			continue
		}
		dir := res.State.Direction
		if !s.deps.Gate.Allow(inst.Symbol, dir, now) {
			s.log.Debug().Str("symbol", inst.Symbol).Str("tf", string(tf)).Str("dir", string(dir)).
				Msg("alert suppressed, already sent")
			continue
		}
		alerts = append(alerts, s.act(ctx, inst, sig, res, now))
	}

	if len(alerts) == 0 && len(errs) == len(s.cfg.Timeframes) {
		return nil, errors.Join(errs...)
	}
	return alerts, nil
}

// signal fetches candles for one timeframe and scores the latest bar.
func (s *Scanner) signal(ctx context.Context, symbol string, tf models.Timeframe) (models.Signal, error) {
	candles, err := s.deps.Candles.Candles(ctx, symbol, tf)
	if err != nil {
		return models.Signal{}, fmt.Errorf("%s candles: %w", tf, err)
	}
	sig, err := technical.Evaluate(symbol, tf, candles, s.cfg.MinScore)
	if err != nil {
		return models.Signal{}, err
	}
	s.mu.Lock()
	s.readings[symbol+"/"+string(tf)] = sig
	s.mu.Unlock()
	return sig, nil
}

// act turns an accepted decision into a virtual trade and an alert.
func (s *Scanner) act(ctx context.Context, inst models.Instrument, sig models.Signal, res engine.Result, now time.Time) models.Alert {
	dir := res.State.Direction
	price := sig.Reading.Close
	if s.deps.Prices != nil {
		if p, ok := s.deps.Prices.Fresh(inst.InstrumentKey); ok {
			price = p
		}
	}

	kind := models.AlertNewSignal
	reasons := sig.Strength.Reasons
	if res.Decision == engine.DecisionReversal {
		kind = models.AlertReversal
		reasons = append([]string{fmt.Sprintf("Reversal from %s confirmed", res.Previous)}, reasons...)
		if s.deps.Monitor != nil {
			s.deps.Monitor.CloseForReversal(ctx, inst.Symbol, res.Previous, price, now)
		}
	}

	target, stop := s.Levels(dir, price, sig.Reading.ATR)
	contract, notes := s.optionContext(ctx, inst, price, dir)
	if s.deps.News != nil && s.cfg.Headlines > 0 {
		notes = append(notes, s.deps.News.Headlines(ctx, inst.Symbol, s.cfg.Headlines)...)
	}

	trade := models.VirtualTrade{
		ID:            uuid.NewString(),
		Symbol:        inst.Symbol,
		InstrumentKey: inst.InstrumentKey,
		Direction:     dir,
		Timeframe:     sig.Reading.Timeframe,
		EntryPrice:    price,
		Target:        target,
		StopLoss:      stop,
		Quantity:      s.cfg.Lots * inst.LotSize,
		Contract:      contract,
		Score:         sig.Strength.Score,
		OpenedAt:      now,
		Status:        models.TradeOpen,
	}
	if s.deps.Monitor != nil {
		if err := s.deps.Monitor.Register(trade); err != nil {
			s.log.Error().Err(err).Str("symbol", inst.Symbol).Msg("register trade")
		}
	}
	if s.deps.Ledger != nil {
		if _, err := s.deps.Ledger.Open(ctx, trade); err != nil {
			s.log.Error().Err(err).Str("trade", trade.ID).Msg("record trade")
		}
	}

	a := models.Alert{
		ID:        uuid.NewString(),
		Kind:      kind,
		Symbol:    inst.Symbol,
		Direction: dir,
		Timeframe: sig.Reading.Timeframe,
		Price:     price,
		Target:    target,
		StopLoss:  stop,
		Score:     sig.Strength.Score,
		Reasons:   reasons,
		Contract:  contract,
		TradeID:   trade.ID,
		Context:   notes,
		Time:      now,
	}
	s.remember(a)

	s.log.Info().Str("symbol", a.Symbol).Str("kind", string(a.Kind)).Str("dir", string(dir)).
		Str("tf", string(a.Timeframe)).Int("score", a.Score).Float64("price", price).Msg("alert")
	if s.deps.Notifier != nil {
		if err := s.deps.Notifier.Notify(ctx, a); err != nil {
			s.log.Warn().Err(err).Str("symbol", a.Symbol).Msg("notify")
		}
	}
	return a
}

// Levels returns the target and stop for an entry at price. ATR multiples are
// used when ATR is known, otherwise the percentage fallbacks.
func (s *Scanner) Levels(dir models.Direction, price, atr float64) (target, stop float64) {
	tgt, sl := atr*s.cfg.TargetATR, atr*s.cfg.StopATR
	if tgt <= 0 || sl <= 0 {
		tgt, sl = price*s.cfg.TargetPct/100, price*s.cfg.StopPct/100
	}
	if dir == models.DirectionPE {
		return round2(price - tgt), round2(price + sl)
	}
	return round2(price + tgt), round2(price - sl)
}

// optionContext names the suggested contract and summarizes the chain.
func (s *Scanner) optionContext(ctx context.Context, inst models.Instrument, price float64, dir models.Direction) (string, []string) {
	fallback := derivatives.SuggestedLabel(inst.Symbol, price, dir)
	if !s.cfg.OptionChain || s.deps.Chains == nil {
		return fallback, nil
	}
	oc, err := s.deps.Chains.OptionChain(ctx, inst.Symbol)
	if err != nil {
		s.log.Debug().Err(err).Str("symbol", inst.Symbol).Msg("option chain unavailable")
		return fallback, nil
	}
	notes := derivatives.ContextNotes(oc, dir)
	if c, ok := derivatives.SelectContract(oc, dir); ok {
		label := derivatives.ContractLabel(inst.Symbol, c)
		if c.LTP > 0 {
			label += " @ " + utils.FormatPrice(c.LTP)
		}
		return label, notes
	}
	return fallback, notes
}

func (s *Scanner) remember(a models.Alert) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recent = append(s.recent, a)
	if len(s.recent) > recentAlerts {
		s.recent = s.recent[len(s.recent)-recentAlerts:]
	}
}

// Recent returns up to n entry alerts, newest first.
func (s *Scanner) Recent(n int) []models.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n <= 0 || n > len(s.recent) {
		n = len(s.recent)
	}
	out := make([]models.Alert, 0, n)
	for i := len(s.recent) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.recent[i])
	}
	return out
}

// Readings returns the latest signal per symbol and timeframe, sorted by key.
func (s *Scanner) Readings() []models.Signal {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.readings))
	for k := range s.readings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]models.Signal, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.readings[k])
	}
	return out
}

// Probe computes signals for symbols without touching the engine.
func (s *Scanner) Probe(ctx context.Context, symbols []string) ([]models.Signal, error) {
	var out []models.Signal
	var errs []error
	for _, sym := range symbols {
		inst, ok := utils.LookupInstrument(sym)
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %s", ErrUnknownSymbol, sym))
			continue
		}
		for _, tf := range s.cfg.Timeframes {
			sig, err := s.signal(ctx, inst.Symbol, tf)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", inst.Symbol, err))
				continue
			}
			out = append(out, sig)
		}
	}
	return out, errors.Join(errs...)
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
