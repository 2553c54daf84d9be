// Package monitor tracks open virtual trades against live prices and raises
// progress and exit alerts.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/seenimoa/optionpulse/internal/logging"
	"github.com/seenimoa/optionpulse/internal/notify"
	"github.com/seenimoa/optionpulse/pkg/models"
	"github.com/seenimoa/optionpulse/pkg/utils"
)

// DefaultProgressPct is the share of the entry→target move that triggers the
// progress alert.
const DefaultProgressPct = 60

// ErrDuplicateTrade is returned when a trade ID is registered twice.
var ErrDuplicateTrade = errors.New("trade already registered")

// Prices returns a current price for an instrument key.
type Prices interface {
	Fresh(key string) (float64, bool)
}

// Closer is told when a trade leaves the monitor, e.g. the paper ledger.
type Closer interface {
	CloseTrade(ctx context.Context, id string, price float64, reason models.ExitReason, at time.Time) error
}

// ProgressMarker is optionally implemented by a Closer that persists the
// progress flag.
type ProgressMarker interface {
	MarkProgress(ctx context.Context, id string) error
}

// Config tunes the monitor.
type Config struct {
	ProgressPct      float64 // percent of the entry→target move; default 60
	CheckInterval    time.Duration
	SquareOffHour    int // IST
	SquareOffMin     int
	DisableSquareOff bool // replay and tests
}

// Monitor holds open virtual trades. Mutation happens under one mutex;
// alerts and closer callbacks run after it is released.
type Monitor struct {
	mu     sync.Mutex
	trades map[string]*models.VirtualTrade
	order  []string // registration order, for stable iteration

	cfg      Config
	prices   Prices
	notifier notify.Notifier
	closer   Closer
	log      zerolog.Logger

	lastSquareOff time.Time
}

// New creates a monitor. closer may be nil.
func New(cfg Config, prices Prices, n notify.Notifier, closer Closer) *Monitor {
	if cfg.ProgressPct <= 0 || cfg.ProgressPct >= 100 {
		cfg.ProgressPct = DefaultProgressPct
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = time.Second
	}
	return &Monitor{
		trades:   make(map[string]*models.VirtualTrade),
		cfg:      cfg,
		prices:   prices,
		notifier: n,
		closer:   closer,
		log:      logging.Component("monitor"),
	}
}

// event is an alert plus the close it implies, built under the lock and
// delivered after it.
type event struct {
	alert  models.Alert
	close  bool
	reason models.ExitReason
}

// Register starts tracking an open trade.
func (m *Monitor) Register(t models.VirtualTrade) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = models.TradeOpen
	}
	if t.Status != models.TradeOpen {
		return fmt.Errorf("register %s: trade is %s", t.ID, t.Status)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.trades[t.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateTrade, t.ID)
	}
	tc := t
	m.trades[t.ID] = &tc
	m.order = append(m.order, t.ID)

	m.log.Info().Str("trade", t.ID).Str("symbol", t.Symbol).Str("dir", string(t.Direction)).
		Float64("entry", t.EntryPrice).Float64("target", t.Target).Float64("sl", t.StopLoss).
		Msg("tracking trade")
	return nil
}

// Open returns copies of every open trade in registration order.
func (m *Monitor) Open() []models.VirtualTrade {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.VirtualTrade, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, *m.trades[id])
	}
	return out
}

// OpenFor returns the open trades for symbol.
func (m *Monitor) OpenFor(symbol string) []models.VirtualTrade {
	var out []models.VirtualTrade
	for _, t := range m.Open() {
		if t.Symbol == symbol {
			out = append(out, t)
		}
	}
	return out
}

// Len returns the number of open trades.
func (m *Monitor) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.trades)
}

// Check evaluates every open trade that has a fresh price and returns the
// number of alerts raised.
func (m *Monitor) Check(ctx context.Context, now time.Time) int {
	m.mu.Lock()
	var events []event
	for _, id := range append([]string(nil), m.order...) {
		t := m.trades[id]
		price, ok := m.prices.Fresh(t.InstrumentKey)
		if !ok {
			continue
		}
		if ev, ok := m.evaluate(t, price, now); ok {
			events = append(events, ev)
		}
	}
	m.mu.Unlock()

	m.deliver(ctx, events)
	return len(events)
}

// evaluate applies one price to t. Must be called with mu held.
func (m *Monitor) evaluate(t *models.VirtualTrade, price float64, now time.Time) (event, bool) {
	switch {
	case t.TargetHit(price):
		return m.closeLocked(t, price, now, models.ExitTarget, models.AlertTarget,
			fmt.Sprintf("Target %s reached", utils.FormatPrice(t.Target))), true
	case t.StopHit(price):
		return m.closeLocked(t, price, now, models.ExitStopLoss, models.AlertStopLoss,
			fmt.Sprintf("Stop-loss %s hit", utils.FormatPrice(t.StopLoss))), true
	case !t.ProgressSent && t.Progress(price) >= m.cfg.ProgressPct/100:
		t.ProgressSent = true
		a := alertFor(t, models.AlertProgress, price, now)
		a.Reasons = []string{fmt.Sprintf("%.0f%% of the move to target done, consider trailing SL to entry", t.Progress(price)*100)}
		return event{alert: a}, true
	}
	return event{}, false
}

// closeLocked removes t and builds its exit event. Must be called with mu held.
func (m *Monitor) closeLocked(t *models.VirtualTrade, price float64, now time.Time, reason models.ExitReason, kind models.AlertKind, why string) event {
	t.Status = models.TradeClosed
	t.ExitPrice = price
	t.ExitReason = reason
	t.ClosedAt = now

	delete(m.trades, t.ID)
	for i, id := range m.order {
		if id == t.ID {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}

	a := alertFor(t, kind, price, now)
	a.Reasons = []string{why, fmt.Sprintf("Entry %s → exit %s", utils.FormatPrice(t.EntryPrice), utils.FormatPrice(price))}
	return event{alert: a, close: true, reason: reason}
}

// CloseForReversal exits the open trades on symbol that point in the
// reversed-from direction and returns them. Trades already aligned with the
// new direction stay open.
func (m *Monitor) CloseForReversal(ctx context.Context, symbol string, from models.Direction, price float64, now time.Time) []models.VirtualTrade {
	return m.closeWhere(ctx, func(t *models.VirtualTrade) bool { return t.Symbol == symbol && t.Direction == from },
		func(*models.VirtualTrade) float64 { return price },
		now, models.ExitReversal, "Signal reversed")
}

// SquareOffAll closes every open trade at the price returned by lookup.
// Trades without a price are closed at entry.
func (m *Monitor) SquareOffAll(ctx context.Context, lookup func(key string) (float64, bool), now time.Time) []models.VirtualTrade {
	return m.closeWhere(ctx, func(*models.VirtualTrade) bool { return true },
		func(t *models.VirtualTrade) float64 {
			if p, ok := lookup(t.InstrumentKey); ok {
				return p
			}
			return t.EntryPrice
		},
		now, models.ExitSquareOff, fmt.Sprintf("Square-off at %02d:%02d", m.cfg.SquareOffHour, m.cfg.SquareOffMin))
}

func (m *Monitor) closeWhere(ctx context.Context, match func(*models.VirtualTrade) bool, priceOf func(*models.VirtualTrade) float64, now time.Time, reason models.ExitReason, why string) []models.VirtualTrade {
	m.mu.Lock()
	var events []event
	var closed []models.VirtualTrade
	for _, id := range append([]string(nil), m.order...) {
		t := m.trades[id]
		if !match(t) {
			continue
		}
		events = append(events, m.closeLocked(t, priceOf(t), now, reason, models.AlertExit, why))
		closed = append(closed, *t)
	}
	m.mu.Unlock()

	m.deliver(ctx, events)
	return closed
}

// deliver runs closer callbacks and notifications. Must be called without mu.
func (m *Monitor) deliver(ctx context.Context, events []event) {
	for _, ev := range events {
		a := ev.alert
		if ev.close && m.closer != nil {
			if err := m.closer.CloseTrade(ctx, a.TradeID, a.Price, ev.reason, a.Time); err != nil {
				m.log.Error().Err(err).Str("trade", a.TradeID).Msg("record close")
			}
		}
		if a.Kind == models.AlertProgress {
			if pm, ok := m.closer.(ProgressMarker); ok {
				if err := pm.MarkProgress(ctx, a.TradeID); err != nil {
					m.log.Warn().Err(err).Str("trade", a.TradeID).Msg("record progress")
				}
			}
		}
		m.log.Info().Str("trade", a.TradeID).Str("kind", string(a.Kind)).Str("symbol", a.Symbol).
			Float64("price", a.Price).Float64("pnl_pts", a.PnLPoints).Msg("trade event")
		if m.notifier != nil {
			if err := m.notifier.Notify(ctx, a); err != nil {
				m.log.Warn().Err(err).Str("trade", a.TradeID).Msg("notify")
			}
		}
	}
}

func alertFor(t *models.VirtualTrade, kind models.AlertKind, price float64, now time.Time) models.Alert {
	return models.Alert{
		ID:        uuid.NewString(),
		Kind:      kind,
		Symbol:    t.Symbol,
		Direction: t.Direction,
		Timeframe: t.Timeframe,
		Price:     price,
		Target:    t.Target,
		StopLoss:  t.StopLoss,
		Contract:  t.Contract,
		TradeID:   t.ID,
		PnLPoints: t.PnLPoints(price),
		Time:      now,
	}
}

// Run checks open trades every CheckInterval until ctx is cancelled, and
// squares everything off once per trading day at the configured time.
func (m *Monitor) Run(ctx context.Context, now func() time.Time) error {
	ticker := time.NewTicker(m.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			t := now()
			if m.squareOffDue(t) {
				closed := m.SquareOffAll(ctx, m.prices.Fresh, t)
				m.log.Info().Int("closed", len(closed)).Msg("square-off")
				continue
			}
			m.Check(ctx, t)
		}
	}
}

// squareOffDue reports whether the end-of-day square-off should run at t.
func (m *Monitor) squareOffDue(t time.Time) bool {
	if m.cfg.DisableSquareOff || !utils.IsTradingDay(t) {
		return false
	}
	cutoff := utils.ClockIST(t, m.cfg.SquareOffHour, m.cfg.SquareOffMin)
	if t.Before(cutoff) {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.lastSquareOff.IsZero() && utils.SameDayIST(m.lastSquareOff, t) {
		return false
	}
	m.lastSquareOff = t
	return true
}

// Snapshot returns open trades sorted by open time, newest first.
func (m *Monitor) Snapshot() []models.VirtualTrade {
	out := m.Open()
	sort.SliceStable(out, func(i, j int) bool { return out[i].OpenedAt.After(out[j].OpenedAt) })
	return out
}
