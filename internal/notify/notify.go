// Package notify delivers alerts to Telegram, the log and any other sink that
// implements Notifier.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/seenimoa/optionpulse/internal/logging"
	"github.com/seenimoa/optionpulse/pkg/models"
)

// Notifier delivers one alert.
type Notifier interface {
	Notify(ctx context.Context, a models.Alert) error
}

// Func adapts a function to the Notifier interface.
type Func func(ctx context.Context, a models.Alert) error

// Notify calls f.
func (f Func) Notify(ctx context.Context, a models.Alert) error { return f(ctx, a) }

// Multi fans an alert out to every sink. A failing sink does not stop the
// others; all errors are joined.
type Multi []Notifier

// Notify delivers a to every sink.
func (m Multi) Notify(ctx context.Context, a models.Alert) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, a); err != nil {
			errs = append(errs, fmt.Errorf("%T: %w", n, err))
		}
	}
	return errors.Join(errs...)
}

// LogNotifier writes alerts as structured log lines.
type LogNotifier struct {
	log zerolog.Logger
}

// NewLogNotifier creates a log sink.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{log: logging.Component("alerts")}
}

// Notify logs a.
func (l *LogNotifier) Notify(_ context.Context, a models.Alert) error {
	ev := l.log.Info().
		Str("kind", string(a.Kind)).
		Str("symbol", a.Symbol).
		Str("direction", string(a.Direction)).
		Float64("price", a.Price)
	if a.Timeframe != "" {
		ev = ev.Str("tf", string(a.Timeframe))
	}
	if a.Score > 0 {
		ev = ev.Int("score", a.Score)
	}
	if a.Target > 0 {
		ev = ev.Float64("target", a.Target).Float64("sl", a.StopLoss)
	}
	if a.TradeID != "" {
		ev = ev.Str("trade", a.TradeID)
	}
	if a.Contract != "" {
		ev = ev.Str("contract", a.Contract)
	}
	ev.Msg("alert")
	return nil
}
