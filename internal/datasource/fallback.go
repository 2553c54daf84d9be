package datasource

import (
	"context"
	"errors"
	"fmt"

	"github.com/seenimoa/optionpulse/internal/logging"
	"github.com/seenimoa/optionpulse/pkg/models"
)

// FallbackCandles tries each candle source in order and returns the first
// non-empty answer.
type FallbackCandles struct {
	sources []CandleSource
}

// NewFallbackCandles creates a candle source that walks sources in order.
func NewFallbackCandles(sources ...CandleSource) *FallbackCandles {
	return &FallbackCandles{sources: sources}
}

// Name returns the data source name.
func (f *FallbackCandles) Name() string { return "fallback" }

// Candles returns candles from the first source that has them.
func (f *FallbackCandles) Candles(ctx context.Context, symbol string, tf models.Timeframe) ([]models.OHLCV, error) {
	var errs []error
	for _, src := range f.sources {
		candles, err := src.Candles(ctx, symbol, tf)
		if err == nil && len(candles) > 0 {
			return candles, nil
		}
		if err == nil {
			err = ErrNoData
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log := logging.Component("datasource")
		log.Debug().Err(err).
			Str("source", src.Name()).Str("symbol", symbol).Str("tf", string(tf)).
			Msg("candle source failed, trying next")
		errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
	}
	if len(errs) == 0 {
		return nil, ErrNoData
	}
	return nil, errors.Join(errs...)
}

// FallbackChains tries each option chain source in order.
type FallbackChains struct {
	sources []OptionChainSource
}

// NewFallbackChains creates an option chain source that walks sources in order.
func NewFallbackChains(sources ...OptionChainSource) *FallbackChains {
	return &FallbackChains{sources: sources}
}

// Name returns the data source name.
func (f *FallbackChains) Name() string { return "fallback" }

// OptionChain returns the chain from the first source that has contracts.
func (f *FallbackChains) OptionChain(ctx context.Context, symbol string) (*models.OptionChain, error) {
	var errs []error
	for _, src := range f.sources {
		oc, err := src.OptionChain(ctx, symbol)
		if err == nil && oc != nil && len(oc.Contracts) > 0 {
			return oc, nil
		}
		if err == nil {
			err = ErrNoData
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
	}
	if len(errs) == 0 {
		return nil, ErrNoData
	}
	return nil, errors.Join(errs...)
}
