package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/seenimoa/optionpulse/internal/logging"
)

// LTPSource fetches last traded prices for a set of instrument keys.
type LTPSource interface {
	LTP(ctx context.Context, keys []string) (map[string]float64, error)
}

// Poller periodically copies LTPs from a source into the cache.
type Poller struct {
	src      LTPSource
	cache    *PriceCache
	keys     func() []string
	interval time.Duration
	now      func() time.Time
	log      zerolog.Logger
}

// NewPoller creates a poller. keys is called on every tick so newly
// registered instruments are picked up.
func NewPoller(src LTPSource, cache *PriceCache, keys func() []string, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Poller{
		src:      src,
		cache:    cache,
		keys:     keys,
		interval: interval,
		now:      time.Now,
		log:      logging.Component("feed.poll"),
	}
}

// PollOnce fetches one round of prices.
func (p *Poller) PollOnce(ctx context.Context) error {
	keys := p.keys()
	if len(keys) == 0 {
		return nil
	}
	prices, err := p.src.LTP(ctx, keys)
	if err != nil {
		return fmt.Errorf("poll ltp: %w", err)
	}
	now := p.now()
	for k, v := range prices {
		p.cache.Set(k, v, now)
	}
	return nil
}

// Run polls until ctx is cancelled. Poll errors are logged and retried on the next tick.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if err := p.PollOnce(ctx); err != nil && ctx.Err() == nil {
			p.log.Warn().Err(err).Msg("ltp poll failed")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
