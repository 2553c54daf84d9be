// Package feed keeps the latest traded price per instrument and the feeds
// that fill it: a push websocket stream or a periodic LTP poll.
package feed

import (
	"sync"
	"time"
)

// Quote is the last traded price of an instrument.
type Quote struct {
	LTP       float64   `json:"ltp"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PriceCache is a thread-safe instrument_key → Quote map.
type PriceCache struct {
	mu         sync.RWMutex
	prices     map[string]Quote
	staleAfter time.Duration
	now        func() time.Time
}

// NewPriceCache creates a cache whose quotes go stale after staleAfter.
// A non-positive staleAfter disables staleness checks.
func NewPriceCache(staleAfter time.Duration) *PriceCache {
	return &PriceCache{
		prices:     make(map[string]Quote),
		staleAfter: staleAfter,
		now:        time.Now,
	}
}

// Set records a price. Non-positive prices and updates older than the stored
// quote are ignored.
func (c *PriceCache) Set(key string, ltp float64, at time.Time) {
	if ltp <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if q, ok := c.prices[key]; ok && at.Before(q.UpdatedAt) {
		return
	}
	c.prices[key] = Quote{LTP: ltp, UpdatedAt: at}
}

// Get returns the stored quote regardless of age.
func (c *PriceCache) Get(key string) (Quote, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	q, ok := c.prices[key]
	return q, ok
}

// Fresh returns the price if it is present and not stale.
func (c *PriceCache) Fresh(key string) (float64, bool) {
	q, ok := c.Get(key)
	if !ok || c.IsStale(q) {
		return 0, false
	}
	return q.LTP, true
}

// IsStale reports whether q is older than the staleness limit.
func (c *PriceCache) IsStale(q Quote) bool {
	return c.staleAfter > 0 && c.now().Sub(q.UpdatedAt) > c.staleAfter
}

// Snapshot returns a copy of every stored quote.
func (c *PriceCache) Snapshot() map[string]Quote {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]Quote, len(c.prices))
	for k, v := range c.prices {
		out[k] = v
	}
	return out
}

// Len returns the number of instruments with a quote.
func (c *PriceCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.prices)
}
