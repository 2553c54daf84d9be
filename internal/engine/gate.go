package engine

import (
	"sync"
	"time"

	"github.com/seenimoa/optionpulse/pkg/models"
)

// AlertGate remembers the last alert per symbol across timeframes and
// suppresses a repeat of the same direction inside the window.
type AlertGate struct {
	mu     sync.Mutex
	window time.Duration
	last   map[string]GateEntry
}

// GateEntry is the last alert let through for a symbol.
type GateEntry struct {
	Direction models.Direction `json:"direction"`
	At        time.Time        `json:"at"`
}

// NewAlertGate creates a gate with the given suppression window.
func NewAlertGate(window time.Duration) *AlertGate {
	if window <= 0 {
		window = DefaultBlockWindow
	}
	return &AlertGate{window: window, last: make(map[string]GateEntry)}
}

// Allow reports whether an alert for (symbol, dir) may go out at now, and
// records it if so.
func (g *AlertGate) Allow(symbol string, dir models.Direction, now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if prev, ok := g.last[symbol]; ok && prev.Direction == dir && now.Sub(prev.At) < g.window {
		return false
	}
	g.last[symbol] = GateEntry{Direction: dir, At: now}
	return true
}

// Last returns the last alert recorded for symbol.
func (g *AlertGate) Last(symbol string) (GateEntry, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.last[symbol]
	return e, ok
}

// Reset clears the gate.
func (g *AlertGate) Reset() {
	g.mu.Lock()
	g.last = make(map[string]GateEntry)
	g.mu.Unlock()
}

func (g *AlertGate) entries() map[string]GateEntry {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[string]GateEntry, len(g.last))
	for k, v := range g.last {
		out[k] = v
	}
	return out
}

func (g *AlertGate) restore(m map[string]GateEntry) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for k, v := range m {
		g.last[k] = v
	}
}
