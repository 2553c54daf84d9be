// Package engine debounces directional signals into alerts.
//
// Each (symbol, timeframe) pair carries at most one active direction. A new
// direction is accepted immediately; an opposing one must wait out the block
// window after entry and then persist through the confirmation window before
// the engine flips and reports a reversal.
package engine

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/seenimoa/optionpulse/internal/logging"
	"github.com/seenimoa/optionpulse/pkg/models"
)

// Decision is the outcome of evaluating one signal.
type Decision string

const (
	DecisionNone           Decision = "NONE"
	DecisionNew            Decision = "NEW"
	DecisionContinuation   Decision = "CONTINUATION"
	DecisionWatchCancelled Decision = "WATCH_CANCELLED"
	DecisionBlocked        Decision = "BLOCKED"
	DecisionWatchStarted   Decision = "WATCH_STARTED"
	DecisionWatchPending   Decision = "WATCH_PENDING"
	DecisionReversal       Decision = "REVERSAL"
	DecisionHold           Decision = "HOLD"
)

// Alerts reports whether the decision should produce an alert.
func (d Decision) Alerts() bool { return d == DecisionNew || d == DecisionReversal }

// Default windows.
const (
	DefaultBlockWindow   = 5 * time.Minute
	DefaultConfirmWindow = 3 * time.Minute
)

// State is the tracked direction for one symbol on one timeframe.
type State struct {
	Symbol        string           `json:"symbol"`
	Timeframe     models.Timeframe `json:"timeframe"`
	Direction     models.Direction `json:"direction"`
	EntryTime     time.Time        `json:"entry_time"`
	ReversalWatch bool             `json:"reversal_watch"`
	ReversalStart time.Time        `json:"reversal_start,omitempty"`
}

// Result carries a decision with the state it left behind.
type Result struct {
	Decision Decision
	Previous models.Direction // direction before a reversal
	State    State
}

// Config sets the engine windows.
type Config struct {
	BlockWindow   time.Duration
	ConfirmWindow time.Duration
}

type stateKey struct {
	symbol string
	tf     models.Timeframe
}

// Engine is the reversal state machine. It is safe for concurrent use.
type Engine struct {
	mu     sync.Mutex
	cfg    Config
	states map[stateKey]*State
	log    zerolog.Logger
}

// New creates an engine. Zero windows fall back to the defaults.
func New(cfg Config) *Engine {
	if cfg.BlockWindow <= 0 {
		cfg.BlockWindow = DefaultBlockWindow
	}
	if cfg.ConfirmWindow <= 0 {
		cfg.ConfirmWindow = DefaultConfirmWindow
	}
	return &Engine{
		cfg:    cfg,
		states: make(map[stateKey]*State),
		log:    logging.Component("engine"),
	}
}

// Config returns the effective windows.
func (e *Engine) Config() Config { return e.cfg }

// Evaluate feeds one observation into the state machine. dir is DirectionNone
// when no eligible signal was seen.
func (e *Engine) Evaluate(symbol string, tf models.Timeframe, dir models.Direction, now time.Time) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := stateKey{symbol, tf}
	st, ok := e.states[key]

	if !ok {
		if !dir.IsSet() {
			return Result{Decision: DecisionNone}
		}
		st = &State{Symbol: symbol, Timeframe: tf, Direction: dir, EntryTime: now}
		e.states[key] = st
		e.log.Debug().Str("symbol", symbol).Str("tf", string(tf)).Str("dir", string(dir)).Msg("new signal")
		return Result{Decision: DecisionNew, State: *st}
	}

	res := Result{Decision: e.step(st, dir, now)}
	if res.Decision == DecisionReversal {
		res.Previous = st.Direction.Opposite()
	}
	res.State = *st
	if res.Decision != DecisionContinuation && res.Decision != DecisionHold {
		e.log.Debug().Str("symbol", symbol).Str("tf", string(tf)).
			Str("dir", string(st.Direction)).Str("decision", string(res.Decision)).Msg("transition")
	}
	return res
}

// step applies one transition to an existing state. Must be called with mu held.
func (e *Engine) step(st *State, dir models.Direction, now time.Time) Decision {
	switch {
	case !dir.IsSet():
		if st.ReversalWatch {
			st.clearWatch()
			return DecisionWatchCancelled
		}
		return DecisionHold

	case dir == st.Direction:
		if st.ReversalWatch {
			st.clearWatch()
			return DecisionWatchCancelled
		}
		return DecisionContinuation

	case now.Sub(st.EntryTime) < e.cfg.BlockWindow:
		return DecisionBlocked

	case !st.ReversalWatch:
		st.ReversalWatch = true
		st.ReversalStart = now
		return DecisionWatchStarted

	case now.Sub(st.ReversalStart) < e.cfg.ConfirmWindow:
		return DecisionWatchPending

	default:
		st.Direction = dir
		st.EntryTime = now
		st.clearWatch()
		return DecisionReversal
	}
}

func (s *State) clearWatch() {
	s.ReversalWatch = false
	s.ReversalStart = time.Time{}
}

// State returns the tracked state for a symbol and timeframe.
func (e *Engine) State(symbol string, tf models.Timeframe) (State, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.states[stateKey{symbol, tf}]
	if !ok {
		return State{}, false
	}
	return *st, true
}

// Snapshot returns every tracked state ordered by symbol then timeframe.
func (e *Engine) Snapshot() []State {
	e.mu.Lock()
	out := make([]State, 0, len(e.states))
	for _, st := range e.states {
		out = append(out, *st)
	}
	e.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Symbol != out[j].Symbol {
			return out[i].Symbol < out[j].Symbol
		}
		return out[i].Timeframe < out[j].Timeframe
	})
	return out
}

// Reset forgets every timeframe tracked for symbol.
func (e *Engine) Reset(symbol string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for k := range e.states {
		if k.symbol == symbol {
			delete(e.states, k)
		}
	}
}

// ResetAll forgets all tracked state.
func (e *Engine) ResetAll() {
	e.mu.Lock()
	e.states = make(map[stateKey]*State)
	e.mu.Unlock()
}
