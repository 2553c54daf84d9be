package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/seenimoa/optionpulse/pkg/utils"
)

type snapshotFile struct {
	SavedAt time.Time            `json:"saved_at"`
	States  []State              `json:"states"`
	Gate    map[string]GateEntry `json:"gate,omitempty"`
}

// Save writes the engine (and optional gate) state to path as JSON.
// The file is replaced atomically.
func Save(path string, e *Engine, g *AlertGate, now time.Time) error {
	snap := snapshotFile{SavedAt: now, States: e.Snapshot()}
	if g != nil {
		snap.Gate = g.entries()
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode engine snapshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write engine snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace engine snapshot: %w", err)
	}
	return nil
}

// Load restores state saved by Save. Entries from a different IST trading day
// than now are dropped. A missing file is not an error. It returns the number
// of states restored.
func Load(path string, e *Engine, g *AlertGate, now time.Time) (int, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read engine snapshot: %w", err)
	}
	var snap snapshotFile
	if err := json.Unmarshal(data, &snap); err != nil {
		return 0, fmt.Errorf("decode engine snapshot %s: %w", path, err)
	}

	e.mu.Lock()
	n := 0
	for _, st := range snap.States {
		if !st.Direction.IsSet() || !utils.SameDayIST(st.EntryTime, now) {
			continue
		}
		st := st
		e.states[stateKey{st.Symbol, st.Timeframe}] = &st
		n++
	}
	e.mu.Unlock()

	if g != nil {
		fresh := make(map[string]GateEntry, len(snap.Gate))
		for sym, ge := range snap.Gate {
			if utils.SameDayIST(ge.At, now) {
				fresh[sym] = ge
			}
		}
		g.restore(fresh)
	}
	return n, nil
}
