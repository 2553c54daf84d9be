package replay

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/seenimoa/optionpulse/internal/paper"
	"github.com/seenimoa/optionpulse/pkg/models"
)

// Stats are the trade-level metrics of a replay, on net P&L in rupees.
type Stats struct {
	AvgWin         float64                   `json:"avg_win"`
	AvgLoss        float64                   `json:"avg_loss"`      // positive number
	ProfitFactor   float64                   `json:"profit_factor"` // 0 without losing trades
	Expectancy     float64                   `json:"expectancy"`
	StdDev         float64                   `json:"std_dev"`
	MaxDrawdown    float64                   `json:"max_drawdown"`
	LongestLosing  int                       `json:"longest_losing_streak"`
	ByExitReason   map[models.ExitReason]int `json:"by_exit_reason"`
	AvgHoldMinutes float64                   `json:"avg_hold_minutes"`
}

// ComputeStats derives Stats from closed ledger records. Open records are ignored.
func ComputeStats(recs []paper.Record) Stats {
	s := Stats{ByExitReason: make(map[models.ExitReason]int)}

	var (
		nets                []float64
		totalWin, totalLoss float64
		wins, losses        int
		streak              int
		equity, peak        float64
		holdMinutes         float64
	)
	for _, r := range recs {
		if r.Status != models.TradeClosed {
			continue
		}
		nets = append(nets, r.NetPnL)
		s.ByExitReason[r.ExitReason]++
		holdMinutes += r.ClosedAt.Sub(r.OpenedAt).Minutes()

		if r.NetPnL > 0 {
			wins++
			totalWin += r.NetPnL
			streak = 0
		} else {
			losses++
			totalLoss += math.Abs(r.NetPnL)
			streak++
			s.LongestLosing = max(s.LongestLosing, streak)
		}

		equity += r.NetPnL
		peak = max(peak, equity)
		s.MaxDrawdown = max(s.MaxDrawdown, peak-equity)
	}
	if len(nets) == 0 {
		return s
	}

	if wins > 0 {
		s.AvgWin = totalWin / float64(wins)
	}
	if losses > 0 {
		s.AvgLoss = totalLoss / float64(losses)
	}
	if totalLoss > 0 {
		s.ProfitFactor = totalWin / totalLoss
	}
	s.Expectancy = stat.Mean(nets, nil)
	if len(nets) > 1 {
		s.StdDev = stat.StdDev(nets, nil)
	}
	s.AvgHoldMinutes = holdMinutes / float64(len(nets))
	return s
}
