package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/seenimoa/optionpulse/pkg/utils"
)

const commandTimeout = 10 * time.Second

// HandleCommand answers a Telegram bot command with a plain-text reply.
func (a *App) HandleCommand(command, _ string) string {
	switch strings.ToLower(command) {
	case "start", "help":
		return "Commands:\n/status  market and feed status\n/positions  open virtual trades\n/pnl  paper-trading summary"
	case "status":
		return a.statusText()
	case "positions":
		return a.positionsText()
	case "pnl":
		return a.pnlText()
	default:
		return "Unknown command. Try /help"
	}
}

func (a *App) statusText() string {
	var b strings.Builder
	now := a.now()
	fmt.Fprintf(&b, "OptionPulse %s\n", a.version)
	fmt.Fprintf(&b, "Market: %s\n", utils.MarketStatusAt(now))
	fmt.Fprintf(&b, "Time: %s IST\n", utils.FormatDateTimeIST(now))
	fmt.Fprintf(&b, "Symbols: %s\n", strings.Join(a.Config.Scanner.Symbols, ", "))

	stale := 0
	quotes := a.Prices.Snapshot()
	for _, q := range quotes {
		if a.Prices.IsStale(q) {
			stale++
		}
	}
	fmt.Fprintf(&b, "Prices: %d (%d stale)\n", len(quotes), stale)
	fmt.Fprintf(&b, "Open trades: %d", a.Monitor.Len())
	return b.String()
}

func (a *App) positionsText() string {
	trades := a.Monitor.Snapshot()
	if len(trades) == 0 {
		return "No open trades."
	}
	var b strings.Builder
	for i, t := range trades {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "%s %s @ %s\nTarget %s | SL %s",
			t.Symbol, t.Direction, utils.FormatPrice(t.EntryPrice),
			utils.FormatPrice(t.Target), utils.FormatPrice(t.StopLoss))
		if t.Contract != "" {
			fmt.Fprintf(&b, "\n%s", t.Contract)
		}
		if ltp, ok := a.Prices.Fresh(t.InstrumentKey); ok {
			fmt.Fprintf(&b, "\nLTP %s (%s pts, %.0f%% to target)",
				utils.FormatPrice(ltp), utils.FormatPoints(t.PnLPoints(ltp)), t.Progress(ltp)*100)
		}
	}
	return b.String()
}

func (a *App) pnlText() string {
	if a.Ledger == nil {
		return "Paper trading is disabled."
	}
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	sum, err := a.Ledger.Summary(ctx)
	if err != nil {
		a.log.Warn().Err(err).Msg("pnl command")
		return "P&L unavailable right now."
	}
	return fmt.Sprintf("Trades: %d closed, %d open\nWins %d / Losses %d (%.1f%%)\nGross %s\nCharges %s\nNet %s",
		sum.Trades, sum.Open, sum.Wins, sum.Losses, sum.WinRatePct,
		utils.FormatINR(sum.GrossPnL), utils.FormatINR(sum.Charges), utils.FormatINR(sum.NetPnL))
}
