package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/seenimoa/optionpulse/internal/app"
	"github.com/seenimoa/optionpulse/internal/datasource"
	"github.com/seenimoa/optionpulse/internal/replay"
	"github.com/seenimoa/optionpulse/pkg/utils"
)

// --- Replay Command ---

var replayCmd = &cobra.Command{
	Use:   "replay SYMBOL",
	Short: "Replay recent one-minute history through the alert pipeline",
	Long: `Download recent one-minute candles from Yahoo Finance and feed them bar by
bar through the same scoring, reversal engine and position monitor used live,
on a simulated clock. Nothing is sent and the paper ledger is not touched.

Examples:
  optionpulse replay NIFTY
  optionpulse replay BANKNIFTY --days 3 --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		symbol := utils.NormalizeTicker(args[0])
		days, _ := cmd.Flags().GetInt("days")
		asJSON, _ := cmd.Flags().GetBool("json")

		ctx, stop := signalContext()
		defer stop()

		bars, err := replay.Fetch(ctx, datasource.NewYFinance(), symbol, days, utils.NowIST())
		if err != nil {
			return err
		}

		scfg := app.ScannerConfig(cfg)
		scfg.OptionChain = false
		scfg.Headlines = 0
		res, err := replay.Run(ctx, replay.Config{
			Scanner:     scfg,
			ProgressPct: cfg.Monitor.ProgressPct,
		}, symbol, bars, nil)
		if err != nil {
			return err
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}
		printReplay(res)
		return nil
	},
}

func init() {
	replayCmd.Flags().Int("days", 1, "trading days of history to replay (Yahoo keeps about 7)")
	replayCmd.Flags().Bool("json", false, "print the full result as JSON")
}

func printReplay(res *replay.Result) {
	fmt.Printf("🔁 Replay %s: %s → %s (%d bars)\n\n", res.Symbol,
		utils.FormatDateTimeIST(res.From), utils.FormatDateTimeIST(res.To), res.Bars)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tKIND\tTF\tDIR\tPRICE\tSCORE\tP&L PTS")
	for _, a := range res.Alerts {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%.2f\n",
			utils.FormatDateTimeIST(a.Time), a.Kind, a.Timeframe, a.Direction,
			utils.FormatPrice(a.Price), a.Score, a.PnLPoints)
	}
	w.Flush()

	s := res.Summary
	fmt.Println()
	fmt.Printf("  Trades:        %d (%d wins, %d losses, %.2f%% win rate)\n", s.Trades, s.Wins, s.Losses, s.WinRatePct)
	fmt.Printf("  Gross P&L:     %s\n", utils.FormatINR(s.GrossPnL))
	fmt.Printf("  Charges:       %s\n", utils.FormatINR(s.Charges))
	fmt.Printf("  Net P&L:       %s\n", utils.FormatINR(s.NetPnL))

	st := res.Stats
	fmt.Printf("  Avg win/loss:  %s / %s\n", utils.FormatINR(st.AvgWin), utils.FormatINR(st.AvgLoss))
	fmt.Printf("  Profit factor: %.2f\n", st.ProfitFactor)
	fmt.Printf("  Max drawdown:  %s\n", utils.FormatINR(st.MaxDrawdown))
	fmt.Printf("  Avg hold:      %.1f min\n", st.AvgHoldMinutes)
	for reason, n := range st.ByExitReason {
		fmt.Printf("  Exit %-10s %d\n", reason+":", n)
	}
}
