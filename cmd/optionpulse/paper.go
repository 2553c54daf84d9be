package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/seenimoa/optionpulse/internal/paper"
	"github.com/seenimoa/optionpulse/pkg/utils"
)

// --- Paper Commands ---

var paperCmd = &cobra.Command{
	Use:   "paper",
	Short: "Inspect the paper-trading ledger",
}

var paperSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print win rate and P&L of all paper trades",
	RunE: func(cmd *cobra.Command, args []string) error {
		ledger, err := paper.NewLedger(cfg.Paper.DBPath)
		if err != nil {
			return err
		}
		defer ledger.Close()

		ctx, stop := signalContext()
		defer stop()
		s, err := ledger.Summary(ctx)
		if err != nil {
			return err
		}

		fmt.Println("═══════════════════════════════════════")
		fmt.Println("  Paper Trading Summary")
		fmt.Println("═══════════════════════════════════════")
		fmt.Printf("  Closed trades: %d\n", s.Trades)
		fmt.Printf("  Open trades:   %d\n", s.Open)
		fmt.Printf("  Wins/Losses:   %d / %d\n", s.Wins, s.Losses)
		fmt.Printf("  Win rate:      %.2f%%\n", s.WinRatePct)
		fmt.Printf("  Gross P&L:     %s\n", utils.FormatINR(s.GrossPnL))
		fmt.Printf("  Charges:       %s\n", utils.FormatINR(s.Charges))
		fmt.Printf("  Net P&L:       %s\n", utils.FormatINR(s.NetPnL))
		fmt.Println("═══════════════════════════════════════")
		return nil
	},
}

var paperExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export every paper trade as CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")

		ledger, err := paper.NewLedger(cfg.Paper.DBPath)
		if err != nil {
			return err
		}
		defer ledger.Close()

		var w io.Writer = os.Stdout
		if out != "" && out != "-" {
			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("create %s: %w", out, err)
			}
			defer f.Close()
			w = f
		}

		ctx, stop := signalContext()
		defer stop()
		if err := ledger.ExportCSV(ctx, w); err != nil {
			return err
		}
		if out != "" && out != "-" {
			fmt.Fprintf(os.Stderr, "✅ exported to %s\n", out)
		}
		return nil
	},
}

func init() {
	paperExportCmd.Flags().String("out", "", "output file (default: stdout)")

	paperCmd.AddCommand(paperSummaryCmd)
	paperCmd.AddCommand(paperExportCmd)
}
