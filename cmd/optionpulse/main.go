// OptionPulse: intraday reversal alerts for Indian index and F&O options.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/seenimoa/optionpulse/internal/app"
	"github.com/seenimoa/optionpulse/internal/config"
	"github.com/seenimoa/optionpulse/internal/logging"
	"github.com/seenimoa/optionpulse/pkg/utils"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config
var (
	cfg       *config.Config
	logCloser io.Closer
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "optionpulse",
	Short: "OptionPulse — reversal alerts for Indian options",
	Long: `OptionPulse scans NIFTY, BANKNIFTY, SENSEX and F&O stocks on 1m and 5m
candles, debounces direction changes through a reversal state machine, tracks
virtual positions against live prices and sends alerts to Telegram.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
			cfg.Logging.Level = lvl
		}
		logCloser = logging.Setup(cfg.Logging)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			logCloser.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(paperCmd)
	rootCmd.AddCommand(statusCmd)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("OptionPulse %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Run Command ---

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the scanner, price feed, position monitor and API",
	RunE: func(cmd *cobra.Command, args []string) error {
		if dry, _ := cmd.Flags().GetBool("dry-run"); dry {
			cfg.Telegram.BotToken = ""
		}
		a, err := app.New(cfg, version)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signalContext()
		defer stop()
		return a.Run(ctx)
	},
}

func init() {
	runCmd.Flags().Bool("dry-run", false, "log alerts instead of sending them to Telegram")
}

// --- Scan Command ---

var scanCmd = &cobra.Command{
	Use:   "scan [symbols...]",
	Short: "Print the current technical reading and score per symbol",
	Long: `Fetch candles once and print direction, score and indicators for each
symbol and timeframe. The reversal engine is not touched and nothing is sent.

Examples:
  optionpulse scan
  optionpulse scan NIFTY BANKNIFTY`,
	RunE: func(cmd *cobra.Command, args []string) error {
		symbols := cfg.Scanner.Symbols
		if len(args) > 0 {
			symbols = args
		}

		// one-shot: no ledger and no Telegram
		cfg.Paper.Enabled = false
		cfg.Telegram.BotToken = ""
		a, err := app.New(cfg, version)
		if err != nil {
			return err
		}

		ctx, stop := signalContext()
		defer stop()
		signals, err := a.Scanner.Probe(ctx, symbols)

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SYMBOL\tTF\tCLOSE\tDIR\tSCORE\tRSI\tADX\tVWAP\tATR\tVOLx")
		for _, s := range signals {
			r := s.Reading
			dir := string(r.Direction)
			if dir == "" {
				dir = "-"
			}
			mark := ""
			if s.Eligible {
				mark = " ✓"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d%s\t%.1f\t%.1f\t%s\t%.2f\t%.2f\n",
				r.Symbol, r.Timeframe, utils.FormatPrice(r.Close), dir, s.Strength.Score, mark,
				r.RSI, r.ADX, utils.FormatPrice(r.VWAP), r.ATR, r.VolumeRatio)
		}
		w.Flush()

		if err != nil {
			fmt.Fprintf(os.Stderr, "\n⚠️  %s\n", strings.ReplaceAll(err.Error(), "\n", "\n⚠️  "))
		}
		return nil
	},
}

// --- Status Command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show system status and configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("═══════════════════════════════════════")
		fmt.Println("  OptionPulse — System Status")
		fmt.Println("═══════════════════════════════════════")
		fmt.Printf("  Version:       %s (%s)\n", version, commit)
		fmt.Printf("  Market Status: %s\n", utils.MarketStatus())
		fmt.Printf("  Time (IST):    %s\n", utils.FormatDateTimeIST(utils.NowIST()))
		fmt.Println()

		// Config summary
		fmt.Println("  Configuration:")
		fmt.Printf("    Symbols:       %s\n", strings.Join(cfg.Scanner.Symbols, ", "))
		fmt.Printf("    Scan:          every %s, min score %d, source %s\n",
			cfg.Scanner.Interval(), cfg.Scanner.MinScore, cfg.Scanner.CandleSource)
		fmt.Printf("    Reversal:      block %s, confirm %s\n",
			cfg.Reversal.BlockWindow(), cfg.Reversal.ConfirmWindow())
		fmt.Printf("    Monitor:       progress %.0f%%, square-off %s IST\n",
			cfg.Monitor.ProgressPct, cfg.Monitor.SquareOff)
		fmt.Printf("    Price Feed:    %s\n", cfg.Feed.Mode)
		fmt.Printf("    Paper Trading: %v (%s)\n", cfg.Paper.Enabled, cfg.Paper.DBPath)
		fmt.Printf("    API Server:    %v (%s:%d)\n", cfg.API.Enabled, cfg.API.Host, cfg.API.Port)
		if err := cfg.Validate(); err != nil {
			fmt.Printf("    ❌ %v\n", err)
		}
		fmt.Println()

		// API keys status
		fmt.Println("  API Keys:")
		keys := config.CheckAPIKeys(cfg)
		for _, k := range keys {
			status := "❌ not set"
			if k.IsSet {
				status = fmt.Sprintf("✅ set (%s: %s)", k.Source, k.Masked)
			}
			fmt.Printf("    %-25s %s\n", k.Name+":", status)
		}
		fmt.Printf("    %-25s %d signal, %d exit\n", "Telegram Chats:",
			len(cfg.Telegram.SignalChatIDs), len(cfg.Telegram.ExitChatIDs))

		fmt.Println("═══════════════════════════════════════")
		return nil
	},
}
