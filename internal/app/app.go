// Package app wires configuration into a running OptionPulse process: data
// sources, the price feed, the reversal engine, the position monitor, the
// scanner, paper trading, notifications and the dashboard API.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/optionpulse/api"
	"github.com/seenimoa/optionpulse/internal/config"
	"github.com/seenimoa/optionpulse/internal/datasource"
	"github.com/seenimoa/optionpulse/internal/engine"
	"github.com/seenimoa/optionpulse/internal/feed"
	"github.com/seenimoa/optionpulse/internal/logging"
	"github.com/seenimoa/optionpulse/internal/monitor"
	"github.com/seenimoa/optionpulse/internal/news"
	"github.com/seenimoa/optionpulse/internal/notify"
	"github.com/seenimoa/optionpulse/internal/paper"
	"github.com/seenimoa/optionpulse/internal/scanner"
	"github.com/seenimoa/optionpulse/pkg/models"
	"github.com/seenimoa/optionpulse/pkg/utils"
)

// App is a fully wired OptionPulse process.
type App struct {
	Config   *config.Config
	Prices   *feed.PriceCache
	Engine   *engine.Engine
	Gate     *engine.AlertGate
	Monitor  *monitor.Monitor
	Scanner  *scanner.Scanner
	Ledger   *paper.Ledger    // nil when paper trading is disabled
	News     *news.Reader     // nil when news is disabled
	Telegram *notify.Telegram // nil without a bot token
	Hub      *api.WSHub

	version string
	upstox  *datasource.Upstox
	now     func() time.Time
	log     zerolog.Logger
}

// New builds every component from cfg. It does not touch the network except
// to verify the Telegram token.
func New(cfg *config.Config, version string) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &App{
		Config:  cfg,
		version: version,
		upstox:  datasource.NewUpstox(cfg.Upstox),
		now:     utils.NowIST,
		log:     logging.Component("app"),
	}

	a.Prices = feed.NewPriceCache(cfg.Feed.StaleAfter())
	a.Engine = engine.New(engine.Config{
		BlockWindow:   cfg.Reversal.BlockWindow(),
		ConfirmWindow: cfg.Reversal.ConfirmWindow(),
	})
	a.Gate = engine.NewAlertGate(cfg.Reversal.BlockWindow())
	if cfg.Reversal.StateFile != "" {
		n, err := engine.Load(cfg.Reversal.StateFile, a.Engine, a.Gate, a.now())
		if err != nil {
			a.log.Warn().Err(err).Msg("engine state not restored")
		} else if n > 0 {
			a.log.Info().Int("states", n).Msg("engine state restored")
		}
	}

	if cfg.Paper.Enabled {
		ledger, err := paper.NewLedger(cfg.Paper.DBPath)
		if err != nil {
			return nil, err
		}
		a.Ledger = ledger
	}
	if cfg.News.Enabled && len(cfg.News.Feeds) > 0 {
		a.News = news.NewReader(cfg.News)
	}

	a.Hub = api.NewWSHub()
	sinks := notify.Multi{notify.NewLogNotifier(), a.Hub}
	if cfg.Telegram.BotToken != "" {
		tg, err := notify.NewTelegram(cfg.Telegram)
		if err != nil {
			a.log.Warn().Err(err).Msg("telegram disabled")
		} else {
			a.Telegram = tg
			sinks = append(sinks, tg)
		}
	}

	hour, minute, _ := cfg.Monitor.SquareOffClock()
	var closer monitor.Closer
	if a.Ledger != nil {
		closer = a.Ledger
	}
	a.Monitor = monitor.New(monitor.Config{
		ProgressPct:   cfg.Monitor.ProgressPct,
		CheckInterval: cfg.Monitor.CheckInterval(),
		SquareOffHour: hour,
		SquareOffMin:  minute,
	}, a.Prices, sinks, closer)

	if err := a.restoreOpenTrades(context.Background()); err != nil {
		a.Close()
		return nil, err
	}

	deps := scanner.Deps{
		Candles:  a.candleSource(),
		Prices:   a.Prices,
		Engine:   a.Engine,
		Gate:     a.Gate,
		Monitor:  a.Monitor,
		Notifier: sinks,
	}
	if cfg.Scanner.OptionChain {
		deps.Chains = a.chainSource()
	}
	if a.News != nil {
		deps.News = a.News
	}
	if a.Ledger != nil {
		deps.Ledger = a.Ledger
	}
	a.Scanner = scanner.New(ScannerConfig(cfg), deps)

	return a, nil
}

// ScannerConfig maps the scanner, news and monitor sections onto a
// scanner.Config.
func ScannerConfig(cfg *config.Config) scanner.Config {
	hour, minute, _ := cfg.Monitor.SquareOffClock()
	return scanner.Config{
		Symbols:     cfg.Scanner.Symbols,
		Interval:    cfg.Scanner.Interval(),
		Concurrency: cfg.Scanner.Concurrency,
		MinScore:    cfg.Scanner.MinScore,
		Lots:        cfg.Scanner.Lots,
		TargetATR:   cfg.Scanner.TargetATR,
		StopATR:     cfg.Scanner.StopATR,
		TargetPct:   cfg.Scanner.TargetPct,
		StopPct:     cfg.Scanner.StopPct,
		OptionChain: cfg.Scanner.OptionChain,
		Headlines:   cfg.News.Headlines,
		CutoffHour:  hour,
		CutoffMin:   minute,
		StateFile:   cfg.Reversal.StateFile,
	}
}

// candleSource picks the candle source named by scanner.candle_source.
func (a *App) candleSource() datasource.CandleSource {
	yf := datasource.NewYFinance()
	switch a.Config.Scanner.CandleSource {
	case "upstox":
		return a.upstox
	case "yfinance":
		return yf
	}
	if a.Config.Upstox.AccessToken == "" {
		return yf
	}
	return datasource.NewFallbackCandles(a.upstox, yf)
}

// chainSource prefers Upstox when a token is configured and falls back to NSE.
func (a *App) chainSource() datasource.OptionChainSource {
	if a.Config.Upstox.AccessToken == "" {
		return datasource.NewNSE()
	}
	return datasource.NewFallbackChains(a.upstox, datasource.NewNSE())
}

// restoreOpenTrades puts trades left open by a previous run back under the
// monitor. Trades opened on an earlier day are squared off at entry.
func (a *App) restoreOpenTrades(ctx context.Context) error {
	if a.Ledger == nil {
		return nil
	}
	recs, err := a.Ledger.OpenTrades(ctx)
	if err != nil {
		return fmt.Errorf("restore open trades: %w", err)
	}
	now := a.now()
	for _, r := range recs {
		if !utils.SameDayIST(r.OpenedAt, now) {
			if err := a.Ledger.CloseTrade(ctx, r.ID, r.EntryPrice, models.ExitSquareOff, now); err != nil {
				return fmt.Errorf("close stale trade %s: %w", r.ID, err)
			}
			a.log.Info().Str("trade", r.ID).Msg("closed stale trade from an earlier session")
			continue
		}
		if err := a.Monitor.Register(r.VirtualTrade); err != nil {
			a.log.Warn().Err(err).Str("trade", r.ID).Msg("restore trade")
		}
	}
	if n := a.Monitor.Len(); n > 0 {
		a.log.Info().Int("trades", n).Msg("open trades restored")
	}
	return nil
}

// feedKeys returns the instrument keys of the configured symbols.
func (a *App) feedKeys() []string {
	keys := make([]string, 0, len(a.Config.Scanner.Symbols))
	seen := make(map[string]bool)
	for _, sym := range a.Config.Scanner.Symbols {
		inst, ok := utils.LookupInstrument(sym)
		if !ok || seen[inst.InstrumentKey] {
			continue
		}
		seen[inst.InstrumentKey] = true
		keys = append(keys, inst.InstrumentKey)
	}
	return keys
}

// runner is a long-running component.
type runner func(ctx context.Context) error

// priceFeed returns the runner that fills the price cache for feed.mode.
func (a *App) priceFeed() (runner, error) {
	cfg := a.Config
	switch cfg.Feed.Mode {
	case "websocket":
		if cfg.Upstox.FeedURL == "" {
			return nil, errors.New("feed.mode websocket needs upstox.feed_url")
		}
		header := http.Header{}
		if cfg.Upstox.AccessToken != "" {
			header.Set("Authorization", "Bearer "+cfg.Upstox.AccessToken)
		}
		return feed.NewWSFeed(cfg.Upstox.FeedURL, header, a.feedKeys(), a.Prices).Run, nil
	case "kite_poll":
		if cfg.Kite.APIKey == "" || cfg.Kite.AccessToken == "" {
			return nil, errors.New("feed.mode kite_poll needs kite.api_key and kite.access_token")
		}
		src := feed.NewKiteLTP(cfg.Kite.APIKey, cfg.Kite.AccessToken)
		return feed.NewPoller(src, a.Prices, a.feedKeys, cfg.Feed.PollInterval()).Run, nil
	default:
		if cfg.Upstox.AccessToken == "" {
			return nil, errors.New("feed.mode upstox_poll needs upstox.access_token")
		}
		return feed.NewPoller(a.upstox, a.Prices, a.feedKeys, cfg.Feed.PollInterval()).Run, nil
	}
}

// Run starts every component and blocks until ctx is cancelled or one of
// them fails.
func (a *App) Run(ctx context.Context) error {
	pf, err := a.priceFeed()
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	start := func(name string, fn runner) {
		g.Go(func() error {
			err := fn(ctx)
			if err == nil || errors.Is(err, context.Canceled) {
				a.log.Debug().Str("component", name).Msg("stopped")
				return nil
			}
			return fmt.Errorf("%s: %w", name, err)
		})
	}

	start("feed", pf)
	start("monitor", func(ctx context.Context) error { return a.Monitor.Run(ctx, a.now) })
	start("scanner", func(ctx context.Context) error { return a.Scanner.Run(ctx, a.now) })

	if a.Config.API.Enabled {
		srv := api.NewServer(api.Deps{
			Config:    a.Config,
			Signals:   a.Scanner,
			Positions: a.Monitor,
			Ledger:    a.ledgerView(),
			Prices:    a.Prices,
			News:      a.newsView(),
			Hub:       a.Hub,
			Version:   a.version,
		})
		addr := fmt.Sprintf("%s:%d", a.Config.API.Host, a.Config.API.Port)
		start("api", func(ctx context.Context) error { return srv.ListenAndServe(ctx, addr) })
	} else {
		start("hub", func(ctx context.Context) error {
			a.Hub.Run(ctx)
			return nil
		})
	}

	if a.Telegram != nil {
		start("telegram", func(ctx context.Context) error { return a.Telegram.Listen(ctx, a.HandleCommand) })
	}

	a.log.Info().
		Strs("symbols", a.Config.Scanner.Symbols).
		Str("feed", a.Config.Feed.Mode).
		Bool("paper", a.Ledger != nil).
		Bool("telegram", a.Telegram != nil).
		Msg("optionpulse running")

	err = g.Wait()
	if a.Config.Reversal.StateFile != "" {
		if serr := engine.Save(a.Config.Reversal.StateFile, a.Engine, a.Gate, a.now()); serr != nil {
			a.log.Warn().Err(serr).Msg("save engine state")
		}
	}
	return err
}

// ledgerView keeps a nil ledger a nil interface.
func (a *App) ledgerView() api.Ledger {
	if a.Ledger == nil {
		return nil
	}
	return a.Ledger
}

func (a *App) newsView() api.News {
	if a.News == nil {
		return nil
	}
	return a.News
}

// Close releases the paper ledger.
func (a *App) Close() error {
	if a.Ledger == nil {
		return nil
	}
	return a.Ledger.Close()
}
