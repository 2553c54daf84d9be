// Package api provides the read-only HTTP and WebSocket surface for the
// OptionPulse dashboard.
//
// It exposes recent signals, open virtual positions, paper-trade history and
// P&L, the live price cache and market headlines, and streams every alert to
// WebSocket clients.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/seenimoa/optionpulse/internal/config"
	"github.com/seenimoa/optionpulse/internal/feed"
	"github.com/seenimoa/optionpulse/internal/logging"
	"github.com/seenimoa/optionpulse/internal/paper"
	"github.com/seenimoa/optionpulse/pkg/models"
	"github.com/seenimoa/optionpulse/pkg/utils"
)

// --- Data sources ---

// Signals is the scanner view.
type Signals interface {
	Recent(n int) []models.Alert
	Readings() []models.Signal
}

// Positions is the monitor view.
type Positions interface {
	Snapshot() []models.VirtualTrade
}

// Ledger is the paper-trading view.
type Ledger interface {
	Trades(ctx context.Context, limit int) ([]paper.Record, error)
	Summary(ctx context.Context) (models.PnLSummary, error)
}

// Prices is the live price cache view.
type Prices interface {
	Snapshot() map[string]feed.Quote
	IsStale(q feed.Quote) bool
}

// News supplies headlines.
type News interface {
	Market(ctx context.Context, limit int) ([]models.NewsArticle, error)
	ForSymbol(ctx context.Context, symbol string, limit int) ([]models.NewsArticle, error)
}

// Deps are the server's collaborators. Any of them may be nil; the matching
// endpoints then answer 503.
type Deps struct {
	Config    *config.Config
	Signals   Signals
	Positions Positions
	Ledger    Ledger
	Prices    Prices
	News      News
	Hub       *WSHub
	Version   string
}

// Server is the HTTP API server.
type Server struct {
	router chi.Router
	deps   Deps
	log    zerolog.Logger
}

// NewServer creates a server with all routes and middleware.
func NewServer(deps Deps) *Server {
	if deps.Config == nil {
		deps.Config = &config.Config{}
	}
	if deps.Hub == nil {
		deps.Hub = NewWSHub()
	}
	if deps.Version == "" {
		deps.Version = "dev"
	}
	s := &Server{deps: deps, log: logging.Component("api")}
	s.router = s.buildRouter()
	return s
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *WSHub {
	return s.deps.Hub
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go s.deps.Hub.Run(ctx)

	errc := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("API listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	s.log.Info().Msg("shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	// CORS
	origins := []string{"*"}
	if len(s.deps.Config.API.CORSOrigins) > 0 {
		origins = s.deps.Config.API.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	// Health check
	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Get("/signals", s.handleSignals)
		r.Get("/positions", s.handlePositions)
		r.Get("/trades", s.handleTrades)
		r.Get("/pnl", s.handlePnL)
		r.Get("/prices", s.handlePrices)
		r.Get("/news", s.handleNews)
		r.Get("/config", s.handleGetConfig)

		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// requestLogger logs each request through zerolog.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}

// ============================================================
// Response types
// ============================================================

// APIResponse is the standard JSON envelope.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// SignalsResponse is the body of GET /api/v1/signals.
type SignalsResponse struct {
	Alerts   []models.Alert  `json:"alerts"`
	Readings []models.Signal `json:"readings"`
}

// PositionView is an open trade marked to the latest price.
type PositionView struct {
	models.VirtualTrade
	LTP         float64 `json:"ltp,omitempty"`
	PnLPoints   float64 `json:"pnl_points"`
	ProgressPct float64 `json:"progress_pct"`
	Stale       bool    `json:"stale,omitempty"`
}

// PriceView is one entry of GET /api/v1/prices.
type PriceView struct {
	InstrumentKey string    `json:"instrument_key"`
	Symbol        string    `json:"symbol,omitempty"`
	LTP           float64   `json:"ltp"`
	UpdatedAt     time.Time `json:"updated_at"`
	Stale         bool      `json:"stale"`
}

// ============================================================
// Handlers
// ============================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"status":        "ok",
			"version":       s.deps.Version,
			"market_status": utils.MarketStatus(),
			"time_ist":      utils.FormatDateTimeIST(utils.NowIST()),
			"ws_clients":    s.deps.Hub.ClientCount(),
		},
	})
}

func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	if s.deps.Signals == nil {
		writeError(w, http.StatusServiceUnavailable, "scanner not running")
		return
	}
	limit := queryInt(r, "limit", 50)
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: SignalsResponse{
			Alerts:   nonNil(s.deps.Signals.Recent(limit)),
			Readings: nonNil(s.deps.Signals.Readings()),
		},
	})
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	if s.deps.Positions == nil {
		writeError(w, http.StatusServiceUnavailable, "monitor not running")
		return
	}
	var quotes map[string]feed.Quote
	if s.deps.Prices != nil {
		quotes = s.deps.Prices.Snapshot()
	}

	trades := s.deps.Positions.Snapshot()
	out := make([]PositionView, 0, len(trades))
	for _, t := range trades {
		v := PositionView{VirtualTrade: t}
		if q, ok := quotes[t.InstrumentKey]; ok {
			v.LTP = q.LTP
			v.PnLPoints = t.PnLPoints(q.LTP)
			v.ProgressPct = t.Progress(q.LTP) * 100
			v.Stale = s.deps.Prices.IsStale(q)
		}
		out = append(out, v)
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: out})
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ledger == nil {
		writeError(w, http.StatusServiceUnavailable, "paper trading disabled")
		return
	}
	recs, err := s.deps.Ledger.Trades(r.Context(), queryInt(r, "limit", 100))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: nonNil(recs)})
}

func (s *Server) handlePnL(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ledger == nil {
		writeError(w, http.StatusServiceUnavailable, "paper trading disabled")
		return
	}
	sum, err := s.deps.Ledger.Summary(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: sum})
}

func (s *Server) handlePrices(w http.ResponseWriter, r *http.Request) {
	if s.deps.Prices == nil {
		writeError(w, http.StatusServiceUnavailable, "price feed not running")
		return
	}
	quotes := s.deps.Prices.Snapshot()
	out := make([]PriceView, 0, len(quotes))
	for key, q := range quotes {
		sym, _ := utils.SymbolForKey(key)
		out = append(out, PriceView{
			InstrumentKey: key,
			Symbol:        sym,
			LTP:           q.LTP,
			UpdatedAt:     q.UpdatedAt,
			Stale:         s.deps.Prices.IsStale(q),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InstrumentKey < out[j].InstrumentKey })
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: out})
}

func (s *Server) handleNews(w http.ResponseWriter, r *http.Request) {
	if s.deps.News == nil {
		writeError(w, http.StatusServiceUnavailable, "news disabled")
		return
	}
	limit := queryInt(r, "limit", 20)

	var (
		articles []models.NewsArticle
		err      error
	)
	if sym := r.URL.Query().Get("symbol"); sym != "" {
		if _, ok := utils.LookupInstrument(sym); !ok {
			writeError(w, http.StatusBadRequest, "unknown symbol: "+sym)
			return
		}
		articles, err = s.deps.News.ForSymbol(r.Context(), sym, limit)
	} else {
		articles, err = s.deps.News.Market(r.Context(), limit)
	}
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: nonNil(articles)})
}

// ============================================================
// Helpers
// ============================================================

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log := logging.Component("api")
		log.Warn().Err(err).Msg("failed to write JSON response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   msg,
	})
}

// queryInt reads a positive integer query parameter.
func queryInt(r *http.Request, name string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

// nonNil turns a nil slice into an empty one so it encodes as [].
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
