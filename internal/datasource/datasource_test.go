package datasource

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/seenimoa/optionpulse/internal/config"
	"github.com/seenimoa/optionpulse/pkg/models"
	"github.com/seenimoa/optionpulse/pkg/utils"
)

// ── Upstox ──

func newTestUpstox(t *testing.T, h http.HandlerFunc) *Upstox {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	u := NewUpstox(config.UpstoxConfig{BaseURL: srv.URL, AccessToken: "tok", TimeoutSec: 5})
	u.now = func() time.Time { return time.Date(2026, 2, 19, 10, 0, 0, 0, utils.IST) }
	return u
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprint(w, body)
}

func TestUpstoxCandlesWithWarmup(t *testing.T) {
	var auth atomic.Value
	u := newTestUpstox(t, func(w http.ResponseWriter, r *http.Request) {
		auth.Store(r.Header.Get("Authorization"))
		switch {
		case strings.HasPrefix(r.URL.Path, "/v3/historical-candle/intraday/NSE_INDEX|Nifty 50/minutes/1"):
			writeJSON(w, 200, `{"status":"success","data":{"candles":[
				["2026-02-19T09:16:00+05:30",25010,25020,25000,25015,0,0],
				["2026-02-19T09:15:00+05:30",25000,25012,24990,25010,0,0]]}}`)
		case strings.HasPrefix(r.URL.Path, "/v3/historical-candle/NSE_INDEX|Nifty 50/minutes/1/2026-02-18/2026-02-18"):
			writeJSON(w, 200, `{"status":"success","data":{"candles":[
				["2026-02-18T15:29:00+05:30",24990,24995,24985,24992,0,0]]}}`)
		default:
			http.NotFound(w, r)
		}
	})

	candles, err := u.Candles(context.Background(), "nifty", models.Timeframe1Min)
	if err != nil {
		t.Fatalf("Candles: %v", err)
	}
	if len(candles) != 3 {
		t.Fatalf("got %d candles, want 3", len(candles))
	}
	if candles[0].Close != 24992 || candles[2].Close != 25015 {
		t.Errorf("candles not oldest-first: %+v", candles)
	}
	if got := auth.Load(); got != "Bearer tok" {
		t.Errorf("Authorization = %v, want Bearer tok", got)
	}
}

func TestUpstoxCandlesUnknownSymbol(t *testing.T) {
	u := newTestUpstox(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s", r.URL.Path)
	})
	_, err := u.Candles(context.Background(), "NOPE", models.Timeframe5Min)
	if !errors.Is(err, ErrTickerNotFound) {
		t.Errorf("err = %v, want ErrTickerNotFound", err)
	}
}

func TestUpstoxCandlesEmpty(t *testing.T) {
	u := newTestUpstox(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, `{"status":"success","data":{"candles":[]}}`)
	})
	_, err := u.Candles(context.Background(), "SENSEX", models.Timeframe5Min)
	if !errors.Is(err, ErrNoData) {
		t.Errorf("err = %v, want ErrNoData", err)
	}
}

func TestUpstoxHTTPError(t *testing.T) {
	u := newTestUpstox(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 401, `{"status":"error","errors":[{"errorCode":"UDAPI100050","message":"Invalid token"}]}`)
	})
	_, err := u.LTP(context.Background(), []string{"NSE_INDEX|Nifty 50"})
	var httpErr *ErrHTTP
	if !errors.As(err, &httpErr) {
		t.Fatalf("err = %v, want *ErrHTTP", err)
	}
	if httpErr.StatusCode != 401 {
		t.Errorf("StatusCode = %d, want 401", httpErr.StatusCode)
	}
}

func TestUpstoxErrorEnvelope(t *testing.T) {
	u := newTestUpstox(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, `{"status":"error","errors":[{"errorCode":"UDAPI1","message":"bad key"}]}`)
	})
	_, err := u.LTP(context.Background(), []string{"X"})
	if err == nil || !strings.Contains(err.Error(), "bad key") {
		t.Errorf("err = %v, want envelope message", err)
	}
}

func TestUpstoxLTP(t *testing.T) {
	var query atomic.Value
	u := newTestUpstox(t, func(w http.ResponseWriter, r *http.Request) {
		query.Store(r.URL.Query().Get("instrument_key"))
		writeJSON(w, 200, `{"status":"success","data":{
			"NSE_INDEX:Nifty 50":{"last_price":25001.5,"instrument_token":"NSE_INDEX|Nifty 50"},
			"BSE_INDEX:SENSEX":{"last_price":82000},
			"NSE_INDEX:Nifty Bank":{"last_price":0,"instrument_token":"NSE_INDEX|Nifty Bank"}}}`)
	})

	got, err := u.LTP(context.Background(), []string{"NSE_INDEX|Nifty 50", "BSE_INDEX|SENSEX", "NSE_INDEX|Nifty Bank"})
	if err != nil {
		t.Fatalf("LTP: %v", err)
	}
	if q := query.Load(); q != "NSE_INDEX|Nifty 50,BSE_INDEX|SENSEX,NSE_INDEX|Nifty Bank" {
		t.Errorf("instrument_key = %v", q)
	}
	if got["NSE_INDEX|Nifty 50"] != 25001.5 {
		t.Errorf("nifty = %v, want 25001.5", got["NSE_INDEX|Nifty 50"])
	}
	if got["BSE_INDEX|SENSEX"] != 82000 {
		t.Errorf("sensex = %v, want 82000", got["BSE_INDEX|SENSEX"])
	}
	if _, ok := got["NSE_INDEX|Nifty Bank"]; ok {
		t.Error("zero price should be dropped")
	}
}

func TestUpstoxLTPNoKeys(t *testing.T) {
	u := newTestUpstox(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s", r.URL.Path)
	})
	got, err := u.LTP(context.Background(), nil)
	if err != nil || len(got) != 0 {
		t.Errorf("LTP(nil) = %v, %v", got, err)
	}
}

func TestUpstoxOptionChain(t *testing.T) {
	var chainCalls int32
	var expiry atomic.Value
	u := newTestUpstox(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v2/option/contract":
			writeJSON(w, 200, `{"status":"success","data":[
				{"expiry":"2026-02-12"},{"expiry":"2026-02-26"},{"expiry":"2026-02-24"}]}`)
		case "/v2/option/chain":
			atomic.AddInt32(&chainCalls, 1)
			expiry.Store(r.URL.Query().Get("expiry_date"))
			writeJSON(w, 200, `{"status":"success","data":[
				{"expiry":"2026-02-24","pcr":1.1,"strike_price":25050,"underlying_spot_price":25010,
				 "call_options":{"instrument_key":"NSE_FO|2","market_data":{"ltp":80,"volume":10,"oi":1500,"prev_oi":1000},"option_greeks":{"iv":12.5,"delta":0.45}},
				 "put_options":{"instrument_key":"NSE_FO|3","market_data":{"ltp":110,"volume":12,"oi":900,"prev_oi":1000},"option_greeks":{"iv":13,"delta":-0.55}}},
				{"expiry":"2026-02-24","pcr":0.9,"strike_price":25000,"underlying_spot_price":25010,
				 "call_options":{"instrument_key":"NSE_FO|0","market_data":{"ltp":100,"volume":20,"oi":2000,"prev_oi":1800},"option_greeks":{"iv":12,"delta":0.52}},
				 "put_options":{"instrument_key":"NSE_FO|1","market_data":{"ltp":90,"volume":25,"oi":2600,"prev_oi":2000},"option_greeks":{"iv":12.2,"delta":-0.48}}}]}`)
		default:
			http.NotFound(w, r)
		}
	})

	oc, err := u.OptionChain(context.Background(), "NIFTY")
	if err != nil {
		t.Fatalf("OptionChain: %v", err)
	}
	if got := expiry.Load(); got != "2026-02-24" {
		t.Errorf("expiry_date = %v, want 2026-02-24", got)
	}
	if oc.SpotPrice != 25010 || oc.ExpiryDate != "2026-02-24" {
		t.Errorf("chain header = %+v", oc)
	}
	if len(oc.Contracts) != 4 {
		t.Fatalf("got %d contracts, want 4", len(oc.Contracts))
	}
	first := oc.Contracts[0]
	if first.StrikePrice != 25000 || first.OptionType != "CE" || first.OIChange != 200 || first.Delta != 0.52 {
		t.Errorf("first contract = %+v", first)
	}
	if oc.TotalCEOI != 3500 || oc.TotalPEOI != 3500 || oc.PCR != 1 {
		t.Errorf("OI totals = %d/%d pcr %v", oc.TotalCEOI, oc.TotalPEOI, oc.PCR)
	}

	if _, err := u.OptionChain(context.Background(), "NIFTY"); err != nil {
		t.Fatalf("cached OptionChain: %v", err)
	}
	if n := atomic.LoadInt32(&chainCalls); n != 1 {
		t.Errorf("chain fetched %d times, want 1", n)
	}
}

func TestUpstoxOptionChainNoExpiry(t *testing.T) {
	u := newTestUpstox(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, `{"status":"success","data":[{"expiry":"2026-01-29"}]}`)
	})
	_, err := u.OptionChain(context.Background(), "BANKNIFTY")
	if !errors.Is(err, ErrNoData) {
		t.Errorf("err = %v, want ErrNoData", err)
	}
}

func TestUpstoxInterval(t *testing.T) {
	tests := []struct {
		tf             models.Timeframe
		unit, interval string
	}{
		{models.Timeframe1Min, "minutes", "1"},
		{models.Timeframe5Min, "minutes", "5"},
		{models.Timeframe15Min, "minutes", "15"},
		{models.Timeframe1Day, "days", "1"},
	}
	for _, tt := range tests {
		unit, interval := upstoxInterval(tt.tf)
		if unit != tt.unit || interval != tt.interval {
			t.Errorf("upstoxInterval(%q) = %s/%s, want %s/%s", tt.tf, unit, interval, tt.unit, tt.interval)
		}
	}
}

func TestParseUpstoxCandlesBadTime(t *testing.T) {
	_, err := parseUpstoxCandles([][]any{{"yesterday", 1.0, 1.0, 1.0, 1.0, 0.0}})
	if err == nil {
		t.Error("expected parse error")
	}
}

// ── Yahoo Finance ──

func TestYFinanceCandles(t *testing.T) {
	var path atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path.Store(r.URL.Path + "?" + r.URL.RawQuery)
		writeJSON(w, 200, `{"chart":{"result":[{"meta":{"symbol":"^NSEI"},
			"timestamp":[1771472700,1771472760,1771472820],
			"indicators":{"quote":[{"open":[100,101,null],"high":[102,103,null],"low":[99,100,null],
			"close":[101,null,103],"volume":[0,0,0]}]}}],"error":null}}`)
	}))
	defer srv.Close()

	y := NewYFinance()
	y.baseURL = srv.URL + "/"

	candles, err := y.Candles(context.Background(), "NIFTY", models.Timeframe1Min)
	if err != nil {
		t.Fatalf("Candles: %v", err)
	}
	if p := path.Load().(string); !strings.HasPrefix(p, "/^NSEI?") || !strings.Contains(p, "interval=1m") {
		t.Errorf("request = %s", p)
	}
	if len(candles) != 2 {
		t.Fatalf("got %d candles, want 2 (null close skipped)", len(candles))
	}
	if candles[1].Close != 103 || candles[1].Open != 103 {
		t.Errorf("bar without OHL should default to close: %+v", candles[1])
	}
}

func TestYFinanceChartError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, `{"chart":{"result":[],"error":null}}`)
	}))
	defer srv.Close()

	y := NewYFinance()
	y.baseURL = srv.URL + "/"
	_, err := y.Candles(context.Background(), "RELIANCE", models.Timeframe5Min)
	if !errors.Is(err, ErrTickerNotFound) {
		t.Errorf("err = %v, want ErrTickerNotFound", err)
	}
}

func TestYFinanceRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	y := NewYFinance()
	y.baseURL = srv.URL + "/"
	_, err := y.Candles(context.Background(), "NIFTY", models.Timeframe5Min)
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("err = %v, want ErrRateLimited", err)
	}
}

func TestYFinanceNoOptionChain(t *testing.T) {
	if _, err := NewYFinance().OptionChain(context.Background(), "NIFTY"); !errors.Is(err, ErrNotSupported) {
		t.Errorf("err = %v, want ErrNotSupported", err)
	}
}

func TestYfInterval(t *testing.T) {
	tests := []struct {
		tf   models.Timeframe
		want string
	}{
		{models.Timeframe1Min, "1m"},
		{models.Timeframe5Min, "5m"},
		{models.Timeframe15Min, "15m"},
		{models.Timeframe1Day, "1d"},
		{models.Timeframe("unknown"), "5m"},
	}
	for _, tt := range tests {
		got := yfInterval(tt.tf)
		if got != tt.want {
			t.Errorf("yfInterval(%q) = %q, want %q", tt.tf, got, tt.want)
		}
	}
}

// ── NSE ──

const nseChainJSON = `{"records":{"expiryDates":["24-Feb-2026","26-Feb-2026"],"underlyingValue":25010,
	"data":[
	{"strikePrice":25000,"expiryDate":"24-Feb-2026",
	 "CE":{"identifier":"OPTIDXNIFTY24-02-2026CE25000.00","openInterest":2000,"changeinOpenInterest":200,"lastPrice":100,"impliedVolatility":12},
	 "PE":{"identifier":"OPTIDXNIFTY24-02-2026PE25000.00","openInterest":3000,"changeinOpenInterest":-100,"lastPrice":90}},
	{"strikePrice":25000,"expiryDate":"26-Feb-2026",
	 "CE":{"openInterest":999}}]},
	"filtered":{"data":[]}}`

func TestNSEOptionChainPrimesCookies(t *testing.T) {
	var homeHits, apiHits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			atomic.AddInt32(&homeHits, 1)
			http.SetCookie(w, &http.Cookie{Name: "nsit", Value: "abc", Path: "/"})
		case "/api/option-chain-indices":
			atomic.AddInt32(&apiHits, 1)
			if c, err := r.Cookie("nsit"); err != nil || c.Value != "abc" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			if r.URL.Query().Get("symbol") != "NIFTY" {
				http.NotFound(w, r)
				return
			}
			writeJSON(w, 200, nseChainJSON)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	n := NewNSE()
	n.baseURL = srv.URL

	oc, err := n.OptionChain(context.Background(), "nifty")
	if err != nil {
		t.Fatalf("OptionChain: %v", err)
	}
	if oc.ExpiryDate != "24-Feb-2026" || oc.SpotPrice != 25010 {
		t.Errorf("chain header = %+v", oc)
	}
	if len(oc.Contracts) != 2 {
		t.Fatalf("got %d contracts, want 2 (nearest expiry only)", len(oc.Contracts))
	}
	if oc.PCR != 1.5 {
		t.Errorf("PCR = %v, want 1.5", oc.PCR)
	}

	if _, err := n.OptionChain(context.Background(), "NIFTY"); err != nil {
		t.Fatalf("second OptionChain: %v", err)
	}
	if h, a := atomic.LoadInt32(&homeHits), atomic.LoadInt32(&apiHits); h != 1 || a != 1 {
		t.Errorf("homepage hits = %d, api hits = %d, want 1 and 1", h, a)
	}
}

func TestNSEForbiddenResetsCookies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			return
		}
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	n := NewNSE()
	n.baseURL = srv.URL

	_, err := n.OptionChain(context.Background(), "BANKNIFTY")
	var httpErr *ErrHTTP
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusForbidden {
		t.Fatalf("err = %v, want HTTP 403", err)
	}
	if !n.cookieExpiry.IsZero() {
		t.Error("cookie expiry should be cleared after 403")
	}
}

func TestNSESensexNotSupported(t *testing.T) {
	if _, err := NewNSE().OptionChain(context.Background(), "SENSEX"); !errors.Is(err, ErrNotSupported) {
		t.Errorf("err = %v, want ErrNotSupported", err)
	}
}

// ── Fallback ──

type stubCandles struct {
	name    string
	candles []models.OHLCV
	err     error
	calls   int
}

func (s *stubCandles) Name() string { return s.name }

func (s *stubCandles) Candles(context.Context, string, models.Timeframe) ([]models.OHLCV, error) {
	s.calls++
	return s.candles, s.err
}

func TestFallbackCandles(t *testing.T) {
	bar := []models.OHLCV{{Close: 1}}
	broken := &stubCandles{name: "broken", err: errors.New("boom")}
	empty := &stubCandles{name: "empty"}
	good := &stubCandles{name: "good", candles: bar}
	unused := &stubCandles{name: "unused", candles: bar}

	f := NewFallbackCandles(broken, empty, good, unused)
	got, err := f.Candles(context.Background(), "NIFTY", models.Timeframe1Min)
	if err != nil {
		t.Fatalf("Candles: %v", err)
	}
	if len(got) != 1 || unused.calls != 0 {
		t.Errorf("got %v, unused.calls = %d", got, unused.calls)
	}
}

func TestFallbackCandlesAllFail(t *testing.T) {
	f := NewFallbackCandles(&stubCandles{name: "a", err: ErrRateLimited}, &stubCandles{name: "b"})
	_, err := f.Candles(context.Background(), "NIFTY", models.Timeframe1Min)
	if !errors.Is(err, ErrRateLimited) || !errors.Is(err, ErrNoData) {
		t.Errorf("err = %v, want both causes joined", err)
	}
}

type stubChain struct {
	oc  *models.OptionChain
	err error
}

func (s stubChain) Name() string { return "stub" }

func (s stubChain) OptionChain(context.Context, string) (*models.OptionChain, error) {
	return s.oc, s.err
}

func TestFallbackChains(t *testing.T) {
	want := &models.OptionChain{Ticker: "NIFTY", Contracts: []models.OptionContract{{StrikePrice: 25000}}}
	f := NewFallbackChains(stubChain{err: ErrNotSupported}, stubChain{oc: &models.OptionChain{}}, stubChain{oc: want})
	got, err := f.OptionChain(context.Background(), "NIFTY")
	if err != nil || got != want {
		t.Errorf("OptionChain = %v, %v", got, err)
	}

	_, err = NewFallbackChains().OptionChain(context.Background(), "NIFTY")
	if !errors.Is(err, ErrNoData) {
		t.Errorf("empty fallback err = %v, want ErrNoData", err)
	}
}

func TestErrHTTPError(t *testing.T) {
	e := &ErrHTTP{StatusCode: 502, Status: "502 Bad Gateway", Body: "upstream"}
	if got := e.Error(); got != "HTTP 502 502 Bad Gateway: upstream" {
		t.Errorf("Error() = %q", got)
	}
}
