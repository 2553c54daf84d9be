package datasource

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/seenimoa/optionpulse/internal/config"
	"github.com/seenimoa/optionpulse/internal/infra"
	"github.com/seenimoa/optionpulse/pkg/models"
	"github.com/seenimoa/optionpulse/pkg/utils"
)

const (
	upstoxDefaultBase = "https://api.upstox.com"
	upstoxChainTTL    = 30 * time.Second
	upstoxExpiryTTL   = 6 * time.Hour
	upstoxRate        = 20 // requests per second across all endpoints

	// warmupCandles is the intraday bar count below which the previous
	// session is prepended so indicators have enough history after the open.
	warmupCandles = 60
)

// Upstox implements CandleSource, OptionChainSource and feed.LTPSource
// against the Upstox REST API.
type Upstox struct {
	client   *resty.Client
	limiter  *infra.RateLimiter
	chains   *infra.Cache[*models.OptionChain]
	expiries *infra.Cache[string]
	now      func() time.Time
}

// NewUpstox creates an Upstox client from configuration.
func NewUpstox(cfg config.UpstoxConfig) *Upstox {
	base := strings.TrimSuffix(cfg.BaseURL, "/")
	if base == "" {
		base = upstoxDefaultBase
	}
	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := resty.New().
		SetBaseURL(base).
		SetTimeout(timeout).
		SetRetryCount(cfg.Retries).
		SetRetryWaitTime(500*time.Millisecond).
		SetRetryMaxWaitTime(5*time.Second).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", DefaultUserAgent)
	if cfg.AccessToken != "" {
		client.SetAuthToken(cfg.AccessToken)
	}
	client.AddRetryCondition(func(r *resty.Response, err error) bool {
		return err != nil || r.StatusCode() == 429 || r.StatusCode() >= 500
	})

	return &Upstox{
		client:   client,
		limiter:  infra.PerSecond(upstoxRate),
		chains:   infra.NewCache[*models.OptionChain](upstoxChainTTL),
		expiries: infra.NewCache[string](upstoxExpiryTTL),
		now:      utils.NowIST,
	}
}

// Name returns the data source name.
func (u *Upstox) Name() string { return "Upstox" }

// --- Upstox API types ---

type upstoxError struct {
	ErrorCode string `json:"errorCode"`
	Message   string `json:"message"`
}

type upstoxEnvelope struct {
	Status string        `json:"status"`
	Errors []upstoxError `json:"errors"`
}

type upstoxCandleResponse struct {
	upstoxEnvelope
	Data struct {
		Candles [][]any `json:"candles"`
	} `json:"data"`
}

type upstoxLTPResponse struct {
	upstoxEnvelope
	Data map[string]struct {
		LastPrice       float64 `json:"last_price"`
		InstrumentToken string  `json:"instrument_token"`
	} `json:"data"`
}

type upstoxContractResponse struct {
	upstoxEnvelope
	Data []struct {
		Expiry string `json:"expiry"`
	} `json:"data"`
}

type upstoxChainResponse struct {
	upstoxEnvelope
	Data []upstoxChainRow `json:"data"`
}

type upstoxChainRow struct {
	Expiry      string          `json:"expiry"`
	PCR         float64         `json:"pcr"`
	StrikePrice float64         `json:"strike_price"`
	Spot        float64         `json:"underlying_spot_price"`
	Call        *upstoxChainLeg `json:"call_options"`
	Put         *upstoxChainLeg `json:"put_options"`
}

type upstoxChainLeg struct {
	InstrumentKey string `json:"instrument_key"`
	MarketData    struct {
		LTP    float64 `json:"ltp"`
		Volume int64   `json:"volume"`
		OI     float64 `json:"oi"`
		PrevOI float64 `json:"prev_oi"`
	} `json:"market_data"`
	Greeks struct {
		IV    float64 `json:"iv"`
		Delta float64 `json:"delta"`
	} `json:"option_greeks"`
}

// --- Public methods ---

// Candles returns intraday candles for symbol, oldest first. Early in the
// session the previous trading day's bars are prepended.
func (u *Upstox) Candles(ctx context.Context, symbol string, tf models.Timeframe) ([]models.OHLCV, error) {
	inst, ok := utils.LookupInstrument(symbol)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTickerNotFound, symbol)
	}
	unit, interval := upstoxInterval(tf)

	var resp upstoxCandleResponse
	err := u.get(ctx, "/v3/historical-candle/intraday/{key}/{unit}/{interval}", map[string]string{
		"key":      inst.InstrumentKey,
		"unit":     unit,
		"interval": interval,
	}, nil, &resp)
	if err != nil {
		return nil, fmt.Errorf("upstox intraday %s: %w", inst.Symbol, err)
	}
	candles, err := parseUpstoxCandles(resp.Data.Candles)
	if err != nil {
		return nil, fmt.Errorf("upstox intraday %s: %w", inst.Symbol, err)
	}

	if len(candles) < warmupCandles {
		prev := utils.FormatDateIST(utils.PrevTradingDay(u.now()))
		var hist upstoxCandleResponse
		err := u.get(ctx, "/v3/historical-candle/{key}/{unit}/{interval}/{to}/{from}", map[string]string{
			"key":      inst.InstrumentKey,
			"unit":     unit,
			"interval": interval,
			"to":       prev,
			"from":     prev,
		}, nil, &hist)
		if err == nil {
			if older, perr := parseUpstoxCandles(hist.Data.Candles); perr == nil {
				candles = append(older, candles...)
			}
		}
	}

	if len(candles) == 0 {
		return nil, fmt.Errorf("upstox candles %s: %w", inst.Symbol, ErrNoData)
	}
	return candles, nil
}

// LTP returns last traded prices keyed by instrument key. Keys missing from
// the response are absent from the map.
func (u *Upstox) LTP(ctx context.Context, keys []string) (map[string]float64, error) {
	if len(keys) == 0 {
		return map[string]float64{}, nil
	}

	var resp upstoxLTPResponse
	err := u.get(ctx, "/v2/market-quote/ltp", nil, map[string]string{
		"instrument_key": strings.Join(keys, ","),
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("upstox ltp: %w", err)
	}

	out := make(map[string]float64, len(resp.Data))
	for respKey, q := range resp.Data {
		key := q.InstrumentToken
		if key == "" {
			key = strings.Replace(respKey, ":", "|", 1)
		}
		if q.LastPrice > 0 {
			out[key] = q.LastPrice
		}
	}
	return out, nil
}

// OptionChain returns the nearest-expiry option chain for symbol.
func (u *Upstox) OptionChain(ctx context.Context, symbol string) (*models.OptionChain, error) {
	inst, ok := utils.LookupInstrument(symbol)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTickerNotFound, symbol)
	}
	if oc, ok := u.chains.Get(inst.Symbol); ok {
		return oc, nil
	}

	expiry, err := u.nearestExpiry(ctx, inst)
	if err != nil {
		return nil, err
	}

	var resp upstoxChainResponse
	err = u.get(ctx, "/v2/option/chain", nil, map[string]string{
		"instrument_key": inst.InstrumentKey,
		"expiry_date":    expiry,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("upstox option chain %s: %w", inst.Symbol, err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("upstox option chain %s: %w", inst.Symbol, ErrNoData)
	}

	oc := buildUpstoxChain(inst.Symbol, expiry, resp.Data)
	oc.FetchedAt = u.now()
	u.chains.Set(inst.Symbol, oc)
	return oc, nil
}

// --- Internal helpers ---

func (u *Upstox) nearestExpiry(ctx context.Context, inst models.Instrument) (string, error) {
	return u.expiries.GetOrFetch(inst.Symbol, func() (string, error) {
		var resp upstoxContractResponse
		err := u.get(ctx, "/v2/option/contract", nil, map[string]string{
			"instrument_key": inst.InstrumentKey,
		}, &resp)
		if err != nil {
			return "", fmt.Errorf("upstox contracts %s: %w", inst.Symbol, err)
		}

		today := utils.FormatDateIST(u.now())
		best := ""
		for _, c := range resp.Data {
			// ISO dates compare lexically.
			if c.Expiry >= today && (best == "" || c.Expiry < best) {
				best = c.Expiry
			}
		}
		if best == "" {
			return "", fmt.Errorf("upstox contracts %s: %w", inst.Symbol, ErrNoData)
		}
		return best, nil
	})
}

func (u *Upstox) get(ctx context.Context, path string, pathParams, query map[string]string, out interface{ failed() *upstoxError }) error {
	if err := u.limiter.Wait(ctx); err != nil {
		return err
	}

	req := u.client.R().SetContext(ctx).SetResult(out)
	if pathParams != nil {
		req.SetPathParams(pathParams)
	}
	if query != nil {
		req.SetQueryParams(query)
	}

	resp, err := req.Get(path)
	if err != nil {
		return err
	}
	if resp.StatusCode() == 429 {
		return ErrRateLimited
	}
	if resp.IsError() {
		body := resp.String()
		if len(body) > 1024 {
			body = body[:1024]
		}
		return &ErrHTTP{StatusCode: resp.StatusCode(), Status: resp.Status(), Body: body}
	}
	if e := out.failed(); e != nil {
		return fmt.Errorf("%s: %s", e.ErrorCode, e.Message)
	}
	return nil
}

func (e *upstoxEnvelope) failed() *upstoxError {
	if e.Status == "error" {
		if len(e.Errors) > 0 {
			return &e.Errors[0]
		}
		return &upstoxError{ErrorCode: "unknown", Message: "request failed"}
	}
	return nil
}

func upstoxInterval(tf models.Timeframe) (unit, interval string) {
	if m := tf.Minutes(); m > 0 {
		return "minutes", fmt.Sprint(m)
	}
	return "days", "1"
}

// parseUpstoxCandles converts [timestamp, open, high, low, close, volume, oi]
// rows, which Upstox returns newest first.
func parseUpstoxCandles(rows [][]any) ([]models.OHLCV, error) {
	candles := make([]models.OHLCV, 0, len(rows))
	for _, row := range rows {
		if len(row) < 6 {
			continue
		}
		ts, ok := row[0].(string)
		if !ok {
			continue
		}
		at, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			return nil, fmt.Errorf("parse candle time %q: %w", ts, err)
		}
		c := models.OHLCV{
			Timestamp: at,
			Open:      num(row[1]),
			High:      num(row[2]),
			Low:       num(row[3]),
			Close:     num(row[4]),
			Volume:    int64(num(row[5])),
		}
		if len(row) > 6 {
			c.OI = int64(num(row[6]))
		}
		candles = append(candles, c)
	}
	sortCandles(candles)
	return candles, nil
}

func num(v any) float64 {
	f, _ := v.(float64)
	return f
}

func buildUpstoxChain(symbol, expiry string, rows []upstoxChainRow) *models.OptionChain {
	oc := &models.OptionChain{
		Ticker:     symbol,
		ExpiryDate: expiry,
		Expiries:   []string{expiry},
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].StrikePrice < rows[j].StrikePrice })
	for _, row := range rows {
		if row.Spot > 0 {
			oc.SpotPrice = row.Spot
		}
		if row.Call != nil {
			c := upstoxContract(row, row.Call, "CE")
			oc.TotalCEOI += c.OI
			oc.Contracts = append(oc.Contracts, c)
		}
		if row.Put != nil {
			c := upstoxContract(row, row.Put, "PE")
			oc.TotalPEOI += c.OI
			oc.Contracts = append(oc.Contracts, c)
		}
	}
	if oc.TotalCEOI > 0 {
		oc.PCR = float64(oc.TotalPEOI) / float64(oc.TotalCEOI)
	}
	return oc
}

func upstoxContract(row upstoxChainRow, leg *upstoxChainLeg, optType string) models.OptionContract {
	return models.OptionContract{
		InstrumentKey: leg.InstrumentKey,
		StrikePrice:   row.StrikePrice,
		OptionType:    optType,
		ExpiryDate:    row.Expiry,
		LTP:           leg.MarketData.LTP,
		Volume:        leg.MarketData.Volume,
		OI:            int64(leg.MarketData.OI),
		OIChange:      int64(leg.MarketData.OI - leg.MarketData.PrevOI),
		IV:            leg.Greeks.IV,
		Delta:         leg.Greeks.Delta,
	}
}
