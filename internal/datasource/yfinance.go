package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/seenimoa/optionpulse/internal/infra"
	"github.com/seenimoa/optionpulse/pkg/models"
	"github.com/seenimoa/optionpulse/pkg/utils"
)

const yfChartBase = "https://query1.finance.yahoo.com/v8/finance/chart/"

// YFinance serves intraday candles from the Yahoo Finance chart API. It is
// the fallback candle source and the history source for replays.
type YFinance struct {
	baseURL string
	cache   *infra.Cache[[]models.OHLCV]
	limiter *infra.RateLimiter
}

// NewYFinance creates a new Yahoo Finance data source.
func NewYFinance() *YFinance {
	return &YFinance{
		baseURL: yfChartBase,
		cache:   infra.NewCache[[]models.OHLCV](30 * time.Second),
		limiter: infra.NewRateLimiter(5, time.Second), // 5 req/s
	}
}

// Name returns the data source name.
func (y *YFinance) Name() string { return "Yahoo Finance" }

// --- Yahoo Finance v8 API types ---

type yfChartResponse struct {
	Chart struct {
		Result []yfChartResult `json:"result"`
		Error  *yfError        `json:"error"`
	} `json:"chart"`
}

type yfChartResult struct {
	Meta       yfChartMeta  `json:"meta"`
	Timestamp  []int64      `json:"timestamp"`
	Indicators yfIndicators `json:"indicators"`
}

type yfChartMeta struct {
	Symbol             string  `json:"symbol"`
	Currency           string  `json:"currency"`
	RegularMarketPrice float64 `json:"regularMarketPrice"`
}

type yfIndicators struct {
	Quote []yfOHLCV `json:"quote"`
}

type yfOHLCV struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*int64   `json:"volume"`
}

type yfError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// --- Public methods ---

// Candles returns the last few sessions of intraday candles, oldest first.
func (y *YFinance) Candles(ctx context.Context, symbol string, tf models.Timeframe) ([]models.OHLCV, error) {
	q := url.Values{}
	q.Set("range", "5d")
	q.Set("interval", yfInterval(tf))
	return y.chart(ctx, symbol, q)
}

// CandlesBetween returns candles between from and to. Yahoo serves 1m bars
// for the last 7 days and 5m bars for the last 60.
func (y *YFinance) CandlesBetween(ctx context.Context, symbol string, tf models.Timeframe, from, to time.Time) ([]models.OHLCV, error) {
	q := url.Values{}
	q.Set("period1", fmt.Sprint(from.Unix()))
	q.Set("period2", fmt.Sprint(to.Unix()))
	q.Set("interval", yfInterval(tf))
	return y.chart(ctx, symbol, q)
}

// OptionChain is not available from Yahoo for Indian derivatives.
func (y *YFinance) OptionChain(ctx context.Context, symbol string) (*models.OptionChain, error) {
	return nil, ErrNotSupported
}

func (y *YFinance) chart(ctx context.Context, symbol string, q url.Values) ([]models.OHLCV, error) {
	yfTicker := utils.ToYFinanceTicker(symbol)
	u := y.baseURL + url.PathEscape(yfTicker) + "?" + q.Encode()

	return y.cache.GetOrFetch(u, func() ([]models.OHLCV, error) {
		if err := y.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		body, _, err := doGet(ctx, u, map[string]string{
			"Accept": "application/json",
		})
		if err != nil {
			return nil, fmt.Errorf("yfinance chart %s: %w", yfTicker, err)
		}
		defer body.Close()

		data, err := io.ReadAll(body)
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}

		var resp yfChartResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			return nil, fmt.Errorf("parse yfinance chart: %w", err)
		}
		if resp.Chart.Error != nil {
			return nil, fmt.Errorf("yfinance chart error: %s", resp.Chart.Error.Description)
		}
		if len(resp.Chart.Result) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrTickerNotFound, symbol)
		}

		candles := parseYFCandles(resp.Chart.Result[0])
		if len(candles) == 0 {
			return nil, fmt.Errorf("yfinance chart %s: %w", yfTicker, ErrNoData)
		}
		return candles, nil
	})
}

// --- Helpers ---

// parseYFCandles converts the columnar chart payload. Bars without a close
// (halts, the still-forming minute) are skipped.
func parseYFCandles(result yfChartResult) []models.OHLCV {
	if len(result.Indicators.Quote) == 0 {
		return nil
	}

	q := result.Indicators.Quote[0]
	candles := make([]models.OHLCV, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(q.Close) || q.Close[i] == nil {
			continue
		}
		c := models.OHLCV{
			Timestamp: time.Unix(ts, 0).In(utils.IST),
			Close:     *q.Close[i],
		}
		c.Open, c.High, c.Low = c.Close, c.Close, c.Close
		if i < len(q.Open) && q.Open[i] != nil {
			c.Open = *q.Open[i]
		}
		if i < len(q.High) && q.High[i] != nil {
			c.High = *q.High[i]
		}
		if i < len(q.Low) && q.Low[i] != nil {
			c.Low = *q.Low[i]
		}
		if i < len(q.Volume) && q.Volume[i] != nil {
			c.Volume = *q.Volume[i]
		}
		candles = append(candles, c)
	}
	return candles
}

func yfInterval(tf models.Timeframe) string {
	switch tf {
	case models.Timeframe1Min:
		return "1m"
	case models.Timeframe5Min:
		return "5m"
	case models.Timeframe15Min:
		return "15m"
	case models.Timeframe1Day:
		return "1d"
	default:
		return "5m"
	}
}
