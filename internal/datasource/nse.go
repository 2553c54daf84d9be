package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"github.com/seenimoa/optionpulse/internal/infra"
	"github.com/seenimoa/optionpulse/pkg/models"
	"github.com/seenimoa/optionpulse/pkg/utils"
)

const (
	nseBaseURL     = "https://www.nseindia.com"
	nseCookieTTL   = 5 * time.Minute
	nseDefaultRate = 3 // max requests per second
)

// NSE fetches option chains from the NSE India website API. The API only
// answers requests that carry the session cookies set by the homepage.
type NSE struct {
	baseURL string
	cache   *infra.Cache[*models.OptionChain]
	limiter *infra.RateLimiter
	client  *http.Client

	mu           sync.Mutex
	cookieExpiry time.Time
}

// NewNSE creates a new NSE India data source.
func NewNSE() *NSE {
	jar, _ := cookiejar.New(nil)
	return &NSE{
		baseURL: nseBaseURL,
		cache:   infra.NewCache[*models.OptionChain](2 * time.Minute),
		limiter: infra.NewRateLimiter(nseDefaultRate, time.Second),
		client: &http.Client{
			Timeout: 30 * time.Second,
			Jar:     jar,
		},
	}
}

// Name returns the data source name.
func (n *NSE) Name() string { return "NSE India" }

// --- NSE option chain response types ---

type nseOptionChainResponse struct {
	Records  nseOCRecords `json:"records"`
	Filtered nseOCRecords `json:"filtered"`
}

type nseOCRecords struct {
	ExpiryDates     []string     `json:"expiryDates"`
	Data            []nseOCEntry `json:"data"`
	Timestamp       string       `json:"timestamp"`
	UnderlyingValue float64      `json:"underlyingValue"`
}

type nseOCEntry struct {
	StrikePrice float64   `json:"strikePrice"`
	ExpiryDate  string    `json:"expiryDate"`
	CE          *nseOCLeg `json:"CE"`
	PE          *nseOCLeg `json:"PE"`
}

type nseOCLeg struct {
	Identifier        string  `json:"identifier"`
	OpenInterest      int64   `json:"openInterest"`
	ChangeinOI        int64   `json:"changeinOpenInterest"`
	TotalTradedVolume int64   `json:"totalTradedVolume"`
	ImpliedVolatility float64 `json:"impliedVolatility"`
	LastPrice         float64 `json:"lastPrice"`
	UnderlyingValue   float64 `json:"underlyingValue"`
}

// --- Public methods ---

// OptionChain returns the nearest-expiry option chain for symbol.
func (n *NSE) OptionChain(ctx context.Context, symbol string) (*models.OptionChain, error) {
	symbol = utils.NormalizeTicker(symbol)
	if symbol == "SENSEX" {
		return nil, fmt.Errorf("NSE option chain %s: %w", symbol, ErrNotSupported)
	}

	if cached, ok := n.cache.Get(symbol); ok {
		return cached, nil
	}

	if err := n.ensureCookies(ctx); err != nil {
		return nil, fmt.Errorf("NSE cookie refresh: %w", err)
	}
	if err := n.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := "option-chain-equities"
	if utils.IsIndex(symbol) {
		endpoint = "option-chain-indices"
	}
	u := fmt.Sprintf("%s/api/%s?symbol=%s", n.baseURL, endpoint, url.QueryEscape(symbol))

	data, err := n.nseGet(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("NSE option chain %s: %w", symbol, err)
	}

	var resp nseOptionChainResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("parse NSE option chain: %w", err)
	}

	oc := buildNSEChain(symbol, &resp)
	if len(oc.Contracts) == 0 {
		return nil, fmt.Errorf("NSE option chain %s: %w", symbol, ErrNoData)
	}

	n.cache.Set(symbol, oc)
	return oc, nil
}

// --- Internal helpers ---

// ensureCookies visits the NSE homepage to get session cookies.
func (n *NSE) ensureCookies(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if time.Now().Before(n.cookieExpiry) {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", DefaultUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch NSE homepage for cookies: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body) //nolint:errcheck // drain body

	n.cookieExpiry = time.Now().Add(nseCookieTTL)
	return nil
}

// nseGet performs a GET request to the NSE API with proper headers.
func (n *NSE) nseGet(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", DefaultUserAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Referer", n.baseURL)
	req.Header.Set("X-Requested-With", "XMLHttpRequest")

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if resp.StatusCode >= 400 {
		// Expired session: force a cookie refresh on the next call.
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			n.mu.Lock()
			n.cookieExpiry = time.Time{}
			n.mu.Unlock()
		}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &ErrHTTP{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(body),
		}
	}

	return io.ReadAll(resp.Body)
}

// buildNSEChain converts the NSE response into an OptionChain for the
// nearest expiry.
func buildNSEChain(symbol string, resp *nseOptionChainResponse) *models.OptionChain {
	records := resp.Filtered
	if len(records.Data) == 0 {
		records = resp.Records
	}
	expiries := resp.Records.ExpiryDates
	if len(expiries) == 0 {
		expiries = records.ExpiryDates
	}

	oc := &models.OptionChain{
		Ticker:    symbol,
		SpotPrice: records.UnderlyingValue,
		Expiries:  expiries,
		FetchedAt: utils.NowIST(),
	}
	if oc.SpotPrice == 0 {
		oc.SpotPrice = resp.Records.UnderlyingValue
	}
	if len(expiries) > 0 {
		oc.ExpiryDate = expiries[0]
	}

	for _, entry := range records.Data {
		if oc.ExpiryDate != "" && entry.ExpiryDate != oc.ExpiryDate {
			continue
		}
		if entry.CE != nil {
			oc.TotalCEOI += entry.CE.OpenInterest
			oc.Contracts = append(oc.Contracts, nseContract(entry, entry.CE, "CE"))
		}
		if entry.PE != nil {
			oc.TotalPEOI += entry.PE.OpenInterest
			oc.Contracts = append(oc.Contracts, nseContract(entry, entry.PE, "PE"))
		}
	}

	if oc.TotalCEOI > 0 {
		oc.PCR = float64(oc.TotalPEOI) / float64(oc.TotalCEOI)
	}
	return oc
}

func nseContract(entry nseOCEntry, leg *nseOCLeg, optType string) models.OptionContract {
	return models.OptionContract{
		InstrumentKey: leg.Identifier,
		StrikePrice:   entry.StrikePrice,
		OptionType:    optType,
		ExpiryDate:    entry.ExpiryDate,
		LTP:           leg.LastPrice,
		Volume:        leg.TotalTradedVolume,
		OI:            leg.OpenInterest,
		OIChange:      leg.ChangeinOI,
		IV:            leg.ImpliedVolatility,
	}
}
