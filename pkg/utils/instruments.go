package utils

import (
	"math"
	"sort"
	"strings"

	"github.com/seenimoa/optionpulse/pkg/models"
)

// Common NSE ticker aliases and normalizations.
var tickerAliases = map[string]string{
	"NIFTY":      "NIFTY",
	"NIFTY50":    "NIFTY",
	"NIFTY 50":   "NIFTY",
	"BANKNIFTY":  "BANKNIFTY",
	"NIFTYBANK":  "BANKNIFTY",
	"NIFTY BANK": "BANKNIFTY",
	"FINNIFTY":   "FINNIFTY",
	"NIFTY FIN":  "FINNIFTY",
	"SENSEX":     "SENSEX",
	"RELIANCE":   "RELIANCE",
	"RIL":        "RELIANCE",
	"HDFCBANK":   "HDFCBANK",
	"HDFC BANK":  "HDFCBANK",
	"ICICIBANK":  "ICICIBANK",
	"ICICI BANK": "ICICIBANK",
	"INFOSYS":    "INFY",
	"INFY":       "INFY",
	"TCS":        "TCS",
	"SBIN":       "SBIN",
	"SBI":        "SBIN",
}

// F&O underlyings tracked by the scanner, keyed by canonical symbol.
var instruments = map[string]models.Instrument{
	"NIFTY":     {Symbol: "NIFTY", InstrumentKey: "NSE_INDEX|Nifty 50", LotSize: 75, StrikeStep: 50, IsIndex: true},
	"BANKNIFTY": {Symbol: "BANKNIFTY", InstrumentKey: "NSE_INDEX|Nifty Bank", LotSize: 35, StrikeStep: 100, IsIndex: true},
	"FINNIFTY":  {Symbol: "FINNIFTY", InstrumentKey: "NSE_INDEX|Nifty Fin Service", LotSize: 65, StrikeStep: 50, IsIndex: true},
	"SENSEX":    {Symbol: "SENSEX", InstrumentKey: "BSE_INDEX|SENSEX", LotSize: 20, StrikeStep: 100, IsIndex: true},
	"RELIANCE":  {Symbol: "RELIANCE", InstrumentKey: "NSE_EQ|INE002A01018", LotSize: 500, StrikeStep: 10},
	"HDFCBANK":  {Symbol: "HDFCBANK", InstrumentKey: "NSE_EQ|INE040A01034", LotSize: 550, StrikeStep: 10},
	"ICICIBANK": {Symbol: "ICICIBANK", InstrumentKey: "NSE_EQ|INE090A01021", LotSize: 700, StrikeStep: 10},
	"INFY":      {Symbol: "INFY", InstrumentKey: "NSE_EQ|INE009A01021", LotSize: 400, StrikeStep: 20},
	"TCS":       {Symbol: "TCS", InstrumentKey: "NSE_EQ|INE467B01029", LotSize: 175, StrikeStep: 20},
	"SBIN":      {Symbol: "SBIN", InstrumentKey: "NSE_EQ|INE062A01020", LotSize: 750, StrikeStep: 5},
}

// Yahoo Finance symbols for the tracked indices.
var yfIndexTickers = map[string]string{
	"NIFTY":     "^NSEI",
	"BANKNIFTY": "^NSEBANK",
	"FINNIFTY":  "NIFTY_FIN_SERVICE.NS",
	"SENSEX":    "^BSESN",
}

// NormalizeTicker normalizes a user-input ticker to the canonical symbol.
// It handles aliases, uppercasing, and whitespace.
func NormalizeTicker(ticker string) string {
	ticker = strings.TrimSpace(strings.ToUpper(ticker))

	// Remove $ prefix if present (common in chat)
	ticker = strings.TrimPrefix(ticker, "$")

	if canonical, ok := tickerAliases[ticker]; ok {
		return canonical
	}
	return ticker
}

// LookupInstrument returns the instrument definition for a ticker or alias.
func LookupInstrument(ticker string) (models.Instrument, bool) {
	inst, ok := instruments[NormalizeTicker(ticker)]
	return inst, ok
}

// SymbolForKey maps an Upstox instrument key back to its canonical symbol.
func SymbolForKey(key string) (string, bool) {
	for sym, inst := range instruments {
		if inst.InstrumentKey == key {
			return sym, true
		}
	}
	return "", false
}

// KnownSymbols returns every tracked symbol in sorted order.
func KnownSymbols() []string {
	out := make([]string, 0, len(instruments))
	for sym := range instruments {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// ToYFinanceTicker converts an NSE ticker to Yahoo Finance format by appending .NS.
// Index tickers are converted to their Yahoo Finance format (^NSEI, ^NSEBANK, etc.).
func ToYFinanceTicker(ticker string) string {
	ticker = NormalizeTicker(ticker)

	if yf, ok := yfIndexTickers[ticker]; ok {
		return yf
	}

	// Already has .NS suffix
	if strings.HasSuffix(ticker, ".NS") || strings.HasSuffix(ticker, ".BO") {
		return ticker
	}

	return ticker + ".NS"
}

// ToKiteInstrument converts a ticker to the "EXCHANGE:TRADINGSYMBOL" form used by Kite quotes.
func ToKiteInstrument(ticker string) string {
	switch sym := NormalizeTicker(ticker); sym {
	case "NIFTY":
		return "NSE:NIFTY 50"
	case "BANKNIFTY":
		return "NSE:NIFTY BANK"
	case "FINNIFTY":
		return "NSE:NIFTY FIN SERVICE"
	case "SENSEX":
		return "BSE:SENSEX"
	default:
		return "NSE:" + sym
	}
}

// IsIndex checks if the ticker is an index (not a stock).
func IsIndex(ticker string) bool {
	inst, ok := LookupInstrument(ticker)
	return ok && inst.IsIndex
}

// RoundToStrike rounds price to the nearest multiple of step.
func RoundToStrike(price, step float64) float64 {
	if step <= 0 {
		return price
	}
	return math.Round(price/step) * step
}
