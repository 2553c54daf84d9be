package models

import "time"

// OptionChain represents the option chain for an underlying on one expiry date.
type OptionChain struct {
	Ticker     string           `json:"ticker"`
	SpotPrice  float64          `json:"spot_price"`
	ExpiryDate string           `json:"expiry_date"`
	Expiries   []string         `json:"expiries,omitempty"` // all available expiry dates
	Contracts  []OptionContract `json:"contracts"`
	TotalCEOI  int64            `json:"total_ce_oi"`
	TotalPEOI  int64            `json:"total_pe_oi"`
	PCR        float64          `json:"pcr"` // Put-Call Ratio
	MaxPain    float64          `json:"max_pain"`
	FetchedAt  time.Time        `json:"fetched_at"`
}

// OptionContract represents a single option contract (CE or PE) at a strike.
type OptionContract struct {
	InstrumentKey string  `json:"instrument_key,omitempty"`
	StrikePrice   float64 `json:"strike_price"`
	OptionType    string  `json:"option_type"` // "CE" or "PE"
	ExpiryDate    string  `json:"expiry_date"`
	LTP           float64 `json:"ltp"` // Last Traded Price
	Volume        int64   `json:"volume"`
	OI            int64   `json:"oi"` // Open Interest
	OIChange      int64   `json:"oi_change"`
	IV            float64 `json:"iv"` // Implied Volatility
	Delta         float64 `json:"delta,omitempty"`
}
