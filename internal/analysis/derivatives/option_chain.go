// Package derivatives reads option-chain context for a directional alert:
// ATM strike, PCR, max pain and OI-based support/resistance.
package derivatives

import (
	"math"
	"sort"

	"github.com/seenimoa/optionpulse/pkg/models"
)

// OptionChainAnalysis holds derived insights from the option chain.
type OptionChainAnalysis struct {
	Ticker     string       `json:"ticker"`
	SpotPrice  float64      `json:"spot_price"`
	PCR        float64      `json:"pcr"`
	MaxPain    float64      `json:"max_pain"`
	IVSkew     float64      `json:"iv_skew"` // ATM IV difference (PE-CE)
	ATMStrike  float64      `json:"atm_strike"`
	ATMIV      float64      `json:"atm_iv"` // average ATM IV
	OISRLevels OISupportRes `json:"oi_sr_levels"`
	Sentiment  string       `json:"sentiment"` // "bullish", "bearish", "neutral"
}

// OISupportRes contains OI-based support and resistance levels.
type OISupportRes struct {
	MaxPutOIStrike  float64   `json:"max_put_oi_strike"`  // strongest support
	MaxCallOIStrike float64   `json:"max_call_oi_strike"` // strongest resistance
	TopPutStrikes   []float64 `json:"top_put_strikes"`    // top 3 support levels
	TopCallStrikes  []float64 `json:"top_call_strikes"`   // top 3 resistance levels
}

// AnalyzeOptionChain performs the context analysis on an option chain.
// PCR and max pain are computed from contracts when the chain does not carry them.
func AnalyzeOptionChain(oc *models.OptionChain) OptionChainAnalysis {
	if oc == nil || len(oc.Contracts) == 0 {
		return OptionChainAnalysis{}
	}

	a := OptionChainAnalysis{
		Ticker:    oc.Ticker,
		SpotPrice: oc.SpotPrice,
		PCR:       oc.PCR,
		MaxPain:   oc.MaxPain,
	}
	if a.PCR == 0 {
		a.PCR = ComputePCR(oc).PCR
	}
	if a.MaxPain == 0 {
		a.MaxPain = ComputeMaxPain(oc.Contracts)
	}

	a.ATMStrike = findATMStrike(oc.Contracts, oc.SpotPrice)

	// IV analysis.
	var atmCEIV, atmPEIV float64
	for _, c := range oc.Contracts {
		if c.StrikePrice == a.ATMStrike {
			if c.OptionType == "CE" {
				atmCEIV = c.IV
			} else {
				atmPEIV = c.IV
			}
		}
	}
	if atmCEIV > 0 && atmPEIV > 0 {
		a.ATMIV = (atmCEIV + atmPEIV) / 2
		a.IVSkew = atmPEIV - atmCEIV
	}

	a.OISRLevels = computeOISR(oc.Contracts)

	// Sentiment from PCR.
	switch {
	case a.PCR > 1.2:
		a.Sentiment = "bullish" // high PCR → more puts sold → bullish
	case a.PCR < 0.7:
		a.Sentiment = "bearish"
	default:
		a.Sentiment = "neutral"
	}

	return a
}

// ComputeMaxPain calculates the max pain strike from option contracts.
func ComputeMaxPain(contracts []models.OptionContract) float64 {
	if len(contracts) == 0 {
		return 0
	}

	ceOI := map[float64]int64{}
	peOI := map[float64]int64{}
	strikeSet := map[float64]bool{}
	for _, c := range contracts {
		strikeSet[c.StrikePrice] = true
		if c.OptionType == "CE" {
			ceOI[c.StrikePrice] += c.OI
		} else {
			peOI[c.StrikePrice] += c.OI
		}
	}

	strikes := make([]float64, 0, len(strikeSet))
	for s := range strikeSet {
		strikes = append(strikes, s)
	}
	sort.Float64s(strikes)

	// Max pain = strike that minimizes total pain (option buyers' payout).
	minPain := math.MaxFloat64
	maxPainStrike := 0.0

	for _, expiry := range strikes {
		totalPain := 0.0
		for _, s := range strikes {
			if s < expiry {
				totalPain += (expiry - s) * float64(ceOI[s])
			}
			if s > expiry {
				totalPain += (s - expiry) * float64(peOI[s])
			}
		}
		if totalPain < minPain {
			minPain = totalPain
			maxPainStrike = expiry
		}
	}

	return maxPainStrike
}

// --- helpers ---

func findATMStrike(contracts []models.OptionContract, spot float64) float64 {
	if len(contracts) == 0 || spot <= 0 {
		return 0
	}

	closest := contracts[0].StrikePrice
	minDiff := math.Abs(closest - spot)

	for _, c := range contracts {
		diff := math.Abs(c.StrikePrice - spot)
		if diff < minDiff || (diff == minDiff && c.StrikePrice < closest) {
			minDiff = diff
			closest = c.StrikePrice
		}
	}

	return closest
}

type oiEntry struct {
	strike float64
	oi     int64
}

func computeOISR(contracts []models.OptionContract) OISupportRes {
	ceMap := map[float64]int64{}
	peMap := map[float64]int64{}
	for _, c := range contracts {
		if c.OptionType == "CE" {
			ceMap[c.StrikePrice] += c.OI
		} else {
			peMap[c.StrikePrice] += c.OI
		}
	}

	sr := OISupportRes{}
	ce := rankByOI(ceMap)
	pe := rankByOI(peMap)

	if len(ce) > 0 {
		sr.MaxCallOIStrike = ce[0].strike
		for i := 0; i < 3 && i < len(ce); i++ {
			sr.TopCallStrikes = append(sr.TopCallStrikes, ce[i].strike)
		}
	}
	if len(pe) > 0 {
		sr.MaxPutOIStrike = pe[0].strike
		for i := 0; i < 3 && i < len(pe); i++ {
			sr.TopPutStrikes = append(sr.TopPutStrikes, pe[i].strike)
		}
	}

	return sr
}

// rankByOI sorts strikes by OI descending, breaking ties by strike.
func rankByOI(m map[float64]int64) []oiEntry {
	out := make([]oiEntry, 0, len(m))
	for s, oi := range m {
		out = append(out, oiEntry{s, oi})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].oi != out[j].oi {
			return out[i].oi > out[j].oi
		}
		return out[i].strike < out[j].strike
	})
	return out
}
