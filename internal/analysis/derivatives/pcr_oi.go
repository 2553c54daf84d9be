package derivatives

import (
	"fmt"

	"github.com/seenimoa/optionpulse/pkg/models"
	"github.com/seenimoa/optionpulse/pkg/utils"
)

// PCRAnalysis holds put-call ratio analysis results.
type PCRAnalysis struct {
	PCR            float64 `json:"pcr"`
	PCRByVolume    float64 `json:"pcr_by_volume"`
	Signal         string  `json:"signal"`
	Interpretation string  `json:"interpretation"`
}

// ComputePCR calculates PCR from option chain data.
func ComputePCR(oc *models.OptionChain) PCRAnalysis {
	if oc == nil || len(oc.Contracts) == 0 {
		return PCRAnalysis{}
	}

	var totalPutOI, totalCallOI int64
	var totalPutVol, totalCallVol int64

	for _, c := range oc.Contracts {
		if c.OptionType == "PE" {
			totalPutOI += c.OI
			totalPutVol += c.Volume
		} else if c.OptionType == "CE" {
			totalCallOI += c.OI
			totalCallVol += c.Volume
		}
	}

	a := PCRAnalysis{}

	if totalCallOI > 0 {
		a.PCR = float64(totalPutOI) / float64(totalCallOI)
	}
	if totalCallVol > 0 {
		a.PCRByVolume = float64(totalPutVol) / float64(totalCallVol)
	}

	switch {
	case a.PCR > 1.5:
		a.Signal = "strongly_bullish"
		a.Interpretation = "Very high PCR, heavy put writing shows strong support"
	case a.PCR > 1.2:
		a.Signal = "bullish"
		a.Interpretation = "High PCR, more puts sold, bullish undertone"
	case a.PCR > 0.8:
		a.Signal = "neutral"
		a.Interpretation = "PCR in normal range, no clear directional bias"
	case a.PCR > 0.5:
		a.Signal = "bearish"
		a.Interpretation = "Low PCR, more calls than puts, bearish sentiment"
	default:
		a.Signal = "strongly_bearish"
		a.Interpretation = "Very low PCR, excessive call buying, potential top"
	}

	return a
}

// SelectContract picks the ATM contract on the signal's side: calls for CE,
// puts for PE. The second result is false when the chain has no such contract.
func SelectContract(oc *models.OptionChain, dir models.Direction) (models.OptionContract, bool) {
	if oc == nil || !dir.IsSet() {
		return models.OptionContract{}, false
	}
	atm := findATMStrike(oc.Contracts, oc.SpotPrice)
	for _, c := range oc.Contracts {
		if c.StrikePrice == atm && c.OptionType == string(dir) {
			return c, true
		}
	}
	return models.OptionContract{}, false
}

// ContractLabel names a contract the way traders quote it, e.g. "NIFTY 24500 CE".
func ContractLabel(symbol string, c models.OptionContract) string {
	return fmt.Sprintf("%s %.0f %s", symbol, c.StrikePrice, c.OptionType)
}

// SuggestedLabel names the ATM contract from spot alone when no chain is available.
func SuggestedLabel(symbol string, spot float64, dir models.Direction) string {
	inst, ok := utils.LookupInstrument(symbol)
	if !ok || !dir.IsSet() {
		return ""
	}
	return fmt.Sprintf("%s %.0f %s", inst.Symbol, utils.RoundToStrike(spot, inst.StrikeStep), dir)
}

// ContextNotes summarizes the chain for an alert on the given side.
func ContextNotes(oc *models.OptionChain, dir models.Direction) []string {
	a := AnalyzeOptionChain(oc)
	if a.ATMStrike == 0 {
		return nil
	}

	notes := []string{
		fmt.Sprintf("PCR %.2f (%s), max pain %.0f", a.PCR, a.Sentiment, a.MaxPain),
	}
	switch dir {
	case models.DirectionCE:
		if a.OISRLevels.MaxCallOIStrike > 0 {
			notes = append(notes, fmt.Sprintf("Resistance at %.0f (highest call OI)", a.OISRLevels.MaxCallOIStrike))
		}
	case models.DirectionPE:
		if a.OISRLevels.MaxPutOIStrike > 0 {
			notes = append(notes, fmt.Sprintf("Support at %.0f (highest put OI)", a.OISRLevels.MaxPutOIStrike))
		}
	}
	if c, ok := SelectContract(oc, dir); ok && c.OIChange != 0 {
		sign := "+"
		if c.OIChange < 0 {
			sign = "-"
		}
		notes = append(notes, fmt.Sprintf("ATM %s OI %s%s today", c.OptionType, sign, utils.FormatVolume(abs64(c.OIChange))))
	}
	return notes
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
