package paper

import (
	"github.com/shopspring/decimal"

	"github.com/seenimoa/optionpulse/pkg/models"
)

// Charges is the breakdown of Indian F&O transaction costs for one round trip.
type Charges struct {
	Brokerage   decimal.Decimal `json:"brokerage"`
	STT         decimal.Decimal `json:"stt"`
	ExchangeTxn decimal.Decimal `json:"exchange_txn"`
	SEBICharges decimal.Decimal `json:"sebi_charges"`
	StampDuty   decimal.Decimal `json:"stamp_duty"`
	GST         decimal.Decimal `json:"gst"`
	Total       decimal.Decimal `json:"total"`
}

var (
	brokeragePct = decimal.RequireFromString("0.0003")   // 0.03% per order
	brokerageCap = decimal.NewFromInt(20)                // or ₹20, whichever is lower
	sttSellPct   = decimal.RequireFromString("0.000625") // on the sell leg
	stampBuyPct  = decimal.RequireFromString("0.00003")  // on the buy leg
	exchangePct  = decimal.RequireFromString("0.0000345")
	sebiPct      = decimal.RequireFromString("0.000001") // ₹10 per crore
	gstPct       = decimal.RequireFromString("0.18")
)

// RoundTripCharges computes the costs of an intraday F&O round trip on the
// underlying notional. CE trades buy at entry and sell at exit; PE trades
// sell at entry and buy back at exit.
func RoundTripCharges(dir models.Direction, entry, exit float64, qty int) Charges {
	buyPrice, sellPrice := entry, exit
	if dir == models.DirectionPE {
		buyPrice, sellPrice = exit, entry
	}

	q := decimal.NewFromInt(int64(qty))
	buyValue := decimal.NewFromFloat(buyPrice).Mul(q)
	sellValue := decimal.NewFromFloat(sellPrice).Mul(q)
	turnover := buyValue.Add(sellValue)

	var c Charges
	buyBrok := decimal.Min(buyValue.Mul(brokeragePct), brokerageCap)
	sellBrok := decimal.Min(sellValue.Mul(brokeragePct), brokerageCap)
	c.Brokerage = buyBrok.Add(sellBrok)
	c.STT = sellValue.Mul(sttSellPct)
	c.StampDuty = buyValue.Mul(stampBuyPct)
	c.ExchangeTxn = turnover.Mul(exchangePct)
	c.SEBICharges = turnover.Mul(sebiPct)
	c.GST = c.Brokerage.Add(c.ExchangeTxn).Add(c.SEBICharges).Mul(gstPct)

	c.Total = c.Brokerage.Add(c.STT).Add(c.ExchangeTxn).
		Add(c.SEBICharges).Add(c.StampDuty).Add(c.GST).Round(2)
	return c
}
