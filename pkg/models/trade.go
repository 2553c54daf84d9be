package models

import "time"

// TradeStatus is the lifecycle state of a virtual trade.
type TradeStatus string

const (
	TradeOpen   TradeStatus = "OPEN"
	TradeClosed TradeStatus = "CLOSED"
)

// ExitReason records why a virtual trade was closed.
type ExitReason string

const (
	ExitTarget    ExitReason = "TARGET"
	ExitStopLoss  ExitReason = "STOPLOSS"
	ExitReversal  ExitReason = "REVERSAL"
	ExitSquareOff ExitReason = "SQUARE_OFF"
)

// VirtualTrade is a simulated position opened from an alert and tracked
// against live prices of its underlying. CE trades are long the underlying,
// PE trades are short it.
type VirtualTrade struct {
	ID            string      `json:"id"`
	Symbol        string      `json:"symbol"`
	InstrumentKey string      `json:"instrument_key"`
	Direction     Direction   `json:"direction"`
	Timeframe     Timeframe   `json:"timeframe"`
	EntryPrice    float64     `json:"entry_price"`
	Target        float64     `json:"target"`
	StopLoss      float64     `json:"stop_loss"`
	Quantity      int         `json:"quantity"`           // underlying units (lots × lot size)
	Contract      string      `json:"contract,omitempty"` // suggested option, e.g. "NIFTY 24500 CE"
	Score         int         `json:"score"`
	OpenedAt      time.Time   `json:"opened_at"`
	Status        TradeStatus `json:"status"`
	ExitPrice     float64     `json:"exit_price,omitempty"`
	ExitReason    ExitReason  `json:"exit_reason,omitempty"`
	ClosedAt      time.Time   `json:"closed_at,omitempty"`
	ProgressSent  bool        `json:"progress_sent"`
}

// PnLPoints returns the favourable move from entry to price, in underlying points.
func (t *VirtualTrade) PnLPoints(price float64) float64 {
	if t.Direction == DirectionPE {
		return t.EntryPrice - price
	}
	return price - t.EntryPrice
}

// Progress returns how far price has travelled from entry toward target, as a
// fraction of the full entry→target distance. Adverse moves are negative.
func (t *VirtualTrade) Progress(price float64) float64 {
	dist := t.Target - t.EntryPrice
	if t.Direction == DirectionPE {
		dist = t.EntryPrice - t.Target
	}
	if dist <= 0 {
		return 0
	}
	return t.PnLPoints(price) / dist
}

// TargetHit reports whether price has reached or crossed the target.
func (t *VirtualTrade) TargetHit(price float64) bool {
	if t.Direction == DirectionPE {
		return price <= t.Target
	}
	return price >= t.Target
}

// StopHit reports whether price has reached or crossed the stop-loss.
func (t *VirtualTrade) StopHit(price float64) bool {
	if t.Direction == DirectionPE {
		return price >= t.StopLoss
	}
	return price <= t.StopLoss
}

// PnLSummary aggregates closed paper-trade results.
type PnLSummary struct {
	Trades     int     `json:"trades"`
	Open       int     `json:"open"`
	Wins       int     `json:"wins"`
	Losses     int     `json:"losses"`
	WinRatePct float64 `json:"win_rate_pct"`
	GrossPnL   float64 `json:"gross_pnl"`
	Charges    float64 `json:"charges"`
	NetPnL     float64 `json:"net_pnl"`
}
