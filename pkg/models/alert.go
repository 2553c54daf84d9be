package models

import "time"

// AlertKind classifies an outbound alert.
type AlertKind string

const (
	AlertNewSignal AlertKind = "NEW_SIGNAL"
	AlertReversal  AlertKind = "REVERSAL"
	AlertProgress  AlertKind = "PROGRESS"
	AlertTarget    AlertKind = "TARGET"
	AlertStopLoss  AlertKind = "STOPLOSS"
	AlertExit      AlertKind = "EXIT" // closed by reversal or square-off
)

// IsEntry reports whether the alert opens a new view (as opposed to managing one).
func (k AlertKind) IsEntry() bool { return k == AlertNewSignal || k == AlertReversal }

// Alert is a human-facing notification produced by the scanner or the monitor.
type Alert struct {
	ID        string    `json:"id"`
	Kind      AlertKind `json:"kind"`
	Symbol    string    `json:"symbol"`
	Direction Direction `json:"direction"`
	Timeframe Timeframe `json:"timeframe,omitempty"`
	Price     float64   `json:"price"`
	Target    float64   `json:"target,omitempty"`
	StopLoss  float64   `json:"stop_loss,omitempty"`
	Score     int       `json:"score,omitempty"`
	Reasons   []string  `json:"reasons,omitempty"`
	Contract  string    `json:"contract,omitempty"`
	TradeID   string    `json:"trade_id,omitempty"`
	PnLPoints float64   `json:"pnl_points,omitempty"`
	Context   []string  `json:"context,omitempty"` // option-chain notes, headlines
	Time      time.Time `json:"time"`
}
