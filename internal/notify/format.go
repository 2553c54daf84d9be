package notify

import (
	"fmt"
	"strings"

	"github.com/seenimoa/optionpulse/pkg/models"
	"github.com/seenimoa/optionpulse/pkg/utils"
)

// Format renders an alert as a plain-text chat message.
func Format(a models.Alert) string {
	var b strings.Builder

	b.WriteString(header(a))
	b.WriteByte('\n')

	switch a.Kind {
	case models.AlertNewSignal, models.AlertReversal:
		fmt.Fprintf(&b, "Spot: %s\n", utils.FormatPrice(a.Price))
		if a.Target > 0 {
			fmt.Fprintf(&b, "Target: %s | SL: %s\n", utils.FormatPrice(a.Target), utils.FormatPrice(a.StopLoss))
		}
		if a.Score > 0 {
			fmt.Fprintf(&b, "Strength: %d/100\n", a.Score)
		}
		for _, r := range a.Reasons {
			fmt.Fprintf(&b, "• %s\n", r)
		}
		if a.Contract != "" {
			fmt.Fprintf(&b, "Option: %s\n", a.Contract)
		}
	default:
		fmt.Fprintf(&b, "Spot: %s (%s)\n", utils.FormatPrice(a.Price), utils.FormatPoints(a.PnLPoints))
		if a.Target > 0 && a.Kind == models.AlertProgress {
			fmt.Fprintf(&b, "Target: %s | SL: %s\n", utils.FormatPrice(a.Target), utils.FormatPrice(a.StopLoss))
		}
		if a.Contract != "" {
			fmt.Fprintf(&b, "Option: %s\n", a.Contract)
		}
		for _, r := range a.Reasons {
			fmt.Fprintf(&b, "• %s\n", r)
		}
	}

	if len(a.Context) > 0 {
		b.WriteByte('\n')
		for _, c := range a.Context {
			b.WriteString(c)
			b.WriteByte('\n')
		}
	}

	fmt.Fprintf(&b, "🕒 %s IST", utils.FormatTimeIST(a.Time))
	return b.String()
}

func header(a models.Alert) string {
	side := string(a.Direction)
	tf := ""
	if a.Timeframe != "" {
		tf = " (" + string(a.Timeframe) + ")"
	}

	switch a.Kind {
	case models.AlertNewSignal:
		icon := "🟢"
		if a.Direction == models.DirectionPE {
			icon = "🔴"
		}
		return fmt.Sprintf("%s %s %s SIGNAL%s", icon, a.Symbol, side, tf)
	case models.AlertReversal:
		return fmt.Sprintf("🔄 %s REVERSAL → %s%s", a.Symbol, side, tf)
	case models.AlertProgress:
		return fmt.Sprintf("📈 %s %s PROGRESS", a.Symbol, side)
	case models.AlertTarget:
		return fmt.Sprintf("🎯 %s %s TARGET HIT", a.Symbol, side)
	case models.AlertStopLoss:
		return fmt.Sprintf("🛑 %s %s STOP-LOSS HIT", a.Symbol, side)
	case models.AlertExit:
		return fmt.Sprintf("🚪 %s %s EXIT", a.Symbol, side)
	}
	return fmt.Sprintf("ℹ️ %s %s", a.Symbol, a.Kind)
}
