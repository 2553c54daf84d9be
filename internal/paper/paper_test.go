package paper

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/optionpulse/pkg/models"
	"github.com/seenimoa/optionpulse/pkg/utils"
)

var t0 = time.Date(2026, 2, 19, 10, 0, 0, 0, utils.IST)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := NewLedger(filepath.Join(t.TempDir(), "nested", "paper.db"))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func trade(id string, dir models.Direction, opened time.Time) models.VirtualTrade {
	return models.VirtualTrade{
		ID:            id,
		Symbol:        "NIFTY",
		InstrumentKey: "NSE_INDEX|Nifty 50",
		Direction:     dir,
		Timeframe:     models.Timeframe5Min,
		EntryPrice:    25000,
		Target:        25100,
		StopLoss:      24950,
		Quantity:      75,
		Contract:      "NIFTY 25000 CE",
		Score:         72,
		OpenedAt:      opened,
	}
}

// ── Charges ──

func TestRoundTripCharges(t *testing.T) {
	c := RoundTripCharges(models.DirectionCE, 25000, 25100, 75)

	assert.Equal(t, "40", c.Brokerage.String(), "both legs hit the ₹20 cap")
	assert.Equal(t, "1176.5625", c.STT.String())
	assert.Equal(t, "56.25", c.StampDuty.String())
	assert.Equal(t, "1437.41", c.Total.StringFixed(2))
}

func TestRoundTripChargesShortSwapsLegs(t *testing.T) {
	short := RoundTripCharges(models.DirectionPE, 25000, 24900, 75)
	long := RoundTripCharges(models.DirectionCE, 24900, 25000, 75)
	assert.True(t, short.Total.Equal(long.Total))
	assert.True(t, short.STT.Equal(long.STT))
}

func TestRoundTripChargesSmallOrder(t *testing.T) {
	c := RoundTripCharges(models.DirectionCE, 100, 110, 1)
	assert.Equal(t, "0.063", c.Brokerage.String(), "below the cap brokerage is 0.03%")
}

// ── Ledger ──

func TestOpenAndCloseTrade(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	id, err := l.Open(ctx, trade("t1", models.DirectionCE, t0))
	require.NoError(t, err)
	assert.Equal(t, "t1", id)

	open, err := l.OpenTrades(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, models.TradeOpen, open[0].Status)
	assert.True(t, open[0].OpenedAt.Equal(t0))
	assert.Equal(t, models.Timeframe5Min, open[0].Timeframe)

	require.NoError(t, l.CloseTrade(ctx, "t1", 25100, models.ExitTarget, t0.Add(10*time.Minute)))
	assert.ErrorIs(t, l.CloseTrade(ctx, "t1", 25100, models.ExitTarget, t0), ErrTradeNotFound)
	assert.ErrorIs(t, l.CloseTrade(ctx, "missing", 1, models.ExitTarget, t0), ErrTradeNotFound)

	recs, err := l.Trades(ctx, 0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	r := recs[0]
	assert.Equal(t, models.TradeClosed, r.Status)
	assert.Equal(t, models.ExitTarget, r.ExitReason)
	assert.Equal(t, 25100.0, r.ExitPrice)
	assert.InDelta(t, 100, r.Points, 1e-9)
	assert.InDelta(t, 7500, r.GrossPnL, 1e-9)
	assert.InDelta(t, 1437.41, r.Charges, 1e-9)
	assert.InDelta(t, 6062.59, r.NetPnL, 1e-9)
	assert.True(t, r.ClosedAt.Equal(t0.Add(10*time.Minute)))
}

func TestMarkProgressSurvivesReload(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	_, err := l.Open(ctx, trade("t1", models.DirectionCE, t0))
	require.NoError(t, err)
	require.NoError(t, l.MarkProgress(ctx, "t1"))

	open, err := l.OpenTrades(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.True(t, open[0].ProgressSent)

	require.NoError(t, l.CloseTrade(ctx, "t1", 25000, models.ExitSquareOff, t0))
	assert.ErrorIs(t, l.MarkProgress(ctx, "t1"), ErrTradeNotFound)
}

func TestOpenAssignsID(t *testing.T) {
	l := newTestLedger(t)
	id, err := l.Open(context.Background(), trade("", models.DirectionCE, t0))
	require.NoError(t, err)
	assert.NotEmpty(t, id)
}

func TestTradesNewestFirstAndLimit(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	for i, id := range []string{"a", "b", "c"} {
		_, err := l.Open(ctx, trade(id, models.DirectionCE, t0.Add(time.Duration(i)*time.Minute)))
		require.NoError(t, err)
	}

	recs, err := l.Trades(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "c", recs[0].ID)
	assert.Equal(t, "b", recs[1].ID)
}

func TestTradesOn(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	_, err := l.Open(ctx, trade("today", models.DirectionCE, t0))
	require.NoError(t, err)
	_, err = l.Open(ctx, trade("yesterday", models.DirectionCE, t0.AddDate(0, 0, -1)))
	require.NoError(t, err)

	recs, err := l.TradesOn(ctx, t0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "today", recs[0].ID)
}

func TestSummary(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	_, err := l.Open(ctx, trade("win", models.DirectionCE, t0))
	require.NoError(t, err)
	_, err = l.Open(ctx, trade("loss", models.DirectionPE, t0.Add(time.Minute)))
	require.NoError(t, err)
	_, err = l.Open(ctx, trade("open", models.DirectionCE, t0.Add(2*time.Minute)))
	require.NoError(t, err)

	require.NoError(t, l.CloseTrade(ctx, "win", 25100, models.ExitTarget, t0.Add(time.Hour)))
	require.NoError(t, l.CloseTrade(ctx, "loss", 25050, models.ExitStopLoss, t0.Add(time.Hour)))

	s, err := l.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Trades)
	assert.Equal(t, 1, s.Open)
	assert.Equal(t, 1, s.Wins)
	assert.Equal(t, 1, s.Losses)
	assert.Equal(t, 50.0, s.WinRatePct)
	assert.InDelta(t, 7500-3750, s.GrossPnL, 1e-9)
	assert.InDelta(t, s.GrossPnL-s.Charges, s.NetPnL, 1e-6)
}

func TestSummarizeEmpty(t *testing.T) {
	assert.Equal(t, models.PnLSummary{}, Summarize(nil))
}

func TestExportCSV(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	_, err := l.Open(ctx, trade("t1", models.DirectionCE, t0))
	require.NoError(t, err)
	require.NoError(t, l.CloseTrade(ctx, "t1", 24950, models.ExitStopLoss, t0.Add(time.Minute)))

	var buf bytes.Buffer
	require.NoError(t, l.ExportCSV(ctx, &buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "id,symbol,direction"))
	assert.Contains(t, lines[1], "t1,NIFTY,CE")
	assert.Contains(t, lines[1], "STOPLOSS")
	assert.Contains(t, lines[1], "2026-02-19 10:01:00")
}
