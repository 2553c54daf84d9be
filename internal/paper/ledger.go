// Package paper records virtual trades in a SQLite ledger and reports
// paper-trading P&L net of Indian F&O charges.
package paper

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/seenimoa/optionpulse/pkg/models"
	"github.com/seenimoa/optionpulse/pkg/utils"
)

// tsLayout stores IST timestamps with fixed-width fractions so they sort as text.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrTradeNotFound is returned when closing a trade that is not open in the ledger.
var ErrTradeNotFound = errors.New("paper trade not found")

// Ledger persists paper trades.
type Ledger struct {
	db *sql.DB
}

// NewLedger opens (or creates) the ledger database at path. Use ":memory:"
// for a throwaway ledger.
func NewLedger(path string) (*Ledger, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("mkdir ledger dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	l := &Ledger{db: db}
	if err := l.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return l, nil
}

// Close closes the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) migrate() error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`CREATE TABLE IF NOT EXISTS trades (
			id TEXT PRIMARY KEY,
			symbol TEXT NOT NULL,
			instrument_key TEXT NOT NULL DEFAULT '',
			direction TEXT NOT NULL,
			timeframe TEXT NOT NULL DEFAULT '',
			contract TEXT NOT NULL DEFAULT '',
			score INTEGER NOT NULL DEFAULT 0,
			entry_price REAL NOT NULL,
			target REAL NOT NULL,
			stop_loss REAL NOT NULL,
			qty INTEGER NOT NULL DEFAULT 0,
			opened_at TEXT NOT NULL,
			exit_price REAL,
			exit_reason TEXT,
			closed_at TEXT,
			pnl_points REAL,
			pnl_gross REAL,
			charges REAL,
			pnl_net REAL,
			status TEXT NOT NULL,
			progress_sent INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS idx_trades_status ON trades(status);`,
		`CREATE INDEX IF NOT EXISTS idx_trades_opened ON trades(opened_at);`,
	}
	for _, stmt := range stmts {
		if _, err := l.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Open records a newly opened trade and returns its ID.
func (l *Ledger) Open(ctx context.Context, t models.VirtualTrade) (string, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.OpenedAt.IsZero() {
		t.OpenedAt = utils.NowIST()
	}
	_, err := l.db.ExecContext(ctx, `INSERT INTO trades
		(id, symbol, instrument_key, direction, timeframe, contract, score,
		 entry_price, target, stop_loss, qty, opened_at, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Symbol, t.InstrumentKey, string(t.Direction), string(t.Timeframe), t.Contract, t.Score,
		t.EntryPrice, t.Target, t.StopLoss, t.Quantity, t.OpenedAt.In(utils.IST).Format(tsLayout), string(models.TradeOpen))
	if err != nil {
		return "", fmt.Errorf("insert trade %s: %w", t.ID, err)
	}
	return t.ID, nil
}

// CloseTrade marks an open trade closed and books its P&L and charges.
func (l *Ledger) CloseTrade(ctx context.Context, id string, price float64, reason models.ExitReason, at time.Time) error {
	var (
		dir   string
		entry float64
		qty   int
	)
	err := l.db.QueryRowContext(ctx,
		`SELECT direction, entry_price, qty FROM trades WHERE id = ? AND status = ?`,
		id, string(models.TradeOpen)).Scan(&dir, &entry, &qty)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrTradeNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("load trade %s: %w", id, err)
	}

	t := models.VirtualTrade{Direction: models.Direction(dir), EntryPrice: entry}
	points := decimal.NewFromFloat(t.PnLPoints(price))
	gross := points.Mul(decimal.NewFromInt(int64(qty))).Round(2)
	charges := RoundTripCharges(t.Direction, entry, price, qty).Total
	net := gross.Sub(charges)

	_, err = l.db.ExecContext(ctx, `UPDATE trades SET
		exit_price = ?, exit_reason = ?, closed_at = ?,
		pnl_points = ?, pnl_gross = ?, charges = ?, pnl_net = ?, status = ?
		WHERE id = ? AND status = ?`,
		price, string(reason), at.In(utils.IST).Format(tsLayout),
		points.Round(2).InexactFloat64(), gross.InexactFloat64(), charges.InexactFloat64(), net.InexactFloat64(),
		string(models.TradeClosed), id, string(models.TradeOpen))
	if err != nil {
		return fmt.Errorf("close trade %s: %w", id, err)
	}
	return nil
}

// MarkProgress records that the progress alert went out for an open trade,
// so a restart does not repeat it.
func (l *Ledger) MarkProgress(ctx context.Context, id string) error {
	res, err := l.db.ExecContext(ctx, `UPDATE trades SET progress_sent = 1 WHERE id = ? AND status = ?`,
		id, string(models.TradeOpen))
	if err != nil {
		return fmt.Errorf("mark progress %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrTradeNotFound, id)
	}
	return nil
}

// Record is one ledger row.
type Record struct {
	models.VirtualTrade
	Points   float64 `json:"pnl_points"`
	GrossPnL float64 `json:"gross_pnl"`
	Charges  float64 `json:"charges"`
	NetPnL   float64 `json:"net_pnl"`
}

const selectTrades = `SELECT id, symbol, instrument_key, direction, timeframe, contract, score,
	entry_price, target, stop_loss, qty, opened_at,
	exit_price, exit_reason, closed_at, pnl_points, pnl_gross, charges, pnl_net, status, progress_sent
	FROM trades`

// OpenTrades returns every trade still open, oldest first.
func (l *Ledger) OpenTrades(ctx context.Context) ([]Record, error) {
	return l.query(ctx, selectTrades+` WHERE status = ? ORDER BY opened_at ASC`, string(models.TradeOpen))
}

// Trades returns up to limit trades, newest first. limit <= 0 returns all.
func (l *Ledger) Trades(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = -1
	}
	return l.query(ctx, selectTrades+` ORDER BY opened_at DESC LIMIT ?`, limit)
}

// TradesOn returns the trades opened on the IST calendar day of day, oldest first.
func (l *Ledger) TradesOn(ctx context.Context, day time.Time) ([]Record, error) {
	d := day.In(utils.IST)
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, utils.IST)
	return l.query(ctx, selectTrades+` WHERE opened_at >= ? AND opened_at < ? ORDER BY opened_at ASC`,
		start.Format(tsLayout), start.AddDate(0, 0, 1).Format(tsLayout))
}

func (l *Ledger) query(ctx context.Context, q string, args ...any) ([]Record, error) {
	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			r                                      Record
			dir, tf, status, opened                string
			exitPrice, pts, gross, charges, netPnL sql.NullFloat64
			exitReason, closed                     sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Symbol, &r.InstrumentKey, &dir, &tf, &r.Contract, &r.Score,
			&r.EntryPrice, &r.Target, &r.StopLoss, &r.Quantity, &opened,
			&exitPrice, &exitReason, &closed, &pts, &gross, &charges, &netPnL, &status, &r.ProgressSent); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		r.Direction = models.Direction(dir)
		r.Timeframe = models.Timeframe(tf)
		r.Status = models.TradeStatus(status)
		if t, err := time.Parse(tsLayout, opened); err == nil {
			r.OpenedAt = t.In(utils.IST)
		}
		if closed.Valid {
			if t, err := time.Parse(tsLayout, closed.String); err == nil {
				r.ClosedAt = t.In(utils.IST)
			}
		}
		r.ExitPrice = exitPrice.Float64
		r.ExitReason = models.ExitReason(exitReason.String)
		r.Points = pts.Float64
		r.GrossPnL = gross.Float64
		r.Charges = charges.Float64
		r.NetPnL = netPnL.Float64
		out = append(out, r)
	}
	return out, rows.Err()
}

// Summary aggregates every trade in the ledger.
func (l *Ledger) Summary(ctx context.Context) (models.PnLSummary, error) {
	recs, err := l.query(ctx, selectTrades)
	if err != nil {
		return models.PnLSummary{}, err
	}
	return Summarize(recs), nil
}

// Summarize aggregates records. Wins and losses are judged on net P&L.
func Summarize(recs []Record) models.PnLSummary {
	var (
		s                     models.PnLSummary
		gross, charges, netPL decimal.Decimal
	)
	for _, r := range recs {
		if r.Status == models.TradeOpen {
			s.Open++
			continue
		}
		s.Trades++
		gross = gross.Add(decimal.NewFromFloat(r.GrossPnL))
		charges = charges.Add(decimal.NewFromFloat(r.Charges))
		netPL = netPL.Add(decimal.NewFromFloat(r.NetPnL))
		if r.NetPnL > 0 {
			s.Wins++
		} else {
			s.Losses++
		}
	}
	if s.Trades > 0 {
		s.WinRatePct = decimal.NewFromInt(int64(s.Wins) * 100).
			Div(decimal.NewFromInt(int64(s.Trades))).Round(2).InexactFloat64()
	}
	s.GrossPnL = gross.Round(2).InexactFloat64()
	s.Charges = charges.Round(2).InexactFloat64()
	s.NetPnL = netPL.Round(2).InexactFloat64()
	return s
}

// --- CSV export ---

type csvRow struct {
	ID         string  `csv:"id"`
	Symbol     string  `csv:"symbol"`
	Direction  string  `csv:"direction"`
	Timeframe  string  `csv:"timeframe"`
	Contract   string  `csv:"contract"`
	Score      int     `csv:"score"`
	Qty        int     `csv:"qty"`
	OpenedAt   string  `csv:"opened_at"`
	Entry      float64 `csv:"entry"`
	Target     float64 `csv:"target"`
	StopLoss   float64 `csv:"stop_loss"`
	ClosedAt   string  `csv:"closed_at"`
	Exit       float64 `csv:"exit"`
	ExitReason string  `csv:"exit_reason"`
	PnLPoints  float64 `csv:"pnl_points"`
	GrossPnL   float64 `csv:"gross_pnl"`
	Charges    float64 `csv:"charges"`
	NetPnL     float64 `csv:"net_pnl"`
	Status     string  `csv:"status"`
}

// ExportCSV writes every trade, oldest first, as CSV with a header row.
func (l *Ledger) ExportCSV(ctx context.Context, w io.Writer) error {
	recs, err := l.query(ctx, selectTrades+` ORDER BY opened_at ASC`)
	if err != nil {
		return err
	}
	rows := make([]*csvRow, 0, len(recs))
	for _, r := range recs {
		row := &csvRow{
			ID:         r.ID,
			Symbol:     r.Symbol,
			Direction:  string(r.Direction),
			Timeframe:  string(r.Timeframe),
			Contract:   r.Contract,
			Score:      r.Score,
			Qty:        r.Quantity,
			OpenedAt:   r.OpenedAt.Format("2006-01-02 15:04:05"),
			Entry:      r.EntryPrice,
			Target:     r.Target,
			StopLoss:   r.StopLoss,
			Exit:       r.ExitPrice,
			ExitReason: string(r.ExitReason),
			PnLPoints:  r.Points,
			GrossPnL:   r.GrossPnL,
			Charges:    r.Charges,
			NetPnL:     r.NetPnL,
			Status:     string(r.Status),
		}
		if !r.ClosedAt.IsZero() {
			row.ClosedAt = r.ClosedAt.Format("2006-01-02 15:04:05")
		}
		rows = append(rows, row)
	}
	return gocsv.Marshal(rows, w)
}
