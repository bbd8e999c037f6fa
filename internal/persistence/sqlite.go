package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/glowback/glowback/internal/types"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteRepository implements Repository on a WAL-mode SQLite file.
type SQLiteRepository struct {
	db *sql.DB
}

var _ Repository = (*SQLiteRepository)(nil)

// NewSQLiteRepository opens (or creates) the database at path and runs
// migrations.
func NewSQLiteRepository(path string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	repo := &SQLiteRepository{db: db}
	if err := repo.Migrate(context.Background()); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return repo, nil
}

// Migrate creates the schema if it does not exist.
func (r *SQLiteRepository) Migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS orders (
			id TEXT PRIMARY KEY,
			ticker TEXT NOT NULL,
			exchange TEXT NOT NULL,
			side INTEGER NOT NULL,
			order_type INTEGER NOT NULL,
			time_in_force INTEGER NOT NULL,
			quantity TEXT NOT NULL,
			limit_price TEXT NOT NULL DEFAULT '0',
			stop_price TEXT NOT NULL DEFAULT '0',
			status INTEGER NOT NULL,
			filled_quantity TEXT NOT NULL DEFAULT '0',
			average_fill_price TEXT NOT NULL DEFAULT '0',
			strategy_id TEXT,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_ticker ON orders(ticker)`,

		`CREATE TABLE IF NOT EXISTS fills (
			id TEXT PRIMARY KEY,
			order_id TEXT NOT NULL,
			ticker TEXT NOT NULL,
			exchange TEXT NOT NULL,
			side INTEGER NOT NULL,
			quantity TEXT NOT NULL,
			price TEXT NOT NULL,
			commission TEXT NOT NULL DEFAULT '0',
			strategy_id TEXT,
			timestamp DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_fills_order_id ON fills(order_id)`,
		`CREATE INDEX IF NOT EXISTS idx_fills_ticker ON fills(ticker)`,
		`CREATE INDEX IF NOT EXISTS idx_fills_timestamp ON fills(timestamp)`,

		`CREATE TABLE IF NOT EXISTS equity_points (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			timestamp DATETIME NOT NULL,
			equity TEXT NOT NULL,
			cash TEXT NOT NULL,
			total_pnl TEXT NOT NULL DEFAULT '0',
			daily_return TEXT NOT NULL DEFAULT '0',
			drawdown TEXT NOT NULL DEFAULT '0'
		)`,
		`CREATE INDEX IF NOT EXISTS idx_equity_run ON equity_points(run_id, timestamp)`,

		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			status TEXT NOT NULL,
			started_at DATETIME NOT NULL,
			completed_at DATETIME,
			initial_capital TEXT NOT NULL,
			final_equity TEXT NOT NULL DEFAULT '0',
			total_return TEXT NOT NULL DEFAULT '0',
			sharpe_ratio TEXT NOT NULL DEFAULT '0',
			max_drawdown TEXT NOT NULL DEFAULT '0',
			total_trades INTEGER NOT NULL DEFAULT 0,
			error TEXT
		)`,

		`CREATE TABLE IF NOT EXISTS session_state (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			last_updated DATETIME NOT NULL,
			equity TEXT NOT NULL,
			high_water_mark TEXT NOT NULL,
			circuit_breaker_tripped INTEGER NOT NULL DEFAULT 0,
			total_fills INTEGER NOT NULL DEFAULT 0,
			realized_pnl TEXT NOT NULL DEFAULT '0'
		)`,
	}

	for _, migration := range migrations {
		if _, err := r.db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("execute migration: %w", err)
		}
	}
	return nil
}

// SaveOrder inserts or replaces an order row keyed by order ID.
func (r *SQLiteRepository) SaveOrder(ctx context.Context, order *types.Order) error {
	query := `INSERT OR REPLACE INTO orders
		(id, ticker, exchange, side, order_type, time_in_force, quantity, limit_price, stop_price, status, filled_quantity, average_fill_price, strategy_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		order.ID,
		order.Symbol.Ticker,
		order.Symbol.Exchange,
		order.Side,
		order.Type,
		order.TimeInForce,
		order.Quantity.String(),
		order.LimitPrice.String(),
		order.StopPrice.String(),
		order.Status,
		order.FilledQuantity.String(),
		order.AverageFillPrice.String(),
		order.StrategyID,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// GetOpenOrders returns orders whose status is not terminal.
func (r *SQLiteRepository) GetOpenOrders(ctx context.Context) ([]*types.Order, error) {
	query := `SELECT id, ticker, exchange, side, order_type, time_in_force, quantity, limit_price, stop_price, status, filled_quantity, average_fill_price, strategy_id, created_at, updated_at
		FROM orders WHERE status NOT IN (?, ?, ?, ?) ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query,
		types.OrderStatusFilled, types.OrderStatusCanceled, types.OrderStatusRejected, types.OrderStatusExpired)
	if err != nil {
		return nil, fmt.Errorf("query open orders: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var orders []*types.Order
	for rows.Next() {
		var o types.Order
		var ticker, exchange string
		var qty, limit, stop, filled, avg string
		var strategyID sql.NullString

		if err := rows.Scan(&o.ID, &ticker, &exchange, &o.Side, &o.Type, &o.TimeInForce, &qty, &limit, &stop, &o.Status, &filled, &avg, &strategyID, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}

		o.Symbol = types.NewEquity(ticker, exchange)
		o.Quantity, _ = decimal.NewFromString(qty)
		o.LimitPrice, _ = decimal.NewFromString(limit)
		o.StopPrice, _ = decimal.NewFromString(stop)
		o.FilledQuantity, _ = decimal.NewFromString(filled)
		o.AverageFillPrice, _ = decimal.NewFromString(avg)
		o.RemainingQuantity = o.Quantity.Sub(o.FilledQuantity)
		o.StrategyID = strategyID.String

		orders = append(orders, &o)
	}
	return orders, rows.Err()
}

// UpdateOrderStatus records a status transition for an existing order.
func (r *SQLiteRepository) UpdateOrderStatus(ctx context.Context, orderID string, status types.OrderStatus, filledQty, avgFillPrice decimal.Decimal) error {
	query := `UPDATE orders SET status = ?, filled_quantity = ?, average_fill_price = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`

	res, err := r.db.ExecContext(ctx, query, status, filledQty.String(), avgFillPrice.String(), orderID)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return fmt.Errorf("%w: order %s", types.ErrOrderNotFound, orderID)
	}
	return nil
}

// SaveFill records an execution.
func (r *SQLiteRepository) SaveFill(ctx context.Context, fill types.Fill) error {
	query := `INSERT INTO fills
		(id, order_id, ticker, exchange, side, quantity, price, commission, strategy_id, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		fill.ID,
		fill.OrderID,
		fill.Symbol.Ticker,
		fill.Symbol.Exchange,
		fill.Side,
		fill.Quantity.String(),
		fill.Price.String(),
		fill.Commission.String(),
		fill.StrategyID,
		fill.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert fill: %w", err)
	}
	return nil
}

// GetFills returns fills in a time range, newest first.
func (r *SQLiteRepository) GetFills(ctx context.Context, from, to time.Time) ([]types.Fill, error) {
	query := `SELECT id, order_id, ticker, exchange, side, quantity, price, commission, strategy_id, timestamp
		FROM fills WHERE timestamp BETWEEN ? AND ? ORDER BY timestamp DESC`

	rows, err := r.db.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("query fills: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanFills(rows)
}

// GetFillsBySymbol returns the most recent fills for one ticker.
func (r *SQLiteRepository) GetFillsBySymbol(ctx context.Context, ticker string, limit int) ([]types.Fill, error) {
	query := `SELECT id, order_id, ticker, exchange, side, quantity, price, commission, strategy_id, timestamp
		FROM fills WHERE ticker = ? ORDER BY timestamp DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, ticker, limit)
	if err != nil {
		return nil, fmt.Errorf("query fills by symbol: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanFills(rows)
}

func scanFills(rows *sql.Rows) ([]types.Fill, error) {
	var fills []types.Fill
	for rows.Next() {
		var f types.Fill
		var ticker, exchange string
		var qty, price, commission string
		var strategyID sql.NullString

		if err := rows.Scan(&f.ID, &f.OrderID, &ticker, &exchange, &f.Side, &qty, &price, &commission, &strategyID, &f.Timestamp); err != nil {
			return nil, fmt.Errorf("scan fill: %w", err)
		}

		f.Symbol = types.NewEquity(ticker, exchange)
		f.Quantity, _ = decimal.NewFromString(qty)
		f.Price, _ = decimal.NewFromString(price)
		f.Commission, _ = decimal.NewFromString(commission)
		f.StrategyID = strategyID.String

		fills = append(fills, f)
	}
	return fills, rows.Err()
}

// SaveEquityPoint appends one point to a run's equity curve.
func (r *SQLiteRepository) SaveEquityPoint(ctx context.Context, point EquityRecord) error {
	query := `INSERT INTO equity_points (run_id, timestamp, equity, cash, total_pnl, daily_return, drawdown)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		point.RunID,
		point.Timestamp,
		point.Equity.String(),
		point.Cash.String(),
		point.TotalPnL.String(),
		point.DailyReturn.String(),
		point.Drawdown.String(),
	)
	if err != nil {
		return fmt.Errorf("insert equity point: %w", err)
	}
	return nil
}

// GetEquityHistory returns a run's equity points in a time range,
// oldest first.
func (r *SQLiteRepository) GetEquityHistory(ctx context.Context, runID string, from, to time.Time) ([]EquityRecord, error) {
	query := `SELECT id, run_id, timestamp, equity, cash, total_pnl, daily_return, drawdown
		FROM equity_points WHERE run_id = ? AND timestamp BETWEEN ? AND ? ORDER BY timestamp`

	rows, err := r.db.QueryContext(ctx, query, runID, from, to)
	if err != nil {
		return nil, fmt.Errorf("query equity history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var points []EquityRecord
	for rows.Next() {
		var p EquityRecord
		var equity, cash, pnl, ret, dd string

		if err := rows.Scan(&p.ID, &p.RunID, &p.Timestamp, &equity, &cash, &pnl, &ret, &dd); err != nil {
			return nil, fmt.Errorf("scan equity point: %w", err)
		}

		p.Equity, _ = decimal.NewFromString(equity)
		p.Cash, _ = decimal.NewFromString(cash)
		p.TotalPnL, _ = decimal.NewFromString(pnl)
		p.DailyReturn, _ = decimal.NewFromString(ret)
		p.Drawdown, _ = decimal.NewFromString(dd)

		points = append(points, p)
	}
	return points, rows.Err()
}

// SaveRun inserts or replaces a run summary.
func (r *SQLiteRepository) SaveRun(ctx context.Context, run RunRecord) error {
	query := `INSERT OR REPLACE INTO runs
		(id, name, status, started_at, completed_at, initial_capital, final_equity, total_return, sharpe_ratio, max_drawdown, total_trades, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		run.ID,
		run.Name,
		run.Status,
		run.StartedAt,
		run.CompletedAt,
		run.InitialCapital.String(),
		run.FinalEquity.String(),
		run.TotalReturn.String(),
		run.SharpeRatio.String(),
		run.MaxDrawdown.String(),
		run.TotalTrades,
		run.Err,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// GetRun returns one run summary, or nil when absent.
func (r *SQLiteRepository) GetRun(ctx context.Context, runID string) (*RunRecord, error) {
	query := `SELECT id, name, status, started_at, completed_at, initial_capital, final_equity, total_return, sharpe_ratio, max_drawdown, total_trades, error
		FROM runs WHERE id = ?`

	var run RunRecord
	var capital, final, ret, sharpe, dd string
	var completedAt sql.NullTime
	var runErr sql.NullString

	err := r.db.QueryRowContext(ctx, query, runID).Scan(
		&run.ID,
		&run.Name,
		&run.Status,
		&run.StartedAt,
		&completedAt,
		&capital,
		&final,
		&ret,
		&sharpe,
		&dd,
		&run.TotalTrades,
		&runErr,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}

	if completedAt.Valid {
		run.CompletedAt = completedAt.Time
	}
	run.InitialCapital, _ = decimal.NewFromString(capital)
	run.FinalEquity, _ = decimal.NewFromString(final)
	run.TotalReturn, _ = decimal.NewFromString(ret)
	run.SharpeRatio, _ = decimal.NewFromString(sharpe)
	run.MaxDrawdown, _ = decimal.NewFromString(dd)
	run.Err = runErr.String

	return &run, nil
}

// SaveSessionState upserts the single recovery row.
func (r *SQLiteRepository) SaveSessionState(ctx context.Context, state SessionState) error {
	query := `INSERT OR REPLACE INTO session_state
		(id, last_updated, equity, high_water_mark, circuit_breaker_tripped, total_fills, realized_pnl)
		VALUES (1, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		state.LastUpdated,
		state.Equity.String(),
		state.HighWaterMark.String(),
		boolToInt(state.CircuitBreakerTripped),
		state.TotalFills,
		state.RealizedPnL.String(),
	)
	if err != nil {
		return fmt.Errorf("save session state: %w", err)
	}
	return nil
}

// GetSessionState returns the recovery row, or nil when no session has
// been persisted yet.
func (r *SQLiteRepository) GetSessionState(ctx context.Context) (*SessionState, error) {
	query := `SELECT id, last_updated, equity, high_water_mark, circuit_breaker_tripped, total_fills, realized_pnl
		FROM session_state WHERE id = 1`

	var state SessionState
	var equity, hwm, pnl string
	var tripped int

	err := r.db.QueryRowContext(ctx, query).Scan(
		&state.ID,
		&state.LastUpdated,
		&equity,
		&hwm,
		&tripped,
		&state.TotalFills,
		&pnl,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query session state: %w", err)
	}

	state.Equity, _ = decimal.NewFromString(equity)
	state.HighWaterMark, _ = decimal.NewFromString(hwm)
	state.RealizedPnL, _ = decimal.NewFromString(pnl)
	state.CircuitBreakerTripped = tripped == 1

	return &state, nil
}

// Close closes the database connection.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
