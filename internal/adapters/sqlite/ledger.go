// Package sqlite implements the append-only trade ledger on SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"antigravity/internal/domain"
	"antigravity/internal/ports"
)

// Ledger implements ports.TradeLedger. Events are inserted once and never
// updated or deleted.
type Ledger struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite ledger.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewLedger opens (or creates) the ledger database and ensures the schema.
func NewLedger(cfg Config) (*Ledger, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for the SQLite ledger")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/trades.db"
	}

	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory %q: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger database at %q: %w", dbPath, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping ledger database at %q: %w", dbPath, err)
	}

	// The Go driver benefits from a single connection with SQLite.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	ledger := &Ledger{db: db, logger: cfg.Logger}
	if err := ledger.initializeSchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize ledger schema: %w", err)
	}
	cfg.Logger.Info(context.Background(), "Trade ledger initialized", map[string]interface{}{"path": dbPath})
	return ledger, nil
}

func (l *Ledger) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS trade_events (
		id TEXT PRIMARY KEY,
		timestamp TIMESTAMP NOT NULL,
		symbol TEXT NOT NULL,
		action TEXT NOT NULL,
		price REAL NOT NULL,
		quantity REAL NOT NULL,
		reason TEXT NOT NULL,
		pnl_pct REAL NOT NULL,
		simulated INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_trade_events_timestamp ON trade_events(timestamp);
	`
	_, err := l.db.ExecContext(ctx, schema)
	return err
}

// Record appends one trade event to the ledger.
func (l *Ledger) Record(ctx context.Context, event *domain.TradeEvent) error {
	if event == nil {
		return fmt.Errorf("%w: nil trade event", ports.ErrInvalidRequest)
	}

	const query = `
	INSERT INTO trade_events (id, timestamp, symbol, action, price, quantity, reason, pnl_pct, simulated)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := l.db.ExecContext(ctx, query,
		event.ID,
		event.Timestamp.UTC(),
		event.Symbol,
		event.Action.String(),
		event.Price,
		event.Quantity,
		string(event.Reason),
		event.PnLPct,
		boolToInt(event.Simulated),
	)
	if err != nil {
		return fmt.Errorf("failed to append trade event %s: %w", event.ID, err)
	}
	return nil
}

// Recent returns the most recent trade events, newest first.
func (l *Ledger) Recent(ctx context.Context, limit int) ([]*domain.TradeEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	const query = `
	SELECT id, timestamp, symbol, action, price, quantity, reason, pnl_pct, simulated
	FROM trade_events ORDER BY timestamp DESC LIMIT ?`

	rows, err := l.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query trade events: %w", err)
	}
	defer rows.Close()

	var events []*domain.TradeEvent
	for rows.Next() {
		var (
			ev        domain.TradeEvent
			action    string
			reason    string
			simulated int
		)
		if err := rows.Scan(&ev.ID, &ev.Timestamp, &ev.Symbol, &action, &ev.Price, &ev.Quantity, &reason, &ev.PnLPct, &simulated); err != nil {
			return nil, fmt.Errorf("failed to scan trade event: %w", err)
		}
		ev.Action = parseAction(action)
		ev.Reason = domain.Reason(reason)
		ev.Simulated = simulated != 0
		events = append(events, &ev)
	}
	return events, rows.Err()
}

// Close closes the underlying database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func parseAction(s string) domain.Action {
	for _, a := range []domain.Action{
		domain.ActionOpenLong,
		domain.ActionOpenShort,
		domain.ActionCloseLong,
		domain.ActionCloseShort,
		domain.ActionStopLoss,
		domain.ActionTakeProfit,
	} {
		if a.String() == s {
			return a
		}
	}
	return domain.ActionHold
}

// Compile-time interface check.
var _ ports.TradeLedger = (*Ledger)(nil)
