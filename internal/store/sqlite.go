package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"leanroom/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ CandleStore = (*SQLiteStore)(nil)

// SQLiteStore implements CandleStore backed by a single SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

const candleSchema = `
CREATE TABLE IF NOT EXISTS candles (
	symbol    TEXT    NOT NULL,
	timeframe TEXT    NOT NULL,
	time      TEXT    NOT NULL,
	open      REAL    NOT NULL,
	high      REAL    NOT NULL,
	low       REAL    NOT NULL,
	close     REAL    NOT NULL,
	volume    INTEGER NOT NULL,
	PRIMARY KEY (symbol, timeframe, time)
)`

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and ensures
// the candle table exists.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(candleSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating candle table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// WriteCandles upserts a batch of candles inside a single transaction.
func (s *SQLiteStore) WriteCandles(ctx context.Context, symbol, timeframe string, candles []domain.Candle) error {
	if len(candles) == 0 {
		return nil
	}
	symbol = normSymbol(symbol)
	timeframe = timeframeDir(timeframe)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO candles (symbol, timeframe, time, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (symbol, timeframe, time) DO UPDATE SET
			open = excluded.open,
			high = excluded.high,
			low = excluded.low,
			close = excluded.close,
			volume = excluded.volume`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range candles {
		if _, err := candleTime(c); err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, symbol, timeframe, c.Time, c.Open, c.High, c.Low, c.Close, c.Volume); err != nil {
			return fmt.Errorf("writing candle %s/%s: %w", symbol, c.Time, err)
		}
	}
	return tx.Commit()
}

// ReadCandles reads every candle stored for the symbol and timeframe,
// ascending by time.
func (s *SQLiteStore) ReadCandles(ctx context.Context, symbol, timeframe string) ([]domain.Candle, error) {
	symbol = normSymbol(symbol)
	timeframe = timeframeDir(timeframe)

	rows, err := s.db.QueryContext(ctx, `
		SELECT time, open, high, low, close, volume
		FROM candles
		WHERE symbol = ? AND timeframe = ?
		ORDER BY time`, symbol, timeframe)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candles []domain.Candle
	for rows.Next() {
		var c domain.Candle
		if err := rows.Scan(&c.Time, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, err
		}
		candles = append(candles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("%s/%s: %w", symbol, timeframe, ErrNoData)
	}
	return candles, nil
}

// ListSymbols lists all symbols that have candle data for the timeframe.
func (s *SQLiteStore) ListSymbols(ctx context.Context, timeframe string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT symbol
		FROM candles
		WHERE timeframe = ?
		ORDER BY symbol`, timeframeDir(timeframe))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		symbols = append(symbols, s)
	}
	return symbols, rows.Err()
}
