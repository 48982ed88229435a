// Package store persists daily OHLCV candles and serves them back to the
// market-data endpoint. Two backends are available, parquet files on disk
// and a SQLite database, selected by configuration.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"leanroom/internal/domain"
)

// ErrNoData reports that no candles are stored for a symbol and timeframe.
var ErrNoData = errors.New("no market data")

// CandleStore persists and retrieves OHLCV candles keyed by symbol and
// timeframe. Symbols are case-insensitive; implementations store them
// upper-cased.
type CandleStore interface {
	// WriteCandles persists a batch of candles, merging with any already
	// stored for the same symbol and timeframe. Candles with the same time
	// replace the stored ones.
	WriteCandles(ctx context.Context, symbol, timeframe string, candles []domain.Candle) error

	// ReadCandles returns every candle for the symbol and timeframe in
	// ascending time order. Returns ErrNoData when none are stored.
	ReadCandles(ctx context.Context, symbol, timeframe string) ([]domain.Candle, error)

	// ListSymbols returns all distinct symbols with data for the timeframe,
	// sorted ascending.
	ListSymbols(ctx context.Context, timeframe string) ([]string, error)
}

const dateLayout = "2006-01-02"

func normSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// timeframeDir maps an API timeframe to the canonical name both backends
// key their data by.
func timeframeDir(timeframe string) string {
	switch strings.ToUpper(strings.TrimSpace(timeframe)) {
	case "", "1D", "D", "DAILY":
		return "daily"
	case "1H", "H", "HOURLY":
		return "hourly"
	case "1M", "M", "MINUTE":
		return "minute"
	default:
		return strings.ToLower(strings.TrimSpace(timeframe))
	}
}

// candleTime parses the date a candle belongs to.
func candleTime(c domain.Candle) (time.Time, error) {
	ts, err := time.Parse(dateLayout, c.Time)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad candle time %q: %w", c.Time, err)
	}
	return ts, nil
}
