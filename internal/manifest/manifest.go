// Package manifest holds the catalog of runnable backtest algorithms:
// identity, defaults, engine entry point and chart layout for each one.
// The catalog is read-only input for config generation and normalization.
package manifest

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownAlgorithm is returned by Get for ids not present in the catalog.
var ErrUnknownAlgorithm = errors.New("unknown algorithm")

// Chart names one algorithm chart and the series it plots, in plot order.
type Chart struct {
	Name   string
	Series []string
}

// Entry describes one runnable algorithm. Parameters holds the typed
// default values merged with caller overrides at submit time.
type Entry struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`

	// DefaultSymbol only prefills clients; a submit must carry its own
	// symbol. The timeframe and date defaults backfill omitted request
	// fields.
	DefaultSymbol    string         `json:"defaultSymbol"`
	DefaultTimeframe string         `json:"defaultTimeframe"`
	DefaultStart     string         `json:"defaultStartDate"`
	DefaultEnd       string         `json:"defaultEndDate"`
	Parameters       map[string]any `json:"parameters"`

	// Engine entry point: algorithm source file relative to the configured
	// algorithm directory, and the class the launcher instantiates.
	SourceFile string `json:"-"`
	ClassName  string `json:"-"`

	// Charts drives indicator extraction from raw results. Series absent
	// from a run's output are skipped, not errors.
	Charts []Chart `json:"-"`
}

// ---------------------------------------------------------------------------
// Catalog
// ---------------------------------------------------------------------------

var catalog = map[string]Entry{
	"rsi_ma_cross": {
		ID:               "rsi_ma_cross",
		Name:             "RSI / MA Cross",
		Description:      "Goes long when RSI crosses above its own moving average, flat on the cross back down.",
		DefaultSymbol:    "SPY",
		DefaultTimeframe: "1D",
		DefaultStart:     "2018-01-01",
		DefaultEnd:       "2020-01-01",
		Parameters: map[string]any{
			"rsiPeriod":   14,
			"rsiMaPeriod": 10,
		},
		SourceFile: "rsi_ma_cross.py",
		ClassName:  "RsiMaCrossAlgorithm",
		Charts: []Chart{
			{Name: "RSI", Series: []string{"RSI", "RSI_MA"}},
		},
	},
	"bollinger_reversion": {
		ID:               "bollinger_reversion",
		Name:             "Bollinger Reversion",
		Description:      "Buys closes below the lower Bollinger band while RSI is oversold, exits at the middle band.",
		DefaultSymbol:    "IWM",
		DefaultTimeframe: "1D",
		DefaultStart:     "2016-01-01",
		DefaultEnd:       "2021-01-01",
		Parameters: map[string]any{
			"basisPeriod": 20,
			"stdDev":      2.0,
			"exposure":    0.75,
			"rsiPeriod":   14,
		},
		SourceFile: "bollinger_reversion.py",
		ClassName:  "BollingerReversion",
		Charts: []Chart{
			{Name: "Bands", Series: []string{"Lower", "Middle", "Upper"}},
			{Name: "RSI", Series: []string{"RSI"}},
		},
	},
	"trend_follow_ema": {
		ID:               "trend_follow_ema",
		Name:             "EMA Trend Follower",
		Description:      "Rides fast/slow EMA uptrends with an ATR trailing stop.",
		DefaultSymbol:    "QQQ",
		DefaultTimeframe: "1D",
		DefaultStart:     "2017-01-01",
		DefaultEnd:       "2021-01-01",
		Parameters: map[string]any{
			"fastPeriod":    12,
			"slowPeriod":    30,
			"atrPeriod":     14,
			"atrMultiplier": 2.5,
			"exposure":      1.0,
			"rsiPeriod":     14,
		},
		SourceFile: "trend_follow_ema.py",
		ClassName:  "EmaTrendFollower",
		Charts: []Chart{
			{Name: "Trend", Series: []string{"FastEMA", "SlowEMA"}},
			{Name: "RSI", Series: []string{"RSI"}},
		},
	},
}

// Get returns the catalog entry for the given algorithm id.
func Get(id string) (Entry, error) {
	entry, ok := catalog[id]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrUnknownAlgorithm, id)
	}
	return entry, nil
}

// List returns all catalog entries sorted by id.
func List() []Entry {
	entries := make([]Entry, 0, len(catalog))
	for _, entry := range catalog {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ID < entries[j].ID
	})
	return entries
}
