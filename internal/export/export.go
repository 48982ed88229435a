// Package export fetches daily OHLCV candles from the Alpaca market-data
// API and writes them into the candle store, so the market-data endpoint
// can serve real history.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"golang.org/x/time/rate"

	"leanroom/internal/domain"
	"leanroom/internal/store"
	"leanroom/internal/util"
)

const feed = "sip"

// BarSource is the slice of the Alpaca market-data API the exporter uses.
// *marketdata.Client satisfies it.
type BarSource interface {
	GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error)
}

// Exporter fetches daily bars per symbol and writes them to the candle store.
type Exporter struct {
	source  BarSource
	store   store.CandleStore
	limiter *rate.Limiter
	backoff util.Backoff
	log     *slog.Logger
}

// New creates an Exporter. reqsPerMin bounds the request rate against the
// market-data API.
func New(source BarSource, s store.CandleStore, reqsPerMin int, logger *slog.Logger) *Exporter {
	if reqsPerMin <= 0 {
		reqsPerMin = 200
	}
	return &Exporter{
		source:  source,
		store:   s,
		limiter: rate.NewLimiter(rate.Limit(float64(reqsPerMin)/60.0), 1),
		backoff: util.DefaultBackoff,
		log:     logger,
	}
}

// NewAlpacaSource builds the real market-data client from credentials.
func NewAlpacaSource(apiKey, apiSecret, baseURL string) BarSource {
	opts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if baseURL != "" {
		opts.BaseURL = baseURL
	}
	return marketdata.NewClient(opts)
}

// Run exports daily candles for each symbol over [start, end], one API call
// per symbol. It returns the total number of candles written.
func (e *Exporter) Run(ctx context.Context, symbols []string, start, end time.Time) (int, error) {
	total := 0
	for i, symbol := range symbols {
		symbol = strings.ToUpper(strings.TrimSpace(symbol))
		if symbol == "" {
			continue
		}

		// 1. Pace requests against the API limit.
		if err := e.limiter.Wait(ctx); err != nil {
			return total, err
		}

		// 2. Fetch with retries for transient API failures.
		var bars []marketdata.Bar
		err := e.backoff.Retry(ctx, func() error {
			var ferr error
			bars, ferr = e.source.GetBars(symbol, marketdata.GetBarsRequest{
				TimeFrame: marketdata.OneDay,
				Start:     start,
				End:       end,
				Feed:      feed,
			})
			return ferr
		})
		if err != nil {
			return total, fmt.Errorf("fetching %s: %w", symbol, err)
		}

		// 3. Convert and write.
		candles := make([]domain.Candle, 0, len(bars))
		for _, b := range bars {
			candles = append(candles, domain.Candle{
				Time:   b.Timestamp.UTC().Format("2006-01-02"),
				Open:   b.Open,
				High:   b.High,
				Low:    b.Low,
				Close:  b.Close,
				Volume: int64(b.Volume),
			})
		}
		if err := e.store.WriteCandles(ctx, symbol, "1D", candles); err != nil {
			return total, fmt.Errorf("writing %s: %w", symbol, err)
		}

		total += len(candles)
		e.log.Info("symbol exported",
			"symbol", symbol,
			"candles", len(candles),
			"progress", fmt.Sprintf("%d/%d", i+1, len(symbols)),
		)
	}
	return total, nil
}
