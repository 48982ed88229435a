// Package httpapi provides the REST API for submitting backtests, polling
// job status, and reading the algorithm catalog and stored market data.
package httpapi

import (
	"leanroom/internal/domain"
)

// SubmitRequest is the body of POST /backtests.
type SubmitRequest struct {
	AlgorithmID string         `json:"algorithmId"`
	Symbol      string         `json:"symbol"`
	Timeframe   string         `json:"timeframe"`
	StartDate   string         `json:"startDate"`
	EndDate     string         `json:"endDate"`
	Parameters  map[string]any `json:"parameters"`
}

// SubmitResponse acknowledges an accepted backtest job.
type SubmitResponse struct {
	JobID  string           `json:"jobId"`
	Status domain.JobStatus `json:"status"`
}

// MarketDataResponse holds stored candles for one symbol and timeframe.
type MarketDataResponse struct {
	Symbol    string          `json:"symbol"`
	Timeframe string          `json:"timeframe"`
	Candles   []domain.Candle `json:"candles"`
}
