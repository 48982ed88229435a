package leanroom

import "time"

// Job statuses.
const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Terminal reports whether a job status is final.
func Terminal(status string) bool {
	return status == StatusCompleted || status == StatusFailed
}

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
	JobID  string `json:"jobId"`
	Status string `json:"status"`
}

// Job is the server's snapshot of one backtest run.
type Job struct {
	ID          string         `json:"jobId"`
	AlgorithmID string         `json:"algorithmId"`
	Symbol      string         `json:"symbol"`
	Timeframe   string         `json:"timeframe"`
	StartDate   string         `json:"startDate"`
	EndDate     string         `json:"endDate"`
	Parameters  map[string]any `json:"parameters"`
	Status      string         `json:"status"`
	CreatedAt   time.Time      `json:"createdAt"`
	Error       string         `json:"error,omitempty"`
	Result      *Result        `json:"result,omitempty"`
	Artifacts   *Artifacts     `json:"artifacts,omitempty"`
}

// Artifacts records where the run left its config and output files.
type Artifacts struct {
	ConfigPath  string `json:"configPath"`
	ReportPath  string `json:"reportPath"`
	SummaryPath string `json:"summaryPath"`
}

// Result is the normalized output of a completed run.
type Result struct {
	PriceSeries []PricePoint             `json:"priceSeries"`
	EquityCurve []SeriesPoint            `json:"equityCurve"`
	Trades      []Trade                  `json:"trades"`
	Orders      []Order                  `json:"orders"`
	Indicators  map[string][]SeriesPoint `json:"indicators"`
	Metrics     Metrics                  `json:"metrics"`
}

// PricePoint is one OHLC bar of the normalized price series.
type PricePoint struct {
	Time  string  `json:"time"`
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}

// SeriesPoint is one {time, value} sample.
type SeriesPoint struct {
	Time  string  `json:"time"`
	Value float64 `json:"value"`
}

// Trade is one closed round trip.
type Trade struct {
	ID         int     `json:"id"`
	Direction  string  `json:"direction"`
	EntryTime  string  `json:"entryTime"`
	EntryPrice float64 `json:"entryPrice"`
	ExitTime   string  `json:"exitTime"`
	ExitPrice  float64 `json:"exitPrice"`
	Quantity   float64 `json:"quantity"`
	Profit     float64 `json:"profit"`
}

// Order is one engine order event.
type Order struct {
	ID           int     `json:"id"`
	Symbol       string  `json:"symbol"`
	Time         string  `json:"time"`
	Status       string  `json:"status"`
	Type         string  `json:"type"`
	Direction    string  `json:"direction"`
	Quantity     float64 `json:"quantity"`
	Price        float64 `json:"price"`
	LastFillTime string  `json:"lastFillTime,omitempty"`
	Tag          string  `json:"tag,omitempty"`
}

// Metrics are the headline summary numbers of a run.
type Metrics struct {
	NetProfit        float64 `json:"netProfit"`
	NetProfitPercent float64 `json:"netProfitPercent"`
	WinRate          float64 `json:"winRate"`
	TotalTrades      int     `json:"totalTrades"`
	WinningTrades    int     `json:"winningTrades"`
	MaxDrawdown      float64 `json:"maxDrawdown"`
	SharpeRatio      float64 `json:"sharpeRatio"`
	SortinoRatio     float64 `json:"sortinoRatio"`
}

// Algorithm is one catalog entry.
type Algorithm struct {
	ID               string         `json:"id"`
	Name             string         `json:"name"`
	Description      string         `json:"description"`
	DefaultSymbol    string         `json:"defaultSymbol"`
	DefaultTimeframe string         `json:"defaultTimeframe"`
	DefaultStart     string         `json:"defaultStartDate"`
	DefaultEnd       string         `json:"defaultEndDate"`
	Parameters       map[string]any `json:"parameters"`
}

// Candle is one daily OHLCV bar.
type Candle struct {
	Time   string  `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

// MarketData holds stored candles for one symbol and timeframe.
type MarketData struct {
	Symbol    string   `json:"symbol"`
	Timeframe string   `json:"timeframe"`
	Candles   []Candle `json:"candles"`
}
