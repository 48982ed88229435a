// Package domain holds the shared types passed between the job manager,
// the normalizer, the stores and the HTTP API.
package domain

import "time"

// JobStatus is the lifecycle state of a backtest job. Transitions are
// monotonic along queued -> running -> completed|failed and a terminal
// state is never left.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Terminal reports whether s is an end state.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// Job is one requested backtest run. A job is created queued, mutated only
// by the goroutine that owns its execution, and immutable once terminal.
type Job struct {
	ID          string         `json:"jobId"`
	AlgorithmID string         `json:"algorithmId"`
	Symbol      string         `json:"symbol"`
	Timeframe   string         `json:"timeframe"`
	StartDate   string         `json:"startDate"`
	EndDate     string         `json:"endDate"`
	Parameters  map[string]any `json:"parameters"`
	Status      JobStatus      `json:"status"`
	CreatedAt   time.Time      `json:"createdAt"`

	// Error is set iff Status == JobFailed.
	Error string `json:"error,omitempty"`
	// Result is set iff Status == JobCompleted.
	Result *BacktestResult `json:"result,omitempty"`
	// Artifacts points at the files left in the job workspace after a
	// completed run.
	Artifacts *JobArtifacts `json:"artifacts,omitempty"`
}

// JobArtifacts records where the run left its config and output files.
type JobArtifacts struct {
	ConfigPath  string `json:"configPath"`
	ReportPath  string `json:"reportPath"`
	SummaryPath string `json:"summaryPath"`
}

// BacktestResult is the canonical, presentation-safe form of one engine
// run. All sequences are time-ascending and empty rather than nil when the
// raw output had nothing for a section.
type BacktestResult struct {
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

// SeriesPoint is one {time, value} sample of the equity curve or of an
// indicator series.
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

// Trade directions.
const (
	TradeLong  = "Long"
	TradeShort = "Short"
)

// Order is one engine order event, decoded from the raw report.
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

// Metrics are the headline summary numbers of a run. Ratio-valued fields
// (win rate, drawdown, net profit percent) are fractions in [0, 1] range
// style, not formatted percents.
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

// Candle is one daily OHLCV bar as stored and served by the market-data
// endpoint. Time is a YYYY-MM-DD date string.
type Candle struct {
	Time   string  `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}
