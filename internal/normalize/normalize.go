// Package normalize maps raw LEAN result artifacts onto the canonical
// backtest result schema. Raw shapes shift between algorithms and engine
// versions, so every extraction step probes defensively: a missing or
// oddly shaped section degrades to empty output, and only an artifact that
// fails to decode as JSON at all is an error.
package normalize

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"leanroom/internal/domain"
	"leanroom/internal/manifest"
)

// equityChartName is the chart LEAN plots portfolio value under.
const equityChartName = "Strategy Equity"

// Error reports an artifact that could not be decoded at all.
type Error struct {
	Artifact string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("normalize %s: %v", e.Artifact, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Params carries the run context normalization needs: the traded symbol
// and the algorithm's chart layout from the manifest.
type Params struct {
	Symbol string
	Charts []manifest.Chart
}

// Normalize maps the report (result.json) and summary
// (result-summary.json) bytes into the canonical result. All sequences in
// the output are time-ascending and empty rather than nil.
func Normalize(report, summary []byte, params Params) (*domain.BacktestResult, error) {
	var rep rawReport
	if err := json.Unmarshal(report, &rep); err != nil {
		return nil, &Error{Artifact: "result.json", Err: err}
	}
	var sum rawSummary
	if err := json.Unmarshal(summary, &sum); err != nil {
		return nil, &Error{Artifact: "result-summary.json", Err: err}
	}

	priceSeries, priceChart := extractPriceSeries(&rep, params.Symbol)
	orders := extractOrders(&rep)

	trades := extractTrades(&sum)
	if len(trades) == 0 {
		trades = tradesFromOrders(orders, params.Symbol)
	}

	result := &domain.BacktestResult{
		PriceSeries: priceSeries,
		EquityCurve: extractEquityCurve(&rep),
		Trades:      trades,
		Orders:      orders,
		Indicators:  extractIndicators(&rep, params, priceChart),
		Metrics:     extractMetrics(&sum),
	}

	sortAscending(result)
	return result, nil
}

// sortAscending enforces time order on every sequence. Engine output is
// normally already sorted; date strings compare chronologically.
func sortAscending(result *domain.BacktestResult) {
	sort.SliceStable(result.PriceSeries, func(i, j int) bool {
		return result.PriceSeries[i].Time < result.PriceSeries[j].Time
	})
	sort.SliceStable(result.EquityCurve, func(i, j int) bool {
		return result.EquityCurve[i].Time < result.EquityCurve[j].Time
	})
	for _, points := range result.Indicators {
		sort.SliceStable(points, func(i, j int) bool {
			return points[i].Time < points[j].Time
		})
	}
}

// ---------------------------------------------------------------------------
// Price series and equity curve
// ---------------------------------------------------------------------------

// extractPriceSeries finds the OHLC chart for the run. First probe: a
// chart keyed by the symbol, case-insensitive. Second: the first chart
// whose rows are OHLC-shaped (five or more columns). It returns the chart
// name it settled on so indicator extraction can skip it.
func extractPriceSeries(rep *rawReport, symbol string) ([]domain.PricePoint, string) {
	for _, name := range sortedChartNames(rep.Charts) {
		if !strings.EqualFold(name, symbol) {
			continue
		}
		if points := ohlcPoints(rep.Charts[name]); len(points) > 0 {
			return points, name
		}
	}

	for _, name := range sortedChartNames(rep.Charts) {
		if strings.EqualFold(name, equityChartName) {
			continue
		}
		if points := ohlcPoints(rep.Charts[name]); len(points) > 0 {
			return points, name
		}
	}

	return []domain.PricePoint{}, ""
}

// ohlcPoints returns candles from the first series in the chart whose rows
// carry at least five columns: [time, open, high, low, close].
func ohlcPoints(chart rawChart) []domain.PricePoint {
	for _, seriesName := range sortedSeriesNames(chart.Series) {
		var points []domain.PricePoint
		for _, row := range chart.Series[seriesName].Values {
			if len(row) < 5 || !row[0].Valid {
				continue
			}
			points = append(points, domain.PricePoint{
				Time:  unixDate(row[0].Value),
				Open:  row[1].Value,
				High:  row[2].Value,
				Low:   row[3].Value,
				Close: row[4].Value,
			})
		}
		if len(points) > 0 {
			return points
		}
	}
	return nil
}

// extractEquityCurve reads the "Strategy Equity" chart. The series named
// "Equity" wins when present; otherwise the first series with two-column
// rows.
func extractEquityCurve(rep *rawReport) []domain.SeriesPoint {
	for _, name := range sortedChartNames(rep.Charts) {
		if !strings.EqualFold(name, equityChartName) {
			continue
		}
		chart := rep.Charts[name]

		if series, ok := chart.Series["Equity"]; ok {
			if points := seriesPoints(series); len(points) > 0 {
				return points
			}
		}
		for _, seriesName := range sortedSeriesNames(chart.Series) {
			if points := seriesPoints(chart.Series[seriesName]); len(points) > 0 {
				return points
			}
		}
	}
	return []domain.SeriesPoint{}
}

// seriesPoints maps two-column rows to {time, value} samples.
func seriesPoints(series rawSeries) []domain.SeriesPoint {
	var points []domain.SeriesPoint
	for _, row := range series.Values {
		if len(row) != 2 || !row[0].Valid || !row[1].Valid {
			continue
		}
		points = append(points, domain.SeriesPoint{
			Time:  unixDate(row[0].Value),
			Value: row[1].Value,
		})
	}
	return points
}

// ---------------------------------------------------------------------------
// Indicators
// ---------------------------------------------------------------------------

// extractIndicators collects indicator series keyed by series name. With a
// manifest chart layout it walks exactly the configured series; without
// one it takes every chart except the price chart and the equity chart.
// Missing charts and empty series are skipped, never errors.
func extractIndicators(rep *rawReport, params Params, priceChart string) map[string][]domain.SeriesPoint {
	indicators := map[string][]domain.SeriesPoint{}

	if len(params.Charts) > 0 {
		for _, chart := range params.Charts {
			raw, ok := chartNamed(rep, chart.Name)
			if !ok {
				continue
			}
			for _, seriesName := range chart.Series {
				series, ok := raw.Series[seriesName]
				if !ok {
					continue
				}
				points := seriesPoints(series)
				if len(points) == 0 {
					continue
				}
				indicators[indicatorKey(indicators, chart.Name, seriesName)] = points
			}
		}
		return indicators
	}

	for _, name := range sortedChartNames(rep.Charts) {
		if name == priceChart || strings.EqualFold(name, equityChartName) {
			continue
		}
		chart := rep.Charts[name]
		for _, seriesName := range sortedSeriesNames(chart.Series) {
			points := seriesPoints(chart.Series[seriesName])
			if len(points) == 0 {
				continue
			}
			indicators[indicatorKey(indicators, name, seriesName)] = points
		}
	}
	return indicators
}

// indicatorKey is the series name, qualified by chart name on collision.
func indicatorKey(existing map[string][]domain.SeriesPoint, chart, series string) string {
	if _, taken := existing[series]; !taken {
		return series
	}
	return chart + " " + series
}

func chartNamed(rep *rawReport, name string) (rawChart, bool) {
	if chart, ok := rep.Charts[name]; ok {
		return chart, true
	}
	for key, chart := range rep.Charts {
		if strings.EqualFold(key, name) {
			return chart, true
		}
	}
	return rawChart{}, false
}

// ---------------------------------------------------------------------------
// Orders
// ---------------------------------------------------------------------------

var orderTypeNames = map[int]string{
	0: "Market",
	1: "Limit",
	2: "StopMarket",
	3: "StopLimit",
	4: "MarketOnOpen",
	5: "MarketOnClose",
}

var orderDirectionNames = map[int]string{
	0: "Buy",
	1: "Sell",
	2: "Hold",
}

var orderStatusNames = map[int]string{
	0: "New",
	1: "Submitted",
	2: "PartiallyFilled",
	3: "Filled",
	5: "Canceled",
	6: "None",
	7: "Invalid",
	8: "CancelPending",
	9: "UpdateSubmitted",
}

// extractOrders flattens the report's orders map into a list sorted by id.
// The id comes from the order document, falling back to the map key.
func extractOrders(rep *rawReport) []domain.Order {
	orders := make([]domain.Order, 0, len(rep.Orders))
	for key, raw := range rep.Orders {
		id := 0
		if raw.ID.Valid {
			id = int(raw.ID.Value)
		} else if n, err := strconv.Atoi(key); err == nil {
			id = n
		}

		orders = append(orders, domain.Order{
			ID:           id,
			Symbol:       raw.Symbol.Value,
			Time:         dateOf(raw.Time),
			Status:       raw.Status.label(orderStatusNames),
			Type:         raw.Type.label(orderTypeNames),
			Direction:    raw.Direction.label(orderDirectionNames),
			Quantity:     raw.Quantity.Value,
			Price:        raw.Price.Value,
			LastFillTime: dateOf(raw.LastFillTime),
			Tag:          raw.Tag,
		})
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].ID < orders[j].ID })
	return orders
}

// ---------------------------------------------------------------------------
// Trades
// ---------------------------------------------------------------------------

// extractTrades reads totalPerformance.closedTrades. Ids are assigned
// 1..n in summary order; direction 0 is long, 1 is short.
func extractTrades(sum *rawSummary) []domain.Trade {
	if sum.TotalPerformance == nil {
		return []domain.Trade{}
	}

	trades := make([]domain.Trade, 0, len(sum.TotalPerformance.ClosedTrades))
	for i, raw := range sum.TotalPerformance.ClosedTrades {
		direction := domain.TradeLong
		if (raw.Direction.IsNum && raw.Direction.Number == 1) || raw.Direction.Name == domain.TradeShort {
			direction = domain.TradeShort
		}

		trades = append(trades, domain.Trade{
			ID:         i + 1,
			Direction:  direction,
			EntryTime:  dateOf(raw.EntryTime),
			EntryPrice: raw.EntryPrice.Value,
			ExitTime:   dateOf(raw.ExitTime),
			ExitPrice:  raw.ExitPrice.Value,
			Quantity:   raw.Quantity.Value,
			Profit:     raw.ProfitLoss.Value,
		})
	}
	return trades
}

// tradesFromOrders reconstructs round trips when the summary carried no
// closed trades: filled orders for the run's symbol pair up entry/exit by
// opposite direction. Profit is (exit-entry)*quantity, sign-flipped for
// shorts.
func tradesFromOrders(orders []domain.Order, symbol string) []domain.Trade {
	trades := []domain.Trade{}

	var open *domain.Order
	for i := range orders {
		order := orders[i]
		if order.Status != "Filled" || !strings.EqualFold(order.Symbol, symbol) {
			continue
		}
		if order.Direction != "Buy" && order.Direction != "Sell" {
			continue
		}

		if open == nil {
			open = &orders[i]
			continue
		}
		if order.Direction == open.Direction {
			// Same-way fill extends the position; the first entry stands.
			continue
		}

		direction := domain.TradeLong
		sign := 1.0
		if open.Direction == "Sell" {
			direction = domain.TradeShort
			sign = -1
		}
		quantity := math.Abs(open.Quantity)

		trades = append(trades, domain.Trade{
			ID:         len(trades) + 1,
			Direction:  direction,
			EntryTime:  open.Time,
			EntryPrice: open.Price,
			ExitTime:   order.Time,
			ExitPrice:  order.Price,
			Quantity:   quantity,
			Profit:     (order.Price - open.Price) * quantity * sign,
		})
		open = nil
	}

	return trades
}

// ---------------------------------------------------------------------------
// Metrics
// ---------------------------------------------------------------------------

// extractMetrics reads the headline numbers with tolerant lookups: the
// formatted statistics block first, totalPerformance blocks as fallback.
// Percent-formatted values convert to fractions; anything missing or
// unparsable stays zero.
func extractMetrics(sum *rawSummary) domain.Metrics {
	stats := sum.Statistics
	var tradeStats, portfolioStats map[string]any
	if sum.TotalPerformance != nil {
		tradeStats = sum.TotalPerformance.TradeStatistics
		portfolioStats = sum.TotalPerformance.PortfolioStatistics
	}

	var m domain.Metrics

	if v, ok := numberAt(tradeStats, "totalProfitLoss"); ok {
		m.NetProfit = v
	}
	if v, ok := fractionAt(stats, "Net Profit"); ok {
		m.NetProfitPercent = v
	} else if v, ok := numberAt(portfolioStats, "totalNetProfit"); ok {
		m.NetProfitPercent = v
	}
	if v, ok := fractionAt(stats, "Win Rate"); ok {
		m.WinRate = v
	} else if v, ok := numberAt(portfolioStats, "winRate"); ok {
		m.WinRate = v
	}
	if v, ok := fractionAt(stats, "Drawdown"); ok {
		m.MaxDrawdown = v
	} else if v, ok := numberAt(portfolioStats, "drawdown"); ok {
		m.MaxDrawdown = v
	}
	if v, ok := numberAt(stats, "Sharpe Ratio"); ok {
		m.SharpeRatio = v
	} else if v, ok := numberAt(portfolioStats, "sharpeRatio"); ok {
		m.SharpeRatio = v
	}
	if v, ok := numberAt(stats, "Sortino Ratio"); ok {
		m.SortinoRatio = v
	} else if v, ok := numberAt(portfolioStats, "sortinoRatio"); ok {
		m.SortinoRatio = v
	}
	if v, ok := numberAt(tradeStats, "totalNumberOfTrades"); ok {
		m.TotalTrades = int(v)
	}
	if v, ok := numberAt(tradeStats, "numberOfWinningTrades"); ok {
		m.WinningTrades = int(v)
	}

	return m
}

// valueAt reads one stats entry: JSON numbers pass through, strings go
// through parseDecimal. percent reports whether the raw string carried a
// trailing percent sign.
func valueAt(stats map[string]any, key string) (value float64, percent, ok bool) {
	raw, exists := stats[key]
	if !exists {
		return 0, false, false
	}
	switch v := raw.(type) {
	case float64:
		return v, false, true
	case string:
		parsed, ok := parseDecimal(v)
		if !ok {
			return 0, false, false
		}
		return parsed, strings.HasSuffix(strings.TrimSpace(v), "%"), true
	default:
		return 0, false, false
	}
}

// numberAt reads a plain numeric metric.
func numberAt(stats map[string]any, key string) (float64, bool) {
	v, _, ok := valueAt(stats, key)
	return v, ok
}

// fractionAt reads a ratio metric. Percent-formatted strings divide by
// 100; already-fractional numbers pass through.
func fractionAt(stats map[string]any, key string) (float64, bool) {
	v, percent, ok := valueAt(stats, key)
	if !ok {
		return 0, false
	}
	if percent {
		return v / 100, true
	}
	return v, true
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func sortedChartNames(charts map[string]rawChart) []string {
	names := make([]string, 0, len(charts))
	for name := range charts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sortedSeriesNames(series map[string]rawSeries) []string {
	names := make([]string, 0, len(series))
	for name := range series {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
