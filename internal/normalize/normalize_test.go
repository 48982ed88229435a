package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"leanroom/internal/domain"
	"leanroom/internal/manifest"
)

func TestParseDecimal(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"10", 10, true},
		{"$1,234.50", 1234.50, true},
		{"12.5%", 12.5, true},
		{"-5.25%", -5.25, true},
		{" ", 0, false},
		{"", 0, false},
		{"abc", 0, false},
		{"$", 0, false},
	}
	for _, c := range cases {
		got, ok := parseDecimal(c.in)
		if ok != c.ok || got != c.want {
			t.Errorf("parseDecimal(%q) = %v, %v, want %v, %v", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestDateOf(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"2021-01-01T00:00:00Z", "2021-01-01"},
		{"2021-01-01 00:00:00", "2021-01-01"},
		{"2021-01-01", "2021-01-01"},
		{"", ""},
	}
	for _, c := range cases {
		if got := dateOf(c.in); got != c.want {
			t.Errorf("dateOf(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestFlexFloatDecoding(t *testing.T) {
	var row rawRow
	if err := json.Unmarshal([]byte(`[1609459200, "100.5", 101, null, {"x": 1}]`), &row); err != nil {
		t.Fatalf("unmarshal row: %v", err)
	}
	if len(row) != 5 {
		t.Fatalf("len(row) = %d, want 5", len(row))
	}
	if !row[0].Valid || row[0].Value != 1609459200 {
		t.Errorf("row[0] = %+v, want valid 1609459200", row[0])
	}
	if !row[1].Valid || row[1].Value != 100.5 {
		t.Errorf("row[1] = %+v, want valid 100.5", row[1])
	}
	if row[3].Valid {
		t.Error("null decoded as valid")
	}
	if row[4].Valid {
		t.Error("object decoded as valid")
	}
}

func TestNormalizePriceSeries(t *testing.T) {
	report := []byte(`{
		"charts": {
			"SPY": {
				"series": {
					"Price": {
						"values": [
							[1609459200, "100", "102", "99", "101"],
							[1609545600, 101, 105, 100, 104]
						]
					}
				}
			}
		}
	}`)

	result, err := Normalize(report, []byte(`{}`), Params{Symbol: "spy"})
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}

	if len(result.PriceSeries) != 2 {
		t.Fatalf("len(PriceSeries) = %d, want 2", len(result.PriceSeries))
	}
	want := domain.PricePoint{Time: "2021-01-01", Open: 100, High: 102, Low: 99, Close: 101}
	if result.PriceSeries[0] != want {
		t.Errorf("PriceSeries[0] = %+v, want %+v", result.PriceSeries[0], want)
	}
	if result.PriceSeries[1].Time != "2021-01-02" || result.PriceSeries[1].Close != 104 {
		t.Errorf("PriceSeries[1] = %+v, want 2021-01-02 close 104", result.PriceSeries[1])
	}
}

func TestNormalizePriceSeriesFallbackChart(t *testing.T) {
	// No chart keyed by the symbol; the OHLC-shaped chart still wins.
	report := []byte(`{
		"charts": {
			"Price Data": {
				"series": {
					"Candles": {"values": [[1609459200, 10, 11, 9, 10.5]]}
				}
			},
			"RSI": {
				"series": {
					"RSI": {"values": [[1609459200, 50]]}
				}
			}
		}
	}`)

	result, err := Normalize(report, []byte(`{}`), Params{Symbol: "SPY"})
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}

	if len(result.PriceSeries) != 1 {
		t.Fatalf("len(PriceSeries) = %d, want 1", len(result.PriceSeries))
	}
	if result.PriceSeries[0].Close != 10.5 {
		t.Errorf("Close = %v, want 10.5", result.PriceSeries[0].Close)
	}

	// Without a layout, the chart that supplied prices is not an indicator.
	if _, ok := result.Indicators["Candles"]; ok {
		t.Error("price chart leaked into indicators")
	}
	if _, ok := result.Indicators["RSI"]; !ok {
		t.Error("RSI indicator missing from fallback extraction")
	}
}

func TestNormalizeEquityCurve(t *testing.T) {
	report := []byte(`{
		"charts": {
			"Strategy Equity": {
				"series": {
					"Daily Performance": {"values": [[1609459200, 0.01]]},
					"Equity": {"values": [[1609459200, 100000], [1609545600, "100750.25"]]}
				}
			}
		}
	}`)

	result, err := Normalize(report, []byte(`{}`), Params{Symbol: "SPY"})
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}

	if len(result.EquityCurve) != 2 {
		t.Fatalf("len(EquityCurve) = %d, want 2", len(result.EquityCurve))
	}
	if result.EquityCurve[1].Value != 100750.25 {
		t.Errorf("EquityCurve[1].Value = %v, want 100750.25", result.EquityCurve[1].Value)
	}

	// The equity chart never shows up as an indicator.
	if len(result.Indicators) != 0 {
		t.Errorf("Indicators = %v, want empty", result.Indicators)
	}
}

func TestNormalizeOrders(t *testing.T) {
	report := []byte(`{
		"orders": {
			"2": {
				"id": 2,
				"symbol": {"value": "SPY", "id": "SPY R735QTJ8XC9X"},
				"time": "2021-01-03T00:00:00Z",
				"type": 0,
				"direction": 1,
				"status": 3,
				"quantity": -10,
				"price": 105
			},
			"1": {
				"id": 1,
				"symbol": {"value": "SPY"},
				"time": "2021-01-01T00:00:00Z",
				"type": 1,
				"direction": 0,
				"status": 3,
				"quantity": 10,
				"price": "101.5",
				"lastFillTime": "2021-01-01T01:00:00Z",
				"tag": "entry"
			}
		}
	}`)

	result, err := Normalize(report, []byte(`{}`), Params{Symbol: "SPY"})
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}

	if len(result.Orders) != 2 {
		t.Fatalf("len(Orders) = %d, want 2", len(result.Orders))
	}

	first := result.Orders[0]
	want := domain.Order{
		ID:           1,
		Symbol:       "SPY",
		Time:         "2021-01-01",
		Status:       "Filled",
		Type:         "Limit",
		Direction:    "Buy",
		Quantity:     10,
		Price:        101.5,
		LastFillTime: "2021-01-01",
		Tag:          "entry",
	}
	if first != want {
		t.Errorf("Orders[0] = %+v, want %+v", first, want)
	}

	second := result.Orders[1]
	if second.ID != 2 || second.Type != "Market" || second.Direction != "Sell" {
		t.Errorf("Orders[1] = %+v, want id 2 Market Sell", second)
	}
}

func TestNormalizeOrderEnumEdgeCases(t *testing.T) {
	report := []byte(`{
		"orders": {
			"7": {
				"symbol": "QQQ",
				"time": "2021-01-01T00:00:00Z",
				"type": "Limit",
				"direction": 42,
				"status": "3"
			}
		}
	}`)

	result, err := Normalize(report, []byte(`{}`), Params{Symbol: "QQQ"})
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}

	if len(result.Orders) != 1 {
		t.Fatalf("len(Orders) = %d, want 1", len(result.Orders))
	}
	order := result.Orders[0]
	if order.ID != 7 {
		t.Errorf("ID = %d, want 7 (from map key)", order.ID)
	}
	if order.Symbol != "QQQ" {
		t.Errorf("Symbol = %q, want QQQ (bare string form)", order.Symbol)
	}
	if order.Type != "Limit" {
		t.Errorf("Type = %q, want spelled name to pass through", order.Type)
	}
	if order.Direction != "42" {
		t.Errorf("Direction = %q, want unknown value formatted as number", order.Direction)
	}
	if order.Status != "Filled" {
		t.Errorf("Status = %q, want numeric string 3 to map to Filled", order.Status)
	}
}

func TestNormalizeTradesFromSummary(t *testing.T) {
	summary := []byte(`{
		"totalPerformance": {
			"closedTrades": [
				{
					"symbol": {"value": "SPY"},
					"direction": 0,
					"entryTime": "2021-01-01T00:00:00Z",
					"exitTime": "2021-01-05T00:00:00Z",
					"entryPrice": 100,
					"exitPrice": 105,
					"quantity": 10,
					"profitLoss": 50
				},
				{
					"symbol": {"value": "SPY"},
					"direction": 1,
					"entryTime": "2021-02-01T00:00:00Z",
					"exitTime": "2021-02-03T00:00:00Z",
					"entryPrice": "110",
					"exitPrice": "108",
					"quantity": 5,
					"profitLoss": "10"
				}
			]
		}
	}`)

	result, err := Normalize([]byte(`{}`), summary, Params{Symbol: "SPY"})
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}

	if len(result.Trades) != 2 {
		t.Fatalf("len(Trades) = %d, want 2", len(result.Trades))
	}

	want := domain.Trade{
		ID:         1,
		Direction:  "Long",
		EntryTime:  "2021-01-01",
		EntryPrice: 100,
		ExitTime:   "2021-01-05",
		ExitPrice:  105,
		Quantity:   10,
		Profit:     50,
	}
	if result.Trades[0] != want {
		t.Errorf("Trades[0] = %+v, want %+v", result.Trades[0], want)
	}
	if result.Trades[1].ID != 2 || result.Trades[1].Direction != "Short" {
		t.Errorf("Trades[1] = %+v, want id 2 Short", result.Trades[1])
	}
	if result.Trades[1].EntryPrice != 110 || result.Trades[1].Profit != 10 {
		t.Errorf("Trades[1] = %+v, want string numerics decoded", result.Trades[1])
	}
}

func TestNormalizeTradesFallbackFromOrders(t *testing.T) {
	// 67 round trips as filled order pairs; the summary has no closed
	// trades, so trades are reconstructed with computed profits.
	const rounds = 67

	orders := map[string]any{}
	day := int64(1514851200) // 2018-01-02 UTC
	for i := 0; i < rounds; i++ {
		entryID := i*2 + 1
		exitID := i*2 + 2
		entryPrice := 100.0 + float64(i)
		exitPrice := entryPrice + 2.5

		orders[fmt.Sprint(entryID)] = map[string]any{
			"id":        entryID,
			"symbol":    map[string]any{"value": "SPY"},
			"time":      unixDate(float64(day)) + "T14:31:00Z",
			"type":      0,
			"direction": 0,
			"status":    3,
			"quantity":  10,
			"price":     entryPrice,
		}
		day += 86400
		orders[fmt.Sprint(exitID)] = map[string]any{
			"id":        exitID,
			"symbol":    map[string]any{"value": "SPY"},
			"time":      unixDate(float64(day)) + "T14:31:00Z",
			"type":      0,
			"direction": 1,
			"status":    3,
			"quantity":  -10,
			"price":     exitPrice,
		}
		day += 86400
	}

	report, err := json.Marshal(map[string]any{"orders": orders})
	if err != nil {
		t.Fatalf("marshal report: %v", err)
	}

	result, err := Normalize(report, []byte(`{"totalPerformance": {"closedTrades": []}}`), Params{Symbol: "SPY"})
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}

	if len(result.Trades) != rounds {
		t.Fatalf("len(Trades) = %d, want %d", len(result.Trades), rounds)
	}
	for i, trade := range result.Trades {
		if trade.ID != i+1 {
			t.Errorf("Trades[%d].ID = %d, want %d", i, trade.ID, i+1)
		}
		if trade.Direction != "Long" {
			t.Errorf("Trades[%d].Direction = %q, want Long", i, trade.Direction)
		}
		wantProfit := (trade.ExitPrice - trade.EntryPrice) * trade.Quantity
		if math.Abs(trade.Profit-wantProfit) > 1e-9 {
			t.Errorf("Trades[%d].Profit = %v, want %v", i, trade.Profit, wantProfit)
		}
	}
}

func TestTradesFromOrdersShortRoundTrip(t *testing.T) {
	orders := []domain.Order{
		{ID: 1, Symbol: "IWM", Time: "2021-01-01", Status: "Filled", Direction: "Sell", Quantity: -20, Price: 105},
		{ID: 2, Symbol: "IWM", Time: "2021-01-04", Status: "Filled", Direction: "Buy", Quantity: 20, Price: 100},
		{ID: 3, Symbol: "IWM", Time: "2021-01-05", Status: "Canceled", Direction: "Buy", Quantity: 20, Price: 99},
	}

	trades := tradesFromOrders(orders, "IWM")
	if len(trades) != 1 {
		t.Fatalf("len(trades) = %d, want 1", len(trades))
	}
	trade := trades[0]
	if trade.Direction != "Short" {
		t.Errorf("Direction = %q, want Short", trade.Direction)
	}
	if trade.Quantity != 20 {
		t.Errorf("Quantity = %v, want 20", trade.Quantity)
	}
	// Short profit flips the sign: sold at 105, covered at 100.
	if trade.Profit != 100 {
		t.Errorf("Profit = %v, want 100", trade.Profit)
	}
}

func TestNormalizeIndicatorsWithLayout(t *testing.T) {
	report := []byte(`{
		"charts": {
			"RSI": {
				"series": {
					"RSI": {"values": [[1609459200, "50"], [1609545600, "55"]]},
					"RSI_MA": {"values": [[1609459200, "48"], [1609545600, "52"]]},
					"Scratch": {"values": [[1609459200, 1]]}
				}
			}
		}
	}`)

	params := Params{
		Symbol: "SPY",
		Charts: []manifest.Chart{{Name: "RSI", Series: []string{"RSI", "RSI_MA"}}},
	}
	result, err := Normalize(report, []byte(`{}`), params)
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}

	if len(result.Indicators) != 2 {
		t.Fatalf("len(Indicators) = %d, want 2 (layout-driven)", len(result.Indicators))
	}
	rsi := result.Indicators["RSI"]
	if len(rsi) != 2 || rsi[0].Value != 50 {
		t.Errorf("RSI = %+v, want 2 points starting at 50", rsi)
	}
	rsiMA := result.Indicators["RSI_MA"]
	if len(rsiMA) != 2 || rsiMA[1].Value != 52 {
		t.Errorf("RSI_MA = %+v, want second point 52", rsiMA)
	}
	if _, ok := result.Indicators["Scratch"]; ok {
		t.Error("series outside the layout extracted")
	}
}

func TestNormalizeIndicatorsMissingSeries(t *testing.T) {
	// Layout names series the run never plotted; they are skipped.
	report := []byte(`{
		"charts": {
			"Bands": {
				"series": {
					"Lower": {"values": [[1609459200, 95]]},
					"Upper": {"values": []}
				}
			}
		}
	}`)

	params := Params{
		Symbol: "IWM",
		Charts: []manifest.Chart{
			{Name: "Bands", Series: []string{"Lower", "Middle", "Upper"}},
			{Name: "RSI", Series: []string{"RSI"}},
		},
	}
	result, err := Normalize(report, []byte(`{}`), params)
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}

	if len(result.Indicators) != 1 {
		t.Fatalf("Indicators = %v, want only Lower", result.Indicators)
	}
	if _, ok := result.Indicators["Lower"]; !ok {
		t.Error("Lower missing")
	}
}

func TestNormalizeMetrics(t *testing.T) {
	summary := []byte(`{
		"totalPerformance": {
			"tradeStatistics": {
				"totalNumberOfTrades": 1,
				"numberOfWinningTrades": 1,
				"totalProfitLoss": "100"
			},
			"portfolioStatistics": {"startEquity": "100000"}
		},
		"statistics": {
			"Net Profit": "1%",
			"Win Rate": "100%",
			"Drawdown": "10%",
			"Sharpe Ratio": "1.5",
			"Sortino Ratio": "1.2"
		}
	}`)

	result, err := Normalize([]byte(`{}`), summary, Params{Symbol: "SPY"})
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}

	m := result.Metrics
	if m.NetProfit != 100.0 {
		t.Errorf("NetProfit = %v, want 100", m.NetProfit)
	}
	if m.NetProfitPercent != 0.01 {
		t.Errorf("NetProfitPercent = %v, want 0.01", m.NetProfitPercent)
	}
	if m.WinRate != 1.0 {
		t.Errorf("WinRate = %v, want 1", m.WinRate)
	}
	if m.MaxDrawdown != 0.1 {
		t.Errorf("MaxDrawdown = %v, want 0.1", m.MaxDrawdown)
	}
	if m.SharpeRatio != 1.5 || m.SortinoRatio != 1.2 {
		t.Errorf("ratios = %v/%v, want 1.5/1.2", m.SharpeRatio, m.SortinoRatio)
	}
	if m.TotalTrades != 1 || m.WinningTrades != 1 {
		t.Errorf("trade counts = %d/%d, want 1/1", m.TotalTrades, m.WinningTrades)
	}
}

func TestNormalizeMetricsPortfolioFallback(t *testing.T) {
	summary := []byte(`{
		"totalPerformance": {
			"portfolioStatistics": {
				"winRate": "0.52",
				"drawdown": 0.196,
				"sharpeRatio": "0.724",
				"totalNetProfit": "0.245"
			}
		},
		"statistics": {}
	}`)

	result, err := Normalize([]byte(`{}`), summary, Params{Symbol: "SPY"})
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}

	m := result.Metrics
	if m.WinRate != 0.52 {
		t.Errorf("WinRate = %v, want 0.52 (portfolio fallback, no division)", m.WinRate)
	}
	if m.MaxDrawdown != 0.196 {
		t.Errorf("MaxDrawdown = %v, want 0.196", m.MaxDrawdown)
	}
	if m.SharpeRatio != 0.724 {
		t.Errorf("SharpeRatio = %v, want 0.724", m.SharpeRatio)
	}
	if m.NetProfitPercent != 0.245 {
		t.Errorf("NetProfitPercent = %v, want 0.245", m.NetProfitPercent)
	}
}

func TestNormalizeEmptyArtifacts(t *testing.T) {
	result, err := Normalize([]byte(`{}`), []byte(`{}`), Params{Symbol: "SPY"})
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}

	if result.PriceSeries == nil || len(result.PriceSeries) != 0 {
		t.Errorf("PriceSeries = %v, want empty non-nil", result.PriceSeries)
	}
	if result.EquityCurve == nil || len(result.EquityCurve) != 0 {
		t.Errorf("EquityCurve = %v, want empty non-nil", result.EquityCurve)
	}
	if result.Trades == nil || len(result.Trades) != 0 {
		t.Errorf("Trades = %v, want empty non-nil", result.Trades)
	}
	if result.Orders == nil || len(result.Orders) != 0 {
		t.Errorf("Orders = %v, want empty non-nil", result.Orders)
	}
	if result.Indicators == nil || len(result.Indicators) != 0 {
		t.Errorf("Indicators = %v, want empty non-nil", result.Indicators)
	}
	if result.Metrics != (domain.Metrics{}) {
		t.Errorf("Metrics = %+v, want zero", result.Metrics)
	}
}

func TestNormalizeMalformedArtifacts(t *testing.T) {
	_, err := Normalize([]byte(`{not json`), []byte(`{}`), Params{Symbol: "SPY"})
	if err == nil {
		t.Fatal("Normalize should fail on malformed report")
	}
	var nerr *Error
	if !errors.As(err, &nerr) {
		t.Fatalf("error = %v, want *Error", err)
	}
	if nerr.Artifact != "result.json" {
		t.Errorf("Artifact = %q, want result.json", nerr.Artifact)
	}

	_, err = Normalize([]byte(`{}`), []byte(`broken`), Params{Symbol: "SPY"})
	if !errors.As(err, &nerr) {
		t.Fatalf("error = %v, want *Error", err)
	}
	if nerr.Artifact != "result-summary.json" {
		t.Errorf("Artifact = %q, want result-summary.json", nerr.Artifact)
	}
	if !strings.Contains(nerr.Error(), "result-summary.json") {
		t.Errorf("Error() = %q, want artifact name included", nerr.Error())
	}
}
