package normalize

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// ---------------------------------------------------------------------------
// Tolerant scalar decoding
// ---------------------------------------------------------------------------

// FlexFloat decodes a JSON number or a numeric string. Engine output mixes
// both within the same row. Decoding never fails; anything unparsable
// leaves Valid false.
type FlexFloat struct {
	Value float64
	Valid bool
}

func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	f.Value, f.Valid = 0, false

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return nil
		}
		if v, ok := parseDecimal(s); ok {
			f.Value, f.Valid = v, true
		}
		return nil
	}

	var v float64
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return nil
	}
	f.Value, f.Valid = v, true
	return nil
}

// rawRow is one chart sample: time followed by one or more values. Rows
// that are not arrays decode empty and get skipped downstream.
type rawRow []FlexFloat

func (r *rawRow) UnmarshalJSON(data []byte) error {
	var vals []FlexFloat
	if err := json.Unmarshal(data, &vals); err != nil {
		*r = nil
		return nil
	}
	*r = vals
	return nil
}

// rawEnum holds an enum field that may arrive as a number, a numeric
// string, or an already-spelled name.
type rawEnum struct {
	Number int
	Name   string
	IsNum  bool
}

func (e *rawEnum) UnmarshalJSON(data []byte) error {
	e.Number, e.Name, e.IsNum = 0, "", false

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return nil
		}
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			e.Number, e.IsNum = n, true
			return nil
		}
		e.Name = s
		return nil
	}

	var v float64
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return nil
	}
	e.Number, e.IsNum = int(v), true
	return nil
}

// label resolves the enum against a name table. Unknown numbers format as
// the number itself; spelled-out names pass through.
func (e rawEnum) label(table map[int]string) string {
	if e.IsNum {
		if name, ok := table[e.Number]; ok {
			return name
		}
		return strconv.Itoa(e.Number)
	}
	return e.Name
}

// rawSymbol tolerates both {"value": "SPY", "id": "..."} objects and bare
// strings.
type rawSymbol struct {
	Value string
}

func (s *rawSymbol) UnmarshalJSON(data []byte) error {
	s.Value = ""

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return nil
	}
	if trimmed[0] == '"' {
		var str string
		if err := json.Unmarshal(trimmed, &str); err != nil {
			return nil
		}
		s.Value = str
		return nil
	}

	var obj struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return nil
	}
	s.Value = obj.Value
	return nil
}

// ---------------------------------------------------------------------------
// Raw artifact shapes
// ---------------------------------------------------------------------------

// rawReport mirrors result.json: charts keyed by name, orders keyed by id.
type rawReport struct {
	Charts map[string]rawChart `json:"charts"`
	Orders map[string]rawOrder `json:"orders"`
}

type rawChart struct {
	Series map[string]rawSeries `json:"series"`
}

type rawSeries struct {
	Values []rawRow `json:"values"`
}

type rawOrder struct {
	ID           FlexFloat `json:"id"`
	Symbol       rawSymbol `json:"symbol"`
	Time         string    `json:"time"`
	Type         rawEnum   `json:"type"`
	Direction    rawEnum   `json:"direction"`
	Status       rawEnum   `json:"status"`
	Quantity     FlexFloat `json:"quantity"`
	Price        FlexFloat `json:"price"`
	LastFillTime string    `json:"lastFillTime"`
	Tag          string    `json:"tag"`
}

// rawSummary mirrors result-summary.json. Statistics values are formatted
// strings ("24.5%", "$1,234.50") or plain numbers depending on the key and
// engine version.
type rawSummary struct {
	TotalPerformance *rawPerformance `json:"totalPerformance"`
	Statistics       map[string]any  `json:"statistics"`
}

type rawPerformance struct {
	ClosedTrades        []rawClosedTrade `json:"closedTrades"`
	TradeStatistics     map[string]any   `json:"tradeStatistics"`
	PortfolioStatistics map[string]any   `json:"portfolioStatistics"`
}

type rawClosedTrade struct {
	Symbol     rawSymbol `json:"symbol"`
	Direction  rawEnum   `json:"direction"`
	EntryTime  string    `json:"entryTime"`
	EntryPrice FlexFloat `json:"entryPrice"`
	ExitTime   string    `json:"exitTime"`
	ExitPrice  FlexFloat `json:"exitPrice"`
	Quantity   FlexFloat `json:"quantity"`
	ProfitLoss FlexFloat `json:"profitLoss"`
}

// ---------------------------------------------------------------------------
// Formatted value parsing
// ---------------------------------------------------------------------------

// parseDecimal parses the engine's formatted numerics: plain numbers,
// "$1,234.50" money strings and "12.5%" percent strings. The percent sign
// is stripped, not divided out; fraction conversion is the metric layer's
// call. ok is false for empty or unparsable input.
func parseDecimal(s string) (float64, bool) {
	cleaned := strings.TrimSpace(s)
	if cleaned == "" {
		return 0, false
	}
	cleaned = strings.NewReplacer("$", "", ",", "", "%", "").Replace(cleaned)
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// dateOf truncates an engine timestamp ("2021-01-01T00:00:00Z",
// "2021-01-01 00:00:00") to its YYYY-MM-DD date.
func dateOf(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 10 {
		return s[:10]
	}
	return s
}

// unixDate formats chart row time (unix seconds) as a YYYY-MM-DD date.
func unixDate(sec float64) string {
	return time.Unix(int64(sec), 0).UTC().Format(dateLayout)
}
