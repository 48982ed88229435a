// Package runconfig turns a submit request plus a manifest entry into the
// resolved configuration one engine run needs, and renders the config file
// the launcher reads.
package runconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"leanroom/internal/manifest"
)

const dateLayout = "2006-01-02"

// ConfigFileName is the engine config artifact written into each job
// workspace.
const ConfigFileName = "lean-config.json"

// ValidationError reports a submit request the generator refused. The job
// is never created when Build fails.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// RunConfig is the fully resolved configuration for one run. Built once per
// job and never mutated afterwards.
type RunConfig struct {
	AlgorithmID string
	SourceFile  string
	ClassName   string
	Symbol      string
	Timeframe   string
	StartDate   string
	EndDate     string
	Parameters  map[string]any
}

// Generator builds RunConfigs and writes engine config files.
type Generator struct {
	algorithmDir string
	dataDir      string
}

// NewGenerator creates a Generator. algorithmDir is where algorithm sources
// live; dataDir is the engine's data folder, both rendered into the config
// artifact.
func NewGenerator(algorithmDir, dataDir string) *Generator {
	return &Generator{
		algorithmDir: algorithmDir,
		dataDir:      dataDir,
	}
}

// ---------------------------------------------------------------------------
// Building
// ---------------------------------------------------------------------------

// Request is a submit payload after transport decoding. Parameter values
// arrive as JSON strings or numbers.
type Request struct {
	AlgorithmID string
	Symbol      string
	Timeframe   string
	StartDate   string
	EndDate     string
	Parameters  map[string]any
}

// Build merges entry defaults with the request into a RunConfig. The symbol
// must come from the request; timeframe and dates fall back to the entry
// defaults when omitted. Build fails with a *ValidationError when the symbol
// is empty after trimming, when a date does not parse, or when the range is
// inverted.
func (g *Generator) Build(entry manifest.Entry, req Request) (*RunConfig, error) {
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if symbol == "" {
		return nil, &ValidationError{Field: "symbol", Reason: "must not be empty"}
	}

	timeframe := strings.TrimSpace(req.Timeframe)
	if timeframe == "" {
		timeframe = entry.DefaultTimeframe
	}

	start := strings.TrimSpace(req.StartDate)
	if start == "" {
		start = entry.DefaultStart
	}
	end := strings.TrimSpace(req.EndDate)
	if end == "" {
		end = entry.DefaultEnd
	}

	startDate, err := time.Parse(dateLayout, start)
	if err != nil {
		return nil, &ValidationError{Field: "startDate", Reason: fmt.Sprintf("%q is not a YYYY-MM-DD date", start)}
	}
	endDate, err := time.Parse(dateLayout, end)
	if err != nil {
		return nil, &ValidationError{Field: "endDate", Reason: fmt.Sprintf("%q is not a YYYY-MM-DD date", end)}
	}
	if startDate.After(endDate) {
		return nil, &ValidationError{Field: "startDate", Reason: "startDate is after endDate"}
	}

	return &RunConfig{
		AlgorithmID: entry.ID,
		SourceFile:  entry.SourceFile,
		ClassName:   entry.ClassName,
		Symbol:      symbol,
		Timeframe:   timeframe,
		StartDate:   start,
		EndDate:     end,
		Parameters:  resolveParameters(entry.Parameters, req.Parameters),
	}, nil
}

// resolveParameters merges caller overrides onto the entry defaults. The
// default's type wins: an int default coerces the override to int64, a
// float default to float64, a string default passes the override through.
// Overrides that fail to parse fall back to the default silently. Caller
// keys with no default are retained, numeric-parsed when possible.
func resolveParameters(defaults, overrides map[string]any) map[string]any {
	resolved := make(map[string]any, len(defaults)+len(overrides))

	for key, def := range defaults {
		resolved[key] = coerce(def, overrides[key])
	}
	for key, val := range overrides {
		if _, ok := defaults[key]; ok {
			continue
		}
		resolved[key] = convertExtra(val)
	}

	return resolved
}

func coerce(def, override any) any {
	switch d := def.(type) {
	case int:
		return coerceInt(int64(d), override)
	case int64:
		return coerceInt(d, override)
	case float64:
		return coerceFloat(d, override)
	case string:
		return coerceString(d, override)
	default:
		if override != nil {
			return override
		}
		return def
	}
}

func coerceInt(def int64, override any) int64 {
	switch v := override.(type) {
	case nil:
		return def
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return def
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return def
		}
		return int64(n)
	case float64:
		// JSON numbers decode as float64; an int default truncates them.
		return int64(v)
	case int:
		return int64(v)
	case int64:
		return v
	default:
		return def
	}
}

func coerceFloat(def float64, override any) float64 {
	switch v := override.(type) {
	case nil:
		return def
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return def
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return def
		}
		return f
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return def
	}
}

func coerceString(def string, override any) string {
	switch v := override.(type) {
	case nil:
		return def
	case string:
		if strings.TrimSpace(v) == "" {
			return def
		}
		return v
	default:
		return fmt.Sprint(v)
	}
}

func convertExtra(val any) any {
	s, ok := val.(string)
	if !ok {
		return val
	}
	trimmed := strings.TrimSpace(s)
	if n, err := strconv.Atoi(trimmed); err == nil {
		return int64(n)
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return f
	}
	return s
}

// ---------------------------------------------------------------------------
// Config artifact
// ---------------------------------------------------------------------------

// leanConfig mirrors the subset of the launcher's config file we generate.
type leanConfig struct {
	Environment       string            `json:"environment"`
	AlgorithmTypeName string            `json:"algorithm-type-name"`
	AlgorithmLanguage string            `json:"algorithm-language"`
	AlgorithmLocation string            `json:"algorithm-location"`
	DataFolder        string            `json:"data-folder"`
	Parameters        map[string]string `json:"parameters"`
}

// WriteConfig renders the engine config file for cfg into dir and returns
// its path. The launcher only accepts string parameter values, so every
// resolved parameter is stringified, with symbol, timeframe and the date
// range folded in alongside.
func (g *Generator) WriteConfig(dir string, cfg *RunConfig) (string, error) {
	params := make(map[string]string, len(cfg.Parameters)+4)
	for key, val := range cfg.Parameters {
		params[key] = stringify(val)
	}
	params["symbol"] = cfg.Symbol
	params["timeframe"] = cfg.Timeframe
	params["startDate"] = cfg.StartDate
	params["endDate"] = cfg.EndDate

	lc := leanConfig{
		Environment:       "backtesting",
		AlgorithmTypeName: cfg.ClassName,
		AlgorithmLanguage: "Python",
		AlgorithmLocation: filepath.Join(g.algorithmDir, cfg.SourceFile),
		DataFolder:        g.dataDir,
		Parameters:        params,
	}

	data, err := json.MarshalIndent(lc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal engine config: %w", err)
	}

	path := filepath.Join(dir, ConfigFileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write engine config: %w", err)
	}

	return path, nil
}

func stringify(val any) string {
	switch v := val.(type) {
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}
