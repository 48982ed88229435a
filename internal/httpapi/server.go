package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"leanroom/internal/jobs"
	"leanroom/internal/manifest"
	"leanroom/internal/runconfig"
	"leanroom/internal/store"
)

// Server serves the backtest REST API.
type Server struct {
	manager *jobs.Manager
	candles store.CandleStore
	log     *slog.Logger
}

// NewServer creates a new API server.
func NewServer(manager *jobs.Manager, candles store.CandleStore, log *slog.Logger) *Server {
	return &Server{manager: manager, candles: candles, log: log}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /backtests", s.handleSubmit)
	mux.HandleFunc("GET /backtests/{jobId}", s.handleJob)
	mux.HandleFunc("GET /algorithms", s.handleAlgorithms)
	mux.HandleFunc("GET /market-data", s.handleMarketData)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /{$}", s.handleHealth)
}

// Handler returns an http.Handler with CORS and request-log middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(s.requestLog(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response code for the request log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		s.log.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"elapsed", time.Since(start).Round(time.Millisecond))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	job, err := s.manager.Create(runconfig.Request{
		AlgorithmID: req.AlgorithmID,
		Symbol:      req.Symbol,
		Timeframe:   req.Timeframe,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Parameters:  req.Parameters,
	})
	if err != nil {
		var verr *runconfig.ValidationError
		switch {
		case errors.Is(err, manifest.ErrUnknownAlgorithm):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.As(err, &verr):
			writeError(w, http.StatusBadRequest, verr.Error())
		default:
			s.log.Error("submitting backtest", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	writeJSON(w, http.StatusAccepted, SubmitResponse{JobID: job.ID, Status: job.Status})
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.manager.Get(r.PathValue("jobId"))
	if err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		s.log.Error("loading job", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleAlgorithms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, manifest.List())
}

func (s *Server) handleMarketData(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("symbol")))
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol required")
		return
	}
	timeframe := r.URL.Query().Get("timeframe")

	candles, err := s.candles.ReadCandles(r.Context(), symbol, timeframe)
	if err != nil {
		if errors.Is(err, store.ErrNoData) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		s.log.Error("reading market data", "symbol", symbol, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, MarketDataResponse{
		Symbol:    symbol,
		Timeframe: canonicalTimeframe(timeframe),
		Candles:   candles,
	})
}

// canonicalTimeframe maps a requested timeframe to the label echoed back in
// responses.
func canonicalTimeframe(timeframe string) string {
	switch strings.ToUpper(strings.TrimSpace(timeframe)) {
	case "", "1D", "D", "DAILY":
		return "1D"
	case "1H", "H", "HOURLY":
		return "1H"
	case "1M", "M", "MINUTE":
		return "1M"
	default:
		return strings.ToUpper(strings.TrimSpace(timeframe))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
