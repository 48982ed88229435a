package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"leanroom/internal/config"
	"leanroom/internal/httpapi"
	"leanroom/internal/jobs"
	"leanroom/internal/lean"
	"leanroom/internal/runconfig"
	"leanroom/internal/store"
	"leanroom/internal/util"
)

func main() {
	// .env is optional; the real environment wins.
	_ = godotenv.Load()

	cfgPath := os.Getenv("LEANROOM_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(os.Stdout, cfg.Logging.Level)
	util.SetDefault(logger)

	var candles store.CandleStore
	switch cfg.Storage.Backend {
	case "sqlite":
		sq, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
		if err != nil {
			log.Fatalf("failed to open sqlite store: %v", err)
		}
		defer sq.Close()
		candles = sq
	default:
		candles = store.NewParquetStore(cfg.Storage.DataDir)
	}

	gen := runconfig.NewGenerator(cfg.Engine.AlgorithmDir, cfg.Engine.DataDir)
	runner := lean.NewProcessRunner(cfg.Engine.Command, cfg.Engine.LauncherPath, logger)
	manager := jobs.NewManager(jobs.NewStore(), gen, runner, cfg.Backtests.WorkDir, logger)

	api := httpapi.NewServer(manager, candles, logger)
	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: api.Handler(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	logger.Info("leanroom-server listening", "addr", srv.Addr, "storage", cfg.Storage.Backend)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", "error", err)
		}
		// Let in-flight backtests record their terminal state.
		manager.Wait()
	}
}
