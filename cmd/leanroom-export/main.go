package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"leanroom/internal/config"
	"leanroom/internal/export"
	"leanroom/internal/store"
	"leanroom/internal/util"
)

const dateLayout = "2006-01-02"

func main() {
	symbolsFlag := flag.String("symbols", "SPY,QQQ,IWM", "comma-separated ticker list")
	startFlag := flag.String("start", "2016-01-01", "start date (YYYY-MM-DD)")
	endFlag := flag.String("end", "", "end date (YYYY-MM-DD), default yesterday")
	rateFlag := flag.Int("rate", 200, "max API requests per minute")
	flag.Parse()

	// .env is optional; the real environment wins.
	_ = godotenv.Load()

	cfgPath := os.Getenv("LEANROOM_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(os.Stdout, cfg.Logging.Level)
	util.SetDefault(logger)

	if cfg.Alpaca.APIKey == "" || cfg.Alpaca.APISecret == "" {
		log.Fatal("alpaca credentials missing: set ALPACA_API_KEY and ALPACA_API_SECRET")
	}

	start, err := time.Parse(dateLayout, *startFlag)
	if err != nil {
		log.Fatalf("bad -start date: %v", err)
	}
	end := time.Now().UTC().AddDate(0, 0, -1)
	if *endFlag != "" {
		end, err = time.Parse(dateLayout, *endFlag)
		if err != nil {
			log.Fatalf("bad -end date: %v", err)
		}
	}

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

	source := export.NewAlpacaSource(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.BaseURL)
	exporter := export.New(source, candles, *rateFlag, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	symbols := strings.Split(*symbolsFlag, ",")
	slog.Info("starting export",
		"symbols", len(symbols),
		"start", start.Format(dateLayout),
		"end", end.Format(dateLayout),
		"storage", cfg.Storage.Backend)

	total, err := exporter.Run(ctx, symbols, start, end)
	if err != nil {
		log.Fatalf("export error: %v", err)
	}
	slog.Info("export complete", "candles", total)
}
