package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"docproc/internal/anomaly"
	"docproc/internal/common"
	"docproc/internal/repository"
)

// anomalyscan runs one on-demand anomaly pass over completed documents and
// prints the report as JSON.
func main() {
	days := flag.Int("days", 365, "scan window in days")
	zThreshold := flag.Float64("z", 3, "z-score threshold for amount outliers")
	flag.Parse()

	_ = godotenv.Load()
	cfg := common.LoadConfig()
	log := common.NewJSONLogger("anomalyscan", os.Getenv("LOG_LEVEL"))

	if cfg.Database.DSN == "" {
		log.Error("DB_URL is required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	pool, err := repository.Open(ctx, cfg.Database, log)
	if err != nil {
		log.Error("database open failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	docs := repository.NewDocumentRepository(pool, cfg.Intake.DuplicateWindow)
	source := repository.NewAnomalySource(docs, log)

	since := time.Now().AddDate(0, 0, -*days)
	records, err := source.ListRecords(ctx, since)
	if err != nil {
		log.Error("load records failed", "error", err)
		os.Exit(1)
	}

	detector := anomaly.NewDetector(anomaly.Config{ZScoreThreshold: *zThreshold}, log)
	report := detector.Scan(records)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		fmt.Fprintln(os.Stderr, "encode report:", err)
		os.Exit(1)
	}
}
