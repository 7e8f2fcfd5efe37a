package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"equity-signal-lab/internal/reporting"
	"equity-signal-lab/internal/storage/migrations"
	pgstore "equity-signal-lab/internal/storage/postgres"
)

func main() {
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string (required)")
	outputDir := flag.String("output-dir", "", "Write report files here instead of stdout")
	tradesCSV := flag.Bool("trades-csv", false, "Also write per-run trade ledgers (requires --output-dir)")

	flag.Parse()

	logger := log.New(os.Stderr, "[report] ", log.LstdFlags)

	if *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required")
	}
	if *tradesCSV && *outputDir == "" {
		logger.Fatal("--trades-csv requires --output-dir")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	pool, err := pgstore.NewPool(ctx, *postgresDSN)
	if err != nil {
		logger.Fatalf("connect to postgres: %v", err)
	}
	defer pool.Close()
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		logger.Fatalf("postgres migrations: %v", err)
	}

	signalStore := pgstore.NewSignalStore(pool)
	tradeStore := pgstore.NewTradeStore(pool)
	aggregateStore := pgstore.NewAggregateStore(pool)

	gen := reporting.NewGenerator(signalStore, tradeStore, aggregateStore)
	report, err := gen.Generate(ctx)
	if err != nil {
		logger.Fatalf("generate report: %v", err)
	}

	markdown := reporting.RenderMarkdown(report)
	csv := reporting.RenderCSV(report.RunMetrics)

	if *outputDir == "" {
		fmt.Print(markdown)
		return
	}

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		logger.Fatalf("create output dir: %v", err)
	}

	mdPath := filepath.Join(*outputDir, "report.md")
	if err := os.WriteFile(mdPath, []byte(markdown), 0o644); err != nil {
		logger.Fatalf("write %s: %v", mdPath, err)
	}
	csvPath := filepath.Join(*outputDir, "run_metrics.csv")
	if err := os.WriteFile(csvPath, []byte(csv), 0o644); err != nil {
		logger.Fatalf("write %s: %v", csvPath, err)
	}
	logger.Printf("Wrote %s and %s", mdPath, csvPath)

	if *tradesCSV {
		for _, row := range report.RunMetrics {
			trades, err := tradeStore.GetByRunID(ctx, row.RunID)
			if err != nil {
				logger.Fatalf("load trades for %s: %v", row.RunID, err)
			}
			path := filepath.Join(*outputDir, fmt.Sprintf("trades_%s.csv", row.RunID))
			if err := os.WriteFile(path, []byte(reporting.RenderTradesCSV(trades)), 0o644); err != nil {
				logger.Fatalf("write %s: %v", path, err)
			}
			logger.Printf("Wrote %s (%d trades)", path, len(trades))
		}
	}
}
