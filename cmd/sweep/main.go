package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"equity-signal-lab/internal/domain"
	"equity-signal-lab/internal/ingestion"
	"equity-signal-lab/internal/observability"
	"equity-signal-lab/internal/sweep"
	"equity-signal-lab/internal/telemetry"
)

func main() {
	// Input
	barsCSV := flag.String("bars-csv", "", "Path to bars CSV (required)")
	signalsCSV := flag.String("signals-csv", "", "Path to signals CSV (required)")

	// Grid axes (comma-separated lists; empty keeps the base value)
	concurrents := flag.String("max-concurrent", "", "Grid values for max concurrent positions, e.g. 1,2,3")
	cashes := flag.String("per-trade-cash", "", "Grid values for per-trade cash")
	stops := flag.String("max-daily-stops", "", "Grid values for max daily stops")
	adverses := flag.String("max-daily-adverse-r", "", "Grid values for max daily adverse R")
	policies := flag.String("policies", "", "Grid values for ambiguous-bar policy: conservative,proportional")
	limits := flag.String("time-limit-bars", "", "Grid values for default time limit bars")

	// Execution
	goal := flag.String("goal", "net_pnl", "Ranking goal: net_pnl, expectancy, profit_factor, win_rate")
	workers := flag.Int("workers", 4, "Parallel runs")
	topN := flag.Int("top", 10, "Rows to print")

	// Output
	outputJSON := flag.Bool("json", false, "Output as JSON")
	natsURL := flag.String("nats-url", "", "Publish sweep ranking to this NATS server")
	metricsAddr := flag.String("metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")

	flag.Parse()

	logger := log.New(os.Stderr, "[sweep] ", log.LstdFlags)

	if *barsCSV == "" || *signalsCSV == "" {
		logger.Fatal("--bars-csv and --signals-csv are required")
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

	barPtrs, rowErrs, err := ingestion.LoadBarsFile(*barsCSV)
	if err != nil {
		logger.Fatalf("load bars: %v", err)
	}
	if len(rowErrs) > 0 {
		logger.Printf("bars: %d rows rejected", len(rowErrs))
	}
	bars := make([]domain.Bar, len(barPtrs))
	for i, b := range barPtrs {
		bars[i] = *b
	}

	signals, rowErrs, err := ingestion.LoadSignalsFile(*signalsCSV)
	if err != nil {
		logger.Fatalf("load signals: %v", err)
	}
	if len(rowErrs) > 0 {
		logger.Printf("signals: %d rows rejected", len(rowErrs))
	}

	grid := sweep.Grid{
		MaxConcurrent:        parseInts(logger, "max-concurrent", *concurrents),
		PerTradeCash:         parseFloats(logger, "per-trade-cash", *cashes),
		MaxDailyStops:        parseInts(logger, "max-daily-stops", *stops),
		MaxDailyAdverseR:     parseFloats(logger, "max-daily-adverse-r", *adverses),
		AmbiguousBarPolicies: parsePolicies(logger, *policies),
		DefaultTimeLimitBars: parseInts(logger, "time-limit-bars", *limits),
	}
	variants := grid.Expand(domain.DefaultConfig())

	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", observability.Handler())
		go func() {
			logger.Printf("Serving metrics on %s", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				logger.Printf("metrics server: %v", err)
			}
		}()
	}

	started := time.Now()
	results, err := sweep.New(sweep.Goal(*goal), *workers, logger).Run(ctx, variants, bars, signals)
	if err != nil {
		observability.RecordRun("failed", "sweep", time.Since(started).Seconds())
		logger.Fatalf("sweep failed: %v", err)
	}
	observability.RecordRun("completed", "sweep", time.Since(started).Seconds())
	observability.DefaultMetrics.AggregatesComputed.Add(float64(len(results)))

	if *natsURL != "" {
		publishRanking(logger, *natsURL, *goal, results)
	}

	shown := results
	if *topN > 0 && *topN < len(shown) {
		shown = shown[:*topN]
	}

	if *outputJSON {
		data, _ := json.MarshalIndent(shown, "", "  ")
		fmt.Println(string(data))
		return
	}

	fmt.Println()
	fmt.Printf("=== Sweep Ranking (goal=%s, %d variants) ===\n", *goal, len(results))
	fmt.Printf("%-4s %-40s %8s %12s %8s\n", "Rank", "Variant", "Trades", "Score", "WinRate")
	for _, r := range shown {
		fmt.Printf("%-4d %-40s %8d %12.4f %8.4f\n",
			r.Rank, r.Variant.Name, r.Trades, r.Score, r.Aggregate.WinRate)
	}
}

func publishRanking(logger *log.Logger, url, goal string, results []*sweep.Result) {
	pub, err := telemetry.NewPublisher(url)
	if err != nil {
		logger.Printf("connect to NATS: %v", err)
		return
	}
	defer pub.Close()

	ranking := make([]telemetry.SweepRankingRow, len(results))
	for i, r := range results {
		ranking[i] = telemetry.SweepRankingRow{
			Rank:    r.Rank,
			Variant: r.Variant.Name,
			RunID:   r.Aggregate.RunID,
			Score:   r.Score,
			Trades:  r.Trades,
		}
	}
	if err := pub.PublishSweepCompleted(goal, ranking); err != nil {
		logger.Printf("publish sweep ranking: %v", err)
	}
}

func parseInts(logger *log.Logger, name, s string) []int {
	if s == "" {
		return nil
	}
	var out []int
	for _, part := range strings.Split(s, ",") {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			logger.Fatalf("invalid --%s value %q: %v", name, part, err)
		}
		out = append(out, v)
	}
	return out
}

func parseFloats(logger *log.Logger, name, s string) []float64 {
	if s == "" {
		return nil
	}
	var out []float64
	for _, part := range strings.Split(s, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			logger.Fatalf("invalid --%s value %q: %v", name, part, err)
		}
		out = append(out, v)
	}
	return out
}

func parsePolicies(logger *log.Logger, s string) []domain.AmbiguousBarPolicy {
	if s == "" {
		return nil
	}
	var out []domain.AmbiguousBarPolicy
	for _, part := range strings.Split(s, ",") {
		switch p := domain.AmbiguousBarPolicy(strings.ToLower(strings.TrimSpace(part))); p {
		case domain.PolicyConservative, domain.PolicyProportional:
			out = append(out, p)
		default:
			logger.Fatalf("invalid --policies value %q", part)
		}
	}
	return out
}
