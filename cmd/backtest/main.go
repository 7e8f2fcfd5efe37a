package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"equity-signal-lab/internal/domain"
	"equity-signal-lab/internal/ingestion"
	"equity-signal-lab/internal/metrics"
	"equity-signal-lab/internal/simulation"
	"equity-signal-lab/internal/storage"
	chstore "equity-signal-lab/internal/storage/clickhouse"
	"equity-signal-lab/internal/storage/memory"
	"equity-signal-lab/internal/storage/migrations"
	pgstore "equity-signal-lab/internal/storage/postgres"
	"equity-signal-lab/internal/telemetry"
)

func main() {
	// Input
	barsCSV := flag.String("bars-csv", "", "Path to bars CSV (loads into the bar store)")
	signalsCSV := flag.String("signals-csv", "", "Path to signals CSV (loads into the signal store)")

	// Simulation config
	runID := flag.String("run-id", "", "Run ID (derived from config hash when empty)")
	maxConcurrent := flag.Int("max-concurrent", 3, "Max open + pending positions")
	perTradeCash := flag.Float64("per-trade-cash", 10000, "Cash allocated per admitted candidate")
	budget := flag.Float64("budget", 30000, "Total committable cash")
	maxDailyStops := flag.Int("max-daily-stops", 2, "STOP exits per day before blocking (0 disables)")
	maxDailyAdverseR := flag.Float64("max-daily-adverse-r", -3, "Block when day's cumulative R <= this (0 disables)")
	policy := flag.String("policy", "conservative", "Ambiguous-bar policy: conservative, proportional")
	lagBars := flag.Int("lag-bars", 1, "Bars between signal evaluation and entry")
	allowFractional := flag.Bool("allow-fractional", false, "Allow fractional quantities")
	fractionalPrecision := flag.Int("fractional-precision", 4, "Decimal places in fractional mode")
	timeLimitBars := flag.Int("time-limit-bars", 20, "Default time limit for signals without one")
	allowMultiple := flag.Bool("allow-multiple", false, "Allow multiple open positions per instrument")
	flattenOnBlock := flag.Bool("flatten-on-block", false, "Flatten open positions when a daily block fires")

	// Storage
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage")

	// Analysis
	mcIterations := flag.Int("mc-iterations", 0, "Monte Carlo resampling iterations (0 disables)")
	mcSeed := flag.Int64("mc-seed", 1, "Monte Carlo RNG seed")

	// Output
	outputJSON := flag.Bool("json", false, "Output as JSON")
	persistResult := flag.Bool("persist", false, "Persist ledger and aggregate to storage")
	natsURL := flag.String("nats-url", "", "Publish run summary to this NATS server")

	flag.Parse()

	logger := log.New(os.Stderr, "[backtest] ", log.LstdFlags)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	// Create stores
	var barStore storage.BarStore = memory.NewBarStore()
	var signalStore storage.SignalStore = memory.NewSignalStore()
	var tradeStore storage.TradeStore = memory.NewTradeStore()
	var aggregateStore storage.AggregateStore = memory.NewAggregateStore()

	if !*useMemory {
		if *postgresDSN == "" {
			logger.Fatal("--postgres-dsn is required when not using --use-memory (signals, trades, aggregates)")
		}
		if *clickhouseDSN == "" {
			logger.Fatal("--clickhouse-dsn is required when not using --use-memory (bars)")
		}

		pool, err := pgstore.NewPool(ctx, *postgresDSN)
		if err != nil {
			logger.Fatalf("connect to postgres: %v", err)
		}
		defer pool.Close()
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			logger.Fatalf("postgres migrations: %v", err)
		}

		signalStore = pgstore.NewSignalStore(pool)
		tradeStore = pgstore.NewTradeStore(pool)
		aggregateStore = pgstore.NewAggregateStore(pool)

		conn, err := migrations.RunClickhouseMigrations(ctx, *clickhouseDSN)
		if err != nil {
			logger.Fatalf("connect to clickhouse: %v", err)
		}
		defer conn.Close()

		barStore = chstore.NewBarStore(conn)
	}

	// Load CSV inputs
	if *barsCSV != "" {
		bars, rowErrs, err := ingestion.LoadBarsFile(*barsCSV)
		if err != nil {
			logger.Fatalf("load bars: %v", err)
		}
		for _, re := range rowErrs {
			logger.Printf("bars row %d rejected: %v", re.Line, re.Err)
		}
		if err := barStore.InsertBulk(ctx, bars); err != nil {
			logger.Fatalf("store bars: %v", err)
		}
		logger.Printf("Loaded %d bars (%d rows rejected)", len(bars), len(rowErrs))
	}
	if *signalsCSV != "" {
		signals, rowErrs, err := ingestion.LoadSignalsFile(*signalsCSV)
		if err != nil {
			logger.Fatalf("load signals: %v", err)
		}
		for _, re := range rowErrs {
			logger.Printf("signals row %d rejected: %v", re.Line, re.Err)
		}
		if err := signalStore.InsertBulk(ctx, signals); err != nil {
			logger.Fatalf("store signals: %v", err)
		}
		logger.Printf("Loaded %d signals (%d rows rejected)", len(signals), len(rowErrs))
	}

	cfg := domain.SimulationConfig{
		RunID:                      *runID,
		MaxConcurrent:              *maxConcurrent,
		PerTradeCash:               *perTradeCash,
		Budget:                     *budget,
		MaxDailyStops:              *maxDailyStops,
		MaxDailyAdverseR:           *maxDailyAdverseR,
		AmbiguousBarPolicy:         domain.AmbiguousBarPolicy(*policy),
		ExecutionLagBars:           *lagBars,
		AllowFractional:            *allowFractional,
		FractionalPrecision:        *fractionalPrecision,
		DefaultTimeLimitBars:       *timeLimitBars,
		AllowMultiplePerInstrument: *allowMultiple,
		FlattenOnBlock:             *flattenOnBlock,
	}

	var ledgerStore storage.TradeStore
	if *persistResult {
		ledgerStore = tradeStore
	}

	runner := simulation.NewRunner(simulation.RunnerOptions{
		BarStore:    barStore,
		SignalStore: signalStore,
		TradeStore:  ledgerStore,
	})

	logger.Printf("Running backtest: policy=%s lag=%d concurrent=%d", cfg.AmbiguousBarPolicy, cfg.ExecutionLagBars, cfg.MaxConcurrent)

	result, err := runner.Run(ctx, cfg)
	if err != nil {
		logger.Fatalf("backtest failed: %v", err)
	}

	agg := metrics.FromLedger(result.RunID, result.Trades)
	if *persistResult {
		if err := aggregateStore.Insert(ctx, agg); err != nil {
			logger.Fatalf("persist aggregate: %v", err)
		}
	}

	var mc *metrics.MonteCarloResult
	if *mcIterations > 0 && len(result.Trades) > 0 {
		mc, err = metrics.ResampleLedger(result.Trades, metrics.MonteCarloConfig{
			Iterations: *mcIterations,
			Seed:       *mcSeed,
		})
		if err != nil {
			logger.Fatalf("monte carlo: %v", err)
		}
	}

	if *natsURL != "" {
		pub, err := telemetry.NewPublisher(*natsURL)
		if err != nil {
			logger.Fatalf("connect to NATS: %v", err)
		}
		defer pub.Close()
		if err := pub.PublishRunCompleted(agg); err != nil {
			logger.Printf("publish run summary: %v", err)
		}
	}

	if *outputJSON {
		out := struct {
			Summary    *domain.RunAggregate      `json:"summary"`
			MonteCarlo *metrics.MonteCarloResult `json:"monte_carlo,omitempty"`
			Rejections int                       `json:"rejections"`
			Dropped    int                       `json:"dropped"`
		}{agg, mc, len(result.Rejections), len(result.Dropped)}
		data, _ := json.MarshalIndent(out, "", "  ")
		fmt.Println(string(data))
	} else {
		printSummary(result, agg, mc)
	}
}

// printSummary outputs a human-readable run summary.
func printSummary(result *simulation.Result, agg *domain.RunAggregate, mc *metrics.MonteCarloResult) {
	fmt.Println()
	fmt.Println("=== Backtest Result ===")
	fmt.Printf("Run ID:             %s\n", agg.RunID)
	fmt.Printf("Trades:             %d (%d wins / %d losses)\n", agg.TotalTrades, agg.Wins, agg.Losses)
	fmt.Printf("Rejections:         %d\n", len(result.Rejections))
	fmt.Printf("Dropped Signals:    %d\n", len(result.Dropped))
	fmt.Println()

	fmt.Println("Outcome:")
	fmt.Printf("  Win Rate:         %.4f\n", agg.WinRate)
	fmt.Printf("  Net PnL:          %.2f\n", agg.NetPnL)
	fmt.Printf("  Profit Factor:    %.4f\n", agg.ProfitFactor)
	fmt.Printf("  Expectancy (R):   %.4f\n", agg.Expectancy)
	fmt.Printf("  Max Drawdown:     %.2f\n", agg.MaxDrawdown)
	fmt.Printf("  Max Consec Loss:  %d\n", agg.MaxConsecutiveLosses)
	fmt.Println()

	fmt.Println("Exits:")
	fmt.Printf("  Target:           %d\n", agg.TargetExits)
	fmt.Printf("  Stop:             %d\n", agg.StopExits)
	fmt.Printf("  Time Limit:       %d\n", agg.TimeLimitExits)
	fmt.Printf("  Daily Risk Stop:  %d\n", agg.RiskStopExits)
	fmt.Printf("  Degenerate:       %d\n", agg.DegenerateTrades)

	if mc != nil {
		fmt.Println()
		fmt.Println("Monte Carlo:")
		fmt.Printf("  Iterations:       %d\n", mc.Iterations)
		fmt.Printf("  PnL Median:       %.2f\n", mc.FinalPnLMedian)
		fmt.Printf("  PnL P05 / P95:    %.2f / %.2f\n", mc.FinalPnLP05, mc.FinalPnLP95)
		fmt.Printf("  Loss Probability: %.4f\n", mc.LossProbability)
		fmt.Printf("  Drawdown Median:  %.2f\n", mc.DrawdownMedian)
		fmt.Printf("  Drawdown P95:     %.2f\n", mc.DrawdownP95)
	}
}
