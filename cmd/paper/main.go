package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"equity-signal-lab/internal/domain"
	"equity-signal-lab/internal/ingestion"
	"equity-signal-lab/internal/metrics"
	"equity-signal-lab/internal/observability"
	"equity-signal-lab/internal/paper"
	"equity-signal-lab/internal/telemetry"
)

func main() {
	// Feed
	feedURL := flag.String("feed-url", "", "WebSocket bar feed endpoint (required)")
	instrumentsFlag := flag.String("instruments", "", "Comma-separated instruments to subscribe")
	signalsCSV := flag.String("signals-csv", "", "Path to signals CSV (required)")

	// Session config
	maxConcurrent := flag.Int("max-concurrent", 3, "Max open + pending positions")
	perTradeCash := flag.Float64("per-trade-cash", 10000, "Cash allocated per admitted candidate")
	budget := flag.Float64("budget", 30000, "Total committable cash")
	maxDailyStops := flag.Int("max-daily-stops", 2, "STOP exits per day before blocking (0 disables)")
	maxDailyAdverseR := flag.Float64("max-daily-adverse-r", -3, "Block when day's cumulative R <= this (0 disables)")
	policy := flag.String("policy", "conservative", "Ambiguous-bar policy: conservative, proportional")
	lagBars := flag.Int("lag-bars", 1, "Bars between signal arrival and entry")
	timeLimitBars := flag.Int("time-limit-bars", 20, "Default time limit for signals without one")
	flattenOnBlock := flag.Bool("flatten-on-block", false, "Flatten open positions when a daily block fires")

	// Observability
	metricsAddr := flag.String("metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
	natsURL := flag.String("nats-url", "", "Publish trade closes to this NATS server")

	flag.Parse()

	logger := log.New(os.Stderr, "[paper] ", log.LstdFlags)

	if *feedURL == "" {
		logger.Fatal("--feed-url is required")
	}
	if *signalsCSV == "" {
		logger.Fatal("--signals-csv is required")
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

	signals, rowErrs, err := ingestion.LoadSignalsFile(*signalsCSV)
	if err != nil {
		logger.Fatalf("load signals: %v", err)
	}
	for _, re := range rowErrs {
		logger.Printf("signals row %d rejected: %v", re.Line, re.Err)
		observability.RecordRowError("signal")
	}
	sort.SliceStable(signals, func(i, j int) bool {
		return signals[i].AsOfMs < signals[j].AsOfMs
	})
	logger.Printf("Loaded %d signals (%d rows rejected)", len(signals), len(rowErrs))

	cfg := domain.DefaultConfig()
	cfg.MaxConcurrent = *maxConcurrent
	cfg.PerTradeCash = *perTradeCash
	cfg.Budget = *budget
	cfg.MaxDailyStops = *maxDailyStops
	cfg.MaxDailyAdverseR = *maxDailyAdverseR
	cfg.AmbiguousBarPolicy = domain.AmbiguousBarPolicy(*policy)
	cfg.ExecutionLagBars = *lagBars
	cfg.DefaultTimeLimitBars = *timeLimitBars
	cfg.FlattenOnBlock = *flattenOnBlock

	session, err := paper.NewSession(cfg)
	if err != nil {
		logger.Fatalf("create session: %v", err)
	}
	logger.Printf("Session run ID: %s", session.RunID())

	var pub *telemetry.Publisher
	if *natsURL != "" {
		pub, err = telemetry.NewPublisher(*natsURL)
		if err != nil {
			logger.Fatalf("connect to NATS: %v", err)
		}
		defer pub.Close()
	}

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

	var instruments []string
	if *instrumentsFlag != "" {
		instruments = strings.Split(*instrumentsFlag, ",")
	}

	feed, err := ingestion.NewBarFeed(ctx, *feedURL, instruments, nil)
	if err != nil {
		logger.Fatalf("connect to feed: %v", err)
	}
	defer feed.Close()

	logger.Printf("Connected to %s, streaming...", *feedURL)

	nextSignal := 0
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case bar, ok := <-feed.Bars():
			if !ok {
				break loop
			}
			observability.DefaultMetrics.FeedBarsReceived.Inc()

			// Submit signals that have come due by this bar's clock.
			for nextSignal < len(signals) && signals[nextSignal].AsOfMs <= bar.TimestampMs {
				sig := signals[nextSignal]
				nextSignal++

				rej, err := session.Submit(sig)
				if err != nil {
					logger.Printf("signal %s invalid: %v", sig.SignalID, err)
					continue
				}
				if rej != nil {
					logger.Printf("signal %s rejected: %s", sig.SignalID, rej.Reason)
					observability.RecordRejection(string(rej.Reason))
					continue
				}
				observability.DefaultMetrics.SignalsAdmitted.Inc()
				logger.Printf("signal %s admitted (%s %s)", sig.SignalID, sig.Side, sig.Instrument)
			}

			closed, err := session.OnBar(bar)
			if err != nil {
				logger.Printf("bar %s@%d rejected: %v", bar.Instrument, bar.TimestampMs, err)
				observability.RecordRowError("bar")
				continue
			}

			for _, trade := range closed {
				observability.RecordTradeClosed(string(trade.ExitReason))
				logger.Printf("closed %s %s %s pnl=%.2f r=%.2f",
					trade.Instrument, trade.Side, trade.ExitReason, trade.PnL, trade.RMultiple)
				if pub != nil {
					if err := pub.PublishTradeClosed(trade); err != nil {
						logger.Printf("publish trade: %v", err)
					}
				}
			}
			observability.UpdatePositionGauges(session.OpenCount(), session.Committed())
		}
	}

	ledger := session.Ledger()
	agg := metrics.FromLedger(session.RunID(), ledger)
	if pub != nil && len(ledger) > 0 {
		if err := pub.PublishRunCompleted(agg); err != nil {
			logger.Printf("publish run summary: %v", err)
		}
	}

	fmt.Println()
	fmt.Println("=== Paper Session Summary ===")
	fmt.Printf("Run ID:           %s\n", agg.RunID)
	fmt.Printf("Closed Trades:    %d (%d wins / %d losses)\n", agg.TotalTrades, agg.Wins, agg.Losses)
	fmt.Printf("Still Open:       %d\n", session.OpenCount())
	fmt.Printf("Net PnL:          %.2f\n", agg.NetPnL)
	fmt.Printf("Expectancy (R):   %.4f\n", agg.Expectancy)
	fmt.Printf("Feed Drops:       %d\n", feed.Dropped())
}
