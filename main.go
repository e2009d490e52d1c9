package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"market-pattern-engine/config"
	"market-pattern-engine/internal/engine"
	"market-pattern-engine/internal/events"
	"market-pattern-engine/internal/logging"
	"market-pattern-engine/internal/market"
	"market-pattern-engine/internal/marketdata"
	"market-pattern-engine/internal/metrics"
	"market-pattern-engine/internal/patterns"
	"market-pattern-engine/internal/store"
)

func main() {
	godotenv.Load()

	if len(os.Args) > 1 && os.Args[1] == "init-config" {
		path := "config.yaml"
		if len(os.Args) > 2 {
			path = os.Args[2]
		}
		if err := config.WriteSample(path); err != nil {
			fmt.Printf("❌ Failed to write sample config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("✅ Sample configuration written to %s\n", path)
		return
	}

	cfgPath := os.Getenv("PATTERN_ENGINE_CONFIG")
	if cfgPath == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			cfgPath = "config.yaml"
		}
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("❌ Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logCfg := cfg.Logging.Options()
	logger := logging.New(&logCfg)
	logging.SetDefault(logger)

	eng, err := engine.New(cfg.Engine.Options())
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}

	bus := events.NewEventBus()
	bus.Subscribe(events.EventAlertGenerated, func(ev events.Event) {
		logger.Debug("alert generated",
			"symbol", ev.Data["symbol"], "pattern", ev.Data["pattern_type"])
	})
	eng.SetEventBus(bus)

	recorder := metrics.New()
	eng.SetMetrics(recorder)
	if cfg.Metrics.Enabled {
		go func() {
			mux := http.NewServeMux()
			mux.Handle(cfg.Metrics.Path, promhttp.Handler())
			if err := http.ListenAndServe(cfg.Metrics.Addr, mux); err != nil {
				logger.Warn("metrics endpoint stopped", "error", err)
			}
		}()
		logger.Info("metrics endpoint started",
			"addr", cfg.Metrics.Addr, "path", cfg.Metrics.Path)
	}

	ctx := context.Background()

	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		snapshots := store.NewSnapshotStore(client)
		if snap, ok, err := snapshots.Load(ctx, cfg.Scan.SnapshotName); err != nil {
			logger.Warn("loading learned state failed", "error", err)
		} else if ok {
			eng.ImportLearningState(snap)
			logger.Info("learned state restored",
				"snapshot", cfg.Scan.SnapshotName, "outcomes", eng.TotalOutcomes())
		}
	}

	fmt.Println("📊 MARKET PATTERN SCAN")
	printDetectors(eng.Registry())

	if cfg.Scan.IntervalSeconds <= 0 {
		if err := scanAll(ctx, eng, cfg, logger); err != nil {
			fmt.Printf("❌ %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Continuous mode: rescan on a timer until interrupted.
	interval := time.Duration(cfg.Scan.IntervalSeconds) * time.Second
	logger.Info("continuous scan started", "interval", interval.String())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if err := scanAll(ctx, eng, cfg, logger); err != nil {
		logger.Error("scan pass failed", "error", err)
	}
	for {
		select {
		case <-ticker.C:
			if err := scanAll(ctx, eng, cfg, logger); err != nil {
				logger.Error("scan pass failed", "error", err)
			}
		case <-sigChan:
			fmt.Println("\n👋 Shutting down")
			return
		}
	}
}

// scanAll loads every configured series fresh and runs one analysis
// pass per symbol.
func scanAll(ctx context.Context, eng *engine.Engine, cfg *config.Config, logger *logging.Logger) error {
	loader := marketdata.NewLoader()
	series, err := loader.LoadDir(cfg.Scan.DataDir)
	if err != nil {
		return fmt.Errorf("load market data from %s: %w", cfg.Scan.DataDir, err)
	}
	if len(series) == 0 {
		return fmt.Errorf("no CSV series found in %s (expected SYMBOL_TIMEFRAME.csv)", cfg.Scan.DataDir)
	}

	symFilter := cfg.Scan.SymbolFilter()
	tfFilter := cfg.Scan.TimeframeFilter()

	symbols := make([]string, 0, len(series))
	for sym := range series {
		if symFilter != nil && !symFilter[sym] {
			continue
		}
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	if len(symbols) == 0 {
		return fmt.Errorf("no symbols left after filtering %d series", len(series))
	}

	start := time.Now()
	totalAlerts := 0
	for _, sym := range symbols {
		bars := series[sym]
		if tfFilter != nil {
			filtered := make(map[market.Timeframe][]market.Bar)
			for tf, b := range bars {
				if tfFilter[tf] {
					filtered[tf] = b
				}
			}
			bars = filtered
		}
		if len(bars) == 0 {
			continue
		}

		res, err := eng.Analyze(ctx, sym, bars)
		if err != nil {
			logger.Error("analysis failed", "symbol", sym, "error", err)
			continue
		}
		printResult(res)
		totalAlerts += len(res.Alerts)
	}

	fmt.Printf("\n✅ Scanned %d symbols in %s, %d alerts\n",
		len(symbols), time.Since(start).Round(time.Millisecond), totalAlerts)
	return nil
}

func printResult(res *engine.Result) {
	fmt.Printf("\n%s | regime %s (volatility %.4f): %d candidates, %d clusters, %d alerts\n",
		res.Symbol, res.Regime.Regime, res.Regime.Volatility,
		len(res.Candidates), len(res.Clusters), len(res.Alerts))

	if len(res.Alerts) == 0 {
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Pattern", "Dir", "TF", "Conf", "Urgency", "Score", "Gate", "Entry", "Target", "Stop"})
	for _, a := range res.Alerts {
		tfCol := string(a.Candidate.Timeframe)
		if a.Confluence {
			parts := make([]string, 0, len(a.Timeframes))
			for _, tf := range a.Timeframes {
				parts = append(parts, string(tf))
			}
			tfCol = strings.Join(parts, "+")
		}
		t.AppendRow(table.Row{
			a.Candidate.PatternType,
			a.Candidate.Direction,
			tfCol,
			fmt.Sprintf("%.2f", a.Confidence),
			a.Urgency,
			fmt.Sprintf("%.2f", a.UrgencyScore),
			fmt.Sprintf("%.2f", a.Threshold),
			fmt.Sprintf("%.4f", a.Candidate.EntryPrice),
			fmt.Sprintf("%.4f", a.Candidate.TargetPrice),
			fmt.Sprintf("%.4f", a.Candidate.StopLoss),
		})
	}
	t.Render()
}

func printDetectors(reg *patterns.Registry) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Detector", "Pattern", "Status"})
	for _, r := range reg.All() {
		t.AppendRow(table.Row{r.Detector.Name(), r.Detector.PatternType(), r.Status})
	}
	t.Render()
}
