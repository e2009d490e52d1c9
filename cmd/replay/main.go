package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"market-pattern-engine/config"
	"market-pattern-engine/internal/backtest"
	"market-pattern-engine/internal/engine"
	"market-pattern-engine/internal/events"
	"market-pattern-engine/internal/learning"
	"market-pattern-engine/internal/logging"
	"market-pattern-engine/internal/marketdata"
	"market-pattern-engine/internal/store"
)

func main() {
	godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Println("Usage: replay SYMBOL_TIMEFRAME.csv")
		fmt.Println("Replays a bar series through the engine and reports how every alert resolved.")
		os.Exit(1)
	}
	csvPath := os.Args[1]

	symbol, tf, ok := marketdata.ParseSeriesName(filepath.Base(csvPath))
	if !ok {
		fmt.Printf("❌ File name %q must look like BTCUSDT_1h.csv\n", filepath.Base(csvPath))
		os.Exit(1)
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
	bus.Subscribe(events.EventThresholdAdjusted, func(ev events.Event) {
		logger.Debug("threshold adjusted",
			"pattern", ev.Data["pattern_type"],
			"previous", ev.Data["previous"],
			"current", ev.Data["current"])
	})
	eng.SetEventBus(bus)

	ctx := context.Background()

	var snapshots *store.SnapshotStore
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		snapshots = store.NewSnapshotStore(client)
		if snap, found, err := snapshots.Load(ctx, cfg.Scan.SnapshotName); err != nil {
			logger.Warn("loading learned state failed", "error", err)
		} else if found {
			eng.ImportLearningState(snap)
			logger.Info("learned state restored",
				"snapshot", cfg.Scan.SnapshotName, "outcomes", eng.TotalOutcomes())
		}
	}

	loader := marketdata.NewLoader()
	bars, err := loader.LoadFile(csvPath, tf)
	if err != nil {
		fmt.Printf("❌ Failed to load %s: %v\n", csvPath, err)
		os.Exit(1)
	}
	if len(bars) == 0 {
		fmt.Printf("❌ %s holds no bars\n", csvPath)
		os.Exit(1)
	}

	fmt.Println("🔁 REPLAY")
	fmt.Printf("%s %s: %d bars (%s → %s)\n",
		symbol, tf, len(bars),
		bars[0].Timestamp.Format("2006-01-02 15:04"),
		bars[len(bars)-1].Timestamp.Format("2006-01-02 15:04"))

	replayer := backtest.NewReplayer(eng, cfg.Replay.Options())
	start := time.Now()
	res, err := replayer.Replay(ctx, symbol, tf, bars)
	if err != nil {
		fmt.Printf("❌ Replay failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\n✅ Replayed %d bars in %s: %d alerts, %d trades (%d skipped)\n",
		res.BarsPlayed, time.Since(start).Round(time.Millisecond),
		res.AlertsSeen, len(res.Trades), res.AlertsSkipped)

	printStats(res)
	if len(res.Trades) > 0 && len(res.Trades) <= 50 {
		printTrades(res)
	}

	if snapshots != nil {
		if err := snapshots.Save(ctx, cfg.Scan.SnapshotName, eng.ExportLearningState()); err != nil {
			logger.Warn("saving learned state failed", "error", err)
		} else {
			logger.Info("learned state saved",
				"snapshot", cfg.Scan.SnapshotName, "outcomes", eng.TotalOutcomes())
		}
	}

	if cfg.Postgres.Enabled {
		if err := archiveTrades(ctx, cfg.Postgres.DSN, res, logger); err != nil {
			logger.Warn("archiving outcomes failed", "error", err)
		}
	}
}

func printStats(res *backtest.Result) {
	stats := res.SortedStats()
	if len(stats) == 0 {
		fmt.Println("\nNo trades were opened.")
		return
	}

	fmt.Println("\n📈 PER-PATTERN RESULTS")
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Pattern", "Trades", "Wins", "Losses", "Win %", "Avg Conf", "Avg Hold (m)", "Threshold"})
	for _, st := range stats {
		t.AppendRow(table.Row{
			st.PatternType,
			st.Trades,
			st.Wins,
			st.Losses,
			fmt.Sprintf("%.1f", st.WinRate),
			fmt.Sprintf("%.2f", st.AvgConfidence),
			fmt.Sprintf("%.0f", st.AvgHoldingMinutes),
			fmt.Sprintf("%.2f", st.FinalThreshold),
		})
	}
	t.Render()
}

func printTrades(res *backtest.Result) {
	fmt.Println("\n🧾 TRADES")
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Pattern", "Dir", "Entry", "Exit", "Reason", "Win", "Conf", "Hold (m)"})
	for _, tr := range res.Trades {
		t.AppendRow(table.Row{
			tr.PatternType,
			tr.Direction,
			fmt.Sprintf("%d @ %.4f", tr.EntryIndex, tr.EntryPrice),
			fmt.Sprintf("%d @ %.4f", tr.ExitIndex, tr.ExitPrice),
			tr.ExitReason,
			tr.Success,
			fmt.Sprintf("%.2f", tr.Confidence),
			tr.HoldingMinutes,
		})
	}
	t.Render()
}

// archiveTrades writes every resolved trade to the outcome archive and
// prints the accumulated per-pattern aggregates.
func archiveTrades(ctx context.Context, dsn string, res *backtest.Result, logger *logging.Logger) error {
	archive, err := store.NewOutcomeArchive(ctx, dsn)
	if err != nil {
		return err
	}
	defer archive.Close()

	if err := archive.EnsureSchema(ctx); err != nil {
		return err
	}

	for _, tr := range res.Trades {
		rec := learning.PerformanceRecord{
			PatternType:    tr.PatternType,
			Timeframe:      tr.Timeframe,
			Direction:      tr.Direction,
			Regime:         tr.Regime,
			Confidence:     tr.Confidence,
			Success:        tr.Success,
			HoldingMinutes: tr.HoldingMinutes,
		}
		if err := archive.InsertOutcome(ctx, rec); err != nil {
			logger.Warn("insert outcome failed", "pattern", string(tr.PatternType), "error", err)
		}
	}

	stats, err := archive.Stats(ctx)
	if err != nil {
		return err
	}
	if len(stats) == 0 {
		return nil
	}

	fmt.Println("\n🗄  ARCHIVED AGGREGATES")
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Pattern", "Outcomes", "Wins", "Losses", "Win %", "Avg Conf", "Avg Hold (m)"})
	for _, st := range stats {
		t.AppendRow(table.Row{
			st.PatternType,
			st.TotalOutcomes,
			st.Wins,
			st.Losses,
			fmt.Sprintf("%.1f", st.WinRate*100),
			fmt.Sprintf("%.2f", st.AvgConfidence),
			fmt.Sprintf("%.0f", st.AvgHoldingMinutes),
		})
	}
	t.Render()
	return nil
}
