// Package backtest replays historical bars through the analysis engine
// and feeds every resolved signal back into its learning loop.
package backtest

import (
	"context"
	"fmt"
	"sort"

	"market-pattern-engine/internal/alerts"
	"market-pattern-engine/internal/engine"
	"market-pattern-engine/internal/logging"
	"market-pattern-engine/internal/market"
	"market-pattern-engine/internal/patterns"
)

// Replay defaults, measured in bars.
const (
	DefaultWarmupBars   = 50
	DefaultHorizonBars  = 30
	DefaultCooldownBars = 10
)

// Exit reasons recorded on simulated trades.
const (
	ExitTarget  = "target"
	ExitStop    = "stop"
	ExitHorizon = "horizon"
)

// Config controls a replay run.
type Config struct {
	// WarmupBars is how much history the engine sees before the first
	// evaluated window.
	WarmupBars int `json:"warmup_bars"`
	// HorizonBars caps how long a simulated trade stays open.
	HorizonBars int `json:"horizon_bars"`
	// CooldownBars suppresses repeat entries for the same pattern type
	// and direction after a trade opens.
	CooldownBars int `json:"cooldown_bars"`
}

func (c *Config) applyDefaults() {
	if c.WarmupBars <= 0 {
		c.WarmupBars = DefaultWarmupBars
	}
	if c.HorizonBars <= 0 {
		c.HorizonBars = DefaultHorizonBars
	}
	if c.CooldownBars <= 0 {
		c.CooldownBars = DefaultCooldownBars
	}
}

// Trade is one alert followed forward to resolution.
type Trade struct {
	PatternType    patterns.PatternType `json:"pattern_type"`
	Direction      patterns.Direction   `json:"direction"`
	Timeframe      market.Timeframe     `json:"timeframe"`
	Regime         market.Regime        `json:"regime"`
	Confidence     float64              `json:"confidence"`
	Urgency        alerts.Urgency       `json:"urgency"`
	EntryIndex     int                  `json:"entry_index"`
	EntryPrice     float64              `json:"entry_price"`
	TargetPrice    float64              `json:"target_price"`
	StopLoss       float64              `json:"stop_loss"`
	ExitIndex      int                  `json:"exit_index"`
	ExitPrice      float64              `json:"exit_price"`
	ExitReason     string               `json:"exit_reason"`
	Success        bool                 `json:"success"`
	HoldingMinutes int                  `json:"holding_minutes"`
}

// PatternStats aggregates resolved trades for one pattern type.
type PatternStats struct {
	PatternType       patterns.PatternType `json:"pattern_type"`
	Trades            int                  `json:"trades"`
	Wins              int                  `json:"wins"`
	Losses            int                  `json:"losses"`
	WinRate           float64              `json:"win_rate"`
	AvgConfidence     float64              `json:"avg_confidence"`
	AvgHoldingMinutes float64              `json:"avg_holding_minutes"`
	FinalThreshold    float64              `json:"final_threshold"`
}

// Result summarises one replay run.
type Result struct {
	Symbol        string                                `json:"symbol"`
	Timeframe     market.Timeframe                      `json:"timeframe"`
	BarsPlayed    int                                   `json:"bars_played"`
	AlertsSeen    int                                   `json:"alerts_seen"`
	AlertsSkipped int                                   `json:"alerts_skipped"`
	Trades        []Trade                               `json:"trades"`
	Stats         map[patterns.PatternType]*PatternStats `json:"stats"`
}

// SortedStats returns per-pattern stats ordered by trade count, busiest
// first.
func (res *Result) SortedStats() []*PatternStats {
	out := make([]*PatternStats, 0, len(res.Stats))
	for _, st := range res.Stats {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Trades != out[j].Trades {
			return out[i].Trades > out[j].Trades
		}
		return out[i].PatternType < out[j].PatternType
	})
	return out
}

func (res *Result) record(tr Trade) {
	st, ok := res.Stats[tr.PatternType]
	if !ok {
		st = &PatternStats{PatternType: tr.PatternType}
		res.Stats[tr.PatternType] = st
	}
	st.Trades++
	if tr.Success {
		st.Wins++
	} else {
		st.Losses++
	}
	n := float64(st.Trades)
	st.AvgConfidence = (st.AvgConfidence*(n-1) + tr.Confidence) / n
	st.AvgHoldingMinutes = (st.AvgHoldingMinutes*(n-1) + float64(tr.HoldingMinutes)) / n
	st.WinRate = float64(st.Wins) / n * 100
}

// Replayer walks a bar series through the engine window by window,
// simulating the alerts it raises and recording their outcomes.
type Replayer struct {
	engine *engine.Engine
	cfg    Config
	log    *logging.Logger
}

// NewReplayer creates a replayer around an engine. Zero config fields
// fall back to the package defaults.
func NewReplayer(eng *engine.Engine, cfg Config) *Replayer {
	cfg.applyDefaults()
	return &Replayer{
		engine: eng,
		cfg:    cfg,
		log:    logging.WithComponent("backtest"),
	}
}

type cooldownKey struct {
	pattern   patterns.PatternType
	direction patterns.Direction
}

type pendingOutcome struct {
	exitIndex int
	outcome   engine.Outcome
}

// Replay feeds bars to the engine one at a time. Every alert raised on a
// window becomes a simulated trade resolved on the bars that follow, and
// every resolution is recorded so thresholds and scorers evolve exactly
// as they would live.
func (r *Replayer) Replay(ctx context.Context, symbol string, tf market.Timeframe, bars []market.Bar) (*Result, error) {
	if len(bars) <= r.cfg.WarmupBars {
		return nil, fmt.Errorf("replay %s %s: need more than %d bars, got %d",
			symbol, tf, r.cfg.WarmupBars, len(bars))
	}

	res := &Result{
		Symbol:    symbol,
		Timeframe: tf,
		Stats:     make(map[patterns.PatternType]*PatternStats),
	}
	cooldowns := make(map[cooldownKey]int)
	var pending []pendingOutcome

	for i := r.cfg.WarmupBars; i < len(bars); i++ {
		// A resolved trade becomes visible to the engine only once
		// its exit bar has passed.
		next := pending[:0]
		for _, p := range pending {
			if p.exitIndex < i {
				r.engine.RecordOutcome(p.outcome)
			} else {
				next = append(next, p)
			}
		}
		pending = next

		window := map[market.Timeframe][]market.Bar{tf: bars[:i+1]}
		out, err := r.engine.Analyze(ctx, symbol, window)
		if err != nil {
			return nil, fmt.Errorf("analysis at bar %d: %w", i, err)
		}

		for _, a := range out.Alerts {
			// Confluence alerts duplicate their member candidates.
			if a.Confluence {
				continue
			}
			res.AlertsSeen++

			c := a.Candidate
			if !levelsBracketEntry(c) {
				res.AlertsSkipped++
				continue
			}
			key := cooldownKey{pattern: c.PatternType, direction: c.Direction}
			if until, ok := cooldowns[key]; ok && i < until {
				res.AlertsSkipped++
				continue
			}

			trade := r.simulate(a, bars, i)
			trade.Regime = out.Regime.Regime
			cooldowns[key] = max(trade.ExitIndex, i+r.cfg.CooldownBars)

			pending = append(pending, pendingOutcome{
				exitIndex: trade.ExitIndex,
				outcome: engine.Outcome{
					PatternType:    trade.PatternType,
					Timeframe:      tf,
					Direction:      trade.Direction,
					Regime:         trade.Regime,
					Confidence:     trade.Confidence,
					Success:        trade.Success,
					HoldingMinutes: trade.HoldingMinutes,
					Features:       c.Features,
				},
			})

			res.Trades = append(res.Trades, trade)
			res.record(trade)
		}
	}

	for _, p := range pending {
		r.engine.RecordOutcome(p.outcome)
	}

	res.BarsPlayed = len(bars) - r.cfg.WarmupBars
	thresholds := r.engine.Thresholds()
	for pt, st := range res.Stats {
		if th, ok := thresholds[pt]; ok {
			st.FinalThreshold = th
		}
	}

	r.log.Info("replay finished",
		"symbol", symbol,
		"timeframe", string(tf),
		"bars", res.BarsPlayed,
		"alerts", res.AlertsSeen,
		"trades", len(res.Trades),
	)
	return res, nil
}

// simulate walks a trade forward from its entry bar until the target or
// stop is touched, or the horizon expires. When both levels fall inside
// one bar the stop wins.
func (r *Replayer) simulate(a alerts.Alert, bars []market.Bar, entryIdx int) Trade {
	c := a.Candidate
	trade := Trade{
		PatternType: c.PatternType,
		Direction:   c.Direction,
		Timeframe:   c.Timeframe,
		Confidence:  a.Confidence,
		Urgency:     a.Urgency,
		EntryIndex:  entryIdx,
		EntryPrice:  c.EntryPrice,
		TargetPrice: c.TargetPrice,
		StopLoss:    c.StopLoss,
	}

	end := entryIdx + r.cfg.HorizonBars
	if end > len(bars)-1 {
		end = len(bars) - 1
	}

	exitIdx := end
	exitPrice := bars[end].Close
	reason := ExitHorizon

	for j := entryIdx + 1; j <= end; j++ {
		bar := bars[j]
		if c.Direction == patterns.DirectionBullish {
			if bar.Low <= c.StopLoss {
				exitIdx, exitPrice, reason = j, c.StopLoss, ExitStop
				break
			}
			if bar.High >= c.TargetPrice {
				exitIdx, exitPrice, reason = j, c.TargetPrice, ExitTarget
				break
			}
		} else {
			if bar.High >= c.StopLoss {
				exitIdx, exitPrice, reason = j, c.StopLoss, ExitStop
				break
			}
			if bar.Low <= c.TargetPrice {
				exitIdx, exitPrice, reason = j, c.TargetPrice, ExitTarget
				break
			}
		}
	}

	trade.ExitIndex = exitIdx
	trade.ExitPrice = exitPrice
	trade.ExitReason = reason
	switch reason {
	case ExitTarget:
		trade.Success = true
	case ExitStop:
		trade.Success = false
	default:
		if c.Direction == patterns.DirectionBullish {
			trade.Success = exitPrice > c.EntryPrice
		} else {
			trade.Success = exitPrice < c.EntryPrice
		}
	}

	minutes := int(bars[exitIdx].Timestamp.Sub(bars[entryIdx].Timestamp).Minutes())
	if minutes <= 0 {
		minutes = (exitIdx - entryIdx) * c.Timeframe.Minutes()
	}
	trade.HoldingMinutes = minutes
	return trade
}

// levelsBracketEntry reports whether the candidate's target and stop sit
// on the correct sides of its entry price.
func levelsBracketEntry(c patterns.PatternCandidate) bool {
	switch c.Direction {
	case patterns.DirectionBullish:
		return c.TargetPrice > c.EntryPrice && c.StopLoss < c.EntryPrice
	case patterns.DirectionBearish:
		return c.TargetPrice < c.EntryPrice && c.StopLoss > c.EntryPrice
	default:
		return false
	}
}
