package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"market-pattern-engine/internal/learning"
	"market-pattern-engine/internal/logging"
)

// OutcomeArchive persists resolved signal outcomes to Postgres for
// offline analysis across restarts.
type OutcomeArchive struct {
	pool *pgxpool.Pool
	log  *logging.Logger
}

// PatternStats aggregates archived outcomes for one pattern type.
type PatternStats struct {
	PatternType       string  `json:"pattern_type"`
	TotalOutcomes     int     `json:"total_outcomes"`
	Wins              int     `json:"wins"`
	Losses            int     `json:"losses"`
	WinRate           float64 `json:"win_rate"`
	AvgConfidence     float64 `json:"avg_confidence"`
	AvgHoldingMinutes float64 `json:"avg_holding_minutes"`
}

// NewOutcomeArchive connects to Postgres and verifies the connection.
func NewOutcomeArchive(ctx context.Context, dsn string) (*OutcomeArchive, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.HealthCheckPeriod = time.Minute

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	if err := pool.Ping(connCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &OutcomeArchive{
		pool: pool,
		log:  logging.WithComponent("outcome-archive"),
	}, nil
}

// EnsureSchema creates the archive table and indexes if missing.
func (a *OutcomeArchive) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS pattern_outcomes (
			id SERIAL PRIMARY KEY,
			pattern_type VARCHAR(40) NOT NULL,
			timeframe VARCHAR(8),
			direction VARCHAR(8),
			regime VARCHAR(16),
			confidence DECIMAL(6, 4) NOT NULL,
			success BOOLEAN NOT NULL,
			holding_minutes INTEGER NOT NULL DEFAULT 0,
			recorded_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_pattern_outcomes_type ON pattern_outcomes(pattern_type)`,
		`CREATE INDEX IF NOT EXISTS idx_pattern_outcomes_recorded_at ON pattern_outcomes(recorded_at)`,
	}
	for _, stmt := range stmts {
		if _, err := a.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// InsertOutcome archives one resolved outcome.
func (a *OutcomeArchive) InsertOutcome(ctx context.Context, rec learning.PerformanceRecord) error {
	recordedAt := rec.Timestamp
	if recordedAt.IsZero() {
		recordedAt = time.Now().UTC()
	}

	_, err := a.pool.Exec(ctx,
		`INSERT INTO pattern_outcomes
			(pattern_type, timeframe, direction, regime, confidence, success, holding_minutes, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		string(rec.PatternType),
		string(rec.Timeframe),
		string(rec.Direction),
		string(rec.Regime),
		rec.Confidence,
		rec.Success,
		rec.HoldingMinutes,
		recordedAt,
	)
	if err != nil {
		return fmt.Errorf("insert outcome: %w", err)
	}
	return nil
}

// Stats returns per-pattern aggregates over the archived outcomes,
// ordered by sample count descending.
func (a *OutcomeArchive) Stats(ctx context.Context) ([]PatternStats, error) {
	query := `
		SELECT
			pattern_type,
			COUNT(*) as total_outcomes,
			SUM(CASE WHEN success THEN 1 ELSE 0 END) as wins,
			SUM(CASE WHEN success THEN 0 ELSE 1 END) as losses,
			COALESCE(AVG(confidence), 0) as avg_confidence,
			COALESCE(AVG(holding_minutes), 0) as avg_holding_minutes
		FROM pattern_outcomes
		GROUP BY pattern_type
		ORDER BY total_outcomes DESC`

	rows, err := a.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	var stats []PatternStats
	for rows.Next() {
		var st PatternStats
		if err := rows.Scan(
			&st.PatternType,
			&st.TotalOutcomes,
			&st.Wins,
			&st.Losses,
			&st.AvgConfidence,
			&st.AvgHoldingMinutes,
		); err != nil {
			a.log.Error("failed to scan pattern stats", "error", err)
			continue
		}
		if st.TotalOutcomes > 0 {
			st.WinRate = float64(st.Wins) / float64(st.TotalOutcomes)
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

// Close releases the connection pool.
func (a *OutcomeArchive) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
}
