package metrics

import (
	"context"
	"fmt"
	"time"

	"fame/internal/shared"

	"github.com/jmoiron/sqlx"
)

const timestampLayout = "2006-01-02 15:04:05"

// ExecutionMetric records metadata for a single provider call.
type ExecutionMetric struct {
	Provider         string
	Model            string
	PromptTokens     int
	CompletionTokens int
	LatencyMS        int64
	Demo             bool
	Timestamp        time.Time
}

// Store handles persistence of metrics to SQLite.
type Store struct {
	db *sqlx.DB
}

// NewStore initializes the Store with an existing database connection.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Record saves a metric to the database.
func (s *Store) Record(ctx context.Context, m ExecutionMetric) error {
	ts := m.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO execution_metrics (provider, model, prompt_tokens, completion_tokens, latency_ms, demo, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.Provider, m.Model, m.PromptTokens, m.CompletionTokens, m.LatencyMS, m.Demo,
		ts.UTC().Format(timestampLayout))
	if err != nil {
		return fmt.Errorf("failed to record execution metric: %w", err)
	}
	return nil
}

// RecordMeta records the outcome of one generation call.
func (s *Store) RecordMeta(ctx context.Context, meta shared.CallMeta) error {
	return s.Record(ctx, MapUsage(meta))
}

// DailyUsage represents token totals for a single day.
type DailyUsage struct {
	Date            string `db:"day"`
	TotalPrompt     int    `db:"total_prompt"`
	TotalCompletion int    `db:"total_completion"`
	TotalExecution  int    `db:"executions"`
	DemoExecutions  int    `db:"demo_executions"`
}

// GetDailyUsage retrieves usage for the last N days, most recent first.
func (s *Store) GetDailyUsage(ctx context.Context, days int) ([]DailyUsage, error) {
	since := time.Now().UTC().AddDate(0, 0, -days).Format(timestampLayout)

	var results []DailyUsage
	err := s.db.SelectContext(ctx, &results, `
		SELECT substr(timestamp, 1, 10) AS day,
			COALESCE(SUM(prompt_tokens), 0) AS total_prompt,
			COALESCE(SUM(completion_tokens), 0) AS total_completion,
			COUNT(*) AS executions,
			COALESCE(SUM(demo), 0) AS demo_executions
		FROM execution_metrics
		WHERE timestamp >= ?
		GROUP BY day
		ORDER BY day DESC`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to get daily usage: %w", err)
	}
	return results, nil
}

// Cleanup removes records older than the specified number of days and
// returns how many were deleted.
func (s *Store) Cleanup(ctx context.Context, olderThanDays int) (int64, error) {
	threshold := time.Now().UTC().AddDate(0, 0, -olderThanDays).Format(timestampLayout)
	res, err := s.db.ExecContext(ctx, `DELETE FROM execution_metrics WHERE timestamp < ?`, threshold)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up execution metrics: %w", err)
	}
	return res.RowsAffected()
}

// MapUsage converts call metadata to an ExecutionMetric.
func MapUsage(meta shared.CallMeta) ExecutionMetric {
	model := meta.Model
	if model == "" {
		model = meta.Usage.Model
	}
	return ExecutionMetric{
		Provider:         meta.Provider,
		Model:            model,
		PromptTokens:     meta.Usage.PromptTokens,
		CompletionTokens: meta.Usage.CompletionTokens,
		LatencyMS:        meta.Latency.Milliseconds(),
		Demo:             meta.Demo,
		Timestamp:        time.Now().UTC(),
	}
}
