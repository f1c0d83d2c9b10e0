package history

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Trigger names what started an indexing run.
type Trigger string

const (
	TriggerRebuild Trigger = "rebuild"
	TriggerReindex Trigger = "reindex"
	TriggerWatch   Trigger = "watch"
	TriggerAPI     Trigger = "api"
)

// Run is one completed indexing run.
type Run struct {
	ID        string        `json:"id"`
	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"duration"`
	Trigger   Trigger       `json:"trigger"`
	Scheduled int           `json:"scheduled"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
}

// Record inserts a completed run and returns its generated id.
func (d *DB) Record(ctx context.Context, r Run) (string, error) {
	id := r.ID
	if id == "" {
		id = uuid.New().String()
	}
	startedAt := r.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now()
	}

	_, err := d.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, duration_ms, trigger, scheduled, succeeded, failed)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, startedAt.UTC().Format(time.RFC3339Nano), r.Duration.Milliseconds(),
		string(r.Trigger), r.Scheduled, r.Succeeded, r.Failed,
	)
	if err != nil {
		return "", fmt.Errorf("recording run: %w", err)
	}
	return id, nil
}

// Recent returns the most recent runs, newest first. limit <= 0 selects
// a default of 20.
func (d *DB) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := d.QueryContext(ctx, `
		SELECT id, started_at, duration_ms, trigger, scheduled, succeeded, failed
		FROM runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var startedAt string
		var durationMs int64
		var trigger string
		if err := rows.Scan(&r.ID, &startedAt, &durationMs, &trigger, &r.Scheduled, &r.Succeeded, &r.Failed); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing run timestamp: %w", err)
		}
		r.Duration = time.Duration(durationMs) * time.Millisecond
		r.Trigger = Trigger(trigger)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
