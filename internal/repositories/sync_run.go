package repositories

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/desertthunder/cardsync/internal/models"
)

// SyncRunRepository records a summary row for each completed sync run.
type SyncRunRepository struct {
	db *sql.DB
}

// NewSyncRunRepository creates a new SyncRunRepository with the given database connection
func NewSyncRunRepository(db *sql.DB) *SyncRunRepository {
	return &SyncRunRepository{db: db}
}

// Append stores a completed run.
func (r *SyncRunRepository) Append(run *models.SyncRun) error {
	outcomes, err := json.Marshal(run.Outcomes)
	if err != nil {
		return fmt.Errorf("failed to marshal outcomes: %w", err)
	}

	_, err = r.db.Exec(
		`INSERT INTO sync_runs (id, started_at, cards_processed, tracks_added, tracks_removed, outcomes)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt, run.CardsProcessed, run.TracksAdded, run.TracksRemoved, string(outcomes),
	)
	if err != nil {
		return fmt.Errorf("failed to insert sync run: %w", err)
	}
	return nil
}

// Recent returns the most recent runs, newest first.
func (r *SyncRunRepository) Recent(limit int) ([]models.SyncRun, error) {
	rows, err := r.db.Query(
		"SELECT id, started_at, cards_processed, tracks_added, tracks_removed, outcomes FROM sync_runs ORDER BY started_at DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync runs: %w", err)
	}
	defer rows.Close()

	var runs []models.SyncRun
	for rows.Next() {
		var (
			run       models.SyncRun
			startedAt time.Time
			outcomes  string
		)
		if err := rows.Scan(&run.ID, &startedAt, &run.CardsProcessed, &run.TracksAdded, &run.TracksRemoved, &outcomes); err != nil {
			return nil, fmt.Errorf("failed to scan sync run: %w", err)
		}
		run.StartedAt = startedAt
		if err := json.Unmarshal([]byte(outcomes), &run.Outcomes); err != nil {
			return nil, fmt.Errorf("invalid outcomes for run %s: %w", run.ID, err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return runs, nil
}
