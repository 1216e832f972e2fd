package repositories

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/desertthunder/cardsync/internal/models"
)

// CardStateRepository persists per-card sync state.
//
// States are created on first successful sync and overwritten on each
// subsequent run; they are never implicitly deleted.
type CardStateRepository struct {
	db *sql.DB
}

// NewCardStateRepository creates a new CardStateRepository with the given database connection
func NewCardStateRepository(db *sql.DB) *CardStateRepository {
	return &CardStateRepository{db: db}
}

// Get retrieves the sync state for a card. Returns nil without error when the
// card has never been synced.
func (r *CardStateRepository) Get(cardID string) (*models.CardState, error) {
	row := r.db.QueryRow(
		"SELECT card_id, fingerprint, track_ids, last_synced_at, outcome FROM card_state WHERE card_id = ?",
		cardID,
	)

	state, err := scanCardState(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get card state: %w", err)
	}
	return state, nil
}

// Upsert writes a card's sync state, replacing any previous record.
func (r *CardStateRepository) Upsert(state *models.CardState) error {
	trackIDs, err := json.Marshal(state.TrackIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal track ids: %w", err)
	}

	_, err = r.db.Exec(
		`INSERT INTO card_state (card_id, fingerprint, track_ids, last_synced_at, outcome)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(card_id) DO UPDATE SET
		   fingerprint = excluded.fingerprint,
		   track_ids = excluded.track_ids,
		   last_synced_at = excluded.last_synced_at,
		   outcome = excluded.outcome`,
		state.CardID, state.Fingerprint, string(trackIDs), state.LastSyncedAt, state.Outcome,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert card state: %w", err)
	}
	return nil
}

// All returns every persisted card state ordered by last sync time, newest first.
func (r *CardStateRepository) All() ([]models.CardState, error) {
	rows, err := r.db.Query(
		"SELECT card_id, fingerprint, track_ids, last_synced_at, outcome FROM card_state ORDER BY last_synced_at DESC",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query card states: %w", err)
	}
	defer rows.Close()

	var states []models.CardState
	for rows.Next() {
		state, err := scanCardState(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan card state: %w", err)
		}
		states = append(states, *state)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return states, nil
}

func scanCardState(scan func(...any) error) (*models.CardState, error) {
	var (
		cardID       string
		fingerprint  string
		trackIDs     string
		lastSyncedAt time.Time
		outcome      string
	)

	if err := scan(&cardID, &fingerprint, &trackIDs, &lastSyncedAt, &outcome); err != nil {
		return nil, err
	}

	state := &models.CardState{
		CardID:       cardID,
		Fingerprint:  fingerprint,
		LastSyncedAt: lastSyncedAt,
		Outcome:      models.OutcomeStatus(outcome),
	}
	if err := json.Unmarshal([]byte(trackIDs), &state.TrackIDs); err != nil {
		return nil, fmt.Errorf("invalid track_ids for card %s: %w", cardID, err)
	}
	return state, nil
}
