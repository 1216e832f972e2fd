package repositories

import "database/sql"

// Store aggregates the three sync-state repositories over one database handle.
type Store struct {
	CardStates *CardStateRepository
	MediaCache *MediaCacheRepository
	SyncRuns   *SyncRunRepository
}

// NewStore creates a Store backed by the given database connection.
func NewStore(db *sql.DB) *Store {
	return &Store{
		CardStates: NewCardStateRepository(db),
		MediaCache: NewMediaCacheRepository(db),
		SyncRuns:   NewSyncRunRepository(db),
	}
}
