package models

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Track is a single playlist entry resolved from the provider.
// Identity is the provider track id; immutable once resolved within a sync run.
type Track struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	Album      string `json:"album,omitempty"`
	DurationMS int    `json:"duration_ms"`
	ArtworkURL string `json:"artwork_url,omitempty"`
	URL        string `json:"url"` // provider track URL, input to acquisition
}

// Label returns the "Artist - Title" form used for chapter titles and logs.
func (t Track) Label() string {
	if t.Artist == "" {
		return t.Title
	}
	return fmt.Sprintf("%s - %s", t.Artist, t.Title)
}

// PlaylistMapping is one playlist reference extracted from a card's description.
type PlaylistMapping struct {
	PlaylistID  string `json:"playlist_id"`
	URL         string `json:"url"`
	Name        string `json:"name,omitempty"`
	SnapshotID  string `json:"snapshot_id,omitempty"`
	CoverArtURL string `json:"cover_art_url,omitempty"`
}

// Playlist is a resolved playlist: its current snapshot token plus full track list.
type Playlist struct {
	PlaylistID  string  `json:"playlist_id"`
	Name        string  `json:"name"`
	SnapshotID  string  `json:"snapshot_id"`
	CoverArtURL string  `json:"cover_art_url,omitempty"`
	Tracks      []Track `json:"tracks"`
}

// Card is a remote content container whose chapter structure this system manages.
// Owned by the platform; only the description is read and the chapters written.
type Card struct {
	ID          string `json:"card_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Chapter references one uploaded track in a card's playable structure.
type Chapter struct {
	Title       string `json:"title"`
	TrackID     string `json:"track_id"`
	MediaID     string `json:"media_id"` // transcoded audio identity on the platform
	Duration    int    `json:"duration"` // seconds
	IconMediaID string `json:"icon_media_id,omitempty"`
}

// CardContent is the full payload pushed to the platform for one card.
// The chapter list is always re-emitted whole, never patched.
type CardContent struct {
	CardID   string    `json:"card_id"`
	Title    string    `json:"title"`
	Chapters []Chapter `json:"chapters"`

	// CoverRef is the platform's cover reference, a media URL rather than a
	// media id like chapter icons carry.
	CoverRef string `json:"cover_ref,omitempty"`
}

// CardState is the persisted sync record for one card.
type CardState struct {
	CardID       string        `json:"card_id"`
	Fingerprint  string        `json:"fingerprint"`
	TrackIDs     []string      `json:"track_ids"`
	LastSyncedAt time.Time     `json:"last_synced_at"`
	Outcome      OutcomeStatus `json:"outcome"`
}

// TrackIDSet returns the last-synced track ids as a set for diff computation.
func (s *CardState) TrackIDSet() map[string]bool {
	set := make(map[string]bool, len(s.TrackIDs))
	for _, id := range s.TrackIDs {
		set[id] = true
	}
	return set
}

// MediaCacheEntry maps a content-addressable key to an uploaded platform media id.
// A key maps to at most one live entry; entries are upserted, never duplicated.
type MediaCacheEntry struct {
	Key       string    `json:"key"`
	MediaID   string    `json:"media_id"`
	Checksum  string    `json:"checksum,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AudioCacheKey builds the reuse-cache key for a track's uploaded audio.
func AudioCacheKey(trackID string) string {
	return "audio:" + trackID
}

// ImageCacheKey builds the media-cache key for an uploaded chapter icon.
// Icon entries are addressed by source URL directly.
func ImageCacheKey(url string) string {
	return url
}

// CoverCacheKey builds the media-cache key for uploaded cover art. Covers
// are namespaced apart from icons: the platform returns a media URL for a
// cover and a media id for an icon, so the same source URL must not share
// an entry across the two uses.
func CoverCacheKey(url string) string {
	return "cover:" + url
}

// OutcomeStatus is the terminal status of one card within a sync run.
type OutcomeStatus string

const (
	OutcomeSkippedUnchanged OutcomeStatus = "skipped-unchanged"
	OutcomeSkippedNoMapping OutcomeStatus = "skipped-no-playlists"
	OutcomeSynced           OutcomeStatus = "synced"
	OutcomeFailed           OutcomeStatus = "failed"
)

// CardOutcome records how one card fared in a sync run.
type CardOutcome struct {
	CardID  string        `json:"card_id"`
	Title   string        `json:"title,omitempty"`
	Status  OutcomeStatus `json:"status"`
	Added   int           `json:"added"`
	Removed int           `json:"removed"`
	Reason  string        `json:"reason,omitempty"` // populated when Status is failed
}

// SyncRun is an append-only record of one orchestrator invocation.
// Written for status reporting; never read back by the sync logic itself.
type SyncRun struct {
	ID             string        `json:"id"`
	StartedAt      time.Time     `json:"started_at"`
	CardsProcessed int           `json:"cards_processed"`
	TracksAdded    int           `json:"tracks_added"`
	TracksRemoved  int           `json:"tracks_removed"`
	Outcomes       []CardOutcome `json:"outcomes"`
}

// Fingerprint combines playlist snapshot ids into a composite version token.
//
// The combination is order-independent: two cards referencing the same playlist
// set in different description order yield the same fingerprint.
func Fingerprint(snapshotIDs []string) string {
	ids := make([]string, len(snapshotIDs))
	copy(ids, snapshotIDs)
	sort.Strings(ids)
	return strings.Join(ids, "|")
}
