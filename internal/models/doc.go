// package models defines the data model for the card sync engine: playlist
// mappings discovered on cards, resolved tracks, persisted per-card sync state,
// the cross-card media cache, and run history records.
package models
