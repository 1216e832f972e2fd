// package repositories provides the persistence layer for sync state.
//
// Each repository wraps one table: per-card sync state, the cross-card media
// cache, and append-only run history. The engine is the sole writer; every
// mutation is a single atomic statement so a crash between steps cannot leave
// the store straddling two states.
package repositories
