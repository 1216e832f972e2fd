// package tasks implements the card reconciliation engine.
//
// The core abstraction is Orchestrator, which drives the per-card sequence:
// discover playlist references in the card description, resolve them to a
// merged track list, diff against the last-synced state, acquire and publish
// only what changed, and push the rebuilt chapter list to the platform.
// Operations emit progress updates via channels for non-blocking status
// reporting to the CLI layer.
//
// Failures are contained at the smallest scope that preserves forward
// progress: a failed track never aborts its card, and a failed card never
// aborts the run. Every contained failure lands in the run's outcome record.
package tasks
