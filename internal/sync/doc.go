// Package sync implements the bidirectional metadata synchronization engine.
//
// The core abstraction is Engine, which drives export passes (database
// judgments projected into tag containers) and import passes (tag containers
// reconciled back into the database). A pass runs on one background worker,
// accumulates every database mutation into a single write set, and commits
// exactly once; per-track codec failures are counted and skipped so one bad
// file never aborts a pass. Operations emit progress updates via channels
// for non-blocking status reporting to the CLI layer.
//
// Ownership provenance is enforced in Reconcile: a record whose source is
// not the pass's import source is never deleted or overwritten by an import.
package sync
