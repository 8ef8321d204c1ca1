// Package store persists the failure memory aggregate.
//
// The aggregate (failure records, learned patterns, rollup statistics) is
// stored as a single JSON document. Saves are atomic: the document is
// written to a temporary file and renamed over the previous one, so an
// interrupted save never corrupts previously persisted state.
//
// An optional append-only JSONL journal records every mutation
// (failure_recorded, fix_outcome_recorded, pattern_learned). The journal
// serves as an audit trail and as the recovery source when the snapshot
// document is unreadable; when no journal is configured, an unreadable
// document is reinitialized to defaults.
package store
