// Package memory is the failure memory façade.
//
// It composes the persistent store, classifier, similarity engine and
// pattern learner behind a single action surface consumed synchronously by
// an orchestration caller. Every action performs a full load→mutate→save
// cycle against the store document, serialized by an in-process mutex so
// concurrent callers cannot lose updates.
//
// # Record lifecycle
//
// A failure record is Created by RecordFailure and stays immutable except
// for its fix fields, which RecordFixOutcome sets exactly once. A
// successful outcome feeds the pattern learner; a failed one is retained
// for similarity lookups but never learns. Records are never deleted.
//
// # Error policy
//
// No raw fault crosses the façade: every action returns a Result with a
// Success flag and a human-readable message. Unknown failure ids yield a
// neutral "unknown" result. When the engine is disabled via config, every
// action is a successful no-op that never touches storage.
package memory
