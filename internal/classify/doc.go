// Package classify assigns categories and severities to error messages.
//
// Classification runs three strategies in order: learned patterns from the
// store (insertion order, first match wins), a fixed heuristic keyword
// taxonomy, then a stable hash-derived unknown_<8hex> fallback. Severity is
// independent of category and uses its own ordered rules.
package classify
