// Package match implements type-specific fuzzy equality between property
// sets: pure normalization helpers, a bounded edit-distance ratio, per-type
// matchers built from ordered heuristic lists, and a registry that resolves
// an entity type name to its matcher.
//
// # Heuristic Ordering
//
// A matcher runs its heuristics in order and returns on the first one that
// fires (logical OR, not a weighted average): any one strong signal is
// sufficient. Discrete heuristics (exact email, exact serial number) score
// 0 or 1; continuous heuristics score a similarity ratio and fire at the
// matcher's threshold. When nothing fires, the result still carries the best
// sub-threshold ratio so the decision layer can distinguish "no evidence"
// from "almost".
//
// # Thresholds
//
// Thresholds are type-specific: names tolerate less noise before risking a
// false merge than addresses, which have many equivalent written forms. The
// defaults are tuning parameters, overridable per matcher at construction.
//
// # Unknown Types
//
// Types without a registered matcher resolve to a permissive default that
// only performs exact case-insensitive name matching and disables vector
// retrieval.
package match
