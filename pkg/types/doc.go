// Package types defines the core data types for graphfold entity resolution.
//
// This package contains the fundamental types used throughout graphfold:
//   - IncomingEntity/IncomingRelationship: AI-extracted inputs awaiting import
//   - Properties: the canonical string-keyed property map
//   - GraphNode/Candidate: nodes as retrieved from the store
//   - MatchResult: the outcome of comparing two property sets
//   - ReviewRecord: an ambiguous resolution held for human review
//   - ImportStats/ImportError: per-batch accounting
//
// # Property Keys
//
// All property maps are canonicalized to snake_case keys on the way in, so
// "serialNumber" and "serial_number" address the same value everywhere
// downstream.
//
// # Validation
//
// Incoming types provide Validate() methods; malformed items are skipped and
// recorded, never retried:
//
//	if err := entity.Validate(); err != nil {
//	    stats.AddError(types.PhaseValidate, entity.Type, entity.Name, err)
//	}
//
// # JSON Serialization
//
// All types are JSON-serializable with snake_case struct tags; the review
// queue and extraction payloads round-trip through encoding/json.
package types
