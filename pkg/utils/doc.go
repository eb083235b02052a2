// Package utils provides utility functions for the graphfold library.
//
// This package contains helper functions for various operations including:
//   - Vector math for embedding similarity (vector.go)
//   - Panic recovery helpers (recovery.go)
//   - Sharded concurrent execution and batching (concurrent.go)
//
// The utilities support the resolution pipeline without depending on any
// other graphfold package.
package utils
