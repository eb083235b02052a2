// Package driver provides graph store implementations for graphfold.
//
// This package defines the GraphStore interface and provides a Neo4j-backed
// implementation plus an in-memory implementation for tests and local runs.
//
// # Merge Semantics
//
// Nodes are merged on (label, natural_key): importing the same entity twice
// updates the existing node instead of creating a duplicate. Every node
// carries the base Entity label plus its own type label, so lookups can scope
// to one type or to all entities.
//
// # Usage
//
// Create a store using the appropriate constructor:
//
//	// Neo4j
//	store, err := driver.NewNeo4jStore(uri, username, password, database, logger)
//
//	// In-memory
//	store := driver.NewMemoryStore()
//
// # Thread Safety
//
// Both implementations are safe for concurrent use from multiple goroutines.
// Neo4j sessions are opened per operation and closed before it returns.
//
// # Error Classification
//
// Store failures are wrapped in *Error with a Kind of connection, auth or
// query, so callers can abort a batch on infrastructure failures while
// surfacing bad queries individually.
package driver
