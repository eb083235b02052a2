// Package graphfold provides an entity resolution and graph ingestion
// library for Go.
//
// Graphfold takes the entities and relationships an AI extraction step
// produced and folds them into a graph database without creating
// duplicates. Every incoming entity is resolved against the nodes already
// in the graph: candidates are retrieved through a ladder of strategies
// (exact natural key, exact and fuzzy name, discriminative properties,
// vector similarity), scored by a type-specific matcher, and then either
// merged into an existing node, created as a new node, or parked in a
// durable queue for a human to decide.
//
// # Basic Usage
//
// Build a store, an optional embedder, and a client, then import an
// extraction payload:
//
//	store := driver.NewMemoryStore()
//	client, err := graphfold.NewClient(store, nil, nil, nil, nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close(ctx)
//
//	payload, err := graphfold.LoadPayloadFile("extraction.json")
//	if err != nil {
//		log.Fatal(err)
//	}
//	stats, err := client.ImportBatch(ctx, payload)
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(stats.Summary())
//
// Against a live Neo4j instance with OpenAI embeddings, let configuration
// drive construction instead:
//
//	cfg, err := config.Load()
//	if err != nil {
//		log.Fatal(err)
//	}
//	client, err := graphfold.Open(cfg, logger)
//
// # Resolution Outcomes
//
// Each entity resolves to one of three outcomes. A score at or above the
// high threshold merges into the best candidate. A score below the low
// threshold creates a new node. Scores in between are ambiguous: if a
// tiebreak model is configured it gets one call to pick a candidate or
// declare no match, and whatever remains ambiguous goes to the review
// queue with full snapshots of both sides.
//
// # Human Review
//
// Pending records live in a JSON file next to the data they describe.
// ApplyReview resubmits a record with a human decision: merge applies the
// incoming properties onto the existing node, separate creates the new
// node after all. The import happens before the record is marked
// complete, so a crash in between leaves a pending record whose replay is
// idempotent.
//
// # Error Handling
//
// ImportBatch only fails as a whole when the store is unreachable at the
// start or the context is cancelled. Everything else (validation
// failures, retrieval errors on a single entity, unresolvable
// relationship endpoints) is recorded in ImportStats.Errors and the batch
// carries on. Sentinel errors such as ErrReviewNotFound and the importer
// package's ErrEndpointNotFound support errors.Is checks.
//
// # Architecture
//
// The library is organized into focused packages:
//
//   - pkg/types: shared data model (entities, candidates, review records)
//   - pkg/driver: graph store abstraction with Neo4j and in-memory backends
//   - pkg/match: per-type matchers, normalization, the matcher registry
//   - pkg/retrieve: the candidate retrieval ladder
//   - pkg/decision: confidence banding over matcher scores
//   - pkg/tiebreak: the one-shot LLM judge behind a circuit breaker
//   - pkg/review: the durable human review queue
//   - pkg/importer: MERGE-semantics writes and endpoint resolution
//   - pkg/embedder: embedding providers with a badger-backed cache
//   - pkg/taxonomy: optional YAML schema for advisory validation
//   - pkg/telemetry: parquet decision log
//   - pkg/alert: operator notification on circuit breaker trips
//   - pkg/config, pkg/logger, pkg/utils: configuration, logging, and
//     concurrency plumbing
//
// The root package wires them into a single Client.
package graphfold
