// Package retrieve finds existing graph nodes that may describe the same
// real-world entity as an incoming one.
//
// # Strategy Ladder
//
// Retrieval runs up to four strategies in order, cheapest first, and stops as
// soon as one of them surfaces a candidate:
//
//  1. Exact case-insensitive name match within the entity's label.
//  2. Fuzzy match: nodes whose name contains the first token of the incoming
//     name. Skipped for short names.
//  3. Exact lookups on the matcher's identifying properties (email, serial
//     number, checksum) the incoming entity actually carries.
//  4. Vector similarity over stored embeddings, filtered to the same label
//     and to the matcher's similarity threshold. Skipped when no embedder is
//     configured or the matcher builds no canonical text for the type.
//
// # Failure Handling
//
// A strategy that fails is logged and contributes nothing; the ladder moves
// on. An entity for which every strategy fails simply gets an empty candidate
// list, which downstream resolves as a new node. Only context cancellation
// aborts retrieval with an error.
package retrieve
