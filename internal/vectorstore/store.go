// Package vectorstore defines the namespaced vector index capability
// consumed by the retrieval layer, with in-memory and SurrealDB
// backends.
package vectorstore

import "context"

// Item is a single embedded passage to store.
type Item struct {
	ID       string
	Vector   []float32
	Text     string
	Metadata map[string]any
}

// Result is a ranked query hit. Score is a similarity in [0,1],
// higher is more relevant.
type Result struct {
	Text     string
	Metadata map[string]any
	Score    float64
}

// Store is a namespaced vector index. One namespace holds all chunks
// of one video; namespaces never bleed into each other. Upserts are
// idempotent by item ID. Implementations must be safe for concurrent
// use.
type Store interface {
	// Upsert inserts or overwrites items in a namespace, creating the
	// namespace on first write.
	Upsert(ctx context.Context, namespace string, items []Item) error

	// Query returns up to k results ranked by descending similarity.
	// Querying a missing namespace is an error; an existing but empty
	// namespace returns zero results.
	Query(ctx context.Context, namespace string, vector []float32, k int) ([]Result, error)

	// NamespaceExists reports whether the namespace has ever been
	// written. Never errors on absence.
	NamespaceExists(ctx context.Context, namespace string) (bool, error)

	// Count returns the number of items in a namespace, zero when the
	// namespace does not exist.
	Count(ctx context.Context, namespace string) (int, error)

	// Close releases backend resources.
	Close(ctx context.Context) error
}
