// Package memory provides an in-memory vector store using brute-force
// cosine similarity. Default backend for development and tests.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"askvid/internal/vectorstore"
)

// Store keeps namespaced vectors in process memory.
type Store struct {
	mu         sync.RWMutex
	namespaces map[string]map[string]entry
}

type entry struct {
	vector   []float32
	text     string
	metadata map[string]any
}

var _ vectorstore.Store = (*Store)(nil)

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{namespaces: make(map[string]map[string]entry)}
}

// Upsert inserts or overwrites items, creating the namespace on first
// write. Items are keyed by ID, so re-upserting the same ID replaces
// the previous value.
func (s *Store) Upsert(_ context.Context, namespace string, items []vectorstore.Item) error {
	if namespace == "" {
		return fmt.Errorf("namespace required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ns, ok := s.namespaces[namespace]
	if !ok {
		ns = make(map[string]entry, len(items))
		s.namespaces[namespace] = ns
	}
	for _, item := range items {
		ns[item.ID] = entry{
			vector:   item.Vector,
			text:     item.Text,
			metadata: item.Metadata,
		}
	}
	return nil
}

// Query ranks all items in the namespace by cosine similarity.
func (s *Store) Query(_ context.Context, namespace string, vector []float32, k int) ([]vectorstore.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ns, ok := s.namespaces[namespace]
	if !ok {
		return nil, fmt.Errorf("namespace %q does not exist", namespace)
	}
	if k <= 0 {
		k = 4
	}

	results := make([]vectorstore.Result, 0, len(ns))
	for _, e := range ns {
		results = append(results, vectorstore.Result{
			Text:     e.text,
			Metadata: e.metadata,
			Score:    normalizeScore(cosine(e.vector, vector)),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// NamespaceExists reports whether the namespace has ever been written.
func (s *Store) NamespaceExists(_ context.Context, namespace string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.namespaces[namespace]
	return ok, nil
}

// Count returns the number of items in a namespace.
func (s *Store) Count(_ context.Context, namespace string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.namespaces[namespace]), nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close(context.Context) error { return nil }

// cosine computes cosine similarity between two vectors.
func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// normalizeScore maps cosine similarity from [-1,1] into [0,1].
func normalizeScore(cos float64) float64 {
	score := (cos + 1) / 2
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
