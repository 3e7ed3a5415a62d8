package models

import "time"

// Chunk is a bounded, possibly overlapping slice of transcript text.
// ChunkIndex is the 0-based rank within the source document's split;
// overlapping chunks may share text but never share an index.
// Chunks are never mutated after creation.
type Chunk struct {
	ID           string         `json:"id"`
	VideoID      string         `json:"video_id"`
	Text         string         `json:"text"`
	ChunkIndex   int            `json:"chunk_index"`
	StartSeconds *float64       `json:"start_seconds,omitempty"`
	IndexedAt    time.Time      `json:"indexed_at"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// RetrievedPassage is a transient query result: chunk text plus its
// stored metadata and a relevance score in [0,1], higher is better.
type RetrievedPassage struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Score    float64        `json:"score"`
}
