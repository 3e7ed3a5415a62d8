// Package chunker splits transcript text into overlapping passages
// along semantic boundaries.
package chunker

import (
	"fmt"
	"strings"
	"time"

	"askvid/internal/models"
)

// Config defines chunking parameters.
type Config struct {
	// ChunkSize is the maximum passage length in characters.
	ChunkSize int
	// Overlap is the number of trailing characters each chunk repeats
	// from its predecessor, to preserve context across a retrieval
	// boundary.
	Overlap int
}

// DefaultConfig returns sensible defaults for transcript text.
func DefaultConfig() Config {
	return Config{
		ChunkSize: 2000,
		Overlap:   400,
	}
}

func (c *Config) applyDefaults() {
	if c.ChunkSize <= 0 {
		c.ChunkSize = 2000
	}
	if c.Overlap < 0 || c.Overlap >= c.ChunkSize {
		c.Overlap = c.ChunkSize / 5
	}
}

// Split chunks raw text for a video. Chunk indices are assigned in
// emission order starting at 0. Pure aside from the indexing timestamp.
func Split(videoID, text string, cfg Config) []models.Chunk {
	return split(videoID, text, nil, cfg)
}

// SplitDocument chunks a transcript document, attaching the start
// offset of the segment each chunk begins in.
func SplitDocument(doc *models.TranscriptDocument, cfg Config) []models.Chunk {
	return split(doc.VideoID, doc.Text(), doc, cfg)
}

func split(videoID, text string, doc *models.TranscriptDocument, cfg Config) []models.Chunk {
	cfg.applyDefaults()

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	now := time.Now().UTC()
	var chunks []models.Chunk

	cursor := 0
	for cursor < len(text) {
		end := cursor + cfg.ChunkSize
		if end >= len(text) {
			end = len(text)
		} else {
			end = breakPoint(text, cursor, end)
		}

		piece := strings.TrimSpace(text[cursor:end])
		if piece != "" {
			// Deterministic IDs keep re-indexing idempotent: the same
			// input overwrites rather than duplicates.
			chunk := models.Chunk{
				ID:         fmt.Sprintf("%s:%d", videoID, len(chunks)),
				VideoID:    videoID,
				Text:       piece,
				ChunkIndex: len(chunks),
				IndexedAt:  now,
			}
			if doc != nil {
				chunk.StartSeconds = doc.OffsetAt(cursor)
			}
			chunks = append(chunks, chunk)
		}

		if end >= len(text) {
			break
		}
		next := end - cfg.Overlap
		if next <= cursor {
			// Overlap must never stall the walk.
			next = cursor + 1
		}
		cursor = next
	}

	return chunks
}

// breakPoint finds the best split position in (start, limit], trying
// boundaries in priority order: paragraph break, line break, sentence
// end, space, hard character cut.
func breakPoint(text string, start, limit int) int {
	window := text[start:limit]

	if i := strings.LastIndex(window, "\n\n"); i > 0 {
		return start + i + 2
	}
	if i := strings.LastIndex(window, "\n"); i > 0 {
		return start + i + 1
	}
	if i := lastSentenceEnd(window); i > 0 {
		return start + i
	}
	if i := strings.LastIndex(window, " "); i > 0 {
		return start + i + 1
	}
	return limit
}

// lastSentenceEnd returns the position just past the last terminal
// punctuation followed by a space, or -1.
func lastSentenceEnd(s string) int {
	for i := len(s) - 2; i > 0; i-- {
		c := s[i]
		if (c == '.' || c == '!' || c == '?') && s[i+1] == ' ' {
			return i + 2
		}
	}
	return -1
}
