// Package index owns the embed-and-upsert and embed-and-rank
// operations against the namespaced vector store.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"askvid/internal/chunker"
	"askvid/internal/llm"
	"askvid/internal/metrics"
	"askvid/internal/models"
	"askvid/internal/vectorstore"
)

const (
	// defaultK is the number of passages retrieved per query.
	defaultK = 4

	// maxFetchK caps the widened retrieval used before compression.
	maxFetchK = 10
)

// Manager drives indexing and querying of transcript content. One
// vector-store namespace per video keeps results isolated.
type Manager struct {
	store      vectorstore.Store
	embedder   *llm.Embedder
	compressor *Compressor
	chunkCfg   chunker.Config
	logger     *slog.Logger
	metrics    *metrics.Collector
}

// NewManager creates an index manager.
func NewManager(store vectorstore.Store, embedder *llm.Embedder, compressor *Compressor, chunkCfg chunker.Config, logger *slog.Logger, mc *metrics.Collector) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:      store,
		embedder:   embedder,
		compressor: compressor,
		chunkCfg:   chunkCfg,
		logger:     logger,
		metrics:    mc,
	}
}

// IndexResult summarizes an indexing operation.
type IndexResult struct {
	ChunkCount int
}

// IndexInfo describes a video's namespace occupancy.
type IndexInfo struct {
	Exists     bool
	ChunkCount int
}

// QueryOptions configures a retrieval query.
type QueryOptions struct {
	K              int
	UseCompression bool
}

// QueryResult carries the formatted context block plus the raw ranked
// passages.
type QueryResult struct {
	Context string
	Results []models.RetrievedPassage
}

// Index chunks raw text, embeds every chunk and upserts them into the
// video's namespace. Re-running on an indexed video overwrites chunks
// in place; semantics are at-least-once, a failed index should be
// retried whole.
func (m *Manager) Index(ctx context.Context, videoID, text string, extra map[string]any) (IndexResult, error) {
	chunks := chunker.Split(videoID, text, m.chunkCfg)
	return m.indexChunks(ctx, videoID, chunks, extra)
}

// IndexDocument indexes a transcript document, carrying segment start
// offsets into the chunk metadata for timestamped citations.
func (m *Manager) IndexDocument(ctx context.Context, doc *models.TranscriptDocument, extra map[string]any) (IndexResult, error) {
	chunks := chunker.SplitDocument(doc, m.chunkCfg)
	return m.indexChunks(ctx, doc.VideoID, chunks, extra)
}

func (m *Manager) indexChunks(ctx context.Context, videoID string, chunks []models.Chunk, extra map[string]any) (IndexResult, error) {
	if len(chunks) == 0 {
		return IndexResult{}, fmt.Errorf("%w: no content to index for video %s", models.ErrIndexingFailed, videoID)
	}

	start := time.Now()

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := m.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return IndexResult{}, fmt.Errorf("%w: %v", models.ErrIndexingFailed, err)
	}

	items := make([]vectorstore.Item, len(chunks))
	for i, c := range chunks {
		meta := map[string]any{
			"video_id":    c.VideoID,
			"chunk_index": c.ChunkIndex,
			"indexed_at":  c.IndexedAt.Format(time.RFC3339),
		}
		if c.StartSeconds != nil {
			meta["start_seconds"] = *c.StartSeconds
		}
		for k, v := range extra {
			meta[k] = v
		}
		items[i] = vectorstore.Item{
			ID:       c.ID,
			Vector:   vectors[i],
			Text:     c.Text,
			Metadata: meta,
		}
	}

	if err := m.store.Upsert(ctx, videoID, items); err != nil {
		return IndexResult{}, fmt.Errorf("%w: %v", models.ErrIndexingFailed, err)
	}

	if m.metrics != nil {
		m.metrics.RecordTiming(metrics.OpIndexUpsert, time.Since(start))
	}
	m.logger.Info("video indexed", "video_id", videoID, "chunks", len(chunks))
	return IndexResult{ChunkCount: len(chunks)}, nil
}

// Query embeds the question, retrieves the nearest chunks from the
// video's namespace and formats a citation-ready context block.
// A missing namespace fails with ErrQueryFailed; an existing but empty
// one returns zero results.
func (m *Manager) Query(ctx context.Context, videoID, question string, opts QueryOptions) (QueryResult, error) {
	k := opts.K
	if k <= 0 {
		k = defaultK
	}

	// Retrieve wider when compressing, since compression may drop
	// passages entirely.
	fetchK := k
	if opts.UseCompression {
		fetchK = k * 2
		if fetchK > maxFetchK {
			fetchK = maxFetchK
		}
	}

	start := time.Now()

	vector, err := m.embedder.Embed(ctx, question)
	if err != nil {
		return QueryResult{}, fmt.Errorf("%w: %v", models.ErrQueryFailed, err)
	}

	hits, err := m.store.Query(ctx, videoID, vector, fetchK)
	if err != nil {
		return QueryResult{}, fmt.Errorf("%w: %v", models.ErrQueryFailed, err)
	}

	passages := make([]models.RetrievedPassage, 0, len(hits))
	for _, h := range hits {
		passages = append(passages, models.RetrievedPassage{
			Text:     h.Text,
			Metadata: h.Metadata,
			Score:    h.Score,
		})
	}

	if opts.UseCompression && m.compressor != nil && len(passages) > 0 {
		passages, err = m.compressPassages(ctx, passages, question)
		if err != nil {
			return QueryResult{}, fmt.Errorf("%w: %v", models.ErrQueryFailed, err)
		}
	}
	if len(passages) > k {
		passages = passages[:k]
	}

	if m.metrics != nil {
		m.metrics.RecordTiming(metrics.OpIndexQuery, time.Since(start))
	}

	return QueryResult{
		Context: FormatContext(passages),
		Results: passages,
	}, nil
}

// compressPassages compresses each passage and drops the ones that
// compress to nothing.
func (m *Manager) compressPassages(ctx context.Context, passages []models.RetrievedPassage, question string) ([]models.RetrievedPassage, error) {
	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = p.Text
	}

	compressed, err := m.compressor.CompressBatch(ctx, texts, question)
	if err != nil {
		return nil, err
	}

	kept := make([]models.RetrievedPassage, 0, len(passages))
	for i, c := range compressed {
		if strings.TrimSpace(c.Text) == "" {
			continue
		}
		p := passages[i]
		p.Text = c.Text
		kept = append(kept, p)
	}
	return kept, nil
}

// IsIndexed reports whether the video's namespace has content. A
// missing namespace is a plain false, never an error.
func (m *Manager) IsIndexed(ctx context.Context, videoID string) bool {
	exists, err := m.store.NamespaceExists(ctx, videoID)
	if err != nil {
		m.logger.Warn("namespace check failed", "video_id", videoID, "error", err)
		return false
	}
	return exists
}

// Describe reports namespace existence and chunk count, tolerating a
// missing namespace with a zero result.
func (m *Manager) Describe(ctx context.Context, videoID string) IndexInfo {
	count, err := m.store.Count(ctx, videoID)
	if err != nil {
		m.logger.Warn("namespace describe failed", "video_id", videoID, "error", err)
		return IndexInfo{}
	}
	exists, err := m.store.NamespaceExists(ctx, videoID)
	if err != nil {
		exists = count > 0
	}
	return IndexInfo{Exists: exists, ChunkCount: count}
}

// FormatContext renders passages as a numbered, citation-ready block.
// Each section carries an MM:SS timestamp when the source chunk has a
// start offset, and the relevance score as a percentage.
func FormatContext(passages []models.RetrievedPassage) string {
	if len(passages) == 0 {
		return "No relevant content found."
	}

	var b strings.Builder
	for i, p := range passages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(fmt.Sprintf("[%d]", i+1))
		if ts, ok := startSeconds(p.Metadata); ok {
			b.WriteString(" (" + FormatTimestamp(ts) + ")")
		}
		b.WriteString(fmt.Sprintf(" (relevance: %.0f%%)\n", p.Score*100))
		b.WriteString(p.Text)
	}
	return b.String()
}

// FormatTimestamp renders seconds as MM:SS.
func FormatTimestamp(seconds float64) string {
	total := int(seconds)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

// startSeconds reads the start offset out of passage metadata,
// tolerating the numeric type variance across store backends.
func startSeconds(meta map[string]any) (float64, bool) {
	if meta == nil {
		return 0, false
	}
	switch v := meta["start_seconds"].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}
