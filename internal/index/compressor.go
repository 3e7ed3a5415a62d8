package index

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"askvid/internal/llm"
)

const (
	// minSentenceLen discards fragments below this length when
	// splitting a passage into sentences.
	minSentenceLen = 20

	// minKeywordLen filters short stop-word-like query terms.
	minKeywordLen = 3

	// topSentences is the number of sentences heuristic compression keeps.
	topSentences = 3

	// compressionBatchSize bounds concurrent compressions in flight.
	compressionBatchSize = 3

	// noContentSentinel is what the model returns when a passage has
	// nothing relevant to the query.
	noContentSentinel = "NO_RELEVANT_CONTENT"

	// maxCompressedRatio: a model compression is only accepted when it
	// is at least 20% shorter than the original.
	maxCompressedRatio = 0.8
)

// CompressResult is a compressed passage. Text is empty only when the
// passage was empty or the model judged it irrelevant.
type CompressResult struct {
	Text          string
	WasCompressed bool
}

// Compressor reduces retrieved passages to the sentences relevant to a
// query. It only ever shrinks or passes text through unchanged.
type Compressor struct {
	model   *llm.Model // nil: heuristic only
	limiter *rate.Limiter
}

// NewCompressor creates a heuristic compressor. Pass a model to enable
// model-assisted span extraction instead.
func NewCompressor(model *llm.Model) *Compressor {
	return &Compressor{
		model: model,
		// Throttle upstream model calls during batch compression.
		limiter: rate.NewLimiter(rate.Limit(3), compressionBatchSize),
	}
}

// Compress reduces one passage against a query.
func (c *Compressor) Compress(ctx context.Context, passage, query string) (CompressResult, error) {
	passage = strings.TrimSpace(passage)
	if passage == "" {
		return CompressResult{}, nil
	}

	if c.model != nil {
		return c.compressWithModel(ctx, passage, query)
	}
	return c.compressHeuristic(passage, query), nil
}

// CompressBatch compresses passages in bounded-size waves, waiting for
// each wave before issuing the next. Result order matches the input.
func (c *Compressor) CompressBatch(ctx context.Context, passages []string, query string) ([]CompressResult, error) {
	results := make([]CompressResult, len(passages))

	for start := 0; start < len(passages); start += compressionBatchSize {
		end := start + compressionBatchSize
		if end > len(passages) {
			end = len(passages)
		}

		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			g.Go(func() error {
				res, err := c.Compress(gctx, passages[i], query)
				if err != nil {
					return err
				}
				results[i] = res
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}
	return results, nil
}

// compressHeuristic scores sentences by query keyword hits and keeps
// the best ones. Falls back to the leading sentences when nothing
// scores, so a non-empty passage never compresses to nothing.
func (c *Compressor) compressHeuristic(passage, query string) CompressResult {
	sentences := splitSentences(passage)
	if len(sentences) == 0 {
		return CompressResult{Text: passage}
	}

	keywords := extractKeywords(query)

	type scored struct {
		idx   int
		score int
	}
	ranked := make([]scored, 0, len(sentences))
	for i, s := range sentences {
		lower := strings.ToLower(s)
		score := 0
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				score++
			}
		}
		ranked = append(ranked, scored{idx: i, score: score})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	n := topSentences
	if n > len(ranked) {
		n = len(ranked)
	}

	var picked []string
	if ranked[0].score == 0 {
		// No keyword matched anywhere: keep the opening sentences.
		picked = sentences[:n]
	} else {
		picked = make([]string, 0, n)
		for _, r := range ranked[:n] {
			picked = append(picked, sentences[r.idx])
		}
	}

	text := strings.Join(picked, " ")
	return CompressResult{
		Text:          text,
		WasCompressed: len(text) < len(passage),
	}
}

func (c *Compressor) compressWithModel(ctx context.Context, passage, query string) (CompressResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return CompressResult{}, err
	}

	systemPrompt := fmt.Sprintf(`Extract only the parts of the given text that are relevant to the question. Keep extracted spans verbatim, do not paraphrase. If nothing is relevant, reply with exactly %s.`, noContentSentinel)
	userPrompt := fmt.Sprintf("Question: %s\n\nText:\n%s", query, passage)

	resp, err := c.model.Invoke(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, userPrompt),
	}, nil)
	if err != nil {
		return CompressResult{}, fmt.Errorf("compress passage: %w", err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == noContentSentinel {
		return CompressResult{WasCompressed: true}, nil
	}

	// Compression must never increase size; require a real reduction.
	if len(text) == 0 || float64(len(text)) > float64(len(passage))*maxCompressedRatio {
		return CompressResult{Text: passage}, nil
	}
	return CompressResult{Text: text, WasCompressed: true}, nil
}

// splitSentences splits on terminal punctuation, discarding fragments
// under minSentenceLen characters.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	flush := func() {
		s := strings.TrimSpace(current.String())
		current.Reset()
		if len(s) >= minSentenceLen {
			sentences = append(sentences, s)
		}
	}

	for _, r := range text {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			flush()
		}
	}
	flush()
	return sentences
}

// extractKeywords lowercases the query and keeps words longer than
// minKeywordLen.
func extractKeywords(query string) []string {
	words := strings.Fields(strings.ToLower(query))
	keywords := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.Trim(w, ".,!?\"'()[]")
		if len(w) > minKeywordLen {
			keywords = append(keywords, w)
		}
	}
	return keywords
}
