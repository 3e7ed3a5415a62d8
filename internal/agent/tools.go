// Package agent drives the bounded tool-calling loop that answers
// questions about a video's transcript.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"askvid/internal/index"
	"askvid/internal/models"
	"askvid/internal/youtube"
)

// Tool kinds form a closed set; the model cannot invoke anything else.
const (
	KindExtractVideoID  = "extract_video_id"
	KindCheckIndexed    = "check_indexed"
	KindFetchTranscript = "fetch_transcript"
	KindIndexVideo      = "index_video"
	KindQueryTranscript = "query_transcript"
)

// transcriptPreviewLen bounds how much raw transcript the model sees
// from fetch_transcript; the full document travels as an artifact.
const transcriptPreviewLen = 1500

// Outcome is a tool's dual return. Content is the only part that ever
// enters the model-visible history; Artifact is for programmatic reuse
// by the orchestrator and caller.
type Outcome struct {
	Content  string
	Artifact any
}

// Handler executes a tool with already-validated arguments.
type Handler func(ctx context.Context, args map[string]any) (Outcome, error)

// Tool pairs a handler with its argument schema.
type Tool struct {
	Kind        string
	Description string
	// Properties maps argument name to JSON-schema type ("string",
	// "number", "boolean").
	Properties map[string]Property
	Required   []string
	Handler    Handler
}

// Property describes one tool argument.
type Property struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// Dependencies holds shared services for tool handlers.
type Dependencies struct {
	Fetcher *youtube.Fetcher
	Index   *index.Manager
	Logger  *slog.Logger
}

// Registry maps tool kinds to handlers and argument schemas.
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewRegistry builds the fixed tool catalogue.
func NewRegistry(deps *Dependencies) *Registry {
	r := &Registry{tools: make(map[string]Tool)}

	r.add(Tool{
		Kind:        KindExtractVideoID,
		Description: "Extract the canonical 11-character video ID from a YouTube URL or bare ID.",
		Properties: map[string]Property{
			"url": {Type: "string", Description: "A YouTube URL (watch, youtu.be, embed, mobile) or bare video ID"},
		},
		Required: []string{"url"},
		Handler: func(ctx context.Context, args map[string]any) (Outcome, error) {
			videoID, err := youtube.ExtractVideoID(args["url"].(string))
			if err != nil {
				return Outcome{}, err
			}
			return Outcome{
				Content:  fmt.Sprintf("Video ID: %s", videoID),
				Artifact: videoID,
			}, nil
		},
	})

	r.add(Tool{
		Kind:        KindCheckIndexed,
		Description: "Check whether a video's transcript is already indexed and how many chunks it has.",
		Properties: map[string]Property{
			"video_id": {Type: "string", Description: "The canonical video ID"},
		},
		Required: []string{"video_id"},
		Handler: func(ctx context.Context, args map[string]any) (Outcome, error) {
			videoID := args["video_id"].(string)
			info := deps.Index.Describe(ctx, videoID)
			if !info.Exists {
				return Outcome{
					Content:  fmt.Sprintf("Video %s is not indexed yet.", videoID),
					Artifact: info,
				}, nil
			}
			return Outcome{
				Content:  fmt.Sprintf("Video %s is indexed with %d chunks.", videoID, info.ChunkCount),
				Artifact: info,
			}, nil
		},
	})

	r.add(Tool{
		Kind:        KindFetchTranscript,
		Description: "Fetch the transcript of a video. Returns a preview; use index_video to make it searchable.",
		Properties: map[string]Property{
			"video_id": {Type: "string", Description: "The canonical video ID"},
			"language": {Type: "string", Description: "Preferred caption language code, e.g. \"en\""},
		},
		Required: []string{"video_id"},
		Handler: func(ctx context.Context, args map[string]any) (Outcome, error) {
			doc, err := deps.Fetcher.Fetch(ctx, args["video_id"].(string), youtube.FetchOptions{
				Language: optString(args, "language"),
			})
			if err != nil {
				return Outcome{}, err
			}
			text := doc.Text()
			preview := text
			if len(preview) > transcriptPreviewLen {
				preview = preview[:transcriptPreviewLen] + "..."
			}
			return Outcome{
				Content: fmt.Sprintf("Fetched transcript (%d segments, %d characters). Preview:\n%s",
					len(doc.Segments), len(text), preview),
				Artifact: doc,
			}, nil
		},
	})

	r.add(Tool{
		Kind:        KindIndexVideo,
		Description: "Fetch a video's transcript and index it for semantic search. Safe to re-run.",
		Properties: map[string]Property{
			"video_id": {Type: "string", Description: "The canonical video ID"},
			"language": {Type: "string", Description: "Preferred caption language code"},
		},
		Required: []string{"video_id"},
		Handler: func(ctx context.Context, args map[string]any) (Outcome, error) {
			videoID := args["video_id"].(string)
			doc, err := deps.Fetcher.Fetch(ctx, videoID, youtube.FetchOptions{
				Language: optString(args, "language"),
			})
			if err != nil {
				return Outcome{}, err
			}
			result, err := deps.Index.IndexDocument(ctx, doc, nil)
			if err != nil {
				return Outcome{}, err
			}
			return Outcome{
				Content:  fmt.Sprintf("Indexed video %s: %d chunks.", videoID, result.ChunkCount),
				Artifact: result,
			}, nil
		},
	})

	r.add(Tool{
		Kind:        KindQueryTranscript,
		Description: "Search an indexed video's transcript. Returns numbered excerpts with timestamps and relevance scores.",
		Properties: map[string]Property{
			"video_id":        {Type: "string", Description: "The canonical video ID"},
			"question":        {Type: "string", Description: "What to look for in the transcript"},
			"k":               {Type: "number", Description: "Number of excerpts to return (default 4)"},
			"use_compression": {Type: "boolean", Description: "Compress excerpts to query-relevant sentences"},
		},
		Required: []string{"video_id", "question"},
		Handler: func(ctx context.Context, args map[string]any) (Outcome, error) {
			result, err := deps.Index.Query(ctx, args["video_id"].(string), args["question"].(string), index.QueryOptions{
				K:              optInt(args, "k"),
				UseCompression: optBool(args, "use_compression"),
			})
			if err != nil {
				return Outcome{}, err
			}
			return Outcome{
				Content:  result.Context,
				Artifact: result.Results,
			}, nil
		},
	})

	return r
}

func (r *Registry) add(t Tool) {
	r.tools[t.Kind] = t
	r.order = append(r.order, t.Kind)
}

// Definitions returns the tool catalogue in langchaingo form.
func (r *Registry) Definitions() []llms.Tool {
	defs := make([]llms.Tool, 0, len(r.order))
	for _, kind := range r.order {
		t := r.tools[kind]
		defs = append(defs, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        t.Kind,
				Description: t.Description,
				Parameters: map[string]any{
					"type":       "object",
					"properties": t.Properties,
					"required":   t.Required,
				},
			},
		})
	}
	return defs
}

// Execute validates arguments against the tool's schema and runs the
// handler. Unknown tools and schema violations are errors; the
// orchestrator converts them into model-visible tool results.
func (r *Registry) Execute(ctx context.Context, name, rawArgs string) (Outcome, error) {
	tool, ok := r.tools[name]
	if !ok {
		return Outcome{}, fmt.Errorf("unknown tool %q", name)
	}

	args := map[string]any{}
	if strings.TrimSpace(rawArgs) != "" {
		if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
			return Outcome{}, fmt.Errorf("invalid arguments for %s: %w", name, err)
		}
	}

	if err := validateArgs(tool, args); err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", models.ErrValidationFailed, err)
	}

	return tool.Handler(ctx, args)
}

func validateArgs(tool Tool, args map[string]any) error {
	for _, req := range tool.Required {
		if _, ok := args[req]; !ok {
			return fmt.Errorf("missing required argument %q for %s", req, tool.Kind)
		}
	}
	for name, val := range args {
		prop, ok := tool.Properties[name]
		if !ok {
			return fmt.Errorf("unknown argument %q for %s", name, tool.Kind)
		}
		switch prop.Type {
		case "string":
			if _, ok := val.(string); !ok {
				return fmt.Errorf("argument %q must be a string", name)
			}
		case "number":
			if _, ok := val.(float64); !ok {
				return fmt.Errorf("argument %q must be a number", name)
			}
		case "boolean":
			if _, ok := val.(bool); !ok {
				return fmt.Errorf("argument %q must be a boolean", name)
			}
		}
	}
	return nil
}

func optString(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func optInt(args map[string]any, key string) int {
	if v, ok := args[key].(float64); ok {
		return int(v)
	}
	return 0
}

func optBool(args map[string]any, key string) bool {
	if v, ok := args[key].(bool); ok {
		return v
	}
	return false
}
