// Package llm provides LLM and embedding services using langchaingo.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"askvid/internal/config"
	"askvid/internal/metrics"
)

// ErrFatalAPI marks provider errors that will not succeed on retry
// (auth, billing, quota). Callers should abort instead of retrying.
var ErrFatalAPI = errors.New("fatal API error")

// Response is one model turn: generated text plus any tool calls the
// model requested.
type Response struct {
	Text      string
	ToolCalls []llms.ToolCall
}

// Model wraps a langchaingo LLM for chat generation with tool support.
type Model struct {
	llm       llms.Model
	modelName string
	metrics   *metrics.Collector
}

// NewModel creates an LLM model based on configuration.
func NewModel(cfg config.Config, mc *metrics.Collector) (*Model, error) {
	var model llms.Model
	var err error

	switch cfg.LLMProvider {
	case config.ProviderOllama:
		model, err = ollama.New(
			ollama.WithModel(cfg.LLMModel),
			ollama.WithServerURL(cfg.OllamaHost),
		)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}

	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		model, err = openai.New(
			openai.WithToken(cfg.OpenAIAPIKey),
			openai.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}

	case config.ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("Anthropic API key required")
		}
		model, err = anthropic.New(
			anthropic.WithToken(cfg.AnthropicAPIKey),
			anthropic.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create anthropic model: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.LLMProvider)
	}

	return &Model{
		llm:       model,
		modelName: cfg.LLMModel,
		metrics:   mc,
	}, nil
}

// NewModelWithClient wraps an existing langchaingo client. Useful when
// the caller constructs the client itself, and for tests.
func NewModelWithClient(client llms.Model, modelName string, mc *metrics.Collector) *Model {
	return &Model{
		llm:       client,
		modelName: modelName,
		metrics:   mc,
	}
}

// Model returns the LLM model name.
func (m *Model) Model() string {
	return m.modelName
}

// Invoke runs one model turn over the full message history. Tools, if
// any, are offered to the model; tool calls come back on the response
// rather than being executed here.
func (m *Model) Invoke(ctx context.Context, messages []llms.MessageContent, tools []llms.Tool) (*Response, error) {
	return m.invoke(ctx, messages, tools, nil)
}

// InvokeStream is Invoke with incremental text delivery. onDelta is
// called with each text fragment as the provider produces it; tool
// calls are still returned only on the final response.
func (m *Model) InvokeStream(ctx context.Context, messages []llms.MessageContent, tools []llms.Tool, onDelta func(string) error) (*Response, error) {
	return m.invoke(ctx, messages, tools, onDelta)
}

func (m *Model) invoke(ctx context.Context, messages []llms.MessageContent, tools []llms.Tool, onDelta func(string) error) (*Response, error) {
	opts := []llms.CallOption{}
	if len(tools) > 0 {
		opts = append(opts, llms.WithTools(tools))
	}

	op := metrics.OpLLMGenerate
	if onDelta != nil {
		op = metrics.OpLLMStream
		opts = append(opts, llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
			if len(chunk) == 0 {
				return nil
			}
			return onDelta(string(chunk))
		}))
	}

	start := time.Now()
	resp, err := m.llm.GenerateContent(ctx, messages, opts...)
	duration := time.Since(start)

	if err != nil {
		return nil, wrapFatalError(fmt.Errorf("generate: %w", err))
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response choices")
	}

	choice := resp.Choices[0]
	if m.metrics != nil {
		m.metrics.RecordLLMUsage(op, duration,
			int64(intFromGenInfo(choice.GenerationInfo, "PromptTokens")),
			int64(intFromGenInfo(choice.GenerationInfo, "CompletionTokens")))
	}

	return &Response{
		Text:      choice.Content,
		ToolCalls: choice.ToolCalls,
	}, nil
}

// intFromGenInfo pulls a token count out of the provider generation
// info map, tolerating the int/float64 variance across providers.
func intFromGenInfo(info map[string]any, key string) int {
	if info == nil {
		return 0
	}
	switch v := info[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

// fatalPatterns are substrings of provider errors that indicate a
// non-retryable condition (auth, billing, quota).
var fatalPatterns = []string{
	"credit balance",
	"rate limit",
	"quota",
	"billing",
	"api key",
	"authentication",
	"unauthorized",
	"401",
	"403",
}

// isFatalAPIError reports whether err indicates a condition that a
// retry cannot fix.
func isFatalAPIError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, p := range fatalPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// wrapFatalError wraps fatal API errors with ErrFatalAPI so callers
// can match with errors.Is. Non-fatal errors pass through unchanged.
func wrapFatalError(err error) error {
	if isFatalAPIError(err) {
		return fmt.Errorf("%w: %v", ErrFatalAPI, err)
	}
	return err
}
