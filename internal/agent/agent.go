package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/llms"

	"askvid/internal/llm"
	"askvid/internal/models"
)

// defaultMaxSteps bounds tool invocations per request so the loop
// terminates even if the model never converges on an answer.
const defaultMaxSteps = 10

// Input starts one question-answering run.
type Input struct {
	VideoRef string // URL or bare video ID
	Question string
}

// Result is a completed run.
type Result struct {
	Answer string
	Steps  int
	// Artifacts holds the latest artifact per tool kind, for
	// programmatic reuse. Artifacts never enter the model history.
	Artifacts map[string]any
}

// Hooks receive orchestrator progress as it happens. All callbacks are
// optional; AnswerDelta may return an error to stop generation.
type Hooks struct {
	OnToolCall    func(name, args string)
	OnToolResult  func(name, content string)
	OnAnswerDelta func(text string) error
}

// Agent is the reusable tool orchestrator. Construct it once and share
// it across requests; per-request state lives entirely in Run.
type Agent struct {
	model    *llm.Model
	registry *Registry
	maxSteps int
	logger   *slog.Logger
}

// New creates an agent over a model and tool registry.
func New(model *llm.Model, registry *Registry, maxSteps int, logger *slog.Logger) *Agent {
	if maxSteps <= 0 {
		maxSteps = defaultMaxSteps
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Agent{
		model:    model,
		registry: registry,
		maxSteps: maxSteps,
		logger:   logger,
	}
}

// Run drives the model through tool invocations until it produces a
// final answer. Tool failures are converted into model-visible tool
// results so the model can adapt; only model-call failures and an
// exhausted step budget terminate the run with an error.
func (a *Agent) Run(ctx context.Context, input Input, hooks Hooks) (*Result, error) {
	history := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman,
			fmt.Sprintf("Video: %s\nQuestion: %s", input.VideoRef, input.Question)),
	}

	tools := a.registry.Definitions()
	artifacts := make(map[string]any)

	for step := 0; step < a.maxSteps; step++ {
		// Deltas are buffered per turn and only forwarded once the turn
		// is known to be the final answer. Text the model produces
		// alongside a tool call stays out of the delta stream, so the
		// forwarded deltas always concatenate to the answer.
		var deltas []string
		var onDelta func(string) error
		if hooks.OnAnswerDelta != nil {
			onDelta = func(text string) error {
				deltas = append(deltas, text)
				return nil
			}
		}

		resp, err := a.model.InvokeStream(ctx, history, tools, onDelta)
		if err != nil {
			return nil, fmt.Errorf("model call: %w", err)
		}

		if len(resp.ToolCalls) == 0 {
			if strings.TrimSpace(resp.Text) == "" {
				// No answer and no tool call; give the model another turn.
				history = append(history, llms.TextParts(llms.ChatMessageTypeHuman,
					"Please either call a tool or provide your final answer."))
				continue
			}
			for _, d := range deltas {
				if err := hooks.OnAnswerDelta(d); err != nil {
					break
				}
			}
			a.logger.Info("run complete", "steps", step, "answer_len", len(resp.Text))
			return &Result{Answer: resp.Text, Steps: step, Artifacts: artifacts}, nil
		}

		// Tool execution is strictly sequential: only the first call of
		// a turn runs, the rest are dropped from the history.
		call := resp.ToolCalls[0]
		if call.ID == "" {
			call.ID = uuid.NewString()
		}

		assistantParts := []llms.ContentPart{}
		if resp.Text != "" {
			assistantParts = append(assistantParts, llms.TextContent{Text: resp.Text})
		}
		assistantParts = append(assistantParts, llms.ToolCall{
			ID:           call.ID,
			Type:         call.Type,
			FunctionCall: call.FunctionCall,
		})
		history = append(history, llms.MessageContent{
			Role:  llms.ChatMessageTypeAI,
			Parts: assistantParts,
		})

		name := call.FunctionCall.Name
		args := call.FunctionCall.Arguments
		if hooks.OnToolCall != nil {
			hooks.OnToolCall(name, args)
		}
		a.logger.Debug("executing tool", "tool", name, "step", step)

		content := a.executeTool(ctx, name, args, artifacts)

		history = append(history, llms.MessageContent{
			Role: llms.ChatMessageTypeTool,
			Parts: []llms.ContentPart{llms.ToolCallResponse{
				ToolCallID: call.ID,
				Name:       name,
				Content:    content,
			}},
		})
		if hooks.OnToolResult != nil {
			hooks.OnToolResult(name, content)
		}
	}

	return nil, fmt.Errorf("%w: step budget of %d exceeded", models.ErrRequestTimeout, a.maxSteps)
}

// executeTool runs one tool and always returns model-visible content;
// failures come back as error descriptions so the run keeps going.
func (a *Agent) executeTool(ctx context.Context, name, args string, artifacts map[string]any) string {
	outcome, err := a.registry.Execute(ctx, name, args)
	if err != nil {
		a.logger.Warn("tool failed", "tool", name, "error", err)
		return fmt.Sprintf("Error: %s", err.Error())
	}
	if outcome.Artifact != nil {
		artifacts[name] = outcome.Artifact
	}
	return outcome.Content
}
