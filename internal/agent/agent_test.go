package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/tmc/langchaingo/llms"

	"askvid/internal/chunker"
	"askvid/internal/index"
	"askvid/internal/llm"
	"askvid/internal/models"
	"askvid/internal/vectorstore/memory"
)

// scriptedModel replays a fixed sequence of turns and records what it
// was asked.
type scriptedModel struct {
	turns    []*llms.ContentResponse
	calls    int
	received [][]llms.MessageContent
	err      error
}

func (m *scriptedModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.received = append(m.received, messages)
	if m.err != nil {
		return nil, m.err
	}
	if m.calls >= len(m.turns) {
		return nil, fmt.Errorf("scripted model exhausted after %d turns", len(m.turns))
	}

	resp := m.turns[m.calls]
	m.calls++

	// Deliver text through the streaming func when one is set, the way
	// a real provider would.
	opts := llms.CallOptions{}
	for _, o := range options {
		o(&opts)
	}
	if opts.StreamingFunc != nil && len(resp.Choices) > 0 && resp.Choices[0].Content != "" {
		for _, word := range strings.SplitAfter(resp.Choices[0].Content, " ") {
			if err := opts.StreamingFunc(ctx, []byte(word)); err != nil {
				return nil, err
			}
		}
	}
	return resp, nil
}

func (m *scriptedModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	resp, err := m.GenerateContent(ctx, []llms.MessageContent{llms.TextParts(llms.ChatMessageTypeHuman, prompt)}, options...)
	if err != nil {
		return "", err
	}
	return resp.Choices[0].Content, nil
}

func textTurn(text string) *llms.ContentResponse {
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: text}}}
}

func toolTurn(calls ...llms.ToolCall) *llms.ContentResponse {
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{ToolCalls: calls}}}
}

// mixedTurn carries interim text alongside a tool call, the shape
// Anthropic produces when the model narrates before using a tool.
func mixedTurn(text string, calls ...llms.ToolCall) *llms.ContentResponse {
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: text, ToolCalls: calls}}}
}

func toolCall(id, name, args string) llms.ToolCall {
	return llms.ToolCall{
		ID:   id,
		Type: "function",
		FunctionCall: &llms.FunctionCall{
			Name:      name,
			Arguments: args,
		},
	}
}

// fakeEmbedClient gives the index manager deterministic vectors.
type fakeEmbedClient struct{}

func (fakeEmbedClient) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func (fakeEmbedClient) EmbedQuery(context.Context, string) ([]float32, error) {
	return []float32{1, 0}, nil
}

func newTestAgent(t *testing.T, sm *scriptedModel, maxSteps int) *Agent {
	t.Helper()

	embedder := llm.NewEmbedderWithClient(fakeEmbedClient{}, "fake", 2, nil)
	manager := index.NewManager(memory.NewStore(), embedder, nil, chunker.DefaultConfig(), nil, nil)

	registry := NewRegistry(&Dependencies{
		Index: manager,
	})

	return New(llm.NewModelWithClient(sm, "fake", nil), registry, maxSteps, nil)
}

func askInput() Input {
	return Input{VideoRef: "https://youtu.be/dQw4w9WgXcQ", Question: "What is this about?"}
}

func TestRun_DirectAnswer(t *testing.T) {
	sm := &scriptedModel{turns: []*llms.ContentResponse{
		textTurn("This video is about testing."),
	}}
	ag := newTestAgent(t, sm, 5)

	result, err := ag.Run(context.Background(), askInput(), Hooks{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Answer != "This video is about testing." {
		t.Errorf("Answer = %q", result.Answer)
	}
	if result.Steps != 0 {
		t.Errorf("Steps = %d, want 0", result.Steps)
	}

	// History starts with the system prompt and the user turn
	first := sm.received[0]
	if len(first) != 2 {
		t.Fatalf("model saw %d messages, want 2", len(first))
	}
	if first[0].Role != llms.ChatMessageTypeSystem {
		t.Errorf("first message role = %v, want system", first[0].Role)
	}
}

func TestRun_ToolLoop(t *testing.T) {
	sm := &scriptedModel{turns: []*llms.ContentResponse{
		toolTurn(toolCall("call-1", KindExtractVideoID, `{"url":"https://youtu.be/dQw4w9WgXcQ"}`)),
		textTurn("The video ID is dQw4w9WgXcQ."),
	}}
	ag := newTestAgent(t, sm, 5)

	var toolCalls, toolResults []string
	hooks := Hooks{
		OnToolCall:   func(name, _ string) { toolCalls = append(toolCalls, name) },
		OnToolResult: func(_, content string) { toolResults = append(toolResults, content) },
	}

	result, err := ag.Run(context.Background(), askInput(), hooks)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.Steps != 1 {
		t.Errorf("Steps = %d, want 1", result.Steps)
	}
	if len(toolCalls) != 1 || toolCalls[0] != KindExtractVideoID {
		t.Errorf("tool calls = %v", toolCalls)
	}
	if len(toolResults) != 1 || !strings.Contains(toolResults[0], "dQw4w9WgXcQ") {
		t.Errorf("tool results = %v", toolResults)
	}
	if result.Artifacts[KindExtractVideoID] != "dQw4w9WgXcQ" {
		t.Errorf("artifact = %v", result.Artifacts[KindExtractVideoID])
	}

	// Second model turn must carry the tool exchange in history
	second := sm.received[1]
	var sawToolResponse bool
	for _, msg := range second {
		if msg.Role == llms.ChatMessageTypeTool {
			sawToolResponse = true
		}
	}
	if !sawToolResponse {
		t.Error("tool response missing from history")
	}
}

func TestRun_ToolFailureContinues(t *testing.T) {
	sm := &scriptedModel{turns: []*llms.ContentResponse{
		toolTurn(toolCall("call-1", KindExtractVideoID, `{"url":"not a video"}`)),
		textTurn("I could not resolve that video reference."),
	}}
	ag := newTestAgent(t, sm, 5)

	var toolResults []string
	hooks := Hooks{
		OnToolResult: func(_, content string) { toolResults = append(toolResults, content) },
	}

	result, err := ag.Run(context.Background(), askInput(), hooks)
	if err != nil {
		t.Fatalf("Run() error = %v, tool failure must not abort the run", err)
	}
	if result.Answer == "" {
		t.Error("expected an answer after tool failure")
	}
	if len(toolResults) != 1 || !strings.HasPrefix(toolResults[0], "Error:") {
		t.Errorf("tool results = %v, want error content", toolResults)
	}
}

func TestRun_UnknownToolContinues(t *testing.T) {
	sm := &scriptedModel{turns: []*llms.ContentResponse{
		toolTurn(toolCall("call-1", "made_up_tool", `{}`)),
		textTurn("Adjusted."),
	}}
	ag := newTestAgent(t, sm, 5)

	result, err := ag.Run(context.Background(), askInput(), Hooks{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Answer != "Adjusted." {
		t.Errorf("Answer = %q", result.Answer)
	}
}

func TestRun_OnlyFirstToolCallExecutes(t *testing.T) {
	sm := &scriptedModel{turns: []*llms.ContentResponse{
		toolTurn(
			toolCall("call-1", KindExtractVideoID, `{"url":"https://youtu.be/dQw4w9WgXcQ"}`),
			toolCall("call-2", KindCheckIndexed, `{"video_id":"dQw4w9WgXcQ"}`),
		),
		textTurn("Done."),
	}}
	ag := newTestAgent(t, sm, 5)

	var toolCalls []string
	hooks := Hooks{OnToolCall: func(name, _ string) { toolCalls = append(toolCalls, name) }}

	if _, err := ag.Run(context.Background(), askInput(), hooks); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(toolCalls) != 1 || toolCalls[0] != KindExtractVideoID {
		t.Errorf("executed tools = %v, want only the first", toolCalls)
	}
}

func TestRun_StepBudgetExceeded(t *testing.T) {
	turns := make([]*llms.ContentResponse, 0, 3)
	for i := 0; i < 3; i++ {
		turns = append(turns, toolTurn(toolCall("", KindCheckIndexed, `{"video_id":"dQw4w9WgXcQ"}`)))
	}
	sm := &scriptedModel{turns: turns}
	ag := newTestAgent(t, sm, 3)

	_, err := ag.Run(context.Background(), askInput(), Hooks{})
	if !errors.Is(err, models.ErrRequestTimeout) {
		t.Errorf("error = %v, want ErrRequestTimeout", err)
	}
}

func TestRun_EmptyTurnGetsNudge(t *testing.T) {
	sm := &scriptedModel{turns: []*llms.ContentResponse{
		textTurn(""),
		textTurn("Recovered answer."),
	}}
	ag := newTestAgent(t, sm, 5)

	result, err := ag.Run(context.Background(), askInput(), Hooks{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Answer != "Recovered answer." {
		t.Errorf("Answer = %q", result.Answer)
	}

	// The nudge is visible to the model as an extra human turn
	second := sm.received[1]
	last := second[len(second)-1]
	if last.Role != llms.ChatMessageTypeHuman {
		t.Errorf("last history role = %v, want human nudge", last.Role)
	}
}

func TestRun_StreamsAnswerDeltas(t *testing.T) {
	sm := &scriptedModel{turns: []*llms.ContentResponse{
		textTurn("streamed final answer"),
	}}
	ag := newTestAgent(t, sm, 5)

	var streamed strings.Builder
	hooks := Hooks{OnAnswerDelta: func(text string) error {
		streamed.WriteString(text)
		return nil
	}}

	result, err := ag.Run(context.Background(), askInput(), hooks)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if streamed.String() != result.Answer {
		t.Errorf("streamed %q, answer %q", streamed.String(), result.Answer)
	}
}

func TestRun_ToolTurnTextNotStreamed(t *testing.T) {
	sm := &scriptedModel{turns: []*llms.ContentResponse{
		mixedTurn("Let me look that up. ",
			toolCall("call-1", KindExtractVideoID, `{"url":"https://youtu.be/dQw4w9WgXcQ"}`)),
		textTurn("The video is about testing."),
	}}
	ag := newTestAgent(t, sm, 5)

	var streamed strings.Builder
	hooks := Hooks{OnAnswerDelta: func(text string) error {
		streamed.WriteString(text)
		return nil
	}}

	result, err := ag.Run(context.Background(), askInput(), hooks)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Answer != "The video is about testing." {
		t.Errorf("Answer = %q", result.Answer)
	}
	// Narration from the tool-call turn must not leak into the delta
	// stream; the deltas concatenate to exactly the final answer.
	if streamed.String() != result.Answer {
		t.Errorf("streamed %q, want %q", streamed.String(), result.Answer)
	}
}

func TestRun_ModelFailureIsTerminal(t *testing.T) {
	sm := &scriptedModel{err: errors.New("provider exploded")}
	ag := newTestAgent(t, sm, 5)

	_, err := ag.Run(context.Background(), askInput(), Hooks{})
	if err == nil {
		t.Fatal("expected error from model failure")
	}
}

func TestRegistry_Execute_Validation(t *testing.T) {
	r := NewRegistry(&Dependencies{})

	tests := []struct {
		name    string
		tool    string
		args    string
		wantErr string
	}{
		{"unknown tool", "nope", `{}`, "unknown tool"},
		{"invalid json", KindExtractVideoID, `{not json`, "invalid arguments"},
		{"missing required", KindExtractVideoID, `{}`, "missing required"},
		{"unknown argument", KindExtractVideoID, `{"url":"x","extra":1}`, "unknown argument"},
		{"wrong type", KindQueryTranscript, `{"video_id":"v","question":"q","k":"four"}`, "must be a number"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Execute(context.Background(), tt.tool, tt.args)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Execute() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestRegistry_Definitions(t *testing.T) {
	r := NewRegistry(&Dependencies{})
	defs := r.Definitions()

	if len(defs) != 5 {
		t.Fatalf("got %d tool definitions, want 5", len(defs))
	}

	want := []string{KindExtractVideoID, KindCheckIndexed, KindFetchTranscript, KindIndexVideo, KindQueryTranscript}
	for i, def := range defs {
		if def.Function.Name != want[i] {
			t.Errorf("definition[%d] = %q, want %q", i, def.Function.Name, want[i])
		}
		if def.Type != "function" {
			t.Errorf("definition[%d] type = %q", i, def.Type)
		}
	}
}
