package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestVoyageClient(t *testing.T, handler http.HandlerFunc) *voyageClient {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	c := newVoyageClient("test-key", "voyage-3")
	c.endpoint = ts.URL
	return c
}

func TestVoyageEmbedDocuments(t *testing.T) {
	c := newTestVoyageClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		var req voyageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "voyage-3" {
			t.Errorf("model = %q", req.Model)
		}
		if len(req.Input) != 2 {
			t.Fatalf("got %d inputs, want 2", len(req.Input))
		}

		// Deliver results out of order; the client must place by index.
		fmt.Fprint(w, `{"data":[
			{"embedding":[0.4,0.5,0.6],"index":1},
			{"embedding":[0.1,0.2,0.3],"index":0}
		],"usage":{"total_tokens":8}}`)
	})

	vectors, err := c.EmbedDocuments(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("EmbedDocuments() error = %v", err)
	}
	if len(vectors) != 2 {
		t.Fatalf("got %d vectors, want 2", len(vectors))
	}
	if vectors[0][0] != 0.1 || vectors[1][0] != 0.4 {
		t.Errorf("vectors misordered: %v", vectors)
	}
}

func TestVoyageEmbedDocuments_APIError(t *testing.T) {
	c := newTestVoyageClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"invalid key"}`, http.StatusUnauthorized)
	})

	if _, err := c.EmbedDocuments(context.Background(), []string{"text"}); err == nil {
		t.Error("EmbedDocuments() = nil error, want API error")
	}
}

func TestVoyageEmbedDocuments_CountMismatch(t *testing.T) {
	c := newTestVoyageClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[{"embedding":[0.1],"index":0}],"usage":{"total_tokens":2}}`)
	})

	if _, err := c.EmbedDocuments(context.Background(), []string{"one", "two"}); err == nil {
		t.Error("EmbedDocuments() = nil error, want count mismatch")
	}
}

func TestVoyageThrottleHonorsContext(t *testing.T) {
	c := newVoyageClient("test-key", "")
	if c.model != defaultVoyageModel {
		t.Errorf("model = %q, want %q", c.model, defaultVoyageModel)
	}

	// Drain the burst so the next call must wait, then cancel.
	for i := 0; i < voyageBurst; i++ {
		c.limiter.Allow()
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := c.EmbedDocuments(ctx, []string{"text"}); err == nil {
		t.Error("EmbedDocuments() = nil error, want context error from throttle")
	}
}
