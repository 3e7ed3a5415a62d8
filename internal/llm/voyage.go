package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/tmc/langchaingo/embeddings"
	"golang.org/x/time/rate"
)

const (
	// defaultVoyageModel is used when no embedding model is configured.
	defaultVoyageModel = "voyage-3"

	// voyageAPIEndpoint is the Voyage AI embeddings endpoint.
	voyageAPIEndpoint = "https://api.voyageai.com/v1/embeddings"

	// voyageRequestsPerSecond keeps request volume inside the API's
	// basic-tier budget of 300 RPM.
	voyageRequestsPerSecond = 3
	voyageBurst             = 3
)

// voyageClient implements embeddings.Embedder against the Voyage AI
// HTTP API, which langchaingo has no native client for.
type voyageClient struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
	limiter  *rate.Limiter
}

var _ embeddings.Embedder = (*voyageClient)(nil)

func newVoyageClient(apiKey, model string) *voyageClient {
	if model == "" {
		model = defaultVoyageModel
	}
	return &voyageClient{
		apiKey:   apiKey,
		model:    model,
		endpoint: voyageAPIEndpoint,
		client:   &http.Client{},
		limiter:  rate.NewLimiter(voyageRequestsPerSecond, voyageBurst),
	}
}

type voyageRequest struct {
	Input     []string `json:"input"`
	Model     string   `json:"model"`
	InputType string   `json:"input_type,omitempty"`
}

type voyageResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// EmbedDocuments generates embeddings for multiple texts.
func (c *voyageClient) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	reqBody := voyageRequest{
		Input: texts,
		Model: c.model,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	var voyageResp voyageResponse
	if err := json.NewDecoder(resp.Body).Decode(&voyageResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if len(voyageResp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d",
			len(voyageResp.Data), len(texts))
	}

	// Responses may arrive out of order; place by index.
	result := make([][]float32, len(texts))
	for _, d := range voyageResp.Data {
		if d.Index >= len(result) {
			return nil, fmt.Errorf("invalid embedding index: %d", d.Index)
		}
		result[d.Index] = d.Embedding
	}

	return result, nil
}

// EmbedQuery generates an embedding for a single query text.
func (c *voyageClient) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return vectors[0], nil
}
