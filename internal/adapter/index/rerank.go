package index

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"pav/internal/port"
)

const defaultRerankURL = "https://api.pinecone.io/rerank"

// PineconeReranker scores query-document pairs with Pinecone's hosted
// cross-encoder rerank endpoint.
type PineconeReranker struct {
	url    string
	apiKey string
	model  string
	client *http.Client
}

// NewPineconeReranker creates a rerank client. url may be empty to use the
// hosted endpoint; the API key is read from the given environment variable.
func NewPineconeReranker(url, apiKeyEnv, model string) (*PineconeReranker, error) {
	apiKey := os.Getenv(apiKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("API key not found in environment variable: %s", apiKeyEnv)
	}
	if url == "" {
		url = defaultRerankURL
	}
	if model == "" {
		model = "bge-reranker-v2-m3"
	}
	return &PineconeReranker{
		url:    url,
		apiKey: apiKey,
		model:  model,
		client: &http.Client{Timeout: 60 * time.Second},
	}, nil
}

type rerankRequest struct {
	Model           string           `json:"model"`
	Query           string           `json:"query"`
	Documents       []rerankDocument `json:"documents"`
	TopN            int              `json:"top_n"`
	ReturnDocuments bool             `json:"return_documents"`
}

type rerankDocument struct {
	Text string `json:"text"`
}

type rerankResponse struct {
	Data []struct {
		Index int     `json:"index"`
		Score float64 `json:"score"`
	} `json:"data"`
}

// Rerank scores documents against the query, highest first.
func (r *PineconeReranker) Rerank(query string, documents []string) ([]port.RerankedResult, error) {
	docs := make([]rerankDocument, len(documents))
	for i, d := range documents {
		docs[i] = rerankDocument{Text: d}
	}

	payload, err := json.Marshal(rerankRequest{
		Model:           r.model,
		Query:           query,
		Documents:       docs,
		TopN:            len(documents),
		ReturnDocuments: false,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest("POST", r.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Api-Key", r.apiKey)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rerank API returned status %d: %s", resp.StatusCode, excerptBody(body))
	}

	var parsed rerankResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	results := make([]port.RerankedResult, 0, len(parsed.Data))
	for _, d := range parsed.Data {
		results = append(results, port.RerankedResult{Index: d.Index, Score: d.Score})
	}
	return results, nil
}

func (r *PineconeReranker) ModelName() string {
	return r.model
}

func excerptBody(body []byte) string {
	s := string(body)
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
