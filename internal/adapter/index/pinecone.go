package index

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"pav/internal/port"
)

// PineconeIndex implements VectorIndex against a Pinecone serverless index's
// data-plane REST API. One namespace per ingested document.
type PineconeIndex struct {
	host   string
	apiKey string
	client *http.Client
}

type pineconeVector struct {
	ID       string            `json:"id"`
	Values   []float32         `json:"values"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type pineconeUpsertRequest struct {
	Vectors   []pineconeVector `json:"vectors"`
	Namespace string           `json:"namespace,omitempty"`
}

type pineconeQueryRequest struct {
	Namespace       string    `json:"namespace,omitempty"`
	TopK            int       `json:"topK"`
	Vector          []float32 `json:"vector"`
	IncludeValues   bool      `json:"includeValues"`
	IncludeMetadata bool      `json:"includeMetadata"`
}

type pineconeQueryResponse struct {
	Matches []pineconeMatch `json:"matches"`
}

type pineconeMatch struct {
	ID       string            `json:"id"`
	Score    float64           `json:"score"`
	Values   []float32         `json:"values"`
	Metadata map[string]string `json:"metadata"`
}

type pineconeDeleteRequest struct {
	Namespace string `json:"namespace,omitempty"`
	DeleteAll bool   `json:"deleteAll"`
}

type pineconeStatsResponse struct {
	Namespaces       map[string]pineconeNamespaceStats `json:"namespaces"`
	TotalVectorCount int                               `json:"totalVectorCount"`
}

type pineconeNamespaceStats struct {
	VectorCount int `json:"vectorCount"`
}

// NewPineconeIndex creates a Pinecone data-plane client. host is the index
// endpoint (https://<index>-<project>.svc.<region>.pinecone.io); the API key
// is read from the given environment variable.
func NewPineconeIndex(host, apiKeyEnv string) (*PineconeIndex, error) {
	apiKey := os.Getenv(apiKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("API key not found in environment variable: %s", apiKeyEnv)
	}
	if host == "" {
		return nil, fmt.Errorf("pinecone index host is required")
	}

	return &PineconeIndex{
		host:   strings.TrimRight(host, "/"),
		apiKey: apiKey,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}, nil
}

// Upsert writes vectors under a namespace in batches of 100.
func (p *PineconeIndex) Upsert(namespace string, items []port.IndexItem) error {
	const maxBatch = 100

	for i := 0; i < len(items); i += maxBatch {
		end := i + maxBatch
		if end > len(items) {
			end = len(items)
		}

		vectors := make([]pineconeVector, 0, end-i)
		for _, item := range items[i:end] {
			vectors = append(vectors, pineconeVector{
				ID:       item.ID,
				Values:   item.Vector,
				Metadata: item.Metadata,
			})
		}

		var resp json.RawMessage
		err := p.post("/vectors/upsert", pineconeUpsertRequest{
			Vectors:   vectors,
			Namespace: namespace,
		}, &resp)
		if err != nil {
			return fmt.Errorf("pinecone upsert failed: %w", err)
		}
	}
	return nil
}

// Search queries the index for the k nearest vectors in a namespace.
func (p *PineconeIndex) Search(namespace string, query []float32, k int) ([]port.Match, error) {
	if k <= 0 {
		return nil, nil
	}

	var resp pineconeQueryResponse
	err := p.post("/query", pineconeQueryRequest{
		Namespace:       namespace,
		TopK:            k,
		Vector:          query,
		IncludeValues:   true,
		IncludeMetadata: true,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("pinecone query failed: %w", err)
	}

	matches := make([]port.Match, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		matches = append(matches, port.Match{
			ID:       m.ID,
			Score:    m.Score,
			Vector:   m.Values,
			Metadata: m.Metadata,
		})
	}
	return matches, nil
}

// DeleteNamespace removes every vector in a namespace.
func (p *PineconeIndex) DeleteNamespace(namespace string) error {
	var resp json.RawMessage
	err := p.post("/vectors/delete", pineconeDeleteRequest{
		Namespace: namespace,
		DeleteAll: true,
	}, &resp)
	if err != nil {
		return fmt.Errorf("pinecone delete failed: %w", err)
	}
	return nil
}

// Count returns the vector count for a namespace (all namespaces when empty).
func (p *PineconeIndex) Count(namespace string) (int, error) {
	var resp pineconeStatsResponse
	if err := p.post("/describe_index_stats", struct{}{}, &resp); err != nil {
		return 0, fmt.Errorf("pinecone stats failed: %w", err)
	}

	if namespace == "" {
		return resp.TotalVectorCount, nil
	}
	return resp.Namespaces[namespace].VectorCount, nil
}

func (p *PineconeIndex) post(path string, reqBody, out interface{}) error {
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequest("POST", p.host+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Api-Key", p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
