package embedding

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOpenAIEmbedderBatches(t *testing.T) {
	var batchSizes []int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		batchSizes = append(batchSizes, len(req.Input))

		type datum struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		}
		resp := struct {
			Data []datum `json:"data"`
		}{}
		for i := range req.Input {
			resp.Data = append(resp.Data, datum{Index: i, Embedding: []float32{float32(i), 1}})
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	t.Setenv("OPENAI_API_KEY", "sk")
	emb, err := NewOpenAIEmbedder("OPENAI_API_KEY", "text-embedding-3-small", server.URL, 2)
	if err != nil {
		t.Fatal(err)
	}

	vectors, err := emb.Embed([]string{"a", "b", "c"})
	if err != nil {
		t.Fatal(err)
	}

	if len(vectors) != 3 {
		t.Fatalf("expected 3 vectors, got %d", len(vectors))
	}
	if len(batchSizes) != 2 || batchSizes[0] != 2 || batchSizes[1] != 1 {
		t.Errorf("expected batches [2 1], got %v", batchSizes)
	}
	// Index placement: third text is index 0 of the second batch.
	if vectors[2][0] != 0 || vectors[2][1] != 1 {
		t.Errorf("unexpected third vector %v", vectors[2])
	}
}

func TestOpenAIEmbedderMissingKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := NewOpenAIEmbedder("OPENAI_API_KEY", "text-embedding-3-small", "", 0); err == nil {
		t.Error("expected error for missing API key")
	}
}

func TestOpenAIEmbedderDimension(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk")
	emb, err := NewOpenAIEmbedder("OPENAI_API_KEY", "text-embedding-3-large", "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if emb.Dimension() != 3072 {
		t.Errorf("expected 3072, got %d", emb.Dimension())
	}
}

func TestMockEmbedderDeterministic(t *testing.T) {
	emb := NewMockEmbedder(16)
	a, err := emb.Embed([]string{"same text"})
	if err != nil {
		t.Fatal(err)
	}
	b, _ := emb.Embed([]string{"same text"})
	for i := range a[0] {
		if a[0][i] != b[0][i] {
			t.Fatal("expected identical vectors for identical text")
		}
	}

	if emb.Dimension() != 16 {
		t.Errorf("expected dimension 16, got %d", emb.Dimension())
	}
}
