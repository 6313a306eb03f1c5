package index

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRerank(t *testing.T) {
	var gotBody rerankRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Api-Key") != "pk" {
			t.Errorf("missing Api-Key header")
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatal(err)
		}
		w.Write([]byte(`{"data":[{"index":1,"score":0.9},{"index":0,"score":0.2}]}`))
	}))
	defer server.Close()

	t.Setenv("PINECONE_API_KEY", "pk")
	r, err := NewPineconeReranker(server.URL, "PINECONE_API_KEY", "")
	if err != nil {
		t.Fatal(err)
	}

	results, err := r.Rerank("query", []string{"doc a", "doc b"})
	if err != nil {
		t.Fatal(err)
	}

	if gotBody.Model != "bge-reranker-v2-m3" {
		t.Errorf("unexpected model %q", gotBody.Model)
	}
	if len(gotBody.Documents) != 2 || gotBody.Documents[0].Text != "doc a" {
		t.Errorf("unexpected documents %+v", gotBody.Documents)
	}
	if gotBody.ReturnDocuments {
		t.Error("documents should not be echoed back")
	}

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Index != 1 || results[0].Score != 0.9 {
		t.Errorf("unexpected first result %+v", results[0])
	}
}

func TestRerankMissingKey(t *testing.T) {
	t.Setenv("PINECONE_API_KEY", "")
	if _, err := NewPineconeReranker("", "PINECONE_API_KEY", ""); err == nil {
		t.Error("expected error for missing API key")
	}
}

func TestRerankAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	t.Setenv("PINECONE_API_KEY", "pk")
	r, err := NewPineconeReranker(server.URL, "PINECONE_API_KEY", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.Rerank("q", []string{"d"}); err == nil {
		t.Error("expected error on non-200 response")
	}
}
