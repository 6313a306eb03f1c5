package index

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"pav/internal/port"
)

func TestMemoryIndexSearchOrder(t *testing.T) {
	idx := NewMemoryIndex()

	idx.Upsert("doc1", []port.IndexItem{
		{ID: "far", Vector: []float32{0, 1}},
		{ID: "near", Vector: []float32{1, 0}},
		{ID: "mid", Vector: []float32{0.7, 0.7}},
	})

	matches, err := idx.Search("doc1", []float32{1, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}

	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	if matches[0].ID != "near" || matches[1].ID != "mid" {
		t.Errorf("expected [near mid], got [%s %s]", matches[0].ID, matches[1].ID)
	}
}

func TestMemoryIndexNamespaces(t *testing.T) {
	idx := NewMemoryIndex()

	idx.Upsert("a", []port.IndexItem{{ID: "x", Vector: []float32{1, 0}}})
	idx.Upsert("b", []port.IndexItem{{ID: "y", Vector: []float32{1, 0}}})

	n, _ := idx.Count("a")
	if n != 1 {
		t.Errorf("expected 1 in namespace a, got %d", n)
	}

	idx.DeleteNamespace("a")
	n, _ = idx.Count("")
	if n != 1 {
		t.Errorf("expected 1 total after delete, got %d", n)
	}
}

func TestPineconeIndexRoundTrip(t *testing.T) {
	var gotUpsert pineconeUpsertRequest
	var gotQuery pineconeQueryRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Api-Key") != "test-key" {
			t.Errorf("missing Api-Key header")
		}

		switch r.URL.Path {
		case "/vectors/upsert":
			json.NewDecoder(r.Body).Decode(&gotUpsert)
			w.Write([]byte(`{"upsertedCount": 1}`))
		case "/query":
			json.NewDecoder(r.Body).Decode(&gotQuery)
			json.NewEncoder(w).Encode(pineconeQueryResponse{
				Matches: []pineconeMatch{
					{ID: "b1", Score: 0.93, Values: []float32{0.1, 0.9}, Metadata: map[string]string{"kind": "page"}},
				},
			})
		case "/describe_index_stats":
			json.NewEncoder(w).Encode(pineconeStatsResponse{
				Namespaces:       map[string]pineconeNamespaceStats{"doc1": {VectorCount: 7}},
				TotalVectorCount: 7,
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	t.Setenv("PINECONE_API_KEY", "test-key")
	idx, err := NewPineconeIndex(server.URL, "PINECONE_API_KEY")
	if err != nil {
		t.Fatal(err)
	}

	err = idx.Upsert("doc1", []port.IndexItem{
		{ID: "b1", Vector: []float32{0.1, 0.9}, Metadata: map[string]string{"kind": "page"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if gotUpsert.Namespace != "doc1" || len(gotUpsert.Vectors) != 1 {
		t.Errorf("unexpected upsert request: %+v", gotUpsert)
	}

	matches, err := idx.Search("doc1", []float32{0.1, 0.9}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if !gotQuery.IncludeValues || !gotQuery.IncludeMetadata {
		t.Error("expected query to request values and metadata")
	}
	if gotQuery.TopK != 5 {
		t.Errorf("expected topK=5, got %d", gotQuery.TopK)
	}
	if len(matches) != 1 || matches[0].ID != "b1" {
		t.Fatalf("unexpected matches: %v", matches)
	}
	if matches[0].Metadata["kind"] != "page" {
		t.Errorf("expected metadata round-trip, got %v", matches[0].Metadata)
	}

	n, err := idx.Count("doc1")
	if err != nil {
		t.Fatal(err)
	}
	if n != 7 {
		t.Errorf("expected count 7, got %d", n)
	}
}

func TestPineconeIndexErrors(t *testing.T) {
	t.Setenv("PINECONE_API_KEY", "")
	if _, err := NewPineconeIndex("https://example.test", "PINECONE_API_KEY"); err == nil {
		t.Error("expected error for missing API key")
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"quota exceeded"}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	t.Setenv("PINECONE_API_KEY", "k")
	idx, err := NewPineconeIndex(server.URL, "PINECONE_API_KEY")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := idx.Search("doc1", []float32{1}, 3); err == nil {
		t.Error("expected error on non-200 response")
	}
}
