package port

// VectorIndex stores and searches embedding vectors, partitioned by namespace
// (one namespace per ingested document).
type VectorIndex interface {
	// Upsert adds or updates vectors in the given namespace.
	Upsert(namespace string, items []IndexItem) error

	// Search finds the k nearest vectors to the query within a namespace.
	// An empty namespace searches across all namespaces.
	Search(namespace string, query []float32, k int) ([]Match, error)

	// DeleteNamespace removes all vectors in a namespace.
	DeleteNamespace(namespace string) error

	// Count returns the number of vectors in a namespace
	// (all namespaces when empty).
	Count(namespace string) (int, error)
}

// IndexItem represents a vector to be stored.
type IndexItem struct {
	ID       string            // Bundle ID
	Vector   []float32         // Embedding vector
	Metadata map[string]string // Text, kind, page, token cost, ...
}

// Match represents a search result. Vector is always populated so downstream
// selection can compute pairwise similarity without another round trip.
type Match struct {
	ID       string
	Score    float64 // Similarity score (higher is better)
	Vector   []float32
	Metadata map[string]string
}
