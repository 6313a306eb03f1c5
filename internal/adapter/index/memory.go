package index

import (
	"math"
	"sort"
	"sync"

	"pav/internal/port"
)

// MemoryIndex is an in-memory VectorIndex for tests and throwaway runs.
type MemoryIndex struct {
	mu         sync.RWMutex
	namespaces map[string]map[string]memoryEntry
}

type memoryEntry struct {
	vector   []float32
	metadata map[string]string
}

// NewMemoryIndex creates an empty in-memory index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		namespaces: make(map[string]map[string]memoryEntry),
	}
}

func (s *MemoryIndex) Upsert(namespace string, items []port.IndexItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.namespaces[namespace]
	if entries == nil {
		entries = make(map[string]memoryEntry)
		s.namespaces[namespace] = entries
	}
	for _, item := range items {
		entries[item.ID] = memoryEntry{vector: item.Vector, metadata: item.Metadata}
	}
	return nil
}

func (s *MemoryIndex) Search(namespace string, query []float32, k int) ([]port.Match, error) {
	if k <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []port.Match
	collect := func(entries map[string]memoryEntry) {
		for id, entry := range entries {
			matches = append(matches, port.Match{
				ID:       id,
				Score:    cosine(query, entry.vector),
				Vector:   entry.vector,
				Metadata: entry.metadata,
			})
		}
	}

	if namespace != "" {
		collect(s.namespaces[namespace])
	} else {
		for _, entries := range s.namespaces {
			collect(entries)
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})

	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func (s *MemoryIndex) DeleteNamespace(namespace string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.namespaces, namespace)
	return nil
}

func (s *MemoryIndex) Count(namespace string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if namespace != "" {
		return len(s.namespaces[namespace]), nil
	}
	total := 0
	for _, entries := range s.namespaces {
		total += len(entries)
	}
	return total, nil
}

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
