package store

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"sync"

	"go.etcd.io/bbolt"
	"pav/internal/port"
)

// BoltIndex implements VectorIndex using BoltDB for persistence, one bucket
// per namespace. Uses brute-force cosine search over an in-memory copy; fine
// for the tens-to-hundreds of bundles a document produces.
type BoltIndex struct {
	db *bbolt.DB
	mu sync.RWMutex
	// In-memory cache for fast search: namespace -> id -> entry
	namespaces map[string]map[string]indexEntry
}

type indexEntry struct {
	vector   []float32
	metadata map[string]string
}

type storedVector struct {
	Vector   []float32         `json:"v"`
	Metadata map[string]string `json:"m,omitempty"`
}

// NewBoltIndex opens (or creates) a BoltDB-backed vector index.
func NewBoltIndex(path string) (*BoltIndex, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	idx := &BoltIndex{
		db:         db,
		namespaces: make(map[string]map[string]indexEntry),
	}

	if err := idx.loadVectors(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load vectors: %w", err)
	}

	return idx, nil
}

// loadVectors loads all namespaces from BoltDB into memory.
func (s *BoltIndex) loadVectors() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		return tx.ForEach(func(name []byte, b *bbolt.Bucket) error {
			ns := string(name)
			entries := make(map[string]indexEntry)

			err := b.ForEach(func(k, v []byte) error {
				var stored storedVector
				if err := json.Unmarshal(v, &stored); err != nil {
					return nil // Skip corrupted entries
				}
				entries[string(k)] = indexEntry{
					vector:   stored.Vector,
					metadata: stored.Metadata,
				}
				return nil
			})
			if err != nil {
				return err
			}

			s.namespaces[ns] = entries
			return nil
		})
	})
}

// Upsert adds or updates vectors under a namespace.
func (s *BoltIndex) Upsert(namespace string, items []port.IndexItem) error {
	if namespace == "" {
		return fmt.Errorf("namespace is required for upsert")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(namespace))
		if err != nil {
			return err
		}

		for _, item := range items {
			data, err := json.Marshal(storedVector{
				Vector:   item.Vector,
				Metadata: item.Metadata,
			})
			if err != nil {
				return err
			}
			if err := b.Put([]byte(item.ID), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	entries := s.namespaces[namespace]
	if entries == nil {
		entries = make(map[string]indexEntry)
		s.namespaces[namespace] = entries
	}
	for _, item := range items {
		entries[item.ID] = indexEntry{
			vector:   item.Vector,
			metadata: item.Metadata,
		}
	}
	return nil
}

// Search finds the k most similar vectors by cosine similarity. An empty
// namespace searches every namespace.
func (s *BoltIndex) Search(namespace string, query []float32, k int) ([]port.Match, error) {
	if k <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []port.Match
	collect := func(entries map[string]indexEntry) {
		for id, entry := range entries {
			matches = append(matches, port.Match{
				ID:       id,
				Score:    cosine32(query, entry.vector),
				Vector:   entry.vector,
				Metadata: entry.metadata,
			})
		}
	}

	if namespace != "" {
		entries, ok := s.namespaces[namespace]
		if !ok {
			return nil, nil
		}
		collect(entries)
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

// DeleteNamespace removes all vectors in a namespace.
func (s *BoltIndex) DeleteNamespace(namespace string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket([]byte(namespace)) == nil {
			return nil
		}
		return tx.DeleteBucket([]byte(namespace))
	})
	if err != nil {
		return err
	}

	delete(s.namespaces, namespace)
	return nil
}

// Count returns the number of vectors in a namespace (all when empty).
func (s *BoltIndex) Count(namespace string) (int, error) {
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

// Close closes the underlying database.
func (s *BoltIndex) Close() error {
	return s.db.Close()
}

func cosine32(a, b []float32) float64 {
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
