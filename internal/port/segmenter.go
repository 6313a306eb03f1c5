package port

import "pav/internal/domain"

// Segmenter converts a source PDF into typed layout segments.
type Segmenter interface {
	Partition(path string) ([]domain.Segment, error)
}
