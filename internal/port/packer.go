package port

import "pav/internal/domain"

// Packer selects a budget-respecting subset of scored candidates.
type Packer interface {
	// Pack selects candidates whose summed token cost fits the budget,
	// trading raw relevance against redundancy between picks.
	Pack(candidates []domain.Candidate, budget int) (domain.Selection, error)
}
