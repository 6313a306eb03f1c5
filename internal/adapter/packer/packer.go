package packer

import (
	"errors"
	"fmt"
	"math"

	"pav/internal/domain"
)

// ErrInvalidInput reports a malformed budget, diversity weight, or token cost.
// The caller must fix the input before retrying.
var ErrInvalidInput = errors.New("invalid pack input")

// GreedyPacker selects candidates by gain-per-token with an MMR redundancy
// penalty. It holds no state between calls and is safe for concurrent use as
// long as each call gets its own candidate pool.
//
// marginal(c) = (1-w) * relevance(c) - w * maxSim(c, selected)
// score(c)    = marginal(c) / tokenCost(c)
//
// where maxSim is the maximum cosine similarity between c and any already
// selected candidate (0 while nothing is selected).
type GreedyPacker struct {
	diversityWeight float64
}

// New creates a GreedyPacker. diversityWeight must be in [0,1]:
// 0 is pure relevance ranking, 1 is maximal diversity preference.
func New(diversityWeight float64) (*GreedyPacker, error) {
	if math.IsNaN(diversityWeight) || diversityWeight < 0 || diversityWeight > 1 {
		return nil, fmt.Errorf("%w: diversity weight %v outside [0,1]", ErrInvalidInput, diversityWeight)
	}
	return &GreedyPacker{diversityWeight: diversityWeight}, nil
}

// Pack greedily selects candidates until nothing fits in the remaining
// budget. An empty pool or a zero budget yields an empty Selection, not an
// error. Runs in O(n^2) over the pool size.
func (p *GreedyPacker) Pack(candidates []domain.Candidate, budget int) (domain.Selection, error) {
	if budget < 0 {
		return domain.Selection{}, fmt.Errorf("%w: negative budget %d", ErrInvalidInput, budget)
	}
	for _, c := range candidates {
		if c.TokenCost <= 0 {
			return domain.Selection{}, fmt.Errorf("%w: candidate %q has token cost %d", ErrInvalidInput, c.ID, c.TokenCost)
		}
	}

	sel := domain.Selection{Candidates: []domain.Candidate{}}

	// Remaining candidates tracked as indexes into the input pool so that
	// the final tie-break (earlier input position wins) stays stable.
	remaining := make([]int, len(candidates))
	for i := range candidates {
		remaining[i] = i
	}

	for len(remaining) > 0 {
		bestPos := -1
		var bestScore, bestRelevance float64
		var bestCost int

		for pos, idx := range remaining {
			c := candidates[idx]
			if c.TokenCost > budget-sel.UsedTokens {
				continue
			}

			marginal := (1-p.diversityWeight)*c.Relevance - p.diversityWeight*maxSimilarity(c, sel.Candidates)
			score := marginal / float64(c.TokenCost)

			if bestPos == -1 || beats(score, c.Relevance, c.TokenCost, bestScore, bestRelevance, bestCost) {
				bestPos = pos
				bestScore = score
				bestRelevance = c.Relevance
				bestCost = c.TokenCost
			}
		}

		// Nothing fits in the remaining budget.
		if bestPos == -1 {
			break
		}

		chosen := candidates[remaining[bestPos]]
		sel.Candidates = append(sel.Candidates, chosen)
		sel.UsedTokens += chosen.TokenCost
		sel.TotalRelevance += chosen.Relevance
		remaining = append(remaining[:bestPos], remaining[bestPos+1:]...)
	}

	return sel, nil
}

// beats reports whether (score, relevance, cost) wins over the current best.
// Ties go to higher raw relevance, then lower token cost; a full tie keeps
// the earlier candidate, since remaining preserves input order.
func beats(score, relevance float64, cost int, bestScore, bestRelevance float64, bestCost int) bool {
	if score != bestScore {
		return score > bestScore
	}
	if relevance != bestRelevance {
		return relevance > bestRelevance
	}
	return cost < bestCost
}

// maxSimilarity returns the maximum cosine similarity between c and any
// already selected candidate, 0 when nothing is selected yet.
func maxSimilarity(c domain.Candidate, selected []domain.Candidate) float64 {
	maxSim := 0.0
	for _, s := range selected {
		sim := CosineSimilarity(c.Embedding, s.Embedding)
		if sim > maxSim {
			maxSim = sim
		}
	}
	return maxSim
}

// CosineSimilarity computes the cosine similarity between two vectors.
// Mismatched lengths or zero-norm vectors yield 0.
func CosineSimilarity(a, b []float32) float64 {
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
