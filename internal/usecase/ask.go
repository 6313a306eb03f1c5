package usecase

import (
	"fmt"
	"strconv"
	"strings"

	"pav/internal/adapter/analyzer"
	"pav/internal/adapter/packer"
	"pav/internal/domain"
	"pav/internal/port"
)

// RelevanceIndex uses the index's own similarity score; RelevanceCosine
// recomputes cosine similarity against the query embedding locally.
const (
	RelevanceIndex  = "index"
	RelevanceCosine = "cosine"
)

// Asker retrieves candidates for a question, packs them into a token budget,
// and optionally sends the packed context to the answer model.
type Asker struct {
	embedder port.Embedder
	index    port.VectorIndex
	packer   port.Packer
	model    port.AnswerModel // nil: packing only
	reranker port.Reranker    // optional

	topK      int
	relevance string
	minScore  float64
}

func NewAsker(embedder port.Embedder, index port.VectorIndex, p port.Packer,
	model port.AnswerModel, reranker port.Reranker, topK int, relevance string, minScore float64) *Asker {
	if topK <= 0 {
		topK = 80
	}
	if relevance == "" {
		relevance = RelevanceIndex
	}
	return &Asker{
		embedder:  embedder,
		index:     index,
		packer:    p,
		model:     model,
		reranker:  reranker,
		topK:      topK,
		relevance: relevance,
		minScore:  minScore,
	}
}

// Retrieve embeds the question and returns scored candidates from the index.
func (a *Asker) Retrieve(namespace, question string) ([]domain.Candidate, error) {
	vectors, err := a.embedder.Embed([]string{question})
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for one question", len(vectors))
	}
	query := vectors[0]

	matches, err := a.index.Search(namespace, query, a.topK)
	if err != nil {
		return nil, fmt.Errorf("index search failed: %w", err)
	}

	var candidates []domain.Candidate
	for _, m := range matches {
		text := m.Metadata["text"]
		if text == "" {
			continue
		}

		relevance := m.Score
		if a.relevance == RelevanceCosine {
			relevance = packer.CosineSimilarity(query, m.Vector)
		}
		if a.minScore > 0 && relevance < a.minScore {
			continue
		}

		tokens, err := strconv.Atoi(m.Metadata["tokens"])
		if err != nil || tokens <= 0 {
			tokens = analyzer.EstimateTokens(text)
		}
		page, _ := strconv.Atoi(m.Metadata["page"])

		candidates = append(candidates, domain.Candidate{
			ID:        m.ID,
			Embedding: m.Vector,
			Relevance: relevance,
			TokenCost: tokens,
			Text:      text,
			Kind:      m.Metadata["kind"],
			Page:      page,
			DocID:     m.Metadata["doc_id"],
		})
	}

	if a.reranker != nil && len(candidates) > 0 {
		if err := a.rerank(question, candidates); err != nil {
			return nil, err
		}
	}
	return candidates, nil
}

// rerank replaces retrieval scores with cross-encoder scores in place.
func (a *Asker) rerank(question string, candidates []domain.Candidate) error {
	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.Text
	}
	results, err := a.reranker.Rerank(question, texts)
	if err != nil {
		return fmt.Errorf("rerank failed: %w", err)
	}
	for _, r := range results {
		if r.Index >= 0 && r.Index < len(candidates) {
			candidates[r.Index].Relevance = r.Score
		}
	}
	return nil
}

// PackContext retrieves and packs candidates for one question.
func (a *Asker) PackContext(namespace, question string, budget int) (*domain.PackedContext, error) {
	candidates, err := a.Retrieve(namespace, question)
	if err != nil {
		return nil, err
	}

	selection, err := a.packer.Pack(candidates, budget)
	if err != nil {
		return nil, fmt.Errorf("packing failed: %w", err)
	}

	packed := &domain.PackedContext{
		Query:          question,
		Namespace:      namespace,
		BudgetTokens:   budget,
		UsedTokens:     selection.UsedTokens,
		TotalRelevance: selection.TotalRelevance,
		Snippets:       make([]domain.Snippet, 0, len(selection.Candidates)),
	}
	for _, c := range selection.Candidates {
		packed.Snippets = append(packed.Snippets, domain.Snippet{
			ID:        c.ID,
			Kind:      c.Kind,
			Page:      c.Page,
			Relevance: c.Relevance,
			Tokens:    c.TokenCost,
			Text:      c.Text,
		})
	}
	return packed, nil
}

// RenderContext formats packed snippets as the evidence block given to the
// answer model, one cited block per snippet in selection order.
func RenderContext(packed *domain.PackedContext) string {
	blocks := make([]string, 0, len(packed.Snippets))
	for _, s := range packed.Snippets {
		blocks = append(blocks, fmt.Sprintf("[%s p%d] %s", s.Kind, s.Page, s.Text))
	}
	return strings.Join(blocks, "\n\n")
}

// Ask answers one question from the packed context.
func (a *Asker) Ask(namespace, question string, budget int) (*domain.Answer, *domain.PackedContext, error) {
	if a.model == nil {
		return nil, nil, fmt.Errorf("no answer model configured")
	}

	packed, err := a.PackContext(namespace, question, budget)
	if err != nil {
		return nil, nil, err
	}

	text, err := a.model.Answer(RenderContext(packed), question)
	if err != nil {
		return nil, nil, fmt.Errorf("answer model failed: %w", err)
	}

	return &domain.Answer{
		Text:         text,
		UsedTokens:   packed.UsedTokens,
		BudgetTokens: packed.BudgetTokens,
		Snippets:     len(packed.Snippets),
	}, packed, nil
}
