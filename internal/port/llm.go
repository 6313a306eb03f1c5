package port

// AnswerModel is the multimodal model used for question answering and for
// turning figures/tables into indexable narratives during ingest.
type AnswerModel interface {
	// Answer answers a question given a packed context block.
	Answer(contextText, question string) (string, error)

	// Vision describes a base64-encoded image crop.
	Vision(imageB64, mimeType, prompt string) (string, error)

	// Contextualize writes a self-contained narrative for a figure or table
	// using its surrounding page text.
	Contextualize(req ContextualizeRequest) (string, error)

	// ModelName returns the name of the model.
	ModelName() string
}

// ContextualizeRequest carries everything the model needs to narrate one
// figure or table.
type ContextualizeRequest struct {
	Kind          string // "image" or "table"
	HTML          string
	Caption       string
	TextAbove     string
	TextBelow     string
	VisionSummary string
	Page          int
}

// Reranker scores query-document pairs for relevance.
type Reranker interface {
	// Rerank scores and reorders documents based on query relevance.
	// Returns results sorted by relevance score (highest first).
	Rerank(query string, documents []string) ([]RerankedResult, error)

	// ModelName returns the name of the reranking model.
	ModelName() string
}

// RerankedResult represents a reranked document.
type RerankedResult struct {
	Index int     // Original index in the input slice
	Score float64 // Relevance score (higher is better)
}
