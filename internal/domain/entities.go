package domain

// Segment is one layout element returned by the partition service for a PDF.
type Segment struct {
	Type        string // NarrativeText, Title, Image, Table, ...
	Text        string
	HTML        string // tables: inferred text_as_html
	ImageBase64 string // images: base64 crop from the partition service
	ImageMIME   string
	Page        int
	ElementID   string
}

// Bundle is an indexable unit built from one or more segments: either the
// joined text of a page, or an image/table child with its generated narrative.
type Bundle struct {
	ID            string
	DocID         string
	Kind          string // "page", "image", "table"
	Page          int
	Text          string // what gets embedded and fed to the answer model
	HTML          string
	Caption       string
	ContextAbove  string
	ContextBelow  string
	VisionSummary string
	ParentID      string
	Children      []string
	TokenCost     int
}

// Candidate is a retrieved bundle scored for one question, ready for packing.
// TokenCost is fixed before packing begins; the packer never re-tokenizes.
type Candidate struct {
	ID        string
	Embedding []float32
	Relevance float64
	TokenCost int
	Text      string
	Kind      string
	Page      int
	DocID     string
}

// Selection is the ordered output of the packer.
type Selection struct {
	Candidates     []Candidate
	UsedTokens     int
	TotalRelevance float64 // unpenalized relevance sum, for reporting
}

// PackedContext is the serialized form of a Selection for CLI output.
type PackedContext struct {
	Query          string    `json:"query"`
	Namespace      string    `json:"namespace,omitempty"`
	BudgetTokens   int       `json:"budget_tokens"`
	UsedTokens     int       `json:"used_tokens"`
	TotalRelevance float64   `json:"total_relevance"`
	Snippets       []Snippet `json:"snippets"`
}

// Snippet is one packed candidate with its citation metadata.
type Snippet struct {
	ID        string  `json:"id"`
	Kind      string  `json:"kind"`
	Page      int     `json:"page"`
	Relevance float64 `json:"relevance"`
	Tokens    int     `json:"tokens"`
	Text      string  `json:"text"`
}

// Answer is the final QA result for one question.
type Answer struct {
	Text         string `json:"text"`
	UsedTokens   int    `json:"used_tokens"`
	BudgetTokens int    `json:"budget_tokens"`
	Snippets     int    `json:"snippets"`
}
