package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"pav/internal/port"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiModel implements AnswerModel against the Gemini generateContent REST
// API. Requests go to the primary model first and fall back to the secondary
// model on failure.
type GeminiModel struct {
	apiKey        string
	model         string
	fallbackModel string
	baseURL       string
	client        *http.Client
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"` // base64
}

type geminiResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
	Error      *geminiError      `json:"error,omitempty"`
}

type geminiCandidate struct {
	Content geminiContent `json:"content"`
}

type geminiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// NewGeminiModel creates a Gemini client. The API key is read from the given
// environment variable; baseURL overrides the default endpoint when set.
func NewGeminiModel(apiKeyEnv, model, fallbackModel, baseURL string, timeout time.Duration) (*GeminiModel, error) {
	apiKey := os.Getenv(apiKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("API key not found in environment variable: %s", apiKeyEnv)
	}

	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	return &GeminiModel{
		apiKey:        apiKey,
		model:         model,
		fallbackModel: fallbackModel,
		baseURL:       strings.TrimRight(baseURL, "/"),
		client:        &http.Client{Timeout: timeout},
	}, nil
}

// Answer answers a question strictly from the packed context. The model is
// instructed to reply "Insufficient evidence" when the pack does not cover
// the question.
func (g *GeminiModel) Answer(contextText, question string) (string, error) {
	prompt := fmt.Sprintf(`You are a careful scientific assistant. Answer ONLY using the provided PACK. If the PACK lacks sufficient information, respond exactly with 'Insufficient evidence'. When you cite, quote short supporting spans in double quotes. For numeric results, show a brief calculation if applicable.

PACK:
<<<
%s
>>>

QUESTION:
%s

FORMAT:
- If answerable: one short paragraph (<= 6 sentences) + 1-3 bullet quotes with minimal spans.
- If not answerable from PACK: output exactly 'Insufficient evidence'.`, contextText, question)

	return g.generate([]geminiPart{{Text: prompt}})
}

// Vision describes a base64-encoded image crop.
func (g *GeminiModel) Vision(imageB64, mimeType, prompt string) (string, error) {
	if mimeType == "" {
		mimeType = "image/png"
	}
	parts := []geminiPart{
		{Text: prompt},
		{InlineData: &geminiInlineData{MIMEType: mimeType, Data: imageB64}},
	}
	return g.generate(parts)
}

// Contextualize writes a short, faithful narrative for a figure or table
// using its neighboring page text.
func (g *GeminiModel) Contextualize(req port.ContextualizeRequest) (string, error) {
	var payload string
	if req.HTML != "" {
		payload = req.HTML
	} else {
		payload = req.VisionSummary
	}

	prompt := fmt.Sprintf(`You are a precise scientific writer. Write one short paragraph (<= 180 words) that faithfully explains the item using ONLY the provided content. Do not guess or generalize beyond the inputs. Prefer exact numbers/units that appear. If the content is insufficient to explain the item, respond exactly with 'Insufficient context'.

ITEM_KIND: %s

CAPTION (optional):
%s

PRIMARY_PAYLOAD (verbatim; table HTML/text or figure description):
<<<PRIMARY>>>
%s
<<<END PRIMARY>>>

TEXT ABOVE:
%s

TEXT BELOW:
%s`, strings.ToUpper(req.Kind), orNone(req.Caption), payload, orNone(req.TextAbove), orNone(req.TextBelow))

	return g.generate([]geminiPart{{Text: prompt}})
}

// ModelName returns the primary model name.
func (g *GeminiModel) ModelName() string {
	return g.model
}

// generate calls generateContent on the primary model, then the fallback.
func (g *GeminiModel) generate(parts []geminiPart) (string, error) {
	models := []string{g.model}
	if g.fallbackModel != "" && g.fallbackModel != g.model {
		models = append(models, g.fallbackModel)
	}

	var lastErr error
	for _, model := range models {
		text, err := g.generateWith(model, parts)
		if err != nil {
			lastErr = err
			continue
		}
		if text != "" {
			return text, nil
		}
		lastErr = fmt.Errorf("model %s returned empty response", model)
	}
	return "", lastErr
}

func (g *GeminiModel) generateWith(model string, parts []geminiPart) (string, error) {
	reqBody := geminiRequest{
		Contents: []geminiContent{{Parts: parts}},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.baseURL, model, g.apiKey)
	req, err := http.NewRequest("POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API returned status %d: %s", resp.StatusCode, excerpt(body))
	}

	var genResp geminiResponse
	if err := json.Unmarshal(body, &genResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if genResp.Error != nil {
		return "", fmt.Errorf("API error %d: %s", genResp.Error.Code, genResp.Error.Message)
	}

	var sb strings.Builder
	for _, c := range genResp.Candidates {
		for _, p := range c.Content.Parts {
			sb.WriteString(p.Text)
		}
	}
	return strings.TrimSpace(sb.String()), nil
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "[none]"
	}
	return s
}

func excerpt(body []byte) string {
	s := string(body)
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
