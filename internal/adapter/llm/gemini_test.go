package llm

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"pav/internal/port"
)

func geminiOK(text string) []byte {
	resp := geminiResponse{
		Candidates: []geminiCandidate{
			{Content: geminiContent{Parts: []geminiPart{{Text: text}}}},
		},
	}
	data, _ := json.Marshal(resp)
	return data
}

func TestGeminiAnswer(t *testing.T) {
	var gotReq geminiRequest
	var gotPath string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotReq)
		w.Write(geminiOK("The yield was 42%."))
	}))
	defer server.Close()

	t.Setenv("GOOGLE_API_KEY", "k")
	g, err := NewGeminiModel("GOOGLE_API_KEY", "gemini-2.5-pro", "gemini-2.5-flash", server.URL, 5*time.Second)
	if err != nil {
		t.Fatal(err)
	}

	answer, err := g.Answer("[page p1]\nSome results...", "What was the yield?")
	if err != nil {
		t.Fatal(err)
	}
	if answer != "The yield was 42%." {
		t.Errorf("unexpected answer: %q", answer)
	}
	if !strings.Contains(gotPath, "gemini-2.5-pro") {
		t.Errorf("expected primary model in path, got %s", gotPath)
	}

	prompt := gotReq.Contents[0].Parts[0].Text
	if !strings.Contains(prompt, "What was the yield?") {
		t.Error("expected question in prompt")
	}
	if !strings.Contains(prompt, "Insufficient evidence") {
		t.Error("expected evidence-bound instruction in prompt")
	}
}

func TestGeminiFallbackModel(t *testing.T) {
	calls := []string{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.URL.Path)
		if strings.Contains(r.URL.Path, "gemini-2.5-pro") {
			http.Error(w, `{"error":{"code":429,"message":"rate limited"}}`, http.StatusTooManyRequests)
			return
		}
		w.Write(geminiOK("fallback answer"))
	}))
	defer server.Close()

	t.Setenv("GOOGLE_API_KEY", "k")
	g, err := NewGeminiModel("GOOGLE_API_KEY", "gemini-2.5-pro", "gemini-2.5-flash", server.URL, 5*time.Second)
	if err != nil {
		t.Fatal(err)
	}

	answer, err := g.Answer("ctx", "q")
	if err != nil {
		t.Fatal(err)
	}
	if answer != "fallback answer" {
		t.Errorf("expected fallback answer, got %q", answer)
	}
	if len(calls) != 2 {
		t.Errorf("expected 2 calls (primary then fallback), got %d", len(calls))
	}
}

func TestGeminiVisionSendsInlineData(t *testing.T) {
	var gotReq geminiRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotReq)
		w.Write(geminiOK("a bar chart"))
	}))
	defer server.Close()

	t.Setenv("GOOGLE_API_KEY", "k")
	g, _ := NewGeminiModel("GOOGLE_API_KEY", "gemini-2.5-pro", "", server.URL, 5*time.Second)

	out, err := g.Vision("aGVsbG8=", "image/png", "describe the figure")
	if err != nil {
		t.Fatal(err)
	}
	if out != "a bar chart" {
		t.Errorf("unexpected output: %q", out)
	}

	parts := gotReq.Contents[0].Parts
	if len(parts) != 2 || parts[1].InlineData == nil {
		t.Fatalf("expected text + inline_data parts, got %+v", parts)
	}
	if parts[1].InlineData.Data != "aGVsbG8=" {
		t.Errorf("expected base64 payload, got %q", parts[1].InlineData.Data)
	}
}

func TestGeminiContextualizePrompt(t *testing.T) {
	var gotReq geminiRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotReq)
		w.Write(geminiOK("Table 2 reports accuracies..."))
	}))
	defer server.Close()

	t.Setenv("GOOGLE_API_KEY", "k")
	g, _ := NewGeminiModel("GOOGLE_API_KEY", "gemini-2.5-flash", "", server.URL, 5*time.Second)

	_, err := g.Contextualize(port.ContextualizeRequest{
		Kind:      "table",
		HTML:      "<table><tr><td>92.1</td></tr></table>",
		Caption:   "Table 2: accuracy",
		TextAbove: "We evaluate on three datasets.",
		Page:      4,
	})
	if err != nil {
		t.Fatal(err)
	}

	prompt := gotReq.Contents[0].Parts[0].Text
	if !strings.Contains(prompt, "ITEM_KIND: TABLE") {
		t.Error("expected item kind in prompt")
	}
	if !strings.Contains(prompt, "92.1") {
		t.Error("expected table payload in prompt")
	}
	if !strings.Contains(prompt, "Insufficient context") {
		t.Error("expected insufficiency instruction in prompt")
	}
}

func TestGeminiMissingKey(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "")
	if _, err := NewGeminiModel("GOOGLE_API_KEY", "m", "", "", 0); err == nil {
		t.Error("expected error for missing API key")
	}
}
