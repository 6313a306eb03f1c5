package segmenter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"pav/internal/adapter/cache"
	"pav/internal/domain"
)

// UnstructuredSegmenter partitions PDFs through the Unstructured API with the
// hi_res strategy, which yields layout elements plus base64 image crops and
// table HTML. Responses are cached by file content so re-ingesting an
// unchanged PDF makes no API calls.
type UnstructuredSegmenter struct {
	url        string
	apiKey     string
	strategy   string
	maxRetries int
	client     *http.Client
	cache      *cache.DiskCache // optional
}

// rawElement mirrors the partition API response shape.
type rawElement struct {
	Type      string      `json:"type"`
	ElementID string      `json:"element_id"`
	Text      string      `json:"text"`
	Metadata  rawMetadata `json:"metadata"`
}

type rawMetadata struct {
	PageNumber    int    `json:"page_number"`
	ImageBase64   string `json:"image_base64"`
	ImageMIMEType string `json:"image_mime_type"`
	TextAsHTML    string `json:"text_as_html"`
}

// NewUnstructuredSegmenter creates a partition API client. The API key is
// read from the given environment variable; c may be nil to disable caching.
func NewUnstructuredSegmenter(url, apiKeyEnv, strategy string, timeout time.Duration, maxRetries int, c *cache.DiskCache) (*UnstructuredSegmenter, error) {
	apiKey := os.Getenv(apiKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("API key not found in environment variable: %s", apiKeyEnv)
	}

	if strategy == "" {
		strategy = "hi_res"
	}
	if timeout <= 0 {
		timeout = 240 * time.Second
	}
	if maxRetries <= 0 {
		maxRetries = 5
	}

	return &UnstructuredSegmenter{
		url:        url,
		apiKey:     apiKey,
		strategy:   strategy,
		maxRetries: maxRetries,
		client:     &http.Client{Timeout: timeout},
		cache:      c,
	}, nil
}

// Partition segments one PDF into typed layout elements.
func (s *UnstructuredSegmenter) Partition(path string) ([]domain.Segment, error) {
	pdfData, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	cacheKey := cache.Key("uns:v2", path, cache.Key(string(pdfData)))
	if s.cache != nil {
		var cached []domain.Segment
		if hit, err := s.cache.Get("segments", cacheKey, &cached); err == nil && hit {
			return cached, nil
		}
	}

	var elements []rawElement
	var lastErr error
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(backoffDelay(attempt))
		}

		elements, lastErr = s.partitionOnce(filepath.Base(path), pdfData)
		if lastErr == nil {
			break
		}
	}
	if lastErr != nil {
		return nil, fmt.Errorf("partition failed after %d attempts: %w", s.maxRetries, lastErr)
	}

	segments := make([]domain.Segment, 0, len(elements))
	for _, e := range elements {
		segments = append(segments, domain.Segment{
			Type:        e.Type,
			Text:        e.Text,
			HTML:        e.Metadata.TextAsHTML,
			ImageBase64: e.Metadata.ImageBase64,
			ImageMIME:   e.Metadata.ImageMIMEType,
			Page:        e.Metadata.PageNumber,
			ElementID:   e.ElementID,
		})
	}

	if s.cache != nil {
		s.cache.Set("segments", cacheKey, segments)
	}
	return segments, nil
}

func (s *UnstructuredSegmenter) partitionOnce(filename string, pdfData []byte) ([]rawElement, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("files", filename)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(pdfData); err != nil {
		return nil, err
	}

	fields := map[string]string{
		"strategy":                  s.strategy,
		"split_pdf_page":            "true",
		"pdf_infer_table_structure": "true",
	}
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			return nil, err
		}
	}
	// Ask for Image + Table crops as base64 in metadata.image_base64.
	for _, t := range []string{"Image", "Table"} {
		if err := writer.WriteField("extract_image_block_types", t); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequest("POST", s.url, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("UNSTRUCTURED-API-KEY", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, excerpt(body))
	}

	var elements []rawElement
	if err := json.Unmarshal(body, &elements); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return elements, nil
}

func backoffDelay(attempt int) time.Duration {
	d := time.Second << uint(attempt-1)
	if d > 30*time.Second {
		d = 30 * time.Second
	}
	return d
}

func excerpt(body []byte) string {
	s := string(body)
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
