package bundler

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"pav/internal/adapter/cache"
	"pav/internal/domain"
	"pav/internal/port"
)

const visionPrompt = `You are describing a figure extracted from a document. Describe what the figure shows: chart type, axes, legends, series, and the key numeric values or trends visible. Be precise and factual; do not speculate beyond what is drawn.`

// Builder turns partition segments into indexable bundles: one text bundle per
// page (split when it exceeds the token ceiling) plus a narrative bundle for
// every figure and table, written by the answer model from the media payload
// and its surrounding page text.
type Builder struct {
	model   port.AnswerModel // nil disables narrative generation
	counter port.TokenCounter
	cache   *cache.DiskCache // optional narrative cache

	neighborBlocks  int
	maxBundleTokens int
	overlapTokens   int
}

func New(model port.AnswerModel, counter port.TokenCounter, c *cache.DiskCache, neighborBlocks, maxBundleTokens, overlapTokens int) *Builder {
	if neighborBlocks <= 0 {
		neighborBlocks = 10
	}
	if maxBundleTokens <= 0 {
		maxBundleTokens = 3000
	}
	if overlapTokens < 0 {
		overlapTokens = 0
	}
	return &Builder{
		model:           model,
		counter:         counter,
		cache:           c,
		neighborBlocks:  neighborBlocks,
		maxBundleTokens: maxBundleTokens,
		overlapTokens:   overlapTokens,
	}
}

// Build creates bundles for one document. Segment order is preserved within a
// page; pages are emitted in ascending order.
func (b *Builder) Build(docID string, segments []domain.Segment) ([]domain.Bundle, error) {
	pages := groupByPage(segments)

	var bundles []domain.Bundle
	for _, page := range pages {
		pageBundles := b.buildPageText(docID, page.number, page.segments)

		parentID := ""
		if len(pageBundles) > 0 {
			parentID = pageBundles[0].ID
		}

		children, err := b.buildMedia(docID, page.number, parentID, page.segments)
		if err != nil {
			return nil, err
		}

		if len(pageBundles) > 0 {
			for _, c := range children {
				pageBundles[0].Children = append(pageBundles[0].Children, c.ID)
			}
		}
		bundles = append(bundles, pageBundles...)
		bundles = append(bundles, children...)
	}
	return bundles, nil
}

type pageGroup struct {
	number   int
	segments []domain.Segment
}

func groupByPage(segments []domain.Segment) []pageGroup {
	var pages []pageGroup
	index := map[int]int{}
	for _, s := range segments {
		i, ok := index[s.Page]
		if !ok {
			i = len(pages)
			index[s.Page] = i
			pages = append(pages, pageGroup{number: s.Page})
		}
		pages[i].segments = append(pages[i].segments, s)
	}
	// Partition output is already page-ordered; keep encounter order.
	return pages
}

func isMedia(s domain.Segment) bool {
	return s.Type == "Image" || s.Type == "Table"
}

// buildPageText joins the page's non-media text into one bundle, splitting
// into overlapping parts when the joined text exceeds the token ceiling.
func (b *Builder) buildPageText(docID string, page int, segments []domain.Segment) []domain.Bundle {
	var blocks []string
	for _, s := range segments {
		if isMedia(s) {
			continue
		}
		text := strings.TrimSpace(s.Text)
		if text != "" {
			blocks = append(blocks, text)
		}
	}

	newBundle := func(text string) domain.Bundle {
		return domain.Bundle{
			ID:        fmt.Sprintf("%s_p%d_ccu_%s", docID, page, shortID()),
			DocID:     docID,
			Kind:      "page",
			Page:      page,
			Text:      text,
			TokenCost: b.counter.Count(text),
		}
	}

	if len(blocks) == 0 {
		// Keep an anchor bundle so media children have a parent; ingest
		// skips empty text when embedding.
		return []domain.Bundle{newBundle("")}
	}

	joined := strings.Join(blocks, "\n\n")
	if b.counter.Count(joined) <= b.maxBundleTokens {
		return []domain.Bundle{newBundle(joined)}
	}

	var out []domain.Bundle
	var part []string
	partTokens := 0
	flush := func() {
		if len(part) == 0 {
			return
		}
		out = append(out, newBundle(strings.Join(part, "\n\n")))
		part = overlapTail(part, b.counter, b.overlapTokens)
		partTokens = 0
		for _, p := range part {
			partTokens += b.counter.Count(p)
		}
	}
	for _, block := range blocks {
		cost := b.counter.Count(block)
		if partTokens+cost > b.maxBundleTokens && len(part) > 0 {
			flush()
		}
		part = append(part, block)
		partTokens += cost
	}
	flush()
	return out
}

// overlapTail returns the trailing blocks worth at most overlapTokens, carried
// into the next part so split boundaries keep context.
func overlapTail(blocks []string, counter port.TokenCounter, overlapTokens int) []string {
	if overlapTokens <= 0 {
		return nil
	}
	total := 0
	start := len(blocks)
	for i := len(blocks) - 1; i >= 0; i-- {
		cost := counter.Count(blocks[i])
		if total+cost > overlapTokens {
			break
		}
		total += cost
		start = i
	}
	return append([]string(nil), blocks[start:]...)
}

// buildMedia produces a narrative bundle per figure/table on the page.
func (b *Builder) buildMedia(docID string, page int, parentID string, segments []domain.Segment) ([]domain.Bundle, error) {
	var out []domain.Bundle
	for i, s := range segments {
		if !isMedia(s) {
			continue
		}

		above := b.neighborText(segments, i, -1)
		below := b.neighborText(segments, i, +1)
		caption := findCaption(segments, i)

		var bundle domain.Bundle
		var err error
		switch s.Type {
		case "Image":
			bundle, err = b.buildImage(docID, page, s, caption, above, below)
		case "Table":
			bundle, err = b.buildTable(docID, page, s, caption, above, below)
		}
		if err != nil {
			fmt.Printf("warning: skipping %s on page %d: %v\n", strings.ToLower(s.Type), page, err)
			continue
		}
		if bundle.Text == "" {
			continue
		}
		bundle.ParentID = parentID
		bundle.TokenCost = b.counter.Count(bundle.Text)
		out = append(out, bundle)
	}
	return out, nil
}

// neighborText joins up to neighborBlocks text blocks before (dir=-1) or
// after (dir=+1) position i, in reading order.
func (b *Builder) neighborText(segments []domain.Segment, i, dir int) string {
	var blocks []string
	for j := i + dir; j >= 0 && j < len(segments) && len(blocks) < b.neighborBlocks; j += dir {
		s := segments[j]
		if isMedia(s) {
			continue
		}
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		blocks = append(blocks, text)
	}
	if dir < 0 {
		for l, r := 0, len(blocks)-1; l < r; l, r = l+1, r-1 {
			blocks[l], blocks[r] = blocks[r], blocks[l]
		}
	}
	return strings.Join(blocks, "\n\n")
}

// findCaption looks for an explicit caption element or a nearby text block
// that reads like one.
func findCaption(segments []domain.Segment, i int) string {
	for _, j := range []int{i + 1, i + 2, i - 1} {
		if j < 0 || j >= len(segments) {
			continue
		}
		s := segments[j]
		if isMedia(s) {
			continue
		}
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		if s.Type == "FigureCaption" || s.Type == "Caption" || looksLikeCaption(text) {
			return text
		}
	}
	return ""
}

func looksLikeCaption(text string) bool {
	lower := strings.ToLower(text)
	for _, prefix := range []string{"figure", "fig.", "table"} {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

func (b *Builder) buildImage(docID string, page int, s domain.Segment, caption, above, below string) (domain.Bundle, error) {
	if b.model == nil || s.ImageBase64 == "" {
		return domain.Bundle{}, nil
	}

	summary, err := b.cachedVision(s.ImageBase64, s.ImageMIME)
	if err != nil {
		return domain.Bundle{}, err
	}

	narrative, err := b.cachedContextualize(port.ContextualizeRequest{
		Kind:          "image",
		Caption:       caption,
		TextAbove:     above,
		TextBelow:     below,
		VisionSummary: summary,
		Page:          page,
	})
	if err != nil {
		return domain.Bundle{}, err
	}

	return domain.Bundle{
		ID:            fmt.Sprintf("%s_p%d_img_%s", docID, page, shortID()),
		DocID:         docID,
		Kind:          "image",
		Page:          page,
		Text:          narrative,
		Caption:       caption,
		ContextAbove:  above,
		ContextBelow:  below,
		VisionSummary: summary,
	}, nil
}

func (b *Builder) buildTable(docID string, page int, s domain.Segment, caption, above, below string) (domain.Bundle, error) {
	payload := s.HTML
	if payload == "" {
		payload = s.Text
	}
	if strings.TrimSpace(payload) == "" {
		return domain.Bundle{}, nil
	}

	text := payload
	if b.model != nil {
		narrative, err := b.cachedContextualize(port.ContextualizeRequest{
			Kind:      "table",
			HTML:      payload,
			Caption:   caption,
			TextAbove: above,
			TextBelow: below,
			Page:      page,
		})
		if err != nil {
			return domain.Bundle{}, err
		}
		text = narrative
	}

	return domain.Bundle{
		ID:           fmt.Sprintf("%s_p%d_tbl_%s", docID, page, shortID()),
		DocID:        docID,
		Kind:         "table",
		Page:         page,
		Text:         text,
		HTML:         s.HTML,
		Caption:      caption,
		ContextAbove: above,
		ContextBelow: below,
	}, nil
}

func (b *Builder) cachedVision(imageB64, mimeType string) (string, error) {
	key := cache.Key("vis:v1", b.model.ModelName(), imageB64)
	if b.cache != nil {
		var cached string
		if hit, err := b.cache.Get("vision", key, &cached); err == nil && hit {
			return cached, nil
		}
	}

	summary, err := b.model.Vision(imageB64, mimeType, visionPrompt)
	if err != nil {
		return "", err
	}

	if b.cache != nil {
		b.cache.Set("vision", key, summary)
	}
	return summary, nil
}

func (b *Builder) cachedContextualize(req port.ContextualizeRequest) (string, error) {
	key := cache.Key("nar:v1", b.model.ModelName(), req.Kind, req.HTML, req.Caption,
		req.TextAbove, req.TextBelow, req.VisionSummary)
	if b.cache != nil {
		var cached string
		if hit, err := b.cache.Get("narratives", key, &cached); err == nil && hit {
			return cached, nil
		}
	}

	narrative, err := b.model.Contextualize(req)
	if err != nil {
		return "", err
	}

	if b.cache != nil {
		b.cache.Set("narratives", key, narrative)
	}
	return narrative, nil
}

func shortID() string {
	return uuid.NewString()[:8]
}
