// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package evidence turns retrieved documents into structured clinical
// evidence via a Generative AI backend, with a persistent cache so a
// document is appraised at most once per (query, content, model).
package evidence

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

// Extractor runs structured extraction for single documents. Batch runs
// are layered on top in ExtractBatch.
type Extractor struct {
	backend ModelBackend
	cache   *Cache
	cfg     types.ExtractionConfig
}

// NewExtractor builds an extractor. cache may be nil, in which case every
// call reaches the backend.
func NewExtractor(backend ModelBackend, cache *Cache, cfg types.ExtractionConfig) *Extractor {
	if cfg.ContentWindow <= 0 {
		cfg.ContentWindow = 8000
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 3
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 120 * time.Second
	}
	return &Extractor{backend: backend, cache: cache, cfg: cfg}
}

// Extract appraises one document against the query. The returned bool
// reports a cache hit. Model failures are not errors: they produce a
// placeholder record that is cached like a success, so a dead document is
// not re-appraised on the next run. refresh skips the cache read but still
// writes the fresh result.
func (e *Extractor) Extract(ctx context.Context, doc types.Document, query string, refresh bool) (types.ExtractedEvidence, bool) {
	content := truncateMiddle(doc.Text(), e.cfg.ContentWindow)
	key := cacheKey(doc.ID, query, content, e.cfg.Model)

	if e.cache != nil && !refresh {
		if ev, ok := e.cache.Get(ctx, key); ok {
			return ev, true
		}
	}

	ev := e.appraise(ctx, doc, query, content)
	if e.cache != nil {
		// A failed write only costs a repeat model call next run.
		_ = e.cache.Put(ctx, key, doc.ID, e.cfg.Model, ev)
	}
	return ev, false
}

// appraise calls the model and converts its response, falling back to a
// placeholder on any error.
func (e *Extractor) appraise(ctx context.Context, doc types.Document, query, content string) types.ExtractedEvidence {
	prompt, err := renderPrompt(query, doc.Title, content)
	if err != nil {
		return placeholder(doc, fmt.Errorf("rendering prompt: %w", err))
	}

	callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	defer cancel()

	raw, err := e.backend.Complete(callCtx, prompt)
	if err != nil {
		return placeholder(doc, err)
	}

	ev, err := parseResponse(raw)
	if err != nil {
		return placeholder(doc, err)
	}

	ev.DocumentID = doc.ID
	ev.Year = doc.Year
	ev.Venue = doc.Venue
	return ev
}

// placeholder is the cached record for a failed extraction. MEDIUM
// relevance keeps the document visible downstream; zero confidence marks
// the record as a fallback.
func placeholder(doc types.Document, cause error) types.ExtractedEvidence {
	return types.ExtractedEvidence{
		DocumentID:           doc.ID,
		Relevance:            types.RelevanceMedium,
		RelevanceReasoning:   fmt.Sprintf("extraction failed: %v", cause),
		ExtractionConfidence: 0.0,
		Year:                 doc.Year,
		Venue:                doc.Venue,
	}
}

// modelPayload is the JSON object the model is instructed to emit.
type modelPayload struct {
	Relevance            string   `json:"relevance"`
	RelevanceReasoning   string   `json:"relevance_reasoning"`
	StudyType            string   `json:"study_type"`
	Population           string   `json:"population"`
	Intervention         string   `json:"intervention"`
	KeyFindings          []string `json:"key_findings"`
	Limitations          string   `json:"limitations"`
	ExtractionConfidence float64  `json:"extraction_confidence"`
}

// parseResponse extracts the JSON object from the raw model text and
// validates it. Confidence outside (0, 1] is an invalid response because
// zero is reserved for placeholders.
func parseResponse(raw string) (types.ExtractedEvidence, error) {
	payload, err := decodeJSONBlock(raw)
	if err != nil {
		return types.ExtractedEvidence{}, err
	}

	if payload.ExtractionConfidence <= 0.0 || payload.ExtractionConfidence > 1.0 {
		return types.ExtractedEvidence{}, fmt.Errorf("confidence %f out of range (0, 1]", payload.ExtractionConfidence)
	}

	findings := payload.KeyFindings
	if len(findings) > 3 {
		findings = findings[:3]
	}

	return types.ExtractedEvidence{
		Relevance:            types.ParseRelevance(payload.Relevance),
		RelevanceReasoning:   payload.RelevanceReasoning,
		StudyType:            payload.StudyType,
		Population:           payload.Population,
		Intervention:         payload.Intervention,
		KeyFindings:          findings,
		Limitations:          payload.Limitations,
		ExtractionConfidence: payload.ExtractionConfidence,
	}, nil
}

// decodeJSONBlock finds the first balanced top-level JSON object in raw
// and unmarshals it. Models sometimes wrap the object in prose despite
// being told not to.
func decodeJSONBlock(raw string) (modelPayload, error) {
	var payload modelPayload

	start := -1
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(raw); i++ {
		ch := raw[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				if err := json.Unmarshal([]byte(raw[start:i+1]), &payload); err != nil {
					return modelPayload{}, fmt.Errorf("parsing response JSON: %w", err)
				}
				return payload, nil
			}
		}
	}
	return modelPayload{}, fmt.Errorf("no JSON object in response")
}

// cacheKey derives the cache key from everything that changes the model's
// answer: the document, the question, the exact content sent, and the
// model identifier.
func cacheKey(docID, query, content, model string) string {
	h := sha256.New()
	for _, part := range []string{docID, query, content, model} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// truncateMiddle bounds s to max bytes. Abstracts front-load conclusions
// and articles back-load them, so the head and tail are kept and the
// middle dropped.
func truncateMiddle(s string, max int) string {
	if len(s) <= max {
		return s
	}
	const marker = "\n[...]\n"
	if max <= len(marker) {
		return s[:runeFloor(s, max)]
	}
	keep := max - len(marker)
	head := runeFloor(s, keep*2/3)
	start := runeCeil(s, len(s)-(keep-head))
	return s[:head] + marker + s[start:]
}

// runeFloor moves a byte index down to the nearest rune boundary so a
// cut never splits a multi-byte character.
func runeFloor(s string, i int) int {
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}

// runeCeil moves a byte index up to the nearest rune boundary.
func runeCeil(s string, i int) int {
	for i < len(s) && !utf8.RuneStart(s[i]) {
		i++
	}
	return i
}
