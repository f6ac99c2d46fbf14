// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package evidence

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

// routeBackend picks a response by matching document titles in the prompt.
type routeBackend struct {
	mu     sync.Mutex
	calls  int
	routes map[string]string
	fails  map[string]bool
}

func (b *routeBackend) Complete(_ context.Context, prompt string) (string, error) {
	b.mu.Lock()
	b.calls++
	b.mu.Unlock()

	for title := range b.fails {
		if strings.Contains(prompt, title) {
			return "", fmt.Errorf("model unavailable")
		}
	}
	for title, resp := range b.routes {
		if strings.Contains(prompt, title) {
			return resp, nil
		}
	}
	return "", fmt.Errorf("no route for prompt")
}

func (b *routeBackend) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

func response(relevance string, confidence float64) string {
	return fmt.Sprintf(`{"relevance": %q, "relevance_reasoning": "r", "extraction_confidence": %f}`, relevance, confidence)
}

func batchDoc(id, title string) types.Document {
	return types.Document{ID: id, Title: title, Abstract: "abstract for " + title}
}

func TestExtractBatchOrdersResults(t *testing.T) {
	backend := &routeBackend{
		routes: map[string]string{
			"alpha": response("LOW", 0.9),
			"beta":  response("HIGH", 0.8),
			"gamma": response("MEDIUM", 0.95),
		},
		fails: map[string]bool{"delta": true},
	}
	e := newTestExtractor(t, backend, types.ExtractionConfig{})

	docs := []types.Document{
		batchDoc("1", "alpha"),
		batchDoc("2", "beta"),
		batchDoc("3", "gamma"),
		batchDoc("4", "delta"),
	}
	results, summary := e.ExtractBatch(context.Background(), docs, "q", false, io.Discard)

	if len(results) != 4 {
		t.Fatalf("len(results) = %d, want 4", len(results))
	}
	// HIGH first, then MEDIUM by confidence (placeholder has 0.0), LOW last.
	wantOrder := []string{"2", "3", "4", "1"}
	for i, id := range wantOrder {
		if results[i].DocumentID != id {
			t.Errorf("results[%d] = %s, want %s", i, results[i].DocumentID, id)
		}
	}

	if summary.Extracted != 3 || summary.Failed != 1 || summary.Cached != 0 {
		t.Errorf("summary = %+v", summary)
	}
	if !summary.HasFailures() || summary.Total() != 4 {
		t.Errorf("summary accessors wrong: %+v", summary)
	}
}

func TestExtractBatchDeduplicates(t *testing.T) {
	backend := &routeBackend{routes: map[string]string{"alpha": response("HIGH", 0.9)}}
	e := newTestExtractor(t, backend, types.ExtractionConfig{})

	docs := []types.Document{
		batchDoc("1", "alpha"),
		batchDoc("1", "alpha"),
		batchDoc("1", "alpha"),
	}
	results, summary := e.ExtractBatch(context.Background(), docs, "q", false, io.Discard)

	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1", len(results))
	}
	if backend.callCount() != 1 {
		t.Errorf("backend calls = %d, want 1", backend.callCount())
	}
	if summary.Total() != 1 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestExtractBatchSecondRunAllCached(t *testing.T) {
	backend := &routeBackend{
		routes: map[string]string{
			"alpha": response("HIGH", 0.9),
			"beta":  response("LOW", 0.5),
		},
	}
	e := newTestExtractor(t, backend, types.ExtractionConfig{})

	docs := []types.Document{batchDoc("1", "alpha"), batchDoc("2", "beta")}

	_, first := e.ExtractBatch(context.Background(), docs, "q", false, io.Discard)
	if first.Extracted != 2 {
		t.Fatalf("first run summary = %+v", first)
	}

	_, second := e.ExtractBatch(context.Background(), docs, "q", false, io.Discard)
	if second.Cached != 2 || second.Extracted != 0 {
		t.Errorf("second run summary = %+v, want all cached", second)
	}
	if backend.callCount() != 2 {
		t.Errorf("backend calls = %d, want 2", backend.callCount())
	}
}

func TestExtractBatchProgressOutput(t *testing.T) {
	backend := &routeBackend{
		routes: map[string]string{"alpha": response("HIGH", 0.9)},
		fails:  map[string]bool{"delta": true},
	}
	e := newTestExtractor(t, backend, types.ExtractionConfig{})

	var buf strings.Builder
	docs := []types.Document{batchDoc("1", "alpha"), batchDoc("4", "delta")}
	e.ExtractBatch(context.Background(), docs, "q", false, &buf)

	out := buf.String()
	if !strings.Contains(out, "extracted 1") {
		t.Errorf("missing extraction line:\n%s", out)
	}
	if !strings.Contains(out, "failed    4") {
		t.Errorf("missing failure line:\n%s", out)
	}
}

func TestExtractBatchCancelledContextDropsUnfedDocuments(t *testing.T) {
	backend := &routeBackend{
		routes: map[string]string{
			"alpha": response("HIGH", 0.9),
			"beta":  response("HIGH", 0.9),
			"gamma": response("HIGH", 0.9),
		},
	}
	e := newTestExtractor(t, backend, types.ExtractionConfig{Workers: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	docs := []types.Document{
		batchDoc("1", "alpha"),
		batchDoc("2", "beta"),
		batchDoc("3", "gamma"),
	}
	results, summary := e.ExtractBatch(ctx, docs, "q", false, io.Discard)

	// How many documents were handed to a worker before the cancellation
	// was observed is timing dependent, but every returned record must
	// belong to a real document and match the summary counts.
	if summary.Total() != len(results) {
		t.Errorf("summary total = %d, len(results) = %d", summary.Total(), len(results))
	}
	for i, ev := range results {
		if ev.DocumentID == "" {
			t.Errorf("results[%d] has empty document ID", i)
		}
	}
}

func TestExtractBatchEmptyInput(t *testing.T) {
	backend := &routeBackend{}
	e := newTestExtractor(t, backend, types.ExtractionConfig{})

	results, summary := e.ExtractBatch(context.Background(), nil, "q", false, io.Discard)
	if len(results) != 0 || summary.Total() != 0 {
		t.Errorf("results = %v, summary = %+v", results, summary)
	}
	if backend.callCount() != 0 {
		t.Errorf("backend calls = %d", backend.callCount())
	}
}
