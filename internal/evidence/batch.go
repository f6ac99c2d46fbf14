// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package evidence

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

// BatchSummary holds counts from a batch extraction run. Failed counts
// placeholders written this run; cached placeholders from prior runs count
// as Cached.
type BatchSummary struct {
	Extracted int
	Cached    int
	Failed    int
}

// Total returns the number of documents processed.
func (s BatchSummary) Total() int {
	return s.Extracted + s.Cached + s.Failed
}

// HasFailures reports whether any extraction fell back to a placeholder.
func (s BatchSummary) HasFailures() bool {
	return s.Failed > 0
}

// ExtractBatch appraises every document against the query with a bounded
// worker pool. One failed document never aborts the batch. Results come
// back sorted by relevance tier, then confidence, then the documents'
// retrieval order.
func (e *Extractor) ExtractBatch(ctx context.Context, docs []types.Document, query string, refresh bool, w io.Writer) ([]types.ExtractedEvidence, BatchSummary) {
	docs = dedupDocs(docs)

	results := make([]types.ExtractedEvidence, len(docs))
	cached := make([]bool, len(docs))
	dispatched := make([]bool, len(docs))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for n := 0; n < e.cfg.Workers; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i], cached[i] = e.Extract(ctx, docs[i], query, refresh)
			}
		}()
	}

	for i := range docs {
		select {
		case <-ctx.Done():
			// Stop feeding; in-flight calls fail on their own contexts.
		case jobs <- i:
			dispatched[i] = true
			continue
		}
		break
	}
	close(jobs)
	wg.Wait()

	// Documents never handed to a worker are dropped, not reported as
	// empty records.
	var summary BatchSummary
	out := make([]types.ExtractedEvidence, 0, len(results))
	for i, ev := range results {
		if !dispatched[i] {
			continue
		}
		switch {
		case cached[i]:
			fmt.Fprintf(w, "cached    %s\n", ev.DocumentID)
			summary.Cached++
		case ev.Failed():
			fmt.Fprintf(w, "failed    %s: %s\n", ev.DocumentID, ev.RelevanceReasoning)
			summary.Failed++
		default:
			fmt.Fprintf(w, "extracted %s (%s)\n", ev.DocumentID, ev.Relevance)
			summary.Extracted++
		}
		out = append(out, ev)
	}

	sortEvidence(out)
	return out, summary
}

// dedupDocs drops later duplicates so one document is appraised once even
// when retrieval returned overlapping copies.
func dedupDocs(docs []types.Document) []types.Document {
	seen := make(map[string]bool, len(docs))
	out := docs[:0:0]
	for _, doc := range docs {
		if seen[doc.ID] {
			continue
		}
		seen[doc.ID] = true
		out = append(out, doc)
	}
	return out
}

// sortEvidence orders by relevance tier, then extraction confidence, then
// the incoming (retrieval) order, which the stable sort preserves.
func sortEvidence(evidence []types.ExtractedEvidence) {
	sort.SliceStable(evidence, func(i, j int) bool {
		ri, rj := evidence[i].Relevance.Rank(), evidence[j].Relevance.Rank()
		if ri != rj {
			return ri < rj
		}
		return evidence[i].ExtractionConfidence > evidence[j].ExtractionConfidence
	})
}
