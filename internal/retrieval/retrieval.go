// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package retrieval implements the tiered evidence retrieval strategy:
// local semantic index first, external bibliographic search when local
// coverage is thin or the query implies recency, optional full-text
// augmentation of the top results, and cross-source deduplication.
package retrieval

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

// IndexSearcher is the read interface of the local semantic index.
type IndexSearcher interface {
	Search(ctx context.Context, query string, k int, minScore float64) ([]types.Document, error)
}

// ExternalSearcher queries an external bibliographic service.
type ExternalSearcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]types.Document, error)
}

// FullTextFetcher resolves an expanded article body for a document id.
// An empty string with a nil error means no full text exists.
type FullTextFetcher interface {
	Fetch(ctx context.Context, id string) (string, error)
}

// Request holds the parameters of one retrieval call.
type Request struct {
	// Query is the natural-language clinical question. Required.
	Query string

	// MaxResults caps the returned document count. Zero uses the
	// configured default; negative values are rejected.
	MaxResults int

	// FetchFullText augments the top-scored documents with article bodies.
	FetchFullText bool

	// ForceExternal skips the local index entirely.
	ForceExternal bool
}

// Orchestrator coordinates the retrieval tiers. Collaborators are
// injected at construction; the orchestrator holds no mutable state
// across requests.
type Orchestrator struct {
	index    IndexSearcher
	external ExternalSearcher
	fullText FullTextFetcher
	policy   RecencyPolicy
	cfg      types.RetrievalConfig
}

// NewOrchestrator wires the retrieval tiers together. fullText may be
// nil when augmentation is not deployed; requests asking for it then
// proceed without. policy nil selects the keyword default.
func NewOrchestrator(index IndexSearcher, external ExternalSearcher, fullText FullTextFetcher, policy RecencyPolicy, cfg types.RetrievalConfig) *Orchestrator {
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = 0.6
	}
	if cfg.MinLocalResults <= 0 {
		cfg.MinLocalResults = 3
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 10
	}
	if cfg.FullTextTop <= 0 {
		cfg.FullTextTop = 3
	}
	if policy == nil {
		policy = NewKeywordRecencyPolicy(cfg.RecencyKeywords)
	}
	return &Orchestrator{
		index:    index,
		external: external,
		fullText: fullText,
		policy:   policy,
		cfg:      cfg,
	}
}

// Retrieve runs the tiered strategy and returns merged, deduplicated
// documents sorted by score, with per-request metadata. Component
// failures degrade to partial results; only caller misuse (empty query,
// negative max results) is an error.
func (o *Orchestrator) Retrieve(ctx context.Context, req Request, w io.Writer) ([]types.Document, types.RetrievalMetadata, error) {
	var meta types.RetrievalMetadata

	if strings.TrimSpace(req.Query) == "" {
		return nil, meta, fmt.Errorf("query is empty: provide a clinical question")
	}
	if req.MaxResults < 0 {
		return nil, meta, fmt.Errorf("max results must be positive, got %d", req.MaxResults)
	}
	maxResults := req.MaxResults
	if maxResults == 0 {
		maxResults = o.cfg.MaxResults
	}

	// Tier 1: local semantic index. The index already filters to the
	// similarity threshold, so every hit counts toward local coverage.
	var goodLocal []types.Document
	if !req.ForceExternal {
		local, err := o.index.Search(ctx, req.Query, maxResults, o.cfg.SimilarityThreshold)
		if err != nil {
			fmt.Fprintf(w, "warning: local index search failed: %v\n", err)
		}
		goodLocal = local
	}
	meta.LocalResultCount = len(goodLocal)
	if len(goodLocal) > 0 {
		meta.SourcesUsed = append(meta.SourcesUsed, types.SourceLocalIndex)
	}

	// Fast path: enough confident local coverage and no recency signal.
	merged := goodLocal
	if req.ForceExternal || len(goodLocal) < o.cfg.MinLocalResults || o.policy.NeedsCurrent(req.Query) {
		external, err := o.external.Search(ctx, req.Query, maxResults)
		if err != nil {
			fmt.Fprintf(w, "warning: external search failed: %v\n", err)
		}
		var added int
		merged, added = merge(goodLocal, external)
		meta.ExternalResultCount = added
		if added > 0 {
			meta.SourcesUsed = append(meta.SourcesUsed, types.SourceExternalSearch)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].RelevanceScore > merged[j].RelevanceScore
	})
	if len(merged) > maxResults {
		merged = merged[:maxResults]
	}

	if req.FetchFullText && o.fullText != nil {
		meta.FullTextFetchCount = o.augment(ctx, merged, w)
		if meta.FullTextFetchCount > 0 {
			meta.SourcesUsed = append(meta.SourcesUsed, types.SourceFullTextAugmented)
		}
	}

	return merged, meta, nil
}

// merge appends external documents to the local set, deduplicating by
// id. The local copy wins on conflict because it may carry richer stored
// metadata; missing fields are filled from the external copy. Returns
// the merged set and the number of external documents that survived.
func merge(local, external []types.Document) ([]types.Document, int) {
	byID := make(map[string]int, len(local))
	merged := make([]types.Document, len(local))
	copy(merged, local)
	for i, doc := range merged {
		byID[doc.ID] = i
	}

	added := 0
	for _, doc := range external {
		if idx, ok := byID[doc.ID]; ok {
			fillMissing(&merged[idx], doc)
			continue
		}
		byID[doc.ID] = len(merged)
		merged = append(merged, doc)
		added++
	}
	return merged, added
}

// fillMissing copies fields the kept document lacks from the duplicate.
// Score and source are never overwritten.
func fillMissing(dst *types.Document, src types.Document) {
	if dst.Title == "" {
		dst.Title = src.Title
	}
	if dst.Abstract == "" {
		dst.Abstract = src.Abstract
	}
	if len(dst.Authors) == 0 {
		dst.Authors = src.Authors
	}
	if dst.Year == 0 {
		dst.Year = src.Year
	}
	if dst.Venue == "" {
		dst.Venue = src.Venue
	}
}

// augment fetches full text for the top-scored documents in place.
// Fetch failures are warnings; absent full text is silent because it is
// the common case.
func (o *Orchestrator) augment(ctx context.Context, docs []types.Document, w io.Writer) int {
	top := o.cfg.FullTextTop
	if top > len(docs) {
		top = len(docs)
	}

	fetched := 0
	for i := 0; i < top; i++ {
		text, err := o.fullText.Fetch(ctx, docs[i].ID)
		if err != nil {
			fmt.Fprintf(w, "warning: full text fetch for %s failed: %v\n", docs[i].ID, err)
			continue
		}
		if text == "" {
			continue
		}
		docs[i].FullText = text
		docs[i].Source = types.SourceFullTextAugmented
		fetched++
	}
	return fetched
}
