// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the evidence-engine pipeline.
package types

// DocumentSource identifies which stage produced a Document.
type DocumentSource string

const (
	SourceLocalIndex        DocumentSource = "local_index"
	SourceExternalSearch    DocumentSource = "external_search"
	SourceFullTextAugmented DocumentSource = "full_text_augmented"
)

// Document is a unit of retrievable evidence. Instances are created per
// retrieval call and discarded at the end of the request; only derived
// cache entries persist.
type Document struct {
	// ID is the stable external identifier (e.g. a PMID).
	ID string `json:"id" yaml:"id"`

	// Title is the article title as returned by the source.
	Title string `json:"title" yaml:"title"`

	// Abstract is the article abstract or indexed summary.
	Abstract string `json:"abstract" yaml:"abstract"`

	// FullText is the expanded article body when full-text augmentation
	// succeeded. Empty otherwise.
	FullText string `json:"full_text,omitempty" yaml:"full_text,omitempty"`

	// Source identifies the stage that produced this copy. A document with
	// FullText set always carries SourceFullTextAugmented.
	Source DocumentSource `json:"source" yaml:"source"`

	// RelevanceScore is source-local: local-index scores are similarity
	// values, external scores are rank-decay positions. Scores from
	// different sources order results within that source only.
	RelevanceScore float64 `json:"relevance_score" yaml:"relevance_score"`

	// Year is the publication year, 0 when unknown.
	Year int `json:"year" yaml:"year"`

	// Authors lists up to three author names; longer lists end in "et al.".
	Authors []string `json:"authors" yaml:"authors"`

	// Venue is the journal or publication venue name.
	Venue string `json:"venue" yaml:"venue"`
}

// Text returns the richest available body for extraction: the full text
// when present, otherwise title and abstract.
func (d Document) Text() string {
	if d.FullText != "" {
		return d.FullText
	}
	if d.Title == "" {
		return d.Abstract
	}
	if d.Abstract == "" {
		return d.Title
	}
	return d.Title + "\n\n" + d.Abstract
}

// RetrievalMetadata records per-request bookkeeping. It is returned to the
// caller and never persisted.
type RetrievalMetadata struct {
	// SourcesUsed lists the stages that contributed documents.
	SourcesUsed []DocumentSource `json:"sources_used" yaml:"sources_used"`

	// LocalResultCount is the number of local-index candidates that cleared
	// the similarity threshold.
	LocalResultCount int `json:"local_result_count" yaml:"local_result_count"`

	// ExternalResultCount is the number of documents the external search
	// contributed.
	ExternalResultCount int `json:"external_result_count" yaml:"external_result_count"`

	// FullTextFetchCount is the number of successful full-text attachments.
	FullTextFetchCount int `json:"full_text_fetch_count" yaml:"full_text_fetch_count"`
}

// UsedSource reports whether the named source contributed to the request.
func (m RetrievalMetadata) UsedSource(s DocumentSource) bool {
	for _, used := range m.SourcesUsed {
		if used == s {
			return true
		}
	}
	return false
}

// FormattedContext is the pipeline's final output: a length-budgeted text
// block plus the structured evidence it was rendered from.
type FormattedContext struct {
	Text     string              `json:"text" yaml:"text"`
	Evidence []ExtractedEvidence `json:"evidence" yaml:"evidence"`
	Metadata RetrievalMetadata   `json:"metadata" yaml:"metadata"`
}
