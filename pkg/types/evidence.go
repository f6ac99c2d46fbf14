// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "strings"

// Relevance is the extractor's judgment of how directly a document
// answers the query.
type Relevance string

const (
	RelevanceHigh        Relevance = "high"
	RelevanceMedium      Relevance = "medium"
	RelevanceLow         Relevance = "low"
	RelevanceNotRelevant Relevance = "not_relevant"
)

// ParseRelevance maps a model-emitted token to a Relevance. Unknown tokens
// fall back to RelevanceMedium so a sloppy model response degrades the
// ranking rather than dropping the document.
func ParseRelevance(s string) Relevance {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return RelevanceHigh
	case "medium", "moderate":
		return RelevanceMedium
	case "low":
		return RelevanceLow
	case "not_relevant", "not relevant", "none", "irrelevant":
		return RelevanceNotRelevant
	default:
		return RelevanceMedium
	}
}

// Rank returns the sort position of the relevance tier: HIGH sorts first.
func (r Relevance) Rank() int {
	switch r {
	case RelevanceHigh:
		return 0
	case RelevanceMedium:
		return 1
	case RelevanceLow:
		return 2
	default:
		return 3
	}
}

// ExtractedEvidence is the structured summary of one Document with respect
// to one query. Instances are persisted in the extraction cache and read
// back verbatim on cache hits.
type ExtractedEvidence struct {
	// DocumentID links back to the source Document.
	DocumentID string `json:"document_id" yaml:"document_id"`

	// Relevance is the extractor's tier assignment.
	Relevance Relevance `json:"relevance" yaml:"relevance"`

	// RelevanceReasoning is the model's one-line justification.
	RelevanceReasoning string `json:"relevance_reasoning" yaml:"relevance_reasoning"`

	// StudyType names the study design (e.g. "randomized controlled trial").
	StudyType string `json:"study_type" yaml:"study_type"`

	// Population describes the studied population.
	Population string `json:"population" yaml:"population"`

	// Intervention describes the intervention or exposure.
	Intervention string `json:"intervention" yaml:"intervention"`

	// KeyFindings holds up to three findings in source order.
	KeyFindings []string `json:"key_findings" yaml:"key_findings"`

	// Limitations summarizes stated study limitations.
	Limitations string `json:"limitations" yaml:"limitations"`

	// ExtractionConfidence is 0.0 exactly when extraction failed and this
	// record is a fallback placeholder; otherwise it is the model's
	// self-reported confidence in (0, 1].
	ExtractionConfidence float64 `json:"extraction_confidence" yaml:"extraction_confidence"`

	// Year and Venue are copied from the source Document so the formatter
	// does not need the Document after extraction.
	Year  int    `json:"year" yaml:"year"`
	Venue string `json:"venue" yaml:"venue"`
}

// Failed reports whether this record is a fallback placeholder written
// after an extraction error.
func (e ExtractedEvidence) Failed() bool {
	return e.ExtractionConfidence == 0.0
}
