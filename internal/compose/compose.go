// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package compose renders extracted evidence into a length-budgeted text
// block suitable for inclusion in a downstream prompt.
package compose

import (
	"fmt"
	"strings"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

const (
	defaultMaxLength = 8000
	emptyMessage     = "No relevant evidence found for this query."
	blockSeparator   = "\n\n"
)

// Format renders evidence into a FormattedContext. HIGH entries come
// first, then MEDIUM, then LOW when cfg.IncludeLow is set; NOT_RELEVANT
// is always dropped. Within a tier the incoming order is kept. The text
// never exceeds cfg.MaxLength: entries that do not fit are replaced by a
// single omission marker.
func Format(evidence []types.ExtractedEvidence, meta types.RetrievalMetadata, cfg types.FormatConfig) types.FormattedContext {
	maxLength := cfg.MaxLength
	if maxLength <= 0 {
		maxLength = defaultMaxLength
	}

	included := filterByTier(evidence, cfg.IncludeLow)
	if len(included) == 0 {
		return types.FormattedContext{
			Text:     clip(emptyMessage, maxLength),
			Metadata: meta,
		}
	}

	blocks := make([]string, len(included))
	for i, ev := range included {
		blocks[i] = renderEvidence(i+1, ev)
	}

	text, used := assemble(blocks, maxLength)
	return types.FormattedContext{
		Text:     text,
		Evidence: included[:used],
		Metadata: meta,
	}
}

// FormatRaw renders documents directly, without extraction. Used when the
// extraction stage is skipped; the same length budget applies.
func FormatRaw(docs []types.Document, meta types.RetrievalMetadata, cfg types.FormatConfig) types.FormattedContext {
	maxLength := cfg.MaxLength
	if maxLength <= 0 {
		maxLength = defaultMaxLength
	}

	if len(docs) == 0 {
		return types.FormattedContext{
			Text:     clip(emptyMessage, maxLength),
			Metadata: meta,
		}
	}

	blocks := make([]string, len(docs))
	for i, doc := range docs {
		blocks[i] = renderDocument(i+1, doc)
	}

	text, _ := assemble(blocks, maxLength)
	return types.FormattedContext{
		Text:     text,
		Metadata: meta,
	}
}

// filterByTier keeps HIGH then MEDIUM then optionally LOW, preserving the
// incoming order within each tier.
func filterByTier(evidence []types.ExtractedEvidence, includeLow bool) []types.ExtractedEvidence {
	var out []types.ExtractedEvidence
	tiers := []types.Relevance{types.RelevanceHigh, types.RelevanceMedium}
	if includeLow {
		tiers = append(tiers, types.RelevanceLow)
	}
	for _, tier := range tiers {
		for _, ev := range evidence {
			if ev.Relevance == tier {
				out = append(out, ev)
			}
		}
	}
	return out
}

// renderEvidence formats one numbered evidence entry. Empty fields are
// omitted so a thin extraction does not produce empty labels.
func renderEvidence(n int, ev types.ExtractedEvidence) string {
	var sb strings.Builder

	cite := citation(ev.Venue, ev.Year)
	if cite != "" {
		fmt.Fprintf(&sb, "[%d] Document %s %s\n", n, ev.DocumentID, cite)
	} else {
		fmt.Fprintf(&sb, "[%d] Document %s\n", n, ev.DocumentID)
	}

	fmt.Fprintf(&sb, "Relevance: %s", strings.ToUpper(string(ev.Relevance)))
	if ev.RelevanceReasoning != "" {
		fmt.Fprintf(&sb, " (%s)", ev.RelevanceReasoning)
	}
	sb.WriteString("\n")

	if ev.StudyType != "" {
		fmt.Fprintf(&sb, "Study type: %s\n", ev.StudyType)
	}
	if ev.Population != "" {
		fmt.Fprintf(&sb, "Population: %s\n", ev.Population)
	}
	if ev.Intervention != "" {
		fmt.Fprintf(&sb, "Intervention: %s\n", ev.Intervention)
	}
	if len(ev.KeyFindings) > 0 {
		sb.WriteString("Key findings:\n")
		for _, finding := range ev.KeyFindings {
			fmt.Fprintf(&sb, "- %s\n", finding)
		}
	}
	if ev.Limitations != "" {
		fmt.Fprintf(&sb, "Limitations: %s\n", ev.Limitations)
	}

	return strings.TrimRight(sb.String(), "\n")
}

// renderDocument formats one numbered raw document entry.
func renderDocument(n int, doc types.Document) string {
	var sb strings.Builder

	title := doc.Title
	if title == "" {
		title = "Document " + doc.ID
	}
	cite := citation(doc.Venue, doc.Year)
	if cite != "" {
		fmt.Fprintf(&sb, "[%d] %s %s\n", n, title, cite)
	} else {
		fmt.Fprintf(&sb, "[%d] %s\n", n, title)
	}

	if len(doc.Authors) > 0 {
		fmt.Fprintf(&sb, "%s\n", strings.Join(doc.Authors, ", "))
	}
	if doc.Abstract != "" {
		fmt.Fprintf(&sb, "%s\n", doc.Abstract)
	}

	return strings.TrimRight(sb.String(), "\n")
}

// citation renders "(Venue, Year)" with whichever parts are known.
func citation(venue string, year int) string {
	switch {
	case venue != "" && year > 0:
		return fmt.Sprintf("(%s, %d)", venue, year)
	case venue != "":
		return fmt.Sprintf("(%s)", venue)
	case year > 0:
		return fmt.Sprintf("(%d)", year)
	default:
		return ""
	}
}

// assemble joins as many blocks as fit the budget, appending an omission
// marker when any were dropped. Returns the text and the number of blocks
// included.
func assemble(blocks []string, maxLength int) (string, int) {
	render := func(n int) string {
		parts := make([]string, 0, n+1)
		parts = append(parts, blocks[:n]...)
		if n < len(blocks) {
			parts = append(parts, omissionMarker(len(blocks)-n))
		}
		return strings.Join(parts, blockSeparator)
	}

	for n := len(blocks); n >= 0; n-- {
		if text := render(n); len(text) <= maxLength {
			return text, n
		}
	}
	// Even the bare marker overflows; budgets this small get a hard clip.
	return clip(render(0), maxLength), 0
}

func omissionMarker(omitted int) string {
	if omitted == 1 {
		return "[1 more evidence entry omitted to fit the length budget]"
	}
	return fmt.Sprintf("[%d more evidence entries omitted to fit the length budget]", omitted)
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
