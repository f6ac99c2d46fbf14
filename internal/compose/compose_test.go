// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package compose

import (
	"strings"
	"testing"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

func ev(id string, rel types.Relevance, findings ...string) types.ExtractedEvidence {
	return types.ExtractedEvidence{
		DocumentID:           id,
		Relevance:            rel,
		RelevanceReasoning:   "reasoning for " + id,
		StudyType:            "cohort study",
		KeyFindings:          findings,
		ExtractionConfidence: 0.8,
		Year:                 2021,
		Venue:                "BMJ",
	}
}

func TestFormatRendersEntries(t *testing.T) {
	evidence := []types.ExtractedEvidence{
		ev("11111", types.RelevanceHigh, "finding one", "finding two"),
	}

	out := Format(evidence, types.RetrievalMetadata{}, types.FormatConfig{})
	for _, want := range []string{
		"[1] Document 11111 (BMJ, 2021)",
		"Relevance: HIGH (reasoning for 11111)",
		"Study type: cohort study",
		"- finding one",
		"- finding two",
	} {
		if !strings.Contains(out.Text, want) {
			t.Errorf("output missing %q:\n%s", want, out.Text)
		}
	}
	if len(out.Evidence) != 1 {
		t.Errorf("len(Evidence) = %d", len(out.Evidence))
	}
}

func TestFormatTierOrderAndFilter(t *testing.T) {
	evidence := []types.ExtractedEvidence{
		ev("low", types.RelevanceLow),
		ev("med", types.RelevanceMedium),
		ev("high", types.RelevanceHigh),
		ev("nr", types.RelevanceNotRelevant),
	}

	out := Format(evidence, types.RetrievalMetadata{}, types.FormatConfig{})
	if len(out.Evidence) != 2 {
		t.Fatalf("len(Evidence) = %d, want HIGH and MEDIUM only", len(out.Evidence))
	}
	if out.Evidence[0].DocumentID != "high" || out.Evidence[1].DocumentID != "med" {
		t.Errorf("order = %s, %s", out.Evidence[0].DocumentID, out.Evidence[1].DocumentID)
	}
	if strings.Contains(out.Text, "Document nr") {
		t.Error("NOT_RELEVANT entry rendered")
	}
	if strings.Contains(out.Text, "Document low") {
		t.Error("LOW entry rendered without IncludeLow")
	}

	withLow := Format(evidence, types.RetrievalMetadata{}, types.FormatConfig{IncludeLow: true})
	if len(withLow.Evidence) != 3 {
		t.Fatalf("len(Evidence) = %d with IncludeLow", len(withLow.Evidence))
	}
	if withLow.Evidence[2].DocumentID != "low" {
		t.Errorf("LOW entry not last: %s", withLow.Evidence[2].DocumentID)
	}
}

func TestFormatEmptyEvidence(t *testing.T) {
	out := Format(nil, types.RetrievalMetadata{LocalResultCount: 2}, types.FormatConfig{})
	if !strings.Contains(out.Text, "No relevant evidence found") {
		t.Errorf("Text = %q", out.Text)
	}
	if out.Metadata.LocalResultCount != 2 {
		t.Error("metadata not carried through")
	}

	// All entries filtered out counts as empty too.
	onlyNR := []types.ExtractedEvidence{ev("nr", types.RelevanceNotRelevant)}
	out = Format(onlyNR, types.RetrievalMetadata{}, types.FormatConfig{})
	if !strings.Contains(out.Text, "No relevant evidence found") {
		t.Errorf("Text = %q", out.Text)
	}
}

func TestFormatBudgetOmitsEntries(t *testing.T) {
	long := strings.Repeat("x", 400)
	evidence := []types.ExtractedEvidence{
		ev("1", types.RelevanceHigh, long),
		ev("2", types.RelevanceHigh, long),
		ev("3", types.RelevanceHigh, long),
	}

	out := Format(evidence, types.RetrievalMetadata{}, types.FormatConfig{MaxLength: 600})
	if len(out.Text) > 600 {
		t.Fatalf("len(Text) = %d, budget exceeded", len(out.Text))
	}
	if len(out.Evidence) != 1 {
		t.Errorf("len(Evidence) = %d, want 1 within budget", len(out.Evidence))
	}
	if !strings.Contains(out.Text, "2 more evidence entries omitted") {
		t.Errorf("omission marker missing:\n%s", out.Text)
	}
}

func TestFormatBudgetTooSmallForAnyEntry(t *testing.T) {
	long := strings.Repeat("x", 400)
	evidence := []types.ExtractedEvidence{ev("1", types.RelevanceHigh, long)}

	out := Format(evidence, types.RetrievalMetadata{}, types.FormatConfig{MaxLength: 120})
	if len(out.Text) > 120 {
		t.Fatalf("len(Text) = %d, budget exceeded", len(out.Text))
	}
	if len(out.Evidence) != 0 {
		t.Errorf("len(Evidence) = %d, want 0", len(out.Evidence))
	}
	if !strings.Contains(out.Text, "omitted") {
		t.Errorf("omission marker missing: %q", out.Text)
	}
}

func TestFormatExactFitKeepsAllEntries(t *testing.T) {
	evidence := []types.ExtractedEvidence{
		ev("1", types.RelevanceHigh, "a"),
		ev("2", types.RelevanceMedium, "b"),
	}

	generous := Format(evidence, types.RetrievalMetadata{}, types.FormatConfig{MaxLength: 8000})
	if strings.Contains(generous.Text, "omitted") {
		t.Errorf("marker present with room to spare:\n%s", generous.Text)
	}
	if len(generous.Evidence) != 2 {
		t.Errorf("len(Evidence) = %d", len(generous.Evidence))
	}

	// A budget of exactly the rendered length keeps everything.
	exact := Format(evidence, types.RetrievalMetadata{}, types.FormatConfig{MaxLength: len(generous.Text)})
	if exact.Text != generous.Text {
		t.Errorf("exact-fit budget changed the output")
	}
}

func TestFormatRawRendersDocuments(t *testing.T) {
	docs := []types.Document{
		{
			ID: "11111", Title: "Metformin outcomes", Abstract: "A trial of metformin.",
			Authors: []string{"Meyer Anna", "et al."}, Year: 2022, Venue: "Lancet",
		},
		{ID: "22222", Abstract: "Untitled record."},
	}

	out := FormatRaw(docs, types.RetrievalMetadata{}, types.FormatConfig{})
	for _, want := range []string{
		"[1] Metformin outcomes (Lancet, 2022)",
		"Meyer Anna, et al.",
		"A trial of metformin.",
		"[2] Document 22222",
	} {
		if !strings.Contains(out.Text, want) {
			t.Errorf("output missing %q:\n%s", want, out.Text)
		}
	}
	if len(out.Evidence) != 0 {
		t.Error("raw rendering must not fabricate evidence records")
	}
}

func TestFormatRawEmpty(t *testing.T) {
	out := FormatRaw(nil, types.RetrievalMetadata{}, types.FormatConfig{})
	if !strings.Contains(out.Text, "No relevant evidence found") {
		t.Errorf("Text = %q", out.Text)
	}
}
