// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pubmed

import (
	"strconv"
	"strings"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

// PubMed efetch XML structures. Only the fields the pipeline consumes are
// mapped; everything else in the payload is ignored by the decoder.
type pubmedArticleSet struct {
	Articles []pubmedArticle `xml:"PubmedArticle"`
}

type pubmedArticle struct {
	Citation medlineCitation `xml:"MedlineCitation"`
}

type medlineCitation struct {
	PMID    string       `xml:"PMID"`
	Article pubmedRecord `xml:"Article"`
}

type pubmedRecord struct {
	Title    string         `xml:"ArticleTitle"`
	Abstract pubmedAbstract `xml:"Abstract"`
	Authors  []pubmedAuthor `xml:"AuthorList>Author"`
	Journal  pubmedJournal  `xml:"Journal"`
}

type pubmedAbstract struct {
	Sections []abstractSection `xml:"AbstractText"`
}

// abstractSection is one AbstractText block. Structured abstracts split
// the text into labeled sections (BACKGROUND, METHODS, RESULTS, ...).
type abstractSection struct {
	Label string `xml:"Label,attr"`
	Text  string `xml:",chardata"`
}

type pubmedAuthor struct {
	LastName string `xml:"LastName"`
	ForeName string `xml:"ForeName"`
	Initials string `xml:"Initials"`
	// CollectiveName covers group authorship (e.g. trial consortia).
	CollectiveName string `xml:"CollectiveName"`
}

type pubmedJournal struct {
	Title   string        `xml:"Title"`
	PubDate pubmedPubDate `xml:"JournalIssue>PubDate"`
}

type pubmedPubDate struct {
	Year string `xml:"Year"`
	// MedlineDate appears instead of Year for irregular issues
	// (e.g. "2019 Nov-Dec").
	MedlineDate string `xml:"MedlineDate"`
}

// toDocument converts a parsed article into the pipeline's Document shape.
func (a pubmedArticle) toDocument() types.Document {
	rec := a.Citation.Article
	return types.Document{
		ID:       strings.TrimSpace(a.Citation.PMID),
		Title:    strings.TrimSpace(rec.Title),
		Abstract: rec.Abstract.text(),
		Source:   types.SourceExternalSearch,
		Year:     rec.Journal.PubDate.year(),
		Authors:  formatAuthors(rec.Authors),
		Venue:    strings.TrimSpace(rec.Journal.Title),
	}
}

// text joins abstract sections, prefixing labeled sections with their
// label so structure survives flattening.
func (ab pubmedAbstract) text() string {
	var parts []string
	for _, sec := range ab.Sections {
		t := strings.TrimSpace(sec.Text)
		if t == "" {
			continue
		}
		if sec.Label != "" {
			t = sec.Label + ": " + t
		}
		parts = append(parts, t)
	}
	return strings.Join(parts, "\n")
}

// year extracts a publication year, falling back to the leading year of a
// MedlineDate range. Returns 0 when neither parses.
func (d pubmedPubDate) year() int {
	if y, err := strconv.Atoi(strings.TrimSpace(d.Year)); err == nil {
		return y
	}
	fields := strings.Fields(d.MedlineDate)
	if len(fields) > 0 {
		if y, err := strconv.Atoi(fields[0]); err == nil {
			return y
		}
	}
	return 0
}

// formatAuthors renders up to maxAuthors names, collapsing the remainder
// into "et al.".
func formatAuthors(authors []pubmedAuthor) []string {
	var names []string
	for _, a := range authors {
		name := a.displayName()
		if name == "" {
			continue
		}
		if len(names) == maxAuthors {
			names = append(names, "et al.")
			break
		}
		names = append(names, name)
	}
	return names
}

func (a pubmedAuthor) displayName() string {
	if a.CollectiveName != "" {
		return strings.TrimSpace(a.CollectiveName)
	}
	last := strings.TrimSpace(a.LastName)
	if last == "" {
		return ""
	}
	given := strings.TrimSpace(a.ForeName)
	if given == "" {
		given = strings.TrimSpace(a.Initials)
	}
	if given == "" {
		return last
	}
	return last + " " + given
}
