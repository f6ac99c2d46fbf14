// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package retrieval

import (
	"strconv"
	"strings"
	"time"
	"unicode"
)

// RecencyPolicy decides whether a query asks for current literature, in
// which case the orchestrator consults external search even when local
// coverage is sufficient. The default is a keyword heuristic; callers
// with a better signal (e.g. a classifier) can inject their own policy.
type RecencyPolicy interface {
	NeedsCurrent(query string) bool
}

// defaultRecencyKeywords flag queries that imply the local corpus may be
// stale. The list is a heuristic default, overridable through
// RetrievalConfig.RecencyKeywords.
var defaultRecencyKeywords = []string{
	"recent", "latest", "current", "guideline", "update", "emerging", "novel",
}

// nowYear is split out so tests can pin the clock.
var nowYear = func() int { return time.Now().Year() }

// KeywordRecencyPolicy matches recency keywords and near-present years.
type KeywordRecencyPolicy struct {
	keywords []string
}

// NewKeywordRecencyPolicy builds the default policy. An empty keyword
// list selects the built-in defaults.
func NewKeywordRecencyPolicy(keywords []string) *KeywordRecencyPolicy {
	if len(keywords) == 0 {
		keywords = defaultRecencyKeywords
	}
	lowered := make([]string, len(keywords))
	for i, kw := range keywords {
		lowered[i] = strings.ToLower(kw)
	}
	return &KeywordRecencyPolicy{keywords: lowered}
}

// NeedsCurrent reports whether the query contains a recency keyword or an
// explicit year within two years of the present.
func (p *KeywordRecencyPolicy) NeedsCurrent(query string) bool {
	lowered := strings.ToLower(query)
	words := strings.FieldsFunc(lowered, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	for _, w := range words {
		for _, kw := range p.keywords {
			if w == kw {
				return true
			}
		}
		if len(w) == 4 {
			if year, err := strconv.Atoi(w); err == nil && nearPresent(year) {
				return true
			}
		}
	}
	return false
}

func nearPresent(year int) bool {
	now := nowYear()
	return year >= now-2 && year <= now+1
}
