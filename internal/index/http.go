// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package index

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

// defaultIndexTimeout bounds local index lookups. The index is expected
// to answer in well under a second; a slow index must not stall the
// pipeline's fast path.
const defaultIndexTimeout = 2 * time.Second

// HTTPIndex is a thin adapter over an index service's /search endpoint.
type HTTPIndex struct {
	baseURL string
	client  *http.Client
}

// NewHTTPIndex creates an adapter for the index service at cfg.BaseURL.
func NewHTTPIndex(cfg types.IndexConfig) *HTTPIndex {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultIndexTimeout
	}
	return &HTTPIndex{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// indexHit is one scored chunk from the index service.
type indexHit struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Abstract string   `json:"abstract"`
	Score    float64  `json:"score"`
	Year     int      `json:"year"`
	Authors  []string `json:"authors"`
	Venue    string   `json:"venue"`
}

type indexResponse struct {
	Results []indexHit `json:"results"`
}

// Search queries the index service and converts hits into Documents.
func (h *HTTPIndex) Search(ctx context.Context, query string, k int, minScore float64) ([]types.Document, error) {
	if h.baseURL == "" {
		return nil, fmt.Errorf("index service base URL not configured")
	}

	params := url.Values{
		"q":         {query},
		"k":         {strconv.Itoa(k)},
		"min_score": {strconv.FormatFloat(minScore, 'f', -1, 64)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("index service request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("index service returned HTTP %d", resp.StatusCode)
	}

	var ir indexResponse
	if err := json.NewDecoder(resp.Body).Decode(&ir); err != nil {
		return nil, fmt.Errorf("parsing index response: %w", err)
	}

	var docs []types.Document
	for _, hit := range ir.Results {
		if hit.ID == "" || hit.Score < minScore {
			continue
		}
		docs = append(docs, types.Document{
			ID:             hit.ID,
			Title:          hit.Title,
			Abstract:       hit.Abstract,
			Source:         types.SourceLocalIndex,
			RelevanceScore: hit.Score,
			Year:           hit.Year,
			Authors:        hit.Authors,
			Venue:          hit.Venue,
		})
		if len(docs) >= k {
			break
		}
	}
	return docs, nil
}
