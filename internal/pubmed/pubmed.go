// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pubmed queries the NCBI E-utilities API and normalizes results
// into the pipeline's Document shape. Search is a two-step protocol:
// esearch resolves a query to a bounded PMID list, then efetch returns
// structured article records for those PMIDs.
package pubmed

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/pdiddy/evidence-engine/internal/httputil"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

// eutilsBase is the NCBI E-utilities endpoint. Declared as a var so tests
// can substitute an httptest server.
var eutilsBase = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

const (
	defaultTimeout = 30 * time.Second

	// NCBI allows 3 requests/second without an API key, 10 with one.
	keylessRateLimit = 3
	keyedRateLimit   = 10

	// maxAuthors is how many author names a Document carries before
	// collapsing the remainder into "et al.".
	maxAuthors = 3
)

// Client queries PubMed via the E-utilities API.
type Client struct {
	httpClient *http.Client
	apiKey     string
	userAgent  string
	limiter    *rate.Limiter
}

// Option configures the Client.
type Option func(*Client)

// WithAPIKey sets an NCBI API key and raises the default rate limit.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithRateLimit overrides the requests-per-second cap.
func WithRateLimit(requestsPerSecond int) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// NewClient creates a PubMed client from cfg plus options. Options win
// over cfg where both set the same knob.
func NewClient(cfg types.PubMedConfig, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		apiKey:     cfg.APIKey,
		userAgent:  cfg.UserAgent,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.limiter == nil {
		rps := cfg.RequestsPerSecond
		if rps <= 0 {
			rps = keylessRateLimit
			if c.apiKey != "" {
				rps = keyedRateLimit
			}
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), rps)
	}

	return c
}

// Search resolves the query to PMIDs, fetches their records, and returns
// them as Documents in PubMed's relevance order. Each document carries a
// rank-decay score that is ordinal within this source only.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]types.Document, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("empty PubMed query")
	}
	if maxResults <= 0 {
		maxResults = 10
	}

	pmids, err := c.searchIDs(ctx, query, maxResults)
	if err != nil {
		return nil, err
	}
	if len(pmids) == 0 {
		return nil, nil
	}

	return c.fetchRecords(ctx, pmids)
}

// esearch JSON structures.
type esearchResponse struct {
	Result esearchResult `json:"esearchresult"`
}

type esearchResult struct {
	IDList []string `json:"idlist"`
}

// searchIDs runs the esearch step and returns up to maxResults PMIDs.
func (c *Client) searchIDs(ctx context.Context, query string, maxResults int) ([]string, error) {
	params := url.Values{
		"db":      {"pubmed"},
		"term":    {query},
		"retmax":  {strconv.Itoa(maxResults)},
		"retmode": {"json"},
		"sort":    {"relevance"},
	}

	body, err := c.get(ctx, eutilsBase+"/esearch.fcgi", params)
	if err != nil {
		return nil, fmt.Errorf("PubMed search: %w", err)
	}
	defer body.Close()

	var er esearchResponse
	if err := json.NewDecoder(body).Decode(&er); err != nil {
		return nil, fmt.Errorf("parsing PubMed search response: %w", err)
	}
	return er.Result.IDList, nil
}

// fetchRecords runs the efetch step for a batch of PMIDs and parses the
// XML payload into Documents. Individual unparseable articles are
// skipped; ordering follows the input PMID order, which preserves
// PubMed's relevance ranking.
func (c *Client) fetchRecords(ctx context.Context, pmids []string) ([]types.Document, error) {
	params := url.Values{
		"db":      {"pubmed"},
		"id":      {strings.Join(pmids, ",")},
		"retmode": {"xml"},
	}

	body, err := c.get(ctx, eutilsBase+"/efetch.fcgi", params)
	if err != nil {
		return nil, fmt.Errorf("PubMed fetch: %w", err)
	}
	defer body.Close()

	var set pubmedArticleSet
	if err := xml.NewDecoder(body).Decode(&set); err != nil {
		return nil, fmt.Errorf("parsing PubMed fetch response: %w", err)
	}

	byID := make(map[string]pubmedArticle, len(set.Articles))
	for _, a := range set.Articles {
		byID[a.Citation.PMID] = a
	}

	total := len(pmids)
	var docs []types.Document
	for i, pmid := range pmids {
		article, ok := byID[pmid]
		if !ok {
			continue
		}
		doc := article.toDocument()
		if doc.ID == "" || doc.Title == "" {
			continue
		}

		// Position-based relevance score: PubMed returns PMIDs in
		// relevance order but no comparable numeric score.
		if total > 1 {
			doc.RelevanceScore = 1.0 - float64(i)/float64(total-1)*0.9
		} else {
			doc.RelevanceScore = 1.0
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// get issues a rate-limited GET with retry on 429/503.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values) (io.ReadCloser, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	if c.apiKey != "" {
		params.Set("api_key", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := httputil.DoWithRetry(ctx, c.httpClient, req, 0)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP %d from %s", resp.StatusCode, endpoint)
	}
	return resp.Body, nil
}
