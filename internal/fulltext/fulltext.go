// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fulltext resolves open-access article bodies from PubMed
// Central. Resolution is two-hop: convert the PMID to a PMCID, then
// fetch the article body from PMC. Most articles have no open-access
// full text; an absent body is an expected outcome, not an error.
package fulltext

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pdiddy/evidence-engine/internal/httputil"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

// Base URLs for the two hops. Declared as vars so tests can substitute
// httptest servers.
var (
	idconvBase   = "https://www.ncbi.nlm.nih.gov/pmc/utils/idconv/v1.0/"
	pmcFetchBase = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/efetch.fcgi"
)

const (
	defaultTimeout = 30 * time.Second

	// defaultMaxChars caps retrieved body text to bound extraction cost.
	defaultMaxChars = 15000
)

// Fetcher retrieves open-access full text for PubMed documents.
type Fetcher struct {
	client    *http.Client
	userAgent string
	maxChars  int
}

// NewFetcher creates a Fetcher from cfg.
func NewFetcher(cfg types.FullTextConfig) *Fetcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	maxChars := cfg.MaxChars
	if maxChars <= 0 {
		maxChars = defaultMaxChars
	}
	return &Fetcher{
		client:    &http.Client{Timeout: timeout},
		userAgent: cfg.UserAgent,
		maxChars:  maxChars,
	}
}

// Fetch returns the article body for pmid, capped at the configured
// length. It returns ("", nil) when no open-access record exists and an
// error only for network or protocol failures.
func (f *Fetcher) Fetch(ctx context.Context, pmid string) (string, error) {
	pmcid, err := f.resolvePMCID(ctx, pmid)
	if err != nil {
		return "", err
	}
	if pmcid == "" {
		return "", nil
	}

	text, err := f.fetchBody(ctx, pmcid)
	if err != nil {
		return "", err
	}
	if len(text) > f.maxChars {
		cut := f.maxChars
		// Back off to a rune boundary so the cap never splits a
		// multi-byte character.
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}
	return text, nil
}

// idconv JSON structures.
type idconvResponse struct {
	Records []idconvRecord `json:"records"`
}

type idconvRecord struct {
	PMID   string `json:"pmid"`
	PMCID  string `json:"pmcid"`
	Status string `json:"status"`
}

// resolvePMCID converts a PMID to a PMCID. An unknown PMID yields "".
func (f *Fetcher) resolvePMCID(ctx context.Context, pmid string) (string, error) {
	params := url.Values{
		"ids":    {pmid},
		"format": {"json"},
	}

	body, err := f.get(ctx, idconvBase+"?"+params.Encode())
	if err != nil {
		return "", fmt.Errorf("PMCID lookup for %s: %w", pmid, err)
	}
	defer body.Close()

	var ir idconvResponse
	if err := json.NewDecoder(body).Decode(&ir); err != nil {
		return "", fmt.Errorf("parsing PMCID lookup response: %w", err)
	}

	for _, rec := range ir.Records {
		if rec.Status == "error" {
			continue
		}
		if rec.PMCID != "" {
			return rec.PMCID, nil
		}
	}
	return "", nil
}

// fetchBody pulls the PMC article XML and flattens its body paragraphs.
func (f *Fetcher) fetchBody(ctx context.Context, pmcid string) (string, error) {
	params := url.Values{
		"db":      {"pmc"},
		"id":      {strings.TrimPrefix(pmcid, "PMC")},
		"retmode": {"xml"},
	}

	body, err := f.get(ctx, pmcFetchBase+"?"+params.Encode())
	if err != nil {
		return "", fmt.Errorf("PMC fetch for %s: %w", pmcid, err)
	}
	defer body.Close()

	text, err := flattenBody(body)
	if err != nil {
		return "", fmt.Errorf("parsing PMC article %s: %w", pmcid, err)
	}
	return text, nil
}

// flattenBody streams the article XML and joins the character data of
// every paragraph inside <body>. Publisher-withheld articles have no
// <body> element and flatten to "".
func flattenBody(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)

	var (
		parts   []string
		inBody  bool
		inPara  int
		current strings.Builder
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "body":
				inBody = true
			case "p":
				if inBody {
					inPara++
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "body":
				inBody = false
			case "p":
				if inBody && inPara > 0 {
					inPara--
					if inPara == 0 {
						if p := strings.TrimSpace(current.String()); p != "" {
							parts = append(parts, p)
						}
						current.Reset()
					}
				}
			}
		case xml.CharData:
			if inBody && inPara > 0 {
				current.Write(t)
			}
		}
	}

	return strings.Join(parts, "\n\n"), nil
}

// get issues a GET with retry on 429/503 and returns the response body.
func (f *Fetcher) get(ctx context.Context, reqURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := httputil.DoWithRetry(ctx, f.client, req, 0)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return resp.Body, nil
}
