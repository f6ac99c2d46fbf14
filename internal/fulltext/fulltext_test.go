// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fulltext

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

const articleXML = `<?xml version="1.0"?>
<pmc-articleset>
  <article>
    <front><article-meta><title-group><article-title>Title</article-title></title-group></article-meta></front>
    <body>
      <sec>
        <title>Methods</title>
        <p>We enrolled 400 participants.</p>
        <p>Follow-up lasted <italic>two</italic> years.</p>
      </sec>
    </body>
  </article>
</pmc-articleset>`

// newServers wires idconv and efetch test servers into the package vars.
func newServers(t *testing.T, pmcid string, article string) {
	t.Helper()

	conv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if pmcid == "" {
			fmt.Fprintf(w, `{"records":[{"pmid":%q,"status":"error"}]}`, r.URL.Query().Get("ids"))
			return
		}
		fmt.Fprintf(w, `{"records":[{"pmid":%q,"pmcid":%q}]}`, r.URL.Query().Get("ids"), pmcid)
	}))
	fetch := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, article)
	}))

	oldConv, oldFetch := idconvBase, pmcFetchBase
	idconvBase = conv.URL + "/"
	pmcFetchBase = fetch.URL
	t.Cleanup(func() {
		idconvBase, pmcFetchBase = oldConv, oldFetch
		conv.Close()
		fetch.Close()
	})
}

func TestFetch(t *testing.T) {
	newServers(t, "PMC777", articleXML)

	f := NewFetcher(types.FullTextConfig{})
	text, err := f.Fetch(context.Background(), "11111")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !strings.Contains(text, "We enrolled 400 participants.") {
		t.Errorf("body paragraph missing: %q", text)
	}
	if !strings.Contains(text, "Follow-up lasted two years.") {
		t.Errorf("inline markup not flattened: %q", text)
	}
}

func TestFetchNoPMCID(t *testing.T) {
	newServers(t, "", articleXML)

	f := NewFetcher(types.FullTextConfig{})
	text, err := f.Fetch(context.Background(), "11111")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if text != "" {
		t.Errorf("text = %q, want empty for missing PMCID", text)
	}
}

func TestFetchNoBody(t *testing.T) {
	// Publisher-withheld article: metadata only, no <body>.
	newServers(t, "PMC777", `<pmc-articleset><article><front/></article></pmc-articleset>`)

	f := NewFetcher(types.FullTextConfig{})
	text, err := f.Fetch(context.Background(), "11111")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if text != "" {
		t.Errorf("text = %q, want empty for bodiless article", text)
	}
}

func TestFetchCapsLength(t *testing.T) {
	long := `<pmc-articleset><article><body><p>` + strings.Repeat("evidence ", 200) + `</p></body></article></pmc-articleset>`
	newServers(t, "PMC777", long)

	f := NewFetcher(types.FullTextConfig{MaxChars: 100})
	text, err := f.Fetch(context.Background(), "11111")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(text) != 100 {
		t.Errorf("len(text) = %d, want capped at 100", len(text))
	}
}

func TestFetchCapTrimsToRuneBoundary(t *testing.T) {
	// Three-byte characters with a cap that lands mid-rune.
	long := `<pmc-articleset><article><body><p>` + strings.Repeat("心血管転帰", 100) + `</p></body></article></pmc-articleset>`
	newServers(t, "PMC777", long)

	f := NewFetcher(types.FullTextConfig{MaxChars: 100})
	text, err := f.Fetch(context.Background(), "11111")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(text) > 100 {
		t.Errorf("len(text) = %d, want <= 100", len(text))
	}
	if !utf8.ValidString(text) {
		t.Errorf("capped text contains a split rune: %q", text)
	}
}

func TestFetchNetworkError(t *testing.T) {
	conv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	old := idconvBase
	idconvBase = conv.URL + "/"
	t.Cleanup(func() {
		idconvBase = old
		conv.Close()
	})

	f := NewFetcher(types.FullTextConfig{})
	if _, err := f.Fetch(context.Background(), "11111"); err == nil {
		t.Fatal("expected error on HTTP 502")
	}
}
