// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/fulltext-engine/internal/batch"
	"github.com/pdiddy/fulltext-engine/internal/httputil"
	"github.com/pdiddy/fulltext-engine/pkg/types"
)

func init() {
	httputil.RetryBaseDelay = 1 * time.Millisecond
}

func newPMC(timeout time.Duration) *PMC {
	return NewPMC(types.PMCConfig{
		HTTPConfig: types.HTTPConfig{Timeout: timeout, UserAgent: "fulltext-engine/test"},
	})
}

func failureReasons(fails []batch.Failure) map[string]string {
	out := make(map[string]string, len(fails))
	for _, f := range fails {
		out[f.Item] = f.Reason
	}
	return out
}

const idconvJSON = `{
  "status": "ok",
  "records": [
    {"doi": "10.1/aaa", "pmcid": "PMC111", "pmid": "1"},
    {"doi": "10.1/bbb", "pmid": "2"},
    {"doi": "10.1/CCC", "pmcid": "PMC333"}
  ]
}`

func TestPMCResolveBatch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Contains(t, r.URL.Query().Get("ids"), "10.1/aaa")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, idconvJSON)
	}))
	defer ts.Close()
	origIdconv := idconvBase
	idconvBase = ts.URL + "/"
	defer func() { idconvBase = origIdconv }()

	p := newPMC(5 * time.Second)
	resolved, fails := p.ResolveBatch(context.Background(), []string{"10.1/aaa", "10.1/bbb", "10.1/ccc", "10.1/ddd"})

	assert.Equal(t, map[string]string{
		"10.1/aaa": "PMC111",
		"10.1/ccc": "PMC333", // matched case-insensitively through normalization
	}, resolved)

	reasons := failureReasons(fails)
	require.Len(t, reasons, 2)
	assert.Equal(t, "no canonical id", reasons["10.1/bbb"], "record without pmcid")
	assert.Equal(t, "no canonical id", reasons["10.1/ddd"], "identifier absent from response")
}

func TestPMCResolveBatchFallsBackToEuropePMC(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/idconv/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden) // non-retryable bulk failure
	})
	mux.HandleFunc("/europepmc/search", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("query") == "doi:10.1/aaa" {
			fmt.Fprint(w, `{"resultList":{"result":[{"pmcid":"PMC777"}]}}`)
			return
		}
		fmt.Fprint(w, `{"resultList":{"result":[]}}`)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	origIdconv, origSearch := idconvBase, europePMCSearchBase
	idconvBase = ts.URL + "/idconv/"
	europePMCSearchBase = ts.URL + "/europepmc/search"
	defer func() { idconvBase, europePMCSearchBase = origIdconv, origSearch }()

	p := newPMC(5 * time.Second)
	resolved, fails := p.ResolveBatch(context.Background(), []string{"10.1/aaa", "10.1/zzz"})

	assert.Equal(t, map[string]string{"10.1/aaa": "PMC777"}, resolved)
	reasons := failureReasons(fails)
	require.Contains(t, reasons, "10.1/zzz")
	assert.Contains(t, reasons["10.1/zzz"], "idconv")
	assert.Contains(t, reasons["10.1/zzz"], "HTTP 403")
}

const efetchArticleSetXML = `<?xml version="1.0"?>
<pmc-articleset>
  <article>
    <front>
      <article-meta>
        <article-id pub-id-type="pmc">111</article-id>
      </article-meta>
      <title-group><article-title>First Article</article-title></title-group>
    </front>
    <body><sec><title>Intro</title><p>Some prose about things.</p></sec></body>
  </article>
  <article>
    <front>
      <article-meta>
        <article-id pub-id-type="pmc">PMC333</article-id>
      </article-meta>
      <title-group><article-title>Hollow Article</article-title></title-group>
    </front>
    <body><sec><title>Figures</title><fig><caption><p>figure only</p></caption></fig></sec></body>
  </article>
</pmc-articleset>`

func TestPMCFetchBatch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "pmc", r.URL.Query().Get("db"))
		assert.Equal(t, "111,333,555", r.URL.Query().Get("id"))
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprint(w, efetchArticleSetXML)
	}))
	defer ts.Close()
	origEfetch := efetchBase
	efetchBase = ts.URL + "/"
	defer func() { efetchBase = origEfetch }()

	p := newPMC(5 * time.Second)
	fetched, fails := p.FetchBatch(context.Background(), []string{"PMC111", "PMC333", "PMC555"})

	require.Contains(t, fetched, "PMC111")
	assert.Equal(t, "First Article", fetched["PMC111"].Title)
	assert.NotZero(t, fetched["PMC111"].BodyLen())

	reasons := failureReasons(fails)
	assert.Equal(t, "no sections or usable text", reasons["PMC333"], "denylist-only body is a fetch failure")
	assert.Equal(t, "not found in batch response", reasons["PMC555"])
}

func TestPMCFetchBatchBulkError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer ts.Close()
	origEfetch := efetchBase
	efetchBase = ts.URL + "/"
	defer func() { efetchBase = origEfetch }()

	p := newPMC(5 * time.Second)
	fetched, fails := p.FetchBatch(context.Background(), []string{"PMC1", "PMC2"})

	assert.Empty(t, fetched)
	require.Len(t, fails, 2)
	for _, f := range fails {
		assert.Contains(t, f.Reason, "efetch")
		assert.Contains(t, f.Reason, "HTTP 403")
	}
}

const europePMCFullTextXML = `<article>
  <front><title-group><article-title>Rescued</article-title></title-group></front>
  <body><sec><title>Only</title><p>Recovered through the fallback tier.</p></sec></body>
</article>`

func TestPMCFetchSingleFallsThroughTiers(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/efetch", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/europepmc/PMC42/fullTextXML", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, europePMCFullTextXML)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	origEfetch, origArticle := efetchBase, europePMCArticleBase
	efetchBase = ts.URL + "/efetch"
	europePMCArticleBase = ts.URL + "/europepmc/"
	defer func() { efetchBase, europePMCArticleBase = origEfetch, origArticle }()

	p := newPMC(5 * time.Second)
	doc, err := p.FetchSingle(context.Background(), "PMC42")
	require.NoError(t, err)
	assert.Equal(t, "Rescued", doc.Title)
}

func TestPMCFetchSingleAllTiersFail(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	origEfetch, origArticle := efetchBase, europePMCArticleBase
	efetchBase = ts.URL + "/efetch"
	europePMCArticleBase = ts.URL + "/"
	defer func() { efetchBase, europePMCArticleBase = origEfetch, origArticle }()

	p := newPMC(5 * time.Second)
	_, err := p.FetchSingle(context.Background(), "PMC42")
	assert.Error(t, err)
}

func TestDigitsOf(t *testing.T) {
	assert.Equal(t, "12345", digitsOf("PMC12345"))
	assert.Equal(t, "12345", digitsOf("pmc12345"))
	assert.Equal(t, "12345", digitsOf("12345"))
	assert.Equal(t, "", digitsOf("no-digits"))
}
