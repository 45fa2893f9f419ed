// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/fulltext-engine/internal/batch"
	"github.com/pdiddy/fulltext-engine/internal/doiutil"
	"github.com/pdiddy/fulltext-engine/internal/httputil"
	"github.com/pdiddy/fulltext-engine/internal/jats"
	"github.com/pdiddy/fulltext-engine/internal/ratelimit"
	"github.com/pdiddy/fulltext-engine/pkg/types"
)

// springerBase is the Springer Nature OpenAccess JATS endpoint. Declared as
// a var so tests can substitute an httptest server.
var springerBase = "https://api.springernature.com/openaccess/jats"

const defaultSpringerRPM = 90

// articlePattern is the last-ditch scan for an escaped <article> payload
// buried in record text.
var articlePattern = regexp.MustCompile(`(?is)<article\b[\s\S]*?</article>`)

// Springer acquires open-access full text from the Springer Nature API.
// The API is queried by DOI, so resolution is the identity: the DOI is its
// own canonical ID. Springer quotes rate limits per minute; a sliding-window
// limiter enforces them client-side on top of Retry-After handling.
type Springer struct {
	client  *http.Client
	cfg     types.SpringerConfig
	limiter *ratelimit.Window
}

// NewSpringer builds the adapter. A missing API key is a configuration
// failure surfaced immediately, not deferred into per-item failures.
func NewSpringer(cfg types.SpringerConfig) (*Springer, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("springer: API key not set")
	}
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = defaultSpringerRPM
	}
	return &Springer{
		client:  &http.Client{Timeout: cfg.Timeout},
		cfg:     cfg,
		limiter: ratelimit.NewWindow(rpm, time.Minute),
	}, nil
}

// Name implements Source.
func (s *Springer) Name() string { return "springer" }

// ResolveBatch maps every DOI to itself: Springer fetches by DOI directly,
// so no registry round-trip is needed.
func (s *Springer) ResolveBatch(_ context.Context, dois []string) (map[string]string, []batch.Failure) {
	resolved := make(map[string]string, len(dois))
	for _, d := range dois {
		resolved[d] = d
	}
	return resolved, nil
}

// FetchBatch retrieves JATS records for a batch of DOIs with one OR-joined
// query. Records are matched back to requested DOIs by their article-id;
// when a single-DOI query returns no DOI-tagged record, the first parseable
// article is accepted leniently.
func (s *Springer) FetchBatch(ctx context.Context, dois []string) (map[string]*jats.Document, []batch.Failure) {
	fetched := make(map[string]*jats.Document)
	var failures []batch.Failure
	if len(dois) == 0 {
		return fetched, failures
	}

	articles, err := s.query(ctx, dois)
	if err != nil {
		for _, d := range dois {
			failures = append(failures, batch.Failure{Item: d, Reason: fmt.Sprintf("springer: %v", err)})
		}
		return fetched, failures
	}

	claimed := make(map[int]bool, len(articles))
	byDOI := make(map[string]int, len(articles))
	for i, a := range articles {
		if a.doi != "" {
			byDOI[a.doi] = i
		}
	}

	pending := make([]string, 0, len(dois))
	for _, d := range dois {
		i, ok := byDOI[doiutil.Normalize(d)]
		if !ok || claimed[i] {
			pending = append(pending, d)
			continue
		}
		claimed[i] = true
		s.claim(d, articles[i].node, fetched, &failures)
	}

	// Lenient fallback: a single-DOI query whose record carries no usable
	// article-id still yields its first article.
	if len(dois) == 1 && len(pending) == 1 && len(articles) > 0 && !claimed[0] {
		s.claim(pending[0], articles[0].node, fetched, &failures)
		return fetched, failures
	}

	for _, d := range pending {
		failures = append(failures, batch.Failure{Item: d, Reason: reasonNotInBatch})
	}
	return fetched, failures
}

// claim normalizes one matched article and files it as a success or a
// no-content failure.
func (s *Springer) claim(doi string, article *jats.Node, fetched map[string]*jats.Document, failures *[]batch.Failure) {
	doc := jats.NormalizeArticle(article)
	if !doc.HasContent() {
		*failures = append(*failures, batch.Failure{Item: doi, Reason: reasonNoContent})
		return
	}
	fetched[doi] = doc
}

// FetchSingle re-queries the API for one DOI. Springer exposes a single
// endpoint, so the fallback tier is just the lenient single-item query.
func (s *Springer) FetchSingle(ctx context.Context, doi string) (*jats.Document, error) {
	fetched, failures := s.FetchBatch(ctx, []string{doi})
	if doc, ok := fetched[doi]; ok {
		return doc, nil
	}
	if len(failures) > 0 {
		return nil, errors.New(failures[0].Reason)
	}
	return nil, errors.New(reasonNotInBatch)
}

// springerArticle pairs a parsed <article> with its normalized DOI ("" when
// the record carries none).
type springerArticle struct {
	doi  string
	node *jats.Node
}

// query performs the bulk OpenAccess call and extracts every parseable
// article from the response records.
func (s *Springer) query(ctx context.Context, dois []string) ([]springerArticle, error) {
	terms := make([]string, len(dois))
	for i, d := range dois {
		terms[i] = "doi:" + d
	}
	params := url.Values{}
	params.Set("q", strings.Join(terms, " OR "))
	params.Set("p", strconv.Itoa(len(dois)))
	params.Set("api_key", s.cfg.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, springerBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", s.cfg.UserAgent)

	resp, err := httputil.DoWithRetry(ctx, s.client, req, httputil.Options{MaxAttempts: 6, Limiter: s.limiter})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	outer, err := jats.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}

	records := outer.FindAll("record")
	if len(records) == 0 {
		return nil, errors.New("no records in response")
	}

	var articles []springerArticle
	for _, rec := range records {
		article := articleFromRecord(rec)
		if article == nil {
			continue
		}
		articles = append(articles, springerArticle{doi: articleDOI(article), node: article})
	}
	if len(articles) == 0 {
		return nil, errors.New("no JATS article found in records")
	}
	return articles, nil
}

// articleFromRecord digs the JATS <article> out of a response <record>,
// handling direct children, <xml> wrappers with escaped payloads, and a
// last-ditch text scan for doubly-escaped content.
func articleFromRecord(rec *jats.Node) *jats.Node {
	if article := rec.Find("article"); article != nil {
		return article
	}

	if wrapper := rec.Find("xml"); wrapper != nil {
		if article := parseEscaped(wrapper.RawText()); article != nil {
			return article
		}
	}

	if m := articlePattern.FindString(jats.MultiUnescape(rec.RawText())); m != "" {
		if root, err := jats.Parse(strings.NewReader(m)); err == nil {
			return jats.FindArticle(root)
		}
	}
	return nil
}

func parseEscaped(raw string) *jats.Node {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	root, err := jats.Parse(strings.NewReader(jats.MultiUnescape(raw)))
	if err != nil {
		return nil
	}
	return jats.FindArticle(root)
}

// articleDOI returns the normalized DOI from the article's own article-id
// elements, or "".
func articleDOI(article *jats.Node) string {
	for _, idNode := range article.FindAll("article-id") {
		if strings.EqualFold(idNode.Attr("pub-id-type"), "doi") {
			return doiutil.Normalize(idNode.InnerText())
		}
	}
	return ""
}
