// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/time/rate"

	"github.com/pdiddy/fulltext-engine/internal/batch"
	"github.com/pdiddy/fulltext-engine/internal/doiutil"
	"github.com/pdiddy/fulltext-engine/internal/httputil"
	"github.com/pdiddy/fulltext-engine/internal/jats"
	"github.com/pdiddy/fulltext-engine/pkg/types"
)

// Base URLs for the PMC service contract. Declared as vars so tests can
// substitute httptest servers.
var (
	idconvBase           = "https://www.ncbi.nlm.nih.gov/pmc/utils/idconv/v1.0/"
	efetchBase           = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/efetch.fcgi"
	europePMCSearchBase  = "https://www.ebi.ac.uk/europepmc/webservices/rest/search"
	europePMCArticleBase = "https://www.ebi.ac.uk/europepmc/webservices/rest/"
)

// NCBI allows 3 requests/second without an API key, 10 with one.
const (
	ncbiRPS        = 3
	ncbiRPSWithKey = 10
)

// PMC acquires full text from PubMed Central: the NCBI ID converter resolves
// DOIs to PMCIDs, EFetch returns bulk JATS XML, and EuropePMC serves as the
// secondary tier for both halves.
type PMC struct {
	client  *http.Client
	cfg     types.PMCConfig
	limiter *rate.Limiter
}

// NewPMC builds the adapter. The NCBI API key is optional; when present it
// raises the request rate.
func NewPMC(cfg types.PMCConfig) *PMC {
	rps := ncbiRPS
	if cfg.APIKey != "" {
		rps = ncbiRPSWithKey
	}
	return &PMC{
		client:  &http.Client{Timeout: cfg.Timeout},
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
	}
}

// Name implements Source.
func (p *PMC) Name() string { return "pmc" }

// idconvResponse is the NCBI ID converter JSON shape.
type idconvResponse struct {
	Records []struct {
		DOI   string `json:"doi"`
		PMCID string `json:"pmcid"`
	} `json:"records"`
}

// ResolveBatch converts DOIs to PMCIDs via one bulk ID converter call. When
// the bulk call fails outright after retries, each DOI is retried once
// through the EuropePMC search endpoint as a last resort — single-item
// granularity, outside the batch loop.
func (p *PMC) ResolveBatch(ctx context.Context, dois []string) (map[string]string, []batch.Failure) {
	resolved := make(map[string]string)
	var failures []batch.Failure
	if len(dois) == 0 {
		return resolved, failures
	}

	params := url.Values{}
	params.Set("ids", strings.Join(dois, ","))
	params.Set("format", "json")
	if p.cfg.APIKey != "" {
		params.Set("api_key", p.cfg.APIKey)
	}

	var conv idconvResponse
	if err := p.getJSON(ctx, idconvBase+"?"+params.Encode(), &conv); err != nil {
		// Bulk registry failed: fall back per item.
		lastErr := fmt.Sprintf("idconv: %v", err)
		for _, d := range dois {
			pmcid, epmcErr := p.resolveEuropePMC(ctx, d)
			if epmcErr != nil {
				failures = append(failures, batch.Failure{Item: d, Reason: fmt.Sprintf("%v | %s", epmcErr, lastErr)})
				continue
			}
			resolved[d] = pmcid
		}
		return resolved, failures
	}

	byDOI := make(map[string]string, len(conv.Records))
	for _, rec := range conv.Records {
		if rec.PMCID != "" {
			byDOI[doiutil.Normalize(rec.DOI)] = rec.PMCID
		}
	}
	for _, d := range dois {
		if pmcid, ok := byDOI[doiutil.Normalize(d)]; ok {
			resolved[d] = pmcid
			continue
		}
		failures = append(failures, batch.Failure{Item: d, Reason: reasonNoCanonicalID})
	}
	return resolved, failures
}

// europePMCSearch is the subset of the EuropePMC search response we read.
type europePMCSearch struct {
	ResultList struct {
		Result []struct {
			PMCID string `json:"pmcid"`
		} `json:"result"`
	} `json:"resultList"`
}

// resolveEuropePMC looks up one DOI through the EuropePMC search endpoint.
func (p *PMC) resolveEuropePMC(ctx context.Context, doi string) (string, error) {
	params := url.Values{}
	params.Set("query", "doi:"+doi)
	params.Set("format", "json")
	if p.cfg.Contact != "" {
		params.Set("email", p.cfg.Contact)
	}

	var res europePMCSearch
	if err := p.getJSON(ctx, europePMCSearchBase+"?"+params.Encode(), &res); err != nil {
		return "", fmt.Errorf("EuropePMC: %w", err)
	}
	for _, hit := range res.ResultList.Result {
		if hit.PMCID != "" {
			return hit.PMCID, nil
		}
	}
	return "", fmt.Errorf("EuropePMC: %s", reasonNoCanonicalID)
}

// FetchBatch retrieves bulk JATS XML through EFetch. The response article
// set may cover a subset of the requested PMCIDs; articles are matched back
// to requests strictly by their pmc article-id.
func (p *PMC) FetchBatch(ctx context.Context, pmcids []string) (map[string]*jats.Document, []batch.Failure) {
	fetched := make(map[string]*jats.Document)
	var failures []batch.Failure
	if len(pmcids) == 0 {
		return fetched, failures
	}

	nums := make([]string, 0, len(pmcids))
	byNum := make(map[string]string, len(pmcids))
	for _, id := range pmcids {
		num := digitsOf(id)
		if num == "" {
			failures = append(failures, batch.Failure{Item: id, Reason: "invalid PMCID"})
			continue
		}
		nums = append(nums, num)
		byNum[num] = id
	}
	if len(nums) == 0 {
		return fetched, failures
	}

	params := url.Values{}
	params.Set("db", "pmc")
	params.Set("id", strings.Join(nums, ","))
	params.Set("rettype", "xml")
	if p.cfg.APIKey != "" {
		params.Set("api_key", p.cfg.APIKey)
	}

	root, err := p.getXML(ctx, efetchBase+"?"+params.Encode())
	if err != nil {
		for _, num := range nums {
			failures = append(failures, batch.Failure{Item: byNum[num], Reason: fmt.Sprintf("efetch: %v", err)})
		}
		return fetched, failures
	}

	for _, article := range articleNodes(root) {
		num := digitsOf(pmcArticleID(article))
		id, requested := byNum[num]
		if !requested {
			continue
		}
		doc := jats.NormalizeArticle(article)
		if !doc.HasContent() {
			failures = append(failures, batch.Failure{Item: id, Reason: reasonNoContent})
			delete(byNum, num)
			continue
		}
		fetched[id] = doc
		delete(byNum, num)
	}
	for _, id := range byNum {
		failures = append(failures, batch.Failure{Item: id, Reason: reasonNotInBatch})
	}
	return fetched, failures
}

// FetchSingle tries the alternate single-item endpoints in priority order:
// EFetch with one ID, then the EuropePMC full-text endpoint.
func (p *PMC) FetchSingle(ctx context.Context, pmcid string) (*jats.Document, error) {
	num := digitsOf(pmcid)
	if num == "" {
		return nil, fmt.Errorf("invalid PMCID %q", pmcid)
	}

	params := url.Values{}
	params.Set("db", "pmc")
	params.Set("id", num)
	params.Set("rettype", "xml")
	if p.cfg.APIKey != "" {
		params.Set("api_key", p.cfg.APIKey)
	}

	var lastErr error
	if root, err := p.getXML(ctx, efetchBase+"?"+params.Encode()); err == nil {
		if article := jats.FindArticle(root); article != nil {
			if doc := jats.NormalizeArticle(article); doc.HasContent() {
				return doc, nil
			}
		}
		lastErr = fmt.Errorf("efetch: %s", reasonNoContent)
	} else {
		lastErr = fmt.Errorf("efetch: %w", err)
	}

	if root, err := p.getXML(ctx, europePMCArticleBase+"PMC"+num+"/fullTextXML"); err == nil {
		if article := jats.FindArticle(root); article != nil {
			if doc := jats.NormalizeArticle(article); doc.HasContent() {
				return doc, nil
			}
		}
		return nil, fmt.Errorf("EuropePMC: %s | %v", reasonNoContent, lastErr)
	}
	return nil, fmt.Errorf("EuropePMC full text unavailable | %v", lastErr)
}

// getJSON performs a rate-limited, retried GET and decodes the JSON body.
func (p *PMC) getJSON(ctx context.Context, rawURL string, out any) error {
	resp, err := p.get(ctx, rawURL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}

// getXML performs a rate-limited, retried GET and parses the XML body.
func (p *PMC) getXML(ctx context.Context, rawURL string) (*jats.Node, error) {
	resp, err := p.get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return jats.Parse(resp.Body)
}

func (p *PMC) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", p.cfg.UserAgent)
	return httputil.DoWithRetry(ctx, p.client, req, httputil.Options{Limiter: p.limiter})
}

// articleNodes lists the <article> elements of an EFetch response, whether
// wrapped in <pmc-articleset> or returned bare.
func articleNodes(root *jats.Node) []*jats.Node {
	if root.Name == "article" {
		return []*jats.Node{root}
	}
	return root.FindAll("article")
}

// pmcArticleID returns the article's own PMC accession from its article-id
// elements, or "".
func pmcArticleID(article *jats.Node) string {
	for _, idNode := range article.FindAll("article-id") {
		t := strings.ToLower(idNode.Attr("pub-id-type"))
		if t == "pmc" || t == "pmcid" {
			return idNode.InnerText()
		}
	}
	return ""
}

// digitsOf strips everything but digits (PMCIDs arrive as "PMC123456",
// "pmc123456", or bare numbers).
func digitsOf(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
