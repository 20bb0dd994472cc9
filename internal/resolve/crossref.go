// Copyright PolyMD Authors, 2026. All rights reserved.

package resolve

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/apaudelx/PolyMD/internal/httputil"
	"github.com/apaudelx/PolyMD/pkg/types"
)

// crossrefAPIBase is the Crossref works endpoint.
const crossrefAPIBase = "https://api.crossref.org/works/"

// jatsTagPattern strips JATS markup (<jats:p>, </jats:p>, ...) that
// Crossref embeds in abstracts.
var jatsTagPattern = regexp.MustCompile(`</?jats:[^>]+>`)

// CrossrefProvider looks up one DOI via the Crossref REST API. Mailto
// identifies the caller for Crossref's polite pool.
type CrossrefProvider struct {
	Endpoint *httputil.Endpoint
	Mailto   string
}

// Name returns the provider identifier.
func (p *CrossrefProvider) Name() string { return "crossref" }

// Lookup fetches and adapts the Crossref record for doi.
func (p *CrossrefProvider) Lookup(ctx context.Context, doi types.DOI) (types.BibRecord, error) {
	reqURL := crossrefAPIBase + doi.String()

	resp, err := p.Endpoint.Do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", p.userAgent())
		return req, nil
	})
	if err != nil {
		return types.BibRecord{}, fmt.Errorf("Crossref lookup: %w", err)
	}
	defer resp.Body.Close()

	var cr crossrefResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return types.BibRecord{}, fmt.Errorf("parsing Crossref response: %w", err)
	}

	work := cr.Message
	rec := types.BibRecord{
		DOI: doi,
		URL: work.URL,
	}
	if len(work.Title) > 0 {
		rec.Title = work.Title[0]
	}
	if work.Abstract != "" {
		rec.Abstract = strings.TrimSpace(jatsTagPattern.ReplaceAllString(work.Abstract, ""))
	}
	for _, a := range work.Author {
		name := strings.TrimSpace(a.Given + " " + a.Family)
		if name != "" {
			rec.Authors = append(rec.Authors, name)
		}
	}
	if len(work.Issued.DateParts) > 0 && len(work.Issued.DateParts[0]) > 0 {
		rec.Year = work.Issued.DateParts[0][0]
	}
	return rec, nil
}

func (p *CrossrefProvider) userAgent() string {
	if p.Mailto == "" {
		return "polymd/0.1"
	}
	return fmt.Sprintf("polymd/0.1 (mailto:%s)", p.Mailto)
}

// Crossref API JSON structures.
type crossrefResponse struct {
	Message crossrefWork `json:"message"`
}

type crossrefWork struct {
	Title    []string         `json:"title"`
	Abstract string           `json:"abstract"`
	Author   []crossrefAuthor `json:"author"`
	Issued   crossrefDate     `json:"issued"`
	URL      string           `json:"URL"`
}

type crossrefAuthor struct {
	Given  string `json:"given"`
	Family string `json:"family"`
}

type crossrefDate struct {
	DateParts [][]int `json:"date-parts"`
}
