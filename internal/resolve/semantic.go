// Copyright PolyMD Authors, 2026. All rights reserved.

package resolve

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/apaudelx/PolyMD/internal/httputil"
	"github.com/apaudelx/PolyMD/pkg/types"
)

// semanticAPIBase is the Semantic Scholar paper lookup endpoint.
const semanticAPIBase = "https://api.semanticscholar.org/graph/v1/paper/"

const semanticFields = "title,abstract,authors,year,url"

// SemanticScholarProvider looks up one DOI via the Semantic Scholar
// Graph API.
type SemanticScholarProvider struct {
	Endpoint  *httputil.Endpoint
	APIKey    string
	UserAgent string
}

// Name returns the provider identifier.
func (p *SemanticScholarProvider) Name() string { return "semantic_scholar" }

// Lookup fetches and adapts the Semantic Scholar record for doi.
func (p *SemanticScholarProvider) Lookup(ctx context.Context, doi types.DOI) (types.BibRecord, error) {
	reqURL := semanticAPIBase + "DOI:" + url.PathEscape(doi.String()) +
		"?fields=" + semanticFields

	resp, err := p.Endpoint.Do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", p.UserAgent)
		if p.APIKey != "" {
			req.Header.Set("x-api-key", p.APIKey)
		}
		return req, nil
	})
	if err != nil {
		return types.BibRecord{}, fmt.Errorf("Semantic Scholar lookup: %w", err)
	}
	defer resp.Body.Close()

	var sp semanticPaper
	if err := json.NewDecoder(resp.Body).Decode(&sp); err != nil {
		return types.BibRecord{}, fmt.Errorf("parsing Semantic Scholar response: %w", err)
	}

	rec := types.BibRecord{
		DOI:      doi,
		Title:    sp.Title,
		Abstract: sp.Abstract,
		Year:     sp.Year,
		URL:      sp.URL,
	}
	for _, a := range sp.Authors {
		if a.Name != "" {
			rec.Authors = append(rec.Authors, a.Name)
		}
	}
	return rec, nil
}

// Semantic Scholar API JSON structures.
type semanticPaper struct {
	Title    string           `json:"title"`
	Abstract string           `json:"abstract"`
	Year     int              `json:"year"`
	URL      string           `json:"url"`
	Authors  []semanticAuthor `json:"authors"`
}

type semanticAuthor struct {
	Name string `json:"name"`
}
