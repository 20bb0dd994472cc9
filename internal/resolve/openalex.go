// Copyright PolyMD Authors, 2026. All rights reserved.

package resolve

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/apaudelx/PolyMD/internal/httputil"
	"github.com/apaudelx/PolyMD/pkg/types"
)

// openAlexAPIBase is the OpenAlex works endpoint.
const openAlexAPIBase = "https://api.openalex.org/works/"

// OpenAlexProvider looks up one DOI via the OpenAlex API. Email is sent
// as the mailto parameter for polite pool access.
type OpenAlexProvider struct {
	Endpoint  *httputil.Endpoint
	Email     string
	UserAgent string
}

// Name returns the provider identifier.
func (p *OpenAlexProvider) Name() string { return "openalex" }

// Lookup fetches and adapts the OpenAlex record for doi. OpenAlex keys
// works by the full resolver URL and stores abstracts as an inverted
// index, reconstructed here.
func (p *OpenAlexProvider) Lookup(ctx context.Context, doi types.DOI) (types.BibRecord, error) {
	reqURL := openAlexAPIBase + "https://doi.org/" + doi.String()
	if p.Email != "" {
		reqURL += "?mailto=" + url.QueryEscape(p.Email)
	}

	resp, err := p.Endpoint.Do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", p.UserAgent)
		return req, nil
	})
	if err != nil {
		return types.BibRecord{}, fmt.Errorf("OpenAlex lookup: %w", err)
	}
	defer resp.Body.Close()

	var work openAlexWork
	if err := json.NewDecoder(resp.Body).Decode(&work); err != nil {
		return types.BibRecord{}, fmt.Errorf("parsing OpenAlex response: %w", err)
	}

	rec := types.BibRecord{
		DOI:      doi,
		Title:    work.Title,
		Abstract: reconstructAbstract(work.AbstractInvertedIndex),
		Year:     work.PublicationYear,
		URL:      work.ID,
	}
	for _, authorship := range work.Authorships {
		if authorship.Author.DisplayName != "" {
			rec.Authors = append(rec.Authors, authorship.Author.DisplayName)
		}
	}
	return rec, nil
}

// reconstructAbstract converts OpenAlex's abstract_inverted_index back
// to plain text. The inverted index maps each word to the positions
// where that word appears.
func reconstructAbstract(invertedIndex map[string][]int) string {
	if len(invertedIndex) == 0 {
		return ""
	}

	type posWord struct {
		pos  int
		word string
	}
	var pairs []posWord
	for word, positions := range invertedIndex {
		for _, pos := range positions {
			pairs = append(pairs, posWord{pos: pos, word: word})
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].pos < pairs[j].pos
	})

	words := make([]string, len(pairs))
	for i, p := range pairs {
		words[i] = p.word
	}
	return strings.Join(words, " ")
}

// OpenAlex API JSON structures.
type openAlexWork struct {
	ID                    string               `json:"id"`
	Title                 string               `json:"title"`
	PublicationYear       int                  `json:"publication_year"`
	Authorships           []openAlexAuthorship `json:"authorships"`
	AbstractInvertedIndex map[string][]int     `json:"abstract_inverted_index"`
}

type openAlexAuthorship struct {
	Author openAlexAuthor `json:"author"`
}

type openAlexAuthor struct {
	DisplayName string `json:"display_name"`
}
