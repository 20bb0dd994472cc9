// Copyright PolyMD Authors, 2026. All rights reserved.

package resolve

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apaudelx/PolyMD/internal/httputil"
	"github.com/apaudelx/PolyMD/pkg/types"
)

// fakeProvider returns a canned record or error and counts lookups.
type fakeProvider struct {
	name  string
	rec   types.BibRecord
	err   error
	calls int32
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) Lookup(_ context.Context, doi types.DOI) (types.BibRecord, error) {
	atomic.AddInt32(&p.calls, 1)
	if p.err != nil {
		return types.BibRecord{}, p.err
	}
	rec := p.rec
	rec.DOI = doi
	return rec, nil
}

func TestResolve_FieldLevelMerge(t *testing.T) {
	// Provider A supplies only the title, provider B only the abstract;
	// the merged record carries both, each attributed to its provider.
	a := &fakeProvider{name: "provider_a", rec: types.BibRecord{Title: "Polymer Study"}}
	b := &fakeProvider{name: "provider_b", rec: types.BibRecord{Abstract: "We study PMMA..."}}

	r := NewResolver([]Provider{a, b}, time.Minute)
	res, err := r.Resolve(context.Background(), types.DOI("10.1000/xyz123"))
	require.NoError(t, err)
	require.True(t, res.Resolved())

	assert.Equal(t, "Polymer Study", res.Record.Title)
	assert.Equal(t, "We study PMMA...", res.Record.Abstract)
	assert.Equal(t, "provider_a", res.Record.Sources[types.FieldTitle])
	assert.Equal(t, "provider_b", res.Record.Sources[types.FieldAbstract])
}

func TestResolve_PriorityOrderWinsPerField(t *testing.T) {
	a := &fakeProvider{name: "first", rec: types.BibRecord{Title: "First Title", Year: 2001}}
	b := &fakeProvider{name: "second", rec: types.BibRecord{Title: "Second Title", Abstract: "abstract", Year: 1999}}

	r := NewResolver([]Provider{a, b}, time.Minute)
	res, err := r.Resolve(context.Background(), types.DOI("10.1000/xyz123"))
	require.NoError(t, err)
	require.True(t, res.Resolved())

	// Title and year come from the higher-priority provider, the
	// abstract from the only provider that has one.
	assert.Equal(t, "First Title", res.Record.Title)
	assert.Equal(t, 2001, res.Record.Year)
	assert.Equal(t, "abstract", res.Record.Abstract)
	assert.Equal(t, "second", res.Record.Sources[types.FieldAbstract])
}

func TestResolve_Deterministic(t *testing.T) {
	a := &fakeProvider{name: "a", rec: types.BibRecord{Title: "T", Authors: []string{"X", "Y"}}}
	b := &fakeProvider{name: "b", rec: types.BibRecord{Abstract: "A", Year: 2020}}

	r := NewResolver([]Provider{a, b}, time.Minute)
	first, err := r.Resolve(context.Background(), types.DOI("10.1000/det"))
	require.NoError(t, err)
	second, err := r.Resolve(context.Background(), types.DOI("10.1000/det"))
	require.NoError(t, err)

	assert.Equal(t, first.Record, second.Record)
}

func TestResolve_ProviderFailureFallsThrough(t *testing.T) {
	a := &fakeProvider{name: "flaky", err: errors.New("connection reset")}
	b := &fakeProvider{name: "backup", rec: types.BibRecord{Title: "T", Year: 2019}}

	r := NewResolver([]Provider{a, b}, time.Minute)
	res, err := r.Resolve(context.Background(), types.DOI("10.1000/xyz123"))
	require.NoError(t, err)
	require.True(t, res.Resolved())

	assert.Equal(t, "backup", res.Record.Sources[types.FieldTitle])
	require.Len(t, res.ProviderErrors, 1)
	assert.Contains(t, res.ProviderErrors[0], "flaky")
}

func TestResolve_MissingRequiredFieldsIsFailureNotError(t *testing.T) {
	// Only authors come back: no title, no abstract, no year.
	a := &fakeProvider{name: "a", rec: types.BibRecord{Authors: []string{"Someone"}}}

	r := NewResolver([]Provider{a}, time.Minute)
	res, err := r.Resolve(context.Background(), types.DOI("10.1000/xyz123"))
	require.NoError(t, err)

	require.False(t, res.Resolved())
	require.NotNil(t, res.Failure)
	assert.Equal(t, types.DOI("10.1000/xyz123"), res.Failure.DOI)
	assert.Contains(t, res.Failure.MissingFields, types.FieldTitle)
}

func TestResolve_AuthFailureIsFatal(t *testing.T) {
	a := &fakeProvider{name: "a", err: &httputil.Error{Kind: httputil.KindAuth, Endpoint: "a", Status: 401}}
	b := &fakeProvider{name: "b", rec: types.BibRecord{Title: "T", Year: 2019}}

	r := NewResolver([]Provider{a, b}, time.Minute)
	_, err := r.Resolve(context.Background(), types.DOI("10.1000/xyz123"))
	require.Error(t, err)

	var he *httputil.Error
	require.ErrorAs(t, err, &he)
	assert.Equal(t, httputil.KindAuth, he.Kind)
}

func TestResolve_ExhaustionIsNotFatal(t *testing.T) {
	exhausted := &fakeProvider{
		name: "slow",
		err:  errors.New("slow: " + httputil.ErrExhausted.Error()),
	}
	b := &fakeProvider{name: "b", rec: types.BibRecord{Title: "T", Abstract: "A"}}

	r := NewResolver([]Provider{exhausted, b}, time.Minute)
	res, err := r.Resolve(context.Background(), types.DOI("10.1000/xyz123"))
	require.NoError(t, err)
	assert.True(t, res.Resolved())
}

func TestResolve_CachesSuccessfulLookups(t *testing.T) {
	a := &fakeProvider{name: "a", rec: types.BibRecord{Title: "T", Year: 2020}}

	r := NewResolver([]Provider{a}, time.Minute)
	for i := 0; i < 3; i++ {
		_, err := r.Resolve(context.Background(), types.DOI("10.1000/cached"))
		require.NoError(t, err)
	}

	assert.Equal(t, int32(1), atomic.LoadInt32(&a.calls))
}

func TestResolve_DoesNotCacheFailures(t *testing.T) {
	a := &fakeProvider{name: "a", err: errors.New("boom")}

	r := NewResolver([]Provider{a}, time.Minute)
	for i := 0; i < 2; i++ {
		_, err := r.Resolve(context.Background(), types.DOI("10.1000/uncached"))
		require.NoError(t, err)
	}

	assert.Equal(t, int32(2), atomic.LoadInt32(&a.calls))
}

func TestBuildProviders_UnknownProviderIsConfigError(t *testing.T) {
	cfg := types.ResolveConfig{ProviderOrder: []string{"semantic_scholar", "pubmed"}}
	_, err := BuildProviders(cfg, Credentials{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pubmed")
}

func TestBuildProviders_OrderFollowsConfig(t *testing.T) {
	cfg := types.ResolveConfig{
		ProviderOrder: []string{"openalex", "crossref", "semantic_scholar"},
	}
	providers, err := BuildProviders(cfg, Credentials{})
	require.NoError(t, err)
	require.Len(t, providers, 3)

	assert.Equal(t, "openalex", providers[0].Name())
	assert.Equal(t, "crossref", providers[1].Name())
	assert.Equal(t, "semantic_scholar", providers[2].Name())
}
