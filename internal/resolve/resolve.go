// Copyright PolyMD Authors, 2026. All rights reserved.

// Package resolve turns document identifiers into bibliographic records
// by querying multiple providers in priority order and merging their
// answers field by field.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/apaudelx/PolyMD/internal/httputil"
	"github.com/apaudelx/PolyMD/pkg/types"
)

// Provider looks up bibliographic metadata for one DOI. Each provider
// adapts its API's response shape into a BibRecord at this boundary, so
// unexpected shapes fail here rather than downstream.
type Provider interface {
	Name() string
	Lookup(ctx context.Context, doi types.DOI) (types.BibRecord, error)
}

// ErrDuplicateIdentifier marks a batch containing the same normalized
// identifier twice. Duplicate work is rejected rather than silently
// resolved twice.
var ErrDuplicateIdentifier = errors.New("duplicate identifier in batch")

// Resolution is the outcome for one identifier: exactly one of Record
// or Failure is set. ProviderErrors carries per-provider failure
// context for the batch log.
type Resolution struct {
	Record         *types.BibRecord
	Failure        *types.ResolutionFailure
	ProviderErrors []string
}

// Resolved reports whether the identifier produced a usable record.
func (r Resolution) Resolved() bool { return r.Record != nil }

// Resolver merges provider answers into canonical records. Provider
// priority is fixed at construction.
type Resolver struct {
	providers []Provider
	cache     *gocache.Cache
}

// NewResolver builds a Resolver over providers in priority order.
// Provider responses are memoized per DOI for cacheTTL so repeated
// batches skip the network for already-seen identifiers.
func NewResolver(providers []Provider, cacheTTL time.Duration) *Resolver {
	if cacheTTL <= 0 {
		cacheTTL = time.Hour
	}
	return &Resolver{
		providers: providers,
		cache:     gocache.New(cacheTTL, 2*cacheTTL),
	}
}

// Resolve queries all providers for one identifier and merges the
// results in priority order, first non-null wins per field.
//
// Providers are independent rate-limit domains, so lookups run
// concurrently; the merge is deferred until every provider has
// answered, which keeps it deterministic regardless of arrival order.
// A provider failure skips that provider for the still-missing fields.
// The returned error is non-nil only for failures fatal to the whole
// run (bad credentials, cancelled context); an identifier that no
// provider can resolve is a Resolution carrying a ResolutionFailure.
func (r *Resolver) Resolve(ctx context.Context, doi types.DOI) (Resolution, error) {
	type lookup struct {
		rec types.BibRecord
		err error
	}
	results := make([]lookup, len(r.providers))

	var wg sync.WaitGroup
	for i, p := range r.providers {
		wg.Add(1)
		go func(i int, p Provider) {
			defer wg.Done()
			rec, err := r.lookupCached(ctx, p, doi)
			results[i] = lookup{rec: rec, err: err}
		}(i, p)
	}
	wg.Wait()

	record := types.BibRecord{DOI: doi}
	var providerErrors []string
	for i, p := range r.providers {
		if results[i].err != nil {
			if httputil.IsAuth(results[i].err) {
				return Resolution{}, fmt.Errorf("provider %s: %w", p.Name(), results[i].err)
			}
			providerErrors = append(providerErrors, fmt.Sprintf("%s: %v", p.Name(), results[i].err))
			continue
		}
		record.Merge(results[i].rec, p.Name())
	}

	if err := ctx.Err(); err != nil {
		return Resolution{}, err
	}

	if missing := record.MissingRequired(); len(missing) > 0 {
		return Resolution{
			Failure:        &types.ResolutionFailure{DOI: doi, MissingFields: missing},
			ProviderErrors: providerErrors,
		}, nil
	}
	return Resolution{Record: &record, ProviderErrors: providerErrors}, nil
}

// lookupCached memoizes successful provider lookups per (provider, DOI).
// Failures are not cached; a later batch may succeed.
func (r *Resolver) lookupCached(ctx context.Context, p Provider, doi types.DOI) (types.BibRecord, error) {
	key := p.Name() + "|" + doi.String()
	if cached, ok := r.cache.Get(key); ok {
		return cached.(types.BibRecord), nil
	}
	rec, err := p.Lookup(ctx, doi)
	if err != nil {
		return types.BibRecord{}, err
	}
	r.cache.SetDefault(key, rec)
	return rec, nil
}

// Credentials holds the per-provider tokens. Values are opaque and are
// never logged.
type Credentials struct {
	SemanticScholarAPIKey string
	CrossrefMailto        string
	OpenAlexEmail         string
}

// BuildProviders constructs the configured providers in the order named
// by cfg.ProviderOrder. Each provider gets its own Endpoint because
// each external API is its own rate-limit domain. An unknown provider
// name is a configuration error.
func BuildProviders(cfg types.ResolveConfig, creds Credentials) ([]Provider, error) {
	client := &http.Client{Timeout: cfg.Timeout}

	providers := make([]Provider, 0, len(cfg.ProviderOrder))
	for _, name := range cfg.ProviderOrder {
		switch name {
		case "semantic_scholar":
			providers = append(providers, &SemanticScholarProvider{
				Endpoint:  httputil.NewEndpoint(name, client, cfg.Retry),
				APIKey:    creds.SemanticScholarAPIKey,
				UserAgent: cfg.UserAgent,
			})
		case "crossref":
			providers = append(providers, &CrossrefProvider{
				Endpoint: httputil.NewEndpoint(name, client, cfg.Retry),
				Mailto:   creds.CrossrefMailto,
			})
		case "openalex":
			providers = append(providers, &OpenAlexProvider{
				Endpoint:  httputil.NewEndpoint(name, client, cfg.Retry),
				Email:     creds.OpenAlexEmail,
				UserAgent: cfg.UserAgent,
			})
		default:
			return nil, fmt.Errorf("unknown metadata provider %q", name)
		}
	}
	return providers, nil
}
