// Copyright PolyMD Authors, 2026. All rights reserved.

package resolve

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apaudelx/PolyMD/pkg/types"
)

func TestResolveBatch_RejectsDuplicateIdentifiers(t *testing.T) {
	a := &fakeProvider{name: "a", rec: types.BibRecord{Title: "T", Year: 2020}}
	r := NewResolver([]Provider{a}, time.Minute)

	// Same DOI in different surface forms normalizes to one identifier.
	_, err := r.ResolveBatch(context.Background(),
		[]string{"10.1000/XYZ123", "https://doi.org/10.1000/xyz123"}, &bytes.Buffer{})
	require.ErrorIs(t, err, ErrDuplicateIdentifier)

	// No provider was consulted before the batch was rejected.
	assert.Equal(t, int32(0), a.calls)
}

func TestResolveBatch_RejectsInvalidDOI(t *testing.T) {
	r := NewResolver(nil, time.Minute)
	_, err := r.ResolveBatch(context.Background(), []string{"not-a-doi"}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not-a-doi")
}

func TestResolveBatch_FullAccounting(t *testing.T) {
	// One provider that only knows one of the two DOIs.
	known := types.DOI("10.1000/known")
	a := &selectiveProvider{known: known}

	r := NewResolver([]Provider{a}, time.Minute)
	var out bytes.Buffer
	result, err := r.ResolveBatch(context.Background(),
		[]string{"10.1000/known", "10.1000/unknown"}, &out)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Resolved)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 2, result.Total())
	assert.True(t, result.HasFailures())

	// Every input identifier has an outcome; the failure is recorded,
	// not dropped.
	require.Len(t, result.Order, 2)
	assert.True(t, result.Resolutions[known].Resolved())
	assert.False(t, result.Resolutions[types.DOI("10.1000/unknown")].Resolved())

	assert.Contains(t, out.String(), "resolved:   10.1000/known")
	assert.Contains(t, out.String(), "unresolved: 10.1000/unknown")
	assert.Contains(t, out.String(), "Batch summary: 1 resolved, 1 failed (total: 2)")
}

func TestWriteOutputs(t *testing.T) {
	dir := t.TempDir()
	known := types.DOI("10.1000/xyz123")

	result := BatchResult{
		Resolved: 1,
		Failed:   1,
		Order:    []types.DOI{known, "10.1000/missing"},
		Resolutions: map[types.DOI]Resolution{
			known: {Record: &types.BibRecord{
				DOI:      known,
				Title:    "Polymer Study",
				Abstract: "We study PMMA...",
				Authors:  []string{"Ada Lovelace"},
				Year:     1998,
				Sources: map[string]string{
					types.FieldTitle:    "semantic_scholar",
					types.FieldAbstract: "crossref",
				},
			}},
			"10.1000/missing": {Failure: &types.ResolutionFailure{
				DOI:           "10.1000/missing",
				MissingFields: []string{types.FieldTitle},
			}},
		},
	}

	require.NoError(t, result.WriteOutputs(dir))

	// CSV: header plus one row per input identifier.
	f, err := os.Open(filepath.Join(dir, "metadata.csv"))
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, batchCSVHeader, rows[0])
	assert.Equal(t, "resolved", rows[1][1])
	assert.Equal(t, "Polymer Study", rows[1][2])
	assert.Equal(t, "title=semantic_scholar;abstract=crossref", rows[1][7])
	assert.Equal(t, "resolution_failed", rows[2][1])
	assert.Equal(t, types.FieldTitle, rows[2][8])

	// YAML metadata exists only for the resolved document.
	_, err = os.Stat(filepath.Join(dir, metadataDir, known.Slug()+".yaml"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, metadataDir, "10.1000-missing.yaml"))
	assert.True(t, os.IsNotExist(err))
}

// selectiveProvider resolves only one known DOI.
type selectiveProvider struct {
	known types.DOI
	calls int32
}

func (p *selectiveProvider) Name() string { return "selective" }

func (p *selectiveProvider) Lookup(_ context.Context, doi types.DOI) (types.BibRecord, error) {
	p.calls++
	if doi != p.known {
		return types.BibRecord{}, nil
	}
	return types.BibRecord{DOI: doi, Title: "Known Title", Year: 2000}, nil
}
