// Copyright PolyMD Authors, 2026. All rights reserved.

package extract

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apaudelx/PolyMD/internal/httputil"
	"github.com/apaudelx/PolyMD/pkg/types"
)

// mockBackend returns a canned reply or error.
type mockBackend struct {
	reply string
	err   error
	calls int
}

func (m *mockBackend) Complete(_ context.Context, _ string) (string, error) {
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	return m.reply, nil
}

const wellFormedReply = `[
	{"polymer_system": "Polystyrene (PS)", "force_field": "OPLS-AA", "property": "density", "value": 1.05, "unit": "g/cm³"},
	{"polymer_system": "Polyethylene (PE)", "force_field": "GROMOS", "property": "glass_transition_temp", "value": "253.15", "unit": "K"}
]`

func TestExtract_WellFormedReply(t *testing.T) {
	backend := &mockBackend{reply: wellFormedReply}
	result, err := Extract(context.Background(), backend, "10.1000/xyz123", "article text", &bytes.Buffer{})
	require.NoError(t, err)

	assert.Equal(t, types.ExtractionParsed, result.Status)
	require.Len(t, result.Records, 2)
	assert.Empty(t, result.Dropped)
	assert.Empty(t, result.Raw)

	first := result.Records[0]
	assert.Equal(t, "Polystyrene (PS)", first.PolymerSystem)
	assert.Equal(t, "OPLS-AA", first.ForceField)
	assert.Equal(t, types.PropDensity, first.Property)
	assert.InDelta(t, 1.05, first.Value, 1e-9)
	assert.Equal(t, "g/cm³", first.Unit)
	assert.Equal(t, types.DOI("10.1000/xyz123"), first.DOI)

	// Quoted numeric values parse too.
	assert.InDelta(t, 253.15, result.Records[1].Value, 1e-9)
}

func TestExtract_PropertiesOnlyFromEnumeratedSet(t *testing.T) {
	backend := &mockBackend{reply: wellFormedReply}
	result, err := Extract(context.Background(), backend, "10.1000/xyz123", "text", &bytes.Buffer{})
	require.NoError(t, err)

	for _, rec := range result.Records {
		assert.True(t, types.ValidProperty(rec.Property), "property %q not in enumerated set", rec.Property)
	}
}

func TestExtract_MissingClosingBraceIsParseFailure(t *testing.T) {
	raw := `[{"polymer_system": "PS", "force_field": "OPLS-AA", "property": "density", "value": 1.05, "unit": "g/cm³"`
	backend := &mockBackend{reply: raw}

	result, err := Extract(context.Background(), backend, "10.1000/xyz123", "text", &bytes.Buffer{})
	require.NoError(t, err)

	assert.Equal(t, types.ExtractionParseFailed, result.Status)
	assert.Empty(t, result.Records)
	// The unparseable reply is preserved verbatim, never lost.
	assert.Equal(t, raw, result.Raw)
}

func TestExtract_InvalidRecordsDroppedIndividually(t *testing.T) {
	backend := &mockBackend{reply: `[
		{"polymer_system": "PS", "force_field": "OPLS-AA", "property": "density", "value": 1.05, "unit": "g/cm³"},
		{"polymer_system": "PS", "force_field": "OPLS-AA", "property": "melting_point", "value": 400, "unit": "K"},
		{"polymer_system": "PS", "force_field": "OPLS-AA", "property": "viscosity", "value": "not-a-number", "unit": "Pa·s"},
		{"polymer_system": "PS", "force_field": "OPLS-AA", "property": "viscosity", "value": 0.5, "unit": ""},
		{"polymer_system": "PS", "force_field": "OPLS-AA", "property": "viscosity", "unit": "Pa·s"},
		{"polymer_system": "", "force_field": "OPLS-AA", "property": "density", "value": 1.0, "unit": "g/cm³"}
	]`}

	var log bytes.Buffer
	result, err := Extract(context.Background(), backend, "10.1000/xyz123", "text", &log)
	require.NoError(t, err)

	// One valid record survives; each invalid one is dropped with a reason.
	assert.Equal(t, types.ExtractionParsed, result.Status)
	require.Len(t, result.Records, 1)
	require.Len(t, result.Dropped, 5)

	assert.Contains(t, result.Dropped[0], `unknown property "melting_point"`)
	assert.Contains(t, result.Dropped[1], "non-numeric value")
	assert.Contains(t, result.Dropped[2], "value without unit")
	assert.Contains(t, result.Dropped[3], "unit without value")
	assert.Contains(t, result.Dropped[4], "empty polymer_system")
	assert.Contains(t, log.String(), "dropped")
}

func TestExtract_BackendErrorSurfaces(t *testing.T) {
	backend := &mockBackend{err: errors.New("connection refused")}
	_, err := Extract(context.Background(), backend, "10.1000/xyz123", "text", &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "10.1000/xyz123")
}

func TestCleanReply(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  string
	}{
		{"bare json", `[{"a": 1}]`, `[{"a": 1}]`},
		{"json fence", "```json\n[{\"a\": 1}]\n```", `[{"a": 1}]`},
		{"plain fence", "```\n[{\"a\": 1}]\n```", `[{"a": 1}]`},
		{"think section", "<think>reasoning here</think>\n[{\"a\": 1}]", `[{"a": 1}]`},
		{"think then fence", "<think>hmm</think>\n```json\n[]\n```", `[]`},
		{"surrounding whitespace", "  []  ", `[]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanReply(tt.reply))
		})
	}
}

func writeDoc(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestExtractBatch(t *testing.T) {
	docsDir := t.TempDir()
	outDir := t.TempDir()
	writeDoc(t, docsDir, "10.1000-one.md", "article one")
	writeDoc(t, docsDir, "notes.txt", "ignored")

	backend := &mockBackend{reply: wellFormedReply}
	cfg := types.ExtractionConfig{DocsDir: docsDir, OutputDir: outDir}

	var out bytes.Buffer
	summary, err := ExtractBatch(context.Background(), backend, cfg, &out)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Parsed)
	assert.Equal(t, 0, summary.Failed)

	// Output file carries exactly the five record fields.
	records, err := ReadRecords(filepath.Join(outDir, "10.1000-one.json"), "10.1000-one")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, types.PropDensity, records[0].Property)
	assert.Equal(t, types.DOI("10.1000-one"), records[0].DOI)

	// A second run skips the already-extracted document.
	summary, err = ExtractBatch(context.Background(), backend, cfg, &out)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 1, backend.calls)
}

func TestExtractBatch_ParseFailureWritesRawCapture(t *testing.T) {
	docsDir := t.TempDir()
	outDir := t.TempDir()
	writeDoc(t, docsDir, "10.1000-bad.md", "article")

	raw := "I could not find any simulation data in this article."
	backend := &mockBackend{reply: raw}
	cfg := types.ExtractionConfig{DocsDir: docsDir, OutputDir: outDir}

	var out bytes.Buffer
	summary, err := ExtractBatch(context.Background(), backend, cfg, &out)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.ParseFailed)
	data, err := os.ReadFile(filepath.Join(outDir, "10.1000-bad_raw.txt"))
	require.NoError(t, err)
	assert.Equal(t, raw, string(data))

	// No parsed output exists for the failed document.
	_, err = os.Stat(filepath.Join(outDir, "10.1000-bad.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestExtractBatch_CallFailureContinues(t *testing.T) {
	docsDir := t.TempDir()
	outDir := t.TempDir()
	writeDoc(t, docsDir, "10.1000-a.md", "article a")
	writeDoc(t, docsDir, "10.1000-b.md", "article b")

	backend := &failOnceBackend{reply: wellFormedReply}
	cfg := types.ExtractionConfig{DocsDir: docsDir, OutputDir: outDir}

	var out bytes.Buffer
	summary, err := ExtractBatch(context.Background(), backend, cfg, &out)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Parsed)
	assert.True(t, summary.HasFailures())
}

func TestExtractBatch_AuthFailureAbortsRun(t *testing.T) {
	docsDir := t.TempDir()
	outDir := t.TempDir()
	writeDoc(t, docsDir, "10.1000-a.md", "article a")
	writeDoc(t, docsDir, "10.1000-b.md", "article b")
	writeDoc(t, docsDir, "10.1000-c.md", "article c")

	backend := &mockBackend{err: &httputil.Error{
		Kind: httputil.KindAuth, Endpoint: "extraction", Status: 401,
	}}
	cfg := types.ExtractionConfig{DocsDir: docsDir, OutputDir: outDir}

	var out bytes.Buffer
	_, err := ExtractBatch(context.Background(), backend, cfg, &out)
	require.Error(t, err)
	assert.True(t, httputil.IsAuth(err))

	// The batch stops at the first rejection instead of sending every
	// remaining document to the same credential.
	assert.Equal(t, 1, backend.calls)
}

// failOnceBackend fails its first call and succeeds afterwards.
type failOnceBackend struct {
	reply string
	calls int
}

func (b *failOnceBackend) Complete(_ context.Context, _ string) (string, error) {
	b.calls++
	if b.calls == 1 {
		return "", errors.New("transient failure")
	}
	return b.reply, nil
}
