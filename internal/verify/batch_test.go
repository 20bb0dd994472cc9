// Copyright PolyMD Authors, 2026. All rights reserved.

package verify

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const extractedJSON = `[
  {"polymer_system": "Polystyrene (PS)", "force_field": "OPLS-AA", "property": "density", "value": 1.05, "unit": "g/cm³"},
  {"polymer_system": "Polystyrene (PS)", "force_field": "OPLS-AA", "property": "glass_transition_temp", "value": 373, "unit": "K"}
]`

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestVerifyBatch(t *testing.T) {
	docsDir := t.TempDir()
	extractedDir := t.TempDir()
	outputPath := filepath.Join(t.TempDir(), "verification_results.csv")

	writeFile(t, docsDir, "10.1000-one.md", "article one")
	writeFile(t, extractedDir, "10.1000-one.json", extractedJSON)
	// Raw captures from failed extractions are not verification input.
	writeFile(t, extractedDir, "10.1000-bad_raw.txt", "unparsed reply")

	v1 := &fakeVerifier{id: "alpha", reply: fullReply}
	v2 := &fakeVerifier{id: "beta", reply: fullReply}
	engine := newTestEngine(v1, v2)

	var out bytes.Buffer
	verdictRows, summary, err := engine.VerifyBatch(context.Background(), docsDir, extractedDir, outputPath, &out)
	require.NoError(t, err)

	require.Len(t, verdictRows, 2)
	assert.Equal(t, 1, summary.Documents)
	assert.Equal(t, 2, summary.Rows)
	assert.Equal(t, 1, summary.NoCounts["alpha"])
	assert.Equal(t, 1, summary.NoCounts["beta"])

	rows := readCSV(t, outputPath)
	require.Len(t, rows, 3)
	assert.Equal(t, csvHeader, rows[0])

	first := rows[1]
	assert.Equal(t, "10.1000-one", first[0])
	assert.Equal(t, "Polystyrene (PS)", first[1])
	assert.Equal(t, "OPLS-AA", first[2])
	assert.Equal(t, "density", first[3])
	assert.Equal(t, "1.05", first[4])
	assert.Equal(t, "YES", first[5])
	assert.Equal(t, "YES", first[6])

	second := rows[2]
	assert.Equal(t, "NO", second[5])
	assert.Equal(t, "Force field does not match.", second[7])
}

func TestVerifyBatch_MissingArticleStillProducesRows(t *testing.T) {
	docsDir := t.TempDir()
	extractedDir := t.TempDir()
	outputPath := filepath.Join(t.TempDir(), "verification_results.csv")

	writeFile(t, extractedDir, "10.1000-gone.json", extractedJSON)

	v1 := &fakeVerifier{id: "alpha", reply: fullReply}
	v2 := &fakeVerifier{id: "beta", reply: fullReply}
	engine := newTestEngine(v1, v2)

	_, summary, err := engine.VerifyBatch(context.Background(), docsDir, extractedDir, outputPath, &bytes.Buffer{})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.MissingDocs)
	assert.Equal(t, 2, summary.Rows)
	// No verifier was called for the missing article.
	assert.Zero(t, v1.calls)
	assert.Zero(t, v2.calls)

	rows := readCSV(t, outputPath)
	require.Len(t, rows, 3)
	for _, row := range rows[1:] {
		assert.Equal(t, "ERROR", row[5])
		assert.Equal(t, "ERROR", row[6])
		assert.Contains(t, row[7], "article not found")
	}
}

func TestVerifyBatch_EmptyExtractionIsSkipped(t *testing.T) {
	docsDir := t.TempDir()
	extractedDir := t.TempDir()
	outputPath := filepath.Join(t.TempDir(), "verification_results.csv")

	writeFile(t, extractedDir, "10.1000-empty.json", "[]")

	engine := newTestEngine(&fakeVerifier{id: "alpha"}, &fakeVerifier{id: "beta"})
	_, summary, err := engine.VerifyBatch(context.Background(), docsDir, extractedDir, outputPath, &bytes.Buffer{})
	require.NoError(t, err)

	assert.Zero(t, summary.Documents)
	assert.Zero(t, summary.Rows)

	rows := readCSV(t, outputPath)
	require.Len(t, rows, 1)
}
