// Copyright PolyMD Authors, 2026. All rights reserved.

// Package secrets loads API keys and credentials from a directory of plain-text files.
// Each file in the directory represents one secret: the filename is the key name and the
// file contents (trimmed) are the value.
//
// Supported key files: semantic-scholar-api-key, crossref-mailto, openalex-email,
// extraction-api-key, and verifier-<id>-api-key for each configured verifier.
//
// Secret values are opaque tokens. They are attached to outgoing requests and are
// never logged or echoed back.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Well-known key names.
const (
	KeySemanticScholar = "semantic-scholar-api-key"
	KeyCrossrefMailto  = "crossref-mailto"
	KeyOpenAlexEmail   = "openalex-email"
	KeyExtraction      = "extraction-api-key"
)

// VerifierKey returns the key file name for one configured verifier,
// e.g. "verifier-gpt-api-key" for verifier id "gpt".
func VerifierKey(id string) string {
	return "verifier-" + id + "-api-key"
}

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory or missing files are not errors; Load returns an empty map.
// Unreadable files produce a warning on stderr but do not abort.
func Load(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not read secret %s: %v\n", name, err)
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}
