// Copyright PolyMD Authors, 2026. All rights reserved.

package types

import (
	"regexp"
	"strings"
)

// DOI is a normalized document identifier. Construct values with
// NormalizeDOI so that identifiers differing only in case or prefix
// formatting compare equal before any lookup or deduplication.
type DOI string

// doiPattern matches bare DOIs: "10.1000/xyz123".
var doiPattern = regexp.MustCompile(`^10\.\d{4,9}/\S+$`)

// doiPrefixes are stripped before validation, longest first.
var doiPrefixes = []string{
	"https://doi.org/",
	"http://doi.org/",
	"https://dx.doi.org/",
	"http://dx.doi.org/",
	"doi:",
}

// NormalizeDOI canonicalizes an identifier: trims whitespace, strips
// resolver-URL and "doi:" prefixes, and lowercases the result.
func NormalizeDOI(raw string) DOI {
	s := strings.TrimSpace(raw)
	lower := strings.ToLower(s)
	for _, p := range doiPrefixes {
		if strings.HasPrefix(lower, p) {
			s = s[len(p):]
			break
		}
	}
	return DOI(strings.ToLower(strings.TrimSpace(s)))
}

// IsValid reports whether the DOI matches the registered-DOI syntax.
func (d DOI) IsValid() bool {
	return doiPattern.MatchString(string(d))
}

func (d DOI) String() string { return string(d) }

// Slug returns a filesystem-safe filename stem for the DOI.
func (d DOI) Slug() string {
	return strings.NewReplacer("/", "-", ":", "-").Replace(string(d))
}
