// Copyright PolyMD Authors, 2026. All rights reserved.

package types

// Bibliographic field names used for provenance tracking and
// missing-field reporting.
const (
	FieldTitle    = "title"
	FieldAbstract = "abstract"
	FieldAuthors  = "authors"
	FieldYear     = "year"
	FieldURL      = "url"
)

// BibRecord holds the bibliographic metadata resolved for one document.
// Fields are filled from providers in priority order, first non-null
// wins per field; Sources records which provider supplied each field.
type BibRecord struct {
	// DOI is the canonical document identifier.
	DOI DOI `json:"doi" yaml:"doi"`

	// Title is the article title.
	Title string `json:"title" yaml:"title"`

	// Abstract is the article abstract, plain text.
	Abstract string `json:"abstract,omitempty" yaml:"abstract,omitempty"`

	// Authors lists article authors in source order.
	Authors []string `json:"authors,omitempty" yaml:"authors,omitempty"`

	// Year is the publication year, 0 when unknown.
	Year int `json:"year,omitempty" yaml:"year,omitempty"`

	// URL is the landing-page or resolver URL.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	// Sources maps each filled field name to the provider that supplied it.
	Sources map[string]string `json:"sources,omitempty" yaml:"sources,omitempty"`
}

// Merge fills empty fields of the record from other, attributing each
// newly filled field to provider. Fields already set are never
// overwritten, which is what makes field-level priority merging
// deterministic regardless of provider arrival order.
func (r *BibRecord) Merge(other BibRecord, provider string) {
	if r.Sources == nil {
		r.Sources = make(map[string]string)
	}
	if r.Title == "" && other.Title != "" {
		r.Title = other.Title
		r.Sources[FieldTitle] = provider
	}
	if r.Abstract == "" && other.Abstract != "" {
		r.Abstract = other.Abstract
		r.Sources[FieldAbstract] = provider
	}
	if len(r.Authors) == 0 && len(other.Authors) > 0 {
		r.Authors = other.Authors
		r.Sources[FieldAuthors] = provider
	}
	if r.Year == 0 && other.Year != 0 {
		r.Year = other.Year
		r.Sources[FieldYear] = provider
	}
	if r.URL == "" && other.URL != "" {
		r.URL = other.URL
		r.Sources[FieldURL] = provider
	}
}

// MissingRequired returns which of the minimum required fields are
// still absent: title, plus at least one of abstract or year.
func (r BibRecord) MissingRequired() []string {
	var missing []string
	if r.Title == "" {
		missing = append(missing, FieldTitle)
	}
	if r.Abstract == "" && r.Year == 0 {
		missing = append(missing, FieldAbstract+"|"+FieldYear)
	}
	return missing
}

// ResolutionFailure records a definitive (non-exceptional) failure to
// resolve a document's metadata. It is a normal, loggable outcome.
type ResolutionFailure struct {
	DOI DOI `json:"doi" yaml:"doi"`

	// MissingFields names the required fields no provider supplied.
	MissingFields []string `json:"missing_fields" yaml:"missing_fields"`
}
