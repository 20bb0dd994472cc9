// Copyright PolyMD Authors, 2026. All rights reserved.

package types

// Property enumerates the polymer properties the pipeline extracts.
// Any other property name is rejected before storage.
type Property string

const (
	PropDensity         Property = "density"
	PropGlassTransition Property = "glass_transition_temp"
	PropRadiusGyration  Property = "radius_gyration"
	PropYoungsModulus   Property = "youngs_modulus"
	PropDiffusion       Property = "diffusion_coefficient"
	PropViscosity       Property = "viscosity"
)

// AllProperties lists the enumerated property set in display order.
var AllProperties = []Property{
	PropDensity,
	PropGlassTransition,
	PropRadiusGyration,
	PropYoungsModulus,
	PropDiffusion,
	PropViscosity,
}

// ValidProperty reports whether p is one of the enumerated properties.
func ValidProperty(p Property) bool {
	for _, known := range AllProperties {
		if p == known {
			return true
		}
	}
	return false
}

// PropertyRecord is one extracted numeric property value. Value and
// Unit are present together; a record with one but not the other is
// invalid and is dropped during extraction validation.
type PropertyRecord struct {
	// PolymerSystem names the simulated polymer (e.g. "Polystyrene (PS)").
	PolymerSystem string `json:"polymer_system" yaml:"polymer_system"`

	// ForceField names the simulation force field (e.g. "OPLS-AA").
	ForceField string `json:"force_field" yaml:"force_field"`

	// Property is one of the enumerated property names.
	Property Property `json:"property" yaml:"property"`

	// Value is the numeric property value.
	Value float64 `json:"value" yaml:"value"`

	// Unit is the unit the value is expressed in.
	Unit string `json:"unit" yaml:"unit"`

	// DOI identifies the source document.
	DOI DOI `json:"doi,omitempty" yaml:"doi,omitempty"`
}

// ExtractionStatus indicates whether a model reply parsed against the schema.
type ExtractionStatus string

const (
	ExtractionParsed      ExtractionStatus = "parsed"
	ExtractionParseFailed ExtractionStatus = "parse_failed"
)

// ExtractionResult is the outcome of one extraction run over one
// document. Created once per document per run and immutable afterwards;
// results are never merged across runs. On parse failure the verbatim
// model reply is preserved in Raw for offline inspection.
type ExtractionResult struct {
	DOI    DOI              `json:"doi" yaml:"doi"`
	Status ExtractionStatus `json:"status" yaml:"status"`

	// Records holds the validated property records when Status is parsed.
	Records []PropertyRecord `json:"records,omitempty" yaml:"records,omitempty"`

	// Raw is the unparsed model reply, set only when Status is parse_failed.
	Raw string `json:"raw,omitempty" yaml:"raw,omitempty"`

	// Dropped lists reasons for records that failed field-level
	// validation and were dropped individually.
	Dropped []string `json:"dropped,omitempty" yaml:"dropped,omitempty"`
}
