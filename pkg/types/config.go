// Copyright PolyMD Authors, 2026. All rights reserved.

package types

import (
	"fmt"
	"time"
)

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "polymd/0.1 (mailto:someone@example.org)").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// RetryConfig holds retry, backoff, and throttle settings for one
// external endpoint.
type RetryConfig struct {
	// MaxAttempts is the total number of calls allowed for one logical
	// operation, including the first (default 3).
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts"`

	// BaseDelay is the base duration for exponential backoff; the wait
	// before attempt n+1 is BaseDelay * 2^n, capped at MaxBackoff.
	BaseDelay time.Duration `json:"base_delay" yaml:"base_delay"`

	// MaxBackoff caps a single backoff wait (default 2m).
	MaxBackoff time.Duration `json:"max_backoff" yaml:"max_backoff"`

	// MinInterval is the minimum spacing between consecutive calls to
	// the endpoint, shared across all callers (default 1s).
	MinInterval time.Duration `json:"min_interval" yaml:"min_interval"`
}

// Validate checks the retry settings at startup.
func (c RetryConfig) Validate() error {
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("max_attempts must be positive, got %d", c.MaxAttempts)
	}
	if c.BaseDelay <= 0 {
		return fmt.Errorf("base_delay must be positive, got %v", c.BaseDelay)
	}
	if c.MinInterval < 0 {
		return fmt.Errorf("min_interval must not be negative, got %v", c.MinInterval)
	}
	return nil
}

// EndpointConfig identifies one OpenAI-compatible chat endpoint.
type EndpointConfig struct {
	// BaseURL is the API base (e.g. "https://api.perplexity.ai").
	BaseURL string `json:"base_url" yaml:"base_url"`

	// Model is the model identifier requested from the endpoint.
	Model string `json:"model" yaml:"model"`

	// APIKey is the bearer credential. Opaque; never logged.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
}

// ResolveConfig holds settings for the metadata resolution stage.
type ResolveConfig struct {
	HTTPConfig `yaml:",inline"`

	// Retry applies to every provider endpoint.
	Retry RetryConfig `json:"retry" yaml:"retry"`

	// ProviderOrder is the fixed provider priority order for field
	// merging (e.g. ["semantic_scholar", "crossref", "openalex"]).
	ProviderOrder []string `json:"provider_order" yaml:"provider_order"`

	// CacheTTL bounds how long provider responses are memoized per DOI.
	CacheTTL time.Duration `json:"cache_ttl" yaml:"cache_ttl"`

	// OutputDir receives per-document metadata YAML and the batch CSV.
	OutputDir string `json:"output_dir" yaml:"output_dir"`
}

// ExtractionConfig holds settings for the extraction stage.
type ExtractionConfig struct {
	HTTPConfig `yaml:",inline"`

	// Endpoint is the language-model endpoint used for extraction.
	Endpoint EndpointConfig `json:"endpoint" yaml:"endpoint"`

	Retry RetryConfig `json:"retry" yaml:"retry"`

	// DocsDir contains the converted article text, one <slug>.md per document.
	DocsDir string `json:"docs_dir" yaml:"docs_dir"`

	// OutputDir receives <slug>.json (parsed) and <slug>_raw.txt (fallback capture).
	OutputDir string `json:"output_dir" yaml:"output_dir"`
}

// VerifierConfig identifies one configured verifier model.
type VerifierConfig struct {
	// ID is the verifier identity used in verdicts and output columns.
	ID string `json:"id" yaml:"id"`

	EndpointConfig `yaml:",inline"`
}

// UnitConversion converts a source unit to the property's canonical
// unit: canonical = value*Factor + Offset.
type UnitConversion struct {
	Source string  `json:"source" yaml:"source"`
	Factor float64 `json:"factor" yaml:"factor"`
	Offset float64 `json:"offset" yaml:"offset"`
}

// PropertyUnits is the canonical unit for a property and the source
// units convertible to it.
type PropertyUnits struct {
	Canonical   string           `json:"canonical" yaml:"canonical"`
	Conversions []UnitConversion `json:"conversions" yaml:"conversions"`
}

// VerificationConfig holds settings for the verification stage.
type VerificationConfig struct {
	HTTPConfig `yaml:",inline"`

	// Verifiers are the configured verifier endpoints, in output-column order.
	Verifiers []VerifierConfig `json:"verifiers" yaml:"verifiers"`

	Retry RetryConfig `json:"retry" yaml:"retry"`

	// Units is the deterministic unit-conversion table, one entry per
	// enumerated property.
	Units map[Property]PropertyUnits `json:"units" yaml:"units"`

	// OutputPath is the verification results CSV path.
	OutputPath string `json:"output_path" yaml:"output_path"`
}

// StoreConfig holds settings for the run ledger.
type StoreConfig struct {
	// Dir is the directory holding the ledger database.
	Dir string `json:"dir" yaml:"dir"`
}

// PipelineConfig groups all stage configurations.
type PipelineConfig struct {
	Resolve      ResolveConfig      `json:"resolve" yaml:"resolve"`
	Extraction   ExtractionConfig   `json:"extraction" yaml:"extraction"`
	Verification VerificationConfig `json:"verification" yaml:"verification"`
	Store        StoreConfig        `json:"store" yaml:"store"`
}

// verifierCount is fixed by the verification output format, which has
// one answer and one notes column per verifier.
const verifierCount = 2

// Validate checks the whole configuration once at startup. An unknown
// property name or a missing conversion entry for an enumerated
// property is a configuration error here, not a runtime surprise.
func (c PipelineConfig) Validate() error {
	if len(c.Resolve.ProviderOrder) == 0 {
		return fmt.Errorf("resolve: provider_order must name at least one provider")
	}
	seen := make(map[string]bool)
	for _, p := range c.Resolve.ProviderOrder {
		if seen[p] {
			return fmt.Errorf("resolve: duplicate provider %q in provider_order", p)
		}
		seen[p] = true
	}
	if err := c.Resolve.Retry.Validate(); err != nil {
		return fmt.Errorf("resolve: %w", err)
	}
	if err := c.Extraction.Retry.Validate(); err != nil {
		return fmt.Errorf("extraction: %w", err)
	}
	if err := c.Verification.Retry.Validate(); err != nil {
		return fmt.Errorf("verification: %w", err)
	}

	if len(c.Verification.Verifiers) != verifierCount {
		return fmt.Errorf("verification: exactly %d verifiers required, got %d",
			verifierCount, len(c.Verification.Verifiers))
	}
	ids := make(map[string]bool)
	for _, v := range c.Verification.Verifiers {
		if v.ID == "" {
			return fmt.Errorf("verification: verifier with empty id")
		}
		if ids[v.ID] {
			return fmt.Errorf("verification: duplicate verifier id %q", v.ID)
		}
		ids[v.ID] = true
	}

	for prop := range c.Verification.Units {
		if !ValidProperty(prop) {
			return fmt.Errorf("verification: unknown property %q in units table", prop)
		}
	}
	for _, prop := range AllProperties {
		pu, ok := c.Verification.Units[prop]
		if !ok {
			return fmt.Errorf("verification: no unit entry for property %q", prop)
		}
		if pu.Canonical == "" {
			return fmt.Errorf("verification: property %q has no canonical unit", prop)
		}
		for _, conv := range pu.Conversions {
			if conv.Source == "" {
				return fmt.Errorf("verification: property %q has a conversion with empty source unit", prop)
			}
			if conv.Factor == 0 {
				return fmt.Errorf("verification: property %q unit %q has zero conversion factor", prop, conv.Source)
			}
		}
	}
	return nil
}

// DefaultUnits returns the standard unit-conversion table.
func DefaultUnits() map[Property]PropertyUnits {
	return map[Property]PropertyUnits{
		PropDensity: {
			Canonical:   "g/cm³",
			Conversions: []UnitConversion{{Source: "kg/m³", Factor: 0.001}},
		},
		PropGlassTransition: {
			Canonical:   "K",
			Conversions: []UnitConversion{{Source: "°C", Factor: 1, Offset: 273.15}},
		},
		PropRadiusGyration: {
			Canonical:   "nm",
			Conversions: []UnitConversion{{Source: "Å", Factor: 0.1}},
		},
		PropYoungsModulus: {
			Canonical:   "GPa",
			Conversions: []UnitConversion{{Source: "MPa", Factor: 0.001}},
		},
		PropDiffusion: {
			Canonical:   "m²/s",
			Conversions: []UnitConversion{{Source: "cm²/s", Factor: 0.0001}},
		},
		PropViscosity: {
			Canonical:   "Pa·s",
			Conversions: []UnitConversion{{Source: "mPa·s", Factor: 0.001}},
		},
	}
}
