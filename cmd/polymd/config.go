// Copyright PolyMD Authors, 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"github.com/apaudelx/PolyMD/internal/secrets"
	"github.com/apaudelx/PolyMD/pkg/types"
)

const defaultUserAgent = "polymd/0.1"

func setConfigDefaults() {
	viper.SetDefault("resolve.timeout", "60s")
	viper.SetDefault("resolve.provider_order", []string{"semantic_scholar", "crossref", "openalex"})
	viper.SetDefault("resolve.cache_ttl", "1h")
	viper.SetDefault("resolve.output_dir", "papers")

	viper.SetDefault("extraction.timeout", "5m")
	viper.SetDefault("extraction.endpoint.base_url", "https://api.perplexity.ai")
	viper.SetDefault("extraction.endpoint.model", "sonar-pro")
	viper.SetDefault("extraction.docs_dir", "docs")
	viper.SetDefault("extraction.output_dir", "extracted")

	viper.SetDefault("verification.timeout", "5m")
	viper.SetDefault("verification.output_path", "verification_results.csv")

	viper.SetDefault("store.dir", "ledger")

	for _, stage := range []string{"resolve", "extraction", "verification"} {
		viper.SetDefault(stage+".retry.max_attempts", 3)
		viper.SetDefault(stage+".retry.base_delay", "1s")
		viper.SetDefault(stage+".retry.max_backoff", "2m")
		viper.SetDefault(stage+".retry.min_interval", "1s")
	}
}

// pipelineConfig assembles the full pipeline configuration from viper
// and loaded secrets, then validates it. Every tunable lives in the
// config surface; validation failure aborts the run before any network
// call.
func pipelineConfig() (types.PipelineConfig, error) {
	cfg := types.PipelineConfig{
		Resolve: types.ResolveConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   viper.GetDuration("resolve.timeout"),
				UserAgent: userAgent(),
			},
			Retry:         retryConfig("resolve"),
			ProviderOrder: viper.GetStringSlice("resolve.provider_order"),
			CacheTTL:      viper.GetDuration("resolve.cache_ttl"),
			OutputDir:     viper.GetString("resolve.output_dir"),
		},
		Extraction: types.ExtractionConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   viper.GetDuration("extraction.timeout"),
				UserAgent: userAgent(),
			},
			Endpoint: types.EndpointConfig{
				BaseURL: viper.GetString("extraction.endpoint.base_url"),
				Model:   viper.GetString("extraction.endpoint.model"),
				APIKey:  loadedSecrets[secrets.KeyExtraction],
			},
			Retry:     retryConfig("extraction"),
			DocsDir:   viper.GetString("extraction.docs_dir"),
			OutputDir: viper.GetString("extraction.output_dir"),
		},
		Verification: types.VerificationConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   viper.GetDuration("verification.timeout"),
				UserAgent: userAgent(),
			},
			Retry:      retryConfig("verification"),
			Units:      types.DefaultUnits(),
			OutputPath: viper.GetString("verification.output_path"),
		},
		Store: types.StoreConfig{Dir: viper.GetString("store.dir")},
	}

	verifiers := defaultVerifiers()
	if raw := viper.Get("verification.verifiers"); raw != nil {
		verifiers = nil
		if err := decodeYAML(raw, &verifiers); err != nil {
			return cfg, fmt.Errorf("verification.verifiers: %w", err)
		}
	}
	for i := range verifiers {
		if verifiers[i].APIKey == "" {
			verifiers[i].APIKey = loadedSecrets[secrets.VerifierKey(verifiers[i].ID)]
		}
	}
	cfg.Verification.Verifiers = verifiers

	if raw := viper.Get("verification.units"); raw != nil {
		units := make(map[types.Property]types.PropertyUnits)
		if err := decodeYAML(raw, &units); err != nil {
			return cfg, fmt.Errorf("verification.units: %w", err)
		}
		cfg.Verification.Units = units
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func retryConfig(stage string) types.RetryConfig {
	return types.RetryConfig{
		MaxAttempts: viper.GetInt(stage + ".retry.max_attempts"),
		BaseDelay:   viper.GetDuration(stage + ".retry.base_delay"),
		MaxBackoff:  viper.GetDuration(stage + ".retry.max_backoff"),
		MinInterval: viper.GetDuration(stage + ".retry.min_interval"),
	}
}

func defaultVerifiers() []types.VerifierConfig {
	return []types.VerifierConfig{
		{ID: "gpt", EndpointConfig: types.EndpointConfig{
			BaseURL: "https://api.openai.com/v1", Model: "gpt-5.2"}},
		{ID: "deepseek", EndpointConfig: types.EndpointConfig{
			BaseURL: "https://api.deepseek.com", Model: "deepseek-chat"}},
	}
}

// decodeYAML re-marshals a viper subtree through YAML so nested config
// structures decode with the same struct tags as the config file itself.
func decodeYAML(raw any, out any) error {
	data, err := yaml.Marshal(raw)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, out)
}

// userAgent includes a contact address when one is configured; the
// bibliographic APIs route polite-pool traffic by it.
func userAgent() string {
	if mailto := loadedSecrets[secrets.KeyCrossrefMailto]; mailto != "" {
		return fmt.Sprintf("%s (mailto:%s)", defaultUserAgent, mailto)
	}
	return defaultUserAgent
}
