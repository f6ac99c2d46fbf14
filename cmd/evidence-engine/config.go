// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/pdiddy/evidence-engine/internal/evidence"
	"github.com/pdiddy/evidence-engine/internal/fulltext"
	"github.com/pdiddy/evidence-engine/internal/index"
	"github.com/pdiddy/evidence-engine/internal/pubmed"
	"github.com/pdiddy/evidence-engine/internal/retrieval"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

// loadPipelineConfig assembles the pipeline configuration from the config
// file, environment, and loaded secrets. Zero values are filled with
// defaults by the stage constructors.
func loadPipelineConfig() types.PipelineConfig {
	var cfg types.PipelineConfig

	cfg.Index.Backend = types.IndexBackend(stringOr("index.backend", string(types.IndexHTTP)))
	cfg.Index.BaseURL = stringOr("index.base_url", "http://localhost:8100")
	cfg.Index.DBPath = viper.GetString("index.db_path")

	cfg.Retrieval.SimilarityThreshold = viper.GetFloat64("retrieval.similarity_threshold")
	cfg.Retrieval.MinLocalResults = viper.GetInt("retrieval.min_local_results")
	cfg.Retrieval.MaxResults = viper.GetInt("retrieval.max_results")
	cfg.Retrieval.FullTextTop = viper.GetInt("retrieval.full_text_top")
	cfg.Retrieval.RecencyKeywords = viper.GetStringSlice("retrieval.recency_keywords")

	cfg.PubMed.APIKey = secretDefault("ncbi-api-key", viper.GetString("pubmed.api_key"))
	cfg.PubMed.RequestsPerSecond = viper.GetInt("pubmed.requests_per_second")
	cfg.PubMed.UserAgent = userAgent()

	cfg.FullText.MaxChars = viper.GetInt("full_text.max_chars")
	cfg.FullText.UserAgent = userAgent()

	cfg.Extraction.Model = stringOr("extraction.model", "claude-sonnet-4-5-20250929")
	cfg.Extraction.APIKey = secretDefault("anthropic-api-key", viper.GetString("extraction.api_key"))
	cfg.Extraction.ContentWindow = viper.GetInt("extraction.content_window")
	cfg.Extraction.Workers = viper.GetInt("extraction.workers")
	cfg.Extraction.CallTimeout = viper.GetDuration("extraction.call_timeout")

	cfg.Cache.Dir = stringOr("cache.dir", "cache")

	cfg.Format.MaxLength = viper.GetInt("format.max_length")
	cfg.Format.IncludeLow = viper.GetBool("format.include_low")

	return cfg
}

func stringOr(key, fallback string) string {
	if v := viper.GetString(key); v != "" {
		return v
	}
	return fallback
}

func userAgent() string {
	return "evidence-engine/" + version
}

// buildOrchestrator wires the retrieval tiers from configuration.
func buildOrchestrator(cfg types.PipelineConfig) (*retrieval.Orchestrator, error) {
	idx, err := index.New(cfg.Index)
	if err != nil {
		return nil, fmt.Errorf("building index client: %w", err)
	}
	external := pubmed.NewClient(cfg.PubMed)
	fetcher := fulltext.NewFetcher(cfg.FullText)
	return retrieval.NewOrchestrator(idx, external, fetcher, nil, cfg.Retrieval), nil
}

// buildModelBackend selects the extraction backend and wraps it with the
// circuit breaker.
func buildModelBackend(cfg types.ExtractionConfig, backendName string) (evidence.ModelBackend, error) {
	var backend evidence.ModelBackend
	switch backendName {
	case "", "claude":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("anthropic API key required: set .secrets/anthropic-api-key or extraction.api_key")
		}
		backend = &evidence.ClaudeBackend{APIKey: cfg.APIKey, Model: cfg.Model}
	case "ollama":
		backend = &evidence.OllamaBackend{Model: cfg.Model}
	default:
		return nil, fmt.Errorf("unknown extraction backend %q: use claude or ollama", backendName)
	}
	return evidence.NewBreakerBackend(backend), nil
}
