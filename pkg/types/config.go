// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "evidence-engine/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// IndexBackend selects the local semantic index implementation.
type IndexBackend string

const (
	IndexHTTP   IndexBackend = "http"
	IndexSQLite IndexBackend = "sqlite"
)

// IndexConfig holds settings for the local semantic index client. The
// index itself is built by an external indexer; this pipeline only reads.
type IndexConfig struct {
	HTTPConfig `yaml:",inline"`

	// Backend selects the adapter: "http" for an index service, "sqlite"
	// for a pre-built local database.
	Backend IndexBackend `json:"backend" yaml:"backend"`

	// BaseURL is the index service endpoint for the http backend.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// DBPath is the pre-built database path for the sqlite backend.
	DBPath string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

// RetrievalConfig holds settings for the tiered retrieval orchestrator.
type RetrievalConfig struct {
	// SimilarityThreshold is the minimum local-index score for a candidate
	// to count toward local coverage (default 0.6).
	SimilarityThreshold float64 `json:"similarity_threshold" yaml:"similarity_threshold"`

	// MinLocalResults is the local coverage needed to skip the external
	// search on the fast path (default 3).
	MinLocalResults int `json:"min_local_results" yaml:"min_local_results"`

	// MaxResults is the default result cap when a request does not set one
	// (default 10).
	MaxResults int `json:"max_results" yaml:"max_results"`

	// FullTextTop is how many top-scored documents receive full-text
	// augmentation when requested (default 3).
	FullTextTop int `json:"full_text_top" yaml:"full_text_top"`

	// RecencyKeywords override the default keyword list of the recency
	// policy. Empty uses the built-in list.
	RecencyKeywords []string `json:"recency_keywords,omitempty" yaml:"recency_keywords,omitempty"`
}

// PubMedConfig holds settings for the external bibliographic search client.
type PubMedConfig struct {
	HTTPConfig `yaml:",inline"`

	// APIKey is an optional NCBI API key for higher rate limits.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// RequestsPerSecond caps outbound request rate. Zero selects the NCBI
	// default for the key state: 3 without an API key, 10 with one.
	RequestsPerSecond int `json:"requests_per_second" yaml:"requests_per_second"`
}

// FullTextConfig holds settings for the full-text augmentation stage.
type FullTextConfig struct {
	HTTPConfig `yaml:",inline"`

	// MaxChars caps retrieved body text to bound downstream processing
	// (default 15000).
	MaxChars int `json:"max_chars" yaml:"max_chars"`
}

// AIConfig holds shared settings for stages that call a Generative AI API.
type AIConfig struct {
	// Model is the AI model identifier (e.g. "claude-sonnet-4-5-20250929").
	// The model identifier is part of every cache key: changing it
	// invalidates prior extractions.
	Model string `json:"model" yaml:"model"`

	// APIKey is the authentication key for the AI API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
}

// ExtractionConfig holds settings for the structured extraction stage.
type ExtractionConfig struct {
	AIConfig `yaml:",inline"`

	// ContentWindow bounds the document text sent to the model. Longer
	// content keeps the head and tail and drops the middle (default 8000).
	ContentWindow int `json:"content_window" yaml:"content_window"`

	// Workers bounds concurrent extraction calls in batch mode (default 3).
	Workers int `json:"workers" yaml:"workers"`

	// CallTimeout bounds a single extraction call (default 120s). A timed
	// out call produces a cached placeholder, not a retry.
	CallTimeout time.Duration `json:"call_timeout" yaml:"call_timeout"`
}

// CacheConfig holds settings for the persistent extraction cache.
type CacheConfig struct {
	// Dir is the directory holding the cache database (default "cache").
	Dir string `json:"dir" yaml:"dir"`
}

// FormatConfig holds settings for the context formatter.
type FormatConfig struct {
	// MaxLength is the hard character budget for the formatted text
	// (default 8000).
	MaxLength int `json:"max_length" yaml:"max_length"`

	// IncludeLow admits LOW-relevance evidence into the output.
	IncludeLow bool `json:"include_low" yaml:"include_low"`
}

// PipelineConfig groups all stage configurations for the pipeline.
type PipelineConfig struct {
	Index      IndexConfig      `json:"index" yaml:"index"`
	Retrieval  RetrievalConfig  `json:"retrieval" yaml:"retrieval"`
	PubMed     PubMedConfig     `json:"pubmed" yaml:"pubmed"`
	FullText   FullTextConfig   `json:"full_text" yaml:"full_text"`
	Extraction ExtractionConfig `json:"extraction" yaml:"extraction"`
	Cache      CacheConfig      `json:"cache" yaml:"cache"`
	Format     FormatConfig     `json:"format" yaml:"format"`
}
