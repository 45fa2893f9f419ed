package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "fulltext-engine/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// FulltextConfig holds settings for the acquisition pipeline.
type FulltextConfig struct {
	HTTPConfig `yaml:",inline"`

	// OutputDir is where the result set, failure ledger, and run summary
	// are written.
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	// ResolveBatchSize is the number of identifiers per bulk resolution call.
	ResolveBatchSize int `json:"resolve_batch_size" yaml:"resolve_batch_size"`

	// FetchBatchSize is the number of canonical IDs per bulk fetch call.
	FetchBatchSize int `json:"fetch_batch_size" yaml:"fetch_batch_size"`

	// Workers is the number of concurrent batch workers.
	Workers int `json:"workers" yaml:"workers"`

	// BatchDelay is the politeness pause each worker takes after
	// completing a batch.
	BatchDelay time.Duration `json:"batch_delay" yaml:"batch_delay"`

	// MinFulltextChars is the minimum body length for a record to count
	// as full text rather than abstract-only.
	MinFulltextChars int `json:"min_fulltext_chars" yaml:"min_fulltext_chars"`

	// RequireFulltext rejects records whose body falls below
	// MinFulltextChars. When false, abstract-only records are kept.
	RequireFulltext bool `json:"require_fulltext" yaml:"require_fulltext"`

	// FallbackEnabled allows single-item fallback fetches through the
	// source's alternate endpoints when the bulk fetch misses an ID.
	// Disable for throughput-sensitive runs.
	FallbackEnabled bool `json:"fallback_enabled" yaml:"fallback_enabled"`
}

// PMCConfig holds settings for the PubMed Central source adapter.
type PMCConfig struct {
	HTTPConfig `yaml:",inline"`

	// APIKey is an optional NCBI API key. With a key NCBI allows 10
	// requests per second instead of 3.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// Contact is an email address sent to EuropePMC per their usage policy.
	Contact string `json:"contact,omitempty" yaml:"contact,omitempty"`
}

// SpringerConfig holds settings for the Springer OpenAccess source adapter.
type SpringerConfig struct {
	HTTPConfig `yaml:",inline"`

	// APIKey is the Springer Nature API key. Required: the adapter fails
	// at construction when it is absent.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// RequestsPerMinute caps outbound calls in any sliding 60 s window
	// (default 90).
	RequestsPerMinute int `json:"requests_per_minute" yaml:"requests_per_minute"`
}

// IndexConfig holds settings for the SQLite article index.
type IndexConfig struct {
	// IndexDir is the directory holding the index database.
	IndexDir string `json:"index_dir" yaml:"index_dir"`

	// MaxResults is the default maximum number of query results (default 20).
	MaxResults int `json:"max_results" yaml:"max_results"`
}
