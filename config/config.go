// Package config holds the harvester configuration, loaded with Viper from
// harvester.toml and MARCHARVEST_* environment variables.
package config

import "time"

// Config represents the full harvester configuration
type Config struct {
	Output    OutputConfig    `mapstructure:"output"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Gazetteer GazetteerConfig `mapstructure:"gazetteer"`
	Loc       LocConfig       `mapstructure:"loc"`
	Thesaurus ThesaurusConfig `mapstructure:"thesaurus"`
}

// OutputConfig configures where and how records are written
type OutputConfig struct {
	Directory string `mapstructure:"directory"` // empty = ./output/<today>/
	Format    string `mapstructure:"format"`    // marc | marcxml
}

// FetchConfig configures the retrying fetcher and the batch fetcher
type FetchConfig struct {
	MaxRetries         int     `mapstructure:"max_retries"`          // retry budget per request (default: 5)
	TimeoutSeconds     int     `mapstructure:"timeout_seconds"`      // first-attempt timeout (default: 60)
	TimeoutStepSeconds int     `mapstructure:"timeout_step_seconds"` // escalation per retry (default: 60)
	TimeoutMaxSeconds  int     `mapstructure:"timeout_max_seconds"`  // escalation ceiling (default: 300)
	BackoffSeconds     int     `mapstructure:"backoff_seconds"`      // wait between attempts (default: 2)
	Concurrency        int     `mapstructure:"concurrency"`          // batch fetch worker ceiling (default: 8)
	RequestsPerSecond  float64 `mapstructure:"requests_per_second"`  // polite rate limit, 0 = unlimited
}

// Timeout returns the first-attempt timeout as a duration
func (f FetchConfig) Timeout() time.Duration {
	return time.Duration(f.TimeoutSeconds) * time.Second
}

// TimeoutStep returns the per-retry timeout escalation as a duration
func (f FetchConfig) TimeoutStep() time.Duration {
	return time.Duration(f.TimeoutStepSeconds) * time.Second
}

// TimeoutMax returns the timeout escalation ceiling as a duration
func (f FetchConfig) TimeoutMax() time.Duration {
	return time.Duration(f.TimeoutMaxSeconds) * time.Second
}

// Backoff returns the wait between retry attempts as a duration
func (f FetchConfig) Backoff() time.Duration {
	return time.Duration(f.BackoffSeconds) * time.Second
}

// GazetteerConfig configures the iDAI.gazetteer source
type GazetteerConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	BatchSize int    `mapstructure:"batch_size"` // scroll page size (default: 250)
}

// LocConfig configures the Library of Congress authority feeds
type LocConfig struct {
	Feeds     []string `mapstructure:"feeds"`      // subscribed Atom feed base URLs
	BatchSize int      `mapstructure:"batch_size"` // detail fetch batch size (default: 300)
}

// ThesaurusConfig configures the iDAI.thesauri SKOS source
type ThesaurusConfig struct {
	BaseURL     string `mapstructure:"base_url"`
	RootConcept string `mapstructure:"root_concept"` // traversal entry point
	BatchSize   int    `mapstructure:"batch_size"`   // tree-walk fetch round size (default: 50)
}
