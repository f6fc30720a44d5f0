package config

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/dainst/marc-authority-harvester/errors"
)

// Load reads the harvester configuration using Viper. Precedence:
// defaults < harvester.toml (working directory) < environment variables.
func Load() (*Config, error) {
	v := viper.New()

	v.SetEnvPrefix("MARCHARVEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	v.SetConfigName("harvester")
	v.SetConfigType("toml")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults and env cover everything
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "failed to read config file")
		}
	}

	return LoadWithViper(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", configPath)
	}

	return LoadWithViper(v)
}

// LoadWithViper loads configuration using a provided Viper instance
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	return &config, nil
}

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Output defaults; empty directory means ./output/<today>/
	v.SetDefault("output.directory", "")
	v.SetDefault("output.format", "marc")

	// Fetch defaults: escalation 60s -> 300s mirrors the upstream service's
	// observed slow responses under load
	v.SetDefault("fetch.max_retries", 5)
	v.SetDefault("fetch.timeout_seconds", 60)
	v.SetDefault("fetch.timeout_step_seconds", 60)
	v.SetDefault("fetch.timeout_max_seconds", 300)
	v.SetDefault("fetch.backoff_seconds", 2)
	v.SetDefault("fetch.concurrency", 8)
	v.SetDefault("fetch.requests_per_second", 0.0)

	// iDAI.gazetteer
	v.SetDefault("gazetteer.base_url", "https://gazetteer.dainst.org")
	v.SetDefault("gazetteer.batch_size", 250)

	// Library of Congress authority feeds
	v.SetDefault("loc.feeds", []string{
		"http://id.loc.gov/authorities/names/feed/",
		"http://id.loc.gov/authorities/subjects/feed/",
	})
	v.SetDefault("loc.batch_size", 300)

	// iDAI.thesauri
	v.SetDefault("thesaurus.base_url", "http://thesauri.dainst.org/")
	v.SetDefault("thesaurus.root_concept", "http://thesauri.dainst.org/_fe65f286")
	v.SetDefault("thesaurus.batch_size", 50)
}
