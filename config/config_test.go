package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	cfg, err := LoadWithViper(v)
	require.NoError(t, err)

	assert.Equal(t, "marc", cfg.Output.Format)
	assert.Equal(t, 5, cfg.Fetch.MaxRetries)
	assert.Equal(t, 8, cfg.Fetch.Concurrency)
	assert.Equal(t, 60*time.Second, cfg.Fetch.Timeout())
	assert.Equal(t, 300*time.Second, cfg.Fetch.TimeoutMax())
	assert.Equal(t, "https://gazetteer.dainst.org", cfg.Gazetteer.BaseURL)
	assert.Equal(t, 250, cfg.Gazetteer.BatchSize)
	assert.Len(t, cfg.Loc.Feeds, 2)
	assert.Equal(t, "http://thesauri.dainst.org/_fe65f286", cfg.Thesaurus.RootConcept)
	assert.Equal(t, 50, cfg.Thesaurus.BatchSize)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "harvester.toml")
	content := `
[output]
format = "marcxml"

[fetch]
max_retries = 2
concurrency = 4

[gazetteer]
batch_size = 50
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "marcxml", cfg.Output.Format)
	assert.Equal(t, 2, cfg.Fetch.MaxRetries)
	assert.Equal(t, 4, cfg.Fetch.Concurrency)
	assert.Equal(t, 50, cfg.Gazetteer.BatchSize)
	// Untouched values keep their defaults
	assert.Equal(t, 300, cfg.Fetch.TimeoutMaxSeconds)
}

func TestLoadFromFileMissing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}
