package harvest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/dainst/marc-authority-harvester/errors"
)

type fakeHarvester struct {
	name   string
	err    error
	called bool
}

func (f *fakeHarvester) Name() string { return f.name }

func (f *fakeHarvester) Harvest(ctx context.Context, window Window, outputDir string) error {
	f.called = true
	return f.err
}

func TestRunnerContinuesPastFailedSource(t *testing.T) {
	failing := &fakeHarvester{name: "gazetteer", err: errors.New("service down")}
	healthy := &fakeHarvester{name: "thesaurus"}

	runner := NewRunner(zaptest.NewLogger(t).Sugar(), failing, healthy)
	err := runner.Run(context.Background(), Window{}, t.TempDir())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "gazetteer")
	assert.True(t, failing.called)
	assert.True(t, healthy.called)
}

func TestRunnerAllHealthy(t *testing.T) {
	first := &fakeHarvester{name: "gazetteer"}
	second := &fakeHarvester{name: "loc"}

	runner := NewRunner(zaptest.NewLogger(t).Sugar(), first, second)
	require.NoError(t, runner.Run(context.Background(), Window{}, t.TempDir()))
	assert.True(t, first.called)
	assert.True(t, second.called)
}

func TestRunnerStopsOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	skipped := &fakeHarvester{name: "loc"}
	runner := NewRunner(zaptest.NewLogger(t).Sugar(), skipped)

	err := runner.Run(ctx, Window{}, t.TempDir())
	require.Error(t, err)
	assert.False(t, skipped.called)
}

func TestCacheFirstWriteWins(t *testing.T) {
	cache := NewCache()

	first := &Item{ID: "A", Preferred: []Label{{Text: "first"}}}
	cache.Put(first)
	cache.Put(&Item{ID: "A", Preferred: []Label{{Text: "second"}}})

	got, ok := cache.Get("A")
	require.True(t, ok)
	assert.Same(t, first, got)
	assert.Equal(t, 1, cache.Len())
}

func TestCacheIgnoresInvalidItems(t *testing.T) {
	cache := NewCache()
	cache.Put(nil)
	cache.Put(&Item{})
	assert.Equal(t, 0, cache.Len())
}
