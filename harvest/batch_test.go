package harvest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/dainst/marc-authority-harvester/errors"
)

// stubItem is the wire shape served by the test servers in this file.
type stubItem struct {
	ID           string `json:"id"`
	Label        string `json:"label,omitempty"`
	Lang         string `json:"lang,omitempty"`
	Parent       string `json:"parent,omitempty"`
	AccessDenied bool   `json:"accessDenied,omitempty"`
}

// stubSource decodes stubItem payloads relative to a test server.
type stubSource struct {
	base string
}

func (s *stubSource) Name() string { return "stub" }

func (s *stubSource) DetailURL(id string) string {
	return fmt.Sprintf("%s/doc/%s.json", s.base, id)
}

func (s *stubSource) Decode(_ string, payload []byte) (*Item, error) {
	var raw stubItem
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, err
	}
	item := &Item{ID: raw.ID, Parent: raw.Parent, AccessDenied: raw.AccessDenied}
	if raw.Label != "" {
		item.Preferred = []Label{{Text: raw.Label, Lang: raw.Lang}}
	}
	return item, nil
}

// stubServer serves the given items under /doc/{id}.json and counts requests.
func stubServer(t *testing.T, items ...stubItem) (*httptest.Server, *stubSource, *atomic.Int32) {
	t.Helper()

	byPath := make(map[string]stubItem, len(items))
	for _, item := range items {
		byPath["/doc/"+item.ID+".json"] = item
	}

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		item, ok := byPath[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(item)
	}))
	t.Cleanup(server.Close)

	return server, &stubSource{base: server.URL}, &calls
}

func testBatchFetcher(t *testing.T, server *httptest.Server, source *stubSource, cache *Cache) *BatchFetcher {
	t.Helper()
	log := zaptest.NewLogger(t).Sugar()
	fetcher := NewFetcher(server.Client(), testFetcherConfig(), nil, log)
	return NewBatchFetcher(fetcher, source, cache, 4, log)
}

func TestFetchItemsSkipsFailedItems(t *testing.T) {
	server, source, _ := stubServer(t,
		stubItem{ID: "A", Label: "Alpha"},
		stubItem{ID: "C", Label: "Gamma"},
	)
	batch := testBatchFetcher(t, server, source, NewCache())

	items, err := batch.FetchItems(context.Background(), []string{"A", "B", "C"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrClientStatus))

	// The missing item is dropped, the rest of the batch survives in order.
	require.Len(t, items, 2)
	assert.Equal(t, "A", items[0].ID)
	assert.Equal(t, "C", items[1].ID)
}

func TestFetchItemsUsesCache(t *testing.T) {
	server, source, calls := stubServer(t)
	cache := NewCache()
	cache.Put(&Item{ID: "A", Preferred: []Label{{Text: "Alpha"}}})
	batch := testBatchFetcher(t, server, source, cache)

	items, err := batch.FetchItems(context.Background(), []string{"A"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Alpha", items[0].Preferred[0].Text)
	assert.Equal(t, int32(0), calls.Load())
}

func TestFetchOneCachesResult(t *testing.T) {
	server, source, calls := stubServer(t, stubItem{ID: "A", Label: "Alpha"})
	cache := NewCache()
	batch := testBatchFetcher(t, server, source, cache)

	first, err := batch.FetchOne(context.Background(), "A")
	require.NoError(t, err)

	second, err := batch.FetchOne(context.Background(), "A")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 1, cache.Len())
}

func TestFetchOneDecodeFailureIsFinal(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	source := &stubSource{base: server.URL}
	batch := testBatchFetcher(t, server, source, NewCache())

	_, err := batch.FetchOne(context.Background(), "A")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrDecode))
	assert.False(t, errors.IsRetryable(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestPrefetchWarmsCache(t *testing.T) {
	server, source, _ := stubServer(t,
		stubItem{ID: "P", Label: "Parent"},
		stubItem{ID: "G", Label: "Grandparent"},
	)
	cache := NewCache()
	batch := testBatchFetcher(t, server, source, cache)

	batch.Prefetch(context.Background(), []*Item{
		{ID: "A", Parent: "P", Ancestors: []string{"P", "G"}},
	})

	assert.True(t, cache.Has("P"))
	assert.True(t, cache.Has("G"))
	assert.False(t, cache.Has("A"))
}
