package gazetteer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/dainst/marc-authority-harvester/config"
	"github.com/dainst/marc-authority-harvester/harvest"
	"github.com/dainst/marc-authority-harvester/marc"
)

// gazetteerStub serves a one-page scroll search plus place detail documents.
type gazetteerStub struct {
	places map[string]map[string]any
	page   []map[string]any
}

func (g *gazetteerStub) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/search.json":
			page := map[string]any{
				"total":    len(g.page),
				"scrollId": "cursor-1",
				"result":   g.page,
			}
			if r.URL.Query().Get("scrollId") != "" {
				page["result"] = []map[string]any{}
			}
			json.NewEncoder(w).Encode(page)
		default:
			id := filepath.Base(r.URL.Path)
			place, ok := g.places[id]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			json.NewEncoder(w).Encode(place)
		}
	}
}

func testHarvester(t *testing.T, server *httptest.Server) *Harvester {
	t.Helper()
	fetch := config.FetchConfig{
		MaxRetries:         1,
		TimeoutSeconds:     5,
		TimeoutStepSeconds: 5,
		TimeoutMaxSeconds:  10,
		BackoffSeconds:     0,
		Concurrency:        4,
	}
	cfg := config.GazetteerConfig{BaseURL: server.URL, BatchSize: 250}
	return New(cfg, fetch, server.Client(), harvest.FormatMARC, zaptest.NewLogger(t).Sugar())
}

func harvestedRecords(t *testing.T, h *Harvester) []*marc.Record {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, h.Harvest(context.Background(), harvest.Window{}, dir))

	raw, err := os.ReadFile(filepath.Join(dir, "gazetteer_authority.mrc"))
	require.NoError(t, err)
	records, err := marc.DecodeAll(raw)
	require.NoError(t, err)
	return records
}

func TestHarvestResolvesAncestorChain(t *testing.T) {
	stub := &gazetteerStub{
		places: map[string]map[string]any{
			"1.json": {
				"@id":      "https://gazetteer.dainst.org/place/1",
				"gazId":    "1",
				"prefName": map[string]any{"title": "Italien", "language": "de"},
			},
			"2.json": {
				"@id":      "https://gazetteer.dainst.org/place/2",
				"gazId":    "2",
				"prefName": map[string]any{"title": "Rom", "language": "de"},
				"names": []map[string]any{
					{"title": "Roma", "language": "it"},
					{"title": "Rome"},
				},
				"parent": "https://gazetteer.dainst.org/place/1",
			},
		},
		page: []map[string]any{
			{"@id": "https://gazetteer.dainst.org/place/1", "gazId": "1"},
			{"@id": "https://gazetteer.dainst.org/place/2", "gazId": "2"},
		},
	}
	server := httptest.NewServer(stub.handler(t))
	defer server.Close()

	records := harvestedRecords(t, testHarvester(t, server))
	require.Len(t, records, 2)

	byID := map[string]*marc.Record{}
	for _, r := range records {
		byID[r.GetField("024").SubfieldValue('a')] = r
	}

	root := byID["1"]
	require.NotNil(t, root)
	assert.Equal(t, "Italien", root.GetField("151").SubfieldValue('a'))
	assert.Empty(t, root.GetFields("551"))

	child := byID["2"]
	require.NotNil(t, child)
	assert.Equal(t, "Rom", child.GetField("151").SubfieldValue('a'))
	assert.Equal(t, "iDAI.gazetteer", child.GetField("040").SubfieldValue('a'))

	variants := child.GetFields("451")
	require.Len(t, variants, 2)
	assert.Equal(t, "Roma", variants[0].SubfieldValue('a'))
	assert.Equal(t, "it", variants[0].SubfieldValue('l'))
	assert.Equal(t, "", variants[1].SubfieldValue('l'))

	broader := child.GetFields("551")
	require.Len(t, broader, 1)
	assert.Equal(t, "Italien", broader[0].SubfieldValue('a'))
	assert.Equal(t, "part of", broader[0].SubfieldValue('x'))
	assert.Equal(t, "ancestor of order 1", broader[0].SubfieldValue('i'))
}

func TestHarvestAccessDeniedParentYieldsNoBroader(t *testing.T) {
	stub := &gazetteerStub{
		places: map[string]map[string]any{
			"1.json": {
				"@id":          "https://gazetteer.dainst.org/place/1",
				"gazId":        "1",
				"accessDenied": true,
			},
			"2.json": {
				"@id":      "https://gazetteer.dainst.org/place/2",
				"gazId":    "2",
				"prefName": map[string]any{"title": "Rom", "language": "de"},
				"parent":   "https://gazetteer.dainst.org/place/1",
			},
		},
		page: []map[string]any{
			{"@id": "https://gazetteer.dainst.org/place/2", "gazId": "2"},
		},
	}
	server := httptest.NewServer(stub.handler(t))
	defer server.Close()

	records := harvestedRecords(t, testHarvester(t, server))
	require.Len(t, records, 1)
	assert.Empty(t, records[0].GetFields("551"))
}

func TestHarvestDropsUnnamedPlaces(t *testing.T) {
	stub := &gazetteerStub{
		places: map[string]map[string]any{
			"1.json": {
				"@id":   "https://gazetteer.dainst.org/place/1",
				"gazId": "1",
			},
			"2.json": {
				"@id":      "https://gazetteer.dainst.org/place/2",
				"gazId":    "2",
				"prefName": map[string]any{"title": "Rom", "language": "de"},
			},
		},
		page: []map[string]any{
			{"@id": "https://gazetteer.dainst.org/place/1", "gazId": "1"},
			{"@id": "https://gazetteer.dainst.org/place/2", "gazId": "2"},
		},
	}
	server := httptest.NewServer(stub.handler(t))
	defer server.Close()

	records := harvestedRecords(t, testHarvester(t, server))
	require.Len(t, records, 1)
	assert.Equal(t, "2", records[0].GetField("024").SubfieldValue('a'))
}

func TestHarvestDeduplicatesFeedEntries(t *testing.T) {
	stub := &gazetteerStub{
		places: map[string]map[string]any{
			"1.json": {
				"@id":      "https://gazetteer.dainst.org/place/1",
				"gazId":    "1",
				"prefName": map[string]any{"title": "Athen", "language": "de"},
			},
		},
		page: []map[string]any{
			{"@id": "https://gazetteer.dainst.org/place/1", "gazId": "1"},
			{"@id": "https://gazetteer.dainst.org/place/1", "gazId": "1"},
		},
	}
	server := httptest.NewServer(stub.handler(t))
	defer server.Close()

	records := harvestedRecords(t, testHarvester(t, server))
	require.Len(t, records, 1)
}

func TestScrollFeedPassesCursor(t *testing.T) {
	var queries []url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queries = append(queries, r.URL.Query())
		page := searchPage{Total: 600, ScrollID: "cursor-42"}
		if len(queries) > 1 {
			page.Result = nil
		} else {
			page.Result = []placeDocument{{GazID: "1"}}
		}
		json.NewEncoder(w).Encode(page)
	}))
	defer server.Close()

	log := zaptest.NewLogger(t).Sugar()
	source := NewSource(server.URL)
	fetcher := harvest.NewFetcher(server.Client(), harvest.FetcherConfig{Timeout: 5 * time.Second}, nil, log)
	feed := newScrollFeed(fetcher, source, harvest.Window{}, 250, log)

	refs, done, err := feed.Next(context.Background())
	require.NoError(t, err)
	assert.False(t, done)
	require.Len(t, refs, 1)
	assert.Equal(t, "true", queries[0].Get("scroll"))
	assert.Equal(t, "*", queries[0].Get("q"))

	_, done, err = feed.Next(context.Background())
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, "cursor-42", queries[1].Get("scrollId"))
	assert.Empty(t, queries[1].Get("scroll"))
}

func TestDecodeStripsGeometry(t *testing.T) {
	payload := []byte(`{
		"@id": "https://gazetteer.dainst.org/place/2048575",
		"gazId": "2048575",
		"prefName": {"title": "Pergamon", "language": "de"},
		"parent": "https://gazetteer.dainst.org/place/7",
		"ancestors": ["https://gazetteer.dainst.org/place/7", "https://gazetteer.dainst.org/place/3"],
		"prefLocation": {"shape": [[[27.18, 39.13], [27.19, 39.14]]]},
		"lastChangeDate": "2024-03-05"
	}`)

	item, err := NewSource("https://gazetteer.dainst.org").Decode("2048575", payload)
	require.NoError(t, err)
	assert.Equal(t, "2048575", item.ID)
	assert.Equal(t, "7", item.Parent)
	assert.Equal(t, []string{"7", "3"}, item.Ancestors)
	assert.Equal(t, "Pergamon", item.Preferred[0].Text)
	assert.Equal(t, 2024, item.Modified.Year())
}

func TestPlaceIDExtraction(t *testing.T) {
	assert.Equal(t, "123", placeID("https://gazetteer.dainst.org/place/123"))
	assert.Equal(t, "", placeID("https://gazetteer.dainst.org/doc/123.json"))
	assert.Equal(t, "", placeID(""))
}
