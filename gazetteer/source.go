// Package gazetteer harvests place records from the iDAI.gazetteer service:
// a scroll-cursor search feed over changed places, JSON detail documents, and
// geographic-name authority records with the full ancestor chain as part-of
// references.
package gazetteer

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/dainst/marc-authority-harvester/errors"
	"github.com/dainst/marc-authority-harvester/harvest"
)

// placeIDPattern extracts the numeric gazetteer id from a place URI.
var placeIDPattern = regexp.MustCompile(`.*/place/(\d+)$`)

// placeDocument is the wire shape of a /doc/{id}.json detail document. The
// service also returns geometry attributes (polygons can run to megabytes);
// they are simply not decoded, which is the sanitization pass before caching.
type placeDocument struct {
	URI            string      `json:"@id"`
	GazID          string      `json:"gazId"`
	PrefName       *placeName  `json:"prefName"`
	Names          []placeName `json:"names"`
	Parent         string      `json:"parent"`
	Ancestors      []string    `json:"ancestors"`
	AccessDenied   bool        `json:"accessDenied"`
	LastChangeDate string      `json:"lastChangeDate"`
}

type placeName struct {
	Title    string `json:"title"`
	Language string `json:"language"`
}

// Source adapts the gazetteer wire format to the harvest pipeline. Items are
// keyed by their numeric gazetteer id.
type Source struct {
	baseURL string
}

// NewSource creates the gazetteer source for the given service base URL.
func NewSource(baseURL string) *Source {
	return &Source{baseURL: baseURL}
}

// Name implements harvest.Source.
func (s *Source) Name() string { return "gazetteer" }

// DetailURL implements harvest.Source.
func (s *Source) DetailURL(id string) string {
	return fmt.Sprintf("%s/doc/%s.json", s.baseURL, id)
}

// Decode implements harvest.Source. Place documents describe exactly one
// place, so the requested identifier only serves as a fallback when the
// document carries no usable id of its own.
func (s *Source) Decode(id string, payload []byte) (*harvest.Item, error) {
	var doc placeDocument
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, errors.Wrap(err, "failed to decode place document")
	}

	item := &harvest.Item{
		ID:           doc.GazID,
		AccessDenied: doc.AccessDenied,
	}
	if item.ID == "" && doc.URI != "" {
		item.ID = placeID(doc.URI)
	}
	if item.ID == "" {
		item.ID = id
	}

	if doc.PrefName != nil && doc.PrefName.Title != "" {
		item.Preferred = []harvest.Label{{Text: doc.PrefName.Title, Lang: doc.PrefName.Language}}
	}
	for _, name := range doc.Names {
		item.Variants = append(item.Variants, harvest.Label{Text: name.Title, Lang: name.Language})
	}

	if doc.Parent != "" {
		item.Parent = placeID(doc.Parent)
	}
	for _, ancestor := range doc.Ancestors {
		if id := placeID(ancestor); id != "" {
			item.Ancestors = append(item.Ancestors, id)
		}
	}

	if doc.LastChangeDate != "" {
		if ts, err := harvest.ParseUpstreamTime(doc.LastChangeDate); err == nil {
			item.Modified = ts
		}
	}

	return item, nil
}

// placeID extracts the numeric id from a place URI; empty when the URI does
// not name a place.
func placeID(uri string) string {
	match := placeIDPattern.FindStringSubmatch(uri)
	if match == nil {
		return ""
	}
	return match[1]
}
