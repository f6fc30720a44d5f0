// Package loc harvests name and subject authority records from the Library
// of Congress change feeds. Each feed is a page-numbered Atom feed whose
// entries link to finished MARCXML authority records; records pass through
// unchanged and are routed into output files by their heading field.
package loc

import (
	"github.com/dainst/marc-authority-harvester/harvest"
	"github.com/dainst/marc-authority-harvester/marc"
)

// headingTags are the 1xx fields the harvester routes by, in probe order.
var headingTags = []string{"100", "110", "111", "130"}

// Source adapts LoC detail documents to the harvest pipeline. Identifiers
// are the absolute MARCXML document URLs from the feed entries.
type Source struct{}

// NewSource creates the LoC source.
func NewSource() *Source { return &Source{} }

// Name implements harvest.Source.
func (s *Source) Name() string { return "loc" }

// DetailURL implements harvest.Source; feed links are already absolute.
func (s *Source) DetailURL(id string) string { return id }

// Decode implements harvest.Source. The payload already is a finished
// authority record; it is carried through on the item and routed by its
// heading field downstream. Items stay keyed by the document URL so the run
// cache matches the feed's links.
func (s *Source) Decode(id string, payload []byte) (*harvest.Item, error) {
	records, err := marc.DecodeXML(payload)
	if err != nil {
		return nil, err
	}
	record := records[0]

	item := &harvest.Item{ID: id, Record: record}
	if tag := RouteTag(record); tag != "" {
		field := record.GetField(tag)
		item.Preferred = []harvest.Label{{Text: field.SubfieldValue('a')}}
	}
	return item, nil
}

// RouteTag returns the heading field deciding which output file a record
// belongs to, or "" for records without a routable heading.
func RouteTag(record *marc.Record) string {
	if record == nil {
		return ""
	}
	for _, tag := range headingTags {
		if record.GetField(tag) != nil {
			return tag
		}
	}
	return ""
}
