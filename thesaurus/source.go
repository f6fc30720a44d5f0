// Package thesaurus harvests concepts from the iDAI.thesauri SKOS service.
// The concept tree is traversed top-down over skos:narrower references with
// an explicit work list, and each concept becomes a topical-term authority
// record with its German preferred label as the heading.
package thesaurus

import (
	"encoding/xml"
	"strings"
	"time"

	"github.com/dainst/marc-authority-harvester/errors"
	"github.com/dainst/marc-authority-harvester/harvest"
)

// rdfDocument is the subset of a concept's RDF/XML representation the
// harvester reads. Element and attribute names are matched by local name;
// the documents qualify everything with rdf/skos/dct prefixes.
type rdfDocument struct {
	Descriptions []rdfDescription `xml:"Description"`
}

type rdfDescription struct {
	About        string          `xml:"about,attr"`
	Types        []rdfResource   `xml:"type"`
	PrefLabels   []rdfText       `xml:"prefLabel"`
	AltLabels    []rdfText       `xml:"altLabel"`
	Definitions  []rdfText       `xml:"definition"`
	Broader      []rdfResource   `xml:"broader"`
	Narrower     []rdfResource   `xml:"narrower"`
	TopConceptOf []rdfResource   `xml:"topConceptOf"`
	ChangeNotes  []rdfChangeNote `xml:"changeNote"`
}

type rdfText struct {
	Lang string `xml:"lang,attr"`
	Text string `xml:",chardata"`
}

type rdfResource struct {
	Resource string `xml:"resource,attr"`
}

type rdfChangeNote struct {
	Notes []rdfNote `xml:"Description"`
}

type rdfNote struct {
	Modified string `xml:"modified"`
	Created  string `xml:"created"`
}

// Source adapts SKOS concept documents to the harvest pipeline. Items are
// keyed by their full concept URI.
type Source struct{}

// NewSource creates the thesaurus source.
func NewSource() *Source { return &Source{} }

// Name implements harvest.Source.
func (s *Source) Name() string { return "thesaurus" }

// DetailURL implements harvest.Source.
func (s *Source) DetailURL(id string) string { return id + ".rdf" }

// Decode implements harvest.Source. A concept document describes the concept
// itself plus its neighbors; the concept is the description whose rdf:about
// equals the requested URI.
func (s *Source) Decode(id string, payload []byte) (*harvest.Item, error) {
	var doc rdfDocument
	if err := xml.Unmarshal(payload, &doc); err != nil {
		return nil, errors.Wrap(err, "failed to decode concept document")
	}

	description := mainDescription(doc, id)
	if description == nil {
		return nil, errors.Newf("no description for concept %s in document", id)
	}

	item := &harvest.Item{
		ID:   description.About,
		Root: len(description.TopConceptOf) > 0,
	}

	for _, label := range description.PrefLabels {
		item.Preferred = append(item.Preferred, harvest.Label{Text: label.Text, Lang: label.Lang})
	}
	for _, label := range description.AltLabels {
		item.Variants = append(item.Variants, harvest.Label{Text: label.Text, Lang: label.Lang})
	}
	for _, definition := range description.Definitions {
		item.Definitions = append(item.Definitions, harvest.Label{Text: definition.Text, Lang: definition.Lang})
	}

	if len(description.Broader) > 0 {
		item.Parent = description.Broader[0].Resource
	}
	for _, narrower := range description.Narrower {
		if narrower.Resource != "" {
			item.Children = append(item.Children, narrower.Resource)
		}
	}

	item.Created, item.Modified = changeDates(description.ChangeNotes)

	return item, nil
}

// mainDescription picks the requested concept's description out of the
// document. Detail documents embed descriptions of neighboring concepts too,
// so the match must be by URI; the type and label heuristics only serve
// callers without one.
func mainDescription(doc rdfDocument, id string) *rdfDescription {
	if id != "" {
		for i := range doc.Descriptions {
			if doc.Descriptions[i].About == id {
				return &doc.Descriptions[i]
			}
		}
		return nil
	}
	for i := range doc.Descriptions {
		for _, typ := range doc.Descriptions[i].Types {
			if strings.HasSuffix(typ.Resource, "#Concept") {
				return &doc.Descriptions[i]
			}
		}
	}
	// Older service versions omit the type triple.
	for i := range doc.Descriptions {
		if doc.Descriptions[i].About != "" && len(doc.Descriptions[i].PrefLabels) > 0 {
			return &doc.Descriptions[i]
		}
	}
	return nil
}

// changeDates extracts the earliest creation and the latest modification
// timestamp from the concept's change notes.
func changeDates(notes []rdfChangeNote) (created, modified time.Time) {
	for _, changeNote := range notes {
		for _, note := range changeNote.Notes {
			if note.Created != "" {
				if ts, err := harvest.ParseUpstreamTime(note.Created); err == nil {
					if created.IsZero() || ts.Before(created) {
						created = ts
					}
				}
			}
			if note.Modified != "" {
				if ts, err := harvest.ParseUpstreamTime(note.Modified); err == nil {
					if ts.After(modified) {
						modified = ts
					}
				}
			}
		}
	}
	return created, modified
}

// conceptID is the identifier part of a concept URI, used in control numbers.
func conceptID(uri string) string {
	if i := strings.LastIndex(uri, "/"); i >= 0 {
		return uri[i+1:]
	}
	return uri
}
