// Package harvest implements the shared harvest-and-resolve pipeline: the
// run-scoped item cache, the retrying fetcher, the concurrent batch fetcher,
// the change-feed contracts, ancestor chain resolution and record assembly.
// The per-source protocol shapes live in the gazetteer, loc and thesaurus
// packages.
package harvest

import (
	"time"

	"github.com/dainst/marc-authority-harvester/marc"
)

// ItemRef points at a single harvestable entity in a source's change feed.
type ItemRef struct {
	ID  string // source-global identifier (URI or opaque id)
	URL string // detail document location
}

// Label is a text value with an optional language tag.
type Label struct {
	Text string
	Lang string
}

// Item is the resolved detail payload for an ItemRef, normalized across
// sources. Created once per identifier during a run and cached; never
// mutated afterwards. Bulky upstream attributes (geometry shapes) are
// stripped by the source decoders before an Item reaches the cache.
type Item struct {
	ID           string
	Preferred    []Label  // preferred labels, possibly per-language
	Variants     []Label  // variant / alternative labels
	Definitions  []Label  // scope notes (thesaurus concepts)
	Parent       string   // identifier of the hierarchical parent, "" if none
	Ancestors    []string // known further ancestor identifiers, if the source lists them
	Children     []string // narrower/child identifiers, for tree-walk sources
	Root         bool     // designated absolute-root marker node, traversed but never emitted
	AccessDenied bool     // node detail is not resolvable
	Created      time.Time
	Modified     time.Time

	// Record carries the finished upstream record for pass-through sources
	// whose payloads already are authority records.
	Record *marc.Record
}

// PreferredLabel returns the item's primary heading label. Labels tagged
// with the given language win; otherwise the first preferred label is used.
func (it *Item) PreferredLabel(lang string) (Label, bool) {
	if lang != "" {
		for _, l := range it.Preferred {
			if l.Lang == lang {
				return l, true
			}
		}
	}
	if len(it.Preferred) > 0 {
		return it.Preferred[0], true
	}
	return Label{}, false
}

// LastTouched returns the modification timestamp, falling back to the
// creation timestamp when the item was never modified.
func (it *Item) LastTouched() time.Time {
	if !it.Modified.IsZero() {
		return it.Modified
	}
	return it.Created
}

// Source describes how a harvest source names and decodes its items. The
// batch fetcher and the ancestor resolver use it to turn identifiers into
// detail requests and payloads into Items.
type Source interface {
	// Name is the short source tag used in logs and output file names.
	Name() string

	// DetailURL maps an item identifier to its detail document URL.
	DetailURL(id string) string

	// Decode parses a detail payload into a sanitized Item. The requested
	// identifier is passed in because some payloads describe several
	// entities and the decoder must pick the requested one.
	Decode(id string, payload []byte) (*Item, error)
}
