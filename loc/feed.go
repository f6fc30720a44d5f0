package loc

import (
	"context"
	"encoding/xml"
	"fmt"

	"go.uber.org/zap"

	"github.com/dainst/marc-authority-harvester/errors"
	"github.com/dainst/marc-authority-harvester/harvest"
	"github.com/dainst/marc-authority-harvester/logger"
)

type atomPage struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	Links   []atomLink `xml:"link"`
	Updated string     `xml:"updated"`
}

type atomLink struct {
	Rel  string `xml:"rel,attr"`
	Type string `xml:"type,attr"`
	Href string `xml:"href,attr"`
}

// marcxmlLink is the alternate-representation link type carrying the record.
const marcxmlLink = "application/marc+xml"

// pageFeed reads one LoC Atom feed page by page, starting at page 1. The
// feeds are ordered newest first, so the feed ends at the first page without
// any entry inside the harvest window.
type pageFeed struct {
	fetcher *harvest.Fetcher
	baseURL string
	window  harvest.Window
	log     *zap.SugaredLogger

	page int
	done bool
}

func newPageFeed(fetcher *harvest.Fetcher, baseURL string, window harvest.Window, log *zap.SugaredLogger) *pageFeed {
	return &pageFeed{
		fetcher: fetcher,
		baseURL: baseURL,
		window:  window,
		log:     log,
		page:    1,
	}
}

// Next implements harvest.Feed. An entry edited repeatedly within the window
// appears on several pages; the harvester dedups by link.
func (f *pageFeed) Next(ctx context.Context) ([]harvest.ItemRef, bool, error) {
	if f.done {
		return nil, true, nil
	}

	pageURL := fmt.Sprintf("%s%d", f.baseURL, f.page)
	payload, err := f.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, true, errors.Wrapf(err, "fetching feed page %s", pageURL)
	}

	var page atomPage
	if err := xml.Unmarshal(payload, &page); err != nil {
		return nil, true, errors.Wrapf(errors.ErrDecode, "feed page %s: %v", pageURL, err)
	}

	var refs []harvest.ItemRef
	for _, entry := range page.Entries {
		href := entry.recordLink()
		if href == "" {
			continue
		}

		updated, err := harvest.ParseUpstreamTime(entry.Updated)
		if err != nil {
			f.log.Warnw("Feed entry with unreadable timestamp skipped",
				logger.FieldURL, href,
				logger.FieldError, err,
			)
			continue
		}
		if !f.window.Contains(updated) {
			continue
		}
		refs = append(refs, harvest.ItemRef{ID: href, URL: href})
	}

	f.page++
	if len(refs) == 0 {
		f.done = true
	}
	return refs, f.done, nil
}

// recordLink finds the entry's MARCXML representation.
func (e atomEntry) recordLink() string {
	for _, link := range e.Links {
		if link.Rel == "alternate" && link.Type == marcxmlLink {
			return link.Href
		}
	}
	return ""
}
