package gazetteer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/dainst/marc-authority-harvester/errors"
	"github.com/dainst/marc-authority-harvester/harvest"
	"github.com/dainst/marc-authority-harvester/logger"
)

// searchPage is one page of the scroll search.
type searchPage struct {
	Total    int             `json:"total"`
	ScrollID string          `json:"scrollId"`
	Result   []placeDocument `json:"result"`
}

// scrollFeed walks the gazetteer scroll-cursor search over everything whose
// lastChangeDate falls inside the window. The first request opens the scroll
// and reports the total; following requests pass the returned cursor token.
// The feed is exhausted when a page comes back empty or the total is reached.
type scrollFeed struct {
	fetcher  *harvest.Fetcher
	source   *Source
	window   harvest.Window
	pageSize int
	log      *zap.SugaredLogger

	scrollID string
	total    int
	seenRefs int
	done     bool
}

func newScrollFeed(fetcher *harvest.Fetcher, source *Source, window harvest.Window, pageSize int, log *zap.SugaredLogger) *scrollFeed {
	return &scrollFeed{
		fetcher:  fetcher,
		source:   source,
		window:   window,
		pageSize: pageSize,
		log:      log,
	}
}

// Next implements harvest.Feed.
func (f *scrollFeed) Next(ctx context.Context) ([]harvest.ItemRef, bool, error) {
	if f.done {
		return nil, true, nil
	}

	pageURL := f.pageURL()
	payload, err := f.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, true, errors.Wrapf(err, "fetching gazetteer feed page %s", pageURL)
	}

	var page searchPage
	if err := json.Unmarshal(payload, &page); err != nil {
		return nil, true, errors.Wrapf(errors.ErrDecode, "gazetteer feed page %s: %v", pageURL, err)
	}

	if f.scrollID == "" {
		f.total = page.Total
		f.log.Infow("Opened gazetteer scroll",
			logger.FieldTotal, page.Total,
			logger.FieldBatchSize, f.pageSize,
		)
	}
	if page.ScrollID != "" {
		f.scrollID = page.ScrollID
	}

	refs := make([]harvest.ItemRef, 0, len(page.Result))
	for _, doc := range page.Result {
		id := doc.GazID
		if id == "" {
			id = placeID(doc.URI)
		}
		if id == "" {
			f.log.Warnw("Feed entry without usable place id skipped", "uri", doc.URI)
			continue
		}
		refs = append(refs, harvest.ItemRef{ID: id, URL: f.source.DetailURL(id)})
	}

	f.seenRefs += len(page.Result)
	if len(page.Result) == 0 || f.seenRefs >= f.total {
		f.done = true
	}
	return refs, f.done, nil
}

// pageURL builds the search request: the opening request asks for a scroll
// cursor, later ones pass the token back.
func (f *scrollFeed) pageURL() string {
	query := url.Values{}
	query.Set("limit", fmt.Sprintf("%d", f.pageSize))
	query.Set("q", f.changeDateQuery())
	if f.scrollID == "" {
		query.Set("scroll", "true")
	} else {
		query.Set("scrollId", f.scrollID)
	}
	return fmt.Sprintf("%s/search.json?%s", f.source.baseURL, query.Encode())
}

// changeDateQuery renders the harvested timespan as the service's query
// expression; an unbounded window harvests everything.
func (f *scrollFeed) changeDateQuery() string {
	if f.window.Since.IsZero() {
		return "*"
	}
	return fmt.Sprintf("lastChangeDate:[%s TO %s]",
		f.window.Since.Format("2006-01-02"),
		time.Now().UTC().Format("2006-01-02"),
	)
}
