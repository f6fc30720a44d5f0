package thesaurus

import (
	"context"

	"go.uber.org/zap"

	"github.com/dainst/marc-authority-harvester/errors"
	"github.com/dainst/marc-authority-harvester/harvest"
	"github.com/dainst/marc-authority-harvester/logger"
)

// treeFeed walks the concept tree from the configured root over
// skos:narrower references. Traversal is an explicit work list with a
// visited set, so arbitrarily deep trees and malformed narrower cycles both
// terminate. Concepts outside the harvest window are traversed (their
// subtrees may contain changes) but not emitted; the absolute root node is
// never emitted.
type treeFeed struct {
	batch    *harvest.BatchFetcher
	source   *Source
	window   harvest.Window
	pageSize int
	log      *zap.SugaredLogger

	pending []string
	visited map[string]struct{}
}

func newTreeFeed(batch *harvest.BatchFetcher, source *Source, root string, window harvest.Window, pageSize int, log *zap.SugaredLogger) *treeFeed {
	if pageSize < 1 {
		pageSize = 1
	}
	return &treeFeed{
		batch:    batch,
		source:   source,
		window:   window,
		pageSize: pageSize,
		log:      log,
		pending:  []string{root},
		visited:  map[string]struct{}{root: {}},
	}
}

// Next implements harvest.Feed. One call resolves one work-list round; the
// resolved concepts stay in the run cache, so re-reading them downstream is
// free.
func (f *treeFeed) Next(ctx context.Context) ([]harvest.ItemRef, bool, error) {
	if len(f.pending) == 0 {
		return nil, true, nil
	}

	take := f.pageSize
	if take > len(f.pending) {
		take = len(f.pending)
	}
	round := f.pending[:take]
	f.pending = f.pending[take:]

	items, err := f.batch.FetchItems(ctx, round)
	if err != nil && ctx.Err() != nil {
		return nil, true, errors.Wrap(err, "tree walk cancelled")
	}

	var refs []harvest.ItemRef
	for _, item := range items {
		for _, child := range item.Children {
			if _, seen := f.visited[child]; seen {
				continue
			}
			f.visited[child] = struct{}{}
			f.pending = append(f.pending, child)
		}

		if item.Root {
			f.log.Infow("Skipping root concept", logger.FieldItemID, item.ID)
			continue
		}
		if !f.window.Contains(item.LastTouched()) {
			continue
		}
		refs = append(refs, harvest.ItemRef{ID: item.ID, URL: f.source.DetailURL(item.ID)})
	}

	return refs, len(f.pending) == 0, nil
}
