package harvest

import (
	"context"

	"go.uber.org/zap"

	"github.com/dainst/marc-authority-harvester/errors"
	"github.com/dainst/marc-authority-harvester/logger"
)

// AncestorEntry is one resolved hop of an item's ancestor chain. Order counts
// upward from 1 at the direct parent and is dense: skipped hops do not leave
// gaps.
type AncestorEntry struct {
	Item  *Item
	Order int
}

// Resolver walks an item's ancestor chain parent by parent. Every chain walk
// carries its own visited set, so a malformed upstream hierarchy that loops
// back on itself terminates instead of recursing forever.
type Resolver struct {
	fetch *BatchFetcher
	log   *zap.SugaredLogger
}

// NewResolver creates a chain resolver backed by the given batch fetcher.
func NewResolver(fetch *BatchFetcher, log *zap.SugaredLogger) *Resolver {
	return &Resolver{fetch: fetch, log: log}
}

// ResolveChain resolves the full ancestor chain of the item, nearest parent
// first. The walk stops cleanly at the hierarchy root or at an access-denied
// ancestor. A hop without a preferred label is skipped without consuming an
// order number. On a cycle or a fetch failure the entries resolved so far are
// returned together with the error; callers may use the partial chain.
func (r *Resolver) ResolveChain(ctx context.Context, item *Item) ([]AncestorEntry, error) {
	var entries []AncestorEntry

	seen := map[string]struct{}{item.ID: {}}
	order := 1

	for current := item.Parent; current != ""; {
		if _, looped := seen[current]; looped {
			return entries, errors.Wrapf(errors.ErrCyclicAncestry,
				"ancestor %s of item %s already visited", current, item.ID)
		}
		seen[current] = struct{}{}

		ancestor, err := r.fetch.FetchOne(ctx, current)
		if err != nil {
			return entries, errors.Wrapf(err, "resolving ancestor %s of item %s", current, item.ID)
		}

		if ancestor.AccessDenied {
			r.log.Debugw("Ancestor chain stops at protected node",
				logger.FieldItemID, item.ID,
				"ancestor_id", current,
			)
			return entries, nil
		}

		if _, ok := ancestor.PreferredLabel(""); !ok {
			r.log.Warnw("Ancestor without preferred label skipped",
				logger.FieldItemID, item.ID,
				"ancestor_id", current,
			)
			current = ancestor.Parent
			continue
		}

		entries = append(entries, AncestorEntry{Item: ancestor, Order: order})
		order++
		current = ancestor.Parent
	}

	return entries, nil
}
