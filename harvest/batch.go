package harvest

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/dainst/marc-authority-harvester/errors"
	"github.com/dainst/marc-authority-harvester/logger"
)

// BatchFetcher resolves detail documents for whole feed pages concurrently.
// Fan-out is bounded by a fixed worker count; one slow or failing item never
// blocks the rest of its batch. Results always come back in input order.
type BatchFetcher struct {
	fetcher *Fetcher
	source  Source
	cache   *Cache
	workers int
	log     *zap.SugaredLogger
}

// NewBatchFetcher creates a batch fetcher over the given source. A worker
// count below one is treated as one.
func NewBatchFetcher(fetcher *Fetcher, source Source, cache *Cache, workers int, log *zap.SugaredLogger) *BatchFetcher {
	if workers < 1 {
		workers = 1
	}
	return &BatchFetcher{
		fetcher: fetcher,
		source:  source,
		cache:   cache,
		workers: workers,
		log:     log,
	}
}

// FetchItems resolves the given identifiers into cached Items. Identifiers
// already in the run cache are not refetched. Items whose fetch or decode
// fails are logged and omitted from the result; the error of the last failed
// item is returned alongside the successful ones so callers can decide how
// loudly to complain.
func (b *BatchFetcher) FetchItems(ctx context.Context, ids []string) ([]*Item, error) {
	type slot struct {
		item *Item
		err  error
	}

	slots := make([]slot, len(ids))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < b.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				item, err := b.FetchOne(ctx, ids[i])
				slots[i] = slot{item: item, err: err}
			}
		}()
	}

	for i := range ids {
		select {
		case <-ctx.Done():
			// Stop handing out work; running fetches notice the
			// cancellation themselves.
		case jobs <- i:
			continue
		}
		break
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "batch fetch cancelled")
	}

	var lastErr error
	items := make([]*Item, 0, len(ids))
	for i, s := range slots {
		if s.err != nil {
			lastErr = s.err
			b.log.Warnw("Skipping item after fetch failure",
				logger.FieldSource, b.source.Name(),
				logger.FieldItemID, ids[i],
				logger.FieldError, s.err,
			)
			continue
		}
		if s.item != nil {
			items = append(items, s.item)
		}
	}
	return items, lastErr
}

// FetchOne resolves a single identifier, consulting the run cache first.
// Decode failures count as final: the payload will not improve on retry.
func (b *BatchFetcher) FetchOne(ctx context.Context, id string) (*Item, error) {
	if item, ok := b.cache.Get(id); ok {
		return item, nil
	}

	payload, err := b.fetcher.Fetch(ctx, b.source.DetailURL(id))
	if err != nil {
		return nil, err
	}

	item, err := b.source.Decode(id, payload)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrDecode, "decoding %s item %s: %v", b.source.Name(), id, err)
	}
	if item.ID == "" {
		item.ID = id
	}

	b.cache.Put(item)
	// First write wins; under concurrent fetches of the same id the cached
	// value is authoritative.
	if cached, ok := b.cache.Get(item.ID); ok {
		return cached, nil
	}
	return item, nil
}

// Prefetch warms the cache with the parents and listed ancestors of the given
// items so that chain resolution mostly runs against the cache. Failures are
// deliberately ignored here; the resolver fetches again and reports properly.
func (b *BatchFetcher) Prefetch(ctx context.Context, items []*Item) {
	var missing []string
	seen := make(map[string]struct{})
	add := func(id string) {
		if id == "" || b.cache.Has(id) {
			return
		}
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		missing = append(missing, id)
	}

	for _, item := range items {
		add(item.Parent)
		for _, ancestor := range item.Ancestors {
			add(ancestor)
		}
	}
	if len(missing) == 0 {
		return
	}

	b.log.Debugw("Prefetching ancestors for batch",
		logger.FieldSource, b.source.Name(),
		logger.FieldCount, len(missing),
	)
	if _, err := b.FetchItems(ctx, missing); err != nil {
		b.log.Debugw("Ancestor prefetch incomplete",
			logger.FieldSource, b.source.Name(),
			logger.FieldError, err,
		)
	}
}
