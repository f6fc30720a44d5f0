package gazetteer

import (
	"context"
	"net/http"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/dainst/marc-authority-harvester/config"
	"github.com/dainst/marc-authority-harvester/errors"
	"github.com/dainst/marc-authority-harvester/harvest"
	"github.com/dainst/marc-authority-harvester/logger"
)

const (
	sourceCode       = "iDAI.gazetteer"
	outputFileStem   = "gazetteer_authority"
	headingTag       = "151"
	catalogingAgency = "iDAI.gazetteer"
)

// Harvester exports changed gazetteer places as geographic-name authority
// records, one output file per run.
type Harvester struct {
	cfg    config.GazetteerConfig
	fetch  config.FetchConfig
	client *http.Client
	format harvest.Format
	log    *zap.SugaredLogger
}

// New creates the gazetteer harvester.
func New(cfg config.GazetteerConfig, fetch config.FetchConfig, client *http.Client, format harvest.Format, log *zap.SugaredLogger) *Harvester {
	return &Harvester{
		cfg:    cfg,
		fetch:  fetch,
		client: client,
		format: format,
		log:    log.Named("gazetteer"),
	}
}

// Name implements harvest.Harvester.
func (h *Harvester) Name() string { return "gazetteer" }

// Harvest implements harvest.Harvester. Batches are pipelined: each feed page
// is fetched, resolved, assembled and written before the next page is
// requested, so peak memory stays at one batch plus the run cache.
func (h *Harvester) Harvest(ctx context.Context, window harvest.Window, outputDir string) error {
	log := h.log.With(logger.FieldRunID, uuid.NewString())

	suffix, err := h.format.Suffix()
	if err != nil {
		return err
	}
	writer, err := harvest.NewWriter(filepath.Join(outputDir, outputFileStem+suffix), h.format)
	if err != nil {
		return err
	}
	defer writer.Close()

	source := NewSource(h.cfg.BaseURL)
	cache := harvest.NewCache()

	var limiter *rate.Limiter
	if h.fetch.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(h.fetch.RequestsPerSecond), 1)
	}
	fetcher := harvest.NewFetcher(h.client, harvest.FetcherConfig{
		MaxRetries:  h.fetch.MaxRetries,
		Timeout:     h.fetch.Timeout(),
		TimeoutStep: h.fetch.TimeoutStep(),
		TimeoutMax:  h.fetch.TimeoutMax(),
		Backoff:     h.fetch.Backoff(),
	}, limiter, log)
	batch := harvest.NewBatchFetcher(fetcher, source, cache, h.fetch.Concurrency, log)
	resolver := harvest.NewResolver(batch, log)
	feed := newScrollFeed(fetcher, source, window, h.cfg.BatchSize, log)

	emitted := make(map[string]struct{})
	batchNo := 0

	for {
		refs, done, err := feed.Next(ctx)
		if err != nil {
			// Losing a feed page means losing its position in the scroll;
			// the run cannot page past it.
			return err
		}

		ids := make([]string, 0, len(refs))
		for _, ref := range refs {
			if _, dup := emitted[ref.ID]; dup {
				continue
			}
			emitted[ref.ID] = struct{}{}
			ids = append(ids, ref.ID)
		}

		if len(ids) > 0 {
			batchNo++
			log.Infow("Processing batch",
				logger.FieldBatch, batchNo,
				logger.FieldCount, len(ids),
			)

			// Per-item failures were already logged and dropped inside the
			// batch; only cancellation aborts the run.
			items, err := batch.FetchItems(ctx, ids)
			if err != nil && ctx.Err() != nil {
				return err
			}
			batch.Prefetch(ctx, items)

			if err := h.writeItems(ctx, items, resolver, writer, log); err != nil {
				return err
			}
		}

		if done {
			break
		}
	}

	log.Infow("Gazetteer harvest complete",
		logger.FieldRecords, writer.Count(),
	)
	return nil
}

func (h *Harvester) writeItems(ctx context.Context, items []*harvest.Item, resolver *harvest.Resolver, writer *harvest.Writer, log *zap.SugaredLogger) error {
	for _, item := range items {
		chain, err := resolver.ResolveChain(ctx, item)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			// The hops resolved before the failure still carry information.
			log.Warnw("Ancestor chain resolved partially",
				logger.FieldItemID, item.ID,
				"resolved", len(chain),
				logger.FieldError, err,
			)
		}

		record, err := harvest.Assemble(buildRecord(item, chain))
		if err != nil {
			if errors.Is(err, errors.ErrNoPreferredLabel) {
				log.Warnw("Place without preferred name dropped", logger.FieldItemID, item.ID)
				continue
			}
			return err
		}

		if err := writer.Write(record); err != nil {
			return err
		}
	}
	return nil
}

// buildRecord maps a place and its ancestor chain onto the logical authority
// record: identifier to 024, preferred name to 151, variant names to 451,
// each ancestor to a 551 part-of reference with its order annotation.
func buildRecord(item *harvest.Item, chain []harvest.AncestorEntry) *harvest.AuthorityRecord {
	heading, _ := item.PreferredLabel("")

	logical := &harvest.AuthorityRecord{
		Identifier: harvest.Identifier{
			Value:  item.ID,
			Source: sourceCode,
			Ind1:   ' ',
			Ind2:   '7',
		},
		CatalogingSource: catalogingAgency,
		HeadingTag:       headingTag,
		Heading:          heading,
	}

	for _, variant := range item.Variants {
		logical.Variants = append(logical.Variants, harvest.Variant{Label: variant})
	}

	for _, entry := range chain {
		label, ok := entry.Item.PreferredLabel("")
		if !ok {
			continue
		}
		logical.Broader = append(logical.Broader, harvest.BroaderRef{
			Label: label,
			Order: entry.Order,
		})
	}

	return logical
}
