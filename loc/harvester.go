package loc

import (
	"context"
	"net/http"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/dainst/marc-authority-harvester/config"
	"github.com/dainst/marc-authority-harvester/harvest"
	"github.com/dainst/marc-authority-harvester/logger"
)

// outputStems maps a routing heading tag to its output file stem.
var outputStems = map[string]string{
	"100": "loc_personal_names",
	"110": "loc_corporate_names",
	"111": "loc_meeting_names",
	"130": "loc_uniform_titles",
}

// Harvester exports changed LoC authority records, split into one output
// file per heading type.
type Harvester struct {
	cfg    config.LocConfig
	fetch  config.FetchConfig
	client *http.Client
	format harvest.Format
	log    *zap.SugaredLogger
}

// New creates the LoC harvester.
func New(cfg config.LocConfig, fetch config.FetchConfig, client *http.Client, format harvest.Format, log *zap.SugaredLogger) *Harvester {
	return &Harvester{
		cfg:    cfg,
		fetch:  fetch,
		client: client,
		format: format,
		log:    log.Named("loc"),
	}
}

// Name implements harvest.Harvester.
func (h *Harvester) Name() string { return "loc" }

// Harvest implements harvest.Harvester. Each subscribed feed is materialized
// completely before its detail documents are fetched: the feeds repeat an
// entry on every page where it was touched, and deduplication needs the full
// link list.
func (h *Harvester) Harvest(ctx context.Context, window harvest.Window, outputDir string) error {
	log := h.log.With(logger.FieldRunID, uuid.NewString())

	suffix, err := h.format.Suffix()
	if err != nil {
		return err
	}

	writers := make(map[string]*harvest.Writer, len(outputStems))
	for tag, stem := range outputStems {
		writer, err := harvest.NewWriter(filepath.Join(outputDir, stem+suffix), h.format)
		if err != nil {
			for _, open := range writers {
				open.Close()
			}
			return err
		}
		writers[tag] = writer
	}
	defer func() {
		for _, writer := range writers {
			writer.Close()
		}
	}()

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
	batch := harvest.NewBatchFetcher(fetcher, NewSource(), harvest.NewCache(), h.fetch.Concurrency, log)

	for _, feedURL := range h.cfg.Feeds {
		log.Infow("Reading feed", logger.FieldURL, feedURL)

		links, err := h.collectLinks(ctx, fetcher, feedURL, window, log)
		if err != nil {
			return err
		}
		log.Infow("Feed read",
			logger.FieldURL, feedURL,
			logger.FieldCount, len(links),
		)

		if err := h.writeLinks(ctx, batch, links, writers, log); err != nil {
			return err
		}
	}

	total := 0
	for _, writer := range writers {
		total += writer.Count()
	}
	log.Infow("LoC harvest complete", logger.FieldRecords, total)
	return nil
}

// collectLinks materializes one feed's deduplicated record links within the
// window, preserving first-seen order.
func (h *Harvester) collectLinks(ctx context.Context, fetcher *harvest.Fetcher, feedURL string, window harvest.Window, log *zap.SugaredLogger) ([]string, error) {
	feed := newPageFeed(fetcher, feedURL, window, log)

	var links []string
	seen := make(map[string]struct{})

	for {
		refs, done, err := feed.Next(ctx)
		if err != nil {
			return nil, err
		}
		for _, ref := range refs {
			if _, dup := seen[ref.URL]; dup {
				continue
			}
			seen[ref.URL] = struct{}{}
			links = append(links, ref.URL)
		}
		if done {
			return links, nil
		}
	}
}

// writeLinks fetches the record documents batch by batch and routes each
// record to the writer of its heading type.
func (h *Harvester) writeLinks(ctx context.Context, batch *harvest.BatchFetcher, links []string, writers map[string]*harvest.Writer, log *zap.SugaredLogger) error {
	batchSize := h.cfg.BatchSize
	if batchSize < 1 {
		batchSize = 1
	}

	for start := 0; start < len(links); start += batchSize {
		end := start + batchSize
		if end > len(links) {
			end = len(links)
		}

		log.Infow("Processing batch",
			logger.FieldBatch, start/batchSize+1,
			logger.FieldCount, end-start,
		)

		// Fetch and decode failures were already logged and dropped inside
		// the batch; only cancellation aborts the run.
		items, err := batch.FetchItems(ctx, links[start:end])
		if err != nil && ctx.Err() != nil {
			return err
		}

		for _, item := range items {
			tag := RouteTag(item.Record)
			if tag == "" {
				log.Debugw("Record without routable heading skipped",
					logger.FieldURL, item.ID,
				)
				continue
			}
			if err := writers[tag].Write(item.Record); err != nil {
				return err
			}
		}
	}
	return nil
}
