package thesaurus

import (
	"context"
	"net/http"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/dainst/marc-authority-harvester/config"
	"github.com/dainst/marc-authority-harvester/errors"
	"github.com/dainst/marc-authority-harvester/harvest"
	"github.com/dainst/marc-authority-harvester/logger"
)

const (
	sourceCode       = "iDAI.thesauri"
	outputFileStem   = "thesauri_authority"
	headingTag       = "150"
	agency           = "DE-2553"
	catalogingAgency = "Deutsches Archäologisches Institut"
	headingLanguage  = "de"
)

// Harvester exports changed thesaurus concepts as topical-term authority
// records.
type Harvester struct {
	cfg    config.ThesaurusConfig
	fetch  config.FetchConfig
	client *http.Client
	format harvest.Format
	log    *zap.SugaredLogger
}

// New creates the thesaurus harvester.
func New(cfg config.ThesaurusConfig, fetch config.FetchConfig, client *http.Client, format harvest.Format, log *zap.SugaredLogger) *Harvester {
	return &Harvester{
		cfg:    cfg,
		fetch:  fetch,
		client: client,
		format: format,
		log:    log.Named("thesaurus"),
	}
}

// Name implements harvest.Harvester.
func (h *Harvester) Name() string { return "thesaurus" }

// Harvest implements harvest.Harvester by walking the concept tree from the
// configured root. The tree feed resolves concepts while walking, so the
// write phase runs almost entirely against the run cache.
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

	source := NewSource()
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
	feed := newTreeFeed(batch, source, h.cfg.RootConcept, window, h.cfg.BatchSize, log)

	log.Infow("Walking concept tree", "root", h.cfg.RootConcept)

	emitted := make(map[string]struct{})
	exportDay := time.Now().UTC()

	for {
		refs, done, err := feed.Next(ctx)
		if err != nil {
			return err
		}

		for _, ref := range refs {
			if _, dup := emitted[ref.ID]; dup {
				continue
			}
			emitted[ref.ID] = struct{}{}

			item, err := batch.FetchOne(ctx, ref.ID)
			if err != nil {
				log.Warnw("Skipping concept after fetch failure",
					logger.FieldItemID, ref.ID,
					logger.FieldError, err,
				)
				continue
			}

			chain, err := resolver.ResolveChain(ctx, item)
			if err != nil {
				if ctx.Err() != nil {
					return err
				}
				log.Warnw("Broader chain resolved partially",
					logger.FieldItemID, item.ID,
					"resolved", len(chain),
					logger.FieldError, err,
				)
			}

			record, err := harvest.Assemble(buildRecord(item, chain, exportDay))
			if err != nil {
				if errors.Is(err, errors.ErrNoPreferredLabel) {
					log.Warnw("Concept without german preferred label dropped", logger.FieldItemID, item.ID)
					continue
				}
				return err
			}
			if err := writer.Write(record); err != nil {
				return err
			}
		}

		if done {
			break
		}
	}

	log.Infow("Thesaurus harvest complete", logger.FieldRecords, writer.Count())
	return nil
}

// buildRecord maps a concept and its broader chain onto the logical
// authority record. The German preferred label is the 150 heading;
// other-language preferred labels and all alternative labels become 450
// variants, broader concepts 550 references, definitions 677 scope notes.
func buildRecord(item *harvest.Item, chain []harvest.AncestorEntry, exportDay time.Time) *harvest.AuthorityRecord {
	id := conceptID(item.ID)

	logical := &harvest.AuthorityRecord{
		ControlNumber: sourceCode + id,
		Agency:        agency,
		FixedData:     harvest.AuthorityFixedData(exportDay),
		Identifier: harvest.Identifier{
			Value:  id,
			Source: sourceCode,
			Local:  sourceCode + id,
			Ind1:   '7',
			Ind2:   ' ',
		},
		CatalogingSource: catalogingAgency,
		HeadingTag:       headingTag,
	}

	for _, label := range item.Preferred {
		if label.Lang == headingLanguage && logical.Heading.Text == "" {
			logical.Heading = label
			continue
		}
		logical.Variants = append(logical.Variants, harvest.Variant{Label: label, Note: "pref label"})
	}
	for _, label := range item.Variants {
		logical.Variants = append(logical.Variants, harvest.Variant{Label: label, Note: "alt label"})
	}

	for _, entry := range chain {
		label, ok := entry.Item.PreferredLabel(headingLanguage)
		if !ok {
			continue
		}
		ancestorID := conceptID(entry.Item.ID)
		logical.Broader = append(logical.Broader, harvest.BroaderRef{
			Label:         label,
			Order:         entry.Order,
			ControlNumber: sourceCode + ancestorID,
			URI:           entry.Item.ID,
		})
	}

	for _, definition := range item.Definitions {
		logical.Definitions = append(logical.Definitions, harvest.Definition{
			Label:  definition,
			Agency: sourceCode,
		})
	}

	return logical
}
