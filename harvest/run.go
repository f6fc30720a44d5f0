package harvest

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dainst/marc-authority-harvester/errors"
	"github.com/dainst/marc-authority-harvester/logger"
)

// Harvester is one data provider's end-to-end harvest: read the change feed,
// resolve details, assemble records and write output files.
type Harvester interface {
	// Name is the provider tag used for source selection and logging.
	Name() string

	// Harvest exports everything the provider touched within the window into
	// the given output directory.
	Harvest(ctx context.Context, window Window, outputDir string) error
}

// Runner executes a set of harvesters sequentially and independently: a
// failing provider is reported but never stops the remaining ones.
type Runner struct {
	harvesters []Harvester
	log        *zap.SugaredLogger
}

// NewRunner creates a runner over the given harvesters.
func NewRunner(log *zap.SugaredLogger, harvesters ...Harvester) *Runner {
	return &Runner{harvesters: harvesters, log: log}
}

// Run harvests every provider and returns the combined error of all failed
// ones. Cancellation stops the run between providers.
func (r *Runner) Run(ctx context.Context, window Window, outputDir string) error {
	var combined error

	for _, h := range r.harvesters {
		if err := ctx.Err(); err != nil {
			return errors.CombineErrors(combined, errors.Wrap(err, "harvest run cancelled"))
		}

		started := time.Now()
		r.log.Infow("Harvesting source",
			logger.FieldSource, h.Name(),
			"since", windowLabel(window),
		)

		if err := h.Harvest(ctx, window, outputDir); err != nil {
			r.log.Errorw("Source harvest failed",
				logger.FieldSource, h.Name(),
				logger.FieldError, err,
			)
			combined = errors.CombineErrors(combined, errors.Wrapf(err, "source %s", h.Name()))
			continue
		}

		r.log.Infow("Source harvest finished",
			logger.FieldSource, h.Name(),
			"duration", time.Since(started).Round(time.Millisecond),
		)
	}

	return combined
}

func windowLabel(window Window) string {
	if window.Since.IsZero() {
		return "beginning"
	}
	return window.Since.Format("2006-01-02")
}
