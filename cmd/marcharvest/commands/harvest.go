package commands

import (
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dainst/marc-authority-harvester/errors"
	"github.com/dainst/marc-authority-harvester/gazetteer"
	"github.com/dainst/marc-authority-harvester/harvest"
	"github.com/dainst/marc-authority-harvester/internal/httpclient"
	"github.com/dainst/marc-authority-harvester/loc"
	"github.com/dainst/marc-authority-harvester/logger"
	"github.com/dainst/marc-authority-harvester/thesaurus"
)

var (
	formatFlag  string
	sourcesFlag string
	targetFlag  string

	continueFlag bool
	dateFlag     string
	offsetFlag   int
	fullFlag     bool
)

var harvestCmd = &cobra.Command{
	Use:   "harvest",
	Short: "Harvest all data changes since a starting date",
	Long: `Harvest reads each selected source's change feed, resolves every changed
item together with its ancestor chain, and writes one authority file per
source and heading type into the target directory.

Exactly one starting point must be given: --continue resumes from the last
successful run's checkpoint, --date starts from an explicit day, --offset
starts N days back from today, --full harvests everything.`,
	RunE: runHarvest,
}

func init() {
	harvestCmd.Flags().StringVarP(&formatFlag, "format", "f", "",
		"output format: marc or marcxml (default from config)")
	harvestCmd.Flags().StringVarP(&sourcesFlag, "sources", "s", "all",
		"data providers: all, gazetteer, loc or thesaurus")
	harvestCmd.Flags().StringVarP(&targetFlag, "target", "t", "",
		"output directory (default ./output/<today>/)")

	harvestCmd.Flags().BoolVarP(&continueFlag, "continue", "c", false,
		"continue from the last successful run")
	harvestCmd.Flags().StringVarP(&dateFlag, "date", "d", "",
		"harvest everything since a given date (YYYY-MM-DD)")
	harvestCmd.Flags().IntVarP(&offsetFlag, "offset", "o", 0,
		"harvest everything since N days before today")
	harvestCmd.Flags().BoolVar(&fullFlag, "full", false,
		"harvest everything regardless of dates")
	harvestCmd.MarkFlagsOneRequired("continue", "date", "offset", "full")
	harvestCmd.MarkFlagsMutuallyExclusive("continue", "date", "offset", "full")
}

func runHarvest(cmd *cobra.Command, args []string) error {
	format := harvest.Format(formatFlag)
	if formatFlag == "" {
		format = harvest.Format(cfg.Output.Format)
	}
	if _, err := format.Suffix(); err != nil {
		return err
	}

	targetDir, err := resolveTargetDir()
	if err != nil {
		return err
	}

	window, err := resolveWindow(cmd, targetDir)
	if err != nil {
		return err
	}

	harvesters, err := selectHarvesters(format)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Infow("Starting harvest",
		"sources", sourcesFlag,
		"format", string(format),
		"target", targetDir,
	)

	runner := harvest.NewRunner(logger.Logger, harvesters...)
	if err := runner.Run(ctx, window, targetDir); err != nil {
		return err
	}

	// Only a fully successful run moves the checkpoint forward.
	if err := harvest.WriteCheckpoint(targetDir, time.Now()); err != nil {
		return err
	}

	logger.Infow("Harvest finished", "target", targetDir)
	return nil
}

// resolveTargetDir validates or creates the output directory.
func resolveTargetDir() (string, error) {
	dir := targetFlag
	if dir == "" {
		dir = cfg.Output.Directory
	}
	if dir == "" {
		dir = filepath.Join(".", "output", time.Now().UTC().Format("2006-01-02"))
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrapf(err, "output directory %s is not usable", dir)
	}
	return dir, nil
}

// resolveWindow turns the chosen starting-point flag into a harvest window.
func resolveWindow(cmd *cobra.Command, targetDir string) (harvest.Window, error) {
	switch {
	case continueFlag:
		since, err := harvest.ReadCheckpoint(targetDir)
		if err != nil {
			return harvest.Window{}, errors.WithHint(err,
				"run once with --date, --offset or --full to create a checkpoint")
		}
		return harvest.NewWindow(since), nil

	case dateFlag != "":
		since, err := time.ParseInLocation("2006-01-02", dateFlag, time.UTC)
		if err != nil {
			return harvest.Window{}, errors.Newf("not a valid date: %q, expected pattern: YYYY-MM-DD", dateFlag)
		}
		return harvest.NewWindow(since), nil

	case cmd.Flags().Changed("offset"):
		if offsetFlag <= 0 {
			return harvest.Window{}, errors.New("please provide a positive day offset")
		}
		return harvest.NewWindow(time.Now().UTC().AddDate(0, 0, -offsetFlag)), nil

	default: // --full
		return harvest.Window{}, nil
	}
}

// selectHarvesters builds the harvester set for the --sources selection.
func selectHarvesters(format harvest.Format) ([]harvest.Harvester, error) {
	client := httpclient.New()
	log := logger.Logger

	build := map[string]func() harvest.Harvester{
		"gazetteer": func() harvest.Harvester {
			return gazetteer.New(cfg.Gazetteer, cfg.Fetch, client, format, log)
		},
		"loc": func() harvest.Harvester {
			return loc.New(cfg.Loc, cfg.Fetch, client, format, log)
		},
		"thesaurus": func() harvest.Harvester {
			return thesaurus.New(cfg.Thesaurus, cfg.Fetch, client, format, log)
		},
	}

	if sourcesFlag == "all" {
		return []harvest.Harvester{
			build["gazetteer"](),
			build["loc"](),
			build["thesaurus"](),
		}, nil
	}

	factory, ok := build[sourcesFlag]
	if !ok {
		return nil, errors.Newf("unknown source: %s (expected all, gazetteer, loc or thesaurus)", sourcesFlag)
	}
	return []harvest.Harvester{factory()}, nil
}
