package harvest

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dainst/marc-authority-harvester/errors"
)

// checkpointFile records the date of the last successful run inside the
// output directory, so the next invocation can continue from there.
const checkpointFile = "last_run_date.log"

// ReadCheckpoint returns the start date recorded by the previous run in the
// given output directory.
func ReadCheckpoint(dir string) (time.Time, error) {
	path := filepath.Join(dir, checkpointFile)

	raw, err := os.ReadFile(path)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "no usable checkpoint at %s", path)
	}

	value := strings.TrimSpace(string(raw))
	ts, err := time.ParseInLocation("2006-01-02", value, time.UTC)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "malformed checkpoint date %q in %s", value, path)
	}
	return ts, nil
}

// WriteCheckpoint records the given date as the starting point for the next
// run. Called only after all requested sources harvested successfully, so a
// failed run is repeated in full.
func WriteCheckpoint(dir string, date time.Time) error {
	path := filepath.Join(dir, checkpointFile)
	value := date.UTC().Format("2006-01-02")

	if err := os.WriteFile(path, []byte(value), 0o644); err != nil {
		return errors.Wrapf(err, "failed to write checkpoint %s", path)
	}
	return nil
}
