package telemetry

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mritc-tools/towpack/internal/util"
)

var (
	// ErrNoTelemetryLog indicates no tagged log exists for the deployment.
	// Packaging degrades to an empty manifest.
	ErrNoTelemetryLog = errors.New("no tagged telemetry log found")

	// ErrMalformedLog indicates the tagged log could not be parsed. Any
	// parse failure invalidates the entire table; there are no partial
	// tables.
	ErrMalformedLog = errors.New("telemetry log is malformed")
)

// Options configures how the tagged log is located and parsed.
type Options struct {
	// Tag is the substring identifying telemetry logs among the data files.
	Tag string
	// TimestampColumn is the CSV column holding the sample timestamp.
	TimestampColumn string
	// TimestampFormat is the Go layout for parsing TimestampColumn values.
	TimestampFormat string
}

// DefaultOptions returns the platform's standard telemetry log contract.
func DefaultOptions() Options {
	return Options{
		Tag:             "TAG",
		TimestampColumn: "FinalTime",
		TimestampFormat: "2006-01-02 15:04:05.999999",
	}
}

// Load locates the first CSV in dir whose name contains both the tag
// substring and the deployment identifier, and parses it into a Table.
// Every timestamp is floored to one-second resolution, matching the
// resolution of visual-asset capture timestamps.
func Load(dir, deploymentID string, opts Options) (*Table, error) {
	path, err := findTaggedLog(dir, deploymentID, opts.Tag)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", ErrMalformedLog, path, err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrMalformedLog, path, err)
	}
	if len(rows) < 1 {
		return nil, fmt.Errorf("%w: %s is empty", ErrMalformedLog, path)
	}

	header := rows[0]
	tsCol := -1
	for i, name := range header {
		if name == opts.TimestampColumn {
			tsCol = i
			break
		}
	}
	if tsCol == -1 {
		return nil, fmt.Errorf("%w: %s has no %q column", ErrMalformedLog, path, opts.TimestampColumn)
	}

	records := make([]Record, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if len(row) != len(header) {
			return nil, fmt.Errorf("%w: %s row %d has %d columns, want %d",
				ErrMalformedLog, path, i+2, len(row), len(header))
		}

		ts, err := time.Parse(opts.TimestampFormat, row[tsCol])
		if err != nil {
			return nil, fmt.Errorf("%w: %s row %d: %v", ErrMalformedLog, path, i+2, err)
		}

		fields := make(map[string]string, len(header))
		for j, name := range header {
			fields[name] = row[j]
		}

		records = append(records, Record{
			Time:   ts.Truncate(time.Second),
			Fields: fields,
		})
	}

	return &Table{records: records}, nil
}

// findTaggedLog returns the first matching log in directory-listing order.
func findTaggedLog(dir, deploymentID, tag string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("%w: listing %s: %v", ErrNoTelemetryLog, dir, err)
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !util.HasExtFold(name, ".csv") {
			continue
		}
		if strings.Contains(name, tag) && strings.Contains(name, deploymentID) {
			return filepath.Join(dir, name), nil
		}
	}
	return "", fmt.Errorf("%w: no CSV containing %q and %q in %s", ErrNoTelemetryLog, tag, deploymentID, dir)
}
