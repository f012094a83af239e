// Package telemetry loads a deployment's tagged sensor log into an
// in-memory table searchable by capture time.
package telemetry

import "time"

// Record is one telemetry sample: a timestamp floored to whole seconds
// plus the raw sensor columns, consumed opaquely.
type Record struct {
	Time   time.Time
	Fields map[string]string
}

// Table is the loaded telemetry log, in on-disk row order. Timestamps are
// not required to be unique or sorted; lookups scan by absolute time
// difference. The table is read-only after loading.
type Table struct {
	records []Record
}

// Len returns the number of records in the table.
func (t *Table) Len() int {
	return len(t.records)
}

// Records returns the records in load order.
func (t *Table) Records() []Record {
	return t.records
}

// ExactAt returns the first record in load order whose timestamp equals ts
// exactly. The second return value is false when no record matches.
func (t *Table) ExactAt(ts time.Time) (Record, bool) {
	for _, r := range t.records {
		if r.Time.Equal(ts) {
			return r, true
		}
	}
	return Record{}, false
}

// Nearest returns the record minimizing the absolute time difference to
// ts, ties broken by the first minimal record in load order. The second
// return value is false only when the table is empty.
func (t *Table) Nearest(ts time.Time) (Record, bool) {
	if len(t.records) == 0 {
		return Record{}, false
	}

	best := t.records[0]
	bestDiff := absDiff(best.Time, ts)
	for _, r := range t.records[1:] {
		if d := absDiff(r.Time, ts); d < bestDiff {
			best, bestDiff = r, d
		}
	}
	return best, true
}

func absDiff(a, b time.Time) time.Duration {
	d := a.Sub(b)
	if d < 0 {
		return -d
	}
	return d
}
