// Package match aligns visual-asset capture timestamps against the
// telemetry table, one policy per capture kind.
package match

import (
	"errors"
	"fmt"
	"time"

	"github.com/mritc-tools/towpack/internal/asset"
	"github.com/mritc-tools/towpack/internal/telemetry"
)

// ErrUnsupportedAssetKind indicates a programming error: a caller asked to
// correlate a kind that has no matching policy. It is scoped to one file.
var ErrUnsupportedAssetKind = errors.New("unsupported asset kind")

// Match locates the telemetry record for a capture timestamp.
//
// Stills require an exact timestamp match; a miss is no-match, not an
// error. Videos take the nearest record by absolute time difference and
// only miss when the table is empty. Ties go to the first minimal record
// in table load order.
func Match(ts time.Time, kind asset.CaptureKind, table *telemetry.Table) (telemetry.Record, bool, error) {
	switch kind {
	case asset.KindStill:
		rec, ok := table.ExactAt(ts)
		return rec, ok, nil
	case asset.KindVideo:
		rec, ok := table.Nearest(ts)
		return rec, ok, nil
	default:
		return telemetry.Record{}, false, fmt.Errorf("%w: %s", ErrUnsupportedAssetKind, kind)
	}
}
