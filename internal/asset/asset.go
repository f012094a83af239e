// Package asset classifies survey files into capture kinds and extracts
// capture timestamps from the platform filename convention.
//
// Visual asset filenames carry six underscore-delimited fields, e.g.
// MRITC_DSP_IN2018_V06_021_20181123T023543Z.JPG; the sixth field is the
// capture timestamp in compact ISO form, always UTC.
package asset

import (
	"fmt"
	"strings"
	"time"

	"github.com/mritc-tools/towpack/internal/util"
)

// CaptureKind is the closed set of temporal-correlation policies.
type CaptureKind int

const (
	// KindUnknown marks files that are not correlatable visual assets.
	KindUnknown CaptureKind = iota
	// KindStill is an instantaneous capture, matched exactly.
	KindStill
	// KindVideo is a time-spanning capture, matched to the nearest record.
	KindVideo
)

func (k CaptureKind) String() string {
	switch k {
	case KindStill:
		return "still"
	case KindVideo:
		return "video"
	default:
		return "unknown"
	}
}

const (
	thumbMarker    = "_THUMB"
	overviewMarker = "_OVERVIEW"

	// capture timestamps parse as 20060102T150405 after the Z suffix check
	captureTimeLayout = "20060102T150405"
)

// KindForPath classifies a file by extension into a capture kind.
func KindForPath(path string) CaptureKind {
	switch {
	case util.HasExtFold(path, ".jpg"):
		return KindStill
	case util.HasExtFold(path, ".mp4"):
		return KindVideo
	default:
		return KindUnknown
	}
}

// IsVisual reports whether the file is a correlatable visual asset.
func IsVisual(path string) bool {
	return KindForPath(path) != KindUnknown
}

// IsDerived reports whether the file is a processing product (thumbnail or
// overview image) that must be excluded from correlation.
func IsDerived(name string) bool {
	return strings.Contains(name, thumbMarker) || strings.Contains(name, overviewMarker)
}

// TimestampParseError reports a filename that does not carry a validly
// positioned capture timestamp. It is scoped to a single file.
type TimestampParseError struct {
	Path string
	Err  error
}

func (e *TimestampParseError) Error() string {
	return fmt.Sprintf("no parseable capture timestamp in %q: %v", e.Path, e.Err)
}

func (e *TimestampParseError) Unwrap() error {
	return e.Err
}

// ParseCaptureTime extracts the capture timestamp from a visual asset
// filename. The timestamp is the sixth underscore-delimited field of the
// stem, in the pattern YYYYMMDDTHHMMSSZ, interpreted as UTC.
func ParseCaptureTime(path string) (time.Time, error) {
	stem := util.Stem(path)
	fields := strings.Split(stem, "_")
	if len(fields) < 6 {
		return time.Time{}, &TimestampParseError{
			Path: path,
			Err:  fmt.Errorf("expected 6 underscore-delimited fields, got %d", len(fields)),
		}
	}

	token := fields[5]
	if !strings.HasSuffix(token, "Z") {
		return time.Time{}, &TimestampParseError{
			Path: path,
			Err:  fmt.Errorf("timestamp token %q lacks Z suffix", token),
		}
	}

	ts, err := time.ParseInLocation(captureTimeLayout, strings.TrimSuffix(token, "Z"), time.UTC)
	if err != nil {
		return time.Time{}, &TimestampParseError{Path: path, Err: err}
	}
	return ts, nil
}
