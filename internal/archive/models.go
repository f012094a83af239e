package archive

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"github.com/mritc-tools/towpack/internal/geo"
	"github.com/mritc-tools/towpack/internal/manifest"
)

// PackRun is one deployment packaging pass.
type PackRun struct {
	ID           uint      `gorm:"primarykey" json:"id"`
	CreatedAt    time.Time `json:"createdAt"`
	DeploymentID string    `gorm:"index" json:"deploymentId"`
	SourceRoot   string    `json:"sourceRoot"`
	DestRoot     string    `json:"destRoot"`
	DryRun       bool      `json:"dryRun"`

	FilesLinked     int           `json:"filesLinked"`
	FilesSkipped    int           `json:"filesSkipped"`
	FilesFailed     int           `json:"filesFailed"`
	AssetsMatched   int           `json:"assetsMatched"`
	AssetsUnmatched int           `json:"assetsUnmatched"`
	Duration        time.Duration `json:"duration"`

	// Towed track summary, WKB hex in EPSG:3857.
	TrackPoints int       `json:"trackPoints"`
	TrackWKB    string    `json:"trackWkb"`
	TrackStart  time.Time `json:"trackStart"`
	TrackEnd    time.Time `json:"trackEnd"`

	Entries []PackEntry `gorm:"foreignKey:PackRunID" json:"entries,omitempty"`
}

// PackEntry is one manifest entry archived under its run.
type PackEntry struct {
	ID          uint   `gorm:"primarykey" json:"id"`
	PackRunID   uint   `gorm:"index" json:"packRunId"`
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Matched     bool   `json:"matched"`

	Telemetry datatypes.JSON `json:"telemetry,omitempty"`
	Metadata  datatypes.JSON `json:"metadata,omitempty"`
}

// Models lists every archived type for migration.
var Models = []any{
	&PackRun{},
	&PackEntry{},
}

// SetTrack copies a computed track summary onto the run.
func (r *PackRun) SetTrack(s geo.Summary) {
	r.TrackPoints = s.Points
	r.TrackWKB = s.WKBHex
	r.TrackStart = s.Start
	r.TrackEnd = s.End
}

// EntriesFromManifest converts a manifest into archivable entries.
// Marshal failures are reported so a bad record never silently drops.
func EntriesFromManifest(m manifest.Manifest) ([]PackEntry, error) {
	entries := make([]PackEntry, 0, len(m))
	for src, e := range m {
		entry := PackEntry{
			Source:      src,
			Destination: e.Destination,
			Matched:     e.Matched(),
		}
		if e.Telemetry != nil {
			raw, err := json.Marshal(e.Telemetry)
			if err != nil {
				return nil, err
			}
			entry.Telemetry = raw
		}
		if e.Metadata != nil {
			raw, err := json.Marshal(e.Metadata)
			if err != nil {
				return nil, err
			}
			entry.Metadata = raw
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
