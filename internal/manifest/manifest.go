// Package manifest builds the packaging manifest for one deployment:
// a mapping from each file under the destination tree to its relative
// archive path, plus matched telemetry and image metadata where a
// temporal correlation succeeded.
package manifest

import (
	"errors"
	"io/fs"
	"log/slog"
	"path"
	"path/filepath"

	"github.com/mritc-tools/towpack/internal/asset"
	"github.com/mritc-tools/towpack/internal/ifdo"
	"github.com/mritc-tools/towpack/internal/match"
	"github.com/mritc-tools/towpack/internal/telemetry"
	"github.com/mritc-tools/towpack/internal/util"
)

// Entry is one manifest record. Destination is always relative, rooted
// under the deployment identifier. Metadata and Telemetry are nil for
// pass-through and unmatched files.
type Entry struct {
	Destination string
	Metadata    []*ifdo.ImageData
	Telemetry   map[string]string
}

// Manifest maps each discovered file path to its entry.
type Manifest map[string]Entry

// Matched reports whether the entry carries a correlated telemetry record.
func (e Entry) Matched() bool {
	return e.Telemetry != nil
}

// Builder constructs manifests. The provenance block is shared across
// every metadata record a builder produces.
type Builder struct {
	logger *slog.Logger
	prov   *ifdo.Provenance
	opts   telemetry.Options
}

func NewBuilder(logger *slog.Logger, prov *ifdo.Provenance, opts telemetry.Options) *Builder {
	return &Builder{logger: logger, prov: prov, opts: opts}
}

// Build enumerates every file under destRoot and produces the manifest,
// along with the telemetry table it was correlated against so callers
// can reuse it. When the deployment's telemetry log is missing or
// malformed the manifest is empty and the table nil, signalling the
// caller to skip packaging, and no error is returned.
func (b *Builder) Build(destRoot, deploymentID string) (Manifest, *telemetry.Table, error) {
	table, err := telemetry.Load(filepath.Join(destRoot, "data"), deploymentID, b.opts)
	if err != nil {
		if errors.Is(err, telemetry.ErrNoTelemetryLog) || errors.Is(err, telemetry.ErrMalformedLog) {
			b.logger.Warn("skipping packaging, telemetry unavailable",
				"deployment", deploymentID, "error", err)
			return Manifest{}, nil, nil
		}
		return nil, nil, err
	}

	files, err := listTree(destRoot)
	if err != nil {
		return nil, nil, err
	}

	out := make(Manifest, len(files))
	for _, rel := range files {
		src := filepath.Join(destRoot, rel)
		out[src] = b.entryFor(src, rel, deploymentID, table)
	}
	return out, table, nil
}

// listTree returns the relative paths of every regular file under root,
// in walk order.
func listTree(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// entryFor maps one file to its manifest entry. Files that are not
// primary visual assets, or whose correlation fails, pass through with
// no metadata attached.
func (b *Builder) entryFor(src, rel, deploymentID string, table *telemetry.Table) Entry {
	dest := path.Join(deploymentID, filepath.ToSlash(rel))
	entry := Entry{Destination: dest}

	kind := asset.KindForPath(src)
	if kind == asset.KindUnknown || asset.IsDerived(src) {
		return entry
	}

	ts, err := asset.ParseCaptureTime(src)
	if err != nil {
		b.logger.Warn("asset excluded from correlation", "path", src, "error", err)
		return entry
	}

	rec, ok, err := match.Match(ts, kind, table)
	if err != nil {
		b.logger.Error("asset correlation failed", "path", src, "kind", kind, "error", err)
		return entry
	}
	if !ok {
		b.logger.Warn("no telemetry match for asset", "path", src, "timestamp", ts)
		return entry
	}

	md, err := ifdo.New(util.Stem(src), rec, ts, b.prov)
	if err != nil {
		b.logger.Warn("metadata construction failed, keeping raw telemetry only",
			"path", src, "error", err)
		entry.Telemetry = rec.Fields
		return entry
	}

	entry.Metadata = []*ifdo.ImageData{md}
	entry.Telemetry = rec.Fields
	return entry
}
