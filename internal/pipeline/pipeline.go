// Package pipeline orchestrates the import, process and package phases
// for towed camera deployments.
package pipeline

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/mritc-tools/towpack/internal/archive"
	"github.com/mritc-tools/towpack/internal/asset"
	"github.com/mritc-tools/towpack/internal/geo"
	"github.com/mritc-tools/towpack/internal/ifdo"
	"github.com/mritc-tools/towpack/internal/imagery"
	"github.com/mritc-tools/towpack/internal/ingest"
	"github.com/mritc-tools/towpack/internal/logging"
	"github.com/mritc-tools/towpack/internal/manifest"
	"github.com/mritc-tools/towpack/internal/metrics"
	"github.com/mritc-tools/towpack/internal/telemetry"
	"github.com/mritc-tools/towpack/internal/util"
)

// Dependencies holds everything a pipeline service needs. Archive and
// Metrics are optional; nil disables that sink.
type Dependencies struct {
	LogManager *logging.Manager
	Archive    *archive.Manager
	Metrics    *metrics.Manager
	Provenance *ifdo.Provenance
	Telemetry  telemetry.Options
	DryRun     bool

	// Zero values fall back to the imagery defaults.
	ThumbnailMaxDim int
	OverviewColumns int
}

// Service runs pipeline phases for one deployment at a time. It is not
// safe for concurrent use; deployments are processed sequentially.
type Service struct {
	deps Dependencies

	deployment string
	phase      string
}

// NewService creates a pipeline service and wires the run-state
// callbacks into the logging manager so every record carries the
// current deployment and phase.
func NewService(deps Dependencies) *Service {
	s := &Service{deps: deps}
	if deps.LogManager != nil {
		deps.LogManager.GetDeployment = func() string { return s.deployment }
		deps.LogManager.GetPhase = func() string { return s.phase }
		deps.LogManager.IsDryRun = func() bool { return s.deps.DryRun }
	}
	return s
}

func (s *Service) logger() *slog.Logger {
	if s.deps.LogManager != nil {
		return s.deps.LogManager.Logger()
	}
	return slog.Default()
}

func (s *Service) setPhase(deployment, phase string) {
	s.deployment = deployment
	s.phase = phase
}

// Import links one deployment's source files into the destination tree.
func (s *Service) Import(sourceRoot, destRoot, deploymentID string) (ingest.Result, error) {
	s.setPhase(deploymentID, "import")
	defer s.setPhase("", "")

	importer := ingest.NewImporter(s.logger(), s.deps.DryRun)
	return importer.Import(sourceRoot, destRoot, deploymentID)
}

// Process renders thumbnails and the grid overview for a populated
// destination tree.
func (s *Service) Process(destRoot, deploymentID string) error {
	s.setPhase(deploymentID, "process")
	defer s.setPhase("", "")

	gen := imagery.NewGenerator(s.logger(), s.deps.DryRun)
	if s.deps.ThumbnailMaxDim > 0 {
		gen.MaxDim = s.deps.ThumbnailMaxDim
	}
	if s.deps.OverviewColumns > 0 {
		gen.Columns = s.deps.OverviewColumns
	}
	thumbs := filepath.Join(destRoot, "thumbnails")
	if _, err := gen.Thumbnails(filepath.Join(destRoot, "stills"), thumbs); err != nil {
		return err
	}
	overview := filepath.Join(destRoot, filepath.Base(destRoot)+"_OVERVIEW.JPG")
	return gen.Overview(thumbs, overview)
}

// Package builds the manifest for a populated destination tree and
// returns the telemetry table it correlated against. An empty manifest
// (nil table) means telemetry was unavailable and the deployment should
// be skipped.
func (s *Service) Package(destRoot, deploymentID string) (manifest.Manifest, *telemetry.Table, error) {
	s.setPhase(deploymentID, "package")
	defer s.setPhase("", "")

	builder := manifest.NewBuilder(s.logger(), s.deps.Provenance, s.deps.Telemetry)
	return builder.Build(destRoot, deploymentID)
}

// Run executes all phases for one deployment directory and records the
// run to the configured sinks. The deployment identifier is derived
// from the source directory name.
func (s *Service) Run(ctx context.Context, sourceRoot, destRoot string) (*archive.PackRun, error) {
	deploymentID := util.DeploymentID(sourceRoot)
	start := time.Now()

	run := &archive.PackRun{
		DeploymentID: deploymentID,
		SourceRoot:   sourceRoot,
		DestRoot:     destRoot,
		DryRun:       s.deps.DryRun,
	}

	res, err := s.Import(sourceRoot, destRoot, deploymentID)
	if err != nil {
		return nil, err
	}
	run.FilesLinked = res.Linked
	run.FilesSkipped = res.AlreadyExisted
	run.FilesFailed = res.Failed

	if err := s.Process(destRoot, deploymentID); err != nil {
		return nil, err
	}

	man, table, err := s.Package(destRoot, deploymentID)
	if err != nil {
		return nil, err
	}
	run.AssetsMatched, run.AssetsUnmatched = tally(man)

	if len(man) > 0 {
		if summary, err := geo.Summarize(table); err == nil {
			run.SetTrack(summary)
		} else {
			s.logger().Warn("no deployment track", "deployment", deploymentID, "error", err)
		}
		entries, err := archive.EntriesFromManifest(man)
		if err != nil {
			return nil, err
		}
		run.Entries = entries
	}
	run.Duration = time.Since(start)

	s.record(ctx, run)
	return run, nil
}

// record writes the completed run to the archive and metrics sinks.
// Sink failures are logged, never fatal to the run.
func (s *Service) record(ctx context.Context, run *archive.PackRun) {
	if s.deps.DryRun {
		s.logger().Info("dry run, not recording", "deployment", run.DeploymentID)
		return
	}
	if s.deps.Archive != nil {
		if err := s.deps.Archive.SaveRun(run); err != nil {
			s.logger().Error("failed to archive run", "deployment", run.DeploymentID, "error", err)
		}
	}
	if s.deps.Metrics != nil {
		if err := s.deps.Metrics.ReportRun(run); err != nil {
			s.logger().Error("failed to report run metrics", "deployment", run.DeploymentID, "error", err)
		}
	}
	if s.deps.LogManager != nil {
		if err := s.deps.LogManager.Flush(ctx); err != nil {
			s.logger().Warn("log flush failed", "error", err)
		}
	}
}

// tally counts correlated and uncorrelated primary visual assets.
func tally(man manifest.Manifest) (matched, unmatched int) {
	for src, entry := range man {
		if !asset.IsVisual(src) || asset.IsDerived(src) {
			continue
		}
		if entry.Matched() {
			matched++
		} else {
			unmatched++
		}
	}
	return matched, unmatched
}
