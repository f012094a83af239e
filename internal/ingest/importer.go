// Package ingest classifies raw survey files and links them into the
// canonical deployment layout (data/stills/video).
package ingest

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mritc-tools/towpack/internal/util"
)

// Result counts the per-file outcomes of one import pass.
type Result struct {
	Linked         int
	AlreadyExisted int
	Failed         int
}

// Importer links source files into destination buckets. Links are
// idempotent in effect: re-running against a populated destination only
// emits per-file "already exists" warnings.
type Importer struct {
	logger *slog.Logger
	dryRun bool
}

// NewImporter creates an importer. In dry-run mode all classification
// decisions and logging are preserved but no filesystem mutation happens.
func NewImporter(logger *slog.Logger, dryRun bool) *Importer {
	return &Importer{logger: logger, dryRun: dryRun}
}

// Import populates destRoot's data, stills and video buckets from the
// matching subdirectories of sourceRoot. Missing source subdirectories
// mean "nothing to import from this bucket", not an error. Individual
// link failures are logged and skipped.
func (im *Importer) Import(sourceRoot, destRoot, deploymentID string) (Result, error) {
	var res Result

	buckets := []string{"data", "stills", "video"}
	for _, b := range buckets {
		if im.dryRun {
			continue
		}
		if err := os.MkdirAll(filepath.Join(destRoot, b), 0755); err != nil {
			return res, err
		}
	}

	im.importDataFiles(filepath.Join(sourceRoot, "data"), filepath.Join(destRoot, "data"), deploymentID, &res)
	im.importStillImages(filepath.Join(sourceRoot, "stills"), filepath.Join(destRoot, "stills"), &res)
	im.importVideoFiles(filepath.Join(sourceRoot, "video"), filepath.Join(destRoot, "video"), &res)

	im.logger.Info("Import finished",
		"linked", res.Linked,
		"alreadyExisted", res.AlreadyExisted,
		"failed", res.Failed)
	return res, nil
}

// importDataFiles links CSV files whose name ends with the deployment ID
// before the extension. All other data files are ignored.
func (im *Importer) importDataFiles(sourceDir, destDir, deploymentID string, res *Result) {
	for _, name := range im.listFiles(sourceDir) {
		if !util.HasExtFold(name, ".csv") {
			continue
		}
		if !strings.HasSuffix(util.Stem(name), deploymentID) {
			continue
		}
		im.link(filepath.Join(sourceDir, name), filepath.Join(destDir, name), res)
	}
}

// importStillImages links every JPG from the stills directory.
func (im *Importer) importStillImages(sourceDir, destDir string, res *Result) {
	for _, name := range im.listFiles(sourceDir) {
		if !util.HasExtFold(name, ".jpg") {
			continue
		}
		im.link(filepath.Join(sourceDir, name), filepath.Join(destDir, name), res)
	}
}

// importVideoFiles links video files whose stem ends with the "Z"
// timestamp suffix. The "_Z" sentinel marks an excluded naming variant.
func (im *Importer) importVideoFiles(sourceDir, destDir string, res *Result) {
	for _, name := range im.listFiles(sourceDir) {
		stem := util.Stem(name)
		if !strings.HasSuffix(stem, "Z") || strings.HasSuffix(stem, "_Z") {
			continue
		}
		im.link(filepath.Join(sourceDir, name), filepath.Join(destDir, name), res)
	}
}

// listFiles returns the plain files in dir, in directory-listing order.
// A missing directory yields no files.
func (im *Importer) listFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			im.logger.Warn("Failed to list source directory", "dir", dir, "error", err)
		}
		return nil
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	return names
}

// link creates one hard link. Failures are scoped to the single file.
func (im *Importer) link(sourceFile, destFile string, res *Result) {
	if im.dryRun {
		im.logger.Debug("Would create hard link", "source", sourceFile, "dest", destFile)
		res.Linked++
		return
	}

	err := os.Link(sourceFile, destFile)
	switch {
	case err == nil:
		im.logger.Debug("Created hard link", "source", sourceFile, "dest", destFile)
		res.Linked++
	case errors.Is(err, fs.ErrExist):
		im.logger.Warn("Destination file already exists", "dest", destFile)
		res.AlreadyExisted++
	default:
		im.logger.Error("Failed to create hard link", "source", sourceFile, "dest", destFile, "error", err)
		res.Failed++
	}
}
