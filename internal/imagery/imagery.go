// Package imagery produces the derived images for a deployment:
// per-still thumbnails and a single grid overview composed from them.
package imagery

import (
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/image/draw"

	"github.com/mritc-tools/towpack/internal/asset"
	"github.com/mritc-tools/towpack/internal/util"
)

const (
	// DefaultMaxDim bounds both thumbnail dimensions.
	DefaultMaxDim = 300
	// DefaultColumns is the overview grid width in cells.
	DefaultColumns = 10

	// overviewCamera selects the camera whose thumbnails make up the
	// overview grid. Only SCP captures are composed; deployments with
	// no SCP stills get no overview.
	overviewCamera = "SCP"

	jpegQuality = 90
)

// Generator renders thumbnails and overviews. Zero values for MaxDim
// and Columns fall back to the defaults.
type Generator struct {
	logger  *slog.Logger
	dryRun  bool
	MaxDim  int
	Columns int
}

func NewGenerator(logger *slog.Logger, dryRun bool) *Generator {
	return &Generator{logger: logger, dryRun: dryRun, MaxDim: DefaultMaxDim, Columns: DefaultColumns}
}

// ThumbnailName returns the thumbnail file name for a still image path.
func ThumbnailName(stillPath string) string {
	return util.Stem(stillPath) + "_THUMB.JPG"
}

// Thumbnails renders a bounded thumbnail for every primary still image
// in stillsDir into thumbsDir, returning the paths written. Individual
// decode or encode failures are logged and skipped.
func (g *Generator) Thumbnails(stillsDir, thumbsDir string) ([]string, error) {
	entries, err := os.ReadDir(stillsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading stills directory: %w", err)
	}

	if !g.dryRun {
		if err := os.MkdirAll(thumbsDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating thumbnails directory: %w", err)
		}
	}

	var written []string
	for _, entry := range entries {
		if entry.IsDir() || asset.KindForPath(entry.Name()) != asset.KindStill || asset.IsDerived(entry.Name()) {
			continue
		}
		src := filepath.Join(stillsDir, entry.Name())
		dest := filepath.Join(thumbsDir, ThumbnailName(entry.Name()))
		if g.dryRun {
			g.logger.Debug("dry run, would render thumbnail", "source", src, "destination", dest)
			written = append(written, dest)
			continue
		}
		if err := g.renderThumbnail(src, dest); err != nil {
			g.logger.Error("thumbnail failed", "source", src, "error", err)
			continue
		}
		written = append(written, dest)
	}
	return written, nil
}

// Overview composes the deployment's SCP thumbnails into a single grid
// image at outPath, row-major in name order. No SCP thumbnails means no
// overview, which is not an error.
func (g *Generator) Overview(thumbsDir, outPath string) error {
	entries, err := os.ReadDir(thumbsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading thumbnails directory: %w", err)
	}

	var thumbs []string
	for _, entry := range entries {
		if entry.IsDir() || asset.KindForPath(entry.Name()) != asset.KindStill {
			continue
		}
		if !strings.Contains(entry.Name(), overviewCamera) {
			continue
		}
		thumbs = append(thumbs, filepath.Join(thumbsDir, entry.Name()))
	}
	if len(thumbs) == 0 {
		g.logger.Warn("no SCP thumbnails, skipping overview", "directory", thumbsDir)
		return nil
	}
	sort.Strings(thumbs)

	if g.dryRun {
		g.logger.Debug("dry run, would compose overview", "destination", outPath, "cells", len(thumbs))
		return nil
	}

	cell := g.maxDim()
	cols := g.columns()
	rows := (len(thumbs) + cols - 1) / cols
	if len(thumbs) < cols {
		cols = len(thumbs)
	}

	grid := image.NewRGBA(image.Rect(0, 0, cols*cell, rows*cell))
	for i, p := range thumbs {
		img, err := decodeJPEG(p)
		if err != nil {
			g.logger.Error("overview cell skipped", "source", p, "error", err)
			continue
		}
		x := (i % cols) * cell
		y := (i / cols) * cell
		dst := centered(img.Bounds(), image.Rect(x, y, x+cell, y+cell))
		draw.ApproxBiLinear.Scale(grid, dst, img, img.Bounds(), draw.Over, nil)
	}
	return encodeJPEG(outPath, grid)
}

func (g *Generator) renderThumbnail(src, dest string) error {
	img, err := decodeJPEG(src)
	if err != nil {
		return err
	}
	bounds := fit(img.Bounds(), g.maxDim())
	thumb := image.NewRGBA(bounds)
	draw.CatmullRom.Scale(thumb, bounds, img, img.Bounds(), draw.Src, nil)
	return encodeJPEG(dest, thumb)
}

func (g *Generator) maxDim() int {
	if g.MaxDim > 0 {
		return g.MaxDim
	}
	return DefaultMaxDim
}

func (g *Generator) columns() int {
	if g.Columns > 0 {
		return g.Columns
	}
	return DefaultColumns
}

// fit scales bounds down to sit within a maxDim square, preserving
// aspect ratio. Images already inside the square keep their size.
func fit(b image.Rectangle, maxDim int) image.Rectangle {
	w, h := b.Dx(), b.Dy()
	if w <= maxDim && h <= maxDim {
		return image.Rect(0, 0, w, h)
	}
	if w >= h {
		return image.Rect(0, 0, maxDim, h*maxDim/w)
	}
	return image.Rect(0, 0, w*maxDim/h, maxDim)
}

// centered places src's aspect box in the middle of the cell.
func centered(src, cell image.Rectangle) image.Rectangle {
	scaled := fit(src, cell.Dx())
	dx := (cell.Dx() - scaled.Dx()) / 2
	dy := (cell.Dy() - scaled.Dy()) / 2
	return scaled.Add(image.Pt(cell.Min.X+dx, cell.Min.Y+dy))
}

func decodeJPEG(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, err := jpeg.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return img, nil
}

func encodeJPEG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		f.Close()
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return f.Close()
}
