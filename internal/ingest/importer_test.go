package ingest

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeSource(t *testing.T, root string, rel ...string) {
	t.Helper()
	for _, r := range rel {
		path := filepath.Join(root, r)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(r), 0644))
	}
}

func TestImport_ClassifiesBuckets(t *testing.T) {
	source := t.TempDir()
	dest := t.TempDir()
	writeSource(t, source,
		"data/SENSOR_TAG_021.CSV",
		"data/SENSOR_TAG_007.CSV", // wrong deployment, ignored
		"data/notes.txt",          // not a CSV, ignored
		"stills/MRITC_DSP_IN2018_V06_021_20181123T023543Z.JPG",
		"stills/MRITC_DSS_IN2018_V06_021_20181123T023548Z.JPG",
		"video/MRITC_SVY_IN2018_V06_021_20181123T023543Z.MP4",
		"video/MRITC_SVY_IN2018_V06_021_20181123T023543_Z.MP4", // sentinel, excluded
		"video/MRITC_SVY_IN2018_V06_021_raw.MP4",               // no Z suffix, excluded
	)

	im := NewImporter(discardLogger(), false)
	res, err := im.Import(source, dest, "021")
	require.NoError(t, err)

	assert.Equal(t, 4, res.Linked)
	assert.Equal(t, 0, res.AlreadyExisted)
	assert.Equal(t, 0, res.Failed)

	assert.FileExists(t, filepath.Join(dest, "data", "SENSOR_TAG_021.CSV"))
	assert.NoFileExists(t, filepath.Join(dest, "data", "SENSOR_TAG_007.CSV"))
	assert.NoFileExists(t, filepath.Join(dest, "data", "notes.txt"))
	assert.FileExists(t, filepath.Join(dest, "stills", "MRITC_DSP_IN2018_V06_021_20181123T023543Z.JPG"))
	assert.FileExists(t, filepath.Join(dest, "stills", "MRITC_DSS_IN2018_V06_021_20181123T023548Z.JPG"))
	assert.FileExists(t, filepath.Join(dest, "video", "MRITC_SVY_IN2018_V06_021_20181123T023543Z.MP4"))
	assert.NoFileExists(t, filepath.Join(dest, "video", "MRITC_SVY_IN2018_V06_021_20181123T023543_Z.MP4"))
	assert.NoFileExists(t, filepath.Join(dest, "video", "MRITC_SVY_IN2018_V06_021_raw.MP4"))
}

func TestImport_RerunOnlyWarns(t *testing.T) {
	source := t.TempDir()
	dest := t.TempDir()
	writeSource(t, source,
		"data/SENSOR_TAG_021.CSV",
		"stills/MRITC_DSP_IN2018_V06_021_20181123T023543Z.JPG",
	)

	im := NewImporter(discardLogger(), false)
	first, err := im.Import(source, dest, "021")
	require.NoError(t, err)
	assert.Equal(t, 2, first.Linked)

	second, err := im.Import(source, dest, "021")
	require.NoError(t, err)
	assert.Equal(t, 0, second.Linked)
	assert.Equal(t, 2, second.AlreadyExisted)
	assert.Equal(t, 0, second.Failed)
}

func TestImport_MissingSourceSubdirs(t *testing.T) {
	source := t.TempDir()
	dest := t.TempDir()

	im := NewImporter(discardLogger(), false)
	res, err := im.Import(source, dest, "021")
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)

	// destination buckets still created
	assert.DirExists(t, filepath.Join(dest, "data"))
	assert.DirExists(t, filepath.Join(dest, "stills"))
	assert.DirExists(t, filepath.Join(dest, "video"))
}

func TestImport_DryRunMutatesNothing(t *testing.T) {
	source := t.TempDir()
	dest := t.TempDir()
	writeSource(t, source,
		"data/SENSOR_TAG_021.CSV",
		"stills/MRITC_DSP_IN2018_V06_021_20181123T023543Z.JPG",
	)

	im := NewImporter(discardLogger(), true)
	res, err := im.Import(source, dest, "021")
	require.NoError(t, err)

	// decision logic still runs
	assert.Equal(t, 2, res.Linked)

	// but the destination is untouched
	entries, err := os.ReadDir(dest)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestImport_LinkFailureIsPerFile(t *testing.T) {
	source := t.TempDir()
	dest := t.TempDir()
	writeSource(t, source,
		"stills/MRITC_DSP_IN2018_V06_021_20181123T023543Z.JPG",
		"stills/MRITC_DSS_IN2018_V06_021_20181123T023548Z.JPG",
	)

	// make one destination path unusable by occupying it with a directory
	require.NoError(t, os.MkdirAll(filepath.Join(dest, "stills", "MRITC_DSP_IN2018_V06_021_20181123T023543Z.JPG"), 0755))

	im := NewImporter(discardLogger(), false)
	res, err := im.Import(source, dest, "021")
	require.NoError(t, err)

	// the sibling still succeeds
	assert.Equal(t, 1, res.Linked)
	assert.FileExists(t, filepath.Join(dest, "stills", "MRITC_DSS_IN2018_V06_021_20181123T023548Z.JPG"))
	assert.Equal(t, 1, res.AlreadyExisted+res.Failed)
}
