package pipeline

import (
	"context"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mritc-tools/towpack/internal/archive"
	"github.com/mritc-tools/towpack/internal/ifdo"
	"github.com/mritc-tools/towpack/internal/logging"
	"github.com/mritc-tools/towpack/internal/telemetry"
)

const deploymentLog = `FinalTime,UsblLatitude,UsblLongitude,Pres,Pitch,Roll
2018-11-23 06:13:20.500000,-44.2513,147.3342,1012.5,2.1,-0.4
2018-11-23 06:13:30.100000,-44.2514,147.3344,1013.0,2.2,-0.5
`

func writeJPEG(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, jpeg.Encode(f, image.NewRGBA(image.Rect(0, 0, 64, 48)), nil))
	require.NoError(t, f.Close())
}

// sourceTree lays out one deployment's raw capture directory.
func sourceTree(t *testing.T, withTelemetry bool) string {
	t.Helper()
	src := filepath.Join(t.TempDir(), "IN2018_V06_021")
	if withTelemetry {
		require.NoError(t, os.MkdirAll(filepath.Join(src, "data"), 0o755))
		require.NoError(t, os.WriteFile(
			filepath.Join(src, "data", "SENSOR_TAG_021.CSV"), []byte(deploymentLog), 0o644))
	}
	writeJPEG(t, filepath.Join(src, "stills", "PLAT_DSP_IN2018V06_021_0001_20181123T061320Z.JPG"))
	writeJPEG(t, filepath.Join(src, "stills", "PLAT_SCP_IN2018V06_021_0001_20181123T061330Z.JPG"))
	require.NoError(t, os.MkdirAll(filepath.Join(src, "video"), 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(src, "video", "PLAT_SVY_IN2018V06_021_0001_20181123T061324Z.MP4"),
		[]byte("mp4"), 0o644))
	return src
}

func memoryArchive(t *testing.T) *archive.Manager {
	t.Helper()
	m := archive.NewManager(zerolog.Nop(), "")
	db, err := m.GetSqliteDB("")
	require.NoError(t, err)
	m.DB = db
	m.IsValid = true
	m.ShouldSaveLocal = true
	require.NoError(t, m.Setup())
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func newService(t *testing.T, arch *archive.Manager, dryRun bool) *Service {
	t.Helper()
	return NewService(Dependencies{
		Archive:    arch,
		Provenance: ifdo.DefaultProvenance("test"),
		Telemetry:  telemetry.DefaultOptions(),
		DryRun:     dryRun,
	})
}

func TestRun_FullPipeline(t *testing.T) {
	src := sourceTree(t, true)
	dst := filepath.Join(t.TempDir(), "IN2018_V06_021")
	arch := memoryArchive(t)

	run, err := newService(t, arch, false).Run(context.Background(), src, dst)
	require.NoError(t, err)

	assert.Equal(t, "021", run.DeploymentID)
	assert.Equal(t, 4, run.FilesLinked)
	assert.Equal(t, 0, run.FilesFailed)
	assert.Equal(t, 3, run.AssetsMatched)
	assert.Equal(t, 0, run.AssetsUnmatched)
	assert.Equal(t, 2, run.TrackPoints)
	assert.NotZero(t, run.Duration)

	assert.FileExists(t, filepath.Join(dst, "thumbnails",
		"PLAT_DSP_IN2018V06_021_0001_20181123T061320Z_THUMB.JPG"))
	assert.FileExists(t, filepath.Join(dst, "IN2018_V06_021_OVERVIEW.JPG"))

	// data + two stills + video + two thumbnails + overview
	assert.Len(t, run.Entries, 7)
	runs, err := arch.RunsForDeployment("021")
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestRun_NoTelemetrySkipsPackaging(t *testing.T) {
	src := sourceTree(t, false)
	dst := filepath.Join(t.TempDir(), "IN2018_V06_021")

	run, err := newService(t, memoryArchive(t), false).Run(context.Background(), src, dst)
	require.NoError(t, err)

	assert.Equal(t, 3, run.FilesLinked)
	assert.Equal(t, 0, run.AssetsMatched)
	assert.Empty(t, run.Entries)
	assert.Zero(t, run.TrackPoints)
}

func TestProcess_ConfiguredThumbnailSize(t *testing.T) {
	src := sourceTree(t, true)
	dst := filepath.Join(t.TempDir(), "IN2018_V06_021")

	svc := NewService(Dependencies{
		Provenance:      ifdo.DefaultProvenance("test"),
		Telemetry:       telemetry.DefaultOptions(),
		ThumbnailMaxDim: 32,
	})
	_, err := svc.Import(src, dst, "021")
	require.NoError(t, err)
	require.NoError(t, svc.Process(dst, "021"))

	f, err := os.Open(filepath.Join(dst, "thumbnails",
		"PLAT_DSP_IN2018V06_021_0001_20181123T061320Z_THUMB.JPG"))
	require.NoError(t, err)
	defer f.Close()
	img, err := jpeg.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 32, img.Bounds().Dx())
}

func TestPackage_ReturnsLoadedTable(t *testing.T) {
	src := sourceTree(t, true)
	dst := filepath.Join(t.TempDir(), "IN2018_V06_021")
	svc := newService(t, memoryArchive(t), false)
	_, err := svc.Import(src, dst, "021")
	require.NoError(t, err)

	man, table, err := svc.Package(dst, "021")
	require.NoError(t, err)
	require.NotNil(t, table)
	assert.Equal(t, 2, table.Len())
	assert.NotEmpty(t, man)
}

func TestRun_DryRunMutatesNothing(t *testing.T) {
	src := sourceTree(t, true)
	dst := filepath.Join(t.TempDir(), "IN2018_V06_021")
	arch := memoryArchive(t)

	run, err := newService(t, arch, true).Run(context.Background(), src, dst)
	require.NoError(t, err)
	assert.True(t, run.DryRun)

	assert.NoDirExists(t, dst)
	runs, err := arch.RunsForDeployment("021")
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestNewService_WiresLogCallbacks(t *testing.T) {
	lm := logging.NewManager()
	svc := NewService(Dependencies{LogManager: lm, DryRun: true})

	require.NotNil(t, lm.GetDeployment)
	require.NotNil(t, lm.GetPhase)
	require.NotNil(t, lm.IsDryRun)
	assert.True(t, lm.IsDryRun())
	assert.Empty(t, lm.GetDeployment())

	svc.setPhase("021", "import")
	assert.Equal(t, "021", lm.GetDeployment())
	assert.Equal(t, "import", lm.GetPhase())
}
