package geo

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mritc-tools/towpack/internal/telemetry"
)

func tableFromLog(t *testing.T, log string) *telemetry.Table {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "SENSOR_TAG_021.CSV"), []byte(log), 0o644))
	table, err := telemetry.Load(dir, "021", telemetry.DefaultOptions())
	require.NoError(t, err)
	return table
}

const trackLog = `FinalTime,UsblLatitude,UsblLongitude,Pres
2018-11-23 06:13:20.000000,-44.2513,147.3342,1012.5
2018-11-23 06:13:25.000000,-44.2514,147.3344,1013.0
2018-11-23 06:13:30.000000,-44.2515,147.3346,1013.4
`

func TestTrack_ProjectsPositions(t *testing.T) {
	ls, err := Track(tableFromLog(t, trackLog))
	require.NoError(t, err)
	require.Equal(t, 3, ls.Coordinates().Length())

	// 147.3342E in web mercator is ~16.4e6 m east
	first := ls.Coordinates().GetXY(0)
	assert.InDelta(t, 16.4e6, first.X, 0.1e6)
	assert.Less(t, first.Y, 0.0)
}

func TestTrack_SkipsUnusableRows(t *testing.T) {
	log := `FinalTime,UsblLatitude,UsblLongitude
2018-11-23 06:13:20.000000,-44.2513,147.3342
2018-11-23 06:13:25.000000,n/a,147.3344
2018-11-23 06:13:30.000000,-44.2515,147.3346
`
	ls, err := Track(tableFromLog(t, log))
	require.NoError(t, err)
	assert.Equal(t, 2, ls.Coordinates().Length())
}

func TestTrack_InsufficientPositions(t *testing.T) {
	log := `FinalTime,UsblLatitude,UsblLongitude
2018-11-23 06:13:20.000000,-44.2513,147.3342
`
	_, err := Track(tableFromLog(t, log))
	assert.ErrorIs(t, err, ErrInsufficientTrack)
}

func TestSummarize(t *testing.T) {
	s, err := Summarize(tableFromLog(t, trackLog))
	require.NoError(t, err)

	assert.Equal(t, 3, s.Points)
	assert.Equal(t, time.Date(2018, 11, 23, 6, 13, 20, 0, time.UTC), s.Start)
	assert.Equal(t, time.Date(2018, 11, 23, 6, 13, 30, 0, time.UTC), s.End)
	assert.NotEmpty(t, s.WKBHex)
	// WKB little endian marker + LineString type
	assert.Equal(t, "0102000000", s.WKBHex[:10])
}

func TestPoint3857From4326(t *testing.T) {
	p := Point3857From4326(0, 0)
	xy, ok := p.XY()
	require.True(t, ok)
	assert.InDelta(t, 0, xy.X, 1e-6)
	assert.InDelta(t, 0, xy.Y, 1e-6)
}
