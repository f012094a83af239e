package geo

import (
	"encoding/hex"
	"errors"
	"strconv"
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"

	"github.com/mritc-tools/towpack/internal/telemetry"
)

// DEPLOYMENT TRACKS
// We always store as 3857, including for world locations, because SQLite has
// no spatial awareness and archived geometry must be interpretable from raw
// bytes during migrations. Geometry is stored in WKB, hex-encoded for the
// archive's text columns.

// ErrInsufficientTrack is returned when fewer than two usable USBL
// positions exist in a telemetry table.
var ErrInsufficientTrack = errors.New("fewer than two usable track positions")

// Point3857From4326 creates a projected point from a longitude and latitude.
func Point3857From4326(longitude, latitude float64) geom.Point {
	epsg := wgs84.EPSG()
	f := epsg.Transform(4326, 3857)
	x, y, _ := f(longitude, latitude, 0)
	return geom.NewPoint(
		geom.Coordinates{
			XY: geom.XY{X: x, Y: y},
			Z:  0,
		},
	)
}

// Summary describes one deployment's towed track.
type Summary struct {
	Points int
	Start  time.Time
	End    time.Time
	WKBHex string
}

// Track builds the deployment track as a projected line string from the
// telemetry table's USBL positions, in load order. Records with missing
// or non-numeric positions are skipped.
func Track(table *telemetry.Table) (geom.LineString, error) {
	epsg := wgs84.EPSG()
	f := epsg.Transform(4326, 3857)

	var flat []float64
	for _, rec := range table.Records() {
		lon, lat, ok := position(rec)
		if !ok {
			continue
		}
		x, y, _ := f(lon, lat, 0)
		flat = append(flat, x, y)
	}
	if len(flat) < 4 {
		return geom.LineString{}, ErrInsufficientTrack
	}

	seq := geom.NewSequence(flat, geom.DimXY)
	return geom.NewLineString(seq), nil
}

// Summarize builds the track summary archived per deployment.
func Summarize(table *telemetry.Table) (Summary, error) {
	ls, err := Track(table)
	if err != nil {
		return Summary{}, err
	}
	recs := table.Records()
	return Summary{
		Points: ls.Coordinates().Length(),
		Start:  recs[0].Time,
		End:    recs[len(recs)-1].Time,
		WKBHex: hex.EncodeToString(ls.AsBinary()),
	}, nil
}

func position(rec telemetry.Record) (lon, lat float64, ok bool) {
	lon, err := strconv.ParseFloat(rec.Fields["UsblLongitude"], 64)
	if err != nil {
		return 0, 0, false
	}
	lat, err = strconv.ParseFloat(rec.Fields["UsblLatitude"], 64)
	if err != nil {
		return 0, 0, false
	}
	return lon, lat, true
}
