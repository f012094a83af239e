// Package ifdo builds iFDO-style image metadata records from matched
// telemetry samples and capture timestamps.
//
// The fixed scientific/provenance attributes (acquisition context,
// licensing, creators) live in a single immutable Provenance value built
// once per run and shared by reference across every record.
package ifdo

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/mritc-tools/towpack/internal/telemetry"
)

// Person identifies a PI or creator, optionally with an ORCID or site URI.
type Person struct {
	Name string `json:"name"`
	URI  string `json:"uri,omitempty"`
}

// License identifies the usage license for packaged imagery.
type License struct {
	Name string `json:"name"`
	URI  string `json:"uri,omitempty"`
}

// Viewport describes the camera housing viewport.
type Viewport struct {
	Type                string  `json:"viewport-type"`
	OpticalDensity      float64 `json:"viewport-optical-density"`
	ThicknessMillimeter float64 `json:"viewport-thickness-millimeter"`
}

// Provenance is the static provenance block shared by every metadata
// record of a run. Construct once, pass by reference.
type Provenance struct {
	PI               Person
	Creators         []Person
	Context          string
	Project          string
	Platform         string
	Sensor           string
	License          License
	Copyright        string
	Abstract         string
	Viewport         Viewport
	IdentScheme      string
	CurationProtocol string
}

// DefaultProvenance returns the provenance block for the MRI deep towed
// camera platform. version is embedded into the curation protocol.
func DefaultProvenance(version string) *Provenance {
	return &Provenance{
		PI: Person{Name: "Alan Williams"},
		Creators: []Person{
			{Name: "Alan Williams"},
			{Name: "Christopher Jackett", URI: "https://orcid.org/0000-0003-1132-1558"},
			{Name: "Jeff Cordell"},
			{Name: "Karl Forcey", URI: "https://orcid.org/0009-0004-1780-5355"},
			{Name: "David Webb", URI: "https://orcid.org/0000-0001-5847-7002"},
			{Name: "Franziska Althaus", URI: "https://orcid.org/0000-0002-5336-4612"},
			{Name: "Candice Untiedt", URI: "https://orcid.org/0000-0003-1562-3473"},
			{Name: "Marine National Facility", URI: "https://mnf.csiro.au"},
			{Name: "CSIRO", URI: "https://www.csiro.au"},
		},
		Context: "CSIRO Project OD-211438: Collaborative project between CSIRO and NIWA aimed at 1) " +
			"Recovery of deep-sea seamount ecosystems following human impacts; 2) Status of deep sea " +
			"corals in Australian and New Zealand regions",
		Project:  "IN2018_V06",
		Platform: "MRI Deep Towed Camera System (MRITC)",
		Sensor: "Video Camera Survey (SVY) / Digital Stills Camera Port (DSP), Digital Stills Camera " +
			"Starboard (DSS)",
		License: License{
			Name: "CC BY-NC 4.0",
			URI:  "https://creativecommons.org/licenses/by-nc/4.0",
		},
		Copyright: "CSIRO",
		Abstract: "High definition video and stereo stills imagery (99% systematic (~5s), ~1% human-triggered " +
			"for locations of interest or fault finding) were taken with the CSIRO MRITC platform",
		Viewport: Viewport{
			Type:                "flatport",
			OpticalDensity:      1.49,
			ThicknessMillimeter: 40,
		},
		IdentScheme:      "<platform_id>_<camera_id>_<voyage_id>_<deployment_number>_<datetimestamp>_<image_id>.<ext>",
		CurationProtocol: fmt.Sprintf("Processed with towpack v%s", version),
	}
}

// iFDO capture vocabulary values for this platform.
const (
	acquisitionPhoto       = "photo"
	qualityProduct         = "product"
	deploymentSurvey       = "survey"
	navigationRecon        = "reconstructed"
	illuminationArtificial = "artificial.light"
	pixelMagnitudeCM       = "cm"
	marineZoneSeafloor     = "seafloor"
	spectralResolutionRGB  = "rgb"
	captureModeMixed       = "mixed"
	faunaAttractionNone    = "none"
)

// ImageData is one image's iFDO-style metadata record.
type ImageData struct {
	// iFDO core
	DateTime                  time.Time `json:"image-datetime"`
	Latitude                  float64   `json:"image-latitude"`
	Longitude                 float64   `json:"image-longitude"`
	AltitudeMeters            float64   `json:"image-altitude-meters"`
	CoordinateReferenceSystem string    `json:"image-coordinate-reference-system"`
	Context                   string    `json:"image-context"`
	Project                   string    `json:"image-project"`
	Event                     string    `json:"image-event"`
	Platform                  string    `json:"image-platform"`
	Sensor                    string    `json:"image-sensor"`
	UUID                      string    `json:"image-uuid"`
	PI                        Person    `json:"image-pi"`
	Creators                  []Person  `json:"image-creators"`
	License                   License   `json:"image-license"`
	Copyright                 string    `json:"image-copyright"`
	Abstract                  string    `json:"image-abstract"`

	// iFDO capture
	Acquisition        string   `json:"image-acquisition"`
	Quality            string   `json:"image-quality"`
	Deployment         string   `json:"image-deployment"`
	Navigation         string   `json:"image-navigation"`
	Illumination       string   `json:"image-illumination"`
	PixelMagnitude     string   `json:"image-pixel-magnitude"`
	MarineZone         string   `json:"image-marine-zone"`
	SpectralResolution string   `json:"image-spectral-resolution"`
	CaptureMode        string   `json:"image-capture-mode"`
	FaunaAttraction    string   `json:"image-fauna-attraction"`
	CameraPitchDegrees float64  `json:"image-camera-pitch-degrees"`
	CameraRollDegrees  float64  `json:"image-camera-roll-degrees"`
	OverlapFraction    float64  `json:"image-overlap-fraction"`
	DateTimeFormat     string   `json:"image-datetime-format"`
	Viewport           Viewport `json:"image-camera-housing-viewport"`
	TargetEnvironment  string   `json:"image-target-environment"`
	IdentScheme        string   `json:"image-item-identification-scheme"`
	CurationProtocol   string   `json:"image-curation-protocol"`
}

// New populates a metadata record for one image event from its matched
// telemetry record. event is the relative destination stem identifying
// the image. Altitude is the negated pressure-derived depth.
func New(event string, rec telemetry.Record, captureTime time.Time, prov *Provenance) (*ImageData, error) {
	lat, err := fieldFloat(rec, "UsblLatitude")
	if err != nil {
		return nil, err
	}
	lon, err := fieldFloat(rec, "UsblLongitude")
	if err != nil {
		return nil, err
	}
	pres, err := fieldFloat(rec, "Pres")
	if err != nil {
		return nil, err
	}
	pitch, err := fieldFloat(rec, "Pitch")
	if err != nil {
		return nil, err
	}
	roll, err := fieldFloat(rec, "Roll")
	if err != nil {
		return nil, err
	}

	return &ImageData{
		DateTime:                  captureTime.UTC(),
		Latitude:                  lat,
		Longitude:                 lon,
		AltitudeMeters:            -pres,
		CoordinateReferenceSystem: "EPSG:4326",
		Context:                   prov.Context,
		Project:                   prov.Project,
		Event:                     event,
		Platform:                  prov.Platform,
		Sensor:                    prov.Sensor,
		UUID:                      uuid.NewString(),
		PI:                        prov.PI,
		Creators:                  prov.Creators,
		License:                   prov.License,
		Copyright:                 prov.Copyright,
		Abstract:                  prov.Abstract,

		Acquisition:        acquisitionPhoto,
		Quality:            qualityProduct,
		Deployment:         deploymentSurvey,
		Navigation:         navigationRecon,
		Illumination:       illuminationArtificial,
		PixelMagnitude:     pixelMagnitudeCM,
		MarineZone:         marineZoneSeafloor,
		SpectralResolution: spectralResolutionRGB,
		CaptureMode:        captureModeMixed,
		FaunaAttraction:    faunaAttractionNone,
		CameraPitchDegrees: pitch,
		CameraRollDegrees:  roll,
		OverlapFraction:    0,
		DateTimeFormat:     "2006-01-02 15:04:05.999999",
		Viewport:           prov.Viewport,
		TargetEnvironment:  "Benthic habitat",
		IdentScheme:        prov.IdentScheme,
		CurationProtocol:   prov.CurationProtocol,
	}, nil
}

func fieldFloat(rec telemetry.Record, name string) (float64, error) {
	raw, ok := rec.Fields[name]
	if !ok {
		return 0, fmt.Errorf("telemetry record has no %q field", name)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("telemetry field %q: %w", name, err)
	}
	return v, nil
}
