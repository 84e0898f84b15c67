package adsb

import (
	"time"

	"github.com/yegors/approach-monitor/internal/inference"
)

// Source types
const (
	SourceLocal     = "local"
	SourceExternal  = "external-adsbexchangelike"
	SourceOpenSky   = "external-opensky"
	SourceSimulated = "simulated"
)

// Config describes where aircraft telemetry comes from and the area it covers.
type Config struct {
	SourceType            string  `toml:"source_type"`             // local, external-adsbexchangelike, external-opensky, simulated
	LocalSourceURL        string  `toml:"local_source_url"`        // e.g. http://192.168.1.10/tar1090/data/aircraft.json
	ExternalSourceURL     string  `toml:"external_source_url"`     // template with placeholders for lat, lon, and radius
	OpenSkyURL            string  `toml:"opensky_url"`             // states/all endpoint
	APIHost               string  `toml:"api_host"`                // optional x-rapidapi-host header
	APIKey                string  `toml:"api_key"`                 // optional x-rapidapi-key header, or OpenSky bearer token
	CenterLat             float64 `toml:"center_lat"`              // center of the search area
	CenterLon             float64 `toml:"center_lon"`              // center of the search area
	SearchRadiusNM        int     `toml:"search_radius_nm"`        // search radius in nautical miles
	RequestTimeoutSeconds int     `toml:"request_timeout_seconds"` // bound on a single fetch
}

// DefaultConfig returns the public adsb.lol feed centered on Sao Paulo.
func DefaultConfig() Config {
	return Config{
		SourceType:            SourceExternal,
		ExternalSourceURL:     "https://api.adsb.lol/v2/lat/%f/lon/%f/dist/%d",
		OpenSkyURL:            "https://opensky-network.org/api/states/all",
		CenterLat:             -23.5,
		CenterLon:             -46.6,
		SearchRadiusNM:        180,
		RequestTimeoutSeconds: 12,
	}
}

// Target is a single aircraft in a readsb/tar1090 style payload.
// Numeric fields use FlexibleField since sources mix numbers, strings and nulls.
type Target struct {
	Hex         string        `json:"hex"`
	Flight      string        `json:"flight"`
	AltBaro     FlexibleField `json:"alt_baro"`
	AltGeom     FlexibleField `json:"alt_geom"`
	GS          FlexibleField `json:"gs"`
	Track       FlexibleField `json:"track"`
	TrueHeading FlexibleField `json:"true_heading"`
	MagHeading  FlexibleField `json:"mag_heading"`
	BaroRate    FlexibleField `json:"baro_rate"`
	GeomRate    FlexibleField `json:"geom_rate"`
	Lat         FlexibleField `json:"lat"`
	Lon         FlexibleField `json:"lon"`
	Seen        FlexibleField `json:"seen"`
}

// aircraftResponse covers both the local ("aircraft") and the external ("ac") payloads.
type aircraftResponse struct {
	Now      float64  `json:"now,omitempty"`
	Messages int      `json:"messages,omitempty"`
	AC       []Target `json:"ac"`
	Aircraft []Target `json:"aircraft"`
}

func (r *aircraftResponse) targets() []Target {
	if len(r.AC) > 0 {
		return r.AC
	}
	return r.Aircraft
}

// Batch is the converted result of one fetch.
type Batch struct {
	FetchedAt    time.Time
	Observations []inference.Observation
	Targets      int // raw targets in the payload
	Malformed    int // targets skipped for missing required fields
}
