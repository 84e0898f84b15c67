package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegors/approach-monitor/internal/adsb"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.toml", `
[adsb]
source_type = "simulated"

[inference]
confirm_score = 90.0
history_ttl_minutes = 30

[cycle]
interval_seconds = 60
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, adsb.SourceSimulated, cfg.ADSB.SourceType)
	assert.Equal(t, 90.0, cfg.Inference.ConfirmScore)
	// Untouched thresholds keep their defaults
	assert.Equal(t, 150.0, cfg.Inference.AnalysisRadiusKm)
	assert.Equal(t, 0.70, cfg.Inference.AlignmentWeight)
	assert.Equal(t, time.Minute, cfg.CycleInterval())
	assert.Equal(t, 30*time.Minute, cfg.HistoryConfig().TTL)
	assert.Equal(t, 0, cfg.HistoryConfig().MaxEntries)

	require.Len(t, cfg.Airports, 3)
	assert.Equal(t, []string{"SBGR", "SBSP", "SBKP"}, []string{cfg.Airports[0].ICAO, cfg.Airports[1].ICAO, cfg.Airports[2].ICAO})
}

func TestLoadAirports(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.toml", `
[[airports]]
icao = "sbkp"
lat = -23.0074
lon = -47.1344
elevation_ft = 2170
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	profiles := cfg.AirportProfiles()
	require.Len(t, profiles, 1)
	assert.Equal(t, "SBKP", profiles[0].ICAO)
	assert.Equal(t, "SBKP", profiles[0].Name)
	assert.Equal(t, 2170.0, profiles[0].ElevationFt)

	locs := cfg.WeatherLocations()
	require.Len(t, locs, 1)
	assert.Equal(t, "SBKP", locs[0].Code)
}

func TestLoadAirportsFromCSV(t *testing.T) {
	dir := t.TempDir()
	csvPath := writeFile(t, dir, "airports.csv",
		`"id","ident","type","name","latitude_deg","longitude_deg","elevation_ft"
5910,"SBGR","large_airport","Guarulhos - Governador André Franco Montoro International Airport",-23.431944,-46.467778,2461
5914,"SBSP","medium_airport","Congonhas Airport",-23.627657,-46.654601,2631
`)
	path := writeFile(t, dir, "config.toml", `
[station]
airports_db_path = "`+filepath.ToSlash(csvPath)+`"

[[airports]]
icao = "SBGR"
elevation_ft = 2430

[[airports]]
icao = "SBSP"
name = "Congonhas"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	gr := cfg.Airports[0]
	assert.InDelta(t, -23.431944, gr.Latitude, 1e-9)
	assert.InDelta(t, -46.467778, gr.Longitude, 1e-9)
	assert.Equal(t, 2430.0, gr.ElevationFt, "explicit elevation wins")
	assert.Contains(t, gr.Name, "Guarulhos")

	sp := cfg.Airports[1]
	assert.Equal(t, "Congonhas", sp.Name)
	assert.Equal(t, 2631.0, sp.ElevationFt)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestLoadWithFallbackUsesPreferredPath(t *testing.T) {
	path := writeFile(t, t.TempDir(), "custom.toml", "[cycle]\ninterval_seconds = 42\n")

	cfg, err := LoadWithFallback(path)
	require.NoError(t, err)
	assert.Equal(t, 42, cfg.Cycle.IntervalSeconds)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(c *Config) {}},
		{name: "legacy external alias", mutate: func(c *Config) { c.ADSB.SourceType = "external" }},
		{name: "unknown source", mutate: func(c *Config) { c.ADSB.SourceType = "radar" }, wantErr: true},
		{name: "local without url", mutate: func(c *Config) { c.ADSB.SourceType = adsb.SourceLocal }, wantErr: true},
		{name: "bad log level", mutate: func(c *Config) { c.Logging.Level = "verbose" }, wantErr: true},
		{name: "zero interval", mutate: func(c *Config) { c.Cycle.IntervalSeconds = 0 }, wantErr: true},
		{name: "bad port", mutate: func(c *Config) { c.Server.Port = 70000 }, wantErr: true},
		{name: "disabled server ignores port", mutate: func(c *Config) { c.Server.Enabled = false; c.Server.Port = 0 }},
		{name: "confirm score above 100", mutate: func(c *Config) { c.Inference.ConfirmScore = 101 }, wantErr: true},
		{name: "negative history size", mutate: func(c *Config) { c.Inference.HistoryMaxEntries = -1 }, wantErr: true},
		{name: "duplicate airport", mutate: func(c *Config) {
			c.Airports = []AirportConfig{{ICAO: "SBGR", Latitude: -23, Longitude: -46}, {ICAO: "sbgr", Latitude: -23, Longitude: -46}}
		}, wantErr: true},
		{name: "airport without coordinates", mutate: func(c *Config) {
			c.Airports = []AirportConfig{{ICAO: "SBGR"}}
		}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, adsb.SourceExternal, cfg.ADSB.SourceType)
			assert.NotEmpty(t, cfg.Airports)
		})
	}
}
