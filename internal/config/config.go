package config

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/yegors/approach-monitor/internal/adsb"
	"github.com/yegors/approach-monitor/internal/inference"
	"github.com/yegors/approach-monitor/internal/simulation"
	"github.com/yegors/approach-monitor/internal/weather"
	"github.com/yegors/approach-monitor/pkg/logger"
)

// Config represents the main application configuration structure
// containing all configuration sections
type Config struct {
	Logging       LoggingConfig       `toml:"logging"`       // Application logging settings
	ADSB          adsb.Config         `toml:"adsb"`          // Aircraft telemetry source settings
	Weather       weather.Config      `toml:"wx"`            // Weather source settings
	Inference     InferenceConfig     `toml:"inference"`     // Scoring thresholds and history bounds
	Cycle         CycleConfig         `toml:"cycle"`         // Analysis cadence
	Storage       StorageConfig       `toml:"storage"`       // Data persistence settings
	Server        ServerConfig        `toml:"server"`        // HTTP server settings
	Console       ConsoleConfig       `toml:"console"`       // Terminal report settings
	Notifications NotificationsConfig `toml:"notifications"` // Desktop alert settings
	Archive       ArchiveConfig       `toml:"archive"`       // Compressed cycle snapshots
	Simulation    simulation.Config   `toml:"simulation"`    // Synthetic traffic for the simulated source
	Station       StationConfig       `toml:"station"`       // Airport database used to complete [[airports]]
	Airports      []AirportConfig     `toml:"airports"`      // Monitored airports, in evaluation order
}

// LoggingConfig contains application logging configuration
type LoggingConfig struct {
	Level      string `toml:"level"`        // Log level: "debug", "info", "warn", or "error"
	Format     string `toml:"format"`       // Log format: "json" (structured) or "console" (human-readable)
	File       string `toml:"file"`         // Optional rotating log file
	MaxSizeMB  int    `toml:"max_size_mb"`  // Rotate after this size
	MaxBackups int    `toml:"max_backups"`  // Rotated files to keep
	MaxAgeDays int    `toml:"max_age_days"` // Days to keep rotated files
}

// InferenceConfig embeds the scoring thresholds next to the history bounds.
type InferenceConfig struct {
	inference.Params

	HistoryMaxEntries int `toml:"history_max_entries"` // 0 keeps every callsign
	HistoryTTLMinutes int `toml:"history_ttl_minutes"` // 0 never expires
}

// CycleConfig controls how often an analysis cycle runs
type CycleConfig struct {
	IntervalSeconds int `toml:"interval_seconds"`
}

// StorageConfig contains data persistence configuration
type StorageConfig struct {
	Enabled        bool   `toml:"enabled"`
	SQLiteBasePath string `toml:"sqlite_base_path"` // Actual filename is generated as approach-YYYY-MM-DD.db
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Enabled          bool   `toml:"enabled"`
	Port             int    `toml:"port"`                  // HTTP port for the server
	Host             string `toml:"host"`                  // Host address to bind to
	ReadTimeoutSecs  int    `toml:"read_timeout_seconds"`  // Maximum duration for reading the entire request
	WriteTimeoutSecs int    `toml:"write_timeout_seconds"` // Maximum duration for writing the response
	IdleTimeoutSecs  int    `toml:"idle_timeout_seconds"`  // Keep-alive idle timeout
}

// ConsoleConfig controls the terminal report
type ConsoleConfig struct {
	Enabled     bool `toml:"enabled"`
	ClearScreen bool `toml:"clear_screen"`
}

// NotificationsConfig controls desktop emergency alerts
type NotificationsConfig struct {
	Enabled bool `toml:"enabled"`
}

// ArchiveConfig controls the compressed per-cycle snapshots
type ArchiveConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

// StationConfig points at an OurAirports style airports.csv
type StationConfig struct {
	AirportsDBPath string `toml:"airports_db_path"` // Optional; fills missing coordinates, names and elevations
}

// AirportConfig is one monitored airport
type AirportConfig struct {
	ICAO        string  `toml:"icao"`
	Name        string  `toml:"name"`
	Latitude    float64 `toml:"lat"`
	Longitude   float64 `toml:"lon"`
	ElevationFt float64 `toml:"elevation_ft"`
}

// DefaultAirports returns the Sao Paulo terminal area airports
func DefaultAirports() []AirportConfig {
	return []AirportConfig{
		{ICAO: "SBGR", Name: "Guarulhos", Latitude: -23.4356, Longitude: -46.4731, ElevationFt: 2430},
		{ICAO: "SBSP", Name: "Congonhas", Latitude: -23.6261, Longitude: -46.6564, ElevationFt: 2631},
		{ICAO: "SBKP", Name: "Viracopos", Latitude: -23.0074, Longitude: -47.1344, ElevationFt: 2170},
	}
}

// Default returns a configuration that runs without a config file
func Default() *Config {
	return &Config{
		Logging:       LoggingConfig{Level: "info", Format: "console", MaxSizeMB: 50, MaxBackups: 3, MaxAgeDays: 14},
		ADSB:          adsb.DefaultConfig(),
		Weather:       weather.DefaultConfig(),
		Inference:     InferenceConfig{Params: inference.DefaultParams()},
		Cycle:         CycleConfig{IntervalSeconds: 300},
		Storage:       StorageConfig{Enabled: true, SQLiteBasePath: "data"},
		Server:        ServerConfig{Enabled: true, Host: "127.0.0.1", Port: 8080, ReadTimeoutSecs: 15, WriteTimeoutSecs: 15, IdleTimeoutSecs: 60},
		Console:       ConsoleConfig{Enabled: true, ClearScreen: true},
		Notifications: NotificationsConfig{Enabled: false},
		Archive:       ArchiveConfig{Enabled: false, Dir: "data/archive"},
	}
}

// Load loads configuration from a TOML file on top of the defaults
func Load(path string) (*Config, error) {
	config := Default()

	// Check if the file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	if _, err := toml.DecodeFile(path, config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	if len(config.Airports) == 0 {
		config.Airports = DefaultAirports()
	}

	if config.Station.AirportsDBPath != "" {
		if err := config.loadAirportsFromCSV(); err != nil {
			return nil, fmt.Errorf("failed to load airport details from CSV: %w", err)
		}
	}

	return config, nil
}

// LoadWithFallback loads the configuration by checking multiple locations in order of preference
func LoadWithFallback(preferredPath string) (*Config, error) {
	searchPaths := []string{
		preferredPath,         // User-specified path (if provided)
		"configs/config.toml", // configs/ folder
		"config.toml",         // Root directory
	}

	// Remove duplicates while preserving order
	uniquePaths := make([]string, 0, len(searchPaths))
	seen := make(map[string]bool)
	for _, path := range searchPaths {
		if path != "" && !seen[path] {
			uniquePaths = append(uniquePaths, path)
			seen[path] = true
		}
	}

	var lastErr error
	for _, path := range uniquePaths {
		if _, err := os.Stat(path); err == nil {
			config, err := Load(path)
			if err != nil {
				lastErr = fmt.Errorf("failed to load config from %s: %w", path, err)
				continue
			}
			return config, nil
		}
		lastErr = fmt.Errorf("config file not found: %s", path)
	}

	return nil, fmt.Errorf("config file not found in any of the expected locations: %v. Last error: %w", uniquePaths, lastErr)
}

// loadAirportsFromCSV completes airports whose coordinates, name or elevation
// were left out, looking them up by ident (OurAirports column layout).
func (c *Config) loadAirportsFromCSV() error {
	file, err := os.Open(c.Station.AirportsDBPath)
	if err != nil {
		return err
	}
	defer file.Close()

	wanted := make(map[string]int, len(c.Airports))
	for i, ap := range c.Airports {
		wanted[strings.ToUpper(ap.ICAO)] = i
	}

	reader := csv.NewReader(file)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	// Skip header
	if _, err := reader.Read(); err != nil {
		return err
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if len(record) < 7 {
			continue
		}

		i, ok := wanted[strings.ToUpper(record[1])]
		if !ok {
			continue
		}
		ap := &c.Airports[i]

		if ap.Name == "" {
			ap.Name = record[3]
		}
		if ap.Latitude == 0 && ap.Longitude == 0 {
			lat, err := strconv.ParseFloat(record[4], 64)
			if err != nil {
				return fmt.Errorf("invalid latitude in CSV for %s: %w", ap.ICAO, err)
			}
			lon, err := strconv.ParseFloat(record[5], 64)
			if err != nil {
				return fmt.Errorf("invalid longitude in CSV for %s: %w", ap.ICAO, err)
			}
			ap.Latitude, ap.Longitude = lat, lon
		}
		// Elevation might be empty
		if ap.ElevationFt == 0 && record[6] != "" {
			if elev, err := strconv.ParseFloat(record[6], 64); err == nil {
				ap.ElevationFt = elev
			}
		}
	}

	return nil
}

// Validate fills unset values with defaults and rejects invalid ones
func (c *Config) Validate() error {
	// Validate logging config
	switch c.Logging.Level {
	case "":
		c.Logging.Level = "info"
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "":
		c.Logging.Format = "console"
	case "json", "console":
	default:
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	if err := c.ValidateADSB(); err != nil {
		return err
	}

	if err := c.ValidateWeather(); err != nil {
		return err
	}

	if err := c.ValidateInference(); err != nil {
		return err
	}

	if err := c.ValidateAirports(); err != nil {
		return err
	}

	if c.Cycle.IntervalSeconds <= 0 {
		return fmt.Errorf("invalid cycle interval: %d", c.Cycle.IntervalSeconds)
	}

	if c.Storage.Enabled && c.Storage.SQLiteBasePath == "" {
		return fmt.Errorf("sqlite_base_path is required when storage is enabled")
	}

	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Archive.Enabled && c.Archive.Dir == "" {
		return fmt.Errorf("archive dir is required when the archive is enabled")
	}

	return nil
}

// ValidateADSB validates the telemetry source configuration
func (c *Config) ValidateADSB() error {
	if c.ADSB.SourceType == "" {
		c.ADSB.SourceType = adsb.SourceExternal
	}

	// Backwards-compatibility: map the short "external" value to the explicit name
	if c.ADSB.SourceType == "external" {
		c.ADSB.SourceType = adsb.SourceExternal
	}

	switch c.ADSB.SourceType {
	case adsb.SourceLocal:
		if c.ADSB.LocalSourceURL == "" {
			return fmt.Errorf("local_source_url is required when source_type is local")
		}
	case adsb.SourceExternal:
		if c.ADSB.ExternalSourceURL == "" {
			return fmt.Errorf("external_source_url is required when source_type is %s", adsb.SourceExternal)
		}
		if c.ADSB.SearchRadiusNM <= 0 {
			return fmt.Errorf("search_radius_nm must be positive when source_type is %s", adsb.SourceExternal)
		}
	case adsb.SourceOpenSky:
		if c.ADSB.OpenSkyURL == "" {
			return fmt.Errorf("opensky_url is required when source_type is %s", adsb.SourceOpenSky)
		}
		if c.ADSB.SearchRadiusNM <= 0 {
			return fmt.Errorf("search_radius_nm must be positive when source_type is %s", adsb.SourceOpenSky)
		}
	case adsb.SourceSimulated:
	default:
		return fmt.Errorf("invalid ADSB source type: %s (must be '%s', '%s', '%s' or '%s')", c.ADSB.SourceType,
			adsb.SourceLocal, adsb.SourceExternal, adsb.SourceOpenSky, adsb.SourceSimulated)
	}

	if c.ADSB.CenterLat < -90 || c.ADSB.CenterLat > 90 {
		return fmt.Errorf("invalid center latitude: %f", c.ADSB.CenterLat)
	}
	if c.ADSB.CenterLon < -180 || c.ADSB.CenterLon > 180 {
		return fmt.Errorf("invalid center longitude: %f", c.ADSB.CenterLon)
	}
	if c.ADSB.RequestTimeoutSeconds <= 0 {
		c.ADSB.RequestTimeoutSeconds = 12
	}

	return nil
}

// ValidateWeather validates the weather configuration
func (c *Config) ValidateWeather() error {
	if c.Weather.APIBaseURL == "" {
		return fmt.Errorf("weather api_base_url is required")
	}
	if c.Weather.RequestTimeoutSeconds <= 0 {
		c.Weather.RequestTimeoutSeconds = 6
	}
	if c.Weather.MaxRetries < 0 {
		return fmt.Errorf("invalid weather max_retries: %d (must be >= 0)", c.Weather.MaxRetries)
	}
	return nil
}

// ValidateInference validates the scoring configuration
func (c *Config) ValidateInference() error {
	p := c.Inference.Params

	if p.AnalysisRadiusKm <= 0 {
		return fmt.Errorf("analysis_radius_km must be positive")
	}
	if p.AlignmentWeight < 0 || p.DistanceWeight < 0 || p.AlignmentWeight+p.DistanceWeight <= 0 {
		return fmt.Errorf("invalid score weights: alignment %.2f, distance %.2f", p.AlignmentWeight, p.DistanceWeight)
	}
	if p.ConfirmScore <= 0 || p.ConfirmScore > 100 {
		return fmt.Errorf("confirm_score must be in (0, 100]: %.1f", p.ConfirmScore)
	}
	if p.MinCallsignLength < 0 {
		return fmt.Errorf("invalid min_callsign_length: %d", p.MinCallsignLength)
	}
	if c.Inference.HistoryMaxEntries < 0 {
		return fmt.Errorf("invalid history_max_entries: %d", c.Inference.HistoryMaxEntries)
	}
	if c.Inference.HistoryTTLMinutes < 0 {
		return fmt.Errorf("invalid history_ttl_minutes: %d", c.Inference.HistoryTTLMinutes)
	}
	return nil
}

// ValidateAirports validates the monitored airports
func (c *Config) ValidateAirports() error {
	if len(c.Airports) == 0 {
		c.Airports = DefaultAirports()
	}

	seen := make(map[string]bool, len(c.Airports))
	for i := range c.Airports {
		ap := &c.Airports[i]
		ap.ICAO = strings.ToUpper(strings.TrimSpace(ap.ICAO))
		if ap.ICAO == "" {
			return fmt.Errorf("airport %d has no icao code", i)
		}
		if seen[ap.ICAO] {
			return fmt.Errorf("duplicate airport: %s", ap.ICAO)
		}
		seen[ap.ICAO] = true

		if ap.Latitude < -90 || ap.Latitude > 90 {
			return fmt.Errorf("invalid latitude for %s: %f", ap.ICAO, ap.Latitude)
		}
		if ap.Longitude < -180 || ap.Longitude > 180 {
			return fmt.Errorf("invalid longitude for %s: %f", ap.ICAO, ap.Longitude)
		}
		if ap.Latitude == 0 && ap.Longitude == 0 {
			return fmt.Errorf("airport %s has no coordinates (set lat/lon or station.airports_db_path)", ap.ICAO)
		}
		if ap.Name == "" {
			ap.Name = ap.ICAO
		}
	}
	return nil
}

// AirportProfiles converts the configured airports for the inference engine
func (c *Config) AirportProfiles() []inference.AirportProfile {
	profiles := make([]inference.AirportProfile, 0, len(c.Airports))
	for _, ap := range c.Airports {
		profiles = append(profiles, inference.AirportProfile{
			ICAO:        ap.ICAO,
			Name:        ap.Name,
			Lat:         ap.Latitude,
			Lon:         ap.Longitude,
			ElevationFt: ap.ElevationFt,
		})
	}
	return profiles
}

// WeatherLocations returns the points weather is fetched for
func (c *Config) WeatherLocations() []weather.Location {
	locs := make([]weather.Location, 0, len(c.Airports))
	for _, ap := range c.Airports {
		locs = append(locs, weather.Location{Code: ap.ICAO, Lat: ap.Latitude, Lon: ap.Longitude})
	}
	return locs
}

// HistoryConfig returns the history store bounds
func (c *Config) HistoryConfig() inference.HistoryConfig {
	return inference.HistoryConfig{
		MaxEntries: c.Inference.HistoryMaxEntries,
		TTL:        time.Duration(c.Inference.HistoryTTLMinutes) * time.Minute,
	}
}

// LoggerConfig returns the logger settings
func (c *Config) LoggerConfig() logger.Config {
	return logger.Config{
		Level:      c.Logging.Level,
		Format:     c.Logging.Format,
		File:       c.Logging.File,
		MaxSizeMB:  c.Logging.MaxSizeMB,
		MaxBackups: c.Logging.MaxBackups,
		MaxAgeDays: c.Logging.MaxAgeDays,
	}
}

// CycleInterval returns the analysis period
func (c *Config) CycleInterval() time.Duration {
	return time.Duration(c.Cycle.IntervalSeconds) * time.Second
}
