package weather

import "time"

// Config represents the weather source configuration
type Config struct {
	APIBaseURL            string `toml:"api_base_url"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
	MaxRetries            int    `toml:"max_retries"`
}

// DefaultConfig returns the default weather configuration
func DefaultConfig() Config {
	return Config{
		APIBaseURL:            "https://api.open-meteo.com/v1/forecast",
		RequestTimeoutSeconds: 6,
		MaxRetries:            1,
	}
}

// LocationTimeout returns the longest one location's fetch may take: every
// attempt at the request timeout plus the backoff between them.
func (c Config) LocationTimeout() time.Duration {
	retries := max(c.MaxRetries, 0)
	attempts := time.Duration(retries+1) * time.Duration(c.RequestTimeoutSeconds) * time.Second
	backoff := time.Duration(500*((1<<uint(retries))-1)) * time.Millisecond
	return attempts + backoff
}

// Location is a point weather is requested for, keyed by airport code.
type Location struct {
	Code string
	Lat  float64
	Lon  float64
}

// Snapshot is the weather observed at one airport for one cycle.
type Snapshot struct {
	AirportCode              string    `json:"airport_code"`
	WindSpeedKmh             float64   `json:"wind_speed_kmh"`
	PrecipitationMm          float64   `json:"precipitation_mm"`
	PrecipitationProbability float64   `json:"precipitation_probability"`
	ObservedAt               time.Time `json:"observed_at"`
	Degraded                 bool      `json:"degraded"` // source failed, values zeroed
}

// RiskLevel is the weather risk tier of a snapshot.
type RiskLevel string

const (
	RiskLow      RiskLevel = "Low"
	RiskMedium   RiskLevel = "Medium"
	RiskCritical RiskLevel = "Critical"
)

// RunwayCondition is the surface state shown on the console.
type RunwayCondition string

const (
	RunwayDry RunwayCondition = "DRY"
	RunwayWet RunwayCondition = "WET"
)

// ForecastResponse is the subset of the Open-Meteo forecast payload we read.
type ForecastResponse struct {
	UTCOffsetSeconds int    `json:"utc_offset_seconds"`
	Timezone         string `json:"timezone"`
	Current          struct {
		Time          string   `json:"time"`
		Precipitation *float64 `json:"precipitation"`
		WindSpeed10m  *float64 `json:"wind_speed_10m"`
	} `json:"current"`
	Hourly struct {
		Time                     []string   `json:"time"`
		PrecipitationProbability []*float64 `json:"precipitation_probability"`
	} `json:"hourly"`
}

// Open-Meteo reports local times without an offset
const openMeteoTimeLayout = "2006-01-02T15:04"
