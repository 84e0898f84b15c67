package inference

import (
	"time"

	"github.com/yegors/approach-monitor/internal/weather"
)

// AirportProfile is a monitored airport. Loaded once at startup.
type AirportProfile struct {
	ICAO        string  `json:"icao"`
	Name        string  `json:"name"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	ElevationFt float64 `json:"elevation_ft"`
}

// Observation is one aircraft as reported by the telemetry source for this cycle.
type Observation struct {
	Hex             string  `json:"hex"`
	Callsign        string  `json:"callsign"`
	Lat             float64 `json:"lat"`
	Lon             float64 `json:"lon"`
	HasPosition     bool    `json:"has_position"`
	GroundSpeedKmh  float64 `json:"ground_speed_kmh"`
	TrackDeg        float64 `json:"track_deg"`
	AltitudeFt      float64 `json:"altitude_ft"`
	VerticalRateFpm float64 `json:"vertical_rate_fpm"`
}

// Status of a confirmed approach
type Status string

const (
	StatusOnTime    Status = "On time"
	StatusDelayed   Status = "Delayed"
	StatusEmergency Status = "Emergency"
)

// Reasons paired with each status
const (
	ReasonNormal    = "normal operation"
	ReasonWeather   = "weather conditions"
	ReasonEmergency = "deviation or anomalous profile"
)

// SpeedTrend compares ground speed with the previous confirmed cycle.
type SpeedTrend string

const (
	TrendIncreasing SpeedTrend = "increasing"
	TrendDecreasing SpeedTrend = "decreasing"
	TrendStable     SpeedTrend = "stable"
)

// FlightRecord is a confirmed aircraft-to-airport match for one cycle.
type FlightRecord struct {
	Callsign            string     `json:"callsign"`
	Hex                 string     `json:"hex"`
	Target              string     `json:"target"`
	Lat                 float64    `json:"lat"`
	Lon                 float64    `json:"lon"`
	AltitudeFt          float64    `json:"altitude_ft"`
	GroundSpeedKmh      float64    `json:"ground_speed_kmh"`
	VerticalRateFpm     float64    `json:"vertical_rate_fpm"`
	DistanceKm          float64    `json:"distance_km"`
	Score               float64    `json:"score"`
	Status              Status     `json:"status"`
	SpeedTrend          SpeedTrend `json:"speed_trend"`
	DelayReason         string     `json:"delay_reason"`
	Emergency           bool       `json:"emergency"`
	ETAMinutes          float64    `json:"eta_minutes"`
	WeatherDelayMinutes int        `json:"weather_delay_minutes"`

	// Weather is the destination snapshot the status was derived from
	Weather *weather.Snapshot `json:"-" msgpack:"-"`
}

// AirportReport groups one airport's weather and confirmed flights.
type AirportReport struct {
	Airport AirportProfile          `json:"airport"`
	Weather weather.Snapshot        `json:"weather"`
	Risk    weather.RiskLevel       `json:"risk"`
	Runway  weather.RunwayCondition `json:"runway"`
	Flights []FlightRecord          `json:"flights"`
}

// Report is the result of one analysis cycle. Airports keep the configured order
// and flights within an airport are sorted closest first.
type Report struct {
	CycleAt  time.Time       `json:"cycle_at"`
	Airports []AirportReport `json:"airports"`
	Stats    CycleStats      `json:"stats"`
}

// CycleStats counts what happened to the observations of a cycle.
type CycleStats struct {
	Observations int `json:"observations"`
	Filtered     int `json:"filtered"`
	BelowGate    int `json:"below_gate"`
	Duplicates   int `json:"duplicates"` // confirmed again later in the same snapshot
	Confirmed    int `json:"confirmed"`
	Emergencies  int `json:"emergencies"`
}

// FlightCount returns the number of confirmed flights across all airports.
func (r *Report) FlightCount() int {
	n := 0
	for _, a := range r.Airports {
		n += len(a.Flights)
	}
	return n
}

// Airport returns the report for the given ICAO code.
func (r *Report) Airport(icao string) (AirportReport, bool) {
	for _, a := range r.Airports {
		if a.Airport.ICAO == icao {
			return a, true
		}
	}
	return AirportReport{}, false
}
