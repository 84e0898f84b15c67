package inference

// Params holds the tunable thresholds of the inference pass.
type Params struct {
	AnalysisRadiusKm float64 `toml:"analysis_radius_km"` // candidates beyond this score 0
	ConfirmScore     float64 `toml:"confirm_score"`      // minimum adjusted score to emit a record
	AlignmentWeight  float64 `toml:"alignment_weight"`
	DistanceWeight   float64 `toml:"distance_weight"`

	// Validity filter
	MinCallsignLength int     `toml:"min_callsign_length"`
	MinGroundSpeedKmh float64 `toml:"min_ground_speed_kmh"`
	MaxClimbRateFpm   float64 `toml:"max_climb_rate_fpm"`

	// Penalties
	OverflightRadiusKm    float64 `toml:"overflight_radius_km"`
	OverflightAltitudeFt  float64 `toml:"overflight_altitude_ft"`
	OverflightPenalty     float64 `toml:"overflight_penalty"`
	HysteresisMarginKm    float64 `toml:"hysteresis_margin_km"`
	HysteresisPenalty     float64 `toml:"hysteresis_penalty"`
	GlideslopeFtPerKm     float64 `toml:"glideslope_ft_per_km"`
	GlideslopeBaseFt      float64 `toml:"glideslope_base_ft"`
	GlideslopePenalty     float64 `toml:"glideslope_penalty"`
	ShortFinalRadiusKm    float64 `toml:"short_final_radius_km"`
	ShortFinalMaxHeightFt float64 `toml:"short_final_max_height_ft"`
	ShortFinalPenalty     float64 `toml:"short_final_penalty"`

	// Derived fields
	WeatherDelayMinutes     int     `toml:"weather_delay_minutes"`
	TrendThresholdKmh       float64 `toml:"trend_threshold_kmh"`
	EmergencyMaxAltitudeFt  float64 `toml:"emergency_max_altitude_ft"`
	EmergencyMinDistanceKm  float64 `toml:"emergency_min_distance_km"`
	EmergencyDescentRateFpm float64 `toml:"emergency_descent_rate_fpm"`
	EmergencySpeedDropKmh   float64 `toml:"emergency_speed_drop_kmh"`
}

// DefaultParams returns the thresholds the scoring model was tuned with.
func DefaultParams() Params {
	return Params{
		AnalysisRadiusKm: 150,
		ConfirmScore:     85,
		AlignmentWeight:  0.70,
		DistanceWeight:   0.30,

		MinCallsignLength: 3,
		MinGroundSpeedKmh: 50,
		MaxClimbRateFpm:   1200,

		OverflightRadiusKm:    80,
		OverflightAltitudeFt:  10000,
		OverflightPenalty:     40,
		HysteresisMarginKm:    5,
		HysteresisPenalty:     30,
		GlideslopeFtPerKm:     450,
		GlideslopeBaseFt:      1500,
		GlideslopePenalty:     50,
		ShortFinalRadiusKm:    10,
		ShortFinalMaxHeightFt: 3000,
		ShortFinalPenalty:     100,

		WeatherDelayMinutes:     15,
		TrendThresholdKmh:       50,
		EmergencyMaxAltitudeFt:  5000,
		EmergencyMinDistanceKm:  50,
		EmergencyDescentRateFpm: -2500,
		EmergencySpeedDropKmh:   180,
	}
}
