package weather

// Risk thresholds
const (
	criticalWindKmh     = 30.0
	criticalPrecipMm    = 0.5
	criticalProbability = 70.0
	mediumPrecipMm      = 0.1
	mediumProbability   = 30.0
	wetRunwayPrecipMm   = 0.2
)

// Classify maps a snapshot to its risk tier.
func Classify(s Snapshot) RiskLevel {
	if IsCritical(s) {
		return RiskCritical
	}
	if s.PrecipitationMm >= mediumPrecipMm || s.PrecipitationProbability >= mediumProbability {
		return RiskMedium
	}
	return RiskLow
}

// IsCritical reports whether any of the critical triggers is met.
func IsCritical(s Snapshot) bool {
	return s.WindSpeedKmh >= criticalWindKmh ||
		s.PrecipitationMm >= criticalPrecipMm ||
		s.PrecipitationProbability >= criticalProbability
}

// Runway returns DRY below 0.2 mm of current precipitation, WET otherwise.
func Runway(s Snapshot) RunwayCondition {
	if s.PrecipitationMm < wetRunwayPrecipMm {
		return RunwayDry
	}
	return RunwayWet
}
