package inference

import (
	"math"

	"github.com/yegors/approach-monitor/internal/physics"
)

// Scorer computes the raw destination affinity of an aircraft for one airport.
type Scorer struct {
	radiusKm        float64
	alignmentWeight float64
	distanceWeight  float64
}

// NewScorer creates a scorer from the analysis radius and blend weights.
func NewScorer(p Params) Scorer {
	return Scorer{
		radiusKm:        p.AnalysisRadiusKm,
		alignmentWeight: p.AlignmentWeight,
		distanceWeight:  p.DistanceWeight,
	}
}

// Score blends heading alignment with proximity. Beyond the analysis radius the
// score is 0. The distance is always returned.
func (s Scorer) Score(lat, lon, trackDeg float64, airport AirportProfile) (score, distanceKm float64) {
	distanceKm = physics.DistanceKm(lat, lon, airport.Lat, airport.Lon)
	if distanceKm > s.radiusKm {
		return 0, distanceKm
	}

	ideal := physics.Bearing(lat, lon, airport.Lat, airport.Lon)
	angleDiff := physics.AngleDifference(trackDeg, ideal)

	score = s.alignmentWeight*AlignmentScore(angleDiff) + s.distanceWeight*s.distanceScore(distanceKm)
	return score, distanceKm
}

// AlignmentScore decays linearly from 100 at 0° off-course to 0 at 50°.
func AlignmentScore(angleDiff float64) float64 {
	return math.Max(0, 100-2*angleDiff)
}

func (s Scorer) distanceScore(distanceKm float64) float64 {
	return math.Max(0, 100*(1-distanceKm/s.radiusKm))
}
