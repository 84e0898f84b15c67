package physics

import (
	"math"
	"time"

	"github.com/westphae/geomag/pkg/egm96"
	"github.com/westphae/geomag/pkg/wmm"
)

// Unit conversions
const (
	KmhPerKnot   = 1.852  // Ground speed from ADS-B is reported in knots
	KmPerNM      = 1.852
	FeetToMeters = 0.3048 // Altitudes are feet, WMM wants meters
)

// KnotsToKmh converts a speed in knots to km/h.
func KnotsToKmh(knots float64) float64 {
	return knots * KmhPerKnot
}

// NormalizeHeading wraps any angle in degrees into [0,360).
func NormalizeHeading(deg float64) float64 {
	h := math.Mod(deg, 360)
	if h < 0 {
		h += 360
	}
	// math.Mod(-0.0000001, 360) + 360 rounds to 360
	if h >= 360 {
		h = 0
	}
	return h
}

// AngleDifference returns the smallest circular difference between two headings, in [0,180].
func AngleDifference(a, b float64) float64 {
	diff := math.Abs(a - b)
	diff = math.Mod(diff, 360)
	return math.Min(diff, 360-diff)
}

// MagneticDeclination calculates the magnetic declination for a given position and time
// Returns declination in degrees (+East, -West)
func MagneticDeclination(lat, lon, altFt float64, date time.Time) float64 {
	loc := egm96.NewLocationGeodetic(lat, lon, altFt*FeetToMeters)

	mag, err := wmm.CalculateWMMMagneticField(loc, date)
	if err != nil {
		// Outside the model validity window; treat as no variation
		return 0.0
	}

	return mag.D()
}

// MagneticToTrue converts a magnetic heading to a true heading at the given position.
func MagneticToTrue(magHeading, lat, lon, altFt float64, date time.Time) float64 {
	return NormalizeHeading(magHeading + MagneticDeclination(lat, lon, altFt, date))
}
