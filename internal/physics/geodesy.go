package physics

import "math"

// WGS-84 ellipsoid
const (
	wgs84A = 6378137.0
	wgs84F = 1 / 298.257223563
	wgs84B = (1 - wgs84F) * wgs84A

	// Mean earth radius used by the spherical fallback
	earthRadiusKm = 6371.0088

	vincentyMaxIterations = 200
	vincentyTolerance     = 1e-12
)

func toRadians(deg float64) float64 { return deg * math.Pi / 180 }
func toDegrees(rad float64) float64 { return rad * 180 / math.Pi }

// Bearing returns the initial great-circle heading from point 1 to point 2 in degrees [0,360).
func Bearing(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := toRadians(lat1)
	phi2 := toRadians(lat2)
	dLon := toRadians(lon2 - lon1)

	y := math.Sin(dLon) * math.Cos(phi2)
	x := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(dLon)

	return NormalizeHeading(toDegrees(math.Atan2(y, x)))
}

// DistanceKm returns the geodesic distance between two points on the WGS-84 ellipsoid,
// using Vincenty's inverse formula. Nearly antipodal pairs where the iteration does not
// converge fall back to the spherical distance.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	if d, ok := vincentyInverse(lat1, lon1, lat2, lon2); ok {
		return d / 1000
	}
	return HaversineKm(lat1, lon1, lat2, lon2)
}

// HaversineKm returns the great-circle distance on a sphere of mean earth radius.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLon := toRadians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

// vincentyInverse returns the distance in meters and whether the iteration converged.
func vincentyInverse(lat1, lon1, lat2, lon2 float64) (float64, bool) {
	L := toRadians(lon2 - lon1)
	U1 := math.Atan((1 - wgs84F) * math.Tan(toRadians(lat1)))
	U2 := math.Atan((1 - wgs84F) * math.Tan(toRadians(lat2)))
	sinU1, cosU1 := math.Sincos(U1)
	sinU2, cosU2 := math.Sincos(U2)

	lambda := L
	var sinSigma, cosSigma, sigma, cos2Alpha, cos2SigmaM float64

	converged := false
	for i := 0; i < vincentyMaxIterations; i++ {
		sinLambda, cosLambda := math.Sincos(lambda)

		t1 := cosU2 * sinLambda
		t2 := cosU1*sinU2 - sinU1*cosU2*cosLambda
		sinSigma = math.Sqrt(t1*t1 + t2*t2)
		if sinSigma == 0 {
			// Coincident points
			return 0, true
		}
		cosSigma = sinU1*sinU2 + cosU1*cosU2*cosLambda
		sigma = math.Atan2(sinSigma, cosSigma)

		sinAlpha := cosU1 * cosU2 * sinLambda / sinSigma
		cos2Alpha = 1 - sinAlpha*sinAlpha
		if cos2Alpha != 0 {
			cos2SigmaM = cosSigma - 2*sinU1*sinU2/cos2Alpha
		} else {
			// Equatorial line
			cos2SigmaM = 0
		}

		C := wgs84F / 16 * cos2Alpha * (4 + wgs84F*(4-3*cos2Alpha))
		prev := lambda
		lambda = L + (1-C)*wgs84F*sinAlpha*
			(sigma+C*sinSigma*(cos2SigmaM+C*cosSigma*(-1+2*cos2SigmaM*cos2SigmaM)))

		if math.Abs(lambda-prev) < vincentyTolerance {
			converged = true
			break
		}
	}
	if !converged {
		return 0, false
	}

	uSq := cos2Alpha * (wgs84A*wgs84A - wgs84B*wgs84B) / (wgs84B * wgs84B)
	A := 1 + uSq/16384*(4096+uSq*(-768+uSq*(320-175*uSq)))
	B := uSq / 1024 * (256 + uSq*(-128+uSq*(74-47*uSq)))
	deltaSigma := B * sinSigma * (cos2SigmaM + B/4*(cosSigma*(-1+2*cos2SigmaM*cos2SigmaM)-
		B/6*cos2SigmaM*(-3+4*sinSigma*sinSigma)*(-3+4*cos2SigmaM*cos2SigmaM)))

	return wgs84B * A * (sigma - deltaSigma), true
}
