package adsb

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/yegors/approach-monitor/internal/inference"
	"github.com/yegors/approach-monitor/internal/physics"
)

// ErrMalformedRecord marks a target that lacks a field the inference needs.
var ErrMalformedRecord = errors.New("malformed record")

// FlexibleField can hold either a string or a number, or nothing when the
// field is absent or null.
type FlexibleField struct {
	value any
}

// NumberField returns a FlexibleField holding v.
func NumberField(v float64) FlexibleField {
	return FlexibleField{value: v}
}

// UnmarshalJSON implements custom JSON unmarshaling for FlexibleField
func (f *FlexibleField) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		f.value = nil
		return nil
	}

	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		f.value = num
		return nil
	}

	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		f.value = str
		return nil
	}

	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		f.value = b
		return nil
	}

	return fmt.Errorf("cannot unmarshal %s into FlexibleField", data)
}

// MarshalJSON writes the held value back out, null when empty.
func (f FlexibleField) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.value)
}

// present reports whether the field carried a value.
func (f FlexibleField) present() bool {
	return f.value != nil
}

// Number returns the value as a float64. The "ground" altitude sentinel reads
// as 0. ok is false when the field is absent or not numeric.
func (f FlexibleField) Number() (float64, bool) {
	switch v := f.value.(type) {
	case float64:
		return v, true
	case string:
		s := strings.TrimSpace(v)
		if s == "ground" {
			return 0, true
		}
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// Float64 returns the value as a float64, 0 when absent or unparsable.
func (f FlexibleField) Float64() float64 {
	n, _ := f.Number()
	return n
}

// String returns the value as a string
func (f FlexibleField) String() string {
	switch v := f.value.(type) {
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

// Observation converts the target into an inference observation. Missing lat/lon
// leaves HasPosition false; missing speed, altitude or any heading source makes
// the record malformed.
func (t *Target) Observation(now time.Time) (inference.Observation, error) {
	obs := inference.Observation{
		Hex:      strings.TrimSpace(t.Hex),
		Callsign: strings.TrimSpace(t.Flight),
	}

	lat, okLat := t.Lat.Number()
	lon, okLon := t.Lon.Number()
	if okLat && okLon {
		obs.Lat, obs.Lon, obs.HasPosition = lat, lon, true
	}

	gs, ok := t.GS.Number()
	if !ok {
		return obs, fmt.Errorf("%w: %s has no ground speed", ErrMalformedRecord, t.Hex)
	}
	obs.GroundSpeedKmh = physics.KnotsToKmh(gs)

	alt, ok := t.AltBaro.Number()
	if !ok {
		alt, ok = t.AltGeom.Number()
	}
	if !ok {
		return obs, fmt.Errorf("%w: %s has no altitude", ErrMalformedRecord, t.Hex)
	}
	obs.AltitudeFt = alt

	track, ok := t.heading(obs, now)
	if !ok {
		return obs, fmt.Errorf("%w: %s has no track or heading", ErrMalformedRecord, t.Hex)
	}
	obs.TrackDeg = track

	if vr, ok := t.BaroRate.Number(); ok {
		obs.VerticalRateFpm = vr
	} else {
		obs.VerticalRateFpm = t.GeomRate.Float64()
	}

	return obs, nil
}

// heading prefers the ground track, then true heading, then magnetic heading
// corrected by the local declination.
func (t *Target) heading(obs inference.Observation, now time.Time) (float64, bool) {
	if v, ok := t.Track.Number(); ok {
		return physics.NormalizeHeading(v), true
	}
	if v, ok := t.TrueHeading.Number(); ok {
		return physics.NormalizeHeading(v), true
	}
	if v, ok := t.MagHeading.Number(); ok && obs.HasPosition {
		return physics.MagneticToTrue(v, obs.Lat, obs.Lon, obs.AltitudeFt, now), true
	}
	return 0, false
}
