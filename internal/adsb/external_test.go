package adsb

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexibleFieldNumber(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    float64
		wantOK  bool
		present bool
	}{
		{"number", `3500`, 3500, true, true},
		{"numeric string", `"1200.5"`, 1200.5, true, true},
		{"ground sentinel", `"ground"`, 0, true, true},
		{"null", `null`, 0, false, false},
		{"garbage string", `"n/a"`, 0, false, true},
		{"bool", `true`, 0, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f FlexibleField
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &f))
			got, ok := f.Number()
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.present, f.present())
		})
	}
}

func TestFlexibleFieldMissingKey(t *testing.T) {
	var tgt Target
	require.NoError(t, json.Unmarshal([]byte(`{"hex":"e48a1b","flight":"GLO1234 "}`), &tgt))
	assert.False(t, tgt.GS.present())
	assert.False(t, tgt.Lat.present())
}

var convertAt = time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)

func decodeTarget(t *testing.T, raw string) Target {
	t.Helper()
	var tgt Target
	require.NoError(t, json.Unmarshal([]byte(raw), &tgt))
	return tgt
}

func TestTargetObservation(t *testing.T) {
	tgt := decodeTarget(t, `{"hex":"e48a1b","flight":"GLO1234 ","lat":-23.2557,"lon":-46.4731,
		"alt_baro":3000,"gs":162,"track":180.5,"baro_rate":-768}`)

	obs, err := tgt.Observation(convertAt)
	require.NoError(t, err)

	assert.Equal(t, "GLO1234", obs.Callsign)
	assert.Equal(t, "e48a1b", obs.Hex)
	assert.True(t, obs.HasPosition)
	assert.InDelta(t, 162*1.852, obs.GroundSpeedKmh, 1e-9)
	assert.Equal(t, 3000.0, obs.AltitudeFt)
	assert.Equal(t, 180.5, obs.TrackDeg)
	assert.Equal(t, -768.0, obs.VerticalRateFpm)
}

func TestTargetObservationFallbacks(t *testing.T) {
	t.Run("ground altitude", func(t *testing.T) {
		tgt := decodeTarget(t, `{"flight":"TAM3001","lat":-23.4,"lon":-46.4,"alt_baro":"ground","gs":12,"track":90}`)
		obs, err := tgt.Observation(convertAt)
		require.NoError(t, err)
		assert.Zero(t, obs.AltitudeFt)
	})

	t.Run("geometric altitude and rate", func(t *testing.T) {
		tgt := decodeTarget(t, `{"flight":"TAM3002","lat":-23.4,"lon":-46.4,"alt_geom":4100,"gs":200,"track":90,"geom_rate":-640}`)
		obs, err := tgt.Observation(convertAt)
		require.NoError(t, err)
		assert.Equal(t, 4100.0, obs.AltitudeFt)
		assert.Equal(t, -640.0, obs.VerticalRateFpm)
	})

	t.Run("no vertical rate reads as level", func(t *testing.T) {
		tgt := decodeTarget(t, `{"flight":"TAM3003","lat":-23.4,"lon":-46.4,"alt_baro":4100,"gs":200,"track":90}`)
		obs, err := tgt.Observation(convertAt)
		require.NoError(t, err)
		assert.Zero(t, obs.VerticalRateFpm)
	})

	t.Run("true heading", func(t *testing.T) {
		tgt := decodeTarget(t, `{"flight":"TAM3004","lat":-23.4,"lon":-46.4,"alt_baro":4100,"gs":200,"true_heading":271}`)
		obs, err := tgt.Observation(convertAt)
		require.NoError(t, err)
		assert.Equal(t, 271.0, obs.TrackDeg)
	})

	t.Run("magnetic heading corrected", func(t *testing.T) {
		tgt := decodeTarget(t, `{"flight":"TAM3005","lat":-23.4,"lon":-46.4,"alt_baro":4100,"gs":200,"mag_heading":200}`)
		obs, err := tgt.Observation(convertAt)
		require.NoError(t, err)
		// West declination around Sao Paulo lowers the true heading
		assert.Less(t, obs.TrackDeg, 190.0)
		assert.Greater(t, obs.TrackDeg, 170.0)
	})

	t.Run("no position", func(t *testing.T) {
		tgt := decodeTarget(t, `{"flight":"TAM3006","alt_baro":4100,"gs":200,"track":10}`)
		obs, err := tgt.Observation(convertAt)
		require.NoError(t, err)
		assert.False(t, obs.HasPosition)
	})
}

func TestTargetObservationMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"no speed", `{"flight":"AZU1","lat":-23.4,"lon":-46.4,"alt_baro":4100,"track":10}`},
		{"no altitude", `{"flight":"AZU2","lat":-23.4,"lon":-46.4,"gs":200,"track":10}`},
		{"no heading", `{"flight":"AZU3","lat":-23.4,"lon":-46.4,"alt_baro":4100,"gs":200}`},
		{"magnetic heading without position", `{"flight":"AZU4","alt_baro":4100,"gs":200,"mag_heading":10}`},
		{"unparsable speed", `{"flight":"AZU5","lat":-23.4,"lon":-46.4,"alt_baro":4100,"gs":"fast","track":10}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tgt := decodeTarget(t, tt.raw)
			_, err := tgt.Observation(convertAt)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedRecord))
		})
	}
}
