package display

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegors/approach-monitor/internal/inference"
	"github.com/yegors/approach-monitor/internal/weather"
)

func sampleReport() *inference.Report {
	wet := weather.Snapshot{AirportCode: "SBSP", WindSpeedKmh: 22, PrecipitationMm: 3.1, PrecipitationProbability: 80}
	return &inference.Report{
		CycleAt: time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC),
		Airports: []inference.AirportReport{
			{
				Airport: inference.AirportProfile{ICAO: "SBGR", Name: "Guarulhos"},
				Risk:    weather.RiskLow,
				Runway:  weather.RunwayDry,
				Flights: []inference.FlightRecord{
					{Callsign: "TAM3001", DistanceKm: 19.9, AltitudeFt: 6000, GroundSpeedKmh: 400,
						SpeedTrend: inference.TrendStable, ETAMinutes: 3, Status: inference.StatusOnTime, DelayReason: inference.ReasonNormal},
				},
			},
			{
				Airport: inference.AirportProfile{ICAO: "SBSP", Name: "Congonhas"},
				Weather: wet,
				Risk:    weather.Classify(wet),
				Runway:  weather.Runway(wet),
				Flights: []inference.FlightRecord{},
			},
		},
		Stats: inference.CycleStats{Observations: 5, Confirmed: 1},
	}
}

func TestFormatListsAirportsInOrder(t *testing.T) {
	out := NewConsole(&bytes.Buffer{}, false).Format(sampleReport())

	gr := strings.Index(out, "Guarulhos (SBGR)")
	sp := strings.Index(out, "Congonhas (SBSP)")
	require.NotEqual(t, -1, gr)
	require.NotEqual(t, -1, sp)
	assert.Less(t, gr, sp)

	assert.Contains(t, out, "TAM3001")
	assert.Contains(t, out, "20 km")
	assert.Contains(t, out, string(inference.StatusOnTime))
	assert.Contains(t, out, "Runway: DRY")
	assert.Contains(t, out, "Runway: WET")
	assert.Contains(t, out, "Risk: Critical")
	assert.Contains(t, out, "No inbound flights detected.")
}

func TestRenderClearsScreenWhenConfigured(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewConsole(&buf, true).Render(sampleReport()))
	assert.True(t, strings.HasPrefix(buf.String(), clearScreen))

	buf.Reset()
	require.NoError(t, NewConsole(&buf, false).Render(sampleReport()))
	assert.False(t, strings.HasPrefix(buf.String(), clearScreen))
}

func TestFormatMarksDegradedWeather(t *testing.T) {
	report := sampleReport()
	report.Airports[0].Weather.Degraded = true

	out := NewConsole(&bytes.Buffer{}, false).Format(report)
	assert.Contains(t, out, "weather unavailable")
}
