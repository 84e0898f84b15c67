package weather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegors/approach-monitor/pkg/logger"
)

const forecastFixture = `{
  "utc_offset_seconds": -10800,
  "timezone": "America/Sao_Paulo",
  "current": {"time": "2025-03-10T14:15", "interval": 900, "precipitation": 0.3, "wind_speed_10m": 12.5},
  "hourly": {
    "time": ["2025-03-10T12:00", "2025-03-10T13:00", "2025-03-10T14:00", "2025-03-10T15:00"],
    "precipitation_probability": [5, 10, 40, 80]
  }
}`

func newTestClient(url string) *Client {
	cfg := DefaultConfig()
	cfg.APIBaseURL = url
	cfg.MaxRetries = 0
	return NewClient(cfg, logger.NewNop())
}

func TestFetchSnapshot(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "-23.4356", q.Get("latitude"))
		assert.Equal(t, "-46.4731", q.Get("longitude"))
		assert.Equal(t, "precipitation,wind_speed_10m", q.Get("current"))
		assert.Equal(t, "precipitation_probability", q.Get("hourly"))
		assert.Equal(t, "auto", q.Get("timezone"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(forecastFixture))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	snap, err := client.FetchSnapshot(context.Background(), Location{Code: "SBGR", Lat: -23.4356, Lon: -46.4731})
	require.NoError(t, err)

	assert.Equal(t, "SBGR", snap.AirportCode)
	assert.InDelta(t, 12.5, snap.WindSpeedKmh, 1e-9)
	assert.InDelta(t, 0.3, snap.PrecipitationMm, 1e-9)
	// 14:15 has no exact entry, so the 14:00 slot is used
	assert.InDelta(t, 40, snap.PrecipitationProbability, 1e-9)
	assert.False(t, snap.Degraded)
}

func TestFetchSnapshotRetriesThenFails(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	client.config.MaxRetries = 1

	_, err := client.FetchSnapshot(context.Background(), Location{Code: "SBSP"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Equal(t, int32(2), calls.Load())
}

func ptr(v float64) *float64 { return &v }

func TestSelectProbability(t *testing.T) {
	base := func() *ForecastResponse {
		r := &ForecastResponse{UTCOffsetSeconds: -3 * 3600}
		r.Hourly.Time = []string{"2025-03-10T00:00", "2025-03-10T01:00", "2025-03-10T02:00"}
		r.Hourly.PrecipitationProbability = []*float64{ptr(11), ptr(22), ptr(33)}
		return r
	}
	now := time.Date(2025, 3, 10, 4, 30, 0, 0, time.UTC) // 01:30 at -03:00

	t.Run("exact match", func(t *testing.T) {
		r := base()
		r.Current.Time = "2025-03-10T02:00"
		assert.InDelta(t, 33, SelectProbability(r, now), 1e-9)
	})

	t.Run("truncated to hour", func(t *testing.T) {
		r := base()
		r.Current.Time = "2025-03-10T00:45"
		assert.InDelta(t, 11, SelectProbability(r, now), 1e-9)
	})

	t.Run("local hour of series timezone", func(t *testing.T) {
		r := base()
		r.Current.Time = "garbage"
		assert.InDelta(t, 22, SelectProbability(r, now), 1e-9)
	})

	t.Run("hour beyond series uses first entry", func(t *testing.T) {
		r := base()
		r.Current.Time = ""
		late := time.Date(2025, 3, 10, 23, 0, 0, 0, time.UTC)
		assert.InDelta(t, 11, SelectProbability(r, late), 1e-9)
	})

	t.Run("null entry", func(t *testing.T) {
		r := base()
		r.Hourly.PrecipitationProbability[2] = nil
		r.Current.Time = "2025-03-10T02:00"
		assert.InDelta(t, 0, SelectProbability(r, now), 1e-9)
	})

	t.Run("no data", func(t *testing.T) {
		assert.InDelta(t, 0, SelectProbability(&ForecastResponse{}, now), 1e-9)
	})
}
