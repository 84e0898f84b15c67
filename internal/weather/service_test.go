package weather

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegors/approach-monitor/pkg/logger"
)

type stubFetcher struct {
	snaps map[string]Snapshot
}

func (f *stubFetcher) FetchSnapshot(_ context.Context, loc Location) (Snapshot, error) {
	s, ok := f.snaps[loc.Code]
	if !ok {
		return Snapshot{}, errors.New("timeout")
	}
	return s, nil
}

func TestServiceFetchAllDegradesFailedLocations(t *testing.T) {
	fetcher := &stubFetcher{snaps: map[string]Snapshot{
		"SBGR": {AirportCode: "SBGR", WindSpeedKmh: 35},
	}}
	svc := NewService(fetcher, logger.NewNop())

	got, failed := svc.FetchAll(context.Background(), []Location{{Code: "SBGR"}, {Code: "SBSP"}})

	assert.Equal(t, 1, failed)
	assert.Len(t, got, 2)
	assert.Equal(t, RiskCritical, Classify(got["SBGR"]))

	sp := got["SBSP"]
	assert.True(t, sp.Degraded)
	assert.Equal(t, "SBSP", sp.AirportCode)
	assert.Zero(t, sp.WindSpeedKmh)
	assert.Equal(t, RiskLow, Classify(sp))
}

func TestServiceFetchAllBoundsEachLocation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("latitude") == "-23.4356" {
			// Guarulhos hangs until the caller gives up
			select {
			case <-r.Context().Done():
			case <-time.After(5 * time.Second):
			}
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"current": {"precipitation": 0, "wind_speed_10m": 45}, "hourly": {"time": [], "precipitation_probability": []}}`))
	}))
	defer server.Close()

	svc := NewService(newTestClient(server.URL), logger.NewNop())
	svc.SetLocationTimeout(200 * time.Millisecond)

	start := time.Now()
	got, failed := svc.FetchAll(context.Background(), []Location{
		{Code: "SBGR", Lat: -23.4356, Lon: -46.4731},
		{Code: "SBSP", Lat: -23.6261, Lon: -46.6564},
	})

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, 1, failed)
	assert.True(t, got["SBGR"].Degraded)

	sp := got["SBSP"]
	require.False(t, sp.Degraded)
	assert.InDelta(t, 45, sp.WindSpeedKmh, 1e-9)
	assert.Equal(t, RiskCritical, Classify(sp))
}

func TestConfigLocationTimeout(t *testing.T) {
	tests := []struct {
		name    string
		timeout int
		retries int
		want    time.Duration
	}{
		{"single attempt", 6, 0, 6 * time.Second},
		{"one retry", 6, 1, 12*time.Second + 500*time.Millisecond},
		{"two retries", 2, 2, 6*time.Second + 1500*time.Millisecond},
		{"negative retries", 3, -1, 3 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{RequestTimeoutSeconds: tt.timeout, MaxRetries: tt.retries}
			assert.Equal(t, tt.want, cfg.LocationTimeout())
		})
	}
}
