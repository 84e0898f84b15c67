package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegors/approach-monitor/internal/adsb"
	"github.com/yegors/approach-monitor/internal/inference"
	"github.com/yegors/approach-monitor/internal/weather"
	"github.com/yegors/approach-monitor/pkg/logger"
)

var testAirports = []inference.AirportProfile{
	{ICAO: "SBGR", Name: "Guarulhos", Lat: -23.4356, Lon: -46.4731, ElevationFt: 2430},
	{ICAO: "SBSP", Name: "Congonhas", Lat: -23.6261, Lon: -46.6564, ElevationFt: 2631},
}

// 20 km north of Guarulhos, heading straight for it
var inbound = inference.Observation{
	Hex:             "e48a1b",
	Callsign:        "GLO1234",
	Lat:             -23.255736,
	Lon:             -46.4731,
	HasPosition:     true,
	TrackDeg:        180,
	GroundSpeedKmh:  300,
	AltitudeFt:      3000,
	VerticalRateFpm: -800,
}

type stubTelemetry struct {
	mu    sync.Mutex
	calls int
	obs   []inference.Observation
	err   error
}

func (s *stubTelemetry) FetchObservations(ctx context.Context) (*adsb.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &adsb.Batch{Observations: s.obs, Targets: len(s.obs)}, nil
}

func (s *stubTelemetry) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubWeather struct {
	failed map[string]bool
}

func (s *stubWeather) FetchAll(ctx context.Context, locs []weather.Location) (map[string]weather.Snapshot, int) {
	out := make(map[string]weather.Snapshot, len(locs))
	failures := 0
	for _, loc := range locs {
		if s.failed[loc.Code] {
			out[loc.Code] = weather.Snapshot{AirportCode: loc.Code, Degraded: true}
			failures++
			continue
		}
		out[loc.Code] = weather.Snapshot{AirportCode: loc.Code, WindSpeedKmh: 8}
	}
	return out, failures
}

type stubStore struct {
	mu      sync.Mutex
	err     error
	reports []*inference.Report
}

func (s *stubStore) SaveCycle(ctx context.Context, report *inference.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.reports = append(s.reports, report)
	return nil
}

func locations() []weather.Location {
	locs := make([]weather.Location, 0, len(testAirports))
	for _, ap := range testAirports {
		locs = append(locs, weather.Location{Code: ap.ICAO, Lat: ap.Lat, Lon: ap.Lon})
	}
	return locs
}

func newTestService(tel TelemetrySource, wx WeatherSource, opts Options) *Service {
	engine := inference.NewEngine(testAirports, inference.DefaultParams(),
		inference.NewHistory(inference.HistoryConfig{}), logger.NewNop())
	return NewService(engine, tel, wx, locations(), opts, logger.NewNop())
}

func TestRunCycleConfirmsAndPublishes(t *testing.T) {
	tel := &stubTelemetry{obs: []inference.Observation{inbound}}
	store := &stubStore{}
	svc := newTestService(tel, &stubWeather{}, Options{})
	svc.SetStore(store)

	var order []string
	svc.AddPublisher("first", PublisherFunc(func(r *inference.Report) error {
		order = append(order, "first")
		return nil
	}))
	svc.AddPublisher("second", PublisherFunc(func(r *inference.Report) error {
		order = append(order, "second")
		return errors.New("display gone")
	}))
	svc.AddPublisher("third", PublisherFunc(func(r *inference.Report) error {
		order = append(order, "third")
		return nil
	}))

	report, err := svc.RunCycle(context.Background())
	require.NoError(t, err)

	gr, ok := report.Airport("SBGR")
	require.True(t, ok)
	require.Len(t, gr.Flights, 1)
	assert.Equal(t, "GLO1234", gr.Flights[0].Callsign)

	require.Len(t, store.reports, 1)
	assert.Same(t, report, store.reports[0])
	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestRunCycleTelemetryFailureStillRecordsWeather(t *testing.T) {
	tel := &stubTelemetry{err: fmt.Errorf("dial tcp: connection refused")}
	store := &stubStore{}
	svc := newTestService(tel, &stubWeather{failed: map[string]bool{"SBSP": true}}, Options{})
	svc.SetStore(store)

	report, err := svc.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Zero(t, report.FlightCount())
	require.Len(t, report.Airports, 2)
	assert.False(t, report.Airports[0].Weather.Degraded)
	assert.True(t, report.Airports[1].Weather.Degraded)
	assert.Equal(t, weather.RiskLow, report.Airports[1].Risk)

	require.Len(t, store.reports, 1)
}

func TestRunCyclePersistenceFailureDoesNotStopCycle(t *testing.T) {
	tel := &stubTelemetry{obs: []inference.Observation{inbound}}
	store := &stubStore{err: errors.New("disk full")}
	svc := newTestService(tel, &stubWeather{}, Options{})
	svc.SetStore(store)

	published := 0
	svc.AddPublisher("count", PublisherFunc(func(r *inference.Report) error {
		published++
		return nil
	}))

	_, err := svc.RunCycle(context.Background())
	require.NoError(t, err)
	_, err = svc.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, published)
	assert.Equal(t, 2, tel.Calls())
	assert.NotNil(t, svc.Latest())
}

func TestRunCycleCanceled(t *testing.T) {
	svc := newTestService(&stubTelemetry{}, &stubWeather{}, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := svc.RunCycle(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, report)
	assert.Nil(t, svc.Latest())
}

func TestLatestReturnsCopy(t *testing.T) {
	svc := newTestService(&stubTelemetry{obs: []inference.Observation{inbound}}, &stubWeather{}, Options{})
	assert.Nil(t, svc.Latest())

	_, err := svc.RunCycle(context.Background())
	require.NoError(t, err)

	first := svc.Latest()
	require.NotNil(t, first)
	require.Len(t, first.Airports[0].Flights, 1)

	first.Airports[0].Flights[0].Callsign = "CHANGED"
	first.Airports = nil

	second := svc.Latest()
	require.Len(t, second.Airports, 2)
	assert.Equal(t, "GLO1234", second.Airports[0].Flights[0].Callsign)
}

func TestStartStop(t *testing.T) {
	tel := &stubTelemetry{}
	svc := newTestService(tel, &stubWeather{}, Options{Interval: 10 * time.Millisecond})

	svc.Start(context.Background())
	require.Eventually(t, func() bool { return tel.Calls() >= 3 }, 2*time.Second, 5*time.Millisecond)
	svc.Stop()

	calls := tel.Calls()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, calls, tel.Calls())
}

func TestRunReturnsOnCancel(t *testing.T) {
	svc := newTestService(&stubTelemetry{}, &stubWeather{}, Options{Interval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	require.Eventually(t, func() bool { return svc.Latest() != nil }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestPolicy(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Action
	}{
		{"telemetry down", fmt.Errorf("%w: telemetry: timeout", ErrSourceUnavailable), ActionUseDefault},
		{"malformed record", fmt.Errorf("target 3: %w", adsb.ErrMalformedRecord), ActionSkip},
		{"persistence", fmt.Errorf("%w: disk full", ErrPersistenceFailure), ActionContinue},
		{"interrupt", context.Canceled, ActionShutdown},
		{"unknown", errors.New("boom"), ActionUseDefault},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Policy(tt.err))
		})
	}
}
