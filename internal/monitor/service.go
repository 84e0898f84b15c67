package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/brunoga/deep"

	"github.com/yegors/approach-monitor/internal/adsb"
	"github.com/yegors/approach-monitor/internal/inference"
	"github.com/yegors/approach-monitor/internal/weather"
	"github.com/yegors/approach-monitor/pkg/logger"
)

// TelemetrySource returns one aircraft snapshot per call
type TelemetrySource interface {
	FetchObservations(ctx context.Context) (*adsb.Batch, error)
}

// WeatherSource returns one snapshot per location and how many were degraded
type WeatherSource interface {
	FetchAll(ctx context.Context, locs []weather.Location) (map[string]weather.Snapshot, int)
}

// Store persists a finished cycle atomically
type Store interface {
	SaveCycle(ctx context.Context, report *inference.Report) error
}

// Publisher consumes a finished cycle. Publishers must not modify the report.
type Publisher interface {
	Publish(report *inference.Report) error
}

// PublisherFunc adapts a function to Publisher
type PublisherFunc func(report *inference.Report) error

// Publish calls f(report)
func (f PublisherFunc) Publish(report *inference.Report) error {
	return f(report)
}

// Options controls the cycle cadence and the telemetry fetch bound. Weather
// fetches are bounded per airport by the WeatherSource.
type Options struct {
	Interval         time.Duration
	TelemetryTimeout time.Duration
}

type namedPublisher struct {
	name string
	Publisher
}

// Service runs analysis cycles one at a time and hands the results to the sinks.
type Service struct {
	engine     *inference.Engine
	telemetry  TelemetrySource
	weather    WeatherSource
	locations  []weather.Location
	store      Store
	publishers []namedPublisher
	opts       Options

	cycleMu sync.Mutex // one cycle at a time
	latest  *inference.Report
	mu      sync.RWMutex

	cancel context.CancelFunc
	done   chan struct{}

	now    func() time.Time
	logger *logger.Logger
}

// NewService creates a monitor service
func NewService(engine *inference.Engine, telemetry TelemetrySource, wx WeatherSource, locations []weather.Location, opts Options, log *logger.Logger) *Service {
	if opts.Interval <= 0 {
		opts.Interval = 300 * time.Second
	}
	if opts.TelemetryTimeout <= 0 {
		opts.TelemetryTimeout = 12 * time.Second
	}

	return &Service{
		engine:    engine,
		telemetry: telemetry,
		weather:   wx,
		locations: locations,
		opts:      opts,
		now:       time.Now,
		logger:    log.Named("monitor"),
	}
}

// SetStore attaches the persistence sink
func (s *Service) SetStore(store Store) {
	s.store = store
}

// AddPublisher attaches a read-only consumer, called in registration order
func (s *Service) AddPublisher(name string, p Publisher) {
	s.publishers = append(s.publishers, namedPublisher{name: name, Publisher: p})
}

// Latest returns a deep copy of the most recent report, or nil before the first cycle
func (s *Service) Latest() *inference.Report {
	s.mu.RLock()
	report := s.latest
	s.mu.RUnlock()

	if report == nil {
		return nil
	}

	clone, err := deep.Copy(report)
	if err != nil {
		s.logger.Error("Failed to copy report", logger.Error(err))
		return nil
	}
	return clone
}

// Start runs the cycle loop in the background until Stop or ctx is done
func (s *Service) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		s.Run(ctx)
	}()
}

// Stop cancels the loop and waits for the current cycle to finish
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

// Run executes cycles until ctx is done. The interval is measured from the
// end of one cycle's publishing to the next fetch.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("Starting monitor",
		logger.Duration("interval", s.opts.Interval),
		logger.Int("airports", len(s.locations)))

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Monitor stopped")
			return nil
		case <-timer.C:
		}

		if _, err := s.RunCycle(ctx); err != nil && Policy(err) == ActionShutdown {
			s.logger.Info("Monitor stopped")
			return nil
		}

		s.logger.Debug("Waiting for next cycle", logger.Duration("interval", s.opts.Interval))
		timer.Reset(s.opts.Interval)
	}
}

// RunCycle performs one fetch, infer and publish pass. Source and sink failures
// are absorbed; only cancellation is returned as an error.
func (s *Service) RunCycle(ctx context.Context) (*inference.Report, error) {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	start := time.Now()

	wx := s.fetchWeather(ctx)
	batch := s.fetchTelemetry(ctx)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := s.engine.Run(s.now(), wx, batch.Observations)

	s.mu.Lock()
	s.latest = report
	s.mu.Unlock()

	s.persist(ctx, report)
	s.publish(report)

	s.logger.Info("Cycle complete",
		logger.Int("observations", report.Stats.Observations),
		logger.Int("malformed", batch.Malformed),
		logger.Int("filtered", report.Stats.Filtered),
		logger.Int("confirmed", report.Stats.Confirmed),
		logger.Int("emergencies", report.Stats.Emergencies),
		logger.Duration("duration", time.Since(start)))

	return report, nil
}

func (s *Service) fetchWeather(ctx context.Context) map[string]weather.Snapshot {
	wx, failed := s.weather.FetchAll(ctx, s.locations)
	if failed > 0 {
		s.handle(fmt.Errorf("%w: weather for %d of %d airports", ErrSourceUnavailable, failed, len(s.locations)))
	}
	return wx
}

func (s *Service) fetchTelemetry(ctx context.Context) *adsb.Batch {
	tctx, cancel := context.WithTimeout(ctx, s.opts.TelemetryTimeout)
	defer cancel()

	batch, err := s.telemetry.FetchObservations(tctx)
	if err != nil {
		s.handle(fmt.Errorf("%w: telemetry: %v", ErrSourceUnavailable, err))
		return &adsb.Batch{FetchedAt: s.now()}
	}
	return batch
}

func (s *Service) persist(ctx context.Context, report *inference.Report) {
	if s.store == nil {
		return
	}
	if err := s.store.SaveCycle(ctx, report); err != nil {
		s.handle(fmt.Errorf("%w: %v", ErrPersistenceFailure, err))
	}
}

func (s *Service) publish(report *inference.Report) {
	for _, p := range s.publishers {
		if err := p.Publish(report); err != nil {
			s.logger.Warn("Publisher failed",
				logger.String("publisher", p.name),
				logger.Error(err))
		}
	}
}

// handle logs err according to the policy table
func (s *Service) handle(err error) {
	action := Policy(err)
	switch action {
	case ActionContinue:
		s.logger.Error("Cycle not persisted", logger.Error(err), logger.String("action", string(action)))
	case ActionSkip:
		s.logger.Debug("Record skipped", logger.Error(err))
	case ActionShutdown:
		s.logger.Debug("Interrupted", logger.Error(err))
	default:
		s.logger.Warn("Source unavailable, using defaults", logger.Error(err), logger.String("action", string(action)))
	}
}
