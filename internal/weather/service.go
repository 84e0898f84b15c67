package weather

import (
	"context"
	"time"

	"github.com/yegors/approach-monitor/pkg/logger"
)

// Fetcher returns the current snapshot for one location.
type Fetcher interface {
	FetchSnapshot(ctx context.Context, loc Location) (Snapshot, error)
}

// Service fetches weather for every monitored airport once per cycle
type Service struct {
	fetcher Fetcher
	timeout time.Duration // per location, 0 leaves only the parent deadline
	logger  *logger.Logger
	now     func() time.Time
}

// NewService creates a new weather service
func NewService(fetcher Fetcher, logger *logger.Logger) *Service {
	return &Service{
		fetcher: fetcher,
		logger:  logger.Named("weather-service"),
		now:     time.Now,
	}
}

// SetLocationTimeout bounds each location's fetch, retries included, on its own
// so one slow airport cannot use up the deadline of the next.
func (s *Service) SetLocationTimeout(d time.Duration) {
	s.timeout = d
}

// FetchAll returns one snapshot per location. A location whose fetch fails gets a
// zeroed snapshot marked Degraded so the cycle can continue. The second return
// value is the number of degraded snapshots.
func (s *Service) FetchAll(ctx context.Context, locs []Location) (map[string]Snapshot, int) {
	result := make(map[string]Snapshot, len(locs))
	failed := 0

	for _, loc := range locs {
		snap, err := s.fetchOne(ctx, loc)
		if err != nil {
			failed++
			s.logger.Warn("Weather unavailable, using zeroed snapshot",
				logger.String("airport", loc.Code),
				logger.Error(err))
			snap = Snapshot{
				AirportCode: loc.Code,
				ObservedAt:  s.now().UTC(),
				Degraded:    true,
			}
		}
		result[loc.Code] = snap

		s.logger.Debug("Weather snapshot",
			logger.String("airport", loc.Code),
			logger.Float64("wind_kmh", snap.WindSpeedKmh),
			logger.Float64("precip_mm", snap.PrecipitationMm),
			logger.Float64("precip_prob", snap.PrecipitationProbability),
			logger.String("risk", string(Classify(snap))))
	}

	return result, failed
}

func (s *Service) fetchOne(ctx context.Context, loc Location) (Snapshot, error) {
	if s.timeout <= 0 {
		return s.fetcher.FetchSnapshot(ctx, loc)
	}
	lctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.fetcher.FetchSnapshot(lctx, loc)
}
