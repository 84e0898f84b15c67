package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/yegors/approach-monitor/pkg/logger"
)

// Client fetches current conditions from an Open-Meteo compatible forecast API
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *logger.Logger
	now        func() time.Time
}

// NewClient creates a new weather API client
func NewClient(config Config, logger *logger.Logger) *Client {
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: time.Duration(config.RequestTimeoutSeconds) * time.Second,
		},
		logger: logger.Named("weather-client"),
		now:    time.Now,
	}
}

// FetchSnapshot fetches current wind and precipitation for a location and picks the
// precipitation probability matching the current time.
func (c *Client) FetchSnapshot(ctx context.Context, loc Location) (Snapshot, error) {
	var resp ForecastResponse
	if err := c.fetchWithRetry(ctx, c.buildURL(loc), loc.Code, &resp); err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{
		AirportCode:              loc.Code,
		PrecipitationProbability: SelectProbability(&resp, c.now()),
		ObservedAt:               c.now().UTC(),
	}
	if resp.Current.WindSpeed10m != nil {
		snap.WindSpeedKmh = *resp.Current.WindSpeed10m
	}
	if resp.Current.Precipitation != nil {
		snap.PrecipitationMm = *resp.Current.Precipitation
	}

	return snap, nil
}

func (c *Client) buildURL(loc Location) string {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(loc.Lat, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(loc.Lon, 'f', -1, 64))
	q.Set("current", "precipitation,wind_speed_10m")
	q.Set("hourly", "precipitation_probability")
	q.Set("forecast_days", "1")
	q.Set("timezone", "auto")
	return c.config.APIBaseURL + "?" + q.Encode()
}

// SelectProbability picks the hourly precipitation probability for the current time.
// It tries an exact timestamp match, then the current time truncated to the hour,
// then the local hour in the series' own timezone, then the first entry. With no
// series at all it returns 0.
func SelectProbability(resp *ForecastResponse, now time.Time) float64 {
	probs := resp.Hourly.PrecipitationProbability
	times := resp.Hourly.Time
	if len(probs) == 0 {
		return 0
	}

	at := func(i int) float64 {
		if i < 0 || i >= len(probs) || probs[i] == nil {
			return 0
		}
		return *probs[i]
	}

	current := resp.Current.Time
	for i, t := range times {
		if t == current {
			return at(i)
		}
	}

	zone := time.FixedZone(resp.Timezone, resp.UTCOffsetSeconds)
	if ct, err := time.ParseInLocation(openMeteoTimeLayout, current, zone); err == nil {
		hour := ct.Truncate(time.Hour).Format(openMeteoTimeLayout)
		for i, t := range times {
			if t == hour {
				return at(i)
			}
		}
	}

	// The series starts at local midnight of the forecast day
	if idx := now.In(zone).Hour(); idx < len(probs) {
		return at(idx)
	}
	return at(0)
}

// fetchWithRetry performs HTTP request with retry logic and exponential backoff
func (c *Client) fetchWithRetry(ctx context.Context, reqURL, airportCode string, target any) error {
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoffDuration := time.Duration(500*(1<<uint(attempt-1))) * time.Millisecond
			c.logger.Info("Retrying weather data fetch",
				logger.String("airport", airportCode),
				logger.Int("attempt", attempt),
				logger.Duration("backoff", backoffDuration))

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoffDuration):
			}
		}

		lastErr = c.fetchOnce(ctx, reqURL, target)
		if lastErr == nil {
			if attempt > 0 {
				c.logger.Info("Successfully fetched weather data after retries",
					logger.String("airport", airportCode),
					logger.Int("attempts_needed", attempt+1))
			}
			return nil
		}

		c.logger.Warn("Weather API request failed, may retry",
			logger.String("airport", airportCode),
			logger.Error(lastErr),
			logger.Int("attempt", attempt+1),
			logger.Int("max_attempts", c.config.MaxRetries+1))
	}

	return lastErr
}

func (c *Client) fetchOnce(ctx context.Context, reqURL string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error making request to weather API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("error decoding weather data: %w", err)
	}
	return nil
}
