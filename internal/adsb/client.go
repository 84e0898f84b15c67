package adsb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/yegors/approach-monitor/internal/inference"
	"github.com/yegors/approach-monitor/pkg/logger"
)

// Generator produces synthetic targets for the simulated source.
type Generator interface {
	GenerateTargets(now time.Time) []Target
}

// Client is responsible for fetching ADS-B data from the source
type Client struct {
	httpClient *http.Client
	config     Config
	generator  Generator
	logger     *logger.Logger
	now        func() time.Time
}

// NewClient creates a new ADS-B client
func NewClient(config Config, loggerObj *logger.Logger) *Client {
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: time.Duration(config.RequestTimeoutSeconds) * time.Second,
		},
		logger: loggerObj.Named("adsb-cli"),
		now:    time.Now,
	}
}

// SetGenerator attaches the target generator used by the simulated source.
func (c *Client) SetGenerator(g Generator) {
	c.generator = g
}

// FetchObservations fetches one snapshot from the configured source and converts it.
// Malformed targets are skipped and counted; only a failed fetch returns an error.
func (c *Client) FetchObservations(ctx context.Context) (*Batch, error) {
	now := c.now()

	var (
		targets []Target
		err     error
	)
	switch c.config.SourceType {
	case SourceLocal:
		targets, err = c.fetchReadsb(ctx, c.config.LocalSourceURL)
	case SourceExternal:
		targets, err = c.fetchReadsb(ctx, c.externalURL())
	case SourceOpenSky:
		targets, err = c.fetchOpenSky(ctx)
	case SourceSimulated:
		if c.generator == nil {
			return nil, errors.New("simulated source has no generator")
		}
		targets = c.generator.GenerateTargets(now)
	default:
		return nil, fmt.Errorf("unknown source type: %s", c.config.SourceType)
	}
	if err != nil {
		return nil, err
	}

	batch := &Batch{
		FetchedAt:    now,
		Targets:      len(targets),
		Observations: make([]inference.Observation, 0, len(targets)),
	}
	for i := range targets {
		obs, err := targets[i].Observation(now)
		if err != nil {
			batch.Malformed++
			c.logger.Debug("Skipping target", logger.Error(err))
			continue
		}
		batch.Observations = append(batch.Observations, obs)
	}

	c.logger.Debug("Fetched ADS-B snapshot",
		logger.String("source", c.config.SourceType),
		logger.Int("targets", batch.Targets),
		logger.Int("malformed", batch.Malformed))

	return batch, nil
}

func (c *Client) externalURL() string {
	return fmt.Sprintf(c.config.ExternalSourceURL, c.config.CenterLat, c.config.CenterLon, c.config.SearchRadiusNM)
}

// fetchReadsb fetches a readsb style payload, either a local aircraft.json or an
// ADS-B Exchange compatible API.
func (c *Client) fetchReadsb(ctx context.Context, urlStr string) ([]Target, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.config.APIHost != "" {
		req.Header.Set("x-rapidapi-host", c.config.APIHost)
	}
	if c.config.APIKey != "" {
		req.Header.Set("x-rapidapi-key", c.config.APIKey)
	}

	c.logger.Debug("Fetching ADS-B data", logger.String("url", urlStr))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var data aircraftResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	return data.targets(), nil
}

// bbox derives an OpenSky bounding box from the search center and radius.
func (c *Client) bbox() (lamin, lomin, lamax, lomax float64) {
	rad := float64(c.config.SearchRadiusNM)
	latDeg := rad / 60.0
	lonDeg := rad / (60.0 * math.Cos(c.config.CenterLat*math.Pi/180.0))

	return c.config.CenterLat - latDeg, c.config.CenterLon - lonDeg,
		c.config.CenterLat + latDeg, c.config.CenterLon + lonDeg
}

// fetchOpenSky fetches state vectors from the OpenSky REST API. APIKey, when
// set, is sent as a bearer token; otherwise the request is anonymous.
func (c *Client) fetchOpenSky(ctx context.Context) ([]Target, error) {
	lamin, lomin, lamax, lomax := c.bbox()

	q := url.Values{}
	q.Set("lamin", strconv.FormatFloat(lamin, 'f', 4, 64))
	q.Set("lomin", strconv.FormatFloat(lomin, 'f', 4, 64))
	q.Set("lamax", strconv.FormatFloat(lamax, 'f', 4, 64))
	q.Set("lomax", strconv.FormatFloat(lomax, 'f', 4, 64))
	urlStr := c.config.OpenSkyURL + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenSky request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	c.logger.Debug("Fetching OpenSky ADS-B data", logger.String("url", urlStr))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute opensky request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected opensky status code: %d", resp.StatusCode)
	}

	var osResp struct {
		Time   int64   `json:"time"`
		States [][]any `json:"states"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&osResp); err != nil {
		return nil, fmt.Errorf("failed to parse opensky JSON: %w", err)
	}

	targets := make([]Target, 0, len(osResp.States))
	for _, s := range osResp.States {
		targets = append(targets, openSkyTarget(s))
	}
	return targets, nil
}

// openSkyTarget maps a states/all vector onto a Target, converting SI units to
// feet, knots and feet per minute. Indices follow the OpenSky documentation.
func openSkyTarget(s []any) Target {
	str := func(i int) string {
		if i < len(s) {
			if v, ok := s[i].(string); ok {
				return v
			}
		}
		return ""
	}
	num := func(i int, scale float64) FlexibleField {
		if i < len(s) {
			if v, ok := s[i].(float64); ok {
				return NumberField(v * scale)
			}
		}
		return FlexibleField{}
	}

	const (
		metersToFeet  = 3.28084
		msToKnots     = 1.943844
		msToFeetPerMn = 196.850394
	)

	t := Target{
		Hex:      str(0),
		Flight:   str(1),
		Lon:      num(5, 1),
		Lat:      num(6, 1),
		AltBaro:  num(7, metersToFeet),
		GS:       num(9, msToKnots),
		Track:    num(10, 1),
		BaroRate: num(11, msToFeetPerMn),
		AltGeom:  num(13, metersToFeet),
	}
	if len(s) > 8 {
		if onGround, ok := s[8].(bool); ok && onGround {
			t.AltBaro = FlexibleField{value: "ground"}
		}
	}
	return t
}
