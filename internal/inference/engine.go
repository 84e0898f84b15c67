package inference

import (
	"sort"
	"strings"
	"time"

	"github.com/yegors/approach-monitor/internal/weather"
	"github.com/yegors/approach-monitor/pkg/logger"
)

// Starting point of the best-destination search; any real score beats it
const noScore = -9999.0

// Engine runs the per-cycle approach inference. It owns the history store and is
// not safe for concurrent Run calls.
type Engine struct {
	airports []AirportProfile
	params   Params
	scorer   Scorer
	history  *History
	logger   *logger.Logger
}

// NewEngine creates an engine. Airports are evaluated in the given order, which
// also decides ties.
func NewEngine(airports []AirportProfile, params Params, history *History, logger *logger.Logger) *Engine {
	return &Engine{
		airports: airports,
		params:   params,
		scorer:   NewScorer(params),
		history:  history,
		logger:   logger.Named("inference"),
	}
}

// Airports returns the monitored airports in evaluation order.
func (e *Engine) Airports() []AirportProfile {
	return e.airports
}

// History returns the engine's history store.
func (e *Engine) History() *History {
	return e.history
}

// match is a confirmed observation waiting to be emitted
type match struct {
	airport int // index into the report's airports
	record  FlightRecord
	entry   HistoryEntry
}

type candidate struct {
	airport    *AirportProfile
	score      float64
	distanceKm float64
}

// Run executes one analysis cycle over the given weather and observations.
// A missing weather entry counts as a zeroed snapshot.
func (e *Engine) Run(now time.Time, wx map[string]weather.Snapshot, observations []Observation) *Report {
	report := &Report{
		CycleAt:  now,
		Airports: make([]AirportReport, len(e.airports)),
	}

	index := make(map[string]int, len(e.airports))
	for i, ap := range e.airports {
		snap, ok := wx[ap.ICAO]
		if !ok {
			snap = weather.Snapshot{AirportCode: ap.ICAO, ObservedAt: now, Degraded: true}
		}
		report.Airports[i] = AirportReport{
			Airport: ap,
			Weather: snap,
			Risk:    weather.Classify(snap),
			Runway:  weather.Runway(snap),
			Flights: []FlightRecord{},
		}
		index[ap.ICAO] = i
	}

	stats := &report.Stats
	stats.Observations = len(observations)

	// One match per callsign; a later duplicate in the snapshot replaces the
	// earlier one. History is only written once the whole snapshot has been
	// scored, so every copy is compared with the previous cycle.
	var matches []match
	seen := make(map[string]int)

	for _, obs := range observations {
		obs.Callsign = strings.TrimSpace(obs.Callsign)
		if !e.valid(obs) {
			stats.Filtered++
			continue
		}

		prev, hasPrev := e.history.Get(obs.Callsign)

		best := e.bestDestination(obs, prev, hasPrev)
		if best.airport == nil || best.score < e.params.ConfirmScore {
			stats.BelowGate++
			continue
		}

		i := index[best.airport.ICAO]
		m := match{
			airport: i,
			record:  e.buildRecord(obs, best, &report.Airports[i].Weather, prev, hasPrev),
			entry: HistoryEntry{
				GroundSpeedKmh:  obs.GroundSpeedKmh,
				AltitudeFt:      obs.AltitudeFt,
				Target:          best.airport.ICAO,
				DistanceKm:      best.distanceKm,
				VerticalRateFpm: obs.VerticalRateFpm,
				UpdatedAt:       now,
			},
		}

		if j, dup := seen[obs.Callsign]; dup {
			stats.Duplicates++
			matches[j] = m
			continue
		}
		seen[obs.Callsign] = len(matches)
		matches = append(matches, m)
	}

	for _, m := range matches {
		rec := m.record
		report.Airports[m.airport].Flights = append(report.Airports[m.airport].Flights, rec)
		e.history.Put(rec.Callsign, m.entry)

		stats.Confirmed++
		if rec.Emergency {
			stats.Emergencies++
			e.logger.Warn("Anomalous approach profile",
				logger.String("callsign", rec.Callsign),
				logger.String("target", rec.Target),
				logger.Float64("distance_km", rec.DistanceKm),
				logger.Float64("altitude_ft", rec.AltitudeFt),
				logger.Float64("vertical_rate_fpm", rec.VerticalRateFpm))
		}
	}

	for i := range report.Airports {
		flights := report.Airports[i].Flights
		sort.SliceStable(flights, func(a, b int) bool {
			return flights[a].DistanceKm < flights[b].DistanceKm
		})
	}

	e.logger.Debug("Cycle analysed",
		logger.Int("observations", stats.Observations),
		logger.Int("filtered", stats.Filtered),
		logger.Int("below_gate", stats.BelowGate),
		logger.Int("confirmed", stats.Confirmed),
		logger.Int("duplicates", stats.Duplicates),
		logger.Int("history_size", e.history.Len()))

	return report
}

// valid drops ground traffic, departures and records without identity or position.
func (e *Engine) valid(obs Observation) bool {
	switch {
	case len(obs.Callsign) < e.params.MinCallsignLength:
		return false
	case !obs.HasPosition:
		return false
	case obs.GroundSpeedKmh < e.params.MinGroundSpeedKmh:
		return false
	case obs.VerticalRateFpm > e.params.MaxClimbRateFpm:
		return false
	}
	return true
}

func (e *Engine) bestDestination(obs Observation, prev HistoryEntry, hasPrev bool) candidate {
	best := candidate{score: noScore}

	for i := range e.airports {
		ap := &e.airports[i]
		score, dist := e.scorer.Score(obs.Lat, obs.Lon, obs.TrackDeg, *ap)
		score -= e.penalty(obs, ap, dist, prev, hasPrev)

		// Strict comparison keeps the first airport on ties
		if score > best.score {
			best = candidate{airport: ap, score: score, distanceKm: dist}
		}
	}

	return best
}

// penalty sums the contextual deductions for one aircraft/airport pair.
func (e *Engine) penalty(obs Observation, ap *AirportProfile, dist float64, prev HistoryEntry, hasPrev bool) float64 {
	p := e.params
	height := obs.AltitudeFt - ap.ElevationFt
	total := 0.0

	// Still high near the field: overflight
	if dist < p.OverflightRadiusKm && obs.AltitudeFt > p.OverflightAltitudeFt {
		total += p.OverflightPenalty
	}

	// Receding from the previous target
	if hasPrev && prev.Target == ap.ICAO && dist > prev.DistanceKm+p.HysteresisMarginKm {
		total += p.HysteresisPenalty
	}

	if height > dist*p.GlideslopeFtPerKm+p.GlideslopeBaseFt {
		total += p.GlideslopePenalty
	}

	if dist < p.ShortFinalRadiusKm && height > p.ShortFinalMaxHeightFt {
		total += p.ShortFinalPenalty
	}

	return total
}

func (e *Engine) buildRecord(obs Observation, best candidate, wx *weather.Snapshot, prev HistoryEntry, hasPrev bool) FlightRecord {
	p := e.params

	delay := 0
	if weather.IsCritical(*wx) {
		delay = p.WeatherDelayMinutes
	}

	eta := 0.0
	if obs.GroundSpeedKmh > 0 {
		eta = best.distanceKm / obs.GroundSpeedKmh * 60
	}

	prevSpeed := obs.GroundSpeedKmh
	if hasPrev {
		prevSpeed = prev.GroundSpeedKmh
	}

	trend := TrendStable
	switch delta := obs.GroundSpeedKmh - prevSpeed; {
	case delta > p.TrendThresholdKmh:
		trend = TrendIncreasing
	case delta < -p.TrendThresholdKmh:
		trend = TrendDecreasing
	}

	lowAndFar := obs.AltitudeFt <= p.EmergencyMaxAltitudeFt && best.distanceKm >= p.EmergencyMinDistanceKm
	abrupt := obs.VerticalRateFpm <= p.EmergencyDescentRateFpm || prevSpeed-obs.GroundSpeedKmh >= p.EmergencySpeedDropKmh
	emergency := lowAndFar && abrupt

	status, reason := StatusOnTime, ReasonNormal
	switch {
	case emergency:
		status, reason = StatusEmergency, ReasonEmergency
	case delay > 0:
		status, reason = StatusDelayed, ReasonWeather
	}

	return FlightRecord{
		Callsign:            obs.Callsign,
		Hex:                 obs.Hex,
		Target:              best.airport.ICAO,
		Lat:                 obs.Lat,
		Lon:                 obs.Lon,
		AltitudeFt:          obs.AltitudeFt,
		GroundSpeedKmh:      obs.GroundSpeedKmh,
		VerticalRateFpm:     obs.VerticalRateFpm,
		DistanceKm:          best.distanceKm,
		Score:               best.score,
		Status:              status,
		SpeedTrend:          trend,
		DelayReason:         reason,
		Emergency:           emergency,
		ETAMinutes:          eta,
		WeatherDelayMinutes: delay,
		Weather:             wx,
	}
}
