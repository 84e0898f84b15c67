package simulation

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/yegors/approach-monitor/internal/adsb"
	"github.com/yegors/approach-monitor/internal/inference"
	"github.com/yegors/approach-monitor/internal/physics"
	"github.com/yegors/approach-monitor/pkg/logger"
)

const (
	// MaxSimulatedAircraft caps the synthetic traffic
	MaxSimulatedAircraft = 60

	spawnMinKm      = 40.0
	spawnMaxKm      = 130.0
	arrivalKm       = 3.0
	approachFtPerKm = 170.0 // about a three degree path
)

// Config controls the synthetic traffic
type Config struct {
	AircraftPerAirport int   `toml:"aircraft_per_airport"`
	Seed               int64 `toml:"seed"` // 0 seeds from the clock
}

// SimulatedAircraft represents a single simulated aircraft with its current state
type SimulatedAircraft struct {
	Hex                string    `json:"hex"`
	Flight             string    `json:"flight"`
	Destination        string    `json:"destination"`
	CurrentLat         float64   `json:"current_lat"`
	CurrentLon         float64   `json:"current_lon"`
	CurrentAltitude    float64   `json:"current_altitude"`
	TargetHeading      float64   `json:"target_heading"`
	TargetSpeed        float64   `json:"target_speed"` // knots
	TargetVerticalRate float64   `json:"target_vertical_rate"`
	LastUpdate         time.Time `json:"last_update"`
}

// Service generates inbound traffic around the monitored airports and moves it
// by dead reckoning every time targets are requested.
type Service struct {
	aircraft map[string]*SimulatedAircraft
	airports []inference.AirportProfile
	config   Config
	rng      *rand.Rand
	mutex    sync.Mutex
	logger   *logger.Logger
}

// NewService creates a new simulation service
func NewService(airports []inference.AirportProfile, config Config, logger *logger.Logger) *Service {
	seed := config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if config.AircraftPerAirport <= 0 {
		config.AircraftPerAirport = 3
	}
	return &Service{
		aircraft: make(map[string]*SimulatedAircraft),
		airports: airports,
		config:   config,
		rng:      rand.New(rand.NewSource(seed)),
		logger:   logger.Named("simulation"),
	}
}

// createAircraft adds an aircraft, failing once the cap is reached
func (s *Service) createAircraft(dest string, lat, lon, altitude, heading, speed, verticalRate float64, now time.Time) (*SimulatedAircraft, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.createLocked(dest, lat, lon, altitude, heading, speed, verticalRate, now)
}

func (s *Service) createLocked(dest string, lat, lon, altitude, heading, speed, verticalRate float64, now time.Time) (*SimulatedAircraft, error) {
	if len(s.aircraft) >= MaxSimulatedAircraft {
		return nil, fmt.Errorf("maximum number of simulated aircraft (%d) reached", MaxSimulatedAircraft)
	}

	aircraft := &SimulatedAircraft{
		Hex:                s.generateUniqueHex(),
		Flight:             s.generateFlightNumber(),
		Destination:        dest,
		CurrentLat:         lat,
		CurrentLon:         lon,
		CurrentAltitude:    altitude,
		TargetHeading:      heading,
		TargetSpeed:        speed,
		TargetVerticalRate: verticalRate,
		LastUpdate:         now,
	}

	s.aircraft[aircraft.Hex] = aircraft
	s.logger.Debug("Created simulated aircraft",
		logger.String("hex", aircraft.Hex),
		logger.String("flight", aircraft.Flight),
		logger.String("destination", dest))

	return aircraft, nil
}

// spawnInbound places a new aircraft on a straight-in approach to the airport.
func (s *Service) spawnInbound(ap inference.AirportProfile, now time.Time) {
	distKm := spawnMinKm + s.rng.Float64()*(spawnMaxKm-spawnMinKm)
	radial := s.rng.Float64() * 360
	lat, lon := destinationPoint(ap.Lat, ap.Lon, radial, distKm)

	heading := physics.Bearing(lat, lon, ap.Lat, ap.Lon)
	altitude := ap.ElevationFt + distKm*approachFtPerKm
	speedKts := 180 + s.rng.Float64()*100

	// Descend to reach the field elevation on arrival
	minutes := distKm / physics.KnotsToKmh(speedKts) * 60
	verticalRate := -(altitude - ap.ElevationFt) / minutes

	if _, err := s.createLocked(ap.ICAO, lat, lon, altitude, heading, speedKts, verticalRate, now); err != nil {
		s.logger.Debug("Not spawning aircraft", logger.Error(err))
	}
}

// GenerateTargets advances every aircraft to now, replaces arrivals with new
// inbound traffic and returns the current picture as ADS-B targets.
func (s *Service) GenerateTargets(now time.Time) []adsb.Target {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.updatePositions(now)
	s.replenish(now)

	targets := make([]adsb.Target, 0, len(s.aircraft))
	for _, aircraft := range s.aircraft {
		targets = append(targets, adsb.Target{
			Hex:      aircraft.Hex,
			Flight:   aircraft.Flight,
			Lat:      adsb.NumberField(aircraft.CurrentLat),
			Lon:      adsb.NumberField(aircraft.CurrentLon),
			AltBaro:  adsb.NumberField(aircraft.CurrentAltitude),
			GS:       adsb.NumberField(aircraft.TargetSpeed),
			Track:    adsb.NumberField(aircraft.TargetHeading),
			BaroRate: adsb.NumberField(aircraft.TargetVerticalRate),
		})
	}

	return targets
}

// Count returns the number of simulated aircraft
func (s *Service) Count() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.aircraft)
}

func (s *Service) replenish(now time.Time) {
	perAirport := make(map[string]int, len(s.airports))
	for _, a := range s.aircraft {
		perAirport[a.Destination]++
	}
	for _, ap := range s.airports {
		for i := perAirport[ap.ICAO]; i < s.config.AircraftPerAirport; i++ {
			s.spawnInbound(ap, now)
		}
	}
}

// updatePositions moves every aircraft and drops the ones that have arrived.
func (s *Service) updatePositions(now time.Time) {
	dest := make(map[string]inference.AirportProfile, len(s.airports))
	for _, ap := range s.airports {
		dest[ap.ICAO] = ap
	}

	for hex, aircraft := range s.aircraft {
		deltaTime := now.Sub(aircraft.LastUpdate).Seconds()
		if deltaTime > 0 {
			updateAircraftPosition(aircraft, deltaTime)
			aircraft.LastUpdate = now
		}

		ap, ok := dest[aircraft.Destination]
		if !ok {
			continue
		}
		if physics.DistanceKm(aircraft.CurrentLat, aircraft.CurrentLon, ap.Lat, ap.Lon) < arrivalKm ||
			aircraft.CurrentAltitude <= ap.ElevationFt {
			delete(s.aircraft, hex)
		}
	}
}

// updateAircraftPosition updates a single aircraft's position using dead reckoning
func updateAircraftPosition(aircraft *SimulatedAircraft, deltaTime float64) {
	// Aviation: 0°=North, clockwise. Math: 0°=East, counter-clockwise.
	headingRad := (90 - aircraft.TargetHeading) * math.Pi / 180

	// knots are nautical miles per hour
	distanceNM := aircraft.TargetSpeed * deltaTime / 3600

	// 1 degree latitude ≈ 60 nautical miles
	latChange := distanceNM * math.Sin(headingRad) / 60
	lonChange := distanceNM * math.Cos(headingRad) / (60 * math.Cos(aircraft.CurrentLat*math.Pi/180))

	aircraft.CurrentLat += latChange
	aircraft.CurrentLon += lonChange

	aircraft.CurrentAltitude += aircraft.TargetVerticalRate * deltaTime / 60
	if aircraft.CurrentAltitude < 0 {
		aircraft.CurrentAltitude = 0
		aircraft.TargetVerticalRate = 0
	}
}

// destinationPoint returns the point at the given radial and distance from a
// start point on a spherical earth.
func destinationPoint(lat, lon, bearingDeg, distKm float64) (float64, float64) {
	const earthRadiusKm = 6371.0088
	phi1 := lat * math.Pi / 180
	lambda1 := lon * math.Pi / 180
	theta := bearingDeg * math.Pi / 180
	delta := distKm / earthRadiusKm

	phi2 := math.Asin(math.Sin(phi1)*math.Cos(delta) + math.Cos(phi1)*math.Sin(delta)*math.Cos(theta))
	lambda2 := lambda1 + math.Atan2(math.Sin(theta)*math.Sin(delta)*math.Cos(phi1),
		math.Cos(delta)-math.Sin(phi1)*math.Sin(phi2))

	return phi2 * 180 / math.Pi, lambda2 * 180 / math.Pi
}

// generateUniqueHex generates a unique 6-character hex code
func (s *Service) generateUniqueHex() string {
	for {
		hex := fmt.Sprintf("%06X", s.rng.Intn(0xFFFFFF))
		if _, exists := s.aircraft[hex]; !exists {
			return hex
		}
	}
}

// generateFlightNumber generates an unused flight number in format SIM001-SIM999
func (s *Service) generateFlightNumber() string {
	for {
		flight := fmt.Sprintf("SIM%03d", s.rng.Intn(999)+1)
		inUse := false
		for _, a := range s.aircraft {
			if a.Flight == flight {
				inUse = true
				break
			}
		}
		if !inUse {
			return flight
		}
	}
}
