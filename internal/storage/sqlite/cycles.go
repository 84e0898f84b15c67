package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/yegors/approach-monitor/internal/inference"
	"github.com/yegors/approach-monitor/pkg/logger"
	_ "modernc.org/sqlite"
)

// ErrClosed is returned when writing to a closed storage
var ErrClosed = errors.New("cycle storage is closed")

// DailyPath returns the database file for the given day inside basePath
func DailyPath(basePath string, day time.Time) string {
	return filepath.Join(basePath, fmt.Sprintf("approach-%s.db", day.Format("2006-01-02")))
}

// CycleStorage is a SQLite-based sink for finished analysis cycles
type CycleStorage struct {
	path   string
	db     *sql.DB
	closed bool
	mu     sync.Mutex
	logger *logger.Logger
}

// NewCycleStorage opens (or creates) the database at dbPath
func NewCycleStorage(dbPath string, log *logger.Logger) (*CycleStorage, error) {
	storageLogger := log.Named("sqlite")

	storageLogger.Info("Initializing SQLite storage",
		logger.String("path", dbPath))

	db, err := openDatabase(dbPath, storageLogger)
	if err != nil {
		return nil, err
	}

	return &CycleStorage{
		path:   dbPath,
		db:     db,
		logger: storageLogger,
	}, nil
}

func openDatabase(dbPath string, log *logger.Logger) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Set connection pool limits
	db.SetMaxOpenConns(1) // SQLite only supports one writer at a time
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if err := initDatabase(db, log); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// initDatabase initializes the database schema
func initDatabase(db *sql.DB, log *logger.Logger) error {
	log.Debug("Initializing database schema")

	// One row per airport per cycle, written even when no flight matched
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS landing_conditions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			cycle_at TIMESTAMP NOT NULL,
			airport TEXT NOT NULL,
			wind_speed_kmh REAL,
			precipitation_mm REAL,
			precipitation_probability REAL,
			risk TEXT,
			runway TEXT,
			degraded INTEGER DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create landing_conditions table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS flight_telemetry (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			cycle_at TIMESTAMP NOT NULL,
			callsign TEXT NOT NULL,
			hex TEXT,
			target_airport TEXT NOT NULL,
			latitude REAL,
			longitude REAL,
			altitude_ft REAL,
			ground_speed_kmh REAL,
			vertical_rate_fpm REAL,
			distance_km REAL,
			score REAL,
			status TEXT,
			speed_trend TEXT,
			delay_reason TEXT,
			emergency INTEGER DEFAULT 0,
			eta_minutes REAL,
			weather_id INTEGER REFERENCES landing_conditions(id)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create flight_telemetry table: %w", err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_landing_conditions_cycle ON landing_conditions(cycle_at, airport)",
		"CREATE INDEX IF NOT EXISTS idx_flight_telemetry_callsign ON flight_telemetry(callsign, cycle_at)",
	}
	for _, stmt := range indexes {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

// Close closes the database connection
func (s *CycleStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// database returns the current connection, nil once closed
func (s *CycleStorage) database() *sql.DB {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db
}

// ensureOpen pings the connection and reopens the database when it is gone.
func (s *CycleStorage) ensureOpen(ctx context.Context) error {
	if s.closed {
		return ErrClosed
	}
	if s.db != nil {
		if err := s.db.PingContext(ctx); err == nil {
			return nil
		}
		s.logger.Warn("Database connection lost, reopening", logger.String("path", s.path))
		s.db.Close()
		s.db = nil
	}

	db, err := openDatabase(s.path, s.logger)
	if err != nil {
		return err
	}
	s.db = db
	return nil
}

// SaveCycle persists one cycle in a single transaction: a landing_conditions row
// for every airport, then the flights linked to their airport's row. Any error
// rolls the whole cycle back.
func (s *CycleStorage) SaveCycle(ctx context.Context, report *inference.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureOpen(ctx); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	weatherStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO landing_conditions
		(cycle_at, airport, wind_speed_kmh, precipitation_mm, precipitation_probability, risk, runway, degraded)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare weather insert: %w", err)
	}
	defer weatherStmt.Close()

	flightStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO flight_telemetry
		(cycle_at, callsign, hex, target_airport, latitude, longitude, altitude_ft, ground_speed_kmh,
		 vertical_rate_fpm, distance_km, score, status, speed_trend, delay_reason, emergency, eta_minutes, weather_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare flight insert: %w", err)
	}
	defer flightStmt.Close()

	cycleAt := report.CycleAt.UTC().Format(time.RFC3339)
	flights := 0

	for _, ap := range report.Airports {
		wx := ap.Weather
		res, err := weatherStmt.ExecContext(ctx,
			cycleAt,
			ap.Airport.ICAO,
			wx.WindSpeedKmh,
			wx.PrecipitationMm,
			wx.PrecipitationProbability,
			string(ap.Risk),
			string(ap.Runway),
			boolToInt(wx.Degraded),
		)
		if err != nil {
			return fmt.Errorf("failed to insert weather for %s: %w", ap.Airport.ICAO, err)
		}

		weatherID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get weather row ID: %w", err)
		}

		for _, f := range ap.Flights {
			_, err := flightStmt.ExecContext(ctx,
				cycleAt,
				f.Callsign,
				f.Hex,
				f.Target,
				f.Lat,
				f.Lon,
				f.AltitudeFt,
				f.GroundSpeedKmh,
				f.VerticalRateFpm,
				f.DistanceKm,
				f.Score,
				string(f.Status),
				string(f.SpeedTrend),
				f.DelayReason,
				boolToInt(f.Emergency),
				f.ETAMinutes,
				weatherID,
			)
			if err != nil {
				return fmt.Errorf("failed to insert flight %s: %w", f.Callsign, err)
			}
			flights++
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cycle: %w", err)
	}

	s.logger.Info("Cycle persisted",
		logger.Int("airports", len(report.Airports)),
		logger.Int("flights", flights))

	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
