package sqlite

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/yegors/skylanes/pkg/logger"
)

// FlightRecord is one completed flight in the log
type FlightRecord struct {
	ID          int64     `json:"id"`
	FlightID    string    `json:"flight_id"`
	Callsign    string    `json:"callsign"`
	Route       []string  `json:"route"`
	Legs        int       `json:"legs"`
	DepartedAt  time.Time `json:"departed_at"`
	LandedAt    time.Time `json:"landed_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// FlightLogStorage is an append-only record of completed flights
type FlightLogStorage struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewFlightLogStorage creates the flight_log table if needed
func NewFlightLogStorage(db *sql.DB, log *logger.Logger) (*FlightLogStorage, error) {
	s := &FlightLogStorage{
		db:     db,
		logger: log.Named("sqlite-log"),
	}
	if err := s.initDB(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FlightLogStorage) initDB() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS flight_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			flight_id TEXT NOT NULL,
			callsign TEXT NOT NULL,
			route TEXT NOT NULL,
			legs INTEGER NOT NULL,
			departed_at TIMESTAMP NOT NULL,
			landed_at TIMESTAMP,
			completed_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create flight_log table: %w", err)
	}

	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_flight_log_callsign ON flight_log(callsign)`)
	if err != nil {
		return fmt.Errorf("failed to create callsign index: %w", err)
	}

	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_flight_log_completed_at ON flight_log(completed_at)`)
	if err != nil {
		return fmt.Errorf("failed to create completed_at index: %w", err)
	}

	return nil
}

// Insert appends a completed flight and returns its row id
func (s *FlightLogStorage) Insert(record *FlightRecord) (int64, error) {
	var landedAt any
	if !record.LandedAt.IsZero() {
		landedAt = record.LandedAt.UTC().Format(time.RFC3339)
	}

	result, err := s.db.Exec(
		`INSERT INTO flight_log
		(flight_id, callsign, route, legs, departed_at, landed_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		record.FlightID,
		record.Callsign,
		strings.Join(record.Route, routeSeparator),
		record.Legs,
		record.DepartedAt.UTC().Format(time.RFC3339),
		landedAt,
		record.CompletedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert flight record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}
	return id, nil
}

const routeSeparator = " > "

// GetRecent returns completed flights, newest first
func (s *FlightLogStorage) GetRecent(limit, offset int) ([]*FlightRecord, error) {
	return s.query(
		`SELECT id, flight_id, callsign, route, legs, departed_at, landed_at, completed_at
		FROM flight_log
		ORDER BY completed_at DESC, id DESC
		LIMIT ? OFFSET ?`,
		limit, offset,
	)
}

// GetByCallsign returns completed flights that flew under a callsign
func (s *FlightLogStorage) GetByCallsign(callsign string, limit int) ([]*FlightRecord, error) {
	return s.query(
		`SELECT id, flight_id, callsign, route, legs, departed_at, landed_at, completed_at
		FROM flight_log
		WHERE callsign = ?
		ORDER BY completed_at DESC, id DESC
		LIMIT ?`,
		callsign, limit,
	)
}

func (s *FlightLogStorage) query(q string, args ...any) ([]*FlightRecord, error) {
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query flight log: %w", err)
	}
	defer rows.Close()

	var records []*FlightRecord
	for rows.Next() {
		var record FlightRecord
		var routeText, departedAt, completedAt string
		var landedAt sql.NullString

		if err := rows.Scan(
			&record.ID,
			&record.FlightID,
			&record.Callsign,
			&routeText,
			&record.Legs,
			&departedAt,
			&landedAt,
			&completedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan flight record: %w", err)
		}

		if routeText != "" {
			record.Route = strings.Split(routeText, routeSeparator)
		}
		if record.DepartedAt, err = time.Parse(time.RFC3339, departedAt); err != nil {
			return nil, fmt.Errorf("failed to parse departed_at: %w", err)
		}
		if record.CompletedAt, err = time.Parse(time.RFC3339, completedAt); err != nil {
			return nil, fmt.Errorf("failed to parse completed_at: %w", err)
		}
		if landedAt.Valid {
			if record.LandedAt, err = time.Parse(time.RFC3339, landedAt.String); err != nil {
				return nil, fmt.Errorf("failed to parse landed_at: %w", err)
			}
		}

		records = append(records, &record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read flight log: %w", err)
	}
	return records, nil
}
