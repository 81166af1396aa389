package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/yegors/skylanes/internal/route"
	"github.com/yegors/skylanes/pkg/logger"
)

// PortStorage persists the port catalogue
type PortStorage struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewPortStorage creates the ports table if needed
func NewPortStorage(db *sql.DB, log *logger.Logger) (*PortStorage, error) {
	s := &PortStorage{
		db:     db,
		logger: log.Named("sqlite-ports"),
	}
	if err := s.initDB(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PortStorage) initDB() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS ports (
			ident TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			lat REAL NOT NULL,
			lon REAL NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create ports table: %w", err)
	}
	return nil
}

// ReplaceAll swaps the stored catalogue for ports in one transaction
func (s *PortStorage) ReplaceAll(ports []route.Port) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM ports`); err != nil {
		return fmt.Errorf("failed to clear ports: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO ports (ident, name, lat, lon, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(ident) DO UPDATE SET
			name = excluded.name,
			lat = excluded.lat,
			lon = excluded.lon,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare port insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, p := range ports {
		if _, err := stmt.Exec(p.Ident, p.Name, p.Lat, p.Lon, now); err != nil {
			return fmt.Errorf("failed to insert port %s: %w", p.Ident, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit ports: %w", err)
	}

	s.logger.Debug("Stored ports", logger.Int("count", len(ports)))
	return nil
}

// GetAll returns every stored port ordered by ident
func (s *PortStorage) GetAll() ([]route.Port, error) {
	rows, err := s.db.Query(`SELECT ident, name, lat, lon FROM ports ORDER BY ident`)
	if err != nil {
		return nil, fmt.Errorf("failed to query ports: %w", err)
	}
	defer rows.Close()

	var ports []route.Port
	for rows.Next() {
		var p route.Port
		if err := rows.Scan(&p.Ident, &p.Name, &p.Lat, &p.Lon); err != nil {
			return nil, fmt.Errorf("failed to scan port: %w", err)
		}
		ports = append(ports, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ports: %w", err)
	}
	return ports, nil
}

// Count returns the number of stored ports
func (s *PortStorage) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM ports`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count ports: %w", err)
	}
	return n, nil
}
