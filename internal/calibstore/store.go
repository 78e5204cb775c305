// Package calibstore persists calibration results in a local SQLite
// database, one row per converged session. The newest row is the calibration
// a robot should boot with.
package calibstore

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/fieldrobotics/autocal/internal/camera"
	"github.com/fieldrobotics/autocal/internal/timeutil"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNoCalibration is returned when the store holds no calibration yet.
var ErrNoCalibration = errors.New("calibstore: no calibration recorded")

// Record is one persisted calibration result.
type Record struct {
	ID          string
	RecordedAt  time.Time
	Source      string
	Iterations  int
	MeanError   float64
	Calibration camera.Calibration
}

type Store struct {
	*sql.DB
	clock timeutil.Clock
}

// Open opens (creating if necessary) the database at path and applies all
// pending migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open calibration store: %w", err)
	}
	s := &Store{db, timeutil.RealClock{}}
	if err := s.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// migrateUp applies the embedded migrations. A store already at the latest
// version is not an error.
func (s *Store) migrateUp() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load embedded migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(s.DB, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite migrate driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	// Note: m is not closed because that would close the underlying DB
	// connection.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// Save inserts a calibration record. An empty ID gets a fresh UUID and a zero
// RecordedAt the current time; both are written back into rec.
func (s *Store) Save(rec *Record) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = s.clock.Now()
	}
	c := rec.Calibration
	_, err := s.Exec(`
		INSERT INTO calibrations (
			id, recorded_at_nanos, source, iterations, mean_error,
			lower_roll, lower_tilt, upper_roll, upper_tilt, body_roll, body_tilt
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.RecordedAt.UnixNano(), rec.Source, rec.Iterations, rec.MeanError,
		c.LowerCamera.Roll, c.LowerCamera.Tilt,
		c.UpperCamera.Roll, c.UpperCamera.Tilt,
		c.Body.Roll, c.Body.Tilt,
	)
	if err != nil {
		return fmt.Errorf("save calibration %s: %w", rec.ID, err)
	}
	return nil
}

const selectColumns = `
	id, recorded_at_nanos, source, iterations, mean_error,
	lower_roll, lower_tilt, upper_roll, upper_tilt, body_roll, body_tilt`

func scanRecord(row interface{ Scan(...any) error }) (*Record, error) {
	var rec Record
	var nanos int64
	c := &rec.Calibration
	err := row.Scan(
		&rec.ID, &nanos, &rec.Source, &rec.Iterations, &rec.MeanError,
		&c.LowerCamera.Roll, &c.LowerCamera.Tilt,
		&c.UpperCamera.Roll, &c.UpperCamera.Tilt,
		&c.Body.Roll, &c.Body.Tilt,
	)
	if err != nil {
		return nil, err
	}
	rec.RecordedAt = time.Unix(0, nanos)
	return &rec, nil
}

// Latest returns the most recently recorded calibration.
func (s *Store) Latest() (*Record, error) {
	row := s.QueryRow(`SELECT` + selectColumns + `
		FROM calibrations ORDER BY recorded_at_nanos DESC, id LIMIT 1`)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoCalibration
	}
	if err != nil {
		return nil, fmt.Errorf("load latest calibration: %w", err)
	}
	return rec, nil
}

// List returns up to limit records, newest first.
func (s *Store) List(limit int) ([]*Record, error) {
	rows, err := s.Query(`SELECT`+selectColumns+`
		FROM calibrations ORDER BY recorded_at_nanos DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list calibrations: %w", err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan calibration: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
