// Package ledger records the outcome of every scrape unit in SQLite so that
// later runs can report status and skip years already collected.
package ledger

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pevans/confpapers/corpus"
)

// Custom errors for ledger operations
var (
	ErrUnitNotFound  = errors.New("unit not found")
	ErrInvalidStatus = errors.New("status must be succeeded, failed, or skipped")
)

// Status is the outcome of one scrape unit.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

func (s Status) valid() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusSkipped
}

// Unit is one recorded (conference, year) scrape.
type Unit struct {
	UnitID     uuid.UUID
	RunID      uuid.UUID
	Conference corpus.Conference
	Year       int
	Format     string
	Status     Status
	Papers     int
	Rows       int
	Error      *string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration returns how long the unit ran.
func (u *Unit) Duration() time.Duration {
	return u.FinishedAt.Sub(u.StartedAt)
}

// UnitFilter represents filtering options for listing units.
type UnitFilter struct {
	RunID      *uuid.UUID
	Conference *corpus.Conference
	Year       *int
	Status     *Status
	Limit      int // Pagination limit
	Offset     int // Pagination offset
}

// Store manages the unit ledger using SQLite. It is safe for concurrent
// use.
type Store struct {
	db *sql.DB
}

// NewStore opens or creates the ledger database at dbPath, creating its
// directory when needed.
func NewStore(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create ledger directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Units finish concurrently; SQLite allows one writer.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates the units table if it doesn't exist.
func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS units (
		unit_id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL,
		conference TEXT NOT NULL,
		year INTEGER NOT NULL,
		format TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		papers INTEGER NOT NULL DEFAULT 0,
		row_count INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS units_conference_year ON units (conference, year);
	CREATE INDEX IF NOT EXISTS units_run ON units (run_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordUnit stores a finished unit. A nil UnitID is replaced with a new
// one.
func (s *Store) RecordUnit(u *Unit) error {
	if !u.Status.valid() {
		return ErrInvalidStatus
	}
	if u.UnitID == uuid.Nil {
		u.UnitID = uuid.New()
	}

	query := `
		INSERT INTO units (
			unit_id, run_id, conference, year, format, status,
			papers, row_count, error, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		u.UnitID.String(),
		u.RunID.String(),
		string(u.Conference),
		u.Year,
		u.Format,
		string(u.Status),
		u.Papers,
		u.Rows,
		u.Error,
		formatTime(u.StartedAt),
		formatTime(u.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert unit: %w", err)
	}

	return nil
}

const unitColumns = `unit_id, run_id, conference, year, format, status,
	papers, row_count, error, started_at, finished_at`

// GetUnit retrieves a unit by ID.
func (s *Store) GetUnit(unitID uuid.UUID) (*Unit, error) {
	row := s.db.QueryRow("SELECT "+unitColumns+" FROM units WHERE unit_id = ?", unitID.String())

	u, err := scanUnit(row)
	if err == sql.ErrNoRows {
		return nil, ErrUnitNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query unit: %w", err)
	}

	return u, nil
}

// ListUnits lists units, newest first, with optional filtering.
func (s *Store) ListUnits(filter UnitFilter) ([]Unit, error) {
	query := "SELECT " + unitColumns + " FROM units"

	var whereClauses []string
	var args []any

	if filter.RunID != nil {
		whereClauses = append(whereClauses, "run_id = ?")
		args = append(args, filter.RunID.String())
	}
	if filter.Conference != nil {
		whereClauses = append(whereClauses, "conference = ?")
		args = append(args, string(*filter.Conference))
	}
	if filter.Year != nil {
		whereClauses = append(whereClauses, "year = ?")
		args = append(args, *filter.Year)
	}
	if filter.Status != nil {
		whereClauses = append(whereClauses, "status = ?")
		args = append(args, string(*filter.Status))
	}

	if len(whereClauses) > 0 {
		query += " WHERE " + strings.Join(whereClauses, " AND ")
	}

	query += " ORDER BY started_at DESC, year DESC, conference"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		if filter.Limit <= 0 {
			query += " LIMIT -1"
		}
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	return s.queryUnits(query, args...)
}

// Latest returns the most recent unit of every (conference, year) ever
// recorded, ordered by year then conference.
func (s *Store) Latest() ([]Unit, error) {
	query := `
		SELECT ` + unitColumns + ` FROM units u
		WHERE unit_id = (
			SELECT unit_id FROM units
			WHERE conference = u.conference AND year = u.year
			ORDER BY finished_at DESC, rowid DESC
			LIMIT 1
		)
		ORDER BY year, conference
	`
	return s.queryUnits(query)
}

// LastSucceeded returns the most recent successful unit for a conference
// year, or ErrUnitNotFound.
func (s *Store) LastSucceeded(conf corpus.Conference, year int) (*Unit, error) {
	query := "SELECT " + unitColumns + ` FROM units
		WHERE conference = ? AND year = ? AND status = ?
		ORDER BY finished_at DESC, rowid DESC
		LIMIT 1`

	u, err := scanUnit(s.db.QueryRow(query, string(conf), year, string(StatusSucceeded)))
	if err == sql.ErrNoRows {
		return nil, ErrUnitNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query unit: %w", err)
	}

	return u, nil
}

func (s *Store) queryUnits(query string, args ...any) ([]Unit, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query units: %w", err)
	}
	defer rows.Close()

	var units []Unit
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan unit: %w", err)
		}
		units = append(units, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read units: %w", err)
	}

	return units, nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanUnit is a shared helper that parses one row into a Unit.
func scanUnit(row scanner) (*Unit, error) {
	var unitIDStr, runIDStr, conference, format, status, startedAtStr, finishedAtStr string
	var year, papers, rowCount int
	var unitErr sql.NullString

	err := row.Scan(
		&unitIDStr, &runIDStr, &conference, &year, &format, &status,
		&papers, &rowCount, &unitErr, &startedAtStr, &finishedAtStr,
	)
	if err != nil {
		return nil, err
	}

	unitID, err := uuid.Parse(unitIDStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse unit ID: %w", err)
	}
	runID, err := uuid.Parse(runIDStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse run ID: %w", err)
	}

	u := &Unit{
		UnitID:     unitID,
		RunID:      runID,
		Conference: corpus.Conference(conference),
		Year:       year,
		Format:     format,
		Status:     Status(status),
		Papers:     papers,
		Rows:       rowCount,
		StartedAt:  parseTime(startedAtStr),
		FinishedAt: parseTime(finishedAtStr),
	}
	if unitErr.Valid {
		u.Error = &unitErr.String
	}

	return u, nil
}

// timeFormat has a fixed-width fraction so stored times sort as text.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Helper functions for time formatting
func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) time.Time {
	// Try RFC3339Nano first, fall back to RFC3339 for compatibility
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339, s)
	}
	return t.Truncate(0)
}
