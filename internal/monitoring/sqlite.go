package monitoring

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // sqlite3 database driver
)

const createEventsTable = `
CREATE TABLE IF NOT EXISTS file_events (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	id          TEXT NOT NULL,
	location    TEXT NOT NULL,
	path        TEXT NOT NULL,
	event_type  TEXT NOT NULL,
	detected_at TEXT NOT NULL,
	size        INTEGER NOT NULL,
	checksum    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_file_events_location ON file_events (location);
CREATE INDEX IF NOT EXISTS idx_file_events_location_path ON file_events (location, path);
`

// SQLiteEventStore persists events in a SQLite database. Appends are
// insert-only; history is never rewritten.
type SQLiteEventStore struct {
	db *sql.DB
}

// NewSQLiteEventStore opens (creating if needed) the database at path
// and ensures the events table exists.
func NewSQLiteEventStore(path string) (*SQLiteEventStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open event database: %w", err)
	}

	if _, err := db.Exec(createEventsTable); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("failed to initialize event schema: %w", err)
	}

	return &SQLiteEventStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteEventStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close event database: %w", err)
	}

	return nil
}

// Append records an event.
func (s *SQLiteEventStore) Append(ctx context.Context, event *FileEvent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO file_events (id, location, path, event_type, detected_at, size, checksum)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		event.ID.String(),
		event.LocationName,
		event.FilePath,
		event.Type.String(),
		event.DetectedAt.UTC().Format(time.RFC3339Nano),
		event.Size,
		event.Checksum,
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}

	return nil
}

// EventsForLocation returns every event recorded for a location, ordered
// by detection time then insertion order.
func (s *SQLiteEventStore) EventsForLocation(ctx context.Context, location string) ([]*FileEvent, error) {
	return s.query(ctx,
		`SELECT id, location, path, event_type, detected_at, size, checksum
		 FROM file_events WHERE location = ? ORDER BY detected_at, seq`,
		location)
}

// EventsForPath returns the events recorded for one path within a
// location.
func (s *SQLiteEventStore) EventsForPath(ctx context.Context, location, path string) ([]*FileEvent, error) {
	return s.query(ctx,
		`SELECT id, location, path, event_type, detected_at, size, checksum
		 FROM file_events WHERE location = ? AND path = ? ORDER BY detected_at, seq`,
		location, path)
}

// Count returns the number of events recorded for a location.
func (s *SQLiteEventStore) Count(ctx context.Context, location string) (int, error) {
	var count int

	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM file_events WHERE location = ?`, location)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}

	return count, nil
}

// query runs a SELECT over file_events and scans the rows back into
// events.
func (s *SQLiteEventStore) query(ctx context.Context, stmt string, args ...any) ([]*FileEvent, error) {
	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []*FileEvent

	for rows.Next() {
		var (
			idText     string
			typeText   string
			detectedAt string
			event      FileEvent
		)

		err := rows.Scan(&idText, &event.LocationName, &event.FilePath, &typeText, &detectedAt, &event.Size, &event.Checksum)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}

		event.ID, err = uuid.Parse(idText)
		if err != nil {
			return nil, fmt.Errorf("failed to parse event id: %w", err)
		}

		event.Type, err = ParseEventType(typeText)
		if err != nil {
			return nil, fmt.Errorf("failed to parse event type: %w", err)
		}

		event.DetectedAt, err = time.Parse(time.RFC3339Nano, detectedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse event time: %w", err)
		}

		events = append(events, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read event rows: %w", err)
	}

	return events, nil
}
