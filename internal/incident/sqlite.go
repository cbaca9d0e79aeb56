package incident

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // CGO-free SQLite driver.

	"github.com/tourguard/safety-band/internal/domain/alert"
)

// SQLiteStore persists incident records in a local SQLite database.
type SQLiteStore struct {
	// db is the underlying connection pool.
	db *sql.DB
}

// OpenSQLite opens or creates the incident database at the given path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open incident database: %w", err)
	}

	// WAL mode keeps appends from blocking concurrent queries.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	if err := createSchema(db); err != nil {
		_ = db.Close()

		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// createSchema creates the incident table and its query indices.
func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS incidents (
		alert_id TEXT PRIMARY KEY,
		uvid TEXT NOT NULL,
		band_id TEXT NOT NULL,
		zone TEXT,
		level INTEGER NOT NULL,
		priority TEXT NOT NULL,
		lat REAL NOT NULL,
		lon REAL NOT NULL,
		resolution TEXT,
		created_at INTEGER NOT NULL,
		resolved_at INTEGER NOT NULL,
		response_time_ns INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_incidents_uvid ON incidents(uvid);
	CREATE INDEX IF NOT EXISTS idx_incidents_zone ON incidents(zone);
	CREATE INDEX IF NOT EXISTS idx_incidents_resolved_at ON incidents(resolved_at);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	return nil
}

// Append writes one immutable record. Duplicate alert IDs are rejected by the
// primary key, which keeps retried commits from double-appending.
func (s *SQLiteStore) Append(ctx context.Context, r Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO incidents
			(alert_id, uvid, band_id, zone, level, priority, lat, lon, resolution, created_at, resolved_at, response_time_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(alert_id) DO NOTHING`,
		r.AlertID, r.UVID, r.BandID, r.Zone, int(r.Level), string(r.Priority),
		r.Location.Lat, r.Location.Lon, r.Resolution,
		r.CreatedAt.UnixNano(), r.ResolvedAt.UnixNano(),
		r.ResponseTime.Nanoseconds(),
	)
	if err != nil {
		return fmt.Errorf("%w: append %s: %w", ErrStorage, r.AlertID, err)
	}

	return nil
}

// Query returns matching records ordered by resolution time ascending.
func (s *SQLiteStore) Query(ctx context.Context, f Filter) ([]Record, error) {
	query := `SELECT alert_id, uvid, band_id, zone, level, priority, lat, lon,
		resolution, created_at, resolved_at, response_time_ns FROM incidents`

	var (
		clauses []string
		args    []any
	)

	if f.UVID != "" {
		clauses = append(clauses, "uvid = ?")
		args = append(args, f.UVID)
	}

	if f.Zone != "" {
		clauses = append(clauses, "zone = ?")
		args = append(args, f.Zone)
	}

	if f.Level != 0 {
		clauses = append(clauses, "level = ?")
		args = append(args, int(f.Level))
	}

	if !f.From.IsZero() {
		clauses = append(clauses, "resolved_at >= ?")
		args = append(args, f.From.UnixNano())
	}

	if !f.To.IsZero() {
		clauses = append(clauses, "resolved_at < ?")
		args = append(args, f.To.UnixNano())
	}

	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}

	query += " ORDER BY resolved_at ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query: %w", ErrStorage, err)
	}
	defer rows.Close()

	var result []Record

	for rows.Next() {
		var (
			r                     Record
			level                 int
			priority              string
			createdNS, resolvedNS int64
			responseNS            int64
		)

		err = rows.Scan(&r.AlertID, &r.UVID, &r.BandID, &r.Zone, &level, &priority,
			&r.Location.Lat, &r.Location.Lon, &r.Resolution, &createdNS, &resolvedNS, &responseNS)
		if err != nil {
			return nil, fmt.Errorf("%w: scan: %w", ErrStorage, err)
		}

		r.Level = alert.Level(level)
		r.Priority = alert.Priority(priority)
		r.ResponseTime = time.Duration(responseNS)
		r.CreatedAt = time.Unix(0, createdNS).UTC()
		r.ResolvedAt = time.Unix(0, resolvedNS).UTC()

		result = append(result, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: rows: %w", ErrStorage, err)
	}

	return result, nil
}
