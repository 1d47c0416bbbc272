// Package storage provides SQLite-backed persistence: a price-series cache
// keyed by token and fetch window, and a history of pipeline runs.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rcline/electioncal/internal/models"
	_ "modernc.org/sqlite"
)

// Storage wraps a SQLite database for all persistence operations.
type Storage struct {
	db *sql.DB
}

// New opens or creates the SQLite database at dbPath.
// An empty dbPath defaults to $TMPDIR/electioncal/data.db.
func New(dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "electioncal", "data.db")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	s := &Storage{db: db}
	if err := s.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS price_windows (
			token_id     TEXT NOT NULL,
			window_start INTEGER NOT NULL,
			window_end   INTEGER NOT NULL,
			point_count  INTEGER NOT NULL,
			fetched_at   INTEGER NOT NULL,
			PRIMARY KEY (token_id, window_start, window_end)
		)`,
		`CREATE TABLE IF NOT EXISTS price_points (
			token_id     TEXT NOT NULL,
			window_start INTEGER NOT NULL,
			window_end   INTEGER NOT NULL,
			ts           INTEGER NOT NULL,
			price        REAL NOT NULL,
			PRIMARY KEY (token_id, window_start, window_end, ts)
		)`,
		`CREATE TABLE IF NOT EXISTS runs (
			id          TEXT PRIMARY KEY,
			command     TEXT NOT NULL,
			started_at  INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL,
			input_rows  INTEGER NOT NULL,
			duplicates  INTEGER NOT NULL,
			markets     INTEGER NOT NULL,
			fetch_fails INTEGER NOT NULL,
			with_7d     INTEGER NOT NULL,
			with_1d     INTEGER NOT NULL,
			correct_7d  INTEGER NOT NULL,
			total_7d    INTEGER NOT NULL,
			correct_1d  INTEGER NOT NULL,
			total_1d    INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveSeries records a fetched price series for a token's window. An empty
// series is recorded too, so a settled-but-quiet market is not refetched on
// every run.
func (s *Storage) SaveSeries(tokenID string, start, end time.Time, points []models.PricePoint) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.Exec(`
		INSERT OR REPLACE INTO price_windows
			(token_id, window_start, window_end, point_count, fetched_at)
		VALUES (?,?,?,?,?)`,
		tokenID, start.Unix(), end.Unix(), len(points), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to mark window: %w", err)
	}

	if _, err := tx.Exec(`
		DELETE FROM price_points WHERE token_id=? AND window_start=? AND window_end=?`,
		tokenID, start.Unix(), end.Unix()); err != nil {
		return fmt.Errorf("failed to clear stale points: %w", err)
	}

	for _, p := range points {
		if _, err := tx.Exec(`
			INSERT INTO price_points (token_id, window_start, window_end, ts, price)
			VALUES (?,?,?,?,?)`,
			tokenID, start.Unix(), end.Unix(), p.Timestamp.Unix(), p.Price,
		); err != nil {
			return fmt.Errorf("failed to insert price point: %w", err)
		}
	}

	return tx.Commit()
}

// LoadSeries returns the cached series for a token's window. The second
// result reports whether the window was ever fetched; a fetched window may
// legitimately hold zero points.
func (s *Storage) LoadSeries(tokenID string, start, end time.Time) ([]models.PricePoint, bool, error) {
	var count int
	err := s.db.QueryRow(`
		SELECT point_count FROM price_windows
		WHERE token_id=? AND window_start=? AND window_end=?`,
		tokenID, start.Unix(), end.Unix(),
	).Scan(&count)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to query window: %w", err)
	}

	rows, err := s.db.Query(`
		SELECT ts, price FROM price_points
		WHERE token_id=? AND window_start=? AND window_end=?
		ORDER BY ts`,
		tokenID, start.Unix(), end.Unix(),
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to query points: %w", err)
	}
	defer rows.Close()

	points := make([]models.PricePoint, 0, count)
	for rows.Next() {
		var ts int64
		var price float64
		if err := rows.Scan(&ts, &price); err != nil {
			return nil, false, fmt.Errorf("failed to scan point: %w", err)
		}
		points = append(points, models.PricePoint{
			Timestamp: time.Unix(ts, 0).UTC(),
			Price:     price,
		})
	}
	return points, true, rows.Err()
}

// RecordRun persists one run report.
func (s *Storage) RecordRun(report *models.RunReport) error {
	if report.RunID == "" {
		return fmt.Errorf("run report has no id")
	}
	_, err := s.db.Exec(`
		INSERT INTO runs
			(id, command, started_at, duration_ms, input_rows, duplicates, markets,
			 fetch_fails, with_7d, with_1d, correct_7d, total_7d, correct_1d, total_1d)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		report.RunID, report.Command, report.StartedAt.Unix(), report.Duration.Milliseconds(),
		report.InputRows, report.Duplicates, report.Markets,
		report.FetchFails, report.With7d, report.With1d,
		report.Correct7d, report.Total7d, report.Correct1d, report.Total1d,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// RecentRuns returns up to n run reports, newest first. Side breakdowns are
// not persisted and come back nil.
func (s *Storage) RecentRuns(n int) ([]models.RunReport, error) {
	rows, err := s.db.Query(`
		SELECT id, command, started_at, duration_ms, input_rows, duplicates, markets,
		       fetch_fails, with_7d, with_1d, correct_7d, total_7d, correct_1d, total_1d
		FROM runs ORDER BY started_at DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []models.RunReport
	for rows.Next() {
		var r models.RunReport
		var startedAt, durationMS int64
		if err := rows.Scan(
			&r.RunID, &r.Command, &startedAt, &durationMS, &r.InputRows, &r.Duplicates, &r.Markets,
			&r.FetchFails, &r.With7d, &r.With1d, &r.Correct7d, &r.Total7d, &r.Correct1d, &r.Total1d,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.StartedAt = time.Unix(startedAt, 0).UTC()
		r.Duration = time.Duration(durationMS) * time.Millisecond
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
