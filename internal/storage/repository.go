package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"skoglogg/internal/core"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a session or measurement id does not exist.
var ErrNotFound = errors.New("not found")

const activeSessionKey = "active_session"

const timeLayout = time.RFC3339Nano

// SQLiteRepository is the measurement store: durable storage for sessions,
// their measurements, and the active-session pointer.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// Pragmas are per-connection in database/sql, so they ride the DSN and
	// apply to every connection the pool opens.
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// CreateSession inserts a new session for the given date. Label and owner are
// optional and stored verbatim. It does not touch the active-session pointer.
func (r *SQLiteRepository) CreateSession(ctx context.Context, date core.Date, label, owner string) (string, error) {
	if err := date.Validate(); err != nil {
		return "", fmt.Errorf("validate session date: %w", err)
	}

	id := uuid.NewString()
	now := time.Now().UTC()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, label, owner, session_date, total_volume, created_at)
		 VALUES (?, ?, ?, ?, 0, ?)`,
		id, label, owner, date.String(), now.Format(timeLayout))
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}

	slog.InfoContext(ctx, "Session created",
		"session_id", id,
		"session_date", date.String(),
		"label", label)

	return id, nil
}

// InsertMeasurement validates the input, computes the derived volume and
// stores the measurement. It never touches the session's total_volume; the
// aggregate maintainer does that in the same logical operation.
func (r *SQLiteRepository) InsertMeasurement(ctx context.Context, sessionID, categoryCode string, diameter, length float64) (core.Measurement, error) {
	if err := core.ValidateMeasurementInput(categoryCode, diameter, length); err != nil {
		return core.Measurement{}, err
	}

	m := core.Measurement{
		ID:           uuid.NewString(),
		SessionID:    sessionID,
		CategoryCode: categoryCode,
		Diameter:     diameter,
		Length:       length,
		Volume:       core.VolumeM3(diameter, length),
		Timestamp:    time.Now().UTC(),
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO measurements (id, session_id, category_code, diameter, length, volume, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.SessionID, m.CategoryCode, m.Diameter, m.Length, m.Volume, m.Timestamp.Format(timeLayout))
	if err != nil {
		return core.Measurement{}, fmt.Errorf("insert measurement: %w", err)
	}

	slog.InfoContext(ctx, "Measurement saved",
		"measurement_id", m.ID,
		"session_id", m.SessionID,
		"category_code", m.CategoryCode,
		"volume_m3", m.Volume)

	return m, nil
}

// DeleteMeasurement removes one measurement and returns the owning session id
// so the caller can trigger the aggregate recompute. The delete and the lookup
// are one statement, so of two racing deletes only one can report success.
func (r *SQLiteRepository) DeleteMeasurement(ctx context.Context, id string) (string, error) {
	var sessionID string
	err := r.db.QueryRowContext(ctx,
		"DELETE FROM measurements WHERE id = ? RETURNING session_id", id).Scan(&sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("measurement %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("delete measurement: %w", err)
	}

	slog.InfoContext(ctx, "Measurement deleted",
		"measurement_id", id,
		"session_id", sessionID)

	return sessionID, nil
}

// DeleteMeasurements removes every measurement of a session in one statement.
// The session itself is left in place.
func (r *SQLiteRepository) DeleteMeasurements(ctx context.Context, sessionID string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM measurements WHERE session_id = ?", sessionID)
	if err != nil {
		return fmt.Errorf("delete session measurements: %w", err)
	}

	n, _ := res.RowsAffected()
	slog.InfoContext(ctx, "Session measurements cleared",
		"session_id", sessionID,
		"deleted", n)

	return nil
}

// DeleteSession removes a session and all of its measurements as one
// transaction, so no orphan measurements are ever visible.
func (r *SQLiteRepository) DeleteSession(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete session: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, "SELECT 1 FROM sessions WHERE id = ?", id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("look up session: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM measurements WHERE session_id = ?", id); err != nil {
		return fmt.Errorf("delete session measurements: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete session: %w", err)
	}

	slog.InfoContext(ctx, "Session deleted", "session_id", id)
	return nil
}

// GetSession fetches one session by id.
func (r *SQLiteRepository) GetSession(ctx context.Context, id string) (core.Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, label, owner, session_date, total_volume, created_at
		 FROM sessions WHERE id = ?`, id)

	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Session{}, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.Session{}, fmt.Errorf("get session: %w", err)
	}
	return s, nil
}

// ListSessionsByDateRange returns the sessions dated within [start, end],
// ascending by date.
func (r *SQLiteRepository) ListSessionsByDateRange(ctx context.Context, start, end core.Date) ([]core.Session, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, label, owner, session_date, total_volume, created_at
		 FROM sessions
		 WHERE session_date BETWEEN ? AND ?
		 ORDER BY session_date ASC, created_at ASC`,
		start.String(), end.String())
	if err != nil {
		return nil, fmt.Errorf("list sessions by date range: %w", err)
	}
	defer rows.Close()

	var sessions []core.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	return sessions, nil
}

// ListMeasurements returns a session's measurements, most recent first.
func (r *SQLiteRepository) ListMeasurements(ctx context.Context, sessionID string) ([]core.Measurement, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, session_id, category_code, diameter, length, volume, created_at
		 FROM measurements
		 WHERE session_id = ?
		 ORDER BY created_at DESC, rowid DESC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list measurements: %w", err)
	}
	defer rows.Close()

	var measurements []core.Measurement
	for rows.Next() {
		var (
			m         core.Measurement
			createdAt string
		)
		if err := rows.Scan(&m.ID, &m.SessionID, &m.CategoryCode, &m.Diameter, &m.Length, &m.Volume, &createdAt); err != nil {
			return nil, fmt.Errorf("scan measurement: %w", err)
		}
		if m.Timestamp, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, fmt.Errorf("parse measurement timestamp: %w", err)
		}
		measurements = append(measurements, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate measurements: %w", err)
	}

	return measurements, nil
}

// SumMeasurementVolume returns the exact sum of volume over the measurements
// currently referencing the session. This is the authoritative input for the
// aggregate recompute.
func (r *SQLiteRepository) SumMeasurementVolume(ctx context.Context, sessionID string) (float64, error) {
	var total float64
	err := r.db.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(volume), 0) FROM measurements WHERE session_id = ?",
		sessionID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum measurement volume: %w", err)
	}
	return total, nil
}

// SetTotalVolume writes a session's total_volume. This is the only sanctioned
// write path for the aggregate; only the aggregate maintainer calls it.
func (r *SQLiteRepository) SetTotalVolume(ctx context.Context, sessionID string, value float64) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE sessions SET total_volume = ? WHERE id = ?", value, sessionID)
	if err != nil {
		return fmt.Errorf("set total volume: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set total volume rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}

	return nil
}

// ActiveSessionID returns the persisted active-session pointer, or "" when no
// pointer has been stored yet.
func (r *SQLiteRepository) ActiveSessionID(ctx context.Context) (string, error) {
	var id string
	err := r.db.QueryRowContext(ctx,
		"SELECT value FROM app_state WHERE key = ?", activeSessionKey).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read active session pointer: %w", err)
	}
	return id, nil
}

// SetActiveSessionID persists the active-session pointer.
func (r *SQLiteRepository) SetActiveSessionID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO app_state (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		activeSessionKey, id)
	if err != nil {
		return fmt.Errorf("persist active session pointer: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (core.Session, error) {
	var (
		s           core.Session
		sessionDate string
		createdAt   string
	)
	if err := row.Scan(&s.ID, &s.Label, &s.Owner, &sessionDate, &s.TotalVolume, &createdAt); err != nil {
		return core.Session{}, err
	}

	date, err := core.ParseDate(sessionDate)
	if err != nil {
		return core.Session{}, fmt.Errorf("parse session date %q: %w", sessionDate, err)
	}
	s.Date = date

	if s.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return core.Session{}, fmt.Errorf("parse session created_at: %w", err)
	}

	return s, nil
}
