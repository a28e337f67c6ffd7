package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"skoglogg/internal/core"
	"skoglogg/internal/storage"
)

// SessionManager decides which session new measurements go into. It owns the
// persisted active-session pointer as a cache: the pointer is validated
// against the stored session's date on every resolution and is never trusted
// blindly. A new session is created whenever the wall-clock date has moved
// past the active session's date.
type SessionManager struct {
	store *storage.SQLiteRepository
	group singleflight.Group
}

func NewSessionManager(store *storage.SQLiteRepository) *SessionManager {
	return &SessionManager{store: store}
}

// ResolveActiveSession returns the session id to record against for the given
// wall-clock time, creating a fresh session on first use or day rollover.
// Concurrent resolutions for the same day collapse into a single flight, so a
// same-day race can never create duplicate sessions. The flight is keyed by
// day: a caller straddling midnight must not be handed the neighbouring day's
// session.
func (m *SessionManager) ResolveActiveSession(ctx context.Context, now time.Time) (string, error) {
	today := core.DateOf(now)

	v, err, _ := m.group.Do(today.String(), func() (any, error) {
		return m.resolve(ctx, today)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (m *SessionManager) resolve(ctx context.Context, today core.Date) (string, error) {
	ptr, err := m.store.ActiveSessionID(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve active session: %w", err)
	}

	if ptr != "" {
		session, err := m.store.GetSession(ctx, ptr)
		switch {
		case err == nil && session.Date.Equal(today):
			return ptr, nil
		case err == nil:
			slog.InfoContext(ctx, "Active session rolled over",
				"previous_session_id", ptr,
				"previous_date", session.Date.String(),
				"today", today.String())
		case errors.Is(err, storage.ErrNotFound):
			// Stale pointer to a deleted session; fall through to create.
			slog.WarnContext(ctx, "Active session pointer is stale",
				"session_id", ptr)
		default:
			return "", fmt.Errorf("validate active session: %w", err)
		}
	}

	id, err := m.store.CreateSession(ctx, today, "", "")
	if err != nil {
		return "", fmt.Errorf("create active session: %w", err)
	}
	if err := m.store.SetActiveSessionID(ctx, id); err != nil {
		return "", fmt.Errorf("persist active session: %w", err)
	}

	return id, nil
}
