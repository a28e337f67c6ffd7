package services

import (
	"context"
	"fmt"
	"log/slog"

	"skoglogg/internal/core"
	"skoglogg/internal/events"
	"skoglogg/internal/storage"
)

// LedgerService orchestrates every ledger mutation: validate, mutate,
// recompute the session aggregate, then notify. The change notifier fires
// only after the recompute has committed; a failed recompute leaves the
// operation failed and silent.
type LedgerService struct {
	store      *storage.SQLiteRepository
	aggregates *AggregateMaintainer
	notifier   *events.Notifier
}

// SessionDetail is a session together with its measurements (most recent
// first) and the distinct sortiment codes present, in first-logged order.
type SessionDetail struct {
	Session      core.Session
	Measurements []core.Measurement
	Categories   []string
}

func NewLedgerService(store *storage.SQLiteRepository, aggregates *AggregateMaintainer, notifier *events.Notifier) *LedgerService {
	return &LedgerService{
		store:      store,
		aggregates: aggregates,
		notifier:   notifier,
	}
}

// RecordMeasurement inserts a measurement into the given session, brings the
// session total up to date and announces the change.
func (s *LedgerService) RecordMeasurement(ctx context.Context, sessionID, categoryCode string, diameter, length float64) (core.Measurement, error) {
	m, err := s.store.InsertMeasurement(ctx, sessionID, categoryCode, diameter, length)
	if err != nil {
		return core.Measurement{}, err
	}

	if _, err := s.aggregates.RecomputeAndPersist(ctx, sessionID); err != nil {
		return core.Measurement{}, fmt.Errorf("measurement %s stored but aggregate update failed: %w", m.ID, err)
	}

	s.notifier.Publish(events.LedgerChanged{SessionID: sessionID})
	return m, nil
}

// RemoveMeasurement deletes one measurement and returns the owning session id.
func (s *LedgerService) RemoveMeasurement(ctx context.Context, id string) (string, error) {
	sessionID, err := s.store.DeleteMeasurement(ctx, id)
	if err != nil {
		return "", err
	}

	if _, err := s.aggregates.RecomputeAndPersist(ctx, sessionID); err != nil {
		return "", fmt.Errorf("measurement %s deleted but aggregate update failed: %w", id, err)
	}

	s.notifier.Publish(events.LedgerChanged{SessionID: sessionID})
	return sessionID, nil
}

// ClearMeasurements deletes every measurement of a session, leaving an empty
// session with a zero total.
func (s *LedgerService) ClearMeasurements(ctx context.Context, sessionID string) error {
	// Existence check first so clearing an unknown session reports not found
	// instead of silently doing nothing.
	if _, err := s.store.GetSession(ctx, sessionID); err != nil {
		return err
	}

	if err := s.store.DeleteMeasurements(ctx, sessionID); err != nil {
		return err
	}

	if _, err := s.aggregates.RecomputeAndPersist(ctx, sessionID); err != nil {
		return fmt.Errorf("session %s cleared but aggregate update failed: %w", sessionID, err)
	}

	s.notifier.Publish(events.LedgerChanged{SessionID: sessionID})
	return nil
}

// RemoveSession deletes a session and all of its measurements.
func (s *LedgerService) RemoveSession(ctx context.Context, id string) error {
	if err := s.store.DeleteSession(ctx, id); err != nil {
		return err
	}

	s.notifier.Publish(events.LedgerChanged{SessionID: id})
	return nil
}

// CreateSession creates a session explicitly, outside the rollover flow.
// Label and owner pass through verbatim; the active pointer is untouched.
func (s *LedgerService) CreateSession(ctx context.Context, date core.Date, label, owner string) (core.Session, error) {
	id, err := s.store.CreateSession(ctx, date, label, owner)
	if err != nil {
		return core.Session{}, err
	}
	return s.store.GetSession(ctx, id)
}

// ListSessions returns the sessions dated within [start, end], ascending.
func (s *LedgerService) ListSessions(ctx context.Context, start, end core.Date) ([]core.Session, error) {
	return s.store.ListSessionsByDateRange(ctx, start, end)
}

// Detail loads a session with its measurements and the sortiment codes in use.
func (s *LedgerService) Detail(ctx context.Context, sessionID string) (SessionDetail, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return SessionDetail{}, err
	}

	measurements, err := s.store.ListMeasurements(ctx, sessionID)
	if err != nil {
		return SessionDetail{}, err
	}

	seen := make(map[string]bool)
	var categories []string
	// Measurements arrive most recent first; walk backwards so codes come out
	// in first-logged order.
	for i := len(measurements) - 1; i >= 0; i-- {
		code := measurements[i].CategoryCode
		if !seen[code] {
			seen[code] = true
			categories = append(categories, code)
		}
	}

	return SessionDetail{
		Session:      session,
		Measurements: measurements,
		Categories:   categories,
	}, nil
}

// Close releases the underlying storage.
func (s *LedgerService) Close() error {
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			return fmt.Errorf("close ledger storage: %w", err)
		}
	}
	slog.Debug("Ledger service closed")
	return nil
}
