package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"skoglogg/internal/core"
	"skoglogg/internal/events"
	"skoglogg/internal/storage"
)

type ledgerFixture struct {
	store    *storage.SQLiteRepository
	ledger   *LedgerService
	notifier *events.Notifier
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()

	store, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "skoglogg.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	notifier := events.NewNotifier()
	return &ledgerFixture{
		store:    store,
		ledger:   NewLedgerService(store, NewAggregateMaintainer(store), notifier),
		notifier: notifier,
	}
}

// assertAggregate checks the central invariant: the stored session total
// equals the exact sum of volume over the measurements currently present.
func assertAggregate(t *testing.T, store *storage.SQLiteRepository, sessionID string) {
	t.Helper()

	ctx := context.Background()
	session, err := store.GetSession(ctx, sessionID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	sum, err := store.SumMeasurementVolume(ctx, sessionID)
	if err != nil {
		t.Fatalf("SumMeasurementVolume: %v", err)
	}
	if session.TotalVolume != core.Round3(sum) {
		t.Fatalf("aggregate drift: stored total %v, record sum %v", session.TotalVolume, sum)
	}
}

func TestAggregateMaintenance(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	sessionID, err := f.store.CreateSession(ctx, core.NewDate(2024, 1, 1), "", "")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	// Two logs picked so their volumes land on 0.100 and 0.250 m³.
	first, err := f.ledger.RecordMeasurement(ctx, sessionID, "142", 20, 3.1831)
	if err != nil {
		t.Fatalf("RecordMeasurement: %v", err)
	}
	if first.Volume != 0.1 {
		t.Fatalf("first volume = %v, want 0.1", first.Volume)
	}
	if _, err := f.ledger.RecordMeasurement(ctx, sessionID, "142", 20, 7.9577); err != nil {
		t.Fatalf("RecordMeasurement: %v", err)
	}

	session, err := f.store.GetSession(ctx, sessionID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if session.TotalVolume != 0.35 {
		t.Errorf("total after two inserts = %v, want 0.35", session.TotalVolume)
	}

	if _, err := f.ledger.RemoveMeasurement(ctx, first.ID); err != nil {
		t.Fatalf("RemoveMeasurement: %v", err)
	}

	session, err = f.store.GetSession(ctx, sessionID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if session.TotalVolume != 0.25 {
		t.Errorf("total after delete = %v, want 0.25", session.TotalVolume)
	}
}

func TestAggregateInvariantUnderMutationSequence(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	sessionID, err := f.store.CreateSession(ctx, core.NewDate(2024, 1, 1), "", "")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	inputs := []struct {
		category string
		diameter float64
		length   float64
	}{
		{"142", 30, 5},
		{"242", 22, 4.2},
		{"102", 14, 3},
		{"142", 41, 5.5},
		{"932", 9, 2.4},
	}

	var ids []string
	for _, in := range inputs {
		m, err := f.ledger.RecordMeasurement(ctx, sessionID, in.category, in.diameter, in.length)
		if err != nil {
			t.Fatalf("RecordMeasurement: %v", err)
		}
		ids = append(ids, m.ID)
		assertAggregate(t, f.store, sessionID)
	}

	// Delete in a scrambled order, checking the invariant after each step.
	for _, i := range []int{2, 0, 4, 1, 3} {
		if _, err := f.ledger.RemoveMeasurement(ctx, ids[i]); err != nil {
			t.Fatalf("RemoveMeasurement: %v", err)
		}
		assertAggregate(t, f.store, sessionID)
	}

	session, err := f.store.GetSession(ctx, sessionID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if session.TotalVolume != 0 {
		t.Errorf("total after deleting everything = %v, want 0", session.TotalVolume)
	}
}

func TestNotifierFiresAfterCommittedMutations(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	var gotEvents []events.LedgerChanged
	f.notifier.Subscribe(func(ev events.LedgerChanged) {
		gotEvents = append(gotEvents, ev)

		// By the time a listener runs, the recompute must already be
		// committed: the stored total has to match the record set.
		assertAggregate(t, f.store, ev.SessionID)
	})

	sessionID, err := f.store.CreateSession(ctx, core.NewDate(2024, 1, 1), "", "")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	m, err := f.ledger.RecordMeasurement(ctx, sessionID, "142", 30, 5)
	if err != nil {
		t.Fatalf("RecordMeasurement: %v", err)
	}
	if _, err := f.ledger.RemoveMeasurement(ctx, m.ID); err != nil {
		t.Fatalf("RemoveMeasurement: %v", err)
	}
	if err := f.ledger.ClearMeasurements(ctx, sessionID); err != nil {
		t.Fatalf("ClearMeasurements: %v", err)
	}

	if len(gotEvents) != 3 {
		t.Fatalf("events = %d, want 3 (insert, delete, clear)", len(gotEvents))
	}
	for i, ev := range gotEvents {
		if ev.SessionID != sessionID {
			t.Errorf("event[%d].SessionID = %q, want %q", i, ev.SessionID, sessionID)
		}
	}
}

func TestNotifierSilentOnFailedMutation(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	fired := 0
	f.notifier.Subscribe(func(events.LedgerChanged) { fired++ })

	sessionID, err := f.store.CreateSession(ctx, core.NewDate(2024, 1, 1), "", "")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	if _, err := f.ledger.RecordMeasurement(ctx, sessionID, "", 30, 5); !errors.Is(err, core.ErrEmptyCategory) {
		t.Fatalf("error = %v, want ErrEmptyCategory", err)
	}
	if _, err := f.ledger.RemoveMeasurement(ctx, "no-such-id"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}

	if fired != 0 {
		t.Errorf("notifier fired %d times on failed mutations, want 0", fired)
	}
}

func TestRemoveSession(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	sessionID, err := f.store.CreateSession(ctx, core.NewDate(2024, 1, 1), "", "")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if _, err := f.ledger.RecordMeasurement(ctx, sessionID, "142", 30, 5); err != nil {
		t.Fatalf("RecordMeasurement: %v", err)
	}

	fired := 0
	f.notifier.Subscribe(func(events.LedgerChanged) { fired++ })

	if err := f.ledger.RemoveSession(ctx, sessionID); err != nil {
		t.Fatalf("RemoveSession: %v", err)
	}
	if fired != 1 {
		t.Errorf("notifier fired %d times, want 1", fired)
	}

	if _, err := f.store.GetSession(ctx, sessionID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("session still present after delete: %v", err)
	}
}

func TestSessionDetail(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	sessionID, err := f.store.CreateSession(ctx, core.NewDate(2024, 1, 1), "Nordre felt", "")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	for _, in := range []struct {
		category string
		diameter float64
	}{{"142", 30}, {"242", 20}, {"142", 25}} {
		if _, err := f.ledger.RecordMeasurement(ctx, sessionID, in.category, in.diameter, 4); err != nil {
			t.Fatalf("RecordMeasurement: %v", err)
		}
	}

	detail, err := f.ledger.Detail(ctx, sessionID)
	if err != nil {
		t.Fatalf("Detail: %v", err)
	}
	if detail.Session.Label != "Nordre felt" {
		t.Errorf("label = %q", detail.Session.Label)
	}
	if len(detail.Measurements) != 3 {
		t.Errorf("measurements = %d, want 3", len(detail.Measurements))
	}
	if len(detail.Categories) != 2 || detail.Categories[0] != "142" || detail.Categories[1] != "242" {
		t.Errorf("categories = %v, want [142 242] in first-logged order", detail.Categories)
	}
}
