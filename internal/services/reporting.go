package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"skoglogg/internal/cache"
	"skoglogg/internal/core"
	"skoglogg/internal/events"
	"skoglogg/internal/storage"
)

// Reporter answers the read-only window queries: week-to-date and
// month-to-date totals with a per-category breakdown. Totals come from the
// maintained session aggregates; the breakdown is built from the underlying
// measurements. Reports are cached until the ledger changes or the TTL runs
// out, and reads never publish change events.
type Reporter struct {
	store *storage.SQLiteRepository
	cache *cache.LRUCache[core.WindowReport]

	now func() time.Time
}

func NewReporter(store *storage.SQLiteRepository, reportCache *cache.LRUCache[core.WindowReport]) *Reporter {
	return &Reporter{
		store: store,
		cache: reportCache,
		now:   time.Now,
	}
}

// WatchLedger subscribes the reporter to ledger changes so cached reports are
// dropped as soon as any mutation commits.
func (r *Reporter) WatchLedger(n *events.Notifier) events.Subscription {
	return n.Subscribe(func(events.LedgerChanged) {
		r.Invalidate()
	})
}

// Invalidate drops every cached report.
func (r *Reporter) Invalidate() {
	r.cache.Purge()
}

// WindowTotals computes the report for the given period. An empty window is a
// valid result with a zero total and no breakdown, never an error.
func (r *Reporter) WindowTotals(ctx context.Context, period core.Period) (core.WindowReport, error) {
	if !period.Valid() {
		return core.WindowReport{}, fmt.Errorf("period %q: %w", period, core.ErrUnknownPeriod)
	}

	now := r.now()
	start, end := core.WindowRange(period, now)

	// The window is keyed by day: a report cached before midnight must not
	// serve the next day's window.
	key := fmt.Sprintf("%s|%s", period, core.DateOf(now))
	if cached, ok := r.cache.Get(key); ok {
		// The cached totals are still valid, but the window bounds must track
		// the caller's clock, not the clock of whoever filled the cache.
		cached.Start, cached.End = start, end
		return cached, nil
	}

	sessions, err := r.store.ListSessionsByDateRange(ctx, core.DateOf(start), core.DateOf(end))
	if err != nil {
		return core.WindowReport{}, fmt.Errorf("load window sessions: %w", err)
	}

	var total float64
	for _, s := range sessions {
		total += s.TotalVolume
	}

	breakdown, err := r.breakdown(ctx, sessions)
	if err != nil {
		return core.WindowReport{}, err
	}

	report := core.WindowReport{
		Period:    period,
		Start:     start,
		End:       end,
		Total:     core.Round3(total),
		Breakdown: breakdown,
	}
	r.cache.Set(key, report)

	return report, nil
}

// breakdown sums measurement volume per sortiment code across the window's
// sessions, sorted by volume descending. Ties keep first-encountered order.
func (r *Reporter) breakdown(ctx context.Context, sessions []core.Session) ([]core.CategoryVolume, error) {
	if len(sessions) == 0 {
		return nil, nil
	}

	// One fetch per session, concurrently; results keep session order so the
	// grouping below stays deterministic.
	results := make([][]core.Measurement, len(sessions))
	g, gctx := errgroup.WithContext(ctx)
	for i, s := range sessions {
		g.Go(func() error {
			measurements, err := r.store.ListMeasurements(gctx, s.ID)
			if err != nil {
				return fmt.Errorf("load measurements for session %s: %w", s.ID, err)
			}
			results[i] = measurements
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	index := make(map[string]int)
	var breakdown []core.CategoryVolume
	for _, measurements := range results {
		for _, m := range measurements {
			i, ok := index[m.CategoryCode]
			if !ok {
				i = len(breakdown)
				index[m.CategoryCode] = i
				breakdown = append(breakdown, core.CategoryVolume{
					Code:  m.CategoryCode,
					Label: core.SortimentLabel(m.CategoryCode),
				})
			}
			breakdown[i].Volume += m.Volume
		}
	}

	for i := range breakdown {
		breakdown[i].Volume = core.Round3(breakdown[i].Volume)
	}

	sort.SliceStable(breakdown, func(i, j int) bool {
		return breakdown[i].Volume > breakdown[j].Volume
	})

	return breakdown, nil
}
