package services

import (
	"context"
	"fmt"
	"log/slog"

	"skoglogg/internal/core"
	"skoglogg/internal/storage"
)

// AggregateMaintainer keeps a session's stored total_volume equal to the
// exact sum of its current measurements. The persisted value always comes
// from a full recompute over the record set; an incremental patch is never
// the source of truth, so a missed event or reordered operation cannot leave
// a stale aggregate.
type AggregateMaintainer struct {
	store *storage.SQLiteRepository
}

func NewAggregateMaintainer(store *storage.SQLiteRepository) *AggregateMaintainer {
	return &AggregateMaintainer{store: store}
}

// RecomputeAndPersist derives the session total from the measurements present
// right now and writes it through the store's single aggregate write path.
// Callers treat this and the triggering mutation as one logical unit: if it
// fails, the mutation is not complete and no change event may fire.
func (a *AggregateMaintainer) RecomputeAndPersist(ctx context.Context, sessionID string) (float64, error) {
	total, err := a.store.SumMeasurementVolume(ctx, sessionID)
	if err != nil {
		return 0, fmt.Errorf("recompute session total: %w", err)
	}
	total = core.Round3(total)

	if err := a.store.SetTotalVolume(ctx, sessionID, total); err != nil {
		return 0, fmt.Errorf("persist session total: %w", err)
	}

	slog.DebugContext(ctx, "Session total recomputed",
		"session_id", sessionID,
		"total_volume", total)

	return total, nil
}
