package app

import (
	"context"
	"errors"
	"time"
)

// Prune deletes switch events older than the cutoff. Live quote and health
// feeds carry no history, so persisted rows are the only thing maintenance
// can operate on; decision rows are kept for export.
func (a *App) Prune(ctx context.Context, opts PruneOptions) error {
	cutoff := opts.Before
	if cutoff.IsZero() {
		if opts.OlderThan <= 0 {
			return errors.New("either --before or --older-than must be provided")
		}
		cutoff = time.Now().UTC().Add(-opts.OlderThan)
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot prune")
	}
	if closeStore != nil {
		defer closeStore()
	}

	if err := store.DeleteSwitchesBefore(ctx, cutoff); err != nil {
		return err
	}

	a.Logger.Info().Time("before", cutoff).Msg("switch events pruned")
	return nil
}
