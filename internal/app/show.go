package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"anchor-router/internal/storage"
)

type decisionLister interface {
	ListRecentDecisions(ctx context.Context, limit int) ([]storage.DecisionRecord, error)
}

type switchLister interface {
	ListRecentSwitches(ctx context.Context, limit int) ([]storage.SwitchRecord, error)
}

// Show prints recent routing decisions, or switch events with --switches.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show history")
	}
	if closeStore != nil {
		defer closeStore()
	}

	if opts.Switches {
		return a.showSwitches(ctx, store, opts.Limit)
	}
	return a.showDecisions(ctx, store, opts.Limit)
}

func (a *App) showDecisions(ctx context.Context, store decisionLister, limit int) error {
	records, err := store.ListRecentDecisions(ctx, limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(os.Stdout, "no decisions found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tPair\tStrategy\tSelected\tScore\tEligible\tStatus\tError")

	for _, record := range records {
		errMsg := ""
		if record.Error != nil {
			errMsg = sanitizeInline(*record.Error)
		}
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			record.Bucket.UTC().Format(time.RFC3339),
			record.Pair,
			record.Strategy,
			record.SelectedAnchor,
			record.Score,
			record.EligibleCount,
			record.Status,
			errMsg,
		)
	}

	writer.Flush()
	return nil
}

func (a *App) showSwitches(ctx context.Context, store switchLister, limit int) error {
	records, err := store.ListRecentSwitches(ctx, limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(os.Stdout, "no switch events found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tFrom\tTo\tImprovement%\tThreshold%\tReason")

	for _, record := range records {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\n",
			record.Bucket.UTC().Format(time.RFC3339),
			record.FromAnchor,
			record.ToAnchor,
			record.ImprovementPct.StringFixed(2),
			record.ThresholdPct.StringFixed(2),
			record.Reason,
		)
	}

	writer.Flush()
	return nil
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
