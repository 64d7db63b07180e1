package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/runnerr0/focuslens/internal/storage"
)

// pruneJSON is the JSON output of the prune command.
type pruneJSON struct {
	DryRun bool                `json:"dry_run"`
	Before string              `json:"before"`
	Result storage.PruneResult `json:"result"`
}

// Execute implements the go-flags Commander interface for PruneCommand.
func (c *PruneCommand) Execute(args []string) error {
	return withApp(c.globals, c.version, c.executeWithApp)
}

func (c *PruneCommand) executeWithApp(ctx context.Context, a *app) error {
	age := time.Duration(a.cfg.Retention.Days) * 24 * time.Hour
	if c.OlderThan != "" {
		d, err := parseDuration(c.OlderThan)
		if err != nil {
			return err
		}
		age = d
	}
	if age <= 0 {
		return fmt.Errorf("retention period must be positive")
	}

	cutoff := a.mon.RetentionCutoff(age)
	var (
		res storage.PruneResult
		err error
	)
	if c.DryRun {
		res, err = a.store.CountExpired(ctx, cutoff)
	} else {
		res, err = a.store.PruneExpired(ctx, cutoff)
	}
	if err != nil {
		return fmt.Errorf("prune: %w", err)
	}

	if jsonOutput(c.globals) {
		return printJSON(pruneJSON{DryRun: c.DryRun, Before: cutoff, Result: res})
	}

	verb := "Pruned"
	if c.DryRun {
		verb = "Would prune"
	}
	fmt.Printf("%s records older than %s (before %s):\n", verb, formatDurationHuman(age), cutoff)
	fmt.Printf("  Visits:        %s\n", formatNumber(res.Visits))
	fmt.Printf("  Daily stats:   %s\n", formatNumber(res.DailyStats))
	fmt.Printf("  Interventions: %s\n", formatNumber(res.Interventions))
	return nil
}
