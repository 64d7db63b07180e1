package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/runnerr0/focuslens/internal/monitor"
	"github.com/runnerr0/focuslens/internal/recorder"
)

// Execute implements the go-flags Commander interface for RecordCommand.
func (c *RecordCommand) Execute(args []string) error {
	if c.URL == "" {
		return fmt.Errorf("--url is required for record command")
	}
	return withApp(c.globals, c.version, c.executeWithApp)
}

// executeWithApp runs the record logic against a provided app (used by tests).
func (c *RecordCommand) executeWithApp(ctx context.Context, a *app) error {
	if c.URL == "" {
		return fmt.Errorf("--url is required for record command")
	}
	dur, err := parseDuration(c.Duration)
	if err != nil {
		return err
	}
	end := a.mon.Now()
	if c.End != "" {
		if end, err = time.Parse(time.RFC3339, c.End); err != nil {
			return fmt.Errorf("invalid --end %q: use RFC3339, e.g. 2026-03-04T09:30:00Z", c.End)
		}
	}

	v, err := a.mon.HandleVisit(ctx, recorder.VisitClose{
		URL:   c.URL,
		Title: c.Title,
		Start: end.Add(-dur),
		End:   end,
	})
	if err != nil {
		if !monitor.Rejected(err) {
			return fmt.Errorf("recording visit: %w", err)
		}
		if jsonOutput(c.globals) {
			return printJSON(map[string]interface{}{
				"recorded": false,
				"reason":   err.Error(),
			})
		}
		fmt.Printf("Not recorded: %v\n", err)
		return nil
	}

	if jsonOutput(c.globals) {
		return printJSON(map[string]interface{}{
			"recorded": true,
			"visit":    v,
		})
	}

	fmt.Printf("Recorded visit %s (%s)\n", v.ID, v.Date)
	fmt.Printf("  Domain:   %s\n", v.Domain)
	fmt.Printf("  Category: %s / %s\n", v.Category, v.Subcategory)
	fmt.Printf("  Time:     %s\n", formatMs(v.DurationMs))
	return nil
}
