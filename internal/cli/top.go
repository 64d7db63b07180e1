package cli

import (
	"context"
	"fmt"

	"github.com/runnerr0/focuslens/internal/domain"
)

// Execute implements the go-flags Commander interface for TopCommand.
func (c *TopCommand) Execute(args []string) error {
	return withApp(c.globals, c.version, c.executeWithApp)
}

func (c *TopCommand) executeWithApp(ctx context.Context, a *app) error {
	cat, err := domain.ParseCategory(c.Category)
	if err != nil {
		return err
	}
	if c.Limit < 0 {
		return fmt.Errorf("--limit must not be negative")
	}
	date := c.Date
	if date == "" {
		date = a.mon.TodayDate()
	}

	sites, err := a.mon.TopSites(ctx, date, cat, c.Limit)
	if err != nil {
		return err
	}
	if jsonOutput(c.globals) {
		return printJSON(sites)
	}

	if len(sites) == 0 {
		fmt.Printf("No %s sites on %s.\n", cat, date)
		return nil
	}
	fmt.Printf("Top %s sites on %s:\n", cat, date)
	for i, s := range sites {
		fmt.Printf("  %2d. %-20s %s\n", i+1, s.Domain, formatMs(s.TimeMs))
	}
	return nil
}
