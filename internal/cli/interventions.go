package cli

import (
	"context"
	"fmt"

	"github.com/runnerr0/focuslens/internal/domain"
	"github.com/runnerr0/focuslens/internal/storage"
)

// Execute implements the go-flags Commander interface for InterventionsCommand.
func (c *InterventionsCommand) Execute(args []string) error {
	return withApp(c.globals, c.version, c.executeWithApp)
}

func (c *InterventionsCommand) executeWithApp(ctx context.Context, a *app) error {
	if c.Outcome != "" || c.ID != "" {
		return c.recordOutcome(ctx, a)
	}
	if c.Limit < 0 {
		return fmt.Errorf("--limit must not be negative")
	}

	q := storage.InterventionQuery{Date: c.Date, Status: domain.Status(c.Status), Limit: c.Limit}
	list, err := a.mon.Interventions(ctx, q)
	if err != nil {
		return err
	}
	if jsonOutput(c.globals) {
		return printJSON(list)
	}

	if len(list) == 0 {
		fmt.Println("No interventions.")
		return nil
	}
	for _, iv := range list {
		fmt.Printf("%s  %s  %-18s %-9s %s\n", iv.ID, iv.Timestamp.Local().Format("2006-01-02 15:04"),
			iv.Type, iv.Status, iv.Title)
	}
	return nil
}

func (c *InterventionsCommand) recordOutcome(ctx context.Context, a *app) error {
	if c.ID == "" || c.Outcome == "" {
		return fmt.Errorf("--id and --outcome must be given together")
	}
	outcome, err := domain.ParseOutcome(c.Outcome)
	if err != nil {
		return err
	}
	iv, err := a.mon.RecordOutcome(ctx, c.ID, outcome)
	if err != nil {
		return err
	}
	if jsonOutput(c.globals) {
		return printJSON(iv)
	}
	fmt.Printf("Intervention %s is now %s.\n", iv.ID, iv.Status)
	return nil
}
