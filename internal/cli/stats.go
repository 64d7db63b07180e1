package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/runnerr0/focuslens/internal/domain"
)

// Execute implements the go-flags Commander interface for StatsCommand.
func (c *StatsCommand) Execute(args []string) error {
	return withApp(c.globals, c.version, c.executeWithApp)
}

func (c *StatsCommand) executeWithApp(ctx context.Context, a *app) error {
	modes := 0
	if c.Start != "" || c.End != "" {
		modes++
	}
	if c.Week {
		modes++
	}
	if c.Month != "" {
		modes++
	}
	if modes > 1 {
		return fmt.Errorf("--start/--end, --week and --month are mutually exclusive")
	}

	switch {
	case c.Start != "" || c.End != "":
		if c.Start == "" || c.End == "" {
			return fmt.Errorf("--start and --end must be given together")
		}
		days, err := a.mon.StatsForRange(ctx, c.Start, c.End)
		if err != nil {
			return err
		}
		if jsonOutput(c.globals) {
			return printJSON(days)
		}
		printRange(days)
		return nil

	case c.Week:
		roll, err := a.mon.Weekly(ctx, c.date(a))
		if err != nil {
			return err
		}
		return c.printRollup("Week", roll)

	case c.Month != "":
		m, err := time.Parse("2006-01", c.Month)
		if err != nil {
			return fmt.Errorf("invalid --month %q: use YYYY-MM", c.Month)
		}
		roll, err := a.mon.Monthly(ctx, m.Year(), m.Month())
		if err != nil {
			return err
		}
		return c.printRollup("Month", roll)
	}

	var (
		d   *domain.DailyStats
		err error
	)
	if c.Date == "" {
		d, err = a.mon.Today(ctx)
	} else {
		d, err = a.mon.DailyStats(ctx, c.Date)
	}
	if err != nil {
		return err
	}
	if jsonOutput(c.globals) {
		return printJSON(d)
	}
	printDaily(d)
	return nil
}

func (c *StatsCommand) date(a *app) string {
	if c.Date != "" {
		return c.Date
	}
	return a.mon.TodayDate()
}

func printDaily(d *domain.DailyStats) {
	fmt.Printf("Date:          %s\n", d.Date)
	fmt.Printf("Score:         %d\n", d.ProductivityScore)
	fmt.Printf("Focus:         %s\n", formatMs(d.FocusTimeMs))
	fmt.Printf("Distraction:   %s\n", formatMs(d.DistractionTimeMs))
	fmt.Printf("Neutral:       %s\n", formatMs(d.NeutralTimeMs))
	fmt.Printf("Interventions: %d triggered, %d accepted, %d dismissed, %d snoozed\n",
		d.InterventionsTriggered, d.InterventionsAccepted, d.InterventionsDismissed, d.InterventionsSnoozed)

	if len(d.TopDistractions) > 0 {
		fmt.Println()
		fmt.Println("Top Distractions:")
		for _, s := range d.TopDistractions {
			fmt.Printf("  %-20s %s\n", s.Domain, formatMs(s.TimeMs))
		}
	}
	if len(d.TopFocusSites) > 0 {
		fmt.Println()
		fmt.Println("Top Focus Sites:")
		for _, s := range d.TopFocusSites {
			fmt.Printf("  %-20s %s\n", s.Domain, formatMs(s.TimeMs))
		}
	}
}

func printRange(days []domain.DailyStats) {
	if len(days) == 0 {
		fmt.Println("No stats in range.")
		return
	}
	fmt.Printf("%-12s %5s %10s %12s %10s\n", "DATE", "SCORE", "FOCUS", "DISTRACTION", "NEUTRAL")
	for _, d := range days {
		fmt.Printf("%-12s %5d %10s %12s %10s\n", d.Date, d.ProductivityScore,
			formatMs(d.FocusTimeMs), formatMs(d.DistractionTimeMs), formatMs(d.NeutralTimeMs))
	}
}

func (c *StatsCommand) printRollup(label string, r *domain.Rollup) error {
	if jsonOutput(c.globals) {
		return printJSON(r)
	}
	fmt.Printf("%s:%s%s to %s (%d days with data)\n", label, pad(label), r.Start, r.End, r.Days)
	fmt.Printf("Average score: %.1f\n", r.AverageScore)
	if r.BestDay != "" {
		fmt.Printf("Best day:      %s (%d)\n", r.BestDay, r.BestScore)
		fmt.Printf("Worst day:     %s (%d)\n", r.WorstDay, r.WorstScore)
	}
	fmt.Printf("Focus:         %s\n", formatMs(r.FocusTimeMs))
	fmt.Printf("Distraction:   %s\n", formatMs(r.DistractionTimeMs))
	fmt.Printf("Neutral:       %s\n", formatMs(r.NeutralTimeMs))
	fmt.Printf("Interventions: %d triggered, %.0f%% accepted\n", r.InterventionsTriggered, r.AcceptanceRate*100)
	return nil
}

// pad aligns a "Label:" prefix with the 15-column layout used above.
func pad(label string) string {
	n := 14 - len(label)
	if n < 1 {
		n = 1
	}
	return fmt.Sprintf("%*s", n, "")
}
