package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/runnerr0/focuslens/internal/domain"
)

// Weekly folds the ISO week (Monday through Sunday) containing date.
func (a *Aggregator) Weekly(ctx context.Context, date string) (*domain.Rollup, error) {
	day, err := domain.ParseDate(date, a.loc)
	if err != nil {
		return nil, fmt.Errorf("%w: date %q: %w", ErrInvalidQuery, date, err)
	}
	offset := (int(day.Weekday()) + 6) % 7
	start := day.AddDate(0, 0, -offset)
	end := start.AddDate(0, 0, 6)
	return a.Rollup(ctx, start.Format(domain.DateLayout), end.Format(domain.DateLayout))
}

// Monthly folds every day of the given calendar month.
func (a *Aggregator) Monthly(ctx context.Context, year int, month time.Month) (*domain.Rollup, error) {
	if month < time.January || month > time.December {
		return nil, fmt.Errorf("%w: month %d", ErrInvalidQuery, month)
	}
	start := time.Date(year, month, 1, 0, 0, 0, 0, a.loc)
	end := start.AddDate(0, 1, -1)
	return a.Rollup(ctx, start.Format(domain.DateLayout), end.Format(domain.DateLayout))
}

// Rollup folds the stored records of [start, end]. It never writes.
func (a *Aggregator) Rollup(ctx context.Context, start, end string) (*domain.Rollup, error) {
	days, err := a.Range(ctx, start, end)
	if err != nil {
		return nil, err
	}
	r := Fold(days)
	r.Start, r.End = start, end
	return r, nil
}

// Fold reduces days into a Rollup. Ties for best or worst day go to the
// earliest date.
func Fold(days []domain.DailyStats) *domain.Rollup {
	r := &domain.Rollup{Days: len(days)}
	if len(days) == 0 {
		return r
	}

	var scoreSum int
	for i, d := range days {
		r.FocusTimeMs += d.FocusTimeMs
		r.DistractionTimeMs += d.DistractionTimeMs
		r.NeutralTimeMs += d.NeutralTimeMs
		r.InterventionsTriggered += d.InterventionsTriggered
		r.InterventionsAccepted += d.InterventionsAccepted
		r.InterventionsDismissed += d.InterventionsDismissed
		r.InterventionsSnoozed += d.InterventionsSnoozed
		scoreSum += d.ProductivityScore

		if i == 0 || d.ProductivityScore > r.BestScore {
			r.BestDay, r.BestScore = d.Date, d.ProductivityScore
		}
		if i == 0 || d.ProductivityScore < r.WorstScore {
			r.WorstDay, r.WorstScore = d.Date, d.ProductivityScore
		}
	}

	r.AverageScore = float64(scoreSum) / float64(len(days))
	if r.InterventionsTriggered > 0 {
		r.AcceptanceRate = float64(r.InterventionsAccepted) / float64(r.InterventionsTriggered)
	}
	return r
}
