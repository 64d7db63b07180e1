// Package stats maintains the per-day aggregate records and the read-only
// views folded from them.
package stats

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/runnerr0/focuslens/internal/clock"
	"github.com/runnerr0/focuslens/internal/domain"
	"github.com/runnerr0/focuslens/internal/storage"
)

// ErrInvalidQuery marks a malformed date, month or range in a read request.
var ErrInvalidQuery = errors.New("invalid stats query")

// maxStreakDays caps the backward walk of a streak computation.
const maxStreakDays = 365

// Store is the subset of storage the aggregator needs.
type Store interface {
	GetDailyStats(ctx context.Context, date string) (*domain.DailyStats, error)
	PutDailyStats(ctx context.Context, d *domain.DailyStats) error
	DailyStatsRange(ctx context.Context, start, end string) ([]domain.DailyStats, error)
	TopSites(ctx context.Context, date string, category domain.Category, k int) ([]domain.SiteTime, error)
}

// Options tunes the aggregator.
type Options struct {
	TopK            int
	StreakThreshold int
	Location        *time.Location
}

// Aggregator is the only writer of DailyStats records. Every mutation is a
// read-modify-write serialized per date key.
type Aggregator struct {
	store     Store
	clock     clock.Clock
	loc       *time.Location
	topK      int
	threshold int
	logger    hclog.Logger
	locks     *keyLock
}

// New creates an Aggregator. Zero option values fall back to a top-K of 5,
// a streak threshold of 70 and the local timezone.
func New(store Store, clk clock.Clock, opts Options, logger hclog.Logger) *Aggregator {
	if opts.TopK <= 0 {
		opts.TopK = 5
	}
	if opts.StreakThreshold <= 0 {
		opts.StreakThreshold = 70
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Aggregator{
		store:     store,
		clock:     clk,
		loc:       opts.Location,
		topK:      opts.TopK,
		threshold: opts.StreakThreshold,
		logger:    logger,
		locks:     newKeyLock(),
	}
}

// Location returns the timezone calendar days are derived in.
func (a *Aggregator) Location() *time.Location { return a.loc }

// StreakThreshold returns the minimum score of a qualifying day.
func (a *Aggregator) StreakThreshold() int { return a.threshold }

// RecordVisit folds one persisted visit into its day's record. Calling it
// twice for the same visit counts it twice; callers invoke it exactly once
// per closed visit.
func (a *Aggregator) RecordVisit(ctx context.Context, v domain.SiteVisit) error {
	if v.DurationMs < 0 {
		return fmt.Errorf("record visit %s: negative duration", v.ID)
	}
	if _, err := domain.ParseCategory(string(v.Category)); err != nil {
		return fmt.Errorf("record visit %s: %w", v.ID, err)
	}
	date := v.Date
	if date == "" {
		date = domain.DateOf(v.StartTime, a.loc)
	}

	unlock := a.locks.lock(date)
	defer unlock()

	d, err := a.load(ctx, date)
	if err != nil {
		return err
	}

	d.AddTime(v.Category, v.DurationMs)
	a.addHourly(d, v)
	d.SitesByCategory[domain.NormalizeSubcategory(string(v.Subcategory))] += v.DurationMs
	a.refreshTopSites(ctx, d)

	return a.save(ctx, d)
}

// addHourly spreads v's duration over the local hours it spans. Time past
// midnight lands in the early slots of the start day.
func (a *Aggregator) addHourly(d *domain.DailyStats, v domain.SiteVisit) {
	cur := v.StartTime.In(a.loc)
	left := v.DurationMs
	for left > 0 {
		y, mo, day := cur.Date()
		next := time.Date(y, mo, day, cur.Hour()+1, 0, 0, 0, a.loc)
		if !next.After(cur) {
			next = cur.Add(time.Hour)
		}
		seg := next.Sub(cur).Milliseconds()
		if seg > left {
			seg = left
		}
		d.HourlyBreakdown[cur.Hour()] += seg
		left -= seg
		cur = next
	}
}

// RecordIntervention counts one intervention outcome against date: the
// triggered counter always, plus the counter for outcome.
func (a *Aggregator) RecordIntervention(ctx context.Context, outcome domain.Outcome, date string) error {
	if _, err := domain.ParseOutcome(string(outcome)); err != nil {
		return fmt.Errorf("record intervention: %w", err)
	}
	if date == "" {
		date = domain.DateOf(a.clock.Now(), a.loc)
	}

	unlock := a.locks.lock(date)
	defer unlock()

	d, err := a.load(ctx, date)
	if err != nil {
		return err
	}

	d.InterventionsTriggered++
	switch outcome {
	case domain.OutcomeAccepted:
		d.InterventionsAccepted++
	case domain.OutcomeDismissed:
		d.InterventionsDismissed++
	case domain.OutcomeSnoozed:
		d.InterventionsSnoozed++
	}

	return a.save(ctx, d)
}

// Score computes the productivity score of d. A record with no tracked time
// keeps its prior score.
func Score(d *domain.DailyStats) int {
	total := d.TotalTimeMs()
	if total == 0 {
		return d.ProductivityScore
	}

	focusRatio := float64(d.FocusTimeMs) / float64(total)
	distractionPenalty := float64(d.DistractionTimeMs) / float64(total) * 30

	triggered := d.InterventionsTriggered
	if triggered < 1 {
		triggered = 1
	}
	interventionBonus := math.Min(float64(d.InterventionsAccepted)/float64(triggered)*10, 10)

	score := focusRatio*100 - distractionPenalty + interventionBonus
	return int(math.Round(math.Max(0, math.Min(100, score))))
}

// Daily returns the stored record for date. A date with no activity yields
// storage.ErrNotFound.
func (a *Aggregator) Daily(ctx context.Context, date string) (*domain.DailyStats, error) {
	if _, err := domain.ParseDate(date, a.loc); err != nil {
		return nil, fmt.Errorf("%w: date %q: %w", ErrInvalidQuery, date, err)
	}
	return a.store.GetDailyStats(ctx, date)
}

// Today returns today's record, or an all-zero one if nothing was recorded yet.
func (a *Aggregator) Today(ctx context.Context) (*domain.DailyStats, error) {
	date := domain.DateOf(a.clock.Now(), a.loc)
	d, err := a.store.GetDailyStats(ctx, date)
	if errors.Is(err, storage.ErrNotFound) {
		return domain.NewDailyStats(date), nil
	}
	return d, err
}

// Range returns the stored records with start <= date <= end, ascending.
// Days without a record are absent from the result.
func (a *Aggregator) Range(ctx context.Context, start, end string) ([]domain.DailyStats, error) {
	s, err := domain.ParseDate(start, a.loc)
	if err != nil {
		return nil, fmt.Errorf("%w: start date %q: %w", ErrInvalidQuery, start, err)
	}
	e, err := domain.ParseDate(end, a.loc)
	if err != nil {
		return nil, fmt.Errorf("%w: end date %q: %w", ErrInvalidQuery, end, err)
	}
	if e.Before(s) {
		return nil, fmt.Errorf("%w: end date %s is before start date %s", ErrInvalidQuery, end, start)
	}
	return a.store.DailyStatsRange(ctx, start, end)
}

// TopK returns the k domains with the most time in category on date,
// computed from every visit recorded so far. k <= 0 uses the configured K.
func (a *Aggregator) TopK(ctx context.Context, date string, category domain.Category, k int) ([]domain.SiteTime, error) {
	if k <= 0 {
		k = a.topK
	}
	if _, err := domain.ParseDate(date, a.loc); err != nil {
		return nil, fmt.Errorf("%w: date %q: %w", ErrInvalidQuery, date, err)
	}
	if _, err := domain.ParseCategory(string(category)); err != nil {
		return nil, err
	}
	return a.store.TopSites(ctx, date, category, k)
}

// CurrentStreak counts consecutive qualifying days ending today. A missing
// day ends the streak.
func (a *Aggregator) CurrentStreak(ctx context.Context) (int, error) {
	today := midnight(a.clock.Now(), a.loc)
	return a.streakEnding(ctx, today)
}

// streakEnding walks backward from end and counts days whose score is at
// least the threshold, stopping at the first missing or failing day.
func (a *Aggregator) streakEnding(ctx context.Context, end time.Time) (int, error) {
	start := end.AddDate(0, 0, -(maxStreakDays - 1))
	days, err := a.store.DailyStatsRange(ctx, start.Format(domain.DateLayout), end.Format(domain.DateLayout))
	if err != nil {
		return 0, fmt.Errorf("load streak window: %w", err)
	}

	scores := make(map[string]int, len(days))
	for _, d := range days {
		scores[d.Date] = d.ProductivityScore
	}

	streak := 0
	for day := end; streak < maxStreakDays; day = day.AddDate(0, 0, -1) {
		score, ok := scores[day.Format(domain.DateLayout)]
		if !ok || score < a.threshold {
			break
		}
		streak++
	}
	return streak, nil
}

// load returns the record for date, creating an all-zero one when missing.
// The caller holds the date lock.
func (a *Aggregator) load(ctx context.Context, date string) (*domain.DailyStats, error) {
	d, err := a.store.GetDailyStats(ctx, date)
	if err == nil {
		return d, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("load daily stats %s: %w", date, err)
	}

	d = domain.NewDailyStats(date)
	day, perr := domain.ParseDate(date, a.loc)
	if perr != nil {
		return nil, fmt.Errorf("invalid date %q: %w", date, perr)
	}
	streak, serr := a.streakEnding(ctx, day.AddDate(0, 0, -1))
	if serr != nil {
		a.logger.Warn("computing prior streak failed", "date", date, "error", serr)
	}
	d.FocusStreak = streak
	a.logger.Debug("created daily stats", "date", date, "focus_streak", streak)
	return d, nil
}

func (a *Aggregator) save(ctx context.Context, d *domain.DailyStats) error {
	d.ProductivityScore = Score(d)
	d.UpdatedAt = a.clock.Now()
	if err := a.store.PutDailyStats(ctx, d); err != nil {
		return fmt.Errorf("save daily stats %s: %w", d.Date, err)
	}
	return nil
}

// refreshTopSites replaces the leaderboard snapshots from raw visits. On
// failure the previous snapshots are kept.
func (a *Aggregator) refreshTopSites(ctx context.Context, d *domain.DailyStats) {
	focus, err := a.store.TopSites(ctx, d.Date, domain.CategoryProductive, a.topK)
	if err != nil {
		a.logger.Warn("refreshing top focus sites failed", "date", d.Date, "error", err)
	} else {
		d.TopFocusSites = focus
	}
	dist, err := a.store.TopSites(ctx, d.Date, domain.CategoryDistraction, a.topK)
	if err != nil {
		a.logger.Warn("refreshing top distractions failed", "date", d.Date, "error", err)
	} else {
		d.TopDistractions = dist
	}
}

func midnight(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
