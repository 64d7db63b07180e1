package recorder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/focuslens/internal/behavior"
	"github.com/runnerr0/focuslens/internal/classifier"
	"github.com/runnerr0/focuslens/internal/clock"
	"github.com/runnerr0/focuslens/internal/domain"
	"github.com/runnerr0/focuslens/internal/stats"
	"github.com/runnerr0/focuslens/internal/storage"
)

var t0 = time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)

type pipeline struct {
	rec     *Recorder
	store   *storage.SQLiteStore
	agg     *stats.Aggregator
	tracker *behavior.Tracker
	clock   *clock.Manual
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()
	store, db, err := storage.Open(context.Background(), ":memory:", "")
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
		db.Close()
	})

	clk := clock.NewManual(t0)
	logger := hclog.NewNullLogger()
	agg := stats.New(store, clk, stats.Options{Location: time.UTC}, logger)
	tracker := behavior.New(store, clk, behavior.Options{}, logger)
	rec := New(store, classifier.Default(), agg, tracker, Options{Location: time.UTC}, logger)
	return &pipeline{rec: rec, store: store, agg: agg, tracker: tracker, clock: clk}
}

func closeAt(rawURL string, start time.Time, d time.Duration) VisitClose {
	return VisitClose{URL: rawURL, Title: " A page ", Start: start, End: start.Add(d)}
}

func TestRecord_PersistsClassifiesAndAggregates(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()

	v, err := p.rec.Record(ctx, closeAt("https://www.GitHub.com/org/repo", t0, 2*time.Minute))
	require.NoError(t, err)
	assert.NotEmpty(t, v.ID)
	assert.Equal(t, "github.com", v.Domain)
	assert.Equal(t, "A page", v.Title)
	assert.Equal(t, domain.CategoryProductive, v.Category)
	assert.Equal(t, domain.SubcategoryDevelopment, v.Subcategory)
	assert.Equal(t, int64(120000), v.DurationMs)
	assert.Equal(t, "2026-03-04", v.Date)

	stored, err := p.store.GetVisit(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, v.Domain, stored.Domain)

	d, err := p.agg.Daily(ctx, "2026-03-04")
	require.NoError(t, err)
	assert.Equal(t, int64(120000), d.FocusTimeMs)

	assert.Equal(t, 100, p.tracker.State().FocusLevel)
}

func TestRecord_UnknownDomainIsNeutral(t *testing.T) {
	p := newPipeline(t)
	v, err := p.rec.Record(context.Background(), closeAt("https://obscure.example/x", t0, time.Minute))
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryNeutral, v.Category)
	assert.Equal(t, domain.SubcategoryGeneral, v.Subcategory)
}

func TestRecord_DateInConfiguredLocation(t *testing.T) {
	store, db, err := storage.Open(context.Background(), ":memory:", "")
	require.NoError(t, err)
	defer db.Close()
	defer store.Close()

	tokyo := time.FixedZone("UTC+9", 9*3600)
	logger := hclog.NewNullLogger()
	clk := clock.NewManual(t0)
	agg := stats.New(store, clk, stats.Options{Location: tokyo}, logger)
	rec := New(store, classifier.Default(), agg, behavior.New(store, clk, behavior.Options{}, logger),
		Options{Location: tokyo}, logger)

	late := time.Date(2026, 3, 4, 20, 0, 0, 0, time.UTC)
	v, err := rec.Record(context.Background(), closeAt("https://github.com/", late, time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "2026-03-05", v.Date)

	d, err := agg.Daily(context.Background(), "2026-03-05")
	require.NoError(t, err)
	assert.Equal(t, int64(60000), d.HourlyBreakdown[5])
}

func TestRecord_Rejections(t *testing.T) {
	tests := []struct {
		name string
		vc   VisitClose
		want error
	}{
		{"ends before start", VisitClose{URL: "https://github.com/", Start: t0, End: t0.Add(-time.Second)}, ErrInvalidInterval},
		{"under threshold", closeAt("https://github.com/", t0, 4999*time.Millisecond), ErrTooShort},
		{"excluded domain", closeAt("https://secure.chase.com/login", t0, time.Minute), ErrExcluded},
		{"excluded regex", closeAt("https://site.xxx/", t0, time.Minute), ErrExcluded},
		{"browser page", closeAt("chrome://newtab/", t0, time.Minute), ErrInvalidURL},
		{"about blank", closeAt("about:blank", t0, time.Minute), ErrInvalidURL},
		{"garbage", closeAt("not a url", t0, time.Minute), ErrInvalidURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPipeline(t)
			ctx := context.Background()

			v, err := p.rec.Record(ctx, tt.vc)
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, v)

			s, err := p.store.GetStats(ctx)
			require.NoError(t, err)
			assert.Zero(t, s.TotalVisits)
			assert.Zero(t, s.TotalDays, "rejected visits never reach daily stats")
		})
	}
}

func TestRecord_ExactlyMinimumIsKept(t *testing.T) {
	p := newPipeline(t)
	_, err := p.rec.Record(context.Background(), closeAt("https://github.com/", t0, 5*time.Second))
	assert.NoError(t, err)
}

type failingAggregator struct{ calls int }

func (f *failingAggregator) RecordVisit(context.Context, domain.SiteVisit) error {
	f.calls++
	return errors.New("database is locked")
}

func TestRecord_AggregateFailureKeepsVisit(t *testing.T) {
	p := newPipeline(t)
	agg := &failingAggregator{}
	rec := New(p.store, classifier.Default(), agg, p.tracker, Options{Location: time.UTC}, hclog.NewNullLogger())

	v, err := rec.Record(context.Background(), closeAt("https://github.com/", t0, time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, agg.calls)

	_, err = p.store.GetVisit(context.Background(), v.ID)
	assert.NoError(t, err)
}

type brokenStore struct{ Store }

func (brokenStore) AddVisit(context.Context, *domain.SiteVisit) error {
	return errors.New("disk I/O error")
}

func (brokenStore) IsExcluded(string) bool { return false }

func (brokenStore) RecentVisits(context.Context, int) ([]domain.SiteVisit, error) {
	return nil, nil
}

func TestRecord_StorageFailureIsVisitLost(t *testing.T) {
	agg := &failingAggregator{}
	tracker := &countingTracker{}
	rec := New(brokenStore{}, classifier.Default(), agg, tracker, Options{}, hclog.NewNullLogger())

	v, err := rec.Record(context.Background(), closeAt("https://github.com/", t0, time.Minute))
	assert.Error(t, err)
	assert.Nil(t, v)
	assert.Zero(t, agg.calls, "nothing downstream runs")
	assert.Zero(t, tracker.updates)
}

type countingTracker struct {
	updates int
	resets  int
	last    []domain.SiteVisit
}

func (c *countingTracker) Update(_ context.Context, visits []domain.SiteVisit) domain.UserState {
	c.updates++
	c.last = visits
	return domain.UserState{}
}

func (c *countingTracker) ResetSession(context.Context) domain.UserState {
	c.resets++
	return domain.UserState{}
}

func (c *countingTracker) WindowSize() int { return 3 }

func TestRecord_IdleGapResetsSessionAndWindowIsBounded(t *testing.T) {
	p := newPipeline(t)
	tracker := &countingTracker{}
	rec := New(p.store, classifier.Default(), p.agg, tracker, Options{Location: time.UTC}, hclog.NewNullLogger())
	ctx := context.Background()

	at := t0
	for i := 0; i < 4; i++ {
		_, err := rec.Record(ctx, closeAt("https://github.com/", at, time.Minute))
		require.NoError(t, err)
		at = at.Add(2 * time.Minute)
	}
	assert.Equal(t, 4, tracker.updates)
	assert.Zero(t, tracker.resets)
	assert.Len(t, tracker.last, 3)

	_, err := rec.Record(ctx, closeAt("https://github.com/", at.Add(45*time.Minute), time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, tracker.resets)
}
