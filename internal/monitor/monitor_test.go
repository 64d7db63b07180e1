package monitor

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/focuslens/internal/clock"
	"github.com/runnerr0/focuslens/internal/config"
	"github.com/runnerr0/focuslens/internal/domain"
	"github.com/runnerr0/focuslens/internal/intervention"
	"github.com/runnerr0/focuslens/internal/recorder"
	"github.com/runnerr0/focuslens/internal/storage"
)

var now = time.Date(2026, 3, 4, 9, 10, 0, 0, time.UTC)

type countingReporter struct {
	mu        sync.Mutex
	recorded  int
	rejected  map[string]int
	triggered int
	outcomes  int
	results   map[string]int
}

func newCountingReporter() *countingReporter {
	return &countingReporter{rejected: map[string]int{}, results: map[string]int{}}
}

func (c *countingReporter) VisitRecorded(context.Context, domain.SiteVisit) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recorded++
}

func (c *countingReporter) VisitRejected(_ context.Context, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rejected[reason]++
}

func (c *countingReporter) InterventionTriggered(context.Context, domain.Intervention) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.triggered++
}

func (c *countingReporter) OutcomeRecorded(context.Context, domain.Intervention) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outcomes++
}

func (c *countingReporter) Evaluation(_ context.Context, result string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results[result]++
}

func (c *countingReporter) Close(context.Context) error { return nil }

type fixture struct {
	mon     *Monitor
	store   *storage.SQLiteStore
	sink    *intervention.PollSink
	clock   *clock.Manual
	metrics *countingReporter
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Location = "UTC"
	return cfg
}

func newFixture(t *testing.T, cfg *config.Config) *fixture {
	t.Helper()
	ctx := context.Background()
	store, db, err := storage.Open(ctx, ":memory:", "")
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
		db.Close()
	})

	f := &fixture{
		store:   store,
		sink:    intervention.NewPollSink(10),
		clock:   clock.NewManual(now),
		metrics: newCountingReporter(),
	}
	f.mon, err = New(ctx, cfg, Deps{
		Store:   store,
		Sink:    f.sink,
		Clock:   f.clock,
		Metrics: f.metrics,
		Logger:  hclog.NewNullLogger(),
	})
	require.NoError(t, err)
	return f
}

func visitClose(rawURL string, end time.Time, d time.Duration) recorder.VisitClose {
	return recorder.VisitClose{URL: rawURL, Title: "page", Start: end.Add(-d), End: end}
}

func TestHandleVisit_DistractionEvaluatesImmediately(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := context.Background()

	v, err := f.mon.HandleVisit(ctx, visitClose("https://www.youtube.com/watch?v=1", now, 10*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryDistraction, v.Category)

	delivered := f.sink.Drain()
	require.Len(t, delivered, 1)
	assert.Equal(t, domain.TypeDistractionWarning, delivered[0].Type)
	assert.Equal(t, domain.PriorityHigh, delivered[0].Priority)
	assert.Contains(t, delivered[0].Message, "10 minutes today")

	assert.Equal(t, 1, f.metrics.recorded)
	assert.Equal(t, 1, f.metrics.triggered)
	assert.Equal(t, 1, f.metrics.results[ResultTriggered])
}

func TestHandleVisit_NeutralDoesNotEvaluate(t *testing.T) {
	f := newFixture(t, testConfig())
	_, err := f.mon.HandleVisit(context.Background(), visitClose("https://obscure.example/", now, time.Minute))
	require.NoError(t, err)
	assert.Zero(t, f.sink.Pending())
	assert.Empty(t, f.metrics.results)
}

func TestHandleVisit_ConfigDenylist(t *testing.T) {
	cfg := testConfig()
	cfg.Capture.DenylistDomains = []string{"example.org"}
	f := newFixture(t, cfg)

	_, err := f.mon.HandleVisit(context.Background(), visitClose("https://news.example.org/a", now, time.Minute))
	assert.ErrorIs(t, err, recorder.ErrExcluded)
	assert.True(t, Rejected(err))
	assert.Equal(t, 1, f.metrics.rejected["excluded"])
}

func TestEvaluate_CooldownSpacesTriggers(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := context.Background()

	_, err := f.mon.HandleVisit(ctx, visitClose("https://reddit.com/r/golang", now, 10*time.Minute))
	require.NoError(t, err)
	require.Equal(t, 1, f.sink.Pending())

	for i := 0; i < 9; i++ {
		f.clock.Advance(time.Minute)
		iv, result, err := f.mon.Evaluate(ctx)
		require.NoError(t, err)
		assert.Nil(t, iv)
		assert.Equal(t, ResultCooldown, result)
	}

	f.clock.Advance(time.Minute)
	iv, result, err := f.mon.Evaluate(ctx)
	require.NoError(t, err)
	assert.Equal(t, ResultTriggered, result)
	require.NotNil(t, iv)

	triggered, err := f.store.ListInterventions(ctx, storage.InterventionQuery{Status: domain.StatusTriggered})
	require.NoError(t, err)
	require.Len(t, triggered, 2)
	gap := triggered[0].TriggeredAt.Sub(*triggered[1].TriggeredAt)
	if gap < 0 {
		gap = -gap
	}
	assert.GreaterOrEqual(t, gap, 10*time.Minute)
}

func TestEvaluate_QueuesWhileAwaitingThenRedelivers(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := context.Background()

	_, err := f.mon.HandleVisit(ctx, visitClose("https://obscure.example/", now, 10*time.Minute))
	require.NoError(t, err)

	first, result, err := f.mon.Evaluate(ctx)
	require.NoError(t, err)
	require.Equal(t, ResultTriggered, result)
	assert.Equal(t, domain.TypeFocusReminder, first.Type)
	assert.NotEmpty(t, first.Message)

	f.clock.Advance(11 * time.Minute)
	_, result, err = f.mon.Evaluate(ctx)
	require.NoError(t, err)
	assert.Equal(t, ResultQueued, result)
	assert.Equal(t, 1, f.mon.Manager().QueueLen())

	_, err = f.mon.RecordOutcome(ctx, first.ID, domain.OutcomeDismissed)
	require.NoError(t, err)
	assert.Equal(t, 1, f.metrics.outcomes)

	iv, result, err := f.mon.Evaluate(ctx)
	require.NoError(t, err)
	assert.Equal(t, ResultRedeliver, result)
	require.NotNil(t, iv)
	assert.Equal(t, domain.TypeFocusReminder, iv.Type)
	assert.Zero(t, f.mon.Manager().QueueLen())
	assert.Equal(t, 2, f.sink.Pending())

	today, err := f.mon.Today(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), today.InterventionsTriggered)
	assert.Equal(t, int64(1), today.InterventionsDismissed)
}

func TestEvaluate_StopsWhileIdle(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := context.Background()

	_, err := f.mon.HandleVisit(ctx, visitClose("https://youtube.com/watch?v=1", now, 10*time.Minute))
	require.NoError(t, err)
	require.Equal(t, 1, f.sink.Pending())

	idleFrom := now.Add(30 * time.Minute)
	for i := 0; i < 36; i++ {
		f.clock.Advance(5 * time.Minute)
		iv, result, err := f.mon.Evaluate(ctx)
		require.NoError(t, err)
		if !f.clock.Now().Before(idleFrom) {
			assert.Nil(t, iv)
			assert.Equal(t, ResultIdle, result, "tick at %s", f.clock.Now())
		}
	}

	triggered, err := f.store.ListInterventions(ctx, storage.InterventionQuery{Status: domain.StatusTriggered})
	require.NoError(t, err)
	require.Len(t, triggered, 3, "one per cooldown until the user went idle")
	for _, iv := range triggered {
		assert.True(t, iv.TriggeredAt.Before(idleFrom))
	}
	assert.Equal(t, 3, f.sink.Pending())
	assert.Equal(t, 31, f.metrics.results[ResultIdle])
	assert.Zero(t, f.mon.Manager().QueueLen())
}

func TestNew_RestartAfterLongIdleStartsNewSession(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := context.Background()

	for i := 2; i >= 0; i-- {
		end := now.Add(-time.Duration(i) * 20 * time.Minute)
		_, err := f.mon.HandleVisit(ctx, visitClose("https://github.com/runnerr0/focuslens", end, 20*time.Minute))
		require.NoError(t, err)
	}
	require.Zero(t, f.sink.Pending())

	f.clock.Advance(14 * time.Hour)
	restarted, err := New(ctx, testConfig(), Deps{
		Store:   f.store,
		Sink:    f.sink,
		Clock:   f.clock,
		Metrics: f.metrics,
		Logger:  hclog.NewNullLogger(),
	})
	require.NoError(t, err)

	st := restarted.tracker.State()
	assert.True(t, st.SessionStart.Equal(f.clock.Now()))
	assert.Zero(t, st.SessionDuration)

	iv, result, err := restarted.Evaluate(ctx)
	require.NoError(t, err)
	assert.Nil(t, iv)
	assert.Equal(t, ResultIdle, result)

	// Browsing again resumes evaluation, without a break suggestion for
	// the hours spent away.
	f.clock.Advance(20 * time.Minute)
	_, err = restarted.HandleVisit(ctx, visitClose("https://github.com/runnerr0/focuslens", f.clock.Now(), 20*time.Minute))
	require.NoError(t, err)
	iv, result, err = restarted.Evaluate(ctx)
	require.NoError(t, err)
	assert.Nil(t, iv)
	assert.Equal(t, ResultNone, result)
	assert.Zero(t, f.sink.Pending())
}

func TestEvaluate_UndeliverableDoesNotPileUpRows(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := context.Background()
	box := intervention.NewPollSink(1)
	f.mon.manager = intervention.NewManager(f.store, f.mon.stats, f.mon.tracker, box, f.clock,
		intervention.ManagerOptions{}, hclog.NewNullLogger())

	_, err := f.mon.HandleVisit(ctx, visitClose("https://youtube.com/watch?v=1", now, 10*time.Minute))
	require.NoError(t, err)
	require.Equal(t, 1, box.Pending())

	failed := 0
	for i := 0; i < 5; i++ {
		f.clock.Advance(5 * time.Minute)
		_, result, err := f.mon.Evaluate(ctx)
		if result == ResultFailed {
			assert.ErrorIs(t, err, intervention.ErrDeliveryFailed)
			failed++
			continue
		}
		require.NoError(t, err)
	}
	assert.Equal(t, 4, failed)

	all, err := f.store.ListInterventions(ctx, storage.InterventionQuery{})
	require.NoError(t, err)
	assert.Len(t, all, 2, "the undelivered warning is retried, not re-created")
	assert.Equal(t, 1, f.mon.Manager().QueueLen())
	assert.Equal(t, 1, box.Pending())
}

func TestEvaluate_GoalCheckAgainstActiveTask(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := context.Background()

	_, err := f.mon.SetTask(ctx, "Quarterly budget report")
	require.NoError(t, err)
	_, err = f.mon.HandleVisit(ctx, visitClose("https://en.wikipedia.org/wiki/Otter", now, 5*time.Minute))
	require.NoError(t, err)

	iv, result, err := f.mon.Evaluate(ctx)
	require.NoError(t, err)
	assert.Equal(t, ResultTriggered, result)
	require.NotNil(t, iv)
	assert.Equal(t, domain.TypeGoalCheck, iv.Type)
	assert.Contains(t, iv.Message, "Quarterly budget report")
}

func TestEvaluate_NoVisitsNoIntervention(t *testing.T) {
	f := newFixture(t, testConfig())
	iv, result, err := f.mon.Evaluate(context.Background())
	require.NoError(t, err)
	assert.Nil(t, iv)
	assert.Equal(t, ResultNone, result)
}

func TestEvaluate_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Interventions.Enabled = false
	f := newFixture(t, cfg)
	ctx := context.Background()

	_, err := f.mon.HandleVisit(ctx, visitClose("https://youtube.com/", now, 10*time.Minute))
	require.NoError(t, err)
	_, result, err := f.mon.Evaluate(ctx)
	require.NoError(t, err)
	assert.Equal(t, ResultDisabled, result)
	assert.Zero(t, f.sink.Pending())
}

func TestEvaluate_SkipsWhileRunning(t *testing.T) {
	f := newFixture(t, testConfig())
	f.mon.evaluating.Store(true)

	_, result, err := f.mon.Evaluate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ResultBusy, result)
}

func TestSweep(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := context.Background()

	old := time.Date(2025, 11, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, f.store.AddVisit(ctx, &domain.SiteVisit{
		URL: "https://github.com/", Domain: "github.com", StartTime: old, EndTime: old.Add(time.Minute),
		DurationMs: 60000, Category: domain.CategoryProductive, Subcategory: domain.SubcategoryDevelopment,
		Date: "2025-11-01",
	}))
	_, err := f.mon.HandleVisit(ctx, visitClose("https://github.com/", now, time.Minute))
	require.NoError(t, err)

	res, ran, err := f.mon.Sweep(ctx)
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, int64(1), res.Visits)

	s, err := f.store.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), s.TotalVisits)

	f.mon.sweeping.Store(true)
	_, ran, err = f.mon.Sweep(ctx)
	require.NoError(t, err)
	assert.False(t, ran)
}

func TestTabSignals(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := context.Background()

	require.NoError(t, f.mon.TabActivated(ctx, "https://github.com/org/repo", "repo"))
	f.clock.Advance(2 * time.Minute)
	require.NoError(t, f.mon.TabHeartbeat(ctx))
	f.clock.Advance(30 * time.Second)
	require.NoError(t, f.mon.TabBlurred(ctx))

	d, err := f.mon.DailyStats(ctx, "2026-03-04")
	require.NoError(t, err)
	assert.Equal(t, int64(150000), d.FocusTimeMs)

	require.NoError(t, f.mon.TabActivated(ctx, "https://github.com/", ""))
	f.clock.Advance(2 * time.Second)
	assert.NoError(t, f.mon.TabBlurred(ctx), "short intervals are dropped quietly")
	assert.Equal(t, 1, f.metrics.rejected["too_short"])
}

func TestTasks(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := context.Background()

	task, err := f.mon.ActiveTask(ctx)
	require.NoError(t, err)
	assert.Nil(t, task)

	_, err = f.mon.SetTask(ctx, "   ")
	assert.ErrorIs(t, err, ErrEmptyTask)

	set, err := f.mon.SetTask(ctx, " Ship the release ")
	require.NoError(t, err)
	assert.NotEmpty(t, set.ID)

	task, err = f.mon.ActiveTask(ctx)
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Equal(t, "Ship the release", task.Title)
	assert.True(t, now.Equal(task.CreatedAt))

	require.NoError(t, f.mon.ClearTask(ctx))
	require.NoError(t, f.mon.ClearTask(ctx))
	task, err = f.mon.ActiveTask(ctx)
	require.NoError(t, err)
	assert.Nil(t, task)

	require.NoError(t, f.store.PutSetting(ctx, storage.SettingActiveTask, "{not json"))
	task, err = f.mon.ActiveTask(ctx)
	require.NoError(t, err)
	assert.Nil(t, task)
}

func TestExportAll(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := context.Background()

	_, err := f.mon.HandleVisit(ctx, visitClose("https://github.com/", now, time.Minute))
	require.NoError(t, err)

	data, err := f.mon.ExportAll(ctx)
	require.NoError(t, err)

	var doc struct {
		Version    int               `json:"version"`
		DailyStats []json.RawMessage `json:"daily_stats"`
		Visits     []json.RawMessage `json:"visits"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, storage.ExportVersion, doc.Version)
	assert.Len(t, doc.Visits, 1)
	assert.Len(t, doc.DailyStats, 1)
}

func TestTickClamped(t *testing.T) {
	tests := []struct {
		minutes int
		want    time.Duration
	}{
		{0, time.Minute},
		{5, 5 * time.Minute},
		{60, 15 * time.Minute},
	}
	for _, tt := range tests {
		cfg := testConfig()
		cfg.Interventions.TickMinutes = tt.minutes
		f := newFixture(t, cfg)
		assert.Equal(t, tt.want, f.mon.Tick())
	}
}

func TestNew_BadConfig(t *testing.T) {
	store, db, err := storage.Open(context.Background(), ":memory:", "")
	require.NoError(t, err)
	defer db.Close()
	defer store.Close()

	cfg := testConfig()
	cfg.Interventions.OutcomePolicy = "whenever"
	_, err = New(context.Background(), cfg, Deps{Store: store})
	assert.Error(t, err)

	_, err = New(context.Background(), testConfig(), Deps{})
	assert.Error(t, err)
}

func TestRun_StopsOnCancel(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- f.mon.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
