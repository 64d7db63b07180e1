package intervention

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/focuslens/internal/clock"
	"github.com/runnerr0/focuslens/internal/domain"
)

var now = time.Date(2026, 3, 4, 15, 0, 0, 0, time.UTC)

type genFunc func(ctx context.Context, prompt string) (string, error)

func (f genFunc) Generate(ctx context.Context, prompt string) (string, error) { return f(ctx, prompt) }

func newTestEngine(gen genFunc) *Engine {
	opts := EngineOptions{OracleTimeout: 100 * time.Millisecond, Location: time.UTC}
	if gen == nil {
		return NewEngine(opts, nil, clock.NewManual(now), hclog.NewNullLogger())
	}
	return NewEngine(opts, gen, clock.NewManual(now), hclog.NewNullLogger())
}

func healthy() domain.UserState {
	return domain.UserState{
		FocusLevel:       60,
		DistractionScore: 10,
		CurrentActivity:  domain.SubcategoryDevelopment,
		SessionDuration:  20 * time.Minute,
	}
}

func visits(host string, sub domain.Subcategory, n int) []domain.SiteVisit {
	out := make([]domain.SiteVisit, n)
	for i := range out {
		out[i] = domain.SiteVisit{Domain: host, Subcategory: sub, StartTime: now.Add(time.Duration(i-n) * time.Minute)}
	}
	return out
}

func TestDecide_DistractionWinsOverBreak(t *testing.T) {
	e := newTestEngine(nil)
	s := healthy()
	s.DistractionScore = 80
	s.SessionDuration = 100 * time.Minute
	s.BreaksSinceFocus = 0

	today := domain.NewDailyStats("2026-03-04")
	today.DistractionTimeMs = (42 * time.Minute).Milliseconds()
	today.TopDistractions = []domain.SiteTime{{Domain: "reddit.com", TimeMs: 1}}

	iv := e.Decide(context.Background(), Input{State: s, Today: today})
	require.NotNil(t, iv)
	assert.Equal(t, domain.TypeDistractionWarning, iv.Type)
	assert.Equal(t, domain.PriorityHigh, iv.Priority)
	assert.Contains(t, iv.Message, "42 minutes")
	require.NotNil(t, iv.Action)
	assert.Equal(t, domain.ActionBlockSite, iv.Action.Kind)
	assert.Equal(t, "reddit.com", iv.Action.Payload)
	assert.Equal(t, "2026-03-04", iv.Date)
	assert.True(t, now.Equal(iv.Timestamp))
	assert.Equal(t, domain.StatusCreated, iv.Status)
}

func TestDecide_ThresholdsAreStrict(t *testing.T) {
	e := newTestEngine(nil)

	s := healthy()
	s.DistractionScore = 70
	assert.Nil(t, e.Decide(context.Background(), Input{State: s}))

	s = healthy()
	s.SessionDuration = 90 * time.Minute
	assert.Nil(t, e.Decide(context.Background(), Input{State: s}))

	s = healthy()
	s.FocusLevel = 30
	assert.Nil(t, e.Decide(context.Background(), Input{State: s}))
}

func TestDecide_BreakSuggestion(t *testing.T) {
	e := newTestEngine(nil)
	s := healthy()
	s.SessionDuration = 95 * time.Minute

	iv := e.Decide(context.Background(), Input{State: s})
	require.NotNil(t, iv)
	assert.Equal(t, domain.TypeBreakSuggestion, iv.Type)
	assert.Equal(t, domain.PriorityMedium, iv.Priority)
	assert.Contains(t, iv.Message, "95 minutes")
	assert.Equal(t, domain.ActionStartTimer, iv.Action.Kind)

	s.BreaksSinceFocus = 1
	assert.Nil(t, e.Decide(context.Background(), Input{State: s}))
}

func TestDecide_BreakWinsOverFocusReminder(t *testing.T) {
	e := newTestEngine(nil)
	s := healthy()
	s.SessionDuration = 2 * time.Hour
	s.FocusLevel = 10

	iv := e.Decide(context.Background(), Input{State: s})
	require.NotNil(t, iv)
	assert.Equal(t, domain.TypeBreakSuggestion, iv.Type)
}

func TestDecide_FocusReminderUsesOracle(t *testing.T) {
	var calls atomic.Int32
	e := newTestEngine(func(_ context.Context, prompt string) (string, error) {
		calls.Add(1)
		assert.Contains(t, prompt, "10%")
		return "Try closing every tab but one.", nil
	})
	s := healthy()
	s.FocusLevel = 10
	s.CurrentActivity = domain.SubcategorySocial

	iv := e.Decide(context.Background(), Input{State: s})
	require.NotNil(t, iv)
	assert.Equal(t, domain.TypeFocusReminder, iv.Type)
	assert.Equal(t, domain.PriorityMedium, iv.Priority)
	assert.Equal(t, "Try closing every tab but one.", iv.Message)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDecide_FocusReminderFallsBack(t *testing.T) {
	s := healthy()
	s.FocusLevel = 10
	s.CurrentActivity = domain.SubcategorySocial

	failing := newTestEngine(func(context.Context, string) (string, error) {
		return "", errors.New("connection refused")
	})
	iv := failing.Decide(context.Background(), Input{State: s})
	require.NotNil(t, iv)
	assert.Equal(t, suggestions[domain.SubcategorySocial], iv.Message)

	block := make(chan struct{})
	defer close(block)
	hanging := newTestEngine(func(ctx context.Context, _ string) (string, error) {
		<-block
		return "late", nil
	})
	started := time.Now()
	iv = hanging.Decide(context.Background(), Input{State: s})
	require.NotNil(t, iv)
	assert.Equal(t, suggestions[domain.SubcategorySocial], iv.Message)
	assert.Less(t, time.Since(started), 2*time.Second)

	s.CurrentActivity = domain.SubcategoryGeneral
	iv = newTestEngine(nil).Decide(context.Background(), Input{State: s})
	require.NotNil(t, iv)
	assert.Equal(t, fallbackSuggestion(domain.SubcategoryGeneral), iv.Message)
}

func TestDecide_GoalCheck(t *testing.T) {
	e := newTestEngine(nil)
	task := &domain.Task{Title: "Write the quarterly report"}

	t.Run("off task", func(t *testing.T) {
		iv := e.Decide(context.Background(), Input{
			State:  healthy(),
			Task:   task,
			Recent: visits("youtube.com", domain.SubcategoryEntertainment, 5),
		})
		require.NotNil(t, iv)
		assert.Equal(t, domain.TypeGoalCheck, iv.Type)
		assert.Equal(t, domain.PriorityMedium, iv.Priority)
		assert.Contains(t, iv.Message, "Write the quarterly report")
	})

	t.Run("title word in domain", func(t *testing.T) {
		recent := visits("youtube.com", domain.SubcategoryEntertainment, 4)
		recent = append(recent, domain.SiteVisit{Domain: "reports.internal.example", Subcategory: domain.SubcategoryGeneral})
		assert.Nil(t, e.Decide(context.Background(), Input{State: healthy(), Task: task, Recent: recent}))
	})

	t.Run("development counts as relevant", func(t *testing.T) {
		recent := visits("youtube.com", domain.SubcategoryEntertainment, 4)
		recent = append(recent, domain.SiteVisit{Domain: "github.com", Subcategory: domain.SubcategoryDevelopment})
		assert.Nil(t, e.Decide(context.Background(), Input{State: healthy(), Task: task, Recent: recent}))
	})

	t.Run("only last five count", func(t *testing.T) {
		recent := []domain.SiteVisit{{Domain: "github.com", Subcategory: domain.SubcategoryDevelopment}}
		recent = append(recent, visits("youtube.com", domain.SubcategoryEntertainment, 5)...)
		iv := e.Decide(context.Background(), Input{State: healthy(), Task: task, Recent: recent})
		require.NotNil(t, iv)
		assert.Equal(t, domain.TypeGoalCheck, iv.Type)
	})

	t.Run("short words ignored", func(t *testing.T) {
		recent := visits("the.example", domain.SubcategoryGeneral, 5)
		iv := e.Decide(context.Background(), Input{State: healthy(), Task: task, Recent: recent})
		require.NotNil(t, iv, "\"the\" is too short to count")
	})

	t.Run("no task or no visits", func(t *testing.T) {
		assert.Nil(t, e.Decide(context.Background(), Input{State: healthy(), Recent: visits("youtube.com", "entertainment", 5)}))
		assert.Nil(t, e.Decide(context.Background(), Input{State: healthy(), Task: task}))
	})
}

func TestDecide_HealthyIsNil(t *testing.T) {
	assert.Nil(t, newTestEngine(nil).Decide(context.Background(), Input{State: healthy()}))
}

func TestTaskWords(t *testing.T) {
	assert.Equal(t, []string{"write", "quarterly", "report"}, taskWords("Write the quarterly report!"))
	assert.Empty(t, taskWords("do it"))
}

func TestGate(t *testing.T) {
	clk := clock.NewManual(now)
	g := NewGate(10*time.Minute, clk)

	assert.True(t, g.Open(time.Time{}))

	last := now
	clk.Advance(5 * time.Minute)
	assert.False(t, g.Open(last))
	assert.Equal(t, 5*time.Minute, g.Remaining(last))

	clk.Advance(5 * time.Minute)
	assert.True(t, g.Open(last))
	assert.Zero(t, g.Remaining(last))
}
