package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/runnerr0/focuslens/internal/domain"
	"github.com/runnerr0/focuslens/internal/storage"
)

// ErrEmptyTask is returned when a task title is blank.
var ErrEmptyTask = errors.New("task title is empty")

// DailyStats returns the aggregate for date, or storage.ErrNotFound.
func (m *Monitor) DailyStats(ctx context.Context, date string) (*domain.DailyStats, error) {
	return m.stats.Daily(ctx, date)
}

// Today returns today's aggregate, empty when nothing was recorded yet.
func (m *Monitor) Today(ctx context.Context) (*domain.DailyStats, error) {
	return m.stats.Today(ctx)
}

// StatsForRange returns the aggregates between start and end inclusive.
func (m *Monitor) StatsForRange(ctx context.Context, start, end string) ([]domain.DailyStats, error) {
	return m.stats.Range(ctx, start, end)
}

func (m *Monitor) CurrentStreak(ctx context.Context) (int, error) {
	return m.stats.CurrentStreak(ctx)
}

func (m *Monitor) Weekly(ctx context.Context, date string) (*domain.Rollup, error) {
	return m.stats.Weekly(ctx, date)
}

func (m *Monitor) Monthly(ctx context.Context, year int, month time.Month) (*domain.Rollup, error) {
	return m.stats.Monthly(ctx, year, month)
}

// TopSites ranks domains for date. A k of zero uses the configured limit.
func (m *Monitor) TopSites(ctx context.Context, date string, category domain.Category, k int) ([]domain.SiteTime, error) {
	return m.stats.TopK(ctx, date, category, k)
}

// State returns the current behavioral snapshot.
func (m *Monitor) State() domain.UserState {
	return m.tracker.State()
}

// ResetSession starts a new session now.
func (m *Monitor) ResetSession(ctx context.Context) domain.UserState {
	return m.tracker.ResetSession(ctx)
}

// Interventions lists stored interventions, oldest first.
func (m *Monitor) Interventions(ctx context.Context, q storage.InterventionQuery) ([]domain.Intervention, error) {
	return m.store.ListInterventions(ctx, q)
}

// Export returns every stored record.
func (m *Monitor) Export(ctx context.Context) (*storage.Export, error) {
	return m.store.Export(ctx, m.clock.Now())
}

// ExportAll returns the full export as indented JSON.
func (m *Monitor) ExportAll(ctx context.Context) ([]byte, error) {
	exp, err := m.Export(ctx)
	if err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(exp, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode export: %w", err)
	}
	return data, nil
}

// SetTask replaces the active task.
func (m *Monitor) SetTask(ctx context.Context, title string) (*domain.Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrEmptyTask
	}
	task := &domain.Task{ID: uuid.NewString(), Title: title, CreatedAt: m.clock.Now()}
	data, err := json.Marshal(task)
	if err != nil {
		return nil, fmt.Errorf("encode task: %w", err)
	}
	if err := m.store.PutSetting(ctx, storage.SettingActiveTask, string(data)); err != nil {
		return nil, err
	}
	m.logger.Info("active task set", "title", title)
	return task, nil
}

// ClearTask removes the active task. Clearing when none is set is not an error.
func (m *Monitor) ClearTask(ctx context.Context) error {
	return m.store.DeleteSetting(ctx, storage.SettingActiveTask)
}

// ActiveTask returns the current task, or nil when none is set. A
// malformed stored task is treated as none.
func (m *Monitor) ActiveTask(ctx context.Context) (*domain.Task, error) {
	raw, err := m.store.GetSetting(ctx, storage.SettingActiveTask)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var task domain.Task
	if err := json.Unmarshal([]byte(raw), &task); err != nil || task.Title == "" {
		m.logger.Warn("ignoring malformed active task", "value", raw)
		return nil, nil
	}
	return &task, nil
}

// Now is the monitor clock's current time.
func (m *Monitor) Now() time.Time {
	return m.clock.Now()
}

// TodayDate is the current calendar day in the configured timezone.
func (m *Monitor) TodayDate() string {
	return domain.DateOf(m.clock.Now(), m.loc)
}
