// Package monitor wires the capture pipeline, the intervention loop and the
// presentation queries into one long-lived object.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"

	"github.com/runnerr0/focuslens/internal/behavior"
	"github.com/runnerr0/focuslens/internal/classifier"
	"github.com/runnerr0/focuslens/internal/clock"
	"github.com/runnerr0/focuslens/internal/config"
	"github.com/runnerr0/focuslens/internal/domain"
	"github.com/runnerr0/focuslens/internal/intervention"
	"github.com/runnerr0/focuslens/internal/metrics"
	"github.com/runnerr0/focuslens/internal/oracle"
	"github.com/runnerr0/focuslens/internal/recorder"
	"github.com/runnerr0/focuslens/internal/stats"
	"github.com/runnerr0/focuslens/internal/storage"
)

// Evaluation results reported to metrics and returned by Evaluate.
const (
	ResultBusy      = "busy"
	ResultDisabled  = "disabled"
	ResultCooldown  = "cooldown"
	ResultRedeliver = "delivered_queued"
	ResultNone      = "none"
	ResultIdle      = "idle"
	ResultTriggered = "triggered"
	ResultQueued    = "queued"
	ResultFailed    = "failed"
)

const (
	minTick = time.Minute
	maxTick = 15 * time.Minute
)

// Deps are the collaborators a Monitor is built around.
type Deps struct {
	Store     storage.Store
	Sink      intervention.Sink
	Generator oracle.Generator
	Clock     clock.Clock
	Metrics   metrics.Reporter
	Logger    hclog.Logger
}

// Monitor owns every pipeline component for the life of the process.
type Monitor struct {
	store    storage.Store
	recorder *recorder.Recorder
	dwell    *recorder.Dwell
	stats    *stats.Aggregator
	tracker  *behavior.Tracker
	engine   *intervention.Engine
	gate     intervention.Gate
	manager  *intervention.Manager
	metrics  metrics.Reporter
	clock    clock.Clock
	logger   hclog.Logger
	loc      *time.Location

	enabled       bool
	goalWindow    int
	idleReset     time.Duration
	tick          time.Duration
	sweepInterval time.Duration
	retentionDays int

	evaluating atomic.Bool
	sweeping   atomic.Bool
}

// New builds a Monitor from cfg. The persisted behavioral snapshot is
// restored and configured denylist entries are added to the store.
func New(ctx context.Context, cfg *config.Config, deps Deps) (*Monitor, error) {
	if deps.Store == nil {
		return nil, errors.New("monitor requires a store")
	}
	if deps.Clock == nil {
		deps.Clock = clock.System{}
	}
	if deps.Logger == nil {
		deps.Logger = hclog.NewNullLogger()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewNoOp()
	}
	if deps.Sink == nil {
		deps.Sink = intervention.LogSink{Logger: deps.Logger.Named("sink")}
	}

	loc, err := cfg.ResolveLocation()
	if err != nil {
		return nil, err
	}
	policy, err := intervention.ParsePolicy(cfg.Interventions.OutcomePolicy)
	if err != nil {
		return nil, err
	}

	for _, d := range cfg.Capture.DenylistDomains {
		if err := deps.Store.AddExclusion(ctx, "domain", d, "config denylist"); err != nil {
			return nil, fmt.Errorf("adding denylist domain %q: %w", d, err)
		}
	}
	for _, re := range cfg.Capture.DenylistRegex {
		if err := deps.Store.AddExclusion(ctx, "regex", re, "config denylist"); err != nil {
			return nil, fmt.Errorf("adding denylist regex %q: %w", re, err)
		}
	}

	logger := deps.Logger
	agg := stats.New(deps.Store, deps.Clock, stats.Options{
		TopK:            cfg.Stats.TopK,
		StreakThreshold: cfg.Stats.StreakThreshold,
		Location:        loc,
	}, logger.Named("stats"))

	tracker := behavior.New(deps.Store, deps.Clock, behavior.Options{
		WindowSize: cfg.Behavior.WindowSize,
		BreakGap:   minutes(cfg.Behavior.BreakGapMinutes),
	}, logger.Named("behavior"))
	if err := tracker.Restore(ctx); err != nil {
		logger.Warn("restoring behavioral state failed", "error", err)
	}

	rec := recorder.New(deps.Store, classifier.New(cfg.Classifier), agg, tracker, recorder.Options{
		MinDuration: time.Duration(cfg.Capture.MinVisitSeconds) * time.Second,
		IdleReset:   minutes(cfg.Behavior.IdleResetMinutes),
		Location:    loc,
	}, logger.Named("recorder"))

	engine := intervention.NewEngine(intervention.EngineOptions{
		DistractionThreshold: cfg.Interventions.DistractionThreshold,
		FocusThreshold:       cfg.Interventions.FocusThreshold,
		BreakAfter:           minutes(cfg.Interventions.BreakAfterMinutes),
		GoalCheckWindow:      cfg.Interventions.GoalCheckWindow,
		OracleTimeout:        time.Duration(cfg.Oracle.TimeoutSeconds) * time.Second,
		Location:             loc,
	}, deps.Generator, deps.Clock, logger.Named("engine"))

	manager := intervention.NewManager(deps.Store, agg, tracker, deps.Sink, deps.Clock, intervention.ManagerOptions{
		QueueSize: cfg.Interventions.QueueSize,
		Policy:    policy,
	}, logger.Named("interventions"))

	m := &Monitor{
		store:         deps.Store,
		recorder:      rec,
		stats:         agg,
		tracker:       tracker,
		engine:        engine,
		gate:          intervention.NewGate(minutes(cfg.Interventions.CooldownMinutes), deps.Clock),
		manager:       manager,
		metrics:       deps.Metrics,
		clock:         deps.Clock,
		logger:        logger,
		loc:           loc,
		enabled:       cfg.Interventions.Enabled,
		goalWindow:    cfg.Interventions.GoalCheckWindow,
		idleReset:     minutes(cfg.Behavior.IdleResetMinutes),
		tick:          clampTick(minutes(cfg.Interventions.TickMinutes)),
		sweepInterval: time.Duration(cfg.Retention.SweepIntervalHours) * time.Hour,
		retentionDays: cfg.Retention.Days,
	}
	if m.goalWindow <= 0 {
		m.goalWindow = 5
	}
	if m.sweepInterval <= 0 {
		m.sweepInterval = 24 * time.Hour
	}
	if m.idleReset <= 0 {
		m.idleReset = 30 * time.Minute
	}

	// A snapshot from a run that ended long ago must not carry its session
	// into this one.
	if last, err := deps.Store.RecentVisits(ctx, 1); err != nil {
		logger.Warn("reading last visit failed", "error", err)
	} else if len(last) > 0 && tracker.ResetIfIdle(ctx, last[0].EndTime, m.idleReset) {
		logger.Info("idle since last run, session restarted", "last_activity", last[0].EndTime)
	}
	m.dwell = recorder.NewDwell(m.handleClosed, time.Duration(cfg.Capture.FlushIntervalSeconds)*time.Second)
	return m, nil
}

func minutes(n int) time.Duration {
	return time.Duration(n) * time.Minute
}

func clampTick(d time.Duration) time.Duration {
	if d < minTick {
		return minTick
	}
	if d > maxTick {
		return maxTick
	}
	return d
}

// Tick returns the evaluation interval in effect.
func (m *Monitor) Tick() time.Duration { return m.tick }

// Manager exposes the intervention lifecycle.
func (m *Monitor) Manager() *intervention.Manager { return m.manager }

// HandleVisit records one closed visit. A distraction visit triggers an
// evaluation right away instead of waiting for the next tick.
func (m *Monitor) HandleVisit(ctx context.Context, vc recorder.VisitClose) (*domain.SiteVisit, error) {
	v, err := m.recorder.Record(ctx, vc)
	if err != nil {
		m.metrics.VisitRejected(ctx, rejectReason(err))
		return nil, err
	}
	m.metrics.VisitRecorded(ctx, *v)

	if v.Category == domain.CategoryDistraction {
		if _, _, err := m.Evaluate(ctx); err != nil {
			m.logger.Warn("evaluation after distraction visit failed", "error", err)
		}
	}
	return v, nil
}

// Rejected reports whether err is an expected visit rejection rather than
// a failure.
func Rejected(err error) bool {
	return errors.Is(err, recorder.ErrTooShort) ||
		errors.Is(err, recorder.ErrExcluded) ||
		errors.Is(err, recorder.ErrInvalidURL) ||
		errors.Is(err, recorder.ErrInvalidInterval)
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, recorder.ErrTooShort):
		return "too_short"
	case errors.Is(err, recorder.ErrExcluded):
		return "excluded"
	case errors.Is(err, recorder.ErrInvalidURL):
		return "invalid_url"
	case errors.Is(err, recorder.ErrInvalidInterval):
		return "invalid_interval"
	}
	return "error"
}

// handleClosed receives intervals cut by the dwell tracker. Rejections are
// routine there and are not returned.
func (m *Monitor) handleClosed(ctx context.Context, vc recorder.VisitClose) error {
	_, err := m.HandleVisit(ctx, vc)
	if err != nil && Rejected(err) {
		m.logger.Trace("dwell interval dropped", "url", vc.URL, "reason", err)
		return nil
	}
	return err
}

// TabActivated starts tracking rawURL as the active tab.
func (m *Monitor) TabActivated(ctx context.Context, rawURL, title string) error {
	return m.dwell.Activate(ctx, rawURL, title, m.clock.Now())
}

// TabHeartbeat signals that the active tab is still being viewed.
func (m *Monitor) TabHeartbeat(ctx context.Context) error {
	return m.dwell.Heartbeat(ctx, m.clock.Now())
}

// TabBlurred ends the active tab's interval.
func (m *Monitor) TabBlurred(ctx context.Context) error {
	return m.dwell.Blur(ctx, m.clock.Now())
}

// Evaluate runs one decision pass. It returns the intervention that was
// triggered or queued, if any, and a short result label. An evaluation
// already in flight makes this call a no-op.
func (m *Monitor) Evaluate(ctx context.Context) (*domain.Intervention, string, error) {
	if !m.evaluating.CompareAndSwap(false, true) {
		m.metrics.Evaluation(ctx, ResultBusy)
		return nil, ResultBusy, nil
	}
	defer m.evaluating.Store(false)

	iv, result, err := m.evaluate(ctx)
	m.metrics.Evaluation(ctx, result)
	if iv != nil && result != ResultQueued && result != ResultFailed {
		m.metrics.InterventionTriggered(ctx, *iv)
	}
	return iv, result, err
}

func (m *Monitor) evaluate(ctx context.Context) (*domain.Intervention, string, error) {
	if !m.enabled {
		return nil, ResultDisabled, nil
	}

	recent, err := m.store.RecentVisits(ctx, m.goalWindow)
	if err != nil {
		m.logger.Warn("loading recent visits failed", "error", err)
	} else if len(recent) == 0 {
		// No attention signal yet.
		return nil, ResultNone, nil
	} else if m.tracker.ResetIfIdle(ctx, recent[len(recent)-1].EndTime, m.idleReset) {
		// Nobody is browsing, so nothing is shown and nothing is queued
		// until the next visit arrives.
		return nil, ResultIdle, nil
	}

	last, err := m.manager.LastTriggered(ctx)
	if err != nil {
		m.logger.Warn("reading cooldown failed", "error", err)
	}
	if !m.gate.Open(last) {
		m.logger.Trace("cooldown active", "remaining", m.gate.Remaining(last))
		return nil, ResultCooldown, nil
	}

	if m.manager.QueueLen() > 0 {
		busy, err := m.manager.Awaiting(ctx)
		if err != nil {
			m.logger.Warn("checking pending outcomes failed", "error", err)
		}
		if !busy {
			iv, err := m.manager.DeliverQueued(ctx)
			if err != nil {
				return nil, ResultFailed, err
			}
			return iv, ResultRedeliver, nil
		}
	}

	today, err := m.stats.Today(ctx)
	if err != nil {
		m.logger.Warn("loading today's stats failed", "error", err)
		today = domain.NewDailyStats(domain.DateOf(m.clock.Now(), m.loc))
	}
	task, err := m.ActiveTask(ctx)
	if err != nil {
		m.logger.Warn("loading active task failed", "error", err)
	}

	iv := m.engine.Decide(ctx, intervention.Input{
		State:  m.tracker.State(),
		Today:  today,
		Task:   task,
		Recent: recent,
	})
	if iv == nil {
		return nil, ResultNone, nil
	}

	delivered, err := m.manager.Submit(ctx, iv)
	if err != nil {
		return iv, ResultFailed, err
	}
	if !delivered {
		return iv, ResultQueued, nil
	}
	return iv, ResultTriggered, nil
}

// RecordOutcome applies the user's response to a delivered intervention.
func (m *Monitor) RecordOutcome(ctx context.Context, id string, outcome domain.Outcome) (*domain.Intervention, error) {
	iv, err := m.manager.RecordOutcome(ctx, id, outcome)
	if err != nil {
		return nil, err
	}
	m.metrics.OutcomeRecorded(ctx, *iv)
	return iv, nil
}

// Sweep deletes records older than the retention window. The bool is false
// when another sweep was already running.
func (m *Monitor) Sweep(ctx context.Context) (storage.PruneResult, bool, error) {
	if !m.sweeping.CompareAndSwap(false, true) {
		return storage.PruneResult{}, false, nil
	}
	defer m.sweeping.Store(false)

	days := m.retentionDays
	if days <= 0 {
		days = 90
	}
	cutoff := m.RetentionCutoff(time.Duration(days) * 24 * time.Hour)
	res, err := m.store.PruneExpired(ctx, cutoff)
	if err != nil {
		return storage.PruneResult{}, true, fmt.Errorf("retention sweep: %w", err)
	}
	if res.Total() > 0 {
		m.logger.Info("retention sweep", "before", cutoff, "visits", res.Visits,
			"daily_stats", res.DailyStats, "interventions", res.Interventions)
	}
	return res, true, nil
}

// RetentionCutoff is the first calendar day kept when records older than
// age are removed.
func (m *Monitor) RetentionCutoff(age time.Duration) string {
	return domain.DateOf(m.clock.Now().Add(-age), m.loc)
}

// Run drives the evaluation and sweep tickers until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info("monitor started", "tick", m.tick, "sweep_interval", m.sweepInterval)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return every(gctx, m.tick, func() {
			if _, _, err := m.Evaluate(gctx); err != nil {
				m.logger.Warn("evaluation failed", "error", err)
			}
		})
	})
	g.Go(func() error {
		if _, _, err := m.Sweep(gctx); err != nil {
			m.logger.Error("retention sweep failed", "error", err)
		}
		return every(gctx, m.sweepInterval, func() {
			if _, _, err := m.Sweep(gctx); err != nil {
				m.logger.Error("retention sweep failed", "error", err)
			}
		})
	})

	err := g.Wait()
	m.logger.Info("monitor stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func every(ctx context.Context, d time.Duration, fn func()) error {
	ticker := time.NewTicker(d)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			fn()
		}
	}
}
