// Package behavior derives the rolling UserState from recent visits.
package behavior

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/runnerr0/focuslens/internal/clock"
	"github.com/runnerr0/focuslens/internal/domain"
	"github.com/runnerr0/focuslens/internal/storage"
)

var (
	focusSet = map[domain.Subcategory]bool{
		domain.SubcategoryProductivity: true,
		domain.SubcategoryDevelopment:  true,
		domain.SubcategoryLearning:     true,
	}
	distractionSet = map[domain.Subcategory]bool{
		domain.SubcategorySocial:        true,
		domain.SubcategoryEntertainment: true,
	}
)

// Store persists the last-known snapshot.
type Store interface {
	GetSetting(ctx context.Context, key string) (string, error)
	PutSetting(ctx context.Context, key, value string) error
}

// Options tunes the tracker. Zero values fall back to a window of 20
// visits and a 5 minute break gap.
type Options struct {
	WindowSize int
	BreakGap   time.Duration
}

// snapshot is the persisted form. LastSeen lets break detection resume
// across restarts.
type snapshot struct {
	State    domain.UserState `json:"state"`
	LastSeen time.Time        `json:"last_seen"`
}

// Tracker holds the current UserState. It is safe for concurrent use.
type Tracker struct {
	store    Store
	clock    clock.Clock
	logger   hclog.Logger
	window   int
	breakGap time.Duration

	mu       sync.Mutex
	state    domain.UserState
	lastSeen time.Time
}

// New creates a Tracker whose session starts now.
func New(store Store, clk clock.Clock, opts Options, logger hclog.Logger) *Tracker {
	if opts.WindowSize <= 0 {
		opts.WindowSize = 20
	}
	if opts.BreakGap <= 0 {
		opts.BreakGap = 5 * time.Minute
	}
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	now := clk.Now()
	return &Tracker{
		store:    store,
		clock:    clk,
		logger:   logger,
		window:   opts.WindowSize,
		breakGap: opts.BreakGap,
		state: domain.UserState{
			CurrentActivity: domain.SubcategoryGeneral,
			SessionStart:    now,
			UpdatedAt:       now,
		},
	}
}

// WindowSize is the number of recent visits Update considers.
func (t *Tracker) WindowSize() int { return t.window }

// Update recomputes the state from the most recent visits, oldest first.
// An empty slice returns the previous state unchanged.
func (t *Tracker) Update(ctx context.Context, visits []domain.SiteVisit) domain.UserState {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(visits) == 0 {
		return t.state
	}
	if len(visits) > t.window {
		visits = visits[len(visits)-t.window:]
	}

	var productive, distracting int
	for _, v := range visits {
		sub := domain.NormalizeSubcategory(string(v.Subcategory))
		if focusSet[sub] {
			productive++
		}
		if distractionSet[sub] {
			distracting++
		}
		t.observe(v)
	}

	n := float64(len(visits))
	now := t.clock.Now()
	t.state.FocusLevel = int(math.Round(100 * float64(productive) / n))
	t.state.DistractionScore = int(math.Round(100 * float64(distracting) / n))
	t.state.CurrentActivity = domain.NormalizeSubcategory(string(visits[len(visits)-1].Subcategory))
	t.state.SessionDuration = now.Sub(t.state.SessionStart)
	t.state.UpdatedAt = now

	t.persist(ctx)
	return t.state
}

// observe counts a break when an unseen visit starts at least breakGap
// after the end of the previous one. The caller holds mu.
func (t *Tracker) observe(v domain.SiteVisit) {
	if !v.EndTime.After(t.lastSeen) {
		return
	}
	if !t.lastSeen.IsZero() {
		if v.StartTime.Sub(t.lastSeen) >= t.breakGap {
			t.state.BreaksSinceFocus++
			at := v.StartTime
			t.state.LastBreakTime = &at
		}
	}
	t.lastSeen = v.EndTime
}

// ResetSession starts a new session now.
func (t *Tracker) ResetSession(ctx context.Context) domain.UserState {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.resetLocked(ctx, t.clock.Now())
	return t.state
}

// ResetIfIdle reports whether idle or more has passed since lastActivity.
// If so, a session that began before the user went idle is replaced by a
// new one starting now; a session already started since is kept.
func (t *Tracker) ResetIfIdle(ctx context.Context, lastActivity time.Time, idle time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	if lastActivity.IsZero() || now.Sub(lastActivity) < idle {
		return false
	}
	if t.state.SessionStart.Before(lastActivity.Add(idle)) {
		t.logger.Debug("idle since last activity, starting a new session", "last_activity", lastActivity)
		t.resetLocked(ctx, now)
	}
	return true
}

// resetLocked starts a session at now. The caller holds mu.
func (t *Tracker) resetLocked(ctx context.Context, now time.Time) {
	t.state.SessionStart = now
	t.state.SessionDuration = 0
	t.state.BreaksSinceFocus = 0
	t.state.UpdatedAt = now
	if now.After(t.lastSeen) {
		t.lastSeen = now
	}
	t.persist(ctx)
}

// RecordBreak counts a break taken now, e.g. an accepted break suggestion.
func (t *Tracker) RecordBreak(ctx context.Context) domain.UserState {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	t.state.BreaksSinceFocus++
	t.state.LastBreakTime = &now
	t.state.UpdatedAt = now

	t.persist(ctx)
	return t.state
}

// State returns the current state with the session duration measured now.
func (t *Tracker) State() domain.UserState {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.state
	s.SessionDuration = t.clock.Now().Sub(s.SessionStart)
	return s
}

// Restore loads the last persisted snapshot. A missing or unreadable
// snapshot leaves the fresh state in place.
func (t *Tracker) Restore(ctx context.Context) error {
	raw, err := t.store.GetSetting(ctx, storage.SettingUserState)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load user state: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		t.logger.Warn("ignoring malformed user state snapshot", "error", err)
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if snap.State.SessionStart.IsZero() {
		snap.State.SessionStart = t.state.SessionStart
	}
	snap.State.CurrentActivity = domain.NormalizeSubcategory(string(snap.State.CurrentActivity))
	snap.State.FocusLevel = clampPercent(snap.State.FocusLevel)
	snap.State.DistractionScore = clampPercent(snap.State.DistractionScore)
	t.state = snap.State
	t.lastSeen = snap.LastSeen
	return nil
}

// persist writes the snapshot. Failures are logged only. The caller holds mu.
func (t *Tracker) persist(ctx context.Context) {
	data, err := json.Marshal(snapshot{State: t.state, LastSeen: t.lastSeen})
	if err != nil {
		t.logger.Warn("encoding user state failed", "error", err)
		return
	}
	if err := t.store.PutSetting(ctx, storage.SettingUserState, string(data)); err != nil {
		t.logger.Warn("persisting user state failed", "error", err)
	}
}

func clampPercent(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
