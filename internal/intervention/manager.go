package intervention

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/runnerr0/focuslens/internal/clock"
	"github.com/runnerr0/focuslens/internal/domain"
	"github.com/runnerr0/focuslens/internal/storage"
)

// Policy decides what a second outcome for the same intervention does.
type Policy string

const (
	// PolicyFirstWins ignores outcomes after the first.
	PolicyFirstWins Policy = "first_wins"
	// PolicyLastWins overwrites the outcome and counts it again.
	PolicyLastWins Policy = "last_wins"
)

// ParsePolicy accepts the configured policy name. Empty means first_wins.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyFirstWins:
		return PolicyFirstWins, nil
	case PolicyLastWins:
		return PolicyLastWins, nil
	}
	return "", fmt.Errorf("unknown outcome policy %q", s)
}

// Store is the persistence the manager needs.
type Store interface {
	AddIntervention(ctx context.Context, iv *domain.Intervention) error
	GetIntervention(ctx context.Context, id string) (*domain.Intervention, error)
	ListInterventions(ctx context.Context, q storage.InterventionQuery) ([]domain.Intervention, error)
	MarkTriggered(ctx context.Context, id string, at time.Time) error
	SetOutcome(ctx context.Context, id string, outcome domain.Outcome, at time.Time, overwrite bool) (*storage.OutcomeResult, error)
	GetSetting(ctx context.Context, key string) (string, error)
	PutSetting(ctx context.Context, key, value string) error
}

// OutcomeRecorder receives every applied outcome, e.g. the stats aggregator.
type OutcomeRecorder interface {
	RecordIntervention(ctx context.Context, outcome domain.Outcome, date string) error
}

// BreakRecorder is told when the user accepts a break suggestion.
type BreakRecorder interface {
	RecordBreak(ctx context.Context) domain.UserState
}

// ManagerOptions tunes queueing and outcome handling.
type ManagerOptions struct {
	QueueSize   int
	Policy      Policy
	AwaitWindow time.Duration
}

// Manager owns the created -> triggered -> outcome lifecycle.
type Manager struct {
	store  Store
	stats  OutcomeRecorder
	breaks BreakRecorder
	sink   Sink
	clock  clock.Clock
	logger hclog.Logger
	opts   ManagerOptions

	mu    sync.Mutex
	queue []domain.Intervention
}

// NewManager creates a Manager. breaks may be nil.
func NewManager(store Store, stats OutcomeRecorder, breaks BreakRecorder, sink Sink, clk clock.Clock, opts ManagerOptions, logger hclog.Logger) *Manager {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 10
	}
	if opts.Policy == "" {
		opts.Policy = PolicyFirstWins
	}
	if opts.AwaitWindow <= 0 {
		opts.AwaitWindow = 30 * time.Minute
	}
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Manager{
		store:  store,
		stats:  stats,
		breaks: breaks,
		sink:   sink,
		clock:  clk,
		logger: logger,
		opts:   opts,
	}
}

// ErrDeliveryFailed wraps sink errors. Only these leave an intervention
// waiting in the queue for another attempt.
var ErrDeliveryFailed = errors.New("intervention delivery failed")

// Submit persists iv as created. High and critical priorities are
// triggered at once; lower ones are triggered at once only while nothing
// is awaiting an outcome, and are queued otherwise. An intervention whose
// delivery fails is queued as well. The returned bool reports whether iv
// reached the sink.
//
// While one of the same type is queued no new row is written: a lower
// priority iv is collapsed into it and a higher one delivers the queued
// row in its place.
func (m *Manager) Submit(ctx context.Context, iv *domain.Intervention) (bool, error) {
	if _, err := domain.ParsePriority(string(iv.Priority)); err != nil {
		return false, err
	}

	if waiting, ok := m.queuedOfType(iv.Type); ok {
		if !iv.Priority.Immediate() {
			m.logger.Debug("collapsed duplicate queued intervention", "type", iv.Type)
			return false, nil
		}
		m.unqueue(waiting.ID)
		*iv = waiting
	} else {
		if iv.Date == "" {
			iv.Date = domain.DateOf(iv.Timestamp, time.Local)
		}
		if err := m.store.AddIntervention(ctx, iv); err != nil {
			return false, fmt.Errorf("persist intervention: %w", err)
		}
		if !iv.Priority.Immediate() {
			busy, err := m.Awaiting(ctx)
			if err != nil {
				m.logger.Warn("checking pending outcomes failed", "error", err)
			}
			if busy {
				m.enqueue(*iv)
				return false, nil
			}
		}
	}

	if err := m.Trigger(ctx, iv); err != nil {
		if errors.Is(err, ErrDeliveryFailed) {
			m.enqueue(*iv)
		}
		return false, err
	}
	return true, nil
}

// Trigger hands iv to the sink and, once delivered, starts the cooldown and
// marks it triggered. A sink failure leaves iv created and returns
// ErrDeliveryFailed.
func (m *Manager) Trigger(ctx context.Context, iv *domain.Intervention) error {
	if err := m.sink.Deliver(ctx, *iv); err != nil {
		m.logger.Warn("delivering intervention failed", "id", iv.ID, "type", iv.Type, "error", err)
		return fmt.Errorf("%w: %s: %w", ErrDeliveryFailed, iv.ID, err)
	}

	// The user has seen it now, so the cooldown starts even if the status
	// update below fails.
	now := m.clock.Now()
	if err := m.store.PutSetting(ctx, storage.SettingCooldown, now.UTC().Format(time.RFC3339Nano)); err != nil {
		m.logger.Warn("recording cooldown failed", "error", err)
	}
	if err := m.store.MarkTriggered(ctx, iv.ID, now); err != nil {
		m.logger.Error("marking delivered intervention triggered failed", "id", iv.ID, "error", err)
		return fmt.Errorf("mark intervention %s triggered: %w", iv.ID, err)
	}
	iv.Status = domain.StatusTriggered
	iv.TriggeredAt = &now

	m.logger.Info("intervention triggered", "id", iv.ID, "type", iv.Type, "priority", iv.Priority)
	return nil
}

// DeliverQueued triggers the head of the queue. It returns nil when the
// queue is empty. When the sink refuses it the item goes back to the head;
// any other failure drops it, since it already reached the sink.
func (m *Manager) DeliverQueued(ctx context.Context) (*domain.Intervention, error) {
	m.mu.Lock()
	if len(m.queue) == 0 {
		m.mu.Unlock()
		return nil, nil
	}
	iv := m.queue[0]
	m.queue = m.queue[1:]
	m.mu.Unlock()

	if err := m.Trigger(ctx, &iv); err != nil {
		if errors.Is(err, ErrDeliveryFailed) {
			m.mu.Lock()
			m.queue = append([]domain.Intervention{iv}, m.queue...)
			m.mu.Unlock()
		}
		return nil, err
	}
	return &iv, nil
}

// QueueLen returns the number of queued interventions.
func (m *Manager) QueueLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Queued returns a copy of the queue, head first.
func (m *Manager) Queued() []domain.Intervention {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Intervention{}, m.queue...)
}

// enqueue appends iv unless one of the same type is already waiting. The
// oldest entry is dropped when the queue is full.
func (m *Manager) enqueue(iv domain.Intervention) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, q := range m.queue {
		if q.Type == iv.Type {
			m.logger.Debug("collapsed duplicate queued intervention", "type", iv.Type)
			return
		}
	}
	if len(m.queue) >= m.opts.QueueSize {
		m.logger.Debug("intervention queue full, dropping oldest", "type", m.queue[0].Type)
		m.queue = m.queue[1:]
	}
	m.queue = append(m.queue, iv)
}

func (m *Manager) queuedOfType(typ domain.InterventionType) (domain.Intervention, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, q := range m.queue {
		if q.Type == typ {
			return q, true
		}
	}
	return domain.Intervention{}, false
}

func (m *Manager) unqueue(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, q := range m.queue {
		if q.ID == id {
			m.queue = append(m.queue[:i:i], m.queue[i+1:]...)
			return
		}
	}
}

// Awaiting reports whether a recently triggered intervention still has no
// outcome. Ones older than the await window are considered abandoned.
func (m *Manager) Awaiting(ctx context.Context) (bool, error) {
	pending, err := m.store.ListInterventions(ctx, storage.InterventionQuery{Status: domain.StatusTriggered})
	if err != nil {
		return false, err
	}
	cutoff := m.clock.Now().Add(-m.opts.AwaitWindow)
	for _, iv := range pending {
		if iv.TriggeredAt != nil && iv.TriggeredAt.After(cutoff) {
			return true, nil
		}
	}
	return false, nil
}

// LastTriggered returns when the most recent intervention was triggered,
// or the zero time if none ever was.
func (m *Manager) LastTriggered(ctx context.Context) (time.Time, error) {
	raw, err := m.store.GetSetting(ctx, storage.SettingCooldown)
	if errors.Is(err, storage.ErrNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		m.logger.Warn("ignoring malformed cooldown marker", "value", raw)
		return time.Time{}, nil
	}
	return t, nil
}

// RecordOutcome applies the user's response to a triggered intervention and
// feeds it to the aggregator. Under first_wins a repeated outcome is a
// no-op that returns the stored intervention unchanged.
func (m *Manager) RecordOutcome(ctx context.Context, id string, outcome domain.Outcome) (*domain.Intervention, error) {
	if _, err := domain.ParseOutcome(string(outcome)); err != nil {
		return nil, err
	}

	res, err := m.store.SetOutcome(ctx, id, outcome, m.clock.Now(), m.opts.Policy == PolicyLastWins)
	if err != nil {
		return nil, err
	}
	iv := res.Intervention
	if !res.Applied {
		m.logger.Debug("outcome already recorded", "id", id, "kept", res.Previous, "ignored", outcome)
		return iv, nil
	}

	if err := m.stats.RecordIntervention(ctx, outcome, iv.Date); err != nil {
		m.logger.Error("recording intervention outcome in stats failed", "id", id, "error", err)
	}
	if m.breaks != nil && iv.Type == domain.TypeBreakSuggestion && outcome == domain.OutcomeAccepted {
		m.breaks.RecordBreak(ctx)
	}
	m.logger.Info("intervention outcome", "id", id, "type", iv.Type, "outcome", outcome)
	return iv, nil
}
