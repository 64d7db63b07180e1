package intervention

import (
	"context"
	"errors"
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/runnerr0/focuslens/internal/domain"
)

// ErrMailboxFull is returned by PollSink when nobody is draining it.
var ErrMailboxFull = errors.New("intervention mailbox full")

// Sink shows an intervention to the user. The outcome arrives later through
// Manager.RecordOutcome.
type Sink interface {
	Deliver(ctx context.Context, iv domain.Intervention) error
}

// PollSink buffers interventions until the on-page renderer collects them.
type PollSink struct {
	mu    sync.Mutex
	box   []domain.Intervention
	limit int
}

// NewPollSink creates a mailbox holding at most limit undrained items.
func NewPollSink(limit int) *PollSink {
	if limit <= 0 {
		limit = 10
	}
	return &PollSink{limit: limit}
}

func (p *PollSink) Deliver(_ context.Context, iv domain.Intervention) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.box) >= p.limit {
		return ErrMailboxFull
	}
	p.box = append(p.box, iv)
	return nil
}

// Drain returns and clears everything delivered so far, oldest first.
func (p *PollSink) Drain() []domain.Intervention {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.box
	p.box = nil
	if out == nil {
		out = []domain.Intervention{}
	}
	return out
}

// Pending returns the number of undrained interventions.
func (p *PollSink) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.box)
}

// LogSink writes interventions to the log. Used when no renderer is attached.
type LogSink struct {
	Logger hclog.Logger
}

func (l LogSink) Deliver(_ context.Context, iv domain.Intervention) error {
	logger := l.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	logger.Info("intervention", "id", iv.ID, "type", iv.Type, "priority", iv.Priority, "message", iv.Message)
	return nil
}
