package metrics

import (
	"context"

	"github.com/runnerr0/focuslens/internal/domain"
)

// NoOp is a Reporter that does nothing.
type NoOp struct{}

// NewNoOp creates a no-op reporter for graceful degradation.
func NewNoOp() *NoOp {
	return &NoOp{}
}

func (NoOp) VisitRecorded(context.Context, domain.SiteVisit) {}

func (NoOp) VisitRejected(context.Context, string) {}

func (NoOp) InterventionTriggered(context.Context, domain.Intervention) {}

func (NoOp) OutcomeRecorded(context.Context, domain.Intervention) {}

func (NoOp) Evaluation(context.Context, string) {}

func (NoOp) Close(context.Context) error {
	return nil
}
