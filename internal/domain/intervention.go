package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrUnknownOutcome  = errors.New("unknown outcome")
	ErrUnknownPriority = errors.New("unknown priority")
)

// InterventionType identifies the kind of nudge.
type InterventionType string

const (
	TypeDistractionWarning InterventionType = "distraction_warning"
	TypeBreakSuggestion    InterventionType = "break_suggestion"
	TypeFocusReminder      InterventionType = "focus_reminder"
	TypeGoalCheck          InterventionType = "goal_check"
	TypeProductivityTip    InterventionType = "productivity_tip"
)

// Priority orders interventions by urgency.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// ParsePriority normalizes s and rejects unknown priorities.
func ParsePriority(s string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return p, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPriority, s)
}

// Immediate reports whether p bypasses the delivery queue.
func (p Priority) Immediate() bool {
	return p == PriorityHigh || p == PriorityCritical
}

// Outcome is the user's response to a shown intervention.
type Outcome string

const (
	OutcomeAccepted  Outcome = "accepted"
	OutcomeDismissed Outcome = "dismissed"
	OutcomeSnoozed   Outcome = "snoozed"
)

// ParseOutcome normalizes s and rejects unknown outcome tags.
func ParseOutcome(s string) (Outcome, error) {
	o := Outcome(strings.ToLower(strings.TrimSpace(s)))
	switch o {
	case OutcomeAccepted, OutcomeDismissed, OutcomeSnoozed:
		return o, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownOutcome, s)
}

// Status is the lifecycle position of an intervention:
// created -> triggered -> accepted | dismissed | snoozed.
type Status string

const (
	StatusCreated   Status = "created"
	StatusTriggered Status = "triggered"
	StatusAccepted  Status = "accepted"
	StatusDismissed Status = "dismissed"
	StatusSnoozed   Status = "snoozed"
)

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool {
	return s == StatusAccepted || s == StatusDismissed || s == StatusSnoozed
}

// StatusFor maps an outcome to its terminal status.
func StatusFor(o Outcome) Status {
	return Status(o)
}

// ActionKind names what the on-page renderer should offer.
type ActionKind string

const (
	ActionOpenURL     ActionKind = "open_url"
	ActionShowOverlay ActionKind = "show_overlay"
	ActionBlockSite   ActionKind = "block_site"
	ActionStartTimer  ActionKind = "start_timer"
)

// Action is an optional call-to-action attached to an intervention.
type Action struct {
	Kind    ActionKind `json:"kind"`
	Payload string     `json:"payload,omitempty"`
}

// Intervention is a single proactive nudge surfaced to the user.
type Intervention struct {
	ID          string           `json:"id"`
	Type        InterventionType `json:"type"`
	Title       string           `json:"title"`
	Message     string           `json:"message"`
	Priority    Priority         `json:"priority"`
	Date        string           `json:"date"`
	Status      Status           `json:"status"`
	Outcome     Outcome          `json:"outcome,omitempty"`
	Timestamp   time.Time        `json:"timestamp"`
	TriggeredAt *time.Time       `json:"triggered_at,omitempty"`
	Dismissed   bool             `json:"dismissed"`
	DismissedAt *time.Time       `json:"dismissed_at,omitempty"`
	Action      *Action          `json:"action,omitempty"`
}
