package storage

import (
	"errors"
	"time"

	"github.com/runnerr0/focuslens/internal/domain"
)

var (
	// ErrNotFound is returned when a keyed record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidTransition is returned when an intervention status change
	// is not allowed by the lifecycle.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Setting keys for the settings singleton collection.
const (
	SettingCooldown   = "cooldown"
	SettingUserState  = "user_state"
	SettingActiveTask = "active_task"
)

// VisitQuery defines filters for listing visits.
type VisitQuery struct {
	Date     string
	Domain   string
	Category domain.Category
	Since    time.Time
	Until    time.Time
	Limit    int
	Offset   int
}

// InterventionQuery defines filters for listing interventions.
type InterventionQuery struct {
	Date   string
	Status domain.Status
	Limit  int
}

// OutcomeResult reports what SetOutcome did.
type OutcomeResult struct {
	Applied      bool
	Previous     domain.Status
	Intervention *domain.Intervention
}

// PruneResult counts records removed by a retention sweep.
type PruneResult struct {
	Visits        int64 `json:"visits"`
	DailyStats    int64 `json:"daily_stats"`
	Interventions int64 `json:"interventions"`
}

// Total returns the number of records removed.
func (p PruneResult) Total() int64 {
	return p.Visits + p.DailyStats + p.Interventions
}

// ExportVersion is bumped whenever the export schema changes shape.
const ExportVersion = 1

// Export is the user-initiated backup of every persisted record.
type Export struct {
	Version       int                   `json:"version"`
	ExportedAt    time.Time             `json:"exported_at"`
	DailyStats    []domain.DailyStats   `json:"daily_stats"`
	Visits        []domain.SiteVisit    `json:"visits"`
	Interventions []domain.Intervention `json:"interventions"`
}

// Stats holds aggregate statistics about the database.
type Stats struct {
	TotalVisits        int64
	TotalDays          int64
	TotalInterventions int64
	OldestVisit        time.Time
	NewestVisit        time.Time
	DatabaseSizeBytes  int64
	TopDomains         []domain.SiteTime
}
