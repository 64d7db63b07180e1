package domain

import "time"

// SiteTime pairs a domain with time accumulated on it.
type SiteTime struct {
	Domain string `json:"domain"`
	TimeMs int64  `json:"time_ms"`
}

// DailyStats is the mutable aggregate for one calendar day. Only the stats
// aggregator writes it.
type DailyStats struct {
	Date                   string                `json:"date"`
	FocusTimeMs            int64                 `json:"focus_time_ms"`
	DistractionTimeMs      int64                 `json:"distraction_time_ms"`
	NeutralTimeMs          int64                 `json:"neutral_time_ms"`
	InterventionsTriggered int64                 `json:"interventions_triggered"`
	InterventionsAccepted  int64                 `json:"interventions_accepted"`
	InterventionsDismissed int64                 `json:"interventions_dismissed"`
	InterventionsSnoozed   int64                 `json:"interventions_snoozed"`
	ProductivityScore      int                   `json:"productivity_score"`
	TopDistractions        []SiteTime            `json:"top_distractions"`
	TopFocusSites          []SiteTime            `json:"top_focus_sites"`
	SitesByCategory        map[Subcategory]int64 `json:"sites_by_category"`
	HourlyBreakdown        [24]int64             `json:"hourly_breakdown"`
	FocusStreak            int                   `json:"focus_streak"`
	UpdatedAt              time.Time             `json:"updated_at"`
}

// NewDailyStats returns an all-zero record for date.
func NewDailyStats(date string) *DailyStats {
	return &DailyStats{
		Date:            date,
		TopDistractions: []SiteTime{},
		TopFocusSites:   []SiteTime{},
		SitesByCategory: map[Subcategory]int64{},
	}
}

// TotalTimeMs is the sum of the three category buckets.
func (d *DailyStats) TotalTimeMs() int64 {
	return d.FocusTimeMs + d.DistractionTimeMs + d.NeutralTimeMs
}

// AddTime adds ms to the bucket for c.
func (d *DailyStats) AddTime(c Category, ms int64) {
	switch c {
	case CategoryProductive:
		d.FocusTimeMs += ms
	case CategoryDistraction:
		d.DistractionTimeMs += ms
	default:
		d.NeutralTimeMs += ms
	}
}

// Rollup is a read-only fold of DailyStats over a date range. Weekly and
// monthly stats are both rollups; they are never persisted.
type Rollup struct {
	Start                  string  `json:"start"`
	End                    string  `json:"end"`
	Days                   int     `json:"days"`
	FocusTimeMs            int64   `json:"focus_time_ms"`
	DistractionTimeMs      int64   `json:"distraction_time_ms"`
	NeutralTimeMs          int64   `json:"neutral_time_ms"`
	AverageScore           float64 `json:"average_score"`
	BestDay                string  `json:"best_day,omitempty"`
	BestScore              int     `json:"best_score"`
	WorstDay               string  `json:"worst_day,omitempty"`
	WorstScore             int     `json:"worst_score"`
	InterventionsTriggered int64   `json:"interventions_triggered"`
	InterventionsAccepted  int64   `json:"interventions_accepted"`
	InterventionsDismissed int64   `json:"interventions_dismissed"`
	InterventionsSnoozed   int64   `json:"interventions_snoozed"`
	AcceptanceRate         float64 `json:"acceptance_rate"`
}
