package domain

import "time"

// UserState is a behavioral snapshot derived from the most recent visits.
type UserState struct {
	FocusLevel       int           `json:"focus_level"`
	DistractionScore int           `json:"distraction_score"`
	CurrentActivity  Subcategory   `json:"current_activity"`
	SessionStart     time.Time     `json:"session_start"`
	SessionDuration  time.Duration `json:"session_duration"`
	BreaksSinceFocus int           `json:"breaks_since_focus"`
	LastBreakTime    *time.Time    `json:"last_break_time,omitempty"`
	UpdatedAt        time.Time     `json:"updated_at"`
}
