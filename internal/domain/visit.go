package domain

import "time"

// DateLayout is the calendar-day key format used for all per-day records.
const DateLayout = "2006-01-02"

// SiteVisit is one closed interval of attention on one page. Visits are
// immutable once persisted.
type SiteVisit struct {
	ID          string      `json:"id"`
	URL         string      `json:"url"`
	Domain      string      `json:"domain"`
	Title       string      `json:"title"`
	StartTime   time.Time   `json:"start_time"`
	EndTime     time.Time   `json:"end_time"`
	DurationMs  int64       `json:"duration_ms"`
	Category    Category    `json:"category"`
	Subcategory Subcategory `json:"subcategory"`
	Date        string      `json:"date"`
}

// DateOf returns the calendar-day key of t in loc.
func DateOf(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(DateLayout)
}

// ParseDate parses a YYYY-MM-DD key as midnight in loc.
func ParseDate(date string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	return time.ParseInLocation(DateLayout, date, loc)
}

// Task is the user's declared current goal, used for goal checks.
type Task struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}
