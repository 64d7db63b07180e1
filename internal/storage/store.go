package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/runnerr0/focuslens/internal/domain"
)

// Store defines the interface for focuslens data operations.
type Store interface {
	AddVisit(ctx context.Context, v *domain.SiteVisit) error
	GetVisit(ctx context.Context, id string) (*domain.SiteVisit, error)
	ListVisits(ctx context.Context, q VisitQuery) ([]domain.SiteVisit, error)
	RecentVisits(ctx context.Context, n int) ([]domain.SiteVisit, error)
	TopSites(ctx context.Context, date string, category domain.Category, k int) ([]domain.SiteTime, error)

	GetDailyStats(ctx context.Context, date string) (*domain.DailyStats, error)
	PutDailyStats(ctx context.Context, d *domain.DailyStats) error
	DailyStatsRange(ctx context.Context, start, end string) ([]domain.DailyStats, error)

	AddIntervention(ctx context.Context, iv *domain.Intervention) error
	GetIntervention(ctx context.Context, id string) (*domain.Intervention, error)
	ListInterventions(ctx context.Context, q InterventionQuery) ([]domain.Intervention, error)
	MarkTriggered(ctx context.Context, id string, at time.Time) error
	SetOutcome(ctx context.Context, id string, outcome domain.Outcome, at time.Time, overwrite bool) (*OutcomeResult, error)

	GetSetting(ctx context.Context, key string) (string, error)
	PutSetting(ctx context.Context, key, value string) error
	DeleteSetting(ctx context.Context, key string) error

	IsExcluded(host string) bool
	AddExclusion(ctx context.Context, ruleType, value, reason string) error

	PruneExpired(ctx context.Context, beforeDate string) (PruneResult, error)
	CountExpired(ctx context.Context, beforeDate string) (PruneResult, error)
	PurgeAll(ctx context.Context) error
	Export(ctx context.Context, now time.Time) (*Export, error)
	GetStats(ctx context.Context) (*Stats, error)
	Close() error
}

// tsLayout is fixed-width so stored timestamps sort lexicographically.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

const visitColumns = `id, url, domain, title, start_time, end_time, duration_ms, category, subcategory, date`

const dailyColumns = `date,
	COALESCE(focus_time_ms, 0), COALESCE(distraction_time_ms, 0), COALESCE(neutral_time_ms, 0),
	COALESCE(interventions_triggered, 0), COALESCE(interventions_accepted, 0),
	COALESCE(interventions_dismissed, 0), COALESCE(interventions_snoozed, 0),
	COALESCE(productivity_score, 0), top_distractions, top_focus_sites,
	sites_by_category, hourly_breakdown, COALESCE(focus_streak, 0), updated_at`

const interventionColumns = `id, date, type, title, message, priority, status, outcome, ts,
	triggered_at, dismissed, dismissed_at, action_kind, action_payload`

// SQLiteStore implements Store backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB

	// Prepared statements
	insertVisit *sql.Stmt
	getVisit    *sql.Stmt
	getDaily    *sql.Stmt
	upsertDaily *sql.Stmt
	getIV       *sql.Stmt

	// Cached exclusion rules
	exclMu           sync.RWMutex
	domainExclusions []string
	regexExclusions  []*regexp.Regexp
}

// NewSQLiteStore creates a new SQLiteStore from an already-opened and migrated database.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}

	if err := s.prepareStatements(); err != nil {
		return nil, fmt.Errorf("prepare statements: %w", err)
	}

	if err := s.loadExclusions(); err != nil {
		return nil, fmt.Errorf("load exclusions: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) prepareStatements() error {
	var err error

	s.insertVisit, err = s.db.Prepare(`
		INSERT INTO visits (` + visitColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}

	s.getVisit, err = s.db.Prepare(`SELECT ` + visitColumns + ` FROM visits WHERE id = ?`)
	if err != nil {
		return err
	}

	s.getDaily, err = s.db.Prepare(`SELECT ` + dailyColumns + ` FROM daily_stats WHERE date = ?`)
	if err != nil {
		return err
	}

	s.upsertDaily, err = s.db.Prepare(`
		INSERT INTO daily_stats (
			date, focus_time_ms, distraction_time_ms, neutral_time_ms,
			interventions_triggered, interventions_accepted, interventions_dismissed, interventions_snoozed,
			productivity_score, top_distractions, top_focus_sites, sites_by_category,
			hourly_breakdown, focus_streak, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			focus_time_ms = excluded.focus_time_ms,
			distraction_time_ms = excluded.distraction_time_ms,
			neutral_time_ms = excluded.neutral_time_ms,
			interventions_triggered = excluded.interventions_triggered,
			interventions_accepted = excluded.interventions_accepted,
			interventions_dismissed = excluded.interventions_dismissed,
			interventions_snoozed = excluded.interventions_snoozed,
			productivity_score = excluded.productivity_score,
			top_distractions = excluded.top_distractions,
			top_focus_sites = excluded.top_focus_sites,
			sites_by_category = excluded.sites_by_category,
			hourly_breakdown = excluded.hourly_breakdown,
			focus_streak = excluded.focus_streak,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return err
	}

	s.getIV, err = s.db.Prepare(`SELECT ` + interventionColumns + ` FROM interventions WHERE id = ?`)
	if err != nil {
		return err
	}

	return nil
}

// loadExclusions loads domain and regex exclusion rules from the database.
func (s *SQLiteStore) loadExclusions() error {
	rows, err := s.db.Query("SELECT rule_type, rule_value FROM exclusions")
	if err != nil {
		return err
	}
	defer rows.Close()

	var domains []string
	var regexes []*regexp.Regexp
	for rows.Next() {
		var ruleType, ruleValue string
		if err := rows.Scan(&ruleType, &ruleValue); err != nil {
			return err
		}
		switch ruleType {
		case "domain":
			domains = append(domains, strings.ToLower(ruleValue))
		case "regex":
			re, err := regexp.Compile(ruleValue)
			if err != nil {
				continue // skip invalid regex
			}
			regexes = append(regexes, re)
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	s.exclMu.Lock()
	s.domainExclusions = domains
	s.regexExclusions = regexes
	s.exclMu.Unlock()
	return nil
}

// IsExcluded reports whether host, or any parent domain of it, is blocked by
// an exclusion rule.
func (s *SQLiteStore) IsExcluded(host string) bool {
	host = strings.ToLower(host)
	if host == "" {
		return false
	}

	s.exclMu.RLock()
	defer s.exclMu.RUnlock()

	for _, d := range s.domainExclusions {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	for _, re := range s.regexExclusions {
		if re.MatchString(host) {
			return true
		}
	}
	return false
}

// AddExclusion stores a user rule and refreshes the cache. Duplicates are ignored.
func (s *SQLiteStore) AddExclusion(ctx context.Context, ruleType, value, reason string) error {
	if ruleType != "domain" && ruleType != "regex" {
		return fmt.Errorf("invalid exclusion type %q", ruleType)
	}
	if ruleType == "regex" {
		if _, err := regexp.Compile(value); err != nil {
			return fmt.Errorf("invalid exclusion regex: %w", err)
		}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO exclusions (rule_type, rule_value, reason) VALUES (?, ?, ?)`,
		ruleType, value, reason,
	)
	if err != nil {
		return fmt.Errorf("insert exclusion: %w", err)
	}
	return s.loadExclusions()
}

// parseTimestamp tries several common SQLite timestamp formats.
func parseTimestamp(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
	}
	for _, f := range formats {
		if t, err := time.Parse(f, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse timestamp: %s", s)
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(tsLayout)
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return formatTimestamp(*t)
}

func parseNullTime(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t, err := parseTimestamp(ns.String)
	if err != nil {
		return nil
	}
	return &t
}

type scanner interface {
	Scan(dest ...interface{}) error
}

// ── Visits ─────────────────────────────────────────────────

// AddVisit persists a closed visit. The ID is assigned here when empty.
func (s *SQLiteStore) AddVisit(ctx context.Context, v *domain.SiteVisit) error {
	if v.DurationMs < 0 {
		return fmt.Errorf("insert visit: negative duration %d", v.DurationMs)
	}
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	_, err := s.insertVisit.ExecContext(ctx,
		v.ID, v.URL, v.Domain, v.Title,
		formatTimestamp(v.StartTime), formatTimestamp(v.EndTime),
		v.DurationMs, string(v.Category), string(v.Subcategory), v.Date,
	)
	if err != nil {
		return fmt.Errorf("insert visit: %w", err)
	}
	return nil
}

func scanVisit(sc scanner) (domain.SiteVisit, error) {
	var v domain.SiteVisit
	var start, end, category, subcategory string
	if err := sc.Scan(&v.ID, &v.URL, &v.Domain, &v.Title, &start, &end,
		&v.DurationMs, &category, &subcategory, &v.Date); err != nil {
		return v, err
	}
	v.StartTime, _ = parseTimestamp(start)
	v.EndTime, _ = parseTimestamp(end)
	v.Category = domain.Category(category)
	v.Subcategory = domain.NormalizeSubcategory(subcategory)
	return v, nil
}

// GetVisit retrieves a single visit by ID.
func (s *SQLiteStore) GetVisit(ctx context.Context, id string) (*domain.SiteVisit, error) {
	v, err := scanVisit(s.getVisit.QueryRowContext(ctx, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("visit %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get visit: %w", err)
	}
	return &v, nil
}

// ListVisits queries visits with optional filters, oldest first.
func (s *SQLiteStore) ListVisits(ctx context.Context, q VisitQuery) ([]domain.SiteVisit, error) {
	if q.Limit <= 0 {
		q.Limit = 100
	}

	var clauses []string
	var args []interface{}

	if q.Date != "" {
		clauses = append(clauses, "date = ?")
		args = append(args, q.Date)
	}
	if q.Domain != "" {
		clauses = append(clauses, "domain = ?")
		args = append(args, q.Domain)
	}
	if q.Category != "" {
		clauses = append(clauses, "category = ?")
		args = append(args, string(q.Category))
	}
	if !q.Since.IsZero() {
		clauses = append(clauses, "start_time >= ?")
		args = append(args, formatTimestamp(q.Since))
	}
	if !q.Until.IsZero() {
		clauses = append(clauses, "start_time <= ?")
		args = append(args, formatTimestamp(q.Until))
	}

	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}

	query := "SELECT " + visitColumns + " FROM visits" + where + " ORDER BY start_time ASC, rowid ASC LIMIT ? OFFSET ?"
	args = append(args, q.Limit, q.Offset)

	return s.queryVisits(ctx, query, args...)
}

// RecentVisits returns the n most recent visits in chronological order.
func (s *SQLiteStore) RecentVisits(ctx context.Context, n int) ([]domain.SiteVisit, error) {
	if n <= 0 {
		return []domain.SiteVisit{}, nil
	}
	visits, err := s.queryVisits(ctx,
		"SELECT "+visitColumns+" FROM visits ORDER BY start_time DESC, rowid DESC LIMIT ?", n)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(visits)-1; i < j; i, j = i+1, j-1 {
		visits[i], visits[j] = visits[j], visits[i]
	}
	return visits, nil
}

func (s *SQLiteStore) queryVisits(ctx context.Context, query string, args ...interface{}) ([]domain.SiteVisit, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query visits: %w", err)
	}
	defer rows.Close()

	visits := []domain.SiteVisit{}
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan visit: %w", err)
		}
		visits = append(visits, v)
	}
	return visits, rows.Err()
}

// TopSites sums visit durations by domain for one date and category,
// largest first.
func (s *SQLiteStore) TopSites(ctx context.Context, date string, category domain.Category, k int) ([]domain.SiteTime, error) {
	if k <= 0 {
		return []domain.SiteTime{}, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT domain, SUM(duration_ms) AS total
		FROM visits
		WHERE date = ? AND category = ?
		GROUP BY domain
		ORDER BY total DESC, domain ASC
		LIMIT ?
	`, date, string(category), k)
	if err != nil {
		return nil, fmt.Errorf("top sites: %w", err)
	}
	defer rows.Close()

	out := []domain.SiteTime{}
	for rows.Next() {
		var st domain.SiteTime
		if err := rows.Scan(&st.Domain, &st.TimeMs); err != nil {
			return nil, fmt.Errorf("scan top site: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// ── Daily stats ────────────────────────────────────────────

func scanDaily(sc scanner) (domain.DailyStats, error) {
	var d domain.DailyStats
	var topDist, topFocus, byCat, hourly sql.NullString
	var updated sql.NullString
	if err := sc.Scan(&d.Date,
		&d.FocusTimeMs, &d.DistractionTimeMs, &d.NeutralTimeMs,
		&d.InterventionsTriggered, &d.InterventionsAccepted,
		&d.InterventionsDismissed, &d.InterventionsSnoozed,
		&d.ProductivityScore, &topDist, &topFocus, &byCat, &hourly,
		&d.FocusStreak, &updated,
	); err != nil {
		return d, err
	}

	// Rows written by older installs may carry NULL or malformed JSON
	// columns; those default to empty rather than failing the read.
	d.TopDistractions = decodeSiteTimes(topDist)
	d.TopFocusSites = decodeSiteTimes(topFocus)
	d.SitesByCategory = map[domain.Subcategory]int64{}
	if byCat.Valid {
		_ = json.Unmarshal([]byte(byCat.String), &d.SitesByCategory)
		if d.SitesByCategory == nil {
			d.SitesByCategory = map[domain.Subcategory]int64{}
		}
	}
	if hourly.Valid {
		var slots []int64
		if json.Unmarshal([]byte(hourly.String), &slots) == nil {
			copy(d.HourlyBreakdown[:], slots)
		}
	}
	if t := parseNullTime(updated); t != nil {
		d.UpdatedAt = *t
	}
	if d.ProductivityScore < 0 {
		d.ProductivityScore = 0
	} else if d.ProductivityScore > 100 {
		d.ProductivityScore = 100
	}
	return d, nil
}

func decodeSiteTimes(ns sql.NullString) []domain.SiteTime {
	out := []domain.SiteTime{}
	if !ns.Valid {
		return out
	}
	if err := json.Unmarshal([]byte(ns.String), &out); err != nil || out == nil {
		return []domain.SiteTime{}
	}
	return out
}

// GetDailyStats returns the record for date, or ErrNotFound.
func (s *SQLiteStore) GetDailyStats(ctx context.Context, date string) (*domain.DailyStats, error) {
	d, err := scanDaily(s.getDaily.QueryRowContext(ctx, date))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("daily stats %s: %w", date, ErrNotFound)
		}
		return nil, fmt.Errorf("get daily stats: %w", err)
	}
	return &d, nil
}

// PutDailyStats inserts or replaces the record for d.Date.
func (s *SQLiteStore) PutDailyStats(ctx context.Context, d *domain.DailyStats) error {
	topDist, err := json.Marshal(nonNilSites(d.TopDistractions))
	if err != nil {
		return fmt.Errorf("encode top distractions: %w", err)
	}
	topFocus, err := json.Marshal(nonNilSites(d.TopFocusSites))
	if err != nil {
		return fmt.Errorf("encode top focus sites: %w", err)
	}
	byCat := d.SitesByCategory
	if byCat == nil {
		byCat = map[domain.Subcategory]int64{}
	}
	byCatJSON, err := json.Marshal(byCat)
	if err != nil {
		return fmt.Errorf("encode sites by category: %w", err)
	}
	hourly, err := json.Marshal(d.HourlyBreakdown)
	if err != nil {
		return fmt.Errorf("encode hourly breakdown: %w", err)
	}

	updated := d.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}

	_, err = s.upsertDaily.ExecContext(ctx,
		d.Date, d.FocusTimeMs, d.DistractionTimeMs, d.NeutralTimeMs,
		d.InterventionsTriggered, d.InterventionsAccepted, d.InterventionsDismissed, d.InterventionsSnoozed,
		d.ProductivityScore, string(topDist), string(topFocus), string(byCatJSON),
		string(hourly), d.FocusStreak, formatTimestamp(updated),
	)
	if err != nil {
		return fmt.Errorf("upsert daily stats: %w", err)
	}
	return nil
}

func nonNilSites(s []domain.SiteTime) []domain.SiteTime {
	if s == nil {
		return []domain.SiteTime{}
	}
	return s
}

// DailyStatsRange returns stored records with start <= date <= end, ascending.
func (s *SQLiteStore) DailyStatsRange(ctx context.Context, start, end string) ([]domain.DailyStats, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+dailyColumns+" FROM daily_stats WHERE date >= ? AND date <= ? ORDER BY date ASC",
		start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("query daily stats: %w", err)
	}
	defer rows.Close()

	out := []domain.DailyStats{}
	for rows.Next() {
		d, err := scanDaily(rows)
		if err != nil {
			return nil, fmt.Errorf("scan daily stats: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ── Interventions ──────────────────────────────────────────

// AddIntervention persists iv in the created state. The ID is assigned
// here when empty.
func (s *SQLiteStore) AddIntervention(ctx context.Context, iv *domain.Intervention) error {
	if iv.ID == "" {
		iv.ID = uuid.NewString()
	}
	iv.Status = domain.StatusCreated

	var kind, payload interface{}
	if iv.Action != nil {
		kind, payload = string(iv.Action.Kind), iv.Action.Payload
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO interventions (id, date, type, title, message, priority, status, ts, action_kind, action_payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, iv.ID, iv.Date, string(iv.Type), iv.Title, iv.Message, string(iv.Priority),
		string(iv.Status), formatTimestamp(iv.Timestamp), kind, payload)
	if err != nil {
		return fmt.Errorf("insert intervention: %w", err)
	}
	return nil
}

func scanIntervention(sc scanner) (domain.Intervention, error) {
	var iv domain.Intervention
	var typ, priority, status, ts string
	var outcome, triggered, dismissedAt, kind, payload sql.NullString
	if err := sc.Scan(&iv.ID, &iv.Date, &typ, &iv.Title, &iv.Message, &priority, &status,
		&outcome, &ts, &triggered, &iv.Dismissed, &dismissedAt, &kind, &payload); err != nil {
		return iv, err
	}
	iv.Type = domain.InterventionType(typ)
	iv.Priority = domain.Priority(priority)
	iv.Status = domain.Status(status)
	if outcome.Valid {
		iv.Outcome = domain.Outcome(outcome.String)
	}
	iv.Timestamp, _ = parseTimestamp(ts)
	iv.TriggeredAt = parseNullTime(triggered)
	iv.DismissedAt = parseNullTime(dismissedAt)
	if kind.Valid && kind.String != "" {
		iv.Action = &domain.Action{Kind: domain.ActionKind(kind.String), Payload: payload.String}
	}
	return iv, nil
}

// GetIntervention retrieves a single intervention by ID.
func (s *SQLiteStore) GetIntervention(ctx context.Context, id string) (*domain.Intervention, error) {
	iv, err := scanIntervention(s.getIV.QueryRowContext(ctx, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("intervention %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get intervention: %w", err)
	}
	return &iv, nil
}

// ListInterventions returns interventions matching q, oldest first.
func (s *SQLiteStore) ListInterventions(ctx context.Context, q InterventionQuery) ([]domain.Intervention, error) {
	if q.Limit <= 0 {
		q.Limit = 100
	}

	var clauses []string
	var args []interface{}
	if q.Date != "" {
		clauses = append(clauses, "date = ?")
		args = append(args, q.Date)
	}
	if q.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(q.Status))
	}
	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}
	args = append(args, q.Limit)

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+interventionColumns+" FROM interventions"+where+" ORDER BY ts ASC, rowid ASC LIMIT ?", args...)
	if err != nil {
		return nil, fmt.Errorf("query interventions: %w", err)
	}
	defer rows.Close()

	out := []domain.Intervention{}
	for rows.Next() {
		iv, err := scanIntervention(rows)
		if err != nil {
			return nil, fmt.Errorf("scan intervention: %w", err)
		}
		out = append(out, iv)
	}
	return out, rows.Err()
}

// MarkTriggered moves a created intervention to triggered.
func (s *SQLiteStore) MarkTriggered(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE interventions SET status = ?, triggered_at = ? WHERE id = ? AND status = ?",
		string(domain.StatusTriggered), formatTimestamp(at), id, string(domain.StatusCreated),
	)
	if err != nil {
		return fmt.Errorf("mark triggered: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	if _, err := s.GetIntervention(ctx, id); err != nil {
		return err
	}
	return fmt.Errorf("intervention %s: %w", id, ErrInvalidTransition)
}

// SetOutcome records the user outcome of a triggered intervention. When the
// intervention already has an outcome, overwrite decides whether the new
// outcome replaces it (Applied reports which happened).
func (s *SQLiteStore) SetOutcome(ctx context.Context, id string, outcome domain.Outcome, at time.Time, overwrite bool) (*OutcomeResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var status string
	err = tx.QueryRowContext(ctx, "SELECT status FROM interventions WHERE id = ?", id).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("intervention %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("read intervention status: %w", err)
	}

	prev := domain.Status(status)
	result := &OutcomeResult{Previous: prev}

	switch {
	case prev == domain.StatusTriggered:
		result.Applied = true
	case prev.Terminal() && overwrite:
		result.Applied = true
	case prev.Terminal():
		result.Applied = false
	default:
		return nil, fmt.Errorf("intervention %s is %s: %w", id, prev, ErrInvalidTransition)
	}

	if result.Applied {
		_, err = tx.ExecContext(ctx,
			"UPDATE interventions SET status = ?, outcome = ?, dismissed = 1, dismissed_at = ? WHERE id = ?",
			string(domain.StatusFor(outcome)), string(outcome), formatTimestamp(at), id,
		)
		if err != nil {
			return nil, fmt.Errorf("update outcome: %w", err)
		}
	}

	iv, err := scanIntervention(tx.QueryRowContext(ctx,
		"SELECT "+interventionColumns+" FROM interventions WHERE id = ?", id))
	if err != nil {
		return nil, fmt.Errorf("reload intervention: %w", err)
	}
	result.Intervention = &iv

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit outcome: %w", err)
	}
	return result, nil
}

// ── Settings ───────────────────────────────────────────────

// GetSetting returns the stored value for key, or ErrNotFound.
func (s *SQLiteStore) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("setting %s: %w", key, ErrNotFound)
		}
		return "", fmt.Errorf("get setting: %w", err)
	}
	return value, nil
}

// PutSetting inserts or replaces the value for key.
func (s *SQLiteStore) PutSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, formatTimestamp(time.Now()))
	if err != nil {
		return fmt.Errorf("put setting: %w", err)
	}
	return nil
}

// DeleteSetting removes key. Deleting a missing key is not an error.
func (s *SQLiteStore) DeleteSetting(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM settings WHERE key = ?", key); err != nil {
		return fmt.Errorf("delete setting: %w", err)
	}
	return nil
}

// ── Retention & maintenance ────────────────────────────────

// PruneExpired deletes visits, daily stats and interventions dated before
// beforeDate (YYYY-MM-DD). Settings are never pruned.
func (s *SQLiteStore) PruneExpired(ctx context.Context, beforeDate string) (PruneResult, error) {
	var result PruneResult

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	targets := []struct {
		table string
		count *int64
	}{
		{"visits", &result.Visits},
		{"daily_stats", &result.DailyStats},
		{"interventions", &result.Interventions},
	}
	for _, tgt := range targets {
		res, err := tx.ExecContext(ctx, "DELETE FROM "+tgt.table+" WHERE date < ?", beforeDate)
		if err != nil {
			return PruneResult{}, fmt.Errorf("prune %s: %w", tgt.table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return PruneResult{}, err
		}
		*tgt.count = n
	}

	detail := fmt.Sprintf("before=%s visits=%d daily_stats=%d interventions=%d",
		beforeDate, result.Visits, result.DailyStats, result.Interventions)
	if _, err := tx.ExecContext(ctx, "INSERT INTO audit_log (action, detail) VALUES (?, ?)", "prune", detail); err != nil {
		return PruneResult{}, fmt.Errorf("audit prune: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return PruneResult{}, fmt.Errorf("commit prune: %w", err)
	}
	return result, nil
}

// CountExpired reports what PruneExpired would delete for beforeDate.
func (s *SQLiteStore) CountExpired(ctx context.Context, beforeDate string) (PruneResult, error) {
	var result PruneResult
	targets := []struct {
		table string
		count *int64
	}{
		{"visits", &result.Visits},
		{"daily_stats", &result.DailyStats},
		{"interventions", &result.Interventions},
	}
	for _, tgt := range targets {
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+tgt.table+" WHERE date < ?", beforeDate).Scan(tgt.count)
		if err != nil {
			return PruneResult{}, fmt.Errorf("count expired %s: %w", tgt.table, err)
		}
	}
	return result, nil
}

// PurgeAll deletes every visit, aggregate, intervention and setting.
// Exclusion rules are kept.
func (s *SQLiteStore) PurgeAll(ctx context.Context) error {
	stmts := []string{
		"DELETE FROM visits",
		"DELETE FROM daily_stats",
		"DELETE FROM interventions",
		"DELETE FROM settings",
		"INSERT INTO audit_log (action, detail) VALUES ('purge', 'all data deleted')",
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("purge (%s): %w", stmt, err)
		}
	}
	return nil
}

// Export returns every persisted DailyStats, SiteVisit and Intervention.
func (s *SQLiteStore) Export(ctx context.Context, now time.Time) (*Export, error) {
	days, err := s.DailyStatsRange(ctx, "0000-00-00", "9999-99-99")
	if err != nil {
		return nil, err
	}
	visits, err := s.queryVisits(ctx, "SELECT "+visitColumns+" FROM visits ORDER BY start_time ASC, rowid ASC")
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, "SELECT "+interventionColumns+" FROM interventions ORDER BY ts ASC, rowid ASC")
	if err != nil {
		return nil, fmt.Errorf("query interventions: %w", err)
	}
	defer rows.Close()
	ivs := []domain.Intervention{}
	for rows.Next() {
		iv, err := scanIntervention(rows)
		if err != nil {
			return nil, fmt.Errorf("scan intervention: %w", err)
		}
		ivs = append(ivs, iv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &Export{
		Version:       ExportVersion,
		ExportedAt:    now.UTC(),
		DailyStats:    days,
		Visits:        visits,
		Interventions: ivs,
	}, nil
}

// GetStats returns aggregate statistics about the database.
func (s *SQLiteStore) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	counts := []struct {
		query string
		dest  *int64
	}{
		{"SELECT COUNT(*) FROM visits", &stats.TotalVisits},
		{"SELECT COUNT(*) FROM daily_stats", &stats.TotalDays},
		{"SELECT COUNT(*) FROM interventions", &stats.TotalInterventions},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("count (%s): %w", c.query, err)
		}
	}

	if stats.TotalVisits > 0 {
		var oldestStr, newestStr string
		err := s.db.QueryRowContext(ctx, "SELECT MIN(start_time), MAX(start_time) FROM visits").Scan(&oldestStr, &newestStr)
		if err != nil {
			return nil, fmt.Errorf("visit time range: %w", err)
		}
		stats.OldestVisit, _ = parseTimestamp(oldestStr)
		stats.NewestVisit, _ = parseTimestamp(newestStr)
	}

	var pageCount, pageSize int64
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err == nil {
		if err := s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize); err == nil {
			stats.DatabaseSizeBytes = pageCount * pageSize
		}
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT domain, SUM(duration_ms) AS total FROM visits GROUP BY domain ORDER BY total DESC LIMIT 10",
	)
	if err != nil {
		return nil, fmt.Errorf("top domains: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var st domain.SiteTime
		if err := rows.Scan(&st.Domain, &st.TimeMs); err != nil {
			return nil, err
		}
		stats.TopDomains = append(stats.TopDomains, st)
	}

	return stats, rows.Err()
}

// Close releases all prepared statements. The underlying *sql.DB is NOT
// closed; that is the caller's responsibility.
func (s *SQLiteStore) Close() error {
	stmts := []*sql.Stmt{
		s.insertVisit, s.getVisit, s.getDaily, s.upsertDaily, s.getIV,
	}
	for _, stmt := range stmts {
		if stmt != nil {
			stmt.Close()
		}
	}
	return nil
}
