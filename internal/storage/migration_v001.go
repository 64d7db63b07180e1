package storage

import (
	"database/sql"

	"github.com/runnerr0/focuslens/internal/config"
)

// migrateV001 creates the initial schema: the four logical collections
// (visits, daily_stats, interventions, settings), privacy exclusions and
// the audit log. Every statement uses IF NOT EXISTS for idempotency.
func migrateV001(tx *sql.Tx) error {
	stmts := []string{
		// ── Tables ──────────────────────────────────────────────

		`CREATE TABLE IF NOT EXISTS visits (
			id          TEXT PRIMARY KEY,
			url         TEXT NOT NULL,
			domain      TEXT NOT NULL DEFAULT '',
			title       TEXT NOT NULL DEFAULT '',
			start_time  DATETIME NOT NULL,
			end_time    DATETIME NOT NULL,
			duration_ms INTEGER NOT NULL CHECK (duration_ms >= 0),
			category    TEXT NOT NULL CHECK (category IN ('productive', 'neutral', 'distraction')),
			subcategory TEXT NOT NULL DEFAULT 'general',
			date        TEXT NOT NULL,
			created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS daily_stats (
			date                    TEXT PRIMARY KEY,
			focus_time_ms           INTEGER NOT NULL DEFAULT 0,
			distraction_time_ms     INTEGER NOT NULL DEFAULT 0,
			neutral_time_ms         INTEGER NOT NULL DEFAULT 0,
			interventions_triggered INTEGER NOT NULL DEFAULT 0,
			interventions_accepted  INTEGER NOT NULL DEFAULT 0,
			interventions_dismissed INTEGER NOT NULL DEFAULT 0,
			interventions_snoozed   INTEGER NOT NULL DEFAULT 0,
			productivity_score      INTEGER NOT NULL DEFAULT 0,
			top_distractions        TEXT,
			top_focus_sites         TEXT,
			sites_by_category       TEXT,
			hourly_breakdown        TEXT,
			focus_streak            INTEGER NOT NULL DEFAULT 0,
			updated_at              DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS interventions (
			id             TEXT PRIMARY KEY,
			date           TEXT NOT NULL,
			type           TEXT NOT NULL,
			title          TEXT NOT NULL DEFAULT '',
			message        TEXT NOT NULL DEFAULT '',
			priority       TEXT NOT NULL CHECK (priority IN ('low', 'medium', 'high', 'critical')),
			status         TEXT NOT NULL DEFAULT 'created',
			outcome        TEXT,
			ts             DATETIME NOT NULL,
			triggered_at   DATETIME,
			dismissed      BOOLEAN NOT NULL DEFAULT 0,
			dismissed_at   DATETIME,
			action_kind    TEXT,
			action_payload TEXT
		)`,

		`CREATE TABLE IF NOT EXISTS settings (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS exclusions (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			rule_type  TEXT NOT NULL CHECK (rule_type IN ('domain', 'regex')),
			rule_value TEXT NOT NULL,
			reason     TEXT NOT NULL DEFAULT '',
			is_default BOOLEAN NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(rule_type, rule_value)
		)`,

		`CREATE TABLE IF NOT EXISTS audit_log (
			id     INTEGER PRIMARY KEY AUTOINCREMENT,
			action TEXT NOT NULL,
			detail TEXT NOT NULL DEFAULT '',
			ts     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		// ── Indexes ────────────────────────────────────────────

		`CREATE INDEX IF NOT EXISTS idx_visits_date          ON visits(date)`,
		`CREATE INDEX IF NOT EXISTS idx_visits_domain        ON visits(domain)`,
		`CREATE INDEX IF NOT EXISTS idx_visits_date_category ON visits(date, category)`,
		`CREATE INDEX IF NOT EXISTS idx_visits_start_time    ON visits(start_time)`,
		`CREATE INDEX IF NOT EXISTS idx_interventions_date   ON interventions(date)`,
		`CREATE INDEX IF NOT EXISTS idx_interventions_status ON interventions(status)`,
		`CREATE INDEX IF NOT EXISTS idx_exclusions_rule      ON exclusions(rule_type, rule_value)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_log_ts         ON audit_log(ts)`,
	}

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}

	return seedDefaultExclusions(tx)
}

// seedDefaultExclusions inserts the curated denylist. Uses INSERT OR IGNORE
// so re-running is safe.
func seedDefaultExclusions(tx *sql.Tx) error {
	const insertSQL = `INSERT OR IGNORE INTO exclusions (rule_type, rule_value, reason, is_default) VALUES (?, ?, ?, 1)`

	for _, r := range config.DefaultExclusions() {
		if _, err := tx.Exec(insertSQL, r.Type, r.Value, r.Reason); err != nil {
			return err
		}
	}
	return nil
}
