package cli

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/runnerr0/focuslens/internal/config"
	"github.com/runnerr0/focuslens/internal/domain"
	"github.com/runnerr0/focuslens/internal/storage"
)

// statusJSON is the JSON output structure for the status command.
type statusJSON struct {
	Version            string            `json:"version"`
	DatabasePath       string            `json:"database_path"`
	DatabaseSizeBytes  int64             `json:"database_size_bytes"`
	TotalVisits        int64             `json:"total_visits"`
	TotalDays          int64             `json:"total_days"`
	TotalInterventions int64             `json:"total_interventions"`
	OldestVisit        string            `json:"oldest_visit,omitempty"`
	NewestVisit        string            `json:"newest_visit,omitempty"`
	RetentionDays      int               `json:"retention_days"`
	TopDomains         []domain.SiteTime `json:"top_domains"`
	Today              todayJSON         `json:"today"`
	Streak             int               `json:"streak"`
	ActiveTask         string            `json:"active_task,omitempty"`
	DaemonRunning      bool              `json:"daemon_running"`
	OracleEnabled      bool              `json:"oracle_enabled"`
}

type todayJSON struct {
	Date              string `json:"date"`
	ProductivityScore int    `json:"productivity_score"`
	FocusTimeMs       int64  `json:"focus_time_ms"`
	DistractionTimeMs int64  `json:"distraction_time_ms"`
	NeutralTimeMs     int64  `json:"neutral_time_ms"`
}

// statusReport gathers everything the status command prints.
type statusReport struct {
	stats   *storage.Stats
	today   *domain.DailyStats
	streak  int
	task    *domain.Task
	dbPath  string
	dbSize  int64
	running bool
}

// Execute implements the go-flags Commander interface for StatusCommand.
func (c *StatusCommand) Execute(args []string) error {
	return withApp(c.globals, c.version, c.executeWithApp)
}

// executeWithApp runs status against a provided app (for testing).
func (c *StatusCommand) executeWithApp(ctx context.Context, a *app) error {
	stats, err := a.store.GetStats(ctx)
	if err != nil {
		return fmt.Errorf("get stats: %w", err)
	}
	today, err := a.mon.Today(ctx)
	if err != nil {
		return fmt.Errorf("get today: %w", err)
	}
	streak, err := a.mon.CurrentStreak(ctx)
	if err != nil {
		return fmt.Errorf("get streak: %w", err)
	}
	task, err := a.mon.ActiveTask(ctx)
	if err != nil {
		return fmt.Errorf("get task: %w", err)
	}

	rep := statusReport{
		stats:   stats,
		today:   today,
		streak:  streak,
		task:    task,
		dbPath:  a.dbPath,
		dbSize:  getDatabaseSize(a.db, a.dbPath),
		running: checkDaemon(a.cfg.Daemon),
	}

	if jsonOutput(c.globals) {
		return c.printStatusJSON(a.cfg, rep)
	}
	return c.printStatusHuman(a.cfg, rep)
}

func (c *StatusCommand) printStatusHuman(cfg *config.Config, rep statusReport) error {
	stats := rep.stats
	fmt.Println("focuslens Status")
	fmt.Println("================")
	fmt.Printf("Version:       %s\n", c.version)
	fmt.Printf("Database:      %s (%s)\n", rep.dbPath, formatBytes(rep.dbSize))
	fmt.Printf("Visits:        %s\n", formatNumber(stats.TotalVisits))
	fmt.Printf("Days:          %s\n", formatNumber(stats.TotalDays))
	fmt.Printf("Interventions: %s\n", formatNumber(stats.TotalInterventions))

	if stats.TotalVisits > 0 {
		fmt.Printf("Oldest:        %s\n", stats.OldestVisit.Local().Format(domain.DateLayout))
		fmt.Printf("Newest:        %s\n", stats.NewestVisit.Local().Format(domain.DateLayout))
	}

	fmt.Printf("Retention:     %d days\n", cfg.Retention.Days)

	fmt.Println()
	fmt.Printf("Today:         %s, score %d\n", rep.today.Date, rep.today.ProductivityScore)
	fmt.Printf("  Focus:       %s\n", formatMs(rep.today.FocusTimeMs))
	fmt.Printf("  Distraction: %s\n", formatMs(rep.today.DistractionTimeMs))
	fmt.Printf("  Neutral:     %s\n", formatMs(rep.today.NeutralTimeMs))
	fmt.Printf("Streak:        %d days\n", rep.streak)
	if rep.task != nil {
		fmt.Printf("Task:          %s\n", rep.task.Title)
	}

	if len(stats.TopDomains) > 0 {
		fmt.Println()
		fmt.Println("Top Domains:")
		for _, d := range stats.TopDomains {
			fmt.Printf("  %-20s %s\n", d.Domain, formatMs(d.TimeMs))
		}
	}

	fmt.Println()
	if rep.running {
		fmt.Println("Daemon:        running")
	} else {
		fmt.Println("Daemon:        not running")
	}
	if cfg.Oracle.Enabled {
		fmt.Printf("Oracle:        %s (%s)\n", cfg.Oracle.Model, cfg.Oracle.URL)
	} else {
		fmt.Println("Oracle:        disabled")
	}

	return nil
}

func (c *StatusCommand) printStatusJSON(cfg *config.Config, rep statusReport) error {
	stats := rep.stats
	out := statusJSON{
		Version:            c.version,
		DatabasePath:       rep.dbPath,
		DatabaseSizeBytes:  rep.dbSize,
		TotalVisits:        stats.TotalVisits,
		TotalDays:          stats.TotalDays,
		TotalInterventions: stats.TotalInterventions,
		RetentionDays:      cfg.Retention.Days,
		TopDomains:         stats.TopDomains,
		Today: todayJSON{
			Date:              rep.today.Date,
			ProductivityScore: rep.today.ProductivityScore,
			FocusTimeMs:       rep.today.FocusTimeMs,
			DistractionTimeMs: rep.today.DistractionTimeMs,
			NeutralTimeMs:     rep.today.NeutralTimeMs,
		},
		Streak:        rep.streak,
		DaemonRunning: rep.running,
		OracleEnabled: cfg.Oracle.Enabled,
	}
	if out.TopDomains == nil {
		out.TopDomains = []domain.SiteTime{}
	}
	if rep.task != nil {
		out.ActiveTask = rep.task.Title
	}

	if stats.TotalVisits > 0 {
		out.OldestVisit = stats.OldestVisit.UTC().Format(time.RFC3339)
		out.NewestVisit = stats.NewestVisit.UTC().Format(time.RFC3339)
	}

	return printJSON(out)
}

// getDatabaseSize returns the database file size in bytes.
// For on-disk databases, it uses os.Stat. For in-memory databases,
// it queries page_count * page_size.
func getDatabaseSize(db *sql.DB, dbPath string) int64 {
	if info, err := os.Stat(dbPath); err == nil {
		return info.Size()
	}

	var pageCount, pageSize int64
	if err := db.QueryRow("PRAGMA page_count").Scan(&pageCount); err != nil {
		return 0
	}
	if err := db.QueryRow("PRAGMA page_size").Scan(&pageSize); err != nil {
		return 0
	}
	return pageCount * pageSize
}

// checkDaemon attempts an HTTP GET to the configured daemon's status endpoint.
// Returns true if the daemon responds within 1 second.
func checkDaemon(cfg config.DaemonConfig) bool {
	if cfg.Port <= 0 {
		return false
	}
	host := cfg.Host
	if host == "" || host == "0.0.0.0" {
		host = "127.0.0.1"
	}
	client := &http.Client{Timeout: 1 * time.Second}
	resp, err := client.Get("http://" + net.JoinHostPort(host, strconv.Itoa(cfg.Port)) + "/status")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// formatBytes formats a byte count into a human-readable string.
func formatBytes(b int64) string {
	switch {
	case b >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(1<<30))
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/float64(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

// formatNumber formats an int64 with comma separators.
func formatNumber(n int64) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}

	var result strings.Builder
	remainder := len(s) % 3
	if remainder > 0 {
		result.WriteString(s[:remainder])
		if len(s) > remainder {
			result.WriteString(",")
		}
	}
	for i := remainder; i < len(s); i += 3 {
		if i > remainder {
			result.WriteString(",")
		}
		result.WriteString(s[i : i+3])
	}
	return result.String()
}
