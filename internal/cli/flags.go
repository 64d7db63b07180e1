package cli

// GlobalFlags holds flags available to all subcommands.
type GlobalFlags struct {
	Config  string `long:"config" description:"Path to config file" default:""`
	JSON    bool   `long:"json" description:"Output in JSON format"`
	Verbose bool   `long:"verbose" description:"Enable verbose output"`
	Version bool   `long:"version" description:"Show version and exit"`
}

// StatusCommand shows database health, today's numbers and daemon state.
type StatusCommand struct {
	globals *GlobalFlags
	version string
}

// IngestCommand runs the daemon: the HTTP API plus the background monitor.
type IngestCommand struct {
	Host     string `long:"host" description:"Override daemon listen address"`
	Port     int    `long:"port" description:"Override daemon port"`
	LogLevel string `long:"log-level" description:"Override log level"`

	globals *GlobalFlags
	version string
}

// RecordCommand records one finished visit by hand.
type RecordCommand struct {
	URL      string `long:"url" description:"Visited URL (required)"`
	Title    string `long:"title" description:"Page title"`
	Duration string `long:"duration" description:"Time spent on the page (e.g., 90s, 5m, 1h)" default:"1m"`
	End      string `long:"end" description:"When the visit ended, RFC3339 (default now)"`

	globals *GlobalFlags
	version string
}

// StatsCommand prints daily, range, weekly or monthly statistics.
type StatsCommand struct {
	Date  string `long:"date" description:"Day to show, YYYY-MM-DD (default today)"`
	Start string `long:"start" description:"First day of a range, YYYY-MM-DD"`
	End   string `long:"end" description:"Last day of a range, YYYY-MM-DD"`
	Week  bool   `long:"week" description:"Show the Monday-Sunday week containing --date"`
	Month string `long:"month" description:"Show a calendar month, YYYY-MM"`

	globals *GlobalFlags
	version string
}

// TopCommand ranks the sites with the most time for one day.
type TopCommand struct {
	Date     string `long:"date" description:"Day to rank, YYYY-MM-DD (default today)"`
	Category string `long:"category" description:"productive | neutral | distraction" default:"distraction"`
	Limit    int    `long:"limit" description:"Maximum sites (0 uses the configured limit)" default:"0"`

	globals *GlobalFlags
	version string
}

// ExportCommand writes every stored record as JSON.
type ExportCommand struct {
	Output string `long:"output" short:"o" description:"Write to file instead of stdout"`

	globals *GlobalFlags
	version string
}

// TaskCommand shows, sets or clears the active task.
type TaskCommand struct {
	Clear bool `long:"clear" description:"Clear the active task"`
	Args  struct {
		Title []string `positional-arg-name:"title"`
	} `positional-args:"yes"`

	globals *GlobalFlags
	version string
}

// InterventionsCommand lists interventions or records an outcome for one.
type InterventionsCommand struct {
	Date    string `long:"date" description:"Only interventions for this day, YYYY-MM-DD"`
	Status  string `long:"status" description:"created | triggered | accepted | dismissed | snoozed"`
	Limit   int    `long:"limit" description:"Maximum results" default:"20"`
	ID      string `long:"id" description:"Intervention to record an outcome for"`
	Outcome string `long:"outcome" description:"accepted | dismissed | snoozed (requires --id)"`

	globals *GlobalFlags
	version string
}

// PruneCommand removes records older than the retention window.
type PruneCommand struct {
	OlderThan string `long:"older-than" description:"Override retention period (e.g., 30d)"`
	DryRun    bool   `long:"dry-run" description:"Show what would be pruned without deleting"`

	globals *GlobalFlags
	version string
}

// PurgeCommand deletes ALL focuslens data after a safety confirmation.
type PurgeCommand struct {
	All   bool `long:"all" description:"Required flag to confirm purge intent"`
	Force bool `long:"force" description:"Skip safety confirmation prompt"`

	globals *GlobalFlags
	version string
}
