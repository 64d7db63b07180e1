package config

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		Location: "Local",
		Retention: RetentionConfig{
			Days:               90,
			SweepIntervalHours: 24,
		},
		Capture: CaptureConfig{
			MinVisitSeconds:      5,
			FlushIntervalSeconds: 60,
			ExcludeIncognito:     true,
			DenylistDomains:      []string{},
			DenylistRegex:        []string{},
		},
		Classifier: DefaultClassifierRules(),
		Stats: StatsConfig{
			TopK:            5,
			StreakThreshold: 70,
		},
		Behavior: BehaviorConfig{
			WindowSize:       20,
			BreakGapMinutes:  5,
			IdleResetMinutes: 30,
		},
		Interventions: InterventionsConfig{
			Enabled:              true,
			CooldownMinutes:      10,
			TickMinutes:          5,
			DistractionThreshold: 70,
			FocusThreshold:       30,
			BreakAfterMinutes:    90,
			GoalCheckWindow:      5,
			QueueSize:            10,
			OutcomePolicy:        "first_wins",
		},
		Oracle: OracleConfig{
			Enabled:        false,
			Provider:       "ollama",
			URL:            "http://localhost:11434",
			Model:          "llama3.2",
			TimeoutSeconds: 5,
		},
		Storage: StorageConfig{
			Path:              "~/.config/focuslens",
			SQLiteFile:        "focuslens.db",
			SQLiteJournalMode: "wal",
		},
		Daemon: DaemonConfig{
			Host:           "127.0.0.1",
			Port:           8731,
			AuthToken:      "",
			MaxRequestSize: 1048576,
		},
		Logging: LoggingConfig{
			Level:      "info",
			File:       "",
			JSON:       false,
			MaxSize:    10,
			MaxBackups: 3,
		},
	}
}
