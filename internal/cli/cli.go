package cli

import (
	"fmt"
	"os"

	goflags "github.com/jessevdk/go-flags"
)

// commands holds references to all subcommand structs for inspection/testing.
type commands struct {
	Status        *StatusCommand
	Ingest        *IngestCommand
	Record        *RecordCommand
	Stats         *StatsCommand
	Top           *TopCommand
	Export        *ExportCommand
	Task          *TaskCommand
	Interventions *InterventionsCommand
	Prune         *PruneCommand
	Purge         *PurgeCommand
}

// buildParser constructs the go-flags parser with all subcommands registered.
func buildParser(version string) (*goflags.Parser, *GlobalFlags, *commands) {
	var globals GlobalFlags

	parser := goflags.NewParser(&globals, goflags.Default)
	parser.Name = "focuslens"
	parser.LongDescription = "Local browsing time tracking, productivity statistics and focus nudges."

	cmds := &commands{
		Status:        &StatusCommand{globals: &globals, version: version},
		Ingest:        &IngestCommand{globals: &globals, version: version},
		Record:        &RecordCommand{globals: &globals, version: version},
		Stats:         &StatsCommand{globals: &globals, version: version},
		Top:           &TopCommand{globals: &globals, version: version},
		Export:        &ExportCommand{globals: &globals, version: version},
		Task:          &TaskCommand{globals: &globals, version: version},
		Interventions: &InterventionsCommand{globals: &globals, version: version},
		Prune:         &PruneCommand{globals: &globals, version: version},
		Purge:         &PurgeCommand{globals: &globals, version: version},
	}

	parser.AddCommand("status", "Show database health and today's numbers", "Show database statistics, today's productivity, the active task and whether the daemon is running.", cmds.Status)
	parser.AddCommand("ingest", "Start the focuslens daemon", "Start the focuslens daemon: the local HTTP API and the background monitor.", cmds.Ingest)
	parser.AddCommand("record", "Record a visit by hand", "Record one finished visit through the full pipeline.", cmds.Record)
	parser.AddCommand("stats", "Show productivity statistics", "Show daily, range, weekly or monthly productivity statistics.", cmds.Stats)
	parser.AddCommand("top", "Rank sites by time spent", "Rank the sites with the most time for one day and category.", cmds.Top)
	parser.AddCommand("export", "Export all data as JSON", "Export every stored visit, daily aggregate and intervention as JSON.", cmds.Export)
	parser.AddCommand("task", "Show, set or clear the active task", "Show, set or clear the task that goal checks compare browsing against.", cmds.Task)
	parser.AddCommand("interventions", "List interventions or record an outcome", "List stored interventions, or record the outcome of one with --id and --outcome.", cmds.Interventions)
	parser.AddCommand("prune", "Apply retention pruning", "Remove visits, daily stats and interventions older than the retention window.", cmds.Prune)
	parser.AddCommand("purge", "Delete ALL focuslens data", "Delete ALL focuslens data. Destructive operation with safety prompt.", cmds.Purge)

	return parser, &globals, cmds
}

// Run is the main entry point for the focuslens CLI using os.Args.
func Run(version string) error {
	return RunWithArgs(version, nil)
}

// RunWithArgs parses the given args (or os.Args if nil) and executes the matched subcommand.
func RunWithArgs(version string, args []string) error {
	// go-flags requires a subcommand, but --version is valid without one.
	checkArgs := args
	if checkArgs == nil {
		checkArgs = os.Args[1:]
	}
	for _, arg := range checkArgs {
		if arg == "--version" {
			fmt.Printf("focuslens %s\n", version)
			return nil
		}
		if arg == "--" {
			break
		}
	}

	parser, _, _ := buildParser(version)

	var err error
	if args != nil {
		_, err = parser.ParseArgs(args)
	} else {
		_, err = parser.Parse()
	}

	if err != nil {
		if flagsErr, ok := err.(*goflags.Error); ok {
			if flagsErr.Type == goflags.ErrHelp {
				return nil
			}
		}
		return err
	}

	return nil
}
