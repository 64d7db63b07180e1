package cli

import (
	"bytes"
	"os"
	"strings"
	"testing"

	goflags "github.com/jessevdk/go-flags"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// parseOnly parses args without running the matched command.
func parseOnly(t *testing.T, args ...string) (*GlobalFlags, *commands, error) {
	t.Helper()
	p, globals, cmds := buildParser("test")
	p.CommandHandler = func(goflags.Commander, []string) error { return nil }
	_, err := p.ParseArgs(args)
	return globals, cmds, err
}

func TestVersionFlag(t *testing.T) {
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	err := RunWithArgs("0.1.0-test", []string{"--version"})

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	buf.ReadFrom(r)
	output := buf.String()

	assert.NoError(t, err)
	assert.Contains(t, output, "focuslens 0.1.0-test")
}

func TestVersionOutputFormat(t *testing.T) {
	output := captureOutput(t, func() {
		_ = RunWithArgs("1.2.3", []string{"--version"})
	})
	assert.Equal(t, "focuslens 1.2.3", strings.TrimSpace(output))
}

func TestAllSubcommandsExist(t *testing.T) {
	expected := []string{"status", "ingest", "record", "stats", "top", "export", "task", "interventions", "prune", "purge"}
	parser, _, _ := buildParser("test")

	for _, name := range expected {
		cmd := parser.Find(name)
		assert.NotNil(t, cmd, "subcommand %q should exist", name)
	}
}

func TestRemovedSubcommandsAreGone(t *testing.T) {
	parser, _, _ := buildParser("test")
	for _, name := range []string{"search", "open", "add"} {
		assert.Nil(t, parser.Find(name), "subcommand %q should not exist", name)
	}
}

func TestUnknownSubcommandFails(t *testing.T) {
	_, _, err := parseOnly(t, "nonexistent")
	require.Error(t, err)
}

func TestHelpFlagDoesNotError(t *testing.T) {
	err := RunWithArgs("test", []string{"--help"})
	assert.NoError(t, err)
}

func TestGlobalFlags(t *testing.T) {
	globals, _, err := parseOnly(t, "--json", "--verbose", "--config", "/tmp/test.yaml", "status")
	require.NoError(t, err)
	assert.True(t, globals.JSON)
	assert.True(t, globals.Verbose)
	assert.Equal(t, "/tmp/test.yaml", globals.Config)
}

func TestIngestFlags(t *testing.T) {
	_, c, err := parseOnly(t, "ingest", "--host", "0.0.0.0", "--port", "9999", "--log-level", "trace")
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", c.Ingest.Host)
	assert.Equal(t, 9999, c.Ingest.Port)
	assert.Equal(t, "trace", c.Ingest.LogLevel)
}

func TestRecordFlagDefaults(t *testing.T) {
	_, c, err := parseOnly(t, "record", "--url", "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", c.Record.URL)
	assert.Equal(t, "1m", c.Record.Duration)
	assert.Empty(t, c.Record.End)
}

func TestTopFlagDefaults(t *testing.T) {
	_, c, err := parseOnly(t, "top")
	require.NoError(t, err)
	assert.Equal(t, "distraction", c.Top.Category)
	assert.Equal(t, 0, c.Top.Limit)
}

func TestStatsFlags(t *testing.T) {
	_, c, err := parseOnly(t, "stats", "--week", "--date", "2026-03-04")
	require.NoError(t, err)
	assert.True(t, c.Stats.Week)
	assert.Equal(t, "2026-03-04", c.Stats.Date)
}

func TestTaskPositionalTitle(t *testing.T) {
	_, c, err := parseOnly(t, "task", "write", "the", "report")
	require.NoError(t, err)
	assert.Equal(t, []string{"write", "the", "report"}, c.Task.Args.Title)
	assert.False(t, c.Task.Clear)
}

func TestInterventionsFlagDefaults(t *testing.T) {
	_, c, err := parseOnly(t, "interventions")
	require.NoError(t, err)
	assert.Equal(t, 20, c.Interventions.Limit)
	assert.Empty(t, c.Interventions.Outcome)
}

func TestExportShortOutputFlag(t *testing.T) {
	_, c, err := parseOnly(t, "export", "-o", "/tmp/out.json")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/out.json", c.Export.Output)
}

func TestPruneFlags(t *testing.T) {
	_, c, err := parseOnly(t, "prune", "--dry-run", "--older-than", "7d")
	require.NoError(t, err)
	assert.True(t, c.Prune.DryRun)
	assert.Equal(t, "7d", c.Prune.OlderThan)
}

func TestPurgeForceFlag(t *testing.T) {
	_, c, err := parseOnly(t, "purge", "--all", "--force")
	require.NoError(t, err)
	assert.True(t, c.Purge.All)
	assert.True(t, c.Purge.Force)
}

func TestRecordRequiresURL(t *testing.T) {
	err := RunWithArgs("test", []string{"record", "--title", "Test"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--url is required")
}

func TestPurgeRequiresAll(t *testing.T) {
	err := RunWithArgs("test", []string{"purge"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "purge requires --all flag for safety")
}

func TestCommandsUseGivenConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := dir + "/config.yaml"
	require.NoError(t, os.WriteFile(cfgPath, []byte("location: UTC\nstorage:\n  path: "+dir+"\n  sqlite_file: test.db\n"), 0644))

	out := captureOutput(t, func() {
		require.NoError(t, RunWithArgs("test", []string{"--config", cfgPath, "--json", "task", "ship", "it"}))
	})
	assert.Contains(t, out, `"title": "ship it"`)

	_, err := os.Stat(dir + "/test.db")
	assert.NoError(t, err)
}
