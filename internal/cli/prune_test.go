package cli

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/focuslens/internal/storage"
)

// setupPruneTest records one visit daysAgo days back and one today.
func setupPruneTest(t *testing.T, daysAgo int) *app {
	t.Helper()
	a, clk := newTestApp(t)
	clk.Set(testNow.AddDate(0, 0, -daysAgo))
	recordVisit(t, a, "https://github.com/old", 10*time.Minute)
	clk.Set(testNow)
	recordVisit(t, a, "https://github.com/new", 10*time.Minute)
	return a
}

func countVisits(t *testing.T, a *app) int64 {
	t.Helper()
	stats, err := a.store.GetStats(context.Background())
	require.NoError(t, err)
	return stats.TotalVisits
}

func TestPrune_DefaultRetention(t *testing.T) {
	a := setupPruneTest(t, 100)
	cmd := &PruneCommand{globals: &GlobalFlags{}}

	var err error
	out := captureOutput(t, func() {
		err = cmd.executeWithApp(context.Background(), a)
	})
	require.NoError(t, err)
	assert.Contains(t, out, "Pruned records older than 90 days (before 2025-12-04)")
	assert.Contains(t, out, "Visits:        1")
	assert.Contains(t, out, "Daily stats:   1")
	assert.Equal(t, int64(1), countVisits(t, a))
}

func TestPrune_KeepsRecordsInsideWindow(t *testing.T) {
	a := setupPruneTest(t, 30)
	cmd := &PruneCommand{globals: &GlobalFlags{}}

	_ = captureOutput(t, func() {
		require.NoError(t, cmd.executeWithApp(context.Background(), a))
	})
	assert.Equal(t, int64(2), countVisits(t, a))
}

func TestPrune_CustomOlderThan(t *testing.T) {
	a := setupPruneTest(t, 30)
	cmd := &PruneCommand{OlderThan: "2w", globals: &GlobalFlags{}}

	var err error
	out := captureOutput(t, func() {
		err = cmd.executeWithApp(context.Background(), a)
	})
	require.NoError(t, err)
	assert.Contains(t, out, "older than 14 days")
	assert.Equal(t, int64(1), countVisits(t, a))
}

func TestPrune_DryRunDeletesNothing(t *testing.T) {
	a := setupPruneTest(t, 100)
	cmd := &PruneCommand{DryRun: true, globals: &GlobalFlags{JSON: true}}

	var err error
	out := captureOutput(t, func() {
		err = cmd.executeWithApp(context.Background(), a)
	})
	require.NoError(t, err)

	var got pruneJSON
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.True(t, got.DryRun)
	assert.Equal(t, "2025-12-04", got.Before)
	assert.Equal(t, storage.PruneResult{Visits: 1, DailyStats: 1}, got.Result)
	assert.Equal(t, int64(2), countVisits(t, a))
}

func TestPrune_JSONOutput(t *testing.T) {
	a := setupPruneTest(t, 100)
	cmd := &PruneCommand{globals: &GlobalFlags{JSON: true}}

	var err error
	out := captureOutput(t, func() {
		err = cmd.executeWithApp(context.Background(), a)
	})
	require.NoError(t, err)

	var got pruneJSON
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.False(t, got.DryRun)
	assert.Equal(t, int64(2), got.Result.Total())
}

func TestPrune_NothingToPrune(t *testing.T) {
	a, _ := newTestApp(t)
	cmd := &PruneCommand{globals: &GlobalFlags{}}

	var err error
	out := captureOutput(t, func() {
		err = cmd.executeWithApp(context.Background(), a)
	})
	require.NoError(t, err)
	assert.Contains(t, out, "Visits:        0")
}

func TestPrune_InvalidOlderThan(t *testing.T) {
	a, _ := newTestApp(t)
	for _, bad := range []string{"forever", "0d"} {
		cmd := &PruneCommand{OlderThan: bad, globals: &GlobalFlags{}}
		assert.Error(t, cmd.executeWithApp(context.Background(), a), bad)
	}
}
