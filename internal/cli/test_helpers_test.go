package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/runnerr0/focuslens/internal/clock"
	"github.com/runnerr0/focuslens/internal/config"
	"github.com/runnerr0/focuslens/internal/monitor"
	"github.com/runnerr0/focuslens/internal/recorder"
	"github.com/runnerr0/focuslens/internal/storage"
)

var testNow = time.Date(2026, 3, 4, 9, 30, 0, 0, time.UTC)

// captureOutput captures stdout during fn execution and returns it as a string.
func captureOutput(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	return buf.String()
}

// newTestApp builds an app around an in-memory store and a manual clock.
func newTestApp(t *testing.T) (*app, *clock.Manual) {
	t.Helper()
	ctx := context.Background()

	store, db, err := storage.Open(ctx, ":memory:", "")
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
		db.Close()
	})

	cfg := config.DefaultConfig()
	cfg.Location = "UTC"
	clk := clock.NewManual(testNow)

	a, err := newApp(ctx, cfg, store, db, ":memory:", monitor.Deps{Clock: clk})
	require.NoError(t, err)
	return a, clk
}

// recordVisit pushes one visit of length d ending at the clock's current time.
func recordVisit(t *testing.T, a *app, url string, d time.Duration) {
	t.Helper()
	end := a.mon.Now()
	_, err := a.mon.HandleVisit(context.Background(), recorder.VisitClose{
		URL:   url,
		Title: "test page",
		Start: end.Add(-d),
		End:   end,
	})
	require.NoError(t, err)
}
