package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/runnerr0/focuslens/internal/daemon"
	"github.com/runnerr0/focuslens/internal/intervention"
)

// pendingLimit bounds interventions waiting for the extension to poll.
const pendingLimit = 32

// Execute implements the go-flags Commander interface for IngestCommand.
func (c *IngestCommand) Execute(args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sink := intervention.NewPollSink(pendingLimit)
	a, err := openApp(ctx, c.globals, openOptions{version: c.version, sink: sink, logLevel: c.LogLevel})
	if err != nil {
		return err
	}
	defer a.Close()

	return c.serve(ctx, a, sink)
}

// serve runs the HTTP API and the monitor until ctx is cancelled or
// either one fails.
func (c *IngestCommand) serve(ctx context.Context, a *app, sink *intervention.PollSink) error {
	dcfg := a.cfg.Daemon
	if c.Host != "" {
		dcfg.Host = c.Host
	}
	if c.Port > 0 {
		dcfg.Port = c.Port
	}
	srv := daemon.New(a.mon, sink, dcfg, c.version, a.logger.Named("daemon"))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(gctx)
	})
	g.Go(func() error {
		return a.mon.Run(gctx)
	})
	return g.Wait()
}
