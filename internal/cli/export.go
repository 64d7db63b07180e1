package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Execute implements the go-flags Commander interface for ExportCommand.
func (c *ExportCommand) Execute(args []string) error {
	return withApp(c.globals, c.version, c.executeWithApp)
}

func (c *ExportCommand) executeWithApp(ctx context.Context, a *app) error {
	data, err := a.mon.ExportAll(ctx)
	if err != nil {
		return err
	}

	if c.Output == "" {
		_, err = os.Stdout.Write(append(data, '\n'))
		return err
	}

	if dir := filepath.Dir(c.Output); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create export directory: %w", err)
		}
	}
	if err := os.WriteFile(c.Output, data, 0600); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	if !jsonOutput(c.globals) {
		fmt.Printf("Exported %s to %s\n", formatBytes(int64(len(data))), c.Output)
	}
	return nil
}
