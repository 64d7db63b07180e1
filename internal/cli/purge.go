package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// Execute implements the go-flags Commander interface for PurgeCommand.
func (c *PurgeCommand) Execute(args []string) error {
	if !c.All {
		return fmt.Errorf("purge requires --all flag for safety")
	}
	if !c.Force {
		if err := confirmPurge(os.Stdin); err != nil {
			return err
		}
	}
	return withApp(c.globals, c.version, c.executeWithApp)
}

// confirmPurge prompts for the literal word PURGE on in.
func confirmPurge(in io.Reader) error {
	fmt.Println("⚠ WARNING: This will permanently delete ALL focuslens data.")
	fmt.Println("  - All recorded visits")
	fmt.Println("  - All daily statistics")
	fmt.Println("  - All interventions, the active task and settings")
	fmt.Println()
	fmt.Println("This action cannot be undone.")
	fmt.Println()
	fmt.Print(`Type "PURGE" to confirm: `)

	scanner := bufio.NewScanner(in)
	if !scanner.Scan() {
		return fmt.Errorf("aborted: no input received")
	}
	if strings.TrimSpace(scanner.Text()) != "PURGE" {
		return fmt.Errorf("aborted: confirmation text did not match")
	}
	return nil
}

func (c *PurgeCommand) executeWithApp(ctx context.Context, a *app) error {
	if !c.All {
		return fmt.Errorf("purge requires --all flag for safety")
	}
	if err := a.store.PurgeAll(ctx); err != nil {
		return fmt.Errorf("purge failed: %w", err)
	}
	a.mon.ResetSession(ctx)

	if jsonOutput(c.globals) {
		return printJSON(map[string]interface{}{
			"purged":  true,
			"message": "all data deleted",
		})
	}

	fmt.Println("Purged all data. focuslens is empty.")
	return nil
}
