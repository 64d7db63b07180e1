package cli

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Execute implements the go-flags Commander interface for TaskCommand.
func (c *TaskCommand) Execute(args []string) error {
	return withApp(c.globals, c.version, c.executeWithApp)
}

func (c *TaskCommand) executeWithApp(ctx context.Context, a *app) error {
	title := strings.Join(c.Args.Title, " ")
	if c.Clear && title != "" {
		return fmt.Errorf("--clear cannot be combined with a title")
	}

	if c.Clear {
		if err := a.mon.ClearTask(ctx); err != nil {
			return err
		}
		if jsonOutput(c.globals) {
			return printJSON(map[string]interface{}{"cleared": true})
		}
		fmt.Println("Active task cleared.")
		return nil
	}

	if title != "" {
		task, err := a.mon.SetTask(ctx, title)
		if err != nil {
			return err
		}
		if jsonOutput(c.globals) {
			return printJSON(task)
		}
		fmt.Printf("Active task: %s\n", task.Title)
		return nil
	}

	task, err := a.mon.ActiveTask(ctx)
	if err != nil {
		return err
	}
	if jsonOutput(c.globals) {
		return printJSON(map[string]interface{}{"task": task})
	}
	if task == nil {
		fmt.Println("No active task.")
		return nil
	}
	fmt.Printf("Active task: %s (since %s)\n", task.Title, task.CreatedAt.Local().Format(time.Kitchen))
	return nil
}
