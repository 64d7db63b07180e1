package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/runnerr0/focuslens/internal/config"
)

// Options controls logger construction.
type Options struct {
	Name       string
	Level      string
	JSON       bool
	Path       string // empty logs to stderr
	MaxSizeMB  int
	MaxBackups int
}

// FromConfig derives Options from the logging section of cfg.
func FromConfig(cfg *config.Config, name string) (Options, error) {
	path, err := cfg.LogPath()
	if err != nil {
		return Options{}, err
	}
	return Options{
		Name:       name,
		Level:      cfg.Logging.Level,
		JSON:       cfg.Logging.JSON,
		Path:       path,
		MaxSizeMB:  cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
	}, nil
}

// New builds an hclog logger. The returned closer releases the log file and
// is safe to call when logging to stderr.
func New(opts Options) (hclog.Logger, io.Closer, error) {
	level := hclog.LevelFromString(opts.Level)
	if level == hclog.NoLevel {
		return nil, nil, fmt.Errorf("invalid log level %q", opts.Level)
	}

	var out io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}
	if opts.Path != "" {
		if err := os.MkdirAll(filepath.Dir(opts.Path), 0755); err != nil {
			return nil, nil, fmt.Errorf("create log directory: %w", err)
		}
		lj := &lumberjack.Logger{
			Filename:   opts.Path,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
		}
		out = lj
		closer = lj
	}

	logger := hclog.New(&hclog.LoggerOptions{
		Name:       opts.Name,
		Level:      level,
		Output:     out,
		JSONFormat: opts.JSON,
	})
	return logger, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
