package logging

import (
	"fmt"
	"io"
	"os"
)

// Config captures logging configuration options.
type Config struct {
	Level    string
	Dir      string
	Filename string
}

// New creates a Logger that writes JSON to Dir/Filename and coloured text to stdout.
func New(cfg Config) (*Logger, error) {
	logger, err := newLogger(cfg, os.Stdout)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return logger, nil
}

// NewWithConsole is New with a caller supplied console writer.
func NewWithConsole(cfg Config, console io.Writer) (*Logger, error) {
	if console == nil {
		console = io.Discard
	}
	logger, err := newLogger(cfg, console)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return logger, nil
}
