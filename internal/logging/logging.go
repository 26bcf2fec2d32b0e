// Package logging builds the process-wide structured logger. Output is
// routed through lumberjack for rotation, the teacher's chosen mechanism
// for bounding on-disk log growth.
package logging

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the rotating log file. A zero-value Path disables
// rotation and logs to stderr only.
type Options struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Level      slog.Level
}

// New builds a slog.Logger writing JSON lines to stderr and, if
// Options.Path is set, to a rotating file via lumberjack.
func New(opts Options) *slog.Logger {
	var w io.Writer = os.Stderr
	if opts.Path != "" {
		w = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   opts.Path,
			MaxSize:    defaultInt(opts.MaxSizeMB, 100),
			MaxBackups: defaultInt(opts.MaxBackups, 5),
			MaxAge:     defaultInt(opts.MaxAgeDays, 28),
			Compress:   true,
		})
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: opts.Level})
	return slog.New(handler)
}

func defaultInt(v, fallback int) int {
	if v == 0 {
		return fallback
	}
	return v
}
