package logging

import (
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
)

type Config struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	// Component tags every record so gateway and watcher logs can share a
	// sink and still be told apart.
	Component string
}

// Init installs the process-wide slog default: text records to stdout and,
// when a file is configured, to a size-rotated log file as well. The stdlib
// log package is redirected into the same handler so dependencies that
// still use it do not write around the structured sink.
func Init(cfg Config) (*RotatingWriter, error) {
	var rotating *RotatingWriter
	sink := io.Writer(os.Stdout)
	if strings.TrimSpace(cfg.File) != "" {
		w, err := NewRotatingWriter(cfg.File, cfg.MaxSizeMB, cfg.MaxBackups)
		if err != nil {
			return nil, err
		}
		rotating = w
		sink = io.MultiWriter(os.Stdout, w)
	}

	level := Level(cfg.Level)
	handler := slog.NewTextHandler(sink, &slog.HandlerOptions{Level: level})
	root := slog.New(handler)
	if cfg.Component != "" {
		root = root.With("component", cfg.Component)
	}
	slog.SetDefault(root)

	log.SetFlags(0)
	log.SetOutput(slog.NewLogLogger(handler, level).Writer())

	return rotating, nil
}

// Level maps a config string to a slog level, defaulting to info.
func Level(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
