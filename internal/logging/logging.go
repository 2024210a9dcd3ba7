// Package logging builds the slog logger used by the sparsevec CLI.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/viant/sparsevec/internal/config"
)

// New returns a logger writing to w. An empty level yields a logger that
// discards everything.
func New(w io.Writer, cfg config.LogConfig) (*slog.Logger, error) {
	if strings.TrimSpace(cfg.Level) == "" {
		return Discard(), nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("logging: invalid level %q", cfg.Level)
	}
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(cfg.Format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("logging: unsupported format %q", cfg.Format)
	}
}

func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
