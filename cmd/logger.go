package cmd

import (
	"io"
	"log/slog"
	"strings"
)

// newLogger builds the session logger from the resolved --log-level and
// --log-format values (or their BOLT_LOG_* and bolt.hcl counterparts).
// Levels match case-insensitively and unknown ones fall back to info; any
// format other than json is text. Runtime and cache messages go to w, the
// command's ErrWriter.
func newLogger(level, format string, w io.Writer) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
