// Package logging builds the process-wide structured logger.
package logging

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	"github.com/carlmjohnson/versioninfo"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileName is the rotating log file written when a log directory is
// configured.
const FileName = "radiationMap.slog"

// New returns a logger at the given level. With an empty dir it
// writes human-readable lines to stderr; otherwise it writes JSON to
// a rotating file under dir, which is what the daemon modes want.
func New(level, dir string) *slog.Logger {
	lvl := slog.LevelInfo
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "", "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		fmt.Fprintf(os.Stderr, "%s: invalid log level, using info\n", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	var h slog.Handler
	if dir == "" {
		h = slog.NewTextHandler(os.Stderr, opts)
	} else {
		h = slog.NewJSONHandler(&lumberjack.Logger{
			Filename: filepath.Join(dir, FileName),
			MaxSize:  32, // MB
			MaxAge:   14,
			Compress: true,
		}, opts)
	}

	l := slog.New(h)
	l.Info("radiationMap starting",
		"version", versioninfo.Short(),
		"go", runtime.Version(),
		"os", runtime.GOOS,
		"arch", runtime.GOARCH)
	return l
}
