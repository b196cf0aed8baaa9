package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/kstaniek/go-socketcan/internal/logging"
)

// setupLogger installs the global logger. With -log-file set, output goes to
// a rotating file instead of stderr; the returned func closes it.
func setupLogger(cfg *appConfig) (*slog.Logger, func()) {
	lvl, err := logging.ParseLevel(cfg.logLevel)
	if err != nil {
		lvl = slog.LevelInfo
	}
	var w io.Writer = os.Stderr
	closeFn := func() {}
	if cfg.logFile != "" {
		f := logging.OpenFile(logging.FileOptions{
			Path:       cfg.logFile,
			MaxSizeMB:  cfg.logMaxSize,
			MaxBackups: 3,
			MaxAgeDays: 28,
			Compress:   true,
		})
		w = f
		closeFn = func() { _ = f.Close() }
	}
	l := logging.New(cfg.logFormat, lvl, w).With("app", "can-server")
	logging.Set(l)
	return l, closeFn
}
