package main

import (
	"log/slog"

	"github.com/kstaniek/go-socketcan/internal/hub"
)

// initHub builds the fan-out hub. cfg has already been validated, so an
// unparsable policy only happens in tests and falls back to drop.
func initHub(cfg *appConfig, l *slog.Logger) *hub.Hub {
	h := hub.New()
	h.OutBufSize = cfg.hubBuffer
	p, err := hub.ParsePolicy(cfg.hubPolicy)
	if err != nil {
		l.Warn("unknown_hub_policy", "error", err, "used", p.String())
	}
	h.Policy = p
	l.Info("build_info", "version", version, "commit", commit, "date", date)
	l.Info("hub_config", "policy", h.Policy.String(), "buffer", h.OutBufSize, "error_frames", cfg.clientErrors)
	return h
}
