package stage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ctcurator/internal/logging"
)

// Run executes a handler end to end: health check, prepare, execute,
// with timing logged per phase.
func Run(ctx context.Context, logger *slog.Logger, name string, h Handler) error {
	if logger == nil {
		logger = logging.NewNop()
	}
	log := logging.WithComponent(logger, name)

	if health := h.HealthCheck(ctx); !health.Ready {
		return fmt.Errorf("stage %s not ready: %s", name, health.Detail)
	}
	if err := h.Prepare(ctx); err != nil {
		return fmt.Errorf("stage %s prepare: %w", name, err)
	}

	start := time.Now()
	log.Info("stage started")
	if err := h.Execute(ctx); err != nil {
		log.Error("stage failed",
			logging.Duration("elapsed", time.Since(start)),
			logging.Error(err))
		return fmt.Errorf("stage %s: %w", name, err)
	}
	log.Info("stage finished", logging.Duration("elapsed", time.Since(start)))
	return nil
}
