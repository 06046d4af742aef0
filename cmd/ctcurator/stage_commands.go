package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"ctcurator/internal/config"
	"ctcurator/internal/journal"
	"ctcurator/internal/pipeline"
	"ctcurator/internal/stage"
)

func newCurateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "curate",
		Short: "Discover, filter, index, and export acquisitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStage(ctx, cmd, "curate", func(deps stageDeps) stage.Handler {
				return pipeline.NewCurateStage(deps.cfg, deps.logger, deps.journal)
			})
		},
	}
}

func newSurfacesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "surfaces",
		Short: "Extract skin and skull surfaces for exported acquisitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStage(ctx, cmd, "surfaces", func(deps stageDeps) stage.Handler {
				return pipeline.NewSurfacesStage(deps.cfg, deps.logger, deps.journal)
			})
		},
	}
}

type stageDeps struct {
	cfg     *config.Config
	logger  *slog.Logger
	journal *journal.Store
}

// runStage owns the shared stage plumbing: config, logger, output
// lock, and the journal lifecycle.
func runStage(ctx *commandContext, cmd *cobra.Command, name string, build func(stageDeps) stage.Handler) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return err
	}

	lock, err := ctx.lockOutput()
	if err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()

	store, err := journal.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	handler := build(stageDeps{cfg: cfg, logger: logger, journal: store})
	return stage.Run(cmd.Context(), logger, name, handler)
}
