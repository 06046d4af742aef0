package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"ctcurator/internal/config"
	"ctcurator/internal/curate"
	"ctcurator/internal/dataset"
	"ctcurator/internal/dicomdir"
	"ctcurator/internal/export"
	"ctcurator/internal/imaging"
	"ctcurator/internal/journal"
	"ctcurator/internal/logging"
	"ctcurator/internal/preflight"
	"ctcurator/internal/stage"
	"ctcurator/internal/surface"
)

// SurfacesStage extracts skin and skull iso-surfaces for every exported
// acquisition listed in the index.
type SurfacesStage struct {
	cfg     *config.Config
	log     *slog.Logger
	journal *journal.Store
	obs     curate.Observer
}

func NewSurfacesStage(cfg *config.Config, logger *slog.Logger, store *journal.Store) *SurfacesStage {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &SurfacesStage{
		cfg:     cfg,
		log:     logging.WithComponent(logger, "surfaces"),
		journal: store,
		obs:     curate.NewLogObserver(logging.WithComponent(logger, "surfaces")),
	}
}

func (s *SurfacesStage) HealthCheck(ctx context.Context) stage.Health {
	if r := preflight.CheckDirectoryAccess("Output directory", s.cfg.Paths.OutputDir); !r.Passed {
		return stage.Unhealthy("surfaces", r.Name+": "+r.Detail)
	}
	return stage.Healthy("surfaces")
}

func (s *SurfacesStage) Prepare(context.Context) error {
	return s.cfg.EnsureDirectories()
}

func (s *SurfacesStage) Execute(ctx context.Context) error {
	indexPath := filepath.Join(s.cfg.Paths.OutputDir, IndexFile)
	index, err := dataset.Load(indexPath)
	if err != nil {
		return err
	}

	var units []export.Unit
	for _, p := range index.Patients() {
		for _, a := range p.Acquisitions {
			dir := filepath.Join(s.cfg.Paths.OutputDir, p.ID, a.DateTime.Format(dateLayout))
			units = append(units, export.Unit{
				PatientID: p.ID,
				Date:      a.DateTime.Format(dateLayout),
				Source:    dir,
				Dest:      dir,
			})
		}
	}
	s.log.Info("surface batch assembled", logging.Int("units", len(units)))

	report, err := runJournaled(ctx, s.journal, "surfaces", s.cfg.Surfaces.Workers, s.obs,
		units, s.extractUnit)
	if err != nil {
		return err
	}

	// This stage's copy of the index carries the same entries; the
	// artifacts land next to the exported series.
	if err := index.Save(indexPath, dataset.OrderSorted); err != nil {
		return err
	}
	if len(report.Failed) > 0 {
		return curate.Wrap(curate.ErrExportFailure, "surfaces", "extraction batch",
			fmt.Sprintf("%d of %d units failed", len(report.Failed), len(units)), nil)
	}
	return nil
}

// extractUnit reconstructs the acquisition's scalar field and writes
// the two iso-surfaces beside the exported series.
func (s *SurfacesStage) extractUnit(ctx context.Context, unit export.Unit) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	files, err := dicomdir.New(unit.Source).SeriesFiles()
	if err != nil {
		return err
	}
	grid, err := imaging.DecodeSeries(files)
	if err != nil {
		return err
	}
	imaging.Gaussian3(grid, s.cfg.Surfaces.SmoothSigma)

	skin, err := surface.Extract(grid, s.cfg.Surfaces.SkinIso, true)
	if err != nil {
		return fmt.Errorf("extract skin surface: %w", err)
	}
	if err := surface.SavePLY(skin, filepath.Join(unit.Dest, surface.SkinFile)); err != nil {
		return err
	}

	skull, err := surface.Extract(grid, s.cfg.Surfaces.SkullIso, true)
	if err != nil {
		return fmt.Errorf("extract skull surface: %w", err)
	}
	return surface.SavePLY(skull, filepath.Join(unit.Dest, surface.SkullFile))
}
