// Package pipeline wires the curation stages together: discovery,
// filtering, index writes, concurrent export, and surface extraction.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"ctcurator/internal/config"
	"ctcurator/internal/curate"
	"ctcurator/internal/dataset"
	"ctcurator/internal/dicomdir"
	"ctcurator/internal/export"
	"ctcurator/internal/journal"
	"ctcurator/internal/logging"
	"ctcurator/internal/preflight"
	"ctcurator/internal/stage"
)

// IndexFile is the catalogue document name under the output root.
const IndexFile = "dataset.json"

// dateLayout names exported acquisition directories.
const dateLayout = "2006-01-02"

// CurateStage discovers acquisitions, applies the selection policies,
// writes the index, and exports the survivors.
type CurateStage struct {
	cfg     *config.Config
	log     *slog.Logger
	journal *journal.Store
	obs     curate.Observer
}

func NewCurateStage(cfg *config.Config, logger *slog.Logger, store *journal.Store) *CurateStage {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &CurateStage{
		cfg:     cfg,
		log:     logging.WithComponent(logger, "curate"),
		journal: store,
		obs:     curate.NewLogObserver(logging.WithComponent(logger, "curate")),
	}
}

func (s *CurateStage) HealthCheck(ctx context.Context) stage.Health {
	results := preflight.RunAll(ctx, s.cfg)
	for _, r := range results {
		if !r.Passed {
			return stage.Unhealthy("curate", r.Name+": "+r.Detail)
		}
	}
	return stage.Healthy("curate")
}

func (s *CurateStage) Prepare(context.Context) error {
	return s.cfg.EnsureDirectories()
}

func (s *CurateStage) Execute(ctx context.Context) error {
	descriptors, err := dicomdir.Discover(s.cfg.Paths.DataDir)
	if err != nil {
		return fmt.Errorf("discover acquisitions: %w", err)
	}
	s.log.Info("discovery finished", logging.Int("acquisitions", len(descriptors)))

	acqs := make([]curate.Acquisition, len(descriptors))
	for i, rec := range descriptors {
		acqs[i] = rec
	}
	candidates := curate.Resolve(acqs, s.obs)

	filtered := curate.FilterByVolume(candidates, s.cfg.Curate.VolumeRatioMin, s.obs)
	groups := curate.GroupPatients(filtered)
	minSpan := time.Duration(s.cfg.Curate.MinSpanDays) * 24 * time.Hour
	kept := curate.FilterBySpan(groups, minSpan, s.obs)
	s.log.Info("selection finished",
		logging.Int("patients", len(kept)),
		logging.Int("candidates", len(candidates)))

	index := buildIndex(kept)
	indexPath := filepath.Join(s.cfg.Paths.OutputDir, IndexFile)
	if err := index.Save(indexPath, dataset.OrderInsertion); err != nil {
		return err
	}

	units := buildUnits(kept, s.cfg.Paths.OutputDir)
	report, err := s.runBatch(ctx, units, export.CopyAcquisition)
	if err != nil {
		return err
	}

	// The post-export copy is pruned of patients that can no longer
	// support temporal pairs and sorted for stable diffing.
	index.Prune(2)
	if err := index.Save(indexPath, dataset.OrderSorted); err != nil {
		return err
	}

	if len(report.Failed) > 0 {
		return curate.Wrap(curate.ErrExportFailure, "curate", "export batch",
			fmt.Sprintf("%d of %d units failed", len(report.Failed), len(units)), nil)
	}
	return nil
}

// runBatch executes the units and records outcomes to the journal when
// one is attached.
func (s *CurateStage) runBatch(ctx context.Context, units []export.Unit, fn export.Func) (export.Report, error) {
	return runJournaled(ctx, s.journal, "curate", s.cfg.Curate.Workers, s.obs, units, fn)
}

func buildIndex(groups []curate.Group) *dataset.Index {
	index := dataset.New()
	for _, g := range groups {
		p := dataset.Patient{ID: g.CanonicalID(), Name: g.Name}
		for _, r := range g.Records {
			p.Acquisitions = append(p.Acquisitions, dataset.Acquisition{DateTime: r.Time})
		}
		index.Put(p)
	}
	return index
}

func buildUnits(groups []curate.Group, outputRoot string) []export.Unit {
	var units []export.Unit
	for _, g := range groups {
		id := g.CanonicalID()
		for _, r := range g.Records {
			date := r.Time.Format(dateLayout)
			units = append(units, export.Unit{
				PatientID: id,
				Date:      date,
				Source:    r.Source.Dir(),
				Dest:      filepath.Join(outputRoot, id, date),
			})
		}
	}
	return units
}

// runJournaled wraps a scheduler run with journal bookkeeping. The
// journal is optional; a nil store runs the batch unrecorded.
func runJournaled(ctx context.Context, store *journal.Store, stageName string, workers int,
	obs curate.Observer, units []export.Unit, fn export.Func) (export.Report, error) {

	var runID string
	if store != nil {
		var err error
		if runID, err = store.BeginRun(ctx, stageName); err != nil {
			return export.Report{}, err
		}
	}

	report := export.New(workers, obs).Run(ctx, units, fn)

	if store != nil {
		status := journal.RunSucceeded
		if len(report.Failed) > 0 {
			status = journal.RunFailed
		}
		for _, failed := range report.Failed {
			_ = store.RecordUnit(ctx, runID, journal.Unit{
				PatientID:       failed.Unit.PatientID,
				AcquisitionDate: failed.Unit.Date,
				Status:          journal.UnitFailed,
				Detail:          failed.Err.Error(),
			})
		}
		if err := store.FinishRun(ctx, runID, status, report.Completed, len(report.Failed)); err != nil {
			return report, err
		}
	}
	return report, nil
}
