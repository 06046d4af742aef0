// Package export runs per-acquisition work across a bounded worker
// pool. Units are independent, never communicate, and fail in
// isolation; the batch always waits for every submitted unit.
package export

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"ctcurator/internal/curate"
)

// Unit is one (patient, acquisition) pair to process. Each unit owns
// the destination subtree under Dest and writes nowhere else.
type Unit struct {
	PatientID string
	Date      string
	Source    string
	Dest      string
}

// Func performs the work for one unit, typically a tree copy or a
// surface extraction.
type Func func(context.Context, Unit) error

// UnitError pairs a failed unit with its cause.
type UnitError struct {
	Unit Unit
	Err  error
}

func (e UnitError) Error() string {
	return fmt.Sprintf("%s/%s: %v", e.Unit.PatientID, e.Unit.Date, e.Err)
}

func (e UnitError) Unwrap() error { return e.Err }

// Report summarizes a batch.
type Report struct {
	Completed int
	Failed    []UnitError
}

// Scheduler fans units out to a bounded number of workers.
type Scheduler struct {
	workers  int
	observer curate.Observer
}

// New builds a scheduler. A workers value at or below zero falls back
// to the host parallelism.
func New(workers int, obs curate.Observer) *Scheduler {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if obs == nil {
		obs = curate.NopObserver{}
	}
	return &Scheduler{workers: workers, observer: obs}
}

// Run executes fn for every unit and waits for all of them. A failing
// unit is recorded and reported; sibling units keep running. Failures
// come back sorted by patient then date so reports are stable.
func (s *Scheduler) Run(ctx context.Context, units []Unit, fn Func) Report {
	total := len(units)
	if total == 0 {
		return Report{}
	}

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		report Report
	)
	sem := make(chan struct{}, s.workers)

	for _, unit := range units {
		wg.Add(1)
		go func(unit Unit) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			err := fn(ctx, unit)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				wrapped := curate.Wrap(curate.ErrExportFailure, "export",
					unit.PatientID+"/"+unit.Date, "", err)
				report.Failed = append(report.Failed, UnitError{Unit: unit, Err: wrapped})
				s.observer.UnitFailed(unit.PatientID, unit.Date, err)
			} else {
				report.Completed++
			}
			s.observer.Progress(report.Completed+len(report.Failed), total)
		}(unit)
	}
	wg.Wait()

	sort.Slice(report.Failed, func(i, j int) bool {
		a, b := report.Failed[i].Unit, report.Failed[j].Unit
		if a.PatientID != b.PatientID {
			return a.PatientID < b.PatientID
		}
		return a.Date < b.Date
	})
	return report
}
