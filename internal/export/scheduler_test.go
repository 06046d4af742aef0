package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"ctcurator/internal/curate"
)

func TestRunCompletesAllUnits(t *testing.T) {
	var count atomic.Int64
	units := make([]Unit, 20)
	for i := range units {
		units[i] = Unit{PatientID: fmt.Sprintf("p%02d", i), Date: "2024-01-01"}
	}
	report := New(4, nil).Run(context.Background(), units, func(context.Context, Unit) error {
		count.Add(1)
		return nil
	})
	if report.Completed != 20 || len(report.Failed) != 0 {
		t.Fatalf("report = %+v", report)
	}
	if count.Load() != 20 {
		t.Fatalf("fn ran %d times", count.Load())
	}
}

func TestRunIsolatesSingleFailure(t *testing.T) {
	boom := errors.New("disk full")
	units := []Unit{
		{PatientID: "a", Date: "2024-01-01"},
		{PatientID: "b", Date: "2024-02-01"},
		{PatientID: "c", Date: "2024-03-01"},
	}
	report := New(2, nil).Run(context.Background(), units, func(_ context.Context, u Unit) error {
		if u.PatientID == "b" {
			return boom
		}
		return nil
	})
	if report.Completed != 2 {
		t.Fatalf("Completed = %d, want 2", report.Completed)
	}
	if len(report.Failed) != 1 {
		t.Fatalf("Failed = %+v, want one entry", report.Failed)
	}
	failed := report.Failed[0]
	if failed.Unit.PatientID != "b" {
		t.Fatalf("failed unit = %+v", failed.Unit)
	}
	if !errors.Is(failed.Err, curate.ErrExportFailure) || !errors.Is(failed.Err, boom) {
		t.Fatalf("failure not classified: %v", failed.Err)
	}
}

func TestRunBoundsConcurrency(t *testing.T) {
	const workers = 3
	var mu sync.Mutex
	active, peak := 0, 0

	units := make([]Unit, 30)
	report := New(workers, nil).Run(context.Background(), units, func(context.Context, Unit) error {
		mu.Lock()
		active++
		if active > peak {
			peak = active
		}
		mu.Unlock()
		defer func() {
			mu.Lock()
			active--
			mu.Unlock()
		}()
		return nil
	})
	if report.Completed != 30 {
		t.Fatalf("Completed = %d", report.Completed)
	}
	if peak > workers {
		t.Fatalf("peak concurrency %d exceeds %d workers", peak, workers)
	}
}

type progressObserver struct {
	curate.NopObserver
	mu    sync.Mutex
	ticks []int
}

func (o *progressObserver) Progress(completed, total int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ticks = append(o.ticks, completed)
	if total != 5 {
		panic("total drifted")
	}
}

func TestRunReportsProgress(t *testing.T) {
	obs := &progressObserver{}
	units := make([]Unit, 5)
	New(2, obs).Run(context.Background(), units, func(context.Context, Unit) error {
		return nil
	})
	if len(obs.ticks) != 5 {
		t.Fatalf("got %d progress ticks, want 5", len(obs.ticks))
	}
	if obs.ticks[len(obs.ticks)-1] != 5 {
		t.Fatalf("final tick = %d, want 5", obs.ticks[len(obs.ticks)-1])
	}
}

func TestRunEmptyBatch(t *testing.T) {
	report := New(0, nil).Run(context.Background(), nil, func(context.Context, Unit) error {
		t.Fatal("fn called for empty batch")
		return nil
	})
	if report.Completed != 0 || len(report.Failed) != 0 {
		t.Fatalf("report = %+v", report)
	}
}

func TestCopyAcquisitionIdempotent(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	if err := os.MkdirAll(src, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "slice.dcm"), []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}
	unit := Unit{
		PatientID: "p1",
		Date:      "2024-05-01",
		Source:    src,
		Dest:      filepath.Join(dir, "out", "p1", "2024-05-01"),
	}
	for i := 0; i < 2; i++ {
		if err := CopyAcquisition(context.Background(), unit); err != nil {
			t.Fatalf("pass %d: %v", i+1, err)
		}
	}
	data, err := os.ReadFile(filepath.Join(unit.Dest, "slice.dcm"))
	if err != nil || string(data) != "data" {
		t.Fatalf("exported content = %q, err %v", data, err)
	}
}
