package verify

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ctcurator/internal/curate"
	"ctcurator/internal/dataset"
	"ctcurator/internal/surface"
)

// sphereMesh builds an icosphere-like shell by normalizing lattice
// points onto a sphere and triangulating nothing; a raw vertex cloud is
// enough for registration, but faces keep the PLY well-formed.
func sphereMesh(center [3]float64, radius float64) *surface.Mesh {
	m := &surface.Mesh{}
	const n = 12
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			theta := math.Pi * (float64(i) + 0.5) / n
			phi := 2 * math.Pi * float64(j) / n
			m.Vertices = append(m.Vertices, [3]float64{
				center[0] + radius*math.Sin(theta)*math.Cos(phi),
				center[1] + radius*math.Sin(theta)*math.Sin(phi),
				center[2] + radius*math.Cos(theta),
			})
		}
	}
	for i := 0; i+2 < len(m.Vertices); i += 3 {
		m.Faces = append(m.Faces, [3]int{i, i + 1, i + 2})
	}
	return m
}

func writeSurface(t *testing.T, root, id, date string, m *surface.Mesh) {
	t.Helper()
	dir := filepath.Join(root, id, date)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := surface.SavePLY(m, filepath.Join(dir, surface.SkinFile)); err != nil {
		t.Fatal(err)
	}
}

func acq(day int) dataset.Acquisition {
	return dataset.Acquisition{DateTime: time.Date(2024, 1, 1+day, 10, 0, 0, 0, time.UTC)}
}

func TestAuditRanksByMaxDistance(t *testing.T) {
	root := t.TempDir()

	// Stable patient: the same shell shifted, rigid registration
	// recovers it almost exactly.
	writeSurface(t, root, "stable", "2024-01-01", sphereMesh([3]float64{0, 0, 0}, 50))
	writeSurface(t, root, "stable", "2024-03-01", sphereMesh([3]float64{2, -1, 1.5}, 50))

	// Mismatched patient: shells of very different size, as when two
	// people share a display name.
	writeSurface(t, root, "mismatch", "2024-01-01", sphereMesh([3]float64{0, 0, 0}, 50))
	writeSurface(t, root, "mismatch", "2024-03-01", sphereMesh([3]float64{0, 0, 0}, 80))

	index := dataset.New()
	index.Put(dataset.Patient{ID: "mismatch", Name: "Shared^Name",
		Acquisitions: []dataset.Acquisition{acq(0), acq(60)}})
	index.Put(dataset.Patient{ID: "stable", Name: "Same^Person",
		Acquisitions: []dataset.Acquisition{acq(0), acq(60)}})

	auditor := NewAuditor(root)
	auditor.SamplePoints = 200
	reports, err := auditor.Audit(context.Background(), index)
	if err != nil {
		t.Fatalf("Audit: %v", err)
	}
	if len(reports) != 2 {
		t.Fatalf("got %d reports, want 2", len(reports))
	}
	if reports[0].PatientID != "stable" || reports[1].PatientID != "mismatch" {
		t.Fatalf("rank order = %s, %s", reports[0].PatientID, reports[1].PatientID)
	}
	if reports[0].MaxDistance >= reports[1].MaxDistance {
		t.Fatalf("distances not ascending: %.3f then %.3f",
			reports[0].MaxDistance, reports[1].MaxDistance)
	}
	if reports[1].MaxDistance < 10 {
		t.Fatalf("mismatched shells scored %.3f, want a clearly large distance",
			reports[1].MaxDistance)
	}
}

func TestAuditSkipsSingleAcquisitionPatients(t *testing.T) {
	index := dataset.New()
	index.Put(dataset.Patient{ID: "solo", Name: "One^Scan",
		Acquisitions: []dataset.Acquisition{acq(0)}})

	reports, err := NewAuditor(t.TempDir()).Audit(context.Background(), index)
	if err != nil {
		t.Fatalf("Audit: %v", err)
	}
	if len(reports) != 0 {
		t.Fatalf("got %d reports for a single-acquisition patient", len(reports))
	}
}

func TestAuditMarksMissingSurfacesUnverifiable(t *testing.T) {
	root := t.TempDir()
	writeSurface(t, root, "ok", "2024-01-01", sphereMesh([3]float64{0, 0, 0}, 40))
	writeSurface(t, root, "ok", "2024-03-01", sphereMesh([3]float64{1, 1, 1}, 40))

	index := dataset.New()
	index.Put(dataset.Patient{ID: "missing", Name: "No^Surfaces",
		Acquisitions: []dataset.Acquisition{acq(0), acq(60)}})
	index.Put(dataset.Patient{ID: "ok", Name: "Has^Surfaces",
		Acquisitions: []dataset.Acquisition{acq(0), acq(60)}})

	auditor := NewAuditor(root)
	auditor.SamplePoints = 150
	reports, err := auditor.Audit(context.Background(), index)
	if err != nil {
		t.Fatalf("Audit: %v", err)
	}
	if len(reports) != 2 {
		t.Fatalf("got %d reports, want 2", len(reports))
	}
	// Unverifiable patients rank last, after every measured patient.
	if reports[0].PatientID != "ok" || reports[0].Unverifiable() {
		t.Fatalf("first report = %+v", reports[0])
	}
	last := reports[1]
	if !last.Unverifiable() || !errors.Is(last.Err, curate.ErrRegistrationFailure) {
		t.Fatalf("missing surfaces not marked unverifiable: %+v", last)
	}
}

func TestAuditIsReadOnly(t *testing.T) {
	root := t.TempDir()
	mesh := sphereMesh([3]float64{0, 0, 0}, 30)
	writeSurface(t, root, "p", "2024-01-01", mesh)
	writeSurface(t, root, "p", "2024-03-01", mesh)

	path := filepath.Join(root, "p", "2024-01-01", surface.SkinFile)
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	index := dataset.New()
	index.Put(dataset.Patient{ID: "p", Name: "Read^Only",
		Acquisitions: []dataset.Acquisition{acq(0), acq(60)}})
	auditor := NewAuditor(root)
	auditor.SamplePoints = 100
	if _, err := auditor.Audit(context.Background(), index); err != nil {
		t.Fatalf("Audit: %v", err)
	}

	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Fatal("audit modified an exported surface")
	}
	if index.Len() != 1 {
		t.Fatal("audit modified the index")
	}
}
