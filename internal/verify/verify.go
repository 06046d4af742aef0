// Package verify audits patient grouping by registering each patient's
// latest skin surface onto their earliest one. It is read-only: the
// catalogue and the exported tree are never modified, the output is a
// ranked report for an operator to act on.
package verify

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"path/filepath"
	"sort"

	"gonum.org/v1/gonum/spatial/kdtree"

	"ctcurator/internal/curate"
	"ctcurator/internal/dataset"
	"ctcurator/internal/registration"
	"ctcurator/internal/surface"
)

// DefaultSamplePoints is the size of the random vertex sample drawn
// from the later surface before registration.
const DefaultSamplePoints = 10000

// Report is the audit outcome for one patient. A large MaxDistance
// means either genuinely large anatomical change or two different
// people grouped under one name; the audit reports, it never corrects.
type Report struct {
	PatientID string
	Name      string
	Earliest  string
	Latest    string
	// Cost is the registration residual at convergence, the sum of
	// squared nearest-neighbor distances of the aligned sample.
	Cost float64
	// MaxDistance is the largest nearest-neighbor distance from any
	// vertex of the earliest surface to the aligned sample of the
	// latest surface.
	MaxDistance float64
	// Err marks the patient unverifiable. The audit continues with the
	// remaining patients.
	Err error
}

// Unverifiable reports whether the audit failed for this patient.
func (r Report) Unverifiable() bool { return r.Err != nil }

// Auditor runs the grouping audit over an exported tree.
type Auditor struct {
	OutputRoot   string
	SamplePoints int
	Registration registration.Config
	// Seed fixes the vertex sampling; zero means a fixed default so
	// repeated audits of the same tree rank identically.
	Seed int64
}

func NewAuditor(outputRoot string) *Auditor {
	return &Auditor{
		OutputRoot:   outputRoot,
		SamplePoints: DefaultSamplePoints,
		Registration: registration.DefaultConfig(),
	}
}

// Audit examines every patient in the index with at least two
// acquisitions. Reports come back ranked ascending by MaxDistance,
// with unverifiable patients at the end.
func (a *Auditor) Audit(ctx context.Context, index *dataset.Index) ([]Report, error) {
	var reports []Report
	for _, p := range index.Patients() {
		if len(p.Acquisitions) < 2 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		reports = append(reports, a.auditPatient(p))
	}
	sort.SliceStable(reports, func(i, j int) bool {
		if reports[i].Unverifiable() != reports[j].Unverifiable() {
			return !reports[i].Unverifiable()
		}
		return reports[i].MaxDistance < reports[j].MaxDistance
	})
	return reports, nil
}

func (a *Auditor) auditPatient(p dataset.Patient) Report {
	earliest := p.Acquisitions[0].DateTime.Format("2006-01-02")
	latest := p.Acquisitions[len(p.Acquisitions)-1].DateTime.Format("2006-01-02")
	report := Report{PatientID: p.ID, Name: p.Name, Earliest: earliest, Latest: latest}

	baseline, err := surface.LoadPLY(filepath.Join(a.OutputRoot, p.ID, earliest, surface.SkinFile))
	if err != nil {
		report.Err = curate.Wrap(curate.ErrRegistrationFailure, "verify", "load baseline surface", "", err)
		return report
	}
	followup, err := surface.LoadPLY(filepath.Join(a.OutputRoot, p.ID, latest, surface.SkinFile))
	if err != nil {
		report.Err = curate.Wrap(curate.ErrRegistrationFailure, "verify", "load follow-up surface", "", err)
		return report
	}
	if len(baseline.Vertices) == 0 || len(followup.Vertices) == 0 {
		report.Err = curate.Wrap(curate.ErrRegistrationFailure, "verify", "empty surface",
			fmt.Sprintf("baseline %d vertices, follow-up %d vertices",
				len(baseline.Vertices), len(followup.Vertices)), nil)
		return report
	}

	samplePoints := a.SamplePoints
	if samplePoints <= 0 {
		samplePoints = DefaultSamplePoints
	}
	seed := a.Seed
	if seed == 0 {
		seed = 1
	}
	sample := followup.SampleVertices(samplePoints, rand.New(rand.NewSource(seed)))

	result, err := registration.ICP(sample, baseline.Vertices, a.Registration)
	if err != nil {
		report.Err = curate.Wrap(curate.ErrRegistrationFailure, "verify", "align surfaces", "", err)
		return report
	}
	report.Cost = result.Cost
	report.MaxDistance = maxNearestDistance(baseline.Vertices, result.ApplyAll(sample))
	return report
}

// maxNearestDistance returns the largest distance from any reference
// vertex to its nearest point in the aligned sample.
func maxNearestDistance(reference, aligned [][3]float64) float64 {
	points := make(kdtree.Points, len(aligned))
	for i, p := range aligned {
		points[i] = kdtree.Point{p[0], p[1], p[2]}
	}
	tree := kdtree.New(points, false)

	worst := 0.0
	for _, v := range reference {
		// The tree metric is squared Euclidean distance.
		_, dist := tree.Nearest(kdtree.Point{v[0], v[1], v[2]})
		if dist > worst {
			worst = dist
		}
	}
	return math.Sqrt(worst)
}
