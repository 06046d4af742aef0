package curate

import (
	"iter"

	"gonum.org/v1/gonum/stat"
)

// DefaultVolumeRatio is the outlier threshold. An acquisition whose
// volume falls below this fraction of the cohort mean is a partial or
// truncated scan, not a usable head volume.
const DefaultVolumeRatio = 0.5

// FilterByVolume yields the candidates whose volume is at least
// minRatio times the cohort mean. The mean is computed once over the
// whole input, including candidates a later stage may drop. The
// returned sequence is pure and restartable; each rejection is reported
// through the observer during iteration. A single candidate passes
// trivially at ratio 1.
func FilterByVolume(candidates []Candidate, minRatio float64, obs Observer) iter.Seq[Candidate] {
	if obs == nil {
		obs = NopObserver{}
	}
	volumes := make([]float64, len(candidates))
	for i, c := range candidates {
		volumes[i] = c.Volume
	}
	mean := stat.Mean(volumes, nil)

	return func(yield func(Candidate) bool) {
		for _, c := range candidates {
			ratio := 1.0
			if mean > 0 {
				ratio = c.Volume / mean
			}
			if ratio < minRatio {
				obs.VolumeExcluded(c.ID, c.Name, c.Time, c.Volume, ratio)
				continue
			}
			if !yield(c) {
				return
			}
		}
	}
}
