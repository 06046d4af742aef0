package curate

import "time"

// MinSpan is the minimum follow-up window between a patient's first and
// last acquisition. Shorter histories cannot support the temporal-pair
// processing downstream.
const MinSpan = 30 * 24 * time.Hour

// FilterBySpan retains groups whose history covers at least minSpan.
// The boundary is inclusive: a span of exactly minSpan is retained and
// only strictly shorter spans are dropped, each with a warning event.
func FilterBySpan(groups []Group, minSpan time.Duration, obs Observer) []Group {
	if obs == nil {
		obs = NopObserver{}
	}
	kept := make([]Group, 0, len(groups))
	for _, g := range groups {
		span := g.Last().Time.Sub(g.First().Time)
		if span < minSpan {
			obs.PatientExcluded(g.CanonicalID(), g.Name, span)
			continue
		}
		kept = append(kept, g)
	}
	return kept
}
