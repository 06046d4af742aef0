package curate

import (
	"iter"
	"sort"
)

// Group is the set of acquisitions believed to belong to one physical
// patient, keyed by exact display name. Records are sorted ascending by
// acquisition time; ties fall back to discovery order.
type Group struct {
	Name    string
	Records []Candidate
}

// CanonicalID is the identifier of the chronologically last record.
// Scanner identifiers drift across sessions and are sometimes corrected
// going forward, so the latest value is the administratively current one.
func (g Group) CanonicalID() string {
	return g.Records[len(g.Records)-1].ID
}

// First returns the earliest record in the group.
func (g Group) First() Candidate { return g.Records[0] }

// Last returns the most recent record in the group.
func (g Group) Last() Candidate { return g.Records[len(g.Records)-1] }

// GroupPatients clusters candidates by display name, matched exactly
// and case-sensitively. Fuzzy identity correction is an audit concern,
// not a grouping one. Groups come back in first-appearance order.
func GroupPatients(candidates iter.Seq[Candidate]) []Group {
	byName := make(map[string]int)
	var groups []Group
	for c := range candidates {
		i, ok := byName[c.Name]
		if !ok {
			i = len(groups)
			byName[c.Name] = i
			groups = append(groups, Group{Name: c.Name})
		}
		groups[i].Records = append(groups[i].Records, c)
	}
	for i := range groups {
		records := groups[i].Records
		sort.SliceStable(records, func(a, b int) bool {
			if !records[a].Time.Equal(records[b].Time) {
				return records[a].Time.Before(records[b].Time)
			}
			return records[a].ord < records[b].ord
		})
	}
	return groups
}
