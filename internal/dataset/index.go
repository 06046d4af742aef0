package dataset

import (
	"sort"
	"time"
)

// Order selects the key order used when the index is written.
type Order int

const (
	// OrderInsertion writes patients in the order they were added,
	// which reflects discovery order.
	OrderInsertion Order = iota
	// OrderSorted writes patients sorted by canonical identifier.
	OrderSorted
)

// Acquisition is one dated scan session inside a patient entry.
type Acquisition struct {
	DateTime time.Time
}

// Patient is one index entry keyed by its canonical identifier.
// Acquisitions are kept in ascending chronological order.
type Patient struct {
	ID           string
	Name         string
	Acquisitions []Acquisition
}

// Index is the persisted patient catalogue. It behaves like a map from
// canonical identifier to patient entry but remembers insertion order.
type Index struct {
	ids      []string
	patients map[string]Patient
}

func New() *Index {
	return &Index{patients: make(map[string]Patient)}
}

// Put inserts the entry or replaces an existing one with the same
// identifier. Replacement keeps the original insertion position.
func (x *Index) Put(p Patient) {
	if _, ok := x.patients[p.ID]; !ok {
		x.ids = append(x.ids, p.ID)
	}
	x.patients[p.ID] = p
}

func (x *Index) Get(id string) (Patient, bool) {
	p, ok := x.patients[id]
	return p, ok
}

func (x *Index) Len() int {
	return len(x.ids)
}

// Patients returns the entries in insertion order.
func (x *Index) Patients() []Patient {
	out := make([]Patient, 0, len(x.ids))
	for _, id := range x.ids {
		out = append(out, x.patients[id])
	}
	return out
}

// Prune removes every entry holding fewer than minAcquisitions and
// returns the removed entries. It touches the index only; files already
// exported for a pruned patient are left in place.
func (x *Index) Prune(minAcquisitions int) []Patient {
	var removed []Patient
	kept := x.ids[:0]
	for _, id := range x.ids {
		p := x.patients[id]
		if len(p.Acquisitions) < minAcquisitions {
			removed = append(removed, p)
			delete(x.patients, id)
			continue
		}
		kept = append(kept, id)
	}
	x.ids = kept
	return removed
}

// orderedIDs returns the key sequence for the requested write order.
func (x *Index) orderedIDs(order Order) []string {
	ids := make([]string, len(x.ids))
	copy(ids, x.ids)
	if order == OrderSorted {
		sort.Strings(ids)
	}
	return ids
}
