package curate

import "time"

// Acquisition is the metadata surface a curation pass needs from one
// scan directory. Implementations compute each field at most once and
// cache it; dicomdir.Record is the production implementation.
type Acquisition interface {
	Dir() string
	PatientName() (string, error)
	PatientID() (string, error)
	AcquisitionTime() (time.Time, error)
	Volume() (float64, error)
}

// Candidate is one acquisition with its metadata fully resolved.
// Discovery order is retained for deterministic tie-breaking.
type Candidate struct {
	Source Acquisition
	ID     string
	Name   string
	Time   time.Time
	Volume float64

	ord int
}

// Resolve materializes metadata for every acquisition. Acquisitions
// whose metadata cannot be read are reported to the observer and
// dropped; the rest keep their discovery order.
func Resolve(acqs []Acquisition, obs Observer) []Candidate {
	if obs == nil {
		obs = NopObserver{}
	}
	out := make([]Candidate, 0, len(acqs))
	for _, acq := range acqs {
		c, err := resolveOne(acq)
		if err != nil {
			obs.AcquisitionSkipped(acq.Dir(), err)
			continue
		}
		c.ord = len(out)
		out = append(out, c)
	}
	return out
}

func resolveOne(acq Acquisition) (Candidate, error) {
	name, err := acq.PatientName()
	if err != nil {
		return Candidate{}, err
	}
	id, err := acq.PatientID()
	if err != nil {
		return Candidate{}, err
	}
	when, err := acq.AcquisitionTime()
	if err != nil {
		return Candidate{}, err
	}
	volume, err := acq.Volume()
	if err != nil {
		return Candidate{}, err
	}
	return Candidate{Source: acq, ID: id, Name: name, Time: when, Volume: volume}, nil
}
