package dicomdir

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"ctcurator/internal/imaging"
)

// DescriptorName is the directory-descriptor file every acquisition
// directory must contain. It is a DICOMDIR dataset whose directory records
// reference the instance files of the series.
const DescriptorName = "DIRFILE"

// ErrMetadataMissing marks acquisitions whose descriptor or a required tag
// is absent. Fatal for that acquisition only; callers log and skip.
var ErrMetadataMissing = errors.New("acquisition metadata missing")

// Record represents one scan session rooted at an acquisition directory.
//
// All derived values are computed on first access and cached for the
// record's lifetime; the backing directory is treated as immutable. A
// Record is safe for concurrent use once constructed.
type Record struct {
	dir string

	descOnce sync.Once
	desc     *dicom.Dataset
	descErr  error

	firstOnce sync.Once
	first     *dicom.Dataset
	firstErr  error

	filesOnce sync.Once
	files     []string
	filesErr  error

	volumeOnce sync.Once
	volume     float64
	volumeErr  error
}

// New constructs a Record from an acquisition directory or any file inside
// it. Nothing is read until a metadata accessor is called.
func New(path string) *Record {
	dir := path
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		dir = filepath.Dir(path)
	}
	return &Record{dir: dir}
}

// Dir returns the acquisition directory.
func (r *Record) Dir() string { return r.dir }

func (r *Record) descriptor() (*dicom.Dataset, error) {
	r.descOnce.Do(func() {
		path := filepath.Join(r.dir, DescriptorName)
		ds, err := dicom.ParseFile(path, nil, dicom.SkipPixelData())
		if err != nil {
			if os.IsNotExist(err) {
				r.descErr = fmt.Errorf("%w: %s has no %s", ErrMetadataMissing, r.dir, DescriptorName)
				return
			}
			r.descErr = fmt.Errorf("%w: parse %s: %v", ErrMetadataMissing, path, err)
			return
		}
		r.desc = &ds
	})
	return r.desc, r.descErr
}

// firstRecord parses the instance file referenced by the first directory
// record that carries a file reference. Patient identity and acquisition
// time tags live there, not in the descriptor itself.
func (r *Record) firstRecord() (*dicom.Dataset, error) {
	r.firstOnce.Do(func() {
		files, err := r.SeriesFiles()
		if err != nil {
			r.firstErr = err
			return
		}
		ds, err := dicom.ParseFile(files[0], nil, dicom.SkipPixelData())
		if err != nil {
			r.firstErr = fmt.Errorf("%w: parse %s: %v", ErrMetadataMissing, files[0], err)
			return
		}
		r.first = &ds
	})
	return r.first, r.firstErr
}

// SeriesFiles returns the referenced instance files in descriptor order.
func (r *Record) SeriesFiles() ([]string, error) {
	r.filesOnce.Do(func() {
		desc, err := r.descriptor()
		if err != nil {
			r.filesErr = err
			return
		}
		r.files, r.filesErr = referencedFiles(desc, r.dir)
	})
	return r.files, r.filesErr
}

// PatientName returns the repaired patient display name. The name is the
// stable grouping key; the numeric identifier is not.
func (r *Record) PatientName() (string, error) {
	raw, err := r.tagString(tag.PatientName)
	if err != nil {
		return "", err
	}
	return RepairName(raw), nil
}

// PatientID returns the identifier assigned by the scanning system. It may
// differ across two records of the same physical patient.
func (r *Record) PatientID() (string, error) {
	return r.tagString(tag.PatientID)
}

// AcquisitionTime returns the acquisition timestamp with sub-day precision.
// AcquisitionDateTime is preferred; the AcquisitionDate + AcquisitionTime
// tag pair is accepted as a fallback since PACS exports vary.
func (r *Record) AcquisitionTime() (time.Time, error) {
	first, err := r.firstRecord()
	if err != nil {
		return time.Time{}, err
	}
	if value := datasetString(first, tag.AcquisitionDateTime); value != "" {
		return ParseDT(value)
	}
	date := datasetString(first, tag.AcquisitionDate)
	if date == "" {
		return time.Time{}, fmt.Errorf("%w: %s: no acquisition datetime tag", ErrMetadataMissing, r.dir)
	}
	return ParseDT(date + datasetString(first, tag.AcquisitionTime))
}

// Volume returns the physical extent of the image grid in mm³ (voxel count
// times spacing), derived from a metadata-only probe of the series. Used
// solely for outlier detection.
func (r *Record) Volume() (float64, error) {
	r.volumeOnce.Do(func() {
		files, err := r.SeriesFiles()
		if err != nil {
			r.volumeErr = err
			return
		}
		geom, err := imaging.ProbeGeometry(files)
		if err != nil {
			r.volumeErr = err
			return
		}
		r.volume = geom.Volume()
	})
	return r.volume, r.volumeErr
}

func (r *Record) tagString(t tag.Tag) (string, error) {
	first, err := r.firstRecord()
	if err != nil {
		return "", err
	}
	value := datasetString(first, t)
	if value == "" {
		info, _ := tag.Find(t)
		return "", fmt.Errorf("%w: %s: tag %s absent", ErrMetadataMissing, r.dir, info.Name)
	}
	return value, nil
}

// datasetString extracts the first string value for the given tag, or ""
// when the tag is absent or empty.
func datasetString(ds *dicom.Dataset, t tag.Tag) string {
	if ds == nil {
		return ""
	}
	el, err := ds.FindElementByTag(t)
	if err != nil || el == nil {
		return ""
	}
	vals := dicom.MustGetStrings(el.Value)
	if len(vals) == 0 {
		return ""
	}
	return strings.TrimSpace(vals[0])
}

// referencedFiles resolves every ReferencedFileID in the descriptor's
// directory record sequence against the acquisition directory.
func referencedFiles(desc *dicom.Dataset, dir string) ([]string, error) {
	seqEl, err := desc.FindElementByTag(tag.DirectoryRecordSequence)
	if err != nil || seqEl == nil {
		return nil, fmt.Errorf("%w: %s: no directory record sequence", ErrMetadataMissing, dir)
	}
	items, ok := seqEl.Value.GetValue().([]*dicom.SequenceItemValue)
	if !ok || len(items) == 0 {
		return nil, fmt.Errorf("%w: %s: empty directory record sequence", ErrMetadataMissing, dir)
	}

	var files []string
	seen := make(map[string]struct{})
	for _, item := range items {
		elements, ok := item.GetValue().([]*dicom.Element)
		if !ok {
			continue
		}
		for _, el := range elements {
			if el.Tag != tag.ReferencedFileID {
				continue
			}
			components := dicom.MustGetStrings(el.Value)
			if len(components) == 0 {
				continue
			}
			path := resolveFileID(dir, components)
			if _, dup := seen[path]; dup {
				continue
			}
			seen[path] = struct{}{}
			files = append(files, path)
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: %s: directory records reference no files", ErrMetadataMissing, dir)
	}
	return files, nil
}

// resolveFileID joins the multi-valued ReferencedFileID path components.
// Some exports reference a flat layout while recording nested components;
// when the joined path does not exist but the leaf does, the leaf wins.
func resolveFileID(dir string, components []string) string {
	parts := append([]string{dir}, components...)
	joined := filepath.Join(parts...)
	if _, err := os.Stat(joined); err == nil {
		return joined
	}
	leaf := filepath.Join(dir, components[len(components)-1])
	if _, err := os.Stat(leaf); err == nil {
		return leaf
	}
	return joined
}
