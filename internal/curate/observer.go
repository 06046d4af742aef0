package curate

import (
	"log/slog"
	"time"

	"ctcurator/internal/logging"
)

// Observer receives the structured events a curation pass emits. Every
// exclusion carries enough context to act on without re-running.
type Observer interface {
	// AcquisitionSkipped reports a directory whose metadata could not
	// be resolved. The acquisition is excluded from grouping.
	AcquisitionSkipped(dir string, err error)
	// VolumeExcluded reports an acquisition rejected as a volume
	// outlier, with its absolute volume and ratio to the cohort mean.
	VolumeExcluded(id, name string, when time.Time, volume, ratio float64)
	// PatientExcluded reports a patient group dropped for a follow-up
	// window shorter than the policy minimum.
	PatientExcluded(id, name string, span time.Duration)
	// Progress reports completed vs total units of the export batch.
	Progress(completed, total int)
	// UnitFailed reports one failed export unit. Sibling units keep
	// running.
	UnitFailed(patientID, date string, err error)
}

// LogObserver renders events onto a slog logger.
type LogObserver struct {
	log *slog.Logger
}

func NewLogObserver(logger *slog.Logger) *LogObserver {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &LogObserver{log: logger}
}

func (o *LogObserver) AcquisitionSkipped(dir string, err error) {
	o.log.Warn("acquisition skipped",
		logging.String("dir", dir),
		logging.Error(err))
}

func (o *LogObserver) VolumeExcluded(id, name string, when time.Time, volume, ratio float64) {
	o.log.Warn("volume outlier excluded",
		logging.String(logging.FieldPatientID, id),
		logging.String(logging.FieldPatientName, name),
		logging.Time(logging.FieldAcquisition, when),
		logging.Float64("volume_mm3", volume),
		logging.Float64("ratio_to_mean", ratio))
}

func (o *LogObserver) PatientExcluded(id, name string, span time.Duration) {
	o.log.Warn("patient excluded, follow-up window too short",
		logging.String(logging.FieldPatientID, id),
		logging.String(logging.FieldPatientName, name),
		logging.Duration("span", span))
}

func (o *LogObserver) Progress(completed, total int) {
	o.log.Info("export progress",
		logging.Int("completed", completed),
		logging.Int("total", total))
}

func (o *LogObserver) UnitFailed(patientID, date string, err error) {
	o.log.Error("export unit failed",
		logging.String(logging.FieldPatientID, patientID),
		logging.String("date", date),
		logging.Error(err))
}

// NopObserver discards every event. Useful in tests and for read-only
// commands.
type NopObserver struct{}

func (NopObserver) AcquisitionSkipped(string, error)                            {}
func (NopObserver) VolumeExcluded(string, string, time.Time, float64, float64)  {}
func (NopObserver) PatientExcluded(string, string, time.Duration)               {}
func (NopObserver) Progress(int, int)                                           {}
func (NopObserver) UnitFailed(string, string, error)                            {}
