package curate

import (
	"errors"
	"fmt"
	"strings"

	"ctcurator/internal/dicomdir"
	"ctcurator/internal/imaging"
)

var (
	// ErrMetadataMissing marks an acquisition whose descriptor or a
	// required tag is absent. Fatal for that acquisition only.
	ErrMetadataMissing = dicomdir.ErrMetadataMissing
	// ErrImageDecode marks an acquisition whose series cannot be
	// reconstructed. Fatal for that acquisition, never retried.
	ErrImageDecode = imaging.ErrImageDecode
	// ErrInsufficientHistory marks a patient dropped by the temporal
	// span policy. A filtering outcome, not a failure.
	ErrInsufficientHistory = errors.New("insufficient history")
	// ErrExportFailure marks one failed unit of a concurrent export
	// batch. Siblings are unaffected.
	ErrExportFailure = errors.New("export failure")
	// ErrRegistrationFailure marks an audit whose registration could
	// not run to a usable result. The patient is reported as
	// unverifiable rather than aborting the audit pass.
	ErrRegistrationFailure = errors.New("registration failure")
)

// Wrap tags err with a sentinel marker and stage context so failures
// classify with errors.Is while still reading well in logs.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrExportFailure
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "stage failure"
	}
	return strings.Join(parts, ": ")
}
