// Package curate implements the selection pipeline that turns a raw
// discovery pass into a patient catalogue: volume outlier rejection
// against the cohort mean, grouping by display name, and the minimum
// follow-up window policy.
package curate
