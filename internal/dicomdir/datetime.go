package dicomdir

import (
	"fmt"
	"strings"
	"time"
)

// ParseDT parses a DICOM DT value: YYYYMMDDHHMMSS with optional fractional
// seconds and optional +ZZXX/-ZZXX offset suffix, truncated forms allowed.
func ParseDT(value string) (time.Time, error) {
	s := strings.TrimSpace(value)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty datetime value", ErrMetadataMissing)
	}

	loc := time.Local
	if idx := strings.IndexAny(s, "+-"); idx > 0 {
		offset, err := parseOffset(s[idx:])
		if err != nil {
			return time.Time{}, err
		}
		loc = offset
		s = s[:idx]
	}

	frac := ""
	if idx := strings.IndexByte(s, '.'); idx >= 0 {
		frac = s[idx:]
		s = s[:idx]
	}

	var layout string
	switch len(s) {
	case 8:
		layout = "20060102"
	case 10:
		layout = "2006010215"
	case 12:
		layout = "200601021504"
	case 14:
		layout = "20060102150405"
	default:
		return time.Time{}, fmt.Errorf("unsupported DT value %q", value)
	}
	if frac != "" {
		layout += "." + strings.Repeat("9", len(frac)-1)
		s += frac
	}

	t, err := time.ParseInLocation(layout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse DT value %q: %w", value, err)
	}
	return t, nil
}

func parseOffset(s string) (*time.Location, error) {
	if len(s) != 5 {
		return nil, fmt.Errorf("malformed DT offset %q", s)
	}
	sign := 1
	if s[0] == '-' {
		sign = -1
	}
	var hh, mm int
	if _, err := fmt.Sscanf(s[1:], "%02d%02d", &hh, &mm); err != nil {
		return nil, fmt.Errorf("malformed DT offset %q: %w", s, err)
	}
	return time.FixedZone(s, sign*(hh*3600+mm*60)), nil
}
