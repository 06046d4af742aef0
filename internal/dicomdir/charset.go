package dicomdir

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/simplifiedchinese"
)

// RepairName normalizes a raw PatientName (PN) value into the display name
// used as the grouping key. Group/component carets become spaces, padding
// is stripped, and byte sequences that are not valid UTF-8 but decode as
// GB18030 are re-decoded: the cohort was exported through a PACS that
// stamped GB-encoded names without a matching character set tag.
func RepairName(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.Trim(s, "^=")
	s = strings.ReplaceAll(s, "^", " ")
	s = strings.Join(strings.Fields(s), " ")
	if s == "" || utf8.ValidString(s) {
		return s
	}
	decoded, err := simplifiedchinese.GB18030.NewDecoder().String(s)
	if err != nil || !utf8.ValidString(decoded) {
		return s
	}
	return decoded
}
