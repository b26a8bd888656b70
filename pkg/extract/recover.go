package extract

import (
	"regexp"
	"strings"
)

var trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)

// RepairJSON applies a single best-effort repair pass to a string that
// failed to parse as JSON. It removes trailing commas before closing
// braces or brackets and appends any missing closing braces. The result
// is not guaranteed to be valid; the dominant failure mode is a
// truncated trailing object, so bracket-type matching for arrays is
// intentionally not attempted.
func RepairJSON(s string) string {
	repaired := trailingCommaRe.ReplaceAllString(s, "$1")

	opens := strings.Count(repaired, "{")
	closes := strings.Count(repaired, "}")
	if opens > closes {
		repaired += strings.Repeat("}", opens-closes)
	}

	return repaired
}
