package results

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Canonical returns the textual form used to compare SiteIDs across the
// evidence store and the results table. Spreadsheet round-trips turn 1042
// into "1042.0", so a trailing ".0" on an all-digit ID is dropped.
func Canonical(id string) string {
	id = norm.NFKC.String(strings.TrimSpace(id))
	if head, ok := strings.CutSuffix(id, ".0"); ok && head != "" && allDigits(head) {
		return head
	}
	return id
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
