package shared

import (
	"html"
	"regexp"
	"strings"
)

var markupPattern = regexp.MustCompile(`<[^>]*>`)

// closedPeriodHints lists keyword groups; a message matches when every keyword of a group is present.
var closedPeriodHints = [][]string{
	{"period", "closed"},
	{"periode", "tutup"},
	{"closedaccountingperiod"},
	{"cannot modify transaction"},
	{"tidak dapat", "periode"},
}

// StripMarkup removes HTML tags and entities from ERP messages.
func StripMarkup(msg string) string {
	return html.UnescapeString(markupPattern.ReplaceAllString(msg, ""))
}

// IsClosedPeriodMessage reports whether the ERP refused a write because the accounting period is closed.
func IsClosedPeriodMessage(msg string) bool {
	lower := strings.ToLower(msg)
	for _, group := range closedPeriodHints {
		matched := true
		for _, kw := range group {
			if !strings.Contains(lower, kw) {
				matched = false
				break
			}
		}
		if matched {
			return true
		}
	}
	return false
}
