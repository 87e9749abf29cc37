package identity

import (
	"regexp"
	"strings"
)

var letterRegex = regexp.MustCompile(`[A-Za-z]`)

// ExternalID turns an internal ListReff into the id the external providers know.
// Acquaint-backed agencies prefix their refs with the site prefix; everything else
// carries letter decorations around a numeric id.
func ExternalID(listReff, sitePrefix string) string {
	id := strings.TrimSpace(listReff)
	prefix := strings.TrimSpace(sitePrefix)
	if prefix != "" && strings.Contains(id, prefix) {
		return strings.TrimSpace(strings.Replace(id, prefix, "", 1))
	}
	return strings.TrimSpace(letterRegex.ReplaceAllString(id, ""))
}

// AcquaintID strips the site prefix from an id found in the Acquaint feed.
func AcquaintID(feedID, sitePrefix string) string {
	id := strings.TrimSpace(feedID)
	if prefix := strings.TrimSpace(sitePrefix); prefix != "" {
		id = strings.TrimPrefix(id, prefix)
	}
	return strings.TrimSpace(id)
}
