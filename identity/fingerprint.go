package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"propsync/models"
)

var (
	streetReplacements = map[string]string{
		"street":    "st",
		"avenue":    "ave",
		"drive":     "dr",
		"road":      "rd",
		"lane":      "ln",
		"court":     "ct",
		"place":     "pl",
		"crescent":  "cres",
		"terrace":   "ter",
		"square":    "sq",
		"park":      "pk",
		"grove":     "gr",
		"apartment": "apt",
		"county":    "co",
	}
	multiSpaceRegex = regexp.MustCompile(`\s+`)
	nonAlnumRegex   = regexp.MustCompile(`[^a-z0-9\s]`)
)

// Fingerprint hashes the parts of a market listing that identify its content.
// A changed fingerprint means the listing was edited upstream.
func Fingerprint(listing *models.DaftListing) string {
	input := fmt.Sprintf("%s|%s|%s|%s|%s|%s|%d",
		NormalizeAddress(listing.Address),
		strings.TrimSpace(listing.Price),
		strings.TrimSpace(listing.Bedrooms),
		strings.TrimSpace(listing.Bathrooms),
		strings.ToLower(strings.TrimSpace(listing.PropertyType)),
		strings.ToUpper(strings.TrimSpace(listing.BERRating)),
		len(listing.Images),
	)
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:16])
}

// NormalizeAddress lowercases an address, drops punctuation and abbreviates
// common street words so cosmetic differences do not change the fingerprint.
func NormalizeAddress(addr string) string {
	addr = strings.ToLower(strings.TrimSpace(addr))
	addr = nonAlnumRegex.ReplaceAllString(addr, " ")
	words := strings.Fields(addr)
	for i, w := range words {
		if abbrev, ok := streetReplacements[w]; ok {
			words[i] = abbrev
		}
	}
	return multiSpaceRegex.ReplaceAllString(strings.Join(words, " "), " ")
}
