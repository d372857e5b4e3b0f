package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"rera_crawler/models"
)

var (
	multiSpaceRegex = regexp.MustCompile(`\s+`)
	slashSpaceRegex = regexp.MustCompile(`\s*/\s*`)
)

// NormalizeRegNo canonicalises a registration number so that ids copied from
// different pages compare equal: upper case, no padding around separators.
func NormalizeRegNo(regNo string) string {
	regNo = strings.ToUpper(strings.TrimSpace(regNo))
	regNo = slashSpaceRegex.ReplaceAllString(regNo, "/")
	regNo = multiSpaceRegex.ReplaceAllString(regNo, " ")
	return regNo
}

// Fingerprint hashes what the registry publishes about a project. The term
// that found it, its row position and the extraction time are left out, so
// an unchanged project fingerprints the same on every crawl.
func Fingerprint(r *models.ProjectRecord) string {
	content := *r
	content.Term = ""
	content.ExtractedAt = time.Time{}
	content.Summary.SNo = ""
	content.Summary.RegNo = NormalizeRegNo(r.Summary.RegNo)
	data, _ := json.Marshal(&content)
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:16])
}
