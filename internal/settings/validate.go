package settings

import "regexp"

// Placeholder stands in for a stored token; leaving it in the field means
// "keep the current token".
const Placeholder = "************"

var ingestURLPattern = regexp.MustCompile(`(?i)^https?://.*$`)

// ValidIngestURL reports whether s is a non-empty http(s) URL.
func ValidIngestURL(s string) bool {
	return s != "" && ingestURLPattern.MatchString(s)
}

// ValidAccessToken reports whether s is non-empty. The placeholder is valid.
func ValidAccessToken(s string) bool {
	return s != ""
}
