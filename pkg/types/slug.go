package types

import (
	"fmt"
	"regexp"
	"strings"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

// Slugify derives a slug from a display name: lowercased, runs of
// non-alphanumerics collapsed to single hyphens, hyphens trimmed.
func Slugify(name string) string {
	lower := strings.ToLower(name)
	var b strings.Builder
	lastHyphen := true
	for _, r := range lower {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		case !lastHyphen:
			b.WriteByte('-')
			lastHyphen = true
		}
	}
	return strings.Trim(b.String(), "-")
}

// ValidateSlug rejects slugs outside [a-z0-9-]+.
func ValidateSlug(slug string) error {
	if !slugPattern.MatchString(slug) {
		return fmt.Errorf("invalid slug %q: must match [a-z0-9-]+", slug)
	}
	return nil
}
