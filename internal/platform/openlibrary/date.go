package openlibrary

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Layouts tried after ISO 8601, in order. Fields missing from a layout
// default to 1.
var publishDateLayouts = []string{
	"January 2, 2006",
	"Jan 2, 2006",
	"January 2 2006",
	"Jan 2 2006",
	"2006",
	"January 2006",
	"Jan 2006",
	"January, 2006",
	"Jan, 2006",
	"1/2006",
	"2 January 2006",
	"2 Jan 2006",
	"2006/1/2",
	"1/2/2006",
}

var (
	septPattern  = regexp.MustCompile(`(?i)\bsept\b\.?`)
	spacePattern = regexp.MustCompile(`\s+`)
)

// ParsePublishDate parses the free text publish dates found on editions.
// When nothing matches, the ISO parse error is returned.
func ParsePublishDate(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	t, isoErr := time.Parse(time.DateOnly, s)
	if isoErr == nil {
		return t, nil
	}

	s = septPattern.ReplaceAllString(s, "Sep")
	s = spacePattern.ReplaceAllString(s, " ")
	s = strings.TrimSuffix(s, ".")
	for _, layout := range publishDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse publish date %q: %w", raw, isoErr)
}
