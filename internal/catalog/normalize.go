package catalog

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var folder = cases.Fold()

// NormalizeName trims, collapses inner whitespace and applies NFC so
// visually identical names compare equal.
func NormalizeName(s string) string {
	return norm.NFC.String(strings.Join(strings.Fields(s), " "))
}

// NormalizeKey is the unique lookup key for creators, publishers, roles
// and series.
func NormalizeKey(s string) string {
	return folder.String(NormalizeName(s))
}
