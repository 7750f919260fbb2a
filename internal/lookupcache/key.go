package lookupcache

import (
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Key builds the canonical cache key for a normalized title and optional
// year. Titles are NFC-normalized and lowercased so source variants of the
// same name collapse to one entry.
func Key(title string, year *int) string {
	cleaned := strings.ToLower(strings.TrimSpace(norm.NFC.String(title)))
	var builder strings.Builder
	builder.WriteString(cleaned)
	builder.WriteString("__")
	if year != nil {
		builder.WriteString(strconv.Itoa(*year))
	}
	return builder.String()
}
