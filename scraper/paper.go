package scraper

import (
	"strings"

	"github.com/pevans/confpapers/corpus"
)

// Author is a paper author with the affiliations listed for them on the
// conference site. Affiliations may be empty.
type Author struct {
	Name         string
	Affiliations []string
}

// Paper is one accepted paper as read from a conference listing, before it
// is flattened into corpus records.
type Paper struct {
	Conference corpus.Conference
	Year       int
	Title      string
	Authors    []Author
}

// normalize collapses runs of whitespace to a single space and trims the
// ends.
func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// normalizeAll normalizes every string and drops the ones that end up empty.
func normalizeAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = normalize(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
