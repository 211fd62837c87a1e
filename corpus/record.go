package corpus

import (
	"errors"
	"fmt"
	"strings"
)

// Conference identifies one of the scraped venues.
type Conference string

const (
	ICML    Conference = "ICML"
	NeurIPS Conference = "NeurIPS"
	ICLR    Conference = "ICLR"
)

// Conferences lists every supported conference in output order.
var Conferences = []Conference{ICLR, ICML, NeurIPS}

// ErrUnknownConference is returned by ParseConference for names outside the
// supported set.
var ErrUnknownConference = errors.New("conference must be ICML, NeurIPS, or ICLR")

// ParseConference maps a user-supplied name to a Conference. Matching is
// case-insensitive and accepts the pre-2018 NIPS name.
func ParseConference(name string) (Conference, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "icml":
		return ICML, nil
	case "neurips", "nips":
		return NeurIPS, nil
	case "iclr":
		return ICLR, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownConference, name)
	}
}

// Header is the fixed column order of a corpus file.
var Header = []string{"Conference", "Year", "Title", "Author", "Affiliation"}

// Record is one flattened (paper, author, affiliation) row. The whole tuple
// is its identity: two records are duplicates only if every field matches.
type Record struct {
	Conference  Conference
	Year        int
	Title       string
	Author      string
	Affiliation string
}

// Validate checks that every field except Affiliation is present.
func (r Record) Validate() error {
	if r.Conference == "" {
		return errors.New("conference is empty")
	}
	if r.Year <= 0 {
		return fmt.Errorf("invalid year %d", r.Year)
	}
	if r.Title == "" {
		return errors.New("title is empty")
	}
	if r.Author == "" {
		return errors.New("author is empty")
	}
	return nil
}
