package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pevans/confpapers/corpus"
)

// parseYears parses "2019" or an inclusive range "2008-2010".
func parseYears(s string) (from, to int, err error) {
	s = strings.TrimSpace(s)
	first, last, isRange := strings.Cut(s, "-")

	from, err = strconv.Atoi(strings.TrimSpace(first))
	if err != nil || from <= 0 {
		return 0, 0, fmt.Errorf("invalid year %q: want YYYY or YYYY-YYYY", s)
	}
	if !isRange {
		return from, from, nil
	}

	to, err = strconv.Atoi(strings.TrimSpace(last))
	if err != nil || to <= 0 {
		return 0, 0, fmt.Errorf("invalid year %q: want YYYY or YYYY-YYYY", s)
	}
	if to < from {
		return 0, 0, fmt.Errorf("invalid year range %q: end precedes start", s)
	}
	return from, to, nil
}

// parseConferences parses repeated --conference values. Empty means all.
func parseConferences(names []string) ([]corpus.Conference, error) {
	var confs []corpus.Conference
	for _, name := range names {
		for _, part := range strings.Split(name, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			c, err := corpus.ParseConference(part)
			if err != nil {
				return nil, err
			}
			confs = append(confs, c)
		}
	}
	return confs, nil
}

// formatSpan renders a generation's years, e.g. "2006-2019" or "2020-".
func formatSpan(from, to int) string {
	switch {
	case to == 0:
		return fmt.Sprintf("%d-", from)
	case to == from:
		return strconv.Itoa(from)
	default:
		return fmt.Sprintf("%d-%d", from, to)
	}
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
