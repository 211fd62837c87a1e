package scraper

import (
	"errors"
	"fmt"

	"github.com/pevans/confpapers/corpus"
)

// UnsupportedYearError is returned by Resolve when no page format is known
// for a conference and year. It is never retriable.
type UnsupportedYearError struct {
	Conference corpus.Conference
	Year       int
	// Earliest is the first year the conference is supported at all, or 0
	// when the conference has no generations.
	Earliest int
	Reason   string
}

func (e *UnsupportedYearError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s %d is not supported: %s", e.Conference, e.Year, e.Reason)
	}
	return fmt.Sprintf("%s %d is not supported (earliest supported year is %d)",
		e.Conference, e.Year, e.Earliest)
}

// IsUnsupportedYear reports whether err is or wraps an UnsupportedYearError.
func IsUnsupportedYear(err error) bool {
	var target *UnsupportedYearError
	return errors.As(err, &target)
}

// ParseError is returned by an adapter when a fetched page does not have the
// structure its format expects. No partial data accompanies it.
type ParseError struct {
	Conference corpus.Conference
	Year       int
	// Page is the URL of the document that failed to parse.
	Page   string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("failed to parse %s %d page %s: %s", e.Conference, e.Year, e.Page, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// IsParseError reports whether err is or wraps a ParseError.
func IsParseError(err error) bool {
	var target *ParseError
	return errors.As(err, &target)
}

func parseError(conf corpus.Conference, year int, page, reason string) *ParseError {
	return &ParseError{Conference: conf, Year: year, Page: page, Reason: reason}
}
