package main

import (
	"errors"

	"github.com/pevans/confpapers/config"
	"github.com/pevans/confpapers/corpus"
	"github.com/pevans/confpapers/pipeline"
)

// Process exit codes.
const (
	exitOK      = 0
	exitFailure = 1 // general failure, aborted full re-scrape
	exitConfig  = 2 // bad configuration or arguments
	exitData    = 3 // unreadable corpus file
)

// exitError attaches an exit code to an error.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

func (e *exitError) Unwrap() error { return e.err }

func configError(err error) error { return &exitError{code: exitConfig, err: err} }

func dataError(err error) error { return &exitError{code: exitData, err: err} }

// exitCode maps an error returned by a command to the process exit code.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}

	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}

	var rowErr *corpus.RowError
	switch {
	case errors.Is(err, pipeline.ErrUnreadableCorpus),
		errors.Is(err, corpus.ErrBadHeader),
		errors.As(err, &rowErr):
		return exitData
	case errors.Is(err, config.ErrInvalidSetting),
		errors.Is(err, pipeline.ErrInvalidRequest),
		errors.Is(err, corpus.ErrUnknownConference):
		return exitConfig
	default:
		return exitFailure
	}
}
