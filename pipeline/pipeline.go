// Package pipeline runs a scrape: it plans one unit per conference year,
// runs the units with bounded parallelism, orders their rows and merges them
// into the corpus file.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pevans/confpapers/corpus"
	"github.com/pevans/confpapers/ledger"
	"github.com/pevans/confpapers/scraper"
	"github.com/rs/zerolog"
)

var (
	// ErrAborted is returned when a full re-scrape had a failed unit. Nothing
	// is written.
	ErrAborted = errors.New("full re-scrape aborted")

	// ErrNothingScraped is returned when an incremental run had failures and
	// no unit succeeded.
	ErrNothingScraped = errors.New("every unit failed")

	// ErrInvalidRequest wraps request validation failures.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrUnreadableCorpus wraps failures to load the existing corpus file.
	ErrUnreadableCorpus = errors.New("existing corpus is unreadable")
)

// Resolver picks the page format for a conference year. *scraper.Registry
// implements it.
type Resolver interface {
	Resolve(conf corpus.Conference, year int) (scraper.Format, error)
}

// Ledger records unit outcomes. *ledger.Store implements it.
type Ledger interface {
	RecordUnit(u *ledger.Unit) error
	LastSucceeded(conf corpus.Conference, year int) (*ledger.Unit, error)
}

// Config holds pipeline settings.
type Config struct {
	// Maximum number of units scraped at once
	Parallel int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{Parallel: 4}
}

// Request describes one invocation.
type Request struct {
	// Conferences to scrape; empty means all three.
	Conferences []corpus.Conference

	// From and To are the inclusive year range.
	From int
	To   int

	// Full ignores the existing corpus and aborts on any unit failure.
	Full bool

	// SkipScraped skips units the ledger shows as succeeded. Incremental
	// runs only.
	SkipScraped bool

	// Output is the corpus file.
	Output string

	// UpdateOnly, when set, receives only the newly admitted rows and the
	// corpus file is left untouched.
	UpdateOnly string
}

// Unit is one conference year.
type Unit struct {
	Conference corpus.Conference
	Year       int
}

func (u Unit) String() string {
	return fmt.Sprintf("%s %d", u.Conference, u.Year)
}

// UnitResult is the outcome of one unit. Err is set for failed units and for
// units skipped because their year is unsupported.
type UnitResult struct {
	Unit
	ID       uuid.UUID
	Format   string
	Status   ledger.Status
	Papers   int
	Records  []corpus.Record
	Err      error
	Duration time.Duration
}

// Result summarizes a run.
type Result struct {
	RunID    uuid.UUID
	Units    []UnitResult
	Scraped  int
	Admitted []corpus.Record

	// CorpusSize is the number of rows in the corpus after the merge.
	CorpusSize int

	// Written is the path that was written, empty when nothing was.
	Written string
}

// Failed returns the failed units in plan order.
func (r *Result) Failed() []UnitResult {
	return r.withStatus(ledger.StatusFailed)
}

// Skipped returns the skipped units in plan order.
func (r *Result) Skipped() []UnitResult {
	return r.withStatus(ledger.StatusSkipped)
}

// Succeeded returns the succeeded units in plan order.
func (r *Result) Succeeded() []UnitResult {
	return r.withStatus(ledger.StatusSucceeded)
}

func (r *Result) withStatus(s ledger.Status) []UnitResult {
	var out []UnitResult
	for _, u := range r.Units {
		if u.Status == s {
			out = append(out, u)
		}
	}
	return out
}

// Pipeline runs scrapes. The ledger and metrics are optional.
type Pipeline struct {
	resolver Resolver
	ledger   Ledger
	metrics  *Metrics
	config   *Config
	logger   zerolog.Logger
	now      func() time.Time
}

// New creates a pipeline. store and metrics may be nil.
func New(resolver Resolver, store Ledger, metrics *Metrics, config *Config, logger zerolog.Logger) *Pipeline {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Parallel < 1 {
		config.Parallel = 1
	}

	return &Pipeline{
		resolver: resolver,
		ledger:   store,
		metrics:  metrics,
		config:   config,
		logger:   logger.With().Str("component", "pipeline").Logger(),
		now:      time.Now,
	}
}

// Plan returns the units of a request ordered by year, then conference
// name. Duplicate conferences are ignored.
func Plan(req Request) []Unit {
	confs := req.Conferences
	if len(confs) == 0 {
		confs = corpus.Conferences
	}

	ordered := make([]corpus.Conference, 0, len(corpus.Conferences))
	for _, c := range corpus.Conferences {
		if slices.Contains(confs, c) {
			ordered = append(ordered, c)
		}
	}

	var units []Unit
	for year := req.From; year <= req.To; year++ {
		for _, c := range ordered {
			units = append(units, Unit{Conference: c, Year: year})
		}
	}
	return units
}

func (req Request) validate() error {
	if req.From <= 0 || req.To <= 0 {
		return fmt.Errorf("%w: years must be positive", ErrInvalidRequest)
	}
	if req.From > req.To {
		return fmt.Errorf("%w: year range %d-%d is reversed", ErrInvalidRequest, req.From, req.To)
	}
	if req.Output == "" && req.UpdateOnly == "" {
		return fmt.Errorf("%w: no output path", ErrInvalidRequest)
	}
	if req.Full && req.SkipScraped {
		return fmt.Errorf("%w: a full re-scrape cannot skip scraped years", ErrInvalidRequest)
	}
	if req.Full && req.UpdateOnly != "" {
		return fmt.Errorf("%w: a full re-scrape rewrites the corpus and has no update-only output", ErrInvalidRequest)
	}
	for _, c := range req.Conferences {
		if !slices.Contains(corpus.Conferences, c) {
			return fmt.Errorf("%w: %w: %q", ErrInvalidRequest, corpus.ErrUnknownConference, c)
		}
	}
	return nil
}

// Run executes a request. The corpus is read at most once and written at
// most once. In full mode any failed unit aborts the run with ErrAborted
// before anything is written; in incremental mode the rows of successful
// units are persisted and failures are reported in the Result.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	existing := corpus.New()
	if !req.Full && req.Output != "" {
		c, err := corpus.Load(req.Output)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnreadableCorpus, err)
		}
		existing = c
	}

	result := &Result{RunID: uuid.New()}
	logger := p.logger.With().Str("run", result.RunID.String()).Logger()

	units := Plan(req)
	logger.Info().
		Int("units", len(units)).
		Int("from", req.From).
		Int("to", req.To).
		Bool("full", req.Full).
		Int("existing_rows", existing.Len()).
		Msg("Starting scrape")

	results, err := p.runUnits(ctx, result.RunID, units, req.SkipScraped)
	if err != nil {
		return nil, err
	}
	result.Units = results

	// Units are in plan order, which is Year then Conference.
	var incoming []corpus.Record
	for _, u := range results {
		incoming = append(incoming, u.Records...)
	}
	result.Scraped = len(incoming)

	failed := result.Failed()
	if req.Full && len(failed) > 0 {
		logger.Error().Int("failed", len(failed)).Msg("Full re-scrape aborted, nothing written")
		return result, fmt.Errorf("%w: %s", ErrAborted, describe(failed))
	}
	succeeded := result.Succeeded()
	if len(failed) > 0 && len(succeeded) == 0 {
		return result, fmt.Errorf("%w: %s", ErrNothingScraped, describe(failed))
	}
	if req.Full && len(succeeded) == 0 {
		logger.Error().Int("skipped", len(result.Skipped())).Msg("Full re-scrape found no listings, nothing written")
		return result, fmt.Errorf("%w: no conference year in %d-%d has a listing", ErrNothingScraped, req.From, req.To)
	}

	merged, admitted := corpus.Merge(existing, incoming)
	result.Admitted = admitted
	result.CorpusSize = merged.Len()
	if p.metrics != nil {
		p.metrics.RecordMerge(len(incoming), admitted)
	}

	switch {
	case req.UpdateOnly != "":
		if err := corpus.WriteFile(req.UpdateOnly, admitted); err != nil {
			return result, fmt.Errorf("failed to write update file: %w", err)
		}
		result.Written = req.UpdateOnly
	case len(admitted) == 0 && existing.Len() > 0:
		logger.Info().Msg("No new rows, corpus unchanged")
	default:
		if err := corpus.Save(req.Output, merged); err != nil {
			return result, fmt.Errorf("failed to save corpus: %w", err)
		}
		result.Written = req.Output
	}

	if p.metrics != nil {
		p.metrics.RecordSuccess(p.now())
	}

	event := logger.Info()
	if len(failed) > 0 {
		event = logger.Warn().Str("failed_units", describe(failed))
	}
	event.
		Int("scraped", result.Scraped).
		Int("admitted", len(admitted)).
		Int("corpus_rows", result.CorpusSize).
		Int("failed", len(failed)).
		Int("skipped", len(result.Skipped())).
		Str("written", result.Written).
		Msg("Scrape finished")

	return result, nil
}

// runUnits runs every unit with at most config.Parallel in flight. Results
// are returned in the order of units. Context cancellation stops new units
// and returns the context error once running units have finished.
func (p *Pipeline) runUnits(ctx context.Context, runID uuid.UUID, units []Unit, skipScraped bool) ([]UnitResult, error) {
	results := make([]UnitResult, len(units))
	semaphore := make(chan struct{}, p.config.Parallel)
	var wg sync.WaitGroup

	for i, unit := range units {
		if skipScraped && p.alreadyScraped(unit) {
			results[i] = UnitResult{
				Unit:   unit,
				ID:     uuid.New(),
				Status: ledger.StatusSkipped,
			}
			p.logger.Info().
				Str("conference", string(unit.Conference)).
				Int("year", unit.Year).
				Msg("Skipping unit already in ledger")
			continue
		}

		select {
		case <-ctx.Done():
			wg.Wait()
			return nil, ctx.Err()
		case semaphore <- struct{}{}: // Acquire semaphore
			wg.Add(1)
			go func(i int, u Unit) {
				defer wg.Done()
				defer func() { <-semaphore }() // Release semaphore

				results[i] = p.runUnit(ctx, runID, u)
			}(i, unit)
		}
	}

	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (p *Pipeline) alreadyScraped(u Unit) bool {
	if p.ledger == nil {
		return false
	}
	_, err := p.ledger.LastSucceeded(u.Conference, u.Year)
	if err != nil && !errors.Is(err, ledger.ErrUnitNotFound) {
		p.logger.Warn().Err(err).Str("unit", u.String()).Msg("Failed to read ledger, scraping unit")
	}
	return err == nil
}

// runUnit scrapes one conference year. It never returns an error; failures
// are captured in the result so other units are unaffected.
func (p *Pipeline) runUnit(ctx context.Context, runID uuid.UUID, u Unit) UnitResult {
	res := UnitResult{Unit: u, ID: uuid.New()}
	started := p.now()

	logger := p.logger.With().
		Str("unit", res.ID.String()).
		Str("conference", string(u.Conference)).
		Int("year", u.Year).
		Logger()

	format, err := p.resolver.Resolve(u.Conference, u.Year)
	switch {
	case scraper.IsUnsupportedYear(err):
		res.Status = ledger.StatusSkipped
		res.Err = err
		logger.Info().Err(err).Msg("Skipping unsupported year")
	case err != nil:
		res.Status = ledger.StatusFailed
		res.Err = err
	default:
		res.Format = format.Name()
		logger = logger.With().Str("format", res.Format).Logger()
		logger.Debug().Msg("Scraping unit")
		res.Records, res.Papers, res.Err = collect(ctx, format, u)
		if res.Err != nil {
			res.Status = ledger.StatusFailed
			res.Records = nil
		} else {
			res.Status = ledger.StatusSucceeded
		}
	}

	finished := p.now()
	res.Duration = finished.Sub(started)

	switch res.Status {
	case ledger.StatusFailed:
		logger.Error().Err(res.Err).Dur("duration", res.Duration).Msg("Unit failed")
	case ledger.StatusSucceeded:
		logger.Info().
			Int("papers", res.Papers).
			Int("rows", len(res.Records)).
			Dur("duration", res.Duration).
			Msg("Unit scraped")
	}

	if p.metrics != nil {
		p.metrics.RecordUnit(res)
	}
	p.record(logger, runID, res, started, finished)

	return res
}

// collect drains a format's paper sequence and flattens it. Any error
// discards the rows read so far.
func collect(ctx context.Context, format scraper.Format, u Unit) ([]corpus.Record, int, error) {
	var records []corpus.Record
	papers := 0

	for paper, err := range format.ListPapers(ctx, u.Conference, u.Year) {
		if err != nil {
			return nil, papers, err
		}
		papers++
		for _, r := range scraper.Flatten(paper) {
			if err := r.Validate(); err != nil {
				return nil, papers, fmt.Errorf("failed to flatten %q: %w", paper.Title, err)
			}
			records = append(records, r)
		}
	}

	return records, papers, nil
}

func (p *Pipeline) record(logger zerolog.Logger, runID uuid.UUID, res UnitResult, started, finished time.Time) {
	if p.ledger == nil {
		return
	}

	unit := &ledger.Unit{
		UnitID:     res.ID,
		RunID:      runID,
		Conference: res.Conference,
		Year:       res.Year,
		Format:     res.Format,
		Status:     res.Status,
		Papers:     res.Papers,
		Rows:       len(res.Records),
		StartedAt:  started,
		FinishedAt: finished,
	}
	if res.Err != nil {
		msg := res.Err.Error()
		unit.Error = &msg
	}

	if err := p.ledger.RecordUnit(unit); err != nil {
		logger.Warn().Err(err).Msg("Failed to record unit in ledger")
	}
}

func describe(units []UnitResult) string {
	parts := make([]string, 0, len(units))
	for _, u := range units {
		parts = append(parts, fmt.Sprintf("%s (%v)", u.Unit, u.Err))
	}
	return strings.Join(parts, "; ")
}
