package scraper

import (
	"fmt"
	"math"
	"slices"

	"github.com/pevans/confpapers/corpus"
	"github.com/rs/zerolog"
)

// Format names used in generation tables.
const (
	FormatSchedule   = "schedule"
	FormatVirtual    = "virtual"
	FormatSessions   = "sessions"
	FormatOpenReview = "openreview"
)

// Generation is a contiguous span of years during which a conference
// published its papers in one page format. To is inclusive; 0 means the
// span is open ended.
type Generation struct {
	Conference corpus.Conference
	From       int
	To         int
	Format     string
}

// Covers reports whether year falls inside the generation.
func (g Generation) Covers(year int) bool {
	return year >= g.From && (g.To == 0 || year <= g.To)
}

// Exception marks a single conference year inside a generation that has no
// readable listing.
type Exception struct {
	Conference corpus.Conference
	Year       int
	Reason     string
}

// DefaultGenerations is the known history of the three conference sites.
// Supporting a new year or site layout is a change to this table.
var DefaultGenerations = []Generation{
	{Conference: corpus.NeurIPS, From: 2006, To: 2019, Format: FormatSchedule},
	{Conference: corpus.NeurIPS, From: 2020, Format: FormatVirtual},
	{Conference: corpus.ICML, From: 2017, To: 2019, Format: FormatSchedule},
	{Conference: corpus.ICML, From: 2020, Format: FormatVirtual},
	{Conference: corpus.ICLR, From: 2018, To: 2019, Format: FormatSchedule},
	{Conference: corpus.ICLR, From: 2020, To: 2020, Format: FormatSessions},
	{Conference: corpus.ICLR, From: 2021, To: 2023, Format: FormatVirtual},
	{Conference: corpus.ICLR, From: 2024, Format: FormatOpenReview},
}

// DefaultExceptions lists conference years inside DefaultGenerations that
// are known to be unreadable. None are currently known.
var DefaultExceptions = []Exception{}

// Registry resolves a conference year to the Format able to read it. It is
// immutable after construction and safe for concurrent use.
type Registry struct {
	generations []Generation
	exceptions  []Exception
	formats     map[string]Format
}

// NewRegistry builds a registry from a generation table, its exceptions and
// the formats the table refers to. Every format named in the table must be
// supplied, and generations of one conference must not overlap.
func NewRegistry(generations []Generation, exceptions []Exception, formats ...Format) (*Registry, error) {
	r := &Registry{
		generations: slices.Clone(generations),
		exceptions:  slices.Clone(exceptions),
		formats:     make(map[string]Format, len(formats)),
	}

	for _, f := range formats {
		r.formats[f.Name()] = f
	}

	for i, g := range r.generations {
		if _, ok := r.formats[g.Format]; !ok {
			return nil, fmt.Errorf("generation %s %d: unknown format %q", g.Conference, g.From, g.Format)
		}
		if g.To != 0 && g.To < g.From {
			return nil, fmt.Errorf("generation %s %d: ends before it starts", g.Conference, g.From)
		}
		for _, other := range r.generations[:i] {
			if other.Conference == g.Conference && overlaps(other, g) {
				return nil, fmt.Errorf("generations %s %d and %d overlap", g.Conference, other.From, g.From)
			}
		}
	}

	// Stable order for listing: conference output order, then year.
	slices.SortStableFunc(r.generations, func(a, b Generation) int {
		if a.Conference != b.Conference {
			return slices.Index(corpus.Conferences, a.Conference) - slices.Index(corpus.Conferences, b.Conference)
		}
		return a.From - b.From
	})

	return r, nil
}

func overlaps(a, b Generation) bool {
	aEnd, bEnd := a.To, b.To
	if aEnd == 0 {
		aEnd = math.MaxInt
	}
	if bEnd == 0 {
		bEnd = math.MaxInt
	}
	return a.From <= bEnd && b.From <= aEnd
}

// Resolve returns the Format for a conference year. It fails with an
// UnsupportedYearError when the year precedes the conference's first
// generation, falls into a gap in the table or matches an exception.
func (r *Registry) Resolve(conf corpus.Conference, year int) (Format, error) {
	earliest := r.Earliest(conf)

	for _, e := range r.exceptions {
		if e.Conference == conf && e.Year == year {
			return nil, &UnsupportedYearError{
				Conference: conf,
				Year:       year,
				Earliest:   earliest,
				Reason:     e.Reason,
			}
		}
	}

	for _, g := range r.generations {
		if g.Conference == conf && g.Covers(year) {
			return r.formats[g.Format], nil
		}
	}

	err := &UnsupportedYearError{Conference: conf, Year: year, Earliest: earliest}
	switch {
	case earliest == 0:
		err.Reason = "no page formats are known for this conference"
	case year >= earliest:
		err.Reason = "no page format is known for this year"
	}
	return nil, err
}

// Earliest returns the first supported year of a conference, or 0 when the
// table has no generation for it.
func (r *Registry) Earliest(conf corpus.Conference) int {
	earliest := 0
	for _, g := range r.generations {
		if g.Conference == conf && (earliest == 0 || g.From < earliest) {
			earliest = g.From
		}
	}
	return earliest
}

// Generations returns a copy of the table, ordered by conference then year.
func (r *Registry) Generations() []Generation {
	return slices.Clone(r.generations)
}

// Exceptions returns a copy of the exception list.
func (r *Registry) Exceptions() []Exception {
	return slices.Clone(r.exceptions)
}

// NewDefaultRegistry wires the four site adapters to DefaultGenerations.
func NewDefaultRegistry(f Fetcher, sites Sites, logger zerolog.Logger) (*Registry, error) {
	schedule, err := NewSchedule(f, sites, logger)
	if err != nil {
		return nil, err
	}
	openReview, err := NewOpenReview(f, sites, logger)
	if err != nil {
		return nil, err
	}

	return NewRegistry(DefaultGenerations, DefaultExceptions,
		schedule,
		NewVirtual(f, sites, logger),
		NewSessions(f, sites, logger),
		openReview,
	)
}
