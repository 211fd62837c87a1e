package scraper

import (
	"context"
	"iter"
	"testing"

	"github.com/pevans/confpapers/corpus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helper: format that yields nothing
type stubFormat struct{ name string }

func (s stubFormat) Name() string { return s.name }

func (s stubFormat) ListPapers(ctx context.Context, conf corpus.Conference, year int) iter.Seq2[Paper, error] {
	return func(yield func(Paper, error) bool) {}
}

func stubFormats() []Format {
	return []Format{
		stubFormat{FormatSchedule},
		stubFormat{FormatVirtual},
		stubFormat{FormatSessions},
		stubFormat{FormatOpenReview},
	}
}

func defaultTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := NewRegistry(DefaultGenerations, DefaultExceptions, stubFormats()...)
	require.NoError(t, err)
	return r
}

// TestRegistry_EarliestYearBoundary verifies the first supported year of
// each conference
func TestRegistry_EarliestYearBoundary(t *testing.T) {
	r := defaultTestRegistry(t)

	tests := []struct {
		conf     corpus.Conference
		earliest int
	}{
		{conf: corpus.NeurIPS, earliest: 2006},
		{conf: corpus.ICML, earliest: 2017},
		{conf: corpus.ICLR, earliest: 2018},
	}

	for _, tt := range tests {
		t.Run(string(tt.conf), func(t *testing.T) {
			_, err := r.Resolve(tt.conf, tt.earliest-1)
			var unsupported *UnsupportedYearError
			require.ErrorAs(t, err, &unsupported)
			assert.Equal(t, tt.conf, unsupported.Conference)
			assert.Equal(t, tt.earliest-1, unsupported.Year)
			assert.Equal(t, tt.earliest, unsupported.Earliest)
			assert.True(t, IsUnsupportedYear(err))

			f, err := r.Resolve(tt.conf, tt.earliest)
			require.NoError(t, err)
			assert.Equal(t, FormatSchedule, f.Name())
		})
	}
}

// TestRegistry_ResolveGenerations verifies years map to their site layout
func TestRegistry_ResolveGenerations(t *testing.T) {
	r := defaultTestRegistry(t)

	tests := []struct {
		conf   corpus.Conference
		year   int
		format string
	}{
		{conf: corpus.NeurIPS, year: 2019, format: FormatSchedule},
		{conf: corpus.NeurIPS, year: 2020, format: FormatVirtual},
		{conf: corpus.NeurIPS, year: 2035, format: FormatVirtual},
		{conf: corpus.ICML, year: 2019, format: FormatSchedule},
		{conf: corpus.ICML, year: 2022, format: FormatVirtual},
		{conf: corpus.ICLR, year: 2019, format: FormatSchedule},
		{conf: corpus.ICLR, year: 2020, format: FormatSessions},
		{conf: corpus.ICLR, year: 2023, format: FormatVirtual},
		{conf: corpus.ICLR, year: 2024, format: FormatOpenReview},
	}

	for _, tt := range tests {
		f, err := r.Resolve(tt.conf, tt.year)
		require.NoError(t, err, "%s %d", tt.conf, tt.year)
		assert.Equal(t, tt.format, f.Name(), "%s %d", tt.conf, tt.year)
	}
}

// TestRegistry_Exception verifies an excepted year is unsupported
func TestRegistry_Exception(t *testing.T) {
	exceptions := []Exception{{Conference: corpus.ICML, Year: 2018, Reason: "listing withdrawn"}}
	r, err := NewRegistry(DefaultGenerations, exceptions, stubFormats()...)
	require.NoError(t, err)

	_, err = r.Resolve(corpus.ICML, 2018)

	var unsupported *UnsupportedYearError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "listing withdrawn", unsupported.Reason)
	assert.Contains(t, err.Error(), "listing withdrawn")

	_, err = r.Resolve(corpus.ICML, 2019)
	assert.NoError(t, err)
}

// TestRegistry_Gap verifies a hole in the table is unsupported
func TestRegistry_Gap(t *testing.T) {
	generations := []Generation{
		{Conference: corpus.ICML, From: 2010, To: 2012, Format: FormatSchedule},
		{Conference: corpus.ICML, From: 2015, Format: FormatVirtual},
	}
	r, err := NewRegistry(generations, nil, stubFormats()...)
	require.NoError(t, err)

	_, err = r.Resolve(corpus.ICML, 2013)
	var unsupported *UnsupportedYearError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, 2010, unsupported.Earliest)
	assert.NotEmpty(t, unsupported.Reason)

	_, err = r.Resolve(corpus.NeurIPS, 2013)
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, 0, unsupported.Earliest)
}

// TestNewRegistry_Validation verifies malformed tables are rejected
func TestNewRegistry_Validation(t *testing.T) {
	tests := []struct {
		name        string
		generations []Generation
	}{
		{
			name:        "unknown format",
			generations: []Generation{{Conference: corpus.ICML, From: 2017, Format: "gopher"}},
		},
		{
			name:        "reversed span",
			generations: []Generation{{Conference: corpus.ICML, From: 2017, To: 2016, Format: FormatSchedule}},
		},
		{
			name: "overlap",
			generations: []Generation{
				{Conference: corpus.ICML, From: 2017, To: 2020, Format: FormatSchedule},
				{Conference: corpus.ICML, From: 2020, Format: FormatVirtual},
			},
		},
		{
			name: "two open ends",
			generations: []Generation{
				{Conference: corpus.ICLR, From: 2018, Format: FormatSchedule},
				{Conference: corpus.ICLR, From: 2024, Format: FormatOpenReview},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(tt.generations, nil, stubFormats()...)
			assert.Error(t, err)
		})
	}
}

// TestRegistry_Generations verifies listing order and copy semantics
func TestRegistry_Generations(t *testing.T) {
	r := defaultTestRegistry(t)

	gens := r.Generations()
	require.Len(t, gens, len(DefaultGenerations))
	assert.Equal(t, corpus.ICLR, gens[0].Conference)
	assert.Equal(t, 2018, gens[0].From)
	assert.Equal(t, corpus.NeurIPS, gens[len(gens)-1].Conference)

	gens[0].Format = "mutated"
	assert.Equal(t, FormatSchedule, r.Generations()[0].Format)
}
