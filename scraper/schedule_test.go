package scraper

import (
	"testing"

	"github.com/pevans/confpapers/corpus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scheduleBase = "http://icml.test/Conferences/2019/Schedule"

const scheduleIndex = `<html><body>
<div class="maincard narrower Poster" id="maincard_101">Paper one</div>
<div class="maincard narrower Talk" id="maincard_900">Keynote</div>
<div class="maincard narrower Poster" id="maincard_102">Paper two</div>
</body></html>`

const scheduleEvent101 = `<html><body><div class="container">
<div class="maincard narrower Poster" id="maincard_101">
  <div class="maincardBody">  Deep   Learning,
    "Revisited"  </div>
</div>
<button onclick="showSpeaker('s1');">Jane   Doe &middot;</button>
<button onclick="showSpeaker('s2');">John Smith &middot;</button>
</div></body></html>`

const scheduleEvent102 = `<html><body><div class="container">
<div class="maincard narrower Poster" id="maincard_102">
  <div class="maincardBody">Second Paper</div>
</div>
<button onclick="showSpeaker('s1');">Jane Doe &middot;</button>
</div></body></html>`

const scheduleSpeaker1 = `<html><body><div class="container">
<div class="maincard"></div>
<h3>Jane Doe</h3><h4> Example  University </h4>
</div></body></html>`

const scheduleSpeaker2 = `<html><body><div class="container">
<div class="maincard"></div>
<h3>John Smith</h3><h4></h4>
</div></body></html>`

func schedulePages() map[string]string {
	return map[string]string{
		scheduleBase:                     scheduleIndex,
		scheduleBase + "?showEvent=101":  scheduleEvent101,
		scheduleBase + "?showEvent=102":  scheduleEvent102,
		scheduleBase + "?showSpeaker=s1": scheduleSpeaker1,
		scheduleBase + "?showSpeaker=s2": scheduleSpeaker2,
	}
}

func newTestSchedule(t *testing.T, f Fetcher) *Schedule {
	t.Helper()
	s, err := NewSchedule(f, testSites(), zerolog.Nop())
	require.NoError(t, err)
	return s
}

// TestSchedule_ListPapers verifies papers, authors and affiliations are read
// from the index, event and speaker pages
func TestSchedule_ListPapers(t *testing.T) {
	fetcher := newFakeFetcher(schedulePages())
	s := newTestSchedule(t, fetcher)

	papers, err := collect(t, s, corpus.ICML, 2019)
	require.NoError(t, err)

	require.Len(t, papers, 2)
	assert.Equal(t, Paper{
		Conference: corpus.ICML,
		Year:       2019,
		Title:      `Deep Learning, "Revisited"`,
		Authors: []Author{
			{Name: "Jane Doe", Affiliations: []string{"Example University"}},
			{Name: "John Smith"},
		},
	}, papers[0])
	assert.Equal(t, "Second Paper", papers[1].Title)
	assert.Equal(t, []Author{{Name: "Jane Doe", Affiliations: []string{"Example University"}}}, papers[1].Authors)
}

// TestSchedule_SpeakerPagesCached verifies each speaker is fetched once
func TestSchedule_SpeakerPagesCached(t *testing.T) {
	fetcher := newFakeFetcher(schedulePages())
	s := newTestSchedule(t, fetcher)

	_, err := collect(t, s, corpus.ICML, 2019)
	require.NoError(t, err)

	assert.Equal(t, 1, fetcher.count(scheduleBase+"?showSpeaker=s1"))
	assert.Equal(t, 0, fetcher.count(scheduleBase+"?showEvent=900"), "non-poster cards are skipped")
}

// TestSchedule_EmptyIndex verifies an index without cards is a parse error
func TestSchedule_EmptyIndex(t *testing.T) {
	fetcher := newFakeFetcher(map[string]string{scheduleBase: "<html><body></body></html>"})
	s := newTestSchedule(t, fetcher)

	papers, err := collect(t, s, corpus.ICML, 2019)

	assert.Empty(t, papers)
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, scheduleBase, perr.Page)
	assert.Equal(t, corpus.ICML, perr.Conference)
	assert.Equal(t, 2019, perr.Year)
}

// TestSchedule_MissingTitle verifies an event page without a title fails
func TestSchedule_MissingTitle(t *testing.T) {
	pages := schedulePages()
	pages[scheduleBase+"?showEvent=102"] = `<html><body><div><div class="maincard"></div>
<button onclick="showSpeaker('s1');">Jane Doe &middot;</button></div></body></html>`
	s := newTestSchedule(t, newFakeFetcher(pages))

	papers, err := collect(t, s, corpus.ICML, 2019)

	assert.Len(t, papers, 1, "papers before the failure were already yielded")
	assert.True(t, IsParseError(err))
	assert.Contains(t, err.Error(), "missing title")
}

// TestSchedule_NamelessAuthor verifies an empty author button fails
func TestSchedule_NamelessAuthor(t *testing.T) {
	pages := schedulePages()
	pages[scheduleBase+"?showEvent=101"] = `<html><body><div><div class="maincard">
<div class="maincardBody">T</div></div>
<button onclick="showSpeaker('s1');"> &middot;</button></div></body></html>`
	s := newTestSchedule(t, newFakeFetcher(pages))

	_, err := collect(t, s, corpus.ICML, 2019)

	assert.True(t, IsParseError(err))
	assert.Contains(t, err.Error(), "has no name")
}

// TestSchedule_AuthorWithoutSpeaker verifies a button that does not open a
// speaker page fails instead of becoming an author without affiliation
func TestSchedule_AuthorWithoutSpeaker(t *testing.T) {
	tests := []struct {
		name   string
		button string
	}{
		{name: "no onclick", button: `<button>Jane Doe &middot;</button>`},
		{name: "other onclick", button: `<button onclick="toggleFavorite('102')">Add to calendar</button>`},
		{name: "empty id", button: `<button onclick="showSpeaker('');">Jane Doe &middot;</button>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pages := schedulePages()
			pages[scheduleBase+"?showEvent=101"] = `<html><body><div><div class="maincard">
<div class="maincardBody">T</div></div>
<button onclick="showSpeaker('s1');">Jane Doe &middot;</button>
` + tt.button + `</div></body></html>`
			s := newTestSchedule(t, newFakeFetcher(pages))

			papers, err := collect(t, s, corpus.ICML, 2019)

			assert.Empty(t, papers)
			assert.True(t, IsParseError(err))
			assert.Contains(t, err.Error(), "author 1 has no speaker id")
		})
	}
}

// TestSchedule_BadCardID verifies a card id without the expected prefix fails
func TestSchedule_BadCardID(t *testing.T) {
	pages := map[string]string{
		scheduleBase: `<div class="maincard Poster" id="card-7"></div>`,
	}
	s := newTestSchedule(t, newFakeFetcher(pages))

	_, err := collect(t, s, corpus.ICML, 2019)

	assert.True(t, IsParseError(err))
}

// TestSchedule_FetchError verifies transport failures pass through
func TestSchedule_FetchError(t *testing.T) {
	pages := schedulePages()
	delete(pages, scheduleBase+"?showSpeaker=s2")
	s := newTestSchedule(t, newFakeFetcher(pages))

	_, err := collect(t, s, corpus.ICML, 2019)

	assert.ErrorIs(t, err, errNotFound)
	assert.False(t, IsParseError(err))
}

// TestSchedule_StopsEarly verifies the consumer can stop the sequence
func TestSchedule_StopsEarly(t *testing.T) {
	fetcher := newFakeFetcher(schedulePages())
	s := newTestSchedule(t, fetcher)

	for _, err := range s.ListPapers(t.Context(), corpus.ICML, 2019) {
		require.NoError(t, err)
		break
	}

	assert.Equal(t, 0, fetcher.count(scheduleBase+"?showEvent=102"))
}
