package scraper

import (
	"fmt"
	"net/url"
	"strings"
	"testing"

	"github.com/pevans/confpapers/corpus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const openReviewAPI = "http://api.openreview.test"

func notesURL(conf corpus.Conference, year, offset, limit int) string {
	venue := url.QueryEscape(fmt.Sprintf("%s.cc/%d/Conference", conf, year))
	return fmt.Sprintf("%s/notes?content.venueid=%s&offset=%d&limit=%d", openReviewAPI, venue, offset, limit)
}

func profilesURL(ids ...string) string {
	return openReviewAPI + "/profiles?ids=" + url.QueryEscape(strings.Join(ids, ","))
}

func noteJSON(title string, authors, ids []string) string {
	quote := func(values []string) string {
		quoted := make([]string, len(values))
		for i, v := range values {
			quoted[i] = fmt.Sprintf("%q", v)
		}
		return "[" + strings.Join(quoted, ",") + "]"
	}
	return fmt.Sprintf(`{"id":"n","content":{"title":{"value":%q},"authors":{"value":%s},"authorids":{"value":%s}}}`,
		title, quote(authors), quote(ids))
}

func newTestOpenReview(t *testing.T, f Fetcher, pageSize int) *OpenReview {
	t.Helper()
	o, err := NewOpenReview(f, testSites(), zerolog.Nop())
	require.NoError(t, err)
	o.pageSize = pageSize
	return o
}

// TestOpenReview_ListPapers verifies notes are paged by offset and author
// affiliations come from profiles
func TestOpenReview_ListPapers(t *testing.T) {
	pages := map[string]string{
		notesURL(corpus.ICLR, 2024, 0, 2): `{"count":3,"notes":[` +
			noteJSON("First", []string{"Ann  Lee", "Bo Chen"}, []string{"~Ann_Lee1", "bo@example.com"}) + "," +
			noteJSON("Second", []string{"Cy Park"}, []string{"~Cy_Park1"}) + `]}`,
		notesURL(corpus.ICLR, 2024, 2, 2): `{"count":3,"notes":[` +
			noteJSON("Third", []string{"Ann Lee"}, []string{"~Ann_Lee1"}) + `]}`,
		profilesURL("~Ann_Lee1", "~Cy_Park1"): `{"profiles":[
			{"id":"~Ann_Lee1","content":{"history":[
				{"start":2015,"end":2019,"institution":{"name":"Old Lab"}},
				{"start":2019,"institution":{"name":"New Lab"}},
				{"start":2021,"institution":{"name":"Side Lab"}}
			]}},
			{"id":"~Cy_Park2","content":{"names":[{"username":"~Cy_Park1"},{"username":"~Cy_Park2"}],"history":[
				{"start":2010,"end":2014,"institution":{"name":"First Univ"}},
				{"start":2014,"end":2020,"institution":{"name":"Second Univ"}}
			]}}
		]}`,
	}
	fetcher := newFakeFetcher(pages)
	o := newTestOpenReview(t, fetcher, 2)

	papers, err := collect(t, o, corpus.ICLR, 2024)
	require.NoError(t, err)

	require.Len(t, papers, 3)
	assert.Equal(t, Paper{
		Conference: corpus.ICLR,
		Year:       2024,
		Title:      "First",
		Authors: []Author{
			{Name: "Ann Lee", Affiliations: []string{"New Lab", "Side Lab"}},
			{Name: "Bo Chen"},
		},
	}, papers[0])
	assert.Equal(t, []Author{{Name: "Cy Park", Affiliations: []string{"Second Univ"}}}, papers[1].Authors)
	assert.Equal(t, "Third", papers[2].Title)
	assert.Equal(t, []string{"New Lab", "Side Lab"}, papers[2].Authors[0].Affiliations)

	assert.Equal(t, 1, fetcher.count(profilesURL("~Ann_Lee1", "~Cy_Park1")))
	assert.Equal(t, 3, fetcher.total(), "cached profiles are not fetched again")
}

// TestOpenReview_StopsOnShortPage verifies paging ends without a count
func TestOpenReview_StopsOnShortPage(t *testing.T) {
	pages := map[string]string{
		notesURL(corpus.NeurIPS, 2024, 0, 5): `{"notes":[` +
			noteJSON("Only", []string{"A B"}, []string{"a@b.c"}) + `]}`,
	}
	fetcher := newFakeFetcher(pages)
	o := newTestOpenReview(t, fetcher, 5)

	papers, err := collect(t, o, corpus.NeurIPS, 2024)

	require.NoError(t, err)
	assert.Len(t, papers, 1)
	assert.Equal(t, 1, fetcher.total(), "email ids need no profile lookup")
}

// TestOpenReview_UnknownProfile verifies missing profiles give no affiliation
func TestOpenReview_UnknownProfile(t *testing.T) {
	pages := map[string]string{
		notesURL(corpus.ICML, 2024, 0, 10): `{"count":1,"notes":[` +
			noteJSON("T", []string{"Ghost"}, []string{"~Ghost1"}) + `]}`,
		profilesURL("~Ghost1"): `{"profiles":[]}`,
	}
	o := newTestOpenReview(t, newFakeFetcher(pages), 10)

	papers, err := collect(t, o, corpus.ICML, 2024)

	require.NoError(t, err)
	require.Len(t, papers, 1)
	assert.Empty(t, papers[0].Authors[0].Affiliations)
}

// TestOpenReview_ProfileBatches verifies profile ids are requested in batches
func TestOpenReview_ProfileBatches(t *testing.T) {
	pages := map[string]string{
		notesURL(corpus.ICML, 2025, 0, 10): `{"count":1,"notes":[` +
			noteJSON("T", []string{"A", "B", "C"}, []string{"~A1", "~B1", "~C1"}) + `]}`,
		profilesURL("~A1", "~B1"): `{"profiles":[]}`,
		profilesURL("~C1"):        `{"profiles":[]}`,
	}
	fetcher := newFakeFetcher(pages)
	o := newTestOpenReview(t, fetcher, 10)
	o.profileBatch = 2

	_, err := collect(t, o, corpus.ICML, 2025)

	require.NoError(t, err)
	assert.Equal(t, 1, fetcher.count(profilesURL("~A1", "~B1")))
	assert.Equal(t, 1, fetcher.count(profilesURL("~C1")))
}

// TestOpenReview_ParseErrors verifies malformed responses fail
func TestOpenReview_ParseErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		reason string
	}{
		{name: "invalid json", body: `{"notes":`, reason: "invalid JSON"},
		{name: "no notes", body: `{"count":0,"notes":[]}`, reason: "no notes"},
		{name: "missing title", body: `{"notes":[` + noteJSON("", []string{"A"}, nil) + `]}`, reason: "has no title"},
		{name: "nameless author", body: `{"notes":[` + noteJSON("T", []string{" "}, nil) + `]}`, reason: "has no name"},
		{name: "no authors", body: `{"notes":[` + noteJSON("T", nil, nil) + `]}`, reason: "has no authors"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pages := map[string]string{notesURL(corpus.ICLR, 2025, 0, 10): tt.body}
			o := newTestOpenReview(t, newFakeFetcher(pages), 10)

			papers, err := collect(t, o, corpus.ICLR, 2025)

			assert.Empty(t, papers)
			var perr *ParseError
			require.ErrorAs(t, err, &perr)
			assert.Contains(t, perr.Error(), tt.reason)
		})
	}
}

// TestCurrentAffiliations verifies history selection
func TestCurrentAffiliations(t *testing.T) {
	year := func(y int) *int { return &y }
	entry := func(name string, start, end *int) historyEntry {
		h := historyEntry{Start: start, End: end}
		h.Institution.Name = name
		return h
	}

	assert.Nil(t, currentAffiliations(nil))
	assert.Equal(t, []string{"B"}, currentAffiliations([]historyEntry{
		entry("A", year(2000), year(2005)),
		entry("B", year(2005), year(2010)),
		entry("C", year(1990), year(1995)),
	}))
	assert.Equal(t, []string{"Now"}, currentAffiliations([]historyEntry{
		entry("Then", year(2000), year(2005)),
		entry("Now", year(2005), nil),
		entry("Now", year(2006), nil),
		entry("", year(2007), nil),
	}))
}
