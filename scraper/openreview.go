package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"net/url"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pevans/confpapers/corpus"
	"github.com/rs/zerolog"
)

const (
	openReviewPageSize     = 1000
	openReviewProfileBatch = 50
	profileCacheSize       = 65536
)

// OpenReview reads accepted papers from the OpenReview API. Notes are paged
// by offset; author affiliations come from the authors' profiles, which are
// fetched in batches and cached.
type OpenReview struct {
	fetcher      Fetcher
	sites        Sites
	pageSize     int
	profileBatch int
	profiles     *lru.Cache[string, []string]
	logger       zerolog.Logger
}

type valueField[T any] struct {
	Value T `json:"value"`
}

type noteList struct {
	Notes []note `json:"notes"`
	Count int    `json:"count"`
}

type note struct {
	ID      string `json:"id"`
	Content struct {
		Title     valueField[string]   `json:"title"`
		Authors   valueField[[]string] `json:"authors"`
		AuthorIDs valueField[[]string] `json:"authorids"`
	} `json:"content"`
}

type profileList struct {
	Profiles []profile `json:"profiles"`
}

type profile struct {
	ID      string `json:"id"`
	Content struct {
		Names []struct {
			Username string `json:"username"`
		} `json:"names"`
		History []historyEntry `json:"history"`
	} `json:"content"`
}

type historyEntry struct {
	Start       *int `json:"start"`
	End         *int `json:"end"`
	Institution struct {
		Name string `json:"name"`
	} `json:"institution"`
}

// NewOpenReview creates an OpenReview adapter.
func NewOpenReview(f Fetcher, sites Sites, logger zerolog.Logger) (*OpenReview, error) {
	cache, err := lru.New[string, []string](profileCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create profile cache: %w", err)
	}

	return &OpenReview{
		fetcher:      f,
		sites:        sites,
		pageSize:     openReviewPageSize,
		profileBatch: openReviewProfileBatch,
		profiles:     cache,
		logger:       logger.With().Str("format", FormatOpenReview).Logger(),
	}, nil
}

func (o *OpenReview) Name() string { return FormatOpenReview }

// ListPapers yields the notes of the conference venue page by page.
func (o *OpenReview) ListPapers(ctx context.Context, conf corpus.Conference, year int) iter.Seq2[Paper, error] {
	api := strings.TrimRight(o.sites.OpenReviewAPI, "/")
	if api == "" {
		return fail(fmt.Errorf("no OpenReview API configured"))
	}
	venue := fmt.Sprintf("%s.cc/%d/Conference", conf, year)

	return func(yield func(Paper, error) bool) {
		offset := 0
		for {
			pageURL := fmt.Sprintf("%s/notes?content.venueid=%s&offset=%d&limit=%d",
				api, url.QueryEscape(venue), offset, o.pageSize)

			list, err := o.readNotes(ctx, conf, year, pageURL)
			if err != nil {
				yield(Paper{}, err)
				return
			}
			if offset == 0 && len(list.Notes) == 0 {
				yield(Paper{}, parseError(conf, year, pageURL, "venue has no notes"))
				return
			}

			papers, err := o.papers(ctx, conf, year, pageURL, api, list.Notes)
			if err != nil {
				yield(Paper{}, err)
				return
			}

			o.logger.Debug().
				Str("conference", string(conf)).
				Int("year", year).
				Int("offset", offset).
				Int("notes", len(list.Notes)).
				Int("count", list.Count).
				Msg("Read notes page")

			for _, p := range papers {
				if !yield(p, nil) {
					return
				}
			}

			offset += len(list.Notes)
			done := len(list.Notes) < o.pageSize
			if list.Count > 0 {
				done = offset >= list.Count
			}
			if done || len(list.Notes) == 0 {
				return
			}
		}
	}
}

func (o *OpenReview) readNotes(ctx context.Context, conf corpus.Conference, year int, pageURL string) (noteList, error) {
	var list noteList

	body, err := o.fetcher.Get(ctx, pageURL)
	if err != nil {
		return list, err
	}
	if err := json.Unmarshal(body, &list); err != nil {
		pe := parseError(conf, year, pageURL, "invalid JSON")
		pe.Err = err
		return list, pe
	}

	return list, nil
}

// papers converts one page of notes, resolving every author profile id on
// the page first.
func (o *OpenReview) papers(ctx context.Context, conf corpus.Conference, year int, pageURL, api string, notes []note) ([]Paper, error) {
	var ids []string
	for _, n := range notes {
		ids = append(ids, n.Content.AuthorIDs.Value...)
	}
	if err := o.loadProfiles(ctx, conf, year, api, ids); err != nil {
		return nil, err
	}

	papers := make([]Paper, 0, len(notes))
	for i, n := range notes {
		title := normalize(n.Content.Title.Value)
		if title == "" {
			return nil, parseError(conf, year, pageURL, fmt.Sprintf("note %d (%s) has no title", i, n.ID))
		}

		paper := Paper{Conference: conf, Year: year, Title: title}
		authorIDs := n.Content.AuthorIDs.Value
		for j, raw := range n.Content.Authors.Value {
			name := normalize(raw)
			if name == "" {
				return nil, parseError(conf, year, pageURL, fmt.Sprintf("note %d (%s) author %d has no name", i, n.ID, j))
			}
			author := Author{Name: name}
			if j < len(authorIDs) && isProfileID(authorIDs[j]) {
				author.Affiliations, _ = o.profiles.Get(authorIDs[j])
			}
			paper.Authors = append(paper.Authors, author)
		}
		if len(paper.Authors) == 0 {
			return nil, parseError(conf, year, pageURL, fmt.Sprintf("note %d (%s) has no authors", i, n.ID))
		}
		papers = append(papers, paper)
	}

	return papers, nil
}

// loadProfiles fetches the profiles of ids not already cached. Ids the API
// does not return are cached with no affiliations.
func (o *OpenReview) loadProfiles(ctx context.Context, conf corpus.Conference, year int, api string, ids []string) error {
	var missing []string
	seen := make(map[string]bool)
	for _, id := range ids {
		if !isProfileID(id) || seen[id] || o.profiles.Contains(id) {
			continue
		}
		seen[id] = true
		missing = append(missing, id)
	}

	for start := 0; start < len(missing); start += o.profileBatch {
		batch := missing[start:min(start+o.profileBatch, len(missing))]
		pageURL := api + "/profiles?ids=" + url.QueryEscape(strings.Join(batch, ","))

		body, err := o.fetcher.Get(ctx, pageURL)
		if err != nil {
			return err
		}

		var list profileList
		if err := json.Unmarshal(body, &list); err != nil {
			pe := parseError(conf, year, pageURL, "invalid JSON")
			pe.Err = err
			return pe
		}

		for _, p := range list.Profiles {
			affiliations := currentAffiliations(p.Content.History)
			o.profiles.Add(p.ID, affiliations)
			for _, n := range p.Content.Names {
				if n.Username != "" {
					o.profiles.Add(n.Username, affiliations)
				}
			}
		}
		for _, id := range batch {
			if !o.profiles.Contains(id) {
				o.profiles.Add(id, nil)
			}
		}
	}

	return nil
}

// currentAffiliations returns the institutions of the open-ended history
// entries in history order, or the most recent entry's institution when
// every entry has ended.
func currentAffiliations(history []historyEntry) []string {
	var current []string
	seen := make(map[string]bool)
	for _, h := range history {
		name := normalize(h.Institution.Name)
		if h.End == nil && name != "" && !seen[name] {
			seen[name] = true
			current = append(current, name)
		}
	}
	if len(current) > 0 {
		return current
	}

	var latest *historyEntry
	for i := range history {
		h := &history[i]
		if normalize(h.Institution.Name) == "" || h.End == nil {
			continue
		}
		if latest == nil || *h.End > *latest.End {
			latest = h
		}
	}
	if latest == nil {
		return nil
	}
	return []string{normalize(latest.Institution.Name)}
}

// isProfileID reports whether an author id names an OpenReview profile
// rather than an email address.
func isProfileID(id string) bool {
	return strings.HasPrefix(id, "~")
}
