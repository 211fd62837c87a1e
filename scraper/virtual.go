package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"strings"

	"github.com/pevans/confpapers/corpus"
	"github.com/rs/zerolog"
)

// Virtual reads the JSON listing published by the virtual conference sites.
// One document holds every oral and poster with its authors and their
// institutions.
type Virtual struct {
	fetcher Fetcher
	sites   Sites
	logger  zerolog.Logger
}

type virtualListing struct {
	Count   int            `json:"count"`
	Results []virtualEvent `json:"results"`
}

type virtualEvent struct {
	Name      string          `json:"name"`
	EventType string          `json:"eventtype"`
	Authors   []virtualAuthor `json:"authors"`
}

type virtualAuthor struct {
	FullName    string `json:"fullname"`
	Institution string `json:"institution"`
}

// NewVirtual creates a virtual-site adapter.
func NewVirtual(f Fetcher, sites Sites, logger zerolog.Logger) *Virtual {
	return &Virtual{
		fetcher: f,
		sites:   sites,
		logger:  logger.With().Str("format", FormatVirtual).Logger(),
	}
}

func (v *Virtual) Name() string { return FormatVirtual }

// ListPapers yields every poster and oral of the listing in document order.
// Other event types (workshops, talks, socials) are skipped.
func (v *Virtual) ListPapers(ctx context.Context, conf corpus.Conference, year int) iter.Seq2[Paper, error] {
	host, err := v.sites.Host(conf)
	if err != nil {
		return fail(err)
	}
	pageURL := fmt.Sprintf("%s/static/virtual/data/%s-%d-orals-posters.json",
		host, strings.ToLower(string(conf)), year)

	return func(yield func(Paper, error) bool) {
		papers, err := v.read(ctx, conf, year, pageURL)
		if err != nil {
			yield(Paper{}, err)
			return
		}
		for _, p := range papers {
			if !yield(p, nil) {
				return
			}
		}
	}
}

// read fetches and validates the whole listing before anything is yielded,
// so a malformed entry never leaves partial output behind.
func (v *Virtual) read(ctx context.Context, conf corpus.Conference, year int, pageURL string) ([]Paper, error) {
	body, err := v.fetcher.Get(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	var listing virtualListing
	if err := json.Unmarshal(body, &listing); err != nil {
		pe := parseError(conf, year, pageURL, "invalid JSON")
		pe.Err = err
		return nil, pe
	}
	if len(listing.Results) == 0 {
		return nil, parseError(conf, year, pageURL, "listing has no results")
	}

	var papers []Paper
	skipped := 0
	for i, event := range listing.Results {
		if !isPaperEvent(event.EventType) {
			skipped++
			continue
		}

		title := normalize(event.Name)
		if title == "" {
			return nil, parseError(conf, year, pageURL, fmt.Sprintf("result %d has no title", i))
		}

		paper := Paper{Conference: conf, Year: year, Title: title}
		for j, a := range event.Authors {
			name := normalize(a.FullName)
			if name == "" {
				return nil, parseError(conf, year, pageURL, fmt.Sprintf("result %d author %d has no name", i, j))
			}
			author := Author{Name: name}
			if institution := normalize(a.Institution); institution != "" {
				author.Affiliations = []string{institution}
			}
			paper.Authors = append(paper.Authors, author)
		}
		if len(paper.Authors) == 0 {
			return nil, parseError(conf, year, pageURL, fmt.Sprintf("result %d has no authors", i))
		}
		papers = append(papers, paper)
	}

	if len(papers) == 0 {
		return nil, parseError(conf, year, pageURL, "listing has no posters or orals")
	}

	v.logger.Debug().
		Str("conference", string(conf)).
		Int("year", year).
		Int("papers", len(papers)).
		Int("skipped", skipped).
		Msg("Read virtual listing")

	return papers, nil
}

func isPaperEvent(eventType string) bool {
	switch strings.ToLower(strings.TrimSpace(eventType)) {
	case "poster", "oral":
		return true
	default:
		return false
	}
}
