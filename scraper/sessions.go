package scraper

import (
	"context"
	"fmt"
	"iter"

	"github.com/PuerkitoBio/goquery"
	"github.com/pevans/confpapers/corpus"
	"github.com/rs/zerolog"
)

// Sessions reads a site that lists papers by session. The index links to
// one page per session; each session page lists its papers with a single
// author line and a paper-level affiliation list that applies to every
// author of the paper.
type Sessions struct {
	fetcher   Fetcher
	sites     Sites
	selectors SessionSelectors
	logger    zerolog.Logger
}

// NewSessions creates a session-site adapter.
func NewSessions(f Fetcher, sites Sites, logger zerolog.Logger) *Sessions {
	return &Sessions{
		fetcher:   f,
		sites:     sites,
		selectors: NewSessionSelectors(),
		logger:    logger.With().Str("format", FormatSessions).Logger(),
	}
}

func (s *Sessions) Name() string { return FormatSessions }

// ListPapers visits sessions in index order and yields their papers in page
// order.
func (s *Sessions) ListPapers(ctx context.Context, conf corpus.Conference, year int) iter.Seq2[Paper, error] {
	host, err := s.sites.Host(conf)
	if err != nil {
		return fail(err)
	}
	index := fmt.Sprintf("%s/Conferences/%d/Sessions", host, year)

	return func(yield func(Paper, error) bool) {
		sessions, err := s.listSessions(ctx, conf, year, index)
		if err != nil {
			yield(Paper{}, err)
			return
		}

		total := 0
		for _, sessionURL := range sessions {
			papers, err := s.readSession(ctx, conf, year, sessionURL)
			if err != nil {
				yield(Paper{}, err)
				return
			}

			s.logger.Debug().
				Str("conference", string(conf)).
				Int("year", year).
				Str("session", sessionURL).
				Int("papers", len(papers)).
				Msg("Read session")

			for _, p := range papers {
				total++
				if !yield(p, nil) {
					return
				}
			}
		}

		if total == 0 {
			yield(Paper{}, parseError(conf, year, index, "no papers in any session"))
		}
	}
}

// listSessions returns the absolute URLs of the session pages, without
// duplicates, in index order.
func (s *Sessions) listSessions(ctx context.Context, conf corpus.Conference, year int, index string) ([]string, error) {
	doc, err := fetchDocument(ctx, s.fetcher, conf, year, index)
	if err != nil {
		return nil, err
	}

	var sessions []string
	seen := make(map[string]bool)
	var perr *ParseError

	doc.Find(s.selectors.SessionLink).EachWithBreak(func(i int, link *goquery.Selection) bool {
		href, _ := link.Attr("href")
		if href == "" {
			perr = parseError(conf, year, index, fmt.Sprintf("session link %d has no href", i))
			return false
		}
		sessionURL, err := resolveURL(index, href)
		if err != nil {
			perr = parseError(conf, year, index, fmt.Sprintf("session link %d: %v", i, err))
			return false
		}
		if !seen[sessionURL] {
			seen[sessionURL] = true
			sessions = append(sessions, sessionURL)
		}
		return true
	})
	if perr != nil {
		return nil, perr
	}
	if len(sessions) == 0 {
		return nil, parseError(conf, year, index, "no session links found")
	}

	return sessions, nil
}

// readSession reads every paper block of one session page. A session without
// papers (keynotes, breaks) is not an error.
func (s *Sessions) readSession(ctx context.Context, conf corpus.Conference, year int, sessionURL string) ([]Paper, error) {
	doc, err := fetchDocument(ctx, s.fetcher, conf, year, sessionURL)
	if err != nil {
		return nil, err
	}

	blocks := doc.Find(s.selectors.Paper)
	papers := make([]Paper, 0, blocks.Length())

	for i := range blocks.Length() {
		block := blocks.Eq(i)

		title := normalize(block.Find(s.selectors.Title).First().Text())
		if title == "" {
			return nil, parseError(conf, year, sessionURL, fmt.Sprintf("paper %d has no title", i))
		}

		var affiliations []string
		block.Find(s.selectors.Affiliations).Each(func(_ int, li *goquery.Selection) {
			affiliations = append(affiliations, li.Text())
		})
		affiliations = normalizeAll(affiliations)

		paper := Paper{Conference: conf, Year: year, Title: title}
		for _, name := range ParseAuthors(block.Find(s.selectors.Authors).First().Text()) {
			paper.Authors = append(paper.Authors, Author{
				Name:         name,
				Affiliations: affiliations,
			})
		}
		if len(paper.Authors) == 0 {
			return nil, parseError(conf, year, sessionURL, fmt.Sprintf("paper %d has no authors", i))
		}

		papers = append(papers, paper)
	}

	return papers, nil
}
