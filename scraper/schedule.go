package scraper

import (
	"context"
	"fmt"
	"iter"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pevans/confpapers/corpus"
	"github.com/rs/zerolog"
)

const speakerCacheSize = 16384

// Schedule reads the classic conference schedule site: an index of paper
// cards, an event page per paper listing its speakers, and a speaker page
// per author carrying the affiliation. Speakers recur across papers, so
// speaker pages are cached.
type Schedule struct {
	fetcher   Fetcher
	sites     Sites
	selectors ScheduleSelectors
	speakers  *lru.Cache[string, string]
	logger    zerolog.Logger
}

// NewSchedule creates a schedule adapter.
func NewSchedule(f Fetcher, sites Sites, logger zerolog.Logger) (*Schedule, error) {
	cache, err := lru.New[string, string](speakerCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create speaker cache: %w", err)
	}

	return &Schedule{
		fetcher:   f,
		sites:     sites,
		selectors: NewScheduleSelectors(),
		speakers:  cache,
		logger:    logger.With().Str("format", FormatSchedule).Logger(),
	}, nil
}

func (s *Schedule) Name() string { return FormatSchedule }

// ListPapers yields the papers of every poster card on the schedule index,
// in index order.
func (s *Schedule) ListPapers(ctx context.Context, conf corpus.Conference, year int) iter.Seq2[Paper, error] {
	host, err := s.sites.Host(conf)
	if err != nil {
		return fail(err)
	}
	base := fmt.Sprintf("%s/Conferences/%d/Schedule", host, year)

	return func(yield func(Paper, error) bool) {
		events, err := s.listEvents(ctx, conf, year, base)
		if err != nil {
			yield(Paper{}, err)
			return
		}

		s.logger.Debug().
			Str("conference", string(conf)).
			Int("year", year).
			Int("events", len(events)).
			Msg("Read schedule index")

		for _, event := range events {
			paper, err := s.readEvent(ctx, conf, year, base, event)
			if err != nil {
				yield(Paper{}, err)
				return
			}
			if !yield(paper, nil) {
				return
			}
		}
	}
}

// listEvents returns the event ids of the paper cards on the index page.
func (s *Schedule) listEvents(ctx context.Context, conf corpus.Conference, year int, base string) ([]string, error) {
	doc, err := fetchDocument(ctx, s.fetcher, conf, year, base)
	if err != nil {
		return nil, err
	}

	var events []string
	seen := make(map[string]bool)
	var perr *ParseError

	doc.Find(s.selectors.PaperCard).EachWithBreak(func(i int, card *goquery.Selection) bool {
		id, _ := card.Attr("id")
		event, ok := strings.CutPrefix(id, s.selectors.CardIDPrefix)
		if !ok || event == "" {
			perr = parseError(conf, year, base, fmt.Sprintf("paper card %d has unexpected id %q", i, id))
			return false
		}
		if !seen[event] {
			seen[event] = true
			events = append(events, event)
		}
		return true
	})
	if perr != nil {
		return nil, perr
	}
	if len(events) == 0 {
		return nil, parseError(conf, year, base, "no paper cards found")
	}

	return events, nil
}

// readEvent reads one paper from its event page and resolves the
// affiliation of each speaker.
func (s *Schedule) readEvent(ctx context.Context, conf corpus.Conference, year int, base, event string) (Paper, error) {
	pageURL := base + "?showEvent=" + url.QueryEscape(event)
	doc, err := fetchDocument(ctx, s.fetcher, conf, year, pageURL)
	if err != nil {
		return Paper{}, err
	}

	box := cardBox(doc)
	title := normalize(box.Find(s.selectors.Title).First().Text())
	if title == "" {
		return Paper{}, parseError(conf, year, pageURL, "missing title")
	}

	paper := Paper{Conference: conf, Year: year, Title: title}

	buttons := box.Find(s.selectors.AuthorButton)
	for i := range buttons.Length() {
		button := buttons.Eq(i)

		// Button text is the name followed by a "·" separator.
		name := normalize(strings.TrimSuffix(normalize(button.Text()), "·"))
		if name == "" {
			return Paper{}, parseError(conf, year, pageURL, fmt.Sprintf("author %d has no name", i))
		}

		speaker := s.speakerID(button)
		if speaker == "" {
			return Paper{}, parseError(conf, year, pageURL, fmt.Sprintf("author %d has no speaker id", i))
		}
		affiliation, err := s.speakerAffiliation(ctx, conf, year, base, speaker)
		if err != nil {
			return Paper{}, err
		}

		author := Author{Name: name}
		if affiliation != "" {
			author.Affiliations = []string{affiliation}
		}
		paper.Authors = append(paper.Authors, author)
	}

	return paper, nil
}

// speakerID extracts the id from onclick="showSpeaker('<id>');".
func (s *Schedule) speakerID(button *goquery.Selection) string {
	onclick, ok := button.Attr("onclick")
	if !ok {
		return ""
	}
	_, rest, ok := strings.Cut(onclick, s.selectors.SpeakerOnClick)
	if !ok {
		return ""
	}
	id, _, _ := strings.Cut(rest, "'")
	return strings.TrimSpace(id)
}

// speakerAffiliation returns the affiliation shown on a speaker page.
func (s *Schedule) speakerAffiliation(ctx context.Context, conf corpus.Conference, year int, base, speaker string) (string, error) {
	key := fmt.Sprintf("%s/%d/%s", conf, year, speaker)
	if affiliation, ok := s.speakers.Get(key); ok {
		return affiliation, nil
	}

	pageURL := base + "?showSpeaker=" + url.QueryEscape(speaker)
	doc, err := fetchDocument(ctx, s.fetcher, conf, year, pageURL)
	if err != nil {
		return "", err
	}

	box := cardBox(doc)
	if normalize(box.Find(s.selectors.SpeakerName).First().Text()) == "" {
		return "", parseError(conf, year, pageURL, "speaker page has no name")
	}
	affiliation := normalize(box.Find(s.selectors.SpeakerAffil).First().Text())

	s.speakers.Add(key, affiliation)
	return affiliation, nil
}

// cardBox returns the element wrapping the main card of an event or speaker
// page, or the whole document when the card is missing.
func cardBox(doc *goquery.Document) *goquery.Selection {
	box := doc.Find(".maincard").First().Parent()
	if box.Length() == 0 {
		return doc.Selection
	}
	return box
}
