package scraper

// ScheduleSelectors defines how to read the schedule page generation: an
// index of paper cards, one event page per paper and one speaker page per
// author.
type ScheduleSelectors struct {
	PaperCard      string // cards on the index page; id is "maincard_<event>"
	CardIDPrefix   string
	Title          string // on the event page
	AuthorButton   string // one per author on the event page
	SpeakerOnClick string // prefix of the button's onclick before the speaker id
	SpeakerName    string // on the speaker page
	SpeakerAffil   string // on the speaker page
}

// SessionSelectors defines how to read the sessions page generation: an
// index of session links and one page per session listing its papers.
type SessionSelectors struct {
	SessionLink  string
	Paper        string
	Title        string
	Authors      string // one element holding all names
	Affiliations string // one element per affiliation, applied to every author
}

// NewScheduleSelectors creates the selectors used by the conference schedule
// pages.
func NewScheduleSelectors() ScheduleSelectors {
	return ScheduleSelectors{
		PaperCard:      ".maincard.Poster",
		CardIDPrefix:   "maincard_",
		Title:          ".maincardBody",
		AuthorButton:   "button",
		SpeakerName:    "h3",
		SpeakerAffil:   "h4",
		SpeakerOnClick: "showSpeaker('",
	}
}

// NewSessionSelectors creates the selectors used by the session pages.
func NewSessionSelectors() SessionSelectors {
	return SessionSelectors{
		SessionLink:  "a.session-link",
		Paper:        "div.paper",
		Title:        ".paper-title",
		Authors:      ".paper-authors",
		Affiliations: ".paper-affiliations li",
	}
}
