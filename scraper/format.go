// Package scraper turns conference listing pages into Papers. Each page
// generation a conference has used is handled by a Format, and a Registry
// maps every (conference, year) to the Format that can read it.
package scraper

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"github.com/pevans/confpapers/corpus"
)

// Format reads every paper of one conference year from pages of a single
// generation. The returned sequence is lazy and finite, cannot be
// restarted, and stops after the first error it yields.
type Format interface {
	Name() string
	ListPapers(ctx context.Context, conf corpus.Conference, year int) iter.Seq2[Paper, error]
}

// Fetcher retrieves the body of a URL. Implementations are expected to retry
// transient failures themselves.
type Fetcher interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Sites holds the base URLs the adapters build page addresses from.
type Sites struct {
	ICML          string `yaml:"icml"`
	NeurIPS       string `yaml:"neurips"`
	ICLR          string `yaml:"iclr"`
	OpenReviewAPI string `yaml:"openreview"`
}

// DefaultSites returns the public conference sites.
func DefaultSites() Sites {
	return Sites{
		ICML:          "https://icml.cc",
		NeurIPS:       "https://neurips.cc",
		ICLR:          "https://iclr.cc",
		OpenReviewAPI: "https://api2.openreview.net",
	}
}

// WithOverrides returns s with every non-empty field of o applied.
func (s Sites) WithOverrides(o Sites) Sites {
	if o.ICML != "" {
		s.ICML = o.ICML
	}
	if o.NeurIPS != "" {
		s.NeurIPS = o.NeurIPS
	}
	if o.ICLR != "" {
		s.ICLR = o.ICLR
	}
	if o.OpenReviewAPI != "" {
		s.OpenReviewAPI = o.OpenReviewAPI
	}
	return s
}

// Host returns the base URL of a conference site without a trailing slash.
func (s Sites) Host(conf corpus.Conference) (string, error) {
	var host string
	switch conf {
	case corpus.ICML:
		host = s.ICML
	case corpus.NeurIPS:
		host = s.NeurIPS
	case corpus.ICLR:
		host = s.ICLR
	}
	if host == "" {
		return "", fmt.Errorf("no site configured for %q", conf)
	}
	return strings.TrimRight(host, "/"), nil
}

// fail returns a sequence that yields only err.
func fail(err error) iter.Seq2[Paper, error] {
	return func(yield func(Paper, error) bool) {
		yield(Paper{}, err)
	}
}
