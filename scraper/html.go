package scraper

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pevans/confpapers/corpus"
)

// fetchDocument fetches a page and parses it as HTML. Fetch errors are
// returned as is; a body goquery cannot parse becomes a ParseError.
func fetchDocument(ctx context.Context, f Fetcher, conf corpus.Conference, year int, pageURL string) (*goquery.Document, error) {
	body, err := f.Get(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		pe := parseError(conf, year, pageURL, "invalid HTML")
		pe.Err = err
		return nil, pe
	}

	return doc, nil
}

// ParseAuthors splits a single author string into names. Names are
// separated by ", " or " and "; both may appear in one string, as in
// "A, B and C". Whitespace is normalized.
func ParseAuthors(authorText string) []string {
	authorText = normalize(authorText)
	if authorText == "" {
		return []string{}
	}

	authors := []string{}
	for part := range strings.SplitSeq(authorText, ", ") {
		// Oxford comma: "A, B, and C"
		part = strings.TrimPrefix(part, "and ")
		for name := range strings.SplitSeq(part, " and ") {
			name = strings.TrimSpace(name)
			if name != "" {
				authors = append(authors, name)
			}
		}
	}

	return authors
}

// resolveURL resolves a link found on base against it.
func resolveURL(base, link string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	l, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return "", fmt.Errorf("invalid link: %w", err)
	}
	return b.ResolveReference(l).String(), nil
}
