package scraper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/pevans/confpapers/corpus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errNotFound = errors.New("not found")

// Test helper: fetcher serving canned bodies by URL
type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	calls map[string]int
}

func newFakeFetcher(pages map[string]string) *fakeFetcher {
	return &fakeFetcher{pages: pages, calls: make(map[string]int)}
}

func (f *fakeFetcher) Get(ctx context.Context, url string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[url]++
	body, ok := f.pages[url]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errNotFound, url)
	}
	return []byte(body), nil
}

func (f *fakeFetcher) count(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

func (f *fakeFetcher) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

// Test helper: sites pointing at fake hosts
func testSites() Sites {
	return Sites{
		ICML:          "http://icml.test",
		NeurIPS:       "http://neurips.test",
		ICLR:          "http://iclr.test",
		OpenReviewAPI: "http://api.openreview.test",
	}
}

// Test helper: drain a paper sequence
func collect(t *testing.T, f Format, conf corpus.Conference, year int) ([]Paper, error) {
	t.Helper()
	var papers []Paper
	for p, err := range f.ListPapers(context.Background(), conf, year) {
		if err != nil {
			return papers, err
		}
		papers = append(papers, p)
	}
	return papers, nil
}

// TestSites_Host verifies base URL lookup per conference
func TestSites_Host(t *testing.T) {
	sites := DefaultSites()

	host, err := sites.Host(corpus.NeurIPS)
	require.NoError(t, err)
	assert.Equal(t, "https://neurips.cc", host)

	sites.ICML = "http://mirror.test/"
	host, err = sites.Host(corpus.ICML)
	require.NoError(t, err)
	assert.Equal(t, "http://mirror.test", host, "trailing slash is trimmed")

	_, err = sites.Host(corpus.Conference("CVPR"))
	assert.Error(t, err)
}

// TestSites_WithOverrides verifies only non-empty fields replace defaults
func TestSites_WithOverrides(t *testing.T) {
	sites := DefaultSites().WithOverrides(Sites{ICLR: "http://iclr.mirror"})

	assert.Equal(t, "http://iclr.mirror", sites.ICLR)
	assert.Equal(t, "https://icml.cc", sites.ICML)
	assert.Equal(t, "https://api2.openreview.net", sites.OpenReviewAPI)
}

// TestNewDefaultRegistry verifies every default generation has an adapter
func TestNewDefaultRegistry(t *testing.T) {
	r, err := NewDefaultRegistry(newFakeFetcher(nil), testSites(), zerolog.Nop())
	require.NoError(t, err)

	for _, g := range DefaultGenerations {
		f, err := r.Resolve(g.Conference, g.From)
		require.NoError(t, err, "%s %d", g.Conference, g.From)
		assert.Equal(t, g.Format, f.Name())
	}
}
