package scrape

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/hazyhaar/docsvault/urlutil"
)

// fakeSite is a small in-memory link graph driving runBaseCrawl without
// any real fetcher.
type fakeSite struct {
	mu    sync.Mutex
	links map[string][]string
	fail  map[string]bool
	seen  []string
}

func (f *fakeSite) process(ctx context.Context, opts Options, rawURL string) (itemResult, error) {
	f.mu.Lock()
	f.seen = append(f.seen, rawURL)
	f.mu.Unlock()
	if f.fail[rawURL] {
		return itemResult{}, errors.New("boom")
	}
	return itemResult{
		doc:   &Document{Content: "content for " + rawURL, Metadata: DocumentMetadata{URL: rawURL}},
		links: f.links[rawURL],
	}, nil
}

func TestRunBaseCrawlVisitsReachablePages(t *testing.T) {
	site := &fakeSite{links: map[string][]string{
		"https://a.test/1": {"https://a.test/2", "https://a.test/3"},
		"https://a.test/2": {"https://a.test/4"},
		"https://a.test/3": {"https://a.test/4"},
		"https://a.test/4": nil,
	}}
	var got []string
	opts := Options{MaxPages: 10, MaxDepth: IntPtr(5), MaxConcurrency: 2}
	onProgress := func(d Document) error {
		got = append(got, d.Metadata.URL)
		return nil
	}
	err := runBaseCrawl(context.Background(), opts, "https://a.test/1", onProgress, site.process, urlutil.DefaultOptions(), nil)
	if err != nil {
		t.Fatalf("runBaseCrawl: %v", err)
	}
	sort.Strings(got)
	want := []string{"https://a.test/1", "https://a.test/2", "https://a.test/3", "https://a.test/4"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got %v, want %v", got, want)
			break
		}
	}
}

func TestRunBaseCrawlRespectsMaxPages(t *testing.T) {
	site := &fakeSite{links: map[string][]string{
		"https://a.test/1": {"https://a.test/2"},
		"https://a.test/2": {"https://a.test/3"},
		"https://a.test/3": {"https://a.test/4"},
	}}
	var got []string
	opts := Options{MaxPages: 2, MaxDepth: IntPtr(5), MaxConcurrency: 1}
	onProgress := func(d Document) error {
		got = append(got, d.Metadata.URL)
		return nil
	}
	if err := runBaseCrawl(context.Background(), opts, "https://a.test/1", onProgress, site.process, urlutil.DefaultOptions(), nil); err != nil {
		t.Fatalf("runBaseCrawl: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected exactly maxPages=2 pages, got %v", got)
	}
}

func TestRunBaseCrawlRespectsMaxDepth(t *testing.T) {
	site := &fakeSite{links: map[string][]string{
		"https://a.test/1": {"https://a.test/2"},
		"https://a.test/2": {"https://a.test/3"},
	}}
	var got []string
	opts := Options{MaxPages: 10, MaxDepth: IntPtr(1), MaxConcurrency: 2}
	onProgress := func(d Document) error {
		got = append(got, d.Metadata.URL)
		return nil
	}
	if err := runBaseCrawl(context.Background(), opts, "https://a.test/1", onProgress, site.process, urlutil.DefaultOptions(), nil); err != nil {
		t.Fatalf("runBaseCrawl: %v", err)
	}
	sort.Strings(got)
	want := []string{"https://a.test/1", "https://a.test/2"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("got %v, want %v (depth 2 page must not be visited)", got, want)
	}
}

func TestRunBaseCrawlIgnoreErrorsContinues(t *testing.T) {
	site := &fakeSite{
		links: map[string][]string{
			"https://a.test/1": {"https://a.test/2", "https://a.test/3"},
		},
		fail: map[string]bool{"https://a.test/2": true},
	}
	var got []string
	opts := Options{MaxPages: 10, MaxDepth: IntPtr(5), MaxConcurrency: 2, IgnoreErrors: true}
	onProgress := func(d Document) error {
		got = append(got, d.Metadata.URL)
		return nil
	}
	if err := runBaseCrawl(context.Background(), opts, "https://a.test/1", onProgress, site.process, urlutil.DefaultOptions(), nil); err != nil {
		t.Fatalf("runBaseCrawl: %v", err)
	}
	sort.Strings(got)
	want := []string{"https://a.test/1", "https://a.test/3"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestRunBaseCrawlPropagatesErrorWithoutIgnoreErrors(t *testing.T) {
	site := &fakeSite{
		links: map[string][]string{"https://a.test/1": {"https://a.test/2"}},
		fail:  map[string]bool{"https://a.test/2": true},
	}
	opts := Options{MaxPages: 10, MaxDepth: IntPtr(5), MaxConcurrency: 2, IgnoreErrors: false}
	err := runBaseCrawl(context.Background(), opts, "https://a.test/1", func(Document) error { return nil }, site.process, urlutil.DefaultOptions(), nil)
	if err == nil {
		t.Fatal("expected error to propagate when IgnoreErrors is false")
	}
}

func TestRunBaseCrawlDedupsRevisitedLinks(t *testing.T) {
	site := &fakeSite{links: map[string][]string{
		"https://a.test/1": {"https://a.test/2", "https://a.test/3"},
		"https://a.test/2": {"https://a.test/1", "https://a.test/3"},
		"https://a.test/3": {"https://a.test/1", "https://a.test/2"},
	}}
	var got []string
	opts := Options{MaxPages: 10, MaxDepth: IntPtr(5), MaxConcurrency: 3}
	onProgress := func(d Document) error {
		got = append(got, d.Metadata.URL)
		return nil
	}
	if err := runBaseCrawl(context.Background(), opts, "https://a.test/1", onProgress, site.process, urlutil.DefaultOptions(), nil); err != nil {
		t.Fatalf("runBaseCrawl: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected each page visited exactly once, got %v", got)
	}
}
