package pipeline

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/hazyhaar/docsvault/contentproc"
	"github.com/hazyhaar/docsvault/dbopen"
	"github.com/hazyhaar/docsvault/fetch"
	"github.com/hazyhaar/docsvault/jobmanager"
	"github.com/hazyhaar/docsvault/scrape"
	"github.com/hazyhaar/docsvault/splitter"
	"github.com/hazyhaar/docsvault/store"
	"github.com/hazyhaar/docsvault/urlutil"
)

// fakeFetcher serves canned HTML pages by exact URL, for driving a scrape
// without a real network — same convention as scrape's own tests.
type fakeFetcher struct{ pages map[string]string }

func (f *fakeFetcher) CanFetch(string) bool { return true }

func (f *fakeFetcher) Fetch(_ context.Context, rawURL string, _ fetch.Options) (fetch.RawContent, error) {
	body, ok := f.pages[rawURL]
	if !ok {
		return fetch.RawContent{}, fmt.Errorf("fakeFetcher: no page for %s", rawURL)
	}
	return fetch.RawContent{Bytes: []byte(body), MimeType: "text/html", SourceURL: rawURL, Changed: true}, nil
}

type zeroEmbedder struct{ dim int }

func (e *zeroEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = make([]float32, e.dim)
	}
	return out, nil
}

func (e *zeroEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	return make([]float32, e.dim), nil
}

func (e *zeroEmbedder) Dimension() int { return e.dim }
func (e *zeroEmbedder) Model() string  { return "zero" }

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	db := dbopen.OpenMemory(t)
	st, err := store.Open(store.Config{DB: db, Embedder: &zeroEmbedder{dim: 8}, Now: func() time.Time { return time.Unix(0, 0) }})
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	return st
}

func TestRunJobSplitsAndStoresScrapedPages(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://docs.test/index": `<html><body><h1>Home</h1>
			<p>Welcome to the docs.</p>
			<a href="https://docs.test/guide">Guide</a>
		</body></html>`,
		"https://docs.test/guide": `<html><body><h1>Guide</h1><p>How to use it.</p></body></html>`,
	}}
	registry := scrape.NewRegistry(fetcher, contentproc.NewRegistry(), nil)
	st := newTestStore(t)
	w := &Worker{Store: st, Registry: registry, Splitter: splitter.Default{}}

	m, err := jobmanager.New(jobmanager.Config{Concurrency: 1, Runner: w.RunJob})
	if err != nil {
		t.Fatalf("jobmanager.New: %v", err)
	}
	m.Start()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = m.Stop(ctx)
	}()

	id, err := m.EnqueueJob("docstest", "", scrape.Options{
		URL: "https://docs.test/index", MaxPages: 5, MaxDepth: scrape.IntPtr(1),
		MaxConcurrency: 1, Scope: urlutil.ScopeHostname,
	})
	if err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	status, err := m.WaitForJob(context.Background(), id)
	if err != nil {
		t.Fatalf("WaitForJob: %v", err)
	}
	if status != jobmanager.StatusCompleted {
		job, _ := m.GetJob(id)
		t.Fatalf("status = %s, want COMPLETED (err=%v)", status, job.Snapshot().Err)
	}

	results, err := st.FindByContent(context.Background(), store.SearchOptions{
		Library: "docstest", Version: "", Query: "guide", K: 10,
	})
	if err != nil {
		t.Fatalf("FindByContent: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected at least one indexed chunk from the scraped pages")
	}

	job, _ := m.GetJob(id)
	if job.Snapshot().Progress.PagesScraped != 2 {
		t.Errorf("PagesScraped = %d, want 2", job.Snapshot().Progress.PagesScraped)
	}
}

func TestRunJobPropagatesScrapeErrorWhenIgnoreErrorsFalse(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{}} // every fetch fails
	registry := scrape.NewRegistry(fetcher, contentproc.NewRegistry(), nil)
	st := newTestStore(t)
	w := &Worker{Store: st, Registry: registry, Splitter: splitter.Default{}}

	m, err := jobmanager.New(jobmanager.Config{Concurrency: 1, Runner: w.RunJob})
	if err != nil {
		t.Fatalf("jobmanager.New: %v", err)
	}
	m.Start()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = m.Stop(ctx)
	}()

	id, err := m.EnqueueJob("missing", "", scrape.Options{
		URL: "https://docs.test/nope", MaxPages: 1, MaxDepth: scrape.IntPtr(0), IgnoreErrors: false,
	})
	if err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	status, err := m.WaitForJob(context.Background(), id)
	if err != nil {
		t.Fatalf("WaitForJob: %v", err)
	}
	if status != jobmanager.StatusFailed {
		t.Errorf("status = %s, want FAILED", status)
	}
}
