package retriever

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/docsvault/dbopen"
	"github.com/hazyhaar/docsvault/store"
)

type fakeEmbedder struct{ dim int }

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = f.vectorFor(t)
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return f.vectorFor(text), nil
}

func (f *fakeEmbedder) Dimension() int { return f.dim }
func (f *fakeEmbedder) Model() string  { return "fake" }

func (f *fakeEmbedder) vectorFor(text string) []float32 {
	vec := make([]float32, f.dim)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		h := 0
		for _, r := range w {
			h = h*31 + int(r)
		}
		idx := ((h % f.dim) + f.dim) % f.dim
		vec[idx]++
	}
	return vec
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	db := dbopen.OpenMemory(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	st, err := store.Open(store.Config{
		DB:       db,
		Embedder: &fakeEmbedder{dim: 32},
		Now:      func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	return st
}

// TestRetrieveExpandsSiblingsOnSamePage exercises §4.7's end-to-end scenario:
// three sibling chunks on one page, a hit on a subset of them still pulls
// in the rest via sibling expansion, and they are concatenated in
// sort_order with a blank-line separator.
func TestRetrieveExpandsSiblingsOnSamePage(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	docs := []store.Document{
		{Content: "special alpha", Metadata: store.Metadata{Title: "D1", URL: "https://ex.com/u"}},
		{Content: "plain middle", Metadata: store.Metadata{Title: "D2", URL: "https://ex.com/u"}},
		{Content: "special gamma", Metadata: store.Metadata{Title: "D3", URL: "https://ex.com/u"}},
	}
	if err := st.AddDocuments(ctx, "lib", "1.0.0", docs); err != nil {
		t.Fatalf("AddDocuments: %v", err)
	}

	results, err := Retrieve(ctx, st, Options{Library: "lib", Version: "1.0.0", Query: "special", Limit: 2})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected a single page-grouped result, got %d: %+v", len(results), results)
	}

	want := "special alpha\n\nplain middle\n\nspecial gamma"
	if results[0].Content != want {
		t.Fatalf("content = %q, want %q", results[0].Content, want)
	}
	if results[0].URL != "https://ex.com/u" {
		t.Fatalf("unexpected URL: %q", results[0].URL)
	}
	if results[0].Score <= 0 {
		t.Fatalf("expected positive score, got %v", results[0].Score)
	}
}

func TestRetrieveGroupsSeparateURLsIndependently(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	docs := []store.Document{
		{Content: "widgets are great", Metadata: store.Metadata{Title: "Widgets", URL: "https://ex.com/widgets"}},
		{Content: "gadgets are neat", Metadata: store.Metadata{Title: "Gadgets", URL: "https://ex.com/gadgets"}},
	}
	if err := st.AddDocuments(ctx, "lib", "1.0.0", docs); err != nil {
		t.Fatalf("AddDocuments: %v", err)
	}

	results, err := Retrieve(ctx, st, Options{Library: "lib", Version: "1.0.0", Query: "widgets gadgets", Limit: 5})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 independent page results, got %d: %+v", len(results), results)
	}
	urls := map[string]bool{}
	for _, r := range results {
		urls[r.URL] = true
	}
	if !urls["https://ex.com/widgets"] || !urls["https://ex.com/gadgets"] {
		t.Fatalf("missing expected URLs in %+v", results)
	}
}

func TestRetrieveEmptyStoreReturnsNil(t *testing.T) {
	st := newTestStore(t)
	results, err := Retrieve(context.Background(), st, Options{Library: "lib", Version: "1.0.0", Query: "anything", Limit: 5})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if results != nil {
		t.Fatalf("expected nil results, got %+v", results)
	}
}

func TestRetrieveRejectsNonPositiveLimit(t *testing.T) {
	st := newTestStore(t)
	_, err := Retrieve(context.Background(), st, Options{Library: "lib", Query: "x", Limit: 0})
	if err == nil {
		t.Fatal("expected error for limit=0")
	}
}
