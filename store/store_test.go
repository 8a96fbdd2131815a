package store

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/docsvault/dbopen"
)

// fakeEmbedder produces deterministic vectors from text content so tests
// can assert on ranking without a live model server.
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

// vectorFor hashes word presence into a small bag-of-words vector so
// semantically similar text lands close in L2 distance.
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

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db := dbopen.OpenMemory(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	st, err := Open(Config{
		DB:       db,
		Embedder: &fakeEmbedder{dim: 32},
		Now:      func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return st
}

func TestAddDocumentsAndDelete(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	docs := []Document{
		{Content: "intro text", Metadata: Metadata{Title: "Intro", URL: "https://ex.com/a", Path: nil, Level: 1}},
		{Content: "sub section text", Metadata: Metadata{Title: "Sub", URL: "https://ex.com/a", Path: []string{"Intro"}, Level: 2}},
	}
	if err := st.AddDocuments(ctx, "Widgets", "1.0.0", docs); err != nil {
		t.Fatalf("AddDocuments: %v", err)
	}

	vs, err := st.QueryLibraryVersions(ctx)
	if err != nil {
		t.Fatalf("QueryLibraryVersions: %v", err)
	}
	details, ok := vs["widgets"]
	if !ok || len(details) != 1 {
		t.Fatalf("expected one version for widgets, got %+v", vs)
	}
	if details[0].DocumentCount != 2 || details[0].UniqueURLCount != 1 {
		t.Fatalf("unexpected counts: %+v", details[0])
	}

	n, err := st.DeleteDocuments(ctx, "widgets", "1.0.0")
	if err != nil {
		t.Fatalf("DeleteDocuments: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 deleted, got %d", n)
	}

	res, err := st.FindByContent(ctx, SearchOptions{Library: "widgets", Version: "1.0.0", Query: "intro", K: 5})
	if err != nil {
		t.Fatalf("FindByContent after delete: %v", err)
	}
	if len(res) != 0 {
		t.Fatalf("expected empty results after delete, got %d", len(res))
	}
}

func TestAddDocumentsRejectsEmptyURL(t *testing.T) {
	st := newTestStore(t)
	err := st.AddDocuments(context.Background(), "lib", "", []Document{
		{Content: "x", Metadata: Metadata{Title: "t"}},
	})
	if err == nil {
		t.Fatal("expected error for empty URL")
	}
}

func TestFindByContentHybrid(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	docs := []Document{
		{Content: "widgets are small mechanical parts", Metadata: Metadata{Title: "Widgets Overview", URL: "https://ex.com/widgets", Level: 1}},
		{Content: "gadgets are electronic devices", Metadata: Metadata{Title: "Gadgets Overview", URL: "https://ex.com/gadgets", Level: 1}},
	}
	if err := st.AddDocuments(ctx, "acme", "2.0.0", docs); err != nil {
		t.Fatalf("AddDocuments: %v", err)
	}

	res, err := st.FindByContent(ctx, SearchOptions{Library: "acme", Version: "2.0.0", Query: "widgets", K: 5})
	if err != nil {
		t.Fatalf("FindByContent: %v", err)
	}
	if len(res) == 0 {
		t.Fatal("expected at least one result")
	}
	if res[0].Metadata.Title != "Widgets Overview" {
		t.Fatalf("expected widgets doc to rank first, got %q", res[0].Metadata.Title)
	}
	for _, r := range res {
		if r.Score <= 0 {
			t.Fatalf("expected positive score, got %v", r.Score)
		}
	}
}

func TestFindByContentRejectsNonPositiveK(t *testing.T) {
	st := newTestStore(t)
	_, err := st.FindByContent(context.Background(), SearchOptions{Library: "x", Query: "y", K: 0})
	if err == nil {
		t.Fatal("expected error for k=0")
	}
}

func TestHierarchy(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	docs := []Document{
		{Content: "root", Metadata: Metadata{Title: "Root", URL: "https://ex.com/p", Path: []string{}, Level: 0}},
		{Content: "child 1", Metadata: Metadata{Title: "C1", URL: "https://ex.com/p", Path: []string{"Root"}, Level: 1}},
		{Content: "child 2", Metadata: Metadata{Title: "C2", URL: "https://ex.com/p", Path: []string{"Root"}, Level: 1}},
		{Content: "grandchild", Metadata: Metadata{Title: "GC", URL: "https://ex.com/p", Path: []string{"Root", "C1"}, Level: 2}},
	}
	if err := st.AddDocuments(ctx, "lib", "", docs); err != nil {
		t.Fatalf("AddDocuments: %v", err)
	}

	chunks, err := st.FindChunksByIDs(ctx, "lib", "", idsOf(t, ctx, st))
	if err != nil {
		t.Fatalf("FindChunksByIDs: %v", err)
	}
	if len(chunks) != 4 {
		t.Fatalf("expected 4 chunks, got %d", len(chunks))
	}

	root, c1, c2, gc := chunks[0], chunks[1], chunks[2], chunks[3]

	parent, err := st.FindParent(ctx, c1)
	if err != nil {
		t.Fatalf("FindParent: %v", err)
	}
	if parent == nil || parent.ID != root.ID {
		t.Fatalf("expected c1's parent to be root, got %+v", parent)
	}

	noParent, err := st.FindParent(ctx, root)
	if err != nil {
		t.Fatalf("FindParent(root): %v", err)
	}
	if noParent != nil {
		t.Fatalf("expected root to have no parent, got %+v", noParent)
	}

	children, err := st.FindChildren(ctx, root, 5)
	if err != nil {
		t.Fatalf("FindChildren: %v", err)
	}
	if len(children) != 2 || children[0].ID != c1.ID || children[1].ID != c2.ID {
		t.Fatalf("unexpected children: %+v", children)
	}

	prev, err := st.FindPrecedingSiblings(ctx, c2, 5)
	if err != nil {
		t.Fatalf("FindPrecedingSiblings: %v", err)
	}
	if len(prev) != 1 || prev[0].ID != c1.ID {
		t.Fatalf("unexpected preceding siblings: %+v", prev)
	}

	next, err := st.FindSubsequentSiblings(ctx, c1, 5)
	if err != nil {
		t.Fatalf("FindSubsequentSiblings: %v", err)
	}
	if len(next) != 1 || next[0].ID != c2.ID {
		t.Fatalf("unexpected subsequent siblings: %+v", next)
	}

	gcParent, err := st.FindParent(ctx, gc)
	if err != nil {
		t.Fatalf("FindParent(gc): %v", err)
	}
	// gc's parent path is ["Root"]; the nearest preceding chunk with that
	// path is c2 (sort_order 2), not c1.
	if gcParent == nil || gcParent.ID != c2.ID {
		t.Fatalf("expected gc's parent to be c2, got %+v", gcParent)
	}
}

// idsOf lists the id of every chunk in the store, ordered by sort_order,
// with a direct SQL query against the test's own db handle.
func idsOf(t *testing.T, ctx context.Context, st *Store) []string {
	t.Helper()
	rows, err := st.DB().QueryContext(ctx, `SELECT id FROM documents ORDER BY sort_order ASC`)
	if err != nil {
		t.Fatalf("idsOf: %v", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			t.Fatalf("idsOf scan: %v", err)
		}
		ids = append(ids, id)
	}
	return ids
}

func TestFindBestVersion(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	for _, v := range []string{"1.0.0", "1.1.0", "1.1.1"} {
		if err := st.AddDocuments(ctx, "libx", v, []Document{
			{Content: "c", Metadata: Metadata{Title: "t", URL: "https://ex.com/" + v}},
		}); err != nil {
			t.Fatalf("AddDocuments(%s): %v", v, err)
		}
	}

	cases := []struct {
		target  string
		want    string
		wantErr bool
	}{
		{target: "2.0.0", want: "1.1.1"},
		{target: "1.x", want: "1.1.1"},
		{target: "", want: "1.1.1"},
		{target: "latest", want: "1.1.1"},
		{target: "1.x.2", wantErr: true},
	}
	for _, tc := range cases {
		got, err := st.FindBestVersion(ctx, "libx", tc.target)
		if tc.wantErr {
			if err == nil {
				t.Errorf("target %q: expected error", tc.target)
			}
			continue
		}
		if err != nil {
			t.Errorf("target %q: unexpected error: %v", tc.target, err)
			continue
		}
		if got != tc.want {
			t.Errorf("target %q: got %q, want %q", tc.target, got, tc.want)
		}
	}
}

func TestUnversionedSortsFirst(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	for _, v := range []string{"1.0.0", ""} {
		if err := st.AddDocuments(ctx, "liby", v, []Document{
			{Content: "c", Metadata: Metadata{Title: "t", URL: "https://ex.com/" + v}},
		}); err != nil {
			t.Fatalf("AddDocuments(%q): %v", v, err)
		}
	}

	vs, err := st.QueryLibraryVersions(ctx)
	if err != nil {
		t.Fatalf("QueryLibraryVersions: %v", err)
	}
	details := vs["liby"]
	if len(details) != 2 || details[0].Version != "" {
		t.Fatalf("expected unversioned first, got %+v", details)
	}
}
