// Package retriever implements the Retriever (C7): it runs a hybrid search
// against the Document Store and expands each hit into its surrounding
// hierarchy — parent, a handful of siblings, and children — before grouping
// by page so a caller gets whole, readable sections rather than isolated
// fragments.
package retriever

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/hazyhaar/docsvault/store"
)

// Options parameterizes Retrieve, per §4.7.
type Options struct {
	Library string
	Version string
	Query   string
	Limit   int
}

// SearchResult is one expanded, page-grouped retrieval result, per §4.7
// step 5.
type SearchResult struct {
	URL     string
	Content string
	Score   float64
}

// expansion bounds from §4.7 step 2.
const (
	maxPrecedingSiblings = 2
	maxSubsequentSiblings = 2
	maxChildren           = 5
)

// Retrieve hybrid-searches st for up to opts.Limit initial hits, expands
// each into its related-id set, groups the union by URL, and returns one
// SearchResult per URL with concatenated content and the maximum RRF score
// across the hits that contributed to that URL.
func Retrieve(ctx context.Context, st *store.Store, opts Options) ([]SearchResult, error) {
	if opts.Limit <= 0 {
		return nil, fmt.Errorf("retriever: limit must be strictly positive, got %d", opts.Limit)
	}

	hits, err := st.FindByContent(ctx, store.SearchOptions{
		Library: opts.Library,
		Version: opts.Version,
		Query:   opts.Query,
		K:       opts.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("retriever: hybrid search: %w", err)
	}
	if len(hits) == 0 {
		return nil, nil
	}

	type group struct {
		ids   map[string]struct{}
		score float64
	}
	groups := make(map[string]*group)

	for _, hit := range hits {
		related, err := relatedIDs(ctx, st, hit.Chunk)
		if err != nil {
			return nil, fmt.Errorf("retriever: expand hit %s: %w", hit.ID, err)
		}

		g, ok := groups[hit.URL]
		if !ok {
			g = &group{ids: make(map[string]struct{})}
			groups[hit.URL] = g
		}
		for _, id := range related {
			g.ids[id] = struct{}{}
		}
		if hit.Score > g.score {
			g.score = hit.Score
		}
	}

	out := make([]SearchResult, 0, len(groups))
	for url, g := range groups {
		ids := make([]string, 0, len(g.ids))
		for id := range g.ids {
			ids = append(ids, id)
		}
		chunks, err := st.FindChunksByIDs(ctx, opts.Library, opts.Version, ids)
		if err != nil {
			return nil, fmt.Errorf("retriever: fetch chunks for %s: %w", url, err)
		}

		parts := make([]string, len(chunks))
		for i, c := range chunks {
			parts[i] = c.Content
		}
		out = append(out, SearchResult{
			URL:     url,
			Content: strings.Join(parts, "\n\n"),
			Score:   g.score,
		})
	}

	// Stable, deterministic ordering (by URL) even though callers are free
	// to re-sort by score; arbitrary-but-reproducible beats map iteration
	// order leaking into tests and logs.
	sort.Slice(out, func(i, j int) bool { return out[i].URL < out[j].URL })
	return out, nil
}

// relatedIDs collects c's related-id set per §4.7 step 2: itself, its
// parent, up to 2 preceding siblings, up to 2 subsequent siblings, and up
// to 5 children.
func relatedIDs(ctx context.Context, st *store.Store, c store.Chunk) ([]string, error) {
	ids := []string{c.ID}

	parent, err := st.FindParent(ctx, c)
	if err != nil {
		return nil, err
	}
	if parent != nil {
		ids = append(ids, parent.ID)
	}

	prev, err := st.FindPrecedingSiblings(ctx, c, maxPrecedingSiblings)
	if err != nil {
		return nil, err
	}
	for _, s := range prev {
		ids = append(ids, s.ID)
	}

	next, err := st.FindSubsequentSiblings(ctx, c, maxSubsequentSiblings)
	if err != nil {
		return nil, err
	}
	for _, s := range next {
		ids = append(ids, s.ID)
	}

	children, err := st.FindChildren(ctx, c, maxChildren)
	if err != nil {
		return nil, err
	}
	for _, s := range children {
		ids = append(ids, s.ID)
	}

	return ids, nil
}
