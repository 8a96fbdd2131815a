package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/hazyhaar/docsvault/embedder"
)

// rrfConstant is the c in Σ 1/(c+rank), per the GLOSSARY's RRF definition.
const rrfConstant = 60

// FindByContent runs hybrid (vector + FTS) search over (library, version)
// and fuses the two ranked lists with Reciprocal Rank Fusion, per §4.6.3.
func (s *Store) FindByContent(ctx context.Context, opts SearchOptions) ([]ScoredChunk, error) {
	if opts.K <= 0 {
		return nil, fmt.Errorf("store: k must be strictly positive, got %d", opts.K)
	}
	library := strings.ToLower(strings.TrimSpace(opts.Library))
	version := strings.ToLower(strings.TrimSpace(opts.Version))

	qvec, err := s.emb.EmbedQuery(ctx, opts.Query)
	if err != nil {
		return nil, fmt.Errorf("store: embed query: %w", err)
	}
	if len(qvec) > Dimension {
		return nil, fmt.Errorf("store: query vector length %d exceeds dimension %d", len(qvec), Dimension)
	}
	qblob := embedder.Serialize(embedder.Pad(qvec, Dimension))

	vecHits, err := s.vectorBranch(ctx, library, version, qblob, opts.K)
	if err != nil {
		return nil, fmt.Errorf("store: vector branch: %w", err)
	}

	ftsHits, err := s.ftsBranch(ctx, library, version, opts.Query, opts.K)
	if err != nil {
		return nil, fmt.Errorf("store: fts branch: %w", err)
	}

	vecRank := make(map[string]int, len(vecHits))
	for i, id := range vecHits {
		vecRank[id] = i + 1
	}
	ftsRank := make(map[string]int, len(ftsHits))
	for i, id := range ftsHits {
		ftsRank[id] = i + 1
	}

	rrf := make(map[string]float64)
	for id, r := range vecRank {
		rrf[id] += 1.0 / float64(rrfConstant+r)
	}
	for id, r := range ftsRank {
		rrf[id] += 1.0 / float64(rrfConstant+r)
	}

	ids := make([]string, 0, len(rrf))
	for id := range rrf {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if rrf[ids[i]] != rrf[ids[j]] {
			return rrf[ids[i]] > rrf[ids[j]]
		}
		return ids[i] < ids[j]
	})
	if len(ids) > opts.K {
		ids = ids[:opts.K]
	}
	if len(ids) == 0 {
		return nil, nil
	}

	chunks, err := s.FindChunksByIDs(ctx, library, version, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]Chunk, len(chunks))
	for _, c := range chunks {
		byID[c.ID] = c
	}

	out := make([]ScoredChunk, 0, len(ids))
	for _, id := range ids {
		c, ok := byID[id]
		if !ok {
			continue
		}
		score := rrf[id]
		vr := vecRank[id]
		fr := ftsRank[id]
		if c.Metadata.Extra == nil {
			c.Metadata.Extra = make(map[string]any)
		}
		c.Metadata.Extra["score"] = score
		c.Metadata.Extra["vec_rank"] = vr
		c.Metadata.Extra["fts_rank"] = fr
		out = append(out, ScoredChunk{Chunk: c, Score: score, VecRank: vr, FTSRank: fr})
	}
	return out, nil
}

// vectorBranch returns chunk ids ordered by ascending L2 distance, the
// k nearest neighbors of qblob within (library, version).
func (s *Store) vectorBranch(ctx context.Context, library, version string, qblob []byte, k int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.id
		FROM documents d
		JOIN libraries l ON l.id = d.library_id
		JOIN document_vectors v ON v.rowid = d.rowid
		WHERE l.name = ? AND d.version = ?
		ORDER BY vector_distance_l2(v.embedding, ?) ASC
		LIMIT ?`, library, version, qblob, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ftsBranch returns chunk ids ordered by ascending BM25 score (lower is
// more relevant), weighted (title:10, url:1, path:5, content:1) per
// §4.6.3 step 3. The query is wrapped as a single phrase so every FTS5
// operator character is escaped, per step 2.
func (s *Store) ftsBranch(ctx context.Context, library, version, query string, k int) ([]string, error) {
	ftsQuery := escapeFTSPhrase(query)

	rows, err := s.db.QueryContext(ctx, `
		SELECT d.id
		FROM documents_fts
		JOIN documents d ON d.rowid = documents_fts.rowid
		JOIN libraries l ON l.id = d.library_id
		WHERE documents_fts MATCH ? AND l.name = ? AND d.version = ?
		ORDER BY bm25(documents_fts, 10.0, 1.0, 5.0, 1.0) ASC
		LIMIT ?`, ftsQuery, library, version, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// escapeFTSPhrase wraps query in double quotes, doubling internal quotes,
// so every FTS5 operator (AND, OR, NOT, *, (, )) is escaped by making the
// search a single literal phrase, per §4.6.3 step 2.
func escapeFTSPhrase(query string) string {
	return `"` + strings.ReplaceAll(query, `"`, `""`) + `"`
}
