package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const chunkColumns = `d.id, l.name, d.version, d.url, d.content, d.title, d.path, d.level, d.metadata, d.sort_order, d.indexed_at`

func scanChunk(row interface{ Scan(...any) error }) (Chunk, error) {
	var c Chunk
	var path string
	var metaJSON string
	var indexedAt int64
	if err := row.Scan(&c.ID, &c.Library, &c.Version, &c.URL, &c.Content,
		&c.Metadata.Title, &path, &c.Metadata.Level, &metaJSON, &c.SortOrder, &indexedAt); err != nil {
		return Chunk{}, err
	}
	c.IndexedAt = time.Unix(indexedAt, 0).UTC()
	if err := c.Metadata.UnmarshalJSON([]byte(metaJSON)); err != nil {
		return Chunk{}, fmt.Errorf("store: unmarshal metadata: %w", err)
	}
	c.Metadata.URL = c.URL
	_ = path // path is reconstructed from Metadata.Path via the metadata JSON
	return c, nil
}

func (s *Store) queryChunks(ctx context.Context, query string, args ...any) ([]Chunk, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query chunks: %w", err)
	}
	defer rows.Close()

	var out []Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// FindParent returns the chunk on the same (library, version, url) whose
// path equals c's path minus its last element, with the greatest
// sort_order strictly less than c's. Returns nil if c's path is empty
// (the root of the page), per §4.6.4.
func (s *Store) FindParent(ctx context.Context, c Chunk) (*Chunk, error) {
	if len(c.Metadata.Path) == 0 {
		return nil, nil
	}
	parentPath := c.Metadata.Path[:len(c.Metadata.Path)-1]

	candidates, err := s.queryChunks(ctx, fmt.Sprintf(`
		SELECT %s FROM documents d JOIN libraries l ON l.id = d.library_id
		WHERE l.name = ? AND d.version = ? AND d.url = ? AND d.sort_order < ?
		ORDER BY d.sort_order DESC`, chunkColumns),
		c.Library, c.Version, c.URL, c.SortOrder)
	if err != nil {
		return nil, err
	}
	want := pathKey(parentPath)
	for i := range candidates {
		if pathKey(candidates[i].Metadata.Path) == want {
			return &candidates[i], nil
		}
	}
	return nil, nil
}

// FindPrecedingSiblings returns up to n chunks sharing c's (library,
// version, url, path) with sort_order strictly less than c's, the n
// greatest such, in ascending order.
func (s *Store) FindPrecedingSiblings(ctx context.Context, c Chunk, n int) ([]Chunk, error) {
	if n <= 0 {
		return nil, nil
	}
	candidates, err := s.queryChunks(ctx, fmt.Sprintf(`
		SELECT %s FROM documents d JOIN libraries l ON l.id = d.library_id
		WHERE l.name = ? AND d.version = ? AND d.url = ? AND d.sort_order < ?
		ORDER BY d.sort_order DESC`, chunkColumns),
		c.Library, c.Version, c.URL, c.SortOrder)
	if err != nil {
		return nil, err
	}
	want := pathKey(c.Metadata.Path)
	var out []Chunk
	for i := range candidates {
		if len(out) == n {
			break
		}
		if pathKey(candidates[i].Metadata.Path) == want {
			out = append(out, candidates[i])
		}
	}
	reverse(out)
	return out, nil
}

// FindSubsequentSiblings is the symmetric counterpart: sort_order strictly
// greater than c's, the n smallest, ascending.
func (s *Store) FindSubsequentSiblings(ctx context.Context, c Chunk, n int) ([]Chunk, error) {
	if n <= 0 {
		return nil, nil
	}
	candidates, err := s.queryChunks(ctx, fmt.Sprintf(`
		SELECT %s FROM documents d JOIN libraries l ON l.id = d.library_id
		WHERE l.name = ? AND d.version = ? AND d.url = ? AND d.sort_order > ?
		ORDER BY d.sort_order ASC`, chunkColumns),
		c.Library, c.Version, c.URL, c.SortOrder)
	if err != nil {
		return nil, err
	}
	want := pathKey(c.Metadata.Path)
	var out []Chunk
	for i := range candidates {
		if len(out) == n {
			break
		}
		if pathKey(candidates[i].Metadata.Path) == want {
			out = append(out, candidates[i])
		}
	}
	return out, nil
}

// FindChildren returns up to n chunks on the same url whose path is c's
// path plus one element, sort_order greater than c's, the first n by
// ascending sort_order.
func (s *Store) FindChildren(ctx context.Context, c Chunk, n int) ([]Chunk, error) {
	if n <= 0 {
		return nil, nil
	}
	candidates, err := s.queryChunks(ctx, fmt.Sprintf(`
		SELECT %s FROM documents d JOIN libraries l ON l.id = d.library_id
		WHERE l.name = ? AND d.version = ? AND d.url = ? AND d.sort_order > ?
		ORDER BY d.sort_order ASC`, chunkColumns),
		c.Library, c.Version, c.URL, c.SortOrder)
	if err != nil {
		return nil, err
	}
	wantLen := len(c.Metadata.Path) + 1
	prefix := c.Metadata.Path
	var out []Chunk
	for i := range candidates {
		if len(out) == n {
			break
		}
		p := candidates[i].Metadata.Path
		if len(p) == wantLen && hasPrefix(p, prefix) {
			out = append(out, candidates[i])
		}
	}
	return out, nil
}

// FindChunksByIDs returns the chunks with the given ids under (library,
// version), ordered by sort_order.
func (s *Store) FindChunksByIDs(ctx context.Context, library, version string, ids []string) ([]Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	library = strings.ToLower(strings.TrimSpace(library))
	version = strings.ToLower(strings.TrimSpace(version))

	placeholders := make([]string, len(ids))
	args := make([]any, 0, len(ids)+2)
	args = append(args, library, version)
	for i, id := range ids {
		placeholders[i] = "?"
		args = append(args, id)
	}
	query := fmt.Sprintf(`
		SELECT %s FROM documents d JOIN libraries l ON l.id = d.library_id
		WHERE l.name = ? AND d.version = ? AND d.id IN (%s)
		ORDER BY d.sort_order ASC`, chunkColumns, strings.Join(placeholders, ","))
	return s.queryChunks(ctx, query, args...)
}

func hasPrefix(path, prefix []string) bool {
	if len(prefix) > len(path) {
		return false
	}
	for i := range prefix {
		if path[i] != prefix[i] {
			return false
		}
	}
	return true
}

func reverse(c []Chunk) {
	for i, j := 0, len(c)-1; i < j; i, j = i+1, j-1 {
		c[i], c[j] = c[j], c[i]
	}
}

