package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hazyhaar/docsvault/docerr"
	"github.com/hazyhaar/docsvault/embedder"
)

// AddDocuments embeds and persists docs under (library, version), per
// §4.6.1. library and version are lowercased; every document must carry a
// non-blank Metadata.URL (ErrEmptyURL otherwise). Chunks from the same
// page must already be in document order — sort_order is assigned as the
// slice index.
func (s *Store) AddDocuments(ctx context.Context, library, version string, docs []Document) error {
	library = strings.ToLower(strings.TrimSpace(library))
	version = strings.ToLower(strings.TrimSpace(version))
	if library == "" {
		return fmt.Errorf("store: library must not be empty")
	}
	if len(docs) == 0 {
		return nil
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		if strings.TrimSpace(d.Metadata.URL) == "" {
			return fmt.Errorf("%w: document %d", docerr.ErrEmptyURL, i)
		}
		texts[i] = embedHeader(d.Metadata) + d.Content
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += EmbedBatch {
		end := min(start+EmbedBatch, len(texts))
		batch, err := s.emb.Embed(ctx, texts[start:end])
		if err != nil {
			return fmt.Errorf("store: embed batch [%d:%d]: %w", start, end, err)
		}
		vectors = append(vectors, batch...)
	}

	blobs := make([][]byte, len(vectors))
	for i, v := range vectors {
		if len(v) > Dimension {
			return fmt.Errorf("%w: vector length %d exceeds store dimension %d",
				docerr.ErrDimensionMismatch, len(v), Dimension)
		}
		blobs[i] = embedder.Serialize(embedder.Pad(v, Dimension))
	}

	libID, err := s.ensureLibrary(ctx, library)
	if err != nil {
		return err
	}

	now := s.now().UTC().Unix()
	return s.runTx(ctx, func(tx *sql.Tx) error {
		for i, d := range docs {
			id := s.idgen()
			path := pathKey(d.Metadata.Path)
			metaJSON, err := d.Metadata.MarshalJSON()
			if err != nil {
				return fmt.Errorf("store: marshal metadata: %w", err)
			}

			res, err := tx.ExecContext(ctx, `
				INSERT INTO documents (id, library_id, version, url, title, path, level, content, metadata, sort_order, indexed_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				id, libID, version, d.Metadata.URL, d.Metadata.Title, path, d.Metadata.Level,
				d.Content, string(metaJSON), i, now)
			if err != nil {
				return fmt.Errorf("store: insert document: %w", err)
			}
			rowid, err := res.LastInsertId()
			if err != nil {
				return fmt.Errorf("store: last insert id: %w", err)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO document_vectors (rowid, embedding) VALUES (?, ?)`,
				rowid, blobs[i]); err != nil {
				return fmt.Errorf("store: insert vector: %w", err)
			}
		}
		return nil
	})
}

// embedHeader builds the "<title>...\n<url>...\n<path>...\n" text
// prepended before embedding, per §4.6.1. It is never stored as content.
func embedHeader(m Metadata) string {
	var sb strings.Builder
	sb.WriteString("<title>")
	sb.WriteString(m.Title)
	sb.WriteString("</title>\n<url>")
	sb.WriteString(m.URL)
	sb.WriteString("</url>\n<path>")
	sb.WriteString(strings.Join(m.Path, " > "))
	sb.WriteString("</path>\n")
	return sb.String()
}

func (s *Store) ensureLibrary(ctx context.Context, name string) (int64, error) {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO libraries (name) VALUES (?) ON CONFLICT(name) DO NOTHING`, name); err != nil {
		return 0, fmt.Errorf("store: ensure library: %w", err)
	}
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM libraries WHERE name = ?`, name).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("store: lookup library id: %w", err)
	}
	return id, nil
}

// DeleteDocuments removes every chunk of (library, version) and its FTS
// and vector rows atomically, returning the number of chunks removed,
// per §4.6.2.
func (s *Store) DeleteDocuments(ctx context.Context, library, version string) (int, error) {
	library = strings.ToLower(strings.TrimSpace(library))
	version = strings.ToLower(strings.TrimSpace(version))

	var count int
	err := s.runTx(ctx, func(tx *sql.Tx) error {
		var libID sql.NullInt64
		err := tx.QueryRowContext(ctx, `SELECT id FROM libraries WHERE name = ?`, library).Scan(&libID)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return fmt.Errorf("store: lookup library: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			DELETE FROM document_vectors
			WHERE rowid IN (SELECT rowid FROM documents WHERE library_id = ? AND version = ?)`,
			libID.Int64, version); err != nil {
			return fmt.Errorf("store: delete vectors: %w", err)
		}

		res, err := tx.ExecContext(ctx,
			`DELETE FROM documents WHERE library_id = ? AND version = ?`, libID.Int64, version)
		if err != nil {
			return fmt.Errorf("store: delete documents: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		count = int(n)
		return nil
	})
	return count, err
}
