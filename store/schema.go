package store

// schemaV1 is migration 001: libraries, documents (with the columns the
// FTS5 index is built over), the external-content FTS5 index with its
// sync triggers, and the vector table keyed by the content row's rowid.
const schemaV1 = `
CREATE TABLE IF NOT EXISTS libraries (
    id   INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS documents (
    id          TEXT NOT NULL UNIQUE,
    library_id  INTEGER NOT NULL REFERENCES libraries(id),
    version     TEXT NOT NULL,
    url         TEXT NOT NULL,
    title       TEXT NOT NULL DEFAULT '',
    path        TEXT NOT NULL DEFAULT '[]',
    level       INTEGER NOT NULL DEFAULT 0,
    content     TEXT NOT NULL,
    metadata    TEXT NOT NULL DEFAULT '{}',
    sort_order  INTEGER NOT NULL,
    indexed_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_documents_lib_ver ON documents(library_id, version);
CREATE INDEX IF NOT EXISTS idx_documents_lib_ver_url ON documents(library_id, version, url, sort_order);
CREATE UNIQUE INDEX IF NOT EXISTS idx_documents_id ON documents(id);

CREATE VIRTUAL TABLE IF NOT EXISTS documents_fts USING fts5(
    title,
    url,
    path,
    content,
    content='documents',
    content_rowid='rowid',
    tokenize='unicode61 remove_diacritics 2'
);

CREATE TRIGGER IF NOT EXISTS documents_ai AFTER INSERT ON documents BEGIN
    INSERT INTO documents_fts(rowid, title, url, path, content)
    VALUES (new.rowid, new.title, new.url, new.path, new.content);
END;
CREATE TRIGGER IF NOT EXISTS documents_ad AFTER DELETE ON documents BEGIN
    INSERT INTO documents_fts(documents_fts, rowid, title, url, path, content)
    VALUES ('delete', old.rowid, old.title, old.url, old.path, old.content);
END;
CREATE TRIGGER IF NOT EXISTS documents_au AFTER UPDATE ON documents BEGIN
    INSERT INTO documents_fts(documents_fts, rowid, title, url, path, content)
    VALUES ('delete', old.rowid, old.title, old.url, old.path, old.content);
    INSERT INTO documents_fts(rowid, title, url, path, content)
    VALUES (new.rowid, new.title, new.url, new.path, new.content);
END;

CREATE TABLE IF NOT EXISTS document_vectors (
    rowid     INTEGER PRIMARY KEY,
    embedding BLOB NOT NULL
);
`
