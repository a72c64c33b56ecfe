package database

const schema = `
CREATE TABLE IF NOT EXISTS documents (
    id TEXT PRIMARY KEY,
    kind TEXT NOT NULL DEFAULT '',
    body TEXT NOT NULL,
    created TEXT NOT NULL,
    updated TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_kind ON documents (kind, created);
CREATE INDEX IF NOT EXISTS idx_documents_created ON documents (created, id);
`
