package storage

const schema = `
-- The 'kv' table holds every stored record: the flashcard document and the OAuth records.
-- expires_at is a unix timestamp in milliseconds, NULL for keys that never expire.
CREATE TABLE IF NOT EXISTS kv (
    key TEXT PRIMARY KEY,
    value BLOB NOT NULL,
    expires_at INTEGER
);

CREATE INDEX IF NOT EXISTS kv_expires_at ON kv(expires_at);
`
