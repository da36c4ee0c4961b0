package store

const createTableSQL = `
CREATE TABLE IF NOT EXISTS snapshots (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    client_id      TEXT NOT NULL DEFAULT '',
    host_id        TEXT NOT NULL DEFAULT '',
    hostname       TEXT NOT NULL,
    category_id    TEXT NOT NULL,
    payload        BLOB,
    collect_error  TEXT NOT NULL DEFAULT '',
    collected_at   TEXT NOT NULL,
    stored_at      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_snapshots_hostname ON snapshots(hostname);
CREATE INDEX IF NOT EXISTS idx_snapshots_category_id ON snapshots(category_id);
CREATE INDEX IF NOT EXISTS idx_snapshots_collected_at ON snapshots(collected_at);
`
