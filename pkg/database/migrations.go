package database

// postgresSchema 初始化PostgreSQL表结构
const postgresSchema = `
CREATE TABLE IF NOT EXISTS spaces (
    id                 UUID PRIMARY KEY,
    name               TEXT   NOT NULL,
    description        TEXT   NOT NULL DEFAULT '',
    created_at         BIGINT NOT NULL,
    last_modified_at   BIGINT NOT NULL,
    delete_at          BIGINT NOT NULL,
    created_by         TEXT   NOT NULL DEFAULT '',
    owner_contact_mail TEXT   NOT NULL DEFAULT '',
    admin_token        TEXT   NOT NULL UNIQUE,
    shareable_token    TEXT   NOT NULL UNIQUE,
    CHECK (admin_token <> shareable_token)
);

CREATE INDEX IF NOT EXISTS spaces_delete_at_idx ON spaces (delete_at);

CREATE TABLE IF NOT EXISTS lists (
    id          UUID PRIMARY KEY,
    space_id    UUID        NOT NULL REFERENCES spaces (id) ON DELETE CASCADE,
    name        TEXT        NOT NULL,
    description TEXT        NOT NULL DEFAULT '',
    columns     JSONB       NOT NULL,
    max_rows    INTEGER,
    row_data    JSONB       NOT NULL DEFAULT '[]'::jsonb,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS lists_space_id_idx ON lists (space_id, created_at);
`

// sqliteSchema mirrors postgresSchema with SQLite types; row_data is a
// JSON array in a TEXT column.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS spaces (
    id                 TEXT PRIMARY KEY,
    name               TEXT    NOT NULL,
    description        TEXT    NOT NULL DEFAULT '',
    created_at         INTEGER NOT NULL,
    last_modified_at   INTEGER NOT NULL,
    delete_at          INTEGER NOT NULL,
    created_by         TEXT    NOT NULL DEFAULT '',
    owner_contact_mail TEXT    NOT NULL DEFAULT '',
    admin_token        TEXT    NOT NULL UNIQUE,
    shareable_token    TEXT    NOT NULL UNIQUE,
    CHECK (admin_token <> shareable_token)
);

CREATE INDEX IF NOT EXISTS spaces_delete_at_idx ON spaces (delete_at);

CREATE TABLE IF NOT EXISTS lists (
    id          TEXT PRIMARY KEY,
    space_id    TEXT    NOT NULL REFERENCES spaces (id) ON DELETE CASCADE,
    seq         INTEGER NOT NULL,
    name        TEXT    NOT NULL,
    description TEXT    NOT NULL DEFAULT '',
    columns     TEXT    NOT NULL,
    max_rows    INTEGER,
    row_data    TEXT    NOT NULL DEFAULT '[]'
);

CREATE INDEX IF NOT EXISTS lists_space_id_idx ON lists (space_id, seq);
`
