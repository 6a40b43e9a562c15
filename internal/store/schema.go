package store

const schemaSQL = `
CREATE TABLE IF NOT EXISTS reductions (
    fingerprint          TEXT PRIMARY KEY,
    total_snapshots      INTEGER NOT NULL,
    dropped_snapshots    INTEGER NOT NULL,
    created_at           TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS reduction_months (
    fingerprint          TEXT NOT NULL REFERENCES reductions(fingerprint) ON DELETE CASCADE,
    year_month           TEXT NOT NULL,
    snapshot_at          TEXT NOT NULL,
    PRIMARY KEY (fingerprint, year_month)
);

CREATE TABLE IF NOT EXISTS month_values (
    fingerprint          TEXT NOT NULL,
    year_month           TEXT NOT NULL,
    column_name          TEXT NOT NULL,
    value                INTEGER NOT NULL,
    PRIMARY KEY (fingerprint, year_month, column_name),
    FOREIGN KEY (fingerprint, year_month)
        REFERENCES reduction_months(fingerprint, year_month) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS uploads (
    id                   INTEGER PRIMARY KEY AUTOINCREMENT,
    fingerprint          TEXT NOT NULL,
    source               TEXT NOT NULL,
    total_snapshots      INTEGER NOT NULL,
    dropped_snapshots    INTEGER NOT NULL,
    months               INTEGER NOT NULL,
    first_month          TEXT,
    last_month           TEXT,
    recorded_at          TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_uploads_recorded ON uploads(recorded_at);
`
