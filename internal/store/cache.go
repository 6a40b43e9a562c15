// Package store provides a SQLite-backed cache of monthly reductions and an
// upload history.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/theirongolddev/snapdash/internal/model"

	_ "modernc.org/sqlite" // register sqlite driver
)

// Cache memoizes monthly reductions keyed by payload fingerprint.
type Cache struct {
	db *sql.DB
}

// Open opens or creates the cache database at the given path.
func Open(dbPath string) (*Cache, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=synchronous(normal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("opening cache db: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Cache{db: db}, nil
}

// Close closes the cache database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// FingerprintKey formats a fingerprint for storage.
func FingerprintKey(fp uint64) string {
	return strconv.FormatUint(fp, 16)
}

// Reduction is a cached set of monthly records plus the counts they came from.
type Reduction struct {
	Fingerprint string
	Records     []model.MonthlyRecord
	Total       int
	Dropped     int
	CreatedAt   time.Time
}

// LoadReduction returns the cached reduction for fingerprint. The bool is
// false on a cache miss.
func (c *Cache) LoadReduction(fingerprint string) (Reduction, bool, error) {
	red := Reduction{Fingerprint: fingerprint}
	var created string
	err := c.db.QueryRow(`SELECT total_snapshots, dropped_snapshots, created_at
		FROM reductions WHERE fingerprint = ?`, fingerprint).Scan(&red.Total, &red.Dropped, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Reduction{}, false, nil
	}
	if err != nil {
		return Reduction{}, false, err
	}
	red.CreatedAt, _ = time.Parse(time.RFC3339, created)

	rows, err := c.db.Query(`SELECT year_month, snapshot_at FROM reduction_months
		WHERE fingerprint = ? ORDER BY year_month`, fingerprint)
	if err != nil {
		return Reduction{}, false, err
	}
	defer func() { _ = rows.Close() }()

	monthIdx := make(map[string]int)
	for rows.Next() {
		var rec model.MonthlyRecord
		var at string
		if err := rows.Scan(&rec.YearMonth, &at); err != nil {
			return Reduction{}, false, err
		}
		rec.SnapshotAt, _ = time.Parse(time.RFC3339Nano, at)
		rec.Values = make(map[string]int64)
		monthIdx[rec.YearMonth] = len(red.Records)
		red.Records = append(red.Records, rec)
	}
	if err := rows.Err(); err != nil {
		return Reduction{}, false, err
	}

	valueRows, err := c.db.Query(`SELECT year_month, column_name, value FROM month_values
		WHERE fingerprint = ?`, fingerprint)
	if err != nil {
		return Reduction{}, false, err
	}
	defer func() { _ = valueRows.Close() }()

	for valueRows.Next() {
		var month, column string
		var value int64
		if err := valueRows.Scan(&month, &column, &value); err != nil {
			return Reduction{}, false, err
		}
		if idx, ok := monthIdx[month]; ok {
			red.Records[idx].Values[column] = value
		}
	}
	return red, true, valueRows.Err()
}

// SaveReduction stores a reduction, replacing any existing entry for the fingerprint.
func (c *Cache) SaveReduction(red Reduction) error {
	tx, err := c.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	// Cascades to months and values.
	if _, err := tx.Exec("DELETE FROM reductions WHERE fingerprint = ?", red.Fingerprint); err != nil {
		return err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = tx.Exec(`INSERT INTO reductions (fingerprint, total_snapshots, dropped_snapshots, created_at)
		VALUES (?, ?, ?, ?)`, red.Fingerprint, red.Total, red.Dropped, now)
	if err != nil {
		return err
	}

	for _, rec := range red.Records {
		_, err = tx.Exec(`INSERT INTO reduction_months (fingerprint, year_month, snapshot_at)
			VALUES (?, ?, ?)`, red.Fingerprint, rec.YearMonth, rec.SnapshotAt.Format(time.RFC3339Nano))
		if err != nil {
			return err
		}
		for column, value := range rec.Values {
			_, err = tx.Exec(`INSERT INTO month_values (fingerprint, year_month, column_name, value)
				VALUES (?, ?, ?, ?)`, red.Fingerprint, rec.YearMonth, column, value)
			if err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

// DeleteReduction removes a cached reduction.
func (c *Cache) DeleteReduction(fingerprint string) error {
	_, err := c.db.Exec("DELETE FROM reductions WHERE fingerprint = ?", fingerprint)
	return err
}

// ReductionCount returns the number of cached reductions.
func (c *Cache) ReductionCount() (int, error) {
	var count int
	err := c.db.QueryRow("SELECT COUNT(*) FROM reductions").Scan(&count)
	return count, err
}

// Upload is one entry of the upload history.
type Upload struct {
	ID          int64
	Fingerprint string
	Source      string
	Total       int
	Dropped     int
	Months      int
	FirstMonth  string
	LastMonth   string
	RecordedAt  time.Time
}

// RecordUpload appends an entry to the upload history.
func (c *Cache) RecordUpload(u Upload) error {
	if u.RecordedAt.IsZero() {
		u.RecordedAt = time.Now()
	}
	_, err := c.db.Exec(`INSERT INTO uploads
		(fingerprint, source, total_snapshots, dropped_snapshots, months, first_month, last_month, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.Fingerprint, u.Source, u.Total, u.Dropped, u.Months, u.FirstMonth, u.LastMonth,
		u.RecordedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

// Uploads returns the most recent uploads, newest first. limit <= 0 returns all.
func (c *Cache) Uploads(limit int) ([]Upload, error) {
	query := `SELECT id, fingerprint, source, total_snapshots, dropped_snapshots, months,
		first_month, last_month, recorded_at FROM uploads ORDER BY id DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := c.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var uploads []Upload
	for rows.Next() {
		var u Upload
		var first, last sql.NullString
		var recorded string
		if err := rows.Scan(&u.ID, &u.Fingerprint, &u.Source, &u.Total, &u.Dropped, &u.Months,
			&first, &last, &recorded); err != nil {
			return nil, err
		}
		u.FirstMonth = first.String
		u.LastMonth = last.String
		u.RecordedAt, _ = time.Parse(time.RFC3339Nano, recorded)
		uploads = append(uploads, u)
	}
	return uploads, rows.Err()
}

// UploadFromRecords fills the month span of an upload from reduced records.
func UploadFromRecords(source, fingerprint string, records []model.MonthlyRecord, total, dropped int) Upload {
	u := Upload{
		Fingerprint: fingerprint,
		Source:      source,
		Total:       total,
		Dropped:     dropped,
		Months:      len(records),
	}
	if len(records) > 0 {
		u.FirstMonth = records[0].YearMonth
		u.LastMonth = records[len(records)-1].YearMonth
	}
	return u
}
