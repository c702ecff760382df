// Package cache is the durable local store for entries, the persisted date
// index, and client settings. It backs the offline half of the sync model:
// every local save lands here first, marked pending until a remote write
// confirms it.
package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hyperengineering/daybook/internal/types"
)

// Store is the SQLite-backed local cache.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the cache database at dbPath, applies pragmas
// and migrations, and returns a ready store.
func NewStore(dbPath string) (*Store, error) {
	// Ensure parent directory exists
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := enablePragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable pragmas: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// enablePragmas sets SQLite pragmas for optimal performance and safety.
func enablePragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// GetRecord returns the cache record for a date, or ErrNotFound.
func (s *Store) GetRecord(ctx context.Context, date string) (*types.CacheRecord, error) {
	var (
		rec       types.CacheRecord
		token     sql.NullString
		updatedAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT date, document, remote_token, sync_state, updated_at
		FROM entries WHERE date = ?
	`, date).Scan(&rec.Date, &rec.Document, &token, &rec.State, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if token.Valid {
		rec.RemoteToken = &token.String
	}
	rec.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &rec, nil
}

// PutRecord upserts a cache record and inserts its date into the date index
// in the same transaction. The index must never miss a date the cache holds.
func (s *Store) PutRecord(ctx context.Context, rec types.CacheRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var token any
	if rec.RemoteToken != nil {
		token = *rec.RemoteToken
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO entries (date, document, remote_token, sync_state, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			document = excluded.document,
			remote_token = excluded.remote_token,
			sync_state = excluded.sync_state,
			updated_at = excluded.updated_at
	`, rec.Date, rec.Document, token, rec.State, rec.UpdatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO date_index (date) VALUES (?) ON CONFLICT(date) DO NOTHING`, rec.Date)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// DeleteRecord removes a record and its index row. Deleting an absent date
// is not an error.
func (s *Store) DeleteRecord(ctx context.Context, date string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE date = ?`, date); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM date_index WHERE date = ?`, date); err != nil {
		return err
	}

	return tx.Commit()
}

// Dates returns all indexed dates, most recent first. ISO dates sort
// lexicographically, so ordering is done in SQL.
func (s *Store) Dates(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT date FROM date_index ORDER BY date DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDates(rows)
}

// ReplaceDates swaps the full date index for an authoritative listing, such
// as a fresh remote directory enumeration. Dates with pending local records
// are retained even if the listing omits them: a pending entry has not
// reached the remote yet so the listing cannot know about it.
func (s *Store) ReplaceDates(ctx context.Context, dates []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM date_index`); err != nil {
		return err
	}
	for _, d := range dates {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO date_index (date) VALUES (?) ON CONFLICT(date) DO NOTHING`, d); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO date_index (date)
		SELECT date FROM entries WHERE sync_state = ?
		ON CONFLICT(date) DO NOTHING
	`, types.StatePending); err != nil {
		return err
	}

	return tx.Commit()
}

// PendingDates returns the dates awaiting a remote write, oldest first so a
// drain pushes entries in the order they were written.
func (s *Store) PendingDates(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date FROM entries WHERE sync_state = ? ORDER BY date ASC
	`, types.StatePending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDates(rows)
}

// MarkSynced flips a record to synced and stores the remote version token
// from the confirmed write. Returns ErrNotFound for an unknown date.
func (s *Store) MarkSynced(ctx context.Context, date, token string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE entries SET sync_state = ?, remote_token = ? WHERE date = ?
	`, types.StateSynced, token, date)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// MarkPending flips a record back to pending, queueing it for the next sync.
func (s *Store) MarkPending(ctx context.Context, date string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE entries SET sync_state = ? WHERE date = ?
	`, types.StatePending, date)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// Records returns every cache record, most recent first. Dates known only
// from a remote listing have no record and are not included.
func (s *Store) Records(ctx context.Context) ([]types.CacheRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, document, remote_token, sync_state, updated_at
		FROM entries ORDER BY date DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.CacheRecord
	for rows.Next() {
		var (
			rec       types.CacheRecord
			token     sql.NullString
			updatedAt string
		)
		if err := rows.Scan(&rec.Date, &rec.Document, &token, &rec.State, &updatedAt); err != nil {
			return nil, err
		}
		if token.Valid {
			rec.RemoteToken = &token.String
		}
		rec.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// GetSetting returns an opaque settings value, or ErrNotFound.
func (s *Store) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return value, err
}

// PutSetting upserts an opaque settings value.
func (s *Store) PutSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// Usage reports bytes used by the database and whether writes currently
// succeed. The write probe runs inside a rolled-back transaction so it
// leaves no trace.
func (s *Store) Usage(ctx context.Context) (types.Usage, error) {
	var pageCount, pageSize int64
	if err := s.db.QueryRowContext(ctx, `PRAGMA page_count`).Scan(&pageCount); err != nil {
		return types.Usage{}, err
	}
	if err := s.db.QueryRowContext(ctx, `PRAGMA page_size`).Scan(&pageSize); err != nil {
		return types.Usage{}, err
	}

	u := types.Usage{Bytes: pageCount * pageSize}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return u, nil
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES ('__probe__', '') ON CONFLICT(key) DO UPDATE SET value = ''`)
	tx.Rollback()
	u.Writable = err == nil
	return u, nil
}

// Prune deletes the oldest synced records beyond the keep most recent
// entries. Pending records are never pruned: they hold unsynced work.
// Pruned dates stay in the date index, since the entries still exist
// remotely and hydrate lazily on the next read.
// Returns the number of records removed.
func (s *Store) Prune(ctx context.Context, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT date FROM entries
		WHERE sync_state = ? AND date IN (
			SELECT date FROM entries ORDER BY date DESC LIMIT -1 OFFSET ?
		)
	`, types.StateSynced, keep)
	if err != nil {
		return 0, err
	}
	victims, err := scanDates(rows)
	rows.Close()
	if err != nil {
		return 0, err
	}

	for _, d := range victims {
		if _, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE date = ?`, d); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(victims), nil
}

func scanDates(rows *sql.Rows) ([]string, error) {
	var dates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
