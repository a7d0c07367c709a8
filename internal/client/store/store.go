// Package store is the client's local replica: a SQLite cache holding every
// synchronized row in table-agnostic form, the sync watermark, and the
// pending-mutation outbox. All reads the UI performs hit this cache only.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/maildrift/maildrift/internal/common"
	"github.com/maildrift/maildrift/internal/dbx"
	"github.com/maildrift/maildrift/internal/feed"
)

const schema = `
CREATE TABLE IF NOT EXISTS cache_rows (
	tbl        TEXT    NOT NULL,
	id         TEXT    NOT NULL,
	mailbox_id TEXT    NOT NULL DEFAULT '',
	user_id    TEXT    NOT NULL DEFAULT '',
	updated_at INTEGER NOT NULL,
	deleted    INTEGER NOT NULL DEFAULT 0,
	needs_sync INTEGER NOT NULL DEFAULT 0,
	payload    TEXT    NOT NULL,
	PRIMARY KEY (tbl, id)
);
CREATE INDEX IF NOT EXISTS idx_cache_rows_tbl_deleted ON cache_rows (tbl, deleted);

CREATE TABLE IF NOT EXISTS sync_state (
	id        INTEGER PRIMARY KEY CHECK (id = 1),
	watermark INTEGER NOT NULL DEFAULT 0
);
INSERT OR IGNORE INTO sync_state (id, watermark) VALUES (1, 0);

CREATE TABLE IF NOT EXISTS outbox (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	tbl         TEXT    NOT NULL,
	row_id      TEXT    NOT NULL,
	action_type TEXT    NOT NULL,
	payload     TEXT    NOT NULL,
	before      TEXT,
	created_at  INTEGER NOT NULL,
	UNIQUE (tbl, row_id, action_type)
);
`

// Store wraps the SQLite cache file. It is safe for concurrent use; SQLite
// serializes writers and subscribers get change pulses after commits.
type Store struct {
	db *sql.DB

	mu   sync.Mutex
	subs map[string][]chan struct{}
}

// Open opens (creating if needed) the cache at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("%w: open cache: %v", common.ErrStorage, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: apply cache schema: %v", common.ErrStorage, err)
	}
	return &Store{db: db, subs: make(map[string][]chan struct{})}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// WithTx runs fn inside one cache transaction.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	return dbx.WithTx(ctx, s.db, nil, fn)
}

// Query, QueryRow and Exec expose the underlying handle for sibling
// packages that keep their own tables in the cache file (the outbox).
func (s *Store) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, query, args...)
}

func (s *Store) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, query, args...)
}

func (s *Store) Exec(ctx context.Context, query string, args ...any) error {
	_, err := s.db.ExecContext(ctx, query, args...)
	return err
}

// Get returns one cached row, tombstoned or not.
func (s *Store) Get(ctx context.Context, table, id string) (*feed.Row, error) {
	return getRow(ctx, s.db, table, id)
}

func getRow(ctx context.Context, db dbx.DBTX, table, id string) (*feed.Row, error) {
	row := &feed.Row{Table: table}
	var deleted, needsSync int
	err := db.QueryRowContext(ctx,
		`SELECT id, mailbox_id, user_id, updated_at, deleted, needs_sync, payload
		 FROM cache_rows WHERE tbl = ? AND id = ?`, table, id).
		Scan(&row.Meta.ID, &row.Meta.MailboxID, &row.Meta.UserID, &row.Meta.UpdatedAt,
			&deleted, &needsSync, (*[]byte)(&row.Payload))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s/%s", common.ErrNotFound, table, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get row: %v", common.ErrStorage, err)
	}
	row.Meta.Deleted = deleted != 0
	return row, nil
}

// NeedsSync reports whether a row has a local edit not yet acknowledged by
// the server. List views use it to badge pending rows.
func (s *Store) NeedsSync(ctx context.Context, table, id string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT needs_sync FROM cache_rows WHERE tbl = ? AND id = ?`, table, id).Scan(&n)
	if err == sql.ErrNoRows {
		return false, fmt.Errorf("%w: %s/%s", common.ErrNotFound, table, id)
	}
	if err != nil {
		return false, fmt.Errorf("%w: read needs_sync: %v", common.ErrStorage, err)
	}
	return n != 0, nil
}

// List returns the cached rows of one table, tombstones excluded unless
// includeDeleted is set, newest first. The id tiebreak keeps the order
// stable when timestamps collide.
func (s *Store) List(ctx context.Context, table string, includeDeleted bool) ([]feed.Row, error) {
	query := `SELECT id, mailbox_id, user_id, updated_at, deleted, payload
		FROM cache_rows WHERE tbl = ?`
	if !includeDeleted {
		query += ` AND deleted = 0`
	}
	query += ` ORDER BY updated_at DESC, id`

	rows, err := s.db.QueryContext(ctx, query, table)
	if err != nil {
		return nil, fmt.Errorf("%w: list %s: %v", common.ErrStorage, table, err)
	}
	defer rows.Close()

	var result []feed.Row
	for rows.Next() {
		r := feed.Row{Table: table}
		var deleted int
		if err := rows.Scan(&r.Meta.ID, &r.Meta.MailboxID, &r.Meta.UserID,
			&r.Meta.UpdatedAt, &deleted, (*[]byte)(&r.Payload)); err != nil {
			return nil, fmt.Errorf("%w: scan %s: %v", common.ErrStorage, table, err)
		}
		r.Meta.Deleted = deleted != 0
		result = append(result, r)
	}
	return result, rows.Err()
}

// UpsertLocal writes an optimistic local edit inside tx and flags it dirty.
// Local edits always overwrite; the LWW guard applies to remote rows only.
func (s *Store) UpsertLocal(ctx context.Context, tx dbx.DBTX, row feed.Row) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO cache_rows (tbl, id, mailbox_id, user_id, updated_at, deleted, needs_sync, payload)
		VALUES (?, ?, ?, ?, ?, ?, 1, ?)
		ON CONFLICT (tbl, id) DO UPDATE SET
			mailbox_id = excluded.mailbox_id,
			user_id = excluded.user_id,
			updated_at = excluded.updated_at,
			deleted = excluded.deleted,
			needs_sync = 1,
			payload = excluded.payload`,
		row.Table, row.Meta.ID, row.Meta.MailboxID, row.Meta.UserID,
		row.Meta.UpdatedAt, boolInt(row.Meta.Deleted), string(row.Payload))
	if err != nil {
		return fmt.Errorf("%w: upsert %s/%s: %v", common.ErrStorage, row.Table, row.Meta.ID, err)
	}
	return nil
}

// RestoreRow overwrites a cache row with a saved pre-image, clearing the
// dirty flag. Used when a rejected mutation is rolled back: the pre-image is
// already server truth, so it must not be re-sent.
func (s *Store) RestoreRow(ctx context.Context, row feed.Row) error {
	err := s.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO cache_rows (tbl, id, mailbox_id, user_id, updated_at, deleted, needs_sync, payload)
			VALUES (?, ?, ?, ?, ?, ?, 0, ?)
			ON CONFLICT (tbl, id) DO UPDATE SET
				mailbox_id = excluded.mailbox_id,
				user_id = excluded.user_id,
				updated_at = excluded.updated_at,
				deleted = excluded.deleted,
				needs_sync = 0,
				payload = excluded.payload`,
			row.Table, row.Meta.ID, row.Meta.MailboxID, row.Meta.UserID,
			row.Meta.UpdatedAt, boolInt(row.Meta.Deleted), string(row.Payload))
		if err != nil {
			return fmt.Errorf("%w: restore %s/%s: %v", common.ErrStorage, row.Table, row.Meta.ID, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.notify(row.Table)
	return nil
}

// DeleteRow removes a cache row outright. Used to roll back a rejected
// optimistic create that never existed on the server.
func (s *Store) DeleteRow(ctx context.Context, table, id string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM cache_rows WHERE tbl = ? AND id = ?`, table, id); err != nil {
		return fmt.Errorf("%w: delete %s/%s: %v", common.ErrStorage, table, id, err)
	}
	s.notify(table)
	return nil
}

// mergeRow is the single merge point for remote rows: last-writer-wins on
// updated_at, with the incoming row winning ties so replayed bundles converge.
// A winning remote row clears needs_sync; the server copy is now the truth.
func mergeRow(ctx context.Context, tx dbx.DBTX, row feed.Row) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO cache_rows (tbl, id, mailbox_id, user_id, updated_at, deleted, needs_sync, payload)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?)
		ON CONFLICT (tbl, id) DO UPDATE SET
			mailbox_id = excluded.mailbox_id,
			user_id = excluded.user_id,
			updated_at = excluded.updated_at,
			deleted = excluded.deleted,
			needs_sync = 0,
			payload = excluded.payload
		WHERE excluded.updated_at >= cache_rows.updated_at`,
		row.Table, row.Meta.ID, row.Meta.MailboxID, row.Meta.UserID,
		row.Meta.UpdatedAt, boolInt(row.Meta.Deleted), string(row.Payload))
	if err != nil {
		return fmt.Errorf("%w: merge %s/%s: %v", common.ErrStorage, row.Table, row.Meta.ID, err)
	}
	return nil
}

// MergeBundle applies a delta bundle: every row goes through the LWW merge
// and, when the bundle carries a watermark, the watermark advances in the
// same transaction. Replaying a bundle is a no-op by construction.
//
// Subscribers of the affected tables are pulsed after the commit.
func (s *Store) MergeBundle(ctx context.Context, bundle *feed.Bundle) error {
	rows, err := bundle.Flatten()
	if err != nil {
		return err
	}

	err = s.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		for _, row := range rows {
			if err := mergeRow(ctx, tx, row); err != nil {
				return err
			}
		}
		if bundle.Watermark > 0 {
			if err := setWatermark(ctx, tx, bundle.Watermark); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	changed := make(map[string]bool, len(rows))
	for _, row := range rows {
		changed[row.Table] = true
	}
	for table := range changed {
		s.notify(table)
	}
	return nil
}

// Watermark returns the high-water mark of the last completed pull.
func (s *Store) Watermark(ctx context.Context) (int64, error) {
	var wm int64
	err := s.db.QueryRowContext(ctx, `SELECT watermark FROM sync_state WHERE id = 1`).Scan(&wm)
	if err != nil {
		return 0, fmt.Errorf("%w: read watermark: %v", common.ErrStorage, err)
	}
	return wm, nil
}

func setWatermark(ctx context.Context, tx dbx.DBTX, wm int64) error {
	// The watermark never moves backwards, even if a stale bundle lands late.
	_, err := tx.ExecContext(ctx,
		`UPDATE sync_state SET watermark = ? WHERE id = 1 AND watermark < ?`, wm, wm)
	if err != nil {
		return fmt.Errorf("%w: set watermark: %v", common.ErrStorage, err)
	}
	return nil
}

// Subscribe returns a channel pulsed after any commit that changed table.
// The channel is buffered and never blocks a writer; coalesced pulses mean
// "something changed", not "exactly one change".
func (s *Store) Subscribe(table string) <-chan struct{} {
	ch := make(chan struct{}, 1)
	s.mu.Lock()
	s.subs[table] = append(s.subs[table], ch)
	s.mu.Unlock()
	return ch
}

// Notify pulses subscribers of table. Callers that commit local edits
// through WithTx call it after the transaction lands.
func (s *Store) Notify(table string) {
	s.notify(table)
}

func (s *Store) notify(table string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs[table] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
