// Package repo implements Postgres persistence for the synchronized tables.
//
// Every table gets the same two sync primitives: an upsert by id (used by
// mutations) and a changed-since query bounded by scope (used by the delta
// feed compiler). A Store binds to a dbx.DBTX, so the same methods run
// against the pool or inside a transaction.
package repo

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/maildrift/maildrift/internal/common"
	"github.com/maildrift/maildrift/internal/dbx"
)

// Store exposes per-table persistence over a DBTX (*sql.DB or *sql.Tx).
type Store struct {
	db dbx.DBTX
}

// New returns a Store bound to the given DBTX.
func New(db dbx.DBTX) *Store {
	return &Store{db: db}
}

// Scope bounds which rows a sync operation may read: the authenticated user
// plus the mailboxes that user can reach.
type Scope struct {
	UserID     string
	MailboxIDs []string
}

func wrapNotFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", common.ErrNotFound, what)
	}
	return fmt.Errorf("query %s: %w", what, err)
}
