// Package outbox persists mutations made while offline (or simply not yet
// acknowledged) and replays them to the server in creation order. Entries
// are written in the same transaction as the optimistic cache edit, so a
// crash never loses an intent the UI already showed.
package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/maildrift/maildrift/internal/client/store"
	"github.com/maildrift/maildrift/internal/common"
	"github.com/maildrift/maildrift/internal/dbx"
	"github.com/maildrift/maildrift/internal/feed"
	"github.com/maildrift/maildrift/internal/logging"
)

// Entry is one pending mutation. Before holds the pre-image of the target
// row at record time (nil for creates) so a server rejection can be rolled
// back without guessing.
type Entry struct {
	Seq       int64
	Table     string
	RowID     string
	Action    feed.Action
	Before    *feed.Row
	CreatedAt int64
}

// Sender pushes one action to the server. The API client satisfies this.
type Sender interface {
	Mutate(ctx context.Context, action feed.Action) (*feed.Bundle, error)
}

// Outbox manages the pending-mutation queue inside the cache database.
type Outbox struct {
	store  *store.Store
	logger logging.Logger
	now    func() int64
}

func New(st *store.Store, logger logging.Logger) *Outbox {
	return &Outbox{
		store:  st,
		logger: logger.With("module", "outbox"),
		now:    func() int64 { return time.Now().UTC().UnixMilli() },
	}
}

// Record enqueues an action inside tx, alongside the optimistic cache write.
//
// Repeated actions of the same type on the same row coalesce: the payload is
// replaced, the queue position and the original pre-image are kept. Saving a
// draft twenty times while offline flushes as one mutation carrying the last
// payload.
func (o *Outbox) Record(ctx context.Context, tx dbx.DBTX, action feed.Action, table, rowID string, before *feed.Row) error {
	var beforeJSON any
	if before != nil {
		raw, err := json.Marshal(before)
		if err != nil {
			return fmt.Errorf("marshal pre-image: %w", err)
		}
		beforeJSON = string(raw)
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO outbox (tbl, row_id, action_type, payload, before, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (tbl, row_id, action_type) DO UPDATE SET
			payload = excluded.payload`,
		table, rowID, string(action.Type), string(action.Payload), beforeJSON, o.now())
	if err != nil {
		return fmt.Errorf("%w: record outbox entry: %v", common.ErrStorage, err)
	}
	return nil
}

// Pending returns the queued entries in creation order.
func (o *Outbox) Pending(ctx context.Context) ([]Entry, error) {
	rows, err := o.store.Query(ctx,
		`SELECT seq, tbl, row_id, action_type, payload, before, created_at
		 FROM outbox ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("%w: list outbox: %v", common.ErrStorage, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var actionType, payload string
		var before sql.NullString
		if err := rows.Scan(&e.Seq, &e.Table, &e.RowID, &actionType, &payload, &before, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan outbox: %v", common.ErrStorage, err)
		}
		e.Action = feed.Action{Type: feed.ActionType(actionType), Payload: json.RawMessage(payload)}
		if before.Valid {
			e.Before = &feed.Row{}
			if err := json.Unmarshal([]byte(before.String), e.Before); err != nil {
				return nil, fmt.Errorf("%w: decode pre-image: %v", common.ErrStorage, err)
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Len reports the number of queued entries.
func (o *Outbox) Len(ctx context.Context) (int, error) {
	var n int
	err := o.store.QueryRow(ctx, `SELECT COUNT(*) FROM outbox`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%w: count outbox: %v", common.ErrStorage, err)
	}
	return n, nil
}

// Flush replays pending entries in order.
//
// Per entry:
//   - success: the entry is removed and the server's row bundle is merged
//     into the cache.
//   - transient failure (network, 5xx): the flush stops, the entry stays at
//     the head of the queue for the next attempt.
//   - permanent rejection (validation, conflict, not found): the optimistic
//     edit is rolled back to the recorded pre-image and the entry is removed.
//     The sync engine never retries what the server has already refused.
func (o *Outbox) Flush(ctx context.Context, send Sender) error {
	entries, err := o.Pending(ctx)
	if err != nil {
		return err
	}

	for _, e := range entries {
		bundle, err := send.Mutate(ctx, e.Action)
		if err != nil {
			if errors.Is(err, common.ErrTransient) {
				o.logger.Debug(ctx, "flush paused on transient error",
					"action", string(e.Action.Type), "error", err.Error())
				return err
			}
			o.logger.Warn(ctx, "mutation rejected, rolling back",
				"action", string(e.Action.Type), "row", e.RowID, "error", err.Error())
			if err := o.revert(ctx, e); err != nil {
				return err
			}
			if err := o.remove(ctx, e.Seq); err != nil {
				return err
			}
			continue
		}

		if err := o.remove(ctx, e.Seq); err != nil {
			return err
		}
		if bundle != nil {
			if err := o.store.MergeBundle(ctx, bundle); err != nil {
				return err
			}
		}
	}
	return nil
}

func (o *Outbox) revert(ctx context.Context, e Entry) error {
	if e.Before == nil {
		return o.store.DeleteRow(ctx, e.Table, e.RowID)
	}
	return o.store.RestoreRow(ctx, *e.Before)
}

func (o *Outbox) remove(ctx context.Context, seq int64) error {
	if err := o.store.Exec(ctx, `DELETE FROM outbox WHERE seq = ?`, seq); err != nil {
		return fmt.Errorf("%w: remove outbox entry: %v", common.ErrStorage, err)
	}
	return nil
}
