package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maildrift/maildrift/internal/common"
	"github.com/maildrift/maildrift/internal/dbx"
	"github.com/maildrift/maildrift/internal/feed"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func emailBundle(id string, subject string, updatedAt int64, deleted bool) *feed.Bundle {
	e := feed.Email{Subject: subject}
	e.ID = id
	e.MailboxID = "m1"
	e.UpdatedAt = updatedAt
	e.Deleted = deleted
	return &feed.Bundle{Emails: []feed.Email{e}}
}

func TestMergeBundle_NewerWins(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.MergeBundle(ctx, emailBundle("e1", "old", 10, false)))
	require.NoError(t, s.MergeBundle(ctx, emailBundle("e1", "new", 20, false)))

	row, err := s.Get(ctx, feed.TableEmails, "e1")
	require.NoError(t, err)
	assert.Equal(t, int64(20), row.Meta.UpdatedAt)
	assert.Contains(t, string(row.Payload), "new")
}

func TestMergeBundle_StaleLoses(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.MergeBundle(ctx, emailBundle("e1", "new", 20, false)))
	require.NoError(t, s.MergeBundle(ctx, emailBundle("e1", "old", 10, false)))

	row, err := s.Get(ctx, feed.TableEmails, "e1")
	require.NoError(t, err)
	assert.Equal(t, int64(20), row.Meta.UpdatedAt)
	assert.Contains(t, string(row.Payload), "new")
}

func TestMergeBundle_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	b := emailBundle("e1", "hello", 10, false)
	b.Watermark = 100
	require.NoError(t, s.MergeBundle(ctx, b))
	require.NoError(t, s.MergeBundle(ctx, b))
	require.NoError(t, s.MergeBundle(ctx, b))

	rows, err := s.List(ctx, feed.TableEmails, true)
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	wm, err := s.Watermark(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(100), wm)
}

func TestMergeBundle_TombstonePropagates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.MergeBundle(ctx, emailBundle("e1", "hello", 10, false)))
	require.NoError(t, s.MergeBundle(ctx, emailBundle("e1", "", 20, true)))

	live, err := s.List(ctx, feed.TableEmails, false)
	require.NoError(t, err)
	assert.Empty(t, live, "tombstoned row leaves live listings")

	all, err := s.List(ctx, feed.TableEmails, true)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].Meta.Deleted, "tombstone itself is retained")
}

func TestWatermark_NeverMovesBackwards(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	b1 := &feed.Bundle{Watermark: 100}
	require.NoError(t, s.MergeBundle(ctx, b1))

	b2 := &feed.Bundle{Watermark: 50}
	require.NoError(t, s.MergeBundle(ctx, b2))

	wm, err := s.Watermark(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(100), wm)
}

func TestUpsertLocal_MarksDirtyAndRemoteMergeClears(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	payload, err := json.Marshal(map[string]any{"id": "d1", "subject": "draft"})
	require.NoError(t, err)

	row := feed.Row{
		Table:   feed.TableDrafts,
		Meta:    feed.Meta{ID: "d1", MailboxID: "m1", UpdatedAt: 10},
		Payload: payload,
	}
	require.NoError(t, s.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		return s.UpsertLocal(ctx, tx, row)
	}))

	var needsSync int
	require.NoError(t, s.db.QueryRow(
		`SELECT needs_sync FROM cache_rows WHERE tbl = ? AND id = ?`,
		feed.TableDrafts, "d1").Scan(&needsSync))
	assert.Equal(t, 1, needsSync)

	// Server acknowledges with the same timestamp: remote copy becomes truth.
	d := feed.DraftEmail{Subject: "draft"}
	d.ID = "d1"
	d.MailboxID = "m1"
	d.UpdatedAt = 10
	require.NoError(t, s.MergeBundle(ctx, &feed.Bundle{Drafts: []feed.DraftEmail{d}}))

	require.NoError(t, s.db.QueryRow(
		`SELECT needs_sync FROM cache_rows WHERE tbl = ? AND id = ?`,
		feed.TableDrafts, "d1").Scan(&needsSync))
	assert.Equal(t, 0, needsSync)
}

func TestList_StableOrderOnEqualTimestamps(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"e3", "e1", "e2"} {
		require.NoError(t, s.MergeBundle(ctx, emailBundle(id, "x", 10, false)))
	}
	require.NoError(t, s.MergeBundle(ctx, emailBundle("e9", "newest", 20, false)))

	rows, err := s.List(ctx, feed.TableEmails, false)
	require.NoError(t, err)
	require.Len(t, rows, 4)

	var ids []string
	for _, r := range rows {
		ids = append(ids, r.Meta.ID)
	}
	assert.Equal(t, []string{"e9", "e1", "e2", "e3"}, ids,
		"newest first, ties broken by id")
}

func TestGet_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get(context.Background(), feed.TableEmails, "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestSubscribe_PulsedAfterMerge(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ch := s.Subscribe(feed.TableEmails)
	require.NoError(t, s.MergeBundle(ctx, emailBundle("e1", "hello", 10, false)))

	select {
	case <-ch:
	default:
		t.Fatal("expected a change pulse after merge")
	}

	// A merge touching another table leaves this subscription quiet.
	c := feed.MailboxCategory{Name: "work"}
	c.ID = "c1"
	c.MailboxID = "m1"
	c.UpdatedAt = 11
	require.NoError(t, s.MergeBundle(ctx, &feed.Bundle{Categories: []feed.MailboxCategory{c}}))

	select {
	case <-ch:
		t.Fatal("unexpected pulse for unrelated table")
	default:
	}
}
