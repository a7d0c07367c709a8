package agent

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maildrift/maildrift/internal/client/outbox"
	"github.com/maildrift/maildrift/internal/client/store"
	"github.com/maildrift/maildrift/internal/common"
	"github.com/maildrift/maildrift/internal/feed"
	"github.com/maildrift/maildrift/internal/logging"
)

type fakeSender struct {
	sent    []feed.Action
	respond func(action feed.Action) (*feed.Bundle, error)
}

func (f *fakeSender) Mutate(_ context.Context, action feed.Action) (*feed.Bundle, error) {
	f.sent = append(f.sent, action)
	if f.respond != nil {
		return f.respond(action)
	}
	return &feed.Bundle{}, nil
}

func newFixture(t *testing.T) (*Actions, *store.Store, *outbox.Outbox) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	ob := outbox.New(st, logging.NewJSON())
	return NewActions(st, ob, logging.NewJSON(), nil), st, ob
}

// Offline draft editing: repeated saves show up locally right away, stay a
// single outbox entry, and the flush replaces the local row with the
// server's acknowledged copy.
func TestSaveDraft_OfflineEditsCoalesceAndFlushReconciles(t *testing.T) {
	a, st, ob := newFixture(t)
	ctx := context.Background()

	id, err := a.SaveDraft(ctx, "", "m1", "first", "body", []string{"to@example.com"})
	require.NoError(t, err)
	_, err = a.SaveDraft(ctx, id, "m1", "second", "body", []string{"to@example.com"})
	require.NoError(t, err)
	_, err = a.SaveDraft(ctx, id, "m1", "final", "body", []string{"to@example.com"})
	require.NoError(t, err)

	// Local row reflects the latest edit and is flagged pending.
	row, err := st.Get(ctx, feed.TableDrafts, id)
	require.NoError(t, err)
	assert.Contains(t, string(row.Payload), "final")
	dirty, err := st.NeedsSync(ctx, feed.TableDrafts, id)
	require.NoError(t, err)
	assert.True(t, dirty)

	n, err := ob.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "three saves, one queue entry")

	// Server acknowledges with its own timestamp.
	const serverTime = int64(1_000_000)
	sender := &fakeSender{respond: func(action feed.Action) (*feed.Bundle, error) {
		var p feed.DraftSavePayload
		require.NoError(t, json.Unmarshal(action.Payload, &p))
		assert.Equal(t, "final", p.Subject, "flush carries the last payload")

		d := feed.DraftEmail{Subject: p.Subject, Body: p.Body, To: p.To}
		d.Meta = feed.Meta{ID: p.ID, MailboxID: p.MailboxID, UpdatedAt: serverTime}
		return &feed.Bundle{Drafts: []feed.DraftEmail{d}}, nil
	}}
	require.NoError(t, ob.Flush(ctx, sender))

	row, err = st.Get(ctx, feed.TableDrafts, id)
	require.NoError(t, err)
	assert.Equal(t, serverTime, row.Meta.UpdatedAt, "server timestamp wins")
	dirty, err = st.NeedsSync(ctx, feed.TableDrafts, id)
	require.NoError(t, err)
	assert.False(t, dirty, "acknowledged row is clean")

	n, err = ob.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDeleteEmail_TombstonesImmediately(t *testing.T) {
	a, st, _ := newFixture(t)
	ctx := context.Background()

	e := feed.Email{Subject: "hello"}
	e.ID = "e1"
	e.MailboxID = "m1"
	e.UpdatedAt = 10
	require.NoError(t, st.MergeBundle(ctx, &feed.Bundle{Emails: []feed.Email{e}}))

	require.NoError(t, a.DeleteEmail(ctx, "e1"))

	live, err := st.List(ctx, feed.TableEmails, false)
	require.NoError(t, err)
	assert.Empty(t, live, "deleted email leaves the list before any network call")

	row, err := st.Get(ctx, feed.TableEmails, "e1")
	require.NoError(t, err)
	assert.True(t, row.Meta.Deleted)
	assert.NotContains(t, string(row.Payload), "hello", "local tombstone is scrubbed too")
}

func TestSendDraft_TombstonesDraftAndQueuesSend(t *testing.T) {
	a, st, ob := newFixture(t)
	ctx := context.Background()

	id, err := a.SaveDraft(ctx, "", "m1", "hi", "body", []string{"to@example.com"})
	require.NoError(t, err)

	emailID, err := a.SendDraft(ctx, id)
	require.NoError(t, err)
	assert.NotEmpty(t, emailID)

	row, err := st.Get(ctx, feed.TableDrafts, id)
	require.NoError(t, err)
	assert.True(t, row.Meta.Deleted)

	entries, err := ob.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2, "save entry plus send entry")
	assert.Equal(t, feed.ActionDraftSend, entries[1].Action.Type)
}

func TestSetEmailFlags_UnknownEmail(t *testing.T) {
	a, _, _ := newFixture(t)

	read := true
	err := a.SetEmailFlags(context.Background(), "missing", &read, nil)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestAddAlias_GeneratesClientID(t *testing.T) {
	a, st, ob := newFixture(t)
	ctx := context.Background()

	id, err := a.AddAlias(ctx, "m1", "me@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	row, err := st.Get(ctx, feed.TableAliases, id)
	require.NoError(t, err)
	assert.Equal(t, id, row.Meta.ID)

	entries, err := ob.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	var p feed.AliasAddPayload
	require.NoError(t, json.Unmarshal(entries[0].Action.Payload, &p))
	assert.Equal(t, id, p.ID, "queued payload reuses the local id")
}
