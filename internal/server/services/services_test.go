package services

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maildrift/maildrift/internal/common"
	"github.com/maildrift/maildrift/internal/feed"
	"github.com/maildrift/maildrift/internal/logging"
)

// sliceConverter lets []string scope arguments through to the mock the way
// the pgx driver accepts them.
type sliceConverter struct{}

func (sliceConverter) ConvertValue(v any) (driver.Value, error) {
	if _, ok := v.([]string); ok {
		return v, nil
	}
	return driver.DefaultParameterConverter.ConvertValue(v)
}

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(
		sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp),
		sqlmock.ValueConverterOption(sliceConverter{}))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func expectMailboxScope(mock sqlmock.Sqlmock, ids ...string) {
	rows := sqlmock.NewRows([]string{"mailbox_id"})
	for _, id := range ids {
		rows.AddRow(id)
	}
	mock.ExpectQuery(`SELECT mailbox_id FROM mailbox_users`).WillReturnRows(rows)
}

func mustAction(t *testing.T, typ feed.ActionType, payload any) feed.Action {
	t.Helper()
	a, err := feed.NewAction(typ, payload)
	require.NoError(t, err)
	return a
}

func TestApply_UnknownAction(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewMutationService(db, logging.NewJSON())

	mock.ExpectBegin()
	expectMailboxScope(mock, "m1")
	mock.ExpectRollback()

	_, err := svc.Apply(context.Background(), "u1", feed.Action{Type: "bogus", Payload: []byte(`{}`)})
	assert.ErrorIs(t, err, common.ErrValidation)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApply_AliasAdd(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewMutationService(db, logging.NewJSON())
	svc.now = func() int64 { return 1000 }

	mock.ExpectBegin()
	expectMailboxScope(mock, "m1")
	mock.ExpectQuery(`SELECT .* FROM mailbox_aliases WHERE id = \$1`).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM mailbox_aliases`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(`INSERT INTO mailbox_aliases`).
		WithArgs("a1", "m1", "me@example.com", false, int64(1000), false).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	bundle, err := svc.Apply(context.Background(), "u1", mustAction(t, feed.ActionAliasAdd,
		feed.AliasAddPayload{ID: "a1", MailboxID: "m1", Address: "me@example.com"}))
	require.NoError(t, err)
	require.Len(t, bundle.Aliases, 1)
	assert.Equal(t, int64(1000), bundle.Aliases[0].UpdatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApply_AliasAdd_AddressTaken(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewMutationService(db, logging.NewJSON())

	mock.ExpectBegin()
	expectMailboxScope(mock, "m1")
	mock.ExpectQuery(`SELECT .* FROM mailbox_aliases WHERE id = \$1`).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM mailbox_aliases`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	_, err := svc.Apply(context.Background(), "u1", mustAction(t, feed.ActionAliasAdd,
		feed.AliasAddPayload{ID: "a1", MailboxID: "m1", Address: "me@example.com"}))
	assert.ErrorIs(t, err, common.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApply_AliasAdd_ReplayedCreateSucceeds(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewMutationService(db, logging.NewJSON())

	mock.ExpectBegin()
	expectMailboxScope(mock, "m1")
	aliasRows := sqlmock.NewRows([]string{"id", "mailbox_id", "address", "is_default", "updated_at", "deleted"}).
		AddRow("a1", "m1", "me@example.com", false, int64(500), false)
	mock.ExpectQuery(`SELECT .* FROM mailbox_aliases WHERE id = \$1`).WillReturnRows(aliasRows)
	mock.ExpectCommit()

	// Same action sent twice after a lost response: the second attempt finds
	// its own row and must not trip the duplicate-address check.
	bundle, err := svc.Apply(context.Background(), "u1", mustAction(t, feed.ActionAliasAdd,
		feed.AliasAddPayload{ID: "a1", MailboxID: "m1", Address: "me@example.com"}))
	require.NoError(t, err)
	require.Len(t, bundle.Aliases, 1)
	assert.Equal(t, int64(500), bundle.Aliases[0].UpdatedAt, "existing row comes back untouched")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApply_AliasAdd_IDCollisionIsConflict(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewMutationService(db, logging.NewJSON())

	mock.ExpectBegin()
	expectMailboxScope(mock, "m1")
	aliasRows := sqlmock.NewRows([]string{"id", "mailbox_id", "address", "is_default", "updated_at", "deleted"}).
		AddRow("a1", "m1", "other@example.com", false, int64(500), false)
	mock.ExpectQuery(`SELECT .* FROM mailbox_aliases WHERE id = \$1`).WillReturnRows(aliasRows)
	mock.ExpectRollback()

	_, err := svc.Apply(context.Background(), "u1", mustAction(t, feed.ActionAliasAdd,
		feed.AliasAddPayload{ID: "a1", MailboxID: "m1", Address: "me@example.com"}))
	assert.ErrorIs(t, err, common.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApply_DraftSend_ReplayReturnsSentEmail(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewMutationService(db, logging.NewJSON())

	mock.ExpectBegin()
	expectMailboxScope(mock, "m1")
	draftRows := sqlmock.NewRows([]string{"id", "mailbox_id", "subject", "body", "to_addresses", "updated_at", "deleted"}).
		AddRow("d1", "m1", "", "", "", int64(500), true)
	mock.ExpectQuery(`SELECT .* FROM draft_emails WHERE id = \$1`).WillReturnRows(draftRows)
	emailRows := sqlmock.NewRows([]string{"id", "mailbox_id", "category_id", "subject", "body", "snippet",
		"read", "starred", "size_bytes", "received_at", "updated_at", "deleted"}).
		AddRow("e1", "m1", "", "hi", "body", "body", true, false, int64(6), int64(500), int64(500), false)
	mock.ExpectQuery(`SELECT .* FROM emails WHERE id = \$1`).WillReturnRows(emailRows)
	mock.ExpectCommit()

	// The draft is already tombstoned and the email exists under the
	// client-chosen id: the send was applied, the response was lost.
	bundle, err := svc.Apply(context.Background(), "u1", mustAction(t, feed.ActionDraftSend,
		feed.DraftSendPayload{DraftID: "d1", EmailID: "e1"}))
	require.NoError(t, err)
	require.Len(t, bundle.Emails, 1)
	assert.Equal(t, "e1", bundle.Emails[0].ID)
	require.Len(t, bundle.Drafts, 1)
	assert.True(t, bundle.Drafts[0].Deleted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApply_AliasAdd_ForeignMailboxLooksLikeNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewMutationService(db, logging.NewJSON())

	mock.ExpectBegin()
	expectMailboxScope(mock, "m1")
	mock.ExpectRollback()

	_, err := svc.Apply(context.Background(), "u1", mustAction(t, feed.ActionAliasAdd,
		feed.AliasAddPayload{ID: "a1", MailboxID: "somebody-elses", Address: "x@example.com"}))
	assert.ErrorIs(t, err, common.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApply_EmailSetFlags(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewMutationService(db, logging.NewJSON())
	svc.now = func() int64 { return 2000 }

	mock.ExpectBegin()
	expectMailboxScope(mock, "m1")
	emailRows := sqlmock.NewRows([]string{"id", "mailbox_id", "category_id", "subject", "body", "snippet",
		"read", "starred", "size_bytes", "received_at", "updated_at", "deleted"}).
		AddRow("e1", "m1", "", "hi", "body", "body", false, false, int64(6), int64(1), int64(1), false)
	mock.ExpectQuery(`SELECT .* FROM emails WHERE id = \$1`).WillReturnRows(emailRows)
	mock.ExpectExec(`INSERT INTO emails`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	read := true
	bundle, err := svc.Apply(context.Background(), "u1", mustAction(t, feed.ActionEmailSetFlags,
		feed.EmailSetFlagsPayload{ID: "e1", Read: &read}))
	require.NoError(t, err)
	require.Len(t, bundle.Emails, 1)
	assert.True(t, bundle.Emails[0].Read)
	assert.False(t, bundle.Emails[0].Starred, "unset flag stays untouched")
	assert.Equal(t, int64(2000), bundle.Emails[0].UpdatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApply_AliasDelete_DefaultRefused(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewMutationService(db, logging.NewJSON())

	mock.ExpectBegin()
	expectMailboxScope(mock, "m1")
	aliasRows := sqlmock.NewRows([]string{"id", "mailbox_id", "address", "is_default", "updated_at", "deleted"}).
		AddRow("a1", "m1", "me@example.com", true, int64(1), false)
	mock.ExpectQuery(`SELECT .* FROM mailbox_aliases WHERE id = \$1`).WillReturnRows(aliasRows)
	mock.ExpectRollback()

	_, err := svc.Apply(context.Background(), "u1", mustAction(t, feed.ActionAliasDelete,
		feed.AliasDeletePayload{ID: "a1"}))
	assert.ErrorIs(t, err, common.ErrValidation)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCompile_EmptyFeedStillAdvancesWatermark(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewFeedService(db, logging.NewJSON())
	svc.now = func() int64 { return 9999 }

	mock.ExpectBegin()
	expectMailboxScope(mock, "m1")
	// One changed-since query per synchronized table, all empty.
	for i := 0; i < 15; i++ {
		mock.ExpectQuery(`SELECT`).WillReturnRows(sqlmock.NewRows([]string{"id"}))
	}
	mock.ExpectCommit()

	bundle, err := svc.Compile(context.Background(), "u1", 0)
	require.NoError(t, err)
	assert.True(t, bundle.IsEmpty())
	assert.Equal(t, int64(9999), bundle.Watermark)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCompile_ForwardsSinceToEveryTable(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewFeedService(db, logging.NewJSON())
	svc.now = func() int64 { return 100 }

	mock.ExpectBegin()
	expectMailboxScope(mock, "m1")
	// Every table is filtered by the same client watermark; only the emails
	// table has a row newer than it.
	for i := 0; i < 15; i++ {
		rows := sqlmock.NewRows([]string{"id"})
		if i == 6 {
			rows = sqlmock.NewRows([]string{"id", "mailbox_id", "category_id", "subject", "body", "snippet",
				"read", "starred", "size_bytes", "received_at", "updated_at", "deleted"}).
				AddRow("ea", "m1", "", "a", "b", "b", false, false, int64(2), int64(60), int64(60), false)
		}
		mock.ExpectQuery(`updated_at >= \$2`).
			WithArgs(sqlmock.AnyArg(), int64(50)).
			WillReturnRows(rows)
	}
	mock.ExpectCommit()

	bundle, err := svc.Compile(context.Background(), "u1", 50)
	require.NoError(t, err)
	require.Len(t, bundle.Emails, 1)
	assert.Equal(t, "ea", bundle.Emails[0].ID)
	assert.Equal(t, int64(100), bundle.Watermark)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserService_AuthenticateRoundTrip(t *testing.T) {
	svc := NewUserService(nil, logging.NewJSON(), []byte("secret"), time.Minute, time.Hour)

	pair, err := svc.issuePair("u1", "s1")
	require.NoError(t, err)

	userID, err := svc.Authenticate(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", userID)
}

func TestUserService_AuthenticateExpired(t *testing.T) {
	svc := NewUserService(nil, logging.NewJSON(), []byte("secret"), -time.Minute, time.Hour)

	pair, err := svc.issuePair("u1", "s1")
	require.NoError(t, err)

	_, err = svc.Authenticate(pair.AccessToken)
	assert.ErrorIs(t, err, common.ErrTokenExpired)
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "short", snippet("short"))
	long := make([]byte, snippetLen*2)
	for i := range long {
		long[i] = 'a'
	}
	assert.Len(t, snippet(string(long)), snippetLen)
}
