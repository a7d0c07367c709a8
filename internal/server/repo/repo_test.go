package repo

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/maildrift/maildrift/internal/common"
	"github.com/maildrift/maildrift/internal/feed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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

func newStoreWithMock(t *testing.T) (*Store, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(
		sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp),
		sqlmock.ValueConverterOption(sliceConverter{}))
	require.NoError(t, err)
	return New(db), mock, db
}

func TestUpsertAlias_BindsSyncColumns(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO mailbox_aliases .* ON CONFLICT \(id\) DO UPDATE SET`).
		WithArgs("a1", "m1", "me@example.com", true, int64(42), false).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.UpsertAlias(context.Background(), &feed.MailboxAlias{
		Meta:      feed.Meta{ID: "a1", MailboxID: "m1", UpdatedAt: 42},
		Address:   "me@example.com",
		IsDefault: true,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAliasesChangedSince_ReturnsTombstones(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "mailbox_id", "address", "is_default", "updated_at", "deleted"}).
		AddRow("a1", "m1", "me@example.com", false, int64(5), false).
		AddRow("a2", "m1", "", false, int64(9), true)

	mock.ExpectQuery(`SELECT .* FROM mailbox_aliases WHERE mailbox_id = ANY\(\$1\) AND updated_at >= \$2`).
		WithArgs([]string{"m1"}, int64(0)).
		WillReturnRows(rows)

	got, err := s.AliasesChangedSince(context.Background(), Scope{MailboxIDs: []string{"m1"}}, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[1].Deleted, "tombstoned rows come back like live rows")
	assert.Empty(t, got[1].Address, "scrubbed fields stay scrubbed")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetEmail_NotFound(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT .* FROM emails WHERE id = \$1`).
		WillReturnError(sql.ErrNoRows)

	_, err := s.GetEmail(context.Background(), "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetDraft_SplitsRecipients(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "mailbox_id", "subject", "body", "to_addresses", "updated_at", "deleted"}).
		AddRow("d1", "m1", "hello", "body", "a@x.com,b@x.com", int64(7), false)

	mock.ExpectQuery(`SELECT .* FROM draft_emails WHERE id = \$1`).WillReturnRows(rows)

	d, err := s.GetDraft(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a@x.com", "b@x.com"}, d.To)
	require.NoError(t, mock.ExpectationsWereMet())
}
