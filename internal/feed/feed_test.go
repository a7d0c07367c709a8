package feed

import (
	"encoding/json"
	"testing"

	"github.com/maildrift/maildrift/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBundle_FlattenCarriesMetaAndPayload(t *testing.T) {
	b := &Bundle{
		Watermark: 100,
		Aliases: []MailboxAlias{
			{Meta: Meta{ID: "a1", MailboxID: "m1", UpdatedAt: 5}, Address: "me@example.com"},
		},
		Emails: []Email{
			{Meta: Meta{ID: "e1", MailboxID: "m1", UpdatedAt: 7}, Subject: "hi"},
		},
	}

	rows, err := b.Flatten()
	require.NoError(t, err)
	require.Len(t, rows, 2)

	// table order: aliases before emails
	assert.Equal(t, TableAliases, rows[0].Table)
	assert.Equal(t, "a1", rows[0].Meta.ID)
	assert.Equal(t, int64(5), rows[0].Meta.UpdatedAt)

	var back MailboxAlias
	require.NoError(t, json.Unmarshal(rows[0].Payload, &back))
	assert.Equal(t, "me@example.com", back.Address)
	assert.Equal(t, "m1", back.MailboxID)
}

func TestBundle_MissingTablesMeanNoChanges(t *testing.T) {
	// A bundle with no table keys at all must flatten to zero rows, not fail.
	var b Bundle
	require.NoError(t, json.Unmarshal([]byte(`{"watermark": 42}`), &b))

	rows, err := b.Flatten()
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.True(t, b.IsEmpty())
	assert.Equal(t, int64(42), b.Watermark)
}

func TestAction_DecodeRejectsUnknownFields(t *testing.T) {
	a := Action{Type: ActionAliasDelete, Payload: []byte(`{"id":"a1","oops":true}`)}

	var p AliasDeletePayload
	err := a.Decode(&p)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestAction_RoundTrip(t *testing.T) {
	a, err := NewAction(ActionEmailSetFlags, EmailSetFlagsPayload{ID: "e1", Read: boolPtr(true)})
	require.NoError(t, err)

	var p EmailSetFlagsPayload
	require.NoError(t, a.Decode(&p))
	require.NotNil(t, p.Read)
	assert.True(t, *p.Read)
	assert.Nil(t, p.Starred)
}

func TestTombstone_ScrubsPIIButKeepsIdentity(t *testing.T) {
	e := Email{
		Meta:    Meta{ID: "e1", MailboxID: "m1", UpdatedAt: 10},
		Subject: "secret subject",
		Body:    "secret body",
		Snippet: "secret…",
	}
	e.Tombstone(20)

	assert.True(t, e.Deleted)
	assert.Empty(t, e.Subject)
	assert.Empty(t, e.Body)
	assert.Empty(t, e.Snippet)
	assert.Equal(t, "e1", e.ID, "identity survives tombstoning")
	assert.Equal(t, "m1", e.MailboxID, "scope survives tombstoning")
	assert.Equal(t, int64(20), e.UpdatedAt)

	tk := MailboxToken{Meta: Meta{ID: "t1", MailboxID: "m1"}, Name: "ci", TokenValue: "sekrit"}
	tk.Tombstone(30)
	assert.Empty(t, tk.TokenValue)
	assert.Equal(t, "ci", tk.Name, "non-PII name survives")
}

func TestMeta_TouchIsMonotonic(t *testing.T) {
	m := Meta{UpdatedAt: 50}
	m.Touch(40)
	assert.Equal(t, int64(50), m.UpdatedAt, "Touch never moves UpdatedAt backwards")
	m.Touch(60)
	assert.Equal(t, int64(60), m.UpdatedAt)
}

func boolPtr(b bool) *bool { return &b }
