// Package feed defines the wire model shared by the server and the client:
// synchronized entity rows, the delta bundle that carries them, and the
// action envelope used by mutation calls.
package feed

// Table names of the synchronized entities. The delta feed compiler runs one
// changed-since query per table; the client cache keys rows by (table, id).
const (
	TableMailboxes        = "mailboxes"
	TableAliases          = "mailbox_aliases"
	TableCustomDomains    = "mailbox_custom_domains"
	TableCategories       = "mailbox_categories"
	TableMailboxUsers     = "mailbox_users"
	TableTempAliases      = "temp_aliases"
	TableEmails           = "emails"
	TableEmailRecipients  = "email_recipients"
	TableEmailSenders     = "email_senders"
	TableEmailAttachments = "email_attachments"
	TableDrafts           = "draft_emails"
	TableUsers            = "users"
	TableUserSessions     = "user_sessions"
	TableMailboxTokens    = "mailbox_tokens"
	TableNotifications    = "user_notifications"
)

// Tables lists every synchronized table, in the order bundles are merged.
var Tables = []string{
	TableMailboxes,
	TableAliases,
	TableCustomDomains,
	TableCategories,
	TableMailboxUsers,
	TableTempAliases,
	TableEmails,
	TableEmailRecipients,
	TableEmailSenders,
	TableEmailAttachments,
	TableDrafts,
	TableUsers,
	TableUserSessions,
	TableMailboxTokens,
	TableNotifications,
}

// Meta carries the synchronization fields every entity row has.
//
// UpdatedAt is epoch milliseconds UTC and is strictly non-decreasing over a
// row's lifetime; it is the only field consulted when deciding whether an
// incoming row wins a merge. Deleted rows keep their ID and scope keys
// forever so deletion propagates as an update, never as an absence.
type Meta struct {
	ID        string `json:"id"`
	MailboxID string `json:"mailboxId,omitempty"`
	UserID    string `json:"userId,omitempty"`
	UpdatedAt int64  `json:"updatedAt"`
	Deleted   bool   `json:"deleted,omitempty"`
}

// Touch advances UpdatedAt to now. Writers call it on every mutation,
// tombstoning included.
func (m *Meta) Touch(now int64) {
	if now > m.UpdatedAt {
		m.UpdatedAt = now
	}
}
