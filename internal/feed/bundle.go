package feed

import (
	"encoding/json"
	"fmt"
)

// Bundle is the delta carried between server and client: for each table, the
// full current rows that changed, plus the new watermark. A missing table key
// means "no rows in that table changed", never "skip merging".
//
// Mutation responses embed a partial Bundle (Watermark zero) limited to the
// rows the action affected; the periodic pull returns a complete one.
type Bundle struct {
	Watermark int64 `json:"watermark,omitempty"`

	Mailboxes        []Mailbox             `json:"mailboxes,omitempty"`
	Aliases          []MailboxAlias        `json:"mailbox_aliases,omitempty"`
	CustomDomains    []MailboxCustomDomain `json:"mailbox_custom_domains,omitempty"`
	Categories       []MailboxCategory     `json:"mailbox_categories,omitempty"`
	MailboxUsers     []MailboxUser         `json:"mailbox_users,omitempty"`
	TempAliases      []TempAlias           `json:"temp_aliases,omitempty"`
	Emails           []Email               `json:"emails,omitempty"`
	EmailRecipients  []EmailRecipient      `json:"email_recipients,omitempty"`
	EmailSenders     []EmailSender         `json:"email_senders,omitempty"`
	EmailAttachments []EmailAttachment     `json:"email_attachments,omitempty"`
	Drafts           []DraftEmail          `json:"draft_emails,omitempty"`
	Users            []User                `json:"users,omitempty"`
	UserSessions     []UserSession         `json:"user_sessions,omitempty"`
	MailboxTokens    []MailboxToken        `json:"mailbox_tokens,omitempty"`
	Notifications    []UserNotification    `json:"user_notifications,omitempty"`
}

// Row is one bundle entry in table-agnostic form: the sync metadata plus the
// entity serialized as JSON (metadata fields included). The client cache
// stores rows in exactly this shape.
type Row struct {
	Table   string
	Meta    Meta
	Payload json.RawMessage
}

// IsEmpty reports whether the bundle carries no rows at all.
func (b *Bundle) IsEmpty() bool {
	rows, _ := b.Flatten()
	return len(rows) == 0
}

// Flatten converts the bundle into table-agnostic rows, in table order.
// The switch below is exhaustive over the synchronized tables; adding an
// entity means adding a slice here and a case below, checked at compile time.
func (b *Bundle) Flatten() ([]Row, error) {
	var rows []Row

	appendRows := func(table string, meta Meta, v any) error {
		payload, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal %s row %s: %w", table, meta.ID, err)
		}
		rows = append(rows, Row{Table: table, Meta: meta, Payload: payload})
		return nil
	}

	for _, e := range b.Mailboxes {
		if err := appendRows(TableMailboxes, e.Meta, e); err != nil {
			return nil, err
		}
	}
	for _, e := range b.Aliases {
		if err := appendRows(TableAliases, e.Meta, e); err != nil {
			return nil, err
		}
	}
	for _, e := range b.CustomDomains {
		if err := appendRows(TableCustomDomains, e.Meta, e); err != nil {
			return nil, err
		}
	}
	for _, e := range b.Categories {
		if err := appendRows(TableCategories, e.Meta, e); err != nil {
			return nil, err
		}
	}
	for _, e := range b.MailboxUsers {
		if err := appendRows(TableMailboxUsers, e.Meta, e); err != nil {
			return nil, err
		}
	}
	for _, e := range b.TempAliases {
		if err := appendRows(TableTempAliases, e.Meta, e); err != nil {
			return nil, err
		}
	}
	for _, e := range b.Emails {
		if err := appendRows(TableEmails, e.Meta, e); err != nil {
			return nil, err
		}
	}
	for _, e := range b.EmailRecipients {
		if err := appendRows(TableEmailRecipients, e.Meta, e); err != nil {
			return nil, err
		}
	}
	for _, e := range b.EmailSenders {
		if err := appendRows(TableEmailSenders, e.Meta, e); err != nil {
			return nil, err
		}
	}
	for _, e := range b.EmailAttachments {
		if err := appendRows(TableEmailAttachments, e.Meta, e); err != nil {
			return nil, err
		}
	}
	for _, e := range b.Drafts {
		if err := appendRows(TableDrafts, e.Meta, e); err != nil {
			return nil, err
		}
	}
	for _, e := range b.Users {
		if err := appendRows(TableUsers, e.Meta, e); err != nil {
			return nil, err
		}
	}
	for _, e := range b.UserSessions {
		if err := appendRows(TableUserSessions, e.Meta, e); err != nil {
			return nil, err
		}
	}
	for _, e := range b.MailboxTokens {
		if err := appendRows(TableMailboxTokens, e.Meta, e); err != nil {
			return nil, err
		}
	}
	for _, e := range b.Notifications {
		if err := appendRows(TableNotifications, e.Meta, e); err != nil {
			return nil, err
		}
	}

	return rows, nil
}
