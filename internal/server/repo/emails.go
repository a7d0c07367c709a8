package repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/maildrift/maildrift/internal/feed"
)

// UpsertEmail inserts or overwrites an email row by id.
func (s *Store) UpsertEmail(ctx context.Context, e *feed.Email) error {
	query := `
		INSERT INTO emails (id, mailbox_id, category_id, subject, body, snippet,
			read, starred, size_bytes, received_at, updated_at, deleted)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			category_id = EXCLUDED.category_id,
			subject = EXCLUDED.subject,
			body = EXCLUDED.body,
			snippet = EXCLUDED.snippet,
			read = EXCLUDED.read,
			starred = EXCLUDED.starred,
			size_bytes = EXCLUDED.size_bytes,
			received_at = EXCLUDED.received_at,
			updated_at = EXCLUDED.updated_at,
			deleted = EXCLUDED.deleted
	`
	_, err := s.db.ExecContext(ctx, query,
		e.ID, e.MailboxID, e.CategoryID, e.Subject, e.Body, e.Snippet,
		e.Read, e.Starred, e.SizeBytes, e.ReceivedAt, e.UpdatedAt, e.Deleted)
	if err != nil {
		return fmt.Errorf("upsert email: %w", err)
	}
	return nil
}

// GetEmail returns one email row, tombstoned or not.
func (s *Store) GetEmail(ctx context.Context, id string) (*feed.Email, error) {
	query := `SELECT id, mailbox_id, category_id, subject, body, snippet,
		read, starred, size_bytes, received_at, updated_at, deleted
		FROM emails WHERE id = $1`
	e := &feed.Email{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&e.ID, &e.MailboxID, &e.CategoryID, &e.Subject, &e.Body, &e.Snippet,
		&e.Read, &e.Starred, &e.SizeBytes, &e.ReceivedAt, &e.UpdatedAt, &e.Deleted)
	if err != nil {
		return nil, wrapNotFound(err, "email")
	}
	return e, nil
}

// EmailsChangedSince returns changed email rows for the scope.
func (s *Store) EmailsChangedSince(ctx context.Context, scope Scope, since int64) ([]feed.Email, error) {
	query := `SELECT id, mailbox_id, category_id, subject, body, snippet,
		read, starred, size_bytes, received_at, updated_at, deleted
		FROM emails WHERE mailbox_id = ANY($1) AND updated_at >= $2`
	rows, err := s.db.QueryContext(ctx, query, scope.MailboxIDs, since)
	if err != nil {
		return nil, fmt.Errorf("select emails: %w", err)
	}
	defer rows.Close()

	var result []feed.Email
	for rows.Next() {
		var e feed.Email
		if err := rows.Scan(&e.ID, &e.MailboxID, &e.CategoryID, &e.Subject, &e.Body, &e.Snippet,
			&e.Read, &e.Starred, &e.SizeBytes, &e.ReceivedAt, &e.UpdatedAt, &e.Deleted); err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// UpsertEmailRecipient inserts or overwrites a recipient row by id.
func (s *Store) UpsertEmailRecipient(ctx context.Context, r *feed.EmailRecipient) error {
	query := `
		INSERT INTO email_recipients (id, mailbox_id, email_id, address, kind, updated_at, deleted)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			address = EXCLUDED.address,
			kind = EXCLUDED.kind,
			updated_at = EXCLUDED.updated_at,
			deleted = EXCLUDED.deleted
	`
	_, err := s.db.ExecContext(ctx, query, r.ID, r.MailboxID, r.EmailID, r.Address, r.Kind, r.UpdatedAt, r.Deleted)
	if err != nil {
		return fmt.Errorf("upsert email recipient: %w", err)
	}
	return nil
}

// RecipientsForEmail returns the live recipient rows of one email.
func (s *Store) RecipientsForEmail(ctx context.Context, emailID string) ([]feed.EmailRecipient, error) {
	query := `SELECT id, mailbox_id, email_id, address, kind, updated_at, deleted
		FROM email_recipients WHERE email_id = $1 AND NOT deleted`
	return s.scanRecipients(ctx, query, emailID)
}

// EmailRecipientsChangedSince returns changed recipient rows for the scope.
func (s *Store) EmailRecipientsChangedSince(ctx context.Context, scope Scope, since int64) ([]feed.EmailRecipient, error) {
	query := `SELECT id, mailbox_id, email_id, address, kind, updated_at, deleted
		FROM email_recipients WHERE mailbox_id = ANY($1) AND updated_at >= $2`
	return s.scanRecipients(ctx, query, scope.MailboxIDs, since)
}

func (s *Store) scanRecipients(ctx context.Context, query string, args ...any) ([]feed.EmailRecipient, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select email recipients: %w", err)
	}
	defer rows.Close()

	var result []feed.EmailRecipient
	for rows.Next() {
		var r feed.EmailRecipient
		if err := rows.Scan(&r.ID, &r.MailboxID, &r.EmailID, &r.Address, &r.Kind, &r.UpdatedAt, &r.Deleted); err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// UpsertEmailSender inserts or overwrites a sender row by id.
func (s *Store) UpsertEmailSender(ctx context.Context, snd *feed.EmailSender) error {
	query := `
		INSERT INTO email_senders (id, mailbox_id, email_id, address, display_name, updated_at, deleted)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			address = EXCLUDED.address,
			display_name = EXCLUDED.display_name,
			updated_at = EXCLUDED.updated_at,
			deleted = EXCLUDED.deleted
	`
	_, err := s.db.ExecContext(ctx, query, snd.ID, snd.MailboxID, snd.EmailID, snd.Address, snd.DisplayName, snd.UpdatedAt, snd.Deleted)
	if err != nil {
		return fmt.Errorf("upsert email sender: %w", err)
	}
	return nil
}

// SendersForEmail returns the live sender rows of one email.
func (s *Store) SendersForEmail(ctx context.Context, emailID string) ([]feed.EmailSender, error) {
	query := `SELECT id, mailbox_id, email_id, address, display_name, updated_at, deleted
		FROM email_senders WHERE email_id = $1 AND NOT deleted`
	return s.scanSenders(ctx, query, emailID)
}

// EmailSendersChangedSince returns changed sender rows for the scope.
func (s *Store) EmailSendersChangedSince(ctx context.Context, scope Scope, since int64) ([]feed.EmailSender, error) {
	query := `SELECT id, mailbox_id, email_id, address, display_name, updated_at, deleted
		FROM email_senders WHERE mailbox_id = ANY($1) AND updated_at >= $2`
	return s.scanSenders(ctx, query, scope.MailboxIDs, since)
}

func (s *Store) scanSenders(ctx context.Context, query string, args ...any) ([]feed.EmailSender, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select email senders: %w", err)
	}
	defer rows.Close()

	var result []feed.EmailSender
	for rows.Next() {
		var snd feed.EmailSender
		if err := rows.Scan(&snd.ID, &snd.MailboxID, &snd.EmailID, &snd.Address, &snd.DisplayName, &snd.UpdatedAt, &snd.Deleted); err != nil {
			return nil, err
		}
		result = append(result, snd)
	}
	return result, rows.Err()
}

// UpsertEmailAttachment inserts or overwrites an attachment row by id.
func (s *Store) UpsertEmailAttachment(ctx context.Context, a *feed.EmailAttachment) error {
	query := `
		INSERT INTO email_attachments (id, mailbox_id, email_id, filename, mime_type,
			size_bytes, storage_key, updated_at, deleted)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			filename = EXCLUDED.filename,
			mime_type = EXCLUDED.mime_type,
			size_bytes = EXCLUDED.size_bytes,
			storage_key = EXCLUDED.storage_key,
			updated_at = EXCLUDED.updated_at,
			deleted = EXCLUDED.deleted
	`
	_, err := s.db.ExecContext(ctx, query, a.ID, a.MailboxID, a.EmailID, a.Filename, a.MimeType,
		a.SizeBytes, a.StorageKey, a.UpdatedAt, a.Deleted)
	if err != nil {
		return fmt.Errorf("upsert email attachment: %w", err)
	}
	return nil
}

// AttachmentsForEmail returns the live attachment rows of one email.
func (s *Store) AttachmentsForEmail(ctx context.Context, emailID string) ([]feed.EmailAttachment, error) {
	query := `SELECT id, mailbox_id, email_id, filename, mime_type, size_bytes, storage_key, updated_at, deleted
		FROM email_attachments WHERE email_id = $1 AND NOT deleted`
	return s.scanAttachments(ctx, query, emailID)
}

// EmailAttachmentsChangedSince returns changed attachment rows for the scope.
func (s *Store) EmailAttachmentsChangedSince(ctx context.Context, scope Scope, since int64) ([]feed.EmailAttachment, error) {
	query := `SELECT id, mailbox_id, email_id, filename, mime_type, size_bytes, storage_key, updated_at, deleted
		FROM email_attachments WHERE mailbox_id = ANY($1) AND updated_at >= $2`
	return s.scanAttachments(ctx, query, scope.MailboxIDs, since)
}

func (s *Store) scanAttachments(ctx context.Context, query string, args ...any) ([]feed.EmailAttachment, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select email attachments: %w", err)
	}
	defer rows.Close()

	var result []feed.EmailAttachment
	for rows.Next() {
		var a feed.EmailAttachment
		if err := rows.Scan(&a.ID, &a.MailboxID, &a.EmailID, &a.Filename, &a.MimeType,
			&a.SizeBytes, &a.StorageKey, &a.UpdatedAt, &a.Deleted); err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

// UpsertDraft inserts or overwrites a draft row by id. Recipient addresses
// are stored comma-joined; drafts have no recipient child rows.
func (s *Store) UpsertDraft(ctx context.Context, d *feed.DraftEmail) error {
	query := `
		INSERT INTO draft_emails (id, mailbox_id, subject, body, to_addresses, updated_at, deleted)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			subject = EXCLUDED.subject,
			body = EXCLUDED.body,
			to_addresses = EXCLUDED.to_addresses,
			updated_at = EXCLUDED.updated_at,
			deleted = EXCLUDED.deleted
	`
	_, err := s.db.ExecContext(ctx, query, d.ID, d.MailboxID, d.Subject, d.Body,
		strings.Join(d.To, ","), d.UpdatedAt, d.Deleted)
	if err != nil {
		return fmt.Errorf("upsert draft: %w", err)
	}
	return nil
}

// GetDraft returns one draft row, tombstoned or not.
func (s *Store) GetDraft(ctx context.Context, id string) (*feed.DraftEmail, error) {
	query := `SELECT id, mailbox_id, subject, body, to_addresses, updated_at, deleted
		FROM draft_emails WHERE id = $1`
	d := &feed.DraftEmail{}
	var to string
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&d.ID, &d.MailboxID, &d.Subject, &d.Body, &to, &d.UpdatedAt, &d.Deleted)
	if err != nil {
		return nil, wrapNotFound(err, "draft")
	}
	if to != "" {
		d.To = strings.Split(to, ",")
	}
	return d, nil
}

// DraftsChangedSince returns changed draft rows for the scope.
func (s *Store) DraftsChangedSince(ctx context.Context, scope Scope, since int64) ([]feed.DraftEmail, error) {
	query := `SELECT id, mailbox_id, subject, body, to_addresses, updated_at, deleted
		FROM draft_emails WHERE mailbox_id = ANY($1) AND updated_at >= $2`
	rows, err := s.db.QueryContext(ctx, query, scope.MailboxIDs, since)
	if err != nil {
		return nil, fmt.Errorf("select drafts: %w", err)
	}
	defer rows.Close()

	var result []feed.DraftEmail
	for rows.Next() {
		var d feed.DraftEmail
		var to string
		if err := rows.Scan(&d.ID, &d.MailboxID, &d.Subject, &d.Body, &to, &d.UpdatedAt, &d.Deleted); err != nil {
			return nil, err
		}
		if to != "" {
			d.To = strings.Split(to, ",")
		}
		result = append(result, d)
	}
	return result, rows.Err()
}
