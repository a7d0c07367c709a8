package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/maildrift/maildrift/internal/common"
	"github.com/maildrift/maildrift/internal/dbx"
	"github.com/maildrift/maildrift/internal/feed"
	"github.com/maildrift/maildrift/internal/logging"
	"github.com/maildrift/maildrift/internal/server/repo"
)

const snippetLen = 120

// MutationService validates and applies mutation actions. Every action runs
// inside one transaction: either all of its row writes land or none do. The
// returned bundle holds exactly the rows the action touched so the caller can
// merge them without waiting for the next pull.
type MutationService struct {
	db     *sql.DB
	logger logging.Logger
	now    func() int64
}

func NewMutationService(db *sql.DB, logger logging.Logger) *MutationService {
	return &MutationService{
		db:     db,
		logger: logger.With("module", "mutation_service"),
		now:    func() int64 { return time.Now().UTC().UnixMilli() },
	}
}

// Apply dispatches one action on behalf of userID.
//
// Rows outside the user's mailbox scope are reported as not found rather than
// forbidden, so probing for foreign ids learns nothing. Validation failures
// wrap common.ErrValidation, lost races wrap common.ErrConflict.
func (s *MutationService) Apply(ctx context.Context, userID string, action feed.Action) (*feed.Bundle, error) {
	bundle := &feed.Bundle{}
	now := s.now()

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		r := repo.New(tx)

		mailboxIDs, err := r.MailboxIDsForUser(ctx, userID)
		if err != nil {
			return err
		}

		switch action.Type {
		case feed.ActionAliasAdd:
			return s.aliasAdd(ctx, r, mailboxIDs, action, bundle, now)
		case feed.ActionAliasDelete:
			return s.aliasDelete(ctx, r, mailboxIDs, action, bundle, now)
		case feed.ActionAliasSetDefault:
			return s.aliasSetDefault(ctx, r, mailboxIDs, action, bundle, now)
		case feed.ActionTempAliasCreate:
			return s.tempAliasCreate(ctx, r, mailboxIDs, action, bundle, now)
		case feed.ActionTempAliasDelete:
			return s.tempAliasDelete(ctx, r, mailboxIDs, action, bundle, now)
		case feed.ActionDomainAdd:
			return s.domainAdd(ctx, r, mailboxIDs, action, bundle, now)
		case feed.ActionDomainDelete:
			return s.domainDelete(ctx, r, mailboxIDs, action, bundle, now)
		case feed.ActionCategorySave:
			return s.categorySave(ctx, r, mailboxIDs, action, bundle, now)
		case feed.ActionCategoryDelete:
			return s.categoryDelete(ctx, r, mailboxIDs, action, bundle, now)
		case feed.ActionDraftSave:
			return s.draftSave(ctx, r, mailboxIDs, action, bundle, now)
		case feed.ActionDraftDelete:
			return s.draftDelete(ctx, r, mailboxIDs, action, bundle, now)
		case feed.ActionDraftSend:
			return s.draftSend(ctx, r, mailboxIDs, action, bundle, now)
		case feed.ActionEmailSetFlags:
			return s.emailSetFlags(ctx, r, mailboxIDs, action, bundle, now)
		case feed.ActionEmailMove:
			return s.emailMove(ctx, r, mailboxIDs, action, bundle, now)
		case feed.ActionEmailDelete:
			return s.emailDelete(ctx, r, mailboxIDs, action, bundle, now)
		case feed.ActionNotificationMarkRead:
			return s.notificationMarkRead(ctx, r, userID, action, bundle, now)
		case feed.ActionMailboxRename:
			return s.mailboxRename(ctx, r, mailboxIDs, action, bundle, now)
		default:
			return fmt.Errorf("%w: unknown action type %q", common.ErrValidation, action.Type)
		}
	})
	if err != nil {
		return nil, err
	}
	return bundle, nil
}

func inScope(mailboxIDs []string, mailboxID string) bool {
	return slices.Contains(mailboxIDs, mailboxID)
}

func (s *MutationService) aliasAdd(ctx context.Context, r *repo.Store, mailboxIDs []string, action feed.Action, bundle *feed.Bundle, now int64) error {
	var p feed.AliasAddPayload
	if err := action.Decode(&p); err != nil {
		return err
	}
	if p.ID == "" || p.MailboxID == "" || p.Address == "" {
		return fmt.Errorf("%w: alias id, mailbox id and address are required", common.ErrValidation)
	}
	if !inScope(mailboxIDs, p.MailboxID) {
		return fmt.Errorf("%w: mailbox %s", common.ErrNotFound, p.MailboxID)
	}

	// The client-chosen id is the idempotency key: a retried add after a
	// lost response finds its own row and is reported as applied.
	existing, err := r.GetAlias(ctx, p.ID)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return err
	}
	if existing != nil {
		if existing.MailboxID != p.MailboxID || existing.Address != p.Address {
			return fmt.Errorf("%w: alias id %s already in use", common.ErrConflict, p.ID)
		}
		bundle.Aliases = append(bundle.Aliases, *existing)
		return nil
	}

	inUse, err := r.AliasAddressInUse(ctx, p.Address)
	if err != nil {
		return err
	}
	if inUse {
		return fmt.Errorf("%w: address %s already claimed", common.ErrConflict, p.Address)
	}

	alias := &feed.MailboxAlias{
		Meta:    feed.Meta{ID: p.ID, MailboxID: p.MailboxID, UpdatedAt: now},
		Address: p.Address,
	}
	if err := r.UpsertAlias(ctx, alias); err != nil {
		return err
	}
	bundle.Aliases = append(bundle.Aliases, *alias)
	return nil
}

func (s *MutationService) aliasDelete(ctx context.Context, r *repo.Store, mailboxIDs []string, action feed.Action, bundle *feed.Bundle, now int64) error {
	var p feed.AliasDeletePayload
	if err := action.Decode(&p); err != nil {
		return err
	}
	alias, err := r.GetAlias(ctx, p.ID)
	if err != nil {
		return err
	}
	if !inScope(mailboxIDs, alias.MailboxID) {
		return fmt.Errorf("%w: alias %s", common.ErrNotFound, p.ID)
	}
	if alias.IsDefault {
		return fmt.Errorf("%w: the default alias cannot be deleted", common.ErrValidation)
	}
	alias.Tombstone(now)
	if err := r.UpsertAlias(ctx, alias); err != nil {
		return err
	}
	bundle.Aliases = append(bundle.Aliases, *alias)
	return nil
}

func (s *MutationService) aliasSetDefault(ctx context.Context, r *repo.Store, mailboxIDs []string, action feed.Action, bundle *feed.Bundle, now int64) error {
	var p feed.AliasSetDefaultPayload
	if err := action.Decode(&p); err != nil {
		return err
	}
	if !inScope(mailboxIDs, p.MailboxID) {
		return fmt.Errorf("%w: mailbox %s", common.ErrNotFound, p.MailboxID)
	}
	alias, err := r.GetAlias(ctx, p.AliasID)
	if err != nil {
		return err
	}
	if alias.MailboxID != p.MailboxID || alias.Deleted {
		return fmt.Errorf("%w: alias %s", common.ErrNotFound, p.AliasID)
	}
	mailbox, err := r.GetMailbox(ctx, p.MailboxID)
	if err != nil {
		return err
	}

	if mailbox.DefaultAliasID != "" && mailbox.DefaultAliasID != alias.ID {
		prev, err := r.GetAlias(ctx, mailbox.DefaultAliasID)
		if err != nil {
			return err
		}
		prev.IsDefault = false
		prev.Touch(now)
		if err := r.UpsertAlias(ctx, prev); err != nil {
			return err
		}
		bundle.Aliases = append(bundle.Aliases, *prev)
	}

	alias.IsDefault = true
	alias.Touch(now)
	if err := r.UpsertAlias(ctx, alias); err != nil {
		return err
	}
	bundle.Aliases = append(bundle.Aliases, *alias)

	mailbox.DefaultAliasID = alias.ID
	mailbox.Touch(now)
	if err := r.UpsertMailbox(ctx, mailbox); err != nil {
		return err
	}
	bundle.Mailboxes = append(bundle.Mailboxes, *mailbox)
	return nil
}

func (s *MutationService) tempAliasCreate(ctx context.Context, r *repo.Store, mailboxIDs []string, action feed.Action, bundle *feed.Bundle, now int64) error {
	var p feed.TempAliasCreatePayload
	if err := action.Decode(&p); err != nil {
		return err
	}
	if p.ID == "" || p.MailboxID == "" || p.Address == "" {
		return fmt.Errorf("%w: temp alias id, mailbox id and address are required", common.ErrValidation)
	}
	if p.ExpiresAt <= now {
		return fmt.Errorf("%w: temp alias expiry must be in the future", common.ErrValidation)
	}
	if !inScope(mailboxIDs, p.MailboxID) {
		return fmt.Errorf("%w: mailbox %s", common.ErrNotFound, p.MailboxID)
	}

	ta := &feed.TempAlias{
		Meta:      feed.Meta{ID: p.ID, MailboxID: p.MailboxID, UpdatedAt: now},
		Address:   p.Address,
		ExpiresAt: p.ExpiresAt,
	}
	if err := r.UpsertTempAlias(ctx, ta); err != nil {
		return err
	}
	bundle.TempAliases = append(bundle.TempAliases, *ta)
	return nil
}

func (s *MutationService) tempAliasDelete(ctx context.Context, r *repo.Store, mailboxIDs []string, action feed.Action, bundle *feed.Bundle, now int64) error {
	var p feed.TempAliasDeletePayload
	if err := action.Decode(&p); err != nil {
		return err
	}
	ta, err := r.GetTempAlias(ctx, p.ID)
	if err != nil {
		return err
	}
	if !inScope(mailboxIDs, ta.MailboxID) {
		return fmt.Errorf("%w: temp alias %s", common.ErrNotFound, p.ID)
	}
	ta.Tombstone(now)
	if err := r.UpsertTempAlias(ctx, ta); err != nil {
		return err
	}
	bundle.TempAliases = append(bundle.TempAliases, *ta)
	return nil
}

func (s *MutationService) domainAdd(ctx context.Context, r *repo.Store, mailboxIDs []string, action feed.Action, bundle *feed.Bundle, now int64) error {
	var p feed.DomainAddPayload
	if err := action.Decode(&p); err != nil {
		return err
	}
	if p.ID == "" || p.MailboxID == "" || p.Domain == "" {
		return fmt.Errorf("%w: domain id, mailbox id and domain are required", common.ErrValidation)
	}
	if !inScope(mailboxIDs, p.MailboxID) {
		return fmt.Errorf("%w: mailbox %s", common.ErrNotFound, p.MailboxID)
	}

	// New domains always start unverified; verification is a separate flow.
	d := &feed.MailboxCustomDomain{
		Meta:   feed.Meta{ID: p.ID, MailboxID: p.MailboxID, UpdatedAt: now},
		Domain: p.Domain,
	}
	if err := r.UpsertCustomDomain(ctx, d); err != nil {
		return err
	}
	bundle.CustomDomains = append(bundle.CustomDomains, *d)
	return nil
}

func (s *MutationService) domainDelete(ctx context.Context, r *repo.Store, mailboxIDs []string, action feed.Action, bundle *feed.Bundle, now int64) error {
	var p feed.DomainDeletePayload
	if err := action.Decode(&p); err != nil {
		return err
	}
	d, err := r.GetCustomDomain(ctx, p.ID)
	if err != nil {
		return err
	}
	if !inScope(mailboxIDs, d.MailboxID) {
		return fmt.Errorf("%w: custom domain %s", common.ErrNotFound, p.ID)
	}
	d.Tombstone(now)
	if err := r.UpsertCustomDomain(ctx, d); err != nil {
		return err
	}
	bundle.CustomDomains = append(bundle.CustomDomains, *d)
	return nil
}

func (s *MutationService) categorySave(ctx context.Context, r *repo.Store, mailboxIDs []string, action feed.Action, bundle *feed.Bundle, now int64) error {
	var p feed.CategorySavePayload
	if err := action.Decode(&p); err != nil {
		return err
	}
	if p.ID == "" || p.MailboxID == "" || p.Name == "" {
		return fmt.Errorf("%w: category id, mailbox id and name are required", common.ErrValidation)
	}
	if !inScope(mailboxIDs, p.MailboxID) {
		return fmt.Errorf("%w: mailbox %s", common.ErrNotFound, p.MailboxID)
	}

	c := &feed.MailboxCategory{
		Meta:  feed.Meta{ID: p.ID, MailboxID: p.MailboxID, UpdatedAt: now},
		Name:  p.Name,
		Color: p.Color,
	}
	if err := r.UpsertCategory(ctx, c); err != nil {
		return err
	}
	bundle.Categories = append(bundle.Categories, *c)
	return nil
}

func (s *MutationService) categoryDelete(ctx context.Context, r *repo.Store, mailboxIDs []string, action feed.Action, bundle *feed.Bundle, now int64) error {
	var p feed.CategoryDeletePayload
	if err := action.Decode(&p); err != nil {
		return err
	}
	c, err := r.GetCategory(ctx, p.ID)
	if err != nil {
		return err
	}
	if !inScope(mailboxIDs, c.MailboxID) {
		return fmt.Errorf("%w: category %s", common.ErrNotFound, p.ID)
	}
	c.Tombstone(now)
	if err := r.UpsertCategory(ctx, c); err != nil {
		return err
	}
	bundle.Categories = append(bundle.Categories, *c)
	return nil
}

func (s *MutationService) draftSave(ctx context.Context, r *repo.Store, mailboxIDs []string, action feed.Action, bundle *feed.Bundle, now int64) error {
	var p feed.DraftSavePayload
	if err := action.Decode(&p); err != nil {
		return err
	}
	if p.ID == "" || p.MailboxID == "" {
		return fmt.Errorf("%w: draft id and mailbox id are required", common.ErrValidation)
	}
	if !inScope(mailboxIDs, p.MailboxID) {
		return fmt.Errorf("%w: mailbox %s", common.ErrNotFound, p.MailboxID)
	}

	d := &feed.DraftEmail{
		Meta:    feed.Meta{ID: p.ID, MailboxID: p.MailboxID, UpdatedAt: now},
		Subject: p.Subject,
		Body:    p.Body,
		To:      p.To,
	}
	if err := r.UpsertDraft(ctx, d); err != nil {
		return err
	}
	bundle.Drafts = append(bundle.Drafts, *d)
	return nil
}

func (s *MutationService) draftDelete(ctx context.Context, r *repo.Store, mailboxIDs []string, action feed.Action, bundle *feed.Bundle, now int64) error {
	var p feed.DraftDeletePayload
	if err := action.Decode(&p); err != nil {
		return err
	}
	d, err := r.GetDraft(ctx, p.ID)
	if err != nil {
		return err
	}
	if !inScope(mailboxIDs, d.MailboxID) {
		return fmt.Errorf("%w: draft %s", common.ErrNotFound, p.ID)
	}
	d.Tombstone(now)
	if err := r.UpsertDraft(ctx, d); err != nil {
		return err
	}
	bundle.Drafts = append(bundle.Drafts, *d)
	return nil
}

// draftSend materializes a draft into a sent email with sender and recipient
// rows, tombstones the draft and charges the mailbox storage counter.
func (s *MutationService) draftSend(ctx context.Context, r *repo.Store, mailboxIDs []string, action feed.Action, bundle *feed.Bundle, now int64) error {
	var p feed.DraftSendPayload
	if err := action.Decode(&p); err != nil {
		return err
	}
	if p.DraftID == "" || p.EmailID == "" {
		return fmt.Errorf("%w: draft id and email id are required", common.ErrValidation)
	}
	d, err := r.GetDraft(ctx, p.DraftID)
	if err != nil {
		return err
	}
	if !inScope(mailboxIDs, d.MailboxID) {
		return fmt.Errorf("%w: draft %s", common.ErrNotFound, p.DraftID)
	}
	if d.Deleted {
		// A tombstoned draft with the sent email already present means this
		// send was applied and the response was lost. Report it as applied.
		e, err := r.GetEmail(ctx, p.EmailID)
		if err != nil && !errors.Is(err, common.ErrNotFound) {
			return err
		}
		if e != nil && inScope(mailboxIDs, e.MailboxID) {
			bundle.Emails = append(bundle.Emails, *e)
			bundle.Drafts = append(bundle.Drafts, *d)
			return nil
		}
		return fmt.Errorf("%w: draft %s is already gone", common.ErrConflict, p.DraftID)
	}
	if len(d.To) == 0 {
		return fmt.Errorf("%w: draft has no recipients", common.ErrValidation)
	}

	size := int64(len(d.Subject) + len(d.Body))
	email := &feed.Email{
		Meta:       feed.Meta{ID: p.EmailID, MailboxID: d.MailboxID, UpdatedAt: now},
		Subject:    d.Subject,
		Body:       d.Body,
		Snippet:    snippet(d.Body),
		Read:       true,
		SizeBytes:  size,
		ReceivedAt: now,
	}
	if err := r.UpsertEmail(ctx, email); err != nil {
		return err
	}
	bundle.Emails = append(bundle.Emails, *email)

	for _, addr := range d.To {
		rcpt := &feed.EmailRecipient{
			Meta:    feed.Meta{ID: uuid.NewString(), MailboxID: d.MailboxID, UpdatedAt: now},
			EmailID: email.ID,
			Address: addr,
			Kind:    "to",
		}
		if err := r.UpsertEmailRecipient(ctx, rcpt); err != nil {
			return err
		}
		bundle.EmailRecipients = append(bundle.EmailRecipients, *rcpt)
	}

	mailbox, err := r.GetMailbox(ctx, d.MailboxID)
	if err != nil {
		return err
	}
	senderAddr := mailbox.Address
	if mailbox.DefaultAliasID != "" {
		if def, err := r.GetAlias(ctx, mailbox.DefaultAliasID); err == nil && !def.Deleted {
			senderAddr = def.Address
		}
	}
	sender := &feed.EmailSender{
		Meta:        feed.Meta{ID: uuid.NewString(), MailboxID: d.MailboxID, UpdatedAt: now},
		EmailID:     email.ID,
		Address:     senderAddr,
		DisplayName: mailbox.DisplayName,
	}
	if err := r.UpsertEmailSender(ctx, sender); err != nil {
		return err
	}
	bundle.EmailSenders = append(bundle.EmailSenders, *sender)

	d.Tombstone(now)
	if err := r.UpsertDraft(ctx, d); err != nil {
		return err
	}
	bundle.Drafts = append(bundle.Drafts, *d)

	updated, err := r.AddMailboxStorageUsed(ctx, d.MailboxID, size, now)
	if err != nil {
		return err
	}
	s.checkStorage(ctx, updated)
	bundle.Mailboxes = append(bundle.Mailboxes, *updated)
	return nil
}

func (s *MutationService) emailSetFlags(ctx context.Context, r *repo.Store, mailboxIDs []string, action feed.Action, bundle *feed.Bundle, now int64) error {
	var p feed.EmailSetFlagsPayload
	if err := action.Decode(&p); err != nil {
		return err
	}
	e, err := r.GetEmail(ctx, p.ID)
	if err != nil {
		return err
	}
	if !inScope(mailboxIDs, e.MailboxID) || e.Deleted {
		return fmt.Errorf("%w: email %s", common.ErrNotFound, p.ID)
	}
	if p.Read != nil {
		e.Read = *p.Read
	}
	if p.Starred != nil {
		e.Starred = *p.Starred
	}
	e.Touch(now)
	if err := r.UpsertEmail(ctx, e); err != nil {
		return err
	}
	bundle.Emails = append(bundle.Emails, *e)
	return nil
}

func (s *MutationService) emailMove(ctx context.Context, r *repo.Store, mailboxIDs []string, action feed.Action, bundle *feed.Bundle, now int64) error {
	var p feed.EmailMovePayload
	if err := action.Decode(&p); err != nil {
		return err
	}
	e, err := r.GetEmail(ctx, p.ID)
	if err != nil {
		return err
	}
	if !inScope(mailboxIDs, e.MailboxID) || e.Deleted {
		return fmt.Errorf("%w: email %s", common.ErrNotFound, p.ID)
	}
	if p.CategoryID != "" {
		c, err := r.GetCategory(ctx, p.CategoryID)
		if err != nil {
			return err
		}
		if c.Deleted || c.MailboxID != e.MailboxID {
			return fmt.Errorf("%w: category %s", common.ErrNotFound, p.CategoryID)
		}
	}
	e.CategoryID = p.CategoryID
	e.Touch(now)
	if err := r.UpsertEmail(ctx, e); err != nil {
		return err
	}
	bundle.Emails = append(bundle.Emails, *e)
	return nil
}

// emailDelete tombstones the email and all of its live child rows, and
// releases the email's bytes from the mailbox storage counter.
func (s *MutationService) emailDelete(ctx context.Context, r *repo.Store, mailboxIDs []string, action feed.Action, bundle *feed.Bundle, now int64) error {
	var p feed.EmailDeletePayload
	if err := action.Decode(&p); err != nil {
		return err
	}
	e, err := r.GetEmail(ctx, p.ID)
	if err != nil {
		return err
	}
	if !inScope(mailboxIDs, e.MailboxID) {
		return fmt.Errorf("%w: email %s", common.ErrNotFound, p.ID)
	}
	if e.Deleted {
		// Replayed delete, nothing left to do.
		bundle.Emails = append(bundle.Emails, *e)
		return nil
	}
	size := e.SizeBytes

	rcpts, err := r.RecipientsForEmail(ctx, e.ID)
	if err != nil {
		return err
	}
	for i := range rcpts {
		rcpts[i].Tombstone(now)
		if err := r.UpsertEmailRecipient(ctx, &rcpts[i]); err != nil {
			return err
		}
	}
	bundle.EmailRecipients = append(bundle.EmailRecipients, rcpts...)

	senders, err := r.SendersForEmail(ctx, e.ID)
	if err != nil {
		return err
	}
	for i := range senders {
		senders[i].Tombstone(now)
		if err := r.UpsertEmailSender(ctx, &senders[i]); err != nil {
			return err
		}
	}
	bundle.EmailSenders = append(bundle.EmailSenders, senders...)

	atts, err := r.AttachmentsForEmail(ctx, e.ID)
	if err != nil {
		return err
	}
	for i := range atts {
		size += atts[i].SizeBytes
		atts[i].Tombstone(now)
		if err := r.UpsertEmailAttachment(ctx, &atts[i]); err != nil {
			return err
		}
	}
	bundle.EmailAttachments = append(bundle.EmailAttachments, atts...)

	e.Tombstone(now)
	if err := r.UpsertEmail(ctx, e); err != nil {
		return err
	}
	bundle.Emails = append(bundle.Emails, *e)

	updated, err := r.AddMailboxStorageUsed(ctx, e.MailboxID, -size, now)
	if err != nil {
		return err
	}
	s.checkStorage(ctx, updated)
	bundle.Mailboxes = append(bundle.Mailboxes, *updated)
	return nil
}

func (s *MutationService) notificationMarkRead(ctx context.Context, r *repo.Store, userID string, action feed.Action, bundle *feed.Bundle, now int64) error {
	var p feed.NotificationMarkReadPayload
	if err := action.Decode(&p); err != nil {
		return err
	}
	n, err := r.GetNotification(ctx, p.ID)
	if err != nil {
		return err
	}
	if n.UserID != userID || n.Deleted {
		return fmt.Errorf("%w: notification %s", common.ErrNotFound, p.ID)
	}
	n.Read = true
	n.Touch(now)
	if err := r.UpsertNotification(ctx, n); err != nil {
		return err
	}
	bundle.Notifications = append(bundle.Notifications, *n)
	return nil
}

func (s *MutationService) mailboxRename(ctx context.Context, r *repo.Store, mailboxIDs []string, action feed.Action, bundle *feed.Bundle, now int64) error {
	var p feed.MailboxRenamePayload
	if err := action.Decode(&p); err != nil {
		return err
	}
	if p.DisplayName == "" {
		return fmt.Errorf("%w: display name is required", common.ErrValidation)
	}
	if !inScope(mailboxIDs, p.MailboxID) {
		return fmt.Errorf("%w: mailbox %s", common.ErrNotFound, p.MailboxID)
	}
	m, err := r.GetMailbox(ctx, p.MailboxID)
	if err != nil {
		return err
	}
	m.DisplayName = p.DisplayName
	m.Touch(now)
	if err := r.UpsertMailbox(ctx, m); err != nil {
		return err
	}
	bundle.Mailboxes = append(bundle.Mailboxes, *m)
	return nil
}

// checkStorage logs when the derived usage counter drifts past the quota.
// The counter is advisory and clamped at zero, so drift is observable but
// never fatal.
func (s *MutationService) checkStorage(ctx context.Context, m *feed.Mailbox) {
	if m.StorageQuotaBytes > 0 && m.StorageUsedBytes > m.StorageQuotaBytes {
		s.logger.Warn(ctx, "mailbox over storage quota",
			"mailbox_id", m.ID,
			"used_bytes", m.StorageUsedBytes,
			"quota_bytes", m.StorageQuotaBytes)
	}
}

func snippet(body string) string {
	if len(body) <= snippetLen {
		return body
	}
	return body[:snippetLen]
}
