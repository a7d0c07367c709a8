package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/maildrift/maildrift/internal/client/outbox"
	"github.com/maildrift/maildrift/internal/client/store"
	"github.com/maildrift/maildrift/internal/common"
	"github.com/maildrift/maildrift/internal/dbx"
	"github.com/maildrift/maildrift/internal/feed"
	"github.com/maildrift/maildrift/internal/logging"
)

// Actions is the write surface the UI calls. Every method applies the edit
// to the local cache and queues the matching outbox entry in one
// transaction, so the screen updates instantly and the intent survives a
// crash. The server catches up on the next flush.
type Actions struct {
	store  *store.Store
	outbox *outbox.Outbox
	logger logging.Logger
	now    func() int64
	kick   func()
}

func NewActions(st *store.Store, ob *outbox.Outbox, logger logging.Logger, kick func()) *Actions {
	if kick == nil {
		kick = func() {}
	}
	return &Actions{
		store:  st,
		outbox: ob,
		logger: logger.With("module", "actions"),
		now:    func() int64 { return time.Now().UTC().UnixMilli() },
		kick:   kick,
	}
}

// apply is the one path every optimistic write takes: load the pre-image,
// let mutate produce the new row, then land the cache write and the outbox
// entry atomically. rows may be nil-valued when the action has no local
// effect beyond the queue entry.
func (a *Actions) apply(ctx context.Context, actionType feed.ActionType, payload any, table, rowID string, newRow *feed.Row) error {
	action, err := feed.NewAction(actionType, payload)
	if err != nil {
		return err
	}

	before, err := a.store.Get(ctx, table, rowID)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return err
	}

	err = a.store.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		if newRow != nil {
			if err := a.store.UpsertLocal(ctx, tx, *newRow); err != nil {
				return err
			}
		}
		return a.outbox.Record(ctx, tx, action, table, rowID, before)
	})
	if err != nil {
		return err
	}

	a.store.Notify(table)
	a.kick()
	return nil
}

func row(table string, meta feed.Meta, entity any) (*feed.Row, error) {
	payload, err := json.Marshal(entity)
	if err != nil {
		return nil, fmt.Errorf("marshal %s row: %w", table, err)
	}
	return &feed.Row{Table: table, Meta: meta, Payload: payload}, nil
}

// SaveDraft creates or updates a draft. Repeated saves of the same draft
// coalesce in the outbox, so offline editing stays bounded.
func (a *Actions) SaveDraft(ctx context.Context, id, mailboxID, subject, body string, to []string) (string, error) {
	if id == "" {
		id = uuid.NewString()
	}
	now := a.now()

	d := feed.DraftEmail{Subject: subject, Body: body, To: to}
	d.Meta = feed.Meta{ID: id, MailboxID: mailboxID, UpdatedAt: now}
	r, err := row(feed.TableDrafts, d.Meta, d)
	if err != nil {
		return "", err
	}

	payload := feed.DraftSavePayload{ID: id, MailboxID: mailboxID, Subject: subject, Body: body, To: to}
	return id, a.apply(ctx, feed.ActionDraftSave, payload, feed.TableDrafts, id, r)
}

// DeleteDraft tombstones a draft locally and queues the delete.
func (a *Actions) DeleteDraft(ctx context.Context, id string) error {
	return a.tombstoneDraft(ctx, feed.ActionDraftDelete, feed.DraftDeletePayload{ID: id}, id)
}

// SendDraft queues the send and tombstones the local draft; the sent email
// and its child rows arrive in the mutation's response bundle.
func (a *Actions) SendDraft(ctx context.Context, draftID string) (string, error) {
	emailID := uuid.NewString()
	payload := feed.DraftSendPayload{DraftID: draftID, EmailID: emailID}
	return emailID, a.tombstoneDraft(ctx, feed.ActionDraftSend, payload, draftID)
}

func (a *Actions) tombstoneDraft(ctx context.Context, actionType feed.ActionType, payload any, id string) error {
	before, err := a.store.Get(ctx, feed.TableDrafts, id)
	if err != nil {
		return err
	}

	var d feed.DraftEmail
	if err := json.Unmarshal(before.Payload, &d); err != nil {
		return fmt.Errorf("decode draft: %w", err)
	}
	d.Tombstone(a.now())
	r, err := row(feed.TableDrafts, d.Meta, d)
	if err != nil {
		return err
	}
	return a.apply(ctx, actionType, payload, feed.TableDrafts, id, r)
}

// SetEmailFlags updates read/starred optimistically. Nil pointers leave the
// corresponding flag untouched.
func (a *Actions) SetEmailFlags(ctx context.Context, id string, read, starred *bool) error {
	e, err := a.getEmail(ctx, id)
	if err != nil {
		return err
	}
	if read != nil {
		e.Read = *read
	}
	if starred != nil {
		e.Starred = *starred
	}
	e.Touch(a.now())
	r, err := row(feed.TableEmails, e.Meta, e)
	if err != nil {
		return err
	}
	payload := feed.EmailSetFlagsPayload{ID: id, Read: read, Starred: starred}
	return a.apply(ctx, feed.ActionEmailSetFlags, payload, feed.TableEmails, id, r)
}

// MoveEmail reassigns the email's category. An empty categoryID clears it.
func (a *Actions) MoveEmail(ctx context.Context, id, categoryID string) error {
	e, err := a.getEmail(ctx, id)
	if err != nil {
		return err
	}
	e.CategoryID = categoryID
	e.Touch(a.now())
	r, err := row(feed.TableEmails, e.Meta, e)
	if err != nil {
		return err
	}
	payload := feed.EmailMovePayload{ID: id, CategoryID: categoryID}
	return a.apply(ctx, feed.ActionEmailMove, payload, feed.TableEmails, id, r)
}

// DeleteEmail tombstones the email locally. The server response bundle also
// carries the child-row tombstones and the corrected storage counter.
func (a *Actions) DeleteEmail(ctx context.Context, id string) error {
	e, err := a.getEmail(ctx, id)
	if err != nil {
		return err
	}
	e.Tombstone(a.now())
	r, err := row(feed.TableEmails, e.Meta, e)
	if err != nil {
		return err
	}
	payload := feed.EmailDeletePayload{ID: id}
	return a.apply(ctx, feed.ActionEmailDelete, payload, feed.TableEmails, id, r)
}

func (a *Actions) getEmail(ctx context.Context, id string) (*feed.Email, error) {
	before, err := a.store.Get(ctx, feed.TableEmails, id)
	if err != nil {
		return nil, err
	}
	e := &feed.Email{}
	if err := json.Unmarshal(before.Payload, e); err != nil {
		return nil, fmt.Errorf("decode email: %w", err)
	}
	return e, nil
}

// AddAlias creates an alias with a client-generated id, which the server
// persists under the same identity.
func (a *Actions) AddAlias(ctx context.Context, mailboxID, address string) (string, error) {
	id := uuid.NewString()
	al := feed.MailboxAlias{Address: address}
	al.Meta = feed.Meta{ID: id, MailboxID: mailboxID, UpdatedAt: a.now()}
	r, err := row(feed.TableAliases, al.Meta, al)
	if err != nil {
		return "", err
	}
	payload := feed.AliasAddPayload{ID: id, MailboxID: mailboxID, Address: address}
	return id, a.apply(ctx, feed.ActionAliasAdd, payload, feed.TableAliases, id, r)
}

// DeleteAlias tombstones an alias locally and queues the delete.
func (a *Actions) DeleteAlias(ctx context.Context, id string) error {
	before, err := a.store.Get(ctx, feed.TableAliases, id)
	if err != nil {
		return err
	}
	var al feed.MailboxAlias
	if err := json.Unmarshal(before.Payload, &al); err != nil {
		return fmt.Errorf("decode alias: %w", err)
	}
	al.Tombstone(a.now())
	r, err := row(feed.TableAliases, al.Meta, al)
	if err != nil {
		return err
	}
	return a.apply(ctx, feed.ActionAliasDelete, feed.AliasDeletePayload{ID: id}, feed.TableAliases, id, r)
}

// SetDefaultAlias queues the default switch. The mailbox and both alias
// rows come back in the response bundle, so no local guesswork is needed
// beyond flagging the chosen alias.
func (a *Actions) SetDefaultAlias(ctx context.Context, mailboxID, aliasID string) error {
	before, err := a.store.Get(ctx, feed.TableAliases, aliasID)
	if err != nil {
		return err
	}
	var al feed.MailboxAlias
	if err := json.Unmarshal(before.Payload, &al); err != nil {
		return fmt.Errorf("decode alias: %w", err)
	}
	al.IsDefault = true
	al.Touch(a.now())
	r, err := row(feed.TableAliases, al.Meta, al)
	if err != nil {
		return err
	}
	payload := feed.AliasSetDefaultPayload{MailboxID: mailboxID, AliasID: aliasID}
	return a.apply(ctx, feed.ActionAliasSetDefault, payload, feed.TableAliases, aliasID, r)
}

// SaveCategory creates or renames a category.
func (a *Actions) SaveCategory(ctx context.Context, id, mailboxID, name, color string) (string, error) {
	if id == "" {
		id = uuid.NewString()
	}
	c := feed.MailboxCategory{Name: name, Color: color}
	c.Meta = feed.Meta{ID: id, MailboxID: mailboxID, UpdatedAt: a.now()}
	r, err := row(feed.TableCategories, c.Meta, c)
	if err != nil {
		return "", err
	}
	payload := feed.CategorySavePayload{ID: id, MailboxID: mailboxID, Name: name, Color: color}
	return id, a.apply(ctx, feed.ActionCategorySave, payload, feed.TableCategories, id, r)
}

// DeleteCategory tombstones a category locally and queues the delete.
func (a *Actions) DeleteCategory(ctx context.Context, id string) error {
	before, err := a.store.Get(ctx, feed.TableCategories, id)
	if err != nil {
		return err
	}
	var c feed.MailboxCategory
	if err := json.Unmarshal(before.Payload, &c); err != nil {
		return fmt.Errorf("decode category: %w", err)
	}
	c.Tombstone(a.now())
	r, err := row(feed.TableCategories, c.Meta, c)
	if err != nil {
		return err
	}
	return a.apply(ctx, feed.ActionCategoryDelete, feed.CategoryDeletePayload{ID: id}, feed.TableCategories, id, r)
}

// CreateTempAlias creates a short-lived alias with a client-generated id.
func (a *Actions) CreateTempAlias(ctx context.Context, mailboxID, address string, expiresAt int64) (string, error) {
	id := uuid.NewString()
	ta := feed.TempAlias{Address: address, ExpiresAt: expiresAt}
	ta.Meta = feed.Meta{ID: id, MailboxID: mailboxID, UpdatedAt: a.now()}
	r, err := row(feed.TableTempAliases, ta.Meta, ta)
	if err != nil {
		return "", err
	}
	payload := feed.TempAliasCreatePayload{ID: id, MailboxID: mailboxID, Address: address, ExpiresAt: expiresAt}
	return id, a.apply(ctx, feed.ActionTempAliasCreate, payload, feed.TableTempAliases, id, r)
}

// DeleteTempAlias tombstones a temp alias locally and queues the delete.
func (a *Actions) DeleteTempAlias(ctx context.Context, id string) error {
	before, err := a.store.Get(ctx, feed.TableTempAliases, id)
	if err != nil {
		return err
	}
	var ta feed.TempAlias
	if err := json.Unmarshal(before.Payload, &ta); err != nil {
		return fmt.Errorf("decode temp alias: %w", err)
	}
	ta.Tombstone(a.now())
	r, err := row(feed.TableTempAliases, ta.Meta, ta)
	if err != nil {
		return err
	}
	return a.apply(ctx, feed.ActionTempAliasDelete, feed.TempAliasDeletePayload{ID: id}, feed.TableTempAliases, id, r)
}

// AddDomain registers a custom domain with a client-generated id.
func (a *Actions) AddDomain(ctx context.Context, mailboxID, domain string) (string, error) {
	id := uuid.NewString()
	d := feed.MailboxCustomDomain{Domain: domain}
	d.Meta = feed.Meta{ID: id, MailboxID: mailboxID, UpdatedAt: a.now()}
	r, err := row(feed.TableCustomDomains, d.Meta, d)
	if err != nil {
		return "", err
	}
	payload := feed.DomainAddPayload{ID: id, MailboxID: mailboxID, Domain: domain}
	return id, a.apply(ctx, feed.ActionDomainAdd, payload, feed.TableCustomDomains, id, r)
}

// DeleteDomain tombstones a custom domain locally and queues the delete.
func (a *Actions) DeleteDomain(ctx context.Context, id string) error {
	before, err := a.store.Get(ctx, feed.TableCustomDomains, id)
	if err != nil {
		return err
	}
	var d feed.MailboxCustomDomain
	if err := json.Unmarshal(before.Payload, &d); err != nil {
		return fmt.Errorf("decode custom domain: %w", err)
	}
	d.Tombstone(a.now())
	r, err := row(feed.TableCustomDomains, d.Meta, d)
	if err != nil {
		return err
	}
	return a.apply(ctx, feed.ActionDomainDelete, feed.DomainDeletePayload{ID: id}, feed.TableCustomDomains, id, r)
}

// MarkNotificationRead flags a notification as read.
func (a *Actions) MarkNotificationRead(ctx context.Context, id string) error {
	before, err := a.store.Get(ctx, feed.TableNotifications, id)
	if err != nil {
		return err
	}
	var n feed.UserNotification
	if err := json.Unmarshal(before.Payload, &n); err != nil {
		return fmt.Errorf("decode notification: %w", err)
	}
	n.Read = true
	n.Touch(a.now())
	r, err := row(feed.TableNotifications, n.Meta, n)
	if err != nil {
		return err
	}
	payload := feed.NotificationMarkReadPayload{ID: id}
	return a.apply(ctx, feed.ActionNotificationMarkRead, payload, feed.TableNotifications, id, r)
}

// RenameMailbox updates the display name.
func (a *Actions) RenameMailbox(ctx context.Context, mailboxID, displayName string) error {
	before, err := a.store.Get(ctx, feed.TableMailboxes, mailboxID)
	if err != nil {
		return err
	}
	var m feed.Mailbox
	if err := json.Unmarshal(before.Payload, &m); err != nil {
		return fmt.Errorf("decode mailbox: %w", err)
	}
	m.DisplayName = displayName
	m.Touch(a.now())
	r, err := row(feed.TableMailboxes, m.Meta, m)
	if err != nil {
		return err
	}
	payload := feed.MailboxRenamePayload{MailboxID: mailboxID, DisplayName: displayName}
	return a.apply(ctx, feed.ActionMailboxRename, payload, feed.TableMailboxes, mailboxID, r)
}
