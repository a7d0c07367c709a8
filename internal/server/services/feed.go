// Package services holds the server's domain logic: the delta feed compiler,
// the mutation service and the user/session service. Each service owns the
// pool and wraps its writes in dbx.WithTx.
package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/maildrift/maildrift/internal/dbx"
	"github.com/maildrift/maildrift/internal/feed"
	"github.com/maildrift/maildrift/internal/logging"
	"github.com/maildrift/maildrift/internal/server/repo"
)

// FeedService compiles delta bundles: everything in scope that changed at or
// after a client-supplied watermark.
type FeedService struct {
	db     *sql.DB
	logger logging.Logger
	now    func() int64
}

func NewFeedService(db *sql.DB, logger logging.Logger) *FeedService {
	return &FeedService{
		db:     db,
		logger: logger.With("module", "feed_service"),
		now:    func() int64 { return time.Now().UTC().UnixMilli() },
	}
}

// Compile returns every row across the synchronized tables with
// updated_at >= since inside the user's scope, plus a new watermark.
//
// The watermark is the server clock at query start, not the max row
// timestamp: rows written concurrently with the query land before the next
// watermark and are re-sent, which the idempotent client merge absorbs. The
// per-table queries run inside one repeatable-read read-only transaction so
// the batch is a single point-in-time snapshot.
func (s *FeedService) Compile(ctx context.Context, userID string, since int64) (*feed.Bundle, error) {
	watermark := s.now()
	bundle := &feed.Bundle{}

	opts := &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	err := dbx.WithTx(ctx, s.db, opts, func(ctx context.Context, tx dbx.DBTX) error {
		r := repo.New(tx)

		mailboxIDs, err := r.MailboxIDsForUser(ctx, userID)
		if err != nil {
			return err
		}
		scope := repo.Scope{UserID: userID, MailboxIDs: mailboxIDs}

		if bundle.Mailboxes, err = r.MailboxesChangedSince(ctx, scope, since); err != nil {
			return err
		}
		if bundle.Aliases, err = r.AliasesChangedSince(ctx, scope, since); err != nil {
			return err
		}
		if bundle.CustomDomains, err = r.CustomDomainsChangedSince(ctx, scope, since); err != nil {
			return err
		}
		if bundle.Categories, err = r.CategoriesChangedSince(ctx, scope, since); err != nil {
			return err
		}
		if bundle.MailboxUsers, err = r.MailboxUsersChangedSince(ctx, scope, since); err != nil {
			return err
		}
		if bundle.TempAliases, err = r.TempAliasesChangedSince(ctx, scope, since); err != nil {
			return err
		}
		if bundle.Emails, err = r.EmailsChangedSince(ctx, scope, since); err != nil {
			return err
		}
		if bundle.EmailRecipients, err = r.EmailRecipientsChangedSince(ctx, scope, since); err != nil {
			return err
		}
		if bundle.EmailSenders, err = r.EmailSendersChangedSince(ctx, scope, since); err != nil {
			return err
		}
		if bundle.EmailAttachments, err = r.EmailAttachmentsChangedSince(ctx, scope, since); err != nil {
			return err
		}
		if bundle.Drafts, err = r.DraftsChangedSince(ctx, scope, since); err != nil {
			return err
		}
		if bundle.Users, err = r.UsersChangedSince(ctx, scope, since); err != nil {
			return err
		}
		if bundle.UserSessions, err = r.SessionsChangedSince(ctx, scope, since); err != nil {
			return err
		}
		if bundle.MailboxTokens, err = r.MailboxTokensChangedSince(ctx, scope, since); err != nil {
			return err
		}
		if bundle.Notifications, err = r.NotificationsChangedSince(ctx, scope, since); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	bundle.Watermark = watermark
	return bundle, nil
}
