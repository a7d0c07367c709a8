package repo

import (
	"context"
	"fmt"

	"github.com/maildrift/maildrift/internal/feed"
)

// UpsertMailbox inserts or overwrites a mailbox row by id.
func (s *Store) UpsertMailbox(ctx context.Context, m *feed.Mailbox) error {
	query := `
		INSERT INTO mailboxes (id, address, display_name, default_alias_id,
			storage_used_bytes, storage_quota_bytes, updated_at, deleted)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			address = EXCLUDED.address,
			display_name = EXCLUDED.display_name,
			default_alias_id = EXCLUDED.default_alias_id,
			storage_used_bytes = EXCLUDED.storage_used_bytes,
			storage_quota_bytes = EXCLUDED.storage_quota_bytes,
			updated_at = EXCLUDED.updated_at,
			deleted = EXCLUDED.deleted
	`
	_, err := s.db.ExecContext(ctx, query,
		m.ID, m.Address, m.DisplayName, m.DefaultAliasID,
		m.StorageUsedBytes, m.StorageQuotaBytes, m.UpdatedAt, m.Deleted)
	if err != nil {
		return fmt.Errorf("upsert mailbox: %w", err)
	}
	return nil
}

// GetMailbox returns one mailbox row, tombstoned or not.
func (s *Store) GetMailbox(ctx context.Context, id string) (*feed.Mailbox, error) {
	query := `SELECT id, address, display_name, default_alias_id,
		storage_used_bytes, storage_quota_bytes, updated_at, deleted
		FROM mailboxes WHERE id = $1`
	m := &feed.Mailbox{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&m.ID, &m.Address, &m.DisplayName, &m.DefaultAliasID,
		&m.StorageUsedBytes, &m.StorageQuotaBytes, &m.UpdatedAt, &m.Deleted)
	if err != nil {
		return nil, wrapNotFound(err, "mailbox")
	}
	m.MailboxID = m.ID
	return m, nil
}

// MailboxesChangedSince returns every in-scope mailbox row with
// updated_at >= since, tombstones included.
func (s *Store) MailboxesChangedSince(ctx context.Context, scope Scope, since int64) ([]feed.Mailbox, error) {
	query := `SELECT id, address, display_name, default_alias_id,
		storage_used_bytes, storage_quota_bytes, updated_at, deleted
		FROM mailboxes WHERE id = ANY($1) AND updated_at >= $2`
	rows, err := s.db.QueryContext(ctx, query, scope.MailboxIDs, since)
	if err != nil {
		return nil, fmt.Errorf("select mailboxes: %w", err)
	}
	defer rows.Close()

	var result []feed.Mailbox
	for rows.Next() {
		var m feed.Mailbox
		if err := rows.Scan(&m.ID, &m.Address, &m.DisplayName, &m.DefaultAliasID,
			&m.StorageUsedBytes, &m.StorageQuotaBytes, &m.UpdatedAt, &m.Deleted); err != nil {
			return nil, err
		}
		m.MailboxID = m.ID
		result = append(result, m)
	}
	return result, rows.Err()
}

// AddMailboxStorageUsed adjusts the derived storage counter and returns the
// updated mailbox row so mutations can push it back to the client.
func (s *Store) AddMailboxStorageUsed(ctx context.Context, id string, deltaBytes, now int64) (*feed.Mailbox, error) {
	query := `UPDATE mailboxes
		SET storage_used_bytes = GREATEST(storage_used_bytes + $2, 0), updated_at = $3
		WHERE id = $1`
	if _, err := s.db.ExecContext(ctx, query, id, deltaBytes, now); err != nil {
		return nil, fmt.Errorf("update mailbox storage: %w", err)
	}
	return s.GetMailbox(ctx, id)
}

// UpsertMailboxUser links a user to a mailbox.
func (s *Store) UpsertMailboxUser(ctx context.Context, mu *feed.MailboxUser) error {
	query := `
		INSERT INTO mailbox_users (id, mailbox_id, user_id, role, updated_at, deleted)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			role = EXCLUDED.role,
			updated_at = EXCLUDED.updated_at,
			deleted = EXCLUDED.deleted
	`
	_, err := s.db.ExecContext(ctx, query, mu.ID, mu.MailboxID, mu.UserID, mu.Role, mu.UpdatedAt, mu.Deleted)
	if err != nil {
		return fmt.Errorf("upsert mailbox user: %w", err)
	}
	return nil
}

// MailboxIDsForUser resolves the mailbox scope of a user: every live
// mailbox_users link. This is the query the feed compiler and every
// mutation's ownership check start from.
func (s *Store) MailboxIDsForUser(ctx context.Context, userID string) ([]string, error) {
	query := `SELECT mailbox_id FROM mailbox_users WHERE user_id = $1 AND NOT deleted`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("select mailbox ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// MailboxUsersChangedSince returns changed mailbox-user links for the scope.
func (s *Store) MailboxUsersChangedSince(ctx context.Context, scope Scope, since int64) ([]feed.MailboxUser, error) {
	query := `SELECT id, mailbox_id, user_id, role, updated_at, deleted
		FROM mailbox_users WHERE user_id = $1 AND updated_at >= $2`
	rows, err := s.db.QueryContext(ctx, query, scope.UserID, since)
	if err != nil {
		return nil, fmt.Errorf("select mailbox users: %w", err)
	}
	defer rows.Close()

	var result []feed.MailboxUser
	for rows.Next() {
		var mu feed.MailboxUser
		if err := rows.Scan(&mu.ID, &mu.MailboxID, &mu.UserID, &mu.Role, &mu.UpdatedAt, &mu.Deleted); err != nil {
			return nil, err
		}
		result = append(result, mu)
	}
	return result, rows.Err()
}
