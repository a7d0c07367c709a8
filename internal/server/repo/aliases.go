package repo

import (
	"context"
	"fmt"

	"github.com/maildrift/maildrift/internal/feed"
)

// UpsertAlias inserts or overwrites an alias row by id.
func (s *Store) UpsertAlias(ctx context.Context, a *feed.MailboxAlias) error {
	query := `
		INSERT INTO mailbox_aliases (id, mailbox_id, address, is_default, updated_at, deleted)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			address = EXCLUDED.address,
			is_default = EXCLUDED.is_default,
			updated_at = EXCLUDED.updated_at,
			deleted = EXCLUDED.deleted
	`
	_, err := s.db.ExecContext(ctx, query, a.ID, a.MailboxID, a.Address, a.IsDefault, a.UpdatedAt, a.Deleted)
	if err != nil {
		return fmt.Errorf("upsert alias: %w", err)
	}
	return nil
}

// GetAlias returns one alias row, tombstoned or not.
func (s *Store) GetAlias(ctx context.Context, id string) (*feed.MailboxAlias, error) {
	query := `SELECT id, mailbox_id, address, is_default, updated_at, deleted
		FROM mailbox_aliases WHERE id = $1`
	a := &feed.MailboxAlias{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&a.ID, &a.MailboxID, &a.Address, &a.IsDefault, &a.UpdatedAt, &a.Deleted)
	if err != nil {
		return nil, wrapNotFound(err, "alias")
	}
	return a, nil
}

// AliasAddressInUse reports whether a live alias already claims address.
func (s *Store) AliasAddressInUse(ctx context.Context, address string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM mailbox_aliases WHERE address = $1 AND NOT deleted`, address).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check alias address: %w", err)
	}
	return n > 0, nil
}

// AliasesChangedSince returns changed alias rows for the scope.
func (s *Store) AliasesChangedSince(ctx context.Context, scope Scope, since int64) ([]feed.MailboxAlias, error) {
	query := `SELECT id, mailbox_id, address, is_default, updated_at, deleted
		FROM mailbox_aliases WHERE mailbox_id = ANY($1) AND updated_at >= $2`
	rows, err := s.db.QueryContext(ctx, query, scope.MailboxIDs, since)
	if err != nil {
		return nil, fmt.Errorf("select aliases: %w", err)
	}
	defer rows.Close()

	var result []feed.MailboxAlias
	for rows.Next() {
		var a feed.MailboxAlias
		if err := rows.Scan(&a.ID, &a.MailboxID, &a.Address, &a.IsDefault, &a.UpdatedAt, &a.Deleted); err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

// UpsertCustomDomain inserts or overwrites a custom domain row by id.
func (s *Store) UpsertCustomDomain(ctx context.Context, d *feed.MailboxCustomDomain) error {
	query := `
		INSERT INTO mailbox_custom_domains (id, mailbox_id, domain, verified, updated_at, deleted)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			domain = EXCLUDED.domain,
			verified = EXCLUDED.verified,
			updated_at = EXCLUDED.updated_at,
			deleted = EXCLUDED.deleted
	`
	_, err := s.db.ExecContext(ctx, query, d.ID, d.MailboxID, d.Domain, d.Verified, d.UpdatedAt, d.Deleted)
	if err != nil {
		return fmt.Errorf("upsert custom domain: %w", err)
	}
	return nil
}

// GetCustomDomain returns one custom domain row.
func (s *Store) GetCustomDomain(ctx context.Context, id string) (*feed.MailboxCustomDomain, error) {
	query := `SELECT id, mailbox_id, domain, verified, updated_at, deleted
		FROM mailbox_custom_domains WHERE id = $1`
	d := &feed.MailboxCustomDomain{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&d.ID, &d.MailboxID, &d.Domain, &d.Verified, &d.UpdatedAt, &d.Deleted)
	if err != nil {
		return nil, wrapNotFound(err, "custom domain")
	}
	return d, nil
}

// CustomDomainsChangedSince returns changed custom domain rows for the scope.
func (s *Store) CustomDomainsChangedSince(ctx context.Context, scope Scope, since int64) ([]feed.MailboxCustomDomain, error) {
	query := `SELECT id, mailbox_id, domain, verified, updated_at, deleted
		FROM mailbox_custom_domains WHERE mailbox_id = ANY($1) AND updated_at >= $2`
	rows, err := s.db.QueryContext(ctx, query, scope.MailboxIDs, since)
	if err != nil {
		return nil, fmt.Errorf("select custom domains: %w", err)
	}
	defer rows.Close()

	var result []feed.MailboxCustomDomain
	for rows.Next() {
		var d feed.MailboxCustomDomain
		if err := rows.Scan(&d.ID, &d.MailboxID, &d.Domain, &d.Verified, &d.UpdatedAt, &d.Deleted); err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

// UpsertCategory inserts or overwrites a category row by id.
func (s *Store) UpsertCategory(ctx context.Context, c *feed.MailboxCategory) error {
	query := `
		INSERT INTO mailbox_categories (id, mailbox_id, name, color, updated_at, deleted)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			color = EXCLUDED.color,
			updated_at = EXCLUDED.updated_at,
			deleted = EXCLUDED.deleted
	`
	_, err := s.db.ExecContext(ctx, query, c.ID, c.MailboxID, c.Name, c.Color, c.UpdatedAt, c.Deleted)
	if err != nil {
		return fmt.Errorf("upsert category: %w", err)
	}
	return nil
}

// GetCategory returns one category row.
func (s *Store) GetCategory(ctx context.Context, id string) (*feed.MailboxCategory, error) {
	query := `SELECT id, mailbox_id, name, color, updated_at, deleted
		FROM mailbox_categories WHERE id = $1`
	c := &feed.MailboxCategory{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.MailboxID, &c.Name, &c.Color, &c.UpdatedAt, &c.Deleted)
	if err != nil {
		return nil, wrapNotFound(err, "category")
	}
	return c, nil
}

// CategoriesChangedSince returns changed category rows for the scope.
func (s *Store) CategoriesChangedSince(ctx context.Context, scope Scope, since int64) ([]feed.MailboxCategory, error) {
	query := `SELECT id, mailbox_id, name, color, updated_at, deleted
		FROM mailbox_categories WHERE mailbox_id = ANY($1) AND updated_at >= $2`
	rows, err := s.db.QueryContext(ctx, query, scope.MailboxIDs, since)
	if err != nil {
		return nil, fmt.Errorf("select categories: %w", err)
	}
	defer rows.Close()

	var result []feed.MailboxCategory
	for rows.Next() {
		var c feed.MailboxCategory
		if err := rows.Scan(&c.ID, &c.MailboxID, &c.Name, &c.Color, &c.UpdatedAt, &c.Deleted); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

// UpsertTempAlias inserts or overwrites a temp alias row by id.
func (s *Store) UpsertTempAlias(ctx context.Context, a *feed.TempAlias) error {
	query := `
		INSERT INTO temp_aliases (id, mailbox_id, address, expires_at, updated_at, deleted)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			address = EXCLUDED.address,
			expires_at = EXCLUDED.expires_at,
			updated_at = EXCLUDED.updated_at,
			deleted = EXCLUDED.deleted
	`
	_, err := s.db.ExecContext(ctx, query, a.ID, a.MailboxID, a.Address, a.ExpiresAt, a.UpdatedAt, a.Deleted)
	if err != nil {
		return fmt.Errorf("upsert temp alias: %w", err)
	}
	return nil
}

// GetTempAlias returns one temp alias row.
func (s *Store) GetTempAlias(ctx context.Context, id string) (*feed.TempAlias, error) {
	query := `SELECT id, mailbox_id, address, expires_at, updated_at, deleted
		FROM temp_aliases WHERE id = $1`
	a := &feed.TempAlias{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&a.ID, &a.MailboxID, &a.Address, &a.ExpiresAt, &a.UpdatedAt, &a.Deleted)
	if err != nil {
		return nil, wrapNotFound(err, "temp alias")
	}
	return a, nil
}

// TempAliasesChangedSince returns changed temp alias rows for the scope.
func (s *Store) TempAliasesChangedSince(ctx context.Context, scope Scope, since int64) ([]feed.TempAlias, error) {
	query := `SELECT id, mailbox_id, address, expires_at, updated_at, deleted
		FROM temp_aliases WHERE mailbox_id = ANY($1) AND updated_at >= $2`
	rows, err := s.db.QueryContext(ctx, query, scope.MailboxIDs, since)
	if err != nil {
		return nil, fmt.Errorf("select temp aliases: %w", err)
	}
	defer rows.Close()

	var result []feed.TempAlias
	for rows.Next() {
		var a feed.TempAlias
		if err := rows.Scan(&a.ID, &a.MailboxID, &a.Address, &a.ExpiresAt, &a.UpdatedAt, &a.Deleted); err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

// UpsertMailboxToken inserts or overwrites a token row by id.
func (s *Store) UpsertMailboxToken(ctx context.Context, tk *feed.MailboxToken) error {
	query := `
		INSERT INTO mailbox_tokens (id, mailbox_id, name, token_value, expires_at, updated_at, deleted)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			token_value = EXCLUDED.token_value,
			expires_at = EXCLUDED.expires_at,
			updated_at = EXCLUDED.updated_at,
			deleted = EXCLUDED.deleted
	`
	_, err := s.db.ExecContext(ctx, query, tk.ID, tk.MailboxID, tk.Name, tk.TokenValue, tk.ExpiresAt, tk.UpdatedAt, tk.Deleted)
	if err != nil {
		return fmt.Errorf("upsert mailbox token: %w", err)
	}
	return nil
}

// MailboxTokensChangedSince returns changed token rows for the scope.
func (s *Store) MailboxTokensChangedSince(ctx context.Context, scope Scope, since int64) ([]feed.MailboxToken, error) {
	query := `SELECT id, mailbox_id, name, token_value, expires_at, updated_at, deleted
		FROM mailbox_tokens WHERE mailbox_id = ANY($1) AND updated_at >= $2`
	rows, err := s.db.QueryContext(ctx, query, scope.MailboxIDs, since)
	if err != nil {
		return nil, fmt.Errorf("select mailbox tokens: %w", err)
	}
	defer rows.Close()

	var result []feed.MailboxToken
	for rows.Next() {
		var tk feed.MailboxToken
		if err := rows.Scan(&tk.ID, &tk.MailboxID, &tk.Name, &tk.TokenValue, &tk.ExpiresAt, &tk.UpdatedAt, &tk.Deleted); err != nil {
			return nil, err
		}
		result = append(result, tk)
	}
	return result, rows.Err()
}
