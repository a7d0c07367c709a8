package repo

import (
	"context"
	"fmt"

	"github.com/maildrift/maildrift/internal/feed"
)

// UserRecord pairs the synchronized user row with the credential hash that
// never leaves the server.
type UserRecord struct {
	feed.User
	PasswordHash string
}

// CreateUser inserts a new user with credentials. A duplicate email fails on
// the unique index and surfaces as a conflict at the service layer.
func (s *Store) CreateUser(ctx context.Context, u *UserRecord) error {
	query := `INSERT INTO users (id, email, display_name, password_hash, updated_at, deleted)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := s.db.ExecContext(ctx, query, u.ID, u.Email, u.DisplayName, u.PasswordHash, u.UpdatedAt, u.Deleted)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUserByEmail returns the credential record for a live user.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*UserRecord, error) {
	query := `SELECT id, email, display_name, password_hash, updated_at, deleted
		FROM users WHERE email = $1 AND NOT deleted`
	u := &UserRecord{}
	err := s.db.QueryRowContext(ctx, query, email).Scan(
		&u.ID, &u.Email, &u.DisplayName, &u.PasswordHash, &u.UpdatedAt, &u.Deleted)
	if err != nil {
		return nil, wrapNotFound(err, "user")
	}
	u.UserID = u.ID
	return u, nil
}

// UsersChangedSince returns the scope user's own row when changed.
func (s *Store) UsersChangedSince(ctx context.Context, scope Scope, since int64) ([]feed.User, error) {
	query := `SELECT id, email, display_name, updated_at, deleted
		FROM users WHERE id = $1 AND updated_at >= $2`
	rows, err := s.db.QueryContext(ctx, query, scope.UserID, since)
	if err != nil {
		return nil, fmt.Errorf("select users: %w", err)
	}
	defer rows.Close()

	var result []feed.User
	for rows.Next() {
		var u feed.User
		if err := rows.Scan(&u.ID, &u.Email, &u.DisplayName, &u.UpdatedAt, &u.Deleted); err != nil {
			return nil, err
		}
		u.UserID = u.ID
		result = append(result, u)
	}
	return result, rows.Err()
}

// UpsertSession inserts or overwrites a session row by id.
func (s *Store) UpsertSession(ctx context.Context, sess *feed.UserSession) error {
	query := `
		INSERT INTO user_sessions (id, user_id, token_hash, expires_at, updated_at, deleted)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			token_hash = EXCLUDED.token_hash,
			expires_at = EXCLUDED.expires_at,
			updated_at = EXCLUDED.updated_at,
			deleted = EXCLUDED.deleted
	`
	_, err := s.db.ExecContext(ctx, query, sess.ID, sess.UserID, sess.TokenHash, sess.ExpiresAt, sess.UpdatedAt, sess.Deleted)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

// GetSession returns one session row, revoked or not.
func (s *Store) GetSession(ctx context.Context, id string) (*feed.UserSession, error) {
	query := `SELECT id, user_id, token_hash, expires_at, updated_at, deleted
		FROM user_sessions WHERE id = $1`
	sess := &feed.UserSession{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&sess.ID, &sess.UserID, &sess.TokenHash, &sess.ExpiresAt, &sess.UpdatedAt, &sess.Deleted)
	if err != nil {
		return nil, wrapNotFound(err, "session")
	}
	return sess, nil
}

// SessionsChangedSince returns changed session rows for the scope user.
func (s *Store) SessionsChangedSince(ctx context.Context, scope Scope, since int64) ([]feed.UserSession, error) {
	query := `SELECT id, user_id, token_hash, expires_at, updated_at, deleted
		FROM user_sessions WHERE user_id = $1 AND updated_at >= $2`
	rows, err := s.db.QueryContext(ctx, query, scope.UserID, since)
	if err != nil {
		return nil, fmt.Errorf("select sessions: %w", err)
	}
	defer rows.Close()

	var result []feed.UserSession
	for rows.Next() {
		var sess feed.UserSession
		if err := rows.Scan(&sess.ID, &sess.UserID, &sess.TokenHash, &sess.ExpiresAt, &sess.UpdatedAt, &sess.Deleted); err != nil {
			return nil, err
		}
		result = append(result, sess)
	}
	return result, rows.Err()
}

// UpsertNotification inserts or overwrites a notification row by id.
func (s *Store) UpsertNotification(ctx context.Context, n *feed.UserNotification) error {
	query := `
		INSERT INTO user_notifications (id, user_id, title, message, read, updated_at, deleted)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			message = EXCLUDED.message,
			read = EXCLUDED.read,
			updated_at = EXCLUDED.updated_at,
			deleted = EXCLUDED.deleted
	`
	_, err := s.db.ExecContext(ctx, query, n.ID, n.UserID, n.Title, n.Message, n.Read, n.UpdatedAt, n.Deleted)
	if err != nil {
		return fmt.Errorf("upsert notification: %w", err)
	}
	return nil
}

// GetNotification returns one notification row.
func (s *Store) GetNotification(ctx context.Context, id string) (*feed.UserNotification, error) {
	query := `SELECT id, user_id, title, message, read, updated_at, deleted
		FROM user_notifications WHERE id = $1`
	n := &feed.UserNotification{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&n.ID, &n.UserID, &n.Title, &n.Message, &n.Read, &n.UpdatedAt, &n.Deleted)
	if err != nil {
		return nil, wrapNotFound(err, "notification")
	}
	return n, nil
}

// NotificationsChangedSince returns changed notification rows for the scope
// user.
func (s *Store) NotificationsChangedSince(ctx context.Context, scope Scope, since int64) ([]feed.UserNotification, error) {
	query := `SELECT id, user_id, title, message, read, updated_at, deleted
		FROM user_notifications WHERE user_id = $1 AND updated_at >= $2`
	rows, err := s.db.QueryContext(ctx, query, scope.UserID, since)
	if err != nil {
		return nil, fmt.Errorf("select notifications: %w", err)
	}
	defer rows.Close()

	var result []feed.UserNotification
	for rows.Next() {
		var n feed.UserNotification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Read, &n.UpdatedAt, &n.Deleted); err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	return result, rows.Err()
}
