package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/maildrift/maildrift/internal/common"
	"github.com/maildrift/maildrift/internal/dbx"
	"github.com/maildrift/maildrift/internal/feed"
	"github.com/maildrift/maildrift/internal/logging"
	"github.com/maildrift/maildrift/internal/server/auth"
	"github.com/maildrift/maildrift/internal/server/repo"
)

const defaultStorageQuotaBytes = 1 << 30 // 1 GiB

// TokenPair is what a successful login or refresh hands back.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// UserService owns registration, login and refresh-token rotation. Refresh
// tokens are single use: every rotation overwrites the session row's hash, so
// a replayed old token no longer matches and is rejected.
type UserService struct {
	db              *sql.DB
	logger          logging.Logger
	secretKey       []byte
	accessValidity  time.Duration
	refreshValidity time.Duration
	now             func() int64
}

func NewUserService(db *sql.DB, logger logging.Logger, secretKey []byte, accessValidity, refreshValidity time.Duration) *UserService {
	return &UserService{
		db:              db,
		logger:          logger.With("module", "user_service"),
		secretKey:       secretKey,
		accessValidity:  accessValidity,
		refreshValidity: refreshValidity,
		now:             func() int64 { return time.Now().UTC().UnixMilli() },
	}
}

// Register creates a user plus their bootstrap mailbox: the mailbox row, a
// default alias matching the login address and the owner link. All four rows
// land in one transaction so the first pull always sees a complete account.
func (s *UserService) Register(ctx context.Context, email, password, displayName string) (*feed.User, error) {
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", common.ErrValidation)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	user := &feed.User{
		Meta:        feed.Meta{ID: uuid.NewString(), UpdatedAt: now},
		Email:       email,
		DisplayName: displayName,
	}
	user.UserID = user.ID

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		r := repo.New(tx)

		if _, err := r.GetUserByEmail(ctx, email); err == nil {
			return fmt.Errorf("%w: email %s already registered", common.ErrConflict, email)
		} else if !errors.Is(err, common.ErrNotFound) {
			return err
		}

		if err := r.CreateUser(ctx, &repo.UserRecord{User: *user, PasswordHash: string(hash)}); err != nil {
			return err
		}

		mailbox := &feed.Mailbox{
			Meta:              feed.Meta{ID: uuid.NewString(), UpdatedAt: now},
			Address:           email,
			DisplayName:       displayName,
			StorageQuotaBytes: defaultStorageQuotaBytes,
		}
		mailbox.MailboxID = mailbox.ID

		alias := &feed.MailboxAlias{
			Meta:      feed.Meta{ID: uuid.NewString(), MailboxID: mailbox.ID, UpdatedAt: now},
			Address:   email,
			IsDefault: true,
		}
		mailbox.DefaultAliasID = alias.ID

		if err := r.UpsertMailbox(ctx, mailbox); err != nil {
			return err
		}
		if err := r.UpsertAlias(ctx, alias); err != nil {
			return err
		}
		return r.UpsertMailboxUser(ctx, &feed.MailboxUser{
			Meta: feed.Meta{ID: uuid.NewString(), MailboxID: mailbox.ID, UserID: user.ID, UpdatedAt: now},
			Role: "owner",
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "user registered", "user_id", user.ID)
	return user, nil
}

// Login verifies credentials, opens a new session row and returns a token
// pair. A bad email and a bad password fail identically.
func (s *UserService) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", common.ErrValidation)
	}

	r := repo.New(s.db)
	user, err := r.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrUnauthorized
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, common.ErrUnauthorized
	}

	now := s.now()
	sessionID := uuid.NewString()
	pair, err := s.issuePair(user.ID, sessionID)
	if err != nil {
		return nil, err
	}

	err = r.UpsertSession(ctx, &feed.UserSession{
		Meta:      feed.Meta{ID: sessionID, UserID: user.ID, UpdatedAt: now},
		TokenHash: auth.HashToken(pair.RefreshToken),
		ExpiresAt: now + s.refreshValidity.Milliseconds(),
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "user logged in", "user_id", user.ID, "session_id", sessionID)
	return pair, nil
}

// Refresh rotates a refresh token: the presented token must match the stored
// session hash exactly, then both tokens are reissued and the session row is
// overwritten with the new hash.
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := auth.ParseToken(refreshToken, s.secretKey)
	if err != nil {
		if errors.Is(err, common.ErrTokenExpired) {
			return nil, common.ErrRefreshTokenExpired
		}
		return nil, err
	}
	if claims.SessionID == "" {
		return nil, common.ErrInvalidToken
	}

	var pair *TokenPair
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		r := repo.New(tx)

		sess, err := r.GetSession(ctx, claims.SessionID)
		if err != nil {
			if errors.Is(err, common.ErrNotFound) {
				return common.ErrInvalidToken
			}
			return err
		}
		now := s.now()
		if sess.Deleted || sess.ExpiresAt <= now {
			return common.ErrRefreshTokenExpired
		}
		if sess.TokenHash != auth.HashToken(refreshToken) {
			// Stale or replayed token. Revoke the session outright.
			sess.Tombstone(now)
			if err := r.UpsertSession(ctx, sess); err != nil {
				return err
			}
			s.logger.Warn(ctx, "refresh token replay, session revoked",
				"user_id", sess.UserID, "session_id", sess.ID)
			return common.ErrInvalidToken
		}

		pair, err = s.issuePair(sess.UserID, sess.ID)
		if err != nil {
			return err
		}
		sess.TokenHash = auth.HashToken(pair.RefreshToken)
		sess.ExpiresAt = now + s.refreshValidity.Milliseconds()
		sess.Touch(now)
		return r.UpsertSession(ctx, sess)
	})
	if err != nil {
		return nil, err
	}
	return pair, nil
}

// Logout revokes the session named by the refresh token. Unknown or already
// revoked sessions succeed silently.
func (s *UserService) Logout(ctx context.Context, refreshToken string) error {
	claims, err := auth.ParseToken(refreshToken, s.secretKey)
	if err != nil || claims.SessionID == "" {
		return nil
	}

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		r := repo.New(tx)
		sess, err := r.GetSession(ctx, claims.SessionID)
		if err != nil {
			if errors.Is(err, common.ErrNotFound) {
				return nil
			}
			return err
		}
		if sess.Deleted {
			return nil
		}
		sess.Tombstone(s.now())
		return r.UpsertSession(ctx, sess)
	})
}

// Authenticate validates an access token and returns the user id it names.
func (s *UserService) Authenticate(accessToken string) (string, error) {
	claims, err := auth.ParseToken(accessToken, s.secretKey)
	if err != nil {
		return "", err
	}
	return claims.UserID, nil
}

func (s *UserService) issuePair(userID, sessionID string) (*TokenPair, error) {
	access, err := auth.GenerateAccessToken(userID, s.secretKey, s.accessValidity)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := auth.GenerateRefreshToken(userID, sessionID, s.secretKey, s.refreshValidity)
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
