package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/marketlens/marketlens/internal/localstore"
	"github.com/marketlens/marketlens/internal/models"
)

// Keys in the local store. The account record survives logout; the session
// record and activity marker are cleared by it.
const (
	keyAccount  = "account"
	keySession  = "session"
	keyActivity = "last_activity"
)

// sessionTTL bounds a non-remembered local session.
const sessionTTL = 24 * time.Hour

// LocalBackend is the demo fallback used when no remote store is configured.
// It holds a single account in the obfuscated file store.
//
// Login matches on email only. No password is verified in local mode; this
// mirrors the observed fallback behavior and must not ship as a production
// auth path.
type LocalBackend struct {
	store   *localstore.Store
	logger  *slog.Logger
	current *models.UserProfile
}

func NewLocalBackend(store *localstore.Store, logger *slog.Logger) *LocalBackend {
	return &LocalBackend{store: store, logger: logger}
}

func (b *LocalBackend) Mode() Mode { return ModeLocal }

func (b *LocalBackend) Current() *models.UserProfile { return b.current }

func (b *LocalBackend) Signup(ctx context.Context, fields SignupFields) (*models.UserProfile, error) {
	profile := newProfile(uuid.NewString(), fields)
	if err := b.store.Set(keyAccount, profile, 0); err != nil {
		return nil, NewAuthError(CodeUnknown, "failed to store local account", err)
	}
	if err := b.store.Set(keySession, profile, 0); err != nil {
		return nil, NewAuthError(CodeUnknown, "failed to store local session", err)
	}
	b.current = profile
	b.logger.Info("local signup complete", "email", fields.Email, "user_id", profile.ID)
	return profile, nil
}

func (b *LocalBackend) Login(ctx context.Context, email, password string, rememberMe bool) (*models.UserProfile, error) {
	var stored models.UserProfile
	err := b.store.Get(keyAccount, &stored)
	if err != nil {
		if errors.Is(err, localstore.ErrNotFound) {
			return nil, NewAuthError(CodeInvalidCredentials, "no account found for this email", nil)
		}
		return nil, NewAuthError(CodeUnknown, "failed to read local account", err)
	}
	if !strings.EqualFold(stored.Email, email) {
		return nil, NewAuthError(CodeInvalidCredentials, "no account found for this email", nil)
	}

	ttl := time.Duration(0)
	if !rememberMe {
		ttl = sessionTTL
	}
	stored.LastActivity = time.Now()
	if err := b.store.Set(keySession, &stored, ttl); err != nil {
		b.logger.Error("failed to store local session", "error", err)
	}
	b.current = &stored
	b.logger.Info("local login complete", "email", email)
	return &stored, nil
}

func (b *LocalBackend) Logout(ctx context.Context) error {
	b.current = nil
	if err := b.store.Delete(keySession); err != nil {
		return NewAuthError(CodeUnknown, "failed to clear local session", err)
	}
	if err := b.store.Delete(keyActivity); err != nil {
		return NewAuthError(CodeUnknown, "failed to clear activity marker", err)
	}
	b.logger.Info("local logout complete")
	return nil
}

func (b *LocalBackend) LoadProfile(ctx context.Context) (*models.UserProfile, error) {
	var stored models.UserProfile
	err := b.store.Get(keySession, &stored)
	if err != nil {
		if errors.Is(err, localstore.ErrNotFound) {
			return nil, NewAuthError(CodeNoUser, "no active session", nil)
		}
		return nil, NewAuthError(CodeUnknown, "failed to read local session", err)
	}
	b.current = &stored
	return &stored, nil
}

func (b *LocalBackend) UpdateProfile(ctx context.Context, patch ProfilePatch) (*models.UserProfile, error) {
	if b.current == nil {
		return nil, NewAuthError(CodeNoUser, "no authenticated user", nil)
	}
	merged := mergePatch(b.current, patch)
	if err := b.store.Set(keyAccount, merged, 0); err != nil {
		return nil, NewAuthError(CodeUnknown, "failed to persist profile", err)
	}
	if err := b.store.Set(keySession, merged, 0); err != nil {
		return nil, NewAuthError(CodeUnknown, "failed to persist session", err)
	}
	b.current = merged
	return merged, nil
}

func (b *LocalBackend) ResetPassword(ctx context.Context, email string) error {
	return NewAuthError(CodeUnsupportedInDemo, "password reset requires the remote auth service", nil)
}
