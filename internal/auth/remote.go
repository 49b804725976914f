package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/supabase-community/gotrue-go"
	"github.com/supabase-community/gotrue-go/types"
	"github.com/supabase-community/postgrest-go"

	"github.com/marketlens/marketlens/internal/config"
	"github.com/marketlens/marketlens/internal/models"
)

const profilesTable = "user_profiles"

// User-metadata keys for the counters the profiles table does not carry.
const (
	metaContentGenerated   = "content_generated_this_month"
	metaAttributionQueries = "attribution_queries_this_month"
)

// RemoteBackend talks to the Supabase auth service and the user_profiles
// table. Construction probes the connection; a probe failure makes the
// caller fall back to local mode.
type RemoteBackend struct {
	auth    gotrue.Client
	authed  gotrue.Client
	pg      *postgrest.Client
	siteURL string
	logger  *slog.Logger
	current *models.UserProfile
	userID  string
}

// extractProjectRef extracts the project reference ID from a Supabase URL,
// e.g. akrqbuajqkirdekonpzy.supabase.co -> akrqbuajqkirdekonpzy.
func extractProjectRef(url string) string {
	url = strings.TrimPrefix(url, "https://")
	url = strings.TrimPrefix(url, "http://")
	parts := strings.Split(url, ".")
	return parts[0]
}

func NewRemoteBackend(cfg config.SupabaseConfig, logger *slog.Logger) (*RemoteBackend, error) {
	projectRef := extractProjectRef(cfg.URL)
	logger.Info("initializing remote auth client", "project_ref", projectRef)

	client := gotrue.New(projectRef, cfg.AnonKey)
	if _, err := client.GetSettings(); err != nil {
		return nil, fmt.Errorf("failed to connect to remote auth service: %w", err)
	}

	restURL := strings.TrimSuffix(cfg.URL, "/") + "/rest/v1"
	pg := postgrest.NewClient(restURL, "", map[string]string{
		"apikey":        cfg.AnonKey,
		"Authorization": "Bearer " + cfg.AnonKey,
	})

	return &RemoteBackend{
		auth:    client,
		pg:      pg,
		siteURL: cfg.SiteURL,
		logger:  logger,
	}, nil
}

func (b *RemoteBackend) Mode() Mode { return ModeRemote }

func (b *RemoteBackend) Current() *models.UserProfile { return b.current }

func (b *RemoteBackend) Signup(ctx context.Context, fields SignupFields) (*models.UserProfile, error) {
	redirect := strings.TrimSuffix(b.siteURL, "/") + "/auth/callback"
	resp, err := b.auth.Signup(types.SignupRequest{
		Email:    fields.Email,
		Password: fields.Password,
		Data: map[string]interface{}{
			"first_name":        fields.FirstName,
			"last_name":         fields.LastName,
			"email_redirect_to": redirect,
		},
	})
	if err != nil {
		return nil, normalizeRemoteErr("signup failed", err)
	}

	profile := newProfile(resp.ID.String(), fields)
	if err := b.upsertRow(profile); err != nil {
		// The auth account exists; the row can be recreated on next load.
		b.logger.Error("failed to store profile row after signup", "error", err, "user_id", profile.ID)
	}
	b.current = profile
	b.userID = profile.ID
	b.logger.Info("remote signup complete", "email", fields.Email, "user_id", profile.ID)
	return profile, nil
}

func (b *RemoteBackend) Login(ctx context.Context, email, password string, rememberMe bool) (*models.UserProfile, error) {
	resp, err := b.auth.SignInWithEmailPassword(email, password)
	if err != nil {
		return nil, NewAuthError(CodeInvalidCredentials, "invalid email or password", err)
	}
	if resp == nil || resp.AccessToken == "" {
		return nil, NewAuthError(CodeInvalidCredentials, "invalid email or password", nil)
	}

	b.authed = b.auth.WithToken(resp.AccessToken)
	b.userID = resp.User.ID.String()

	profile, err := b.LoadProfile(ctx)
	if err != nil {
		return nil, err
	}
	b.logger.Info("remote login complete", "email", email, "user_id", b.userID)
	return profile, nil
}

func (b *RemoteBackend) Logout(ctx context.Context) error {
	var signOutErr error
	if b.authed != nil {
		if err := b.authed.Logout(); err != nil {
			signOutErr = normalizeRemoteErr("remote sign-out failed", err)
			b.logger.Error("remote sign-out failed", "error", err)
		}
	}
	// Session state is dropped even when the remote call fails so no stale
	// session survives.
	b.current = nil
	b.authed = nil
	b.userID = ""
	return signOutErr
}

func (b *RemoteBackend) LoadProfile(ctx context.Context) (*models.UserProfile, error) {
	if b.userID == "" {
		return nil, NewAuthError(CodeNoUser, "no authenticated user", nil)
	}

	data, _, err := b.pg.From(profilesTable).Select("*", "", false).Eq("id", b.userID).Single().Execute()
	if err != nil {
		return nil, normalizeRemoteErr("failed to load profile", err)
	}
	var row models.ProfileRow
	if err := json.Unmarshal(data, &row); err != nil {
		return nil, NewAuthError(CodeUnknown, "malformed profile row", err)
	}

	profile := row.ToProfile()
	b.mergeMetadataCounters(profile)
	b.current = profile
	return profile, nil
}

func (b *RemoteBackend) UpdateProfile(ctx context.Context, patch ProfilePatch) (*models.UserProfile, error) {
	if b.current == nil {
		return nil, NewAuthError(CodeNoUser, "no authenticated user", nil)
	}
	merged := mergePatch(b.current, patch)

	if err := b.updateRow(merged); err != nil {
		return nil, normalizeRemoteErr("failed to persist profile", err)
	}
	if b.authed != nil {
		_, err := b.authed.UpdateUser(types.UpdateUserRequest{
			Data: map[string]interface{}{
				metaContentGenerated:   merged.Usage(models.UsageContentGenerated),
				metaAttributionQueries: merged.Usage(models.UsageAttributionQueries),
			},
		})
		if err != nil {
			b.logger.Error("failed to update usage metadata", "error", err, "user_id", merged.ID)
		}
	}
	b.current = merged
	return merged, nil
}

func (b *RemoteBackend) ResetPassword(ctx context.Context, email string) error {
	if err := b.auth.Recover(types.RecoverRequest{Email: email}); err != nil {
		return normalizeRemoteErr("password reset failed", err)
	}
	b.logger.Info("password reset email requested", "email", email)
	return nil
}

func (b *RemoteBackend) upsertRow(profile *models.UserProfile) error {
	row := models.RowFromProfile(profile)
	_, _, err := b.pg.From(profilesTable).Insert(row, true, "id", "representation", "").Execute()
	return err
}

func (b *RemoteBackend) updateRow(profile *models.UserProfile) error {
	row := models.RowFromProfile(profile)
	_, _, err := b.pg.From(profilesTable).Update(row, "", "").Eq("id", profile.ID).Execute()
	return err
}

// mergeMetadataCounters folds the auth user's metadata counters into the
// profile loaded from the table.
func (b *RemoteBackend) mergeMetadataCounters(profile *models.UserProfile) {
	if b.authed == nil {
		return
	}
	user, err := b.authed.GetUser()
	if err != nil {
		b.logger.Error("failed to read user metadata", "error", err)
		return
	}
	if profile.MonthlyUsage == nil {
		profile.MonthlyUsage = map[models.UsageType]int{}
	}
	if n, ok := metadataInt(user.UserMetadata, metaContentGenerated); ok {
		profile.MonthlyUsage[models.UsageContentGenerated] = n
	}
	if n, ok := metadataInt(user.UserMetadata, metaAttributionQueries); ok {
		profile.MonthlyUsage[models.UsageAttributionQueries] = n
	}
}

func metadataInt(meta map[string]interface{}, key string) (int, bool) {
	if meta == nil {
		return 0, false
	}
	switch v := meta[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	}
	return 0, false
}

// normalizeRemoteErr wraps a remote store failure into an AuthError so raw
// transport errors never cross the adapter boundary.
func normalizeRemoteErr(message string, err error) *AuthError {
	if ae, ok := AsAuthError(err); ok {
		return ae
	}
	return NewAuthError(CodeNetwork, message, err)
}
