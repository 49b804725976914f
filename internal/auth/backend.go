package auth

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/marketlens/marketlens/internal/config"
	"github.com/marketlens/marketlens/internal/localstore"
	"github.com/marketlens/marketlens/internal/models"
)

// Mode identifies which backend strategy a session runs on. Exactly one mode
// is selected at startup and never mixed mid-session.
type Mode string

const (
	ModeRemote Mode = "remote"
	ModeLocal  Mode = "local"
)

// SignupFields carries the account details collected at registration.
// Field validation is the caller's job.
type SignupFields struct {
	Email      string
	Password   string
	FirstName  string
	LastName   string
	Company    string
	Industry   string
	WebsiteURL string
}

// ProfilePatch is a partial profile update. Nil fields are left untouched;
// usage maps replace only the keys they carry.
type ProfilePatch struct {
	FirstName        *string
	LastName         *string
	Company          *string
	Industry         *string
	WebsiteURL       *string
	SubscriptionTier *models.SubscriptionTier
	MonthlyUsage     map[models.UsageType]int
	UsageLimits      map[models.UsageType]int
	LastReset        *time.Time
}

// Backend abstracts the remote authenticated store and the local fallback
// behind one interface. Signup and Login are distinct entry points; callers
// must never route signup-shaped data through Login.
type Backend interface {
	Mode() Mode
	Signup(ctx context.Context, fields SignupFields) (*models.UserProfile, error)
	Login(ctx context.Context, email, password string, rememberMe bool) (*models.UserProfile, error)
	Logout(ctx context.Context) error
	LoadProfile(ctx context.Context) (*models.UserProfile, error)
	UpdateProfile(ctx context.Context, patch ProfilePatch) (*models.UserProfile, error)
	ResetPassword(ctx context.Context, email string) error
	Current() *models.UserProfile
}

// SelectBackend probes the remote configuration once at startup and returns
// the backend for the rest of the session. A missing or placeholder URL/key,
// or a failed remote initialization, selects local mode.
func SelectBackend(cfg *config.Config, logger *slog.Logger) (Backend, error) {
	if remoteConfigValid(cfg.Supabase) {
		remote, err := NewRemoteBackend(cfg.Supabase, logger)
		if err == nil {
			logger.Info("auth backend selected", "mode", ModeRemote)
			return remote, nil
		}
		logger.Error("remote auth initialization failed, falling back to local mode", "error", err)
	} else {
		logger.Info("remote auth not configured, using local mode")
	}

	store, err := localstore.New(cfg.Local.Dir, cfg.Local.Namespace)
	if err != nil {
		return nil, err
	}
	logger.Info("auth backend selected", "mode", ModeLocal)
	return NewLocalBackend(store, logger), nil
}

func remoteConfigValid(sb config.SupabaseConfig) bool {
	if sb.URL == "" || sb.AnonKey == "" {
		return false
	}
	if strings.Contains(sb.URL, "your-project") || strings.Contains(sb.AnonKey, "your-anon-key") {
		return false
	}
	u, err := url.Parse(sb.URL)
	if err != nil || u.Host == "" {
		return false
	}
	return true
}

// mergePatch applies a patch to a copy of the profile and returns the copy.
func mergePatch(p *models.UserProfile, patch ProfilePatch) *models.UserProfile {
	merged := *p
	merged.MonthlyUsage = copyUsage(p.MonthlyUsage)
	merged.UsageLimits = copyUsage(p.UsageLimits)

	if patch.FirstName != nil {
		merged.FirstName = *patch.FirstName
	}
	if patch.LastName != nil {
		merged.LastName = *patch.LastName
	}
	if patch.Company != nil {
		merged.Company = *patch.Company
	}
	if patch.Industry != nil {
		merged.Industry = *patch.Industry
	}
	if patch.WebsiteURL != nil {
		merged.WebsiteURL = *patch.WebsiteURL
	}
	if patch.SubscriptionTier != nil {
		merged.SubscriptionTier = *patch.SubscriptionTier
		// Upgrades widen limits without touching counts.
		merged.UsageLimits = models.LimitsForTier(*patch.SubscriptionTier)
	}
	for t, n := range patch.MonthlyUsage {
		if merged.MonthlyUsage == nil {
			merged.MonthlyUsage = map[models.UsageType]int{}
		}
		merged.MonthlyUsage[t] = n
	}
	for t, n := range patch.UsageLimits {
		if merged.UsageLimits == nil {
			merged.UsageLimits = map[models.UsageType]int{}
		}
		merged.UsageLimits[t] = n
	}
	if patch.LastReset != nil {
		merged.LastReset = *patch.LastReset
	}
	return &merged
}

func copyUsage(m map[models.UsageType]int) map[models.UsageType]int {
	if m == nil {
		return nil
	}
	out := make(map[models.UsageType]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// newProfile synthesizes a default free-tier profile for a fresh signup.
func newProfile(id string, fields SignupFields) *models.UserProfile {
	now := time.Now()
	return &models.UserProfile{
		ID:               id,
		Email:            fields.Email,
		FirstName:        fields.FirstName,
		LastName:         fields.LastName,
		Company:          fields.Company,
		Industry:         fields.Industry,
		WebsiteURL:       fields.WebsiteURL,
		SubscriptionTier: models.TierFree,
		MonthlyUsage:     map[models.UsageType]int{},
		UsageLimits:      models.LimitsForTier(models.TierFree),
		LastReset:        now,
		CreatedAt:        now,
		LastActivity:     now,
	}
}
