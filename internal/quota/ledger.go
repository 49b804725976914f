package quota

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/marketlens/marketlens/internal/auth"
	"github.com/marketlens/marketlens/internal/models"
)

// Status is the result of a limit check.
type Status struct {
	Allowed    bool    `json:"allowed"`
	Current    int     `json:"current"`
	Limit      int     `json:"limit"`
	Remaining  int     `json:"remaining"`
	Percentage float64 `json:"percentage"`
}

// Ledger maintains per-feature monthly usage for the signed-in profile.
// Counters change only through the auth context's update path, which
// replaces the published profile instead of mutating it, so concurrent
// readers never observe a half-written map. The ledger's own mutex
// serializes check/increment/reset sequences against each other.
type Ledger struct {
	auth     *auth.Context
	founders map[string]struct{}
	logger   *slog.Logger
	now      func() time.Time

	mu sync.Mutex
}

func NewLedger(authCtx *auth.Context, founderEmails []string, logger *slog.Logger) *Ledger {
	founders := make(map[string]struct{}, len(founderEmails))
	for _, email := range founderEmails {
		founders[strings.ToLower(email)] = struct{}{}
	}
	return &Ledger{
		auth:     authCtx,
		founders: founders,
		logger:   logger,
		now:      time.Now,
	}
}

// IsFounder reports whether the email is on the founder allowlist. The
// override is evaluated before any limit arithmetic and ignores the stored
// tier.
func (l *Ledger) IsFounder(email string) bool {
	_, ok := l.founders[strings.ToLower(email)]
	return ok
}

// CheckLimit reports whether the profile may spend one more unit of the
// usage type. It rolls the monthly period over first when needed.
func (l *Ledger) CheckLimit(ctx context.Context, usageType models.UsageType) Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.check(ctx, usageType)
}

func (l *Ledger) check(ctx context.Context, usageType models.UsageType) Status {
	profile := l.auth.Current()
	if profile == nil {
		return Status{Allowed: true, Limit: models.Unlimited}
	}

	if l.rolledOver(profile) {
		l.logger.Info("monthly usage period rolled over", "previous_reset", profile.LastReset)
		l.reset(ctx)
		profile = l.auth.Current()
		if profile == nil {
			return Status{Allowed: true, Limit: models.Unlimited}
		}
	}

	current := profile.Usage(usageType)
	limit := profile.Limit(usageType)
	if l.IsFounder(profile.Email) {
		limit = models.FounderLimit
	}

	if limit == models.Unlimited {
		return Status{Allowed: true, Current: current, Limit: limit, Remaining: models.Unlimited}
	}

	remaining := limit - current
	if remaining < 0 {
		remaining = 0
	}
	var pct float64
	if limit > 0 {
		pct = float64(current) / float64(limit) * 100
	}
	return Status{
		Allowed:    current < limit,
		Current:    current,
		Limit:      limit,
		Remaining:  remaining,
		Percentage: pct,
	}
}

// IncrementUsage adds amount to the counter and persists the profile
// through the auth context. Persistence failure is logged and reported
// with a false return, not fatal.
func (l *Ledger) IncrementUsage(ctx context.Context, usageType models.UsageType, amount int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	profile := l.auth.Current()
	if profile == nil {
		return false
	}
	if amount <= 0 {
		amount = 1
	}

	next := profile.Usage(usageType) + amount
	_, err := l.auth.UpdateProfile(ctx, auth.ProfilePatch{
		MonthlyUsage: map[models.UsageType]int{usageType: next},
	})
	if err != nil {
		l.logger.Error("failed to persist usage increment", "error", err, "usage_type", usageType)
		return false
	}
	return true
}

// ResetMonthlyUsage zeroes all counters and advances the reset timestamp.
// Calling it again within the same month is a no-op on already-zero counts.
func (l *Ledger) ResetMonthlyUsage(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reset(ctx)
}

func (l *Ledger) reset(ctx context.Context) {
	if l.auth.Current() == nil {
		return
	}
	now := l.now()
	zeroed := make(map[models.UsageType]int, len(models.AllUsageTypes))
	for _, t := range models.AllUsageTypes {
		zeroed[t] = 0
	}

	_, err := l.auth.UpdateProfile(ctx, auth.ProfilePatch{
		MonthlyUsage: zeroed,
		LastReset:    &now,
	})
	if err != nil {
		l.logger.Error("failed to persist monthly reset", "error", err)
	}
}

// rolledOver reports whether the stored month or year differs from the
// wall clock.
func (l *Ledger) rolledOver(profile *models.UserProfile) bool {
	last := profile.LastReset
	if last.IsZero() {
		return false
	}
	now := l.now()
	return last.Year() != now.Year() || last.Month() != now.Month()
}
