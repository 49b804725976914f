package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/marketlens/marketlens/internal/auth"
	"github.com/marketlens/marketlens/internal/models"
	"github.com/marketlens/marketlens/internal/quota"
	"github.com/marketlens/marketlens/internal/telemetry"
)

// Action is the feature work guarded by the gate.
type Action func(ctx context.Context) error

// QuotaExceededError is returned when a guarded action is denied. The ledger
// itself never errors on an over-limit condition; only the gate does.
type QuotaExceededError struct {
	UsageType       models.UsageType
	Current         int
	Limit           int
	RecommendedTier models.SubscriptionTier
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("monthly limit reached for %s (%d/%d), upgrade to %s",
		e.UsageType, e.Current, e.Limit, e.RecommendedTier)
}

// AsQuotaExceeded extracts a QuotaExceededError from an error chain.
func AsQuotaExceeded(err error) (*QuotaExceededError, bool) {
	var qe *QuotaExceededError
	if errors.As(err, &qe) {
		return qe, true
	}
	return nil, false
}

// Result reports what the gate decided and did.
type Result struct {
	Allowed         bool
	Executed        bool
	Status          quota.Status
	RecommendedTier models.SubscriptionTier
}

// Gate is the single choke point feature actions pass through. Within one
// guarded call the order is fixed: check, action, increment. There is no
// cross-process mutual exclusion; concurrent clients can race past the
// check, which the next check then denies.
type Gate struct {
	auth   *auth.Context
	ledger *quota.Ledger
	events telemetry.Publisher
	logger *slog.Logger
}

func New(authCtx *auth.Context, ledger *quota.Ledger, events telemetry.Publisher, logger *slog.Logger) *Gate {
	return &Gate{auth: authCtx, ledger: ledger, events: events, logger: logger}
}

// Guard runs action if the usage type still has quota. Unauthenticated
// usage is unmetered. The increment happens only after the action succeeds;
// a failed action is never counted.
func (g *Gate) Guard(ctx context.Context, usageType models.UsageType, action Action) (Result, error) {
	profile := g.auth.Current()
	if profile == nil {
		if err := action(ctx); err != nil {
			return Result{Allowed: true}, err
		}
		return Result{Allowed: true, Executed: true}, nil
	}

	status := g.ledger.CheckLimit(ctx, usageType)
	if !status.Allowed {
		recommended, _ := models.NextTier(profile.SubscriptionTier)
		g.logger.Info("usage limit reached",
			"usage_type", usageType, "current", status.Current, "limit", status.Limit,
			"recommended_tier", recommended)
		return Result{Status: status, RecommendedTier: recommended}, &QuotaExceededError{
			UsageType:       usageType,
			Current:         status.Current,
			Limit:           status.Limit,
			RecommendedTier: recommended,
		}
	}

	if err := action(ctx); err != nil {
		return Result{Allowed: true, Status: status}, err
	}

	g.ledger.IncrementUsage(ctx, usageType, 1)
	g.emit(ctx, profile, usageType)
	return Result{Allowed: true, Executed: true, Status: status}, nil
}

func (g *Gate) emit(ctx context.Context, profile *models.UserProfile, usageType models.UsageType) {
	if g.events == nil {
		return
	}
	event := models.UsageEvent{
		ID:         uuid.NewString(),
		UserID:     profile.ID,
		Email:      profile.Email,
		UsageType:  usageType,
		Amount:     1,
		Tier:       profile.SubscriptionTier,
		OccurredAt: time.Now(),
	}
	if err := g.events.Publish(ctx, event); err != nil {
		// Telemetry loss never blocks the feature.
		g.logger.Error("failed to publish usage event", "error", err)
	}
}
