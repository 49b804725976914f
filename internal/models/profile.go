package models

import (
	"time"
)

// SubscriptionTier identifies a billing plan.
type SubscriptionTier string

const (
	TierFree         SubscriptionTier = "free"
	TierProfessional SubscriptionTier = "professional"
	TierEnterprise   SubscriptionTier = "enterprise"
)

// UsageType identifies a metered feature.
type UsageType string

const (
	UsageKeywordsAnalyzed   UsageType = "keywordsAnalyzed"
	UsageContentGenerated   UsageType = "contentGenerated"
	UsageAttributionQueries UsageType = "attributionQueries"
)

// AllUsageTypes lists every metered feature, in a stable order.
var AllUsageTypes = []UsageType{
	UsageKeywordsAnalyzed,
	UsageContentGenerated,
	UsageAttributionQueries,
}

const (
	// Unlimited is the sentinel limit for tiers without a cap.
	Unlimited = -1
	// FounderLimit is the effective limit applied to allowlisted founder accounts.
	FounderLimit = 999999
)

// UserProfile is the single shared mutable resource of a session. Components
// mutate the in-memory copy; only the auth backend persists it.
type UserProfile struct {
	ID               string            `json:"id"`
	Email            string            `json:"email"`
	FirstName        string            `json:"first_name,omitempty"`
	LastName         string            `json:"last_name,omitempty"`
	Company          string            `json:"company,omitempty"`
	Industry         string            `json:"industry,omitempty"`
	WebsiteURL       string            `json:"website_url,omitempty"`
	SubscriptionTier SubscriptionTier  `json:"subscription_tier"`
	MonthlyUsage     map[UsageType]int `json:"monthly_usage"`
	UsageLimits      map[UsageType]int `json:"usage_limits"`
	LastReset        time.Time         `json:"last_reset"`
	CreatedAt        time.Time         `json:"created_at"`
	LastActivity     time.Time         `json:"last_activity"`
}

// Usage returns the current count for a usage type; absent types count as 0.
func (p *UserProfile) Usage(t UsageType) int {
	if p.MonthlyUsage == nil {
		return 0
	}
	return p.MonthlyUsage[t]
}

// Limit returns the cap for a usage type, falling back to the tier defaults
// when the profile carries no explicit limit.
func (p *UserProfile) Limit(t UsageType) int {
	if p.UsageLimits != nil {
		if limit, ok := p.UsageLimits[t]; ok {
			return limit
		}
	}
	return LimitsForTier(p.SubscriptionTier)[t]
}

// LimitsForTier returns the per-feature monthly caps for a tier.
func LimitsForTier(tier SubscriptionTier) map[UsageType]int {
	switch tier {
	case TierProfessional:
		return map[UsageType]int{
			UsageKeywordsAnalyzed:   1000,
			UsageContentGenerated:   200,
			UsageAttributionQueries: 500,
		}
	case TierEnterprise:
		return map[UsageType]int{
			UsageKeywordsAnalyzed:   Unlimited,
			UsageContentGenerated:   Unlimited,
			UsageAttributionQueries: Unlimited,
		}
	default:
		return map[UsageType]int{
			UsageKeywordsAnalyzed:   100,
			UsageContentGenerated:   20,
			UsageAttributionQueries: 50,
		}
	}
}

// NextTier returns the recommended upgrade from the given tier. The second
// return is false when there is nothing above the current tier.
func NextTier(tier SubscriptionTier) (SubscriptionTier, bool) {
	switch tier {
	case TierFree:
		return TierProfessional, true
	case TierProfessional:
		return TierEnterprise, true
	default:
		return tier, false
	}
}

// ValidUsageType reports whether s names a known metered feature.
func ValidUsageType(s string) (UsageType, bool) {
	for _, t := range AllUsageTypes {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}
