package models

import "time"

// ProfileRow mirrors the user_profiles table in the remote store. The table
// only carries the keyword counters; the other metered counters live in the
// auth user's metadata.
type ProfileRow struct {
	ID                    string    `json:"id" db:"id"`
	Email                 string    `json:"email" db:"email"`
	FirstName             string    `json:"first_name" db:"first_name"`
	LastName              string    `json:"last_name" db:"last_name"`
	Company               string    `json:"company" db:"company"`
	Industry              string    `json:"industry" db:"industry"`
	WebsiteURL            string    `json:"website_url" db:"website_url"`
	SubscriptionTier      string    `json:"subscription_tier" db:"subscription_tier"`
	MonthlyKeywordQuota   int       `json:"monthly_keyword_quota" db:"monthly_keyword_quota"`
	KeywordsUsedThisMonth int       `json:"keywords_used_this_month" db:"keywords_used_this_month"`
	QuotaResetDate        time.Time `json:"quota_reset_date" db:"quota_reset_date"`
	CreatedAt             time.Time `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time `json:"updated_at" db:"updated_at"`
}

// ToProfile converts a table row into the in-memory profile shape.
func (r *ProfileRow) ToProfile() *UserProfile {
	tier := SubscriptionTier(r.SubscriptionTier)
	if tier == "" {
		tier = TierFree
	}
	limits := LimitsForTier(tier)
	if r.MonthlyKeywordQuota != 0 {
		limits[UsageKeywordsAnalyzed] = r.MonthlyKeywordQuota
	}
	return &UserProfile{
		ID:               r.ID,
		Email:            r.Email,
		FirstName:        r.FirstName,
		LastName:         r.LastName,
		Company:          r.Company,
		Industry:         r.Industry,
		WebsiteURL:       r.WebsiteURL,
		SubscriptionTier: tier,
		MonthlyUsage: map[UsageType]int{
			UsageKeywordsAnalyzed: r.KeywordsUsedThisMonth,
		},
		UsageLimits: limits,
		LastReset:   r.QuotaResetDate,
		CreatedAt:   r.CreatedAt,
	}
}

// RowFromProfile converts the in-memory profile back into the table shape.
func RowFromProfile(p *UserProfile) *ProfileRow {
	return &ProfileRow{
		ID:                    p.ID,
		Email:                 p.Email,
		FirstName:             p.FirstName,
		LastName:              p.LastName,
		Company:               p.Company,
		Industry:              p.Industry,
		WebsiteURL:            p.WebsiteURL,
		SubscriptionTier:      string(p.SubscriptionTier),
		MonthlyKeywordQuota:   p.Limit(UsageKeywordsAnalyzed),
		KeywordsUsedThisMonth: p.Usage(UsageKeywordsAnalyzed),
		QuotaResetDate:        p.LastReset,
		CreatedAt:             p.CreatedAt,
		UpdatedAt:             time.Now(),
	}
}
