package models

import "time"

// UsageEvent is published to Kafka after a guarded action succeeds and is
// consumed by the worker for conversion tracking. Delivery is telemetry,
// not enforcement.
type UsageEvent struct {
	ID         string           `json:"id"`
	UserID     string           `json:"user_id"`
	Email      string           `json:"email"`
	UsageType  UsageType        `json:"usage_type"`
	Amount     int              `json:"amount"`
	Tier       SubscriptionTier `json:"tier"`
	OccurredAt time.Time        `json:"occurred_at"`
}
