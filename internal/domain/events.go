package domain

import "time"

// SubscriptionEvent is the payload exchanged over the billing_events exchange.
// The webhook receiver publishes one of these for every provider lifecycle
// change; this service also publishes one after a user-initiated cancellation.
// Delivery is at-least-once, so consumers must apply it idempotently, keyed by
// ProviderSubscriptionID.
type SubscriptionEvent struct {
	EventID                string    `json:"event_id"`
	ProviderSubscriptionID string    `json:"provider_subscription_id"`
	UserID                 string    `json:"user_id"`
	LeagueID               string    `json:"league_id"`
	Status                 string    `json:"status"`
	CurrentPeriodEnd       time.Time `json:"current_period_end"`
}
