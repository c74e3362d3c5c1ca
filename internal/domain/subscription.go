/**
 * @description
 * This file defines the subscription ledger and league domain models.
 * The ledger is the internal source of truth for access decisions; it is kept
 * eventually consistent with the payment provider via provider-driven events.
 */
package domain

import "time"

// SubscriptionStatus enumerates the states a ledger row can be in.
type SubscriptionStatus string

const (
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionCanceled SubscriptionStatus = "canceled"
)

// Subscription represents one row of the subscription ledger.
type Subscription struct {
	ID                     string             `json:"id"`
	UserID                 string             `json:"user_id"`
	LeagueID               string             `json:"league_id"`
	ProviderSubscriptionID string             `json:"provider_subscription_id"`
	Status                 SubscriptionStatus `json:"status"`
	CurrentPeriodEnd       time.Time          `json:"current_period_end"`
	CreatedAt              time.Time          `json:"created_at"`
	UpdatedAt              time.Time          `json:"updated_at"`
}

// League represents a competition whose premium content can be unlocked.
// Leagues are read-only from this service's perspective.
type League struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Country  string `json:"country"`
	IsActive bool   `json:"is_active"`
}

// SubscriptionWithLeague joins a ledger row to its league for listing.
type SubscriptionWithLeague struct {
	Subscription Subscription `json:"subscription"`
	League       League       `json:"league"`
}
