/**
 * @description
 * This file implements the consumer that keeps the subscription ledger
 * consistent with the payment provider. The webhook receiver (a separate
 * service) turns provider webhooks into billing_events messages; this
 * consumer applies each one to the ledger through an idempotent upsert keyed
 * by the provider subscription ID, which absorbs at-least-once delivery.
 *
 * This is also the path by which a subscription row is first created: a
 * completed checkout produces a provider confirmation event, never a
 * synchronous write at checkout-session creation.
 */
package app

import (
	"context"
	"encoding/json"
	"log"

	"github.com/matchpass/access-service/internal/domain"
	"github.com/matchpass/access-service/internal/store"
)

// Routing keys this service consumes from the billing_events exchange.
const (
	RoutingKeySubscriptionActivated = "provider.subscription.activated"
	RoutingKeySubscriptionUpdated   = "provider.subscription.updated"
	RoutingKeySubscriptionCanceled  = "provider.subscription.canceled"
)

// SubscriptionEventConsumer applies provider subscription events to the ledger.
type SubscriptionEventConsumer struct {
	repo store.Repository
}

// NewSubscriptionEventConsumer creates a new consumer over the given repository.
func NewSubscriptionEventConsumer(repo store.Repository) *SubscriptionEventConsumer {
	return &SubscriptionEventConsumer{repo: repo}
}

// HandleDelivery is the rabbitmq binding handler. It returns true to ack.
// Malformed payloads are acked and dropped: requeueing a poison message would
// loop forever, and the provider re-sends state on the next lifecycle change.
func (c *SubscriptionEventConsumer) HandleDelivery(body []byte) bool {
	var event domain.SubscriptionEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Printf("level=warn component=billing_consumer msg=\"dropping malformed event\" err=%v", err)
		return true
	}

	if err := c.processEvent(context.Background(), event); err != nil {
		log.Printf("level=error component=billing_consumer msg=\"failed to apply event; re-queuing\" event_id=%s err=%v", event.EventID, err)
		return false
	}
	return true
}

// processEvent validates and upserts one provider event into the ledger.
func (c *SubscriptionEventConsumer) processEvent(ctx context.Context, event domain.SubscriptionEvent) error {
	if event.ProviderSubscriptionID == "" || event.UserID == "" || event.LeagueID == "" {
		log.Printf("level=warn component=billing_consumer msg=\"dropping event with missing identifiers\" event_id=%s", event.EventID)
		return nil
	}

	status, ok := mapProviderStatus(event.Status)
	if !ok {
		log.Printf("level=warn component=billing_consumer msg=\"dropping event with unknown status\" event_id=%s status=%q", event.EventID, event.Status)
		return nil
	}

	sub, err := c.repo.UpsertSubscriptionByProviderID(ctx, store.UpsertSubscriptionParams{
		ProviderSubscriptionID: event.ProviderSubscriptionID,
		UserID:                 event.UserID,
		LeagueID:               event.LeagueID,
		Status:                 status,
		CurrentPeriodEnd:       event.CurrentPeriodEnd,
	})
	if err != nil {
		return err
	}

	log.Printf("level=info component=billing_consumer msg=\"ledger reconciled\" subscription_id=%s provider_subscription_id=%s status=%s", sub.ID, sub.ProviderSubscriptionID, sub.Status)
	return nil
}

// mapProviderStatus folds provider status values onto the ledger state
// machine. Provider states that still grant access (trialing, past_due grace)
// map to active; terminal states map to canceled.
func mapProviderStatus(providerStatus string) (domain.SubscriptionStatus, bool) {
	switch providerStatus {
	case "active", "trialing", "past_due":
		return domain.SubscriptionActive, true
	case "canceled", "unpaid", "incomplete_expired":
		return domain.SubscriptionCanceled, true
	default:
		return "", false
	}
}
