/**
 * @description
 * This file contains the core business logic of the access-service: signup and
 * login against the credential store, checkout initiation, cancellation kept
 * consistent with the payment provider, and the access gate for league-scoped
 * content. The Service layer orchestrates the repository and the provider
 * client and translates their failures into the caller-facing error kinds.
 */
package app

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/matchpass/access-service/internal/auth"
	"github.com/matchpass/access-service/internal/domain"
	"github.com/matchpass/access-service/internal/store"
	"github.com/matchpass/access-service/pkg/rabbitmq"
	"github.com/matchpass/access-service/pkg/stripeclient"
)

// BillingEventsExchange is the topic exchange carrying subscription lifecycle
// events between the webhook receiver and this service.
const BillingEventsExchange = "billing_events"

// dummyPasswordHash is compared against when login hits an unknown email, so
// the unknown-email and wrong-password paths cost the same.
const dummyPasswordHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// PaymentClient is the interface to the external payment provider. It is
// satisfied by *stripeclient.Client and stubbed in tests.
type PaymentClient interface {
	CreateCheckoutSession(ctx context.Context, params stripeclient.CheckoutSessionParams) (*stripeclient.CheckoutSession, error)
	CancelSubscription(ctx context.Context, providerSubscriptionID string) (*stripeclient.Subscription, error)
}

// CheckoutConfig carries the provider-side configuration checkout needs.
type CheckoutConfig struct {
	PriceID    string
	SuccessURL string
	CancelURL  string
}

// Service provides the business logic for authentication and subscription
// access control. All collaborators are injected; there are no package-level
// singletons.
type Service struct {
	repo     store.Repository
	payments PaymentClient
	tokens   *auth.TokenService
	producer rabbitmq.Publisher
	checkout CheckoutConfig
}

// NewService creates a new Service. producer may be nil when RabbitMQ is
// unavailable; cancellation events are then logged instead of published.
func NewService(repo store.Repository, payments PaymentClient, tokens *auth.TokenService, producer rabbitmq.Publisher, checkout CheckoutConfig) *Service {
	return &Service{
		repo:     repo,
		payments: payments,
		tokens:   tokens,
		producer: producer,
		checkout: checkout,
	}
}

// NormalizeEmail lower-cases and trims an email address. Emails are unique
// case-insensitively, so every lookup and insert goes through this.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Signup creates a user with the given credentials and issues a session
// token. A duplicate email fails with domain.ErrEmailTaken; the uniqueness
// decision is made by the database constraint, not a prior lookup, so
// concurrent signups for the same email cannot both succeed.
func (s *Service) Signup(ctx context.Context, email, password string) (*domain.User, string, error) {
	email = NormalizeEmail(email)

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, "", err
	}

	user, err := s.repo.CreateUser(ctx, email, hash)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return nil, "", domain.ErrEmailTaken
		}
		return nil, "", err
	}

	token, err := s.tokens.Create(user.ID)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// Login verifies the credentials and issues a session token. Unknown email
// and wrong password both return domain.ErrInvalidCredentials, and both paths
// perform one bcrypt comparison.
func (s *Service) Login(ctx context.Context, email, password string) (*domain.User, string, error) {
	user, err := s.repo.FindUserByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			auth.VerifyPassword(password, dummyPasswordHash)
			return nil, "", domain.ErrInvalidCredentials
		}
		return nil, "", err
	}

	if !auth.VerifyPassword(password, user.PasswordHash) {
		return nil, "", domain.ErrInvalidCredentials
	}

	token, err := s.tokens.Create(user.ID)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// CreateCheckout starts a provider-hosted checkout session for a league and
// returns the redirect URL. No ledger row is written here: a subscription
// only materializes when the provider confirms the payment through the
// billing event stream, so abandoned checkouts leave no phantom rows.
func (s *Service) CreateCheckout(ctx context.Context, userID, leagueID string) (string, error) {
	if userID == "" {
		return "", domain.ErrUnauthorized
	}

	league, err := s.repo.FindLeagueByID(ctx, leagueID)
	if err != nil {
		if errors.Is(err, store.ErrLeagueNotFound) {
			return "", domain.ErrNotFound
		}
		return "", err
	}
	if !league.IsActive {
		return "", domain.ErrInvalidState
	}

	user, err := s.repo.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return "", domain.ErrNotFound
		}
		return "", err
	}

	if s.checkout.PriceID == "" {
		return "", domain.ErrInvalidState
	}

	session, err := s.payments.CreateCheckoutSession(ctx, stripeclient.CheckoutSessionParams{
		CustomerEmail: user.Email,
		PriceID:       s.checkout.PriceID,
		SuccessURL:    s.checkout.SuccessURL,
		CancelURL:     s.checkout.CancelURL,
		UserID:        user.ID,
		LeagueID:      league.ID,
	})
	if err != nil {
		log.Printf("level=error component=checkout msg=\"provider session creation failed\" user_id=%s league_id=%s err=%v", userID, leagueID, err)
		return "", domain.ErrExternalFailure
	}
	if session.URL == "" {
		log.Printf("level=error component=checkout msg=\"provider returned session without redirect url\" user_id=%s league_id=%s", userID, leagueID)
		return "", domain.ErrExternalFailure
	}
	return session.URL, nil
}

// CancelSubscription cancels at the provider first and only then updates the
// ledger. A subscription that is missing or owned by someone else fails with
// domain.ErrNotFound; ownership violations are deliberately not reported as a
// distinct error. If the provider call fails the ledger is left untouched and
// the caller must resubmit.
func (s *Service) CancelSubscription(ctx context.Context, userID, subscriptionID string) error {
	if userID == "" {
		return domain.ErrUnauthorized
	}

	sub, err := s.repo.FindSubscriptionByID(ctx, subscriptionID)
	if err != nil {
		if errors.Is(err, store.ErrSubscriptionNotFound) {
			return domain.ErrNotFound
		}
		return err
	}
	if sub.UserID != userID {
		return domain.ErrNotFound
	}

	if _, err := s.payments.CancelSubscription(ctx, sub.ProviderSubscriptionID); err != nil {
		log.Printf("level=error component=cancellation msg=\"provider cancel failed; ledger untouched\" subscription_id=%s err=%v", subscriptionID, err)
		return domain.ErrExternalFailure
	}

	updated, err := s.repo.CancelSubscription(ctx, sub.ID)
	if err != nil {
		// Provider already canceled; the ledger lags until the provider's own
		// canceled event arrives through the billing stream.
		log.Printf("level=error component=cancellation msg=\"ledger update failed after provider cancel\" subscription_id=%s err=%v", subscriptionID, err)
		return err
	}
	if !updated {
		// Lost a double-cancel race or the provider event landed first. Either
		// way the row is already canceled and provider and ledger agree.
		log.Printf("level=info component=cancellation msg=\"subscription already canceled\" subscription_id=%s", subscriptionID)
	}

	s.publishCanceled(ctx, sub)
	return nil
}

// publishCanceled notifies downstream consumers that cached views of the
// user's subscriptions are stale.
func (s *Service) publishCanceled(ctx context.Context, sub *domain.Subscription) {
	if s.producer == nil {
		log.Printf("level=info component=cancellation msg=\"no event producer; skipping publish\" subscription_id=%s", sub.ID)
		return
	}
	event := domain.SubscriptionEvent{
		EventID:                uuid.NewString(),
		ProviderSubscriptionID: sub.ProviderSubscriptionID,
		UserID:                 sub.UserID,
		LeagueID:               sub.LeagueID,
		Status:                 string(domain.SubscriptionCanceled),
		CurrentPeriodEnd:       sub.CurrentPeriodEnd,
	}
	if err := s.producer.Publish(ctx, BillingEventsExchange, "subscription.canceled", event); err != nil {
		// The ledger is already consistent; downstream caches catch up on the
		// next provider event.
		log.Printf("level=warn component=cancellation msg=\"failed to publish cancellation event\" subscription_id=%s err=%v", sub.ID, err)
	}
}

// ListSubscriptions returns the caller's active subscriptions joined to
// league data, in insertion order.
func (s *Service) ListSubscriptions(ctx context.Context, userID string) ([]domain.SubscriptionWithLeague, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	return s.repo.ListActiveSubscriptionsWithLeague(ctx, userID)
}

// AuthorizeLeagueAccess decides whether the user may act on the league's
// gated content: the session must already be verified and an active ledger
// row must exist. The ledger is re-read on every call; authorization is a
// composition, never a cached state.
func (s *Service) AuthorizeLeagueAccess(ctx context.Context, userID, leagueID string) (*domain.League, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}

	league, err := s.repo.FindLeagueByID(ctx, leagueID)
	if err != nil {
		if errors.Is(err, store.ErrLeagueNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	active, err := s.repo.HasActiveSubscription(ctx, userID, leagueID)
	if err != nil {
		return nil, err
	}
	if !active {
		return nil, domain.ErrSubscriptionRequired
	}
	return league, nil
}
