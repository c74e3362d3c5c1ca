/**
 * @description
 * This file defines the Repository interface the application layer depends on,
 * along with the store-level sentinel errors. Keeping the interface here lets
 * the service layer be tested with lightweight stubs.
 */
package store

import (
	"context"
	"errors"
	"time"

	"github.com/matchpass/access-service/internal/domain"
)

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrDuplicateEmail       = errors.New("email already exists")
	ErrLeagueNotFound       = errors.New("league not found")
	ErrSubscriptionNotFound = errors.New("subscription not found")
)

// UpsertSubscriptionParams carries the provider-confirmed state applied to the
// ledger, keyed by the provider-side subscription ID.
type UpsertSubscriptionParams struct {
	ProviderSubscriptionID string
	UserID                 string
	LeagueID               string
	Status                 domain.SubscriptionStatus
	CurrentPeriodEnd       time.Time
}

// Repository defines the persistence operations the access-service needs.
type Repository interface {
	// CreateUser inserts a new user and returns the stored record. A duplicate
	// email (case-insensitive) returns ErrDuplicateEmail; the uniqueness is
	// enforced by a database constraint, not a prior lookup.
	CreateUser(ctx context.Context, email, passwordHash string) (*domain.User, error)

	// FindUserByEmail looks a user up by case-normalized email.
	// Returns ErrUserNotFound when absent.
	FindUserByEmail(ctx context.Context, email string) (*domain.User, error)

	// FindUserByID looks a user up by internal ID.
	// Returns ErrUserNotFound when absent.
	FindUserByID(ctx context.Context, id string) (*domain.User, error)

	// FindLeagueByID returns ErrLeagueNotFound when absent.
	FindLeagueByID(ctx context.Context, id string) (*domain.League, error)

	// FindSubscriptionByID returns ErrSubscriptionNotFound when absent.
	FindSubscriptionByID(ctx context.Context, id string) (*domain.Subscription, error)

	// HasActiveSubscription reports whether an active ledger row exists for
	// the (user, league) pair.
	HasActiveSubscription(ctx context.Context, userID, leagueID string) (bool, error)

	// ListActiveSubscriptionsWithLeague returns the user's active ledger rows
	// joined to league data, ordered by created_at (insertion order).
	ListActiveSubscriptionsWithLeague(ctx context.Context, userID string) ([]domain.SubscriptionWithLeague, error)

	// CancelSubscription transitions a row from active to canceled as a single
	// conditional update. It returns false when no row matched, i.e. the
	// subscription is missing or was already canceled concurrently.
	CancelSubscription(ctx context.Context, id string) (bool, error)

	// UpsertSubscriptionByProviderID applies provider-confirmed state to the
	// ledger. It is idempotent: replaying the same event leaves the row in the
	// same state.
	UpsertSubscriptionByProviderID(ctx context.Context, params UpsertSubscriptionParams) (*domain.Subscription, error)
}
