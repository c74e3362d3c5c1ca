/**
 * @description
 * This file provides the PostgreSQL implementation of the Repository
 * interface. All queries are parameterized; user input never reaches SQL
 * text. Unique-constraint violations are translated into store errors so the
 * service layer can report Conflict without inspecting pg error codes itself.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: PostgreSQL driver and connection pooling.
 * - internal/domain: domain models scanned from rows.
 */
package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/matchpass/access-service/internal/domain"
)

// uniqueViolation is the PostgreSQL error code for a unique constraint breach.
const uniqueViolation = "23505"

// PostgresRepository is the pgx-backed implementation of Repository.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// CreateUser inserts a new user row. The unique index on lower(email) closes
// the duplicate-signup race: concurrent inserts for the same email resolve at
// the database, and the loser surfaces ErrDuplicateEmail.
func (r *PostgresRepository) CreateUser(ctx context.Context, email, passwordHash string) (*domain.User, error) {
	var user domain.User
	query := `
        INSERT INTO users (email, password_hash)
        VALUES ($1, $2)
        RETURNING id, email, password_hash, created_at, updated_at
    `
	err := r.db.QueryRow(ctx, query, email, passwordHash).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}
	return &user, nil
}

// FindUserByEmail retrieves a user by case-normalized email.
func (r *PostgresRepository) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	var user domain.User
	query := `
        SELECT id, email, password_hash, created_at, updated_at
        FROM users
        WHERE lower(email) = lower($1)
    `
	err := r.db.QueryRow(ctx, query, email).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// FindUserByID retrieves a user by internal ID.
func (r *PostgresRepository) FindUserByID(ctx context.Context, id string) (*domain.User, error) {
	var user domain.User
	query := `
        SELECT id, email, password_hash, created_at, updated_at
        FROM users
        WHERE id = $1
    `
	err := r.db.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// FindLeagueByID retrieves a league by ID.
func (r *PostgresRepository) FindLeagueByID(ctx context.Context, id string) (*domain.League, error) {
	var league domain.League
	query := `
        SELECT id, name, country, is_active
        FROM leagues
        WHERE id = $1
    `
	err := r.db.QueryRow(ctx, query, id).Scan(
		&league.ID,
		&league.Name,
		&league.Country,
		&league.IsActive,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLeagueNotFound
		}
		return nil, err
	}
	return &league, nil
}

// FindSubscriptionByID retrieves a ledger row by ID.
func (r *PostgresRepository) FindSubscriptionByID(ctx context.Context, id string) (*domain.Subscription, error) {
	var sub domain.Subscription
	query := `
        SELECT id, user_id, league_id, provider_subscription_id, status,
               current_period_end, created_at, updated_at
        FROM subscriptions
        WHERE id = $1
    `
	err := r.db.QueryRow(ctx, query, id).Scan(
		&sub.ID,
		&sub.UserID,
		&sub.LeagueID,
		&sub.ProviderSubscriptionID,
		&sub.Status,
		&sub.CurrentPeriodEnd,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	return &sub, nil
}

// HasActiveSubscription reports whether an active ledger row exists for the
// (user, league) pair. Re-evaluated on every authorization check; there is no
// in-process cache of subscription state.
func (r *PostgresRepository) HasActiveSubscription(ctx context.Context, userID, leagueID string) (bool, error) {
	var exists bool
	query := `
        SELECT EXISTS (
            SELECT 1 FROM subscriptions
            WHERE user_id = $1 AND league_id = $2 AND status = 'active'
        )
    `
	if err := r.db.QueryRow(ctx, query, userID, leagueID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// ListActiveSubscriptionsWithLeague returns the user's active subscriptions
// joined to league data, ordered by created_at so the listing is stable.
func (r *PostgresRepository) ListActiveSubscriptionsWithLeague(ctx context.Context, userID string) ([]domain.SubscriptionWithLeague, error) {
	query := `
        SELECT s.id, s.user_id, s.league_id, s.provider_subscription_id,
               s.status, s.current_period_end, s.created_at, s.updated_at,
               l.id, l.name, l.country, l.is_active
        FROM subscriptions s
        JOIN leagues l ON l.id = s.league_id
        WHERE s.user_id = $1 AND s.status = 'active'
        ORDER BY s.created_at
    `
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []domain.SubscriptionWithLeague{}
	for rows.Next() {
		var item domain.SubscriptionWithLeague
		if err := rows.Scan(
			&item.Subscription.ID,
			&item.Subscription.UserID,
			&item.Subscription.LeagueID,
			&item.Subscription.ProviderSubscriptionID,
			&item.Subscription.Status,
			&item.Subscription.CurrentPeriodEnd,
			&item.Subscription.CreatedAt,
			&item.Subscription.UpdatedAt,
			&item.League.ID,
			&item.League.Name,
			&item.League.Country,
			&item.League.IsActive,
		); err != nil {
			return nil, err
		}
		results = append(results, item)
	}
	return results, rows.Err()
}

// CancelSubscription performs the active -> canceled transition as a single
// conditional update. A concurrent double-cancel resolves at the database:
// exactly one caller matches the row, the other sees zero rows affected.
func (r *PostgresRepository) CancelSubscription(ctx context.Context, id string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
        UPDATE subscriptions
        SET status = 'canceled', updated_at = NOW()
        WHERE id = $1 AND status = 'active'
    `, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// UpsertSubscriptionByProviderID applies provider-confirmed state keyed by the
// provider-side subscription ID. Safe to invoke multiple times with the same
// event, which absorbs at-least-once webhook delivery.
func (r *PostgresRepository) UpsertSubscriptionByProviderID(ctx context.Context, params UpsertSubscriptionParams) (*domain.Subscription, error) {
	var sub domain.Subscription
	query := `
        INSERT INTO subscriptions (user_id, league_id, provider_subscription_id, status, current_period_end)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (provider_subscription_id) DO UPDATE SET
            status = EXCLUDED.status,
            current_period_end = EXCLUDED.current_period_end,
            updated_at = NOW()
        RETURNING id, user_id, league_id, provider_subscription_id, status,
                  current_period_end, created_at, updated_at
    `
	err := r.db.QueryRow(ctx, query,
		params.UserID,
		params.LeagueID,
		params.ProviderSubscriptionID,
		params.Status,
		params.CurrentPeriodEnd,
	).Scan(
		&sub.ID,
		&sub.UserID,
		&sub.LeagueID,
		&sub.ProviderSubscriptionID,
		&sub.Status,
		&sub.CurrentPeriodEnd,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}
