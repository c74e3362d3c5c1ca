package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/matchpass/access-service/internal/auth"
	"github.com/matchpass/access-service/internal/domain"
	"github.com/matchpass/access-service/internal/store"
	"github.com/matchpass/access-service/pkg/stripeclient"
)

// fakeRepo is an in-memory store.Repository for service tests.
type fakeRepo struct {
	users         map[string]*domain.User // keyed by ID
	leagues       map[string]*domain.League
	subscriptions map[string]*domain.Subscription

	cancelCalls int
	upserts     []store.UpsertSubscriptionParams
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		users:         map[string]*domain.User{},
		leagues:       map[string]*domain.League{},
		subscriptions: map[string]*domain.Subscription{},
	}
}

func (r *fakeRepo) CreateUser(ctx context.Context, email, passwordHash string) (*domain.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return nil, store.ErrDuplicateEmail
		}
	}
	user := &domain.User{ID: uuid.NewString(), Email: email, PasswordHash: passwordHash, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	r.users[user.ID] = user
	return user, nil
}

func (r *fakeRepo) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, store.ErrUserNotFound
}

func (r *fakeRepo) FindUserByID(ctx context.Context, id string) (*domain.User, error) {
	if u, ok := r.users[id]; ok {
		return u, nil
	}
	return nil, store.ErrUserNotFound
}

func (r *fakeRepo) FindLeagueByID(ctx context.Context, id string) (*domain.League, error) {
	if l, ok := r.leagues[id]; ok {
		return l, nil
	}
	return nil, store.ErrLeagueNotFound
}

func (r *fakeRepo) FindSubscriptionByID(ctx context.Context, id string) (*domain.Subscription, error) {
	if s, ok := r.subscriptions[id]; ok {
		return s, nil
	}
	return nil, store.ErrSubscriptionNotFound
}

func (r *fakeRepo) HasActiveSubscription(ctx context.Context, userID, leagueID string) (bool, error) {
	for _, s := range r.subscriptions {
		if s.UserID == userID && s.LeagueID == leagueID && s.Status == domain.SubscriptionActive {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeRepo) ListActiveSubscriptionsWithLeague(ctx context.Context, userID string) ([]domain.SubscriptionWithLeague, error) {
	results := []domain.SubscriptionWithLeague{}
	for _, s := range r.subscriptions {
		if s.UserID != userID || s.Status != domain.SubscriptionActive {
			continue
		}
		league := r.leagues[s.LeagueID]
		if league == nil {
			continue
		}
		results = append(results, domain.SubscriptionWithLeague{Subscription: *s, League: *league})
	}
	return results, nil
}

func (r *fakeRepo) CancelSubscription(ctx context.Context, id string) (bool, error) {
	r.cancelCalls++
	s, ok := r.subscriptions[id]
	if !ok || s.Status != domain.SubscriptionActive {
		return false, nil
	}
	s.Status = domain.SubscriptionCanceled
	s.UpdatedAt = time.Now()
	return true, nil
}

func (r *fakeRepo) UpsertSubscriptionByProviderID(ctx context.Context, params store.UpsertSubscriptionParams) (*domain.Subscription, error) {
	r.upserts = append(r.upserts, params)
	for _, s := range r.subscriptions {
		if s.ProviderSubscriptionID == params.ProviderSubscriptionID {
			s.Status = params.Status
			s.CurrentPeriodEnd = params.CurrentPeriodEnd
			s.UpdatedAt = time.Now()
			return s, nil
		}
	}
	sub := &domain.Subscription{
		ID:                     uuid.NewString(),
		UserID:                 params.UserID,
		LeagueID:               params.LeagueID,
		ProviderSubscriptionID: params.ProviderSubscriptionID,
		Status:                 params.Status,
		CurrentPeriodEnd:       params.CurrentPeriodEnd,
		CreatedAt:              time.Now(),
		UpdatedAt:              time.Now(),
	}
	r.subscriptions[sub.ID] = sub
	return sub, nil
}

// stubPaymentClient records provider calls and returns canned responses.
type stubPaymentClient struct {
	checkoutCalls   []stripeclient.CheckoutSessionParams
	checkoutSession *stripeclient.CheckoutSession
	checkoutErr     error

	cancelCalls []string
	cancelErr   error
}

func (c *stubPaymentClient) CreateCheckoutSession(ctx context.Context, params stripeclient.CheckoutSessionParams) (*stripeclient.CheckoutSession, error) {
	c.checkoutCalls = append(c.checkoutCalls, params)
	if c.checkoutErr != nil {
		return nil, c.checkoutErr
	}
	if c.checkoutSession != nil {
		return c.checkoutSession, nil
	}
	return &stripeclient.CheckoutSession{ID: "cs_test", URL: "https://checkout.example.com/cs_test"}, nil
}

func (c *stubPaymentClient) CancelSubscription(ctx context.Context, providerSubscriptionID string) (*stripeclient.Subscription, error) {
	c.cancelCalls = append(c.cancelCalls, providerSubscriptionID)
	if c.cancelErr != nil {
		return nil, c.cancelErr
	}
	return &stripeclient.Subscription{ID: providerSubscriptionID, Status: "canceled"}, nil
}

// stubPublisher records published events.
type stubPublisher struct {
	exchanges   []string
	routingKeys []string
	bodies      []interface{}
	err         error
}

func (p *stubPublisher) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	p.exchanges = append(p.exchanges, exchange)
	p.routingKeys = append(p.routingKeys, routingKey)
	p.bodies = append(p.bodies, body)
	return p.err
}

func (p *stubPublisher) Close() {}

func newTestService(repo *fakeRepo, payments *stubPaymentClient, publisher *stubPublisher) (*Service, *auth.TokenService) {
	tokens := auth.NewTokenService("test-secret", time.Hour)
	svc := NewService(repo, payments, tokens, publisher, CheckoutConfig{
		PriceID:    "price_league_monthly",
		SuccessURL: "https://matchpass.example.com/billing/success",
		CancelURL:  "https://matchpass.example.com/billing/cancel",
	})
	return svc, tokens
}

func TestSignupThenLogin_TokensVerifyToSameUser(t *testing.T) {
	repo := newFakeRepo()
	svc, tokens := newTestService(repo, &stubPaymentClient{}, &stubPublisher{})
	ctx := context.Background()

	user, signupToken, err := svc.Signup(ctx, "A@x.com", "password123")
	if err != nil {
		t.Fatalf("Signup returned error: %v", err)
	}
	if user.Email != "a@x.com" {
		t.Fatalf("expected case-normalized email, got %q", user.Email)
	}

	loginUser, loginToken, err := svc.Login(ctx, "a@X.com", "password123")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if loginUser.ID != user.ID {
		t.Fatalf("expected login to resolve the signup user, got %q vs %q", loginUser.ID, user.ID)
	}

	for _, token := range []string{signupToken, loginToken} {
		userID, err := tokens.Verify(token)
		if err != nil {
			t.Fatalf("Verify returned error: %v", err)
		}
		if userID != user.ID {
			t.Fatalf("expected token subject %q, got %q", user.ID, userID)
		}
	}

	subs, err := svc.ListSubscriptions(ctx, user.ID)
	if err != nil {
		t.Fatalf("ListSubscriptions returned error: %v", err)
	}
	if len(subs) != 0 {
		t.Fatalf("expected a fresh user to have no subscriptions, got %d", len(subs))
	}
}

func TestSignup_DuplicateEmailConflicts(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo, &stubPaymentClient{}, &stubPublisher{})
	ctx := context.Background()

	if _, _, err := svc.Signup(ctx, "a@x.com", "password123"); err != nil {
		t.Fatalf("first Signup returned error: %v", err)
	}
	_, _, err := svc.Signup(ctx, "A@X.COM", "otherpassword")
	if !errors.Is(err, domain.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestLogin_UnknownEmailAndWrongPasswordAreIndistinguishable(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo, &stubPaymentClient{}, &stubPublisher{})
	ctx := context.Background()

	if _, _, err := svc.Signup(ctx, "a@x.com", "password123"); err != nil {
		t.Fatalf("Signup returned error: %v", err)
	}

	_, _, unknownErr := svc.Login(ctx, "nobody@x.com", "password123")
	_, _, wrongErr := svc.Login(ctx, "a@x.com", "wrongpassword")

	if !errors.Is(unknownErr, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", unknownErr)
	}
	if !errors.Is(wrongErr, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for wrong password, got %v", wrongErr)
	}
	if unknownErr.Error() != wrongErr.Error() {
		t.Fatal("expected identical errors for both failure paths")
	}
}

func TestCreateCheckout_InactiveLeagueSkipsProvider(t *testing.T) {
	repo := newFakeRepo()
	payments := &stubPaymentClient{}
	svc, _ := newTestService(repo, payments, &stubPublisher{})
	ctx := context.Background()

	user, _, err := svc.Signup(ctx, "a@x.com", "password123")
	if err != nil {
		t.Fatalf("Signup returned error: %v", err)
	}
	repo.leagues["l2"] = &domain.League{ID: "l2", Name: "Serie B", Country: "IT", IsActive: false}

	_, err = svc.CreateCheckout(ctx, user.ID, "l2")
	if !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
	if len(payments.checkoutCalls) != 0 {
		t.Fatalf("expected no provider call for an inactive league, got %d", len(payments.checkoutCalls))
	}
}

func TestCreateCheckout_UnknownLeagueNotFound(t *testing.T) {
	repo := newFakeRepo()
	payments := &stubPaymentClient{}
	svc, _ := newTestService(repo, payments, &stubPublisher{})
	ctx := context.Background()

	user, _, err := svc.Signup(ctx, "a@x.com", "password123")
	if err != nil {
		t.Fatalf("Signup returned error: %v", err)
	}

	_, err = svc.CreateCheckout(ctx, user.ID, "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if len(payments.checkoutCalls) != 0 {
		t.Fatal("expected no provider call for an unknown league")
	}
}

func TestCreateCheckout_MissingPriceIsInvalidState(t *testing.T) {
	repo := newFakeRepo()
	payments := &stubPaymentClient{}
	tokens := auth.NewTokenService("test-secret", time.Hour)
	svc := NewService(repo, payments, tokens, &stubPublisher{}, CheckoutConfig{})
	ctx := context.Background()

	user, _, err := svc.Signup(ctx, "a@x.com", "password123")
	if err != nil {
		t.Fatalf("Signup returned error: %v", err)
	}
	repo.leagues["l1"] = &domain.League{ID: "l1", Name: "Premier League", Country: "GB", IsActive: true}

	_, err = svc.CreateCheckout(ctx, user.ID, "l1")
	if !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState for missing price, got %v", err)
	}
	if len(payments.checkoutCalls) != 0 {
		t.Fatal("expected no provider call without a configured price")
	}
}

func TestCreateCheckout_ReturnsRedirectURLWithMetadata(t *testing.T) {
	repo := newFakeRepo()
	payments := &stubPaymentClient{}
	svc, _ := newTestService(repo, payments, &stubPublisher{})
	ctx := context.Background()

	user, _, err := svc.Signup(ctx, "a@x.com", "password123")
	if err != nil {
		t.Fatalf("Signup returned error: %v", err)
	}
	repo.leagues["l1"] = &domain.League{ID: "l1", Name: "Premier League", Country: "GB", IsActive: true}

	url, err := svc.CreateCheckout(ctx, user.ID, "l1")
	if err != nil {
		t.Fatalf("CreateCheckout returned error: %v", err)
	}
	if url != "https://checkout.example.com/cs_test" {
		t.Fatalf("unexpected redirect URL %q", url)
	}

	if len(payments.checkoutCalls) != 1 {
		t.Fatalf("expected one provider call, got %d", len(payments.checkoutCalls))
	}
	call := payments.checkoutCalls[0]
	if call.CustomerEmail != "a@x.com" || call.UserID != user.ID || call.LeagueID != "l1" {
		t.Fatalf("provider call missing customer/metadata fields: %+v", call)
	}
	if call.PriceID != "price_league_monthly" {
		t.Fatalf("expected configured price id, got %q", call.PriceID)
	}
}

func TestCreateCheckout_ProviderFailures(t *testing.T) {
	tests := []struct {
		name    string
		client  *stubPaymentClient
	}{
		{name: "provider error", client: &stubPaymentClient{checkoutErr: errors.New("boom")}},
		{name: "empty redirect url", client: &stubPaymentClient{checkoutSession: &stripeclient.CheckoutSession{ID: "cs_test"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeRepo()
			svc, _ := newTestService(repo, tt.client, &stubPublisher{})
			ctx := context.Background()

			user, _, err := svc.Signup(ctx, "a@x.com", "password123")
			if err != nil {
				t.Fatalf("Signup returned error: %v", err)
			}
			repo.leagues["l1"] = &domain.League{ID: "l1", Name: "Premier League", Country: "GB", IsActive: true}

			_, err = svc.CreateCheckout(ctx, user.ID, "l1")
			if !errors.Is(err, domain.ErrExternalFailure) {
				t.Fatalf("expected ErrExternalFailure, got %v", err)
			}
		})
	}
}

func seedActiveSubscription(repo *fakeRepo, userID, leagueID, providerID string) *domain.Subscription {
	sub := &domain.Subscription{
		ID:                     uuid.NewString(),
		UserID:                 userID,
		LeagueID:               leagueID,
		ProviderSubscriptionID: providerID,
		Status:                 domain.SubscriptionActive,
		CurrentPeriodEnd:       time.Now().AddDate(0, 1, 0),
		CreatedAt:              time.Now(),
		UpdatedAt:              time.Now(),
	}
	repo.subscriptions[sub.ID] = sub
	return sub
}

func TestCancelSubscription_Success(t *testing.T) {
	repo := newFakeRepo()
	payments := &stubPaymentClient{}
	publisher := &stubPublisher{}
	svc, _ := newTestService(repo, payments, publisher)
	ctx := context.Background()

	user, _, err := svc.Signup(ctx, "a@x.com", "password123")
	if err != nil {
		t.Fatalf("Signup returned error: %v", err)
	}
	repo.leagues["l1"] = &domain.League{ID: "l1", Name: "Premier League", Country: "GB", IsActive: true}
	sub := seedActiveSubscription(repo, user.ID, "l1", "sub_provider_1")

	if err := svc.CancelSubscription(ctx, user.ID, sub.ID); err != nil {
		t.Fatalf("CancelSubscription returned error: %v", err)
	}

	if len(payments.cancelCalls) != 1 || payments.cancelCalls[0] != "sub_provider_1" {
		t.Fatalf("expected provider cancel with the external subscription id, got %v", payments.cancelCalls)
	}
	active, err := repo.HasActiveSubscription(ctx, user.ID, "l1")
	if err != nil {
		t.Fatalf("HasActiveSubscription returned error: %v", err)
	}
	if active {
		t.Fatal("expected the ledger row to be canceled")
	}
	if len(publisher.routingKeys) != 1 || publisher.routingKeys[0] != "subscription.canceled" {
		t.Fatalf("expected one subscription.canceled event, got %v", publisher.routingKeys)
	}
}

func TestCancelSubscription_ForeignOwnerReportsNotFound(t *testing.T) {
	repo := newFakeRepo()
	payments := &stubPaymentClient{}
	svc, _ := newTestService(repo, payments, &stubPublisher{})
	ctx := context.Background()

	owner, _, err := svc.Signup(ctx, "owner@x.com", "password123")
	if err != nil {
		t.Fatalf("Signup returned error: %v", err)
	}
	attacker, _, err := svc.Signup(ctx, "attacker@x.com", "password123")
	if err != nil {
		t.Fatalf("Signup returned error: %v", err)
	}
	sub := seedActiveSubscription(repo, owner.ID, "l1", "sub_provider_1")

	err = svc.CancelSubscription(ctx, attacker.ID, sub.ID)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for a foreign subscription, got %v", err)
	}
	if len(payments.cancelCalls) != 0 {
		t.Fatal("expected no provider call for a foreign subscription")
	}
}

func TestCancelSubscription_ProviderFailureLeavesLedgerUntouched(t *testing.T) {
	repo := newFakeRepo()
	payments := &stubPaymentClient{cancelErr: errors.New("provider down")}
	svc, _ := newTestService(repo, payments, &stubPublisher{})
	ctx := context.Background()

	user, _, err := svc.Signup(ctx, "a@x.com", "password123")
	if err != nil {
		t.Fatalf("Signup returned error: %v", err)
	}
	sub := seedActiveSubscription(repo, user.ID, "l1", "sub_provider_1")

	err = svc.CancelSubscription(ctx, user.ID, sub.ID)
	if !errors.Is(err, domain.ErrExternalFailure) {
		t.Fatalf("expected ErrExternalFailure, got %v", err)
	}
	if repo.cancelCalls != 0 {
		t.Fatal("expected no ledger update after a provider failure")
	}
	if sub.Status != domain.SubscriptionActive {
		t.Fatalf("expected the ledger row to stay active, got %s", sub.Status)
	}
}

func TestCancelSubscription_AlreadyCanceledStillSucceeds(t *testing.T) {
	repo := newFakeRepo()
	payments := &stubPaymentClient{}
	svc, _ := newTestService(repo, payments, &stubPublisher{})
	ctx := context.Background()

	user, _, err := svc.Signup(ctx, "a@x.com", "password123")
	if err != nil {
		t.Fatalf("Signup returned error: %v", err)
	}
	sub := seedActiveSubscription(repo, user.ID, "l1", "sub_provider_1")
	sub.Status = domain.SubscriptionCanceled

	// Provider and ledger already agree on canceled; a repeat cancel is not an
	// error for the caller.
	if err := svc.CancelSubscription(ctx, user.ID, sub.ID); err != nil {
		t.Fatalf("CancelSubscription returned error: %v", err)
	}
}

func TestAuthorizeLeagueAccess(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo, &stubPaymentClient{}, &stubPublisher{})
	ctx := context.Background()

	user, _, err := svc.Signup(ctx, "a@x.com", "password123")
	if err != nil {
		t.Fatalf("Signup returned error: %v", err)
	}
	repo.leagues["l1"] = &domain.League{ID: "l1", Name: "Premier League", Country: "GB", IsActive: true}

	if _, err := svc.AuthorizeLeagueAccess(ctx, user.ID, "l1"); !errors.Is(err, domain.ErrSubscriptionRequired) {
		t.Fatalf("expected ErrSubscriptionRequired without a ledger row, got %v", err)
	}

	seedActiveSubscription(repo, user.ID, "l1", "sub_provider_1")
	league, err := svc.AuthorizeLeagueAccess(ctx, user.ID, "l1")
	if err != nil {
		t.Fatalf("AuthorizeLeagueAccess returned error: %v", err)
	}
	if league.ID != "l1" {
		t.Fatalf("expected league l1, got %q", league.ID)
	}

	if _, err := svc.AuthorizeLeagueAccess(ctx, "", "l1"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for a missing caller, got %v", err)
	}
}
