package services

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/Maksim200738-droid/rockvpn/internal/models"
	"github.com/Maksim200738-droid/rockvpn/internal/panel"
)

type StoreMock struct{ mock.Mock }

func (m *StoreMock) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (m *StoreMock) LockUser(ctx context.Context, userID int64) error {
	return m.Called(ctx, userID).Error(0)
}

func (m *StoreMock) RegisterUser(ctx context.Context, user models.User) (bool, error) {
	args := m.Called(ctx, user)
	return args.Bool(0), args.Error(1)
}

func (m *StoreMock) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *StoreMock) SetAdmin(ctx context.Context, userID int64, isAdmin bool) error {
	return m.Called(ctx, userID, isAdmin).Error(0)
}

func (m *StoreMock) DebitBalance(ctx context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	args := m.Called(ctx, userID, amount)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *StoreMock) CreatePendingTransaction(ctx context.Context, userID int64, tariffID string, amount decimal.Decimal) (*models.Transaction, error) {
	args := m.Called(ctx, userID, tariffID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *StoreMock) GetTransaction(ctx context.Context, transactionID string) (*models.Transaction, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *StoreMock) LockTransaction(ctx context.Context, transactionID string) (*models.Transaction, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *StoreMock) MostRecentPending(ctx context.Context, userID int64) (*models.Transaction, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *StoreMock) ResolveTransaction(ctx context.Context, transactionID string, status models.TransactionStatus) error {
	return m.Called(ctx, transactionID, status).Error(0)
}

func (m *StoreMock) CreateSubscription(ctx context.Context, req models.NewSubscription) (*models.Subscription, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *StoreMock) GetSubscription(ctx context.Context, id int64) (*models.Subscription, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *StoreMock) ActiveSubscription(ctx context.Context, userID int64) (*models.Subscription, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *StoreMock) ListUserSubscriptions(ctx context.Context, userID int64) ([]models.Subscription, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Subscription), args.Error(1)
}

func (m *StoreMock) ListActiveSubscriptions(ctx context.Context) ([]models.Subscription, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Subscription), args.Error(1)
}

func (m *StoreMock) HadTrial(ctx context.Context, userID int64) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

func (m *StoreMock) DeactivateSubscription(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *StoreMock) CreditReferralCommission(ctx context.Context, rc models.ReferralCommission) (bool, error) {
	args := m.Called(ctx, rc)
	return args.Bool(0), args.Error(1)
}

func (m *StoreMock) Stats(ctx context.Context) (*models.Stats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Stats), args.Error(1)
}

type GatewayMock struct{ mock.Mock }

func (m *GatewayMock) Authenticate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *GatewayMock) ListInbounds(ctx context.Context) ([]panel.Inbound, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]panel.Inbound), args.Error(1)
}

func (m *GatewayMock) CreateInbound(ctx context.Context) (*panel.Inbound, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*panel.Inbound), args.Error(1)
}

func (m *GatewayMock) CreateCredential(ctx context.Context, inboundID int) (panel.Credential, error) {
	args := m.Called(ctx, inboundID)
	return args.Get(0).(panel.Credential), args.Error(1)
}

func (m *GatewayMock) DeleteCredential(ctx context.Context, inboundID int, credentialID string) error {
	return m.Called(ctx, inboundID, credentialID).Error(0)
}

func (m *GatewayMock) Descriptor(cred panel.Credential) string {
	return m.Called(cred).String(0)
}

type CacheMock struct{ mock.Mock }

func (m *CacheMock) Get(ctx context.Context, key string, result any) (bool, error) {
	args := m.Called(ctx, key, result)
	return args.Bool(0), args.Error(1)
}

func (m *CacheMock) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	return m.Called(ctx, key, value, expiration).Error(0)
}

func (m *CacheMock) Invalidate(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

type PublisherMock struct{ mock.Mock }

func (m *PublisherMock) Publish(ctx context.Context, message any) error {
	return m.Called(ctx, message).Error(0)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

type fixture struct {
	store     *StoreMock
	gateway   *GatewayMock
	cache     *CacheMock
	publisher *PublisherMock
	svc       *Coordinator
}

func newFixture(opts Options) *fixture {
	f := &fixture{
		store:     new(StoreMock),
		gateway:   new(GatewayMock),
		cache:     new(CacheMock),
		publisher: new(PublisherMock),
	}
	f.svc = NewCoordinator(f.store, f.gateway, f.cache, f.publisher, models.NewCatalog(0), opts, newNoopLogger())
	return f
}

func (f *fixture) assertExpectations(t mock.TestingT) {
	f.store.AssertExpectations(t)
	f.gateway.AssertExpectations(t)
	f.cache.AssertExpectations(t)
	f.publisher.AssertExpectations(t)
}

func notificationOfKind(kind models.NotificationKind) any {
	return mock.MatchedBy(func(n models.Notification) bool { return n.Kind == kind })
}
