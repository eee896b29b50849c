package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"nguvuhire/config"
	"nguvuhire/internal/auth"
	"nguvuhire/internal/domain"
	"nguvuhire/internal/models"
	"nguvuhire/internal/repository"
	"nguvuhire/internal/testutil"
	"nguvuhire/pkg/pesapal"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) SubmitOrder(ctx context.Context, req pesapal.OrderRequest) (*pesapal.OrderResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pesapal.OrderResponse), args.Error(1)
}

func (m *MockGateway) GetStatus(ctx context.Context, trackingID string) (*pesapal.TransactionStatus, error) {
	args := m.Called(ctx, trackingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pesapal.TransactionStatus), args.Error(1)
}

type published struct {
	userID, event string
	payload       interface{}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *recordingPublisher) Publish(userID, event string, payload interface{}) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{userID, event, payload})
	return 1
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

type fixture struct {
	db        *gorm.DB
	cfg       *config.Config
	gw        *MockGateway
	pub       *recordingPublisher
	orderRepo *repository.PaymentOrderRepository
	credits   *repository.CreditRepository
	boosts    *repository.BoostRepository
	posts     *repository.PostRepository
	profiles  *repository.ProfileRepository
	ipnEvents *repository.IPNEventRepository
	ledger    *Ledger
	orders    *OrderService
	payments  *PaymentService
}

func testConfig() *config.Config {
	return &config.Config{
		Server:  config.ServerConfig{FrontendURL: "https://hire.example"},
		Pesapal: config.PesapalConfig{CallbackBaseURL: "https://api.hire.example", Currency: "KES"},
		Pricing: config.PricingConfig{
			VerificationAmount: 10,
			BoostAmounts:       map[string]int64{"standard": 100, "premium": 250, "ultra": 500},
		},
		Credits:   config.CreditsConfig{FreeAllotment: 1},
		Redis:     config.RedisConfig{DedupeTTL: 2 * time.Minute},
		Reconcile: config.ReconcileConfig{PendingAfter: 15 * time.Minute, AbandonAfter: 24 * time.Hour, BatchSize: 50},
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	cfg := testConfig()
	f := &fixture{
		db:        db,
		cfg:       cfg,
		gw:        &MockGateway{},
		pub:       &recordingPublisher{},
		orderRepo: repository.NewPaymentOrderRepository(db),
		credits:   repository.NewCreditRepository(db),
		boosts:    repository.NewBoostRepository(db),
		profiles:  repository.NewProfileRepository(db),
		ipnEvents: repository.NewIPNEventRepository(db),
	}
	f.posts = repository.NewPostRepository(db)
	f.ledger = NewLedger(db, f.credits, f.boosts, f.posts, cfg.Credits.FreeAllotment)
	f.orders = NewOrderService(cfg, f.orderRepo, f.posts, f.gw, nil)
	notifier := NewNotificationService(repository.NewNotificationRepository(db), f.profiles, nil)
	f.payments = NewPaymentService(db, f.orderRepo, f.profiles, f.ipnEvents, repository.NewAuditLogRepository(db), f.ledger, f.gw, notifier, f.pub, cfg.Server.FrontendURL)
	return f
}

var employer = auth.AuthContext{UserID: "employer-1", Email: "boss@example.com", Role: domain.RoleEmployer}

func (f *fixture) createJob(t *testing.T, owner string) uint {
	t.Helper()
	job := models.Job{Title: "Site supervisor", CreatedBy: owner}
	require.NoError(t, f.db.Create(&job).Error)
	return job.ID
}

// pendingOrder inserts a submitted order directly, bypassing the gateway.
func (f *fixture) pendingOrder(t *testing.T, ref, kind, trackingID string, postID *uint) *models.PaymentOrder {
	t.Helper()
	o := &models.PaymentOrder{
		Reference:    ref,
		UserID:       employer.UserID,
		Kind:         kind,
		Amount:       100,
		Currency:     "KES",
		TargetPostID: postID,
		BoostType:    domain.BoostStandard,
		Status:       domain.OrderStatusPending,
		RedirectURL:  "https://pay.example/" + trackingID,
	}
	if postID != nil {
		o.TargetPostType = domain.PostTypeJob
	}
	if trackingID != "" {
		o.ProviderTrackingID = &trackingID
	}
	require.NoError(t, f.orderRepo.Create(context.Background(), o))
	return o
}

func status(ps pesapal.PaymentStatus, ref string) *pesapal.TransactionStatus {
	return &pesapal.TransactionStatus{
		PaymentStatus:     ps,
		MerchantReference: ref,
		Raw:               []byte(`{"payment_status_description":"` + string(ps) + `"}`),
	}
}

func (f *fixture) order(t *testing.T, ref string) *models.PaymentOrder {
	t.Helper()
	o, err := f.orderRepo.GetByReference(context.Background(), ref)
	require.NoError(t, err)
	return o
}

func (f *fixture) balance(t *testing.T, userID string) *models.CreditBalance {
	t.Helper()
	b, err := f.credits.GetByUserID(context.Background(), userID)
	require.NoError(t, err)
	return b
}
