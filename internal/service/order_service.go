package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"nguvuhire/config"
	"nguvuhire/internal/auth"
	"nguvuhire/internal/domain"
	"nguvuhire/internal/metrics"
	"nguvuhire/internal/models"
	"nguvuhire/internal/repository"
	"nguvuhire/pkg/pesapal"

	"github.com/google/uuid"
)

// Deduper claims a checkout key for a short time. RedisDeduper implements it.
type Deduper interface {
	Claim(ctx context.Context, key, reference string) (existing string, claimed bool, err error)
	Release(ctx context.Context, key string) error
}

type OrderService struct {
	orders      *repository.PaymentOrderRepository
	posts       *repository.PostRepository
	gateway     pesapal.Gateway
	dedupe      Deduper
	dedupeTTL   time.Duration
	pricing     config.PricingConfig
	currency    string
	callbackURL string
	now         func() time.Time
}

// NewOrderService wires checkout creation. dedupe may be nil, in which case
// recent pending orders are looked up in the database instead.
func NewOrderService(cfg *config.Config, orders *repository.PaymentOrderRepository, posts *repository.PostRepository, gateway pesapal.Gateway, dedupe Deduper) *OrderService {
	currency := cfg.Pesapal.Currency
	if currency == "" {
		currency = "KES"
	}
	return &OrderService{
		orders:      orders,
		posts:       posts,
		gateway:     gateway,
		dedupe:      dedupe,
		dedupeTTL:   cfg.Redis.DedupeTTL,
		pricing:     cfg.Pricing,
		currency:    currency,
		callbackURL: cfg.Pesapal.CallbackBaseURL + cfg.Server.BasePath + "/payments/callback",
		now:         func() time.Time { return time.Now().UTC() },
	}
}

type CreateOrderInput struct {
	Kind        string
	Amount      int64  // 0 means catalog price
	UserID      string // optional; must match the caller
	PostID      *uint
	PostType    string
	BoostType   string
	Description string
	Billing     pesapal.BillingAddress
}

type CreateOrderResult struct {
	Reference   string `json:"reference"`
	CheckoutURL string `json:"checkoutUrl"`
	TrackingID  string `json:"orderTrackingId"`
	Reused      bool   `json:"reused"`
}

// CreateOrder persists a PENDING order, submits it to Pesapal and returns the
// hosted checkout URL. A rejected submission marks the order FAILED.
func (s *OrderService) CreateOrder(ctx context.Context, ac auth.AuthContext, in CreateOrderInput) (*CreateOrderResult, error) {
	if err := s.normalize(ac, &in); err != nil {
		return nil, err
	}
	if in.Kind == domain.OrderKindBoost && in.PostID != nil {
		owner, err := s.posts.GetOwner(ctx, in.PostType, *in.PostID)
		if err != nil {
			return nil, err
		}
		if owner != ac.UserID {
			return nil, domain.ErrForbidden
		}
	}

	reference := in.Kind + "-" + uuid.NewString()
	key := checkoutKey(ac.UserID, in)
	if existing := s.findReusable(ctx, key, reference); existing != nil {
		log.Printf("[ORDER] reusing pending order %s for user=%s", existing.Reference, ac.UserID)
		metrics.RecordOrderCreated(in.Kind, "reused")
		return &CreateOrderResult{
			Reference:   existing.Reference,
			CheckoutURL: existing.RedirectURL,
			TrackingID:  existing.TrackingID(),
			Reused:      true,
		}, nil
	}

	order := &models.PaymentOrder{
		Reference:    reference,
		UserID:       ac.UserID,
		Kind:         in.Kind,
		Amount:       in.Amount,
		Currency:     s.currency,
		TargetPostID: in.PostID,
		BoostType:    in.BoostType,
		Status:       domain.OrderStatusPending,
	}
	if in.PostID != nil {
		order.TargetPostType = in.PostType
	}
	if err := s.orders.Create(ctx, order); err != nil {
		s.release(ctx, key.String())
		return nil, fmt.Errorf("create order: %w", err)
	}

	resp, err := s.gateway.SubmitOrder(ctx, pesapal.OrderRequest{
		ID:             reference,
		Currency:       s.currency,
		Amount:         float64(in.Amount),
		Description:    in.Description,
		CallbackURL:    s.callbackURL,
		BillingAddress: in.Billing,
	})
	if err != nil {
		log.Printf("[ORDER] SubmitOrder failed ref=%s: %v", reference, err)
		metrics.RecordGatewayError("submit_order")
		metrics.RecordOrderCreated(in.Kind, "submit_failed")
		if _, terr := s.orders.Transition(ctx, order.ID, domain.OrderStatusFailed, map[string]interface{}{"failure_reason": "submit_failed"}); terr != nil {
			log.Printf("[ORDER] could not mark %s failed: %v", reference, terr)
		}
		s.release(ctx, key.String())
		return nil, fmt.Errorf("submit order: %w", err)
	}
	if err := s.orders.SetSubmitted(ctx, order.ID, resp.TrackingID, resp.RedirectURL); err != nil {
		// the reconciler fails it as abandoned; the redirect callback can still adopt the tracking id
		log.Printf("[ORDER] could not store tracking id %s for ref=%s: %v", resp.TrackingID, reference, err)
		return nil, fmt.Errorf("store tracking id: %w", err)
	}
	metrics.RecordOrderCreated(in.Kind, "submitted")
	log.Printf("[ORDER] created ref=%s kind=%s amount=%d %s tracking=%s", reference, in.Kind, in.Amount, s.currency, resp.TrackingID)
	return &CreateOrderResult{Reference: reference, CheckoutURL: resp.RedirectURL, TrackingID: resp.TrackingID}, nil
}

func (s *OrderService) normalize(ac auth.AuthContext, in *CreateOrderInput) error {
	if ac.UserID == "" {
		return domain.ErrForbidden
	}
	if in.UserID != "" && in.UserID != ac.UserID {
		return domain.ErrForbidden
	}
	if !domain.ValidOrderKind(in.Kind) {
		return fmt.Errorf("%w: type must be verification or boost", domain.ErrInvalidInput)
	}
	if in.Amount < 0 {
		return fmt.Errorf("%w: amount must be positive", domain.ErrInvalidInput)
	}
	switch in.Kind {
	case domain.OrderKindVerification:
		in.PostID, in.PostType, in.BoostType = nil, "", ""
		if in.Amount == 0 {
			in.Amount = s.pricing.VerificationAmount
		}
		if in.Description == "" {
			in.Description = "NguvuHire profile verification"
		}
	case domain.OrderKindBoost:
		if in.BoostType == "" {
			in.BoostType = domain.BoostStandard
		}
		price, ok := s.pricing.BoostAmounts[in.BoostType]
		if !ok {
			return fmt.Errorf("%w: unknown boost type %q", domain.ErrInvalidInput, in.BoostType)
		}
		if in.PostID != nil && !domain.ValidPostType(in.PostType) {
			return fmt.Errorf("%w: postType must be job or availability", domain.ErrInvalidInput)
		}
		if in.Amount == 0 {
			in.Amount = price
		}
		if in.Description == "" {
			in.Description = fmt.Sprintf("NguvuHire %s boost", in.BoostType)
		}
	}
	if in.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", domain.ErrInvalidInput)
	}
	if in.Billing.EmailAddress == "" {
		in.Billing.EmailAddress = ac.Email
	}
	if in.Billing.EmailAddress == "" && in.Billing.PhoneNumber == "" {
		return fmt.Errorf("%w: billing email or phone is required", domain.ErrInvalidInput)
	}
	return nil
}

func checkoutKey(userID string, in CreateOrderInput) repository.CheckoutKey {
	k := repository.CheckoutKey{
		UserID:    userID,
		Kind:      in.Kind,
		PostID:    in.PostID,
		BoostType: in.BoostType,
		Amount:    in.Amount,
	}
	if in.PostID != nil {
		k.PostType = in.PostType
	}
	return k
}

// findReusable returns a still-payable order for the same checkout key
// created moments ago, so a double submit does not open a second checkout.
func (s *OrderService) findReusable(ctx context.Context, key repository.CheckoutKey, reference string) *models.PaymentOrder {
	if s.dedupe == nil {
		o, err := s.orders.FindRecentPending(ctx, key, s.now().Add(-s.dedupeTTL))
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				log.Printf("[ORDER] dedupe lookup failed: %v", err)
			}
			return nil
		}
		return o
	}

	existing, claimed, err := s.dedupe.Claim(ctx, key.String(), reference)
	if err != nil {
		log.Printf("[ORDER] dedupe claim failed: %v", err)
		return nil
	}
	if claimed || existing == "" {
		return nil
	}
	o, err := s.orders.GetByReference(ctx, existing)
	if err != nil || o.Status != domain.OrderStatusPending || o.RedirectURL == "" {
		return nil
	}
	if !sameCheckout(o, key) {
		log.Printf("[ORDER] dedupe key %s points at %s for a different purchase", key, o.Reference)
		return nil
	}
	return o
}

func sameCheckout(o *models.PaymentOrder, key repository.CheckoutKey) bool {
	if o.UserID != key.UserID || o.Kind != key.Kind || o.BoostType != key.BoostType || o.Amount != key.Amount {
		return false
	}
	if (o.TargetPostID == nil) != (key.PostID == nil) {
		return false
	}
	return key.PostID == nil || (*o.TargetPostID == *key.PostID && o.TargetPostType == key.PostType)
}

func (s *OrderService) release(ctx context.Context, key string) {
	if s.dedupe == nil {
		return
	}
	if err := s.dedupe.Release(ctx, key); err != nil {
		log.Printf("[ORDER] dedupe release failed: %v", err)
	}
}

// GetOrder returns an order visible to the caller.
func (s *OrderService) GetOrder(ctx context.Context, ac auth.AuthContext, reference string) (*models.PaymentOrder, error) {
	o, err := s.orders.GetByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if o.UserID != ac.UserID && !ac.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	return o, nil
}

func (s *OrderService) ListOrders(ctx context.Context, ac auth.AuthContext, limit int) ([]models.PaymentOrder, error) {
	return s.orders.ListByUser(ctx, ac.UserID, limit)
}
