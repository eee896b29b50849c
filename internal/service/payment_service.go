package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"net/url"
	"strings"
	"time"

	"nguvuhire/internal/auth"
	"nguvuhire/internal/domain"
	"nguvuhire/internal/metrics"
	"nguvuhire/internal/models"
	"nguvuhire/internal/repository"
	"nguvuhire/pkg/pesapal"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// OrderPublisher pushes order updates to connected clients (ws.Hub).
type OrderPublisher interface {
	Publish(userID, event string, payload interface{}) int
}

// Finalize sources, used in logs and metrics.
const (
	SourceCallback  = "callback"
	SourceIPN       = "ipn"
	SourceReconcile = "reconcile"
)

var errTrackingMismatch = errors.New("tracking id does not match order")

type PaymentService struct {
	db          *gorm.DB
	orders      *repository.PaymentOrderRepository
	profiles    *repository.ProfileRepository
	ipnEvents   *repository.IPNEventRepository
	audit       *repository.AuditLogRepository
	ledger      *Ledger
	gateway     pesapal.Gateway
	notifier    *NotificationService
	publisher   OrderPublisher
	frontendURL string
	now         func() time.Time
}

// NewPaymentService wires finalization. notifier and publisher may be nil.
func NewPaymentService(db *gorm.DB, orders *repository.PaymentOrderRepository, profiles *repository.ProfileRepository, ipnEvents *repository.IPNEventRepository, audit *repository.AuditLogRepository, ledger *Ledger, gateway pesapal.Gateway, notifier *NotificationService, publisher OrderPublisher, frontendURL string) *PaymentService {
	return &PaymentService{
		db:          db,
		orders:      orders,
		profiles:    profiles,
		ipnEvents:   ipnEvents,
		audit:       audit,
		ledger:      ledger,
		gateway:     gateway,
		notifier:    notifier,
		publisher:   publisher,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

type FinalizeResult struct {
	Order         *models.PaymentOrder
	PaymentStatus pesapal.PaymentStatus
	// Applied is true only for the one caller that moved the order to a
	// terminal status.
	Applied bool
	Boost   *models.BoostRecord
}

// Finalize asks Pesapal for the real status of order and, when it is final,
// moves the order out of PENDING/IPN_RECEIVED exactly once. The side effect of
// a completed order runs in the same transaction as that transition.
func (s *PaymentService) Finalize(ctx context.Context, order *models.PaymentOrder, source string) (*FinalizeResult, error) {
	return s.finalize(ctx, order, source, false)
}

// finalize with adopted set means order.ProviderTrackingID came from the
// request rather than from SubmitOrder.
func (s *PaymentService) finalize(ctx context.Context, order *models.PaymentOrder, source string, adopted bool) (*FinalizeResult, error) {
	if order.IsTerminal() {
		return &FinalizeResult{Order: order, PaymentStatus: pesapal.PaymentStatus(order.LastPaymentStatus)}, nil
	}
	trackingID := order.TrackingID()
	if trackingID == "" {
		return nil, fmt.Errorf("%w: order %s has no tracking id", domain.ErrInvalidInput, order.Reference)
	}
	st, err := s.gateway.GetStatus(ctx, trackingID)
	if err != nil {
		metrics.RecordGatewayError("get_status")
		return nil, fmt.Errorf("get status %s: %w", trackingID, err)
	}
	if err := checkStatusMatches(order, st, adopted); err != nil {
		return nil, err
	}

	var target string
	switch st.PaymentStatus {
	case pesapal.StatusCompleted:
		target = domain.OrderStatusCompleted
	case pesapal.StatusFailed, pesapal.StatusInvalid:
		target = domain.OrderStatusFailed
	default:
		if err := s.orders.RecordStatus(ctx, order.ID, string(st.PaymentStatus), st.Raw); err != nil {
			log.Printf("[PAYMENT] record status ref=%s: %v", order.Reference, err)
		}
		order.LastPaymentStatus = string(st.PaymentStatus)
		return &FinalizeResult{Order: order, PaymentStatus: st.PaymentStatus}, nil
	}

	now := s.now()
	fields := map[string]interface{}{
		"provider_tracking_id": trackingID,
		"last_payment_status":  string(st.PaymentStatus),
		"last_status_payload":  datatypes.JSON(st.Raw),
	}
	if target == domain.OrderStatusCompleted {
		fields["completed_at"] = now
	} else {
		reason := st.Description
		if reason == "" {
			reason = "payment_" + strings.ToLower(string(st.PaymentStatus))
		}
		fields["failure_reason"] = reason
	}

	res := &FinalizeResult{PaymentStatus: st.PaymentStatus}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		won, err := s.orders.WithTx(tx).Transition(ctx, order.ID, target, fields)
		if err != nil || !won {
			return err
		}
		res.Applied = true
		if target != domain.OrderStatusCompleted {
			return nil
		}
		res.Boost, err = s.applySideEffect(ctx, tx, order, now)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("finalize %s: %w", order.Reference, err)
	}

	fresh, err := s.orders.GetByReference(ctx, order.Reference)
	if err != nil {
		return nil, err
	}
	res.Order = fresh
	if res.Applied {
		s.afterFinalize(ctx, res, source)
	} else {
		log.Printf("[PAYMENT] %s already finalized as %s (%s)", order.Reference, fresh.Status, source)
	}
	return res, nil
}

// checkStatusMatches rejects a status that belongs to another order. An
// adopted tracking id must carry Pesapal's merchant reference, and a completed
// payment must be for the order's amount and currency.
func checkStatusMatches(order *models.PaymentOrder, st *pesapal.TransactionStatus, adopted bool) error {
	switch {
	case adopted && st.MerchantReference == "":
		return fmt.Errorf("%w: no merchant reference for adopted tracking id on %s", errTrackingMismatch, order.Reference)
	case st.MerchantReference != "" && st.MerchantReference != order.Reference:
		return fmt.Errorf("%w: pesapal reports %s for %s", errTrackingMismatch, st.MerchantReference, order.Reference)
	}
	if st.PaymentStatus != pesapal.StatusCompleted {
		return nil
	}
	switch {
	case adopted && st.Amount == 0:
		return fmt.Errorf("%w: no amount for adopted tracking id on %s", errTrackingMismatch, order.Reference)
	case st.Amount != 0 && math.Abs(st.Amount-float64(order.Amount)) > 0.005:
		return fmt.Errorf("%w: paid %.2f, order %s is %d", errTrackingMismatch, st.Amount, order.Reference, order.Amount)
	case st.Currency != "" && !strings.EqualFold(st.Currency, order.Currency):
		return fmt.Errorf("%w: paid in %s, order %s is %s", errTrackingMismatch, st.Currency, order.Reference, order.Currency)
	}
	return nil
}

// applySideEffect runs inside the finalize transaction. For a boost order the
// purchased credit is granted first; the boost itself runs in a savepoint so a
// post that cannot be boosted keeps the credit for later use.
func (s *PaymentService) applySideEffect(ctx context.Context, tx *gorm.DB, order *models.PaymentOrder, now time.Time) (*models.BoostRecord, error) {
	switch order.Kind {
	case domain.OrderKindVerification:
		return nil, s.profiles.WithTx(tx).MarkVerified(ctx, order.UserID, order.Reference, now)
	case domain.OrderKindBoost:
		if _, err := s.ledger.grantTx(ctx, tx, order.UserID, 1, domain.CreditReasonPurchase, order.Reference); err != nil {
			return nil, err
		}
		if order.TargetPostID == nil {
			return nil, nil
		}
		var boost *models.BoostRecord
		err := tx.Transaction(func(sp *gorm.DB) error {
			res, err := s.ledger.applyBoostTx(ctx, sp, order.UserID, BoostInput{
				PostID:    *order.TargetPostID,
				PostType:  order.TargetPostType,
				BoostType: order.BoostType,
				OrderRef:  order.Reference,
			})
			if err != nil {
				return err
			}
			boost = res.Boost
			return nil
		})
		switch {
		case err == nil:
			return boost, nil
		case errors.Is(err, domain.ErrAlreadyBoosted), errors.Is(err, domain.ErrForbidden), errors.Is(err, domain.ErrNotFound):
			log.Printf("[BOOST] order %s paid but post %s:%d not boosted (%v); credit kept", order.Reference, order.TargetPostType, *order.TargetPostID, err)
			return nil, nil
		default:
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: unknown order kind %q", domain.ErrInvalidInput, order.Kind)
}

func (s *PaymentService) afterFinalize(ctx context.Context, res *FinalizeResult, source string) {
	o := res.Order
	metrics.RecordOrderFinalized(o.Kind, o.Status, source)
	log.Printf("[PAYMENT] %s -> %s via %s (pesapal=%s)", o.Reference, o.Status, source, res.PaymentStatus)

	if res.Boost != nil {
		metrics.RecordBoost(res.Boost.PostType, res.Boost.BoostType)
	}

	if s.notifier != nil {
		var err error
		switch {
		case o.Status == domain.OrderStatusFailed:
			err = s.notifier.NotifyPaymentFailed(ctx, o)
		case o.Kind == domain.OrderKindVerification:
			if err = s.notifier.NotifyPaymentConfirmed(ctx, o); err == nil {
				err = s.notifier.NotifyProfileVerified(ctx, o.UserID)
			}
		default:
			if err = s.notifier.NotifyPaymentConfirmed(ctx, o); err == nil && res.Boost != nil {
				err = s.notifier.NotifyBoostActivated(ctx, res.Boost)
			}
		}
		if err != nil {
			log.Printf("[PAYMENT] notify user=%s ref=%s: %v", o.UserID, o.Reference, err)
		}
	}

	if s.audit != nil {
		meta, _ := json.Marshal(map[string]interface{}{
			"status":         o.Status,
			"payment_status": res.PaymentStatus,
			"source":         source,
			"amount":         o.Amount,
			"currency":       o.Currency,
		})
		userID := o.UserID
		if err := s.audit.Create(ctx, &models.AuditLog{
			UserID:     &userID,
			Action:     "payment." + strings.ToLower(o.Status),
			Resource:   "payment_order",
			ResourceID: o.Reference,
			Metadata:   string(meta),
		}); err != nil {
			log.Printf("[PAYMENT] audit ref=%s: %v", o.Reference, err)
		}
	}

	if s.publisher != nil {
		s.publisher.Publish(o.UserID, "order.updated", map[string]interface{}{
			"reference":     o.Reference,
			"kind":          o.Kind,
			"status":        o.Status,
			"paymentStatus": res.PaymentStatus,
		})
	}
}

// HandleRedirectCallback verifies the order behind a browser redirect and
// returns where to send the browser. It never reports success without a
// COMPLETED status from Pesapal.
func (s *PaymentService) HandleRedirectCallback(ctx context.Context, trackingID, reference string) string {
	if trackingID == "" || reference == "" {
		log.Printf("[PAYMENT callback] missing params tracking=%q ref=%q", trackingID, reference)
		return s.failedURL("reason", domain.ReasonMissingParams)
	}
	order, err := s.orders.GetByReference(ctx, reference)
	if errors.Is(err, domain.ErrNotFound) {
		log.Printf("[PAYMENT callback] unknown ref=%s", reference)
		return s.failedURL("reason", domain.ReasonOrderNotFound)
	}
	if err != nil {
		log.Printf("[PAYMENT callback] lookup ref=%s: %v", reference, err)
		return s.failedURL("reason", domain.ReasonServerError)
	}
	adopted := false
	switch stored := order.TrackingID(); {
	case stored == "":
		// tracking id was never saved; finalize checks it against Pesapal
		order.ProviderTrackingID = &trackingID
		adopted = true
	case stored != trackingID:
		log.Printf("[PAYMENT callback] tracking mismatch ref=%s got=%s want=%s", reference, trackingID, stored)
		return s.failedURL("reason", domain.ReasonVerificationFailed)
	}

	switch order.Status {
	case domain.OrderStatusCompleted:
		return s.successURL(order.Reference)
	case domain.OrderStatusFailed:
		return s.failedURL("status", domain.OrderStatusFailed)
	}

	res, err := s.finalize(ctx, order, SourceCallback, adopted)
	if err != nil {
		log.Printf("[PAYMENT callback] finalize ref=%s: %v", reference, err)
		if isGatewayError(err) {
			return s.failedURL("reason", domain.ReasonVerificationFailed)
		}
		return s.failedURL("reason", domain.ReasonServerError)
	}
	if res.Order.Status == domain.OrderStatusCompleted {
		return s.successURL(order.Reference)
	}
	status := string(res.PaymentStatus)
	if res.Order.Status == domain.OrderStatusFailed {
		status = domain.OrderStatusFailed
	}
	return s.failedURL("status", status)
}

func isGatewayError(err error) bool {
	var gwErr *pesapal.GatewayError
	var credErr *pesapal.CredentialsError
	return errors.As(err, &gwErr) || errors.As(err, &credErr) || errors.Is(err, errTrackingMismatch)
}

func (s *PaymentService) successURL(reference string) string {
	return s.frontendURL + "/payment/success?ref=" + url.QueryEscape(reference)
}

func (s *PaymentService) failedURL(key, value string) string {
	return s.frontendURL + "/payment/failed?" + key + "=" + url.QueryEscape(value)
}

type IPNInput struct {
	TrackingID       string
	Reference        string
	NotificationType string
	Payload          []byte
}

// IPNAck is the body Pesapal expects back from an IPN endpoint.
type IPNAck struct {
	OrderNotificationType  string `json:"orderNotificationType"`
	OrderTrackingID        string `json:"orderTrackingId"`
	OrderMerchantReference string `json:"orderMerchantReference"`
	Status                 int    `json:"status"`
}

// HandleIPN records the notification, marks the order IPN_RECEIVED and
// finalizes it through GetStatus. It always returns an ack; failures are only
// logged and kept on the IPN event.
func (s *PaymentService) HandleIPN(ctx context.Context, in IPNInput) IPNAck {
	ack := IPNAck{
		OrderNotificationType:  in.NotificationType,
		OrderTrackingID:        in.TrackingID,
		OrderMerchantReference: in.Reference,
		Status:                 200,
	}
	event := &models.IPNEvent{
		TrackingID:       in.TrackingID,
		Reference:        in.Reference,
		NotificationType: in.NotificationType,
		Status:           models.IPNEventReceived,
		Payload:          datatypes.JSON(in.Payload),
	}
	if err := s.ipnEvents.Create(ctx, event); err != nil {
		log.Printf("[IPN] could not record event tracking=%s: %v", in.TrackingID, err)
	}

	if err := s.handleIPN(ctx, in); err != nil {
		log.Printf("[IPN] tracking=%s ref=%s: %v", in.TrackingID, in.Reference, err)
		metrics.RecordIPN("failed")
		s.setEventOutcome(ctx, event, models.IPNEventHandleFailed, err.Error())
		return ack
	}
	metrics.RecordIPN("handled")
	s.setEventOutcome(ctx, event, models.IPNEventHandled, "")
	return ack
}

func (s *PaymentService) handleIPN(ctx context.Context, in IPNInput) error {
	if in.TrackingID == "" {
		return errors.New("missing OrderTrackingId")
	}
	adopted := false
	order, err := s.orders.GetByTrackingID(ctx, in.TrackingID)
	if errors.Is(err, domain.ErrNotFound) && in.Reference != "" {
		order, err = s.orders.GetByReference(ctx, in.Reference)
		if err == nil {
			if stored := order.TrackingID(); stored != "" && stored != in.TrackingID {
				return errTrackingMismatch
			}
			order.ProviderTrackingID = &in.TrackingID
			adopted = true
		}
	}
	if err != nil {
		return fmt.Errorf("order lookup: %w", err)
	}
	if order.IsTerminal() {
		return nil
	}

	marked, err := s.orders.MarkIPNReceived(ctx, order.ID, s.now())
	if err != nil {
		return fmt.Errorf("mark ipn received: %w", err)
	}
	if marked {
		order.Status = domain.OrderStatusIPNReceived
	}
	_, err = s.finalize(ctx, order, SourceIPN, adopted)
	return err
}

func (s *PaymentService) setEventOutcome(ctx context.Context, event *models.IPNEvent, status, errText string) {
	if event.ID == 0 {
		return
	}
	if err := s.ipnEvents.SetOutcome(ctx, event.ID, status, errText); err != nil {
		log.Printf("[IPN] could not update event %d: %v", event.ID, err)
	}
}

// Reverify lets an admin force a status check on one order.
func (s *PaymentService) Reverify(ctx context.Context, ac auth.AuthContext, reference string) (*FinalizeResult, error) {
	if !ac.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	order, err := s.orders.GetByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	return s.Finalize(ctx, order, SourceReconcile)
}
