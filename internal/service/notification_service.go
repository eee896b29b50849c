package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"nguvuhire/internal/models"
	"nguvuhire/internal/repository"
)

const (
	NotifPaymentConfirmed = "PAYMENT_CONFIRMED"
	NotifPaymentFailed    = "PAYMENT_FAILED"
	NotifProfileVerified  = "PROFILE_VERIFIED"
	NotifBoostActivated   = "BOOST_ACTIVATED"
)

type NotificationService struct {
	repo     *repository.NotificationRepository
	profiles *repository.ProfileRepository
	fcm      *FCMService
}

func NewNotificationService(repo *repository.NotificationRepository, profiles *repository.ProfileRepository, fcm *FCMService) *NotificationService {
	return &NotificationService{repo: repo, profiles: profiles, fcm: fcm}
}

func (s *NotificationService) Notify(ctx context.Context, userID, notifType, title, body string, data map[string]interface{}) error {
	var dataJSON string
	if data != nil {
		b, _ := json.Marshal(data)
		dataJSON = string(b)
	}
	err := s.repo.Create(ctx, &models.Notification{
		UserID: userID,
		Type:   notifType,
		Title:  title,
		Body:   body,
		Data:   dataJSON,
	})
	if err != nil {
		return err
	}
	s.sendPush(ctx, userID, notifType, title, body, data)
	return nil
}

func (s *NotificationService) List(ctx context.Context, userID string, limit, offset int) ([]models.Notification, error) {
	return s.repo.ListByUserID(ctx, userID, limit, offset)
}

func (s *NotificationService) MarkRead(ctx context.Context, userID string, id uint) error {
	return s.repo.MarkRead(ctx, id, userID)
}

func (s *NotificationService) sendPush(ctx context.Context, userID, notifType, title, body string, data map[string]interface{}) {
	if s.fcm == nil || s.profiles == nil {
		return
	}
	p, err := s.profiles.GetByUserID(ctx, userID)
	if err != nil || p.FCMToken == "" {
		return
	}
	if err := s.fcm.SendToUser(ctx, p.FCMToken, notifType, title, body, data); err != nil {
		log.Printf("[FCM] push to user=%s failed: %v", userID, err)
	}
}

func (s *NotificationService) NotifyPaymentConfirmed(ctx context.Context, o *models.PaymentOrder) error {
	return s.Notify(ctx, o.UserID, NotifPaymentConfirmed, "Payment confirmed",
		fmt.Sprintf("Your payment of %s %d was successful.", o.Currency, o.Amount),
		map[string]interface{}{"reference": o.Reference, "kind": o.Kind, "amount": o.Amount})
}

func (s *NotificationService) NotifyPaymentFailed(ctx context.Context, o *models.PaymentOrder) error {
	return s.Notify(ctx, o.UserID, NotifPaymentFailed, "Payment failed",
		"We could not confirm your payment. You have not been charged for this order.",
		map[string]interface{}{"reference": o.Reference, "kind": o.Kind})
}

func (s *NotificationService) NotifyProfileVerified(ctx context.Context, userID string) error {
	return s.Notify(ctx, userID, NotifProfileVerified, "Profile verified", "Your profile now shows the verified badge.", nil)
}

func (s *NotificationService) NotifyBoostActivated(ctx context.Context, b *models.BoostRecord) error {
	return s.Notify(ctx, b.UserID, NotifBoostActivated, "Boost active",
		fmt.Sprintf("Your %s is boosted until %s.", b.PostType, b.BoostEnd.Format("2 Jan 2006")),
		map[string]interface{}{"post_id": b.PostID, "post_type": b.PostType, "boost_end": b.BoostEnd.Format(time.RFC3339)})
}
