package service

import (
	"context"
	"errors"
	"time"

	"nguvuhire/internal/auth"
	"nguvuhire/internal/domain"
	"nguvuhire/internal/models"
	"nguvuhire/internal/repository"
)

type SubscriptionService struct {
	subs   *repository.SubscriptionRepository
	ledger *Ledger
}

func NewSubscriptionService(subs *repository.SubscriptionRepository, ledger *Ledger) *SubscriptionService {
	return &SubscriptionService{subs: subs, ledger: ledger}
}

type SubscriptionStatus struct {
	Subscription *models.UserSubscription `json:"subscription"`
	Credits      *models.CreditBalance    `json:"credits"`
}

// Status returns the caller's current plan (nil when none) and credit balance.
func (s *SubscriptionService) Status(ctx context.Context, ac auth.AuthContext) (*SubscriptionStatus, error) {
	sub, err := s.subs.GetCurrent(ctx, ac.UserID, time.Now().UTC())
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	credits, err := s.ledger.GetBalance(ctx, ac.UserID)
	if err != nil {
		return nil, err
	}
	return &SubscriptionStatus{Subscription: sub, Credits: credits}, nil
}
