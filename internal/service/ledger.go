package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"nguvuhire/internal/auth"
	"nguvuhire/internal/domain"
	"nguvuhire/internal/metrics"
	"nguvuhire/internal/models"
	"nguvuhire/internal/repository"

	"gorm.io/gorm"
)

// Ledger owns boost credit balances and boost activation.
type Ledger struct {
	db            *gorm.DB
	credits       *repository.CreditRepository
	boosts        *repository.BoostRepository
	posts         *repository.PostRepository
	freeAllotment int
	now           func() time.Time
}

func NewLedger(db *gorm.DB, credits *repository.CreditRepository, boosts *repository.BoostRepository, posts *repository.PostRepository, freeAllotment int) *Ledger {
	if freeAllotment < 0 {
		freeAllotment = 0
	}
	return &Ledger{
		db:            db,
		credits:       credits,
		boosts:        boosts,
		posts:         posts,
		freeAllotment: freeAllotment,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

type BoostInput struct {
	PostID    uint
	PostType  string
	BoostType string
	OrderRef  string // set when the boost comes from a paid order
}

type BoostResult struct {
	Boost            *models.BoostRecord
	CreditsRemaining int
}

// GetBalance returns the user's balance, creating it with the free allotment
// on first access.
func (l *Ledger) GetBalance(ctx context.Context, userID string) (*models.CreditBalance, error) {
	var bal *models.CreditBalance
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		credits := l.credits.WithTx(tx)
		if err := l.ensureBalance(ctx, credits, userID); err != nil {
			return err
		}
		var err error
		bal, err = credits.GetByUserID(ctx, userID)
		return err
	})
	return bal, err
}

func (l *Ledger) History(ctx context.Context, userID string, limit int) ([]models.CreditTransaction, error) {
	return l.credits.ListTransactions(ctx, userID, limit)
}

// DebitOne spends one credit. Concurrent callers race on a single conditional
// update; losers get domain.ErrInsufficientCredits.
func (l *Ledger) DebitOne(ctx context.Context, userID string, reference string) (*models.CreditBalance, error) {
	var bal *models.CreditBalance
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		bal, err = l.debitOneTx(ctx, tx, userID, reference)
		return err
	})
	if err != nil {
		return nil, err
	}
	return bal, nil
}

// Grant adds n credits and records why.
func (l *Ledger) Grant(ctx context.Context, userID string, n int, reason, reference string) (*models.CreditBalance, error) {
	var bal *models.CreditBalance
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		bal, err = l.grantTx(ctx, tx, userID, n, reason, reference)
		return err
	})
	return bal, err
}

// ApplyBoost checks ownership, then expires lapsed boosts, rejects a post that
// is still boosted, debits one credit and inserts the boost, all in one
// transaction. Any failure leaves the balance untouched.
func (l *Ledger) ApplyBoost(ctx context.Context, ac auth.AuthContext, in BoostInput) (*BoostResult, error) {
	if !domain.ValidPostType(in.PostType) || in.PostID == 0 {
		return nil, fmt.Errorf("%w: postId and postType (job|availability) are required", domain.ErrInvalidInput)
	}
	var res *BoostResult
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		res, err = l.applyBoostTx(ctx, tx, ac.UserID, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordBoost(in.PostType, res.Boost.BoostType)
	log.Printf("[BOOST] user=%s %s:%d %s until %s credits_left=%d", ac.UserID, in.PostType, in.PostID, res.Boost.BoostType, res.Boost.BoostEnd.Format(time.RFC3339), res.CreditsRemaining)
	return res, nil
}

func (l *Ledger) applyBoostTx(ctx context.Context, tx *gorm.DB, userID string, in BoostInput) (*BoostResult, error) {
	owner, err := l.posts.WithTx(tx).GetOwner(ctx, in.PostType, in.PostID)
	if err != nil {
		return nil, err
	}
	if owner != userID {
		return nil, domain.ErrForbidden
	}

	now := l.now()
	boosts := l.boosts.WithTx(tx)
	if err := boosts.ExpireLapsed(ctx, in.PostType, in.PostID, now); err != nil {
		return nil, err
	}
	if _, err := boosts.GetActive(ctx, in.PostType, in.PostID); err == nil {
		return nil, domain.ErrAlreadyBoosted
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	boostType := in.BoostType
	if boostType == "" {
		boostType = domain.BoostStandard
	}
	b := &models.BoostRecord{
		PostID:      in.PostID,
		PostType:    in.PostType,
		UserID:      userID,
		BoostType:   boostType,
		CreditsUsed: 1,
		BoostStart:  now,
		BoostEnd:    now.Add(domain.BoostDuration(boostType)),
		OrderRef:    in.OrderRef,
	}
	bal, err := l.debitOneTx(ctx, tx, userID, models.BoostActiveKey(in.PostType, in.PostID))
	if err != nil {
		return nil, err
	}
	if err := boosts.Create(ctx, b); err != nil {
		return nil, err
	}
	return &BoostResult{Boost: b, CreditsRemaining: bal.CreditsAvailable}, nil
}

func (l *Ledger) ensureBalance(ctx context.Context, credits *repository.CreditRepository, userID string) error {
	created, err := credits.CreateIfMissing(ctx, userID, l.freeAllotment)
	if err != nil {
		return err
	}
	if created && l.freeAllotment > 0 {
		return credits.RecordTransaction(ctx, &models.CreditTransaction{
			UserID:         userID,
			Delta:          l.freeAllotment,
			Reason:         domain.CreditReasonFreeAllotment,
			AvailableAfter: l.freeAllotment,
		})
	}
	return nil
}

func (l *Ledger) debitOneTx(ctx context.Context, tx *gorm.DB, userID, reference string) (*models.CreditBalance, error) {
	credits := l.credits.WithTx(tx)
	if err := l.ensureBalance(ctx, credits, userID); err != nil {
		return nil, err
	}
	if err := credits.DebitOne(ctx, userID); err != nil {
		if errors.Is(err, domain.ErrInsufficientCredits) {
			metrics.RecordCreditDebit("insufficient")
		}
		return nil, err
	}
	metrics.RecordCreditDebit("ok")
	bal, err := credits.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	err = credits.RecordTransaction(ctx, &models.CreditTransaction{
		UserID:         userID,
		Delta:          -1,
		Reason:         domain.CreditReasonBoost,
		Reference:      reference,
		AvailableAfter: bal.CreditsAvailable,
	})
	return bal, err
}

func (l *Ledger) grantTx(ctx context.Context, tx *gorm.DB, userID string, n int, reason, reference string) (*models.CreditBalance, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: grant must be positive", domain.ErrInvalidInput)
	}
	credits := l.credits.WithTx(tx)
	if err := l.ensureBalance(ctx, credits, userID); err != nil {
		return nil, err
	}
	if err := credits.Grant(ctx, userID, n); err != nil {
		return nil, err
	}
	bal, err := credits.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	err = credits.RecordTransaction(ctx, &models.CreditTransaction{
		UserID:         userID,
		Delta:          n,
		Reason:         reason,
		Reference:      reference,
		AvailableAfter: bal.CreditsAvailable,
	})
	return bal, err
}
