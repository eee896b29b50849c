package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"nguvuhire/internal/auth"
	"nguvuhire/internal/domain"
	"nguvuhire/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedger_GetBalanceCreatesFreeAllotmentOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := f.ledger.GetBalance(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, b.CreditsAvailable)
	assert.Equal(t, 0, b.CreditsUsed)

	_, err = f.ledger.GetBalance(ctx, "user-1")
	require.NoError(t, err)

	history, err := f.ledger.History(ctx, "user-1", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.CreditReasonFreeAllotment, history[0].Reason)
}

func TestLedger_ConcurrentDebitOneSingleCredit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.ledger.GetBalance(ctx, "user-1")
	require.NoError(t, err)

	const workers = 10
	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		ok, rejected int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.ledger.DebitOne(ctx, "user-1", "race")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, domain.ErrInsufficientCredits):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, workers-1, rejected)
	b := f.balance(t, "user-1")
	assert.Equal(t, 0, b.CreditsAvailable)
	assert.Equal(t, 1, b.CreditsUsed)
}

func TestLedger_GrantAddsHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := f.ledger.Grant(ctx, "user-1", 2, domain.CreditReasonPurchase, "boost-abc")
	require.NoError(t, err)
	assert.Equal(t, 3, b.CreditsAvailable)

	_, err = f.ledger.Grant(ctx, "user-1", 0, domain.CreditReasonPurchase, "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	history, err := f.ledger.History(ctx, "user-1", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "boost-abc", history[0].Reference)
	assert.Equal(t, 3, history[0].AvailableAfter)
}

func TestLedger_ApplyBoostStandardScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	postID := f.createJob(t, employer.UserID)
	before := time.Now().UTC()

	res, err := f.ledger.ApplyBoost(ctx, employer, BoostInput{PostID: postID, PostType: domain.PostTypeJob, BoostType: domain.BoostStandard})
	require.NoError(t, err)

	assert.Equal(t, 0, res.CreditsRemaining)
	assert.True(t, res.Boost.IsActive)
	assert.WithinDuration(t, before.Add(7*24*time.Hour), res.Boost.BoostEnd, time.Minute)
	assert.Equal(t, 0, f.balance(t, employer.UserID).CreditsAvailable)

	_, err = f.ledger.ApplyBoost(ctx, employer, BoostInput{PostID: postID, PostType: domain.PostTypeJob, BoostType: domain.BoostStandard})
	assert.ErrorIs(t, err, domain.ErrAlreadyBoosted)
}

func TestLedger_ApplyBoostDurations(t *testing.T) {
	cases := map[string]time.Duration{
		domain.BoostStandard: 7 * 24 * time.Hour,
		domain.BoostPremium:  14 * 24 * time.Hour,
		domain.BoostUltra:    30 * 24 * time.Hour,
		"":                   7 * 24 * time.Hour,
	}
	for boostType, want := range cases {
		t.Run("type_"+boostType, func(t *testing.T) {
			f := newFixture(t)
			postID := f.createJob(t, employer.UserID)
			res, err := f.ledger.ApplyBoost(context.Background(), employer, BoostInput{PostID: postID, PostType: domain.PostTypeJob, BoostType: boostType})
			require.NoError(t, err)
			assert.Equal(t, want, res.Boost.BoostEnd.Sub(res.Boost.BoostStart))
		})
	}
}

func TestLedger_AlreadyBoostedRegardlessOfBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	postID := f.createJob(t, employer.UserID)
	_, err := f.ledger.Grant(ctx, employer.UserID, 4, domain.CreditReasonPurchase, "seed")
	require.NoError(t, err)

	now := time.Now().UTC()
	require.NoError(t, f.boosts.Create(ctx, &models.BoostRecord{
		PostID: postID, PostType: domain.PostTypeJob, UserID: employer.UserID,
		BoostType: domain.BoostPremium, CreditsUsed: 1, BoostStart: now, BoostEnd: now.Add(time.Hour),
	}))

	_, err = f.ledger.ApplyBoost(ctx, employer, BoostInput{PostID: postID, PostType: domain.PostTypeJob})
	assert.ErrorIs(t, err, domain.ErrAlreadyBoosted)
	assert.Equal(t, 5, f.balance(t, employer.UserID).CreditsAvailable)
}

func TestLedger_NonOwnerForbidden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	postID := f.createJob(t, "someone-else")
	_, err := f.ledger.Grant(ctx, employer.UserID, 3, domain.CreditReasonPurchase, "seed")
	require.NoError(t, err)

	_, err = f.ledger.ApplyBoost(ctx, employer, BoostInput{PostID: postID, PostType: domain.PostTypeJob})
	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.Equal(t, 4, f.balance(t, employer.UserID).CreditsAvailable)
}

func TestLedger_ApplyBoostErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.ApplyBoost(ctx, employer, BoostInput{PostID: 404, PostType: domain.PostTypeJob})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.ledger.ApplyBoost(ctx, employer, BoostInput{PostID: 1, PostType: "gig"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	// no credits at all
	f.ledger.freeAllotment = 0
	postID := f.createJob(t, employer.UserID)
	_, err = f.ledger.ApplyBoost(ctx, auth.AuthContext{UserID: employer.UserID}, BoostInput{PostID: postID, PostType: domain.PostTypeJob})
	assert.ErrorIs(t, err, domain.ErrInsufficientCredits)
	_, err = f.boosts.GetActive(ctx, domain.PostTypeJob, postID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLedger_FailedInsertRestoresCredit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	postID := f.createJob(t, employer.UserID)
	_, err := f.ledger.GetBalance(ctx, employer.UserID)
	require.NoError(t, err)

	// An inactive row still holding the active key makes the insert collide
	// after the debit has already happened.
	key := models.BoostActiveKey(domain.PostTypeJob, postID)
	now := time.Now().UTC()
	require.NoError(t, f.db.Create(&models.BoostRecord{
		PostID: postID, PostType: domain.PostTypeJob, UserID: employer.UserID, BoostType: domain.BoostStandard,
		CreditsUsed: 1, BoostStart: now, BoostEnd: now.Add(time.Hour), ActiveKey: &key,
	}).Error)
	require.NoError(t, f.db.Model(&models.BoostRecord{}).Where("post_id = ?", postID).Update("is_active", false).Error)

	_, err = f.ledger.ApplyBoost(ctx, employer, BoostInput{PostID: postID, PostType: domain.PostTypeJob})
	assert.ErrorIs(t, err, domain.ErrAlreadyBoosted)

	b := f.balance(t, employer.UserID)
	assert.Equal(t, 1, b.CreditsAvailable)
	assert.Equal(t, 0, b.CreditsUsed)
	history, err := f.ledger.History(ctx, employer.UserID, 10)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestLedger_LapsedBoostCanBeRenewed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	postID := f.createJob(t, employer.UserID)
	_, err := f.ledger.Grant(ctx, employer.UserID, 1, domain.CreditReasonPurchase, "seed")
	require.NoError(t, err)

	past := time.Now().UTC().Add(-10 * 24 * time.Hour)
	require.NoError(t, f.boosts.Create(ctx, &models.BoostRecord{
		PostID: postID, PostType: domain.PostTypeJob, UserID: employer.UserID,
		BoostType: domain.BoostStandard, CreditsUsed: 1, BoostStart: past, BoostEnd: past.Add(7 * 24 * time.Hour),
	}))

	res, err := f.ledger.ApplyBoost(ctx, employer, BoostInput{PostID: postID, PostType: domain.PostTypeJob, BoostType: domain.BoostUltra})
	require.NoError(t, err)
	assert.Equal(t, domain.BoostUltra, res.Boost.BoostType)
	assert.Equal(t, 1, res.CreditsRemaining)
}
