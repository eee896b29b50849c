package repository

import (
	"context"
	"testing"
	"time"

	"nguvuhire/internal/domain"
	"nguvuhire/internal/models"
	"nguvuhire/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostRepository_GetOwner(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	job := models.Job{Title: "Driver", CreatedBy: "employer-1"}
	require.NoError(t, db.Create(&job).Error)
	avail := models.AvailabilityPost{Title: "Plumber", CreatedBy: "seeker-1"}
	require.NoError(t, db.Create(&avail).Error)

	owner, err := repo.GetOwner(ctx, domain.PostTypeJob, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "employer-1", owner)

	owner, err = repo.GetOwner(ctx, domain.PostTypeAvailability, avail.ID)
	require.NoError(t, err)
	assert.Equal(t, "seeker-1", owner)

	_, err = repo.GetOwner(ctx, domain.PostTypeJob, 999)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = repo.GetOwner(ctx, "gig", job.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestProfileRepository_MarkVerified(t *testing.T) {
	repo := NewProfileRepository(testutil.NewDB(t))
	ctx := context.Background()
	at := time.Now().UTC()

	require.NoError(t, repo.MarkVerified(ctx, "user-1", "verification-1", at))
	require.NoError(t, repo.MarkVerified(ctx, "user-1", "verification-2", at))

	p, err := repo.GetByUserID(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, p.IsVerified)
	assert.Equal(t, "verification-2", p.VerificationRef)
}

func TestSubscriptionRepository_GetCurrent(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewSubscriptionRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	plan := models.SubscriptionPlan{Name: "Pro", Price: 500, Currency: "KES", BoostCredits: 5, DurationDays: 30, IsActive: true}
	require.NoError(t, db.Create(&plan).Error)
	require.NoError(t, db.Create(&models.UserSubscription{UserID: "user-1", PlanID: plan.ID, Status: "active", StartsAt: now.Add(-time.Hour), EndsAt: now.Add(24 * time.Hour)}).Error)
	require.NoError(t, db.Create(&models.UserSubscription{UserID: "user-2", PlanID: plan.ID, Status: "active", StartsAt: now.Add(-48 * time.Hour), EndsAt: now.Add(-time.Hour)}).Error)

	sub, err := repo.GetCurrent(ctx, "user-1", now)
	require.NoError(t, err)
	assert.Equal(t, "Pro", sub.Plan.Name)

	_, err = repo.GetCurrent(ctx, "user-2", now)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
