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

func newBoost(postID uint, start time.Time, d time.Duration) *models.BoostRecord {
	return &models.BoostRecord{
		PostID:      postID,
		PostType:    domain.PostTypeJob,
		UserID:      "user-1",
		BoostType:   domain.BoostStandard,
		CreditsUsed: 1,
		BoostStart:  start,
		BoostEnd:    start.Add(d),
	}
}

func TestBoostRepository_OneActivePerPost(t *testing.T) {
	repo := NewBoostRepository(testutil.NewDB(t))
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, repo.Create(ctx, newBoost(7, now, 7*24*time.Hour)))
	assert.ErrorIs(t, repo.Create(ctx, newBoost(7, now, 7*24*time.Hour)), domain.ErrAlreadyBoosted)

	// same id, other post type
	other := newBoost(7, now, time.Hour)
	other.PostType = domain.PostTypeAvailability
	assert.NoError(t, repo.Create(ctx, other))

	active, err := repo.GetActive(ctx, domain.PostTypeJob, 7)
	require.NoError(t, err)
	assert.Equal(t, "job:7", *active.ActiveKey)
}

func TestBoostRepository_ExpireLapsedFreesPost(t *testing.T) {
	repo := NewBoostRepository(testutil.NewDB(t))
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, repo.Create(ctx, newBoost(3, now.Add(-8*24*time.Hour), 7*24*time.Hour)))
	require.NoError(t, repo.ExpireLapsed(ctx, domain.PostTypeJob, 3, now))

	_, err := repo.GetActive(ctx, domain.PostTypeJob, 3)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, repo.Create(ctx, newBoost(3, now, 7*24*time.Hour)))
}

func TestBoostRepository_ExpireAll(t *testing.T) {
	repo := NewBoostRepository(testutil.NewDB(t))
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, repo.Create(ctx, newBoost(1, now.Add(-48*time.Hour), 24*time.Hour)))
	require.NoError(t, repo.Create(ctx, newBoost(2, now.Add(-48*time.Hour), 24*time.Hour)))
	require.NoError(t, repo.Create(ctx, newBoost(3, now, 24*time.Hour)))

	n, err := repo.ExpireAll(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	list, err := repo.ListActiveByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, uint(3), list[0].PostID)
}
