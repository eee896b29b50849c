package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBoostDurationDays(t *testing.T) {
	assert.Equal(t, 7, BoostDurationDays(BoostStandard))
	assert.Equal(t, 14, BoostDurationDays(BoostPremium))
	assert.Equal(t, 30, BoostDurationDays(BoostUltra))
	assert.Equal(t, 7, BoostDurationDays("mega"))
	assert.Equal(t, 7, BoostDurationDays(""))
	assert.Equal(t, 14*24*time.Hour, BoostDuration(BoostPremium))
}

func TestValidators(t *testing.T) {
	assert.True(t, ValidPostType(PostTypeJob))
	assert.True(t, ValidPostType(PostTypeAvailability))
	assert.False(t, ValidPostType("gig"))
	assert.True(t, ValidOrderKind(OrderKindBoost))
	assert.False(t, ValidOrderKind("subscription"))
}
