package reminder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTierOrdering(t *testing.T) {
	assert.Equal(t, 0, TierNone.Rank())
	assert.Equal(t, 1, TierGentle.Rank())
	assert.Equal(t, 4, TierFinal.Rank())

	assert.Equal(t, TierGentle, TierNone.Next())
	assert.Equal(t, TierUrgent, TierStandard.Next())
	assert.Equal(t, TierNone, TierFinal.Next())

	assert.Equal(t, "none", TierNone.String())

	tier, err := ParseTier("urgent")
	require.NoError(t, err)
	assert.Equal(t, TierUrgent, tier)
	_, err = ParseTier("panic")
	assert.Error(t, err)
}

func TestSentLog(t *testing.T) {
	d1 := time.Date(2026, 10, 10, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2026, 10, 12, 8, 0, 0, 0, time.UTC)
	log := NewSentLog([]*Log{
		{CycleID: 1, Tier: TierGentle, MemberID: 5, SentOn: d2},
		{CycleID: 1, Tier: TierGentle, MemberID: 6, SentOn: d1},
		{CycleID: 2, Tier: TierFinal, MemberID: 5, SentOn: d1},
	})

	last, ok := log.LastSent(1, TierGentle)
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC), last)

	_, ok = log.LastSent(1, TierFinal)
	assert.False(t, ok)

	t.Run("per member", func(t *testing.T) {
		last, ok := log.LastSentTo(1, TierGentle, 6)
		require.True(t, ok)
		assert.Equal(t, d1, last)

		_, ok = log.LastSentTo(1, TierGentle, 7)
		assert.False(t, ok)
		_, ok = log.LastSentTo(2, TierFinal, 6)
		assert.False(t, ok)
	})

	_, ok = NoHistory{}.LastSent(1, TierGentle)
	assert.False(t, ok)
}
