package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/finsight-hub/finsight-progression/pkg/timeutil"
)

func TestStreakFirstActivity(t *testing.T) {
	s := NewStreak()
	update := s.RecordActivity(timeutil.Date(2026, 3, 10))

	assert.True(t, update.Changed)
	assert.False(t, update.Broken)
	assert.Equal(t, 1, s.Current)
	assert.Equal(t, 1, s.Best)
}

func TestStreakSameDayNoOp(t *testing.T) {
	s := NewStreak()
	s.RecordActivity(timeutil.Date(2026, 3, 10))

	update := s.RecordActivity(timeutil.Date(2026, 3, 10).Add(11 * time.Hour)) // later same day
	assert.False(t, update.Changed)
	assert.Equal(t, 1, s.Current)
}

func TestStreakConsecutiveDayIncrements(t *testing.T) {
	s := NewStreak()
	s.RecordActivity(timeutil.Date(2026, 3, 10))

	update := s.RecordActivity(timeutil.Date(2026, 3, 11))
	assert.True(t, update.Changed)
	assert.False(t, update.Broken)
	assert.Equal(t, 2, s.Current)
	assert.Equal(t, 2, s.Best)
}

func TestStreakGapResetsToOne(t *testing.T) {
	s := NewStreak()
	s.RecordActivity(timeutil.Date(2026, 3, 10))
	s.RecordActivity(timeutil.Date(2026, 3, 11))
	s.RecordActivity(timeutil.Date(2026, 3, 12))

	update := s.RecordActivity(timeutil.Date(2026, 3, 20))
	assert.True(t, update.Changed)
	assert.True(t, update.Broken)
	assert.Equal(t, 3, update.PreviousStreak)
	assert.Equal(t, 7, update.DaysMissed)
	assert.Equal(t, 1, s.Current) // reset to 1, not 0
	assert.Equal(t, 3, s.Best)    // best survives the break
}

func TestStreakOutOfOrderActivityIgnored(t *testing.T) {
	s := NewStreak()
	s.RecordActivity(timeutil.Date(2026, 3, 10))

	update := s.RecordActivity(timeutil.Date(2026, 3, 8))
	assert.False(t, update.Changed)
	assert.Equal(t, 1, s.Current)
}

func TestStreakIsActive(t *testing.T) {
	s := NewStreak()
	assert.False(t, s.IsActive(timeutil.Date(2026, 3, 12)))

	s.RecordActivity(timeutil.Date(2026, 3, 10))
	assert.True(t, s.IsActive(timeutil.Date(2026, 3, 11)))
	assert.False(t, s.IsActive(timeutil.Date(2026, 3, 13)))
}
