package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(n int) time.Time {
	return time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func TestAddDropsDominatedLimits(t *testing.T) {
	s := NewLowerLimitSequence(
		LowerLimit[int64]{Value: 100, Cutoff: day(10)},
	)
	// Weaker and earlier than the existing limit: absorbed entirely.
	s.Add(LowerLimit[int64]{Value: 50, Cutoff: day(5)})
	require.Equal(t, 1, s.Len())
	assert.Equal(t, int64(100), s.Limits()[0].Value)

	// Stronger and later: replaces the existing limit.
	s.Add(LowerLimit[int64]{Value: 200, Cutoff: day(20)})
	require.Equal(t, 1, s.Len())
	assert.Equal(t, int64(200), s.Limits()[0].Value)
	assert.Equal(t, day(20), s.Limits()[0].Cutoff)
}

func TestAddKeepsNonDominatedLimits(t *testing.T) {
	var s LowerLimitSequence[int64]
	// A strong short-lived floor and a weak long-lived one cannot absorb
	// each other.
	s.Add(LowerLimit[int64]{Value: 200, Cutoff: day(5)})
	s.Add(LowerLimit[int64]{Value: 100, Cutoff: day(30)})
	require.Equal(t, 2, s.Len())

	limits := s.Limits()
	assert.Equal(t, int64(200), limits[0].Value)
	assert.Equal(t, int64(100), limits[1].Value)
}

func TestAddEqualValueLaterCutoffWins(t *testing.T) {
	var s LowerLimitSequence[int64]
	s.Add(LowerLimit[int64]{Value: 100, Cutoff: day(10)})
	s.Add(LowerLimit[int64]{Value: 100, Cutoff: day(20)})
	require.Equal(t, 1, s.Len())
	assert.Equal(t, day(20), s.Limits()[0].Cutoff)
}

// TestAddPreservesFloorFunction checks that compaction never changes the
// enforced floor: for every probe date and value, the compacted sequence and
// the raw, uncompacted set of limits must agree.
func TestAddPreservesFloorFunction(t *testing.T) {
	raw := []LowerLimit[float64]{
		{Value: 5, Cutoff: day(3)},
		{Value: -10, Cutoff: day(40)},
		{Value: 5, Cutoff: day(12)},
		{Value: 30, Cutoff: day(7)},
		{Value: 30, Cutoff: day(7)},
		{Value: 12.5, Cutoff: day(25)},
		{Value: -50, Cutoff: day(60)},
		{Value: 30, Cutoff: day(2)},
	}
	var s LowerLimitSequence[float64]
	for _, l := range raw {
		s.Add(l)
	}
	assert.Less(t, s.Len(), len(raw))

	rawFloor := func(date time.Time, value float64) float64 {
		for _, l := range raw {
			if !l.Cutoff.Before(date) && value < l.Value {
				value = l.Value
			}
		}
		return value
	}
	for probeDay := 0; probeDay <= 70; probeDay += 5 {
		date := day(probeDay)
		current := s.Current(date)
		for _, value := range []float64{-100, -20, 0, 4, 10, 29, 31, 100} {
			assert.Equal(t, rawFloor(date, value), current.ApplyToValue(value),
				"date=%v value=%v", date, value)
		}
	}
}

func TestAddAllEnforcesCap(t *testing.T) {
	var s LowerLimitSequence[int64]
	// Descending values with ascending cutoffs never compact.
	incoming := []LowerLimit[int64]{
		{Value: 300, Cutoff: day(1)},
		{Value: 200, Cutoff: day(2)},
		{Value: 100, Cutoff: day(3)},
	}
	require.NoError(t, s.AddAll(incoming, 3))
	require.Equal(t, 3, s.Len())

	err := s.AddAll([]LowerLimit[int64]{{Value: 50, Cutoff: day(4)}}, 3)
	assert.ErrorIs(t, err, ErrTooLongLimitSequence)

	// A dominating limit still fits: it collapses the whole sequence.
	require.NoError(t, s.AddAll([]LowerLimit[int64]{{Value: 400, Cutoff: day(9)}}, 3))
	assert.Equal(t, 1, s.Len())
}

func TestCurrentDropsExpiredLimits(t *testing.T) {
	s := NewLowerLimitSequence(
		LowerLimit[int64]{Value: 200, Cutoff: day(5)},
		LowerLimit[int64]{Value: 100, Cutoff: day(30)},
	)
	current := s.Current(day(6))
	require.Equal(t, 1, current.Len())
	assert.Equal(t, int64(100), current.Limits()[0].Value)

	// A limit is still effectual on its own cutoff date.
	onCutoff := s.Current(day(5))
	assert.Equal(t, 2, onCutoff.Len())
	afterAll := s.Current(day(31))
	assert.Equal(t, 0, afterAll.Len())
}

func TestApplyToValue(t *testing.T) {
	s := NewLowerLimitSequence(
		LowerLimit[int64]{Value: 200, Cutoff: day(5)},
		LowerLimit[int64]{Value: 100, Cutoff: day(30)},
	)
	assert.Equal(t, int64(200), s.ApplyToValue(-1000))
	assert.Equal(t, int64(500), s.ApplyToValue(500))

	var empty LowerLimitSequence[int64]
	assert.Equal(t, int64(-7), empty.ApplyToValue(-7))
}
