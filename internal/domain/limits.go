/**
 * @description
 * The policy limit engine: a compacted, cutoff-ordered sequence of numeric
 * floors. A debtor attaches two of these sequences to its policy — an int64
 * one for the account balance and a float64 one for the interest rate — so
 * the engine is generic over the value type. It is pure: no storage, no I/O.
 */

package domain

import (
	"errors"
	"sort"
	"time"
)

// ErrTooLongLimitSequence is returned when a compacted sequence would exceed
// the configured maximum number of limits.
var ErrTooLongLimitSequence = errors.New("too long limit sequence")

// LimitValue constrains the numeric types a lower limit can floor.
type LimitValue interface {
	~int64 | ~float64
}

// LowerLimit is a floor that must hold until (and not after) Cutoff.
type LowerLimit[T LimitValue] struct {
	Value  T
	Cutoff time.Time
}

// LowerLimitSequence holds lower limits ordered ascending by cutoff date.
// The zero value is an empty, usable sequence.
type LowerLimitSequence[T LimitValue] struct {
	limits []LowerLimit[T]
}

// BalanceLimits floors the account balance.
type BalanceLimits = LowerLimitSequence[int64]

// InterestRateLimits floors the interest rate.
type InterestRateLimits = LowerLimitSequence[float64]

func NewLowerLimitSequence[T LimitValue](limits ...LowerLimit[T]) LowerLimitSequence[T] {
	s := LowerLimitSequence[T]{limits: append([]LowerLimit[T](nil), limits...)}
	s.sort()
	return s
}

func (s *LowerLimitSequence[T]) Len() int { return len(s.limits) }

// Limits returns a copy of the underlying limits, ordered by cutoff.
func (s *LowerLimitSequence[T]) Limits() []LowerLimit[T] {
	return append([]LowerLimit[T](nil), s.limits...)
}

func (s *LowerLimitSequence[T]) sort() {
	sort.SliceStable(s.limits, func(i, j int) bool {
		return s.limits[i].Cutoff.Before(s.limits[j].Cutoff)
	})
}

// Add inserts a limit and compacts the sequence. Each elimination pass drops
// every limit the candidate dominates (value at least as restrictive, cutoff
// at least as late — equal-restrictiveness ties are eliminated too, so the
// later cutoff wins), re-sorts by cutoff, then scans the sorted sequence for
// a limit that in turn dominates an earlier one; if found, the scan restarts
// with it as the new candidate. Every pass strictly shrinks the sequence or
// leaves it stable, so the loop terminates.
func (s *LowerLimitSequence[T]) Add(limit LowerLimit[T]) {
	candidate := &limit
	for candidate != nil {
		s.applyEliminator(*candidate)
		s.sort()
		candidate = s.findEliminator()
	}
}

func (s *LowerLimitSequence[T]) applyEliminator(e LowerLimit[T]) {
	kept := s.limits[:0]
	for _, l := range s.limits {
		if l.Value > e.Value || l.Cutoff.After(e.Cutoff) {
			kept = append(kept, l)
		}
	}
	s.limits = append(kept, e)
}

func (s *LowerLimitSequence[T]) findEliminator() *LowerLimit[T] {
	for i := 1; i < len(s.limits); i++ {
		if s.limits[i].Value >= s.limits[i-1].Value {
			return &s.limits[i]
		}
	}
	return nil
}

// AddAll inserts a batch of limits, deferring the length check until every
// item has been applied. Each insertion can only shrink the sequence beyond
// the sum of its inputs, so a cheap pre-check on the incoming count fails
// fast before doing any work.
func (s *LowerLimitSequence[T]) AddAll(limits []LowerLimit[T], maxCount int) error {
	if len(limits) > maxCount {
		return ErrTooLongLimitSequence
	}
	for _, l := range limits {
		s.Add(l)
	}
	if len(s.limits) > maxCount {
		return ErrTooLongLimitSequence
	}
	return nil
}

// Current returns a new sequence containing only the limits still effectual
// on the given date.
func (s *LowerLimitSequence[T]) Current(date time.Time) LowerLimitSequence[T] {
	var out LowerLimitSequence[T]
	for _, l := range s.limits {
		if !l.Cutoff.Before(date) {
			out.limits = append(out.limits, l)
		}
	}
	return out
}

// ApplyToValue applies every limit to the value, returning a possibly bigger
// value.
func (s *LowerLimitSequence[T]) ApplyToValue(value T) T {
	for _, l := range s.limits {
		if value < l.Value {
			value = l.Value
		}
	}
	return value
}
