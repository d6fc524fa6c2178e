/**
 * @description
 * The Account entity: the local mirror of one (debtor, creditor) account at
 * the accounting authority, including the debtor's own root account. Updates
 * are ordered by the authority's (last_change_ts, last_change_seqnum) logical
 * clock, never by delivery order. Also holds the maintenance bookkeeping the
 * scanner relies on (mute debounce, per-kind last-attempt timestamps).
 */

package domain

import (
	"math"
	"time"
)

// Account status bits reported by the accounting authority.
const (
	AccountStatusDeletedFlag                 int32 = 1 << 0
	AccountStatusEstablishedInterestRateFlag int32 = 1 << 1
	AccountStatusOverflownFlag               int32 = 1 << 2
)

// Account config bits.
const (
	AccountConfigScheduledForDeletionFlag int32 = 1 << 0
)

type Account struct {
	DebtorID     int64
	CreditorID   int64
	CreationDate time.Time

	LastChangeSeqnum         int32
	LastChangeTS             time.Time
	Principal                int64
	Interest                 float64
	InterestRate             float64
	LastInterestRateChangeTS time.Time
	LastOutgoingTransferDate time.Time
	NegligibleAmount         float64
	ConfigFlags              int32
	StatusFlags              int32

	LastHeartbeatTS time.Time

	// Maintenance bookkeeping, owned by this agent, never mirrored.
	IsMuted                  bool
	LastMaintenanceRequestTS time.Time
	LastDeletionAttemptTS    time.Time
	LastCapitalizationTS     time.Time
}

func (a *Account) IsRoot() bool {
	return a.CreditorID == RootCreditorID
}

func (a *Account) IsDeleted() bool {
	return a.StatusFlags&AccountStatusDeletedFlag != 0
}

func (a *Account) IsOverflown() bool {
	return a.StatusFlags&AccountStatusOverflownFlag != 0
}

func (a *Account) IsScheduledForDeletion() bool {
	return a.ConfigFlags&AccountConfigScheduledForDeletionFlag != 0
}

func (a *Account) HasEstablishedInterestRate() bool {
	return a.StatusFlags&AccountStatusEstablishedInterestRateFlag != 0
}

// IsNewerEvent reports whether the incoming (changeTS, changeSeqnum) pair is
// strictly newer than the stored one — lexicographic on timestamp, ties
// broken by seqnum with int32 wraparound comparison.
func (a *Account) IsNewerEvent(changeTS time.Time, changeSeqnum int32) bool {
	if changeTS.After(a.LastChangeTS) {
		return true
	}
	if changeTS.Before(a.LastChangeTS) {
		return false
	}
	return seqnumAfter(changeSeqnum, a.LastChangeSeqnum)
}

// seqnumAfter compares serial numbers that are allowed to wrap around the
// int32 range: a is after b when the wrapped difference is positive.
func seqnumAfter(a, b int32) bool {
	return a-b > 0
}

// ProjectedBalance returns the account's current balance, with the interest
// accrued since the last change compounded continuously at the account's own
// rate. Negative balances do not accrue.
func (a *Account) ProjectedBalance(now time.Time) float64 {
	balance := float64(a.Principal) + a.Interest
	if balance > 0 {
		elapsed := now.Sub(a.LastChangeTS).Seconds()
		if elapsed > 0 {
			k := math.Log(1+a.InterestRate/100) / secondsPerYear
			balance *= math.Exp(k * elapsed)
		}
	}
	return balance
}

// AccumulatedInterest returns the projected balance minus the principal,
// clamped to the int64 range.
func (a *Account) AccumulatedInterest(now time.Time) int64 {
	accumulated := a.ProjectedBalance(now) - float64(a.Principal)
	if accumulated >= float64(MaxInt64) {
		return MaxInt64
	}
	if accumulated <= float64(MinInt64) {
		return MinInt64
	}
	return int64(accumulated)
}
