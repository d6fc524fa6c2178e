/**
 * @description
 * The Debtor entity: one row per issuing currency managed by this agent.
 * Holds the activation lifecycle, the mirrored root-account balance, the
 * debtor-configured policy (interest rate target plus lower-limit
 * sequences), the optimistic-concurrency config document, and the rolling
 * action/document counters used for rate limiting.
 */

package domain

import "time"

// Debtor status bits.
const (
	DebtorStatusActivatedFlag   int16 = 1 << 0
	DebtorStatusDeactivatedFlag int16 = 1 << 1
)

// Debtor config bits.
const (
	DebtorConfigScheduledForDeletionFlag int32 = 1 << 0
)

type Debtor struct {
	DebtorID      int64
	StatusFlags   int16
	ReservationID *int64
	CreatedAt     time.Time
	DeactivatedAt *time.Time

	// Balance mirrors the authority's root-account principal. A nil value
	// means the mirrored principal has overflown the int64 range.
	Balance             *int64
	BalanceLastUpdateTS time.Time

	InterestRateTarget      float64
	BalanceLowerLimits      BalanceLimits
	InterestRateLowerLimits InterestRateLimits

	RunningTransfersCount int32
	ActionsCount          int32
	ActionsResetAt        time.Time
	DocumentsCount        int32
	DocumentsResetAt      time.Time

	HasServerAccount     bool
	AccountID            string
	TransferNoteMaxBytes int32

	ConfigData           string
	ConfigFlags          int32
	ConfigError          *string
	ConfigLatestUpdateID int64
	ConfigLastUpdateTS   time.Time
	IsConfigEffectual    bool
	LastConfigTS         time.Time
	LastConfigSeqnum     int32

	DebtorInfoIRI *string
}

func (d *Debtor) IsActivated() bool {
	return d.StatusFlags&DebtorStatusActivatedFlag != 0
}

func (d *Debtor) IsDeactivated() bool {
	return d.StatusFlags&DebtorStatusDeactivatedFlag != 0
}

func (d *Debtor) IsActive() bool {
	return d.IsActivated() && !d.IsDeactivated()
}

// Activate consumes the debtor's reservation. Activation is monotonic.
func (d *Debtor) Activate() {
	d.StatusFlags |= DebtorStatusActivatedFlag
	d.ReservationID = nil
}

// Deactivate marks the debtor terminally deactivated and schedules its root
// account for deletion at the authority. Idempotent: the deactivation
// timestamp is set only once.
func (d *Debtor) Deactivate(now time.Time) {
	d.StatusFlags |= DebtorStatusDeactivatedFlag
	if d.DeactivatedAt == nil {
		t := now
		d.DeactivatedAt = &t
	}
	d.IsConfigEffectual = true
	d.ConfigFlags = DebtorConfigScheduledForDeletionFlag
	d.ConfigData = ""
	d.ConfigError = nil
	d.DebtorInfoIRI = nil
}

// InterestRate returns the effective interest rate on the given date: the
// configured target raised by the still-effectual lower limits, then clamped
// to the protocol floor and ceiling.
func (d *Debtor) InterestRate(date time.Time) float64 {
	limits := d.InterestRateLowerLimits.Current(date)
	rate := limits.ApplyToValue(d.InterestRateTarget)
	if rate < InterestRateFloor {
		rate = InterestRateFloor
	}
	if rate > InterestRateCeil {
		rate = InterestRateCeil
	}
	return rate
}

// MinAccountBalance returns the smallest balance the debtor's policy allows
// on the given date. Used as the safety bound in prepare-transfer requests.
func (d *Debtor) MinAccountBalance(date time.Time) int64 {
	limits := d.BalanceLowerLimits.Current(date)
	return limits.ApplyToValue(int64(MinInt64))
}

// NodeConfig is the singleton shard configuration: the agent is responsible
// only for debtor IDs within [MinDebtorID, MaxDebtorID].
type NodeConfig struct {
	MinDebtorID int64
	MaxDebtorID int64
}

func (c *NodeConfig) Contains(debtorID int64) bool {
	return c.MinDebtorID <= debtorID && debtorID <= c.MaxDebtorID
}

// Document is an opaque blob saved by a debtor, kept available indefinitely.
type Document struct {
	DebtorID    int64
	DocumentID  int64
	ContentType string
	Content     []byte
	InsertedAt  time.Time
}
