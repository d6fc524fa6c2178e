package domain

import "time"

// Protocol-wide numeric bounds and well-known values shared by all
// components. These mirror the values fixed by the ledger protocol and
// must not be made configurable.
const (
	MinInt64 = -1 << 63
	MaxInt64 = 1<<63 - 1

	// RootCreditorID is the reserved creditor ID of the debtor's own
	// account with the accounting authority.
	RootCreditorID int64 = 0

	// CoordinatorTypeIssuing tags every transfer coordinated by this
	// agent. Signals carrying a different coordinator type are not ours.
	CoordinatorTypeIssuing = "issuing"

	InterestRateFloor = -50.0
	InterestRateCeil  = 100.0

	TransferNoteMaxBytes = 500
	ConfigDataMaxBytes   = 2000

	// HugeNegligibleAmount is sent in configure-account requests so that
	// the authority never considers the root account negligible.
	HugeNegligibleAmount = 1e30

	secondsPerYear = 365.25 * 24 * 60 * 60
)

// Transfer status codes defined by the protocol.
const (
	SCOK                          = "OK"
	SCUnexpectedError             = "UNEXPECTED_ERROR"
	SCInsufficientAvailableAmount = "INSUFFICIENT_AVAILABLE_AMOUNT"
	SCCanceledBySender            = "CANCELED_BY_THE_SENDER"
)

// TS0 is the epoch used as the default value for protocol logical clocks.
var TS0 = time.Unix(0, 0).UTC()
