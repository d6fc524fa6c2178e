/**
 * @description
 * The RunningTransfer entity: one row per client-chosen (debtor, UUID) pair,
 * driving the prepare/commit/reject protocol with the accounting authority.
 * A transfer is *settled* once the authority assigns it a transfer ID, and
 * *finalized* once a terminal outcome (commit, reject, or client cancel) has
 * been recorded.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

type RunningTransfer struct {
	DebtorID     int64
	TransferUUID uuid.UUID

	Recipient          string
	Amount             int64
	TransferNoteFormat string
	TransferNote       string
	StartedAt          time.Time

	// CoordinatorRequestID correlates protocol signals with this transfer.
	// Assigned from a dedicated, per-shard monotonic sequence on insert.
	CoordinatorRequestID int64

	// TransferID is assigned by the authority when the transfer gets
	// prepared. A non-nil value marks the transfer settled.
	TransferID *int64

	FinalizedAt       *time.Time
	ErrorCode         *string
	CommittedAmount   int64
	TotalLockedAmount *int64
}

func (t *RunningTransfer) IsSettled() bool {
	return t.TransferID != nil
}

func (t *RunningTransfer) IsFinalized() bool {
	return t.FinalizedAt != nil
}

func (t *RunningTransfer) IsSuccessful() bool {
	return t.IsFinalized() && t.ErrorCode == nil
}

// MatchesParams reports whether a re-submission with these parameters is the
// same logical transfer (idempotent re-create) or a conflicting one.
func (t *RunningTransfer) MatchesParams(recipient string, amount int64, noteFormat, note string) bool {
	return t.Recipient == recipient &&
		t.Amount == amount &&
		t.TransferNoteFormat == noteFormat &&
		t.TransferNote == note
}
