/**
 * @description
 * The transfer coordinator: client-facing operations on running transfers
 * (initiate, cancel, delete, inspect) and the handlers for the authority's
 * prepared/rejected/finalized signals. Initiation is idempotent on the
 * client-chosen UUID, and every signal handler tolerates redelivery and
 * reordering.
 */

package app

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/issuemint/debtors-agent/internal/domain"
	"github.com/issuemint/debtors-agent/internal/store"
)

// InitiateTransfer starts a new issuing transfer from the debtor's root
// account to the recipient. Re-submitting the exact same transfer (same UUID,
// same parameters) reports ErrTransferExists; a different transfer under the
// same UUID reports ErrTransfersConflict.
func (s *Service) InitiateTransfer(
	ctx context.Context,
	debtorID int64,
	transferUUID uuid.UUID,
	recipient string,
	amount int64,
	noteFormat, note string,
) (*domain.RunningTransfer, error) {
	var transfer *domain.RunningTransfer
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		d, err := getActiveDebtor(ctx, tx, debtorID, true)
		if err != nil {
			return err
		}
		if amount <= 0 || len(note) > int(domain.TransferNoteMaxBytes) {
			return ErrConflictingPolicy
		}

		existing, err := tx.GetTransfer(ctx, debtorID, transferUUID, false)
		if err != nil && !errors.Is(err, store.ErrTransferNotFound) {
			return err
		}
		if existing != nil {
			if existing.MatchesParams(recipient, amount, noteFormat, note) {
				return ErrTransferExists
			}
			return ErrTransfersConflict
		}

		now := s.now()
		if err := s.throttleActions(d, now); err != nil {
			return err
		}
		if d.RunningTransfersCount >= s.cfg.MaxRunningTransfers {
			return ErrTooManyRunningTransfers
		}

		t := &domain.RunningTransfer{
			DebtorID:           debtorID,
			TransferUUID:       transferUUID,
			Recipient:          recipient,
			Amount:             amount,
			TransferNoteFormat: noteFormat,
			TransferNote:       note,
			StartedAt:          now,
		}
		if err := tx.CreateTransfer(ctx, t); err != nil {
			if errors.Is(err, store.ErrTransfersConflict) {
				return ErrTransfersConflict
			}
			return err
		}
		d.RunningTransfersCount++
		if err := tx.UpdateDebtor(ctx, d); err != nil {
			return err
		}

		err = s.appendSignal(ctx, tx, domain.SigPrepareTransfer, rkPrepareTransfer, domain.PrepareTransferSignal{
			Type:                 domain.SigPrepareTransfer,
			CoordinatorType:      domain.CoordinatorTypeIssuing,
			CoordinatorID:        debtorID,
			CoordinatorRequestID: t.CoordinatorRequestID,
			DebtorID:             debtorID,
			CreditorID:           domain.RootCreditorID,
			Recipient:            recipient,
			MinLockedAmount:      amount,
			MaxLockedAmount:      amount,
			MinAccountBalance:    d.MinAccountBalance(now),
			MaxCommitDelay:       1<<31 - 1,
			TS:                   now,
		}, now)
		if err != nil {
			return err
		}
		transfer = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return transfer, nil
}

// CancelTransfer finalizes a not-yet-settled transfer as canceled by the
// sender. Once the authority has settled the transfer, cancellation is no
// longer possible.
func (s *Service) CancelTransfer(ctx context.Context, debtorID int64, transferUUID uuid.UUID) (*domain.RunningTransfer, error) {
	var transfer *domain.RunningTransfer
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		t, err := tx.GetTransfer(ctx, debtorID, transferUUID, true)
		if err != nil {
			if errors.Is(err, store.ErrTransferNotFound) {
				return ErrTransferDoesNotExist
			}
			return err
		}
		if t.IsFinalized() {
			if t.ErrorCode != nil && *t.ErrorCode == domain.SCCanceledBySender {
				transfer = t
				return nil
			}
			return ErrForbiddenTransferCancellation
		}
		if t.IsSettled() {
			return ErrForbiddenTransferCancellation
		}
		now := s.now()
		code := domain.SCCanceledBySender
		t.FinalizedAt = &now
		t.ErrorCode = &code
		t.CommittedAmount = 0
		if err := tx.UpdateTransfer(ctx, t); err != nil {
			return err
		}
		transfer = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return transfer, nil
}

// DeleteTransfer removes a running transfer record, freeing its UUID and one
// slot of the debtor's running-transfers quota. Deleting a non-finalized
// transfer does not cancel it at the authority; any late signal for it is
// ignored by the match-by-id rule.
func (s *Service) DeleteTransfer(ctx context.Context, debtorID int64, transferUUID uuid.UUID) error {
	return s.store.WithTx(ctx, func(tx store.Tx) error {
		d, err := tx.GetDebtor(ctx, debtorID, true)
		if err != nil {
			if errors.Is(err, store.ErrDebtorNotFound) {
				return ErrTransferDoesNotExist
			}
			return err
		}
		deleted, err := tx.DeleteTransfer(ctx, debtorID, transferUUID)
		if err != nil {
			return err
		}
		if !deleted {
			return ErrTransferDoesNotExist
		}
		if d.RunningTransfersCount > 0 {
			d.RunningTransfersCount--
		}
		return tx.UpdateDebtor(ctx, d)
	})
}

// GetTransfer returns a running transfer by its UUID.
func (s *Service) GetTransfer(ctx context.Context, debtorID int64, transferUUID uuid.UUID) (*domain.RunningTransfer, error) {
	var transfer *domain.RunningTransfer
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		transfer, err = tx.GetTransfer(ctx, debtorID, transferUUID, false)
		return err
	})
	if err != nil {
		if errors.Is(err, store.ErrTransferNotFound) {
			return nil, ErrTransferDoesNotExist
		}
		return nil, err
	}
	return transfer, nil
}

// ListTransferUUIDs returns the UUIDs of the debtor's running transfers.
func (s *Service) ListTransferUUIDs(ctx context.Context, debtorID int64) ([]uuid.UUID, error) {
	var uuids []uuid.UUID
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		uuids, err = tx.ListTransferUUIDs(ctx, debtorID)
		return err
	})
	return uuids, err
}

// ProcessPreparedTransferSignal reacts to the authority having locked funds
// for one of our prepare requests. A matching, still-running transfer is
// settled and committed; a transfer the client canceled in the meantime (or a
// duplicate settlement) is dismissed so the lock gets released.
func (s *Service) ProcessPreparedTransferSignal(ctx context.Context, m domain.PreparedTransferMessage) error {
	if m.CoordinatorType != domain.CoordinatorTypeIssuing {
		return nil
	}
	return s.store.WithTx(ctx, func(tx store.Tx) error {
		t, err := tx.GetTransferByCoordinatorRequestID(ctx, m.CoordinatorID, m.CoordinatorRequestID, true)
		if err != nil {
			if errors.Is(err, store.ErrTransferNotFound) {
				return nil
			}
			return err
		}
		matches := t.DebtorID == m.DebtorID &&
			m.CreditorID == domain.RootCreditorID &&
			t.Recipient == m.Recipient &&
			t.Amount <= m.LockedAmount
		if !matches {
			return nil
		}

		now := s.now()
		if t.IsSettled() && *t.TransferID != m.TransferID {
			// A different settlement already won; dismiss this one.
			return s.emitFinalizeTransfer(ctx, tx, t, m.TransferID, 0, "", "", now)
		}
		if !t.IsSettled() {
			transferID := m.TransferID
			t.TransferID = &transferID
			if err := tx.UpdateTransfer(ctx, t); err != nil {
				return err
			}
		}
		if t.IsFinalized() {
			// Canceled or rejected before the settlement arrived. The
			// settlement is still recorded, so the authority holds no
			// orphaned lock, but the commit amount is zero.
			return s.emitFinalizeTransfer(ctx, tx, t, m.TransferID, 0, "", "", now)
		}
		// Redeliveries re-emit the same commit; finalization is idempotent
		// at the authority.
		return s.emitFinalizeTransfer(ctx, tx, t, m.TransferID, t.Amount, t.TransferNoteFormat, t.TransferNote, now)
	})
}

func (s *Service) emitFinalizeTransfer(
	ctx context.Context,
	tx store.Tx,
	t *domain.RunningTransfer,
	transferID, committedAmount int64,
	noteFormat, note string,
	now time.Time,
) error {
	return s.appendSignal(ctx, tx, domain.SigFinalizeTransfer, rkFinalizeTransfer, domain.FinalizeTransferSignal{
		Type:                 domain.SigFinalizeTransfer,
		DebtorID:             t.DebtorID,
		CreditorID:           domain.RootCreditorID,
		TransferID:           transferID,
		CoordinatorType:      domain.CoordinatorTypeIssuing,
		CoordinatorID:        t.DebtorID,
		CoordinatorRequestID: t.CoordinatorRequestID,
		CommittedAmount:      committedAmount,
		TransferNoteFormat:   noteFormat,
		TransferNote:         note,
		TS:                   now,
	}, now)
}

// ProcessRejectedTransferSignal finalizes a transfer the authority refused to
// prepare. Settled or already finalized transfers ignore the rejection.
func (s *Service) ProcessRejectedTransferSignal(ctx context.Context, m domain.RejectedTransferMessage) error {
	if m.CoordinatorType != domain.CoordinatorTypeIssuing {
		return nil
	}
	return s.store.WithTx(ctx, func(tx store.Tx) error {
		t, err := tx.GetTransferByCoordinatorRequestID(ctx, m.CoordinatorID, m.CoordinatorRequestID, true)
		if err != nil {
			if errors.Is(err, store.ErrTransferNotFound) {
				return nil
			}
			return err
		}
		if t.DebtorID != m.DebtorID || m.CreditorID != domain.RootCreditorID {
			return nil
		}
		if t.IsFinalized() || t.IsSettled() {
			return nil
		}
		now := s.now()
		code := m.StatusCode
		if code == domain.SCOK {
			code = domain.SCUnexpectedError
		}
		locked := m.TotalLockedAmount
		t.FinalizedAt = &now
		t.ErrorCode = &code
		t.CommittedAmount = 0
		t.TotalLockedAmount = &locked
		return tx.UpdateTransfer(ctx, t)
	})
}

// ProcessFinalizedTransferSignal records the authority's terminal outcome for
// a transfer. A finalize that outran its own prepare still counts: the
// transfer is settled and finalized in one step.
func (s *Service) ProcessFinalizedTransferSignal(ctx context.Context, m domain.FinalizedTransferMessage) error {
	if m.CoordinatorType != domain.CoordinatorTypeIssuing {
		return nil
	}
	return s.store.WithTx(ctx, func(tx store.Tx) error {
		t, err := tx.GetTransferByCoordinatorRequestID(ctx, m.CoordinatorID, m.CoordinatorRequestID, true)
		if err != nil {
			if errors.Is(err, store.ErrTransferNotFound) {
				return nil
			}
			return err
		}
		if t.DebtorID != m.DebtorID || m.CreditorID != domain.RootCreditorID {
			return nil
		}
		if t.IsFinalized() {
			return nil
		}
		if t.IsSettled() && *t.TransferID != m.TransferID {
			// Settled under a different transfer id; not our outcome.
			return nil
		}
		now := s.now()
		if !t.IsSettled() {
			// The finalize outran its prepare; honor it as terminal anyway.
			transferID := m.TransferID
			t.TransferID = &transferID
		}
		t.FinalizedAt = &now
		t.CommittedAmount = m.CommittedAmount
		locked := m.TotalLockedAmount
		t.TotalLockedAmount = &locked
		if m.StatusCode == domain.SCOK {
			t.ErrorCode = nil
		} else {
			code := m.StatusCode
			t.ErrorCode = &code
		}
		return tx.UpdateTransfer(ctx, t)
	})
}
