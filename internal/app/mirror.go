/**
 * @description
 * The ledger mirror: applies account-update, account-purge, and
 * rejected-config signals from the accounting authority to the local account
 * mirrors and to the debtor rows. Signals may arrive out of order and more
 * than once; the authority's (creation_date, last_change_ts, last_change_seqnum)
 * logical clock decides what is applied, never the delivery order.
 */

package app

import (
	"context"
	"errors"
	"time"

	"github.com/issuemint/debtors-agent/internal/domain"
	"github.com/issuemint/debtors-agent/internal/store"
)

// ProcessAccountUpdateSignal reconciles one account-update heartbeat into the
// local mirror.
func (s *Service) ProcessAccountUpdateSignal(ctx context.Context, m domain.AccountUpdateMessage) error {
	now := s.now()
	if now.Sub(m.TS) > time.Duration(m.TTL)*time.Second {
		// The message outlived its TTL; a fresher heartbeat will follow.
		return nil
	}
	return s.store.WithTx(ctx, func(tx store.Tx) error {
		a, err := tx.GetAccount(ctx, m.DebtorID, m.CreditorID, true)
		if err != nil && !errors.Is(err, store.ErrAccountNotFound) {
			return err
		}

		switch {
		case a == nil:
			a = &domain.Account{
				DebtorID:                 m.DebtorID,
				CreditorID:               m.CreditorID,
				CreationDate:             m.CreationDate,
				LastMaintenanceRequestTS: domain.TS0,
				LastDeletionAttemptTS:    domain.TS0,
				LastCapitalizationTS:     m.TS,
			}
			applyAccountUpdate(a, m)
			if err := tx.CreateAccount(ctx, a); err != nil {
				return err
			}
		case isNewerAccountEvent(a, m):
			applyAccountUpdate(a, m)
			a.IsMuted = false
			if err := tx.UpdateAccount(ctx, a); err != nil {
				return err
			}
		default:
			// Logically stale, but still proof of life.
			a.LastHeartbeatTS = laterTime(a.LastHeartbeatTS, m.TS)
			return tx.UpdateAccount(ctx, a)
		}

		if m.CreditorID == domain.RootCreditorID {
			return s.reconcileRootAccount(ctx, tx, m)
		}
		return nil
	})
}

// applyAccountUpdate copies the mirrored fields from the signal.
func applyAccountUpdate(a *domain.Account, m domain.AccountUpdateMessage) {
	if m.CreationDate.After(a.CreationDate) {
		// The account was purged and recreated at the authority.
		a.CreationDate = m.CreationDate
		a.LastCapitalizationTS = m.TS
	}
	a.LastChangeTS = m.LastChangeTS
	a.LastChangeSeqnum = m.LastChangeSeqnum
	a.Principal = m.Principal
	a.Interest = m.Interest
	a.InterestRate = m.InterestRate
	a.LastInterestRateChangeTS = m.LastInterestRateChangeTS
	a.LastOutgoingTransferDate = m.LastOutgoingTransferDate
	a.NegligibleAmount = m.NegligibleAmount
	a.ConfigFlags = m.ConfigFlags
	a.StatusFlags = m.StatusFlags
	a.LastHeartbeatTS = laterTime(a.LastHeartbeatTS, m.TS)
}

// isNewerAccountEvent orders signals by (creation_date, last_change_ts,
// last_change_seqnum): a later creation date always wins, because it means
// the authority's account was purged and recreated.
func isNewerAccountEvent(a *domain.Account, m domain.AccountUpdateMessage) bool {
	if m.CreationDate.After(a.CreationDate) {
		return true
	}
	if m.CreationDate.Before(a.CreationDate) {
		return false
	}
	return a.IsNewerEvent(m.LastChangeTS, m.LastChangeSeqnum)
}

// reconcileRootAccount folds a root-account update into the debtor row: the
// mirrored balance, the server-account presence, and the config confirmation
// handshake.
func (s *Service) reconcileRootAccount(ctx context.Context, tx store.Tx, m domain.AccountUpdateMessage) error {
	d, err := tx.GetDebtor(ctx, m.DebtorID, true)
	if err != nil {
		if errors.Is(err, store.ErrDebtorNotFound) {
			return nil
		}
		return err
	}
	if !d.IsActivated() {
		return nil
	}

	if m.TS.After(d.BalanceLastUpdateTS) {
		if m.StatusFlags&domain.AccountStatusOverflownFlag != 0 {
			d.Balance = nil
		} else {
			principal := m.Principal
			d.Balance = &principal
		}
		d.BalanceLastUpdateTS = m.TS
	}
	d.HasServerAccount = m.StatusFlags&domain.AccountStatusDeletedFlag == 0
	d.AccountID = m.AccountID
	d.TransferNoteMaxBytes = m.TransferNoteMaxBytes

	if !d.IsConfigEffectual &&
		m.LastConfigTS.Equal(d.LastConfigTS) &&
		m.LastConfigSeqnum == d.LastConfigSeqnum &&
		m.ConfigFlags == d.ConfigFlags &&
		m.ConfigData == d.ConfigData {
		d.IsConfigEffectual = true
		d.ConfigError = nil
	}
	return tx.UpdateDebtor(ctx, d)
}

// ProcessAccountPurgeSignal removes a purged account from the mirror. The
// creation date guards against purging a younger reincarnation of the
// account.
func (s *Service) ProcessAccountPurgeSignal(ctx context.Context, m domain.AccountPurgeMessage) error {
	return s.store.WithTx(ctx, func(tx store.Tx) error {
		a, err := tx.GetAccount(ctx, m.DebtorID, m.CreditorID, true)
		if err != nil {
			if errors.Is(err, store.ErrAccountNotFound) {
				return nil
			}
			return err
		}
		if a.CreationDate.After(m.CreationDate) {
			return nil
		}
		if err := tx.DeleteAccount(ctx, m.DebtorID, m.CreditorID); err != nil {
			return err
		}
		if m.CreditorID == domain.RootCreditorID {
			return s.cascadeRootPurge(ctx, tx, m.DebtorID)
		}
		return nil
	})
}

// cascadeRootPurge handles the purge of a debtor's root account: the currency
// no longer exists at the authority, so the debtor is deactivated (idempotent
// under repeated purges) and its running transfers are discarded.
func (s *Service) cascadeRootPurge(ctx context.Context, tx store.Tx, debtorID int64) error {
	d, err := tx.GetDebtor(ctx, debtorID, true)
	if err != nil {
		if errors.Is(err, store.ErrDebtorNotFound) {
			return nil
		}
		return err
	}
	if !d.IsActivated() {
		return nil
	}
	d.HasServerAccount = false
	d.AccountID = ""
	d.TransferNoteMaxBytes = 0
	if !d.IsDeactivated() {
		d.Deactivate(s.now())
	}
	if _, err := tx.DeleteDebtorTransfers(ctx, debtorID); err != nil {
		return err
	}
	d.RunningTransfersCount = 0
	return tx.UpdateDebtor(ctx, d)
}

// ProcessRejectedConfigSignal records a configuration rejection on the
// debtor, provided the rejection refers to the currently pending config.
func (s *Service) ProcessRejectedConfigSignal(ctx context.Context, m domain.RejectedConfigMessage) error {
	if m.CreditorID != domain.RootCreditorID {
		return nil
	}
	return s.store.WithTx(ctx, func(tx store.Tx) error {
		d, err := tx.GetDebtor(ctx, m.DebtorID, true)
		if err != nil {
			if errors.Is(err, store.ErrDebtorNotFound) {
				return nil
			}
			return err
		}
		if d.IsConfigEffectual ||
			!m.ConfigTS.Equal(d.LastConfigTS) ||
			m.ConfigSeqnum != d.LastConfigSeqnum ||
			m.ConfigFlags != d.ConfigFlags ||
			m.ConfigData != d.ConfigData {
			return nil
		}
		code := m.RejectionCode
		d.ConfigError = &code
		return tx.UpdateDebtor(ctx, d)
	})
}

func laterTime(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
