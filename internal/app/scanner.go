/**
 * @description
 * The maintenance scanner: periodic batched sweeps over the account, debtor,
 * and running-transfer tables. The accounts sweep purges dead accounts and
 * applies four prioritized checks (negative-balance zero-out, scheduled
 * deletion, interest capitalization, interest-rate correction), emitting at
 * most one corrective signal per account per pass and muting the account
 * while the correction is in flight. The debtors sweep reclaims stale
 * reservations and long-deactivated debtors and flags never-confirmed
 * configs. The transfers sweep prunes finalized transfers past retention.
 *
 * Batches claim their rows with FOR UPDATE SKIP LOCKED, so overlapping
 * scanner processes never double-act.
 */

package app

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/issuemint/debtors-agent/internal/domain"
	"github.com/issuemint/debtors-agent/internal/store"
)

// configErrorNotEffectual marks configs that were never confirmed by the
// authority within the allowed window. Advisory only.
const configErrorNotEffectual = "CONFIGURATION_IS_NOT_EFFECTUAL"

type Scanner struct {
	svc    *Service
	logger *slog.Logger
}

func NewScanner(svc *Service, logger *slog.Logger) *Scanner {
	return &Scanner{svc: svc, logger: logger}
}

func (sc *Scanner) batchPause() {
	if sc.svc.cfg.ScanBatchSleepMillis > 0 {
		time.Sleep(time.Duration(sc.svc.cfg.ScanBatchSleepMillis) * time.Millisecond)
	}
}

// ScanAccounts sweeps the whole account table once, in primary-key order.
func (sc *Scanner) ScanAccounts(ctx context.Context) error {
	cfg := sc.svc.cfg
	// Inclusive cursor: the very first key (MinInt64, MinInt64) is scanned
	// too; the cursor is advanced past the last examined key between batches.
	fromDebtorID := int64(domain.MinInt64)
	fromCreditorID := int64(domain.MinInt64)
	var examined, emitted, purged int

	for {
		var batchLen int
		err := sc.svc.store.WithTx(ctx, func(tx store.Tx) error {
			accounts, err := tx.ListAccountsFrom(ctx, fromDebtorID, fromCreditorID, cfg.ScanBatchSize)
			if err != nil {
				return err
			}
			batchLen = len(accounts)
			now := sc.svc.now()

			// The batch is ordered by (debtor_id, creditor_id), so the
			// owning debtor row can be reused across consecutive accounts.
			var debtor *domain.Debtor
			var debtorID int64
			haveDebtor := false

			for _, a := range accounts {
				fromDebtorID, fromCreditorID = a.DebtorID, a.CreditorID
				examined++

				dead := a.LastHeartbeatTS.Before(now.Add(-time.Duration(cfg.AccountAbandonDays) * 24 * time.Hour))
				if dead {
					if err := tx.DeleteAccount(ctx, a.DebtorID, a.CreditorID); err != nil {
						return err
					}
					if a.IsRoot() {
						if err := sc.svc.cascadeRootPurge(ctx, tx, a.DebtorID); err != nil {
							return err
						}
					}
					purged++
					continue
				}
				if a.IsRoot() || a.IsDeleted() {
					continue
				}
				muteDeadline := a.LastMaintenanceRequestTS.Add(time.Duration(cfg.MuteHours) * time.Hour)
				if a.IsMuted && now.Before(muteDeadline) {
					continue
				}

				if !haveDebtor || debtorID != a.DebtorID {
					debtorID = a.DebtorID
					debtor = nil
					d, err := tx.GetDebtor(ctx, a.DebtorID, false)
					if err != nil && !errors.Is(err, store.ErrDebtorNotFound) {
						return err
					}
					if err == nil && d.IsActive() {
						debtor = d
					}
					haveDebtor = true
				}

				acted, err := sc.maintainAccount(ctx, tx, a, debtor, now)
				if err != nil {
					return err
				}
				if acted {
					emitted++
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
		scannedRowsTotal.WithLabelValues("account").Add(float64(batchLen))
		if batchLen < cfg.ScanBatchSize {
			break
		}
		if fromCreditorID == domain.MaxInt64 {
			if fromDebtorID == domain.MaxInt64 {
				break
			}
			fromDebtorID++
			fromCreditorID = domain.MinInt64
		} else {
			fromCreditorID++
		}
		sc.batchPause()
	}

	sc.logger.Info("accounts sweep finished",
		slog.Int("examined", examined),
		slog.Int("signals", emitted),
		slog.Int("purged", purged))
	return nil
}

// maintainAccount applies the four checks in strict priority order, emitting
// at most one corrective signal and muting the account when it does.
func (sc *Scanner) maintainAccount(ctx context.Context, tx store.Tx, a *domain.Account, debtor *domain.Debtor, now time.Time) (bool, error) {
	cfg := sc.svc.cfg
	projected := a.ProjectedBalance(now)

	// 1. Negative-balance zero-out.
	if projected < 0 &&
		a.LastOutgoingTransferDate.Before(now.Add(-time.Duration(cfg.ZeroOutNegativeBalanceDays)*24*time.Hour)) {
		err := sc.svc.appendSignal(ctx, tx, domain.SigZeroOutNegativeBalance, rkZeroOutNegativeBalance, domain.ZeroOutNegativeBalanceSignal{
			Type:                     domain.SigZeroOutNegativeBalance,
			DebtorID:                 a.DebtorID,
			CreditorID:               a.CreditorID,
			LastOutgoingTransferDate: a.LastOutgoingTransferDate,
			RequestTS:                now,
		}, now)
		if err != nil {
			return false, err
		}
		maintenanceSignalsTotal.WithLabelValues("zero_out_negative_balance").Inc()
		return true, sc.muteAccount(ctx, tx, a, now)
	}

	// 2. Scheduled deletion.
	if a.IsScheduledForDeletion() &&
		projected >= 0 && projected <= a.NegligibleAmount &&
		a.LastDeletionAttemptTS.Before(now.Add(-time.Duration(cfg.DeletionAttemptMinHours)*time.Hour)) {
		err := sc.svc.appendSignal(ctx, tx, domain.SigTryToDeleteAccount, rkTryToDeleteAccount, domain.TryToDeleteAccountSignal{
			Type:       domain.SigTryToDeleteAccount,
			DebtorID:   a.DebtorID,
			CreditorID: a.CreditorID,
			RequestTS:  now,
		}, now)
		if err != nil {
			return false, err
		}
		a.LastDeletionAttemptTS = now
		maintenanceSignalsTotal.WithLabelValues("try_to_delete_account").Inc()
		return true, sc.muteAccount(ctx, tx, a, now)
	}

	// 3. Interest capitalization.
	accumulated := a.AccumulatedInterest(now)
	absAccumulated := accumulated
	if absAccumulated < 0 {
		absAccumulated = -absAccumulated
	}
	absPrincipal := a.Principal
	if absPrincipal < 0 {
		absPrincipal = -absPrincipal
	}
	if absAccumulated > cfg.InterestCapThreshold &&
		float64(absAccumulated)/(1+float64(absPrincipal)) > cfg.InterestCapRatio &&
		a.LastCapitalizationTS.Before(now.Add(-time.Duration(cfg.InterestCapMinDays)*24*time.Hour)) {
		// The threshold parameter is half the accumulated interest,
		// rounded toward negative infinity.
		threshold := int64(math.Floor(float64(accumulated) / 2))
		err := sc.svc.appendSignal(ctx, tx, domain.SigCapitalizeInterest, rkCapitalizeInterest, domain.CapitalizeInterestSignal{
			Type:                         domain.SigCapitalizeInterest,
			DebtorID:                     a.DebtorID,
			CreditorID:                   a.CreditorID,
			AccumulatedInterestThreshold: threshold,
			RequestTS:                    now,
		}, now)
		if err != nil {
			return false, err
		}
		a.LastCapitalizationTS = now
		maintenanceSignalsTotal.WithLabelValues("capitalize_interest").Inc()
		return true, sc.muteAccount(ctx, tx, a, now)
	}

	// 4. Interest-rate correction. Lowest priority; needs an active debtor
	// to know the currency's current rate.
	if debtor != nil {
		rate := debtor.InterestRate(now)
		if a.InterestRate != rate || !a.HasEstablishedInterestRate() {
			err := sc.svc.appendSignal(ctx, tx, domain.SigChangeInterestRate, rkChangeInterestRate, domain.ChangeInterestRateSignal{
				Type:         domain.SigChangeInterestRate,
				DebtorID:     a.DebtorID,
				CreditorID:   a.CreditorID,
				InterestRate: rate,
				RequestTS:    now,
			}, now)
			if err != nil {
				return false, err
			}
			maintenanceSignalsTotal.WithLabelValues("change_interest_rate").Inc()
			return true, sc.muteAccount(ctx, tx, a, now)
		}
	}
	return false, nil
}

// muteAccount pushes the account's debounce timestamp forward, suppressing
// further signals until the correction comes back as an account update.
func (sc *Scanner) muteAccount(ctx context.Context, tx store.Tx, a *domain.Account, now time.Time) error {
	a.IsMuted = true
	a.LastMaintenanceRequestTS = now
	return tx.UpdateAccount(ctx, a)
}

// ScanDebtors reclaims stale debtor rows and flags configs that were never
// confirmed by the authority.
func (sc *Scanner) ScanDebtors(ctx context.Context) error {
	cfg := sc.svc.cfg
	var deleted, flagged int

	for {
		var batchLen int
		err := sc.svc.store.WithTx(ctx, func(tx store.Tx) error {
			now := sc.svc.now()
			reservedBefore := now.Add(-time.Duration(cfg.ReservationRetentionDays) * 24 * time.Hour)
			deactivatedBefore := now.Add(-time.Duration(cfg.DeactivatedRetentionDays) * 24 * time.Hour)
			stale, err := tx.ListStaleDebtors(ctx, reservedBefore, deactivatedBefore, cfg.ScanBatchSize)
			if err != nil {
				return err
			}
			batchLen = len(stale)
			for _, d := range stale {
				if err := tx.DeleteDebtor(ctx, d.DebtorID); err != nil {
					return err
				}
				deleted++
			}
			return nil
		})
		if err != nil {
			return err
		}
		scannedRowsTotal.WithLabelValues("debtor").Add(float64(batchLen))
		if batchLen < cfg.ScanBatchSize {
			break
		}
		sc.batchPause()
	}

	for {
		var batchLen int
		err := sc.svc.store.WithTx(ctx, func(tx store.Tx) error {
			now := sc.svc.now()
			configBefore := now.Add(-time.Duration(cfg.ConfigEffectualHours) * time.Hour)
			debtors, err := tx.ListUnconfirmedConfigDebtors(ctx, configBefore, cfg.ScanBatchSize)
			if err != nil {
				return err
			}
			batchLen = len(debtors)
			for _, d := range debtors {
				code := configErrorNotEffectual
				d.ConfigError = &code
				if err := tx.UpdateDebtor(ctx, d); err != nil {
					return err
				}
				flagged++
			}
			return nil
		})
		if err != nil {
			return err
		}
		if batchLen < cfg.ScanBatchSize {
			break
		}
		sc.batchPause()
	}

	sc.logger.Info("debtors sweep finished",
		slog.Int("deleted", deleted),
		slog.Int("config_errors", flagged))
	return nil
}

// ScanTransfers prunes finalized transfers older than the retention window,
// releasing their running-transfer quota slots.
func (sc *Scanner) ScanTransfers(ctx context.Context) error {
	cfg := sc.svc.cfg
	var pruned int

	for {
		var batchLen int
		err := sc.svc.store.WithTx(ctx, func(tx store.Tx) error {
			cutoff := sc.svc.now().Add(-time.Duration(cfg.TransfersRetentionDays) * 24 * time.Hour)
			transfers, err := tx.ListFinalizedTransfersBefore(ctx, cutoff, cfg.ScanBatchSize)
			if err != nil {
				return err
			}
			batchLen = len(transfers)
			for _, t := range transfers {
				d, err := tx.GetDebtor(ctx, t.DebtorID, true)
				if err != nil {
					if !errors.Is(err, store.ErrDebtorNotFound) {
						return err
					}
					d = nil
				}
				deleted, err := tx.DeleteTransfer(ctx, t.DebtorID, t.TransferUUID)
				if err != nil {
					return err
				}
				if deleted && d != nil {
					if d.RunningTransfersCount > 0 {
						d.RunningTransfersCount--
					}
					if err := tx.UpdateDebtor(ctx, d); err != nil {
						return err
					}
				}
				pruned++
			}
			return nil
		})
		if err != nil {
			return err
		}
		scannedRowsTotal.WithLabelValues("running_transfer").Add(float64(batchLen))
		if batchLen < cfg.ScanBatchSize {
			break
		}
		sc.batchPause()
	}

	sc.logger.Info("transfers sweep finished", slog.Int("pruned", pruned))
	return nil
}
