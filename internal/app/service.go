/**
 * @description
 * The application service: owns every externally reachable operation of the
 * debtors agent. Each operation runs in exactly one store transaction, and
 * every outbound signal it decides on is appended to the durable outbox in
 * that same transaction, so signal emission and state change commit or roll
 * back together.
 *
 * @dependencies
 * - internal/config: Runtime configuration.
 * - internal/domain: Entities, messages, signals.
 * - internal/store: Transactional data access.
 */

package app

import (
	"context"
	"time"

	"github.com/issuemint/debtors-agent/internal/config"
	"github.com/issuemint/debtors-agent/internal/domain"
	"github.com/issuemint/debtors-agent/internal/store"
)

// Routing keys for outbound signals, one per signal kind.
const (
	rkConfigureAccount       = "configure_account"
	rkPrepareTransfer        = "prepare_transfer"
	rkFinalizeTransfer       = "finalize_transfer"
	rkChangeInterestRate     = "change_interest_rate"
	rkCapitalizeInterest     = "capitalize_interest"
	rkZeroOutNegativeBalance = "zero_out_negative_balance"
	rkTryToDeleteAccount     = "try_to_delete_account"
)

// Service implements the agent's operations on top of the store.
type Service struct {
	store store.Store
	cfg   config.Config

	// now is swappable in tests.
	now func() time.Time
}

func NewService(s store.Store, cfg config.Config) *Service {
	return &Service{
		store: s,
		cfg:   cfg,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// appendSignal marshals an outbound signal and appends it to the outbox
// inside the current transaction.
func (s *Service) appendSignal(ctx context.Context, tx store.Tx, signalType, routingKey string, payload any, now time.Time) error {
	rec, err := domain.NewOutboxRecord(signalType, routingKey, payload, now)
	if err != nil {
		return err
	}
	return tx.AppendOutbox(ctx, rec)
}

// throttleActions counts one management action against the debtor's monthly
// quota, resetting the rolling window when more than 30 days have elapsed.
func (s *Service) throttleActions(d *domain.Debtor, now time.Time) error {
	if now.Sub(d.ActionsResetAt) > 30*24*time.Hour {
		d.ActionsCount = 0
		d.ActionsResetAt = now
	}
	if d.ActionsCount >= s.cfg.MaxActionsPerMonth {
		return ErrTooManyManagementActions
	}
	d.ActionsCount++
	return nil
}

// throttleDocuments counts one saved document against the debtor's yearly
// quota.
func (s *Service) throttleDocuments(d *domain.Debtor, now time.Time) error {
	if now.Sub(d.DocumentsResetAt) > 365*24*time.Hour {
		d.DocumentsCount = 0
		d.DocumentsResetAt = now
	}
	if d.DocumentsCount >= s.cfg.MaxDocumentsPerYear {
		return ErrTooManySavedDocuments
	}
	d.DocumentsCount++
	return nil
}

// emitConfigureAccount appends a configure-account signal reflecting the
// debtor's current config document. The config's own (ts, seqnum) pair is
// echoed back by the authority, which is how config confirmations are
// correlated.
func (s *Service) emitConfigureAccount(ctx context.Context, tx store.Tx, d *domain.Debtor, now time.Time) error {
	return s.appendSignal(ctx, tx, domain.SigConfigureAccount, rkConfigureAccount, domain.ConfigureAccountSignal{
		Type:             domain.SigConfigureAccount,
		DebtorID:         d.DebtorID,
		CreditorID:       domain.RootCreditorID,
		TS:               d.LastConfigTS,
		Seqnum:           d.LastConfigSeqnum,
		NegligibleAmount: domain.HugeNegligibleAmount,
		ConfigData:       d.ConfigData,
		ConfigFlags:      d.ConfigFlags,
	}, now)
}

// bumpConfig advances the debtor's config logical clock and marks the config
// unconfirmed, to be followed by emitConfigureAccount.
func bumpConfig(d *domain.Debtor, now time.Time) {
	if now.After(d.LastConfigTS) {
		d.LastConfigTS = now
	}
	d.LastConfigSeqnum++
	d.IsConfigEffectual = false
	d.ConfigError = nil
}
