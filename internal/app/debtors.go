/**
 * @description
 * Debtor lifecycle and policy operations: node shard configuration, debtor
 * reservation and activation, deactivation, policy and config-document
 * updates, and the saved-documents store.
 */

package app

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/issuemint/debtors-agent/internal/domain"
	"github.com/issuemint/debtors-agent/internal/store"
)

// ConfigureNode persists the node's debtor-ID shard interval. The interval is
// written once; a later boot with a different interval is a deployment error
// and is refused.
func (s *Service) ConfigureNode(ctx context.Context, minDebtorID, maxDebtorID int64) error {
	if minDebtorID > maxDebtorID {
		return ErrMisconfiguredNode
	}
	return s.store.WithTx(ctx, func(tx store.Tx) error {
		existing, err := tx.GetNodeConfig(ctx)
		if err != nil && !errors.Is(err, store.ErrNodeConfigMissing) {
			return err
		}
		if existing != nil {
			if existing.MinDebtorID != minDebtorID || existing.MaxDebtorID != maxDebtorID {
				return ErrMisconfiguredNode
			}
			return nil
		}
		return tx.UpsertNodeConfig(ctx, domain.NodeConfig{
			MinDebtorID: minDebtorID,
			MaxDebtorID: maxDebtorID,
		})
	})
}

// GenerateDebtorID picks a random debtor ID within the node's shard interval.
func (s *Service) GenerateDebtorID(ctx context.Context) (int64, error) {
	var cfg *domain.NodeConfig
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		cfg, err = tx.GetNodeConfig(ctx)
		return err
	})
	if err != nil {
		if errors.Is(err, store.ErrNodeConfigMissing) {
			return 0, ErrMisconfiguredNode
		}
		return 0, err
	}
	span := uint64(cfg.MaxDebtorID-cfg.MinDebtorID) + 1
	return cfg.MinDebtorID + int64(rand.Uint64()%span), nil
}

// ReserveDebtor creates an inactive debtor record and returns it with a
// freshly assigned reservation ID. The reservation must be redeemed by
// ActivateDebtor before the retention sweep reclaims it.
func (s *Service) ReserveDebtor(ctx context.Context, debtorID int64) (*domain.Debtor, error) {
	var debtor *domain.Debtor
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		cfg, err := tx.GetNodeConfig(ctx)
		if err != nil {
			return err
		}
		if !cfg.Contains(debtorID) {
			return ErrInvalidDebtor
		}
		now := s.now()
		debtor = &domain.Debtor{
			DebtorID:             debtorID,
			CreatedAt:            now,
			BalanceLastUpdateTS:  now,
			ActionsResetAt:       now,
			DocumentsResetAt:     now,
			ConfigLatestUpdateID: 1,
			ConfigLastUpdateTS:   now,
			LastConfigTS:         domain.TS0,
		}
		return tx.CreateDebtor(ctx, debtor)
	})
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNodeConfigMissing):
			return nil, ErrMisconfiguredNode
		case errors.Is(err, store.ErrDebtorExists):
			return nil, ErrDebtorExists
		}
		return nil, err
	}
	return debtor, nil
}

// ActivateDebtor turns a reserved debtor into an active one and requests the
// creation of its root account at the accounting authority. Activating an
// already active debtor is a no-op returning the debtor.
func (s *Service) ActivateDebtor(ctx context.Context, debtorID, reservationID int64) (*domain.Debtor, error) {
	var debtor *domain.Debtor
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		d, err := tx.GetDebtor(ctx, debtorID, true)
		if err != nil {
			if errors.Is(err, store.ErrDebtorNotFound) {
				return ErrInvalidReservationID
			}
			return err
		}
		if d.IsActivated() {
			if d.IsDeactivated() {
				return ErrDebtorExists
			}
			debtor = d
			return nil
		}
		if d.ReservationID == nil || *d.ReservationID != reservationID {
			return ErrInvalidReservationID
		}
		now := s.now()
		d.Activate()
		bumpConfig(d, now)
		if err := tx.UpdateDebtor(ctx, d); err != nil {
			return err
		}
		if err := s.emitConfigureAccount(ctx, tx, d, now); err != nil {
			return err
		}
		debtor = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return debtor, nil
}

// DeactivateDebtor terminally deactivates a debtor, schedules its root
// account for deletion at the authority, and discards its running transfers.
// Idempotent; unknown debtors are ignored.
func (s *Service) DeactivateDebtor(ctx context.Context, debtorID int64) error {
	return s.store.WithTx(ctx, func(tx store.Tx) error {
		d, err := tx.GetDebtor(ctx, debtorID, true)
		if err != nil {
			if errors.Is(err, store.ErrDebtorNotFound) {
				return nil
			}
			return err
		}
		if !d.IsActivated() {
			// An unredeemed reservation is simply discarded.
			return tx.DeleteDebtor(ctx, debtorID)
		}
		if d.IsDeactivated() {
			return nil
		}
		now := s.now()
		d.Deactivate(now)
		bumpConfig(d, now)
		if _, err := tx.DeleteDebtorTransfers(ctx, debtorID); err != nil {
			return err
		}
		d.RunningTransfersCount = 0
		if err := tx.UpdateDebtor(ctx, d); err != nil {
			return err
		}
		return s.emitConfigureAccount(ctx, tx, d, now)
	})
}

// GetDebtor returns the debtor regardless of its lifecycle state.
func (s *Service) GetDebtor(ctx context.Context, debtorID int64) (*domain.Debtor, error) {
	var debtor *domain.Debtor
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		d, err := tx.GetDebtor(ctx, debtorID, false)
		if err != nil {
			return err
		}
		debtor = d
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrDebtorNotFound) {
			return nil, ErrDebtorDoesNotExist
		}
		return nil, err
	}
	return debtor, nil
}

// GetActiveDebtor returns the debtor only when it is activated and not
// deactivated.
func (s *Service) GetActiveDebtor(ctx context.Context, debtorID int64) (*domain.Debtor, error) {
	d, err := s.GetDebtor(ctx, debtorID)
	if err != nil {
		return nil, err
	}
	if !d.IsActive() {
		return nil, ErrDebtorDoesNotExist
	}
	return d, nil
}

// GetDebtorIDs pages through the activated debtor IDs on this shard, in
// ascending order starting from startFrom.
func (s *Service) GetDebtorIDs(ctx context.Context, startFrom int64, count int) ([]int64, error) {
	var ids []int64
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		ids, err = tx.ListActivatedDebtorIDs(ctx, startFrom, count)
		return err
	})
	return ids, err
}

// UpdateDebtorPolicy replaces the debtor's issuing policy: the interest rate
// target and the two lower-limit sequences. New limits are merged into the
// old ones still effectual within a one-week grace window; the compacted
// result must not exceed the configured cap.
func (s *Service) UpdateDebtorPolicy(
	ctx context.Context,
	debtorID int64,
	interestRateTarget *float64,
	balanceLimits []domain.LowerLimit[int64],
	interestRateLimits []domain.LowerLimit[float64],
) (*domain.Debtor, error) {
	var debtor *domain.Debtor
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		d, err := getActiveDebtor(ctx, tx, debtorID, true)
		if err != nil {
			return err
		}
		now := s.now()
		if err := s.throttleActions(d, now); err != nil {
			return err
		}
		if interestRateTarget != nil {
			// The target may sit below the protocol floor; clamping happens
			// when the effective rate is computed.
			if *interestRateTarget <= -100 || *interestRateTarget > 100 {
				return ErrConflictingPolicy
			}
			d.InterestRateTarget = *interestRateTarget
		}
		// Limits expired within the last week are kept around, so that a
		// just-lapsed restriction cannot be silently compacted away by an
		// immediate policy update.
		graceDate := now.AddDate(0, 0, -7)
		newBalanceLimits := d.BalanceLowerLimits.Current(graceDate)
		if err := newBalanceLimits.AddAll(balanceLimits, s.cfg.MaxLimitsCount); err != nil {
			return ErrConflictingPolicy
		}
		newRateLimits := d.InterestRateLowerLimits.Current(graceDate)
		if err := newRateLimits.AddAll(interestRateLimits, s.cfg.MaxLimitsCount); err != nil {
			return ErrConflictingPolicy
		}
		d.BalanceLowerLimits = newBalanceLimits
		d.InterestRateLowerLimits = newRateLimits
		if err := tx.UpdateDebtor(ctx, d); err != nil {
			return err
		}
		debtor = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return debtor, nil
}

// RestrictDebtor imposes an administrative floor on the debtor's account
// balance, effectual until the given cutoff. Unlike policy updates initiated
// by the debtor, restrictions do not count against the actions quota.
func (s *Service) RestrictDebtor(ctx context.Context, debtorID, minBalance int64, cutoff time.Time) (*domain.Debtor, error) {
	var debtor *domain.Debtor
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		d, err := getActiveDebtor(ctx, tx, debtorID, true)
		if err != nil {
			return err
		}
		limits := d.BalanceLowerLimits.Current(s.now())
		if err := limits.AddAll([]domain.LowerLimit[int64]{{Value: minBalance, Cutoff: cutoff}}, s.cfg.MaxLimitsCount); err != nil {
			return ErrConflictingPolicy
		}
		d.BalanceLowerLimits = limits
		if err := tx.UpdateDebtor(ctx, d); err != nil {
			return err
		}
		debtor = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return debtor, nil
}

// UpdateDebtorConfig replaces the debtor's config document under optimistic
// concurrency: latestUpdateID must be exactly one more than the stored one.
// Re-submitting the stored update verbatim is an idempotent success.
func (s *Service) UpdateDebtorConfig(
	ctx context.Context,
	debtorID int64,
	configData string,
	latestUpdateID int64,
	debtorInfoIRI *string,
) (*domain.Debtor, error) {
	var debtor *domain.Debtor
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		d, err := getActiveDebtor(ctx, tx, debtorID, true)
		if err != nil {
			return err
		}
		if latestUpdateID == d.ConfigLatestUpdateID && configData == d.ConfigData {
			debtor = d
			return nil
		}
		if latestUpdateID != d.ConfigLatestUpdateID+1 {
			return ErrUpdateConflict
		}
		if len(configData) > domain.ConfigDataMaxBytes {
			return ErrConflictingPolicy
		}
		now := s.now()
		if err := s.throttleActions(d, now); err != nil {
			return err
		}
		d.ConfigData = configData
		d.ConfigLatestUpdateID = latestUpdateID
		d.ConfigLastUpdateTS = now
		d.DebtorInfoIRI = debtorInfoIRI
		bumpConfig(d, now)
		if err := tx.UpdateDebtor(ctx, d); err != nil {
			return err
		}
		if err := s.emitConfigureAccount(ctx, tx, d, now); err != nil {
			return err
		}
		debtor = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return debtor, nil
}

// SaveDocument stores an opaque document blob on behalf of the debtor,
// subject to the yearly documents quota.
func (s *Service) SaveDocument(ctx context.Context, debtorID int64, contentType string, content []byte) (*domain.Document, error) {
	var doc *domain.Document
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		d, err := getActiveDebtor(ctx, tx, debtorID, true)
		if err != nil {
			return err
		}
		now := s.now()
		if err := s.throttleDocuments(d, now); err != nil {
			return err
		}
		if err := tx.UpdateDebtor(ctx, d); err != nil {
			return err
		}
		doc = &domain.Document{
			DebtorID:    debtorID,
			ContentType: contentType,
			Content:     content,
			InsertedAt:  now,
		}
		return tx.CreateDocument(ctx, doc)
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// GetDocument returns a previously saved document.
func (s *Service) GetDocument(ctx context.Context, debtorID, documentID int64) (*domain.Document, error) {
	var doc *domain.Document
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		doc, err = tx.GetDocument(ctx, debtorID, documentID)
		return err
	})
	if err != nil {
		if errors.Is(err, store.ErrDocumentNotFound) {
			return nil, ErrDocumentDoesNotExist
		}
		return nil, err
	}
	return doc, nil
}

// getActiveDebtor loads a debtor inside the current transaction, treating
// missing, reserved-only, and deactivated debtors alike as nonexistent.
func getActiveDebtor(ctx context.Context, tx store.Tx, debtorID int64, lock bool) (*domain.Debtor, error) {
	d, err := tx.GetDebtor(ctx, debtorID, lock)
	if err != nil {
		if errors.Is(err, store.ErrDebtorNotFound) {
			return nil, ErrDebtorDoesNotExist
		}
		return nil, err
	}
	if !d.IsActive() {
		return nil, ErrDebtorDoesNotExist
	}
	return d, nil
}
