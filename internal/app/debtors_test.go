package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/issuemint/debtors-agent/internal/domain"
)

func TestReserveActivateLifecycle(t *testing.T) {
	ms := newMemStore()
	svc := newTestService(ms)
	ctx := context.Background()

	d, err := svc.ReserveDebtor(ctx, 7)
	if err != nil {
		t.Fatalf("ReserveDebtor returned error: %v", err)
	}
	if d.ReservationID == nil || d.IsActivated() {
		t.Fatalf("expected an inactive reservation, got %+v", d)
	}

	if _, err := svc.ReserveDebtor(ctx, 7); !errors.Is(err, ErrDebtorExists) {
		t.Fatalf("expected ErrDebtorExists on double reservation, got %v", err)
	}

	if _, err := svc.ActivateDebtor(ctx, 7, *d.ReservationID+1); !errors.Is(err, ErrInvalidReservationID) {
		t.Fatalf("expected ErrInvalidReservationID for a wrong reservation, got %v", err)
	}

	d, err = svc.ActivateDebtor(ctx, 7, *d.ReservationID)
	if err != nil {
		t.Fatalf("ActivateDebtor returned error: %v", err)
	}
	if !d.IsActive() || d.IsConfigEffectual {
		t.Fatalf("expected an active debtor with a pending config, got %+v", d)
	}
	if types := ms.outboxTypes(); len(types) != 1 || types[0] != domain.SigConfigureAccount {
		t.Fatalf("expected a configure-account request, got %v", types)
	}

	// Re-activation is idempotent, whatever reservation ID is presented.
	if _, err := svc.ActivateDebtor(ctx, 7, 999); err != nil {
		t.Fatalf("repeated ActivateDebtor returned error: %v", err)
	}
	if len(ms.outbox) != 1 {
		t.Fatalf("expected no additional signals on re-activation, got %d", len(ms.outbox))
	}
}

func TestReserveDebtorOutsideShard(t *testing.T) {
	ms := newMemStore()
	svc := newTestService(ms)

	if _, err := svc.ReserveDebtor(context.Background(), 0); !errors.Is(err, ErrInvalidDebtor) {
		t.Fatalf("expected ErrInvalidDebtor, got %v", err)
	}
}

func TestDeactivateDebtorCascades(t *testing.T) {
	ms := newMemStore()
	svc := newTestService(ms)
	ctx := context.Background()
	activatedDebtor(t, svc, 7)
	if _, err := svc.InitiateTransfer(ctx, 7, uuid.New(), "acc-123", 1000, "", ""); err != nil {
		t.Fatalf("InitiateTransfer returned error: %v", err)
	}

	if err := svc.DeactivateDebtor(ctx, 7); err != nil {
		t.Fatalf("DeactivateDebtor returned error: %v", err)
	}
	d := ms.debtors[7]
	if !d.IsDeactivated() || d.ConfigFlags != domain.DebtorConfigScheduledForDeletionFlag {
		t.Fatalf("expected the root account to be scheduled for deletion, got %+v", d)
	}
	if len(ms.transfers) != 0 || d.RunningTransfersCount != 0 {
		t.Fatal("expected running transfers to be discarded")
	}
	if last := ms.outbox[len(ms.outbox)-1]; last.SignalType != domain.SigConfigureAccount {
		t.Fatalf("expected a final configure-account request, got %s", last.SignalType)
	}

	// Deactivation is terminal: the debtor cannot be used again.
	if _, err := svc.InitiateTransfer(ctx, 7, uuid.New(), "acc-123", 1000, "", ""); !errors.Is(err, ErrDebtorDoesNotExist) {
		t.Fatalf("expected ErrDebtorDoesNotExist after deactivation, got %v", err)
	}
	if err := svc.DeactivateDebtor(ctx, 7); err != nil {
		t.Fatalf("repeated DeactivateDebtor returned error: %v", err)
	}
}

func TestUpdateDebtorConfigOptimisticConcurrency(t *testing.T) {
	ms := newMemStore()
	svc := newTestService(ms)
	ctx := context.Background()
	activatedDebtor(t, svc, 7)

	d, err := svc.UpdateDebtorConfig(ctx, 7, `{"info":{"iri":"https://example.com/7"}}`, 2, nil)
	if err != nil {
		t.Fatalf("UpdateDebtorConfig returned error: %v", err)
	}
	if d.ConfigLatestUpdateID != 2 || d.IsConfigEffectual {
		t.Fatalf("expected update id 2 with a pending config, got %+v", d)
	}

	// Verbatim resubmission succeeds without a second signal.
	outboxBefore := len(ms.outbox)
	if _, err := svc.UpdateDebtorConfig(ctx, 7, `{"info":{"iri":"https://example.com/7"}}`, 2, nil); err != nil {
		t.Fatalf("idempotent UpdateDebtorConfig returned error: %v", err)
	}
	if len(ms.outbox) != outboxBefore {
		t.Fatal("expected no signal on an idempotent resubmission")
	}

	if _, err := svc.UpdateDebtorConfig(ctx, 7, `{}`, 4, nil); !errors.Is(err, ErrUpdateConflict) {
		t.Fatalf("expected ErrUpdateConflict for a skipped update id, got %v", err)
	}
	if _, err := svc.UpdateDebtorConfig(ctx, 7, `{}`, 2, nil); !errors.Is(err, ErrUpdateConflict) {
		t.Fatalf("expected ErrUpdateConflict for a stale update id, got %v", err)
	}
}

func TestUpdateDebtorPolicyRateTargetBounds(t *testing.T) {
	ms := newMemStore()
	svc := newTestService(ms)
	ctx := context.Background()
	activatedDebtor(t, svc, 7)

	for _, bad := range []float64{-100.0, -250.0, 100.5} {
		if _, err := svc.UpdateDebtorPolicy(ctx, 7, &bad, nil, nil); !errors.Is(err, ErrConflictingPolicy) {
			t.Fatalf("expected ErrConflictingPolicy for target %f, got %v", bad, err)
		}
	}

	// A target below the protocol floor is still a valid policy: it is
	// stored verbatim and only clamped when the effective rate is computed.
	belowFloor := -60.0
	d, err := svc.UpdateDebtorPolicy(ctx, 7, &belowFloor, nil, nil)
	if err != nil {
		t.Fatalf("UpdateDebtorPolicy returned error: %v", err)
	}
	if d.InterestRateTarget != -60.0 {
		t.Fatalf("expected target -60 to be stored, got %f", d.InterestRateTarget)
	}
	if got := d.InterestRate(testTime); got != domain.InterestRateFloor {
		t.Fatalf("expected the effective rate to clamp to the floor, got %f", got)
	}

	target := 4.5
	d, err = svc.UpdateDebtorPolicy(ctx, 7, &target, nil, nil)
	if err != nil {
		t.Fatalf("UpdateDebtorPolicy returned error: %v", err)
	}
	if d.InterestRateTarget != 4.5 {
		t.Fatalf("expected target 4.5, got %f", d.InterestRateTarget)
	}
}

func TestUpdateDebtorPolicyKeepsRecentlyExpiredLimits(t *testing.T) {
	ms := newMemStore()
	svc := newTestService(ms)
	ctx := context.Background()
	activatedDebtor(t, svc, 7)

	ms.debtors[7].BalanceLowerLimits = domain.NewLowerLimitSequence(
		domain.LowerLimit[int64]{Value: -1000, Cutoff: testTime.AddDate(0, 0, -3)},
		domain.LowerLimit[int64]{Value: -500, Cutoff: testTime.AddDate(0, 0, -10)},
	)

	d, err := svc.UpdateDebtorPolicy(ctx, 7, nil, nil, nil)
	if err != nil {
		t.Fatalf("UpdateDebtorPolicy returned error: %v", err)
	}
	limits := d.BalanceLowerLimits.Limits()
	if len(limits) != 1 || limits[0].Value != -1000 {
		t.Fatalf("expected only the limit expired within the grace week to survive, got %v", limits)
	}
}

func TestRestrictDebtorBypassesThrottle(t *testing.T) {
	ms := newMemStore()
	svc := newTestService(ms)
	svc.cfg.MaxActionsPerMonth = 1
	ctx := context.Background()
	activatedDebtor(t, svc, 7)
	if _, err := svc.InitiateTransfer(ctx, 7, uuid.New(), "acc-123", 1000, "", ""); err != nil {
		t.Fatalf("InitiateTransfer returned error: %v", err)
	}

	// The quota is exhausted for debtor-initiated actions...
	if _, err := svc.InitiateTransfer(ctx, 7, uuid.New(), "acc-123", 1000, "", ""); !errors.Is(err, ErrTooManyManagementActions) {
		t.Fatalf("expected ErrTooManyManagementActions, got %v", err)
	}

	// ...but administrative restrictions still apply.
	d, err := svc.RestrictDebtor(ctx, 7, -5000, testTime.AddDate(1, 0, 0))
	if err != nil {
		t.Fatalf("RestrictDebtor returned error: %v", err)
	}
	if got := d.MinAccountBalance(testTime); got != -5000 {
		t.Fatalf("expected the restriction to raise the balance floor to -5000, got %d", got)
	}
}

func TestActionsThrottleResetsAfterWindow(t *testing.T) {
	ms := newMemStore()
	svc := newTestService(ms)
	svc.cfg.MaxActionsPerMonth = 1
	ctx := context.Background()
	activatedDebtor(t, svc, 7)
	if _, err := svc.InitiateTransfer(ctx, 7, uuid.New(), "acc-123", 1000, "", ""); err != nil {
		t.Fatalf("InitiateTransfer returned error: %v", err)
	}
	if _, err := svc.InitiateTransfer(ctx, 7, uuid.New(), "acc-123", 1000, "", ""); !errors.Is(err, ErrTooManyManagementActions) {
		t.Fatalf("expected ErrTooManyManagementActions, got %v", err)
	}

	svc.now = func() time.Time { return testTime.AddDate(0, 0, 31) }
	if _, err := svc.InitiateTransfer(ctx, 7, uuid.New(), "acc-123", 1000, "", ""); err != nil {
		t.Fatalf("expected the rolling window to reset, got %v", err)
	}
}

func TestSaveDocumentQuota(t *testing.T) {
	ms := newMemStore()
	svc := newTestService(ms)
	svc.cfg.MaxDocumentsPerYear = 1
	ctx := context.Background()
	activatedDebtor(t, svc, 7)

	doc, err := svc.SaveDocument(ctx, 7, "application/json", []byte(`{"name":"Example"}`))
	if err != nil {
		t.Fatalf("SaveDocument returned error: %v", err)
	}
	got, err := svc.GetDocument(ctx, 7, doc.DocumentID)
	if err != nil {
		t.Fatalf("GetDocument returned error: %v", err)
	}
	if got.ContentType != "application/json" || string(got.Content) != `{"name":"Example"}` {
		t.Fatalf("unexpected document %+v", got)
	}

	if _, err := svc.SaveDocument(ctx, 7, "text/plain", []byte("x")); !errors.Is(err, ErrTooManySavedDocuments) {
		t.Fatalf("expected ErrTooManySavedDocuments, got %v", err)
	}
	if _, err := svc.GetDocument(ctx, 7, 999); !errors.Is(err, ErrDocumentDoesNotExist) {
		t.Fatalf("expected ErrDocumentDoesNotExist, got %v", err)
	}
}

func TestConfigureNodeRefusesMismatch(t *testing.T) {
	ms := newMemStore()
	svc := newTestService(ms)
	ctx := context.Background()

	if err := svc.ConfigureNode(ctx, 1, 1<<40); err != nil {
		t.Fatalf("ConfigureNode returned error: %v", err)
	}
	if err := svc.ConfigureNode(ctx, 1, 1<<40); err != nil {
		t.Fatalf("repeated ConfigureNode returned error: %v", err)
	}
	if err := svc.ConfigureNode(ctx, 1, 1<<41); !errors.Is(err, ErrMisconfiguredNode) {
		t.Fatalf("expected ErrMisconfiguredNode for a changed interval, got %v", err)
	}
	if err := svc.ConfigureNode(ctx, 10, 1); !errors.Is(err, ErrMisconfiguredNode) {
		t.Fatalf("expected ErrMisconfiguredNode for an empty interval, got %v", err)
	}
}

func TestGetDebtorIDsPagination(t *testing.T) {
	ms := newMemStore()
	svc := newTestService(ms)
	ctx := context.Background()
	for _, id := range []int64{3, 5, 9} {
		activatedDebtor(t, svc, id)
	}
	if _, err := svc.ReserveDebtor(ctx, 4); err != nil {
		t.Fatalf("ReserveDebtor returned error: %v", err)
	}

	ids, err := svc.GetDebtorIDs(ctx, 4, 10)
	if err != nil {
		t.Fatalf("GetDebtorIDs returned error: %v", err)
	}
	if len(ids) != 2 || ids[0] != 5 || ids[1] != 9 {
		t.Fatalf("expected activated IDs [5 9], got %v", ids)
	}
}
