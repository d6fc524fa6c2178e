package app

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/issuemint/debtors-agent/internal/domain"
)

func accountUpdate(debtorID, creditorID int64, ts time.Time, seqnum int32) domain.AccountUpdateMessage {
	return domain.AccountUpdateMessage{
		DebtorID:         debtorID,
		CreditorID:       creditorID,
		CreationDate:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		LastChangeTS:     ts,
		LastChangeSeqnum: seqnum,
		TS:               ts,
		TTL:              7 * 24 * 60 * 60,
	}
}

func TestAccountUpdateOutOfOrderDelivery(t *testing.T) {
	ms := newMemStore()
	svc := newTestService(ms)
	ctx := context.Background()

	newer := accountUpdate(7, 11, testTime.Add(-time.Hour), 5)
	newer.Principal = 2000
	older := accountUpdate(7, 11, testTime.Add(-2*time.Hour), 4)
	older.Principal = 1000

	if err := svc.ProcessAccountUpdateSignal(ctx, newer); err != nil {
		t.Fatalf("ProcessAccountUpdateSignal returned error: %v", err)
	}
	if err := svc.ProcessAccountUpdateSignal(ctx, older); err != nil {
		t.Fatalf("ProcessAccountUpdateSignal returned error: %v", err)
	}

	a := ms.accounts[accountKey{7, 11}]
	if a == nil {
		t.Fatal("expected a mirrored account")
	}
	if a.Principal != 2000 || a.LastChangeSeqnum != 5 {
		t.Fatalf("expected the newer update to win, got principal=%d seqnum=%d", a.Principal, a.LastChangeSeqnum)
	}
	// The stale update still proves the account is alive.
	if !a.LastHeartbeatTS.Equal(newer.TS) {
		t.Fatalf("unexpected heartbeat timestamp %v", a.LastHeartbeatTS)
	}
}

func TestAccountUpdateSeqnumWraparound(t *testing.T) {
	ms := newMemStore()
	svc := newTestService(ms)
	ctx := context.Background()

	ts := testTime.Add(-time.Hour)
	first := accountUpdate(7, 11, ts, 0x7fffffff)
	first.Principal = 1
	wrapped := accountUpdate(7, 11, ts, -0x80000000)
	wrapped.Principal = 2

	if err := svc.ProcessAccountUpdateSignal(ctx, first); err != nil {
		t.Fatalf("ProcessAccountUpdateSignal returned error: %v", err)
	}
	if err := svc.ProcessAccountUpdateSignal(ctx, wrapped); err != nil {
		t.Fatalf("ProcessAccountUpdateSignal returned error: %v", err)
	}
	if got := ms.accounts[accountKey{7, 11}].Principal; got != 2 {
		t.Fatalf("expected the wrapped seqnum to be ordered after the maximum, got principal=%d", got)
	}
}

func TestAccountUpdateExpiredTTLDropped(t *testing.T) {
	ms := newMemStore()
	svc := newTestService(ms)

	m := accountUpdate(7, 11, testTime.Add(-48*time.Hour), 1)
	m.TTL = 3600
	if err := svc.ProcessAccountUpdateSignal(context.Background(), m); err != nil {
		t.Fatalf("ProcessAccountUpdateSignal returned error: %v", err)
	}
	if len(ms.accounts) != 0 {
		t.Fatal("expected the expired update to be dropped")
	}
}

func TestRootAccountUpdateConfirmsConfig(t *testing.T) {
	ms := newMemStore()
	svc := newTestService(ms)
	ctx := context.Background()
	d := activatedDebtor(t, svc, 7)

	if d.IsConfigEffectual {
		t.Fatal("expected a pending, unconfirmed config after activation")
	}

	m := accountUpdate(7, domain.RootCreditorID, testTime.Add(time.Minute), 1)
	m.Principal = 5000
	m.LastConfigTS = d.LastConfigTS
	m.LastConfigSeqnum = d.LastConfigSeqnum
	m.ConfigFlags = d.ConfigFlags
	m.ConfigData = d.ConfigData
	m.AccountID = "root-acc-7"
	m.TransferNoteMaxBytes = 400
	if err := svc.ProcessAccountUpdateSignal(ctx, m); err != nil {
		t.Fatalf("ProcessAccountUpdateSignal returned error: %v", err)
	}

	got := ms.debtors[7]
	if !got.IsConfigEffectual {
		t.Fatal("expected the matching update to confirm the config")
	}
	if !got.HasServerAccount || got.AccountID != "root-acc-7" || got.TransferNoteMaxBytes != 400 {
		t.Fatalf("expected server-account fields to be mirrored, got %+v", got)
	}
	if got.Balance == nil || *got.Balance != 5000 {
		t.Fatalf("expected mirrored balance 5000, got %v", got.Balance)
	}
}

func TestRootAccountUpdateOverflownBalance(t *testing.T) {
	ms := newMemStore()
	svc := newTestService(ms)
	ctx := context.Background()
	activatedDebtor(t, svc, 7)

	m := accountUpdate(7, domain.RootCreditorID, testTime.Add(time.Minute), 1)
	m.StatusFlags = domain.AccountStatusOverflownFlag
	if err := svc.ProcessAccountUpdateSignal(ctx, m); err != nil {
		t.Fatalf("ProcessAccountUpdateSignal returned error: %v", err)
	}
	if ms.debtors[7].Balance != nil {
		t.Fatal("expected a nil balance for an overflown account")
	}
}

func TestAccountPurgeRootCascade(t *testing.T) {
	ms := newMemStore()
	svc := newTestService(ms)
	ctx := context.Background()
	activatedDebtor(t, svc, 7)
	if _, err := svc.InitiateTransfer(ctx, 7, uuid.New(), "acc-123", 1000, "", ""); err != nil {
		t.Fatalf("InitiateTransfer returned error: %v", err)
	}

	creation := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := accountUpdate(7, domain.RootCreditorID, testTime.Add(-time.Hour), 1)
	if err := svc.ProcessAccountUpdateSignal(ctx, m); err != nil {
		t.Fatalf("ProcessAccountUpdateSignal returned error: %v", err)
	}

	purge := domain.AccountPurgeMessage{DebtorID: 7, CreditorID: domain.RootCreditorID, CreationDate: creation}
	if err := svc.ProcessAccountPurgeSignal(ctx, purge); err != nil {
		t.Fatalf("ProcessAccountPurgeSignal returned error: %v", err)
	}

	d := ms.debtors[7]
	if !d.IsDeactivated() {
		t.Fatal("expected the root purge to deactivate the debtor")
	}
	if len(ms.transfers) != 0 || d.RunningTransfersCount != 0 {
		t.Fatalf("expected running transfers to be discarded, got %d rows count=%d",
			len(ms.transfers), d.RunningTransfersCount)
	}
	if _, ok := ms.accounts[accountKey{7, domain.RootCreditorID}]; ok {
		t.Fatal("expected the mirrored account to be deleted")
	}

	deactivatedAt := *d.DeactivatedAt
	if err := svc.ProcessAccountPurgeSignal(ctx, purge); err != nil {
		t.Fatalf("redelivered ProcessAccountPurgeSignal returned error: %v", err)
	}
	if !d.DeactivatedAt.Equal(deactivatedAt) {
		t.Fatal("expected redelivery to keep the original deactivation timestamp")
	}
}

func TestAccountPurgeIgnoresYoungerIncarnation(t *testing.T) {
	ms := newMemStore()
	svc := newTestService(ms)
	ctx := context.Background()

	m := accountUpdate(7, 11, testTime.Add(-time.Hour), 1)
	if err := svc.ProcessAccountUpdateSignal(ctx, m); err != nil {
		t.Fatalf("ProcessAccountUpdateSignal returned error: %v", err)
	}

	err := svc.ProcessAccountPurgeSignal(ctx, domain.AccountPurgeMessage{
		DebtorID:     7,
		CreditorID:   11,
		CreationDate: m.CreationDate.AddDate(0, 0, -1),
	})
	if err != nil {
		t.Fatalf("ProcessAccountPurgeSignal returned error: %v", err)
	}
	if _, ok := ms.accounts[accountKey{7, 11}]; !ok {
		t.Fatal("expected the purge of an older incarnation to be ignored")
	}
}

func TestRejectedConfigRecordsError(t *testing.T) {
	ms := newMemStore()
	svc := newTestService(ms)
	ctx := context.Background()
	d := activatedDebtor(t, svc, 7)

	matching := domain.RejectedConfigMessage{
		DebtorID:      7,
		CreditorID:    domain.RootCreditorID,
		ConfigTS:      d.LastConfigTS,
		ConfigSeqnum:  d.LastConfigSeqnum,
		ConfigData:    d.ConfigData,
		ConfigFlags:   d.ConfigFlags,
		RejectionCode: "CONFIG_IS_INVALID",
	}
	if err := svc.ProcessRejectedConfigSignal(ctx, matching); err != nil {
		t.Fatalf("ProcessRejectedConfigSignal returned error: %v", err)
	}
	got := ms.debtors[7]
	if got.ConfigError == nil || *got.ConfigError != "CONFIG_IS_INVALID" {
		t.Fatalf("expected the rejection code to be recorded, got %v", got.ConfigError)
	}
}

func TestRejectedConfigIgnoresStaleRejection(t *testing.T) {
	ms := newMemStore()
	svc := newTestService(ms)
	ctx := context.Background()
	d := activatedDebtor(t, svc, 7)

	stale := domain.RejectedConfigMessage{
		DebtorID:      7,
		CreditorID:    domain.RootCreditorID,
		ConfigTS:      d.LastConfigTS,
		ConfigSeqnum:  d.LastConfigSeqnum - 1,
		ConfigData:    d.ConfigData,
		ConfigFlags:   d.ConfigFlags,
		RejectionCode: "CONFIG_IS_INVALID",
	}
	if err := svc.ProcessRejectedConfigSignal(ctx, stale); err != nil {
		t.Fatalf("ProcessRejectedConfigSignal returned error: %v", err)
	}
	if ms.debtors[7].ConfigError != nil {
		t.Fatal("expected a stale rejection to be ignored")
	}
}
