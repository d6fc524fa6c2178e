package app

import (
	"context"
	"fmt"
	"testing"

	"github.com/issuemint/debtors-agent/internal/domain"
)

func newTestConsumer(svc *Service) (*SignalConsumer, *[]string) {
	c := NewSignalConsumer(svc, domain.NodeConfig{MinDebtorID: 1, MaxDebtorID: 1 << 40})
	var fatals []string
	c.fatalf = func(format string, v ...any) {
		fatals = append(fatals, fmt.Sprintf(format, v...))
	}
	return c, &fatals
}

func TestHandleMessageDropsUnknownType(t *testing.T) {
	ms := newMemStore()
	svc := newTestService(ms)
	c, _ := newTestConsumer(svc)

	if !c.HandleMessage(context.Background(), []byte(`{"type":"SomethingElse","debtor_id":7}`)) {
		t.Fatal("expected an unknown signal to be acknowledged and dropped")
	}
}

func TestHandleMessageDropsMalformedBody(t *testing.T) {
	ms := newMemStore()
	svc := newTestService(ms)
	c, _ := newTestConsumer(svc)

	if !c.HandleMessage(context.Background(), []byte(`{"type":`)) {
		t.Fatal("expected a malformed signal to be acknowledged and dropped")
	}
}

func TestHandleMessageShardMismatchIsFatal(t *testing.T) {
	ms := newMemStore()
	svc := newTestService(ms)
	c, fatals := newTestConsumer(svc)

	body := []byte(`{"type":"AccountPurge","debtor_id":0,"creditor_id":0}`)
	if c.HandleMessage(context.Background(), body) {
		t.Fatal("expected a misrouted signal not to be acknowledged")
	}
	if len(*fatals) != 1 {
		t.Fatalf("expected the shard mismatch to be fatal, got %d fatal calls", len(*fatals))
	}
}

func TestHandleMessageDropsPermanentFailure(t *testing.T) {
	ms := newMemStore()
	svc := newTestService(ms)
	c, _ := newTestConsumer(svc)

	// Activating a debtor that was never reserved can never succeed, no
	// matter how many times the broker redelivers it.
	body := []byte(`{"type":"ActivateDebtor","debtor_id":7,"reservation_id":123}`)
	if !c.HandleMessage(context.Background(), body) {
		t.Fatal("expected a permanently failing signal to be acknowledged and dropped")
	}
}

func TestHandleMessageProcessesAccountUpdate(t *testing.T) {
	ms := newMemStore()
	svc := newTestService(ms)
	c, _ := newTestConsumer(svc)

	body := fmt.Appendf(nil,
		`{"type":"AccountUpdate","debtor_id":7,"creditor_id":11,`+
			`"creation_date":"2026-01-01T00:00:00Z","last_change_ts":%q,`+
			`"last_change_seqnum":1,"principal":1234,"ts":%q,"ttl":1000000}`,
		testTime.Format("2006-01-02T15:04:05Z"), testTime.Format("2006-01-02T15:04:05Z"))
	if !c.HandleMessage(context.Background(), body) {
		t.Fatal("expected the account update to be acknowledged")
	}
	a := ms.accounts[accountKey{7, 11}]
	if a == nil || a.Principal != 1234 {
		t.Fatalf("expected the update to reach the mirror, got %+v", a)
	}
}
