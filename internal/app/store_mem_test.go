package app

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/issuemint/debtors-agent/internal/domain"
	"github.com/issuemint/debtors-agent/internal/store"
)

// memStore is an in-memory Store used by the service tests. It intentionally
// skips transactional rollback: tests only assert states the service commits.
type memStore struct {
	nodeCfg   *domain.NodeConfig
	debtors   map[int64]*domain.Debtor
	accounts  map[accountKey]*domain.Account
	transfers map[transferKey]*domain.RunningTransfer
	documents map[documentKey]*domain.Document
	outbox    []*domain.OutboxRecord

	nextReservationID        int64
	nextCoordinatorRequestID int64
	nextDocumentID           int64
	nextSignalID             int64
}

type accountKey struct {
	debtorID   int64
	creditorID int64
}

type transferKey struct {
	debtorID     int64
	transferUUID uuid.UUID
}

type documentKey struct {
	debtorID   int64
	documentID int64
}

func newMemStore() *memStore {
	return &memStore{
		nodeCfg:   &domain.NodeConfig{MinDebtorID: 1, MaxDebtorID: 1 << 40},
		debtors:   make(map[int64]*domain.Debtor),
		accounts:  make(map[accountKey]*domain.Account),
		transfers: make(map[transferKey]*domain.RunningTransfer),
		documents: make(map[documentKey]*domain.Document),
	}
}

func (s *memStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return fn(&memTx{s})
}

type memTx struct {
	s *memStore
}

func (t *memTx) GetNodeConfig(ctx context.Context) (*domain.NodeConfig, error) {
	if t.s.nodeCfg == nil {
		return nil, store.ErrNodeConfigMissing
	}
	cfg := *t.s.nodeCfg
	return &cfg, nil
}

func (t *memTx) UpsertNodeConfig(ctx context.Context, cfg domain.NodeConfig) error {
	t.s.nodeCfg = &cfg
	return nil
}

func (t *memTx) GetDebtor(ctx context.Context, debtorID int64, lock bool) (*domain.Debtor, error) {
	d, ok := t.s.debtors[debtorID]
	if !ok {
		return nil, store.ErrDebtorNotFound
	}
	return d, nil
}

func (t *memTx) CreateDebtor(ctx context.Context, d *domain.Debtor) error {
	if _, ok := t.s.debtors[d.DebtorID]; ok {
		return store.ErrDebtorExists
	}
	t.s.nextReservationID++
	id := t.s.nextReservationID
	d.ReservationID = &id
	t.s.debtors[d.DebtorID] = d
	return nil
}

func (t *memTx) UpdateDebtor(ctx context.Context, d *domain.Debtor) error {
	t.s.debtors[d.DebtorID] = d
	return nil
}

func (t *memTx) DeleteDebtor(ctx context.Context, debtorID int64) error {
	delete(t.s.debtors, debtorID)
	for k := range t.s.transfers {
		if k.debtorID == debtorID {
			delete(t.s.transfers, k)
		}
	}
	return nil
}

func (t *memTx) ListActivatedDebtorIDs(ctx context.Context, startFrom int64, count int) ([]int64, error) {
	var ids []int64
	for id, d := range t.s.debtors {
		if id >= startFrom && d.IsActivated() {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if len(ids) > count {
		ids = ids[:count]
	}
	return ids, nil
}

func (t *memTx) ListStaleDebtors(ctx context.Context, reservedBefore, deactivatedBefore time.Time, limit int) ([]*domain.Debtor, error) {
	var out []*domain.Debtor
	for _, d := range t.s.debtors {
		switch {
		case !d.IsActivated() && d.CreatedAt.Before(reservedBefore):
			out = append(out, d)
		case d.DeactivatedAt != nil && d.DeactivatedAt.Before(deactivatedBefore):
			out = append(out, d)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (t *memTx) ListUnconfirmedConfigDebtors(ctx context.Context, configBefore time.Time, limit int) ([]*domain.Debtor, error) {
	var out []*domain.Debtor
	for _, d := range t.s.debtors {
		if d.IsActive() && !d.IsConfigEffectual && d.ConfigError == nil && d.LastConfigTS.Before(configBefore) {
			out = append(out, d)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (t *memTx) GetAccount(ctx context.Context, debtorID, creditorID int64, lock bool) (*domain.Account, error) {
	a, ok := t.s.accounts[accountKey{debtorID, creditorID}]
	if !ok {
		return nil, store.ErrAccountNotFound
	}
	return a, nil
}

func (t *memTx) CreateAccount(ctx context.Context, a *domain.Account) error {
	t.s.accounts[accountKey{a.DebtorID, a.CreditorID}] = a
	return nil
}

func (t *memTx) UpdateAccount(ctx context.Context, a *domain.Account) error {
	t.s.accounts[accountKey{a.DebtorID, a.CreditorID}] = a
	return nil
}

func (t *memTx) DeleteAccount(ctx context.Context, debtorID, creditorID int64) error {
	delete(t.s.accounts, accountKey{debtorID, creditorID})
	return nil
}

func (t *memTx) ListAccountsFrom(ctx context.Context, debtorID, creditorID int64, limit int) ([]*domain.Account, error) {
	var out []*domain.Account
	for _, a := range t.s.accounts {
		if a.DebtorID > debtorID || (a.DebtorID == debtorID && a.CreditorID >= creditorID) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DebtorID != out[j].DebtorID {
			return out[i].DebtorID < out[j].DebtorID
		}
		return out[i].CreditorID < out[j].CreditorID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (t *memTx) GetTransfer(ctx context.Context, debtorID int64, transferUUID uuid.UUID, lock bool) (*domain.RunningTransfer, error) {
	tr, ok := t.s.transfers[transferKey{debtorID, transferUUID}]
	if !ok {
		return nil, store.ErrTransferNotFound
	}
	return tr, nil
}

func (t *memTx) CreateTransfer(ctx context.Context, tr *domain.RunningTransfer) error {
	key := transferKey{tr.DebtorID, tr.TransferUUID}
	if _, ok := t.s.transfers[key]; ok {
		return store.ErrTransfersConflict
	}
	t.s.nextCoordinatorRequestID++
	tr.CoordinatorRequestID = t.s.nextCoordinatorRequestID
	t.s.transfers[key] = tr
	return nil
}

func (t *memTx) UpdateTransfer(ctx context.Context, tr *domain.RunningTransfer) error {
	t.s.transfers[transferKey{tr.DebtorID, tr.TransferUUID}] = tr
	return nil
}

func (t *memTx) DeleteTransfer(ctx context.Context, debtorID int64, transferUUID uuid.UUID) (bool, error) {
	key := transferKey{debtorID, transferUUID}
	if _, ok := t.s.transfers[key]; !ok {
		return false, nil
	}
	delete(t.s.transfers, key)
	return true, nil
}

func (t *memTx) ListTransferUUIDs(ctx context.Context, debtorID int64) ([]uuid.UUID, error) {
	var out []uuid.UUID
	for k := range t.s.transfers {
		if k.debtorID == debtorID {
			out = append(out, k.transferUUID)
		}
	}
	return out, nil
}

func (t *memTx) GetTransferByCoordinatorRequestID(ctx context.Context, debtorID, coordinatorRequestID int64, lock bool) (*domain.RunningTransfer, error) {
	for _, tr := range t.s.transfers {
		if tr.DebtorID == debtorID && tr.CoordinatorRequestID == coordinatorRequestID {
			return tr, nil
		}
	}
	return nil, store.ErrTransferNotFound
}

func (t *memTx) DeleteDebtorTransfers(ctx context.Context, debtorID int64) (int64, error) {
	var n int64
	for k := range t.s.transfers {
		if k.debtorID == debtorID {
			delete(t.s.transfers, k)
			n++
		}
	}
	return n, nil
}

func (t *memTx) ListFinalizedTransfersBefore(ctx context.Context, cutoff time.Time, limit int) ([]*domain.RunningTransfer, error) {
	var out []*domain.RunningTransfer
	for _, tr := range t.s.transfers {
		if tr.FinalizedAt != nil && tr.FinalizedAt.Before(cutoff) {
			out = append(out, tr)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (t *memTx) CreateDocument(ctx context.Context, doc *domain.Document) error {
	t.s.nextDocumentID++
	doc.DocumentID = t.s.nextDocumentID
	t.s.documents[documentKey{doc.DebtorID, doc.DocumentID}] = doc
	return nil
}

func (t *memTx) GetDocument(ctx context.Context, debtorID, documentID int64) (*domain.Document, error) {
	doc, ok := t.s.documents[documentKey{debtorID, documentID}]
	if !ok {
		return nil, store.ErrDocumentNotFound
	}
	return doc, nil
}

func (t *memTx) AppendOutbox(ctx context.Context, rec *domain.OutboxRecord) error {
	t.s.nextSignalID++
	rec.SignalID = t.s.nextSignalID
	t.s.outbox = append(t.s.outbox, rec)
	return nil
}

func (t *memTx) ClaimOutbox(ctx context.Context, limit int) ([]*domain.OutboxRecord, error) {
	if len(t.s.outbox) > limit {
		return t.s.outbox[:limit], nil
	}
	return t.s.outbox, nil
}

func (t *memTx) DeleteOutbox(ctx context.Context, signalIDs []int64) error {
	drop := make(map[int64]bool, len(signalIDs))
	for _, id := range signalIDs {
		drop[id] = true
	}
	kept := t.s.outbox[:0]
	for _, rec := range t.s.outbox {
		if !drop[rec.SignalID] {
			kept = append(kept, rec)
		}
	}
	t.s.outbox = kept
	return nil
}

// outboxTypes returns the signal types currently queued, in append order.
func (s *memStore) outboxTypes() []string {
	out := make([]string, len(s.outbox))
	for i, rec := range s.outbox {
		out[i] = rec.SignalType
	}
	return out
}
