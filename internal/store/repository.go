/**
 * @description
 * This file defines the data-access contract for the debtors agent. The core
 * state machines never touch the database directly: every mutating operation
 * runs inside exactly one transaction (operation boundary = transaction
 * boundary), obtained through Store.WithTx, and issues reads/writes through
 * the Tx interface. This keeps the state-machine logic free of persistence
 * concerns and testable with in-memory fakes.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - github.com/google/uuid: Transfer UUIDs.
 * - internal/domain: The agent's domain models.
 */

package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/issuemint/debtors-agent/internal/domain"
)

var (
	ErrDebtorNotFound    = errors.New("debtor not found")
	ErrDebtorExists      = errors.New("debtor already exists")
	ErrAccountNotFound   = errors.New("account not found")
	ErrTransferNotFound  = errors.New("transfer not found")
	ErrTransfersConflict = errors.New("conflicting transfer with the same uuid")
	ErrDocumentNotFound  = errors.New("document not found")
	ErrNodeConfigMissing = errors.New("node configuration missing")
)

// Store hands out one transaction per unit of work.
type Store interface {
	// WithTx runs fn inside a single database transaction, committing when
	// fn returns nil and rolling back otherwise. No partial state is ever
	// visible to other transactions.
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the set of data-access methods available inside one transaction.
type Tx interface {
	// Node configuration (a singleton: the debtor-ID shard interval).
	GetNodeConfig(ctx context.Context) (*domain.NodeConfig, error)
	UpsertNodeConfig(ctx context.Context, cfg domain.NodeConfig) error

	// Debtors.
	GetDebtor(ctx context.Context, debtorID int64, lock bool) (*domain.Debtor, error)
	CreateDebtor(ctx context.Context, d *domain.Debtor) error
	UpdateDebtor(ctx context.Context, d *domain.Debtor) error
	DeleteDebtor(ctx context.Context, debtorID int64) error
	ListActivatedDebtorIDs(ctx context.Context, startFrom int64, count int) ([]int64, error)
	// ListStaleDebtors returns debtors eligible for retention deletion:
	// reservations never activated before reservedBefore, and debtors
	// deactivated before deactivatedBefore. Rows are claimed with
	// FOR UPDATE SKIP LOCKED so overlapping scanners never double-act.
	ListStaleDebtors(ctx context.Context, reservedBefore, deactivatedBefore time.Time, limit int) ([]*domain.Debtor, error)
	// ListUnconfirmedConfigDebtors returns active debtors whose last config
	// change is older than configBefore but still unconfirmed by an account
	// update, and which carry no config error yet.
	ListUnconfirmedConfigDebtors(ctx context.Context, configBefore time.Time, limit int) ([]*domain.Debtor, error)

	// Account mirrors.
	GetAccount(ctx context.Context, debtorID, creditorID int64, lock bool) (*domain.Account, error)
	CreateAccount(ctx context.Context, a *domain.Account) error
	UpdateAccount(ctx context.Context, a *domain.Account) error
	DeleteAccount(ctx context.Context, debtorID, creditorID int64) error
	// ListAccountsFrom pages through the account table in primary-key
	// order, starting at (debtorID, creditorID) inclusive and claiming the
	// batch with FOR UPDATE SKIP LOCKED.
	ListAccountsFrom(ctx context.Context, debtorID, creditorID int64, limit int) ([]*domain.Account, error)

	// Running transfers.
	GetTransfer(ctx context.Context, debtorID int64, transferUUID uuid.UUID, lock bool) (*domain.RunningTransfer, error)
	// CreateTransfer inserts the record and assigns CoordinatorRequestID
	// from the dedicated monotonic sequence.
	CreateTransfer(ctx context.Context, t *domain.RunningTransfer) error
	UpdateTransfer(ctx context.Context, t *domain.RunningTransfer) error
	DeleteTransfer(ctx context.Context, debtorID int64, transferUUID uuid.UUID) (bool, error)
	ListTransferUUIDs(ctx context.Context, debtorID int64) ([]uuid.UUID, error)
	GetTransferByCoordinatorRequestID(ctx context.Context, debtorID, coordinatorRequestID int64, lock bool) (*domain.RunningTransfer, error)
	DeleteDebtorTransfers(ctx context.Context, debtorID int64) (int64, error)
	// ListFinalizedTransfersBefore claims (FOR UPDATE SKIP LOCKED) transfers
	// finalized before the cutoff, for retention deletion.
	ListFinalizedTransfersBefore(ctx context.Context, cutoff time.Time, limit int) ([]*domain.RunningTransfer, error)

	// Documents.
	CreateDocument(ctx context.Context, doc *domain.Document) error
	GetDocument(ctx context.Context, debtorID, documentID int64) (*domain.Document, error)

	// Outbox.
	AppendOutbox(ctx context.Context, rec *domain.OutboxRecord) error
	ClaimOutbox(ctx context.Context, limit int) ([]*domain.OutboxRecord, error)
	DeleteOutbox(ctx context.Context, signalIDs []int64) error
}
