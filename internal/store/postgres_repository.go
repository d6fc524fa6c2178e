/**
 * @description
 * PostgreSQL implementation of the Store/Tx contract, built on pgx/v5. All
 * row locking ("FOR UPDATE", "FOR UPDATE SKIP LOCKED") lives here; callers
 * only state intent through the lock flags and the claim methods.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: PostgreSQL driver (pgxpool, pgx.Tx, pgconn).
 * - internal/domain: Domain models.
 */

package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/issuemint/debtors-agent/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUniqueViolation = "23505"

// PostgresStore is the pgx-backed implementation of Store.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	pgtx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer pgtx.Rollback(ctx)

	if err := fn(&postgresTx{tx: pgtx}); err != nil {
		return err
	}
	return pgtx.Commit(ctx)
}

type postgresTx struct {
	tx pgx.Tx
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// --- Node configuration ---

func (t *postgresTx) GetNodeConfig(ctx context.Context) (*domain.NodeConfig, error) {
	var cfg domain.NodeConfig
	err := t.tx.QueryRow(ctx,
		`SELECT min_debtor_id, max_debtor_id FROM node_config`,
	).Scan(&cfg.MinDebtorID, &cfg.MaxDebtorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNodeConfigMissing
		}
		return nil, err
	}
	return &cfg, nil
}

func (t *postgresTx) UpsertNodeConfig(ctx context.Context, cfg domain.NodeConfig) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO node_config (is_effective, min_debtor_id, max_debtor_id)
		VALUES (TRUE, $1, $2)
		ON CONFLICT (is_effective)
		DO UPDATE SET min_debtor_id = EXCLUDED.min_debtor_id, max_debtor_id = EXCLUDED.max_debtor_id
	`, cfg.MinDebtorID, cfg.MaxDebtorID)
	return err
}

// --- Debtors ---

const debtorColumns = `
	debtor_id, status_flags, reservation_id, created_at, deactivated_at,
	balance, balance_last_update_ts, interest_rate_target,
	balance_limit_values, balance_limit_cutoffs,
	interest_rate_limit_values, interest_rate_limit_cutoffs,
	running_transfers_count, actions_count, actions_reset_at,
	documents_count, documents_reset_at,
	has_server_account, account_id, transfer_note_max_bytes,
	config_data, config_flags, config_error, config_latest_update_id,
	config_last_update_ts, is_config_effectual, last_config_ts, last_config_seqnum,
	debtor_info_iri`

func scanDebtor(row pgx.Row) (*domain.Debtor, error) {
	var (
		d                domain.Debtor
		balanceValues    []int64
		balanceCutoffs   []time.Time
		rateValues       []float64
		rateCutoffs      []time.Time
	)
	err := row.Scan(
		&d.DebtorID, &d.StatusFlags, &d.ReservationID, &d.CreatedAt, &d.DeactivatedAt,
		&d.Balance, &d.BalanceLastUpdateTS, &d.InterestRateTarget,
		&balanceValues, &balanceCutoffs,
		&rateValues, &rateCutoffs,
		&d.RunningTransfersCount, &d.ActionsCount, &d.ActionsResetAt,
		&d.DocumentsCount, &d.DocumentsResetAt,
		&d.HasServerAccount, &d.AccountID, &d.TransferNoteMaxBytes,
		&d.ConfigData, &d.ConfigFlags, &d.ConfigError, &d.ConfigLatestUpdateID,
		&d.ConfigLastUpdateTS, &d.IsConfigEffectual, &d.LastConfigTS, &d.LastConfigSeqnum,
		&d.DebtorInfoIRI,
	)
	if err != nil {
		return nil, err
	}
	d.BalanceLowerLimits = unpackLimits(balanceValues, balanceCutoffs)
	d.InterestRateLowerLimits = unpackLimits(rateValues, rateCutoffs)
	return &d, nil
}

func unpackLimits[T domain.LimitValue](values []T, cutoffs []time.Time) domain.LowerLimitSequence[T] {
	n := len(values)
	if len(cutoffs) < n {
		n = len(cutoffs)
	}
	limits := make([]domain.LowerLimit[T], 0, n)
	for i := 0; i < n; i++ {
		limits = append(limits, domain.LowerLimit[T]{Value: values[i], Cutoff: cutoffs[i]})
	}
	return domain.NewLowerLimitSequence(limits...)
}

func packLimits[T domain.LimitValue](s domain.LowerLimitSequence[T]) ([]T, []time.Time) {
	limits := s.Limits()
	values := make([]T, len(limits))
	cutoffs := make([]time.Time, len(limits))
	for i, l := range limits {
		values[i] = l.Value
		cutoffs[i] = l.Cutoff
	}
	return values, cutoffs
}

func (t *postgresTx) GetDebtor(ctx context.Context, debtorID int64, lock bool) (*domain.Debtor, error) {
	query := `SELECT ` + debtorColumns + ` FROM debtor WHERE debtor_id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	d, err := scanDebtor(t.tx.QueryRow(ctx, query, debtorID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDebtorNotFound
		}
		return nil, err
	}
	return d, nil
}

func (t *postgresTx) CreateDebtor(ctx context.Context, d *domain.Debtor) error {
	balanceValues, balanceCutoffs := packLimits(d.BalanceLowerLimits)
	rateValues, rateCutoffs := packLimits(d.InterestRateLowerLimits)
	err := t.tx.QueryRow(ctx, `
		INSERT INTO debtor (
			debtor_id, status_flags, reservation_id, created_at, deactivated_at,
			balance, balance_last_update_ts, interest_rate_target,
			balance_limit_values, balance_limit_cutoffs,
			interest_rate_limit_values, interest_rate_limit_cutoffs,
			running_transfers_count, actions_count, actions_reset_at,
			documents_count, documents_reset_at,
			has_server_account, account_id, transfer_note_max_bytes,
			config_data, config_flags, config_error, config_latest_update_id,
			config_last_update_ts, is_config_effectual, last_config_ts, last_config_seqnum,
			debtor_info_iri
		) VALUES (
			$1, $2, nextval('debtor_reservation_id_seq'), $3, $4,
			$5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
			$17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28
		)
		RETURNING reservation_id
	`,
		d.DebtorID, d.StatusFlags, d.CreatedAt, d.DeactivatedAt,
		d.Balance, d.BalanceLastUpdateTS, d.InterestRateTarget,
		balanceValues, balanceCutoffs, rateValues, rateCutoffs,
		d.RunningTransfersCount, d.ActionsCount, d.ActionsResetAt,
		d.DocumentsCount, d.DocumentsResetAt,
		d.HasServerAccount, d.AccountID, d.TransferNoteMaxBytes,
		d.ConfigData, d.ConfigFlags, d.ConfigError, d.ConfigLatestUpdateID,
		d.ConfigLastUpdateTS, d.IsConfigEffectual, d.LastConfigTS, d.LastConfigSeqnum,
		d.DebtorInfoIRI,
	).Scan(&d.ReservationID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDebtorExists
		}
		return err
	}
	return nil
}

func (t *postgresTx) UpdateDebtor(ctx context.Context, d *domain.Debtor) error {
	balanceValues, balanceCutoffs := packLimits(d.BalanceLowerLimits)
	rateValues, rateCutoffs := packLimits(d.InterestRateLowerLimits)
	_, err := t.tx.Exec(ctx, `
		UPDATE debtor SET
			status_flags = $2, reservation_id = $3, deactivated_at = $4,
			balance = $5, balance_last_update_ts = $6, interest_rate_target = $7,
			balance_limit_values = $8, balance_limit_cutoffs = $9,
			interest_rate_limit_values = $10, interest_rate_limit_cutoffs = $11,
			running_transfers_count = $12, actions_count = $13, actions_reset_at = $14,
			documents_count = $15, documents_reset_at = $16,
			has_server_account = $17, account_id = $18, transfer_note_max_bytes = $19,
			config_data = $20, config_flags = $21, config_error = $22,
			config_latest_update_id = $23, config_last_update_ts = $24,
			is_config_effectual = $25, last_config_ts = $26, last_config_seqnum = $27,
			debtor_info_iri = $28
		WHERE debtor_id = $1
	`,
		d.DebtorID, d.StatusFlags, d.ReservationID, d.DeactivatedAt,
		d.Balance, d.BalanceLastUpdateTS, d.InterestRateTarget,
		balanceValues, balanceCutoffs, rateValues, rateCutoffs,
		d.RunningTransfersCount, d.ActionsCount, d.ActionsResetAt,
		d.DocumentsCount, d.DocumentsResetAt,
		d.HasServerAccount, d.AccountID, d.TransferNoteMaxBytes,
		d.ConfigData, d.ConfigFlags, d.ConfigError,
		d.ConfigLatestUpdateID, d.ConfigLastUpdateTS,
		d.IsConfigEffectual, d.LastConfigTS, d.LastConfigSeqnum,
		d.DebtorInfoIRI,
	)
	return err
}

func (t *postgresTx) DeleteDebtor(ctx context.Context, debtorID int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM debtor WHERE debtor_id = $1`, debtorID)
	return err
}

func (t *postgresTx) ListActivatedDebtorIDs(ctx context.Context, startFrom int64, count int) ([]int64, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT debtor_id FROM debtor
		WHERE debtor_id >= $1
		  AND status_flags & $2 = $3
		ORDER BY debtor_id
		LIMIT $4
	`, startFrom,
		domain.DebtorStatusActivatedFlag|domain.DebtorStatusDeactivatedFlag,
		domain.DebtorStatusActivatedFlag,
		count)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (t *postgresTx) ListStaleDebtors(ctx context.Context, reservedBefore, deactivatedBefore time.Time, limit int) ([]*domain.Debtor, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+debtorColumns+` FROM debtor
		WHERE (status_flags & $1 = 0 AND created_at < $2)
		   OR (deactivated_at IS NOT NULL AND deactivated_at < $3)
		LIMIT $4
		FOR UPDATE SKIP LOCKED
	`, domain.DebtorStatusActivatedFlag, reservedBefore, deactivatedBefore, limit)
	if err != nil {
		return nil, err
	}
	return collectDebtors(rows)
}

func (t *postgresTx) ListUnconfirmedConfigDebtors(ctx context.Context, configBefore time.Time, limit int) ([]*domain.Debtor, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+debtorColumns+` FROM debtor
		WHERE status_flags & $1 = $2
		  AND NOT is_config_effectual
		  AND config_error IS NULL
		  AND config_last_update_ts < $3
		LIMIT $4
		FOR UPDATE SKIP LOCKED
	`, domain.DebtorStatusActivatedFlag|domain.DebtorStatusDeactivatedFlag,
		domain.DebtorStatusActivatedFlag, configBefore, limit)
	if err != nil {
		return nil, err
	}
	return collectDebtors(rows)
}

func collectDebtors(rows pgx.Rows) ([]*domain.Debtor, error) {
	defer rows.Close()
	var debtors []*domain.Debtor
	for rows.Next() {
		d, err := scanDebtor(rows)
		if err != nil {
			return nil, err
		}
		debtors = append(debtors, d)
	}
	return debtors, rows.Err()
}

// --- Account mirrors ---

const accountColumns = `
	debtor_id, creditor_id, creation_date, last_change_seqnum, last_change_ts,
	principal, interest, interest_rate, last_interest_rate_change_ts,
	last_outgoing_transfer_date, negligible_amount, config_flags, status_flags,
	last_heartbeat_ts, is_muted, last_maintenance_request_ts,
	last_deletion_attempt_ts, last_capitalization_ts`

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var a domain.Account
	err := row.Scan(
		&a.DebtorID, &a.CreditorID, &a.CreationDate, &a.LastChangeSeqnum, &a.LastChangeTS,
		&a.Principal, &a.Interest, &a.InterestRate, &a.LastInterestRateChangeTS,
		&a.LastOutgoingTransferDate, &a.NegligibleAmount, &a.ConfigFlags, &a.StatusFlags,
		&a.LastHeartbeatTS, &a.IsMuted, &a.LastMaintenanceRequestTS,
		&a.LastDeletionAttemptTS, &a.LastCapitalizationTS,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (t *postgresTx) GetAccount(ctx context.Context, debtorID, creditorID int64, lock bool) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM account WHERE debtor_id = $1 AND creditor_id = $2`
	if lock {
		query += ` FOR UPDATE`
	}
	a, err := scanAccount(t.tx.QueryRow(ctx, query, debtorID, creditorID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return a, nil
}

func (t *postgresTx) CreateAccount(ctx context.Context, a *domain.Account) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO account (
			debtor_id, creditor_id, creation_date, last_change_seqnum, last_change_ts,
			principal, interest, interest_rate, last_interest_rate_change_ts,
			last_outgoing_transfer_date, negligible_amount, config_flags, status_flags,
			last_heartbeat_ts, is_muted, last_maintenance_request_ts,
			last_deletion_attempt_ts, last_capitalization_ts
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`,
		a.DebtorID, a.CreditorID, a.CreationDate, a.LastChangeSeqnum, a.LastChangeTS,
		a.Principal, a.Interest, a.InterestRate, a.LastInterestRateChangeTS,
		a.LastOutgoingTransferDate, a.NegligibleAmount, a.ConfigFlags, a.StatusFlags,
		a.LastHeartbeatTS, a.IsMuted, a.LastMaintenanceRequestTS,
		a.LastDeletionAttemptTS, a.LastCapitalizationTS,
	)
	return err
}

func (t *postgresTx) UpdateAccount(ctx context.Context, a *domain.Account) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE account SET
			creation_date = $3, last_change_seqnum = $4, last_change_ts = $5,
			principal = $6, interest = $7, interest_rate = $8,
			last_interest_rate_change_ts = $9, last_outgoing_transfer_date = $10,
			negligible_amount = $11, config_flags = $12, status_flags = $13,
			last_heartbeat_ts = $14, is_muted = $15, last_maintenance_request_ts = $16,
			last_deletion_attempt_ts = $17, last_capitalization_ts = $18
		WHERE debtor_id = $1 AND creditor_id = $2
	`,
		a.DebtorID, a.CreditorID, a.CreationDate, a.LastChangeSeqnum, a.LastChangeTS,
		a.Principal, a.Interest, a.InterestRate, a.LastInterestRateChangeTS,
		a.LastOutgoingTransferDate, a.NegligibleAmount, a.ConfigFlags, a.StatusFlags,
		a.LastHeartbeatTS, a.IsMuted, a.LastMaintenanceRequestTS,
		a.LastDeletionAttemptTS, a.LastCapitalizationTS,
	)
	return err
}

func (t *postgresTx) DeleteAccount(ctx context.Context, debtorID, creditorID int64) error {
	_, err := t.tx.Exec(ctx,
		`DELETE FROM account WHERE debtor_id = $1 AND creditor_id = $2`,
		debtorID, creditorID)
	return err
}

func (t *postgresTx) ListAccountsFrom(ctx context.Context, debtorID, creditorID int64, limit int) ([]*domain.Account, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+accountColumns+` FROM account
		WHERE (debtor_id, creditor_id) >= ($1, $2)
		ORDER BY debtor_id, creditor_id
		LIMIT $3
		FOR UPDATE SKIP LOCKED
	`, debtorID, creditorID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []*domain.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// --- Running transfers ---

const transferColumns = `
	debtor_id, transfer_uuid, recipient, amount, transfer_note_format,
	transfer_note, started_at, coordinator_request_id, transfer_id,
	finalized_at, error_code, committed_amount, total_locked_amount`

func scanTransfer(row pgx.Row) (*domain.RunningTransfer, error) {
	var rt domain.RunningTransfer
	err := row.Scan(
		&rt.DebtorID, &rt.TransferUUID, &rt.Recipient, &rt.Amount, &rt.TransferNoteFormat,
		&rt.TransferNote, &rt.StartedAt, &rt.CoordinatorRequestID, &rt.TransferID,
		&rt.FinalizedAt, &rt.ErrorCode, &rt.CommittedAmount, &rt.TotalLockedAmount,
	)
	if err != nil {
		return nil, err
	}
	return &rt, nil
}

func (t *postgresTx) GetTransfer(ctx context.Context, debtorID int64, transferUUID uuid.UUID, lock bool) (*domain.RunningTransfer, error) {
	query := `SELECT ` + transferColumns + ` FROM running_transfer WHERE debtor_id = $1 AND transfer_uuid = $2`
	if lock {
		query += ` FOR UPDATE`
	}
	rt, err := scanTransfer(t.tx.QueryRow(ctx, query, debtorID, transferUUID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransferNotFound
		}
		return nil, err
	}
	return rt, nil
}

func (t *postgresTx) CreateTransfer(ctx context.Context, rt *domain.RunningTransfer) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO running_transfer (
			debtor_id, transfer_uuid, recipient, amount, transfer_note_format,
			transfer_note, started_at, coordinator_request_id, transfer_id,
			finalized_at, error_code, committed_amount, total_locked_amount
		) VALUES ($1, $2, $3, $4, $5, $6, $7, nextval('coordinator_request_id_seq'), $8, $9, $10, $11, $12)
		RETURNING coordinator_request_id
	`,
		rt.DebtorID, rt.TransferUUID, rt.Recipient, rt.Amount, rt.TransferNoteFormat,
		rt.TransferNote, rt.StartedAt, rt.TransferID,
		rt.FinalizedAt, rt.ErrorCode, rt.CommittedAmount, rt.TotalLockedAmount,
	).Scan(&rt.CoordinatorRequestID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrTransfersConflict
		}
		return err
	}
	return nil
}

func (t *postgresTx) UpdateTransfer(ctx context.Context, rt *domain.RunningTransfer) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE running_transfer SET
			transfer_id = $3, finalized_at = $4, error_code = $5,
			committed_amount = $6, total_locked_amount = $7
		WHERE debtor_id = $1 AND transfer_uuid = $2
	`,
		rt.DebtorID, rt.TransferUUID, rt.TransferID, rt.FinalizedAt, rt.ErrorCode,
		rt.CommittedAmount, rt.TotalLockedAmount,
	)
	return err
}

func (t *postgresTx) DeleteTransfer(ctx context.Context, debtorID int64, transferUUID uuid.UUID) (bool, error) {
	tag, err := t.tx.Exec(ctx,
		`DELETE FROM running_transfer WHERE debtor_id = $1 AND transfer_uuid = $2`,
		debtorID, transferUUID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (t *postgresTx) ListTransferUUIDs(ctx context.Context, debtorID int64) ([]uuid.UUID, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT transfer_uuid FROM running_transfer WHERE debtor_id = $1 ORDER BY started_at`,
		debtorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var uuids []uuid.UUID
	for rows.Next() {
		var u uuid.UUID
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		uuids = append(uuids, u)
	}
	return uuids, rows.Err()
}

func (t *postgresTx) GetTransferByCoordinatorRequestID(ctx context.Context, debtorID, coordinatorRequestID int64, lock bool) (*domain.RunningTransfer, error) {
	query := `SELECT ` + transferColumns + ` FROM running_transfer WHERE debtor_id = $1 AND coordinator_request_id = $2`
	if lock {
		query += ` FOR UPDATE`
	}
	rt, err := scanTransfer(t.tx.QueryRow(ctx, query, debtorID, coordinatorRequestID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransferNotFound
		}
		return nil, err
	}
	return rt, nil
}

func (t *postgresTx) DeleteDebtorTransfers(ctx context.Context, debtorID int64) (int64, error) {
	tag, err := t.tx.Exec(ctx,
		`DELETE FROM running_transfer WHERE debtor_id = $1`, debtorID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (t *postgresTx) ListFinalizedTransfersBefore(ctx context.Context, cutoff time.Time, limit int) ([]*domain.RunningTransfer, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+transferColumns+` FROM running_transfer
		WHERE finalized_at IS NOT NULL AND finalized_at < $1
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transfers []*domain.RunningTransfer
	for rows.Next() {
		rt, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		transfers = append(transfers, rt)
	}
	return transfers, rows.Err()
}

// --- Documents ---

func (t *postgresTx) CreateDocument(ctx context.Context, doc *domain.Document) error {
	return t.tx.QueryRow(ctx, `
		INSERT INTO document (debtor_id, content_type, content, inserted_at)
		VALUES ($1, $2, $3, $4)
		RETURNING document_id
	`, doc.DebtorID, doc.ContentType, doc.Content, doc.InsertedAt).Scan(&doc.DocumentID)
}

func (t *postgresTx) GetDocument(ctx context.Context, debtorID, documentID int64) (*domain.Document, error) {
	var doc domain.Document
	err := t.tx.QueryRow(ctx, `
		SELECT debtor_id, document_id, content_type, content, inserted_at
		FROM document WHERE debtor_id = $1 AND document_id = $2
	`, debtorID, documentID).Scan(
		&doc.DebtorID, &doc.DocumentID, &doc.ContentType, &doc.Content, &doc.InsertedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}
	return &doc, nil
}

// --- Outbox ---

func (t *postgresTx) AppendOutbox(ctx context.Context, rec *domain.OutboxRecord) error {
	return t.tx.QueryRow(ctx, `
		INSERT INTO outbox (signal_type, routing_key, payload, inserted_at)
		VALUES ($1, $2, $3, $4)
		RETURNING signal_id
	`, rec.SignalType, rec.RoutingKey, rec.Payload, rec.InsertedAt).Scan(&rec.SignalID)
}

func (t *postgresTx) ClaimOutbox(ctx context.Context, limit int) ([]*domain.OutboxRecord, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT signal_id, signal_type, routing_key, payload, inserted_at
		FROM outbox
		ORDER BY signal_id
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*domain.OutboxRecord
	for rows.Next() {
		var rec domain.OutboxRecord
		if err := rows.Scan(&rec.SignalID, &rec.SignalType, &rec.RoutingKey, &rec.Payload, &rec.InsertedAt); err != nil {
			return nil, err
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}

func (t *postgresTx) DeleteOutbox(ctx context.Context, signalIDs []int64) error {
	if len(signalIDs) == 0 {
		return nil
	}
	_, err := t.tx.Exec(ctx,
		`DELETE FROM outbox WHERE signal_id = ANY($1)`, signalIDs)
	return err
}
