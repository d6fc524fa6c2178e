/**
 * @description
 * Outbound signals produced by the core. Each signal is appended to the
 * durable outbox table in the same transaction that decides it, and flushed
 * to the transport by a separate periodic process. The payload builders here
 * fix the wire shape (JSON with a `type` attribute, mirroring the inbound
 * convention) and the routing key each signal kind is published under.
 */

package domain

import (
	"encoding/json"
	"time"
)

// Outbound signal type tags.
const (
	SigConfigureAccount       = "ConfigureAccount"
	SigPrepareTransfer        = "PrepareTransfer"
	SigFinalizeTransfer       = "FinalizeTransfer"
	SigChangeInterestRate     = "ChangeInterestRate"
	SigCapitalizeInterest     = "CapitalizeInterest"
	SigZeroOutNegativeBalance = "ZeroOutNegativeBalance"
	SigTryToDeleteAccount     = "TryToDeleteAccount"
)

// OutboxRecord is one durable, not-yet-published outbound signal.
type OutboxRecord struct {
	SignalID   int64
	SignalType string
	RoutingKey string
	Payload    []byte
	InsertedAt time.Time
}

type ConfigureAccountSignal struct {
	Type             string    `json:"type"`
	DebtorID         int64     `json:"debtor_id"`
	CreditorID       int64     `json:"creditor_id"`
	TS               time.Time `json:"ts"`
	Seqnum           int32     `json:"seqnum"`
	NegligibleAmount float64   `json:"negligible_amount"`
	ConfigData       string    `json:"config_data"`
	ConfigFlags      int32     `json:"config_flags"`
}

type PrepareTransferSignal struct {
	Type                 string    `json:"type"`
	CoordinatorType      string    `json:"coordinator_type"`
	CoordinatorID        int64     `json:"coordinator_id"`
	CoordinatorRequestID int64     `json:"coordinator_request_id"`
	DebtorID             int64     `json:"debtor_id"`
	CreditorID           int64     `json:"creditor_id"`
	Recipient            string    `json:"recipient"`
	MinLockedAmount      int64     `json:"min_locked_amount"`
	MaxLockedAmount      int64     `json:"max_locked_amount"`
	MinAccountBalance    int64     `json:"min_account_balance"`
	MaxCommitDelay       int32     `json:"max_commit_delay"`
	TS                   time.Time `json:"ts"`
}

type FinalizeTransferSignal struct {
	Type                 string    `json:"type"`
	DebtorID             int64     `json:"debtor_id"`
	CreditorID           int64     `json:"creditor_id"`
	TransferID           int64     `json:"transfer_id"`
	CoordinatorType      string    `json:"coordinator_type"`
	CoordinatorID        int64     `json:"coordinator_id"`
	CoordinatorRequestID int64     `json:"coordinator_request_id"`
	CommittedAmount      int64     `json:"committed_amount"`
	TransferNoteFormat   string    `json:"transfer_note_format"`
	TransferNote         string    `json:"transfer_note"`
	TS                   time.Time `json:"ts"`
}

type ChangeInterestRateSignal struct {
	Type         string    `json:"type"`
	DebtorID     int64     `json:"debtor_id"`
	CreditorID   int64     `json:"creditor_id"`
	InterestRate float64   `json:"interest_rate"`
	RequestTS    time.Time `json:"request_ts"`
}

type CapitalizeInterestSignal struct {
	Type                         string    `json:"type"`
	DebtorID                     int64     `json:"debtor_id"`
	CreditorID                   int64     `json:"creditor_id"`
	AccumulatedInterestThreshold int64     `json:"accumulated_interest_threshold"`
	RequestTS                    time.Time `json:"request_ts"`
}

type ZeroOutNegativeBalanceSignal struct {
	Type                     string    `json:"type"`
	DebtorID                 int64     `json:"debtor_id"`
	CreditorID               int64     `json:"creditor_id"`
	LastOutgoingTransferDate time.Time `json:"last_outgoing_transfer_date"`
	RequestTS                time.Time `json:"request_ts"`
}

type TryToDeleteAccountSignal struct {
	Type       string    `json:"type"`
	DebtorID   int64     `json:"debtor_id"`
	CreditorID int64     `json:"creditor_id"`
	RequestTS  time.Time `json:"request_ts"`
}

// NewOutboxRecord marshals an outbound signal payload into an outbox row.
// The routing key is the signal type in dotted-lowercase form, so consumers
// can bind per kind.
func NewOutboxRecord(signalType, routingKey string, payload any, now time.Time) (*OutboxRecord, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &OutboxRecord{
		SignalType: signalType,
		RoutingKey: routingKey,
		Payload:    body,
		InsertedAt: now,
	}, nil
}
