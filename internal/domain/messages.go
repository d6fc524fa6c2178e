/**
 * @description
 * Inbound protocol messages ("signals") as a closed set of variants. The
 * transport delivers JSON bodies with a `type` attribute; UnmarshalMessage
 * resolves the type tag exactly once at the transport boundary, so the rest
 * of the code dispatches on concrete Go types instead of strings.
 */

package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Message is the sealed interface implemented by every inbound signal.
type Message interface {
	MessageType() string
	// AddresseeDebtorID returns the debtor the signal is addressed to, used
	// for shard-routing verification before dispatch.
	AddresseeDebtorID() int64
}

// Inbound message type tags.
const (
	MsgRejectedConfig    = "RejectedConfig"
	MsgAccountUpdate     = "AccountUpdate"
	MsgAccountPurge      = "AccountPurge"
	MsgPreparedTransfer  = "PreparedTransfer"
	MsgRejectedTransfer  = "RejectedTransfer"
	MsgFinalizedTransfer = "FinalizedTransfer"
	MsgActivateDebtor    = "ActivateDebtor"
)

type RejectedConfigMessage struct {
	DebtorID         int64     `json:"debtor_id"`
	CreditorID       int64     `json:"creditor_id"`
	ConfigTS         time.Time `json:"config_ts"`
	ConfigSeqnum     int32     `json:"config_seqnum"`
	NegligibleAmount float64   `json:"negligible_amount"`
	ConfigData       string    `json:"config_data"`
	ConfigFlags      int32     `json:"config_flags"`
	RejectionCode    string    `json:"rejection_code"`
	TS               time.Time `json:"ts"`
}

func (m RejectedConfigMessage) MessageType() string      { return MsgRejectedConfig }
func (m RejectedConfigMessage) AddresseeDebtorID() int64 { return m.DebtorID }

type AccountUpdateMessage struct {
	DebtorID                 int64     `json:"debtor_id"`
	CreditorID               int64     `json:"creditor_id"`
	CreationDate             time.Time `json:"creation_date"`
	LastChangeTS             time.Time `json:"last_change_ts"`
	LastChangeSeqnum         int32     `json:"last_change_seqnum"`
	Principal                int64     `json:"principal"`
	Interest                 float64   `json:"interest"`
	InterestRate             float64   `json:"interest_rate"`
	LastInterestRateChangeTS time.Time `json:"last_interest_rate_change_ts"`
	LastOutgoingTransferDate time.Time `json:"last_outgoing_transfer_date"`
	LastConfigTS             time.Time `json:"last_config_ts"`
	LastConfigSeqnum         int32     `json:"last_config_seqnum"`
	NegligibleAmount         float64   `json:"negligible_amount"`
	ConfigData               string    `json:"config_data"`
	ConfigFlags              int32     `json:"config_flags"`
	StatusFlags              int32     `json:"status_flags"`
	AccountID                string    `json:"account_id"`
	TransferNoteMaxBytes     int32     `json:"transfer_note_max_bytes"`
	TS                       time.Time `json:"ts"`
	TTL                      int64     `json:"ttl"`
}

func (m AccountUpdateMessage) MessageType() string      { return MsgAccountUpdate }
func (m AccountUpdateMessage) AddresseeDebtorID() int64 { return m.DebtorID }

type AccountPurgeMessage struct {
	DebtorID     int64     `json:"debtor_id"`
	CreditorID   int64     `json:"creditor_id"`
	CreationDate time.Time `json:"creation_date"`
}

func (m AccountPurgeMessage) MessageType() string      { return MsgAccountPurge }
func (m AccountPurgeMessage) AddresseeDebtorID() int64 { return m.DebtorID }

type PreparedTransferMessage struct {
	DebtorID             int64  `json:"debtor_id"`
	CreditorID           int64  `json:"creditor_id"`
	TransferID           int64  `json:"transfer_id"`
	CoordinatorType      string `json:"coordinator_type"`
	CoordinatorID        int64  `json:"coordinator_id"`
	CoordinatorRequestID int64  `json:"coordinator_request_id"`
	LockedAmount         int64  `json:"locked_amount"`
	Recipient            string `json:"recipient"`
}

func (m PreparedTransferMessage) MessageType() string      { return MsgPreparedTransfer }
func (m PreparedTransferMessage) AddresseeDebtorID() int64 { return m.DebtorID }

type RejectedTransferMessage struct {
	DebtorID             int64  `json:"debtor_id"`
	CreditorID           int64  `json:"creditor_id"`
	CoordinatorType      string `json:"coordinator_type"`
	CoordinatorID        int64  `json:"coordinator_id"`
	CoordinatorRequestID int64  `json:"coordinator_request_id"`
	StatusCode           string `json:"status_code"`
	TotalLockedAmount    int64  `json:"total_locked_amount"`
}

func (m RejectedTransferMessage) MessageType() string      { return MsgRejectedTransfer }
func (m RejectedTransferMessage) AddresseeDebtorID() int64 { return m.DebtorID }

type FinalizedTransferMessage struct {
	DebtorID             int64     `json:"debtor_id"`
	CreditorID           int64     `json:"creditor_id"`
	TransferID           int64     `json:"transfer_id"`
	CoordinatorType      string    `json:"coordinator_type"`
	CoordinatorID        int64     `json:"coordinator_id"`
	CoordinatorRequestID int64     `json:"coordinator_request_id"`
	PreparedAt           time.Time `json:"prepared_at"`
	TS                   time.Time `json:"ts"`
	CommittedAmount      int64     `json:"committed_amount"`
	StatusCode           string    `json:"status_code"`
	TotalLockedAmount    int64     `json:"total_locked_amount"`
}

func (m FinalizedTransferMessage) MessageType() string      { return MsgFinalizedTransfer }
func (m FinalizedTransferMessage) AddresseeDebtorID() int64 { return m.DebtorID }

type ActivateDebtorMessage struct {
	DebtorID      int64     `json:"debtor_id"`
	ReservationID int64     `json:"reservation_id"`
	TS            time.Time `json:"ts"`
}

func (m ActivateDebtorMessage) MessageType() string      { return MsgActivateDebtor }
func (m ActivateDebtorMessage) AddresseeDebtorID() int64 { return m.DebtorID }

// ErrUnknownMessageType is reported for type tags outside the closed set.
type ErrUnknownMessageType struct {
	Type string
}

func (e ErrUnknownMessageType) Error() string {
	return fmt.Sprintf("unknown message type %q", e.Type)
}

// UnmarshalMessage parses a JSON signal body into its concrete variant.
func UnmarshalMessage(body []byte) (Message, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("malformed signal body: %w", err)
	}

	var (
		msg Message
		err error
	)
	switch envelope.Type {
	case MsgRejectedConfig:
		var m RejectedConfigMessage
		err = json.Unmarshal(body, &m)
		msg = m
	case MsgAccountUpdate:
		var m AccountUpdateMessage
		err = json.Unmarshal(body, &m)
		msg = m
	case MsgAccountPurge:
		var m AccountPurgeMessage
		err = json.Unmarshal(body, &m)
		msg = m
	case MsgPreparedTransfer:
		var m PreparedTransferMessage
		err = json.Unmarshal(body, &m)
		msg = m
	case MsgRejectedTransfer:
		var m RejectedTransferMessage
		err = json.Unmarshal(body, &m)
		msg = m
	case MsgFinalizedTransfer:
		var m FinalizedTransferMessage
		err = json.Unmarshal(body, &m)
		msg = m
	case MsgActivateDebtor:
		var m ActivateDebtorMessage
		err = json.Unmarshal(body, &m)
		msg = m
	default:
		return nil, ErrUnknownMessageType{Type: envelope.Type}
	}
	if err != nil {
		return nil, fmt.Errorf("malformed %s signal: %w", envelope.Type, err)
	}
	return msg, nil
}
