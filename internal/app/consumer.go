/**
 * @description
 * Signal dispatch: the bridge between the message transport and the core
 * handlers. Resolves the JSON type tag once, verifies the signal belongs to
 * this node's debtor-ID shard, and routes to the mirror or the transfer
 * coordinator. Returns true to acknowledge, false to requeue; a shard
 * mismatch is fatal, because it means the broker topology routes a foreign
 * partition here.
 */

package app

import (
	"context"
	"errors"
	"log"

	"github.com/issuemint/debtors-agent/internal/domain"
)

type SignalConsumer struct {
	svc     *Service
	nodeCfg domain.NodeConfig
	fatalf  func(format string, v ...any)
}

func NewSignalConsumer(svc *Service, nodeCfg domain.NodeConfig) *SignalConsumer {
	return &SignalConsumer{
		svc:     svc,
		nodeCfg: nodeCfg,
		fatalf:  log.Fatalf,
	}
}

// HandleMessage processes one inbound signal body. The returned bool is the
// ack decision: true acknowledges the message, false requeues it.
func (c *SignalConsumer) HandleMessage(ctx context.Context, body []byte) bool {
	msg, err := domain.UnmarshalMessage(body)
	if err != nil {
		// Malformed or unknown signals can never become processable.
		log.Printf("level=warn component=consumer msg=\"dropping unprocessable signal\" err=%v", err)
		signalsConsumedTotal.WithLabelValues("unknown", "dropped").Inc()
		return true
	}
	if !c.nodeCfg.Contains(msg.AddresseeDebtorID()) {
		c.fatalf("level=fatal component=consumer msg=\"signal addressed outside this node's debtor interval\" type=%s debtor_id=%d",
			msg.MessageType(), msg.AddresseeDebtorID())
		return false
	}

	err = c.dispatch(ctx, msg)
	if err != nil {
		if isPermanentDispatchError(err) {
			log.Printf("level=warn component=consumer msg=\"dropping signal after permanent failure\" type=%s err=%v",
				msg.MessageType(), err)
			signalsConsumedTotal.WithLabelValues(msg.MessageType(), "dropped").Inc()
			return true
		}
		log.Printf("level=error component=consumer msg=\"signal processing failed; requeueing\" type=%s err=%v",
			msg.MessageType(), err)
		signalsConsumedTotal.WithLabelValues(msg.MessageType(), "requeued").Inc()
		return false
	}
	signalsConsumedTotal.WithLabelValues(msg.MessageType(), "processed").Inc()
	return true
}

func (c *SignalConsumer) dispatch(ctx context.Context, msg domain.Message) error {
	switch m := msg.(type) {
	case domain.AccountUpdateMessage:
		return c.svc.ProcessAccountUpdateSignal(ctx, m)
	case domain.AccountPurgeMessage:
		return c.svc.ProcessAccountPurgeSignal(ctx, m)
	case domain.RejectedConfigMessage:
		return c.svc.ProcessRejectedConfigSignal(ctx, m)
	case domain.PreparedTransferMessage:
		return c.svc.ProcessPreparedTransferSignal(ctx, m)
	case domain.RejectedTransferMessage:
		return c.svc.ProcessRejectedTransferSignal(ctx, m)
	case domain.FinalizedTransferMessage:
		return c.svc.ProcessFinalizedTransferSignal(ctx, m)
	case domain.ActivateDebtorMessage:
		_, err := c.svc.ActivateDebtor(ctx, m.DebtorID, m.ReservationID)
		return err
	}
	return domain.ErrUnknownMessageType{Type: msg.MessageType()}
}

// isPermanentDispatchError separates business rejections, which redelivery
// cannot fix, from transient infrastructure failures, which it can.
func isPermanentDispatchError(err error) bool {
	return errors.Is(err, ErrInvalidReservationID) ||
		errors.Is(err, ErrDebtorExists) ||
		errors.Is(err, ErrDebtorDoesNotExist)
}
