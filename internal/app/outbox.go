/**
 * @description
 * The outbox flusher: periodically claims durable outbox rows and publishes
 * them to the transport. A row is deleted only after the broker confirms the
 * publish, so delivery is at-least-once; receivers are idempotent by the
 * protocol's matching keys. Publish failures leave the remaining rows for the
 * next period.
 */

package app

import (
	"context"
	"log"

	"github.com/issuemint/debtors-agent/internal/store"
)

// Publisher sends one message and returns only after the broker confirms it.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
}

type Flusher struct {
	store     store.Store
	publisher Publisher
	batchSize int
}

func NewFlusher(s store.Store, publisher Publisher, batchSize int) *Flusher {
	return &Flusher{store: s, publisher: publisher, batchSize: batchSize}
}

// Flush drains the outbox until a batch comes back short. Each claimed row is
// published with confirmation; the deletions of the confirmed rows commit
// even when a later publish in the batch fails, so a confirmed signal is
// never republished by this process.
func (f *Flusher) Flush(ctx context.Context) error {
	for {
		var claimed, published int
		var publishErr error
		err := f.store.WithTx(ctx, func(tx store.Tx) error {
			records, err := tx.ClaimOutbox(ctx, f.batchSize)
			if err != nil {
				return err
			}
			claimed = len(records)

			var confirmedIDs []int64
			for _, rec := range records {
				if publishErr = f.publisher.Publish(ctx, rec.RoutingKey, rec.Payload); publishErr != nil {
					break
				}
				confirmedIDs = append(confirmedIDs, rec.SignalID)
			}
			published = len(confirmedIDs)
			if len(confirmedIDs) == 0 {
				return publishErr
			}
			return tx.DeleteOutbox(ctx, confirmedIDs)
		})
		if published > 0 {
			outboxFlushedTotal.Add(float64(published))
		}
		if err == nil {
			err = publishErr
		}
		if err != nil {
			log.Printf("level=error component=outbox msg=\"flush interrupted\" published=%d err=%v", published, err)
			return err
		}
		if claimed < f.batchSize {
			return nil
		}
	}
}
