/**
 * @description
 * The typed error taxonomy raised by the service operations. API handlers
 * map these to transport status codes; the errors themselves stay
 * transport-agnostic.
 */

package app

import "errors"

var (
	// ErrDebtorDoesNotExist: the addressed debtor is unknown to this shard.
	ErrDebtorDoesNotExist = errors.New("debtor does not exist")

	// ErrInvalidDebtor: the debtor ID is outside this node's shard interval.
	ErrInvalidDebtor = errors.New("debtor id is outside the node's interval")

	// ErrInvalidReservationID: activation presented a reservation ID that
	// does not match the debtor's pending reservation.
	ErrInvalidReservationID = errors.New("invalid reservation id")

	// ErrDebtorExists: a reservation or activation collided with an already
	// existing debtor.
	ErrDebtorExists = errors.New("debtor already exists")

	// ErrDocumentDoesNotExist: no saved document with that ID.
	ErrDocumentDoesNotExist = errors.New("document does not exist")

	// ErrTransferDoesNotExist: no running transfer with that UUID.
	ErrTransferDoesNotExist = errors.New("transfer does not exist")

	// ErrTransferExists: an identical transfer with the same UUID already
	// runs; the re-submission is a harmless duplicate.
	ErrTransferExists = errors.New("transfer already exists")

	// ErrTransfersConflict: a different transfer already uses the UUID.
	ErrTransfersConflict = errors.New("conflicting transfer with the same uuid")

	// ErrForbiddenTransferCancellation: the transfer can no longer be
	// canceled (already settled or finalized with a different outcome).
	ErrForbiddenTransferCancellation = errors.New("forbidden transfer cancellation")

	// ErrTooManyManagementActions: the debtor exhausted its monthly quota of
	// management actions.
	ErrTooManyManagementActions = errors.New("too many management actions")

	// ErrTooManyRunningTransfers: the debtor has reached the cap on
	// simultaneously running transfers.
	ErrTooManyRunningTransfers = errors.New("too many running transfers")

	// ErrTooManySavedDocuments: the debtor exhausted its yearly quota of
	// saved documents.
	ErrTooManySavedDocuments = errors.New("too many saved documents")

	// ErrUpdateConflict: the config update carried a non-consecutive update
	// ID (optimistic concurrency failure).
	ErrUpdateConflict = errors.New("conflicting config update id")

	// ErrConflictingPolicy: the submitted policy is invalid or would exceed
	// the limit-sequence cap.
	ErrConflictingPolicy = errors.New("conflicting policy")

	// ErrMisconfiguredNode: the node's shard interval has not been
	// configured, or conflicts with an earlier configuration.
	ErrMisconfiguredNode = errors.New("misconfigured node")
)
