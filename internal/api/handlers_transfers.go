/**
 * @description
 * HTTP handlers for the running-transfer endpoints: initiation, inspection,
 * cancellation, and deletion. Initiation is idempotent on the client-chosen
 * transfer UUID; re-submitting the identical request returns the existing
 * record.
 */

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/issuemint/debtors-agent/internal/app"
	"github.com/issuemint/debtors-agent/internal/domain"
)

type transferResponse struct {
	DebtorID           int64      `json:"debtor_id"`
	TransferUUID       string     `json:"transfer_uuid"`
	Recipient          string     `json:"recipient"`
	Amount             int64      `json:"amount"`
	TransferNoteFormat string     `json:"transfer_note_format"`
	TransferNote       string     `json:"transfer_note"`
	StartedAt          time.Time  `json:"started_at"`
	IsSettled          bool       `json:"is_settled"`
	IsFinalized        bool       `json:"is_finalized"`
	IsSuccessful       bool       `json:"is_successful"`
	FinalizedAt        *time.Time `json:"finalized_at,omitempty"`
	ErrorCode          *string    `json:"error_code,omitempty"`
	CommittedAmount    int64      `json:"committed_amount"`
	TotalLockedAmount  *int64     `json:"total_locked_amount,omitempty"`
}

func buildTransferResponse(t *domain.RunningTransfer) transferResponse {
	return transferResponse{
		DebtorID:           t.DebtorID,
		TransferUUID:       t.TransferUUID.String(),
		Recipient:          t.Recipient,
		Amount:             t.Amount,
		TransferNoteFormat: t.TransferNoteFormat,
		TransferNote:       t.TransferNote,
		StartedAt:          t.StartedAt,
		IsSettled:          t.IsSettled(),
		IsFinalized:        t.IsFinalized(),
		IsSuccessful:       t.IsSuccessful(),
		FinalizedAt:        t.FinalizedAt,
		ErrorCode:          t.ErrorCode,
		CommittedAmount:    t.CommittedAmount,
		TotalLockedAmount:  t.TotalLockedAmount,
	}
}

// InitiateTransferHandler starts a new issuing transfer.
func (h *DebtorHandlers) InitiateTransferHandler(w http.ResponseWriter, r *http.Request) {
	debtorID, ok := h.debtorID(w, r)
	if !ok {
		return
	}
	var req struct {
		TransferUUID       string `json:"transfer_uuid"`
		Recipient          string `json:"recipient"`
		Amount             int64  `json:"amount"`
		TransferNoteFormat string `json:"transfer_note_format"`
		TransferNote       string `json:"transfer_note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	transferUUID, err := uuid.Parse(req.TransferUUID)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid transfer UUID")
		return
	}

	t, err := h.service.InitiateTransfer(r.Context(), debtorID, transferUUID,
		req.Recipient, req.Amount, req.TransferNoteFormat, req.TransferNote)
	if err != nil {
		if errors.Is(err, app.ErrTransferExists) {
			// Idempotent re-submission: return the existing record.
			existing, getErr := h.service.GetTransfer(r.Context(), debtorID, transferUUID)
			if getErr != nil {
				h.writeServiceError(w, getErr)
				return
			}
			h.writeJSON(w, http.StatusOK, buildTransferResponse(existing))
			return
		}
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, buildTransferResponse(t))
}

// GetTransferHandler returns one running transfer.
func (h *DebtorHandlers) GetTransferHandler(w http.ResponseWriter, r *http.Request) {
	debtorID, transferUUID, ok := h.transferKey(w, r)
	if !ok {
		return
	}
	t, err := h.service.GetTransfer(r.Context(), debtorID, transferUUID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, buildTransferResponse(t))
}

// ListTransfersHandler returns the UUIDs of the debtor's running transfers.
func (h *DebtorHandlers) ListTransfersHandler(w http.ResponseWriter, r *http.Request) {
	debtorID, ok := h.debtorID(w, r)
	if !ok {
		return
	}
	uuids, err := h.service.ListTransferUUIDs(r.Context(), debtorID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	out := make([]string, len(uuids))
	for i, u := range uuids {
		out[i] = u.String()
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"transfer_uuids": out})
}

// CancelTransferHandler cancels a not-yet-settled transfer.
func (h *DebtorHandlers) CancelTransferHandler(w http.ResponseWriter, r *http.Request) {
	debtorID, transferUUID, ok := h.transferKey(w, r)
	if !ok {
		return
	}
	t, err := h.service.CancelTransfer(r.Context(), debtorID, transferUUID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, buildTransferResponse(t))
}

// DeleteTransferHandler removes a running transfer record.
func (h *DebtorHandlers) DeleteTransferHandler(w http.ResponseWriter, r *http.Request) {
	debtorID, transferUUID, ok := h.transferKey(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteTransfer(r.Context(), debtorID, transferUUID); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *DebtorHandlers) transferKey(w http.ResponseWriter, r *http.Request) (int64, uuid.UUID, bool) {
	debtorID, ok := h.debtorID(w, r)
	if !ok {
		return 0, uuid.UUID{}, false
	}
	transferUUID, err := uuid.Parse(chi.URLParam(r, "transferUUID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid transfer UUID")
		return 0, uuid.UUID{}, false
	}
	return debtorID, transferUUID, true
}
