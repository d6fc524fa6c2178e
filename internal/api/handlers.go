/**
 * @description
 * This file contains the HTTP handlers for the debtor-facing endpoints.
 * Handlers parse incoming requests, call the application service, and map
 * the service's typed errors to HTTP status codes. They act as the bridge
 * between the web layer and the core logic.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - github.com/go-chi/chi/v5: URL parameter extraction.
 * - internal/app, internal/domain: Service logic and models.
 */

package api

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/issuemint/debtors-agent/internal/app"
	"github.com/issuemint/debtors-agent/internal/domain"
)

// DebtorHandlers holds the application service that handlers will use.
type DebtorHandlers struct {
	service *app.Service
}

// NewDebtorHandlers creates a new instance of DebtorHandlers.
func NewDebtorHandlers(service *app.Service) *DebtorHandlers {
	return &DebtorHandlers{service: service}
}

type debtorResponse struct {
	DebtorID              int64      `json:"debtor_id"`
	ReservationID         *int64     `json:"reservation_id,omitempty"`
	IsActive              bool       `json:"is_active"`
	CreatedAt             time.Time  `json:"created_at"`
	DeactivatedAt         *time.Time `json:"deactivated_at,omitempty"`
	Balance               *int64     `json:"balance"`
	BalanceLastUpdateTS   time.Time  `json:"balance_last_update_ts"`
	InterestRateTarget    float64    `json:"interest_rate_target"`
	InterestRate          float64    `json:"interest_rate"`
	MinAccountBalance     int64      `json:"min_account_balance"`
	ConfigData            string     `json:"config_data"`
	ConfigLatestUpdateID  int64      `json:"config_latest_update_id"`
	ConfigLastUpdateTS    time.Time  `json:"config_last_update_ts"`
	ConfigError           *string    `json:"config_error,omitempty"`
	IsConfigEffectual     bool       `json:"is_config_effectual"`
	HasServerAccount      bool       `json:"has_server_account"`
	AccountID             string     `json:"account_id"`
	TransferNoteMaxBytes  int32      `json:"transfer_note_max_bytes"`
	RunningTransfersCount int32      `json:"running_transfers_count"`
	DebtorInfoIRI         *string    `json:"debtor_info_iri,omitempty"`
}

func buildDebtorResponse(d *domain.Debtor, now time.Time) debtorResponse {
	return debtorResponse{
		DebtorID:              d.DebtorID,
		ReservationID:         d.ReservationID,
		IsActive:              d.IsActive(),
		CreatedAt:             d.CreatedAt,
		DeactivatedAt:         d.DeactivatedAt,
		Balance:               d.Balance,
		BalanceLastUpdateTS:   d.BalanceLastUpdateTS,
		InterestRateTarget:    d.InterestRateTarget,
		InterestRate:          d.InterestRate(now),
		MinAccountBalance:     d.MinAccountBalance(now),
		ConfigData:            d.ConfigData,
		ConfigLatestUpdateID:  d.ConfigLatestUpdateID,
		ConfigLastUpdateTS:    d.ConfigLastUpdateTS,
		ConfigError:           d.ConfigError,
		IsConfigEffectual:     d.IsConfigEffectual,
		HasServerAccount:      d.HasServerAccount,
		AccountID:             d.AccountID,
		TransferNoteMaxBytes:  d.TransferNoteMaxBytes,
		RunningTransfersCount: d.RunningTransfersCount,
		DebtorInfoIRI:         d.DebtorInfoIRI,
	}
}

// ReserveDebtorHandler reserves a debtor ID. When the request omits the ID, a
// random one from the node's interval is generated.
func (h *DebtorHandlers) ReserveDebtorHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DebtorID *int64 `json:"debtor_id"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	debtorID := int64(0)
	if req.DebtorID != nil {
		debtorID = *req.DebtorID
	} else {
		id, err := h.service.GenerateDebtorID(r.Context())
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		debtorID = id
	}

	d, err := h.service.ReserveDebtor(r.Context(), debtorID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, buildDebtorResponse(d, time.Now().UTC()))
}

// ActivateDebtorHandler redeems a reservation.
func (h *DebtorHandlers) ActivateDebtorHandler(w http.ResponseWriter, r *http.Request) {
	debtorID, ok := h.debtorID(w, r)
	if !ok {
		return
	}
	var req struct {
		ReservationID int64 `json:"reservation_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	d, err := h.service.ActivateDebtor(r.Context(), debtorID, req.ReservationID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, buildDebtorResponse(d, time.Now().UTC()))
}

// DeactivateDebtorHandler terminally deactivates a debtor.
func (h *DebtorHandlers) DeactivateDebtorHandler(w http.ResponseWriter, r *http.Request) {
	debtorID, ok := h.debtorID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeactivateDebtor(r.Context(), debtorID); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RestrictDebtorHandler imposes an administrative balance floor.
func (h *DebtorHandlers) RestrictDebtorHandler(w http.ResponseWriter, r *http.Request) {
	debtorID, ok := h.debtorID(w, r)
	if !ok {
		return
	}
	var req struct {
		MinBalance int64     `json:"min_balance"`
		Cutoff     time.Time `json:"cutoff"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	d, err := h.service.RestrictDebtor(r.Context(), debtorID, req.MinBalance, req.Cutoff)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, buildDebtorResponse(d, time.Now().UTC()))
}

// GetDebtorHandler returns one debtor.
func (h *DebtorHandlers) GetDebtorHandler(w http.ResponseWriter, r *http.Request) {
	debtorID, ok := h.debtorID(w, r)
	if !ok {
		return
	}
	d, err := h.service.GetDebtor(r.Context(), debtorID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, buildDebtorResponse(d, time.Now().UTC()))
}

// ListDebtorIDsHandler pages through activated debtor IDs.
func (h *DebtorHandlers) ListDebtorIDsHandler(w http.ResponseWriter, r *http.Request) {
	startFrom := int64(0)
	if s := r.URL.Query().Get("start_from"); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid start_from parameter")
			return
		}
		startFrom = v
	}
	count := 100
	if s := r.URL.Query().Get("count"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v <= 0 || v > 10000 {
			h.writeError(w, http.StatusBadRequest, "Invalid count parameter")
			return
		}
		count = v
	}
	ids, err := h.service.GetDebtorIDs(r.Context(), startFrom, count)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if ids == nil {
		ids = []int64{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"debtor_ids": ids})
}

type lowerLimitRequest[T int64 | float64] struct {
	Value  T         `json:"value"`
	Cutoff time.Time `json:"cutoff"`
}

// UpdatePolicyHandler replaces the debtor's issuing policy.
func (h *DebtorHandlers) UpdatePolicyHandler(w http.ResponseWriter, r *http.Request) {
	debtorID, ok := h.debtorID(w, r)
	if !ok {
		return
	}
	var req struct {
		InterestRateTarget *float64                     `json:"interest_rate_target"`
		BalanceLowerLimits []lowerLimitRequest[int64]   `json:"balance_lower_limits"`
		RateLowerLimits    []lowerLimitRequest[float64] `json:"interest_rate_lower_limits"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	balanceLimits := make([]domain.LowerLimit[int64], len(req.BalanceLowerLimits))
	for i, l := range req.BalanceLowerLimits {
		balanceLimits[i] = domain.LowerLimit[int64]{Value: l.Value, Cutoff: l.Cutoff}
	}
	rateLimits := make([]domain.LowerLimit[float64], len(req.RateLowerLimits))
	for i, l := range req.RateLowerLimits {
		rateLimits[i] = domain.LowerLimit[float64]{Value: l.Value, Cutoff: l.Cutoff}
	}
	d, err := h.service.UpdateDebtorPolicy(r.Context(), debtorID, req.InterestRateTarget, balanceLimits, rateLimits)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, buildDebtorResponse(d, time.Now().UTC()))
}

// UpdateConfigHandler replaces the debtor's config document.
func (h *DebtorHandlers) UpdateConfigHandler(w http.ResponseWriter, r *http.Request) {
	debtorID, ok := h.debtorID(w, r)
	if !ok {
		return
	}
	var req struct {
		ConfigData     string  `json:"config_data"`
		LatestUpdateID int64   `json:"latest_update_id"`
		DebtorInfoIRI  *string `json:"debtor_info_iri"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	d, err := h.service.UpdateDebtorConfig(r.Context(), debtorID, req.ConfigData, req.LatestUpdateID, req.DebtorInfoIRI)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, buildDebtorResponse(d, time.Now().UTC()))
}

// SaveDocumentHandler stores an opaque document blob.
func (h *DebtorHandlers) SaveDocumentHandler(w http.ResponseWriter, r *http.Request) {
	debtorID, ok := h.debtorID(w, r)
	if !ok {
		return
	}
	content, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		h.writeError(w, http.StatusRequestEntityTooLarge, "Document too large")
		return
	}
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	doc, err := h.service.SaveDocument(r.Context(), debtorID, contentType, content)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]any{
		"debtor_id":   doc.DebtorID,
		"document_id": doc.DocumentID,
	})
}

// GetDocumentHandler returns a saved document verbatim.
func (h *DebtorHandlers) GetDocumentHandler(w http.ResponseWriter, r *http.Request) {
	debtorID, ok := h.debtorID(w, r)
	if !ok {
		return
	}
	documentID, err := strconv.ParseInt(chi.URLParam(r, "documentID"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid document ID")
		return
	}
	doc, err := h.service.GetDocument(r.Context(), debtorID, documentID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", doc.ContentType)
	w.WriteHeader(http.StatusOK)
	w.Write(doc.Content)
}

func (h *DebtorHandlers) debtorID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "debtorID"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid debtor ID")
		return 0, false
	}
	return id, true
}

func (h *DebtorHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *DebtorHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// writeServiceError maps the service's typed errors to HTTP status codes.
func (h *DebtorHandlers) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrDebtorDoesNotExist),
		errors.Is(err, app.ErrTransferDoesNotExist),
		errors.Is(err, app.ErrDocumentDoesNotExist):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, app.ErrDebtorExists),
		errors.Is(err, app.ErrTransfersConflict),
		errors.Is(err, app.ErrUpdateConflict):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, app.ErrInvalidDebtor),
		errors.Is(err, app.ErrInvalidReservationID),
		errors.Is(err, app.ErrConflictingPolicy):
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, app.ErrForbiddenTransferCancellation),
		errors.Is(err, app.ErrTooManyManagementActions),
		errors.Is(err, app.ErrTooManyRunningTransfers),
		errors.Is(err, app.ErrTooManySavedDocuments):
		h.writeError(w, http.StatusForbidden, err.Error())
	default:
		log.Printf("level=error component=api msg=\"request failed\" err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}
