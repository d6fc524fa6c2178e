/**
 * @description
 * This file sets up the HTTP router for the debtors agent. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies
 * standard middleware.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 * - github.com/prometheus/client_golang/prometheus/promhttp: Metrics endpoint.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DebtorRoutes creates and returns the router for the debtors agent.
func DebtorRoutes(h *DebtorHandlers) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/debtors", func(r chi.Router) {
		r.Get("/", h.ListDebtorIDsHandler)
		r.Post("/reserve", h.ReserveDebtorHandler)

		r.Route("/{debtorID}", func(r chi.Router) {
			r.Get("/", h.GetDebtorHandler)
			r.Post("/activate", h.ActivateDebtorHandler)
			r.Post("/deactivate", h.DeactivateDebtorHandler)
			r.Post("/restrict", h.RestrictDebtorHandler)
			r.Patch("/policy", h.UpdatePolicyHandler)
			r.Patch("/config", h.UpdateConfigHandler)

			r.Get("/transfers", h.ListTransfersHandler)
			r.Post("/transfers", h.InitiateTransferHandler)
			r.Get("/transfers/{transferUUID}", h.GetTransferHandler)
			r.Post("/transfers/{transferUUID}/cancel", h.CancelTransferHandler)
			r.Delete("/transfers/{transferUUID}", h.DeleteTransferHandler)

			r.Post("/documents", h.SaveDocumentHandler)
			r.Get("/documents/{documentID}", h.GetDocumentHandler)
		})
	})

	return r
}
