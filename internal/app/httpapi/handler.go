// Package httpapi exposes the engine's operations over REST. Mutations act
// on behalf of the configured local actor; reads serve from the local cache.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	app "github.com/CollabMarket/collab_engine/internal/app"
	"github.com/CollabMarket/collab_engine/internal/app/domain/collab"
	"github.com/CollabMarket/collab_engine/internal/app/gateway"
	"github.com/CollabMarket/collab_engine/internal/app/metrics"
	"github.com/CollabMarket/collab_engine/internal/app/services/payments"
	"github.com/CollabMarket/collab_engine/internal/app/services/requests"
	"github.com/CollabMarket/collab_engine/internal/app/storage"
)

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app *app.Application
}

// NewHandler returns a router exposing the core REST API.
func NewHandler(application *app.Application) http.Handler {
	h := &handler{app: application}

	r := chi.NewRouter()
	r.Use(metrics.InstrumentHandler)

	r.Get("/healthz", h.health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/requests", func(r chi.Router) {
		r.Get("/", h.listRequests)
		r.Post("/", h.createRequest)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.getRequest)
			r.Post("/approve", h.approveRequest)
			r.Post("/reject", h.rejectRequest)
			r.Post("/pay", h.payRequest)
			r.Post("/fulfill", h.fulfillRequest)
		})
	})
	r.Get("/insights", h.insights)

	return r
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if !h.app.Synchronizer.Healthy() {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

func (h *handler) listRequests(w http.ResponseWriter, r *http.Request) {
	var (
		reqs []collab.Request
		err  error
	)
	if raw := r.URL.Query().Get("status"); raw != "" {
		reqs, err = h.app.Requests.ListByStatus(r.Context(), collab.Status(raw))
	} else {
		reqs, err = h.app.Requests.List(r.Context())
	}
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, reqs)
}

func (h *handler) createRequest(w http.ResponseWriter, r *http.Request) {
	var req collab.Request
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	created, err := h.app.Requests.Create(r.Context(), req)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *handler) getRequest(w http.ResponseWriter, r *http.Request) {
	req, err := h.app.Requests.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (h *handler) approveRequest(w http.ResponseWriter, r *http.Request) {
	req, err := h.app.Requests.Approve(r.Context(), h.app.Requests.ActorID(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (h *handler) rejectRequest(w http.ResponseWriter, r *http.Request) {
	req, err := h.app.Requests.Reject(r.Context(), h.app.Requests.ActorID(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (h *handler) payRequest(w http.ResponseWriter, r *http.Request) {
	pay, req, err := h.app.Payments.Pay(r.Context(), h.app.Requests.ActorID(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"payment": pay,
		"request": req,
	})
}

func (h *handler) fulfillRequest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	pub, req, err := h.app.Payments.Fulfill(r.Context(), id)
	if err != nil {
		// Transient failures are retried by the background runner.
		if statusFor(err) == http.StatusInternalServerError {
			h.app.Fulfillment.Enqueue(id)
			writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
			return
		}
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"post":    pub,
		"request": req,
	})
}

func (h *handler) insights(w http.ResponseWriter, r *http.Request) {
	snap, err := h.app.Insights.Snapshot(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// statusFor maps the service error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, gateway.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, requests.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, requests.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, collab.ErrInvalidTransition), errors.Is(err, gateway.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, payments.ErrPaymentFailed):
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
