package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/pm/patient-management/libs/httpx"
	"github.com/pm/patient-management/services/patient-service/internal/patient"
)

type PatientHandler struct {
	svc    *patient.Service
	logger *slog.Logger
}

func NewPatientHandler(svc *patient.Service, logger *slog.Logger) *PatientHandler {
	return &PatientHandler{svc: svc, logger: logger}
}

func (h *PatientHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /patients", h.List)
	mux.HandleFunc("GET /patients/{id}", h.Get)
	mux.HandleFunc("POST /patients", h.Create)
	mux.HandleFunc("PUT /patients/{id}", h.Update)
	mux.HandleFunc("DELETE /patients/{id}", h.Delete)
}

func (h *PatientHandler) List(w http.ResponseWriter, r *http.Request) {
	records, err := h.svc.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, records)
}

func (h *PatientHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	rec, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, rec)
}

func (h *PatientHandler) Create(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeInput(w, r)
	if !ok {
		return
	}
	rec, err := h.svc.Register(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, rec)
}

func (h *PatientHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	in, ok := decodeInput(w, r)
	if !ok {
		return
	}
	rec, err := h.svc.Update(r.Context(), id, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, rec)
}

func (h *PatientHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, map[string]string{"id": "must be a valid UUID"})
		return uuid.Nil, false
	}
	return id, true
}

func decodeInput(w http.ResponseWriter, r *http.Request) (patient.Input, bool) {
	var in patient.Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpx.WriteMessage(w, http.StatusRequestEntityTooLarge, "request body too large")
			return patient.Input{}, false
		}
		httpx.WriteMessage(w, http.StatusBadRequest, "invalid json body")
		return patient.Input{}, false
	}
	return in, true
}

func (h *PatientHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *patient.ValidationError
	switch {
	case errors.As(err, &verr):
		httpx.WriteJSON(w, http.StatusBadRequest, verr.Fields)
	case errors.Is(err, patient.ErrDuplicateEmail):
		httpx.WriteMessage(w, http.StatusBadRequest, "Email address already exists")
	case errors.Is(err, patient.ErrNotFound):
		httpx.WriteMessage(w, http.StatusNotFound, "Patient not found")
	default:
		h.logger.ErrorContext(r.Context(), "patient request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		httpx.WriteMessage(w, http.StatusInternalServerError, "internal error")
	}
}
