package handlers

import (
	"net/http"

	"fueltracker/pkg/domain"
	"fueltracker/services/fuel-svc/internal/middleware"
	"fueltracker/services/fuel-svc/internal/service"
)

// RecordHandler обработчики записей о заправках
type RecordHandler struct {
	records      *service.RecordService
	maxBodyBytes int64
}

// NewRecordHandler создаёт новый handler
func NewRecordHandler(records *service.RecordService, maxBodyBytes int64) *RecordHandler {
	return &RecordHandler{records: records, maxBodyBytes: maxBodyBytes}
}

type listResponse struct {
	Records []domain.FuelRecord `json:"records"`
	Count   int                 `json:"count"`
}

// List GET /api/v1/records
func (h *RecordHandler) List(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptions(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	records, err := h.records.List(r.Context(), middleware.GetUserID(r.Context()), opts)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if records == nil {
		records = []domain.FuelRecord{}
	}
	writeJSON(w, http.StatusOK, listResponse{Records: records, Count: len(records)})
}

// Get GET /api/v1/records/{id}
func (h *RecordHandler) Get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.records.Get(r.Context(), middleware.GetUserID(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// Create POST /api/v1/records
func (h *RecordHandler) Create(w http.ResponseWriter, r *http.Request) {
	var form recordForm
	if err := decodeJSON(w, r, h.maxBodyBytes, &form); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.records.Create(r.Context(), middleware.GetUserID(r.Context()), form.input())
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/records/"+res.Record.ID)
	writeJSON(w, http.StatusCreated, res)
}

// Update PUT /api/v1/records/{id}
func (h *RecordHandler) Update(w http.ResponseWriter, r *http.Request) {
	var form recordForm
	if err := decodeJSON(w, r, h.maxBodyBytes, &form); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.records.Update(r.Context(), middleware.GetUserID(r.Context()), r.PathValue("id"), form.input())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Delete DELETE /api/v1/records/{id}
func (h *RecordHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.records.Delete(r.Context(), middleware.GetUserID(r.Context()), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Validate POST /api/v1/records/validate?exclude={id}
// Проверяет форму без сохранения; при редактировании exclude исключает саму запись.
func (h *RecordHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var form recordForm
	if err := decodeJSON(w, r, h.maxBodyBytes, &form); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.records.Check(r.Context(), middleware.GetUserID(r.Context()), form.input(), r.URL.Query().Get("exclude"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Stations GET /api/v1/stations
func (h *RecordHandler) Stations(w http.ResponseWriter, r *http.Request) {
	stations, err := h.records.Stations(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if stations == nil {
		stations = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"stations": stations})
}
