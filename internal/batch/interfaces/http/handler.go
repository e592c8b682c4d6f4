package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"freight-cloud/internal/audit"
	"freight-cloud/internal/auth"
	batchapp "freight-cloud/internal/batch/application"
	batch "freight-cloud/internal/batch/domain"
)

const timeLayout = time.RFC3339

// Handler provides batch HTTP endpoints.
type Handler struct {
	service       *batchapp.Service
	agencyChecker auth.AgencyCompanyChecker
	auditLogger   audit.Logger
}

// NewHandler constructs a handler.
func NewHandler(service *batchapp.Service, agencyChecker auth.AgencyCompanyChecker, auditLogger audit.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("batch handler: nil service")
	}
	return &Handler{service: service, agencyChecker: agencyChecker, auditLogger: auditLogger}, nil
}

// ServeHTTP routes batch endpoints.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/v1/batches" && r.Method == http.MethodPost:
		h.handleCreate(w, r)
		return
	case r.URL.Path == "/api/v1/batches" && r.Method == http.MethodGet:
		h.handleList(w, r)
		return
	case strings.HasPrefix(r.URL.Path, "/api/v1/batches/"):
		h.handleByID(w, r)
		return
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DepartureAgencyID string `json:"departure_agency_id"`
		ArrivalAgencyID   string `json:"arrival_agency_id"`
		VehicleID         string `json:"vehicle_id"`
		TripID            string `json:"trip_id"`
		DepartureAt       string `json:"departure_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	departureAt, err := time.Parse(timeLayout, req.DepartureAt)
	if err != nil {
		http.Error(w, "departure_at must be RFC3339", http.StatusBadRequest)
		return
	}

	companyID := auth.CompanyIDFromContext(r.Context())
	if companyID != "" {
		if err := h.ensureAgencyCompany(r, companyID, req.DepartureAgencyID); err != nil {
			respondCompanyError(w, err)
			return
		}
		if err := h.ensureAgencyCompany(r, companyID, req.ArrivalAgencyID); err != nil {
			respondCompanyError(w, err)
			return
		}
	}

	created, err := h.service.CreateBatch(r.Context(), batchapp.CreateBatchInput{
		DepartureAgencyID: req.DepartureAgencyID,
		ArrivalAgencyID:   req.ArrivalAgencyID,
		VehicleID:         req.VehicleID,
		TripID:            req.TripID,
		DepartureAt:       departureAt.UTC(),
		CreatedBy:         auth.SubjectFromContext(r.Context()),
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(batchResponse(created))

	h.logAudit(r, companyID, "batch.create", created.ID(), created.DepartureAgencyID())
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	agencyID := r.URL.Query().Get("agency_id")
	if agencyID == "" {
		http.Error(w, "agency_id required", http.StatusBadRequest)
		return
	}
	companyID := auth.CompanyIDFromContext(r.Context())
	if companyID != "" {
		if err := h.ensureAgencyCompany(r, companyID, agencyID); err != nil {
			respondCompanyError(w, err)
			return
		}
	}
	from, err := parseTimeQuery(r, "from")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	to, err := parseTimeQuery(r, "to")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !to.After(from) {
		http.Error(w, "to must be after from", http.StatusBadRequest)
		return
	}

	var statuses []batch.Status
	if raw := r.URL.Query().Get("statuses"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			status := batch.Status(strings.TrimSpace(part))
			if !batch.ValidStatus(status) {
				http.Error(w, "invalid status", http.StatusBadRequest)
				return
			}
			statuses = append(statuses, status)
		}
	}

	batches, err := h.service.ListByAgencyWindow(r.Context(), agencyID, from, to, statuses)
	if err != nil {
		http.Error(w, "query batches error", http.StatusInternalServerError)
		return
	}
	result := make([]map[string]any, 0, len(batches))
	for _, b := range batches {
		result = append(result, batchResponse(b))
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(result)
}

func (h *Handler) handleByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/batches/")
	parts := strings.Split(path, "/")
	batchID := parts[0]
	if batchID == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if len(parts) == 1 && r.Method == http.MethodGet {
		h.handleGet(w, r, batchID)
		return
	}
	if len(parts) == 2 && r.Method == http.MethodPost {
		switch parts[1] {
		case "shipments":
			h.handleAddShipment(w, r, batchID)
			return
		case "transition":
			h.handleTransition(w, r, batchID)
			return
		}
	}
	w.WriteHeader(http.StatusNotFound)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request, batchID string) {
	b, err := h.service.GetBatch(r.Context(), batchID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	companyID := auth.CompanyIDFromContext(r.Context())
	if companyID != "" {
		if err := h.ensureAgencyCompany(r, companyID, b.DepartureAgencyID()); err != nil {
			respondCompanyError(w, err)
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(batchResponse(b))
}

func (h *Handler) handleAddShipment(w http.ResponseWriter, r *http.Request, batchID string) {
	var req struct {
		ShipmentID string `json:"shipment_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	b, err := h.service.AddShipment(r.Context(), batchID, req.ShipmentID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(batchResponse(b))

	h.logAudit(r, auth.CompanyIDFromContext(r.Context()), "batch.add_shipment", batchID, b.DepartureAgencyID())
}

func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request, batchID string) {
	var req struct {
		Target string `json:"target"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	target := batch.Status(req.Target)
	if !batch.ValidStatus(target) {
		http.Error(w, "invalid target status", http.StatusBadRequest)
		return
	}
	b, err := h.service.Transition(r.Context(), batchID, target, auth.SubjectFromContext(r.Context()))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(batchResponse(b))

	h.logAudit(r, auth.CompanyIDFromContext(r.Context()), "batch.transition", batchID, b.DepartureAgencyID())
}

func batchResponse(b *batch.Batch) map[string]any {
	return map[string]any{
		"id":                  b.ID(),
		"departure_agency_id": b.DepartureAgencyID(),
		"arrival_agency_id":   b.ArrivalAgencyID(),
		"vehicle_id":          b.VehicleID(),
		"trip_id":             b.TripID(),
		"departure_at":        b.DepartureAt().Format(timeLayout),
		"shipment_ids":        b.ShipmentIDs(),
		"status":              string(b.Status()),
		"created_at":          b.CreatedAt().Format(timeLayout),
		"created_by":          b.CreatedBy(),
		"version":             b.Version(),
	}
}

func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, batch.ErrBatchNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, batch.ErrShipmentConflict),
		errors.Is(err, batch.ErrVehicleWindowConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, batch.ErrInvalidTransition),
		errors.Is(err, batch.ErrBatchNotOpen),
		errors.Is(err, batch.ErrEmptyBatch):
		http.Error(w, err.Error(), http.StatusConflict)
	case err != nil:
		http.Error(w, err.Error(), http.StatusBadRequest)
	}
}

func (h *Handler) logAudit(r *http.Request, companyID, action, batchID, agencyID string) {
	if h.auditLogger == nil || companyID == "" {
		return
	}
	_ = h.auditLogger.Log(r.Context(), audit.Entry{
		CompanyID:    companyID,
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: "batch",
		ResourceID:   batchID,
		AgencyID:     agencyID,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
}

func (h *Handler) ensureAgencyCompany(r *http.Request, companyID, agencyID string) error {
	if h.agencyChecker == nil || companyID == "" || agencyID == "" {
		return nil
	}
	return h.agencyChecker.EnsureAgencyCompany(r.Context(), companyID, agencyID)
}

func respondCompanyError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	if errors.Is(err, auth.ErrCompanyMismatch) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	if errors.Is(err, auth.ErrNotFound) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	http.Error(w, "company check failed", http.StatusInternalServerError)
}

func parseTimeQuery(r *http.Request, key string) (time.Time, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return time.Time{}, errors.New(key + " is required")
	}
	parsed, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}, errors.New(key + " must be RFC3339")
	}
	return parsed.UTC(), nil
}
