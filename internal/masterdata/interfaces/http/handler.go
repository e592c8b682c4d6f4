package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"freight-cloud/internal/auth"
	masterdata "freight-cloud/internal/masterdata/domain"
)

// Handler provides masterdata HTTP endpoints.
type Handler struct {
	agencies  masterdata.AgencyRepository
	vehicles  masterdata.VehicleRepository
	companyID string
}

// NewHandler constructs a handler.
func NewHandler(agencies masterdata.AgencyRepository, vehicles masterdata.VehicleRepository, companyID string) (*Handler, error) {
	if agencies == nil || vehicles == nil {
		return nil, errors.New("masterdata handler: nil repository")
	}
	return &Handler{agencies: agencies, vehicles: vehicles, companyID: companyID}, nil
}

// ServeHTTP routes masterdata endpoints.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/v1/agencies" && r.Method == http.MethodGet:
		h.handleListAgencies(w, r)
		return
	case r.URL.Path == "/api/v1/agencies" && r.Method == http.MethodPost:
		h.handleSaveAgency(w, r)
		return
	case strings.HasPrefix(r.URL.Path, "/api/v1/agencies/") && r.Method == http.MethodGet:
		h.handleGetAgency(w, r)
		return
	case r.URL.Path == "/api/v1/vehicles" && r.Method == http.MethodGet:
		h.handleListVehicles(w, r)
		return
	case r.URL.Path == "/api/v1/vehicles" && r.Method == http.MethodPost:
		h.handleSaveVehicle(w, r)
		return
	case strings.HasPrefix(r.URL.Path, "/api/v1/vehicles/") && r.Method == http.MethodGet:
		h.handleGetVehicle(w, r)
		return
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) callerCompany(r *http.Request) string {
	companyID := auth.CompanyIDFromContext(r.Context())
	if companyID == "" {
		companyID = h.companyID
	}
	return companyID
}

func (h *Handler) handleListAgencies(w http.ResponseWriter, r *http.Request) {
	companyID := h.callerCompany(r)
	if companyID == "" {
		http.Error(w, "company_id required", http.StatusBadRequest)
		return
	}
	agencies, err := h.agencies.ListByCompany(r.Context(), companyID)
	if err != nil {
		http.Error(w, "query agencies error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(agencies)
}

func (h *Handler) handleGetAgency(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/agencies/")
	agency, err := h.agencies.Get(r.Context(), id)
	if err != nil {
		http.Error(w, "query agency error", http.StatusInternalServerError)
		return
	}
	if agency == nil {
		http.Error(w, "agency not found", http.StatusNotFound)
		return
	}
	if companyID := h.callerCompany(r); companyID != "" && agency.CompanyID != companyID {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(agency)
}

func (h *Handler) handleSaveAgency(w http.ResponseWriter, r *http.Request) {
	var agency masterdata.Agency
	if err := json.NewDecoder(r.Body).Decode(&agency); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if companyID := h.callerCompany(r); companyID != "" {
		agency.CompanyID = companyID
	}
	if err := h.agencies.Save(r.Context(), &agency); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(agency)
}

func (h *Handler) handleListVehicles(w http.ResponseWriter, r *http.Request) {
	companyID := h.callerCompany(r)
	if companyID == "" {
		http.Error(w, "company_id required", http.StatusBadRequest)
		return
	}
	vehicles, err := h.vehicles.ListByCompany(r.Context(), companyID)
	if err != nil {
		http.Error(w, "query vehicles error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(vehicles)
}

func (h *Handler) handleGetVehicle(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/vehicles/")
	vehicle, err := h.vehicles.Get(r.Context(), id)
	if err != nil {
		http.Error(w, "query vehicle error", http.StatusInternalServerError)
		return
	}
	if vehicle == nil {
		http.Error(w, "vehicle not found", http.StatusNotFound)
		return
	}
	if companyID := h.callerCompany(r); companyID != "" && vehicle.CompanyID != companyID {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(vehicle)
}

func (h *Handler) handleSaveVehicle(w http.ResponseWriter, r *http.Request) {
	var vehicle masterdata.Vehicle
	if err := json.NewDecoder(r.Body).Decode(&vehicle); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if companyID := h.callerCompany(r); companyID != "" {
		vehicle.CompanyID = companyID
	}
	if err := h.vehicles.Save(r.Context(), &vehicle); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(vehicle)
}
