package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"freight-cloud/internal/audit"
	"freight-cloud/internal/auth"
	ledgerapp "freight-cloud/internal/ledger/application"
	ledger "freight-cloud/internal/ledger/domain"
)

const timeLayout = time.RFC3339

// Handler provides revenue ledger HTTP endpoints.
type Handler struct {
	service       *ledgerapp.Service
	agencyChecker auth.AgencyCompanyChecker
	auditLogger   audit.Logger
}

// NewHandler constructs a handler.
func NewHandler(service *ledgerapp.Service, agencyChecker auth.AgencyCompanyChecker, auditLogger audit.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("ledger handler: nil service")
	}
	return &Handler{service: service, agencyChecker: agencyChecker, auditLogger: auditLogger}, nil
}

// ServeHTTP routes revenue endpoints.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/v1/revenue/events" && r.Method == http.MethodPost:
		h.handleAppend(w, r)
		return
	case r.URL.Path == "/api/v1/revenue/events" && r.Method == http.MethodGet:
		h.handleList(w, r)
		return
	case strings.HasPrefix(r.URL.Path, "/api/v1/revenue/events/"):
		h.handleByID(w, r)
		return
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleAppend(w http.ResponseWriter, r *http.Request) {
	var req struct {
		EventID    string `json:"event_id"`
		SourceType string `json:"source_type"`
		SourceID   string `json:"source_id"`
		AgencyID   string `json:"agency_id"`
		VehicleID  string `json:"vehicle_id"`
		Amount     int64  `json:"amount"`
		Currency   string `json:"currency"`
		Category   string `json:"category"`
		OccurredAt string `json:"occurred_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	occurredAt, err := time.Parse(timeLayout, req.OccurredAt)
	if err != nil {
		http.Error(w, "occurred_at must be RFC3339", http.StatusBadRequest)
		return
	}

	companyID := auth.CompanyIDFromContext(r.Context())
	if companyID != "" {
		if err := h.ensureAgencyCompany(r, companyID, req.AgencyID); err != nil {
			respondCompanyError(w, err)
			return
		}
	}

	result, err := h.service.Append(r.Context(), ledger.RevenueEvent{
		EventID:    req.EventID,
		SourceType: ledger.SourceType(req.SourceType),
		SourceID:   req.SourceID,
		AgencyID:   req.AgencyID,
		VehicleID:  req.VehicleID,
		Amount:     req.Amount,
		Currency:   req.Currency,
		Category:   ledger.Category(req.Category),
		OccurredAt: occurredAt.UTC(),
		RecordedBy: auth.SubjectFromContext(r.Context()),
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if result.Status == ledgerapp.StatusAccepted {
		w.WriteHeader(http.StatusCreated)
	}
	_ = json.NewEncoder(w).Encode(result)

	h.logAudit(r, companyID, "revenue.append", result.Event.EventID, result.Event.AgencyID)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	if sourceID := r.URL.Query().Get("source_id"); sourceID != "" {
		h.handleListBySource(w, r, sourceID)
		return
	}

	agencyID := r.URL.Query().Get("agency_id")
	if agencyID == "" {
		http.Error(w, "agency_id or source_id required", http.StatusBadRequest)
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

	events, err := h.service.ListByAgency(r.Context(), agencyID, from, to)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(events)
}

func (h *Handler) handleListBySource(w http.ResponseWriter, r *http.Request, sourceID string) {
	sourceType := ledger.SourceType(r.URL.Query().Get("source_type"))
	if sourceType == "" {
		http.Error(w, "source_type required", http.StatusBadRequest)
		return
	}
	events, err := h.service.ListBySource(r.Context(), sourceType, sourceID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(events)
}

func (h *Handler) handleByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/revenue/events/")
	parts := strings.Split(path, "/")
	eventID := parts[0]
	if eventID == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if len(parts) == 1 && r.Method == http.MethodGet {
		h.handleGet(w, r, eventID)
		return
	}
	if len(parts) == 2 && parts[1] == "reverse" && r.Method == http.MethodPost {
		h.handleReverse(w, r, eventID)
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request, eventID string) {
	event, err := h.service.Get(r.Context(), eventID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	companyID := auth.CompanyIDFromContext(r.Context())
	if companyID != "" {
		if err := h.ensureAgencyCompany(r, companyID, event.AgencyID); err != nil {
			respondCompanyError(w, err)
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(event)
}

func (h *Handler) handleReverse(w http.ResponseWriter, r *http.Request, eventID string) {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	reversal, err := h.service.Reverse(r.Context(), eventID, req.Reason, auth.SubjectFromContext(r.Context()))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(reversal)

	h.logAudit(r, auth.CompanyIDFromContext(r.Context()), "revenue.reverse", reversal.EventID, reversal.AgencyID)
}

func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrEventNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ledger.ErrAlreadyReversed):
		http.Error(w, err.Error(), http.StatusConflict)
	case err != nil:
		http.Error(w, err.Error(), http.StatusBadRequest)
	}
}

func (h *Handler) logAudit(r *http.Request, companyID, action, eventID, agencyID string) {
	if h.auditLogger == nil || companyID == "" {
		return
	}
	_ = h.auditLogger.Log(r.Context(), audit.Entry{
		CompanyID:    companyID,
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: "revenue_event",
		ResourceID:   eventID,
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
