package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"freight-cloud/internal/auth"
	reconapp "freight-cloud/internal/reconciliation/application"
	reconciliation "freight-cloud/internal/reconciliation/domain"
	reconrepo "freight-cloud/internal/reconciliation/infrastructure/postgres"
	reconifaces "freight-cloud/internal/reconciliation/interfaces"
)

const timeLayout = time.RFC3339

// Handler provides reconciliation APIs.
type Handler struct {
	runner        *reconapp.Runner
	repo          *reconrepo.Repository
	companyID     string
	agencyChecker auth.AgencyCompanyChecker
}

// NewHandler constructs a handler.
func NewHandler(runner *reconapp.Runner, repo *reconrepo.Repository, companyID string, agencyChecker auth.AgencyCompanyChecker) (*Handler, error) {
	if runner == nil || repo == nil {
		return nil, errors.New("reconciliation handler: nil dependency")
	}
	return &Handler{runner: runner, repo: repo, companyID: companyID, agencyChecker: agencyChecker}, nil
}

// ServeHTTP routes reconciliation endpoints.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/v1/reconciliation/run" && r.Method == http.MethodPost:
		h.handleRun(w, r)
		return
	case r.URL.Path == "/api/v1/reconciliation/reports" && r.Method == http.MethodGet:
		h.handleReports(w, r)
		return
	case strings.HasPrefix(r.URL.Path, "/api/v1/reconciliation/reports/"):
		h.handleReportByID(w, r)
		return
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleRun(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CompanyID      string               `json:"company_id"`
		AgencyIDs      []string             `json:"agency_ids"`
		From           string               `json:"from"`
		To             string               `json:"to"`
		IncludePartial bool                 `json:"include_partial"`
		Thresholds     *reconapp.Thresholds `json:"thresholds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	companyID := auth.CompanyIDFromContext(r.Context())
	if companyID == "" {
		companyID = req.CompanyID
	}
	if companyID == "" {
		companyID = h.companyID
	}
	if companyID == "" {
		http.Error(w, "company_id required", http.StatusBadRequest)
		return
	}
	if len(req.AgencyIDs) == 0 {
		http.Error(w, "agency_ids required", http.StatusBadRequest)
		return
	}
	from, err := parseTimeValue(req.From, "from")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	to, err := parseTimeValue(req.To, "to")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !to.After(from) {
		http.Error(w, "to must be after from", http.StatusBadRequest)
		return
	}

	var results []map[string]any
	for _, agencyID := range req.AgencyIDs {
		if err := h.ensureAgencyCompany(r, companyID, agencyID); err != nil {
			results = append(results, map[string]any{
				"agency_id": agencyID,
				"error":     companyErrorMessage(err),
			})
			continue
		}
		report, err := h.runner.Run(r.Context(), reconapp.ReportRequest{
			CompanyID:      companyID,
			AgencyID:       agencyID,
			From:           from,
			To:             to,
			IncludePartial: req.IncludePartial,
		}, req.Thresholds)
		if err != nil {
			results = append(results, map[string]any{
				"agency_id": agencyID,
				"error":     err.Error(),
			})
			continue
		}
		if report != nil {
			results = append(results, map[string]any{
				"agency_id": agencyID,
				"report_id": report.ID,
				"status":    report.Status,
			})
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(results)
}

func (h *Handler) handleReports(w http.ResponseWriter, r *http.Request) {
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
	reports, err := h.repo.ListReports(r.Context(), agencyID, from, to)
	if err != nil {
		http.Error(w, "query reports error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(reports)
}

func (h *Handler) handleReportByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/reconciliation/reports/")
	parts := strings.Split(path, "/")
	reportID := parts[0]
	if reportID == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if len(parts) == 1 && r.Method == http.MethodGet {
		h.handleReportGet(w, r, reportID)
		return
	}
	if len(parts) == 2 && r.Method == http.MethodGet {
		switch parts[1] {
		case "download":
			h.handleDownload(w, r, reportID)
			return
		case "export.csv", "export.xlsx", "export.pdf":
			h.handleExport(w, r, reportID, strings.TrimPrefix(parts[1], "export."))
			return
		}
	}
	w.WriteHeader(http.StatusNotFound)
}

func (h *Handler) loadReport(w http.ResponseWriter, r *http.Request, reportID string) *reconrepo.Report {
	report, err := h.repo.GetReport(r.Context(), reportID)
	if err != nil || report == nil {
		http.Error(w, reconciliation.ErrReportNotFound.Error(), http.StatusNotFound)
		return nil
	}
	companyID := auth.CompanyIDFromContext(r.Context())
	if companyID != "" && report.CompanyID != companyID {
		http.Error(w, "forbidden", http.StatusForbidden)
		return nil
	}
	return report
}

func (h *Handler) handleReportGet(w http.ResponseWriter, r *http.Request, reportID string) {
	report := h.loadReport(w, r, reportID)
	if report == nil {
		return
	}
	resp := map[string]any{
		"id":               report.ID,
		"job_id":           report.JobID,
		"agency_id":        report.AgencyID,
		"window_from":      report.WindowFrom.Format(timeLayout),
		"window_to":        report.WindowTo.Format(timeLayout),
		"report_date":      report.ReportDate.Format("2006-01-02"),
		"status":           report.Status,
		"location":         report.Location,
		"summary":          json.RawMessage(report.Summary),
		"total_amount":     report.TotalAmount,
		"unbilled_total":   report.UnbilledTotal,
		"unmatched_events": report.UnmatchedEvents,
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request, reportID string) {
	report := h.loadReport(w, r, reportID)
	if report == nil {
		return
	}
	http.ServeFile(w, r, report.Location)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request, reportID, format string) {
	record := h.loadReport(w, r, reportID)
	if record == nil {
		return
	}
	var report reconciliation.Report
	if err := json.Unmarshal(record.Summary, &report); err != nil {
		http.Error(w, "report summary unreadable", http.StatusInternalServerError)
		return
	}

	var data []byte
	var err error
	var contentType string
	switch format {
	case "csv":
		data, err = reconifaces.BuildReportCSV(&report)
		contentType = "text/csv"
	case "xlsx":
		data, err = reconifaces.BuildReportXLSX(&report)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case "pdf":
		data, err = reconifaces.BuildReportPDF(&report)
		contentType = "application/pdf"
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "export error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", "attachment; filename=\""+reportID+"."+format+"\"")
	_, _ = w.Write(data)
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

func companyErrorMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrCompanyMismatch):
		return "forbidden"
	case errors.Is(err, auth.ErrNotFound):
		return "not found"
	case err != nil:
		return err.Error()
	default:
		return ""
	}
}

func parseTimeQuery(r *http.Request, key string) (time.Time, error) {
	return parseTimeValue(r.URL.Query().Get(key), key)
}

func parseTimeValue(value, key string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New(key + " is required")
	}
	parsed, err := time.Parse(timeLayout, value)
	if err != nil {
		// Date-only windows are common for daily reconciliation.
		parsed, err = time.Parse("2006-01-02", value)
		if err != nil {
			return time.Time{}, errors.New(key + " must be RFC3339 or YYYY-MM-DD")
		}
	}
	return parsed.UTC(), nil
}
