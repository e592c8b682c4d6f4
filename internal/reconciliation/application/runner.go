package application

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"path/filepath"
	"time"

	reconciliation "freight-cloud/internal/reconciliation/domain"
	reconrepo "freight-cloud/internal/reconciliation/infrastructure/postgres"
	reconmetrics "freight-cloud/internal/reconciliation/metrics"
	reconnotify "freight-cloud/internal/reconciliation/notify"
)

const (
	jobTypeReconcile = "reconcile"
	jobStatusCreated = "created"
	jobStatusRunning = "running"
	jobStatusSuccess = "succeeded"
	jobStatusFailed  = "failed"
)

// Runner executes reconciliation jobs and persists the resulting reports.
type Runner struct {
	engine        *Engine
	repo          *reconrepo.Repository
	thresholds    Config
	notifier      reconnotify.Notifier
	metrics       *reconmetrics.Metrics
	logger        *log.Logger
	publicBaseURL string
	storageRoot   string
}

// NewRunner constructs a Runner.
func NewRunner(engine *Engine, repo *reconrepo.Repository, cfg Config, notifier reconnotify.Notifier, metrics *reconmetrics.Metrics, logger *log.Logger) *Runner {
	return &Runner{
		engine:        engine,
		repo:          repo,
		thresholds:    cfg,
		notifier:      notifier,
		metrics:       metrics,
		logger:        logger,
		publicBaseURL: cfg.PublicBaseURL,
		storageRoot:   cfg.StorageRoot,
	}
}

// Run executes a reconciliation job for an agency/window.
func (r *Runner) Run(ctx context.Context, req ReportRequest, override *Thresholds) (*reconrepo.Report, error) {
	if r == nil || r.engine == nil {
		return nil, fmt.Errorf("reconciliation runner: nil")
	}
	if req.CompanyID == "" || req.AgencyID == "" {
		return nil, fmt.Errorf("reconciliation runner: company_id/agency_id required")
	}
	from := req.From.UTC()
	to := req.To.UTC()
	if from.IsZero() || to.IsZero() || !to.After(from) {
		return nil, reconciliation.ErrInvalidWindow
	}
	jobDate := time.Now().UTC().Truncate(24 * time.Hour)

	jobID := fmt.Sprintf("rc-%s-%s-%s", req.AgencyID, from.Format("20060102"), jobDate.Format("20060102"))
	job, err := r.repo.CreateJob(ctx, &reconrepo.Job{
		ID:         jobID,
		CompanyID:  req.CompanyID,
		AgencyID:   req.AgencyID,
		WindowFrom: from,
		WindowTo:   to,
		JobDate:    jobDate,
		JobType:    jobTypeReconcile,
		Status:     jobStatusCreated,
	})
	if err != nil {
		return nil, err
	}
	if job.Status == jobStatusSuccess {
		report, _ := r.repo.GetReport(ctx, "report-"+job.ID)
		if report != nil {
			return report, nil
		}
	}
	if job.Status == jobStatusRunning {
		return nil, fmt.Errorf("reconciliation job already running")
	}

	started := time.Now().UTC()
	_ = r.repo.UpdateJobStatus(ctx, job.ID, jobStatusRunning, "", &started, nil, true)
	if r.metrics != nil {
		r.metrics.JobsTotal.WithLabelValues(jobStatusRunning).Inc()
	}
	r.logf("reconcile_job_start", req.CompanyID, req.AgencyID, job.ID, "", "")

	thresholds := r.thresholds.ThresholdsForAgency(req.AgencyID)
	if override != nil {
		thresholds = mergeThresholds(thresholds, *override)
	}

	report, err := r.engine.BuildReport(ctx, req)
	if err != nil {
		r.failJob(ctx, job.ID, started, err)
		r.logf("reconcile_job_failed", req.CompanyID, req.AgencyID, job.ID, "", err.Error())
		return nil, err
	}

	reportDir := filepath.Join(r.storageRoot, req.CompanyID, req.AgencyID, from.Format("2006-01-02"), job.ID)
	if err := writeReportFiles(reportDir, report); err != nil {
		r.failJob(ctx, job.ID, started, err)
		r.logf("reconcile_job_failed", req.CompanyID, req.AgencyID, job.ID, "", err.Error())
		return nil, err
	}
	archivePath, err := writeArchive(reportDir)
	if err != nil {
		r.failJob(ctx, job.ID, started, err)
		return nil, err
	}

	summaryBytes, _ := json.Marshal(report)
	reportID := "report-" + job.ID

	var totalAmount int64
	for _, amount := range report.CategoryTotals {
		totalAmount += amount
	}

	record := &reconrepo.Report{
		ID:              reportID,
		JobID:           job.ID,
		CompanyID:       req.CompanyID,
		AgencyID:        req.AgencyID,
		WindowFrom:      from,
		WindowTo:        to,
		ReportDate:      jobDate,
		Status:          "generated",
		Location:        archivePath,
		Summary:         summaryBytes,
		TotalAmount:     totalAmount,
		UnbilledTotal:   report.UnbilledTotal,
		UnmatchedEvents: len(report.UnmatchedEvents),
		CreatedAt:       time.Now().UTC(),
	}

	if err := r.repo.CreateReport(ctx, record); err != nil {
		r.failJob(ctx, job.ID, started, err)
		return nil, err
	}

	recommended := recommendedAction(report, thresholds)
	if isThresholdExceeded(report, thresholds) {
		if err := r.createAlert(ctx, record, report, recommended); err != nil {
			r.logf("reconcile_alert_failed", req.CompanyID, req.AgencyID, job.ID, record.ID, err.Error())
		} else if r.metrics != nil {
			r.metrics.AlertsTotal.Inc()
		}
	}

	ended := time.Now().UTC()
	_ = r.repo.UpdateJobStatus(ctx, job.ID, jobStatusSuccess, "", &started, &ended, false)
	if r.metrics != nil {
		r.metrics.JobsTotal.WithLabelValues(jobStatusSuccess).Inc()
		r.metrics.JobDuration.Observe(ended.Sub(started).Seconds())
		r.metrics.ReportsTotal.Inc()
		r.metrics.UnbilledTotal.Set(float64(report.UnbilledTotal))
		r.metrics.UnmatchedEvents.Set(float64(len(report.UnmatchedEvents)))
	}
	r.logf("reconcile_job_success", req.CompanyID, req.AgencyID, job.ID, record.ID, "")
	return record, nil
}

func (r *Runner) failJob(ctx context.Context, jobID string, started time.Time, cause error) {
	ended := time.Now().UTC()
	_ = r.repo.UpdateJobStatus(ctx, jobID, jobStatusFailed, cause.Error(), &started, &ended, false)
	if r.metrics != nil {
		r.metrics.JobsTotal.WithLabelValues(jobStatusFailed).Inc()
	}
}

func (r *Runner) createAlert(ctx context.Context, record *reconrepo.Report, report *reconciliation.Report, recommended string) error {
	if record == nil {
		return nil
	}
	payload := map[string]any{
		"unbilled_total":     report.UnbilledTotal,
		"unmatched_events":   len(report.UnmatchedEvents),
		"total_amount":       record.TotalAmount,
		"recommended_action": recommended,
	}
	payloadBytes, _ := json.Marshal(payload)
	alert := &reconrepo.Alert{
		ID:        "alert-" + record.ID,
		CompanyID: record.CompanyID,
		AgencyID:  record.AgencyID,
		Category:  "reconciliation",
		Severity:  "high",
		Title:     fmt.Sprintf("Reconciliation discrepancy: %s", record.AgencyID),
		Message:   fmt.Sprintf("Discrepancies exceed threshold for %s %s", record.AgencyID, record.WindowFrom.Format("2006-01-02")),
		Payload:   payloadBytes,
		ReportID:  record.ID,
		Status:    "open",
		CreatedAt: time.Now().UTC(),
	}
	if err := r.repo.CreateAlert(ctx, alert); err != nil {
		return err
	}
	if r.notifier != nil {
		msg := reconnotify.AlertMessage{
			CompanyID:         record.CompanyID,
			AgencyID:          record.AgencyID,
			Window:            fmt.Sprintf("%s..%s", record.WindowFrom.Format("2006-01-02"), record.WindowTo.Format("2006-01-02")),
			ReportID:          record.ID,
			ReportURL:         fmt.Sprintf("%s/api/v1/reconciliation/reports/%s/download", r.publicBaseURL, record.ID),
			Summary:           payload,
			RecommendedAction: recommended,
			Meta:              map[string]string{"job_id": record.JobID},
		}
		return r.notifier.Notify(ctx, msg)
	}
	return nil
}

func isThresholdExceeded(report *reconciliation.Report, thresholds Thresholds) bool {
	if thresholds.UnbilledShipments > 0 && report.UnbilledTotal >= thresholds.UnbilledShipments {
		return true
	}
	if thresholds.UnmatchedEvents > 0 && len(report.UnmatchedEvents) >= thresholds.UnmatchedEvents {
		return true
	}
	if thresholds.AmountAbs > 0 {
		for _, vehicle := range report.Vehicles {
			if vehicle.ClosedBatches > 0 && absInt64(vehicle.LogisticsAmount) >= thresholds.AmountAbs {
				return true
			}
		}
	}
	return false
}

func recommendedAction(report *reconciliation.Report, thresholds Thresholds) string {
	if thresholds.UnbilledShipments > 0 && report.UnbilledTotal >= thresholds.UnbilledShipments {
		return "bill_missing_shipments"
	}
	if thresholds.UnmatchedEvents > 0 && len(report.UnmatchedEvents) >= thresholds.UnmatchedEvents {
		return "check_source_references"
	}
	return "none"
}

func (r *Runner) logf(event, companyID, agencyID, jobID, reportID, errMsg string) {
	if r.logger == nil {
		return
	}
	r.logger.Printf("event=%s company_id=%s agency_id=%s job_id=%s report_id=%s correlation_id=%s error=%s",
		event, companyID, agencyID, jobID, reportID, jobID, errMsg)
}

func absInt64(value int64) int64 {
	if value < 0 {
		return -value
	}
	return value
}
