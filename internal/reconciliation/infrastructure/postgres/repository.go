package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Job represents a reconciliation job.
type Job struct {
	ID         string
	CompanyID  string
	AgencyID   string
	WindowFrom time.Time
	WindowTo   time.Time
	JobDate    time.Time
	JobType    string
	Status     string
	Attempts   int
	Error      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	StartedAt  *time.Time
	EndedAt    *time.Time
}

// Report represents a stored reconciliation report.
type Report struct {
	ID              string
	JobID           string
	CompanyID       string
	AgencyID        string
	WindowFrom      time.Time
	WindowTo        time.Time
	ReportDate      time.Time
	Status          string
	Location        string
	Summary         []byte
	TotalAmount     int64
	UnbilledTotal   int
	UnmatchedEvents int
	CreatedAt       time.Time
}

// Alert represents a discrepancy alert record.
type Alert struct {
	ID        string
	CompanyID string
	AgencyID  string
	Category  string
	Severity  string
	Title     string
	Message   string
	Payload   []byte
	ReportID  string
	Status    string
	CreatedAt time.Time
}

// Repository handles reconciliation persistence.
type Repository struct {
	db *sql.DB
}

// NewRepository constructs a repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// CreateJob inserts a job if not exists, then returns the stored job.
func (r *Repository) CreateJob(ctx context.Context, job *Job) (*Job, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("reconciliation repo: nil db")
	}
	if job == nil {
		return nil, errors.New("reconciliation repo: nil job")
	}
	now := time.Now().UTC()
	_, _ = r.db.ExecContext(ctx, `
INSERT INTO reconciliation_jobs (
	id, company_id, agency_id, window_from, window_to, job_date, job_type, status, attempts, created_at, updated_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,0,$9,$9
)
ON CONFLICT (company_id, agency_id, window_from, window_to, job_date, job_type)
DO NOTHING`,
		job.ID, job.CompanyID, job.AgencyID, job.WindowFrom, job.WindowTo, job.JobDate, job.JobType, job.Status, now,
	)
	return r.GetJobByKey(ctx, job.CompanyID, job.AgencyID, job.WindowFrom, job.WindowTo, job.JobDate, job.JobType)
}

// GetJobByKey returns job by unique key.
func (r *Repository) GetJobByKey(ctx context.Context, companyID, agencyID string, from, to, jobDate time.Time, jobType string) (*Job, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, company_id, agency_id, window_from, window_to, job_date, job_type, status, attempts, error, created_at, updated_at, started_at, finished_at
FROM reconciliation_jobs
WHERE company_id = $1 AND agency_id = $2 AND window_from = $3 AND window_to = $4 AND job_date = $5 AND job_type = $6`,
		companyID, agencyID, from, to, jobDate, jobType)

	return scanJob(row)
}

// UpdateJobStatus updates job status and timestamps.
func (r *Repository) UpdateJobStatus(ctx context.Context, id, status, errMsg string, startedAt, finishedAt *time.Time, bumpAttempt bool) error {
	if r == nil || r.db == nil {
		return errors.New("reconciliation repo: nil db")
	}
	if id == "" {
		return errors.New("reconciliation repo: empty job id")
	}
	now := time.Now().UTC()
	if bumpAttempt {
		_, err := r.db.ExecContext(ctx, `
UPDATE reconciliation_jobs
SET status = $1, error = $2, started_at = $3, finished_at = $4, attempts = attempts + 1, updated_at = $5
WHERE id = $6`, status, errMsg, startedAt, finishedAt, now, id)
		return err
	}
	_, err := r.db.ExecContext(ctx, `
UPDATE reconciliation_jobs
SET status = $1, error = $2, started_at = $3, finished_at = $4, updated_at = $5
WHERE id = $6`, status, errMsg, startedAt, finishedAt, now, id)
	return err
}

// CreateReport inserts a report.
func (r *Repository) CreateReport(ctx context.Context, report *Report) error {
	if r == nil || r.db == nil {
		return errors.New("reconciliation repo: nil db")
	}
	if report == nil {
		return errors.New("reconciliation repo: nil report")
	}
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
INSERT INTO reconciliation_reports (
	id, job_id, company_id, agency_id, window_from, window_to, report_date, status, report_location,
	summary, total_amount, unbilled_total, unmatched_events, created_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14
)`,
		report.ID, report.JobID, report.CompanyID, report.AgencyID, report.WindowFrom, report.WindowTo, report.ReportDate, report.Status, report.Location,
		report.Summary, report.TotalAmount, report.UnbilledTotal, report.UnmatchedEvents, now)
	return err
}

// ListReports lists reports for an agency and time range.
func (r *Repository) ListReports(ctx context.Context, agencyID string, from, to time.Time) ([]Report, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("reconciliation repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, job_id, company_id, agency_id, window_from, window_to, report_date, status, report_location,
	summary, total_amount, unbilled_total, unmatched_events, created_at
FROM reconciliation_reports
WHERE agency_id = $1 AND report_date >= $2 AND report_date < $3
ORDER BY report_date DESC`, agencyID, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Report
	for rows.Next() {
		var report Report
		if err := rows.Scan(
			&report.ID,
			&report.JobID,
			&report.CompanyID,
			&report.AgencyID,
			&report.WindowFrom,
			&report.WindowTo,
			&report.ReportDate,
			&report.Status,
			&report.Location,
			&report.Summary,
			&report.TotalAmount,
			&report.UnbilledTotal,
			&report.UnmatchedEvents,
			&report.CreatedAt,
		); err != nil {
			return nil, err
		}
		report.WindowFrom = report.WindowFrom.UTC()
		report.WindowTo = report.WindowTo.UTC()
		report.ReportDate = report.ReportDate.UTC()
		report.CreatedAt = report.CreatedAt.UTC()
		result = append(result, report)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// GetReport returns report by id.
func (r *Repository) GetReport(ctx context.Context, id string) (*Report, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("reconciliation repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT id, job_id, company_id, agency_id, window_from, window_to, report_date, status, report_location,
	summary, total_amount, unbilled_total, unmatched_events, created_at
FROM reconciliation_reports
WHERE id = $1`, id)

	var report Report
	if err := row.Scan(
		&report.ID,
		&report.JobID,
		&report.CompanyID,
		&report.AgencyID,
		&report.WindowFrom,
		&report.WindowTo,
		&report.ReportDate,
		&report.Status,
		&report.Location,
		&report.Summary,
		&report.TotalAmount,
		&report.UnbilledTotal,
		&report.UnmatchedEvents,
		&report.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	report.WindowFrom = report.WindowFrom.UTC()
	report.WindowTo = report.WindowTo.UTC()
	report.ReportDate = report.ReportDate.UTC()
	report.CreatedAt = report.CreatedAt.UTC()
	return &report, nil
}

// CreateAlert inserts a discrepancy alert.
func (r *Repository) CreateAlert(ctx context.Context, alert *Alert) error {
	if r == nil || r.db == nil {
		return errors.New("reconciliation repo: nil db")
	}
	if alert == nil {
		return errors.New("reconciliation repo: nil alert")
	}
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
INSERT INTO reconciliation_alerts (
	id, company_id, agency_id, category, severity, title, message, payload, report_id, status, created_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
)`,
		alert.ID, alert.CompanyID, alert.AgencyID, alert.Category, alert.Severity, alert.Title, alert.Message, alert.Payload, alert.ReportID, alert.Status, now)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var job Job
	var started sql.NullTime
	var finished sql.NullTime
	var errMsg sql.NullString
	if err := row.Scan(
		&job.ID,
		&job.CompanyID,
		&job.AgencyID,
		&job.WindowFrom,
		&job.WindowTo,
		&job.JobDate,
		&job.JobType,
		&job.Status,
		&job.Attempts,
		&errMsg,
		&job.CreatedAt,
		&job.UpdatedAt,
		&started,
		&finished,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if errMsg.Valid {
		job.Error = errMsg.String
	}
	if started.Valid {
		t := started.Time.UTC()
		job.StartedAt = &t
	}
	if finished.Valid {
		t := finished.Time.UTC()
		job.EndedAt = &t
	}
	job.WindowFrom = job.WindowFrom.UTC()
	job.WindowTo = job.WindowTo.UTC()
	job.JobDate = job.JobDate.UTC()
	job.CreatedAt = job.CreatedAt.UTC()
	job.UpdatedAt = job.UpdatedAt.UTC()
	return &job, nil
}
